package dispatch

import (
	"context"
	"log/slog"
	"time"

	invitationmodels "joinflow/internal/invitation/models"
	"joinflow/internal/notify"
	dErrors "joinflow/pkg/domain-errors"
)

const defaultInvitationBatch = 50

// DispatchReport summarises one InvitationDispatcher pass.
type DispatchReport struct {
	Sent   int
	Failed int
}

// InvitationDispatcher sends every ready, unsent invitation and records the
// transport result on it. A failed send leaves the invitation unsent so the
// next pass retries it.
type InvitationDispatcher struct {
	store    InvitationStore
	notifier notify.Notifier
	tx       TxRunner
	batch    int
	logger   *slog.Logger
	metrics  *Metrics
	now      func() time.Time
}

type InvitationOption func(d *InvitationDispatcher)

func WithInvitationLogger(logger *slog.Logger) InvitationOption {
	return func(d *InvitationDispatcher) {
		d.logger = logger
	}
}

func WithInvitationMetrics(m *Metrics) InvitationOption {
	return func(d *InvitationDispatcher) {
		d.metrics = m
	}
}

func WithInvitationClock(now func() time.Time) InvitationOption {
	return func(d *InvitationDispatcher) {
		d.now = now
	}
}

func NewInvitationDispatcher(store InvitationStore, notifier notify.Notifier, tx TxRunner, batch int, opts ...InvitationOption) *InvitationDispatcher {
	if batch <= 0 {
		batch = defaultInvitationBatch
	}
	d := &InvitationDispatcher{
		store:    store,
		notifier: notifier,
		tx:       tx,
		batch:    batch,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch drains dispatchable invitations batch by batch. Each batch is
// claimed and marked inside one transaction so concurrent dispatchers skip
// each other's rows. It stops after a short batch or a batch with failures.
func (d *InvitationDispatcher) Dispatch(ctx context.Context) (DispatchReport, error) {
	var report DispatchReport
	for {
		var claimed, failed int
		err := d.tx.RunInTx(ctx, func(ctx context.Context) error {
			invitations, err := d.store.ClaimDispatchable(ctx, d.batch)
			if err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to claim invitations")
			}
			claimed = len(invitations)
			for _, inv := range invitations {
				sent, err := d.send(ctx, inv)
				if err != nil {
					return err
				}
				if !sent {
					failed++
				}
			}
			return nil
		})
		if err != nil {
			return report, err
		}
		report.Sent += claimed - failed
		report.Failed += failed
		if claimed < d.batch || failed > 0 {
			return report, nil
		}
	}
}

// send reports false when the transport refused the message. Only store
// errors are returned.
func (d *InvitationDispatcher) send(ctx context.Context, inv *invitationmodels.Invitation) (bool, error) {
	result, err := d.notifier.Send(ctx, notify.Message{
		Template:  notify.TemplateInvitation,
		Recipient: inv.Recipient(),
		Params:    inv.Params(),
	})
	d.metrics.observeSend(notify.TemplateInvitation, err == nil)
	if err != nil {
		d.logger.WarnContext(ctx, "invitation send failed",
			"invitation_id", inv.ID.String(),
			"error", err,
		)
		return false, nil
	}
	if err := d.store.MarkSent(ctx, inv.ID, result, d.now()); err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to mark invitation sent")
	}
	d.logger.InfoContext(ctx, "invitation sent",
		"invitation_id", inv.ID.String(),
		"target", inv.Target.String(),
	)
	return true, nil
}
