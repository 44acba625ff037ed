package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"

	activitymodels "joinflow/internal/activity/models"
	"joinflow/internal/notify"
	"joinflow/internal/platform/queue"
	id "joinflow/pkg/domain"
	dErrors "joinflow/pkg/domain-errors"
	"joinflow/pkg/platform/sentinel"
	"joinflow/pkg/platform/strings"
)

// Extra parameters added next to the entry snapshot. Both are immutable on
// their source record.
const (
	ParamJoinRequestToken = "join_request_token"
	ParamGroupKind        = "group_kind"
	ParamGroupID          = "group_id"
)

// entryWorker holds what the three event log handlers share: load the
// entry, send to each recipient, then mark the entry notified.
type entryWorker struct {
	activities ActivityStore
	users      UserStore
	notifier   notify.Notifier
	logger     *slog.Logger
	metrics    *Metrics
}

type EntryOption func(w *entryWorker)

func WithEntryLogger(logger *slog.Logger) EntryOption {
	return func(w *entryWorker) {
		w.logger = logger
	}
}

func WithEntryMetrics(m *Metrics) EntryOption {
	return func(w *entryWorker) {
		w.metrics = m
	}
}

func newEntryWorker(activities ActivityStore, users UserStore, notifier notify.Notifier, opts []EntryOption) entryWorker {
	w := entryWorker{
		activities: activities,
		users:      users,
		notifier:   notifier,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(&w)
	}
	return w
}

func (w *entryWorker) load(ctx context.Context, task queue.Task) (*activitymodels.Entry, error) {
	entry, err := w.activities.FindByID(ctx, id.ActivityID(task.SubjectID))
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "activity not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load activity")
	}
	return entry, nil
}

// finish marks the entry notified. Marking twice is harmless.
func (w *entryWorker) finish(ctx context.Context, entry *activitymodels.Entry) error {
	err := w.activities.MarkNotified(ctx, entry.ID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Wrap(err, dErrors.CodeNotFound, "activity not found")
	}
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to mark activity notified")
	}
	return nil
}

// abandon marks an entry whose subject vanished so that it is not scanned
// again, and reports the drop.
func (w *entryWorker) abandon(ctx context.Context, entry *activitymodels.Entry, cause error) error {
	if err := w.finish(ctx, entry); err != nil {
		return err
	}
	return cause
}

// recipients resolves user ids to recipients. Unknown users are skipped.
func (w *entryWorker) recipients(ctx context.Context, userIDs []id.UserID) ([]notify.Recipient, error) {
	users, err := w.users.FindByIDs(ctx, strings.Dedupe(userIDs))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load recipients")
	}
	out := make([]notify.Recipient, 0, len(users))
	for _, u := range users {
		out = append(out, recipientOf(u))
	}
	return out, nil
}

// candidateRecipient resolves the single recipient of a candidate-facing
// family. A candidate whose account is gone drops the entry.
func (w *entryWorker) candidateRecipient(ctx context.Context, entry *activitymodels.Entry, candidateID id.UserID) ([]notify.Recipient, error) {
	to, err := w.recipients(ctx, []id.UserID{candidateID})
	if err != nil {
		return nil, err
	}
	if len(to) == 0 {
		return nil, w.abandon(ctx, entry, dErrors.New(dErrors.CodeNotFound,
			fmt.Sprintf("candidate %s of activity %s not found", candidateID, entry.ID)))
	}
	return to, nil
}

// deliver sends one message per recipient, marks the entry notified after
// every attempt and reports failed sends as CodeDeliveryFailed.
func (w *entryWorker) deliver(ctx context.Context, entry *activitymodels.Entry, template string, to []notify.Recipient, params map[string]string) error {
	if len(to) == 0 {
		w.logger.WarnContext(ctx, "no recipients for activity",
			"activity_id", entry.ID.String(),
			"key", string(entry.Key),
		)
	}
	failed := 0
	for _, r := range to {
		_, err := w.notifier.Send(ctx, notify.Message{Template: template, Recipient: r, Params: params})
		w.metrics.observeSend(template, err == nil)
		if err != nil {
			failed++
			w.logger.WarnContext(ctx, "notification send failed",
				"activity_id", entry.ID.String(),
				"template", template,
				"recipient_id", r.UserID.String(),
				"error", err,
			)
		}
	}
	if err := w.finish(ctx, entry); err != nil {
		return err
	}
	if failed > 0 {
		return dErrors.New(dErrors.CodeDeliveryFailed,
			fmt.Sprintf("%d of %d sends failed for activity %s", failed, len(to), entry.ID))
	}
	return nil
}

func (w *entryWorker) candidate(entry *activitymodels.Entry) (id.UserID, error) {
	candidateID, err := id.ParseUserID(entry.Param(activitymodels.ParamCandidateID))
	if err != nil {
		return id.UserID{}, dErrors.Wrap(err, dErrors.CodeValidation, "activity has no candidate")
	}
	return candidateID, nil
}

func snapshot(entry *activitymodels.Entry) map[string]string {
	params := make(map[string]string, len(entry.Parameters)+3)
	maps.Copy(params, entry.Parameters)
	return params
}

func withGroup(params map[string]string, group id.Ref) {
	params[ParamGroupKind] = string(group.Kind)
	params[ParamGroupID] = group.ID.String()
}

// InviteNotifier tells an invited candidate about the invitation.
type InviteNotifier struct {
	entryWorker
	requests JoinRequestFinder
}

func NewInviteNotifier(activities ActivityStore, requests JoinRequestFinder, users UserStore, notifier notify.Notifier, opts ...EntryOption) *InviteNotifier {
	return &InviteNotifier{entryWorker: newEntryWorker(activities, users, notifier, opts), requests: requests}
}

func (n *InviteNotifier) Handle(ctx context.Context, task queue.Task) error {
	entry, err := n.load(ctx, task)
	if err != nil {
		return err
	}
	request, err := n.requests.FindByID(ctx, id.JoinRequestID(entry.Trackable.ID))
	if errors.Is(err, sentinel.ErrNotFound) {
		return n.abandon(ctx, entry, dErrors.Wrap(err, dErrors.CodeNotFound, "invalid join request in activity"))
	}
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load join request")
	}
	candidateID, err := n.candidate(entry)
	if err != nil {
		return n.abandon(ctx, entry, err)
	}
	to, err := n.candidateRecipient(ctx, entry, candidateID)
	if err != nil {
		return err
	}
	params := snapshot(entry)
	params[ParamJoinRequestToken] = request.SecretToken
	withGroup(params, entry.Owner)
	return n.deliver(ctx, entry, notify.TemplateJoinRequestInvite, to, params)
}

// JoinRequestNotifier tells every admin of the owning group that a
// candidate asked to join. One message per admin; a failed send does not
// stop the others.
type JoinRequestNotifier struct {
	entryWorker
	requests JoinRequestFinder
	groups   GroupResolver
}

func NewJoinRequestNotifier(activities ActivityStore, requests JoinRequestFinder, groups GroupResolver, users UserStore, notifier notify.Notifier, opts ...EntryOption) *JoinRequestNotifier {
	return &JoinRequestNotifier{entryWorker: newEntryWorker(activities, users, notifier, opts), requests: requests, groups: groups}
}

func (n *JoinRequestNotifier) Handle(ctx context.Context, task queue.Task) error {
	entry, err := n.load(ctx, task)
	if err != nil {
		return err
	}
	request, err := n.requests.FindByID(ctx, id.JoinRequestID(entry.Trackable.ID))
	if errors.Is(err, sentinel.ErrNotFound) {
		return n.abandon(ctx, entry, dErrors.Wrap(err, dErrors.CodeNotFound, "invalid join request in activity"))
	}
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load join request")
	}
	g, err := n.groups.Resolve(ctx, entry.Owner)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) || dErrors.HasCode(err, dErrors.CodeValidation) {
			return n.abandon(ctx, entry, err)
		}
		return err
	}
	admins, err := g.ListAdmins(ctx)
	if err != nil {
		return err
	}
	to, err := n.recipients(ctx, admins)
	if err != nil {
		return err
	}
	params := snapshot(entry)
	params[ParamJoinRequestToken] = request.SecretToken
	params[activitymodels.ParamGroupName] = g.Name()
	withGroup(params, entry.Owner)
	return n.deliver(ctx, entry, notify.TemplateJoinRequestNotification, to, params)
}

// ProcessedNotifier tells the candidate how their request or invitation
// was answered.
type ProcessedNotifier struct {
	entryWorker
}

func NewProcessedNotifier(activities ActivityStore, users UserStore, notifier notify.Notifier, opts ...EntryOption) *ProcessedNotifier {
	return &ProcessedNotifier{entryWorker: newEntryWorker(activities, users, notifier, opts)}
}

func (n *ProcessedNotifier) Handle(ctx context.Context, task queue.Task) error {
	entry, err := n.load(ctx, task)
	if err != nil {
		return err
	}
	candidateID, err := n.candidate(entry)
	if err != nil {
		return n.abandon(ctx, entry, err)
	}
	to, err := n.candidateRecipient(ctx, entry, candidateID)
	if err != nil {
		return err
	}
	params := snapshot(entry)
	withGroup(params, entry.Trackable)
	return n.deliver(ctx, entry, notify.TemplateJoinRequestProcessed, to, params)
}
