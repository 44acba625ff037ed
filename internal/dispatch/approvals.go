package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"joinflow/internal/notify"
	"joinflow/internal/platform/queue"
	usermodels "joinflow/internal/user/models"
	id "joinflow/pkg/domain"
	dErrors "joinflow/pkg/domain-errors"
	"joinflow/pkg/platform/sentinel"
)

// UserApprovalSender handles FamilyUserNotifications tasks. It stamps the
// user's done-marker after sending but does not consult it first, so a
// redelivered task sends again.
type UserApprovalSender struct {
	users    UserStore
	notifier notify.Notifier
	logger   *slog.Logger
	metrics  *Metrics
	now      func() time.Time
}

type ApprovalOption func(s *UserApprovalSender)

func WithApprovalLogger(logger *slog.Logger) ApprovalOption {
	return func(s *UserApprovalSender) {
		s.logger = logger
	}
}

func WithApprovalMetrics(m *Metrics) ApprovalOption {
	return func(s *UserApprovalSender) {
		s.metrics = m
	}
}

func WithApprovalClock(now func() time.Time) ApprovalOption {
	return func(s *UserApprovalSender) {
		s.now = now
	}
}

func NewUserApprovalSender(users UserStore, notifier notify.Notifier, opts ...ApprovalOption) *UserApprovalSender {
	s := &UserApprovalSender{
		users:    users,
		notifier: notifier,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *UserApprovalSender) Handle(ctx context.Context, task queue.Task) error {
	switch task.Kind {
	case queue.KindNeedsApproval:
		return s.needsApproval(ctx, task)
	case queue.KindApproved:
		return s.approved(ctx, task)
	default:
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unknown user notification kind %q", task.Kind))
	}
}

// needsApproval tells each listed site admin that the subject is waiting.
func (s *UserApprovalSender) needsApproval(ctx context.Context, task queue.Task) error {
	subject, err := s.subject(ctx, task)
	if err != nil {
		return err
	}
	ids := make([]id.UserID, 0, len(task.Recipients))
	for _, r := range task.Recipients {
		ids = append(ids, id.UserID(r))
	}
	admins, err := s.users.FindByIDs(ctx, ids)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load recipients")
	}
	params := map[string]string{
		"user_id":    subject.ID.String(),
		"user_name":  subject.Name,
		"user_email": subject.Email,
	}
	failed := 0
	for _, admin := range admins {
		if !s.send(ctx, notify.TemplateUserNeedsApproval, recipientOf(admin), params) {
			failed++
		}
	}
	if err := s.stamp(ctx, s.users.StampNeedsApprovalNotification, subject.ID); err != nil {
		return err
	}
	if failed > 0 {
		return dErrors.New(dErrors.CodeDeliveryFailed,
			fmt.Sprintf("%d of %d needs-approval sends failed for user %s", failed, len(admins), subject.ID))
	}
	return nil
}

func (s *UserApprovalSender) approved(ctx context.Context, task queue.Task) error {
	subject, err := s.subject(ctx, task)
	if err != nil {
		return err
	}
	ok := s.send(ctx, notify.TemplateUserApproved, recipientOf(subject), map[string]string{
		"user_id":   subject.ID.String(),
		"user_name": subject.Name,
	})
	if err := s.stamp(ctx, s.users.StampApprovedNotification, subject.ID); err != nil {
		return err
	}
	if !ok {
		return dErrors.New(dErrors.CodeDeliveryFailed, "approved notification failed for user "+subject.ID.String())
	}
	return nil
}

func (s *UserApprovalSender) subject(ctx context.Context, task queue.Task) (*usermodels.User, error) {
	user, err := s.users.FindByID(ctx, id.UserID(task.SubjectID))
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "user not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}
	return user, nil
}

func (s *UserApprovalSender) send(ctx context.Context, template string, to notify.Recipient, params map[string]string) bool {
	_, err := s.notifier.Send(ctx, notify.Message{Template: template, Recipient: to, Params: params})
	s.metrics.observeSend(template, err == nil)
	if err != nil {
		s.logger.WarnContext(ctx, "user notification send failed",
			"template", template,
			"recipient_id", to.UserID.String(),
			"error", err,
		)
		return false
	}
	return true
}

func (s *UserApprovalSender) stamp(ctx context.Context, fn func(context.Context, id.UserID, time.Time) error, userID id.UserID) error {
	err := fn(ctx, userID, s.now())
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Wrap(err, dErrors.CodeNotFound, "user not found")
	}
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to stamp user notification")
	}
	return nil
}

func recipientOf(u *usermodels.User) notify.Recipient {
	return notify.Recipient{UserID: u.ID, Email: u.Email, Name: u.Name}
}
