package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"joinflow/internal/platform/metrics"
	"joinflow/internal/platform/queue"
	"joinflow/internal/user/models"
	id "joinflow/pkg/domain"
	dErrors "joinflow/pkg/domain-errors"
	"joinflow/pkg/email"
	"joinflow/pkg/platform/sentinel"
	"joinflow/pkg/requestcontext"
)

type Store interface {
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, userID id.UserID) (*models.User, error)
	FindByEmail(ctx context.Context, addr string) (*models.User, error)
	ListSuperUsers(ctx context.Context) ([]*models.User, error)
	Approve(ctx context.Context, userID id.UserID, now time.Time) error
}

// TaskQueue receives user_notifications tasks.
type TaskQueue interface {
	Enqueue(ctx context.Context, task queue.Task) error
}

// Service registers and approves users and triggers the approval
// notifications.
type Service struct {
	users           Store
	tasks           TaskQueue
	logger          *slog.Logger
	metrics         *metrics.Metrics
	requireApproval bool
	superUserEmails map[string]struct{}
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithRequireApproval makes new accounts wait for a site admin.
func WithRequireApproval(required bool) Option {
	return func(s *Service) {
		s.requireApproval = required
	}
}

// WithSuperUserEmails lists addresses that register as approved site admins.
func WithSuperUserEmails(addrs []string) Option {
	return func(s *Service) {
		for _, addr := range addrs {
			s.superUserEmails[email.Normalize(addr)] = struct{}{}
		}
	}
}

func New(users Store, tasks TaskQueue, opts ...Option) *Service {
	s := &Service{
		users:           users,
		tasks:           tasks,
		logger:          slog.Default(),
		superUserEmails: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates an account. When approval is required the site admins
// are notified that the account waits for them.
func (s *Service) Register(ctx context.Context, name, addr string) (*models.User, error) {
	_, superUser := s.superUserEmails[email.Normalize(addr)]
	approved := superUser || !s.requireApproval

	user, err := models.NewUser(name, addr, approved, superUser, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.New(dErrors.CodeConflict, "email is already registered")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create user")
	}
	if s.metrics != nil {
		s.metrics.IncrementUsersRegistered()
	}
	s.logger.InfoContext(ctx, "user registered",
		"user_id", user.ID.String(),
		"approved", user.Approved,
	)

	if !user.Approved {
		s.enqueueNeedsApproval(ctx, user)
	}
	return user, nil
}

// Approve lets a site admin approve a pending account and notifies the user.
func (s *Service) Approve(ctx context.Context, actor, userID id.UserID) (*models.User, error) {
	admin, err := s.Get(ctx, actor)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return nil, dErrors.New(dErrors.CodeForbidden, "only site admins can approve users")
		}
		return nil, err
	}
	if !admin.IsSiteAdmin() {
		return nil, dErrors.New(dErrors.CodeForbidden, "only site admins can approve users")
	}

	if err := s.users.Approve(ctx, userID, requestcontext.Now(ctx)); err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "user not found")
		case errors.Is(err, sentinel.ErrInvalidState):
			return nil, dErrors.Wrap(err, dErrors.CodeConflict, "user is already approved")
		default:
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to approve user")
		}
	}
	if s.metrics != nil {
		s.metrics.IncrementUsersApproved()
	}

	s.enqueue(ctx, queue.Task{
		Family:    queue.FamilyUserNotifications,
		Kind:      queue.KindApproved,
		SubjectID: uuid.UUID(userID),
	})
	return s.Get(ctx, userID)
}

func (s *Service) Get(ctx context.Context, userID id.UserID) (*models.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "user not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}
	return user, nil
}

func (s *Service) enqueueNeedsApproval(ctx context.Context, user *models.User) {
	admins, err := s.users.ListSuperUsers(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to list site admins",
			"user_id", user.ID.String(),
			"error", err,
		)
		return
	}
	recipients := make([]uuid.UUID, 0, len(admins))
	for _, admin := range admins {
		recipients = append(recipients, uuid.UUID(admin.ID))
	}
	if len(recipients) == 0 {
		s.logger.WarnContext(ctx, "no site admins to notify about pending user",
			"user_id", user.ID.String(),
		)
		return
	}
	s.enqueue(ctx, queue.Task{
		Family:     queue.FamilyUserNotifications,
		Kind:       queue.KindNeedsApproval,
		SubjectID:  uuid.UUID(user.ID),
		Recipients: recipients,
	})
}

// enqueue is fire-and-forget: the account change already happened, so a
// queue failure is logged rather than undoing it.
func (s *Service) enqueue(ctx context.Context, task queue.Task) {
	if err := s.tasks.Enqueue(ctx, task); err != nil {
		s.logger.ErrorContext(ctx, "failed to enqueue user notification",
			"user_id", task.SubjectID.String(),
			"kind", task.Kind,
			"error", err,
		)
	}
}
