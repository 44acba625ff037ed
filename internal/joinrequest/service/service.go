package service

import (
	"context"
	"errors"
	"log/slog"

	activitymodels "joinflow/internal/activity/models"
	groupservice "joinflow/internal/group/service"
	"joinflow/internal/joinrequest/models"
	"joinflow/internal/platform/metrics"
	usermodels "joinflow/internal/user/models"
	id "joinflow/pkg/domain"
	dErrors "joinflow/pkg/domain-errors"
	"joinflow/pkg/email"
	"joinflow/pkg/platform/sentinel"
	"joinflow/pkg/requestcontext"
)

// Store persists join requests.
type Store interface {
	Create(ctx context.Context, r *models.JoinRequest) error
	FindByToken(ctx context.Context, token string) (*models.JoinRequest, error)
	Execute(ctx context.Context, token string, validate func(*models.JoinRequest) error, mutate func(*models.JoinRequest)) (*models.JoinRequest, error)
	ListPending(ctx context.Context, group id.Ref) ([]*models.JoinRequest, error)
}

// GroupResolver turns a group ref into its capability set.
type GroupResolver interface {
	Resolve(ctx context.Context, ref id.Ref) (groupservice.Group, error)
}

// UserLookup loads the candidate and introducer snapshots.
type UserLookup interface {
	FindByID(ctx context.Context, userID id.UserID) (*usermodels.User, error)
	FindByEmail(ctx context.Context, addr string) (*usermodels.User, error)
}

// ActivityAppender writes to the event log inside the caller's transaction.
type ActivityAppender interface {
	Append(ctx context.Context, entry *activitymodels.Entry) error
}

// TxRunner runs fn in one unit of work.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Service creates join requests and moves them to their terminal state.
// Every change is written together with the event log entry that later
// drives its notification.
type Service struct {
	store      Store
	groups     GroupResolver
	users      UserLookup
	activities ActivityAppender
	tx         TxRunner
	logger     *slog.Logger
	metrics    *metrics.Metrics
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

func New(store Store, groups GroupResolver, users UserLookup, activities ActivityAppender, tx TxRunner, opts ...Option) *Service {
	s := &Service{
		store:      store,
		groups:     groups,
		users:      users,
		activities: activities,
		tx:         tx,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateInput describes a new invitation or request. Email defaults to the
// candidate's address.
type CreateInput struct {
	Kind         models.Kind
	CandidateID  id.UserID
	IntroducerID *id.UserID
	Group        id.Ref
	Role         id.Role
	Email        string
	Comment      string
}

// Create stores a pending request and its join_request.invite or
// join_request.request activity in one transaction.
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.JoinRequest, error) {
	if in.CandidateID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "candidate is required")
	}
	g, err := s.groups.Resolve(ctx, in.Group)
	if err != nil {
		return nil, err
	}
	candidate, err := s.findUser(ctx, in.CandidateID, "candidate not found")
	if err != nil {
		return nil, err
	}
	member, err := g.IsMember(ctx, candidate.ID)
	if err != nil {
		return nil, err
	}
	if member {
		return nil, dErrors.New(dErrors.CodeConflict, "candidate is already a member of the group")
	}
	params := activitymodels.Parameters{
		activitymodels.ParamCandidateID: candidate.ID.String(),
		activitymodels.ParamUsername:    candidate.Name,
	}
	if in.IntroducerID != nil {
		introducer, err := s.findUser(ctx, *in.IntroducerID, "introducer not found")
		if err != nil {
			return nil, err
		}
		params[activitymodels.ParamIntroducerID] = introducer.ID.String()
		params[activitymodels.ParamIntroducer] = introducer.Name
	}
	if in.Email == "" {
		in.Email = candidate.Email
	}

	now := requestcontext.Now(ctx)
	r, err := models.New(models.NewParams{
		Kind:         in.Kind,
		CandidateID:  in.CandidateID,
		IntroducerID: in.IntroducerID,
		Group:        g.Ref(),
		Role:         in.Role,
		Email:        in.Email,
		Comment:      in.Comment,
	}, now)
	if err != nil {
		return nil, err
	}

	key := activitymodels.KeyJoinRequestRequest
	if r.Kind == models.KindInvite {
		key = activitymodels.KeyJoinRequestInvite
	}
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.Create(ctx, r); err != nil {
			switch {
			case errors.Is(err, sentinel.ErrAlreadyUsed):
				return dErrors.Wrap(err, dErrors.CodeConflict, "a pending join request already exists for this candidate")
			case errors.Is(err, sentinel.ErrNotFound):
				return dErrors.Wrap(err, dErrors.CodeNotFound, "candidate not found")
			default:
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create join request")
			}
		}
		return s.record(ctx, id.JoinRequestRef(r.ID), g.Ref(), key, params)
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncrementJoinRequestsCreated(string(r.Kind))
	}
	s.logger.InfoContext(ctx, "join request created",
		"kind", string(r.Kind),
		"group", r.Group.String(),
		"candidate_id", r.CandidateID.String(),
	)
	return r, nil
}

// Invite lets a member of the group invite the account registered under addr.
func (s *Service) Invite(ctx context.Context, introducer id.UserID, group id.Ref, addr string, role id.Role, comment string) (*models.JoinRequest, error) {
	addr = email.Normalize(addr)
	if addr == "" || !email.IsValid(addr) {
		return nil, dErrors.New(dErrors.CodeValidation, "a valid email is required")
	}
	if role == "" {
		role = id.RoleMember
	}
	g, err := s.groups.Resolve(ctx, group)
	if err != nil {
		return nil, err
	}
	member, err := g.IsMember(ctx, introducer)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, dErrors.New(dErrors.CodeForbidden, "only group members can invite")
	}
	candidate, err := s.users.FindByEmail(ctx, addr)
	if err != nil {
		return nil, translateUserLookup(err, "no account is registered for this email")
	}
	return s.Create(ctx, CreateInput{
		Kind:         models.KindInvite,
		CandidateID:  candidate.ID,
		IntroducerID: &introducer,
		Group:        group,
		Role:         role,
		Email:        addr,
		Comment:      comment,
	})
}

// Request records candidate asking to join group as a member.
func (s *Service) Request(ctx context.Context, candidate id.UserID, group id.Ref, comment string) (*models.JoinRequest, error) {
	return s.Create(ctx, CreateInput{
		Kind:        models.KindRequest,
		CandidateID: candidate,
		Group:       group,
		Role:        id.RoleMember,
		Comment:     comment,
	})
}

// Accept grants the membership and marks the request accepted.
func (s *Service) Accept(ctx context.Context, token string, actor id.UserID) (*models.JoinRequest, error) {
	return s.process(ctx, token, actor, models.OutcomeAccepted)
}

// Decline marks the request declined without touching the group.
func (s *Service) Decline(ctx context.Context, token string, actor id.UserID) (*models.JoinRequest, error) {
	return s.process(ctx, token, actor, models.OutcomeDeclined)
}

// process runs the transition under the store's row lock. The grant happens
// inside validate so that a failed grant leaves the request pending, also
// in stores that cannot roll back.
func (s *Service) process(ctx context.Context, token string, actor id.UserID, outcome models.Outcome) (*models.JoinRequest, error) {
	current, err := s.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if err := current.CanProcess(); err != nil {
		return nil, err
	}
	g, err := s.groups.Resolve(ctx, current.Group)
	if err != nil {
		return nil, err
	}
	candidate, err := s.findUser(ctx, current.CandidateID, "candidate not found")
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	var processed *models.JoinRequest
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		r, err := s.store.Execute(ctx, token,
			func(r *models.JoinRequest) error {
				if err := r.CanProcess(); err != nil {
					return err
				}
				if err := s.authorize(ctx, g, r, actor); err != nil {
					return err
				}
				if outcome == models.OutcomeAccepted {
					return g.GrantMembership(ctx, r.CandidateID, r.Role)
				}
				return nil
			},
			func(r *models.JoinRequest) {
				r.ApplyOutcome(outcome, now)
			},
		)
		if err != nil {
			return translateExecute(err)
		}
		processed = r
		return s.record(ctx, g.Ref(), id.JoinRequestRef(r.ID), activitymodels.KeyGroupJoin, activitymodels.Parameters{
			activitymodels.ParamJoinRequestID: r.ID.String(),
			activitymodels.ParamCandidateID:   r.CandidateID.String(),
			activitymodels.ParamUsername:      candidate.Name,
			activitymodels.ParamRole:          r.Role.String(),
			activitymodels.ParamOutcome:       string(r.Outcome),
			activitymodels.ParamGroupName:     g.Name(),
		})
	})
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInternal) {
			s.logger.ErrorContext(ctx, "join request transition failed",
				"group", current.Group.String(),
				"outcome", string(outcome),
				"error", err,
			)
		}
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncrementJoinRequestTransitions(string(processed.Kind), string(processed.Outcome))
	}
	s.logger.InfoContext(ctx, "join request processed",
		"kind", string(processed.Kind),
		"group", processed.Group.String(),
		"candidate_id", processed.CandidateID.String(),
		"outcome", string(processed.Outcome),
	)
	return processed, nil
}

// authorize lets the candidate answer an invitation and a group admin
// answer a request.
func (s *Service) authorize(ctx context.Context, g groupservice.Group, r *models.JoinRequest, actor id.UserID) error {
	if r.Kind == models.KindInvite {
		if actor != r.CandidateID {
			return dErrors.New(dErrors.CodeForbidden, "only the invited user can answer an invitation")
		}
		return nil
	}
	admin, err := g.IsAdmin(ctx, actor)
	if err != nil {
		return err
	}
	if !admin {
		return dErrors.New(dErrors.CodeForbidden, "only group admins can answer a join request")
	}
	return nil
}

// GetByToken looks a request up by its secret token.
func (s *Service) GetByToken(ctx context.Context, token string) (*models.JoinRequest, error) {
	if token == "" {
		return nil, dErrors.New(dErrors.CodeNotFound, "join request not found")
	}
	r, err := s.store.FindByToken(ctx, token)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "join request not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load join request")
	}
	return r, nil
}

// ListPendingForGroup returns the group's pending requests, oldest first.
// Only group admins may list them.
func (s *Service) ListPendingForGroup(ctx context.Context, actor id.UserID, group id.Ref) ([]*models.JoinRequest, error) {
	g, err := s.groups.Resolve(ctx, group)
	if err != nil {
		return nil, err
	}
	admin, err := g.IsAdmin(ctx, actor)
	if err != nil {
		return nil, err
	}
	if !admin {
		return nil, dErrors.New(dErrors.CodeForbidden, "only group admins can list join requests")
	}
	pending, err := s.store.ListPending(ctx, g.Ref())
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list join requests")
	}
	return pending, nil
}

func (s *Service) record(ctx context.Context, trackable, owner id.Ref, key activitymodels.Key, params activitymodels.Parameters) error {
	entry, err := activitymodels.NewEntry(trackable, owner, key, params, requestcontext.Now(ctx))
	if err != nil {
		return err
	}
	if err := s.activities.Append(ctx, entry); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record activity")
	}
	return nil
}

func (s *Service) findUser(ctx context.Context, userID id.UserID, notFound string) (*usermodels.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, translateUserLookup(err, notFound)
	}
	return user, nil
}

func translateUserLookup(err error, notFound string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Wrap(err, dErrors.CodeNotFound, notFound)
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
}

// translateExecute keeps domain errors raised by the callbacks and maps
// store facts.
func translateExecute(err error) error {
	if dErrors.CodeOf(err) != "" {
		return err
	}
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Wrap(err, dErrors.CodeNotFound, "join request not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to process join request")
}
