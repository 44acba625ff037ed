package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	activitymodels "joinflow/internal/activity/models"
	"joinflow/internal/group/models"
	id "joinflow/pkg/domain"
	dErrors "joinflow/pkg/domain-errors"
	"joinflow/pkg/platform/sentinel"
	"joinflow/pkg/requestcontext"
)

// Store persists groups and their memberships.
type Store interface {
	membershipStore
	CreateSpace(ctx context.Context, space *models.Space) error
	CreateEvent(ctx context.Context, event *models.Event) error
	FindSpace(ctx context.Context, spaceID id.SpaceID) (*models.Space, error)
	FindEvent(ctx context.Context, eventID id.EventID) (*models.Event, error)
}

// ActivityLog records group.join activities and serves the group timeline.
type ActivityLog interface {
	Append(ctx context.Context, entry *activitymodels.Entry) error
	ListByOwner(ctx context.Context, owner id.Ref) ([]*activitymodels.Entry, error)
}

// TxRunner runs fn in one unit of work.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Service resolves group refs to Group capabilities and manages groups.
type Service struct {
	store      Store
	activities ActivityLog
	tx         TxRunner
	logger     *slog.Logger
}

func New(store Store, activities ActivityLog, tx TxRunner, logger *slog.Logger) *Service {
	return &Service{
		store:      store,
		activities: activities,
		tx:         tx,
		logger:     logger,
	}
}

// Resolve loads the group behind ref.
func (s *Service) Resolve(ctx context.Context, ref id.Ref) (Group, error) {
	switch ref.Kind {
	case id.RefSpace:
		space, err := s.store.FindSpace(ctx, id.SpaceID(ref.ID))
		if err != nil {
			return nil, translateLookup(err, "space not found")
		}
		return &spaceGroup{space: space, store: s.store}, nil
	case id.RefEvent:
		event, err := s.store.FindEvent(ctx, id.EventID(ref.ID))
		if err != nil {
			return nil, translateLookup(err, "event not found")
		}
		return &eventGroup{event: event, store: s.store}, nil
	default:
		return nil, dErrors.New(dErrors.CodeValidation, "reference is not a group")
	}
}

// CreateSpace creates a space with creator as its first admin.
func (s *Service) CreateSpace(ctx context.Context, name string, creator id.UserID) (*models.Space, error) {
	space, err := models.NewSpace(name, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.CreateSpace(ctx, space); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create space")
		}
		return s.grant(ctx, &spaceGroup{space: space, store: s.store}, creator, id.RoleAdmin)
	})
	if err != nil {
		return nil, err
	}
	return space, nil
}

// CreateEvent creates an event with creator as its first admin.
func (s *Service) CreateEvent(ctx context.Context, name string, startsAt *time.Time, creator id.UserID) (*models.Event, error) {
	event, err := models.NewEvent(name, startsAt, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.CreateEvent(ctx, event); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create event")
		}
		return s.grant(ctx, &eventGroup{event: event, store: s.store}, creator, id.RoleAdmin)
	})
	if err != nil {
		return nil, err
	}
	return event, nil
}

// AddMember grants membership directly, outside the join request flow.
// Only an admin of the group may do so. The group.join activity it records
// carries no join request id, so no processed notification is sent for it.
func (s *Service) AddMember(ctx context.Context, ref id.Ref, actor, userID id.UserID, role id.Role) error {
	if !role.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "invalid role")
	}
	g, err := s.Resolve(ctx, ref)
	if err != nil {
		return err
	}
	admin, err := g.IsAdmin(ctx, actor)
	if err != nil {
		return err
	}
	if !admin {
		return dErrors.New(dErrors.CodeForbidden, "only group admins can add members")
	}
	return s.tx.RunInTx(ctx, func(ctx context.Context) error {
		return s.grant(ctx, g, userID, role)
	})
}

// ListMembers returns every membership of the group behind ref.
func (s *Service) ListMembers(ctx context.Context, ref id.Ref) ([]*models.Membership, error) {
	if _, err := s.Resolve(ctx, ref); err != nil {
		return nil, err
	}
	members, err := s.store.ListMembers(ctx, ref, "")
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list members")
	}
	return members, nil
}

// Activity returns the entries owned by the group, oldest first. Only
// members can read it.
func (s *Service) Activity(ctx context.Context, ref id.Ref, actor id.UserID) ([]*activitymodels.Entry, error) {
	g, err := s.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	member, err := g.IsMember(ctx, actor)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, dErrors.New(dErrors.CodeForbidden, "only group members can read the activity feed")
	}
	entries, err := s.activities.ListByOwner(ctx, ref)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list activity")
	}
	return entries, nil
}

func (s *Service) grant(ctx context.Context, g Group, userID id.UserID, role id.Role) error {
	if err := g.GrantMembership(ctx, userID, role); err != nil {
		return err
	}
	entry, err := activitymodels.NewEntry(g.Ref(), id.UserRef(userID), activitymodels.KeyGroupJoin,
		activitymodels.Parameters{
			activitymodels.ParamCandidateID: userID.String(),
			activitymodels.ParamRole:        role.String(),
			activitymodels.ParamGroupName:   g.Name(),
		}, requestcontext.Now(ctx))
	if err != nil {
		return err
	}
	if err := s.activities.Append(ctx, entry); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record activity")
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, "group membership granted",
			"group", g.Ref().String(),
			"user_id", userID.String(),
			"role", role.String(),
		)
	}
	return nil
}

func translateLookup(err error, msg string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Wrap(err, dErrors.CodeNotFound, msg)
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load group")
}
