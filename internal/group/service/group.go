package service

//go:generate mockgen -source=group.go -destination=mocks/group_mock.go -package=mocks

import (
	"context"
	"errors"

	"joinflow/internal/group/models"
	id "joinflow/pkg/domain"
	dErrors "joinflow/pkg/domain-errors"
	"joinflow/pkg/platform/sentinel"
	"joinflow/pkg/requestcontext"
)

// Group is the capability set the join request flow needs from a group-like
// container. Callers never branch on the concrete type behind it.
type Group interface {
	Ref() id.Ref
	Name() string
	// GrantMembership adds candidate with role. It joins the transaction
	// carried by ctx.
	GrantMembership(ctx context.Context, candidate id.UserID, role id.Role) error
	ListAdmins(ctx context.Context) ([]id.UserID, error)
	IsAdmin(ctx context.Context, userID id.UserID) (bool, error)
	IsMember(ctx context.Context, userID id.UserID) (bool, error)
}

// membershipStore is the slice of Store a group capability needs.
type membershipStore interface {
	AddMember(ctx context.Context, m *models.Membership) error
	UpsertMember(ctx context.Context, m *models.Membership) error
	FindMember(ctx context.Context, group id.Ref, userID id.UserID) (*models.Membership, error)
	ListMembers(ctx context.Context, group id.Ref, role id.Role) ([]*models.Membership, error)
}

// spaceGroup grants space permissions. A space membership is unique: granting
// it to an existing member fails so the transition around it rolls back.
type spaceGroup struct {
	space *models.Space
	store membershipStore
}

func (g *spaceGroup) Ref() id.Ref  { return g.space.Ref() }
func (g *spaceGroup) Name() string { return g.space.Name }

func (g *spaceGroup) GrantMembership(ctx context.Context, candidate id.UserID, role id.Role) error {
	err := g.store.AddMember(ctx, &models.Membership{
		Group:     g.Ref(),
		UserID:    candidate,
		Role:      role,
		CreatedAt: requestcontext.Now(ctx),
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sentinel.ErrAlreadyUsed):
		return dErrors.Wrap(err, dErrors.CodeConflict, "user is already a member of the space")
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "user not found")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to grant space membership")
	}
}

func (g *spaceGroup) ListAdmins(ctx context.Context) ([]id.UserID, error) {
	return listAdmins(ctx, g.store, g.Ref())
}

func (g *spaceGroup) IsAdmin(ctx context.Context, userID id.UserID) (bool, error) {
	return isAdmin(ctx, g.store, g.Ref(), userID)
}

func (g *spaceGroup) IsMember(ctx context.Context, userID id.UserID) (bool, error) {
	m, err := findMember(ctx, g.store, g.Ref(), userID)
	return m != nil, err
}

// eventGroup registers event participants. Registering an existing
// participant again only updates the role.
type eventGroup struct {
	event *models.Event
	store membershipStore
}

func (g *eventGroup) Ref() id.Ref  { return g.event.Ref() }
func (g *eventGroup) Name() string { return g.event.Name }

func (g *eventGroup) GrantMembership(ctx context.Context, candidate id.UserID, role id.Role) error {
	err := g.store.UpsertMember(ctx, &models.Membership{
		Group:     g.Ref(),
		UserID:    candidate,
		Role:      role,
		CreatedAt: requestcontext.Now(ctx),
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "user not found")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to register event participant")
	}
}

func (g *eventGroup) ListAdmins(ctx context.Context) ([]id.UserID, error) {
	return listAdmins(ctx, g.store, g.Ref())
}

func (g *eventGroup) IsAdmin(ctx context.Context, userID id.UserID) (bool, error) {
	return isAdmin(ctx, g.store, g.Ref(), userID)
}

func (g *eventGroup) IsMember(ctx context.Context, userID id.UserID) (bool, error) {
	m, err := findMember(ctx, g.store, g.Ref(), userID)
	return m != nil, err
}

func listAdmins(ctx context.Context, store membershipStore, ref id.Ref) ([]id.UserID, error) {
	members, err := store.ListMembers(ctx, ref, id.RoleAdmin)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list group admins")
	}
	admins := make([]id.UserID, 0, len(members))
	for _, m := range members {
		admins = append(admins, m.UserID)
	}
	return admins, nil
}

func isAdmin(ctx context.Context, store membershipStore, ref id.Ref, userID id.UserID) (bool, error) {
	m, err := findMember(ctx, store, ref, userID)
	if err != nil || m == nil {
		return false, err
	}
	return m.Role == id.RoleAdmin, nil
}

// findMember returns nil without error when userID holds no membership.
func findMember(ctx context.Context, store membershipStore, ref id.Ref, userID id.UserID) (*models.Membership, error) {
	m, err := store.FindMember(ctx, ref, userID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load membership")
	}
	return m, nil
}
