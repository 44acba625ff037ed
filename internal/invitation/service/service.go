package service

import (
	"context"
	"errors"
	"log/slog"

	"joinflow/internal/invitation/models"
	id "joinflow/pkg/domain"
	dErrors "joinflow/pkg/domain-errors"
	"joinflow/pkg/platform/sentinel"
	"joinflow/pkg/requestcontext"
)

type Store interface {
	Create(ctx context.Context, inv *models.Invitation) error
	FindByID(ctx context.Context, invitationID id.InvitationID) (*models.Invitation, error)
	MarkReady(ctx context.Context, invitationID id.InvitationID) error
}

// Service prepares invitations. Sending is left to the dispatcher, which
// picks up every ready invitation on its next scan.
type Service struct {
	store  Store
	logger *slog.Logger
}

func New(store Store, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// CreateInput describes a new invitation.
type CreateInput struct {
	Target         id.Ref
	RecipientEmail string
	RecipientName  string
	Title          string
	// Draft keeps the invitation from being sent until MarkReady.
	Draft bool
}

func (s *Service) Create(ctx context.Context, sender id.UserID, in CreateInput) (*models.Invitation, error) {
	inv, err := models.NewInvitation(in.Target, sender, in.RecipientEmail, in.RecipientName, in.Title, !in.Draft, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, inv); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "sender not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create invitation")
	}
	s.logger.InfoContext(ctx, "invitation created",
		"invitation_id", inv.ID.String(),
		"target", inv.Target.String(),
		"ready", inv.Ready,
	)
	return inv, nil
}

// MarkReady releases a draft for dispatch. Only the sender may do so.
func (s *Service) MarkReady(ctx context.Context, actor id.UserID, invitationID id.InvitationID) (*models.Invitation, error) {
	if _, err := s.Get(ctx, actor, invitationID); err != nil {
		return nil, err
	}
	if err := s.store.MarkReady(ctx, invitationID); err != nil {
		switch {
		case errors.Is(err, sentinel.ErrInvalidState):
			return nil, dErrors.Wrap(err, dErrors.CodeConflict, "invitation was already sent")
		case errors.Is(err, sentinel.ErrNotFound):
			return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "invitation not found")
		default:
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update invitation")
		}
	}
	return s.Get(ctx, actor, invitationID)
}

// Get returns an invitation to its sender.
func (s *Service) Get(ctx context.Context, actor id.UserID, invitationID id.InvitationID) (*models.Invitation, error) {
	inv, err := s.store.FindByID(ctx, invitationID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "invitation not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load invitation")
	}
	// Other users get the same answer as for a missing invitation.
	if inv.SenderID != actor {
		return nil, dErrors.New(dErrors.CodeNotFound, "invitation not found")
	}
	return inv, nil
}
