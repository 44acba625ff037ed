package store

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"joinflow/internal/invitation/models"
	"joinflow/internal/notify"
	id "joinflow/pkg/domain"
	"joinflow/pkg/platform/sentinel"
)

// InMemory keeps invitations in process memory. Claims take no lock, so
// only one dispatcher may run against it.
type InMemory struct {
	mu          sync.RWMutex
	invitations map[id.InvitationID]*models.Invitation
}

func NewInMemory() *InMemory {
	return &InMemory{invitations: make(map[id.InvitationID]*models.Invitation)}
}

func (s *InMemory) Create(_ context.Context, inv *models.Invitation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.invitations[inv.ID]; ok {
		return fmt.Errorf("invitation %s: %w", inv.ID, sentinel.ErrAlreadyUsed)
	}
	s.invitations[inv.ID] = clone(inv)
	return nil
}

func (s *InMemory) FindByID(_ context.Context, invitationID id.InvitationID) (*models.Invitation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inv, ok := s.invitations[invitationID]
	if !ok {
		return nil, fmt.Errorf("invitation %s: %w", invitationID, sentinel.ErrNotFound)
	}
	return clone(inv), nil
}

// MarkReady flags an unsent invitation for dispatch.
func (s *InMemory) MarkReady(_ context.Context, invitationID id.InvitationID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invitations[invitationID]
	if !ok {
		return fmt.Errorf("invitation %s: %w", invitationID, sentinel.ErrNotFound)
	}
	if inv.Sent {
		return fmt.Errorf("invitation %s already sent: %w", invitationID, sentinel.ErrInvalidState)
	}
	inv.Ready = true
	return nil
}

// ClaimDispatchable returns up to limit ready, unsent invitations, oldest first.
func (s *InMemory) ClaimDispatchable(_ context.Context, limit int) ([]*models.Invitation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Invitation
	for _, inv := range s.invitations {
		if inv.IsDispatchable() {
			out = append(out, clone(inv))
		}
	}
	slices.SortFunc(out, func(a, b *models.Invitation) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// MarkSent records the delivery result. A second call yields ErrInvalidState.
func (s *InMemory) MarkSent(_ context.Context, invitationID id.InvitationID, result *notify.DeliveryResult, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invitations[invitationID]
	if !ok {
		return fmt.Errorf("invitation %s: %w", invitationID, sentinel.ErrNotFound)
	}
	if inv.Sent {
		return fmt.Errorf("invitation %s already sent: %w", invitationID, sentinel.ErrInvalidState)
	}
	inv.Sent = true
	sentAt := now
	inv.SentAt = &sentAt
	if result != nil {
		r := *result
		inv.Result = &r
	}
	return nil
}

func clone(inv *models.Invitation) *models.Invitation {
	c := *inv
	if inv.Result != nil {
		r := *inv.Result
		c.Result = &r
	}
	if inv.SentAt != nil {
		t := *inv.SentAt
		c.SentAt = &t
	}
	return &c
}
