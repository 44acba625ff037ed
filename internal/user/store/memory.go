package store

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"joinflow/internal/user/models"
	id "joinflow/pkg/domain"
	"joinflow/pkg/platform/sentinel"
)

// InMemory keeps users in process memory.
type InMemory struct {
	mu      sync.RWMutex
	users   map[id.UserID]*models.User
	byEmail map[string]id.UserID
}

func NewInMemory() *InMemory {
	return &InMemory{
		users:   make(map[id.UserID]*models.User),
		byEmail: make(map[string]id.UserID),
	}
}

func (s *InMemory) Create(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byEmail[user.Email]; ok {
		return fmt.Errorf("user email: %w", sentinel.ErrAlreadyUsed)
	}
	if _, ok := s.users[user.ID]; ok {
		return fmt.Errorf("user %s: %w", user.ID, sentinel.ErrAlreadyUsed)
	}
	c := *user
	s.users[user.ID] = &c
	s.byEmail[user.Email] = user.ID
	return nil
}

func (s *InMemory) FindByID(_ context.Context, userID id.UserID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", userID, sentinel.ErrNotFound)
	}
	c := *u
	return &c, nil
}

func (s *InMemory) FindByEmail(_ context.Context, addr string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	userID, ok := s.byEmail[addr]
	if !ok {
		return nil, fmt.Errorf("user email: %w", sentinel.ErrNotFound)
	}
	c := *s.users[userID]
	return &c, nil
}

// FindByIDs loads every listed user that exists. Missing ids are skipped.
func (s *InMemory) FindByIDs(_ context.Context, userIDs []id.UserID) ([]*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.User, 0, len(userIDs))
	for _, userID := range userIDs {
		if u, ok := s.users[userID]; ok {
			c := *u
			out = append(out, &c)
		}
	}
	return out, nil
}

// ListSuperUsers returns site admins, oldest first.
func (s *InMemory) ListSuperUsers(_ context.Context) ([]*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.User
	for _, u := range s.users {
		if u.SuperUser {
			c := *u
			out = append(out, &c)
		}
	}
	slices.SortFunc(out, func(a, b *models.User) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out, nil
}

// Approve marks a pending user approved. Approving an approved user yields
// ErrInvalidState.
func (s *InMemory) Approve(_ context.Context, userID id.UserID, now time.Time) error {
	return s.update(userID, func(u *models.User) error {
		if u.Approved {
			return fmt.Errorf("user %s already approved: %w", userID, sentinel.ErrInvalidState)
		}
		u.Approved = true
		u.UpdatedAt = now
		return nil
	})
}

func (s *InMemory) StampNeedsApprovalNotification(_ context.Context, userID id.UserID, now time.Time) error {
	return s.update(userID, func(u *models.User) error {
		t := now
		u.NeedsApprovalNotificationSentAt = &t
		u.UpdatedAt = now
		return nil
	})
}

func (s *InMemory) StampApprovedNotification(_ context.Context, userID id.UserID, now time.Time) error {
	return s.update(userID, func(u *models.User) error {
		t := now
		u.ApprovedNotificationSentAt = &t
		u.UpdatedAt = now
		return nil
	})
}

func (s *InMemory) update(userID id.UserID, fn func(*models.User) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return fmt.Errorf("user %s: %w", userID, sentinel.ErrNotFound)
	}
	return fn(u)
}
