package store

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"joinflow/internal/group/models"
	id "joinflow/pkg/domain"
	"joinflow/pkg/platform/sentinel"
)

type membershipKey struct {
	group id.Ref
	user  id.UserID
}

// InMemory stores spaces, events and memberships in process memory.
type InMemory struct {
	mu          sync.RWMutex
	spaces      map[id.SpaceID]*models.Space
	events      map[id.EventID]*models.Event
	memberships map[membershipKey]*models.Membership
}

func NewInMemory() *InMemory {
	return &InMemory{
		spaces:      make(map[id.SpaceID]*models.Space),
		events:      make(map[id.EventID]*models.Event),
		memberships: make(map[membershipKey]*models.Membership),
	}
}

func (s *InMemory) CreateSpace(_ context.Context, space *models.Space) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.spaces[space.ID]; ok {
		return fmt.Errorf("space %s: %w", space.ID, sentinel.ErrAlreadyUsed)
	}
	c := *space
	s.spaces[space.ID] = &c
	return nil
}

func (s *InMemory) CreateEvent(_ context.Context, event *models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[event.ID]; ok {
		return fmt.Errorf("event %s: %w", event.ID, sentinel.ErrAlreadyUsed)
	}
	c := *event
	s.events[event.ID] = &c
	return nil
}

func (s *InMemory) FindSpace(_ context.Context, spaceID id.SpaceID) (*models.Space, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	space, ok := s.spaces[spaceID]
	if !ok {
		return nil, fmt.Errorf("space %s: %w", spaceID, sentinel.ErrNotFound)
	}
	c := *space
	return &c, nil
}

func (s *InMemory) FindEvent(_ context.Context, eventID id.EventID) (*models.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	event, ok := s.events[eventID]
	if !ok {
		return nil, fmt.Errorf("event %s: %w", eventID, sentinel.ErrNotFound)
	}
	c := *event
	return &c, nil
}

// AddMember inserts a membership; an existing one yields ErrAlreadyUsed.
func (s *InMemory) AddMember(_ context.Context, m *models.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := membershipKey{group: m.Group, user: m.UserID}
	if _, ok := s.memberships[key]; ok {
		return fmt.Errorf("membership %s/%s: %w", m.Group, m.UserID, sentinel.ErrAlreadyUsed)
	}
	c := *m
	s.memberships[key] = &c
	return nil
}

// UpsertMember inserts a membership or updates the role of an existing one.
// An admin is never lowered to member.
func (s *InMemory) UpsertMember(_ context.Context, m *models.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := membershipKey{group: m.Group, user: m.UserID}
	if existing, ok := s.memberships[key]; ok {
		if existing.Role != id.RoleAdmin {
			existing.Role = m.Role
		}
		return nil
	}
	c := *m
	s.memberships[key] = &c
	return nil
}

func (s *InMemory) FindMember(_ context.Context, group id.Ref, userID id.UserID) (*models.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.memberships[membershipKey{group: group, user: userID}]
	if !ok {
		return nil, fmt.Errorf("membership %s/%s: %w", group, userID, sentinel.ErrNotFound)
	}
	c := *m
	return &c, nil
}

// ListMembers returns memberships of group with role, oldest first.
// An empty role lists everyone.
func (s *InMemory) ListMembers(_ context.Context, group id.Ref, role id.Role) ([]*models.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Membership
	for key, m := range s.memberships {
		if key.group != group || (role != "" && m.Role != role) {
			continue
		}
		c := *m
		out = append(out, &c)
	}
	slices.SortFunc(out, func(a, b *models.Membership) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return slices.Compare(a.UserID[:], b.UserID[:])
	})
	return out, nil
}
