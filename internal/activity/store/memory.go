package store

import (
	"cmp"
	"context"
	"fmt"
	"iter"
	"maps"
	"slices"
	"sync"

	"joinflow/internal/activity/models"
	id "joinflow/pkg/domain"
	"joinflow/pkg/platform/sentinel"
)

// InMemory is a process-local event log used by tests and single-process runs.
type InMemory struct {
	mu      sync.RWMutex
	entries map[id.ActivityID]*models.Entry
}

func NewInMemory() *InMemory {
	return &InMemory{entries: make(map[id.ActivityID]*models.Entry)}
}

func (s *InMemory) Append(_ context.Context, entry *models.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[entry.ID]; exists {
		return fmt.Errorf("activity %s: %w", entry.ID, sentinel.ErrAlreadyUsed)
	}
	s.entries[entry.ID] = clone(entry)
	return nil
}

func (s *InMemory) FindByID(_ context.Context, activityID id.ActivityID) (*models.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[activityID]
	if !ok {
		return nil, fmt.Errorf("activity %s: %w", activityID, sentinel.ErrNotFound)
	}
	return clone(entry), nil
}

// FindUnnotified snapshots the matching entries each time the sequence is
// ranged over, so a second range sees entries marked in between.
func (s *InMemory) FindUnnotified(ctx context.Context, filter models.Filter) iter.Seq2[*models.Entry, error] {
	return func(yield func(*models.Entry, error) bool) {
		for _, entry := range s.snapshot(filter) {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			if !yield(entry, nil) {
				return
			}
		}
	}
}

func (s *InMemory) snapshot(filter models.Filter) []*models.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	matched := make([]*models.Entry, 0)
	for _, entry := range s.entries {
		if entry.Notified || !filter.Matches(entry) {
			continue
		}
		matched = append(matched, clone(entry))
	}
	slices.SortFunc(matched, func(a, b *models.Entry) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID.String(), b.ID.String())
	})
	return matched
}

func (s *InMemory) MarkNotified(_ context.Context, activityID id.ActivityID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[activityID]
	if !ok {
		return fmt.Errorf("activity %s: %w", activityID, sentinel.ErrNotFound)
	}
	entry.Notified = true
	return nil
}

// ListByOwner returns the owner's timeline, oldest first.
func (s *InMemory) ListByOwner(_ context.Context, owner id.Ref) ([]*models.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Entry
	for _, entry := range s.entries {
		if entry.Owner == owner {
			out = append(out, clone(entry))
		}
	}
	slices.SortFunc(out, func(a, b *models.Entry) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out, nil
}

func clone(e *models.Entry) *models.Entry {
	c := *e
	c.Parameters = maps.Clone(e.Parameters)
	return &c
}
