package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"joinflow/internal/joinrequest/models"
	id "joinflow/pkg/domain"
	"joinflow/pkg/platform/sentinel"
)

// InMemory keeps join requests in process memory. Execute holds the store
// mutex across validate and mutate, so concurrent transitions of any two
// requests serialize.
type InMemory struct {
	mu       sync.Mutex
	requests map[id.JoinRequestID]*models.JoinRequest
	byToken  map[string]id.JoinRequestID
}

func NewInMemory() *InMemory {
	return &InMemory{
		requests: make(map[id.JoinRequestID]*models.JoinRequest),
		byToken:  make(map[string]id.JoinRequestID),
	}
}

// ErrCollision reports a reused id or secret token. Both are random, so it
// points at a broken generator rather than a duplicate request.
var ErrCollision = errors.New("join request id or token collision")

// Create stores r. A second pending request for the same candidate or
// email in the same group yields ErrAlreadyUsed.
func (s *InMemory) Create(_ context.Context, r *models.JoinRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byToken[r.SecretToken]; ok {
		return fmt.Errorf("join request token: %w", ErrCollision)
	}
	if _, ok := s.requests[r.ID]; ok {
		return fmt.Errorf("join request %s: %w", r.ID, ErrCollision)
	}
	for _, existing := range s.requests {
		if existing.IsProcessed() || existing.Group != r.Group {
			continue
		}
		if existing.CandidateID == r.CandidateID || strings.EqualFold(existing.Email, r.Email) {
			return fmt.Errorf("pending join request for %s in %s: %w", r.Email, r.Group, sentinel.ErrAlreadyUsed)
		}
	}
	s.requests[r.ID] = clone(r)
	s.byToken[r.SecretToken] = r.ID
	return nil
}

func (s *InMemory) FindByID(_ context.Context, requestID id.JoinRequestID) (*models.JoinRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[requestID]
	if !ok {
		return nil, fmt.Errorf("join request %s: %w", requestID, sentinel.ErrNotFound)
	}
	return clone(r), nil
}

func (s *InMemory) FindByToken(_ context.Context, token string) (*models.JoinRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.lookupToken(token)
	if !ok {
		return nil, fmt.Errorf("join request token: %w", sentinel.ErrNotFound)
	}
	return clone(r), nil
}

// Execute runs validate and then mutate on the request behind token while
// holding the store lock. mutate runs on a copy that replaces the stored
// request only when validate succeeded.
func (s *InMemory) Execute(_ context.Context, token string, validate func(*models.JoinRequest) error, mutate func(*models.JoinRequest)) (*models.JoinRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.lookupToken(token)
	if !ok {
		return nil, fmt.Errorf("join request token: %w", sentinel.ErrNotFound)
	}
	working := clone(r)
	if err := validate(working); err != nil {
		return nil, err
	}
	mutate(working)
	s.requests[working.ID] = working
	return clone(working), nil
}

// ListPending returns the group's unprocessed requests, oldest first.
func (s *InMemory) ListPending(_ context.Context, group id.Ref) ([]*models.JoinRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.JoinRequest
	for _, r := range s.requests {
		if r.Group == group && !r.IsProcessed() {
			out = append(out, clone(r))
		}
	}
	slices.SortFunc(out, func(a, b *models.JoinRequest) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out, nil
}

func (s *InMemory) lookupToken(token string) (*models.JoinRequest, bool) {
	requestID, ok := s.byToken[token]
	if !ok {
		return nil, false
	}
	r, ok := s.requests[requestID]
	return r, ok
}

func clone(r *models.JoinRequest) *models.JoinRequest {
	c := *r
	if r.IntroducerID != nil {
		i := *r.IntroducerID
		c.IntroducerID = &i
	}
	if r.ProcessedAt != nil {
		t := *r.ProcessedAt
		c.ProcessedAt = &t
	}
	return &c
}
