package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"joinflow/internal/invitation/models"
	"joinflow/internal/notify"
	id "joinflow/pkg/domain"
	"joinflow/pkg/platform/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	ctx    context.Context
	store  *InMemory
	now    time.Time
	sender id.UserID
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = NewInMemory()
	s.now = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	s.sender = id.UserID(uuid.New())
}

func (s *InMemoryStoreSuite) create(ready bool) *models.Invitation {
	inv, err := models.NewInvitation(id.SpaceRef(id.SpaceID(uuid.New())), s.sender, "guest@example.com", "", "", ready, s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Create(s.ctx, inv))
	s.now = s.now.Add(time.Second)
	return inv
}

func (s *InMemoryStoreSuite) TestClaimDispatchableSkipsNotReadyAndSent() {
	first := s.create(true)
	s.create(false)
	second := s.create(true)
	sent := s.create(true)
	s.Require().NoError(s.store.MarkSent(s.ctx, sent.ID, nil, s.now))

	claimed, err := s.store.ClaimDispatchable(s.ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(claimed, 2)
	s.Equal(first.ID, claimed[0].ID)
	s.Equal(second.ID, claimed[1].ID)

	claimed, err = s.store.ClaimDispatchable(s.ctx, 1)
	s.Require().NoError(err)
	s.Len(claimed, 1)
}

func (s *InMemoryStoreSuite) TestMarkSentStoresResultOnce() {
	inv := s.create(true)
	result := &notify.DeliveryResult{MessageID: "m-1", Transport: "log", DeliveredAt: s.now}

	s.Require().NoError(s.store.MarkSent(s.ctx, inv.ID, result, s.now))
	s.ErrorIs(s.store.MarkSent(s.ctx, inv.ID, result, s.now), sentinel.ErrInvalidState)

	got, err := s.store.FindByID(s.ctx, inv.ID)
	s.Require().NoError(err)
	s.True(got.Sent)
	s.Equal(result, got.Result)
	s.Require().NotNil(got.SentAt)
}

func (s *InMemoryStoreSuite) TestMarkReady() {
	inv := s.create(false)
	s.Require().NoError(s.store.MarkReady(s.ctx, inv.ID))

	got, err := s.store.FindByID(s.ctx, inv.ID)
	s.Require().NoError(err)
	s.True(got.IsDispatchable())

	s.Require().NoError(s.store.MarkSent(s.ctx, inv.ID, nil, s.now))
	s.ErrorIs(s.store.MarkReady(s.ctx, inv.ID), sentinel.ErrInvalidState)
	s.ErrorIs(s.store.MarkReady(s.ctx, id.InvitationID(uuid.New())), sentinel.ErrNotFound)
}
