package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"joinflow/internal/activity/models"
	id "joinflow/pkg/domain"
	"joinflow/pkg/platform/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
	group id.Ref
	base  time.Time
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
	s.group = id.SpaceRef(id.SpaceID(uuid.New()))
	s.base = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
}

func (s *InMemoryStoreSuite) appendEntry(key models.Key, offset time.Duration, params models.Parameters) *models.Entry {
	request := id.JoinRequestRef(id.JoinRequestID(uuid.New()))
	entry, err := models.NewEntry(request, s.group, key, params, s.base.Add(offset))
	s.Require().NoError(err)
	s.Require().NoError(s.store.Append(s.ctx, entry))
	return entry
}

func collect(s *InMemoryStoreSuite, filter models.Filter) []*models.Entry {
	var out []*models.Entry
	for entry, err := range s.store.FindUnnotified(s.ctx, filter) {
		s.Require().NoError(err)
		out = append(out, entry)
	}
	return out
}

func (s *InMemoryStoreSuite) TestAppendAndFind() {
	s.Run("finds appended entry by id", func() {
		entry := s.appendEntry(models.KeyJoinRequestRequest, 0, models.Parameters{models.ParamUsername: "Ada"})

		found, err := s.store.FindByID(s.ctx, entry.ID)
		s.Require().NoError(err)
		s.Equal(entry.Key, found.Key)
		s.Equal("Ada", found.Param(models.ParamUsername))
		s.False(found.Notified)
	})

	s.Run("returned entries are copies", func() {
		entry := s.appendEntry(models.KeyJoinRequestRequest, 0, models.Parameters{models.ParamUsername: "Ada"})

		found, err := s.store.FindByID(s.ctx, entry.ID)
		s.Require().NoError(err)
		found.Parameters[models.ParamUsername] = "mutated"

		again, err := s.store.FindByID(s.ctx, entry.ID)
		s.Require().NoError(err)
		s.Equal("Ada", again.Param(models.ParamUsername))
	})

	s.Run("rejects duplicate id", func() {
		entry := s.appendEntry(models.KeyJoinRequestRequest, 0, nil)
		s.ErrorIs(s.store.Append(s.ctx, entry), sentinel.ErrAlreadyUsed)
	})

	s.Run("unknown id is not found", func() {
		_, err := s.store.FindByID(s.ctx, id.ActivityID(uuid.New()))
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *InMemoryStoreSuite) TestFindUnnotified() {
	s.Run("returns matching entries oldest first", func() {
		s.SetupTest()
		late := s.appendEntry(models.KeyJoinRequestRequest, 2*time.Minute, nil)
		early := s.appendEntry(models.KeyJoinRequestRequest, time.Minute, nil)
		s.appendEntry(models.KeyJoinRequestInvite, 0, nil)

		got := collect(s, models.Filter{Key: models.KeyJoinRequestRequest})
		s.Require().Len(got, 2)
		s.Equal(early.ID, got[0].ID)
		s.Equal(late.ID, got[1].ID)
	})

	s.Run("never returns notified entries and is restartable", func() {
		s.SetupTest()
		first := s.appendEntry(models.KeyJoinRequestInvite, 0, nil)
		second := s.appendEntry(models.KeyJoinRequestInvite, time.Second, nil)

		s.Len(collect(s, models.Filter{Key: models.KeyJoinRequestInvite}), 2)

		s.Require().NoError(s.store.MarkNotified(s.ctx, first.ID))

		got := collect(s, models.Filter{Key: models.KeyJoinRequestInvite})
		s.Require().Len(got, 1)
		s.Equal(second.ID, got[0].ID)
	})

	s.Run("filters by trackable kind and required parameter", func() {
		s.SetupTest()
		request := id.JoinRequestRef(id.JoinRequestID(uuid.New()))
		processed, err := models.NewEntry(s.group, request, models.KeyGroupJoin,
			models.Parameters{models.ParamJoinRequestID: request.ID.String()}, s.base)
		s.Require().NoError(err)
		s.Require().NoError(s.store.Append(s.ctx, processed))
		direct, err := models.NewEntry(s.group, s.group, models.KeyGroupJoin, nil, s.base)
		s.Require().NoError(err)
		s.Require().NoError(s.store.Append(s.ctx, direct))

		got := collect(s, models.Filter{Key: models.KeyGroupJoin, RequireParam: models.ParamJoinRequestID})
		s.Require().Len(got, 1)
		s.Equal(processed.ID, got[0].ID)

		s.Empty(collect(s, models.Filter{Key: models.KeyGroupJoin, TrackableKind: id.RefJoinRequest}))
		s.Len(collect(s, models.Filter{Key: models.KeyGroupJoin, TrackableKind: id.RefSpace}), 2)
	})

	s.Run("stops early when the consumer breaks", func() {
		s.SetupTest()
		for i := range 3 {
			s.appendEntry(models.KeyJoinRequestRequest, time.Duration(i)*time.Second, nil)
		}
		seen := 0
		for _, err := range s.store.FindUnnotified(s.ctx, models.Filter{Key: models.KeyJoinRequestRequest}) {
			s.Require().NoError(err)
			seen++
			break
		}
		s.Equal(1, seen)
	})

	s.Run("surfaces context cancellation", func() {
		s.SetupTest()
		s.appendEntry(models.KeyJoinRequestRequest, 0, nil)
		ctx, cancel := context.WithCancel(s.ctx)
		cancel()

		var gotErr error
		for _, err := range s.store.FindUnnotified(ctx, models.Filter{Key: models.KeyJoinRequestRequest}) {
			gotErr = err
		}
		s.ErrorIs(gotErr, context.Canceled)
	})
}

func (s *InMemoryStoreSuite) TestMarkNotified() {
	s.Run("is idempotent", func() {
		entry := s.appendEntry(models.KeyJoinRequestRequest, 0, nil)

		s.Require().NoError(s.store.MarkNotified(s.ctx, entry.ID))
		s.Require().NoError(s.store.MarkNotified(s.ctx, entry.ID))

		found, err := s.store.FindByID(s.ctx, entry.ID)
		s.Require().NoError(err)
		s.True(found.Notified)
	})

	s.Run("unknown id is not found", func() {
		s.ErrorIs(s.store.MarkNotified(s.ctx, id.ActivityID(uuid.New())), sentinel.ErrNotFound)
	})
}

func (s *InMemoryStoreSuite) TestListByOwner() {
	s.SetupTest()
	second := s.appendEntry(models.KeyJoinRequestRequest, time.Minute, nil)
	first := s.appendEntry(models.KeyJoinRequestInvite, 0, nil)

	got, err := s.store.ListByOwner(s.ctx, s.group)
	s.Require().NoError(err)
	s.Require().Len(got, 2)
	s.Equal(first.ID, got[0].ID)
	s.Equal(second.ID, got[1].ID)
}
