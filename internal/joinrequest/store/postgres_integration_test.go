//go:build integration

package store_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"joinflow/internal/joinrequest/models"
	"joinflow/internal/joinrequest/store"
	usermodels "joinflow/internal/user/models"
	userstore "joinflow/internal/user/store"
	id "joinflow/pkg/domain"
	"joinflow/pkg/platform/sentinel"
	"joinflow/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres  *containers.PostgresContainer
	store     *store.PostgresStore
	users     *userstore.PostgresStore
	group     id.Ref
	candidate *usermodels.User
	now       time.Time
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
	s.users = userstore.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()
	s.Require().NoError(s.postgres.TruncateAll(ctx))
	s.now = time.Now().UTC().Truncate(time.Microsecond)
	s.group = id.SpaceRef(id.SpaceID(uuid.New()))
	s.candidate = s.createUser("candidate@example.com")
}

func (s *PostgresStoreSuite) createUser(addr string) *usermodels.User {
	u, err := usermodels.NewUser("", addr, true, false, s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.users.Create(context.Background(), u))
	return u
}

func (s *PostgresStoreSuite) newRequest(candidate *usermodels.User) *models.JoinRequest {
	r, err := models.New(models.NewParams{
		Kind:        models.KindRequest,
		CandidateID: candidate.ID,
		Group:       s.group,
		Role:        id.RoleMember,
		Email:       candidate.Email,
		Comment:     "let me in",
	}, s.now)
	s.Require().NoError(err)
	s.now = s.now.Add(time.Second)
	return r
}

func (s *PostgresStoreSuite) TestCreateRoundTrip() {
	ctx := context.Background()
	introducer := s.createUser("intro@example.com")
	r := s.newRequest(s.candidate)
	r.Kind = models.KindInvite
	r.IntroducerID = &introducer.ID
	s.Require().NoError(s.store.Create(ctx, r))

	found, err := s.store.FindByToken(ctx, r.SecretToken)
	s.Require().NoError(err)
	s.Equal(r.ID, found.ID)
	s.Equal(models.KindInvite, found.Kind)
	s.Equal(s.group, found.Group)
	s.Require().NotNil(found.IntroducerID)
	s.Equal(introducer.ID, *found.IntroducerID)
	s.Equal(models.OutcomePending, found.Outcome)
	s.Nil(found.ProcessedAt)
	s.Equal("let me in", found.Comment)
}

func (s *PostgresStoreSuite) TestCreateUniqueness() {
	ctx := context.Background()
	s.Require().NoError(s.store.Create(ctx, s.newRequest(s.candidate)))

	s.Run("second pending for candidate", func() {
		s.ErrorIs(s.store.Create(ctx, s.newRequest(s.candidate)), sentinel.ErrAlreadyUsed)
	})

	s.Run("reused secret token", func() {
		other := s.createUser("token@example.com")
		first := s.newRequest(other)
		s.Require().NoError(s.store.Create(ctx, first))
		clash := s.newRequest(s.createUser("clash@example.com"))
		clash.SecretToken = first.SecretToken
		err := s.store.Create(ctx, clash)
		s.ErrorIs(err, store.ErrCollision)
		s.NotErrorIs(err, sentinel.ErrAlreadyUsed)
	})

	s.Run("unknown candidate", func() {
		ghost := &usermodels.User{ID: id.UserID(uuid.New()), Email: "ghost@example.com"}
		s.ErrorIs(s.store.Create(ctx, s.newRequest(ghost)), sentinel.ErrNotFound)
	})
}

func (s *PostgresStoreSuite) TestExecuteLocksRow() {
	ctx := context.Background()
	r := s.newRequest(s.candidate)
	s.Require().NoError(s.store.Create(ctx, r))

	var applied atomic.Int32
	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.store.Execute(ctx, r.SecretToken,
				func(r *models.JoinRequest) error { return r.CanProcess() },
				func(r *models.JoinRequest) {
					applied.Add(1)
					r.ApplyOutcome(models.OutcomeAccepted, time.Now().UTC())
				})
		}()
	}
	wg.Wait()
	s.Equal(int32(1), applied.Load())

	found, err := s.store.FindByToken(ctx, r.SecretToken)
	s.Require().NoError(err)
	s.True(found.IsAccepted())
	s.NotNil(found.ProcessedAt)

	pending, err := s.store.ListPending(ctx, s.group)
	s.Require().NoError(err)
	s.Empty(pending)
}

func (s *PostgresStoreSuite) TestListPendingOldestFirst() {
	ctx := context.Background()
	other := s.createUser("other@example.com")
	first := s.newRequest(s.candidate)
	second := s.newRequest(other)
	s.Require().NoError(s.store.Create(ctx, second))
	s.Require().NoError(s.store.Create(ctx, first))

	pending, err := s.store.ListPending(ctx, s.group)
	s.Require().NoError(err)
	s.Require().Len(pending, 2)
	s.Equal(first.ID, pending[0].ID)
	s.Equal(second.ID, pending[1].ID)
}
