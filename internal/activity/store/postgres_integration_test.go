//go:build integration

package store_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"joinflow/internal/activity/models"
	"joinflow/internal/activity/store"
	id "joinflow/pkg/domain"
	"joinflow/pkg/platform/sentinel"
	txcontext "joinflow/pkg/platform/tx"
	"joinflow/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
	group    id.Ref
	base     time.Time
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	// A small page size forces FindUnnotified across several keyset pages.
	s.store = store.NewPostgres(s.postgres.DB, store.WithPageSize(2))
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "activities"))
	s.group = id.SpaceRef(id.SpaceID(uuid.New()))
	s.base = time.Now().UTC().Truncate(time.Microsecond)
}

func (s *PostgresStoreSuite) appendEntry(ctx context.Context, key models.Key, offset time.Duration, params models.Parameters) *models.Entry {
	request := id.JoinRequestRef(id.JoinRequestID(uuid.New()))
	entry, err := models.NewEntry(request, s.group, key, params, s.base.Add(offset))
	s.Require().NoError(err)
	s.Require().NoError(s.store.Append(ctx, entry))
	return entry
}

func (s *PostgresStoreSuite) collect(filter models.Filter) []*models.Entry {
	var out []*models.Entry
	for entry, err := range s.store.FindUnnotified(context.Background(), filter) {
		s.Require().NoError(err)
		out = append(out, entry)
	}
	return out
}

func (s *PostgresStoreSuite) TestRoundTrip() {
	ctx := context.Background()
	entry := s.appendEntry(ctx, models.KeyJoinRequestInvite, 0, models.Parameters{
		models.ParamCandidateID: uuid.NewString(),
		models.ParamUsername:    "Grace Hopper",
	})

	found, err := s.store.FindByID(ctx, entry.ID)
	s.Require().NoError(err)
	s.Equal(entry.Trackable, found.Trackable)
	s.Equal(entry.Owner, found.Owner)
	s.Equal(entry.Key, found.Key)
	s.Equal(entry.Parameters, found.Parameters)
	s.False(found.Notified, "NULL notified reads as false")
	s.True(entry.CreatedAt.Equal(found.CreatedAt))

	_, err = s.store.FindByID(ctx, id.ActivityID(uuid.New()))
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestFindUnnotifiedPagesInCreationOrder() {
	ctx := context.Background()
	var want []id.ActivityID
	for i := range 5 {
		want = append(want, s.appendEntry(ctx, models.KeyJoinRequestRequest, time.Duration(i)*time.Second, nil).ID)
	}
	s.appendEntry(ctx, models.KeyJoinRequestInvite, 0, nil)

	got := s.collect(models.Filter{Key: models.KeyJoinRequestRequest})
	s.Require().Len(got, len(want))
	for i, entry := range got {
		s.Equal(want[i], entry.ID)
	}
}

func (s *PostgresStoreSuite) TestFindUnnotifiedExcludesNotified() {
	ctx := context.Background()
	first := s.appendEntry(ctx, models.KeyJoinRequestRequest, 0, nil)
	second := s.appendEntry(ctx, models.KeyJoinRequestRequest, time.Second, nil)

	s.Require().NoError(s.store.MarkNotified(ctx, first.ID))
	s.Require().NoError(s.store.MarkNotified(ctx, first.ID), "marking twice is a no-op")

	got := s.collect(models.Filter{Key: models.KeyJoinRequestRequest})
	s.Require().Len(got, 1)
	s.Equal(second.ID, got[0].ID)

	s.ErrorIs(s.store.MarkNotified(ctx, id.ActivityID(uuid.New())), sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestFindUnnotifiedRequiresParameter() {
	ctx := context.Background()
	request := id.JoinRequestRef(id.JoinRequestID(uuid.New()))
	processed, err := models.NewEntry(s.group, request, models.KeyGroupJoin,
		models.Parameters{models.ParamJoinRequestID: request.ID.String()}, s.base)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Append(ctx, processed))
	direct, err := models.NewEntry(s.group, s.group, models.KeyGroupJoin, nil, s.base)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Append(ctx, direct))

	got := s.collect(models.Filter{Key: models.KeyGroupJoin, RequireParam: models.ParamJoinRequestID})
	s.Require().Len(got, 1)
	s.Equal(processed.ID, got[0].ID)
}

func (s *PostgresStoreSuite) TestAppendJoinsTransaction() {
	ctx := context.Background()
	runner := txcontext.NewRunner(s.postgres.DB)

	var appended *models.Entry
	err := runner.RunInTx(ctx, func(ctx context.Context) error {
		appended = s.appendEntry(ctx, models.KeyJoinRequestRequest, 0, nil)
		return sentinel.ErrInvalidState
	})
	s.ErrorIs(err, sentinel.ErrInvalidState)

	_, err = s.store.FindByID(ctx, appended.ID)
	s.ErrorIs(err, sentinel.ErrNotFound, "rolled back with the transaction")
}

func (s *PostgresStoreSuite) TestParametersAreImmutable() {
	ctx := context.Background()
	entry := s.appendEntry(ctx, models.KeyJoinRequestRequest, 0, models.Parameters{models.ParamUsername: "Ada"})

	_, err := s.postgres.DB.ExecContext(ctx,
		`UPDATE activities SET parameters = '{"username":"Eve"}'::jsonb WHERE id = $1`, uuid.UUID(entry.ID))
	s.Error(err)

	s.Require().NoError(s.store.MarkNotified(ctx, entry.ID))
	_, err = s.postgres.DB.ExecContext(ctx,
		`UPDATE activities SET notified = FALSE WHERE id = $1`, uuid.UUID(entry.ID))
	s.Error(err, "notified cannot move back to false")
}

func (s *PostgresStoreSuite) TestConcurrentMarkNotified() {
	ctx := context.Background()
	entry := s.appendEntry(ctx, models.KeyJoinRequestRequest, 0, nil)

	const workers = 10
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.store.MarkNotified(ctx, entry.ID)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		s.NoError(err)
	}

	found, err := s.store.FindByID(ctx, entry.ID)
	s.Require().NoError(err)
	s.True(found.Notified)
}
