//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"joinflow/internal/user/models"
	"joinflow/internal/user/store"
	id "joinflow/pkg/domain"
	"joinflow/pkg/platform/sentinel"
	"joinflow/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
	now      time.Time
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
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateAll(context.Background()))
	s.now = time.Now().UTC().Truncate(time.Microsecond)
}

func (s *PostgresStoreSuite) create(addr string, superUser bool) *models.User {
	u, err := models.NewUser("", addr, false, superUser, s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Create(context.Background(), u))
	s.now = s.now.Add(time.Millisecond)
	return u
}

func (s *PostgresStoreSuite) TestCreateAndFind() {
	ctx := context.Background()
	u := s.create("ada@example.com", false)

	got, err := s.store.FindByID(ctx, u.ID)
	s.Require().NoError(err)
	s.Equal(u.Name, got.Name)
	s.Nil(got.ApprovedNotificationSentAt)

	got, err = s.store.FindByEmail(ctx, "ADA@example.com")
	s.Require().NoError(err)
	s.Equal(u.ID, got.ID)

	_, err = s.store.FindByID(ctx, id.UserID(uuid.New()))
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestDuplicateEmailIsCaseInsensitive() {
	s.create("ada@example.com", false)

	dup, err := models.NewUser("", "ada@example.com", false, false, s.now)
	s.Require().NoError(err)
	dup.Email = "Ada@Example.com"
	s.ErrorIs(s.store.Create(context.Background(), dup), sentinel.ErrAlreadyUsed)
}

func (s *PostgresStoreSuite) TestApproveAndStamp() {
	ctx := context.Background()
	u := s.create("ada@example.com", false)

	s.Require().NoError(s.store.Approve(ctx, u.ID, s.now))
	s.ErrorIs(s.store.Approve(ctx, u.ID, s.now), sentinel.ErrInvalidState)
	s.Require().NoError(s.store.StampApprovedNotification(ctx, u.ID, s.now))

	got, err := s.store.FindByID(ctx, u.ID)
	s.Require().NoError(err)
	s.True(got.Approved)
	s.Require().NotNil(got.ApprovedNotificationSentAt)
	s.WithinDuration(s.now, *got.ApprovedNotificationSentAt, time.Millisecond)
}

func (s *PostgresStoreSuite) TestListSuperUsers() {
	root := s.create("root@example.com", true)
	s.create("member@example.com", false)

	admins, err := s.store.ListSuperUsers(context.Background())
	s.Require().NoError(err)
	s.Require().Len(admins, 1)
	s.Equal(root.ID, admins[0].ID)
}

func (s *PostgresStoreSuite) TestFindByIDs() {
	a := s.create("a@example.com", false)
	b := s.create("b@example.com", false)

	got, err := s.store.FindByIDs(context.Background(), []id.UserID{a.ID, b.ID, id.UserID(uuid.New())})
	s.Require().NoError(err)
	s.Len(got, 2)

	got, err = s.store.FindByIDs(context.Background(), nil)
	s.Require().NoError(err)
	s.Empty(got)
}
