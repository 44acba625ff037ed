package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"joinflow/internal/group/models"
	id "joinflow/pkg/domain"
	"joinflow/pkg/platform/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func (s *InMemoryStoreSuite) TestSpacesAndEvents() {
	space, err := models.NewSpace("Space", time.Now())
	s.Require().NoError(err)
	s.Require().NoError(s.store.CreateSpace(s.ctx, space))
	s.ErrorIs(s.store.CreateSpace(s.ctx, space), sentinel.ErrAlreadyUsed)

	found, err := s.store.FindSpace(s.ctx, space.ID)
	s.Require().NoError(err)
	s.Equal(space.Name, found.Name)

	_, err = s.store.FindEvent(s.ctx, id.EventID(uuid.New()))
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *InMemoryStoreSuite) TestMemberships() {
	group := id.SpaceRef(id.SpaceID(uuid.New()))
	base := time.Now()
	admin := &models.Membership{Group: group, UserID: id.UserID(uuid.New()), Role: id.RoleAdmin, CreatedAt: base}
	member := &models.Membership{Group: group, UserID: id.UserID(uuid.New()), Role: id.RoleMember, CreatedAt: base.Add(time.Second)}

	s.Require().NoError(s.store.AddMember(s.ctx, admin))
	s.Require().NoError(s.store.AddMember(s.ctx, member))
	s.ErrorIs(s.store.AddMember(s.ctx, member), sentinel.ErrAlreadyUsed)

	admins, err := s.store.ListMembers(s.ctx, group, id.RoleAdmin)
	s.Require().NoError(err)
	s.Require().Len(admins, 1)
	s.Equal(admin.UserID, admins[0].UserID)

	all, err := s.store.ListMembers(s.ctx, group, "")
	s.Require().NoError(err)
	s.Len(all, 2)

	promoted := *member
	promoted.Role = id.RoleAdmin
	s.Require().NoError(s.store.UpsertMember(s.ctx, &promoted))
	found, err := s.store.FindMember(s.ctx, group, member.UserID)
	s.Require().NoError(err)
	s.Equal(id.RoleAdmin, found.Role)

	demoted := promoted
	demoted.Role = id.RoleMember
	s.Require().NoError(s.store.UpsertMember(s.ctx, &demoted))
	found, err = s.store.FindMember(s.ctx, group, member.UserID)
	s.Require().NoError(err)
	s.Equal(id.RoleAdmin, found.Role, "admins keep their role")

	_, err = s.store.FindMember(s.ctx, id.EventRef(id.EventID(uuid.New())), member.UserID)
	s.ErrorIs(err, sentinel.ErrNotFound)
}
