package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	invitationmodels "joinflow/internal/invitation/models"
	invitationstore "joinflow/internal/invitation/store"
	"joinflow/internal/notify"
	id "joinflow/pkg/domain"
	dErrors "joinflow/pkg/domain-errors"
	txcontext "joinflow/pkg/platform/tx"
)

type InvitationDispatcherSuite struct {
	suite.Suite
	ctx      context.Context
	store    *invitationstore.InMemory
	notifier *recordingNotifier
	now      time.Time
	target   id.Ref
}

func TestInvitationDispatcherSuite(t *testing.T) {
	suite.Run(t, new(InvitationDispatcherSuite))
}

func (s *InvitationDispatcherSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = invitationstore.NewInMemory()
	s.notifier = &recordingNotifier{}
	s.now = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	s.target = id.EventRef(id.EventID(uuid.New()))
}

func (s *InvitationDispatcherSuite) create(addr string, ready bool) *invitationmodels.Invitation {
	s.now = s.now.Add(time.Second)
	inv, err := invitationmodels.NewInvitation(s.target, id.UserID(uuid.New()), addr, "", "Launch party", ready, s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Create(s.ctx, inv))
	return inv
}

func (s *InvitationDispatcherSuite) dispatcher(batch int) *InvitationDispatcher {
	return NewInvitationDispatcher(s.store, s.notifier, txcontext.NoTx{}, batch,
		WithInvitationClock(func() time.Time { return s.now }))
}

func (s *InvitationDispatcherSuite) find(inv *invitationmodels.Invitation) *invitationmodels.Invitation {
	stored, err := s.store.FindByID(s.ctx, inv.ID)
	s.Require().NoError(err)
	return stored
}

func (s *InvitationDispatcherSuite) TestSendsReadyInvitationsOnce() {
	ready := s.create("a@example.com", true)
	draft := s.create("b@example.com", false)

	report, err := s.dispatcher(10).Dispatch(s.ctx)
	s.Require().NoError(err)
	s.Equal(DispatchReport{Sent: 1}, report)
	s.Equal([]string{"a@example.com"}, s.notifier.emails(notify.TemplateInvitation))

	stored := s.find(ready)
	s.True(stored.Sent)
	s.Require().NotNil(stored.Result)
	s.Equal("test", stored.Result.Transport)
	s.False(s.find(draft).Sent)

	report, err = s.dispatcher(10).Dispatch(s.ctx)
	s.Require().NoError(err)
	s.Zero(report.Sent)
	s.Len(s.notifier.messages(notify.TemplateInvitation), 1)
}

func (s *InvitationDispatcherSuite) TestFailedSendStaysUnsent() {
	s.notifier.fail = func(msg notify.Message) bool { return msg.Recipient.Email == "down@example.com" }
	failing := s.create("down@example.com", true)
	ok := s.create("up@example.com", true)

	report, err := s.dispatcher(10).Dispatch(s.ctx)
	s.Require().NoError(err)
	s.Equal(DispatchReport{Sent: 1, Failed: 1}, report)
	s.False(s.find(failing).Sent)
	s.True(s.find(ok).Sent)

	s.notifier.fail = nil
	report, err = s.dispatcher(10).Dispatch(s.ctx)
	s.Require().NoError(err)
	s.Equal(DispatchReport{Sent: 1}, report)
	s.True(s.find(failing).Sent)
}

func (s *InvitationDispatcherSuite) TestDrainsInBatches() {
	for range 5 {
		s.create(uuid.NewString()+"@example.com", true)
	}
	report, err := s.dispatcher(2).Dispatch(s.ctx)
	s.Require().NoError(err)
	s.Equal(5, report.Sent)
	s.Len(s.notifier.sent, 5)
}

func (s *InvitationDispatcherSuite) TestParamsCarryTarget() {
	inv := s.create("a@example.com", true)
	_, err := s.dispatcher(10).Dispatch(s.ctx)
	s.Require().NoError(err)

	msg := s.notifier.messages(notify.TemplateInvitation)[0]
	s.Equal(inv.ID.String(), msg.Params["invitation_id"])
	s.Equal(s.target.ID.String(), msg.Params["target_id"])
}

func (s *InvitationDispatcherSuite) TestStoreFailureIsInternal() {
	d := NewInvitationDispatcher(failingInvitations{}, s.notifier, txcontext.NoTx{}, 10)
	_, err := d.Dispatch(s.ctx)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	s.ErrorIs(err, errStoreDown)
}

type failingInvitations struct {
	InvitationStore
}

func (failingInvitations) ClaimDispatchable(context.Context, int) ([]*invitationmodels.Invitation, error) {
	return nil, errStoreDown
}
