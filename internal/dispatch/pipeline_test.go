package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	activitystore "joinflow/internal/activity/store"
	groupservice "joinflow/internal/group/service"
	groupstore "joinflow/internal/group/store"
	invitationstore "joinflow/internal/invitation/store"
	jrservice "joinflow/internal/joinrequest/service"
	jrstore "joinflow/internal/joinrequest/store"
	"joinflow/internal/notify"
	"joinflow/internal/platform/queue"
	usermodels "joinflow/internal/user/models"
	userstore "joinflow/internal/user/store"
	txcontext "joinflow/pkg/platform/tx"
)

func TestPipeline_DeliversUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	users := userstore.NewInMemory()
	activities := activitystore.NewInMemory()
	groups := groupservice.New(groupstore.NewInMemory(), activities, txcontext.NoTx{}, nil)
	requestStore := jrstore.NewInMemory()
	requests := jrservice.New(requestStore, groups, users, activities, txcontext.NoTx{})

	create := func(name, addr string) *usermodels.User {
		u, err := usermodels.NewUser(name, addr, true, false, time.Now())
		require.NoError(t, err)
		require.NoError(t, users.Create(ctx, u))
		return u
	}
	admin := create("Ada Admin", "ada@example.com")
	candidate := create("Carl Candidate", "carl@example.com")
	space, err := groups.CreateSpace(ctx, "Research", admin.ID)
	require.NoError(t, err)
	_, err = requests.Request(ctx, candidate.ID, space.Ref(), "")
	require.NoError(t, err)

	notifier := &recordingNotifier{}
	p := NewPipeline(Deps{
		Activities:  activities,
		Requests:    requestStore,
		Groups:      groups,
		Users:       users,
		Invitations: invitationstore.NewInMemory(),
		Tx:          txcontext.NoTx{},
	}, queue.NewMemory(time.Minute), notifier, PipelineConfig{
		ScanInterval:     time.Hour,
		WorkersPerFamily: 2,
	}, nil, NewMetrics(prometheus.NewRegistry()))

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, func() bool {
		return len(notifier.messages(notify.TemplateJoinRequestNotification)) > 0
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("pipeline did not stop")
	}
	assert.Equal(t, []string{"ada@example.com"}, notifier.emails(notify.TemplateJoinRequestNotification),
		"marked entries are not rescanned")
}
