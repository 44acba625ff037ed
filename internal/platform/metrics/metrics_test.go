package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_ObserveRequest(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveRequest("/join_requests/{token}", "2xx", time.Now())
	m.ObserveRequest("/join_requests/{token}", "2xx", time.Now())
	m.ObserveRequest("/join_requests/{token}", "4xx", time.Now())

	assert.Equal(t, 2.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("/join_requests/{token}", "2xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("/join_requests/{token}", "4xx")))
}

func TestMetrics_UserCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.IncrementUsersRegistered()
	m.IncrementUsersRegistered()
	m.IncrementUsersApproved()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.UsersRegistered))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UsersApproved))
}

func TestMetrics_JoinRequestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.IncrementJoinRequestsCreated("invite")
	m.IncrementJoinRequestTransitions("invite", "accepted")
	m.IncrementJoinRequestTransitions("request", "declined")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.JoinRequestsCreated.WithLabelValues("invite")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.JoinRequestTransitions.WithLabelValues("invite", "accepted")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.JoinRequestTransitions.WithLabelValues("invite", "declined")))
}
