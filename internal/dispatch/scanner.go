package dispatch

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	activitymodels "joinflow/internal/activity/models"
	"joinflow/internal/platform/queue"
	id "joinflow/pkg/domain"
	dErrors "joinflow/pkg/domain-errors"
)

// rule maps one event log query to the partition its tasks go to.
type rule struct {
	family queue.Family
	filter activitymodels.Filter
}

// rules lists the scanned families. Processed notifications only cover
// group.join entries written by a join request transition.
var rules = []rule{
	{
		family: queue.FamilyInviteNotifications,
		filter: activitymodels.Filter{Key: activitymodels.KeyJoinRequestInvite, TrackableKind: id.RefJoinRequest},
	},
	{
		family: queue.FamilyJoinRequestNotifications,
		filter: activitymodels.Filter{Key: activitymodels.KeyJoinRequestRequest, TrackableKind: id.RefJoinRequest},
	},
	{
		family: queue.FamilyProcessedNotifications,
		filter: activitymodels.Filter{Key: activitymodels.KeyGroupJoin, RequireParam: activitymodels.ParamJoinRequestID},
	},
}

// ScanReport counts the tasks one scan enqueued per family.
type ScanReport struct {
	Enqueued map[queue.Family]int
}

// Total is the number of tasks enqueued across families.
func (r ScanReport) Total() int {
	n := 0
	for _, c := range r.Enqueued {
		n += c
	}
	return n
}

// Scanner finds unnotified entries and enqueues their delivery tasks.
// It never marks entries; workers do after sending.
type Scanner struct {
	activities  ActivityStore
	tasks       TaskQueue
	invitations *InvitationDispatcher
	requeuer    Requeuer
	logger      *slog.Logger
	metrics     *Metrics
}

type ScannerOption func(s *Scanner)

func WithScannerLogger(logger *slog.Logger) ScannerOption {
	return func(s *Scanner) {
		s.logger = logger
	}
}

func WithScannerMetrics(m *Metrics) ScannerOption {
	return func(s *Scanner) {
		s.metrics = m
	}
}

// WithInvitationDispatcher makes each Run tick also dispatch ready invitations.
func WithInvitationDispatcher(d *InvitationDispatcher) ScannerOption {
	return func(s *Scanner) {
		s.invitations = d
	}
}

// WithRequeuer makes each Run tick also return expired deliveries.
func WithRequeuer(r Requeuer) ScannerOption {
	return func(s *Scanner) {
		s.requeuer = r
	}
}

func NewScanner(activities ActivityStore, tasks TaskQueue, opts ...ScannerOption) *Scanner {
	s := &Scanner{
		activities: activities,
		tasks:      tasks,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan runs every family once. A store or queue failure aborts the scan;
// tasks enqueued before the failure stay enqueued.
func (s *Scanner) Scan(ctx context.Context) (ScanReport, error) {
	report := ScanReport{Enqueued: make(map[queue.Family]int, len(rules))}
	for _, r := range rules {
		for entry, err := range s.activities.FindUnnotified(ctx, r.filter) {
			if err != nil {
				s.metrics.observeScan("error")
				return report, dErrors.Wrap(err, dErrors.CodeInternal, "scan "+string(r.family))
			}
			task := queue.Task{Family: r.family, SubjectID: uuid.UUID(entry.ID)}
			if err := s.tasks.Enqueue(ctx, task); err != nil {
				s.metrics.observeScan("error")
				return report, dErrors.Wrap(err, dErrors.CodeInternal, "enqueue "+string(r.family))
			}
			report.Enqueued[r.family]++
			s.metrics.observeEnqueued(string(r.family))
		}
	}
	s.metrics.observeScan("ok")
	return report, nil
}

// Tick is one scheduler pass: scan, dispatch invitations, requeue expired
// deliveries. Steps run independently; the first error is returned.
func (s *Scanner) Tick(ctx context.Context) error {
	var first error
	keep := func(err error) {
		if first == nil {
			first = err
		}
	}

	report, err := s.Scan(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "readiness scan aborted", "error", err)
		keep(err)
	} else if n := report.Total(); n > 0 {
		s.logger.InfoContext(ctx, "readiness scan enqueued tasks", "tasks", n)
	}

	if s.invitations != nil {
		if _, err := s.invitations.Dispatch(ctx); err != nil {
			s.logger.ErrorContext(ctx, "invitation dispatch aborted", "error", err)
			keep(err)
		}
	}

	if s.requeuer != nil {
		n, err := s.requeuer.Requeue(ctx)
		if err != nil {
			s.logger.ErrorContext(ctx, "requeue expired deliveries failed", "error", err)
			keep(err)
		}
		s.metrics.observeRequeued(n)
	}
	return first
}

// Run ticks once immediately and then every interval until ctx is
// cancelled. A failed tick is logged; the next interval retries it.
func (s *Scanner) Run(ctx context.Context, interval time.Duration) error {
	_ = s.Tick(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			_ = s.Tick(ctx)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
