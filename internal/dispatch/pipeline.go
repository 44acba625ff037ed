package dispatch

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"joinflow/internal/notify"
	"joinflow/internal/platform/queue"
)

// Deps are the stores the pipeline reads and marks.
type Deps struct {
	Activities  ActivityStore
	Requests    JoinRequestFinder
	Groups      GroupResolver
	Users       UserStore
	Invitations InvitationStore
	Tx          TxRunner
}

// PipelineConfig sizes the pipeline.
type PipelineConfig struct {
	ScanInterval     time.Duration
	WorkersPerFamily int
	InvitationBatch  int
}

// Pipeline runs the scanner and a pool of consumers per family until the
// context ends or one of them fails.
type Pipeline struct {
	scanner   *Scanner
	consumers []*Consumer
	interval  time.Duration
	logger    *slog.Logger
}

func NewPipeline(deps Deps, q queue.Queue, notifier notify.Notifier, cfg PipelineConfig, logger *slog.Logger, m *Metrics) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.WorkersPerFamily <= 0 {
		cfg.WorkersPerFamily = 1
	}
	if cfg.ScanInterval <= 0 {
		cfg.ScanInterval = time.Minute
	}

	invitations := NewInvitationDispatcher(deps.Invitations, notifier, deps.Tx, cfg.InvitationBatch,
		WithInvitationLogger(logger), WithInvitationMetrics(m))
	scanner := NewScanner(deps.Activities, q,
		WithScannerLogger(logger),
		WithScannerMetrics(m),
		WithInvitationDispatcher(invitations),
		WithRequeuer(q),
	)

	entryOpts := []EntryOption{WithEntryLogger(logger), WithEntryMetrics(m)}
	handlers := map[queue.Family]Handler{
		queue.FamilyInviteNotifications:      NewInviteNotifier(deps.Activities, deps.Requests, deps.Users, notifier, entryOpts...),
		queue.FamilyJoinRequestNotifications: NewJoinRequestNotifier(deps.Activities, deps.Requests, deps.Groups, deps.Users, notifier, entryOpts...),
		queue.FamilyProcessedNotifications:   NewProcessedNotifier(deps.Activities, deps.Users, notifier, entryOpts...),
		queue.FamilyUserNotifications:        NewUserApprovalSender(deps.Users, notifier, WithApprovalLogger(logger), WithApprovalMetrics(m)),
	}

	p := &Pipeline{scanner: scanner, interval: cfg.ScanInterval, logger: logger}
	for _, family := range queue.Families {
		for range cfg.WorkersPerFamily {
			p.consumers = append(p.consumers, NewConsumer(q, family, handlers[family],
				WithConsumerLogger(logger), WithConsumerMetrics(m)))
		}
	}
	return p
}

// Scanner exposes the scanner for one-off ticks.
func (p *Pipeline) Scanner() *Scanner {
	return p.scanner
}

// Run blocks until ctx is cancelled, returning nil, or until a component
// fails, returning its error after stopping the rest.
func (p *Pipeline) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return p.scanner.Run(gctx, p.interval)
	})
	for _, c := range p.consumers {
		g.Go(func() error {
			return c.Run(gctx)
		})
	}
	p.logger.InfoContext(ctx, "dispatch pipeline started",
		"consumers", len(p.consumers),
		"scan_interval", p.interval.String(),
	)
	err := g.Wait()
	if ctx.Err() != nil {
		p.logger.InfoContext(context.WithoutCancel(ctx), "dispatch pipeline stopped")
		return nil
	}
	return err
}
