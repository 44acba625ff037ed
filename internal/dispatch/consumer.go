package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"joinflow/internal/platform/queue"
	dErrors "joinflow/pkg/domain-errors"
)

const tracerName = "joinflow/dispatch"

// Dequeuer is the consumer side of the work queue.
type Dequeuer interface {
	Dequeue(ctx context.Context, family queue.Family) (*queue.Delivery, error)
	Ack(ctx context.Context, d *queue.Delivery) error
}

// Consumer serves one queue partition with one Handler. Several consumers
// may serve the same partition.
type Consumer struct {
	queue   Dequeuer
	family  queue.Family
	handler Handler
	logger  *slog.Logger
	metrics *Metrics
	tracer  trace.Tracer
}

type ConsumerOption func(c *Consumer)

func WithConsumerLogger(logger *slog.Logger) ConsumerOption {
	return func(c *Consumer) {
		c.logger = logger
	}
}

func WithConsumerMetrics(m *Metrics) ConsumerOption {
	return func(c *Consumer) {
		c.metrics = m
	}
}

// WithTracer overrides the tracer taken from the global provider.
func WithTracer(tracer trace.Tracer) ConsumerOption {
	return func(c *Consumer) {
		c.tracer = tracer
	}
}

func NewConsumer(q Dequeuer, family queue.Family, handler Handler, opts ...ConsumerOption) *Consumer {
	c := &Consumer{
		queue:   q,
		family:  family,
		handler: handler,
		logger:  slog.Default(),
		tracer:  otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run dequeues and handles tasks until ctx is cancelled or a handler
// reports a fatal error. A fatal task is left unacked so that the queue
// redelivers it after the visibility timeout.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		d, err := c.queue.Dequeue(ctx, c.family)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "dequeue "+string(c.family))
		}
		if err := c.process(ctx, d); err != nil {
			return err
		}
	}
}

// process handles one delivery and applies the error policy.
func (c *Consumer) process(ctx context.Context, d *queue.Delivery) error {
	task := d.Task
	ctx, span := c.tracer.Start(ctx, "dispatch.handle",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("queue.family", string(task.Family)),
			attribute.String("queue.task_id", task.ID),
			attribute.String("subject.id", task.SubjectID.String()),
		),
	)
	defer span.End()

	start := time.Now()
	err := c.handler.Handle(ctx, task)
	outcome := classify(err)
	c.metrics.observeHandled(string(c.family), outcome, time.Since(start).Seconds())
	span.SetAttributes(attribute.String("dispatch.outcome", outcome))

	logArgs := []any{
		"family", string(task.Family),
		"task_id", task.ID,
		"subject_id", task.SubjectID.String(),
	}
	switch outcome {
	case outcomeDelivered:
		span.SetStatus(codes.Ok, "")
	case outcomeDropped:
		c.logger.WarnContext(ctx, "dropping task", append(logArgs, "error", err)...)
	case outcomeFailed:
		span.RecordError(err)
		c.logger.WarnContext(ctx, "delivery failed", append(logArgs, "error", err)...)
	case outcomeFatal:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.ErrorContext(ctx, "task failed, stopping consumer", append(logArgs, "error", err)...)
		return err
	}

	if err := c.queue.Ack(ctx, d); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "ack "+string(c.family))
	}
	return nil
}

func classify(err error) string {
	if err == nil {
		return outcomeDelivered
	}
	if errors.Is(err, context.Canceled) {
		return outcomeFatal
	}
	switch dErrors.CodeOf(err) {
	case dErrors.CodeNotFound, dErrors.CodeValidation, dErrors.CodeInvalidInput:
		return outcomeDropped
	case dErrors.CodeDeliveryFailed:
		return outcomeFailed
	default:
		return outcomeFatal
	}
}
