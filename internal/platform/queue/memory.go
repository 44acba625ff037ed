package queue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type inflight struct {
	task     Task
	deadline time.Time
}

// Memory is a single-process Queue.
type Memory struct {
	mu         sync.Mutex
	pending    map[Family][]Task
	inflight   map[string]inflight
	signal     chan struct{}
	visibility time.Duration
	now        func() time.Time
}

// MemoryOption configures a Memory queue.
type MemoryOption func(*Memory)

// WithClock overrides time.Now, for tests of visibility expiry.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) { m.now = now }
}

func NewMemory(visibility time.Duration, opts ...MemoryOption) *Memory {
	m := &Memory{
		pending:    make(map[Family][]Task),
		inflight:   make(map[string]inflight),
		signal:     make(chan struct{}),
		visibility: visibility,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) Enqueue(_ context.Context, task Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := prepare(&task, m.now()); err != nil {
		return err
	}
	m.pending[task.Family] = append(m.pending[task.Family], task)
	m.broadcast()
	return nil
}

// broadcast wakes every blocked Dequeue. Callers hold mu.
func (m *Memory) broadcast() {
	close(m.signal)
	m.signal = make(chan struct{})
}

func (m *Memory) Dequeue(ctx context.Context, family Family) (*Delivery, error) {
	if !family.IsValid() {
		return nil, ErrUnknownFamily
	}
	for {
		m.mu.Lock()
		if tasks := m.pending[family]; len(tasks) > 0 {
			task := tasks[0]
			m.pending[family] = tasks[1:]
			receipt := uuid.NewString()
			m.inflight[receipt] = inflight{task: task, deadline: m.now().Add(m.visibility)}
			m.mu.Unlock()
			return &Delivery{Task: task, receipt: receipt}, nil
		}
		wait := m.signal
		m.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-wait:
		}
	}
}

// Ack drops the delivery. Acking an expired delivery is a no-op; the task
// may already be with another consumer.
func (m *Memory) Ack(_ context.Context, d *Delivery) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.inflight, d.receipt)
	return nil
}

func (m *Memory) Requeue(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	n := 0
	for receipt, f := range m.inflight {
		if now.Before(f.deadline) {
			continue
		}
		delete(m.inflight, receipt)
		m.pending[f.task.Family] = append([]Task{f.task}, m.pending[f.task.Family]...)
		n++
	}
	if n > 0 {
		m.broadcast()
	}
	return n, nil
}

// Len reports pending and in-flight counts for family.
func (m *Memory) Len(family Family) (pending, inFlight int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range m.inflight {
		if f.task.Family == family {
			inFlight++
		}
	}
	return len(m.pending[family]), inFlight
}
