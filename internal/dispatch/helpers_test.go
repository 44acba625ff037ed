package dispatch

import (
	"context"
	"errors"
	"iter"
	"sync"
	"time"

	"github.com/google/uuid"

	activitymodels "joinflow/internal/activity/models"
	"joinflow/internal/notify"
	"joinflow/internal/platform/queue"
	dErrors "joinflow/pkg/domain-errors"
)

var errStoreDown = errors.New("store down")

// recordingNotifier keeps every message it was asked to send. Messages
// matching fail are refused with CodeDeliveryFailed.
type recordingNotifier struct {
	mu   sync.Mutex
	sent []notify.Message
	fail func(msg notify.Message) bool
}

func (n *recordingNotifier) Send(_ context.Context, msg notify.Message) (*notify.DeliveryResult, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail != nil && n.fail(msg) {
		return nil, dErrors.New(dErrors.CodeDeliveryFailed, "smtp refused")
	}
	n.sent = append(n.sent, msg)
	return &notify.DeliveryResult{
		MessageID:   uuid.NewString(),
		Transport:   "test",
		DeliveredAt: time.Now(),
	}, nil
}

func (n *recordingNotifier) messages(template string) []notify.Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []notify.Message
	for _, m := range n.sent {
		if m.Template == template {
			out = append(out, m)
		}
	}
	return out
}

func (n *recordingNotifier) emails(template string) []string {
	var out []string
	for _, m := range n.messages(template) {
		out = append(out, m.Recipient.Email)
	}
	return out
}

// brokenActivities fails every unnotified query.
type brokenActivities struct {
	ActivityStore
}

func (brokenActivities) FindUnnotified(context.Context, activitymodels.Filter) iter.Seq2[*activitymodels.Entry, error] {
	return func(yield func(*activitymodels.Entry, error) bool) {
		yield(nil, errStoreDown)
	}
}

// drain hands every pending task of family to c, one by one, and returns
// the errors process reported.
func drain(ctx context.Context, q *queue.Memory, c *Consumer) []error {
	var errs []error
	for {
		pending, _ := q.Len(c.family)
		if pending == 0 {
			return errs
		}
		d, err := q.Dequeue(ctx, c.family)
		if err != nil {
			return append(errs, err)
		}
		if err := c.process(ctx, d); err != nil {
			errs = append(errs, err)
		}
	}
}
