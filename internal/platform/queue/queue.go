// Package queue is the at-least-once work queue between the readiness
// scanner and the delivery workers. Tasks are partitioned by family; a
// dequeued task stays in flight until acked or until its visibility timeout
// expires and Requeue hands it out again.
package queue

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Family names a queue partition. One consumer group serves each family.
type Family string

const (
	FamilyInviteNotifications      Family = "join_request_invites"
	FamilyJoinRequestNotifications Family = "join_request_notifications"
	FamilyProcessedNotifications   Family = "join_request_processed"
	FamilyUserNotifications        Family = "user_notifications"
)

// Families lists every partition in scan order.
var Families = []Family{
	FamilyInviteNotifications,
	FamilyJoinRequestNotifications,
	FamilyProcessedNotifications,
	FamilyUserNotifications,
}

// IsValid reports whether f is a known partition.
func (f Family) IsValid() bool {
	for _, known := range Families {
		if f == known {
			return true
		}
	}
	return false
}

// Task kinds within FamilyUserNotifications.
const (
	KindNeedsApproval = "needs_approval"
	KindApproved      = "approved"
)

// Task is the small typed payload handed to a worker.
type Task struct {
	// ID identifies this enqueue; redeliveries keep it.
	ID         string      `json:"id"`
	Family     Family      `json:"family"`
	SubjectID  uuid.UUID   `json:"subject_id"`
	Kind       string      `json:"kind,omitempty"`
	Recipients []uuid.UUID `json:"recipients,omitempty"`
	EnqueuedAt time.Time   `json:"enqueued_at"`
}

// Delivery is a task handed to one consumer.
type Delivery struct {
	Task    Task
	receipt string
}

// ErrUnknownFamily is returned for a partition that does not exist.
var ErrUnknownFamily = errors.New("queue: unknown family")

// Queue is implemented by Memory and Redis.
type Queue interface {
	Enqueue(ctx context.Context, task Task) error
	// Dequeue blocks until a task of family is available or ctx is done.
	Dequeue(ctx context.Context, family Family) (*Delivery, error)
	Ack(ctx context.Context, d *Delivery) error
	// Requeue returns deliveries whose visibility timeout expired to their
	// partition and reports how many were returned.
	Requeue(ctx context.Context) (int, error)
}

func prepare(task *Task, now time.Time) error {
	if !task.Family.IsValid() {
		return ErrUnknownFamily
	}
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.EnqueuedAt.IsZero() {
		task.EnqueuedAt = now
	}
	return nil
}
