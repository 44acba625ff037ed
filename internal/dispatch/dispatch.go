// Package dispatch turns persisted pending work into notifications.
//
// The Scanner finds unnotified event log entries and enqueues one task per
// entry on the family's queue partition. Consumers dequeue those tasks and
// hand them to a Handler that sends the notification and marks the entry
// notified. Delivery is at least once: overlapping scans may enqueue the
// same entry twice and both workers will send.
package dispatch

import (
	"context"
	"iter"
	"time"

	activitymodels "joinflow/internal/activity/models"
	groupservice "joinflow/internal/group/service"
	invitationmodels "joinflow/internal/invitation/models"
	jrmodels "joinflow/internal/joinrequest/models"
	"joinflow/internal/notify"
	"joinflow/internal/platform/queue"
	usermodels "joinflow/internal/user/models"
	id "joinflow/pkg/domain"
)

// ActivityStore is the event log slice the scanner and workers need.
type ActivityStore interface {
	FindByID(ctx context.Context, activityID id.ActivityID) (*activitymodels.Entry, error)
	FindUnnotified(ctx context.Context, filter activitymodels.Filter) iter.Seq2[*activitymodels.Entry, error]
	MarkNotified(ctx context.Context, activityID id.ActivityID) error
}

// TaskQueue receives the tasks a scan produces.
type TaskQueue interface {
	Enqueue(ctx context.Context, task queue.Task) error
}

// Requeuer hands expired in-flight deliveries out again.
type Requeuer interface {
	Requeue(ctx context.Context) (int, error)
}

// UserStore resolves recipients and stamps approval notifications.
type UserStore interface {
	FindByID(ctx context.Context, userID id.UserID) (*usermodels.User, error)
	FindByIDs(ctx context.Context, userIDs []id.UserID) ([]*usermodels.User, error)
	StampNeedsApprovalNotification(ctx context.Context, userID id.UserID, now time.Time) error
	StampApprovedNotification(ctx context.Context, userID id.UserID, now time.Time) error
}

// JoinRequestFinder checks that an entry's trackable still resolves.
type JoinRequestFinder interface {
	FindByID(ctx context.Context, requestID id.JoinRequestID) (*jrmodels.JoinRequest, error)
}

// GroupResolver turns an entry's owner into its group capability.
type GroupResolver interface {
	Resolve(ctx context.Context, ref id.Ref) (groupservice.Group, error)
}

// InvitationStore is the pending action record store behind InvitationDispatcher.
type InvitationStore interface {
	ClaimDispatchable(ctx context.Context, limit int) ([]*invitationmodels.Invitation, error)
	MarkSent(ctx context.Context, invitationID id.InvitationID, result *notify.DeliveryResult, now time.Time) error
}

// TxRunner runs fn in one unit of work.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Handler performs the side effect for one task.
//
// Errors coded CodeNotFound or CodeValidation drop the task and
// CodeDeliveryFailed acks it after logging. Any other error leaves the task
// unacked and stops the consumer.
type Handler interface {
	Handle(ctx context.Context, task queue.Task) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, task queue.Task) error

func (f HandlerFunc) Handle(ctx context.Context, task queue.Task) error {
	return f(ctx, task)
}
