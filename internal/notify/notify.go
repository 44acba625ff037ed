// Package notify is the outbound notification boundary. Rendering and
// transport live behind Notifier; the delivery workers only pick the
// template, the recipient and the parameters.
package notify

import (
	"context"
	"time"

	id "joinflow/pkg/domain"
)

// Template keys understood by the renderers behind a Notifier.
const (
	TemplateJoinRequestInvite       = "join_request.invite"
	TemplateJoinRequestNotification = "join_request.notification"
	TemplateJoinRequestProcessed    = "join_request.processed"
	TemplateInvitation              = "invitation"
	TemplateUserNeedsApproval       = "user.needs_approval"
	TemplateUserApproved            = "user.approved"
)

// Recipient is who a message goes to. UserID is nil for people without an
// account, such as invitation recipients.
type Recipient struct {
	UserID id.UserID `json:"user_id,omitempty"`
	Email  string    `json:"email"`
	Name   string    `json:"name,omitempty"`
}

// DeliveryResult is what the transport reported for one send. Invitations
// persist it verbatim.
type DeliveryResult struct {
	MessageID   string    `json:"message_id"`
	Transport   string    `json:"transport"`
	DeliveredAt time.Time `json:"delivered_at"`
}

// Message is one rendered-later notification.
type Message struct {
	Template  string            `json:"template"`
	Recipient Recipient         `json:"recipient"`
	Params    map[string]string `json:"params,omitempty"`
}

// Notifier sends one message. Failures carry dErrors.CodeDeliveryFailed.
type Notifier interface {
	Send(ctx context.Context, msg Message) (*DeliveryResult, error)
}
