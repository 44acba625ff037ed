package models

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"joinflow/internal/notify"
	id "joinflow/pkg/domain"
	dErrors "joinflow/pkg/domain-errors"
	"joinflow/pkg/email"
)

const maxTitleLength = 255

// Invitation is a prepared outbound invitation. The dispatcher sends it once
// Ready is set and records the transport result on it.
type Invitation struct {
	ID             id.InvitationID        `json:"id"`
	Target         id.Ref                 `json:"target"`
	SenderID       id.UserID              `json:"sender_id"`
	RecipientEmail string                 `json:"recipient_email"`
	RecipientName  string                 `json:"recipient_name"`
	Title          string                 `json:"title"`
	Ready          bool                   `json:"ready"`
	Sent           bool                   `json:"sent"`
	Result         *notify.DeliveryResult `json:"result,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
	SentAt         *time.Time             `json:"sent_at,omitempty"`
}

func NewInvitation(target id.Ref, sender id.UserID, recipientEmail, recipientName, title string, ready bool, now time.Time) (*Invitation, error) {
	if target.IsZero() || !target.Kind.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "invitation target is required")
	}
	if sender.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "sender is required")
	}
	recipientEmail = email.Normalize(recipientEmail)
	if !email.IsValid(recipientEmail) {
		return nil, dErrors.New(dErrors.CodeValidation, "recipient email is invalid")
	}
	title = strings.TrimSpace(title)
	if utf8.RuneCountInString(title) > maxTitleLength {
		return nil, dErrors.New(dErrors.CodeValidation, "title is too long")
	}
	recipientName = strings.TrimSpace(recipientName)
	if recipientName == "" {
		recipientName = email.DisplayName(recipientEmail)
	}
	return &Invitation{
		ID:             id.InvitationID(uuid.New()),
		Target:         target,
		SenderID:       sender,
		RecipientEmail: recipientEmail,
		RecipientName:  recipientName,
		Title:          title,
		Ready:          ready,
		CreatedAt:      now,
	}, nil
}

// IsDispatchable reports whether the dispatcher should pick the invitation up.
func (i *Invitation) IsDispatchable() bool {
	return i.Ready && !i.Sent
}

// Recipient is who the invitation is sent to.
func (i *Invitation) Recipient() notify.Recipient {
	return notify.Recipient{Email: i.RecipientEmail, Name: i.RecipientName}
}

// Params is the snapshot handed to the notifier.
func (i *Invitation) Params() map[string]string {
	return map[string]string{
		"invitation_id":  i.ID.String(),
		"target_kind":    string(i.Target.Kind),
		"target_id":      i.Target.ID.String(),
		"sender_id":      i.SenderID.String(),
		"title":          i.Title,
		"recipient_name": i.RecipientName,
	}
}
