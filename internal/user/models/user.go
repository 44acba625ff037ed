package models

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	id "joinflow/pkg/domain"
	dErrors "joinflow/pkg/domain-errors"
	"joinflow/pkg/email"
)

const maxNameLength = 200

// User is a platform account. The two notification timestamps are the
// done-markers of the approval notifications.
type User struct {
	ID                              id.UserID  `json:"id"`
	Name                            string     `json:"name"`
	Email                           string     `json:"email"`
	Approved                        bool       `json:"approved"`
	SuperUser                       bool       `json:"super_user"`
	NeedsApprovalNotificationSentAt *time.Time `json:"needs_approval_notification_sent_at,omitempty"`
	ApprovedNotificationSentAt      *time.Time `json:"approved_notification_sent_at,omitempty"`
	CreatedAt                       time.Time  `json:"created_at"`
	UpdatedAt                       time.Time  `json:"updated_at"`
}

// NewUser validates input and builds an unsaved user.
func NewUser(name, addr string, approved, superUser bool, now time.Time) (*User, error) {
	name = strings.TrimSpace(name)
	addr = email.Normalize(addr)
	if !email.IsValid(addr) {
		return nil, dErrors.New(dErrors.CodeValidation, "email is invalid")
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return nil, dErrors.New(dErrors.CodeValidation, "name is too long")
	}
	if name == "" {
		name = email.DisplayName(addr)
	}
	return &User{
		ID:        id.UserID(uuid.New()),
		Name:      name,
		Email:     addr,
		Approved:  approved,
		SuperUser: superUser,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// IsSiteAdmin reports whether u receives needs-approval notifications.
func (u *User) IsSiteAdmin() bool {
	return u.SuperUser
}
