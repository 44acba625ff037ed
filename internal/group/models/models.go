package models

import (
	"strings"
	"time"

	"github.com/google/uuid"

	id "joinflow/pkg/domain"
	dErrors "joinflow/pkg/domain-errors"
)

const maxNameLength = 200

// Space is a long-lived collaboration group.
type Space struct {
	ID        id.SpaceID `json:"id"`
	Name      string     `json:"name"`
	CreatedAt time.Time  `json:"created_at"`
}

func (s *Space) Ref() id.Ref { return id.SpaceRef(s.ID) }

// Event is a time-boxed group with participants.
type Event struct {
	ID        id.EventID `json:"id"`
	Name      string     `json:"name"`
	StartsAt  *time.Time `json:"starts_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

func (e *Event) Ref() id.Ref { return id.EventRef(e.ID) }

// Membership links a user to a group with a role.
type Membership struct {
	Group     id.Ref    `json:"group"`
	UserID    id.UserID `json:"user_id"`
	Role      id.Role   `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func NewSpace(name string, now time.Time) (*Space, error) {
	name, err := validName(name)
	if err != nil {
		return nil, err
	}
	return &Space{ID: id.SpaceID(uuid.New()), Name: name, CreatedAt: now}, nil
}

func NewEvent(name string, startsAt *time.Time, now time.Time) (*Event, error) {
	name, err := validName(name)
	if err != nil {
		return nil, err
	}
	return &Event{ID: id.EventID(uuid.New()), Name: name, StartsAt: startsAt, CreatedAt: now}, nil
}

func validName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", dErrors.New(dErrors.CodeValidation, "name is required")
	}
	if len([]rune(name)) > maxNameLength {
		return "", dErrors.New(dErrors.CodeValidation, "name is too long")
	}
	return name, nil
}
