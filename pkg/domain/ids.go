package domain

import (
	"github.com/google/uuid"

	dErrors "joinflow/pkg/domain-errors"
)

// Typed identifiers. Each wraps a UUID so a join request id can never be
// passed where a user id is expected.
type (
	UserID        uuid.UUID
	JoinRequestID uuid.UUID
	ActivityID    uuid.UUID
	InvitationID  uuid.UUID
	SpaceID       uuid.UUID
	EventID       uuid.UUID
)

func (id UserID) String() string        { return uuid.UUID(id).String() }
func (id JoinRequestID) String() string { return uuid.UUID(id).String() }
func (id ActivityID) String() string    { return uuid.UUID(id).String() }
func (id InvitationID) String() string  { return uuid.UUID(id).String() }
func (id SpaceID) String() string       { return uuid.UUID(id).String() }
func (id EventID) String() string       { return uuid.UUID(id).String() }

func (id UserID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id JoinRequestID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id ActivityID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id InvitationID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id SpaceID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }
func (id EventID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }

// Text marshalling keeps ids as UUID strings in JSON.
func (id UserID) MarshalText() ([]byte, error)        { return uuid.UUID(id).MarshalText() }
func (id JoinRequestID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id ActivityID) MarshalText() ([]byte, error)    { return uuid.UUID(id).MarshalText() }
func (id InvitationID) MarshalText() ([]byte, error)  { return uuid.UUID(id).MarshalText() }
func (id SpaceID) MarshalText() ([]byte, error)       { return uuid.UUID(id).MarshalText() }
func (id EventID) MarshalText() ([]byte, error)       { return uuid.UUID(id).MarshalText() }

func (id *UserID) UnmarshalText(b []byte) error        { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *JoinRequestID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *ActivityID) UnmarshalText(b []byte) error    { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *InvitationID) UnmarshalText(b []byte) error  { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *SpaceID) UnmarshalText(b []byte) error       { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *EventID) UnmarshalText(b []byte) error       { return (*uuid.UUID)(id).UnmarshalText(b) }

// ParseUserID parses external input into a UserID.
// Errors: CodeInvalidInput when empty, malformed or the nil UUID.
func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s, "user id")
	return UserID(u), err
}

func ParseJoinRequestID(s string) (JoinRequestID, error) {
	u, err := parseUUID(s, "join request id")
	return JoinRequestID(u), err
}

func ParseActivityID(s string) (ActivityID, error) {
	u, err := parseUUID(s, "activity id")
	return ActivityID(u), err
}

func ParseInvitationID(s string) (InvitationID, error) {
	u, err := parseUUID(s, "invitation id")
	return InvitationID(u), err
}

func ParseSpaceID(s string) (SpaceID, error) {
	u, err := parseUUID(s, "space id")
	return SpaceID(u), err
}

func ParseEventID(s string) (EventID, error) {
	u, err := parseUUID(s, "event id")
	return EventID(u), err
}

func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be nil")
	}
	return u, nil
}
