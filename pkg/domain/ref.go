package domain

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	dErrors "joinflow/pkg/domain-errors"
)

// RefKind enumerates the entity kinds an activity or join request may point at.
type RefKind string

const (
	RefJoinRequest RefKind = "join_request"
	RefSpace       RefKind = "space"
	RefEvent       RefKind = "event"
	RefUser        RefKind = "user"
	RefInvitation  RefKind = "invitation"
)

var validRefKinds = map[RefKind]bool{
	RefJoinRequest: true,
	RefSpace:       true,
	RefEvent:       true,
	RefUser:        true,
	RefInvitation:  true,
}

// IsValid reports whether k is a known kind.
func (k RefKind) IsValid() bool {
	return validRefKinds[k]
}

// IsGroup reports whether k names a group-like container that members can join.
func (k RefKind) IsGroup() bool {
	return k == RefSpace || k == RefEvent
}

// Ref is a tagged reference to one entity: the kind selects the table, ID the row.
//
// Invariants:
//   - Kind is one of the RefKind constants
//   - ID is never uuid.Nil for a ref that was parsed or constructed via helpers
type Ref struct {
	Kind RefKind   `json:"kind"`
	ID   uuid.UUID `json:"id"`
}

func SpaceRef(id SpaceID) Ref             { return Ref{Kind: RefSpace, ID: uuid.UUID(id)} }
func EventRef(id EventID) Ref             { return Ref{Kind: RefEvent, ID: uuid.UUID(id)} }
func UserRef(id UserID) Ref               { return Ref{Kind: RefUser, ID: uuid.UUID(id)} }
func JoinRequestRef(id JoinRequestID) Ref { return Ref{Kind: RefJoinRequest, ID: uuid.UUID(id)} }
func InvitationRef(id InvitationID) Ref   { return Ref{Kind: RefInvitation, ID: uuid.UUID(id)} }

// IsZero reports whether r was never set.
func (r Ref) IsZero() bool {
	return r.Kind == "" && r.ID == uuid.Nil
}

// String renders the ref as "kind:uuid".
func (r Ref) String() string {
	return fmt.Sprintf("%s:%s", r.Kind, r.ID)
}

// ParseRef reads a ref from its kind and id parts.
func ParseRef(kind, id string) (Ref, error) {
	k := RefKind(strings.TrimSpace(kind))
	if !k.IsValid() {
		return Ref{}, dErrors.New(dErrors.CodeInvalidInput, "unknown reference kind")
	}
	u, err := parseUUID(id, string(k)+" id")
	if err != nil {
		return Ref{}, err
	}
	return Ref{Kind: k, ID: u}, nil
}

// ParseGroupRef is ParseRef restricted to group kinds.
func ParseGroupRef(kind, id string) (Ref, error) {
	r, err := ParseRef(kind, id)
	if err != nil {
		return Ref{}, err
	}
	if !r.Kind.IsGroup() {
		return Ref{}, dErrors.New(dErrors.CodeInvalidInput, "reference is not a group")
	}
	return r, nil
}
