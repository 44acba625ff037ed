package models

import (
	"maps"
	"time"

	"github.com/google/uuid"

	id "joinflow/pkg/domain"
	dErrors "joinflow/pkg/domain-errors"
)

// Key discriminates activity types. Keys are part of the stored history and
// must never be renamed.
type Key string

const (
	KeyJoinRequestInvite  Key = "join_request.invite"
	KeyJoinRequestRequest Key = "join_request.request"
	KeyGroupJoin          Key = "group.join"
)

// Parameter names captured in Entry.Parameters.
const (
	ParamCandidateID   = "candidate_id"
	ParamUsername      = "username"
	ParamIntroducerID  = "introducer_id"
	ParamIntroducer    = "introducer"
	ParamJoinRequestID = "join_request_id"
	ParamRole          = "role"
	ParamOutcome       = "outcome"
	ParamGroupName     = "group_name"
)

// Parameters is the snapshot of values a notifier needs later. It is captured
// when the activity is appended so later edits to the source record do not
// rewrite history.
type Parameters map[string]string

// Entry is one append-only event log record.
//
// Invariants:
//   - Key, Parameters, Trackable and Owner never change after Append
//   - Notified only moves from false to true
type Entry struct {
	ID         id.ActivityID
	Trackable  id.Ref
	Owner      id.Ref
	Key        Key
	Parameters Parameters
	Notified   bool
	CreatedAt  time.Time
}

// NewEntry builds an entry ready for Append. Parameters are copied.
func NewEntry(trackable, owner id.Ref, key Key, params Parameters, now time.Time) (*Entry, error) {
	if key == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "activity key is required")
	}
	if !trackable.Kind.IsValid() || trackable.ID == uuid.Nil {
		return nil, dErrors.New(dErrors.CodeValidation, "activity trackable is required")
	}
	if !owner.Kind.IsValid() || owner.ID == uuid.Nil {
		return nil, dErrors.New(dErrors.CodeValidation, "activity owner is required")
	}
	p := make(Parameters, len(params))
	maps.Copy(p, params)
	return &Entry{
		ID:         id.ActivityID(uuid.New()),
		Trackable:  trackable,
		Owner:      owner,
		Key:        key,
		Parameters: p,
		CreatedAt:  now,
	}, nil
}

// Param returns the named parameter, or "" when absent.
func (e *Entry) Param(name string) string {
	return e.Parameters[name]
}

// HasParam reports whether the named parameter was captured.
func (e *Entry) HasParam(name string) bool {
	_, ok := e.Parameters[name]
	return ok
}

// Filter selects unnotified entries.
type Filter struct {
	// Key must match exactly.
	Key Key
	// TrackableKind, when set, restricts entries to that trackable kind.
	TrackableKind id.RefKind
	// RequireParam, when set, keeps only entries that captured that parameter.
	RequireParam string
}

// Matches reports whether e satisfies f, ignoring the notified flag.
func (f Filter) Matches(e *Entry) bool {
	if e.Key != f.Key {
		return false
	}
	if f.TrackableKind != "" && e.Trackable.Kind != f.TrackableKind {
		return false
	}
	if f.RequireParam != "" && !e.HasParam(f.RequireParam) {
		return false
	}
	return true
}
