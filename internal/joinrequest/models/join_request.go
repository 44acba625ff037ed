package models

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	id "joinflow/pkg/domain"
	dErrors "joinflow/pkg/domain-errors"
	"joinflow/pkg/email"
)

// MaxCommentLength bounds the free-text comment, counted in characters.
const MaxCommentLength = 255

// secretTokenBytes of randomness back every token.
const secretTokenBytes = 16

// Kind tells invitations (a member invites a candidate) from requests
// (a candidate asks to join).
type Kind string

const (
	KindInvite  Kind = "invite"
	KindRequest Kind = "request"
)

func (k Kind) IsValid() bool {
	return k == KindInvite || k == KindRequest
}

// Outcome is the processing result. Pending until accepted or declined.
type Outcome string

const (
	OutcomePending  Outcome = "pending"
	OutcomeAccepted Outcome = "accepted"
	OutcomeDeclined Outcome = "declined"
)

// JoinRequest is an invitation or a request to join a group.
//
// Invariants:
//   - SecretToken is set once by New and never changes
//   - ProcessedAt is nil exactly when Outcome is pending
//   - a processed request never changes again
//
// ID is internal; it never leaves the process. SecretToken is the external
// identifier.
type JoinRequest struct {
	ID           id.JoinRequestID `json:"-"`
	SecretToken  string           `json:"token"`
	Kind         Kind             `json:"kind"`
	CandidateID  id.UserID        `json:"candidate_id"`
	IntroducerID *id.UserID       `json:"introducer_id,omitempty"`
	Group        id.Ref           `json:"group"`
	Role         id.Role          `json:"role"`
	Email        string           `json:"email"`
	Comment      string           `json:"comment,omitempty"`
	Outcome      Outcome          `json:"outcome"`
	ProcessedAt  *time.Time       `json:"processed_at,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// NewParams carries the caller-supplied fields of a new request.
type NewParams struct {
	Kind         Kind
	CandidateID  id.UserID
	IntroducerID *id.UserID
	Group        id.Ref
	Role         id.Role
	Email        string
	Comment      string
}

// New validates p and builds a pending request with a fresh secret token.
func New(p NewParams, now time.Time) (*JoinRequest, error) {
	if p.Kind == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "kind is required")
	}
	if !p.Kind.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "kind must be invite or request")
	}
	if p.CandidateID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "candidate is required")
	}
	if p.Kind == KindInvite && (p.IntroducerID == nil || p.IntroducerID.IsNil()) {
		return nil, dErrors.New(dErrors.CodeValidation, "an invitation needs an introducer")
	}
	if !p.Group.Kind.IsGroup() || p.Group.ID == uuid.Nil {
		return nil, dErrors.New(dErrors.CodeValidation, "group is required")
	}
	if !p.Role.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "role must be admin or member")
	}
	addr := email.Normalize(p.Email)
	if addr == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "email is required")
	}
	if !email.IsValid(addr) {
		return nil, dErrors.New(dErrors.CodeValidation, "email is invalid")
	}
	comment := strings.TrimSpace(p.Comment)
	if utf8.RuneCountInString(comment) > MaxCommentLength {
		return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("comment must be at most %d characters", MaxCommentLength))
	}

	token, err := GenerateSecretToken()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate secret token")
	}
	var introducer *id.UserID
	if p.IntroducerID != nil {
		i := *p.IntroducerID
		introducer = &i
	}
	return &JoinRequest{
		ID:           id.JoinRequestID(uuid.New()),
		SecretToken:  token,
		Kind:         p.Kind,
		CandidateID:  p.CandidateID,
		IntroducerID: introducer,
		Group:        p.Group,
		Role:         p.Role,
		Email:        addr,
		Comment:      comment,
		Outcome:      OutcomePending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// GenerateSecretToken returns 16 random bytes as unpadded URL-safe base64.
func GenerateSecretToken() (string, error) {
	b := make([]byte, secretTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func (r *JoinRequest) IsProcessed() bool {
	return r.ProcessedAt != nil
}

// IsAccepted reports whether the request was processed with acceptance.
func (r *JoinRequest) IsAccepted() bool {
	return r.Outcome == OutcomeAccepted
}

// CanProcess returns CodeConflict once the request was accepted or declined.
func (r *JoinRequest) CanProcess() error {
	if r.IsProcessed() {
		return dErrors.New(dErrors.CodeConflict, "join request was already processed")
	}
	return nil
}

// ApplyOutcome moves a pending request to its terminal state.
// Callers check CanProcess first.
func (r *JoinRequest) ApplyOutcome(outcome Outcome, now time.Time) {
	processedAt := now
	r.Outcome = outcome
	r.ProcessedAt = &processedAt
	r.UpdatedAt = now
}
