package domain

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "joinflow/pkg/domain-errors"
)

func TestParseUUID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseUserID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseUserID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseUserID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		validUUID := uuid.New()
		id, err := ParseUserID(validUUID.String())
		require.NoError(t, err)
		assert.Equal(t, UserID(validUUID), id)
	})
}

func TestParseID_TrustBoundary(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"SQL injection attempt", "'; DROP TABLE join_requests;--", true},
		{"Path traversal", "../../../etc/passwd", true},
		{"Null byte injection", "550e8400\x00-e29b-41d4-a716-446655440000", true},
		{"Oversized input", strings.Repeat("a", 1000), true},
		{"Empty string", "", true},
		{"Nil UUID", uuid.Nil.String(), true},
		{"Whitespace only", "   ", true},
		{"Uppercase valid UUID", "550E8400-E29B-41D4-A716-446655440000", false},
		{"Valid UUID lowercase", "550e8400-e29b-41d4-a716-446655440000", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseJoinRequestID(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestAllIDTypes_ConsistentBehavior(t *testing.T) {
	validUUID := uuid.New().String()

	parsers := map[string]func(string) error{
		"user":         func(s string) error { _, err := ParseUserID(s); return err },
		"join_request": func(s string) error { _, err := ParseJoinRequestID(s); return err },
		"activity":     func(s string) error { _, err := ParseActivityID(s); return err },
		"invitation":   func(s string) error { _, err := ParseInvitationID(s); return err },
		"space":        func(s string) error { _, err := ParseSpaceID(s); return err },
		"event":        func(s string) error { _, err := ParseEventID(s); return err },
	}

	for name, parse := range parsers {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, parse(validUUID))
			for _, bad := range []string{"", "invalid", uuid.Nil.String()} {
				require.Error(t, parse(bad), "input %q", bad)
			}
		})
	}
}

func TestRef(t *testing.T) {
	t.Run("parses group refs", func(t *testing.T) {
		u := uuid.New()
		ref, err := ParseGroupRef("space", u.String())
		require.NoError(t, err)
		assert.Equal(t, SpaceRef(SpaceID(u)), ref)
		assert.True(t, ref.Kind.IsGroup())
		assert.Equal(t, "space:"+u.String(), ref.String())
	})

	t.Run("rejects non group kinds as group", func(t *testing.T) {
		_, err := ParseGroupRef("user", uuid.NewString())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects unknown kinds", func(t *testing.T) {
		_, err := ParseRef("Space", uuid.NewString())
		require.Error(t, err)
	})

	t.Run("zero value", func(t *testing.T) {
		assert.True(t, Ref{}.IsZero())
		assert.False(t, UserRef(UserID(uuid.New())).IsZero())
	})
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole("admin")
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, r)

	_, err = ParseRole("owner")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))

	_, err = ParseRole("")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func TestIDsMarshalAsStrings(t *testing.T) {
	u := uuid.New()
	body, err := json.Marshal(struct {
		User UserID `json:"user"`
		Ref  Ref    `json:"ref"`
	}{User: UserID(u), Ref: SpaceRef(SpaceID(u))})
	require.NoError(t, err)
	assert.JSONEq(t, `{"user":"`+u.String()+`","ref":{"kind":"space","id":"`+u.String()+`"}}`, string(body))

	var back struct {
		User UserID `json:"user"`
	}
	require.NoError(t, json.Unmarshal(body, &back))
	assert.Equal(t, UserID(u), back.User)
}
