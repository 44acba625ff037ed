package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "joinflow/pkg/domain"
	dErrors "joinflow/pkg/domain-errors"
)

func TestNewEntry(t *testing.T) {
	now := time.Now()
	request := id.JoinRequestRef(id.JoinRequestID(uuid.New()))
	space := id.SpaceRef(id.SpaceID(uuid.New()))

	t.Run("copies parameters", func(t *testing.T) {
		params := Parameters{ParamUsername: "Ada"}
		e, err := NewEntry(request, space, KeyJoinRequestRequest, params, now)
		require.NoError(t, err)

		params[ParamUsername] = "changed"
		assert.Equal(t, "Ada", e.Param(ParamUsername))
		assert.False(t, e.Notified)
		assert.False(t, e.ID.IsNil())
		assert.Equal(t, now, e.CreatedAt)
	})

	t.Run("nil parameters become empty map", func(t *testing.T) {
		e, err := NewEntry(request, space, KeyJoinRequestRequest, nil, now)
		require.NoError(t, err)
		assert.NotNil(t, e.Parameters)
	})

	t.Run("rejects missing pieces", func(t *testing.T) {
		_, err := NewEntry(request, space, "", nil, now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

		_, err = NewEntry(id.Ref{}, space, KeyGroupJoin, nil, now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

		_, err = NewEntry(request, id.Ref{Kind: id.RefSpace}, KeyGroupJoin, nil, now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func TestFilter_Matches(t *testing.T) {
	now := time.Now()
	request := id.JoinRequestRef(id.JoinRequestID(uuid.New()))
	space := id.SpaceRef(id.SpaceID(uuid.New()))

	created, err := NewEntry(request, space, KeyJoinRequestInvite, nil, now)
	require.NoError(t, err)
	processed, err := NewEntry(space, request, KeyGroupJoin, Parameters{ParamJoinRequestID: request.ID.String()}, now)
	require.NoError(t, err)
	direct, err := NewEntry(space, space, KeyGroupJoin, nil, now)
	require.NoError(t, err)

	assert.True(t, Filter{Key: KeyJoinRequestInvite}.Matches(created))
	assert.False(t, Filter{Key: KeyJoinRequestRequest}.Matches(created))
	assert.True(t, Filter{Key: KeyJoinRequestInvite, TrackableKind: id.RefJoinRequest}.Matches(created))
	assert.False(t, Filter{Key: KeyJoinRequestInvite, TrackableKind: id.RefSpace}.Matches(created))

	byRequest := Filter{Key: KeyGroupJoin, RequireParam: ParamJoinRequestID}
	assert.True(t, byRequest.Matches(processed))
	assert.False(t, byRequest.Matches(direct))
}
