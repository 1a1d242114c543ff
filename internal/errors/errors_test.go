package errors

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"syncdal/internal/dal/types"
)

func TestFromOutcomeMapsEveryReason(t *testing.T) {
	id := types.NewObjectID()
	cases := []struct {
		reason types.FailureReason
		want   ErrorType
	}{
		{types.ReasonNotFound, ErrorTypeNotFound},
		{types.ReasonAlreadyExists, ErrorTypeAlreadyExists},
		{types.ReasonConflictPendingDelete, ErrorTypeConflictPendingDelete},
		{types.ReasonTimeout, ErrorTypeTimeout},
		{types.ReasonShutdown, ErrorTypeShutdown},
		{types.ReasonAdapterRejected, ErrorTypeAdapterRejected},
		{types.ReasonAdapterFailed, ErrorTypeAdapterFailed},
		{types.ReasonUnspecified, ErrorTypeInternal},
	}
	for _, tc := range cases {
		err := FromOutcome(types.Failure(id, tc.reason))
		require.NotNil(t, err, tc.reason)
		assert.Equal(t, tc.want, err.Type, tc.reason)
	}
}

func TestFromOutcomeNilOnSuccess(t *testing.T) {
	assert.Nil(t, FromOutcome(types.Success(nil)))
}

func TestUnwrapAndIs(t *testing.T) {
	cause := errors.New("socket closed")
	err := Connection("dynamodb", cause)
	assert.ErrorIs(t, err, cause)
	assert.True(t, errors.Is(err, &UnifiedError{Type: ErrorTypeConnection}))
	assert.False(t, errors.Is(err, &UnifiedError{Type: ErrorTypeTimeout}))
}

func TestHTTPStatusMapping(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, HTTPStatus(NotFound("x")))
	assert.Equal(t, http.StatusConflict, HTTPStatus(AlreadyExists("x")))
	assert.Equal(t, http.StatusConflict, HTTPStatus(ConflictPendingDelete("x")))
	assert.Equal(t, http.StatusGatewayTimeout, HTTPStatus(Timeout("user", "read")))
	assert.Equal(t, http.StatusServiceUnavailable, HTTPStatus(Shutdown()))
	assert.Equal(t, http.StatusBadGateway, HTTPStatus(AdapterFailed("x")))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(Validation("bad body")))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("plain")))
}

func TestRetryability(t *testing.T) {
	assert.True(t, IsRetryable(Timeout("user", "read")))
	assert.True(t, IsRetryable(AdapterFailed("x")))
	assert.False(t, IsRetryable(NotFound("x")))
	assert.False(t, IsRetryable(errors.New("plain")))
}
