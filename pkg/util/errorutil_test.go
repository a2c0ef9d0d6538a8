package util

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToDomainErrorPassesThroughTypedErrors(t *testing.T) {
	original := NewRejection(CodeInvalidInvite, "Invalid invite key")

	mapped := ToDomainError(fmt.Errorf("signup: %w", original))
	require.NotNil(t, mapped)
	assert.Equal(t, CodeInvalidInvite, mapped.Code)
	assert.Equal(t, http.StatusBadRequest, mapped.HTTPStatus)
	assert.Equal(t, "Invalid invite key", mapped.Message)
}

func TestToDomainErrorWrapsUnknownCauses(t *testing.T) {
	cause := errors.New("connection reset")

	mapped := ToDomainError(cause)
	require.NotNil(t, mapped)
	assert.Equal(t, CodeInternalError, mapped.Code)
	assert.Equal(t, http.StatusInternalServerError, mapped.HTTPStatus)
	assert.Equal(t, InternalErrorMessage, mapped.Message)
	assert.ErrorIs(t, mapped, cause)
	assert.NotContains(t, mapped.Message, "connection reset")
}

func TestToDomainErrorNil(t *testing.T) {
	assert.Nil(t, ToDomainError(nil))
	assert.NoError(t, MapError(nil))
}

func TestStatusConstructors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"rejection", NewRejection(CodeInvalidInput, "bad"), http.StatusBadRequest},
		{"forbidden", NewForbidden(CodeAccountBanned, "banned"), http.StatusForbidden},
		{"conflict", NewConflict(CodeUsernameTaken, "taken"), http.StatusConflict},
		{"unauthorized", NewUnauthorized("no session"), http.StatusUnauthorized},
		{"internal", NewInternalError(errors.New("boom")), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var domainErr *DomainError
			require.True(t, errors.As(tt.err, &domainErr))
			assert.Equal(t, tt.wantStatus, domainErr.HTTPStatus)
		})
	}
}
