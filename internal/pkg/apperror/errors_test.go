package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_StatusMapping(t *testing.T) {
	tests := []struct {
		code   ErrorCode
		status int
	}{
		{ErrCodeValidation, http.StatusBadRequest},
		{ErrCodeUnauthorized, http.StatusUnauthorized},
		{ErrCodeForbidden, http.StatusForbidden},
		{ErrCodeNotFound, http.StatusNotFound},
		{ErrCodeConflict, http.StatusConflict},
		{ErrCodeNetwork, http.StatusServiceUnavailable},
		{ErrCodeInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.status, New(tt.code, "x").HTTPStatus)
		})
	}
}

func TestAppError_WrappedHelpers(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("alert service: %w", Network(cause, "хранилище недоступно"))

	assert.True(t, IsNetwork(err))
	assert.False(t, IsNotFound(err))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, http.StatusServiceUnavailable, StatusOf(err))
}

func TestAppError_IsMatchesSentinel(t *testing.T) {
	err := fmt.Errorf("repo: %w", ErrAlertNotFound)

	assert.ErrorIs(t, err, ErrAlertNotFound)
	assert.NotErrorIs(t, err, ErrProfileNotFound)
	assert.Equal(t, ErrCodeInternal, CodeOf(errors.New("plain")))
}
