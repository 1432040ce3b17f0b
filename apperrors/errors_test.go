package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOf_WrappedError(t *testing.T) {
	err := fmt.Errorf("next: %w", NewPersistenceError("bank account", errors.New("timeout")))

	assert.Equal(t, CodePersistence, CodeOf(err))
	assert.True(t, Is(err, CodePersistence))
	assert.False(t, Is(err, CodeValidation))
	assert.Equal(t, ErrorCode(""), CodeOf(errors.New("plain")))
}

func TestAppError_UnwrapKeepsCause(t *testing.T) {
	cause := errors.New("stripe unavailable")
	err := NewProvisioningError(cause)

	assert.ErrorIs(t, err, cause)
	assert.True(t, err.Retryable)
	assert.Contains(t, err.Error(), "stripe unavailable")
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", NewValidationError(map[string]string{"iban": "Invalid IBAN"}), http.StatusBadRequest},
		{"availability input", NewAvailabilityInputError("End time must be after start time"), http.StatusBadRequest},
		{"unauthenticated", NewUnauthenticatedError(), http.StatusUnauthorized},
		{"forbidden", NewForbiddenError("not yours"), http.StatusForbidden},
		{"not found", NewNotFoundError("Lesson"), http.StatusNotFound},
		{"step locked", NewStepNotReachableError(4), http.StatusConflict},
		{"conflict", NewAvailabilityConflictError("overlap"), http.StatusConflict},
		{"payment", NewPaymentError(errors.New("card declined")), http.StatusPaymentRequired},
		{"provisioning", NewProvisioningError(errors.New("x")), http.StatusBadGateway},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestNewValidationError_Fields(t *testing.T) {
	err := NewValidationError(map[string]string{"phone": "Invalid phone number"})

	assert.Equal(t, CodeValidation, err.Code)
	assert.Equal(t, "Invalid phone number", err.Fields["phone"])
	assert.False(t, err.Retryable)
}
