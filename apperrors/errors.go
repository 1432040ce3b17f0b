// Package apperrors holds the error taxonomy shared by the onboarding wizard,
// the scheduling flows and the HTTP layer.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrorCode is a stable, machine readable error identifier.
type ErrorCode string

const (
	CodeValidation        ErrorCode = "VALIDATION_FAILED"
	CodeProvisioning      ErrorCode = "PROVISIONING_FAILED"
	CodePersistence       ErrorCode = "STEP_SAVE_FAILED"
	CodeVerification      ErrorCode = "VERIFICATION_FAILED"
	CodeStepNotReachable  ErrorCode = "STEP_NOT_REACHABLE"
	CodeStepSaveInFlight  ErrorCode = "STEP_SAVE_IN_FLIGHT"
	CodeSessionClosed     ErrorCode = "SESSION_CLOSED"
	CodeDocumentUpload    ErrorCode = "DOCUMENT_UPLOAD_FAILED"
	CodeAvailabilityInput ErrorCode = "AVAILABILITY_INPUT_INVALID"
	CodeAvailabilityTaken ErrorCode = "AVAILABILITY_CONFLICT"
	CodeConfirmation      ErrorCode = "CONFIRMATION_REQUIRED"
	CodeUnauthenticated   ErrorCode = "BOOKING_UNAUTHENTICATED"
	CodeNoSlotSelected    ErrorCode = "BOOKING_NO_SLOT"
	CodeBooking           ErrorCode = "BOOKING_FAILED"
	CodePayment           ErrorCode = "PAYMENT_FAILED"
	CodeNotFound          ErrorCode = "NOT_FOUND"
	CodeForbidden         ErrorCode = "FORBIDDEN"
)

// AppError is a user-facing error with a specific, actionable message.
type AppError struct {
	Code      ErrorCode         `json:"code"`
	Message   string            `json:"message"`
	Details   string            `json:"details,omitempty"`
	Retryable bool              `json:"retryable"`
	Fields    map[string]string `json:"fields,omitempty"`
	Timestamp time.Time         `json:"timestamp"`

	cause error
}

func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.cause }

func newError(code ErrorCode, msg string, retryable bool, cause error) *AppError {
	e := &AppError{
		Code:      code,
		Message:   msg,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
	if cause != nil {
		e.Details = cause.Error()
	}
	return e
}

// NewValidationError carries per-field messages. It blocks step advancement.
func NewValidationError(fields map[string]string) *AppError {
	e := newError(CodeValidation, "Please correct the highlighted fields", false, nil)
	e.Fields = fields
	return e
}

func NewProvisioningError(cause error) *AppError {
	return newError(CodeProvisioning, "We could not set up your payment account. Please try again.", true, cause)
}

func NewPersistenceError(step string, cause error) *AppError {
	return newError(CodePersistence, fmt.Sprintf("Saving %s failed. Your input is kept, please try again.", step), true, cause)
}

func NewVerificationError(cause error) *AppError {
	return newError(CodeVerification, "Account verification failed. Please review your details and retry.", true, cause)
}

func NewStepNotReachableError(step int) *AppError {
	return newError(CodeStepNotReachable, fmt.Sprintf("Step %d is not available yet. Complete the previous steps first.", step), false, nil)
}

func NewInvalidTransitionError(msg string) *AppError {
	return newError(CodeStepNotReachable, msg, false, nil)
}

func NewStepSaveInFlightError() *AppError {
	return newError(CodeStepSaveInFlight, "A save is already in progress for this step", true, nil)
}

func NewSessionClosedError() *AppError {
	return newError(CodeSessionClosed, "This onboarding session has been closed", false, nil)
}

func NewDocumentUploadError(cause error) *AppError {
	return newError(CodeDocumentUpload, "Uploading the document failed. Please try again.", true, cause)
}

// NewAvailabilityInputError is raised locally and never reaches the network.
func NewAvailabilityInputError(msg string) *AppError {
	return newError(CodeAvailabilityInput, msg, false, nil)
}

func NewAvailabilityConflictError(msg string) *AppError {
	return newError(CodeAvailabilityTaken, msg, false, nil)
}

func NewConfirmationRequiredError(action string) *AppError {
	return newError(CodeConfirmation, fmt.Sprintf("Please confirm that you want to %s", action), false, nil)
}

func NewUnauthenticatedError() *AppError {
	return newError(CodeUnauthenticated, "Please sign in to book a lesson", false, nil)
}

func NewNoSlotSelectedError() *AppError {
	return newError(CodeNoSlotSelected, "Please select an available time slot", false, nil)
}

func NewBookingError(msg string, cause error) *AppError {
	return newError(CodeBooking, msg, true, cause)
}

// NewPaymentError leaves the booking provisional. The user may retry.
func NewPaymentError(cause error) *AppError {
	return newError(CodePayment, "Payment could not be completed. Your booking is pending, please retry the payment.", true, cause)
}

func NewNotFoundError(what string) *AppError {
	return newError(CodeNotFound, fmt.Sprintf("%s not found", what), false, nil)
}

func NewForbiddenError(msg string) *AppError {
	return newError(CodeForbidden, msg, false, nil)
}

// CodeOf returns the code of the first AppError in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

// Is reports whether err carries the given code.
func Is(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

// HTTPStatus maps an error to the status code the API responds with.
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case CodeValidation, CodeAvailabilityInput, CodeNoSlotSelected, CodeConfirmation:
		return http.StatusBadRequest
	case CodeUnauthenticated:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeStepNotReachable, CodeStepSaveInFlight, CodeAvailabilityTaken, CodeSessionClosed:
		return http.StatusConflict
	case CodePayment:
		return http.StatusPaymentRequired
	case CodeProvisioning, CodePersistence, CodeVerification, CodeDocumentUpload, CodeBooking:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
