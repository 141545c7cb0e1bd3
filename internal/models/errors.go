package models

import (
	"errors"
	"fmt"
)

// ErrorCode is the stable, user-visible identifier of a booking failure
type ErrorCode string

const (
	CodeInvalidSegment         ErrorCode = "INVALID_SEGMENT"
	CodeInsufficientSeats      ErrorCode = "INSUFFICIENT_SEATS"
	CodeConflict               ErrorCode = "SEAT_CONFLICT"
	CodeQuotaExceeded          ErrorCode = "CANCELLATION_LIMIT_EXCEEDED"
	CodeOrderNotFound          ErrorCode = "ORDER_NOT_FOUND"
	CodeInvalidStateTransition ErrorCode = "INVALID_STATE_TRANSITION"
	CodeOrderExpired           ErrorCode = "ORDER_EXPIRED"
	CodeTrainNotFound          ErrorCode = "TRAIN_NOT_FOUND"
	CodeValidation             ErrorCode = "VALIDATION_ERROR"
)

// BookingError is the error type returned by the booking core.
// Two BookingErrors match under errors.Is when their codes are equal.
type BookingError struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *BookingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *BookingError) Unwrap() error {
	return e.Err
}

// Is matches on code so sentinels work through wrapping
func (e *BookingError) Is(target error) bool {
	var t *BookingError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// Retryable reports whether the caller may retry the same request
func (e *BookingError) Retryable() bool {
	return e.Code == CodeConflict
}

// WithMessage returns a copy of the error carrying a more specific message
func (e *BookingError) WithMessage(format string, args ...interface{}) *BookingError {
	return &BookingError{Code: e.Code, Message: fmt.Sprintf(format, args...), Err: e.Err}
}

// Wrap returns a copy of the error wrapping a cause
func (e *BookingError) Wrap(cause error) *BookingError {
	return &BookingError{Code: e.Code, Message: e.Message, Err: cause}
}

var (
	ErrInvalidSegment         = &BookingError{Code: CodeInvalidSegment, Message: "invalid travel segment"}
	ErrInsufficientSeats      = &BookingError{Code: CodeInsufficientSeats, Message: "not enough seats available"}
	ErrConflict               = &BookingError{Code: CodeConflict, Message: "seat was taken by another booking, please try again"}
	ErrQuotaExceeded          = &BookingError{Code: CodeQuotaExceeded, Message: "daily cancellation limit reached"}
	ErrOrderNotFound          = &BookingError{Code: CodeOrderNotFound, Message: "order not found"}
	ErrInvalidStateTransition = &BookingError{Code: CodeInvalidStateTransition, Message: "order status does not allow this operation"}
	ErrOrderExpired           = &BookingError{Code: CodeOrderExpired, Message: "order payment window has expired"}
	ErrTrainNotFound          = &BookingError{Code: CodeTrainNotFound, Message: "train is not scheduled on this date"}
	ErrValidation             = &BookingError{Code: CodeValidation, Message: "invalid booking request"}
)

// AsBookingError extracts a BookingError from an error chain
func AsBookingError(err error) (*BookingError, bool) {
	var be *BookingError
	if errors.As(err, &be) {
		return be, true
	}
	return nil, false
}
