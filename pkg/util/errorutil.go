package util

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes surfaced by the auth protocols.
const (
	CodeInvalidInput       = "INVALID_INPUT"
	CodeInvalidFormat      = "INVALID_FORMAT"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeAccountBanned      = "ACCOUNT_BANNED"
	CodePasswordMismatch   = "PASSWORD_MISMATCH"
	CodeInvalidInvite      = "INVALID_INVITE"
	CodeInvalidScoreFormat = "INVALID_SCORE_FORMAT"
	CodeSessionNotFound    = "SESSION_NOT_FOUND"
	CodeScoreMismatch      = "SCORE_MISMATCH"
	CodeUsernameTaken      = "USERNAME_TAKEN"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeInternalError      = "INTERNAL_ERROR"
)

// InternalErrorMessage is the only detail callers see for unexpected failures.
const InternalErrorMessage = "Internal server error. Please try again later."

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status}
}

// NewRejection builds a 400-class validation failure with the given code.
func NewRejection(code, message string) error {
	return NewDomainError(code, message, http.StatusBadRequest)
}

func NewForbidden(code, message string) error {
	return NewDomainError(code, message, http.StatusForbidden)
}

func NewConflict(code, message string) error {
	return NewDomainError(code, message, http.StatusConflict)
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternalError,
		Message:    InternalErrorMessage,
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError. Anything not already
// typed becomes an internal error; the original cause stays wrapped for
// server-side logging and is never part of the caller-facing message.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return &DomainError{
		Code:       CodeInternalError,
		Message:    InternalErrorMessage,
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func MapError(err error) error {
	if err == nil {
		return nil
	}
	return ToDomainError(err)
}
