package service

import (
	"errors"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
)

var (
	ErrValidation            = errors.New("validation failed")
	ErrDuplicateAccount      = errors.New("an account with this email already exists")
	ErrNotFound              = errors.New("account not found")
	ErrInvalidCredentials    = errors.New("invalid email or password")
	ErrBadCredentials        = errors.New("password mismatch")
	ErrInvalidOrExpiredCode  = errors.New("invalid or expired verification code")
	ErrInvalidOrExpiredToken = errors.New("invalid or expired reset token")
	ErrDispatchFailure       = errors.New("failed to send email")
	ErrStoreFailure          = errors.New("account store failure")

	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

// ValidationError lists the offending fields, keyed by their JSON name.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func fieldError(field, msg string) error {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

// asValidationError converts ozzo-validation output. Internal rule errors
// are passed through unchanged.
func asValidationError(err error) error {
	if err == nil {
		return nil
	}
	var errs validation.Errors
	if !errors.As(err, &errs) {
		return err
	}

	fields := make(map[string]string, len(errs))
	for name, fieldErr := range errs {
		if fieldErr != nil {
			fields[name] = fieldErr.Error()
		}
	}
	return &ValidationError{Fields: fields}
}
