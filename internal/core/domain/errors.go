package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation          = errors.New("validation failed")
	ErrNoLanguageSelected  = errors.New("no language selected")
	ErrTransport           = errors.New("transport failure")
	ErrDuplicateSubmission = errors.New("response already submitted")
	ErrFileIntegrity       = errors.New("file integrity check failed")
	ErrInvalidState        = errors.New("operation not allowed in current state")
	ErrTemporary           = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// UserMessage returns the cause attached by the innermost WrapError, which
// is what status text shows. Errors without a kind are returned verbatim.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	for err != nil {
		switch e := err.(type) {
		case interface{ Unwrap() []error }:
			parts := e.Unwrap()
			if len(parts) == 0 {
				return msg
			}
			err = parts[len(parts)-1]
			msg = err.Error()
		case interface{ Unwrap() error }:
			err = e.Unwrap()
		default:
			return msg
		}
	}
	return msg
}
