package service

import (
	"errors"
	"fmt"
)

// ErrInvalidCredentials indicates an unknown email or a wrong password.
var ErrInvalidCredentials = errors.New("invalid email or password")

// InputError reports a request value that passed struct validation but is
// still unusable, such as an unparsable date or a score above the maximum.
type InputError struct {
	Field   string
	Message string
}

func (e *InputError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s %s", e.Field, e.Message)
}

func invalidInput(field, message string) error {
	return &InputError{Field: field, Message: message}
}
