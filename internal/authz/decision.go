package authz

import (
	"errors"
)

// Outcome classifies a decision.
type Outcome int

const (
	// OutcomeAllow permits the action.
	OutcomeAllow Outcome = iota
	// OutcomeForbidden denies because of role, ownership or membership.
	OutcomeForbidden
	// OutcomeNotFound denies because a referenced entity does not exist.
	OutcomeNotFound
	// OutcomeConflict denies because the write would duplicate a unique key.
	OutcomeConflict
	// OutcomeInvalidState denies because a business precondition does not hold.
	OutcomeInvalidState
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAllow:
		return "allow"
	case OutcomeForbidden:
		return "forbidden"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeConflict:
		return "conflict"
	case OutcomeInvalidState:
		return "invalid_state"
	default:
		return "unknown"
	}
}

var (
	// ErrForbidden matches denials caused by role, ownership or membership.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound matches denials caused by a dangling reference.
	ErrNotFound = errors.New("not found")
	// ErrConflict matches uniqueness violations.
	ErrConflict = errors.New("conflict")
	// ErrInvalidState matches violated preconditions such as non-enrollment.
	ErrInvalidState = errors.New("invalid state")
)

// Decision is the result of evaluating a Request.
type Decision struct {
	Outcome Outcome
	Reason  string
}

// Allowed reports whether the decision permits the action.
func (d Decision) Allowed() bool {
	return d.Outcome == OutcomeAllow
}

// Err converts a denial into an error. It returns nil when the decision allows.
func (d Decision) Err() error {
	if d.Allowed() {
		return nil
	}
	return &DenyError{Outcome: d.Outcome, Reason: d.Reason}
}

// DenyError is returned by Decision.Err. It unwraps to the sentinel that
// matches its outcome so callers can use errors.Is.
type DenyError struct {
	Outcome Outcome
	Reason  string
}

func (e *DenyError) Error() string {
	if e.Reason != "" {
		return e.Reason
	}
	return e.Unwrap().Error()
}

// Unwrap returns the sentinel for the outcome.
func (e *DenyError) Unwrap() error {
	switch e.Outcome {
	case OutcomeNotFound:
		return ErrNotFound
	case OutcomeConflict:
		return ErrConflict
	case OutcomeInvalidState:
		return ErrInvalidState
	default:
		return ErrForbidden
	}
}

func allow() Decision {
	return Decision{Outcome: OutcomeAllow}
}

func forbidden(reason string) Decision {
	return Decision{Outcome: OutcomeForbidden, Reason: reason}
}

func notFound(reason string) Decision {
	return Decision{Outcome: OutcomeNotFound, Reason: reason}
}

func conflict(reason string) Decision {
	return Decision{Outcome: OutcomeConflict, Reason: reason}
}

func invalidState(reason string) Decision {
	return Decision{Outcome: OutcomeInvalidState, Reason: reason}
}
