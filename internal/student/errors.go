package student

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the registry.
//
//	if errors.Is(err, student.ErrNotFound) {
//	    // respond 404
//	}
var (
	// ErrValidation is returned when input is missing or malformed. The
	// store is never touched.
	ErrValidation = errors.New("student: invalid input")

	// ErrNotFound is returned when the target record does not exist.
	ErrNotFound = errors.New("student: not found")

	// ErrIntegrity is returned when a write violates a store constraint,
	// such as a duplicate student_id.
	ErrIntegrity = errors.New("student: integrity violation")

	// ErrTransient is returned when the store is unavailable or timed out.
	// Callers may retry.
	ErrTransient = errors.New("student: store unavailable")
)

// Kind classifies a store failure.
type Kind int

// Store failure kinds.
const (
	KindTransient Kind = iota
	KindIntegrity
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindIntegrity:
		return "integrity"
	case KindNotFound:
		return "notfound"
	default:
		return "transient"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindIntegrity:
		return ErrIntegrity
	case KindNotFound:
		return ErrNotFound
	default:
		return ErrTransient
	}
}

// StoreError is a classified record store failure.
type StoreError struct {
	Op        string
	StudentID string
	Kind      Kind
	Err       error
}

func (e *StoreError) Error() string {
	msg := fmt.Sprintf("student: %s", e.Op)
	if e.StudentID != "" {
		msg += fmt.Sprintf(" %q", e.StudentID)
	}
	msg += ": " + e.Kind.String()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the driver error and the kind sentinel.
func (e *StoreError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind.sentinel()}
	}
	return []error{e.Kind.sentinel(), e.Err}
}

// ValidationError names the offending field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("student: invalid %s: %s", e.Field, e.Reason)
}

// Unwrap makes every ValidationError match ErrValidation.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// Outcome maps an operation result to a short label for metrics.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrIntegrity):
		return "integrity"
	default:
		return "transient"
	}
}

// classify ensures err carries one of the four kinds. Errors that already
// do are returned unchanged; anything else is treated as transient.
func classify(op, id string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrValidation) || errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrIntegrity) || errors.Is(err, ErrTransient) {
		return err
	}
	return &StoreError{Op: op, StudentID: id, Kind: KindTransient, Err: err}
}
