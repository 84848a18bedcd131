package schema

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation matches every *ValidationError via errors.Is.
	ErrValidation = errors.New("schema validation failed")
	// ErrUnsupportedTypeChange is returned when a column cannot be altered
	// in place to its new type.
	ErrUnsupportedTypeChange = errors.New("unsupported column type change")
)

// ValidationError represents a single fatal problem with a schema spec.
type ValidationError struct {
	Table   string
	Path    string // e.g. "fields[2].options"
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	if e.Table != "" {
		b.WriteString(e.Table)
		b.WriteString(": ")
	}
	if e.Path != "" {
		b.WriteString(e.Path)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	return b.String()
}

func (e *ValidationError) Unwrap() error { return e.Err }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// ValidationErrors collects multiple validation failures.
type ValidationErrors []*ValidationError

func (ve ValidationErrors) Error() string {
	msgs := make([]string, len(ve))
	for i, e := range ve {
		msgs[i] = e.Error()
	}
	return fmt.Sprintf("schema validation failed with %d error(s):\n  - %s",
		len(ve), strings.Join(msgs, "\n  - "))
}

func (ve ValidationErrors) Unwrap() []error {
	out := make([]error, len(ve))
	for i, e := range ve {
		out[i] = e
	}
	return out
}

// Warning is a non-fatal finding. Generation continues with reduced output.
type Warning struct {
	Table   string `json:"table,omitempty"`
	Message string `json:"message"`
}

func (w Warning) String() string {
	if w.Table == "" {
		return w.Message
	}
	return w.Table + ": " + w.Message
}
