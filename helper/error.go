package helper

import "fmt"

// Error wraps an error with the step it occurred in.
// Nested Errors build up a trace like "process document: extract text: ...".
type Error struct {
	Original error
	Trace    string
}

// NewError creates a new Error for the given step.
func NewError(trace string, original error) error {
	return &Error{
		Original: original,
		Trace:    trace,
	}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Trace, e.Original)
}

func (e *Error) Unwrap() error {
	return e.Original
}
