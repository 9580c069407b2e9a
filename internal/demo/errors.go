package demo

import (
	"errors"
	"strings"
)

var (
	// ErrNotFound is returned when a demo does not exist or was soft-deleted.
	ErrNotFound = errors.New("demo not found")
	// ErrMemberExists is returned when a user is already a member of a demo.
	ErrMemberExists = errors.New("member already assigned to demo")
	// ErrUserNotFound is returned when the user directory does not know a member.
	ErrUserNotFound = errors.New("user not found")
	// ErrDirectoryUnavailable is returned when the user directory cannot be reached.
	ErrDirectoryUnavailable = errors.New("user directory unavailable")
)

// UploadError rejects an uploaded logo file. Msg is shown to the client.
type UploadError struct {
	Msg string
}

func (e *UploadError) Error() string { return e.Msg }

// FieldError describes one invalid input field. Loc is the path to the field,
// e.g. ["body", "name"].
type FieldError struct {
	Type  string   `json:"type"`
	Loc   []string `json:"loc"`
	Msg   string   `json:"msg"`
	Input any      `json:"input"`
}

// ValidationError collects every field error found in a payload.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		msgs = append(msgs, strings.Join(fe.Loc, ".")+": "+fe.Msg)
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

func (e *ValidationError) add(typ string, loc []string, msg string, input any) {
	e.Errors = append(e.Errors, FieldError{Type: typ, Loc: loc, Msg: msg, Input: input})
}

// orNil returns e when it holds errors and nil otherwise.
func (e *ValidationError) orNil() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e
}

// Invalid builds a single-field ValidationError.
func Invalid(typ string, loc []string, msg string, input any) *ValidationError {
	v := &ValidationError{}
	v.add(typ, loc, msg, input)
	return v
}
