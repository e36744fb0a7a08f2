package store

import (
	"fmt"
	"sort"
	"strings"
)

type Op string

const (
	OpLoad   Op = "load"
	OpAdd    Op = "add"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

var opMessages = map[Op]string{
	OpLoad:   "Failed to load tasks.",
	OpAdd:    "Failed to add task.",
	OpUpdate: "Failed to update task.",
	OpDelete: "Failed to delete task.",
}

// Error is a remote failure converted to a fixed, user-facing message.
type Error struct {
	Op      Op
	Message string
	Err     error
}

func newError(op Op, err error) *Error {
	return &Error{Op: op, Message: opMessages[op], Err: err}
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches any *Error with the same Op, so errors.Is(err, ErrAdd) works
// regardless of the underlying cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && e != nil && t.Op == e.Op
}

var (
	ErrLoad   = &Error{Op: OpLoad, Message: opMessages[OpLoad]}
	ErrAdd    = &Error{Op: OpAdd, Message: opMessages[OpAdd]}
	ErrUpdate = &Error{Op: OpUpdate, Message: opMessages[OpUpdate]}
	ErrDelete = &Error{Op: OpDelete, Message: opMessages[OpDelete]}
)

// ValidationError lists the draft fields that failed.
type ValidationError struct {
	Fields map[Field]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for f, msg := range e.Fields {
		if msg != "" {
			parts = append(parts, fmt.Sprintf("%s: %s", f, msg))
		}
	}
	sort.Strings(parts)
	return "invalid task: " + strings.Join(parts, ", ")
}
