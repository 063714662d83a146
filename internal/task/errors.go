package task

import (
	"errors"
	"fmt"
)

var (
	ErrTaskNotFound = errors.New("task not found")
	ErrTaskExists   = errors.New("task already exists")
	ErrNotReady     = errors.New("artifact not ready")
	ErrTerminal     = errors.New("task already finished")
)

type ErrorKind string

const (
	ErrClassification   ErrorKind = "classification"
	ErrProbe            ErrorKind = "probe"
	ErrAcquisition      ErrorKind = "acquisition"
	ErrOutputNotFound   ErrorKind = "output_not_found"
	ErrNoItemsSucceeded ErrorKind = "no_items_succeeded"
	ErrStore            ErrorKind = "store"
	ErrInternal         ErrorKind = "internal"
)

// Error is a classified pipeline failure.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func NewError(kind ErrorKind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the ErrorKind of err, defaulting to ErrInternal.
func KindOf(err error) ErrorKind {
	var taskErr *Error
	if errors.As(err, &taskErr) {
		return taskErr.Kind
	}
	return ErrInternal
}
