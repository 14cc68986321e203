package store

import (
	"errors"
	"fmt"
)

// ErrStoreUnavailable is matched by every error returned from a storage
// backend: connection loss, timeouts and unexpected constraint violations.
var ErrStoreUnavailable = errors.New("graph store unavailable")

// Error describes a failed store operation.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrStoreUnavailable, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	return target == ErrStoreUnavailable
}

// Wrap returns err as an *Error for op. A nil err stays nil.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	return &Error{Op: op, Err: err}
}
