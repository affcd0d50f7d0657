package memory

import (
	"errors"
	"fmt"
)

// ErrStore marks every persistence failure. Callers must not swallow it:
// losing a write means losing what the user told us.
var ErrStore = errors.New("memory store failure")

// StoreError records which store operation failed.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("memory: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func (e *StoreError) Is(target error) bool { return target == ErrStore }

func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}
