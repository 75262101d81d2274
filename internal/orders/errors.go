package orders

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound              = errors.New("order not found")
	ErrInvalidAction         = errors.New("invalid action")
	ErrInvalidTransition     = errors.New("invalid transition")
	ErrInsufficientInventory = errors.New("insufficient inventory")
	ErrPersistence           = errors.New("persistence failure")

	// ErrStaleStatus is returned by an OrderStore when the conditional write
	// found the order no longer in the expected status.
	ErrStaleStatus = errors.New("order status changed concurrently")
)

// TransitionError reports an action that is not legal from the order's current status.
type TransitionError struct {
	Current Status
	Action  Action
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s order in status %s", e.Action, e.Current)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }
