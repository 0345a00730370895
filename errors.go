package wizard

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedAction marks a payload the reducer refused; state is unchanged.
	ErrMalformedAction = errors.New("wizard: malformed action payload")
	// ErrUnknownAction marks an action variant the reducer does not handle.
	// This is a programming error and panics in development mode.
	ErrUnknownAction = errors.New("wizard: unknown action")
	// ErrNotFound marks a payload referencing an entity that does not exist.
	ErrNotFound = errors.New("wizard: entity not found")
	// ErrPhotoNotFound is returned when a staging photo id is absent, usually
	// because the photo was removed while its classification was in flight.
	ErrPhotoNotFound = fmt.Errorf("%w: staging photo", ErrNotFound)
	// ErrPhotoNotReady is returned when assigning a photo that is still
	// pending or classifying.
	ErrPhotoNotReady = errors.New("wizard: staging photo is not classified yet")
	// ErrSlotConflict is returned when a slot is already held by another photo.
	ErrSlotConflict = errors.New("wizard: slot already assigned")
	// ErrUnchanged is returned by the reducer for accepted actions that leave
	// the state as it was. The store treats it as success.
	ErrUnchanged = errors.New("wizard: state unchanged")
	// ErrStoreClosed is returned when dispatching to a closed store.
	ErrStoreClosed = errors.New("wizard: store closed")
)

// ActionError records which action the reducer rejected and why.
type ActionError struct {
	Action string
	Reason string
	Err    error
}

func (e *ActionError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Reason == "" {
		return fmt.Sprintf("wizard: %s: %v", e.Action, e.Err)
	}
	return fmt.Sprintf("wizard: %s: %s: %v", e.Action, e.Reason, e.Err)
}

func (e *ActionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func malformed(action Action, format string, args ...any) error {
	return &ActionError{Action: actionName(action), Reason: fmt.Sprintf(format, args...), Err: ErrMalformedAction}
}

func rejected(action Action, err error, format string, args ...any) error {
	return &ActionError{Action: actionName(action), Reason: fmt.Sprintf(format, args...), Err: err}
}

func actionName(action Action) string {
	if action == nil {
		return "<nil>"
	}
	return action.ActionType()
}
