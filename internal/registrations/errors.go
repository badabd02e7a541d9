package registrations

import "errors"

var (
	// ErrNotFound means the registration or its event does not exist.
	ErrNotFound = errors.New("registration not found")
	// ErrInvalidState means the operation is not valid from the current status.
	ErrInvalidState = errors.New("invalid state transition")
	// ErrUnauthorized means the caller does not own the registration.
	ErrUnauthorized = errors.New("wallet does not own this registration")
	// ErrDuplicate means the wallet already registered for the event.
	ErrDuplicate = errors.New("wallet already registered for this event")
)
