package domain

import "errors"

var (
	ErrUnknownField       = errors.New("unknown registration field")
	ErrInvalidTransition  = errors.New("invalid registration state transition")
	ErrNotAcknowledgeable = errors.New("registration is not awaiting acknowledgment")
	ErrSubmissionInFlight = errors.New("registration submission already in flight")
)
