package model

import (
	"errors"
)

// Error kinds raised by the job engine and the port adapters. Callers match
// them with errors.Is, the concrete message carries the details.
var (
	ErrMalformedCommand = errors.New("malformed command")
	ErrResponseMismatch = errors.New("response mismatch")
	ErrGoToOutOfRange   = errors.New("goto out of range")
	ErrOverflow         = errors.New("pending commands overflow")
	ErrPort             = errors.New("port error")

	// ErrTimeout means no line arrived within the read timeout. The engine
	// treats it as "nothing to report yet", never as a failure.
	ErrTimeout = errors.New("read timeout")
)
