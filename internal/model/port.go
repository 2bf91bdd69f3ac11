package model

import "context"

// Port is a line oriented link to the instrument.
//
// ReadLine returns an error wrapping ErrTimeout when no complete line arrives
// within the configured read timeout; any other failure wraps ErrPort.
type Port interface {
	IsOpen() bool
	Open() error
	Close() error
	WriteLine(text string) error
	ReadLine() (string, error)
}

// Listener receives supervisor notifications. Calls are made sequentially from
// the supervisor goroutine in the order the cycles complete.
type Listener interface {
	Progress(ctx context.Context, n Notification)
	Cancelled(ctx context.Context, n Notification)
}
