package model

import "time"

// Notification codes. A notification reaches the persistent log when its
// code is greater or equal to the configured logging level.
const (
	CodeVerbose   = 0
	CodeInfo      = 1
	CodeAlert     = 2
	CodeKeepAlive = 10
)

type Notification struct {
	Message string
	Code    int
	Time    time.Time
}
