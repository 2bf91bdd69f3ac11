// Package service replays a job against an instrument.
//
// Engine owns the job cursor. Every RunCycle call first consumes the
// responses already waiting on the port and matches them, oldest first,
// against the expected substrings of the commands sent so far. Then, when the
// instruction at the cursor is due, it either writes a command or jumps to
// another row. A command may postpone the next one by an extra delay, which
// is how a job paces itself against a slow instrument.
//
// Supervisor calls RunCycle at a fixed cadence from its own goroutine, counts
// failures and stops the run once they exceed the configured limit, or when
// asked to via Stop. Whatever happens, the task is finalized before Done is
// closed. Notifications about the run are delivered to model.Listener values
// in the order they happened:
//
//	Supervisor            Engine                  Port
//	    |  InitializeTask ->|  Open --------------->|
//	    |  RunCycle(ts) --->|  ReadLine ... ------->|
//	    |                   |  WriteLine ---------->|
//	    |<- status, error --|                       |
//	    |  FinalizeTask --->|  WriteLine, Close --->|
//
// In timer mode NewScheduler starts the supervisor periodically.
package service
