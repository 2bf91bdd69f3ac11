package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/geotdo/leicactl/internal/model"
)

// Engine executes a job one cycle at a time. All of its state is owned by
// the goroutine calling RunCycle, it does no locking on its own.
type Engine struct {
	settings *model.Settings
	port     model.Port
	job      model.Job
	now      func() time.Time

	jobRow  int
	nextDue time.Time
	pending []string // expected response substrings, oldest first
}

func NewEngine(settings *model.Settings, port model.Port, job model.Job) *Engine {
	e := &Engine{
		settings: settings,
		port:     port,
		job:      job,
		now:      time.Now,
	}
	e.reset()
	return e
}

func (e *Engine) reset() {
	e.jobRow = 0
	e.nextDue = e.now()
	e.pending = nil
}

// LoadJob replaces the job and resets the cursor. Call it only while no
// supervisor drives the engine.
func (e *Engine) LoadJob(job model.Job) {
	e.job = job
	e.reset()
}

func (e *Engine) JobRow() int        { return e.jobRow }
func (e *Engine) NextDue() time.Time { return e.nextDue }
func (e *Engine) PendingCount() int  { return len(e.pending) }

// Finished reports the whole job was sent and acknowledged.
func (e *Engine) Finished() bool {
	return e.jobRow >= len(e.job) && len(e.pending) == 0
}

// InitializeTask prepares a fresh run: the cursor starts at the first row
// and the port is opened.
func (e *Engine) InitializeTask() error {
	e.reset()
	if e.port.IsOpen() {
		return nil
	}
	return e.openPort()
}

// RunCycle advances the job by at most one instruction.
//
//  1. opens the port when closed
//  2. consumes every response which is already available
//  3. fails with ErrOverflow when too many commands wait for a response
//  4. returns "" when the job is done or the next instruction is not due
//  5. executes the instruction at the cursor
//
// Responses are drained before anything else, so a cycle which only receives
// acknowledgments still shrinks the backlog.
func (e *Engine) RunCycle(ts time.Time) (string, error) {
	if !e.port.IsOpen() {
		if err := e.openPort(); err != nil {
			return "", err
		}
	}

	if err := e.drain(); err != nil {
		return "", err
	}

	if limit := e.settings.MaxPendingCommands(); len(e.pending) > limit {
		return "", fmt.Errorf("%w: pending commands count of %d exceeds the limit of %d",
			model.ErrOverflow, len(e.pending), limit)
	}

	if e.jobRow >= len(e.job) {
		return "", nil
	}
	if e.nextDue.After(ts) {
		return "", nil
	}
	e.nextDue = ts

	row := e.jobRow
	in, err := e.job.Instruction(row)
	if err != nil {
		e.jobRow++
		return "", fmt.Errorf("the command line at row %d: %w", row, err)
	}

	switch in.Kind {
	case model.KindGoTo:
		return e.goTo(in)
	default:
		return e.send(in)
	}
}

func (e *Engine) goTo(in model.Instruction) (string, error) {
	if in.Target >= len(e.job) {
		return "", fmt.Errorf("%w: goto command jumps to line %d which does not exist in the job",
			model.ErrGoToOutOfRange, in.Target)
	}
	e.jobRow = in.Target
	if in.HasDelay {
		e.nextDue = e.nextDue.Add(in.ExtraDelay)
	}
	return fmt.Sprintf("Going to line %d", e.jobRow), nil
}

func (e *Engine) send(in model.Instruction) (string, error) {
	if err := e.port.WriteLine(in.Payload); err != nil {
		return "", portError("write", err)
	}
	e.pending = append(e.pending, in.Expected)
	e.jobRow++
	if in.HasDelay {
		e.nextDue = e.nextDue.Add(in.ExtraDelay)
	}
	return fmt.Sprintf("Sent command %s, next command due %s",
		in.Payload, e.nextDue.Format("15:04:05.000")), nil
}

// drain reads responses until the queue is empty or the port has nothing
// more to say. A consumed entry is never requeued, not even on a mismatch.
func (e *Engine) drain() error {
	for len(e.pending) > 0 {
		response, err := e.port.ReadLine()
		if errors.Is(err, model.ErrTimeout) {
			return nil
		}
		if err != nil {
			return portError("read", err)
		}

		expected := strings.TrimSpace(e.pending[0])
		e.pending = e.pending[1:]
		if !strings.Contains(strings.ToLower(response), strings.ToLower(expected)) {
			return fmt.Errorf("%w: the response %s did not match the expected one: %s",
				model.ErrResponseMismatch, response, expected)
		}
	}
	return nil
}

// FinalizeTask sends the final command, closes the port and resets the
// engine. The reset happens even when the port fails. An empty final command
// is not sent.
func (e *Engine) FinalizeTask() error {
	defer e.reset()

	var errs []error
	if e.port.IsOpen() && e.settings.FinalCommand != "" {
		if err := e.port.WriteLine(e.settings.FinalCommand); err != nil {
			errs = append(errs, portError("write final command", err))
		}
	}
	if err := e.port.Close(); err != nil {
		errs = append(errs, portError("close", err))
	}
	return errors.Join(errs...)
}

func (e *Engine) openPort() error {
	if err := e.port.Open(); err != nil {
		return portError("open", err)
	}
	return nil
}

// portError makes sure a failure coming from a Port matches ErrPort.
func portError(op string, err error) error {
	if errors.Is(err, model.ErrPort) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", model.ErrPort, op, err)
}
