package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/geotdo/leicactl/internal/log"
	"github.com/geotdo/leicactl/internal/model"
)

// Cycler is the task driven by a Supervisor. Engine is the production
// implementation.
type Cycler interface {
	InitializeTask() error
	RunCycle(ts time.Time) (string, error)
	FinalizeTask() error
	Finished() bool
}

type Supervisor struct {
	settings         *model.Settings
	task             Cycler
	now              func() time.Time
	stopWhenFinished bool

	listenersMx sync.RWMutex
	listeners   []model.Listener

	running  atomic.Bool
	cancel   atomic.Bool
	failures atomic.Int32
	wake     chan struct{}

	doneMx  sync.Mutex
	done    chan struct{}
	initErr error
}

func NewSupervisor(settings *model.Settings, task Cycler) *Supervisor {
	done := make(chan struct{})
	close(done)
	return &Supervisor{
		settings: settings,
		task:     task,
		now:      time.Now,
		wake:     make(chan struct{}, 1),
		done:     done,
	}
}

// SetStopWhenFinished makes a run end on its own once the task reports the
// whole job was executed.
func (s *Supervisor) SetStopWhenFinished(stop bool) *Supervisor {
	s.stopWhenFinished = stop
	return s
}

func (s *Supervisor) AddListener(l model.Listener) {
	s.listenersMx.Lock()
	defer s.listenersMx.Unlock()
	s.listeners = append(s.listeners, l)
}

// Start launches a run in a new goroutine. It returns false and does nothing
// when a run is already in progress.
func (s *Supervisor) Start(ctx context.Context) bool {
	if !s.running.CompareAndSwap(false, true) {
		return false
	}
	s.cancel.Store(false)
	s.failures.Store(0)
	select {
	case <-s.wake:
	default:
	}

	done := make(chan struct{})
	s.doneMx.Lock()
	s.done = done
	s.initErr = nil
	s.doneMx.Unlock()

	ctx = log.ContextAttrs(ctx, slog.String("run_id", uuid.NewString()))
	go s.run(ctx, done)
	return true
}

// Stop asks the current run to finish. The run notices it at the end of the
// ongoing iteration, finalizes the task and closes Done.
func (s *Supervisor) Stop() {
	if !s.cancel.CompareAndSwap(false, true) {
		return
	}
	s.interrupt()
}

func (s *Supervisor) Running() bool { return s.running.Load() }
func (s *Supervisor) Errors() int   { return int(s.failures.Load()) }

// Done is closed when the latest run has ended. Before the first Start it is
// already closed.
func (s *Supervisor) Done() <-chan struct{} {
	s.doneMx.Lock()
	defer s.doneMx.Unlock()
	return s.done
}

// InitError returns the error which prevented the latest run from starting.
func (s *Supervisor) InitError() error {
	s.doneMx.Lock()
	defer s.doneMx.Unlock()
	return s.initErr
}

// ThresholdExceeded reports the latest run was stopped by too many errors.
func (s *Supervisor) ThresholdExceeded() bool {
	limit := s.settings.MaxAllowedErrors()
	return limit != 0 && s.Errors() > limit
}

func (s *Supervisor) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	if err := s.task.InitializeTask(); err != nil {
		slog.ErrorContext(ctx, "task initialization failed", "error", err)
		s.doneMx.Lock()
		s.initErr = err
		s.doneMx.Unlock()
		s.running.Store(false)
		s.notify(ctx, true, "Error initializing task: "+err.Error(), model.CodeAlert)
		return
	}

	slog.DebugContext(ctx, "supervisor loop started", "interval", s.settings.MainLoopInterval())
	s.notify(ctx, false, "Background service started", model.CodeAlert)

	ka := newKeepAlive(s.settings.KeepAliveInterval(), s.now())
	for {
		s.iterate(ctx, ka)
		select {
		case <-ctx.Done():
		case <-s.wake:
		case <-time.After(s.settings.MainLoopInterval()):
		}
		if s.cancel.Load() || ctx.Err() != nil {
			break
		}
	}

	if err := s.task.FinalizeTask(); err != nil {
		slog.ErrorContext(ctx, "task finalization failed", "error", err)
		s.notify(ctx, false, "Error finalizing task: "+err.Error(), model.CodeAlert)
	}
	s.running.Store(false)
	slog.DebugContext(ctx, "supervisor loop stopped", "errors", s.Errors())
	s.notify(ctx, true, "Background service stopped", model.CodeAlert)
}

func (s *Supervisor) iterate(ctx context.Context, ka *keepAlive) {
	ts := s.now()
	if ka.due(ts) {
		s.notify(ctx, false, "This is Keep Alive log entry", model.CodeKeepAlive)
	}

	status, err := s.task.RunCycle(ts)
	switch {
	case err != nil:
		s.fail(ctx, err)
	case status != "":
		s.notify(ctx, false, "Task Info: "+status, model.CodeInfo)
	}

	if s.stopWhenFinished && s.task.Finished() && s.cancel.CompareAndSwap(false, true) {
		s.notify(ctx, false, "Job finished. Stopping....", model.CodeAlert)
	}
}

func (s *Supervisor) fail(ctx context.Context, err error) {
	n := int(s.failures.Add(1))
	s.notify(ctx, false, fmt.Sprintf("Task error #%d: %s", n, err), model.CodeAlert)

	limit := s.settings.MaxAllowedErrors()
	if limit == 0 || n <= limit {
		return
	}
	if s.cancel.CompareAndSwap(false, true) {
		s.notify(ctx, false, fmt.Sprintf("%d task error(s) encountered. Stopping....", n), model.CodeAlert)
	}
}

func (s *Supervisor) interrupt() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Supervisor) notify(ctx context.Context, cancelled bool, msg string, code int) {
	n := model.Notification{Message: msg, Code: code, Time: s.now()}
	s.listenersMx.RLock()
	defer s.listenersMx.RUnlock()
	for _, l := range s.listeners {
		if cancelled {
			l.Cancelled(ctx, n)
		} else {
			l.Progress(ctx, n)
		}
	}
}
