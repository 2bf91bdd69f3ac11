package service

import "time"

func SetEngineClock(e *Engine, now func() time.Time) {
	e.now = now
	e.reset()
}

func SetSupervisorClock(s *Supervisor, now func() time.Time) {
	s.now = now
}
