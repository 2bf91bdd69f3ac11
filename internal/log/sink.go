package log

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/geotdo/leicactl/internal/model"
)

// Sink is the persistent progress log. It implements model.Listener and
// writes every notification whose code reaches the logging level.
type Sink struct {
	logger *slog.Logger
	level  func() int
}

func NewSink(logger *slog.Logger, settings *model.Settings) *Sink {
	return &Sink{
		logger: logger,
		level:  settings.LoggingLevel,
	}
}

// OpenFile opens path for appending, creating it when missing.
func OpenFile(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	return f, nil
}

func (s *Sink) Progress(ctx context.Context, n model.Notification) {
	s.write(ctx, n, false)
}

func (s *Sink) Cancelled(ctx context.Context, n model.Notification) {
	s.write(ctx, n, true)
}

func (s *Sink) write(ctx context.Context, n model.Notification, cancelled bool) {
	if n.Code < s.level() {
		return
	}
	attrs := []any{"code", n.Code}
	if cancelled {
		attrs = append(attrs, "cancelled", true)
	}
	s.logger.Log(ctx, Level(n.Code), n.Message, attrs...)
}

// Level maps a notification code to a slog level.
func Level(code int) slog.Level {
	switch {
	case code == model.CodeKeepAlive:
		return slog.LevelInfo
	case code >= model.CodeAlert:
		return slog.LevelWarn
	case code == model.CodeInfo:
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}
