package log_test

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/geotdo/leicactl/internal/log"
	"github.com/geotdo/leicactl/internal/model"

	"github.com/stretchr/testify/require"
)

func TestSink(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	settings := model.DefaultSettings()
	sink := log.NewSink(log.NewWriter(&buf, true, false), settings)
	ctx := log.ContextAttrs(t.Context(), slog.String("run_id", "r-1"))

	sink.Progress(ctx, model.Notification{Message: "Task Info: Going to line 1", Code: model.CodeInfo})
	require.Empty(t, buf.String(), "code below logging level must be dropped")

	sink.Progress(ctx, model.Notification{Message: "Task error #1: boom", Code: model.CodeAlert})
	sink.Progress(ctx, model.Notification{Message: "This is Keep Alive log entry", Code: model.CodeKeepAlive})
	sink.Cancelled(ctx, model.Notification{Message: "Background service stopped", Code: model.CodeAlert})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	require.Contains(t, lines[0], "level=WARN")
	require.Contains(t, lines[0], `msg="Task error #1: boom"`)
	require.Contains(t, lines[0], "run_id=r-1")
	require.Contains(t, lines[1], "level=INFO")
	require.Contains(t, lines[2], "cancelled=true")

	t.Run("level follows settings", func(t *testing.T) {
		buf.Reset()
		require.True(t, settings.SetLoggingLevel(0))
		sink.Progress(ctx, model.Notification{Message: "verbose", Code: model.CodeVerbose})
		require.Contains(t, buf.String(), "level=DEBUG")
	})
}

func TestOpenFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "leicactl.log")
	f, err := log.OpenFile(path)
	require.NoError(t, err)
	_, err = f.WriteString("first\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	f, err = log.OpenFile(path)
	require.NoError(t, err)
	_, err = f.WriteString("second\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "first\nsecond\n", string(b))

	_, err = log.OpenFile(filepath.Join(t.TempDir(), "missing", "x.log"))
	require.Error(t, err)
}
