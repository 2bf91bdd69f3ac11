package model_test

import (
	"strings"
	"testing"
	"time"

	"github.com/geotdo/leicactl/internal/model"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	yml := `
port:
  name: /dev/ttyS1
  baud_rate: 9600
  parity: even
  stop_bits: 2
  read_timeout_ms: 50
engine:
  max_pending_commands: 3
  final_command: "%R1Q,9027:0"
service:
  main_loop_interval_ms: 20
  max_allowed_errors: 0
log:
  level: 1
  keep_alive_interval_seconds: 0
`
	v := model.NewViper()
	err := v.ReadConfig(strings.NewReader(yml))
	require.NoError(t, err)

	cfg, err := model.LoadConfig(v)
	require.NoError(t, err)
	require.Equal(t, "/dev/ttyS1", cfg.Port.Name)
	require.Equal(t, 9600, cfg.Port.BaudRate)
	require.Equal(t, "even", cfg.Port.Parity)
	require.Equal(t, "2", cfg.Port.StopBits)
	// not in the file: defaults are kept
	require.Equal(t, 8, cfg.Port.DataBits)
	require.Equal(t, model.ServiceModeManual, cfg.Service.Mode)

	s := cfg.Settings(t.Context())
	require.Equal(t, 3, s.MaxPendingCommands())
	require.Equal(t, 20*time.Millisecond, s.MainLoopInterval())
	require.Equal(t, 50*time.Millisecond, s.ReadTimeout())
	require.Equal(t, 0, s.MaxAllowedErrors())
	require.Equal(t, 1, s.LoggingLevel())
	require.Zero(t, s.KeepAliveInterval())
	require.Equal(t, "%R1Q,9027:0", s.FinalCommand)
}

func TestLoadConfig_Env(t *testing.T) {
	t.Setenv("LEICACTL_ENGINE_MAX_PENDING_COMMANDS", "7")
	t.Setenv("LEICACTL_PORT_NAME", "COM3")

	v := model.NewViper()
	cfg, err := model.LoadConfig(v)
	require.NoError(t, err)
	require.Equal(t, "COM3", cfg.Port.Name)
	require.Equal(t, 7, cfg.Settings(t.Context()).MaxPendingCommands())
}

func TestLoadConfig_Fail(t *testing.T) {
	cases := []struct {
		scenario string
		given    string
		err      string
	}{
		{"unknown_mode", "service:\n  mode: cron\n", `service.mode "cron" is not supported, expected manual or timer`},
		{"timer_without_schedule", "service:\n  mode: timer\n", "service.mode timer requires service.schedule.cron or service.schedule.every"},
	}
	for _, tc := range cases {
		t.Run(tc.scenario, func(t *testing.T) {
			v := model.NewViper()
			require.NoError(t, v.ReadConfig(strings.NewReader(tc.given)))
			_, err := model.LoadConfig(v)
			require.EqualError(t, err, tc.err)
		})
	}
}

func TestSettingsRejectOutOfRange(t *testing.T) {
	t.Parallel()
	s := model.DefaultSettings()

	type then struct {
		ok    bool
		value int
	}
	cases := []struct {
		scenario string
		set      func(int) bool
		get      func() int
		given    int
		then     then
	}{
		{"max_pending_low", s.SetMaxPendingCommands, s.MaxPendingCommands, 0, then{false, 5}},
		{"max_pending_high", s.SetMaxPendingCommands, s.MaxPendingCommands, 31, then{false, 5}},
		{"max_pending_ok", s.SetMaxPendingCommands, s.MaxPendingCommands, 30, then{true, 30}},
		{"logging_high", s.SetLoggingLevel, s.LoggingLevel, 11, then{false, 2}},
		{"logging_zero", s.SetLoggingLevel, s.LoggingLevel, 0, then{true, 0}},
		{"errors_negative", s.SetMaxAllowedErrors, s.MaxAllowedErrors, -1, then{false, 10}},
		{"errors_zero", s.SetMaxAllowedErrors, s.MaxAllowedErrors, 0, then{true, 0}},
		{"loop_zero", s.SetMainLoopIntervalMs, func() int { return int(s.MainLoopInterval().Milliseconds()) }, 0, then{false, 10}},
		{"keep_alive_high", s.SetKeepAliveIntervalSeconds, func() int { return int(s.KeepAliveInterval().Seconds()) }, 14401, then{false, 3600}},
		{"read_timeout_zero", s.SetReadTimeoutMs, func() int { return int(s.ReadTimeout().Milliseconds()) }, 0, then{false, 5}},
	}
	for _, tc := range cases {
		ok := tc.set(tc.given)
		require.Equal(t, tc.then.ok, ok, tc.scenario)
		require.Equal(t, tc.then.value, tc.get(), tc.scenario)
	}
}

func TestConfigSettingsKeepsDefaults(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.Engine.MaxPendingCommands = 100
	cfg.Service.MainLoopIntervalMs = -5

	s := cfg.Settings(t.Context())
	require.Equal(t, 5, s.MaxPendingCommands())
	require.Equal(t, 10*time.Millisecond, s.MainLoopInterval())
}
