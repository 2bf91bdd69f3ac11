package model

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	ServiceModeManual = "manual"
	ServiceModeTimer  = "timer"

	EnvPrefix = "LEICACTL"
)

// Config is the shape of leicactl.yaml. Numeric values are not trusted, they
// are applied through Settings which keeps its previous value on anything
// out of range.
type Config struct {
	Port    PortConfig    `mapstructure:"port" yaml:"port"`
	Engine  EngineConfig  `mapstructure:"engine" yaml:"engine"`
	Service ServiceConfig `mapstructure:"service" yaml:"service"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
}

type PortConfig struct {
	Name          string `mapstructure:"name" yaml:"name"`
	BaudRate      int    `mapstructure:"baud_rate" yaml:"baud_rate"`
	DataBits      int    `mapstructure:"data_bits" yaml:"data_bits"`
	Parity        string `mapstructure:"parity" yaml:"parity"`       // none|odd|even|mark|space
	StopBits      string `mapstructure:"stop_bits" yaml:"stop_bits"` // 1|1.5|2
	NewLine       string `mapstructure:"newline" yaml:"newline"`
	ReadTimeoutMs int    `mapstructure:"read_timeout_ms" yaml:"read_timeout_ms"`
}

type EngineConfig struct {
	MaxPendingCommands int    `mapstructure:"max_pending_commands" yaml:"max_pending_commands"`
	FinalCommand       string `mapstructure:"final_command" yaml:"final_command"`
}

type ServiceConfig struct {
	Mode               string   `mapstructure:"mode" yaml:"mode"` // manual|timer
	MainLoopIntervalMs int      `mapstructure:"main_loop_interval_ms" yaml:"main_loop_interval_ms"`
	MaxAllowedErrors   int      `mapstructure:"max_allowed_errors" yaml:"max_allowed_errors"`
	Schedule           Schedule `mapstructure:"schedule" yaml:"schedule,omitempty"`
}

// Schedule starts the job periodically in timer mode. Exactly one of the
// fields is expected: a 5 field cron expression or a Go duration.
type Schedule struct {
	Cron  string `mapstructure:"cron" yaml:"cron,omitempty"`
	Every string `mapstructure:"every" yaml:"every,omitempty"`
}

type LogConfig struct {
	Level                    int    `mapstructure:"level" yaml:"level"`
	KeepAliveIntervalSeconds int    `mapstructure:"keep_alive_interval_seconds" yaml:"keep_alive_interval_seconds"`
	File                     string `mapstructure:"file" yaml:"file"`
	Verbose                  bool   `mapstructure:"verbose" yaml:"verbose"`
}

func DefaultConfig() Config {
	return Config{
		Port: PortConfig{
			Name:          "/dev/ttyUSB0",
			BaudRate:      19200,
			DataBits:      8,
			Parity:        "none",
			StopBits:      "1",
			NewLine:       "\r\n",
			ReadTimeoutMs: 5,
		},
		Engine: EngineConfig{
			MaxPendingCommands: 5,
		},
		Service: ServiceConfig{
			Mode:               ServiceModeManual,
			MainLoopIntervalMs: 10,
			MaxAllowedErrors:   10,
		},
		Log: LogConfig{
			Level:                    2,
			KeepAliveIntervalSeconds: 3600,
			File:                     "leicactl.log",
		},
	}
}

// NewViper returns a viper instance with defaults registered for every key,
// so LEICACTL_SECTION_KEY environment variables override file values.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	d := DefaultConfig()
	defaults := map[string]any{
		"port.name":                       d.Port.Name,
		"port.baud_rate":                  d.Port.BaudRate,
		"port.data_bits":                  d.Port.DataBits,
		"port.parity":                     d.Port.Parity,
		"port.stop_bits":                  d.Port.StopBits,
		"port.newline":                    d.Port.NewLine,
		"port.read_timeout_ms":            d.Port.ReadTimeoutMs,
		"engine.max_pending_commands":     d.Engine.MaxPendingCommands,
		"engine.final_command":            d.Engine.FinalCommand,
		"service.mode":                    d.Service.Mode,
		"service.main_loop_interval_ms":   d.Service.MainLoopIntervalMs,
		"service.max_allowed_errors":      d.Service.MaxAllowedErrors,
		"service.schedule.cron":           "",
		"service.schedule.every":          "",
		"log.level":                       d.Log.Level,
		"log.keep_alive_interval_seconds": d.Log.KeepAliveIntervalSeconds,
		"log.file":                        d.Log.File,
		"log.verbose":                     d.Log.Verbose,
	}
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	return v
}

// LoadConfig decodes the configuration already read into v.
func LoadConfig(v *viper.Viper) (Config, error) {
	cfg := DefaultConfig()
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	switch cfg.Service.Mode {
	case ServiceModeManual:
	case ServiceModeTimer:
		if cfg.Service.Schedule.Cron == "" && cfg.Service.Schedule.Every == "" {
			return Config{}, fmt.Errorf("service.mode %s requires service.schedule.cron or service.schedule.every", ServiceModeTimer)
		}
	default:
		return Config{}, fmt.Errorf("service.mode %q is not supported, expected %s or %s", cfg.Service.Mode, ServiceModeManual, ServiceModeTimer)
	}
	return cfg, nil
}

// Settings is the validated runtime configuration shared by the engine and
// the supervisor. Range checked values are only reachable through setters,
// which silently keep the previous value when given something out of range.
// Settings must not be mutated while a supervisor is running.
type Settings struct {
	Port         PortConfig
	FinalCommand string
	Mode         string
	Schedule     Schedule
	LogFile      string
	Verbose      bool

	maxPendingCommands       int
	mainLoopIntervalMs       int
	loggingLevel             int
	keepAliveIntervalSeconds int
	maxAllowedErrors         int
	readTimeoutMs            int
}

func DefaultSettings() *Settings {
	s, _ := DefaultConfig().settings()
	return s
}

// Settings applies the configuration on top of the defaults. Rejected values
// are logged at debug level only.
func (c Config) Settings(ctx context.Context) *Settings {
	s, rejected := c.settings()
	for _, key := range rejected {
		slog.DebugContext(ctx, "config value out of range: keeping default", "key", key)
	}
	return s
}

func (c Config) settings() (*Settings, []string) {
	s := &Settings{
		Port:         c.Port,
		FinalCommand: c.Engine.FinalCommand,
		Mode:         c.Service.Mode,
		Schedule:     c.Service.Schedule,
		LogFile:      c.Log.File,
		Verbose:      c.Log.Verbose,

		maxPendingCommands:       5,
		mainLoopIntervalMs:       10,
		loggingLevel:             2,
		keepAliveIntervalSeconds: 3600,
		maxAllowedErrors:         10,
		readTimeoutMs:            5,
	}

	var rejected []string
	apply := func(key string, ok bool) {
		if !ok {
			rejected = append(rejected, key)
		}
	}
	apply("engine.max_pending_commands", s.SetMaxPendingCommands(c.Engine.MaxPendingCommands))
	apply("service.main_loop_interval_ms", s.SetMainLoopIntervalMs(c.Service.MainLoopIntervalMs))
	apply("service.max_allowed_errors", s.SetMaxAllowedErrors(c.Service.MaxAllowedErrors))
	apply("log.level", s.SetLoggingLevel(c.Log.Level))
	apply("log.keep_alive_interval_seconds", s.SetKeepAliveIntervalSeconds(c.Log.KeepAliveIntervalSeconds))
	apply("port.read_timeout_ms", s.SetReadTimeoutMs(c.Port.ReadTimeoutMs))
	return s, rejected
}

func setInRange(dst *int, v, min, max int) bool {
	if v < min || v > max {
		return false
	}
	*dst = v
	return true
}

func (s *Settings) SetMaxPendingCommands(v int) bool {
	return setInRange(&s.maxPendingCommands, v, 1, 30)
}

func (s *Settings) SetMainLoopIntervalMs(v int) bool {
	return setInRange(&s.mainLoopIntervalMs, v, 1, 60000)
}

func (s *Settings) SetLoggingLevel(v int) bool {
	return setInRange(&s.loggingLevel, v, 0, 10)
}

// SetKeepAliveIntervalSeconds accepts 0, which disables keep-alive entries.
func (s *Settings) SetKeepAliveIntervalSeconds(v int) bool {
	return setInRange(&s.keepAliveIntervalSeconds, v, 0, 14400)
}

// SetMaxAllowedErrors accepts 0, which disables the automatic stop.
func (s *Settings) SetMaxAllowedErrors(v int) bool {
	return setInRange(&s.maxAllowedErrors, v, 0, 1000)
}

func (s *Settings) SetReadTimeoutMs(v int) bool {
	return setInRange(&s.readTimeoutMs, v, 1, 60000)
}

func (s *Settings) MaxPendingCommands() int { return s.maxPendingCommands }
func (s *Settings) LoggingLevel() int       { return s.loggingLevel }
func (s *Settings) MaxAllowedErrors() int   { return s.maxAllowedErrors }

func (s *Settings) MainLoopInterval() time.Duration {
	return time.Duration(s.mainLoopIntervalMs) * time.Millisecond
}

func (s *Settings) KeepAliveInterval() time.Duration {
	return time.Duration(s.keepAliveIntervalSeconds) * time.Second
}

func (s *Settings) ReadTimeout() time.Duration {
	return time.Duration(s.readTimeoutMs) * time.Millisecond
}
