package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/geotdo/leicactl/internal/log"
	"github.com/geotdo/leicactl/internal/model"
	"github.com/geotdo/leicactl/internal/serialport"
	"github.com/geotdo/leicactl/internal/service"
)

func doRun(cmd *cobra.Command, _ []string) error {
	ctx := log.ContextAttrs(cmd.Context(), slog.Group("leicactl",
		slog.String("cmd", "run"),
		slog.Int("pid", os.Getpid()),
	))

	if flagPort != "" {
		config.Port.Name = flagPort
	}
	settings := config.Settings(ctx)

	job, err := model.ReadJobFile(flagJob)
	if err != nil {
		return err
	}
	if err := job.Check(); err != nil {
		slog.WarnContext(ctx, "job has invalid rows, they are reported when reached", "job", flagJob, "error", err)
	}

	port, err := serialport.New(settings.Port, settings.ReadTimeout())
	if err != nil {
		return fmt.Errorf("configuring serial port: %w", err)
	}
	ctx = log.ContextAttrs(ctx, slog.String("port", port.Name()))

	logFile, err := log.OpenFile(settings.LogFile)
	if err != nil {
		return err
	}
	defer func() {
		if err := logFile.Close(); err != nil {
			slog.WarnContext(ctx, "closing log file", "error", err)
		}
	}()

	timer := settings.Mode == model.ServiceModeTimer
	engine := service.NewEngine(settings, port, job)
	supervisor := service.NewSupervisor(settings, engine).SetStopWhenFinished(flagOnce || timer)
	supervisor.AddListener(log.NewSink(log.NewWriter(logFile, true, false), settings))
	events := service.NewChanListener(16)
	supervisor.AddListener(events)

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var g errgroup.Group
	g.Go(func() error {
		return printEvents(cmd.OutOrStdout(), events)
	})
	g.Go(func() error {
		defer events.Close()
		if timer {
			return runTimer(ctx, sigCtx, settings, supervisor)
		}
		supervisor.Start(ctx)
		select {
		case <-supervisor.Done():
		case <-sigCtx.Done():
			slog.InfoContext(ctx, "signal received: stopping")
			supervisor.Stop()
			<-supervisor.Done()
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	if timer {
		return nil
	}
	if err := supervisor.InitError(); err != nil {
		return fmt.Errorf("initializing task: %w", err)
	}
	if supervisor.ThresholdExceeded() {
		return fmt.Errorf("stopped after %d task errors", supervisor.Errors())
	}
	return nil
}

// runTimer starts the supervisor on every tick of the schedule until a signal
// arrives. A tick during a run is skipped.
func runTimer(ctx, sigCtx context.Context, settings *model.Settings, supervisor *service.Supervisor) error {
	scheduler, err := service.NewScheduler(ctx, settings.Schedule, func() {
		if !supervisor.Start(ctx) {
			slog.WarnContext(ctx, "previous run still in progress: skipping")
		}
	})
	if err != nil {
		return fmt.Errorf("timer mode failed: %w", err)
	}

	scheduler.Start()
	<-sigCtx.Done()
	slog.InfoContext(ctx, "signal received: stopping")
	if err := scheduler.Shutdown(); err != nil {
		slog.ErrorContext(ctx, "shutting down gocron has failed", "error", err)
	}
	supervisor.Stop()
	<-supervisor.Done()
	return nil
}

// printEvents writes notifications until the listener is closed. It keeps
// receiving after a write failure so the supervisor never blocks on it.
func printEvents(w io.Writer, events *service.ChanListener) error {
	var err error
	for e := range events.C() {
		if err != nil {
			continue
		}
		_, err = fmt.Fprintf(w, "%s %s\n", e.Time.Format("15:04:05.000"), e.Message)
	}
	if err != nil {
		return fmt.Errorf("printing progress: %w", err)
	}
	return nil
}
