package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/geotdo/leicactl/internal/log"
	"github.com/geotdo/leicactl/internal/model"
	"github.com/geotdo/leicactl/internal/serialport"
)

var (
	userConfigPath string // /default/config/path/leicactl on given OS
	configPath     string // actual config file used
	config         model.Config

	flagConfigFilePath string // value of --config flag
	flagVerbose        bool   // value of --verbose flag
	flagJob            string // value of run --job flag
	flagOnce           bool   // value of run --once flag
	flagPort           string // value of run --port flag
)

func init() {
	d, err := os.UserConfigDir()
	if err != nil {
		panic(err)
	}
	userConfigPath = filepath.Join(d, "leicactl")
}

func main() {
	rootCmd.PersistentFlags().StringVar(&flagConfigFilePath, "config", "", "Config file to load - default is leicactl.yaml in current directory or in "+userConfigPath)
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "verbose logging")

	runCmd.Flags().StringVar(&flagJob, "job", "", "job file, one instruction per line")
	runCmd.Flags().BoolVar(&flagOnce, "once", false, "stop when the whole job was executed")
	runCmd.Flags().StringVar(&flagPort, "port", "", "serial port overriding port.name")
	_ = runCmd.MarkFlagRequired("job")


	rootCmd.SilenceErrors = true
	rootCmd.PersistentPreRunE = initLeicactl

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(portsCmd)
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		slog.Error("leicactl failed", "error", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "leicactl",
	Short:        "Drives a total station over a serial line by replaying a job",
	SilenceUsage: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "run executes the job against the instrument until stopped",
	RunE:  doRun,
}

var checkCmd = &cobra.Command{
	Use:   "check JOB...",
	Short: "check validates job files without touching the instrument",
	Args:  cobra.MinimumNArgs(1),
	RunE:  doCheck,
}

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "ports lists serial ports available on this machine",
	RunE:  doPorts,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "version provide version of a leicactl",
	Run: func(cmd *cobra.Command, args []string) {
		w := cmd.OutOrStdout()
		info, ok := debug.ReadBuildInfo()
		if !ok {
			fmt.Fprintln(w, "leicactl: version info not available")
			return
		}

		if configPath != "" {
			fmt.Fprintf(w, "config:   %s\n", configPath)
		}
		fmt.Fprintf(w, "leicactl: %s\n", info.Main.Version)
		fmt.Fprintf(w, "go:       %s\n", info.GoVersion)
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				fmt.Fprintf(w, "commit:   %s\n", s.Value)
			case "vcs.time":
				fmt.Fprintf(w, "date:     %s\n", s.Value)
			case "vcs.modified":
				fmt.Fprintf(w, "dirty:    %s\n", s.Value)
			}
		}
	},
}

// doCheck validates every job file in parallel and reports them in the
// order given.
func doCheck(cmd *cobra.Command, args []string) error {
	jobs := make([]model.Job, len(args))
	errs := make([]error, len(args))
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, path := range args {
		g.Go(func() error {
			job, err := model.ReadJobFile(path)
			if err == nil {
				err = job.Check()
			}
			jobs[i], errs[i] = job, err
			return nil
		})
	}
	_ = g.Wait()

	w := cmd.OutOrStdout()
	var failed []error
	for i, path := range args {
		if errs[i] != nil {
			failed = append(failed, fmt.Errorf("job %s is invalid: %w", path, errs[i]))
			continue
		}
		if flagVerbose {
			for row := range jobs[i] {
				in, _ := jobs[i].Instruction(row)
				fmt.Fprintf(w, "%4d  %s\n", row, in)
			}
		}
		fmt.Fprintf(w, "%s: %d rows ok\n", path, len(jobs[i]))
	}
	return errors.Join(failed...)
}

func doPorts(cmd *cobra.Command, _ []string) error {
	names, err := serialport.List()
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	if len(names) == 0 {
		fmt.Fprintln(w, "no serial ports found")
		return nil
	}
	for _, name := range names {
		fmt.Fprintln(w, name)
	}
	return nil
}

func initLeicactl(cmd *cobra.Command, _ []string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}

	if envConfig, ok := os.LookupEnv("LEICACTLCONFIG"); ok {
		configPath = envConfig
	} else if flagConfigFilePath != "" {
		configPath = flagConfigFilePath
	} else {
		for _, d := range []string{".", userConfigPath} {
			path := filepath.Join(d, "leicactl.yaml")
			if exists(path) {
				configPath = path
				break
			}
		}
	}

	// store default configuration
	if configPath == "" {
		configPath = filepath.Join(userConfigPath, "leicactl.yaml")
		if err := storeDefaults(configPath); err != nil {
			return err
		}
	}

	v := model.NewViper()
	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("reading config file %s: %w", configPath, err)
	}
	var err error
	config, err = model.LoadConfig(v)
	if err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}

	// --verbose has a precedence over config file
	if flagVerbose {
		config.Log.Verbose = true
	}
	slog.SetDefault(log.New(config.Log.Verbose))

	slog.Debug("leicactl run", "configPath", configPath)
	slog.Debug("leicactl run", "config", config)
	return nil
}

func storeDefaults(path string) error {
	err := os.MkdirAll(filepath.Dir(path), 0o755)
	if err != nil {
		return fmt.Errorf("creating directory %s: %w", filepath.Dir(path), err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating file %s: %w", path, err)
	}
	defer func() {
		_ = f.Close()
	}()
	enc := yaml.NewEncoder(f)
	enc.SetIndent(2)
	if err := enc.Encode(model.DefaultConfig()); err != nil {
		return fmt.Errorf("storing configuration: %w", err)
	}
	return enc.Close()
}

func exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
