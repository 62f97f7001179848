// Package main is the CLI entry point for remapd.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/eliteGoblin/focusd/remapd/internal/config"
	"github.com/eliteGoblin/focusd/remapd/internal/daemon"
	"github.com/eliteGoblin/focusd/remapd/internal/domain"
	"github.com/eliteGoblin/focusd/remapd/internal/infra"
	"github.com/eliteGoblin/focusd/remapd/internal/policy"
	"github.com/eliteGoblin/focusd/remapd/internal/usecase"
)

var (
	// Version info (set via ldflags)
	Version   = "0.1.0"
	Commit    = "dev"
	BuildTime = "unknown"
)

const stopTimeout = 5 * time.Second

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "remapd",
	Short: "Per-window keyboard remapper for X11",
	Long: `remapd grabs the keys named in its policy file and, depending on the class
of the focused window, forwards a different key, runs a shell command, or
lets the key through unchanged.

The policy is read from --config, ~/.remapd.yaml or $XDG_CONFIG_HOME/remapd.yaml.
Every flag can also be set through a REMAPD_* environment variable
(e.g. REMAPD_LOG_LEVEL=debug).`,
	Version:      Version,
	SilenceUsage: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the remapper in the foreground",
	Long:  `Loads the policy, grabs its trigger keys and remaps until SIGINT or SIGTERM.`,
	RunE:  runRun,
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the remapper in the background",
	Long:  `Spawns 'remapd run' in a new session. Output goes to remapd.log in the data directory.`,
	RunE:  runStart,
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the policy file",
	Long:  `Parses and validates the policy without touching the display. Use --dump to print it.`,
	RunE:  runCheck,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the remapper is running",
	RunE:  runStatus,
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the background remapper",
	RunE:  runStop,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recently launched commands",
	Long:  `Shows commands started by exec rules, newest first, from the encrypted launch history.`,
	RunE:  runHistory,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Prints version, commit, and build time. Use --json for machine-readable output.`,
	Run:   runVersion,
}

var (
	dumpPolicy   bool
	historyLimit int
	jsonOutput   bool
)

func init() {
	config.RegisterFlags(rootCmd.PersistentFlags())

	checkCmd.Flags().BoolVar(&dumpPolicy, "dump", false, "Print the parsed policy")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of launches to show")
	versionCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	settings, err := config.Load(cmd.Flags())
	if err != nil {
		return err
	}

	logger := createLogger(settings)
	defer func() { _ = logger.Sync() }()

	policyPath, p, err := loadPolicy(settings)
	if err != nil {
		return err
	}

	paths := dataPaths(settings)
	pm := infra.NewProcessManager()
	registry := infra.NewFileRegistry(paths, pm)

	status, err := daemon.GetStatus(registry, pm)
	if err == nil && status.Alive && status.Entry.PID != pm.GetCurrentPID() {
		return fmt.Errorf("remapd is already running (pid %d, display %q)", status.Entry.PID, status.Entry.Display)
	}

	display, err := infra.NewX11Display(settings.Display, logger)
	if err != nil {
		return err
	}
	defer display.Close()

	sessionID := uuid.NewString()

	var runner domain.CommandRunner = infra.NewShellRunner(logger)
	if settings.History {
		history, err := infra.OpenHistory(paths.DataDir)
		if err != nil {
			logger.Warn("launch history disabled", zap.Error(err))
		} else {
			defer history.Close()
			runner = infra.NewRecordingRunner(runner, history, sessionID, logger)
		}
	}

	dispatcher := usecase.NewDispatcher(display, runner, p, logger)

	d := domain.Daemon{
		PID:        pm.GetCurrentPID(),
		SessionID:  sessionID,
		Display:    effectiveDisplay(settings),
		ConfigPath: policyPath,
		StartedAt:  time.Now(),
		AppVersion: Version,
	}

	logger.Info("loaded policy",
		zap.String("path", policyPath),
		zap.Int("groups", len(p.Groups)),
		zap.Bool("fallthrough", p.FallThrough))

	// Set up graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("received shutdown signal", zap.Stringer("signal", sig))
		cancel()
	}()

	err = daemon.NewRemapper(display, dispatcher, registry, d, logger).Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	if err != nil {
		logger.Error("remapper failed", zap.Error(err))
	}
	return err
}

func runStart(cmd *cobra.Command, args []string) error {
	settings, err := config.Load(cmd.Flags())
	if err != nil {
		return err
	}

	// Fail here rather than in the background.
	policyPath, _, err := loadPolicy(settings)
	if err != nil {
		return err
	}

	paths := dataPaths(settings)
	if err := paths.Ensure(); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	pm := infra.NewProcessManager()
	registry := infra.NewFileRegistry(paths, pm)
	if status, err := daemon.GetStatus(registry, pm); err == nil && status.Alive {
		fmt.Printf("remapd is already running (pid %d)\n", status.Entry.PID)
		return nil
	}

	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	childArgs := append([]string{"run", "--" + config.KeyConfig, policyPath}, forwardedFlags(cmd.Flags())...)
	pid, err := daemon.StartDetached(executable, childArgs, paths.LogPath)
	if err != nil {
		return err
	}

	// Wait a moment for the daemon to register
	time.Sleep(500 * time.Millisecond)

	if !pm.IsRunning(pid) {
		return fmt.Errorf("remapd exited during startup; see %s", paths.LogPath)
	}

	fmt.Println("\n=== remapd Started ===")
	fmt.Printf("PID:    %d\n", pid)
	fmt.Printf("Policy: %s\n", policyPath)
	fmt.Printf("Log:    %s\n", paths.LogPath)
	fmt.Println("======================")
	return nil
}

// forwardedFlags repeats explicitly set persistent flags for the child,
// except --config which is passed resolved.
func forwardedFlags(fs *pflag.FlagSet) []string {
	var out []string
	fs.Visit(func(f *pflag.Flag) {
		if f.Name == config.KeyConfig {
			return
		}
		out = append(out, "--"+f.Name+"="+f.Value.String())
	})
	return out
}

func runCheck(cmd *cobra.Command, args []string) error {
	settings, err := config.Load(cmd.Flags())
	if err != nil {
		return err
	}

	policyPath, p, err := loadPolicy(settings)
	if err != nil {
		return err
	}

	if dumpPolicy {
		return policy.Format(os.Stdout, p)
	}

	var rules int
	for _, g := range p.Groups {
		rules += len(g.Rules)
	}
	fmt.Printf("%s: OK (%d groups, %d rules, %d distinct triggers)\n",
		policyPath, len(p.Groups), rules, len(p.Triggers()))
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	settings, err := config.Load(cmd.Flags())
	if err != nil {
		return err
	}

	paths := dataPaths(settings)
	pm := infra.NewProcessManager()
	registry := infra.NewFileRegistry(paths, pm)

	fmt.Println("\n=== remapd Status ===")

	status, err := daemon.GetStatus(registry, pm)
	if err != nil {
		return err
	}
	if status.Entry == nil {
		fmt.Println("Status: NOT RUNNING")
		fmt.Println("\nRun 'remapd start' to start remapping.")
		return nil
	}

	if status.Alive {
		fmt.Println("Status: RUNNING")
	} else {
		fmt.Println("Status: NOT RUNNING (stale registration)")
	}

	entry := status.Entry
	fmt.Printf("PID: %d\n", entry.PID)
	fmt.Printf("Session: %s\n", entry.SessionID)
	if entry.Display != "" {
		fmt.Printf("Display: %s\n", entry.Display)
	}
	if entry.ConfigPath != "" {
		fmt.Printf("Policy: %s\n", entry.ConfigPath)
	}
	if entry.AppVersion != "" {
		fmt.Printf("Version: %s\n", entry.AppVersion)
	}
	if entry.StartedAt > 0 {
		started := time.Unix(entry.StartedAt, 0)
		fmt.Printf("Uptime: %s\n", time.Since(started).Round(time.Second))
	}
	fmt.Printf("Registry: %s\n", registry.GetRegistryPath())

	fmt.Println("=====================")
	return nil
}

func runStop(cmd *cobra.Command, args []string) error {
	settings, err := config.Load(cmd.Flags())
	if err != nil {
		return err
	}

	paths := dataPaths(settings)
	pm := infra.NewProcessManager()
	registry := infra.NewFileRegistry(paths, pm)

	var expectedName string
	if executable, err := os.Executable(); err == nil {
		expectedName = filepath.Base(executable)
	}

	pid, err := daemon.Stop(registry, pm, expectedName, stopTimeout)
	if errors.Is(err, domain.ErrNotRunning) {
		fmt.Println("remapd is not running")
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Printf("Stopped remapd (pid %d)\n", pid)
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	settings, err := config.Load(cmd.Flags())
	if err != nil {
		return err
	}

	paths := dataPaths(settings)
	if !infra.NewFileKeyProvider(paths.DataDir).KeyExists() {
		fmt.Println("No launches recorded.")
		return nil
	}

	history, err := infra.OpenHistory(paths.DataDir)
	if err != nil {
		return err
	}
	defer history.Close()

	records, err := history.Recent(historyLimit)
	if err != nil {
		return fmt.Errorf("failed to read history: %w", err)
	}
	if len(records) == 0 {
		fmt.Println("No launches recorded.")
		return nil
	}

	for _, rec := range records {
		fmt.Printf("%s  pid %-7d %s\n", rec.LaunchedAt.Format(time.DateTime), rec.PID, rec.Command)
	}
	return nil
}

func runVersion(cmd *cobra.Command, args []string) {
	if jsonOutput {
		data, _ := json.Marshal(map[string]string{
			"version":    Version,
			"commit":     Commit,
			"build_time": BuildTime,
		})
		fmt.Println(string(data))
	} else {
		fmt.Printf("remapd %s (commit: %s, built: %s)\n",
			Version, Commit, BuildTime)
	}
}

// loadPolicy resolves the policy path (flag, env, then discovery) and loads it.
func loadPolicy(settings config.Settings) (string, *domain.Policy, error) {
	path := settings.ConfigPath
	if path == "" {
		found, err := policy.FindFromEnv()
		if err != nil {
			return "", nil, err
		}
		path = found
	}

	p, err := policy.LoadFile(path)
	if err != nil {
		return path, nil, err
	}
	return path, p, nil
}

func dataPaths(settings config.Settings) *infra.Paths {
	if settings.DataDir != "" {
		return infra.PathsFor(settings.DataDir)
	}
	return infra.DetectPaths()
}

func effectiveDisplay(settings config.Settings) string {
	if settings.Display != "" {
		return settings.Display
	}
	return os.Getenv("DISPLAY")
}

func createLogger(settings config.Settings) *zap.Logger {
	output := "stderr"
	if settings.LogFile != "" {
		output = settings.LogFile
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = settings.LogLevel
	cfg.OutputPaths = []string{output}
	cfg.ErrorOutputPaths = []string{output}
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build()
	if err != nil {
		// Fallback to stderr if file logging fails
		logger, _ = zap.NewProduction()
	}
	return logger
}
