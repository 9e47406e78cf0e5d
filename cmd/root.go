package cmd

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kamusis/cerebro/internal/cerebro"
	"github.com/kamusis/cerebro/internal/config"
	"github.com/kamusis/cerebro/internal/logger"
)

var (
	flagLogLevel  string
	flagLogFormat string
	flagJSON      bool
)

var rootCmd = &cobra.Command{
	Use:          "cerebro",
	Short:        "Cerebro: intelligence registry for a portfolio of software projects",
	SilenceUsage: true, // don't print usage on operational errors
	Long: `Cerebro collects facts about your projects (commits, CI, docs, structure),
scores their health and answers semantic questions about them.
State lives under ~/.cerebro/ unless CEREBRO_HOME is set.`,
	PersistentPreRunE: initLogging,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn, error (default from config)")
	rootCmd.PersistentFlags().StringVar(&flagLogFormat, "log-format", "", "Log format: text or json (default from config)")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "Print machine-readable JSON instead of text")
}

// initLogging configures slog from, in order of precedence, --log-level,
// CEREBRO_LOG_LEVEL and the config file.
func initLogging(cmd *cobra.Command, _ []string) error {
	lc := logger.DefaultConfig()
	if cfg, err := config.Load(); err == nil {
		lc.Level = logger.ParseLevel(cfg.Log.Level, lc.Level)
		if cfg.Log.Format != "" {
			lc.Format = cfg.Log.Format
		}
	}
	if v := os.Getenv("CEREBRO_LOG_LEVEL"); v != "" {
		lc.Level = logger.ParseLevel(v, lc.Level)
	}
	if flagLogLevel != "" {
		lc.Level = logger.ParseLevel(flagLogLevel, lc.Level)
	}
	if flagLogFormat != "" {
		lc.Format = flagLogFormat
	}
	lc.Output = cmd.ErrOrStderr()
	logger.Init(lc)
	return nil
}

// checkGitAvailable returns a clear error if git is not found on PATH.
func checkGitAvailable() error {
	if _, err := exec.LookPath("git"); err != nil {
		return fmt.Errorf("git is not installed or not on PATH\n" +
			"  Cerebro reads commit history with git.\n" +
			"  Install git from https://git-scm.com and try again.")
	}
	return nil
}

// serviceOptions lets tests swap the embedding provider or collectors.
var serviceOptions []cerebro.Option

// withService loads config, opens the service, runs fn and closes. When
// save is set the registry and index are persisted after fn succeeds.
func withService(cmd *cobra.Command, save bool, fn func(ctx context.Context, svc *cerebro.Service) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("cannot load config: %w\nRun 'cerebro init' first.", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := cerebro.New(cfg, serviceOptions...)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	if _, err := svc.Open(ctx); err != nil {
		return err
	}
	if err := fn(ctx, svc); err != nil {
		return err
	}
	if save {
		return svc.Save(ctx)
	}
	return nil
}

// Execute is called by main.go.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
