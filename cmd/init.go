package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kamusis/cerebro/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create ~/.cerebro with a default config and .env template",
	Long: `Initialize Cerebro's home directory (~/.cerebro/, or $CEREBRO_HOME).

Writes cerebro.yaml with defaults when missing, creates the data and cache
directories and a .env template for provider and storage credentials.
Existing files are never overwritten.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

var flagInitBackend string

func init() {
	initCmd.Flags().StringVar(&flagInitBackend, "backend", "", "Snapshot backend for a new config: file, redis or s3")
	rootCmd.AddCommand(initCmd)
}

func runInit(_ *cobra.Command, _ []string) error {
	// ── 1. Resolve ~/.cerebro directory ───────────────────────────────────────
	dir, err := config.CerebroDir()
	if err != nil {
		return err
	}
	cfgPath, err := config.ConfigPath()
	if err != nil {
		return err
	}

	// ── 2. Create ~/.cerebro/ if it doesn't exist ─────────────────────────────
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create %s: %w", dir, err)
	}
	printOK("", fmt.Sprintf("Cerebro directory ready: %s", dir))

	// ── 3. Write cerebro.yaml if missing ──────────────────────────────────────
	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		cfg, err := config.DefaultConfig()
		if err != nil {
			return err
		}
		switch flagInitBackend {
		case "":
		case "file", "redis", "s3":
			cfg.Snapshot.Backend = flagInitBackend
		default:
			return fmt.Errorf("unknown snapshot backend %q (want file, redis or s3)", flagInitBackend)
		}
		if err := config.Save(cfg); err != nil {
			return err
		}
		printOK("", fmt.Sprintf("Config written: %s", cfgPath))
	} else {
		printSkip("", fmt.Sprintf("Config already exists: %s", cfgPath))
	}

	// ── 4. Data and cache directories ─────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	for _, d := range []string{cfg.DataDir, cfg.CacheDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("cannot create %s: %w", d, err)
		}
		printOK("", fmt.Sprintf("Directory ready: %s", d))
	}

	// ── 5. .env template ──────────────────────────────────────────────────────
	if err := config.EnsureDotEnvTemplate(); err != nil {
		return err
	}
	envPath, _ := config.DotEnvPath()
	printOK("", fmt.Sprintf(".env ready: %s", envPath))

	fmt.Fprintln(out, "\n"+okColor.Sprint("✓")+"  cerebro init complete. Run 'cerebro doctor' to verify your environment.")
	return nil
}
