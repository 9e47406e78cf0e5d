package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kamusis/cerebro/internal/config"
	"github.com/kamusis/cerebro/internal/embeddings"
	"github.com/kamusis/cerebro/internal/index"
	"github.com/kamusis/cerebro/internal/registry"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run pre-flight environment checks",
	Long: `Check that Cerebro's dependencies, storage and embeddings provider are
correctly configured. Run this command when something seems wrong, or before
filing a bug report.`,
	RunE: runDoctor,
}

var doctorFixCmd = &cobra.Command{
	Use:   "fix",
	Short: "Automatically fix detected issues",
	Long: `Fix detected issues in the Cerebro environment.

Currently fixes:
  - Missing data and cache directories
  - Missing ~/.cerebro/.env template

Run 'cerebro doctor' first to see what will be fixed.`,
	RunE: runDoctorFix,
}

func init() {
	doctorCmd.AddCommand(doctorFixCmd)
	rootCmd.AddCommand(doctorCmd)
}

func runDoctorFix(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("cannot load config: %w\nRun 'cerebro init' first.", err)
	}

	printSection("cerebro doctor fix")

	fmt.Fprintln(out, "\n[ Directories ]")
	var failed int
	for _, dir := range []string{cfg.DataDir, cfg.CacheDir} {
		if _, err := os.Stat(dir); err == nil {
			printSkip("", fmt.Sprintf("%s already exists", dir))
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			printErr("", fmt.Sprintf("cannot create %s: %v", dir, err))
			failed++
			continue
		}
		printOK("", fmt.Sprintf("created %s", dir))
	}

	fmt.Fprintln(out, "\n[ .env ]")
	if err := config.EnsureDotEnvTemplate(); err != nil {
		printErr("", err.Error())
		failed++
	} else {
		p, _ := config.DotEnvPath()
		printOK("", fmt.Sprintf("template present at %s", p))
	}

	fmt.Fprintln(out)
	if failed > 0 {
		return fmt.Errorf("%d issue(s) could not be fixed", failed)
	}
	return nil
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	allOK := true
	failD := func(format string, args ...any) {
		printErr("", fmt.Sprintf(format, args...))
		allOK = false
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	printSection("cerebro doctor")
	fmt.Fprintln(out)

	// ── Check 1: git installed ────────────────────────────────────────────
	fmt.Fprintln(out, "[ git ]")
	if b, err := exec.CommandContext(ctx, "git", "--version").Output(); err != nil {
		printWarn("", "git not found: commit history will not be collected (https://git-scm.com/downloads)")
	} else {
		printOK("", strings.TrimSpace(string(b)))
	}
	fmt.Fprintln(out)

	// ── Check 2: cerebro.yaml ─────────────────────────────────────────────
	fmt.Fprintln(out, "[ cerebro.yaml ]")
	cfgPath, _ := config.ConfigPath()
	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		printWarn("", fmt.Sprintf("%s not found: using defaults (run 'cerebro init')", cfgPath))
	}
	cfg, loadErr := config.Load()
	if loadErr != nil {
		failD("cannot parse cerebro.yaml: %v", loadErr)
	} else {
		printOK("", fmt.Sprintf("valid YAML: snapshot backend %q, %d worker(s)", cfg.Snapshot.Backend, cfg.Workers))
		if cfg.Index.MinScore < 0 || cfg.Index.MinScore > 1 {
			printWarn("", fmt.Sprintf("index.min_score %.2f is outside [0,1]", cfg.Index.MinScore))
		}
	}
	fmt.Fprintln(out)

	// ── Check 3: directories ──────────────────────────────────────────────
	fmt.Fprintln(out, "[ Directories ]")
	if loadErr == nil {
		for _, dir := range []string{cfg.DataDir, cfg.CacheDir} {
			if err := checkWritableDir(dir); err != nil {
				failD("%s: %v (run 'cerebro doctor fix')", dir, err)
			} else {
				printOK("", fmt.Sprintf("writable: %s", dir))
			}
		}
	} else {
		printSkip("", "skipped (cerebro.yaml not loaded)")
	}
	fmt.Fprintln(out)

	// ── Check 4: snapshot store ───────────────────────────────────────────
	fmt.Fprintln(out, "[ Snapshot store ]")
	if loadErr == nil {
		checkSnapshotStore(ctx, cfg, failD)
	} else {
		printSkip("", "skipped (cerebro.yaml not loaded)")
	}
	fmt.Fprintln(out)

	// ── Check 5: embeddings provider ──────────────────────────────────────
	fmt.Fprintln(out, "[ Embeddings provider ]")
	modelID := checkProvider(ctx)
	fmt.Fprintln(out)

	// ── Check 6: semantic index ───────────────────────────────────────────
	fmt.Fprintln(out, "[ Semantic index ]")
	if loadErr == nil {
		checkIndex(cfg, modelID)
	} else {
		printSkip("", "skipped (cerebro.yaml not loaded)")
	}
	fmt.Fprintln(out)

	// ── Summary ───────────────────────────────────────────────────────────
	fmt.Fprintln(out, "===================")
	if allOK {
		fmt.Fprintln(out, okColor.Sprint("✓")+"  All checks passed. Cerebro is ready to use.")
		return nil
	}
	fmt.Fprintln(errOut, errColor.Sprint("✗")+"  One or more checks failed. See details above.")
	return fmt.Errorf("doctor found issues")
}

// checkWritableDir probes dir with a throwaway file.
func checkWritableDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.New("does not exist")
		}
		return err
	}
	if !info.IsDir() {
		return errors.New("not a directory")
	}
	probe, err := os.CreateTemp(dir, ".cerebro-doctor-*")
	if err != nil {
		return fmt.Errorf("not writable: %w", err)
	}
	name := probe.Name()
	_ = probe.Close()
	return os.Remove(name)
}

func checkSnapshotStore(ctx context.Context, cfg *config.Config, failD func(string, ...any)) {
	st, err := registry.NewSnapshotStore(cfg)
	if err != nil {
		failD("cannot create %s store: %v", cfg.Snapshot.Backend, err)
		return
	}
	defer closeStore(st)

	reg := registry.New(st)
	if err := reg.Load(ctx); err != nil {
		failD("%v", err)
		return
	}
	s := reg.EcosystemStatus()
	printOK("", fmt.Sprintf("%s: %d project(s), %d item(s)", st.Name(), s.TotalProjects, s.TotalIntelligence))
}

// checkProvider returns the model ID of a healthy provider, or "".
func checkProvider(ctx context.Context) string {
	pc, err := embeddings.LoadConfig()
	if err != nil {
		printWarn("", fmt.Sprintf("cannot read provider settings: %v", err))
		return ""
	}
	p, err := embeddings.NewFromConfig(ctx, pc)
	if err != nil {
		if embeddings.IsConfiguration(err) {
			printSkip("", fmt.Sprintf("semantic search disabled: %v", err))
		} else {
			printWarn("", err.Error())
		}
		return ""
	}
	if !p.HealthCheck(ctx) {
		printWarn("", fmt.Sprintf("%s did not answer a health check", p.ModelID()))
		return ""
	}
	printOK("", fmt.Sprintf("%s is reachable", p.ModelID()))
	return p.ModelID()
}

func checkIndex(cfg *config.Config, modelID string) {
	a, err := index.Load(filepath.Join(cfg.CacheDir, "index"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			printMiss("", "no index yet (run 'cerebro index build')")
		} else {
			printWarn("", fmt.Sprintf("index unreadable, it will be rebuilt: %v", err))
		}
		return
	}
	msg := fmt.Sprintf("%d row(s), model %s, dim %d", len(a.IDMap), a.Manifest.ModelID, a.Manifest.Dim)
	if modelID != "" && modelID != a.Manifest.ModelID {
		printWarn("", msg+fmt.Sprintf(": provider is now %s, the index will be rebuilt", modelID))
		return
	}
	printOK("", msg)
}

func closeStore(st registry.SnapshotStore) {
	if c, ok := st.(io.Closer); ok {
		_ = c.Close()
	}
}
