package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	home := setHome(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Snapshot.Backend != "file" {
		t.Fatalf("unexpected backend: %q", cfg.Snapshot.Backend)
	}
	if cfg.DataDir != filepath.Join(home, ".cerebro", "data") {
		t.Fatalf("unexpected data dir: %q", cfg.DataDir)
	}
	if cfg.Index.BatchSize != 100 || cfg.Index.TopK != 10 {
		t.Fatalf("unexpected index defaults: %+v", cfg.Index)
	}
}

func TestSaveLoad_RoundTripAndExpandsTilde(t *testing.T) {
	home := setHome(t)

	cfg, err := DefaultConfig()
	if err != nil {
		t.Fatal(err)
	}
	cfg.DataDir = "~/intel"
	cfg.Workers = 0
	cfg.Snapshot.Backend = "redis"
	cfg.Snapshot.RedisAddr = "localhost:6379"
	if err := Save(cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.DataDir != filepath.Join(home, "intel") {
		t.Fatalf("tilde not expanded: %q", got.DataDir)
	}
	if got.Workers != 4 {
		t.Fatalf("expected worker default to be applied, got %d", got.Workers)
	}
	if got.Snapshot.Backend != "redis" || got.Snapshot.RedisAddr != "localhost:6379" {
		t.Fatalf("snapshot config lost: %+v", got.Snapshot)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	home := setHome(t)

	dir := filepath.Join(home, ".cerebro")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "cerebro.yaml"), []byte("workers: [oops"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(); err == nil {
		t.Fatalf("expected YAML error")
	}
}

func TestCerebroDir_HonoursOverride(t *testing.T) {
	override := t.TempDir()
	t.Setenv("CEREBRO_HOME", override)

	dir, err := CerebroDir()
	if err != nil {
		t.Fatal(err)
	}
	if dir != override {
		t.Fatalf("expected %q, got %q", override, dir)
	}
}
