package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// IndexConfig tunes the semantic index.
type IndexConfig struct {
	BatchSize int     `yaml:"batch_size"`
	TopK      int     `yaml:"top_k"`
	MinScore  float64 `yaml:"min_score"`
	CacheSize int     `yaml:"query_cache_size"`
}

// S3Config locates the snapshot object when snapshot.backend is "s3".
// Credentials come from CEREBRO_S3_ACCESS_KEY / CEREBRO_S3_SECRET_KEY.
type S3Config struct {
	Endpoint string `yaml:"endpoint"`
	Region   string `yaml:"region,omitempty"`
	Bucket   string `yaml:"bucket"`
	Prefix   string `yaml:"prefix,omitempty"`
	UseSSL   bool   `yaml:"use_ssl"`
}

// SnapshotConfig selects where the registry snapshot lives.
type SnapshotConfig struct {
	Backend   string   `yaml:"backend"`
	Namespace string   `yaml:"namespace,omitempty"`
	RedisAddr string   `yaml:"redis_addr,omitempty"`
	RedisDB   int      `yaml:"redis_db,omitempty"`
	S3        S3Config `yaml:"s3,omitempty"`
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config is the in-memory representation of ~/.cerebro/cerebro.yaml.
type Config struct {
	DataDir   string         `yaml:"data_dir"`
	CacheDir  string         `yaml:"cache_dir"`
	Workers   int            `yaml:"workers"`
	Index     IndexConfig    `yaml:"index"`
	Snapshot  SnapshotConfig `yaml:"snapshot"`
	Manifests []string       `yaml:"manifests,omitempty"`
	Log       LogConfig      `yaml:"log"`
}

// CerebroDir returns the absolute path to ~/.cerebro/.
func CerebroDir() (string, error) {
	if v := os.Getenv("CEREBRO_HOME"); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".cerebro"), nil
}

// ConfigPath returns the absolute path to ~/.cerebro/cerebro.yaml.
func ConfigPath() (string, error) {
	dir, err := CerebroDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "cerebro.yaml"), nil
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(p string) (string, error) {
	if !strings.HasPrefix(p, "~") {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot expand ~: %w", err)
	}
	return filepath.Join(home, p[1:]), nil
}

// DefaultManifests are the files scanned, in order, when building the
// project dependency graph.
var DefaultManifests = []string{"flake.nix", "go.mod", "package.json", "Cargo.toml", "pyproject.toml"}

// DefaultConfig returns the default Config written on first cerebro init.
func DefaultConfig() (*Config, error) {
	dir, err := CerebroDir()
	if err != nil {
		return nil, err
	}
	return &Config{
		DataDir:  filepath.Join(dir, "data"),
		CacheDir: filepath.Join(dir, "embeddings"),
		Workers:  4,
		Index: IndexConfig{
			BatchSize: 100,
			TopK:      10,
			MinScore:  0.3,
			CacheSize: 256,
		},
		Snapshot: SnapshotConfig{
			Backend:   "file",
			Namespace: "default",
		},
		Manifests: append([]string(nil), DefaultManifests...),
		Log: LogConfig{
			Level:  "warn",
			Format: "text",
		},
	}, nil
}

// Load reads ~/.cerebro/cerebro.yaml. A missing file yields DefaultConfig.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	cfg, err := DefaultConfig()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("cannot read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid YAML in %s: %w", path, err)
	}
	// Expand ~ in directories at load time.
	if cfg.DataDir, err = ExpandPath(cfg.DataDir); err != nil {
		return nil, err
	}
	if cfg.CacheDir, err = ExpandPath(cfg.CacheDir); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.Index.BatchSize <= 0 {
		c.Index.BatchSize = 100
	}
	if c.Index.TopK <= 0 {
		c.Index.TopK = 10
	}
	if c.Snapshot.Backend == "" {
		c.Snapshot.Backend = "file"
	}
	if c.Snapshot.Namespace == "" {
		c.Snapshot.Namespace = "default"
	}
	if len(c.Manifests) == 0 {
		c.Manifests = append([]string(nil), DefaultManifests...)
	}
}

// Save marshals cfg and writes it to ~/.cerebro/cerebro.yaml.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("cannot create config dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("cannot write config %s: %w", path, err)
	}
	return nil
}
