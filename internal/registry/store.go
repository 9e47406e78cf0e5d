package registry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kamusis/cerebro/internal/config"
	"github.com/kamusis/cerebro/internal/lockfile"
)

// ErrNoSnapshot is returned by a SnapshotStore that holds no snapshot yet.
var ErrNoSnapshot = errors.New("no snapshot")

// SnapshotStore persists the registry snapshot as one opaque document.
type SnapshotStore interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
	Name() string
}

const (
	snapshotFile = "cerebro_state.json"
	snapshotLock = "cerebro_state.lock"
)

// FileStore keeps the snapshot in <dir>/cerebro_state.json.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (s *FileStore) Name() string { return "file:" + s.Path() }

// Path is the snapshot file location.
func (s *FileStore) Path() string { return filepath.Join(s.dir, snapshotFile) }

func (s *FileStore) Load(ctx context.Context) ([]byte, error) {
	release, err := lockfile.Acquire(ctx, filepath.Join(s.dir, snapshotLock), lockfile.DefaultTimeout)
	if err != nil {
		return nil, err
	}
	defer release()

	data, err := os.ReadFile(s.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoSnapshot
		}
		return nil, fmt.Errorf("cannot read %s: %w", s.Path(), err)
	}
	return data, nil
}

// Save writes to a temp file in the same directory and renames it over the
// snapshot, so readers never see a partial document.
func (s *FileStore) Save(ctx context.Context, data []byte) error {
	release, err := lockfile.Acquire(ctx, filepath.Join(s.dir, snapshotLock), lockfile.DefaultTimeout)
	if err != nil {
		return err
	}
	defer release()

	tmp, err := os.CreateTemp(s.dir, snapshotFile+".tmp-*")
	if err != nil {
		return fmt.Errorf("cannot create temp snapshot: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("cannot write temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("cannot close temp snapshot: %w", err)
	}
	if err := os.Rename(tmpPath, s.Path()); err != nil {
		return fmt.Errorf("cannot replace %s: %w", s.Path(), err)
	}
	return nil
}

// NewSnapshotStore builds the store selected by cfg.Snapshot.Backend.
// Secrets are read from the environment or ~/.cerebro/.env.
func NewSnapshotStore(cfg *config.Config) (SnapshotStore, error) {
	switch cfg.Snapshot.Backend {
	case "", "file":
		return NewFileStore(cfg.DataDir), nil
	case "redis":
		password, err := config.GetConfigValue("CEREBRO_REDIS_PASSWORD")
		if err != nil {
			return nil, err
		}
		return NewRedisStore(RedisConfig{
			Addr:      cfg.Snapshot.RedisAddr,
			Password:  password,
			DB:        cfg.Snapshot.RedisDB,
			Namespace: cfg.Snapshot.Namespace,
		})
	case "s3":
		access, err := config.GetConfigValue("CEREBRO_S3_ACCESS_KEY")
		if err != nil {
			return nil, err
		}
		secret, err := config.GetConfigValue("CEREBRO_S3_SECRET_KEY")
		if err != nil {
			return nil, err
		}
		s3 := cfg.Snapshot.S3
		return NewS3Store(S3Config{
			Endpoint:  s3.Endpoint,
			Region:    s3.Region,
			AccessKey: access,
			SecretKey: secret,
			Bucket:    s3.Bucket,
			Prefix:    s3.Prefix,
			UseSSL:    s3.UseSSL,
		})
	default:
		return nil, fmt.Errorf("unsupported snapshot backend: %s", cfg.Snapshot.Backend)
	}
}
