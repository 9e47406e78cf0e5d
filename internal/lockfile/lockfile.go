// Package lockfile wraps gofrs/flock with a bounded wait, so snapshot writers
// in different processes never interleave.
package lockfile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// DefaultTimeout bounds how long Acquire waits for a competing holder.
const DefaultTimeout = 10 * time.Second

const retryDelay = 100 * time.Millisecond

// Acquire obtains an exclusive lock on path, creating its parent directory.
// The returned release func is always non-nil and safe to call once.
func Acquire(ctx context.Context, path string, timeout time.Duration) (func(), error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return func() {}, fmt.Errorf("cannot create lock dir: %w", err)
	}
	l := flock.New(path)
	deadline := time.Now().Add(timeout)
	for {
		locked, err := l.TryLock()
		if err != nil {
			return func() {}, fmt.Errorf("cannot acquire lock %s: %w", path, err)
		}
		if locked {
			return func() { _ = l.Unlock() }, nil
		}
		if time.Now().After(deadline) {
			return func() {}, fmt.Errorf("lock %s is held by another process", path)
		}
		select {
		case <-ctx.Done():
			return func() {}, ctx.Err()
		case <-time.After(retryDelay):
		}
	}
}
