package lockfile

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func TestAcquire_ReleaseAllowsReacquire(t *testing.T) {
	p := filepath.Join(t.TempDir(), "nested", "state.lock")

	release, err := Acquire(context.Background(), p, time.Second)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	release()

	release2, err := Acquire(context.Background(), p, time.Second)
	if err != nil {
		t.Fatalf("second Acquire: %v", err)
	}
	release2()
}

func TestAcquire_TimesOutWhileHeld(t *testing.T) {
	p := filepath.Join(t.TempDir(), "state.lock")

	release, err := Acquire(context.Background(), p, time.Second)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer release()

	// flock locks are per file descriptor, so a second handle in the same
	// process contends like another process would.
	if _, err := Acquire(context.Background(), p, 250*time.Millisecond); err == nil {
		t.Fatalf("expected contention error")
	}
}
