package artifact

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// BuildLock serializes index builds on one artifact directory across
// processes. Two concurrent builds would race on generation numbers and
// waste embedding work; the second builder either waits or bails out.
type BuildLock struct {
	flock  *flock.Flock
	locked bool
}

// NewBuildLock creates a lock for the given artifact directory. The lock
// file lives at <dir>/.build.lock.
func NewBuildLock(dir string) *BuildLock {
	return &BuildLock{flock: flock.New(filepath.Join(dir, ".build.lock"))}
}

// Lock acquires the lock, blocking until it is available.
func (l *BuildLock) Lock() error {
	if err := os.MkdirAll(filepath.Dir(l.flock.Path()), 0o755); err != nil {
		return fmt.Errorf("create artifact directory: %w", err)
	}
	if err := l.flock.Lock(); err != nil {
		return fmt.Errorf("acquire build lock: %w", err)
	}
	l.locked = true
	return nil
}

// TryLock acquires the lock without blocking. Returns false when another
// build holds it.
func (l *BuildLock) TryLock() (bool, error) {
	if err := os.MkdirAll(filepath.Dir(l.flock.Path()), 0o755); err != nil {
		return false, fmt.Errorf("create artifact directory: %w", err)
	}
	acquired, err := l.flock.TryLock()
	if err != nil {
		return false, fmt.Errorf("acquire build lock: %w", err)
	}
	l.locked = acquired
	return acquired, nil
}

// Unlock releases the lock. Safe to call on an unlocked BuildLock.
func (l *BuildLock) Unlock() error {
	if !l.locked {
		return nil
	}
	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("release build lock: %w", err)
	}
	return nil
}

// Path returns the lock file path.
func (l *BuildLock) Path() string { return l.flock.Path() }
