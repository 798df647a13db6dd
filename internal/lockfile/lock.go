// Package lockfile guards a repo's on-disk state against two coordinatord
// processes attaching to it at once. Each repo gets one lock file under its
// scoped storage directory (spec §6.4's state layout); whichever process
// holds it owns that repo's SQLite store and markdown tree.
package lockfile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// Info is the metadata recorded in a repo's daemon.lock while held.
type Info struct {
	PID       int       `json:"pid"`
	Repo      string    `json:"repo"`
	StartedAt time.Time `json:"started_at"`
}

// RepoLock holds an exclusive, non-blocking lock on one repo's storage
// directory for the life of a coordinatord process.
type RepoLock struct {
	flock *flock.Flock
	path  string
}

// Acquire takes the lock for dir, writing Info into the lock file on
// success. Returns an error naming the holding PID (read on a best-effort
// basis) if another process already holds it.
func Acquire(dir, repoKey string) (*RepoLock, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("lockfile: create %s: %w", dir, err)
	}
	path := filepath.Join(dir, "daemon.lock")
	fl := flock.New(path)

	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lockfile: lock %s: %w", path, err)
	}
	if !locked {
		if info, readErr := Read(dir); readErr == nil {
			return nil, fmt.Errorf("lockfile: %s already held by pid %d", repoKey, info.PID)
		}
		return nil, fmt.Errorf("lockfile: %s already held by another process", repoKey)
	}

	info := Info{PID: os.Getpid(), Repo: repoKey, StartedAt: time.Now()}
	data, err := json.Marshal(info)
	if err != nil {
		_ = fl.Unlock()
		return nil, err
	}
	if err := os.WriteFile(path, data, 0o640); err != nil {
		_ = fl.Unlock()
		return nil, fmt.Errorf("lockfile: write %s: %w", path, err)
	}

	return &RepoLock{flock: fl, path: path}, nil
}

// Release drops the lock and removes the lock file.
func (l *RepoLock) Release() error {
	if l == nil || l.flock == nil {
		return nil
	}
	if err := l.flock.Unlock(); err != nil {
		return err
	}
	return os.Remove(l.path)
}

// Read parses a repo's daemon.lock without taking it, for diagnostics
// (e.g. reporting which PID currently holds a repo).
func Read(dir string) (*Info, error) {
	data, err := os.ReadFile(filepath.Join(dir, "daemon.lock"))
	if err != nil {
		return nil, err
	}
	var info Info
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("lockfile: parse lock file: %w", err)
	}
	return &info, nil
}
