// Package sqlite implements storage.Store on top of a single SQLite file,
// using the pure-Go, cgo-free driver so the resulting binary stays a static
// single-file build (grounded on the teacher's own internal/storage/sqlite
// package, adapted to the canonical model in internal/model).
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	sqlite3 "github.com/ncruces/go-sqlite3"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/tetratelabs/wazero"
)

var wslWindowsPathPattern = regexp.MustCompile(`^/mnt/[a-zA-Z]/`)
var wslNetworkPathPattern = regexp.MustCompile(`^/mnt/wsl/`)

// isWSL2WindowsPath reports whether path sits on a filesystem where SQLite's
// WAL mode is known to misbehave under WSL2 (GH#920, GH#1224): Windows
// drives mounted at /mnt/<letter>/ and Docker Desktop's /mnt/wsl/ bind
// mounts. On such paths we fall back to DELETE journal mode.
func isWSL2WindowsPath(path string) bool {
	data, err := os.ReadFile("/proc/version")
	if err != nil {
		return false
	}
	version := strings.ToLower(string(data))
	if !strings.Contains(version, "microsoft") && !strings.Contains(version, "wsl") {
		return false
	}
	return wslWindowsPathPattern.MatchString(path) || wslNetworkPathPattern.MatchString(path)
}

func init() {
	cacheDir := ""
	if userCache, err := os.UserCacheDir(); err == nil {
		cacheDir = filepath.Join(userCache, "coordinator", "wasm")
	}
	var cache wazero.CompilationCache
	if cacheDir != "" {
		if c, err := wazero.NewCompilationCacheWithDir(cacheDir); err == nil {
			cache = c
		}
	}
	if cache == nil {
		cache = wazero.NewCompilationCache()
	}
	sqlite3.RuntimeConfig = wazero.NewRuntimeConfig().WithCompilationCache(cache)
}

// DB wraps a SQLite connection pool configured for the coordinator's
// single-writer-many-readers access pattern (spec §4.1): the Coordinator
// actor (C10) is the only writer, so the pool only needs to serve readers
// concurrently with that one writer, which is exactly what WAL mode gives.
type DB struct {
	db          *sql.DB
	path        string
	busyTimeout time.Duration
	closed      atomic.Bool
}

// Open creates or opens a SQLite database at path, applies the schema and
// any pending migrations, and returns a ready-to-use *DB. path may be
// ":memory:" for tests.
func Open(ctx context.Context, path string) (*DB, error) {
	return OpenWithTimeout(ctx, path, 30*time.Second)
}

// OpenWithTimeout is Open with a configurable busy_timeout pragma.
func OpenWithTimeout(ctx context.Context, path string, busyTimeout time.Duration) (*DB, error) {
	timeoutMs := int64(busyTimeout / time.Millisecond)

	var connStr string
	isInMemory := path == ":memory:"
	if isInMemory {
		connStr = fmt.Sprintf("file:memdb?mode=memory&cache=shared&_pragma=journal_mode(DELETE)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(%d)&_time_format=sqlite", timeoutMs)
	} else {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("sqlite: create directory: %w", err)
			}
		}
		connStr = fmt.Sprintf("file:%s?_pragma=foreign_keys(ON)&_pragma=busy_timeout(%d)&_time_format=sqlite", path, timeoutMs)
	}

	sqldb, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}

	if isInMemory {
		sqldb.SetMaxOpenConns(1)
		sqldb.SetMaxIdleConns(1)
	} else {
		maxConns := runtime.NumCPU() + 1 // 1 writer + N readers
		sqldb.SetMaxOpenConns(maxConns)
		sqldb.SetMaxIdleConns(2)
		sqldb.SetConnMaxLifetime(0)
	}

	if !isInMemory {
		journalMode := "WAL"
		if isWSL2WindowsPath(path) {
			journalMode = "DELETE"
		}
		if _, err := sqldb.Exec("PRAGMA journal_mode=" + journalMode); err != nil {
			return nil, fmt.Errorf("sqlite: enable %s mode: %w", journalMode, err)
		}
	}

	if err := sqldb.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}

	if _, err := sqldb.ExecContext(ctx, schemaV1); err != nil {
		return nil, fmt.Errorf("sqlite: init schema: %w", err)
	}
	if err := runMigrations(ctx, sqldb); err != nil {
		return nil, fmt.Errorf("sqlite: migrations: %w", err)
	}

	absPath := path
	if !isInMemory {
		if abs, err := filepath.Abs(path); err == nil {
			absPath = abs
		}
	}

	return &DB{db: sqldb, path: absPath, busyTimeout: busyTimeout}, nil
}

// Path returns the absolute database file path, or ":memory:".
func (d *DB) Path() string { return d.path }

// CloseStore checkpoints the WAL and closes the underlying connection pool.
func (d *DB) CloseStore() error {
	d.closed.Store(true)
	_, _ = d.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return d.db.Close()
}
