// Package coordinator implements the per-repo single-writer actor of C10
// (spec §3.1): exactly one Coordinator goroutine owns a repo's Store and
// every mutation to it — the file watcher, webhook deliveries, and the
// upstream poll loop all funnel through its single message loop rather
// than calling into storage.Store directly from their own goroutines.
//
// Grounded on the teacher's internal/rpc server lifecycle
// (server_lifecycle_conn.go): a readiness channel, a done channel closed
// on exit, sync.Once-guarded Stop, and a bounded drain on shutdown,
// generalized here from an RPC accept loop into a state machine over one
// repo's sync sources.
package coordinator

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/steveyegge/coordinator/internal/config"
	"github.com/steveyegge/coordinator/internal/model"
	"github.com/steveyegge/coordinator/internal/pattern"
	"github.com/steveyegge/coordinator/internal/storage"
	syncpkg "github.com/steveyegge/coordinator/internal/sync"
	"github.com/steveyegge/coordinator/internal/upstream/beads"
)

// State is one stage of a Coordinator's lifecycle (spec §3.1).
type State string

const (
	StateAttach   State = "attach"
	StateLoading  State = "loading"
	StateActive   State = "active"
	StateDraining State = "draining"
	StateClosing  State = "closing"
	StateClosed   State = "closed"
)

// GitHubClient and LinearClient narrow the upstream adapters to what the
// poll loop calls, so a Coordinator can run with either, both, or neither
// configured (spec §4.6: upstream integrations are optional per repo).
type GitHubClient = syncpkg.GitHubPort
type LinearClient = syncpkg.LinearPort

// Coordinator owns one repo's Store and runs its sync sources serially
// through a single goroutine (Run), so no two sources ever race on a
// write — every message handler below executes only inside Run's loop.
type Coordinator struct {
	Repo   model.RepoContext
	Store  storage.Store
	Recon  *syncpkg.Reconciler
	Files  *syncpkg.FileSync
	Beads  *syncpkg.BeadsSync
	GitHub GitHubClient
	Linear LinearClient
	Cfg    config.SyncConfig
	Log    *zap.Logger

	mu       sync.RWMutex
	state    State
	ready    chan struct{}
	done     chan struct{}
	commands chan func(ctx context.Context)
	stopOnce sync.Once
	cancel   context.CancelFunc
}

// New builds a Coordinator in StateAttach. The caller must call Run to
// move it through Loading into Active.
func New(repo model.RepoContext, store storage.Store, filesRoot string, pat *pattern.Pattern, beadsPath string, cfg config.SyncConfig, log *zap.Logger) *Coordinator {
	return &Coordinator{
		Repo:     repo,
		Store:    store,
		Recon:    syncpkg.New(store, log),
		Files:    syncpkg.NewFileSync(filesRoot, pat),
		Beads:    syncpkg.NewBeadsSync(beads.NewAdapter(beadsPath)),
		Cfg:      cfg,
		Log:      log,
		state:    StateAttach,
		ready:    make(chan struct{}),
		done:     make(chan struct{}),
		commands: make(chan func(ctx context.Context), 64),
	}
}

// State returns the Coordinator's current lifecycle state.
func (c *Coordinator) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Coordinator) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// WaitReady blocks until the Coordinator has finished Loading and entered
// Active.
func (c *Coordinator) WaitReady() <-chan struct{} {
	return c.ready
}

// Submit enqueues fn to run on the Coordinator's own goroutine, serialized
// against every other submitted fn and against the poll/watch loops. This
// is the only way any other goroutine is allowed to touch c.Store.
func (c *Coordinator) Submit(fn func(ctx context.Context)) {
	select {
	case c.commands <- fn:
	case <-c.done:
	}
}

// Run drives Attach -> Loading -> Active, then services commands, file
// watch events, and poll ticks until ctx is cancelled or Close is called,
// at which point it moves through Draining -> Closing -> Closed. Run
// blocks until the Coordinator is fully closed; callers start it in its
// own goroutine.
func (c *Coordinator) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()
	defer close(c.done)

	c.setState(StateLoading)
	if err := c.load(ctx); err != nil {
		c.setState(StateClosed)
		return err
	}

	var watcher *FileWatcher
	if c.Cfg.FilesRoot != "" {
		w, err := NewFileWatcher(c.Cfg.FilesRoot, c.Cfg.WatchDebounce, c.Cfg.WatchStability, func(path string) {
			c.Submit(func(ctx context.Context) { c.onFileChanged(ctx, path) })
		}, c.Log)
		if err != nil && c.Log != nil {
			c.Log.Warn("coordinator: file watch unavailable, falling back to poll interval only", zap.Error(err))
		} else if err == nil {
			watcher = w
			watchStop := make(chan struct{})
			go watcher.Run(watchStop)
			defer func() { close(watchStop); _ = watcher.Close() }()
		}
	}

	c.setState(StateActive)
	close(c.ready)

	pollInterval := c.Cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = 5 * time.Minute
	}
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.setState(StateDraining)
			c.drain()
			c.setState(StateClosing)
			c.setState(StateClosed)
			return nil
		case fn := <-c.commands:
			fn(ctx)
		case <-ticker.C:
			c.poll(ctx)
		}
	}
}

// Close requests a graceful shutdown and blocks until Run has fully
// exited, matching the teacher's sync.Once-guarded Stop.
func (c *Coordinator) Close() {
	c.stopOnce.Do(func() {
		c.mu.RLock()
		cancel := c.cancel
		c.mu.RUnlock()
		if cancel != nil {
			cancel()
		}
	})
	<-c.done
}

// load performs the Attach->Loading transition's work: pulling in
// whatever beads/file state already exists before serving any commands.
func (c *Coordinator) load(ctx context.Context) error {
	if c.Beads != nil {
		if _, _, err := c.Beads.IngestBeads(ctx, c.Store); err != nil {
			return err
		}
	}
	return nil
}

// drain runs any commands already queued before shutdown completes. It
// returns as soon as the queue has been quiet for one idle tick, bounded
// overall by a hard deadline so a steady trickle of new Submits can't keep
// Close() from ever returning.
func (c *Coordinator) drain() {
	const idleTick = 20 * time.Millisecond
	deadline := time.After(5 * time.Second)
	idle := time.NewTimer(idleTick)
	defer idle.Stop()
	for {
		select {
		case fn := <-c.commands:
			if !idle.Stop() {
				<-idle.C
			}
			idle.Reset(idleTick)
			fn(context.Background())
		case <-idle.C:
			return
		case <-deadline:
			return
		}
	}
}

func (c *Coordinator) onFileChanged(ctx context.Context, path string) {
	if _, _, _, err := c.Files.ApplyFileChange(ctx, c.Store, path); err != nil && c.Log != nil {
		c.Log.Warn("coordinator: file ingest failed", zap.String("path", path), zap.Error(err))
	}
}

// poll runs the upstream pull axes (beads drift check, Linear poll) that
// have no push-triggered event source of their own.
func (c *Coordinator) poll(ctx context.Context) {
	if c.Beads != nil {
		if _, _, err := c.Beads.IngestBeads(ctx, c.Store); err != nil && c.Log != nil {
			c.Log.Warn("coordinator: beads poll failed", zap.Error(err))
		}
	}
	if c.Linear != nil {
		if _, err := c.Recon.Pull(ctx, c.Linear); err != nil && c.Log != nil {
			c.Log.Warn("coordinator: linear poll failed", zap.Error(err))
		}
	}
}
