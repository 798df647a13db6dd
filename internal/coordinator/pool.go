package coordinator

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/steveyegge/coordinator/internal/model"
)

// Factory builds a not-yet-running Coordinator for repo. Pool calls it at
// most once per repo key; the caller supplies whatever storage/files/beads
// wiring that repo needs (spec §4.6: each repo carries its own config).
type Factory func(repo model.RepoContext) (*Coordinator, error)

// Pool is "one actor per repo, many actors per process" (spec §3.1),
// generalized from the teacher's one-daemon-process server into a registry
// keyed by owner/name so a single coordinatord binary can serve every repo
// it has been attached to. POST /context (spec §6.2) resolves through
// Attach.
type Pool struct {
	factory Factory
	log     *zap.Logger

	mu    sync.Mutex
	byKey map[string]*Coordinator
}

// NewPool builds an empty Pool backed by factory.
func NewPool(factory Factory, log *zap.Logger) *Pool {
	return &Pool{factory: factory, log: log, byKey: make(map[string]*Coordinator)}
}

// Attach returns the running Coordinator for repo, building and starting
// one via factory on first use. Concurrent Attach calls for the same repo
// coalesce onto a single build.
func (p *Pool) Attach(ctx context.Context, repo model.RepoContext) (*Coordinator, error) {
	key := repo.Key()

	p.mu.Lock()
	if c, ok := p.byKey[key]; ok {
		p.mu.Unlock()
		return c, nil
	}
	c, err := p.factory(repo)
	if err != nil {
		p.mu.Unlock()
		return nil, err
	}
	p.byKey[key] = c
	p.mu.Unlock()

	go func() {
		if err := c.Run(context.Background()); err != nil && p.log != nil {
			p.log.Error("coordinator: exited with error", zap.String("repo", key), zap.Error(err))
		}
	}()

	select {
	case <-c.WaitReady():
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return c, nil
}

// Get returns the already-attached Coordinator for repo, if any, without
// starting one.
func (p *Pool) Get(repo model.RepoContext) (*Coordinator, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.byKey[repo.Key()]
	return c, ok
}

// Any returns an arbitrary attached Coordinator, used by callers (like a
// webhook dispatcher with no per-delivery repo routing of its own) that
// operate against "whichever repo this daemon currently serves" rather than
// a specific one. Reports ok=false if nothing is attached yet.
func (p *Pool) Any() (*Coordinator, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range p.byKey {
		return c, true
	}
	return nil, false
}

// CloseAll drains and stops every attached Coordinator, used on process
// shutdown.
func (p *Pool) CloseAll() {
	p.mu.Lock()
	coords := make([]*Coordinator, 0, len(p.byKey))
	for _, c := range p.byKey {
		coords = append(coords, c)
	}
	p.mu.Unlock()

	var wg sync.WaitGroup
	for _, c := range coords {
		wg.Add(1)
		go func(c *Coordinator) {
			defer wg.Done()
			c.Close()
		}(c)
	}
	wg.Wait()
}
