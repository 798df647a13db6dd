// coordinatord is the long-running daemon that hosts C10's HTTP API and C9's
// webhook ingress for every repo attached to it. One process serves many
// repos, each owned by its own internal/coordinator.Coordinator actor
// registered in an internal/coordinator.Pool.
//
// Grounded on examples/beads-web-ui/main.go's server lifecycle: a listener
// acquired up front, an http.Server run in its own goroutine, SIGINT/SIGTERM
// triggering an ordered drain-then-close shutdown.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/steveyegge/coordinator/internal/auth"
	"github.com/steveyegge/coordinator/internal/config"
	"github.com/steveyegge/coordinator/internal/coordinator"
	"github.com/steveyegge/coordinator/internal/httpapi"
	"github.com/steveyegge/coordinator/internal/lockfile"
	"github.com/steveyegge/coordinator/internal/logging"
	"github.com/steveyegge/coordinator/internal/model"
	"github.com/steveyegge/coordinator/internal/pattern"
	"github.com/steveyegge/coordinator/internal/storage"
	"github.com/steveyegge/coordinator/internal/storage/sqlite"
	syncpkg "github.com/steveyegge/coordinator/internal/sync"
	"github.com/steveyegge/coordinator/internal/upstream/github"
	"github.com/steveyegge/coordinator/internal/upstream/linear"
	"github.com/steveyegge/coordinator/internal/webhook"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "", "path to coordinator.toml (defaults layered with env and built-ins if absent)")
	listenAddr := flag.String("listen", "", "override http.listen_addr from config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("coordinatord: load config: %v", err)
	}
	if *listenAddr != "" {
		cfg.HTTP.ListenAddr = *listenAddr
	}

	zlog, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		log.Fatalf("coordinatord: init logger: %v", err)
	}
	defer zlog.Sync()

	ghResolver := githubResolver(cfg)
	linResolver := linearResolver(cfg)
	locks := &lockRegistry{}
	defer locks.releaseAll()

	pool := coordinator.NewPool(factory(cfg, zlog, ghResolver, linResolver, locks), zlog)

	apiHandler := &httpapi.Handler{Pool: pool, Log: zlog}
	mux := apiHandler.Routes()

	wireWebhooks(mux, cfg, pool, zlog)

	server := &http.Server{
		Addr:         cfg.HTTP.ListenAddr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		zlog.Info("coordinatord: listening", zap.String("addr", cfg.HTTP.ListenAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("coordinatord: server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	signal.Stop(quit)
	zlog.Info("coordinatord: shutting down")

	drainCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(drainCtx); err != nil {
		zlog.Error("coordinatord: forced shutdown", zap.Error(err))
	}

	pool.CloseAll()
	zlog.Info("coordinatord: stopped")
}

// lockRegistry tracks the per-repo daemon.lock files this process has
// acquired, so main can release every one of them on shutdown regardless of
// how many repos got attached over the process's life.
type lockRegistry struct {
	locks []*lockfile.RepoLock
}

func (r *lockRegistry) add(l *lockfile.RepoLock) {
	r.locks = append(r.locks, l)
}

func (r *lockRegistry) releaseAll() {
	for _, l := range r.locks {
		_ = l.Release()
	}
}

// factory builds one Coordinator per repo the first time the Pool attaches
// to it, scoping its SQLite store and markdown files root to that repo's
// owner/name so multiple repos sharing one daemon never collide on disk.
func factory(cfg config.Config, zlog *zap.Logger, ghResolver, linResolver auth.Resolver, locks *lockRegistry) coordinator.Factory {
	return func(repo model.RepoContext) (*coordinator.Coordinator, error) {
		repoLog := logging.Repo(zlog, repo.Owner, repo.Name)

		dbPath := scopedPath(cfg.Storage.DatabasePath, repo)
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
			return nil, fmt.Errorf("coordinatord: create storage dir: %w", err)
		}
		// filepath.Dir(dbPath) is shared by every repo of one owner, so the
		// lock goes in a directory scoped to this owner/name.
		lock, err := lockfile.Acquire(scopedPath(filepath.Dir(cfg.Storage.DatabasePath), repo), repo.Key())
		if err != nil {
			return nil, fmt.Errorf("coordinatord: %w", err)
		}
		locks.add(lock)

		store, err := sqlite.New(context.Background(), dbPath)
		if err != nil {
			return nil, fmt.Errorf("coordinatord: open store for %s: %w", repo.Key(), err)
		}

		filesRoot := scopedPath(cfg.Sync.FilesRoot, repo)
		if err := os.MkdirAll(filesRoot, 0o750); err != nil {
			return nil, fmt.Errorf("coordinatord: create files root: %w", err)
		}

		patSrc := cfg.Sync.FilePattern
		if patSrc == "" {
			patSrc = pattern.Default
		}
		pat, err := pattern.Compile(patSrc)
		if err != nil {
			return nil, fmt.Errorf("coordinatord: compile file pattern: %w", err)
		}

		beadsPath := filepath.Join(filepath.Dir(filesRoot), "beads.jsonl")

		c := coordinator.New(repo, store, filesRoot, pat, beadsPath, cfg.Sync, repoLog)

		if ghResolver != nil {
			httpClient := oauth2.NewClient(context.Background(), resolverTokenSource{ctx: context.Background(), repo: repo, resolver: ghResolver})
			c.GitHub = github.NewClientWithHTTP(httpClient, repo.Owner, repo.Name)
		}
		if linResolver != nil && cfg.Linear.APIKey != "" {
			c.Linear = linear.NewClient(cfg.Linear.APIKey, cfg.Linear.TeamID)
		}

		return c, nil
	}
}

// scopedPath rewrites base into a per-repo subdirectory (base/owner/name)
// so a single config can host multiple repos without their on-disk state
// colliding; a base of "." still nests under the current directory.
func scopedPath(base string, repo model.RepoContext) string {
	return filepath.Join(base, repo.Owner, repo.Name)
}

// resolverTokenSource adapts an auth.Resolver to oauth2.TokenSource, so
// go-github's client re-resolves (and, via CachedResolver, re-validates)
// the installation token on every request rather than freezing it at
// Coordinator construction time.
type resolverTokenSource struct {
	ctx      context.Context
	repo     model.RepoContext
	resolver auth.Resolver
}

func (s resolverTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.resolver.Token(s.ctx, s.repo)
	if err != nil {
		return nil, err
	}
	return &oauth2.Token{AccessToken: tok}, nil
}

// githubResolver wires C11 for GitHub: a StaticResolver when
// COORDINATOR_GITHUB_TOKEN is set (the PAT-based dev/single-repo deployment
// spec §4.10 calls out as the common case); otherwise, when an App id is
// configured, a CachedResolver around an Exchanger stub that always fails.
// GitHub App JWT signing (the real installation-token exchange) has no
// counterpart library anywhere in the example corpus, so it is left as an
// injection point here rather than hand-rolled.
func githubResolver(cfg config.Config) auth.Resolver {
	if tok := os.Getenv("COORDINATOR_GITHUB_TOKEN"); tok != "" {
		return auth.StaticResolver{Tok: tok}
	}
	if cfg.GitHub.AppID == 0 {
		return nil
	}
	return auth.NewCachedResolver(func(ctx context.Context, repo model.RepoContext) (string, time.Time, error) {
		return "", time.Time{}, fmt.Errorf("coordinatord: no GitHub App token exchange configured for %s", repo.Key())
	}, auth.DefaultTTL)
}

// linearResolver is a StaticResolver since Linear's personal API keys
// (spec §4.7.4) don't expire the way GitHub App installation tokens do.
func linearResolver(cfg config.Config) auth.Resolver {
	if cfg.Linear.APIKey == "" {
		return nil
	}
	return auth.StaticResolver{Tok: cfg.Linear.APIKey}
}

// wireWebhooks registers C9's GitHub/Linear ingress routes, dispatching
// each verified delivery onto the target repo's Coordinator via Submit so
// webhook-driven writes serialize with everything else touching that
// repo's Store.
func wireWebhooks(mux *http.ServeMux, cfg config.Config, pool *coordinator.Pool, zlog *zap.Logger) {
	// Ledger is fixed at construction, not resolved per request: it always
	// routes to "whichever repo this daemon currently serves" (activeLedger
	// below), so there is nothing request-dependent to race on.
	ghHandler := &webhook.Handler{
		Secret: []byte(cfg.Webhook.GitHubSecret),
		Ledger: activeLedger{pool: pool},
		Log:    zlog,
		Apply: func(ctx context.Context, d webhook.Delivery) {
			applyGitHubDelivery(ctx, pool, zlog, d)
		},
	}
	linHandler := &webhook.Handler{
		Secret:       []byte(cfg.Webhook.LinearSecret),
		ReplayWindow: cfg.Webhook.ReplayWindow,
		Ledger:       activeLedger{pool: pool},
		Log:          zlog,
		Apply: func(ctx context.Context, d webhook.Delivery) {
			applyLinearDelivery(ctx, pool, zlog, d)
		},
	}

	mux.HandleFunc("POST /webhooks/github", ghHandler.ServeGitHub)
	mux.HandleFunc("POST /webhooks/linear", linHandler.ServeLinear)
}

type activeLedger struct {
	pool *coordinator.Pool
}

func (l activeLedger) FindEvent(ctx context.Context, upstream webhook.Upstream, idempotencyKey string) (bool, error) {
	c, ok := l.anyCoordinator()
	if !ok {
		return false, fmt.Errorf("coordinatord: no repo attached for webhook delivery")
	}
	return webhook.StoreLedger{Store: c.Store}.FindEvent(ctx, upstream, idempotencyKey)
}

func (l activeLedger) AppendEventPending(ctx context.Context, upstream webhook.Upstream, kind, idempotencyKey string) (int64, error) {
	c, ok := l.anyCoordinator()
	if !ok {
		return 0, fmt.Errorf("coordinatord: no repo attached for webhook delivery")
	}
	return webhook.StoreLedger{Store: c.Store}.AppendEventPending(ctx, upstream, kind, idempotencyKey)
}

func (l activeLedger) anyCoordinator() (*coordinator.Coordinator, bool) {
	return l.pool.Any()
}

func applyGitHubDelivery(ctx context.Context, pool *coordinator.Pool, zlog *zap.Logger, d webhook.Delivery) {
	c, ok := pool.Any()
	if !ok {
		return
	}
	gi, err := github.ParseIssueEvent(d.Body)
	if err != nil {
		zlog.Warn("coordinatord: discard unparseable github delivery", zap.String("kind", d.Kind), zap.Error(err))
		return
	}
	c.Submit(func(ctx context.Context) {
		if _, err := c.Recon.IngestGitHubIssue(ctx, gi, d.DeliveryID); err != nil {
			zlog.Warn("coordinatord: github ingest failed", zap.Error(err))
		}
	})
}

// applyLinearDelivery routes a verified Linear delivery by its resource
// kind: Linear sends Issue and Comment events to the same webhook URL, and
// parsing a Comment event's payload as an Issue silently "succeeds" (a
// comment's data carries an id too) while producing a near-empty issue, so
// the kind must be checked before picking a parser.
func applyLinearDelivery(ctx context.Context, pool *coordinator.Pool, zlog *zap.Logger, d webhook.Delivery) {
	c, ok := pool.Any()
	if !ok {
		return
	}

	kind := d.Kind
	if kind == "" {
		kind = linear.WebhookKind(d.Body)
	}

	if strings.EqualFold(kind, "Comment") {
		applyLinearComment(ctx, c, zlog, d)
		return
	}

	li, err := linear.ParseWebhookIssue(d.Body)
	if err != nil {
		zlog.Warn("coordinatord: discard unparseable linear delivery", zap.String("kind", d.Kind), zap.Error(err))
		return
	}
	c.Submit(func(ctx context.Context) {
		if _, err := c.Recon.IngestLinearIssue(ctx, *li, d.DeliveryID); err != nil {
			zlog.Warn("coordinatord: linear ingest failed", zap.Error(err))
		}
	})
}

// applyLinearComment mirrors a Linear comment onto its issue's mapped
// GitHub issue when one exists (spec §8 scenario 4); Linear is otherwise
// inbound-only, so a comment on an issue with no github external ref is
// simply dropped.
func applyLinearComment(ctx context.Context, c *coordinator.Coordinator, zlog *zap.Logger, d webhook.Delivery) {
	cm, err := linear.ParseWebhookComment(d.Body)
	if err != nil {
		zlog.Warn("coordinatord: discard unparseable linear comment delivery", zap.Error(err))
		return
	}
	if c.GitHub == nil {
		return
	}
	c.Submit(func(ctx context.Context) {
		iss, err := c.Store.FindByExternalRef(ctx, model.UpstreamLinear, "linear-"+cm.Issue.Identifier)
		if err != nil {
			if err != storage.ErrNotFound {
				zlog.Warn("coordinatord: linear comment lookup failed", zap.Error(err))
			}
			return
		}
		ref, hasGitHub := iss.ExternalRefs[model.UpstreamGitHub]
		if !hasGitHub {
			return
		}
		sink := syncpkg.GitHubCommentSink{GH: c.GitHub}
		number := strings.TrimPrefix(ref, "github-")
		if err := syncpkg.MirrorComment(ctx, c.Store, sink, model.UpstreamGitHub, iss.ID, number, cm.ID, cm.Body); err != nil {
			zlog.Warn("coordinatord: linear comment mirror failed", zap.Error(err))
		}
	})
}
