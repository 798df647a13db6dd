// Package auth implements the installation/token resolver (C11, spec §4.10):
// a contract for exchanging a repo's identity for a short-lived upstream
// credential, plus an in-memory TTL-cached implementation so every adapter
// call doesn't re-run the exchange. The exchange itself (GitHub App JWT ->
// installation token, Linear OAuth refresh, or anything else an upstream
// needs) is injected as an Exchanger — this package owns only the caching
// and coalescing contract, matching spec.md's "contract only" scope for C11.
//
// Grounded on the teacher's internal/export/policy.go for the
// interface-plus-default-implementation shape, and on spec §5's per-
// installation token cache (TTL 55 min) with read-write-locked, short
// critical sections.
package auth

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/steveyegge/coordinator/internal/errs"
	"github.com/steveyegge/coordinator/internal/model"
)

// DefaultTTL is the installation token lifetime spec §5 caches against.
// GitHub installation tokens are valid for 60 minutes; caching for 55
// leaves a margin so a request never starts with a token that expires
// mid-flight.
const DefaultTTL = 55 * time.Minute

// Resolver exchanges a repo's identity for a credential an upstream client
// can use immediately (an HTTP bearer token, typically).
type Resolver interface {
	Token(ctx context.Context, repo model.RepoContext) (string, error)
}

// Exchanger performs the actual credential exchange for one repo. It
// returns the token's own expiry if the upstream reports one (zero time if
// not, in which case CachedResolver falls back to its configured TTL).
type Exchanger func(ctx context.Context, repo model.RepoContext) (token string, expiresAt time.Time, err error)

type cachedToken struct {
	token     string
	expiresAt time.Time
}

// CachedResolver is a Resolver backed by an Exchanger, caching each repo's
// token for TTL (or the exchange's own reported expiry, whichever is
// sooner) and coalescing concurrent misses for the same repo into a single
// in-flight exchange via singleflight, so a burst of requests against a
// cold cache doesn't fire the same installation-token exchange N times.
type CachedResolver struct {
	exchange Exchanger
	ttl      time.Duration

	mu    sync.RWMutex
	cache map[string]cachedToken

	group singleflight.Group
}

// NewCachedResolver builds a CachedResolver. ttl <= 0 uses DefaultTTL.
func NewCachedResolver(exchange Exchanger, ttl time.Duration) *CachedResolver {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &CachedResolver{
		exchange: exchange,
		ttl:      ttl,
		cache:    make(map[string]cachedToken),
	}
}

// Token returns a cached token for repo if one hasn't expired, otherwise
// runs the Exchanger (coalesced across concurrent callers) and caches the
// result.
func (r *CachedResolver) Token(ctx context.Context, repo model.RepoContext) (string, error) {
	key := repo.Key()
	now := time.Now()

	r.mu.RLock()
	c, ok := r.cache[key]
	r.mu.RUnlock()
	if ok && now.Before(c.expiresAt) {
		return c.token, nil
	}

	v, err, _ := r.group.Do(key, func() (interface{}, error) {
		// Re-check under the singleflight key: another caller may have
		// already refreshed this repo's token while we waited to enter.
		r.mu.RLock()
		c, ok := r.cache[key]
		r.mu.RUnlock()
		if ok && time.Now().Before(c.expiresAt) {
			return c.token, nil
		}

		token, expiresAt, err := r.exchange(ctx, repo)
		if err != nil {
			return "", errs.Wrap(errs.KindAuthorization, "auth: exchange token for "+key, err)
		}
		if expiresAt.IsZero() || time.Until(expiresAt) > r.ttl {
			expiresAt = time.Now().Add(r.ttl)
		}

		r.mu.Lock()
		r.cache[key] = cachedToken{token: token, expiresAt: expiresAt}
		r.mu.Unlock()
		return token, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Invalidate drops any cached token for repo, forcing the next Token call
// to re-run the exchange. Callers use this after an upstream 401/403
// suggests a cached token was revoked early.
func (r *CachedResolver) Invalidate(repo model.RepoContext) {
	r.mu.Lock()
	delete(r.cache, repo.Key())
	r.mu.Unlock()
}

// StaticResolver always returns the same token, for upstreams authenticated
// with a long-lived bearer token rather than a per-installation exchange
// (Linear's OAuth token per spec §4.6, or local dev/testing against GitHub
// with a personal access token).
type StaticResolver struct {
	Tok string
}

func (s StaticResolver) Token(ctx context.Context, repo model.RepoContext) (string, error) {
	if s.Tok == "" {
		return "", errs.New(errs.KindAuthorization, "auth: no static token configured")
	}
	return s.Tok, nil
}
