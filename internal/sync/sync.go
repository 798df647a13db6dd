// Package sync is the four-way reconciliation orchestrator (C8, spec §4.7):
// beads↔files, files→beads, GitHub↔canonical, Linear→canonical. It reads
// and writes through a single storage.Store (the Coordinator, C10,
// serializes its calls into it per repo; cmd/syncctl also calls it
// directly for one-shot passes).
//
// Grounded on the teacher's internal/merge (three-way field merge with a
// "closed wins" special case for status) and internal/syncbranch (the
// general shape of a sync cycle: detect changes, resolve conflicts, apply,
// record). Retry uses cenkalti/backoff/v4, the teacher's own dependency for
// exactly this purpose.
package sync

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/steveyegge/coordinator/internal/model"
	"github.com/steveyegge/coordinator/internal/storage"
)

// ConflictPolicy selects which side wins when the same issue changed on
// two sides between reconciliations (spec §4.7).
type ConflictPolicy string

const (
	PolicyNewestWins   ConflictPolicy = "newest-wins"
	PolicyBeadsWins    ConflictPolicy = "beads-wins"
	PolicyFileWins     ConflictPolicy = "file-wins"
	PolicyUpstreamWins ConflictPolicy = "upstream-wins"
)

// RetryBounds matches spec §4.7's exact backoff schedule: 1s/2s/4s/8s/16s,
// jitter ±20%, max 5 attempts.
var RetryBounds = struct {
	Initial    time.Duration
	Multiplier float64
	MaxJitter  float64
	MaxRetries uint64
}{
	Initial:    1 * time.Second,
	Multiplier: 2.0,
	MaxJitter:  0.2,
	MaxRetries: 5,
}

// newBackOff builds the exponential schedule spec §4.7 names, bounded to
// RetryBounds.MaxRetries attempts and cancelled with ctx.
func newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = RetryBounds.Initial
	b.Multiplier = RetryBounds.Multiplier
	b.RandomizationFactor = RetryBounds.MaxJitter
	b.MaxElapsedTime = 0 // bounded by MaxRetries instead, per spec's "max 5 attempts"
	return backoff.WithContext(backoff.WithMaxRetries(b, RetryBounds.MaxRetries), ctx)
}

// Retry runs op with spec §4.7's retry schedule, but only for errors the
// errs taxonomy marks transient — op itself is responsible for wrapping
// its errors through errs so Retry can tell a 5xx from a 4xx.
func Retry(ctx context.Context, retryable func(err error) bool, op func() error) error {
	return backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, newBackOff(ctx))
}

// Reconciler holds everything one Coordinator needs to run all four
// reconciliation axes against its own Store. Upstream ports are narrow
// interfaces (defined alongside each axis's file) so tests can fake them
// without depending on the concrete adapters' HTTP/GraphQL plumbing.
type Reconciler struct {
	Store  storage.Store
	Policy ConflictPolicy
	Log    *zap.Logger
}

// New returns a Reconciler with the default file↔beads policy (spec §4.7:
// "the default for file↔beads is newest-wins").
func New(store storage.Store, log *zap.Logger) *Reconciler {
	return &Reconciler{Store: store, Policy: PolicyNewestWins, Log: log}
}

// idempotencyKeyForDelivery builds the webhook-delivery effective key (spec
// §4.7: "(upstream, delivery_id) for webhooks").
func idempotencyKeyForDelivery(deliveryID string) string {
	return deliveryID
}

// idempotencyKeyForPull builds the pulled-item effective key (spec §4.7:
// "(upstream, upstream_id, payload_hash) for pulled items").
func idempotencyKeyForPull(upstreamID string, payload any) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	return upstreamID + ":" + hex.EncodeToString(sum[:8]), nil
}

// checkAndRecordPending consults the SyncEvent ledger for key; if already
// seen it returns (true, nil) — the caller should short-circuit as
// "duplicate" without applying anything (spec §4.7's idempotency rule).
// Otherwise it appends a pending entry and returns its sequence number.
func (r *Reconciler) checkAndRecordPending(ctx context.Context, upstream model.Upstream, dir model.SyncDirection, kind, key, payloadHash string) (duplicate bool, sequence int64, err error) {
	if existing, found, err := r.Store.FindEvent(ctx, upstream, key); err != nil {
		return false, 0, err
	} else if found && existing.Outcome != model.OutcomeFailed {
		return true, existing.Sequence, nil
	}

	seq, err := r.Store.AppendEvent(ctx, model.SyncEvent{
		Upstream:       upstream,
		Direction:      dir,
		Kind:           kind,
		IdempotencyKey: key,
		PayloadHash:    payloadHash,
		Outcome:        model.OutcomePending,
		At:             time.Now().UTC(),
	})
	return false, seq, err
}

func (r *Reconciler) markOutcome(ctx context.Context, sequence int64, outcome model.SyncOutcome) {
	if err := r.Store.MarkEventOutcome(ctx, sequence, outcome); err != nil && r.Log != nil {
		r.Log.Warn("sync: failed to mark event outcome", zap.Int64("sequence", sequence), zap.Error(err))
	}
}

// nowUTC is the single clock read used throughout this package, kept as
// one function so a future deterministic-clock test seam has one call site
// to override.
func nowUTC() time.Time {
	return time.Now().UTC()
}
