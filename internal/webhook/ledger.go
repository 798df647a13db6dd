package webhook

import (
	"context"
	"time"

	"github.com/steveyegge/coordinator/internal/model"
	"github.com/steveyegge/coordinator/internal/storage"
)

// StoreLedger adapts a storage.Store to the Ledger interface, translating
// this package's upstream-agnostic Upstream type to model.Upstream and
// building the model.SyncEvent AppendEvent expects.
type StoreLedger struct {
	Store storage.Store
}

func (l StoreLedger) FindEvent(ctx context.Context, upstream Upstream, idempotencyKey string) (bool, error) {
	_, found, err := l.Store.FindEvent(ctx, toModelUpstream(upstream), idempotencyKey)
	return found, err
}

func (l StoreLedger) AppendEventPending(ctx context.Context, upstream Upstream, kind, idempotencyKey string) (int64, error) {
	return l.Store.AppendEvent(ctx, model.SyncEvent{
		Upstream:       toModelUpstream(upstream),
		Direction:      model.DirectionInbound,
		Kind:           kind,
		IdempotencyKey: idempotencyKey,
		Outcome:        model.OutcomePending,
		At:             time.Now().UTC(),
	})
}

func toModelUpstream(u Upstream) model.Upstream {
	return model.Upstream(u)
}
