package sync

import (
	"context"

	"github.com/steveyegge/coordinator/internal/model"
	"github.com/steveyegge/coordinator/internal/storage"
	"github.com/steveyegge/coordinator/internal/upstream/linear"
)

// externalRefLinear formats the "linear-<identifier>" external ref key.
func externalRefLinear(li linear.Issue) string {
	return "linear-" + li.Identifier
}

// IngestLinearIssue applies a polled or webhook-delivered Linear issue to
// the canonical store (spec §4.7.4: Linear is inbound-only — canonical
// writes do not push back to Linear, so there is no PushIssueToLinear
// counterpart to PushIssueToGitHub).
func (r *Reconciler) IngestLinearIssue(ctx context.Context, li linear.Issue, deliveryID string) (model.SyncOutcome, error) {
	ref := externalRefLinear(li)

	key := deliveryID
	if key == "" {
		var err error
		key, err = idempotencyKeyForPull(ref, li)
		if err != nil {
			return "", err
		}
	}

	dup, seq, err := r.checkAndRecordPending(ctx, model.UpstreamLinear, model.DirectionInbound, "issues", key, "")
	if err != nil {
		return "", err
	}
	if dup {
		return model.OutcomeDuplicate, nil
	}

	incoming := linear.ToIssue(li)
	incoming.ExternalRefs = map[model.Upstream]string{model.UpstreamLinear: ref}

	existing, err := r.Store.FindByExternalRef(ctx, model.UpstreamLinear, ref)
	if err != nil && err != storage.ErrNotFound {
		r.markOutcome(ctx, seq, model.OutcomeFailed)
		return "", err
	}

	if IsStale(existing, incoming) {
		r.markOutcome(ctx, seq, model.OutcomeStale)
		return model.OutcomeStale, nil
	}

	merged := Resolve(PolicyUpstreamWins, existing, incoming)
	if existing != nil {
		merged.ID = existing.ID
	}

	guard := storage.Guard{}
	if existing != nil {
		guard.ExpectedUpdatedAt = existing.UpdatedAt
	}
	if _, err := r.Store.Upsert(ctx, merged, guard); err != nil {
		r.markOutcome(ctx, seq, model.OutcomeFailed)
		return "", err
	}

	r.markOutcome(ctx, seq, model.OutcomeApplied)
	return model.OutcomeApplied, nil
}

// LinearPort narrows linear.Client to what Pull needs, so tests can fake
// paginated results without a GraphQL server.
type LinearPort interface {
	ListIssues(ctx context.Context, cursor string) ([]linear.Issue, string, bool, error)
}

// Pull drains every page of ln's issue list through IngestLinearIssue,
// stopping at the first page with no more results (spec §4.6's poll-based
// ingestion; webhook deliveries reach IngestLinearIssue directly).
func (r *Reconciler) Pull(ctx context.Context, ln LinearPort) (applied int, err error) {
	cursor := ""
	for {
		issues, next, hasMore, err := ln.ListIssues(ctx, cursor)
		if err != nil {
			return applied, err
		}
		for _, li := range issues {
			outcome, err := r.IngestLinearIssue(ctx, li, "")
			if err != nil {
				return applied, err
			}
			if outcome == model.OutcomeApplied {
				applied++
			}
		}
		if !hasMore {
			return applied, nil
		}
		cursor = next
	}
}
