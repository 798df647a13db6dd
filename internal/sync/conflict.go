package sync

import (
	"github.com/steveyegge/coordinator/internal/model"
)

// Resolve merges incoming into existing under policy, field by field for
// the fields the incoming side is authoritative for. existing may be nil
// (first write — incoming wins outright). Grounded on the teacher's
// internal/merge status-merge special case (closed beats open on a draw);
// carried forward here as newest-wins falling back to "closed wins a tie"
// when UpdatedAt is identical, since a closed issue reopening silently on a
// clock tie would be a worse surprise than the reverse.
func Resolve(policy ConflictPolicy, existing, incoming *model.Issue) *model.Issue {
	if existing == nil {
		return incoming
	}

	switch policy {
	case PolicyBeadsWins:
		if incoming.ExternalRefs[model.UpstreamBeads] != "" || existing.ExternalRefs[model.UpstreamBeads] == "" {
			return incoming
		}
		return existing
	case PolicyFileWins:
		return incoming
	case PolicyUpstreamWins:
		return incoming
	case PolicyNewestWins:
		fallthrough
	default:
		if incoming.UpdatedAt.After(existing.UpdatedAt) {
			return incoming
		}
		if existing.UpdatedAt.After(incoming.UpdatedAt) {
			return existing
		}
		if incoming.Status == model.StatusClosed || existing.Status == model.StatusClosed {
			merged := *incoming
			merged.Status = model.StatusClosed
			return &merged
		}
		return incoming
	}
}

// IsStale reports whether incoming's UpdatedAt is older than existing's,
// which per spec §4.7 ("events arriving out of order... otherwise the
// payload becomes a stale event") means the event should be recorded as
// stale rather than applied.
func IsStale(existing, incoming *model.Issue) bool {
	if existing == nil {
		return false
	}
	return incoming.UpdatedAt.Before(existing.UpdatedAt)
}
