package sync

import (
	"context"

	"github.com/steveyegge/coordinator/internal/model"
	"github.com/steveyegge/coordinator/internal/storage"
	"github.com/steveyegge/coordinator/internal/upstream/beads"
)

// BeadsSync runs the beads↔canonical leg of C8: beads is the system of
// record for content (spec §4.7's "beads-wins" policy exists precisely for
// this axis), so ingestion here only needs to detect drift via content
// hash, not merge field by field like the files axis does.
type BeadsSync struct {
	Adapter *beads.Adapter
	last    map[string]string // issue id -> last-seen beads.Fingerprint
}

// NewBeadsSync wraps an already-configured beads.Adapter.
func NewBeadsSync(a *beads.Adapter) *BeadsSync {
	return &BeadsSync{Adapter: a, last: map[string]string{}}
}

// IngestBeads loads every record from the adapter's JSONL file and upserts
// into store any whose content hash changed since the last call (spec
// §4.7's beads↔files axis: beads is authored by a human or agent directly,
// so a changed fingerprint is the only signal this side has of an edit),
// then adds the blocks edges each upserted record's depends_on declares.
// Malformed lines are skipped, matching the adapter's own tolerant read.
func (bs *BeadsSync) IngestBeads(ctx context.Context, store storage.Store) (applied int, skipped []string, err error) {
	records, skippedLines, err := bs.Adapter.Load(ctx)
	if err != nil {
		return 0, skippedLines, err
	}

	for _, rec := range records {
		fp := beads.Fingerprint(rec)
		if bs.last[rec.ID] == fp {
			continue
		}

		incoming := beads.ToIssue(rec)
		existing, err := store.Get(ctx, rec.ID)
		if err != nil && err != storage.ErrNotFound {
			return applied, skippedLines, err
		}

		merged := Resolve(PolicyBeadsWins, existing, incoming)
		if existing != nil {
			merged.ID = existing.ID
		}

		guard := storage.Guard{}
		if existing != nil {
			guard.ExpectedUpdatedAt = existing.UpdatedAt
		}
		if _, err := store.Upsert(ctx, merged, guard); err != nil {
			return applied, skippedLines, err
		}
		if err := syncDependencyEdges(ctx, store, merged.ID, rec.DependsOn, nil); err != nil {
			return applied, skippedLines, err
		}

		bs.last[rec.ID] = fp
		applied++
	}
	return applied, skippedLines, nil
}

// PushToBeads writes store's current state for id out to the beads JSONL
// file via the adapter's closed patch-field set, then refreshes the
// fingerprint cache so the next IngestBeads call doesn't treat this
// self-authored write as an external edit.
func (bs *BeadsSync) PushToBeads(ctx context.Context, store storage.Store, id string) error {
	iss, err := store.Get(ctx, id)
	if err != nil {
		return err
	}

	patch := beads.Patch{
		"status":      string(iss.Status),
		"priority":    int(iss.Priority),
		"title":       iss.Title,
		"description": iss.Body,
		"labels":      append([]string{}, iss.Labels...),
		"assignee":    iss.PrimaryAssignee(),
	}
	if iss.Status == model.StatusClosed {
		if err := bs.Adapter.CloseIssue(ctx, id); err != nil {
			return err
		}
	} else if err := bs.Adapter.UpdateIssue(ctx, id, patch); err != nil {
		return err
	}

	records, _, err := bs.Adapter.Load(ctx)
	if err != nil {
		return err
	}
	for _, rec := range records {
		if rec.ID == id {
			bs.last[id] = beads.Fingerprint(rec)
			break
		}
	}
	return nil
}
