package sync

import (
	"context"

	"github.com/steveyegge/coordinator/internal/model"
)

// CommentSink is the narrow surface comment mirroring needs from an
// upstream adapter — just "post a comment, get back its id".
type CommentSink interface {
	AddComment(ctx context.Context, issueNumberOrID string, body string) (commentID string, err error)
}

// CommentStore is the subset of storage.Store comment mirroring touches.
type CommentStore interface {
	HasComment(ctx context.Context, issueID string, upstream model.Upstream, upstreamCommentID string) (bool, error)
	RecordComment(ctx context.Context, m model.CommentMapping) error
}

// MirrorComment posts body to dst for issueID (identified on the upstream
// side by target, e.g. a GitHub issue number or a Linear issue id) unless
// comment_map already shows sourceCommentID has been mirrored there (spec
// §4.7's I7: prevents an echo of a comment already mirrored once from
// being mirrored again when the polling/webhook cycle sees it a second
// time). sourceCommentID is the id of the comment on the ORIGIN upstream
// (empty for a comment authored directly in canonical, e.g. via the HTTP
// API), used as the comment_map key alongside issueID+dst.
func MirrorComment(ctx context.Context, store CommentStore, dst CommentSink, upstream model.Upstream, issueID, target, sourceCommentID, body string) error {
	if sourceCommentID != "" {
		seen, err := store.HasComment(ctx, issueID, upstream, sourceCommentID)
		if err != nil {
			return err
		}
		if seen {
			return nil
		}
	}

	if _, err := dst.AddComment(ctx, target, body); err != nil {
		return err
	}

	// Nothing to de-dup a comment authored directly in canonical against
	// (there is no origin-side id), so there is nothing to record.
	if sourceCommentID == "" {
		return nil
	}

	// comment_map is keyed by the ORIGIN comment's id, not dst's, since
	// that's the id a later redelivery of the same source comment will
	// carry into the next HasComment check above.
	return store.RecordComment(ctx, model.CommentMapping{
		IssueID:           issueID,
		Upstream:          upstream,
		UpstreamCommentID: sourceCommentID,
	})
}
