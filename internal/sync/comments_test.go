package sync

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/steveyegge/coordinator/internal/model"
	"github.com/steveyegge/coordinator/internal/storage/memory"
)

type fakeCommentSink struct {
	posted []string
	nextID string
}

func (f *fakeCommentSink) AddComment(ctx context.Context, target string, body string) (string, error) {
	f.posted = append(f.posted, body)
	return f.nextID, nil
}

func TestMirrorCommentPostsOnce(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	sink := &fakeCommentSink{nextID: "c-1"}

	require.NoError(t, MirrorComment(ctx, s, sink, model.UpstreamGitHub, "bd-1", "42", "linear-c-9", "hello"))
	require.Len(t, sink.posted, 1)

	// comment_map is keyed by the ORIGIN (Linear) comment id, not the id
	// AddComment returned from the destination (GitHub).
	seen, err := s.HasComment(ctx, "bd-1", model.UpstreamGitHub, "linear-c-9")
	require.NoError(t, err)
	require.True(t, seen)
}

func TestMirrorCommentSkipsAlreadyMirrored(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	require.NoError(t, s.RecordComment(ctx, model.CommentMapping{IssueID: "bd-1", Upstream: model.UpstreamGitHub, UpstreamCommentID: "linear-c-9"}))

	sink := &fakeCommentSink{nextID: "c-2"}
	require.NoError(t, MirrorComment(ctx, s, sink, model.UpstreamGitHub, "bd-1", "42", "linear-c-9", "hello again"))
	require.Empty(t, sink.posted)
}
