package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/steveyegge/coordinator/internal/model"
	"github.com/steveyegge/coordinator/internal/storage"
)

func seedIssue(t *testing.T, s *Store, id string) *model.Issue {
	t.Helper()
	iss := &model.Issue{ID: id, Title: id, Status: model.StatusOpen, Type: model.TypeTask, Priority: model.DefaultPriority}
	out, err := s.Upsert(context.Background(), iss, storage.Guard{})
	require.NoError(t, err)
	return out.Issue
}

func TestUpsertStaleWriteRejected(t *testing.T) {
	s := New()
	ctx := context.Background()
	first := seedIssue(t, s, "bd-1")

	_, err := s.Upsert(ctx, &model.Issue{ID: "bd-1", Title: "renamed", Status: model.StatusOpen, Type: model.TypeTask, Priority: 2}, storage.Guard{ExpectedUpdatedAt: first.UpdatedAt.Add(-1)})
	require.ErrorIs(t, err, storage.ErrStaleWrite)
}

func TestUpsertUpdatedAtNeverDecreases(t *testing.T) {
	s := New()
	ctx := context.Background()
	first := seedIssue(t, s, "bd-1")

	second, err := s.Upsert(ctx, &model.Issue{ID: "bd-1", Title: "bd-1", Status: model.StatusOpen, Type: model.TypeTask, Priority: 2, UpdatedAt: first.UpdatedAt}, storage.Guard{ExpectedUpdatedAt: first.UpdatedAt})
	require.NoError(t, err)
	require.True(t, second.Issue.UpdatedAt.After(first.UpdatedAt))
}

func TestAddEdgeRejectsSelfLoop(t *testing.T) {
	s := New()
	ctx := context.Background()
	seedIssue(t, s, "bd-1")

	err := s.AddEdge(ctx, "bd-1", "bd-1", model.KindBlocks)
	require.ErrorIs(t, err, storage.ErrSelfLoop)
}

func TestAddEdgeRejectsMissingEndpoint(t *testing.T) {
	s := New()
	ctx := context.Background()
	seedIssue(t, s, "bd-1")

	err := s.AddEdge(ctx, "bd-1", "bd-ghost", model.KindBlocks)
	require.ErrorIs(t, err, storage.ErrMissing)
}

func TestAddEdgeRejectsCycle(t *testing.T) {
	s := New()
	ctx := context.Background()
	seedIssue(t, s, "bd-1")
	seedIssue(t, s, "bd-2")
	seedIssue(t, s, "bd-3")

	require.NoError(t, s.AddEdge(ctx, "bd-1", "bd-2", model.KindBlocks))
	require.NoError(t, s.AddEdge(ctx, "bd-2", "bd-3", model.KindBlocks))

	err := s.AddEdge(ctx, "bd-3", "bd-1", model.KindBlocks)
	require.ErrorIs(t, err, storage.ErrCycle)
}

func TestFindByExternalRefAndDuplicateRejection(t *testing.T) {
	s := New()
	ctx := context.Background()

	_, err := s.Upsert(ctx, &model.Issue{
		ID: "bd-1", Title: "t", Status: model.StatusOpen, Type: model.TypeTask, Priority: 2,
		ExternalRefs: map[model.Upstream]string{model.UpstreamGitHub: "github-1"},
	}, storage.Guard{})
	require.NoError(t, err)

	found, err := s.FindByExternalRef(ctx, model.UpstreamGitHub, "github-1")
	require.NoError(t, err)
	require.Equal(t, "bd-1", found.ID)

	_, err = s.Upsert(ctx, &model.Issue{
		ID: "bd-2", Title: "t2", Status: model.StatusOpen, Type: model.TypeTask, Priority: 2,
		ExternalRefs: map[model.Upstream]string{model.UpstreamGitHub: "github-1"},
	}, storage.Guard{})
	require.ErrorIs(t, err, storage.ErrDuplicate)
}

func TestAppendEventIdempotencyLookup(t *testing.T) {
	s := New()
	ctx := context.Background()

	seq, err := s.AppendEvent(ctx, model.SyncEvent{
		Upstream: model.UpstreamGitHub, Direction: model.DirectionInbound,
		Kind: "issues.edited", IdempotencyKey: "delivery-1", Outcome: model.OutcomeApplied,
	})
	require.NoError(t, err)
	require.Equal(t, int64(1), seq)

	found, ok, err := s.FindEvent(ctx, model.UpstreamGitHub, "delivery-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "issues.edited", found.Kind)

	_, ok, err = s.FindEvent(ctx, model.UpstreamGitHub, "delivery-2")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCloseIsIdempotent(t *testing.T) {
	s := New()
	ctx := context.Background()
	seedIssue(t, s, "bd-1")

	require.NoError(t, s.Close(ctx, "bd-1", "done"))
	require.NoError(t, s.Close(ctx, "bd-1", "done again"))

	iss, err := s.Get(ctx, "bd-1")
	require.NoError(t, err)
	require.Equal(t, model.StatusClosed, iss.Status)
}

func TestSnapshotExcludesTainted(t *testing.T) {
	s := New()
	ctx := context.Background()
	seedIssue(t, s, "bd-1")
	_, err := s.Upsert(ctx, &model.Issue{ID: "bd-2", Title: "bad", Status: model.StatusOpen, Type: model.TypeTask, Priority: 2, Tainted: true}, storage.Guard{})
	require.NoError(t, err)

	issues, _, err := s.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, issues, 1)
	require.Equal(t, "bd-1", issues[0].ID)
}
