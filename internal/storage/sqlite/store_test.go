package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/steveyegge/coordinator/internal/model"
	"github.com/steveyegge/coordinator/internal/storage"
	"github.com/steveyegge/coordinator/internal/testutil"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.CloseStore() })
	return s
}

func seedIssue(t *testing.T, s *Store, id string) *model.Issue {
	t.Helper()
	out, err := s.Upsert(context.Background(), &model.Issue{
		ID: id, Title: id, Status: model.StatusOpen, Type: model.TypeTask, Priority: model.DefaultPriority,
	}, storage.Guard{})
	require.NoError(t, err)
	return out.Issue
}

func TestUpsertAndGetRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	out, err := s.Upsert(ctx, &model.Issue{
		ID: "bd-1", Title: "Fix it", Body: "details", Status: model.StatusOpen,
		Type: model.TypeBug, Priority: 1, Labels: []string{"x", "y"}, Assignees: []string{"alice", "bob"},
		ExternalRefs: map[model.Upstream]string{model.UpstreamGitHub: "github-9"},
	}, storage.Guard{})
	require.NoError(t, err)
	require.True(t, out.Created)

	got, err := s.Get(ctx, "bd-1")
	require.NoError(t, err)
	require.Equal(t, "Fix it", got.Title)
	require.ElementsMatch(t, []string{"x", "y"}, got.Labels)
	require.Equal(t, []string{"alice", "bob"}, got.Assignees)
	require.Equal(t, "github-9", got.ExternalRefs[model.UpstreamGitHub])
}

func TestUpsertRejectsStaleWrite(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	first := seedIssue(t, s, "bd-1")

	_, err := s.Upsert(ctx, &model.Issue{ID: "bd-1", Title: "renamed", Status: model.StatusOpen, Type: model.TypeTask, Priority: 2},
		storage.Guard{ExpectedUpdatedAt: first.UpdatedAt.Add(-1)})
	require.ErrorIs(t, err, storage.ErrStaleWrite)
}

func TestAddEdgeRejectsCycleAndSelfLoop(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedIssue(t, s, "bd-1")
	seedIssue(t, s, "bd-2")
	seedIssue(t, s, "bd-3")

	require.ErrorIs(t, s.AddEdge(ctx, "bd-1", "bd-1", model.KindBlocks), storage.ErrSelfLoop)

	require.NoError(t, s.AddEdge(ctx, "bd-1", "bd-2", model.KindBlocks))
	require.NoError(t, s.AddEdge(ctx, "bd-2", "bd-3", model.KindBlocks))
	require.ErrorIs(t, s.AddEdge(ctx, "bd-3", "bd-1", model.KindBlocks), storage.ErrCycle)
}

func TestFindByExternalRefAndDuplicateRejection(t *testing.T) {
	s := newTestStore(t)
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

func TestAppendEventIdempotencyAndPending(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seq, err := s.AppendEvent(ctx, model.SyncEvent{
		Upstream: model.UpstreamGitHub, Direction: model.DirectionInbound,
		Kind: "issues.edited", IdempotencyKey: "delivery-1", Outcome: model.OutcomePending,
	})
	require.NoError(t, err)

	pending, err := s.PendingEvents(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, s.MarkEventOutcome(ctx, seq, model.OutcomeApplied))

	found, ok, err := s.FindEvent(ctx, model.UpstreamGitHub, "delivery-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, model.OutcomeApplied, found.Outcome)

	pending, err = s.PendingEvents(ctx)
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestCloseIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedIssue(t, s, "bd-1")

	require.NoError(t, s.Close(ctx, "bd-1", "done"))
	require.NoError(t, s.Close(ctx, "bd-1", "done again"))

	iss, err := s.Get(ctx, "bd-1")
	require.NoError(t, err)
	require.Equal(t, model.StatusClosed, iss.Status)
}

func TestSnapshotExcludesTainted(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedIssue(t, s, "bd-1")
	_, err := s.Upsert(ctx, &model.Issue{ID: "bd-2", Title: "bad", Status: model.StatusOpen, Type: model.TypeTask, Priority: 2, Tainted: true}, storage.Guard{})
	require.NoError(t, err)

	issues, _, err := s.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, issues, 1)
	require.Equal(t, "bd-1", issues[0].ID)
}

func TestMilestoneUpsertAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertMilestone(ctx, &model.Milestone{
		ID: "m1", Title: "v1.0", State: model.StatusOpen,
		ExternalRefs: map[model.Upstream]string{model.UpstreamGitHub: "milestone-1"},
	}))

	got, err := s.GetMilestone(ctx, "m1")
	require.NoError(t, err)
	require.Equal(t, "v1.0", got.Title)
	require.Equal(t, "milestone-1", got.ExternalRefs[model.UpstreamGitHub])
}

func TestCommentMappingIdempotency(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedIssue(t, s, "bd-1")

	has, err := s.HasComment(ctx, "bd-1", model.UpstreamLinear, "c1")
	require.NoError(t, err)
	require.False(t, has)

	require.NoError(t, s.RecordComment(ctx, model.CommentMapping{IssueID: "bd-1", Upstream: model.UpstreamLinear, UpstreamCommentID: "c1"}))
	require.NoError(t, s.RecordComment(ctx, model.CommentMapping{IssueID: "bd-1", Upstream: model.UpstreamLinear, UpstreamCommentID: "c1"}))

	has, err = s.HasComment(ctx, "bd-1", model.UpstreamLinear, "c1")
	require.NoError(t, err)
	require.True(t, has)
}

// TestUpsertSurvivesReopen exercises the on-disk (as opposed to ":memory:")
// path: a real file, closed and reopened, must still report the row a
// prior process wrote. The sqlite driver's WAL mode (enabled in Open) only
// matters for a file-backed database, so ":memory:" alone never covers it.
func TestUpsertSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := testutil.TempDirInMemory(t)
	path := filepath.Join(dir, "store.db")

	s1, err := New(ctx, path)
	require.NoError(t, err)
	_, err = s1.Upsert(ctx, &model.Issue{
		ID: "bd-1", Title: "Fix it", Status: model.StatusOpen, Type: model.TypeBug, Priority: model.DefaultPriority,
	}, storage.Guard{})
	require.NoError(t, err)
	require.NoError(t, s1.CloseStore())

	s2, err := New(ctx, path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s2.CloseStore() })

	got, err := s2.Get(ctx, "bd-1")
	require.NoError(t, err)
	require.Equal(t, "Fix it", got.Title)
}
