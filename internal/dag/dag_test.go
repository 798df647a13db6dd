package dag

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/steveyegge/coordinator/internal/model"
)

func issue(id string, status model.Status, priority model.Priority, created time.Time) *model.Issue {
	return &model.Issue{ID: id, Title: id, Status: status, Priority: priority, CreatedAt: created}
}

func TestReadyBlockedPartitionOpenSet(t *testing.T) {
	now := time.Now()
	a := issue("A", model.StatusOpen, model.DefaultPriority, now)
	b := issue("B", model.StatusOpen, model.DefaultPriority, now)
	c := issue("C", model.StatusClosed, model.DefaultPriority, now)

	snap := NewSnapshot([]*model.Issue{a, b, c}, []model.DependencyEdge{
		{From: "A", To: "B", Kind: model.KindBlocks},
	})

	ready := snap.Ready()
	blocked := snap.Blocked()

	require.Len(t, ready, 1)
	require.Equal(t, "A", ready[0].ID)
	require.Len(t, blocked, 1)
	require.Equal(t, "B", blocked[0].ID)

	// P2: ready ∩ blocked = ∅ and their union is every non-closed issue.
	seen := map[string]bool{}
	for _, iss := range ready {
		seen[iss.ID] = true
	}
	for _, iss := range blocked {
		require.False(t, seen[iss.ID], "issue %s appeared in both ready and blocked", iss.ID)
		seen[iss.ID] = true
	}
	require.Equal(t, 2, len(seen)) // A and B; C is closed and excluded from both
}

func TestUnblocksAfterClose(t *testing.T) {
	now := time.Now()
	a := issue("A", model.StatusOpen, model.DefaultPriority, now)
	b := issue("B", model.StatusOpen, model.DefaultPriority, now)
	edges := []model.DependencyEdge{{From: "A", To: "B", Kind: model.KindBlocks}}

	snap := NewSnapshot([]*model.Issue{a, b}, edges)
	require.Empty(t, snap.Ready(), "B should be blocked while A is open")

	// Simulate A closing and re-snapshot (P7: B appears in ready() on the next snapshot).
	closedA := *a
	closedA.Status = model.StatusClosed
	closedSnap := NewSnapshot([]*model.Issue{&closedA, b}, edges)
	ready := closedSnap.Ready()
	require.Len(t, ready, 1)
	require.Equal(t, "B", ready[0].ID)

	unblocks := snap.Unblocks("A")
	require.Len(t, unblocks, 1)
	require.Equal(t, "B", unblocks[0].ID)
}

func TestWouldCycle(t *testing.T) {
	now := time.Now()
	a := issue("A", model.StatusOpen, model.DefaultPriority, now)
	b := issue("B", model.StatusOpen, model.DefaultPriority, now)
	snap := NewSnapshot([]*model.Issue{a, b}, []model.DependencyEdge{
		{From: "A", To: "B", Kind: model.KindBlocks},
	})

	// P6: after add_edge(A, B, blocks) succeeds, would_cycle(B, A) = true.
	require.True(t, snap.WouldCycle("B", "A"))
	require.False(t, snap.WouldCycle("A", "B"))
	require.True(t, snap.WouldCycle("A", "A"))
}

func TestCriticalPathPrefersLongestChain(t *testing.T) {
	now := time.Now()
	a := issue("A", model.StatusOpen, model.DefaultPriority, now)
	b := issue("B", model.StatusOpen, model.DefaultPriority, now)
	c := issue("C", model.StatusOpen, model.DefaultPriority, now)
	d := issue("D", model.StatusOpen, model.DefaultPriority, now)

	// Chain A->B->C (length 3) vs isolated D (length 1).
	snap := NewSnapshot([]*model.Issue{a, b, c, d}, []model.DependencyEdge{
		{From: "A", To: "B", Kind: model.KindBlocks},
		{From: "B", To: "C", Kind: model.KindBlocks},
	})

	path := snap.CriticalPath()
	require.Len(t, path, 3)
	require.Equal(t, []string{"A", "B", "C"}, []string{path[0].ID, path[1].ID, path[2].ID})
}

func TestCriticalPathTieBreakByPriorityThenCreatedAt(t *testing.T) {
	now := time.Now()
	a := issue("A", model.StatusOpen, model.Priority(3), now)
	b := issue("B", model.StatusOpen, model.Priority(0), now.Add(time.Hour))

	snap := NewSnapshot([]*model.Issue{a, b}, nil)
	path := snap.CriticalPath()
	require.Len(t, path, 1)
	require.Equal(t, "B", path[0].ID, "higher priority (lower number) should win the tie")
}

func TestCriticalPathDiamondPredecessorTieBreak(t *testing.T) {
	now := time.Now()
	// Diamond: both LEFT and RIGHT block END with an equally long (length
	// 2) chain into it; LEFT's higher priority must win deterministically
	// regardless of map iteration order over blockedBy["END"].
	left := issue("LEFT", model.StatusOpen, model.Priority(0), now)
	right := issue("RIGHT", model.StatusOpen, model.Priority(3), now)
	end := issue("END", model.StatusOpen, model.DefaultPriority, now)

	for i := 0; i < 20; i++ {
		snap := NewSnapshot([]*model.Issue{left, right, end}, []model.DependencyEdge{
			{From: "LEFT", To: "END", Kind: model.KindBlocks},
			{From: "RIGHT", To: "END", Kind: model.KindBlocks},
		})
		path := snap.CriticalPath()
		require.Len(t, path, 2)
		require.Equal(t, "LEFT", path[0].ID, "higher-priority predecessor must win the diamond tie")
		require.Equal(t, "END", path[1].ID)
	}
}
