package sync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/steveyegge/coordinator/internal/model"
	"github.com/steveyegge/coordinator/internal/storage/memory"
	"github.com/steveyegge/coordinator/internal/upstream/linear"
)

func newLinearIssue(identifier string, updatedAt time.Time) linear.Issue {
	li := linear.Issue{
		ID:         "uuid-" + identifier,
		Identifier: identifier,
		Title:      "fix login",
		UpdatedAt:  updatedAt.Format(time.RFC3339),
		CreatedAt:  updatedAt.Format(time.RFC3339),
	}
	li.State.Type = "started"
	return li
}

func TestIngestLinearIssueCreatesNewRow(t *testing.T) {
	s := memory.New()
	r := New(s, nil)
	ctx := context.Background()

	li := newLinearIssue("ENG-1", time.Now().UTC())
	outcome, err := r.IngestLinearIssue(ctx, li, "")
	require.NoError(t, err)
	require.Equal(t, model.OutcomeApplied, outcome)

	stored, err := s.FindByExternalRef(ctx, model.UpstreamLinear, "linear-ENG-1")
	require.NoError(t, err)
	require.Equal(t, model.StatusInProgress, stored.Status)
}

func TestIngestLinearIssueDuplicatePayloadIgnored(t *testing.T) {
	s := memory.New()
	r := New(s, nil)
	ctx := context.Background()

	li := newLinearIssue("ENG-1", time.Now().UTC())
	_, err := r.IngestLinearIssue(ctx, li, "")
	require.NoError(t, err)

	outcome, err := r.IngestLinearIssue(ctx, li, "")
	require.NoError(t, err)
	require.Equal(t, model.OutcomeDuplicate, outcome)
}

type fakeLinearPort struct {
	pages [][]linear.Issue
}

func (f *fakeLinearPort) ListIssues(ctx context.Context, cursor string) ([]linear.Issue, string, bool, error) {
	idx := 0
	if cursor != "" {
		for i, c := range []string{"", "page-1"} {
			if c == cursor {
				idx = i
				break
			}
		}
	}
	issues := f.pages[idx]
	hasMore := idx+1 < len(f.pages)
	next := ""
	if hasMore {
		next = "page-1"
	}
	return issues, next, hasMore, nil
}

func TestPullDrainsAllPages(t *testing.T) {
	s := memory.New()
	r := New(s, nil)
	ctx := context.Background()

	now := time.Now().UTC()
	fake := &fakeLinearPort{pages: [][]linear.Issue{
		{newLinearIssue("ENG-1", now)},
		{newLinearIssue("ENG-2", now)},
	}}

	applied, err := r.Pull(ctx, fake)
	require.NoError(t, err)
	require.Equal(t, 2, applied)
}
