package beads

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/steveyegge/coordinator/internal/model"
)

func writeFixture(t *testing.T, dir string, lines []string) string {
	t.Helper()
	path := filepath.Join(dir, "issues.jsonl")
	content := ""
	for _, l := range lines {
		content += l + "\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadJSONLSkipsMalformedLines(t *testing.T) {
	dir := t.TempDir()
	path := writeFixture(t, dir, []string{
		`{"id":"bd-1","title":"a","status":"open","issue_type":"task","priority":2}`,
		`not json`,
		`{"id":"bd-2","title":"b","status":"closed","issue_type":"bug","priority":1}`,
	})

	records, skipped, err := ReadJSONL(path)
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Len(t, skipped, 1)
}

func TestWriteJSONLThenReadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "issues.jsonl")
	records := []Record{
		{ID: "bd-1", Title: "a", Status: "open", IssueType: "task", Priority: 2, CreatedAt: time.Unix(0, 0).UTC(), UpdatedAt: time.Unix(0, 0).UTC()},
	}
	require.NoError(t, WriteJSONL(path, records))

	got, skipped, err := ReadJSONL(path)
	require.NoError(t, err)
	require.Empty(t, skipped)
	require.Len(t, got, 1)
	require.Equal(t, "bd-1", got[0].ID)
}

func TestToIssueNormalizesInvalidStatusAndType(t *testing.T) {
	r := Record{ID: "bd-1", Title: "a", Status: "bogus", IssueType: "bogus"}
	iss := ToIssue(r)
	require.Equal(t, model.StatusOpen, iss.Status)
	require.Equal(t, model.DefaultIssueType, iss.Type)
}

func TestPatchRejectsUnknownField(t *testing.T) {
	p := Patch{"nonexistent": "x"}
	require.Error(t, p.Validate())
}

func TestAdapterUpdateIssueAppliesPatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "issues.jsonl")
	require.NoError(t, WriteJSONL(path, []Record{
		{ID: "bd-1", Title: "old", Status: "open", IssueType: "task", Priority: 2},
	}))

	a := NewAdapter(path)
	require.NoError(t, a.UpdateIssue(context.Background(), "bd-1", Patch{"title": "new"}))

	records, _, err := ReadJSONL(path)
	require.NoError(t, err)
	require.Equal(t, "new", records[0].Title)
}

func TestAdapterUpdateIssueNotFound(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "issues.jsonl")
	require.NoError(t, WriteJSONL(path, nil))

	a := NewAdapter(path)
	err := a.UpdateIssue(context.Background(), "bd-missing", Patch{"title": "x"})
	require.Error(t, err)
}

func TestAdapterCloseIssueSetsClosedAt(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "issues.jsonl")
	require.NoError(t, WriteJSONL(path, []Record{
		{ID: "bd-1", Title: "a", Status: "open", IssueType: "task"},
	}))

	a := NewAdapter(path)
	require.NoError(t, a.CloseIssue(context.Background(), "bd-1"))

	records, _, err := ReadJSONL(path)
	require.NoError(t, err)
	require.Equal(t, string(model.StatusClosed), records[0].Status)
	require.NotNil(t, records[0].ClosedAt)
}

func TestResolveOrphansAllowKeepsUnknownEndpoints(t *testing.T) {
	a := &Adapter{Orphans: OrphanAllow}
	edges := []DependsOnEdge{{IssueID: "bd-1", DependsOnID: "bd-missing"}}
	ok, orphaned, err := a.ResolveOrphans(edges, map[string]bool{"bd-1": true})
	require.NoError(t, err)
	require.Len(t, ok, 1)
	require.Empty(t, orphaned)
}

func TestResolveOrphansStrictErrors(t *testing.T) {
	a := &Adapter{Orphans: OrphanStrict}
	edges := []DependsOnEdge{{IssueID: "bd-1", DependsOnID: "bd-missing"}}
	_, _, err := a.ResolveOrphans(edges, map[string]bool{"bd-1": true})
	require.Error(t, err)
}

func TestResolveOrphansSkipPartitions(t *testing.T) {
	a := &Adapter{Orphans: OrphanSkip}
	edges := []DependsOnEdge{{IssueID: "bd-1", DependsOnID: "bd-missing"}}
	ok, orphaned, err := a.ResolveOrphans(edges, map[string]bool{"bd-1": true})
	require.NoError(t, err)
	require.Empty(t, ok)
	require.Len(t, orphaned, 1)
}
