package render

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/steveyegge/coordinator/internal/dag"
	"github.com/steveyegge/coordinator/internal/model"
)

func buildSnapshot(issues []*model.Issue, edges []model.DependencyEdge) Snapshot {
	return Snapshot{Issues: issues, Graph: dag.NewSnapshot(issues, edges), Edges: edges}
}

func TestRenderStatsMatchesSpecExample(t *testing.T) {
	var issues []*model.Issue
	for i := 0; i < 12; i++ {
		issues = append(issues, &model.Issue{ID: "o", Status: model.StatusOpen})
	}
	for i := 0; i < 3; i++ {
		issues = append(issues, &model.Issue{ID: "p", Status: model.StatusInProgress})
	}
	for i := 0; i < 5; i++ {
		issues = append(issues, &model.Issue{ID: "c", Status: model.StatusClosed})
	}
	snap := buildSnapshot(issues, nil)

	got := Render("<Stats/>", snap, nil, nil)
	require.Equal(t, "**12 open** · 3 in progress · 5 closed · 20 total (25% complete)\n", got)
}

func TestRenderIssuesOpenListsOnlyOpen(t *testing.T) {
	issues := []*model.Issue{
		{ID: "bd-1", Title: "Open one", Status: model.StatusOpen, Priority: 1},
		{ID: "bd-2", Title: "Closed one", Status: model.StatusClosed},
	}
	snap := buildSnapshot(issues, nil)

	got := Render("<Issues.Open/>", snap, nil, nil)
	require.Equal(t, "- [ ] **bd-1**: Open one (P1)", got)
}

func TestRenderEmptyListShowsPlaceholder(t *testing.T) {
	snap := buildSnapshot(nil, nil)
	require.Equal(t, "_No issues_", Render("<Issues.Closed/>", snap, nil, nil))
}

func TestRenderIssuesReadyRespectsLimit(t *testing.T) {
	issues := []*model.Issue{
		{ID: "bd-1", Title: "a", Status: model.StatusOpen},
		{ID: "bd-2", Title: "b", Status: model.StatusOpen},
		{ID: "bd-3", Title: "c", Status: model.StatusOpen},
	}
	snap := buildSnapshot(issues, nil)

	got := Render("<Issues.Ready limit={2}/>", snap, nil, nil)
	require.Equal(t, 2, len(strings.Split(got, "\n")))
}

func TestInterpolationLeavesUnknownVarsLiteral(t *testing.T) {
	snap := buildSnapshot(nil, nil)
	got := Render("Hello {name}, {unknown}", snap, Vars{"name": "World"}, nil)
	require.Equal(t, "Hello World, {unknown}", got)
}

func TestUnknownTagRemainsVerbatim(t *testing.T) {
	snap := buildSnapshot(nil, nil)
	got := Render("<Weather city={x}/>", snap, nil, nil)
	require.Equal(t, "<Weather city={x}/>", got)
}

func TestEscapeBodyProtectsComponentTags(t *testing.T) {
	got := EscapeBody("before <Stats/> after")
	require.Equal(t, "before `<Stats/>` after", got)
}

func TestRenderSubtasksAndProgress(t *testing.T) {
	epic := &model.Issue{ID: "bd-epic", Title: "Epic", Type: model.TypeEpic, Status: model.StatusOpen}
	children := []*model.Issue{
		{ID: "bd-c1", Title: "child 1", EpicID: "bd-epic", Status: model.StatusClosed},
		{ID: "bd-c2", Title: "child 2", EpicID: "bd-epic", Status: model.StatusOpen},
	}
	all := append([]*model.Issue{epic}, children...)
	snap := buildSnapshot(all, nil)

	sub := Render("<Subtasks/>", snap, nil, epic)
	require.Contains(t, sub, "bd-c1")
	require.Contains(t, sub, "bd-c2")

	progress := Render("<Progress/>", snap, nil, epic)
	require.Contains(t, progress, "1/2")
}
