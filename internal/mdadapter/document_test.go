package mdadapter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/steveyegge/coordinator/internal/model"
)

func TestRoundTripIssue(t *testing.T) {
	iss := &model.Issue{
		ID:       "bd-a1b2c3",
		Title:    "Fix the thing",
		Body:     "Some body text.\n",
		Status:   model.StatusInProgress,
		Type:     model.TypeBug,
		Priority: 1,
		Labels:   []string{"bug", "critical"},
		Assignees: []string{"alice", "bob"},
		ExternalRefs: map[model.Upstream]string{
			model.UpstreamGitHub: "github-42",
		},
	}

	doc := EmitIssue(iss, []string{"bd-dep1"}, nil)
	text := Render(doc, FieldOrder)

	parsed, err := Parse(text)
	require.NoError(t, err)

	out, dependsOn, _, err := ParseIssue(parsed)
	require.NoError(t, err)

	// P4: round-trip equal modulo whitespace.
	require.Equal(t, iss.ID, out.ID)
	require.Equal(t, iss.Title, out.Title)
	require.Equal(t, strings.TrimSpace(iss.Body), strings.TrimSpace(out.Body))
	require.Equal(t, iss.Status, out.Status)
	require.Equal(t, iss.Type, out.Type)
	require.Equal(t, iss.Priority, out.Priority)
	require.ElementsMatch(t, iss.Labels, out.Labels)
	require.Equal(t, iss.Assignees, out.Assignees)
	require.Equal(t, iss.ExternalRefs[model.UpstreamGitHub], out.ExternalRefs[model.UpstreamGitHub])
	require.Equal(t, []string{"bd-dep1"}, dependsOn)
}

func TestNoFrontmatterDelimiterIsAllBody(t *testing.T) {
	doc, err := Parse("just some text\nwith no frontmatter\n")
	require.NoError(t, err)
	require.Empty(t, doc.Frontmatter)
	require.Contains(t, doc.Body, "just some text")
}

func TestHeadingLiftedIntoTitle(t *testing.T) {
	content := "---\nstatus: open\n---\n# My Heading\n\nBody text.\n"
	doc, err := Parse(content)
	require.NoError(t, err)
	require.Equal(t, "My Heading", doc.Frontmatter["title"])
	require.NotContains(t, doc.Body, "# My Heading")
}

func TestLegacyBlockedStatusNormalizedToOpen(t *testing.T) {
	content := "---\nstatus: blocked\ndepends_on: [bd-other]\n---\nbody\n"
	doc, err := Parse(content)
	require.NoError(t, err)

	iss, dependsOn, _, err := ParseIssue(doc)
	require.NoError(t, err)
	require.Equal(t, model.StatusOpen, iss.Status)
	require.Equal(t, []string{"bd-other"}, dependsOn)
}

func TestInlineAndBlockArrays(t *testing.T) {
	content := "---\nlabels: [a, b, c]\nassignees:\n  - alice\n  - bob\n---\nbody\n"
	doc, err := Parse(content)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "c"}, doc.Frontmatter["labels"])
	require.Equal(t, []string{"alice", "bob"}, doc.Frontmatter["assignees"])
}
