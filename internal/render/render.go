// Package render implements the template renderer (C6): variable
// interpolation plus a closed set of component tags evaluated against
// C2's issue store and C3's DAG oracle, as spec §4.5. Grounded in the
// teacher's export conventions (markdown checkbox list items) rather than
// any templating library, since the tag set is small and spec-closed.
package render

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/steveyegge/coordinator/internal/dag"
	"github.com/steveyegge/coordinator/internal/formula"
	"github.com/steveyegge/coordinator/internal/model"
)

// Snapshot is the read-only view C6 renders against: every issue, the DAG
// built over the current "blocks" edges, and the raw edge set (needed
// directly by RelatedIssues, which walks both directions of "blocks").
type Snapshot struct {
	Issues []*model.Issue
	Graph  *dag.Snapshot
	Edges  []model.DependencyEdge
}

// Vars are the frontmatter-derived interpolation values available to
// `{name}` placeholders.
type Vars map[string]string

var (
	varPattern = regexp.MustCompile(`\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)
	tagPattern = regexp.MustCompile(`<(Issues(?:\.[A-Za-z]+)?|Stats|Subtasks|RelatedIssues|Progress|Timeline)([^/>]*)/>`)
)

// Render evaluates template against snapshot and vars. this, when non-nil,
// scopes per-issue tags (Subtasks, RelatedIssues, Progress, Timeline) to
// one issue — used when C4/C5 emit one output file per issue (§4.5's
// glob outputs).
func Render(template string, snap Snapshot, vars Vars, this *model.Issue) string {
	out := tagPattern.ReplaceAllStringFunc(template, func(tag string) string {
		m := tagPattern.FindStringSubmatch(tag)
		name, attrs := m[1], m[2]
		return renderTag(name, attrs, snap, this)
	})
	return interpolate(out, vars)
}

func interpolate(s string, vars Vars) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := match[1 : len(match)-1]
		if v, ok := vars[name]; ok {
			return v
		}
		return match // unknown variables remain literal
	})
}

func renderTag(name, attrs string, snap Snapshot, this *model.Issue) string {
	switch name {
	case "Issues.Open":
		return renderIssueList(filterLabel(filterStatus(snap.Issues, model.StatusOpen), attrs))
	case "Issues.Closed":
		return renderIssueList(filterLabel(filterStatus(snap.Issues, model.StatusClosed), attrs))
	case "Issues.InProgress":
		return renderIssueList(filterLabel(filterStatus(snap.Issues, model.StatusInProgress), attrs))
	case "Issues.Ready":
		limit := attrInt(attrs, "limit", 10)
		ready := filterLabel(snap.Graph.Ready(), attrs)
		if limit >= 0 && len(ready) > limit {
			ready = ready[:limit]
		}
		return renderIssueList(ready)
	case "Issues.Blocked":
		return renderIssueList(filterLabel(snap.Graph.Blocked(), attrs))
	case "Issues":
		return renderIssueList(filterLabel(snap.Issues, attrs))
	case "Stats":
		return renderStats(snap.Issues)
	case "Subtasks":
		if this == nil {
			return ""
		}
		return renderIssueList(children(snap.Issues, this.ID))
	case "RelatedIssues":
		if this == nil {
			return ""
		}
		return renderRelated(snap, this)
	case "Progress":
		if this == nil {
			return ""
		}
		return renderProgress(children(snap.Issues, this.ID))
	case "Timeline":
		if this == nil {
			return ""
		}
		return renderTimeline(this)
	default:
		return "<" + name + attrs + "/>" // unknown tags remain verbatim
	}
}

func attrInt(attrs, key string, def int) int {
	re := regexp.MustCompile(key + `\s*=\s*\{?(\d+)\}?`)
	m := re.FindStringSubmatch(attrs)
	if m == nil {
		return def
	}
	var n int
	fmt.Sscanf(m[1], "%d", &n)
	return n
}

func attrString(attrs, key string) string {
	re := regexp.MustCompile(key + `\s*=\s*"([^"]*)"`)
	m := re.FindStringSubmatch(attrs)
	if m == nil {
		return ""
	}
	return m[1]
}

// filterLabel narrows issues to those with a label matching a glob given via
// a tag's label="..." attribute ("bug.*", "*.blocked", exact, or "*"); with
// no label attribute present it returns issues unchanged.
func filterLabel(issues []*model.Issue, attrs string) []*model.Issue {
	glob := attrString(attrs, "label")
	if glob == "" {
		return issues
	}
	out := make([]*model.Issue, 0, len(issues))
	for _, iss := range issues {
		for _, l := range iss.Labels {
			if formula.MatchGlob(glob, l) {
				out = append(out, iss)
				break
			}
		}
	}
	return out
}

func filterStatus(issues []*model.Issue, status model.Status) []*model.Issue {
	var out []*model.Issue
	for _, iss := range issues {
		if iss.Status == status {
			out = append(out, iss)
		}
	}
	return out
}

func children(issues []*model.Issue, epicID string) []*model.Issue {
	var out []*model.Issue
	for _, iss := range issues {
		if iss.EpicID == epicID {
			out = append(out, iss)
		}
	}
	return out
}

// renderIssueList formats one checkbox line per issue per spec §4.5:
// "- [ ] **{id}**: {title}" with [x]/[-] for closed/in_progress, a
// "(P{n})" suffix when priority is set, and a "[l1, l2]" label suffix.
func renderIssueList(issues []*model.Issue) string {
	if len(issues) == 0 {
		return "_No issues_"
	}
	var b strings.Builder
	for i, iss := range issues {
		if i > 0 {
			b.WriteByte('\n')
		}
		box := " "
		switch iss.Status {
		case model.StatusClosed:
			box = "x"
		case model.StatusInProgress:
			box = "-"
		}
		b.WriteString(fmt.Sprintf("- [%s] **%s**: %s (P%d)", box, iss.ID, iss.Title, iss.Priority))
		if len(iss.Labels) > 0 {
			b.WriteString(" [" + strings.Join(iss.Labels, ", ") + "]")
		}
	}
	return b.String()
}

// renderStats renders "**{open} open** · {in_progress} in progress ·
// {closed} closed · {total} total ({percent}% complete)\n" per §8 scenario 6.
func renderStats(issues []*model.Issue) string {
	var open, inProgress, closed int
	for _, iss := range issues {
		switch iss.Status {
		case model.StatusOpen:
			open++
		case model.StatusInProgress:
			inProgress++
		case model.StatusClosed:
			closed++
		}
	}
	total := open + inProgress + closed
	percent := 0
	if total > 0 {
		percent = closed * 100 / total
	}
	return fmt.Sprintf("**%d open** · %d in progress · %d closed · %d total (%d%% complete)\n", open, inProgress, closed, total, percent)
}

// renderRelated lists both directions of "blocks" edges touching this
// issue with a ✓/○ status glyph per neighbor (closed vs not).
func renderRelated(snap Snapshot, this *model.Issue) string {
	byID := make(map[string]*model.Issue, len(snap.Issues))
	for _, iss := range snap.Issues {
		byID[iss.ID] = iss
	}

	var lines []string
	for _, e := range snap.Edges {
		if e.Kind != model.KindBlocks {
			continue
		}
		var neighborID, relation string
		switch this.ID {
		case e.From:
			neighborID, relation = e.To, "blocks"
		case e.To:
			neighborID, relation = e.From, "blocked by"
		default:
			continue
		}
		neighbor, ok := byID[neighborID]
		if !ok {
			continue
		}
		glyph := "○"
		if neighbor.Status == model.StatusClosed {
			glyph = "✓"
		}
		lines = append(lines, fmt.Sprintf("- %s %s (%s): %s", glyph, neighbor.ID, relation, neighbor.Title))
	}
	if len(lines) == 0 {
		return "_No issues_"
	}
	return strings.Join(lines, "\n")
}

// renderProgress draws a 20-cell bar filled by closed/total of children.
func renderProgress(children []*model.Issue) string {
	total := len(children)
	if total == 0 {
		return "[--------------------] 0/0"
	}
	closed := 0
	for _, c := range children {
		if c.Status == model.StatusClosed {
			closed++
		}
	}
	filled := closed * 20 / total
	bar := strings.Repeat("#", filled) + strings.Repeat("-", 20-filled)
	return fmt.Sprintf("[%s] %d/%d", bar, closed, total)
}

func renderTimeline(iss *model.Issue) string {
	created := iss.CreatedAt.Format("2006-01-02")
	updated := iss.UpdatedAt.Format("2006-01-02")
	return fmt.Sprintf("Created %s · Updated %s", created, updated)
}

// EscapeBody protects component-tag-looking text inside an issue body so
// the outer renderer does not expand it when the body is interpolated into
// a parent document (§4.5: "preserved verbatim ... escaped as inline code").
func EscapeBody(body string) string {
	return tagPattern.ReplaceAllStringFunc(body, func(tag string) string {
		return "`" + tag + "`"
	})
}
