package mdadapter

import (
	"fmt"
	"time"

	"github.com/steveyegge/coordinator/internal/model"
)

// FieldOrder is the deterministic frontmatter field order emitted by
// EmitIssue (spec §4.4).
var FieldOrder = []string{
	"id", "title", "status", "priority", "type", "labels", "assignees",
	"milestone", "depends_on", "blocks", "external_refs", "beads_id",
	"github_id", "github_number",
}

// EmitIssue serializes iss (plus its direct dependency/blocks neighbor ids,
// supplied by the caller since the adapter itself has no graph access) into
// a Document ready for Render.
func EmitIssue(iss *model.Issue, dependsOn, blocks []string) Document {
	fm := map[string]any{
		"id":       iss.ID,
		"title":    iss.Title,
		"status":   string(iss.Status),
		"priority": int(iss.Priority),
		"type":     string(iss.Type),
		"labels":   append([]string{}, iss.Labels...),
		"assignees": append([]string{}, iss.Assignees...),
	}
	if iss.MilestoneID != "" {
		fm["milestone"] = iss.MilestoneID
	}
	if len(dependsOn) > 0 {
		fm["depends_on"] = dependsOn
	}
	if len(blocks) > 0 {
		fm["blocks"] = blocks
	}
	if len(iss.ExternalRefs) > 0 {
		refs := make(map[string]string, len(iss.ExternalRefs))
		for k, v := range iss.ExternalRefs {
			refs[string(k)] = v
		}
		fm["external_refs"] = refs
		if v, ok := iss.ExternalRefs[model.UpstreamBeads]; ok {
			fm["beads_id"] = v
		}
		if v, ok := iss.ExternalRefs[model.UpstreamGitHub]; ok {
			fm["github_id"] = v
		}
	}

	return Document{Frontmatter: fm, Body: iss.Body}
}

// ParseIssue parses a full Document back into an Issue plus the
// depends_on/blocks neighbor ids found in frontmatter. Fields absent from
// frontmatter are left at their zero value; callers merge this against a
// cached prior state when needed (spec §4.7's change-set computation).
//
// Per spec §9's Open Question, a legacy stored status of "blocked" is
// normalized to "open" here. The depends_on and blocks lists are returned
// whole, and the caller adds a blocks edge for every entry, which covers
// the blocker a legacy "blocked" row implied.
func ParseIssue(doc Document) (*model.Issue, []string, []string, error) {
	fm := doc.Frontmatter
	iss := &model.Issue{Body: doc.Body, ExternalRefs: map[model.Upstream]string{}}

	if v, ok := fm["id"]; ok {
		iss.ID = fmt.Sprint(v)
	}
	if v, ok := fm["title"]; ok {
		iss.Title = fmt.Sprint(v)
	}

	status := model.StatusOpen
	if v, ok := fm["status"]; ok {
		s := model.Status(fmt.Sprint(v))
		if s == "blocked" {
			status = model.StatusOpen // Open Question: "blocked" is never stored
		} else if s.Valid() {
			status = s
		} else {
			return nil, nil, nil, fmt.Errorf("mdadapter: invalid status %q", s)
		}
	}
	iss.Status = status

	if v, ok := fm["priority"]; ok {
		p := model.Priority(toInt(v))
		if !p.Valid() {
			return nil, nil, nil, fmt.Errorf("mdadapter: invalid priority %v", v)
		}
		iss.Priority = p
	} else {
		iss.Priority = model.DefaultPriority
	}

	if v, ok := fm["type"]; ok {
		t := model.IssueType(fmt.Sprint(v))
		if !t.Valid() {
			return nil, nil, nil, fmt.Errorf("mdadapter: invalid type %q", t)
		}
		iss.Type = t
	} else {
		iss.Type = model.DefaultIssueType
	}

	iss.Labels = toStringSlice(fm["labels"])
	iss.Assignees = toStringSlice(fm["assignees"])

	if v, ok := fm["milestone"]; ok {
		iss.MilestoneID = fmt.Sprint(v)
	}

	// A legacy status:blocked row's implied blocker is among its depends_on
	// entries (spec §9's Open Question); the caller adds a blocks edge for
	// every entry, so no separate return value is needed here.
	dependsOn := toStringSlice(fm["depends_on"])
	blocks := toStringSlice(fm["blocks"])

	if refs, ok := fm["external_refs"].(map[string]string); ok {
		for k, v := range refs {
			iss.ExternalRefs[model.Upstream(k)] = v
		}
	}
	if v, ok := fm["beads_id"]; ok {
		iss.ExternalRefs[model.UpstreamBeads] = fmt.Sprint(v)
	}
	if v, ok := fm["github_id"]; ok {
		iss.ExternalRefs[model.UpstreamGitHub] = fmt.Sprint(v)
	}

	iss.UpdatedAt = time.Time{} // caller stamps this on write (I6, server-stamped)

	return iss, dependsOn, blocks, nil
}

func toInt(v any) int {
	switch val := v.(type) {
	case int:
		return val
	case float64:
		return int(val)
	case string:
		var n int
		fmt.Sscanf(val, "%d", &n)
		return n
	default:
		return 0
	}
}

func toStringSlice(v any) []string {
	switch val := v.(type) {
	case []string:
		return val
	case []any:
		out := make([]string, len(val))
		for i, x := range val {
			out[i] = fmt.Sprint(x)
		}
		return out
	default:
		return nil
	}
}
