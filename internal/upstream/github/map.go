package github

import (
	"strings"

	"github.com/google/go-github/v57/github"

	"github.com/steveyegge/coordinator/internal/model"
)

// mapStatus follows GitHub's two-state issue model: "open" or "closed".
// GitHub has no native in_progress state, so one is inferred from the
// "in-progress" or "in progress" label when present (spec §4.6's field
// mapping table; GitHub is the one upstream without a third workflow state).
func mapStatus(state string, labels []*github.Label) model.Status {
	if state == "closed" {
		return model.StatusClosed
	}
	for _, l := range labels {
		name := strings.ToLower(l.GetName())
		if name == "in-progress" || name == "in progress" {
			return model.StatusInProgress
		}
	}
	return model.StatusOpen
}

// mapPriority reads a "priority: N" or "p0".."p4" label, defaulting when
// none is present — GitHub has no native priority field.
func mapPriority(labels []*github.Label) model.Priority {
	for _, l := range labels {
		name := strings.ToLower(l.GetName())
		if rest, ok := strings.CutPrefix(name, "priority:"); ok {
			name = strings.TrimSpace(rest)
			if !strings.HasPrefix(name, "p") {
				name = "p" + name
			}
		}
		switch name {
		case "p0":
			return model.Priority(0)
		case "p1":
			return model.Priority(1)
		case "p2":
			return model.Priority(2)
		case "p3":
			return model.Priority(3)
		case "p4":
			return model.Priority(4)
		}
	}
	return model.DefaultPriority
}

// ToIssue maps a GitHub issue onto the canonical model, leaving ID,
// ExternalRefs, MilestoneID, and EpicID for the caller (internal/sync) to
// fill in from its own lookup against the canonical store — this adapter
// has no store access.
func ToIssue(gi *github.Issue) *model.Issue {
	iss := &model.Issue{
		Title:     gi.GetTitle(),
		Body:      gi.GetBody(),
		Status:    mapStatus(gi.GetState(), gi.Labels),
		Type:      model.TypeTask,
		Priority:  mapPriority(gi.Labels),
		CreatedAt: gi.GetCreatedAt().Time,
		UpdatedAt: gi.GetUpdatedAt().Time,
	}
	for _, l := range gi.Labels {
		iss.Labels = append(iss.Labels, l.GetName())
	}
	for _, a := range gi.Assignees {
		iss.Assignees = append(iss.Assignees, a.GetLogin())
	}
	// gi.Milestone, if present, is resolved to a canonical MilestoneID by
	// the caller (internal/sync), which has store access; this adapter does not.
	return iss
}

// ToIssueRequest maps the canonical model back onto GitHub's write shape,
// used by CreateIssue/UpdateIssue callers.
func ToIssueRequest(iss *model.Issue) *github.IssueRequest {
	state := "open"
	if iss.Status == model.StatusClosed {
		state = "closed"
	}
	labels := append([]string{}, iss.Labels...)
	return &github.IssueRequest{
		Title:     github.String(iss.Title),
		Body:      github.String(iss.Body),
		State:     github.String(state),
		Labels:    &labels,
		Assignees: &iss.Assignees,
	}
}
