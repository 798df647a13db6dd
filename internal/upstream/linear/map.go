package linear

import (
	"time"

	"github.com/steveyegge/coordinator/internal/model"
)

// mapStatus follows Linear's workflow state "type" field, which is a
// closed enum independent of the team's custom state names: backlog/
// unstarted map to open, started to in_progress, completed/canceled to
// closed (spec §4.6's field mapping table).
func mapStatus(stateType string) model.Status {
	switch stateType {
	case "started":
		return model.StatusInProgress
	case "completed", "canceled":
		return model.StatusClosed
	default:
		return model.StatusOpen
	}
}

// mapPriority rescales Linear's 0-4 (0=no priority,1=urgent..4=low) onto
// this system's 0(highest)-4(lowest) scale: Linear's "no priority" (0)
// becomes the default middle priority, since "unset" isn't representable here.
func mapPriority(linearPriority int) model.Priority {
	if linearPriority == 0 {
		return model.DefaultPriority
	}
	return model.Priority(linearPriority - 1)
}

func parseLinearTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// ToIssue maps a Linear Issue onto the canonical model, leaving ID,
// ExternalRefs, MilestoneID, and EpicID for the caller (internal/sync) to
// fill in from its own lookup against the canonical store — this adapter
// has no store access.
func ToIssue(li Issue) *model.Issue {
	iss := &model.Issue{
		Title:     li.Title,
		Body:      li.Description,
		Status:    mapStatus(li.State.Type),
		Type:      model.TypeTask,
		Priority:  mapPriority(li.Priority),
		CreatedAt: parseLinearTime(li.CreatedAt),
		UpdatedAt: parseLinearTime(li.UpdatedAt),
	}
	for _, l := range li.Labels.Nodes {
		iss.Labels = append(iss.Labels, l.Name)
	}
	if li.Assignee != nil {
		iss.Assignees = []string{li.Assignee.Email}
	}
	return iss
}
