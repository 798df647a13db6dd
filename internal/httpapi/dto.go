package httpapi

import (
	"time"

	"github.com/steveyegge/coordinator/internal/model"
)

// issueDTO is the wire representation of an Issue (spec §6.2's HTTP API).
// Field names match the Markdown frontmatter keys of spec §6.1 so a client
// sees the same vocabulary whether it reads a file or calls the API.
type issueDTO struct {
	ID                 string            `json:"id,omitempty"`
	Title              string            `json:"title"`
	Body               string            `json:"body,omitempty"`
	Status             model.Status      `json:"status,omitempty"`
	Type               model.IssueType   `json:"type,omitempty"`
	Priority           *int              `json:"priority,omitempty"`
	Labels             []string          `json:"labels,omitempty"`
	Assignees          []string          `json:"assignees,omitempty"`
	MilestoneID        string            `json:"milestone,omitempty"`
	EpicID             string            `json:"epic,omitempty"`
	ExternalRefs       map[string]string `json:"external_refs,omitempty"`
	Design             string            `json:"design,omitempty"`
	AcceptanceCriteria string            `json:"acceptance_criteria,omitempty"`
	Notes              string            `json:"notes,omitempty"`
	CreatedAt          time.Time         `json:"created_at,omitempty"`
	UpdatedAt          time.Time         `json:"updated_at,omitempty"`
	ClosedAt           *time.Time        `json:"closed_at,omitempty"`
}

func toDTO(iss *model.Issue) issueDTO {
	p := int(iss.Priority)
	refs := make(map[string]string, len(iss.ExternalRefs))
	for k, v := range iss.ExternalRefs {
		refs[string(k)] = v
	}
	return issueDTO{
		ID:                 iss.ID,
		Title:              iss.Title,
		Body:               iss.Body,
		Status:             iss.Status,
		Type:               iss.Type,
		Priority:           &p,
		Labels:             iss.Labels,
		Assignees:          iss.Assignees,
		MilestoneID:        iss.MilestoneID,
		EpicID:             iss.EpicID,
		ExternalRefs:       refs,
		Design:             iss.Design,
		AcceptanceCriteria: iss.AcceptanceCriteria,
		Notes:              iss.Notes,
		CreatedAt:          iss.CreatedAt,
		UpdatedAt:          iss.UpdatedAt,
		ClosedAt:           iss.ClosedAt,
	}
}

func toDTOList(issues []*model.Issue) []issueDTO {
	out := make([]issueDTO, len(issues))
	for i, iss := range issues {
		out[i] = toDTO(iss)
	}
	return out
}

// fromCreateDTO builds a new *model.Issue from a POST /issues body. It does
// not set ID, CreatedAt, or UpdatedAt — the caller assigns those.
func fromCreateDTO(d issueDTO) *model.Issue {
	iss := &model.Issue{
		Title:              d.Title,
		Body:               d.Body,
		Status:             d.Status,
		Type:               d.Type,
		Labels:             d.Labels,
		Assignees:          d.Assignees,
		MilestoneID:        d.MilestoneID,
		EpicID:             d.EpicID,
		Design:             d.Design,
		AcceptanceCriteria: d.AcceptanceCriteria,
		Notes:              d.Notes,
	}
	if d.Priority != nil {
		iss.Priority = model.Priority(*d.Priority)
	} else {
		iss.Priority = model.DefaultPriority
	}
	if iss.Status == "" {
		iss.Status = model.StatusOpen
	}
	if iss.Type == "" {
		iss.Type = model.DefaultIssueType
	}
	return iss
}

// patchDTO is PATCH /issues/{id}'s body: every field is a pointer so only
// fields present in the request are applied (spec §6.2: "partial update").
type patchDTO struct {
	Title       *string          `json:"title"`
	Body        *string          `json:"body"`
	Status      *model.Status    `json:"status"`
	Type        *model.IssueType `json:"type"`
	Priority    *int             `json:"priority"`
	Labels      *[]string        `json:"labels"`
	Assignees   *[]string        `json:"assignees"`
	MilestoneID *string          `json:"milestone"`
	EpicID      *string          `json:"epic"`
	Design      *string          `json:"design"`
	Notes       *string          `json:"notes"`
}

// applyPatch overlays the non-nil fields of p onto iss in place.
func applyPatch(iss *model.Issue, p patchDTO) {
	if p.Title != nil {
		iss.Title = *p.Title
	}
	if p.Body != nil {
		iss.Body = *p.Body
	}
	if p.Status != nil {
		iss.Status = *p.Status
	}
	if p.Type != nil {
		iss.Type = *p.Type
	}
	if p.Priority != nil {
		iss.Priority = model.Priority(*p.Priority)
	}
	if p.Labels != nil {
		iss.Labels = *p.Labels
	}
	if p.Assignees != nil {
		iss.Assignees = *p.Assignees
	}
	if p.MilestoneID != nil {
		iss.MilestoneID = *p.MilestoneID
	}
	if p.EpicID != nil {
		iss.EpicID = *p.EpicID
	}
	if p.Design != nil {
		iss.Design = *p.Design
	}
	if p.Notes != nil {
		iss.Notes = *p.Notes
	}
}

type contextDTO struct {
	Owner          string `json:"owner"`
	Name           string `json:"name"`
	InstallationID string `json:"installation_id,omitempty"`
	DefaultBranch  string `json:"default_branch,omitempty"`
}

type depDTO struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Kind   string `json:"kind"`
	Remove bool   `json:"remove,omitempty"`
}

type closeDTO struct {
	Reason string `json:"reason"`
}

type commentDTO struct {
	Body string `json:"body"`
}
