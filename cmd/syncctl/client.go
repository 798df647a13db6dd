package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/steveyegge/coordinator/internal/model"
)

// apiIssue mirrors internal/httpapi's wire shape for an issue (spec §6.2),
// used only to decode a running coordinatord's GET /issues response for
// 'generate --source api'. Deliberately duplicated rather than importing
// internal/httpapi's unexported issueDTO: this is the one place syncctl
// acts as an HTTP client rather than a local-engine caller, so it earns
// its own small wire type instead of reaching into another package's
// internals.
type apiIssue struct {
	ID                 string            `json:"id"`
	Title              string            `json:"title"`
	Body               string            `json:"body"`
	Status             model.Status      `json:"status"`
	Type               model.IssueType   `json:"type"`
	Priority           int               `json:"priority"`
	Labels             []string          `json:"labels"`
	Assignees          []string          `json:"assignees"`
	MilestoneID        string            `json:"milestone"`
	EpicID             string            `json:"epic"`
	ExternalRefs       map[string]string `json:"external_refs"`
	Design             string            `json:"design"`
	AcceptanceCriteria string            `json:"acceptance_criteria"`
	Notes              string            `json:"notes"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
	ClosedAt           *time.Time        `json:"closed_at"`
}

func (a apiIssue) toModel() *model.Issue {
	refs := make(map[model.Upstream]string, len(a.ExternalRefs))
	for k, v := range a.ExternalRefs {
		refs[model.Upstream(k)] = v
	}
	return &model.Issue{
		ID:                 a.ID,
		Title:              a.Title,
		Body:               a.Body,
		Status:             a.Status,
		Type:               a.Type,
		Priority:           model.Priority(a.Priority),
		Labels:             a.Labels,
		Assignees:          a.Assignees,
		MilestoneID:        a.MilestoneID,
		EpicID:             a.EpicID,
		ExternalRefs:       refs,
		Design:             a.Design,
		AcceptanceCriteria: a.AcceptanceCriteria,
		Notes:              a.Notes,
		CreatedAt:          a.CreatedAt,
		UpdatedAt:          a.UpdatedAt,
		ClosedAt:           a.ClosedAt,
	}
}

// fetchServerIssues sets flagServer's active repo context, then lists
// every issue it has.
func fetchServerIssues(ctx context.Context) ([]apiIssue, error) {
	if err := setServerContext(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, flagServer+"/issues", nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET /issues: http %d", resp.StatusCode)
	}
	var out []apiIssue
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode GET /issues response: %w", err)
	}
	return out, nil
}

func setServerContext(ctx context.Context) error {
	body, err := json.Marshal(map[string]string{"owner": repo.Owner, "name": repo.Name})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, flagServer+"/context", bytes.NewReader(body))
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("POST /context: http %d", resp.StatusCode)
	}
	return nil
}
