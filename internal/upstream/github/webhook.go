package github

import (
	"encoding/json"
	"fmt"

	"github.com/google/go-github/v57/github"
)

// issueEventPayload mirrors the subset of GitHub's "issues" webhook event
// body (https://docs.github.com/webhooks/webhook-events-and-payloads#issues)
// this adapter cares about: the action and the issue itself.
type issueEventPayload struct {
	Action string        `json:"action"`
	Issue  *github.Issue `json:"issue"`
}

// ParseIssueEvent extracts the issue from a GitHub "issues" webhook
// delivery body, for handing to Reconciler.IngestGitHubIssue.
func ParseIssueEvent(body []byte) (*github.Issue, error) {
	var payload issueEventPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("github: unmarshal issue event: %w", err)
	}
	if payload.Issue == nil {
		return nil, fmt.Errorf("github: issue event payload has no issue")
	}
	return payload.Issue, nil
}
