package linear

import (
	"encoding/json"
	"fmt"
)

// webhookPayload mirrors Linear's webhook envelope
// (https://developers.linear.app/docs/graphql/webhooks): type, action, and
// the changed entity under data. For "Issue" type events data matches the
// same shape ListIssues/GetIssue return.
type webhookPayload struct {
	Type   string `json:"type"`
	Action string `json:"action"`
	Data   Issue  `json:"data"`
}

// ParseWebhookIssue extracts the issue from a Linear webhook delivery body,
// for handing to Reconciler.IngestLinearIssue.
func ParseWebhookIssue(body []byte) (*Issue, error) {
	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("linear: unmarshal webhook payload: %w", err)
	}
	if payload.Data.ID == "" {
		return nil, fmt.Errorf("linear: webhook payload has no issue data")
	}
	return &payload.Data, nil
}

// Comment is the subset of Linear's webhook comment payload mirrored to
// GitHub (spec §4.7.4, §8 scenario 4). Issue.Identifier lets the caller
// look the parent issue up by its "linear-<identifier>" external ref
// without a second API round trip.
type Comment struct {
	ID    string `json:"id"`
	Body  string `json:"body"`
	Issue struct {
		Identifier string `json:"identifier"`
	} `json:"issue"`
}

type commentWebhookPayload struct {
	Type   string  `json:"type"`
	Action string  `json:"action"`
	Data   Comment `json:"data"`
}

// ParseWebhookComment extracts the comment from a Linear "Comment" webhook
// delivery body.
func ParseWebhookComment(body []byte) (*Comment, error) {
	var payload commentWebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("linear: unmarshal webhook payload: %w", err)
	}
	if payload.Data.ID == "" {
		return nil, fmt.Errorf("linear: webhook payload has no comment data")
	}
	return &payload.Data, nil
}

// WebhookKind reports a Linear webhook delivery's resource type ("Issue",
// "Comment", ...) from its own body, as a fallback for callers whose
// Linear-Event header dispatch left them unsure which parser to use.
func WebhookKind(body []byte) string {
	var probe struct {
		Type string `json:"type"`
	}
	_ = json.Unmarshal(body, &probe)
	return probe.Type
}
