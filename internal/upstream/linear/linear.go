// Package linear is a thin, stateless GraphQL client for Linear (C7).
// Grounded on the teacher's internal/linear/types.go, which queries
// Linear the same way: hand-rolled net/http plus a GraphQLRequest/
// GraphQLResponse envelope, no GraphQL client library. This adapter is
// read-only: spec.md §1's Non-goals exclude bidirectional Linear
// writeback, so there is no issue- or comment-create mutation here.
package linear

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/steveyegge/coordinator/internal/errs"
)

const (
	DefaultEndpoint = "https://api.linear.app/graphql"
	DefaultTimeout  = 30 * time.Second
	MaxPageSize     = 100
)

// Client is a stateless Linear GraphQL client: every call is one HTTP
// round trip, authenticated with a bearer token resolved by the caller
// (spec §4.6: "OAuth bearer stored in a secrets vault").
type Client struct {
	APIKey     string
	TeamID     string
	Endpoint   string
	HTTPClient *http.Client
}

// NewClient returns a Client with the package defaults filled in.
func NewClient(apiKey, teamID string) *Client {
	return &Client{
		APIKey:     apiKey,
		TeamID:     teamID,
		Endpoint:   DefaultEndpoint,
		HTTPClient: &http.Client{Timeout: DefaultTimeout},
	}
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLError struct {
	Message string `json:"message"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors,omitempty"`
}

func (c *Client) do(ctx context.Context, query string, vars map[string]any, out any) error {
	body, err := json.Marshal(graphQLRequest{Query: query, Variables: vars})
	if err != nil {
		return errs.Wrap(errs.KindInternal, "linear: marshal request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(body))
	if err != nil {
		return errs.Wrap(errs.KindInternal, "linear: build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return errs.Wrap(errs.KindTransient, "linear: request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return errs.Wrap(errs.KindTransient, "linear: read response", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return errs.New(errs.KindTransient, fmt.Sprintf("linear: http %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return errs.New(errs.KindInternal, fmt.Sprintf("linear: http %d: %s", resp.StatusCode, raw))
	}

	var gqlResp graphQLResponse
	if err := json.Unmarshal(raw, &gqlResp); err != nil {
		return errs.Wrap(errs.KindInternal, "linear: unmarshal response", err)
	}
	if len(gqlResp.Errors) > 0 {
		return errs.New(errs.KindInternal, "linear: "+gqlResp.Errors[0].Message)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(gqlResp.Data, out)
}

// Issue is Linear's issue shape, trimmed to the fields spec §4.6's field
// mapping table cares about.
type Issue struct {
	ID          string `json:"id"`
	Identifier  string `json:"identifier"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    int    `json:"priority"`
	State       struct {
		Name string `json:"name"`
		Type string `json:"type"` // "backlog","unstarted","started","completed","canceled"
	} `json:"state"`
	Labels struct {
		Nodes []struct {
			Name string `json:"name"`
		} `json:"nodes"`
	} `json:"labels"`
	Assignee *struct {
		Email string `json:"email"`
	} `json:"assignee"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

type issuesPage struct {
	Issues struct {
		Nodes    []Issue `json:"nodes"`
		PageInfo struct {
			HasNextPage bool   `json:"hasNextPage"`
			EndCursor   string `json:"endCursor"`
		} `json:"pageInfo"`
	} `json:"issues"`
}

const listIssuesQuery = `
query Issues($teamId: String!, $after: String, $first: Int!) {
  issues(filter: { team: { id: { eq: $teamId } } }, after: $after, first: $first) {
    nodes {
      id identifier title description priority
      state { name type }
      labels { nodes { name } }
      assignee { email }
      createdAt updatedAt
    }
    pageInfo { hasNextPage endCursor }
  }
}`

// ListIssues returns one page of team issues (spec §4.6: list_issues(team, cursor)).
func (c *Client) ListIssues(ctx context.Context, cursor string) (issues []Issue, nextCursor string, hasMore bool, err error) {
	var page issuesPage
	vars := map[string]any{"teamId": c.TeamID, "first": MaxPageSize}
	if cursor != "" {
		vars["after"] = cursor
	}
	if err := c.do(ctx, listIssuesQuery, vars, &page); err != nil {
		return nil, "", false, err
	}
	return page.Issues.Nodes, page.Issues.PageInfo.EndCursor, page.Issues.PageInfo.HasNextPage, nil
}

const getIssueQuery = `
query GetIssue($id: String!) {
  issue(id: $id) {
    id identifier title description priority
    state { name type }
    labels { nodes { name } }
    assignee { email }
    createdAt updatedAt
  }
}`

// GetIssue fetches a single issue by id (spec §4.6: get_issue).
func (c *Client) GetIssue(ctx context.Context, id string) (*Issue, error) {
	var out struct {
		Issue Issue `json:"issue"`
	}
	if err := c.do(ctx, getIssueQuery, map[string]any{"id": id}, &out); err != nil {
		return nil, err
	}
	return &out.Issue, nil
}

type Cycle struct {
	ID     string `json:"id"`
	Number int    `json:"number"`
	Name   string `json:"name"`
}

const listCyclesQuery = `
query Cycles($teamId: String!) {
  team(id: $teamId) {
    cycles { nodes { id number name } }
  }
}`

// ListCycles returns the team's cycles (spec §4.6: list_cycles).
func (c *Client) ListCycles(ctx context.Context) ([]Cycle, error) {
	var out struct {
		Team struct {
			Cycles struct {
				Nodes []Cycle `json:"nodes"`
			} `json:"cycles"`
		} `json:"team"`
	}
	if err := c.do(ctx, listCyclesQuery, map[string]any{"teamId": c.TeamID}, &out); err != nil {
		return nil, err
	}
	return out.Team.Cycles.Nodes, nil
}

const viewerQuery = `query Viewer { viewer { id email name } }`

type Viewer struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// GetViewer returns the identity of the authenticated API key (spec §4.6: get_viewer).
func (c *Client) GetViewer(ctx context.Context) (*Viewer, error) {
	var out struct {
		Viewer Viewer `json:"viewer"`
	}
	if err := c.do(ctx, viewerQuery, nil, &out); err != nil {
		return nil, err
	}
	return &out.Viewer, nil
}
