// Package github is a thin, stateless GitHub REST adapter (C7), grounded
// on github.com/google/go-github/v57's IssuesService (list/get/create/
// edit), MilestonesService, IssuesService.ListComments/CreateComment, and
// GitService (refs, used for branch creation) plus PullRequestsService
// (create/merge). Retries belong to the caller (C8), per spec §4.6: this
// package retries nothing itself, and each method makes one API round trip,
// except the List methods, which make one per page.
package github

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"

	"github.com/steveyegge/coordinator/internal/errs"
)

// Client wraps *github.Client with the installation-scoped owner/repo this
// adapter always targets — one Client per repo Coordinator (spec §3.1).
type Client struct {
	gh    *github.Client
	Owner string
	Repo  string
}

// NewClient builds a Client authenticated with an installation token
// (resolved by C11) using oauth2's static token source, the same pattern
// go-github's own documentation uses for app/installation tokens.
func NewClient(ctx context.Context, token, owner, repo string) *Client {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	httpClient := oauth2.NewClient(ctx, ts)
	return NewClientWithHTTP(httpClient, owner, repo)
}

// NewClientWithHTTP builds a Client around a caller-provided *http.Client,
// useful for tests or when the caller manages token refresh itself.
func NewClientWithHTTP(httpClient *http.Client, owner, repo string) *Client {
	return &Client{gh: github.NewClient(httpClient), Owner: owner, Repo: repo}
}

func wrapHTTPError(action string, resp *github.Response, err error) error {
	if err == nil {
		return nil
	}
	if resp != nil && (resp.StatusCode == 403 || resp.StatusCode == 429 || resp.StatusCode >= 500) {
		return errs.Wrap(errs.KindTransient, "github: "+action, err)
	}
	if resp != nil && resp.StatusCode == 404 {
		return errs.Wrap(errs.KindNotFound, "github: "+action, err)
	}
	return errs.Wrap(errs.KindInternal, "github: "+action, err)
}

// ListIssues returns open or closed issues for owner/repo, paginated
// 100/page, with pull requests filtered out (spec §4.6).
func (c *Client) ListIssues(ctx context.Context, state string) ([]*github.Issue, error) {
	var all []*github.Issue
	opts := &github.IssueListByRepoOptions{
		State:       state,
		ListOptions: github.ListOptions{PerPage: 100},
	}
	for {
		issues, resp, err := c.gh.Issues.ListByRepo(ctx, c.Owner, c.Repo, opts)
		if err != nil {
			return nil, wrapHTTPError("list issues", resp, err)
		}
		for _, iss := range issues {
			if iss.IsPullRequest() {
				continue
			}
			all = append(all, iss)
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return all, nil
}

// GetIssue fetches one issue by number.
func (c *Client) GetIssue(ctx context.Context, number int) (*github.Issue, error) {
	iss, resp, err := c.gh.Issues.Get(ctx, c.Owner, c.Repo, number)
	if err != nil {
		return nil, wrapHTTPError(fmt.Sprintf("get issue %d", number), resp, err)
	}
	return iss, nil
}

// CreateIssue opens a new issue.
func (c *Client) CreateIssue(ctx context.Context, req *github.IssueRequest) (*github.Issue, error) {
	iss, resp, err := c.gh.Issues.Create(ctx, c.Owner, c.Repo, req)
	if err != nil {
		return nil, wrapHTTPError("create issue", resp, err)
	}
	return iss, nil
}

// UpdateIssue edits an existing issue's fields.
func (c *Client) UpdateIssue(ctx context.Context, number int, req *github.IssueRequest) (*github.Issue, error) {
	iss, resp, err := c.gh.Issues.Edit(ctx, c.Owner, c.Repo, number, req)
	if err != nil {
		return nil, wrapHTTPError(fmt.Sprintf("update issue %d", number), resp, err)
	}
	return iss, nil
}

// CloseIssue sets state=closed on number.
func (c *Client) CloseIssue(ctx context.Context, number int) error {
	state := "closed"
	_, resp, err := c.gh.Issues.Edit(ctx, c.Owner, c.Repo, number, &github.IssueRequest{State: &state})
	return wrapHTTPError(fmt.Sprintf("close issue %d", number), resp, err)
}

// AddComment posts body onto issue number.
func (c *Client) AddComment(ctx context.Context, number int, body string) (*github.IssueComment, error) {
	comment, resp, err := c.gh.Issues.CreateComment(ctx, c.Owner, c.Repo, number, &github.IssueComment{Body: &body})
	if err != nil {
		return nil, wrapHTTPError(fmt.Sprintf("add comment to %d", number), resp, err)
	}
	return comment, nil
}

// ListMilestones returns every open milestone.
func (c *Client) ListMilestones(ctx context.Context) ([]*github.Milestone, error) {
	var all []*github.Milestone
	opts := &github.MilestoneListOptions{ListOptions: github.ListOptions{PerPage: 100}}
	for {
		ms, resp, err := c.gh.Issues.ListMilestones(ctx, c.Owner, c.Repo, opts)
		if err != nil {
			return nil, wrapHTTPError("list milestones", resp, err)
		}
		all = append(all, ms...)
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return all, nil
}

// CreateBranch creates a git ref pointing at sha.
func (c *Client) CreateBranch(ctx context.Context, ref, sha string) error {
	r := &github.Reference{
		Ref:    github.String("refs/heads/" + ref),
		Object: &github.GitObject{SHA: github.String(sha)},
	}
	_, resp, err := c.gh.Git.CreateRef(ctx, c.Owner, c.Repo, r)
	return wrapHTTPError("create branch "+ref, resp, err)
}

// CreatePR opens a pull request.
func (c *Client) CreatePR(ctx context.Context, title, head, base, body string) (*github.PullRequest, error) {
	pr, resp, err := c.gh.PullRequests.Create(ctx, c.Owner, c.Repo, &github.NewPullRequest{
		Title: &title, Head: &head, Base: &base, Body: &body,
	})
	if err != nil {
		return nil, wrapHTTPError("create PR", resp, err)
	}
	return pr, nil
}

// MergePR merges a pull request by number.
func (c *Client) MergePR(ctx context.Context, number int, commitMessage string) error {
	_, resp, err := c.gh.PullRequests.Merge(ctx, c.Owner, c.Repo, number, commitMessage, nil)
	return wrapHTTPError(fmt.Sprintf("merge PR %d", number), resp, err)
}
