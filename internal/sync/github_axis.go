package sync

import (
	"context"
	"fmt"

	gogithub "github.com/google/go-github/v57/github"

	"github.com/steveyegge/coordinator/internal/errs"
	"github.com/steveyegge/coordinator/internal/model"
	"github.com/steveyegge/coordinator/internal/storage"
	"github.com/steveyegge/coordinator/internal/upstream/github"
)

// GitHubPort is the subset of internal/upstream/github's Client this axis
// calls, narrowed to an interface so tests can fake it.
type GitHubPort interface {
	CreateIssue(ctx context.Context, req *gogithub.IssueRequest) (*gogithub.Issue, error)
	UpdateIssue(ctx context.Context, number int, req *gogithub.IssueRequest) (*gogithub.Issue, error)
	CloseIssue(ctx context.Context, number int) error
	AddComment(ctx context.Context, number int, body string) (*gogithub.IssueComment, error)
}

// GitHubCommentSink adapts a GitHubPort to the CommentSink interface
// MirrorComment uses, parsing target as the decimal issue number.
type GitHubCommentSink struct {
	GH GitHubPort
}

func (s GitHubCommentSink) AddComment(ctx context.Context, target string, body string) (string, error) {
	number := 0
	for _, c := range target {
		if c < '0' || c > '9' {
			return "", fmt.Errorf("sync: invalid github issue number %q", target)
		}
		number = number*10 + int(c-'0')
	}
	comment, err := s.GH.AddComment(ctx, number, body)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d", comment.GetID()), nil
}

// externalRefGitHub formats the "github-N" key spec §4.7 names
// ("external_refs[\"github\"] = \"github-N\"").
func externalRefGitHub(number int) string {
	return fmt.Sprintf("github-%d", number)
}

// IngestGitHubIssue applies a webhook-delivered or polled GitHub issue
// payload to the canonical store (spec §4.7.3: "GitHub webhooks feed
// C9→C10; canonical writes produce GitHub create/update/close via C7").
// deliveryID is the webhook X-GitHub-Delivery header, or "" for a polled
// pull (in which case the payload hash itself forms the idempotency key).
func (r *Reconciler) IngestGitHubIssue(ctx context.Context, gi *gogithub.Issue, deliveryID string) (outcome model.SyncOutcome, err error) {
	ref := externalRefGitHub(gi.GetNumber())

	key := deliveryID
	if key == "" {
		key, err = idempotencyKeyForPull(ref, gi)
		if err != nil {
			return "", err
		}
	}

	dup, seq, err := r.checkAndRecordPending(ctx, model.UpstreamGitHub, model.DirectionInbound, "issues", key, "")
	if err != nil {
		return "", err
	}
	if dup {
		return model.OutcomeDuplicate, nil
	}

	incoming := github.ToIssue(gi)
	incoming.ExternalRefs = map[model.Upstream]string{model.UpstreamGitHub: ref}

	existing, err := r.Store.FindByExternalRef(ctx, model.UpstreamGitHub, ref)
	if err != nil && err != storage.ErrNotFound {
		r.markOutcome(ctx, seq, model.OutcomeFailed)
		return "", err
	}

	if IsStale(existing, incoming) {
		r.markOutcome(ctx, seq, model.OutcomeStale)
		return model.OutcomeStale, nil
	}

	merged := Resolve(PolicyUpstreamWins, existing, incoming)
	if existing != nil {
		merged.ID = existing.ID
	}

	guard := storage.Guard{}
	if existing != nil {
		guard.ExpectedUpdatedAt = existing.UpdatedAt
	}
	if _, err := r.Store.Upsert(ctx, merged, guard); err != nil {
		r.markOutcome(ctx, seq, model.OutcomeFailed)
		return "", err
	}

	r.markOutcome(ctx, seq, model.OutcomeApplied)
	return model.OutcomeApplied, nil
}

// PushIssueToGitHub creates or updates iss on GitHub via gh, recording the
// resulting github-N external ref on success. number is the GitHub issue
// number if iss already has a github mapping, 0 otherwise.
func (r *Reconciler) PushIssueToGitHub(ctx context.Context, gh GitHubPort, iss *model.Issue, number int) error {
	req := github.ToIssueRequest(iss)

	op := func() error {
		if number == 0 {
			created, err := gh.CreateIssue(ctx, req)
			if err != nil {
				return err
			}
			number = created.GetNumber()
			return nil
		}
		if iss.Status == model.StatusClosed {
			return gh.CloseIssue(ctx, number)
		}
		_, err := gh.UpdateIssue(ctx, number, req)
		return err
	}

	if err := Retry(ctx, errs.Retryable, op); err != nil {
		return err
	}

	if iss.ExternalRefs == nil {
		iss.ExternalRefs = map[model.Upstream]string{}
	}
	iss.ExternalRefs[model.UpstreamGitHub] = externalRefGitHub(number)
	_, err := r.Store.Upsert(ctx, iss, storage.Guard{ExpectedUpdatedAt: iss.UpdatedAt})
	return err
}
