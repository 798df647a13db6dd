package sync

import (
	"context"
	"testing"
	"time"

	gogithub "github.com/google/go-github/v57/github"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/coordinator/internal/model"
	"github.com/steveyegge/coordinator/internal/storage"
	"github.com/steveyegge/coordinator/internal/storage/memory"
)

func newGitHubIssue(number int, updatedAt time.Time) *gogithub.Issue {
	return &gogithub.Issue{
		Number:    gogithub.Int(number),
		Title:     gogithub.String("fix login"),
		State:     gogithub.String("open"),
		UpdatedAt: &gogithub.Timestamp{Time: updatedAt},
		CreatedAt: &gogithub.Timestamp{Time: updatedAt},
	}
}

func TestIngestGitHubIssueCreatesNewRow(t *testing.T) {
	s := memory.New()
	r := New(s, nil)
	ctx := context.Background()

	gi := newGitHubIssue(7, time.Now().UTC())
	outcome, err := r.IngestGitHubIssue(ctx, gi, "delivery-1")
	require.NoError(t, err)
	require.Equal(t, model.OutcomeApplied, outcome)

	stored, err := s.FindByExternalRef(ctx, model.UpstreamGitHub, "github-7")
	require.NoError(t, err)
	require.Equal(t, "fix login", stored.Title)
}

func TestIngestGitHubIssueDuplicateDeliveryIsIgnored(t *testing.T) {
	s := memory.New()
	r := New(s, nil)
	ctx := context.Background()

	gi := newGitHubIssue(7, time.Now().UTC())
	_, err := r.IngestGitHubIssue(ctx, gi, "delivery-1")
	require.NoError(t, err)

	outcome, err := r.IngestGitHubIssue(ctx, gi, "delivery-1")
	require.NoError(t, err)
	require.Equal(t, model.OutcomeDuplicate, outcome)
}

func TestIngestGitHubIssueStaleUpdateIsIgnored(t *testing.T) {
	s := memory.New()
	r := New(s, nil)
	ctx := context.Background()

	now := time.Now().UTC()
	_, err := r.IngestGitHubIssue(ctx, newGitHubIssue(7, now), "delivery-1")
	require.NoError(t, err)

	older := newGitHubIssue(7, now.Add(-time.Hour))
	older.Title = gogithub.String("stale title")
	outcome, err := r.IngestGitHubIssue(ctx, older, "delivery-2")
	require.NoError(t, err)
	require.Equal(t, model.OutcomeStale, outcome)

	stored, err := s.FindByExternalRef(ctx, model.UpstreamGitHub, "github-7")
	require.NoError(t, err)
	require.Equal(t, "fix login", stored.Title)
}

type fakeGitHubPort struct {
	created      int
	lastNumber   int
	closed       bool
	nextNumber   int
	comments     []string
}

func (f *fakeGitHubPort) CreateIssue(ctx context.Context, req *gogithub.IssueRequest) (*gogithub.Issue, error) {
	f.created++
	f.nextNumber = 99
	return &gogithub.Issue{Number: gogithub.Int(99)}, nil
}

func (f *fakeGitHubPort) UpdateIssue(ctx context.Context, number int, req *gogithub.IssueRequest) (*gogithub.Issue, error) {
	f.lastNumber = number
	return &gogithub.Issue{Number: gogithub.Int(number)}, nil
}

func (f *fakeGitHubPort) CloseIssue(ctx context.Context, number int) error {
	f.closed = true
	return nil
}

func (f *fakeGitHubPort) AddComment(ctx context.Context, number int, body string) (*gogithub.IssueComment, error) {
	f.comments = append(f.comments, body)
	return &gogithub.IssueComment{ID: gogithub.Int64(1)}, nil
}

func TestPushIssueToGitHubCreatesWhenNoNumber(t *testing.T) {
	s := memory.New()
	r := New(s, nil)
	ctx := context.Background()

	iss := &model.Issue{ID: "bd-1", Title: "fix login", Status: model.StatusOpen, Type: model.TypeTask, Priority: model.DefaultPriority}
	_, err := s.Upsert(ctx, iss, storage.Guard{})
	require.NoError(t, err)

	fake := &fakeGitHubPort{}
	require.NoError(t, r.PushIssueToGitHub(ctx, fake, iss, 0))
	require.Equal(t, 1, fake.created)
	require.Equal(t, "github-99", iss.ExternalRefs[model.UpstreamGitHub])
}

func TestPushIssueToGitHubClosesWhenStatusClosed(t *testing.T) {
	s := memory.New()
	r := New(s, nil)
	ctx := context.Background()

	iss := &model.Issue{ID: "bd-1", Title: "fix login", Status: model.StatusClosed, Type: model.TypeTask, Priority: model.DefaultPriority}
	_, err := s.Upsert(ctx, iss, storage.Guard{})
	require.NoError(t, err)

	fake := &fakeGitHubPort{}
	require.NoError(t, r.PushIssueToGitHub(ctx, fake, iss, 42))
	require.True(t, fake.closed)
}
