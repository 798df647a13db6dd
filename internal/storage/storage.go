// Package storage defines the Issue Store contract of spec §4.1 (C2): the
// operations a Coordinator uses to read and mutate one repo's canonical
// state. Concrete backends live in sibling packages (sqlite for production,
// memory for tests).
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/steveyegge/coordinator/internal/model"
)

// Sentinel errors matching the taxonomy in spec §7. Callers type-assert
// with errors.Is; the coordinator/sync layers map these onto the
// structured errs.Error and onto HTTP status codes (409/422/404).
var (
	ErrNotFound  = errors.New("storage: not found")
	ErrStaleWrite = errors.New("storage: stale write")
	ErrCycle     = errors.New("storage: would create a dependency cycle")
	ErrSelfLoop  = errors.New("storage: self-referential dependency edge")
	ErrMissing   = errors.New("storage: dependency endpoint does not exist")
	ErrDuplicate = errors.New("storage: duplicate external ref")
)

// Filter is the recognized query config for List (spec §4.1).
type Filter struct {
	Status     model.Status
	Type       model.IssueType
	Priority   *model.Priority
	LabelsAny  []string
	Assignee   string
	Milestone  string
}

// Guard carries the caller's expected UpdatedAt for optimistic concurrency
// on Upsert. A zero Guard (IsZero UpdatedAt) means "create or overwrite
// unconditionally" — used for the first write of a new issue.
type Guard struct {
	ExpectedUpdatedAt time.Time
}

// Outcome reports what Upsert actually did.
type Outcome struct {
	Created bool
	Issue   *model.Issue
}

// Store is the Issue Store contract (C2). All methods observe snapshot
// isolation; the enclosing Coordinator (C10) is solely responsible for
// serializing writes, so implementations need not add their own
// cross-call locking beyond what's required for a single call to be atomic.
type Store interface {
	Get(ctx context.Context, id string) (*model.Issue, error)
	List(ctx context.Context, filter Filter) ([]*model.Issue, error)
	Upsert(ctx context.Context, issue *model.Issue, guard Guard) (Outcome, error)
	Close(ctx context.Context, id string, reason string) error

	AddEdge(ctx context.Context, from, to string, kind model.DependencyKind) error
	DeleteEdge(ctx context.Context, from, to string, kind model.DependencyKind) error
	ListEdges(ctx context.Context, kind model.DependencyKind) ([]model.DependencyEdge, error)

	FindByExternalRef(ctx context.Context, upstream model.Upstream, upstreamID string) (*model.Issue, error)

	UpsertMilestone(ctx context.Context, m *model.Milestone) error
	GetMilestone(ctx context.Context, id string) (*model.Milestone, error)

	RecordComment(ctx context.Context, m model.CommentMapping) error
	HasComment(ctx context.Context, issueID string, upstream model.Upstream, upstreamCommentID string) (bool, error)

	AppendEvent(ctx context.Context, e model.SyncEvent) (int64, error)
	FindEvent(ctx context.Context, upstream model.Upstream, idempotencyKey string) (model.SyncEvent, bool, error)
	PendingEvents(ctx context.Context) ([]model.SyncEvent, error)
	MarkEventOutcome(ctx context.Context, sequence int64, outcome model.SyncOutcome) error

	// Snapshot returns every non-tainted issue and every dependency edge,
	// for building a dag.Snapshot (C3) or a render snapshot (C6).
	Snapshot(ctx context.Context) ([]*model.Issue, []model.DependencyEdge, error)

	// CloseStore releases the underlying resource (e.g. a DB handle). Named
	// distinctly from Close(id, reason), which closes an *issue*, not the
	// store.
	CloseStore() error
}
