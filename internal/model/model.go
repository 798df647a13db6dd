// Package model defines the canonical entities shared by every component of
// the coordinator: issues, milestones, dependency edges, comment mappings,
// sync events, and repo context. Nothing in this package touches storage,
// the network, or the filesystem — it is pure data plus the small amount of
// validation that belongs to the type itself.
package model

import "time"

// Status is the lifecycle state of an Issue. "blocked" is never a stored
// status — see DESIGN.md's note on the Open Question in spec §9.
type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusClosed     Status = "closed"
)

// Valid reports whether s is one of the closed set of statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusClosed:
		return true
	default:
		return false
	}
}

// IssueType classifies the kind of work an Issue represents.
type IssueType string

const (
	TypeTask    IssueType = "task"
	TypeBug     IssueType = "bug"
	TypeFeature IssueType = "feature"
	TypeEpic    IssueType = "epic"
	TypeChore   IssueType = "chore"
)

// DefaultIssueType is used when a caller or upstream omits type.
const DefaultIssueType = TypeTask

// Valid reports whether t is one of the closed set of issue types.
func (t IssueType) Valid() bool {
	switch t {
	case TypeTask, TypeBug, TypeFeature, TypeEpic, TypeChore:
		return true
	default:
		return false
	}
}

// Priority is 0 (highest) through 4 (lowest). DefaultPriority is 2.
type Priority int

const DefaultPriority Priority = 2

// Valid reports whether p is within the closed 0..4 range.
func (p Priority) Valid() bool {
	return p >= 0 && p <= 4
}

// DependencyKind enumerates the edge types in the dependency DAG.
type DependencyKind string

const (
	KindBlocks      DependencyKind = "blocks"
	KindParentChild DependencyKind = "parent-child"
	KindRelated     DependencyKind = "related"
)

func (k DependencyKind) Valid() bool {
	switch k {
	case KindBlocks, KindParentChild, KindRelated:
		return true
	default:
		return false
	}
}

// Upstream names the external systems a canonical row can be mirrored to or
// from. Used as the key type in Issue.ExternalRefs and in the sync ledger.
type Upstream string

const (
	UpstreamBeads  Upstream = "beads"
	UpstreamFiles  Upstream = "files"
	UpstreamGitHub Upstream = "github"
	UpstreamLinear Upstream = "linear"
)

// Issue is the coordinator's canonical view of one unit of work.
type Issue struct {
	ID        string
	Title     string
	Body      string
	Status    Status
	Type      IssueType
	Priority  Priority
	Labels    []string // set semantics: comparison is set-equality, not order
	Assignees []string // ordered; first is primary

	MilestoneID string // empty means none
	EpicID      string // empty means none; must reference an Issue of TypeEpic

	// ExternalRefs maps upstream name to that upstream's opaque identifier,
	// e.g. ExternalRefs["github"] = "github-123", ExternalRefs["linear"] = "linear:uuid".
	ExternalRefs map[Upstream]string

	// Design, AcceptanceCriteria, and Notes are optional free-text fields
	// carried from the teacher's schema. They participate in no invariant;
	// C5/C7 round-trip them so content isn't silently dropped on a hop.
	Design             string
	AcceptanceCriteria string
	Notes              string

	// Tainted marks a row quarantined by the Internal error-kind policy
	// (spec §7). Tainted issues are excluded from DAG queries and rendering.
	Tainted bool

	CreatedAt time.Time
	UpdatedAt time.Time
	ClosedAt  *time.Time
}

// HasLabel reports whether the issue carries the given label.
func (i *Issue) HasLabel(label string) bool {
	for _, l := range i.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// PrimaryAssignee returns the first assignee, or "" if unassigned.
func (i *Issue) PrimaryAssignee() string {
	if len(i.Assignees) == 0 {
		return ""
	}
	return i.Assignees[0]
}

// DependencyEdge is a directed edge in the dependency graph. Blocks(from,to)
// means "from" must be closed before "to" can become ready.
type DependencyEdge struct {
	From string
	To   string
	Kind DependencyKind
}

// Milestone groups issues toward a shared deadline or release.
type Milestone struct {
	ID           string
	Title        string
	Description  string
	State        Status // open or closed only; in_progress is not meaningful here
	DueOn        *time.Time
	ExternalRefs map[Upstream]string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CommentMapping records that a canonical comment event has already been
// mirrored to a given upstream, preventing duplicate cross-posting (I7).
type CommentMapping struct {
	IssueID          string
	Upstream         Upstream
	UpstreamCommentID string
}

// SyncDirection is the flow direction of a SyncEvent.
type SyncDirection string

const (
	DirectionInbound  SyncDirection = "inbound"
	DirectionOutbound SyncDirection = "outbound"
)

// SyncOutcome is the terminal (or pending) state of a ledger entry.
type SyncOutcome string

const (
	OutcomePending   SyncOutcome = "pending"
	OutcomeApplied   SyncOutcome = "applied"
	OutcomeIgnored   SyncOutcome = "ignored"
	OutcomeDuplicate SyncOutcome = "duplicate"
	OutcomeStale     SyncOutcome = "stale"
	OutcomeFailed    SyncOutcome = "failed"
)

// SyncEvent is one append-only entry in a repo's ledger (spec §3.1, §6.4).
type SyncEvent struct {
	Sequence int64
	Upstream Upstream
	Direction SyncDirection
	Kind      string // e.g. "issues.edited", "Comment.create", "file.write"

	// IdempotencyKey is (upstream, delivery_id) for webhooks or
	// (upstream, upstream_id, payload_hash) for pulled items, pre-formatted
	// by the caller (spec §4.7's "effective key"). Unique per upstream.
	IdempotencyKey string
	PayloadHash    string

	Outcome SyncOutcome
	At      time.Time
}

// RepoContext identifies the repository a Coordinator instance owns and is
// set once per Coordinator lifetime (spec §3.1).
type RepoContext struct {
	Owner          string
	Name           string
	InstallationID string
	DefaultBranch  string
}

// Key returns the "owner/name" identity used to route work to a Coordinator.
func (r RepoContext) Key() string {
	return r.Owner + "/" + r.Name
}
