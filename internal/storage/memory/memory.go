// Package memory implements storage.Store with a process-local map — no
// database, no file. It backs unit tests for components that need a real
// Store contract without SQLite's overhead, grounded on the teacher's own
// internal/storage/memory package (which tests ready/blocked logic the
// same way, without a database).
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/steveyegge/coordinator/internal/model"
	"github.com/steveyegge/coordinator/internal/storage"
)

// Store is an in-process, mutex-guarded implementation of storage.Store.
type Store struct {
	mu sync.Mutex

	issues     map[string]*model.Issue
	milestones map[string]*model.Milestone
	edges      map[edgeKey]model.DependencyEdge
	extRefs    map[string]string // "upstream:id" -> issue id
	comments   map[string]model.CommentMapping
	events     []model.SyncEvent
	byKey      map[string]int // idempotency key -> index into events
}

type edgeKey struct {
	from, to string
	kind     model.DependencyKind
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{
		issues:     make(map[string]*model.Issue),
		milestones: make(map[string]*model.Milestone),
		edges:      make(map[edgeKey]model.DependencyEdge),
		extRefs:    make(map[string]string),
		comments:   make(map[string]model.CommentMapping),
		byKey:      make(map[string]int),
	}
}

func (s *Store) Get(_ context.Context, id string) (*model.Issue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	iss, ok := s.issues[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *iss
	return &cp, nil
}

func (s *Store) List(_ context.Context, filter storage.Filter) ([]*model.Issue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*model.Issue
	for _, iss := range s.issues {
		if filter.Status != "" && iss.Status != filter.Status {
			continue
		}
		if filter.Type != "" && iss.Type != filter.Type {
			continue
		}
		if filter.Priority != nil && iss.Priority != *filter.Priority {
			continue
		}
		if filter.Assignee != "" && iss.PrimaryAssignee() != filter.Assignee {
			continue
		}
		if filter.Milestone != "" && iss.MilestoneID != filter.Milestone {
			continue
		}
		if len(filter.LabelsAny) > 0 && !hasAnyLabel(iss, filter.LabelsAny) {
			continue
		}
		cp := *iss
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func hasAnyLabel(iss *model.Issue, labels []string) bool {
	for _, l := range labels {
		if iss.HasLabel(l) {
			return true
		}
	}
	return false
}

func (s *Store) Upsert(_ context.Context, issue *model.Issue, guard storage.Guard) (storage.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.issues[issue.ID]
	if exists {
		if !guard.ExpectedUpdatedAt.IsZero() && !guard.ExpectedUpdatedAt.Equal(existing.UpdatedAt) {
			return storage.Outcome{}, storage.ErrStaleWrite
		}
	}
	for upstream, id := range issue.ExternalRefs {
		if owner, ok := s.extRefs[refKey(upstream, id)]; ok && owner != issue.ID {
			return storage.Outcome{}, storage.ErrDuplicate
		}
	}

	now := time.Now()
	cp := *issue
	if cp.CreatedAt.IsZero() {
		if exists {
			cp.CreatedAt = existing.CreatedAt
		} else {
			cp.CreatedAt = now
		}
	}
	// I6: updated_at never decreases.
	if exists && !cp.UpdatedAt.After(existing.UpdatedAt) {
		cp.UpdatedAt = existing.UpdatedAt.Add(time.Nanosecond)
	} else if cp.UpdatedAt.IsZero() {
		cp.UpdatedAt = now
	}

	s.issues[cp.ID] = &cp
	for upstream, id := range cp.ExternalRefs {
		s.extRefs[refKey(upstream, id)] = cp.ID
	}

	return storage.Outcome{Created: !exists, Issue: &cp}, nil
}

func refKey(upstream model.Upstream, id string) string {
	return string(upstream) + ":" + id
}

func (s *Store) Close(_ context.Context, id string, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	iss, ok := s.issues[id]
	if !ok {
		return storage.ErrNotFound
	}
	if iss.Status == model.StatusClosed {
		return nil // idempotent
	}
	now := time.Now()
	iss.Status = model.StatusClosed
	iss.ClosedAt = &now
	iss.UpdatedAt = now
	_ = reason // surfaced via the sync ledger's Kind, not stored on the issue
	return nil
}

func (s *Store) AddEdge(_ context.Context, from, to string, kind model.DependencyKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if from == to {
		return storage.ErrSelfLoop
	}
	if _, ok := s.issues[from]; !ok {
		return storage.ErrMissing
	}
	if _, ok := s.issues[to]; !ok {
		return storage.ErrMissing
	}

	if kind == model.KindBlocks && s.wouldCycleLocked(from, to) {
		return storage.ErrCycle
	}

	s.edges[edgeKey{from, to, kind}] = model.DependencyEdge{From: from, To: to, Kind: kind}
	return nil
}

func (s *Store) wouldCycleLocked(from, to string) bool {
	if from == to {
		return true
	}
	visited := map[string]bool{}
	var dfs func(string) bool
	dfs = func(node string) bool {
		if node == from {
			return true
		}
		if visited[node] {
			return false
		}
		visited[node] = true
		for k, e := range s.edges {
			if k.kind != model.KindBlocks || e.From != node {
				continue
			}
			if dfs(e.To) {
				return true
			}
		}
		return false
	}
	return dfs(to)
}

func (s *Store) DeleteEdge(_ context.Context, from, to string, kind model.DependencyKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.edges, edgeKey{from, to, kind})
	return nil
}

func (s *Store) ListEdges(_ context.Context, kind model.DependencyKind) ([]model.DependencyEdge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.DependencyEdge
	for k, e := range s.edges {
		if k.kind == kind {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].From != out[j].From {
			return out[i].From < out[j].From
		}
		return out[i].To < out[j].To
	})
	return out, nil
}

func (s *Store) FindByExternalRef(_ context.Context, upstream model.Upstream, upstreamID string) (*model.Issue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.extRefs[refKey(upstream, upstreamID)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *s.issues[id]
	return &cp, nil
}

func (s *Store) UpsertMilestone(_ context.Context, m *model.Milestone) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *m
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	cp.UpdatedAt = time.Now()
	s.milestones[cp.ID] = &cp
	return nil
}

func (s *Store) GetMilestone(_ context.Context, id string) (*model.Milestone, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.milestones[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (s *Store) RecordComment(_ context.Context, m model.CommentMapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.comments[commentKey(m.IssueID, m.Upstream, m.UpstreamCommentID)] = m
	return nil
}

func (s *Store) HasComment(_ context.Context, issueID string, upstream model.Upstream, upstreamCommentID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.comments[commentKey(issueID, upstream, upstreamCommentID)]
	return ok, nil
}

func commentKey(issueID string, upstream model.Upstream, commentID string) string {
	return issueID + "|" + string(upstream) + "|" + commentID
}

func (s *Store) AppendEvent(_ context.Context, e model.SyncEvent) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.Sequence = int64(len(s.events)) + 1
	if e.At.IsZero() {
		e.At = time.Now()
	}
	s.events = append(s.events, e)
	if e.IdempotencyKey != "" {
		s.byKey[string(e.Upstream)+"|"+e.IdempotencyKey] = len(s.events) - 1
	}
	return e.Sequence, nil
}

func (s *Store) FindEvent(_ context.Context, upstream model.Upstream, idempotencyKey string) (model.SyncEvent, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.byKey[string(upstream)+"|"+idempotencyKey]
	if !ok {
		return model.SyncEvent{}, false, nil
	}
	return s.events[idx], true, nil
}

func (s *Store) PendingEvents(_ context.Context) ([]model.SyncEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.SyncEvent
	for _, e := range s.events {
		if e.Outcome == model.OutcomePending {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *Store) MarkEventOutcome(_ context.Context, sequence int64, outcome model.SyncOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.events {
		if s.events[i].Sequence == sequence {
			s.events[i].Outcome = outcome
			return nil
		}
	}
	return storage.ErrNotFound
}

func (s *Store) Snapshot(_ context.Context) ([]*model.Issue, []model.DependencyEdge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	issues := make([]*model.Issue, 0, len(s.issues))
	for _, iss := range s.issues {
		if iss.Tainted {
			continue
		}
		cp := *iss
		issues = append(issues, &cp)
	}
	sort.Slice(issues, func(i, j int) bool { return issues[i].ID < issues[j].ID })

	edges := make([]model.DependencyEdge, 0, len(s.edges))
	for _, e := range s.edges {
		edges = append(edges, e)
	}
	return issues, edges, nil
}

func (s *Store) CloseStore() error { return nil }

var _ storage.Store = (*Store)(nil)
