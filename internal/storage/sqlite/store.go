package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/steveyegge/coordinator/internal/model"
	"github.com/steveyegge/coordinator/internal/storage"
)

// Store adapts *DB to the storage.Store contract. Upsert and UpsertMilestone
// each run inside one transaction; the other methods issue their statements
// directly on the connection pool. The enclosing Coordinator (C10) is responsible for
// serializing writes to a given repo, so Store itself only needs each call
// to be internally atomic, not cross-call-exclusive (mirrors the contract
// documented on storage.Store).
type Store struct {
	db *DB
}

// New opens (creating if necessary) a SQLite-backed Store at path.
func New(ctx context.Context, path string) (*Store, error) {
	db, err := Open(ctx, path)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) CloseStore() error { return s.db.CloseStore() }

func (s *Store) Get(ctx context.Context, id string) (*model.Issue, error) {
	iss, err := s.scanIssue(ctx, s.db.db, id)
	if err != nil {
		return nil, err
	}
	return iss, nil
}

func (s *Store) scanIssue(ctx context.Context, q querier, id string) (*model.Issue, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, title, body, status, issue_type, priority, milestone_id, epic_id,
		       design, acceptance_criteria, notes, tainted, created_at, updated_at, closed_at
		FROM issues WHERE id = ?`, id)

	iss := &model.Issue{ExternalRefs: map[model.Upstream]string{}}
	var milestoneID, epicID sql.NullString
	var closedAt sql.NullTime
	var tainted int
	var createdAt, updatedAt time.Time

	err := row.Scan(&iss.ID, &iss.Title, &iss.Body, &iss.Status, &iss.Type, &iss.Priority,
		&milestoneID, &epicID, &iss.Design, &iss.AcceptanceCriteria, &iss.Notes, &tainted,
		&createdAt, &updatedAt, &closedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get issue %s: %w", id, err)
	}

	iss.MilestoneID = milestoneID.String
	iss.EpicID = epicID.String
	iss.Tainted = tainted != 0
	iss.CreatedAt = createdAt
	iss.UpdatedAt = updatedAt
	if closedAt.Valid {
		t := closedAt.Time
		iss.ClosedAt = &t
	}

	if err := s.loadSideTables(ctx, q, iss); err != nil {
		return nil, err
	}
	return iss, nil
}

func (s *Store) loadSideTables(ctx context.Context, q querier, iss *model.Issue) error {
	labelRows, err := q.QueryContext(ctx, `SELECT label FROM labels WHERE issue_id = ? ORDER BY label`, iss.ID)
	if err != nil {
		return fmt.Errorf("sqlite: load labels: %w", err)
	}
	defer labelRows.Close()
	for labelRows.Next() {
		var l string
		if err := labelRows.Scan(&l); err != nil {
			return err
		}
		iss.Labels = append(iss.Labels, l)
	}

	assigneeRows, err := q.QueryContext(ctx, `SELECT assignee FROM assignees WHERE issue_id = ? ORDER BY position`, iss.ID)
	if err != nil {
		return fmt.Errorf("sqlite: load assignees: %w", err)
	}
	defer assigneeRows.Close()
	for assigneeRows.Next() {
		var a string
		if err := assigneeRows.Scan(&a); err != nil {
			return err
		}
		iss.Assignees = append(iss.Assignees, a)
	}

	refRows, err := q.QueryContext(ctx, `SELECT upstream, upstream_id FROM external_refs WHERE issue_id = ?`, iss.ID)
	if err != nil {
		return fmt.Errorf("sqlite: load external refs: %w", err)
	}
	defer refRows.Close()
	for refRows.Next() {
		var upstream, upstreamID string
		if err := refRows.Scan(&upstream, &upstreamID); err != nil {
			return err
		}
		iss.ExternalRefs[model.Upstream(upstream)] = upstreamID
	}
	return nil
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) List(ctx context.Context, filter storage.Filter) ([]*model.Issue, error) {
	where := "WHERE 1=1"
	var args []any
	if filter.Status != "" {
		where += " AND status = ?"
		args = append(args, string(filter.Status))
	}
	if filter.Type != "" {
		where += " AND issue_type = ?"
		args = append(args, string(filter.Type))
	}
	if filter.Priority != nil {
		where += " AND priority = ?"
		args = append(args, int(*filter.Priority))
	}
	if filter.Milestone != "" {
		where += " AND milestone_id = ?"
		args = append(args, filter.Milestone)
	}
	if filter.Assignee != "" {
		where += ` AND EXISTS (SELECT 1 FROM assignees WHERE issue_id = issues.id AND position = 0 AND assignee = ?)`
		args = append(args, filter.Assignee)
	}

	rows, err := s.db.db.QueryContext(ctx, `SELECT id FROM issues `+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list issues: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()

	var out []*model.Issue
	for _, id := range ids {
		iss, err := s.scanIssue(ctx, s.db.db, id)
		if err != nil {
			return nil, err
		}
		if len(filter.LabelsAny) > 0 && !hasAnyLabel(iss, filter.LabelsAny) {
			continue
		}
		out = append(out, iss)
	}
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

func (s *Store) Upsert(ctx context.Context, issue *model.Issue, guard storage.Guard) (storage.Outcome, error) {
	tx, err := s.db.db.BeginTx(ctx, nil)
	if err != nil {
		return storage.Outcome{}, fmt.Errorf("sqlite: begin upsert: %w", err)
	}
	defer tx.Rollback()

	existing, err := s.scanIssue(ctx, tx, issue.ID)
	exists := true
	if errors.Is(err, storage.ErrNotFound) {
		exists = false
	} else if err != nil {
		return storage.Outcome{}, err
	}

	if exists {
		if !guard.ExpectedUpdatedAt.IsZero() && !guard.ExpectedUpdatedAt.Equal(existing.UpdatedAt) {
			return storage.Outcome{}, storage.ErrStaleWrite
		}
	}
	for upstream, id := range issue.ExternalRefs {
		var owner string
		err := tx.QueryRowContext(ctx, `SELECT issue_id FROM external_refs WHERE upstream = ? AND upstream_id = ?`, string(upstream), id).Scan(&owner)
		if err == nil && owner != issue.ID {
			return storage.Outcome{}, storage.ErrDuplicate
		}
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return storage.Outcome{}, fmt.Errorf("sqlite: check external ref: %w", err)
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
	if exists && !cp.UpdatedAt.After(existing.UpdatedAt) {
		cp.UpdatedAt = existing.UpdatedAt.Add(time.Nanosecond)
	} else if cp.UpdatedAt.IsZero() {
		cp.UpdatedAt = now
	}

	var closedAt any
	if cp.ClosedAt != nil {
		closedAt = *cp.ClosedAt
	}
	taintedInt := 0
	if cp.Tainted {
		taintedInt = 1
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO issues (id, title, body, status, issue_type, priority, milestone_id, epic_id,
		                     design, acceptance_criteria, notes, tainted, created_at, updated_at, closed_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET
			title=excluded.title, body=excluded.body, status=excluded.status,
			issue_type=excluded.issue_type, priority=excluded.priority,
			milestone_id=excluded.milestone_id, epic_id=excluded.epic_id,
			design=excluded.design, acceptance_criteria=excluded.acceptance_criteria,
			notes=excluded.notes, tainted=excluded.tainted,
			updated_at=excluded.updated_at, closed_at=excluded.closed_at
	`, cp.ID, cp.Title, cp.Body, string(cp.Status), string(cp.Type), int(cp.Priority),
		nullableString(cp.MilestoneID), nullableString(cp.EpicID),
		cp.Design, cp.AcceptanceCriteria, cp.Notes, taintedInt, cp.CreatedAt, cp.UpdatedAt, closedAt)
	if err != nil {
		return storage.Outcome{}, fmt.Errorf("sqlite: upsert issue: %w", err)
	}

	if err := replaceSet(ctx, tx, "labels", "label", cp.ID, cp.Labels); err != nil {
		return storage.Outcome{}, err
	}
	if err := replaceAssignees(ctx, tx, cp.ID, cp.Assignees); err != nil {
		return storage.Outcome{}, err
	}
	if err := replaceExternalRefs(ctx, tx, cp.ID, cp.ExternalRefs); err != nil {
		return storage.Outcome{}, err
	}

	if err := tx.Commit(); err != nil {
		return storage.Outcome{}, fmt.Errorf("sqlite: commit upsert: %w", err)
	}

	return storage.Outcome{Created: !exists, Issue: &cp}, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func replaceSet(ctx context.Context, tx *sql.Tx, table, col, issueID string, values []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE issue_id = ?`, issueID); err != nil {
		return fmt.Errorf("sqlite: clear %s: %w", table, err)
	}
	for _, v := range values {
		if _, err := tx.ExecContext(ctx, `INSERT INTO `+table+` (issue_id, `+col+`) VALUES (?, ?)`, issueID, v); err != nil {
			return fmt.Errorf("sqlite: insert %s: %w", table, err)
		}
	}
	return nil
}

func replaceAssignees(ctx context.Context, tx *sql.Tx, issueID string, assignees []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM assignees WHERE issue_id = ?`, issueID); err != nil {
		return fmt.Errorf("sqlite: clear assignees: %w", err)
	}
	for i, a := range assignees {
		if _, err := tx.ExecContext(ctx, `INSERT INTO assignees (issue_id, assignee, position) VALUES (?, ?, ?)`, issueID, a, i); err != nil {
			return fmt.Errorf("sqlite: insert assignee: %w", err)
		}
	}
	return nil
}

func replaceExternalRefs(ctx context.Context, tx *sql.Tx, issueID string, refs map[model.Upstream]string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM external_refs WHERE issue_id = ?`, issueID); err != nil {
		return fmt.Errorf("sqlite: clear external_refs: %w", err)
	}
	for upstream, id := range refs {
		if _, err := tx.ExecContext(ctx, `INSERT INTO external_refs (issue_id, upstream, upstream_id) VALUES (?, ?, ?)`, issueID, string(upstream), id); err != nil {
			return fmt.Errorf("sqlite: insert external_ref: %w", err)
		}
	}
	return nil
}

func (s *Store) Close(ctx context.Context, id string, reason string) error {
	_ = reason
	res, err := s.db.db.ExecContext(ctx, `
		UPDATE issues SET status = ?, closed_at = ?, updated_at = ?
		WHERE id = ? AND status != ?`,
		string(model.StatusClosed), time.Now(), time.Now(), id, string(model.StatusClosed))
	if err != nil {
		return fmt.Errorf("sqlite: close issue: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// Either already closed (idempotent no-op) or missing.
		if _, err := s.Get(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) AddEdge(ctx context.Context, from, to string, kind model.DependencyKind) error {
	if from == to {
		return storage.ErrSelfLoop
	}
	if _, err := s.Get(ctx, from); err != nil {
		return storage.ErrMissing
	}
	if _, err := s.Get(ctx, to); err != nil {
		return storage.ErrMissing
	}

	if kind == model.KindBlocks {
		cyclic, err := s.wouldCycle(ctx, from, to)
		if err != nil {
			return err
		}
		if cyclic {
			return storage.ErrCycle
		}
	}

	_, err := s.db.db.ExecContext(ctx, `
		INSERT INTO dependency_edges (from_id, to_id, kind) VALUES (?,?,?)
		ON CONFLICT(from_id, to_id, kind) DO NOTHING`, from, to, string(kind))
	if err != nil {
		return fmt.Errorf("sqlite: add edge: %w", err)
	}
	return nil
}

// wouldCycle reports whether adding a blocks edge from->to would close a
// cycle, by checking whether "from" is already reachable from "to" via
// existing blocks edges.
func (s *Store) wouldCycle(ctx context.Context, from, to string) (bool, error) {
	rows, err := s.db.db.QueryContext(ctx, `SELECT from_id, to_id FROM dependency_edges WHERE kind = ?`, string(model.KindBlocks))
	if err != nil {
		return false, fmt.Errorf("sqlite: load edges for cycle check: %w", err)
	}
	defer rows.Close()

	adj := map[string][]string{}
	for rows.Next() {
		var f, t string
		if err := rows.Scan(&f, &t); err != nil {
			return false, err
		}
		adj[f] = append(adj[f], t)
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
		for _, next := range adj[node] {
			if dfs(next) {
				return true
			}
		}
		return false
	}
	return dfs(to), nil
}

func (s *Store) DeleteEdge(ctx context.Context, from, to string, kind model.DependencyKind) error {
	_, err := s.db.db.ExecContext(ctx, `DELETE FROM dependency_edges WHERE from_id=? AND to_id=? AND kind=?`, from, to, string(kind))
	if err != nil {
		return fmt.Errorf("sqlite: delete edge: %w", err)
	}
	return nil
}

func (s *Store) ListEdges(ctx context.Context, kind model.DependencyKind) ([]model.DependencyEdge, error) {
	rows, err := s.db.db.QueryContext(ctx, `SELECT from_id, to_id FROM dependency_edges WHERE kind = ? ORDER BY from_id, to_id`, string(kind))
	if err != nil {
		return nil, fmt.Errorf("sqlite: list edges: %w", err)
	}
	defer rows.Close()
	var out []model.DependencyEdge
	for rows.Next() {
		var e model.DependencyEdge
		e.Kind = kind
		if err := rows.Scan(&e.From, &e.To); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *Store) FindByExternalRef(ctx context.Context, upstream model.Upstream, upstreamID string) (*model.Issue, error) {
	var issueID string
	err := s.db.db.QueryRowContext(ctx, `SELECT issue_id FROM external_refs WHERE upstream = ? AND upstream_id = ?`, string(upstream), upstreamID).Scan(&issueID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: find by external ref: %w", err)
	}
	return s.Get(ctx, issueID)
}

func (s *Store) UpsertMilestone(ctx context.Context, m *model.Milestone) error {
	tx, err := s.db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin milestone upsert: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	var createdAt time.Time
	err = tx.QueryRowContext(ctx, `SELECT created_at FROM milestones WHERE id = ?`, m.ID).Scan(&createdAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		createdAt = now
	case err != nil:
		return fmt.Errorf("sqlite: check milestone: %w", err)
	}

	var dueOn any
	if m.DueOn != nil {
		dueOn = *m.DueOn
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO milestones (id, title, description, state, due_on, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET
			title=excluded.title, description=excluded.description, state=excluded.state,
			due_on=excluded.due_on, updated_at=excluded.updated_at`,
		m.ID, m.Title, m.Description, string(m.State), dueOn, createdAt, now)
	if err != nil {
		return fmt.Errorf("sqlite: upsert milestone: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM milestone_external_refs WHERE milestone_id = ?`, m.ID); err != nil {
		return fmt.Errorf("sqlite: clear milestone external refs: %w", err)
	}
	for upstream, id := range m.ExternalRefs {
		if _, err := tx.ExecContext(ctx, `INSERT INTO milestone_external_refs (milestone_id, upstream, upstream_id) VALUES (?,?,?)`, m.ID, string(upstream), id); err != nil {
			return fmt.Errorf("sqlite: insert milestone external ref: %w", err)
		}
	}

	return tx.Commit()
}

func (s *Store) GetMilestone(ctx context.Context, id string) (*model.Milestone, error) {
	m := &model.Milestone{ExternalRefs: map[model.Upstream]string{}}
	var dueOn sql.NullTime
	err := s.db.db.QueryRowContext(ctx, `
		SELECT id, title, description, state, due_on, created_at, updated_at
		FROM milestones WHERE id = ?`, id).
		Scan(&m.ID, &m.Title, &m.Description, &m.State, &dueOn, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get milestone: %w", err)
	}
	if dueOn.Valid {
		t := dueOn.Time
		m.DueOn = &t
	}

	rows, err := s.db.db.QueryContext(ctx, `SELECT upstream, upstream_id FROM milestone_external_refs WHERE milestone_id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("sqlite: load milestone external refs: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var upstream, upstreamID string
		if err := rows.Scan(&upstream, &upstreamID); err != nil {
			return nil, err
		}
		m.ExternalRefs[model.Upstream(upstream)] = upstreamID
	}
	return m, nil
}

func (s *Store) RecordComment(ctx context.Context, m model.CommentMapping) error {
	_, err := s.db.db.ExecContext(ctx, `
		INSERT INTO comment_mappings (issue_id, upstream, upstream_comment_id) VALUES (?,?,?)
		ON CONFLICT(issue_id, upstream, upstream_comment_id) DO NOTHING`,
		m.IssueID, string(m.Upstream), m.UpstreamCommentID)
	if err != nil {
		return fmt.Errorf("sqlite: record comment mapping: %w", err)
	}
	return nil
}

func (s *Store) HasComment(ctx context.Context, issueID string, upstream model.Upstream, upstreamCommentID string) (bool, error) {
	var n int
	err := s.db.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM comment_mappings WHERE issue_id=? AND upstream=? AND upstream_comment_id=?`,
		issueID, string(upstream), upstreamCommentID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("sqlite: check comment mapping: %w", err)
	}
	return n > 0, nil
}

func (s *Store) AppendEvent(ctx context.Context, e model.SyncEvent) (int64, error) {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	idempotencyKey := e.IdempotencyKey
	res, err := s.db.db.ExecContext(ctx, `
		INSERT INTO sync_events (upstream, direction, kind, idempotency_key, payload_hash, outcome, at)
		VALUES (?,?,?,?,?,?,?)`,
		string(e.Upstream), string(e.Direction), e.Kind, idempotencyKey, e.PayloadHash, string(e.Outcome), e.At)
	if err != nil {
		return 0, fmt.Errorf("sqlite: append event: %w", err)
	}
	return res.LastInsertId()
}

func (s *Store) FindEvent(ctx context.Context, upstream model.Upstream, idempotencyKey string) (model.SyncEvent, bool, error) {
	var e model.SyncEvent
	var direction, outcome string
	err := s.db.db.QueryRowContext(ctx, `
		SELECT sequence, upstream, direction, kind, idempotency_key, payload_hash, outcome, at
		FROM sync_events WHERE upstream = ? AND idempotency_key = ?`, string(upstream), idempotencyKey).
		Scan(&e.Sequence, &e.Upstream, &direction, &e.Kind, &e.IdempotencyKey, &e.PayloadHash, &outcome, &e.At)
	if errors.Is(err, sql.ErrNoRows) {
		return model.SyncEvent{}, false, nil
	}
	if err != nil {
		return model.SyncEvent{}, false, fmt.Errorf("sqlite: find event: %w", err)
	}
	e.Direction = model.SyncDirection(direction)
	e.Outcome = model.SyncOutcome(outcome)
	return e, true, nil
}

func (s *Store) PendingEvents(ctx context.Context) ([]model.SyncEvent, error) {
	rows, err := s.db.db.QueryContext(ctx, `
		SELECT sequence, upstream, direction, kind, idempotency_key, payload_hash, outcome, at
		FROM sync_events WHERE outcome = ? ORDER BY sequence`, string(model.OutcomePending))
	if err != nil {
		return nil, fmt.Errorf("sqlite: pending events: %w", err)
	}
	defer rows.Close()

	var out []model.SyncEvent
	for rows.Next() {
		var e model.SyncEvent
		var direction, outcome string
		if err := rows.Scan(&e.Sequence, &e.Upstream, &direction, &e.Kind, &e.IdempotencyKey, &e.PayloadHash, &outcome, &e.At); err != nil {
			return nil, err
		}
		e.Direction = model.SyncDirection(direction)
		e.Outcome = model.SyncOutcome(outcome)
		out = append(out, e)
	}
	return out, nil
}

func (s *Store) MarkEventOutcome(ctx context.Context, sequence int64, outcome model.SyncOutcome) error {
	res, err := s.db.db.ExecContext(ctx, `UPDATE sync_events SET outcome = ? WHERE sequence = ?`, string(outcome), sequence)
	if err != nil {
		return fmt.Errorf("sqlite: mark event outcome: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) Snapshot(ctx context.Context) ([]*model.Issue, []model.DependencyEdge, error) {
	rows, err := s.db.db.QueryContext(ctx, `SELECT id FROM issues WHERE tainted = 0 ORDER BY id`)
	if err != nil {
		return nil, nil, fmt.Errorf("sqlite: snapshot issue ids: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()

	issues := make([]*model.Issue, 0, len(ids))
	for _, id := range ids {
		iss, err := s.scanIssue(ctx, s.db.db, id)
		if err != nil {
			return nil, nil, err
		}
		issues = append(issues, iss)
	}

	edgeRows, err := s.db.db.QueryContext(ctx, `SELECT from_id, to_id, kind FROM dependency_edges`)
	if err != nil {
		return nil, nil, fmt.Errorf("sqlite: snapshot edges: %w", err)
	}
	defer edgeRows.Close()
	var edges []model.DependencyEdge
	for edgeRows.Next() {
		var e model.DependencyEdge
		var kind string
		if err := edgeRows.Scan(&e.From, &e.To, &kind); err != nil {
			return nil, nil, err
		}
		e.Kind = model.DependencyKind(kind)
		edges = append(edges, e)
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].From != edges[j].From {
			return edges[i].From < edges[j].From
		}
		return edges[i].To < edges[j].To
	})

	return issues, edges, nil
}

var _ storage.Store = (*Store)(nil)
