// Package httpapi implements the Coordinator's HTTP API (spec §6.2): the
// issue CRUD surface, DAG queries, and dependency edits that external
// collaborators drive the sync engine through (`cmd/syncctl` calls only
// GET /issues, for `generate --source api`).
//
// Grounded on examples/beads-web-ui/routes.go's mux.HandleFunc("METHOD
// /path", ...) registration style (Go 1.22+ method patterns) and its
// handler-returns-http.HandlerFunc-closure shape; mutating handlers funnel
// through Coordinator.Submit instead of calling a connection pool's RPC
// client, since this package talks to an in-process Coordinator rather
// than the teacher's out-of-process daemon.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/steveyegge/coordinator/internal/coordinator"
	"github.com/steveyegge/coordinator/internal/dag"
	"github.com/steveyegge/coordinator/internal/errs"
	"github.com/steveyegge/coordinator/internal/ids"
	"github.com/steveyegge/coordinator/internal/model"
	"github.com/steveyegge/coordinator/internal/storage"
	syncpkg "github.com/steveyegge/coordinator/internal/sync"
)

// Handler serves the HTTP API against a coordinator.Pool. The "current"
// repo context (POST /context, spec §6.2) is the pool key every other
// route resolves against — coordinatord runs one HTTP listener but can
// have many Coordinators attached, matching the Pool's one-actor-per-repo
// design.
type Handler struct {
	Pool *coordinator.Pool
	Log  *zap.Logger

	mu      sync.RWMutex
	current model.RepoContext
	hasRepo bool
}

// Routes builds the ServeMux spec §6.2's table maps onto.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /context", h.handleSetContext)
	mux.HandleFunc("GET /issues", h.handleListIssues)
	mux.HandleFunc("POST /issues", h.handleCreateIssue)
	mux.HandleFunc("GET /issues/{id}", h.handleGetIssue)
	mux.HandleFunc("PATCH /issues/{id}", h.handlePatchIssue)
	mux.HandleFunc("POST /issues/{id}/close", h.handleCloseIssue)
	mux.HandleFunc("POST /issues/{id}/comments", h.handleAddComment)
	mux.HandleFunc("GET /ready", h.handleReady)
	mux.HandleFunc("GET /blocked", h.handleBlocked)
	mux.HandleFunc("GET /critical-path", h.handleCriticalPath)
	mux.HandleFunc("POST /deps", h.handleDeps)
	return mux
}

func (h *Handler) handleSetContext(w http.ResponseWriter, r *http.Request) {
	var req contextDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errs.Wrap(errs.KindValidation, "httpapi: decode context", err))
		return
	}
	if req.Owner == "" || req.Name == "" {
		writeError(w, errs.New(errs.KindValidation, "httpapi: owner and name are required"))
		return
	}
	repo := model.RepoContext{
		Owner:          req.Owner,
		Name:           req.Name,
		InstallationID: req.InstallationID,
		DefaultBranch:  req.DefaultBranch,
	}
	if _, err := h.Pool.Attach(r.Context(), repo); err != nil {
		writeError(w, errs.Wrap(errs.KindInternal, "httpapi: attach coordinator", err))
		return
	}
	h.mu.Lock()
	h.current, h.hasRepo = repo, true
	h.mu.Unlock()
	writeJSON(w, http.StatusOK, contextDTO{Owner: repo.Owner, Name: repo.Name, InstallationID: repo.InstallationID, DefaultBranch: repo.DefaultBranch})
}

// coordinatorFor resolves the active repo context's Coordinator, attaching
// it (idempotent) if Pool doesn't have it warm.
func (h *Handler) coordinatorFor(ctx context.Context) (*coordinator.Coordinator, error) {
	h.mu.RLock()
	repo, ok := h.current, h.hasRepo
	h.mu.RUnlock()
	if !ok {
		return nil, errs.New(errs.KindValidation, "httpapi: no repo context set, POST /context first")
	}
	return h.Pool.Attach(ctx, repo)
}

// submit runs fn on coord's single-writer goroutine and blocks for its
// result, so every mutating handler observes the same serialization the
// file watcher and webhook deliveries do.
func submit(coord *coordinator.Coordinator, fn func(ctx context.Context) error) error {
	done := make(chan error, 1)
	coord.Submit(func(ctx context.Context) { done <- fn(ctx) })
	return <-done
}

func (h *Handler) handleListIssues(w http.ResponseWriter, r *http.Request) {
	coord, err := h.coordinatorFor(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	filter := storage.Filter{}
	q := r.URL.Query()
	if s := q.Get("status"); s != "" {
		filter.Status = model.Status(s)
	}
	if t := q.Get("type"); t != "" {
		filter.Type = model.IssueType(t)
	}
	if p := q.Get("priority"); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			pr := model.Priority(n)
			filter.Priority = &pr
		}
	}
	if a := q.Get("assignee"); a != "" {
		filter.Assignee = a
	}
	if m := q.Get("milestone"); m != "" {
		filter.Milestone = m
	}
	if labels := q.Get("labels"); labels != "" {
		filter.LabelsAny = strings.Split(labels, ",")
	}

	issues, err := coord.Store.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	if term := strings.ToLower(q.Get("q")); term != "" {
		filtered := issues[:0]
		for _, iss := range issues {
			if strings.Contains(strings.ToLower(iss.Title), term) || strings.Contains(strings.ToLower(iss.Body), term) {
				filtered = append(filtered, iss)
			}
		}
		issues = filtered
	}
	writeJSON(w, http.StatusOK, toDTOList(issues))
}

func (h *Handler) handleCreateIssue(w http.ResponseWriter, r *http.Request) {
	coord, err := h.coordinatorFor(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	var body issueDTO
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, errs.Wrap(errs.KindValidation, "httpapi: decode issue", err))
		return
	}
	if body.Title == "" {
		writeError(w, errs.New(errs.KindValidation, "httpapi: title is required"))
		return
	}

	iss := fromCreateDTO(body)
	if !iss.Status.Valid() || !iss.Type.Valid() || !iss.Priority.Valid() {
		writeError(w, errs.New(errs.KindValidation, "httpapi: invalid status, type, or priority"))
		return
	}
	var out *model.Issue
	err = submit(coord, func(ctx context.Context) error {
		now := time.Now().UTC()
		iss.CreatedAt, iss.UpdatedAt = now, now
		iss.ID = ids.NewID("issue", iss.Title, iss.Body, now, h.currentKey(), func(id string) bool {
			_, err := coord.Store.Get(ctx, id)
			return err == nil
		})
		outcome, err := coord.Store.Upsert(ctx, iss, storage.Guard{})
		if err != nil {
			return err
		}
		out = outcome.Issue
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toDTO(out))
}

func (h *Handler) currentKey() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current.Key()
}

func (h *Handler) handleGetIssue(w http.ResponseWriter, r *http.Request) {
	coord, err := h.coordinatorFor(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	iss, err := coord.Store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDTO(iss))
}

func (h *Handler) handlePatchIssue(w http.ResponseWriter, r *http.Request) {
	coord, err := h.coordinatorFor(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	var patch patchDTO
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, errs.Wrap(errs.KindValidation, "httpapi: decode patch", err))
		return
	}
	id := r.PathValue("id")

	var out *model.Issue
	err = submit(coord, func(ctx context.Context) error {
		iss, err := coord.Store.Get(ctx, id)
		if err != nil {
			return err
		}
		guard := storage.Guard{ExpectedUpdatedAt: iss.UpdatedAt}
		applyPatch(iss, patch)
		if !iss.Status.Valid() || !iss.Type.Valid() || !iss.Priority.Valid() {
			return errs.New(errs.KindValidation, "httpapi: invalid status, type, or priority")
		}
		iss.UpdatedAt = time.Now().UTC()
		outcome, err := coord.Store.Upsert(ctx, iss, guard)
		if err != nil {
			return err
		}
		out = outcome.Issue
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDTO(out))
}

func (h *Handler) handleCloseIssue(w http.ResponseWriter, r *http.Request) {
	coord, err := h.coordinatorFor(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	id := r.PathValue("id")
	var body closeDTO
	_ = json.NewDecoder(r.Body).Decode(&body) // reason is optional, absent body is fine

	err = submit(coord, func(ctx context.Context) error {
		return coord.Store.Close(ctx, id, body.Reason)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleAddComment appends a comment and mirrors it to GitHub when the
// issue carries a github external ref (spec §6.2's "propagates to mapped
// upstreams"); Linear is inbound-only (§4.7.4) so there is nothing to push
// there, and an issue with no github ref is recorded without mirroring.
func (h *Handler) handleAddComment(w http.ResponseWriter, r *http.Request) {
	coord, err := h.coordinatorFor(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	id := r.PathValue("id")
	var body commentDTO
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, errs.Wrap(errs.KindValidation, "httpapi: decode comment", err))
		return
	}
	if body.Body == "" {
		writeError(w, errs.New(errs.KindValidation, "httpapi: comment body is required"))
		return
	}

	err = submit(coord, func(ctx context.Context) error {
		iss, err := coord.Store.Get(ctx, id)
		if err != nil {
			return err
		}
		ref, hasGitHub := iss.ExternalRefs[model.UpstreamGitHub]
		if !hasGitHub || coord.GitHub == nil {
			return coord.Store.RecordComment(ctx, model.CommentMapping{IssueID: id, Upstream: model.UpstreamFiles})
		}
		sink := syncpkg.GitHubCommentSink{GH: coord.GitHub}
		number := strings.TrimPrefix(ref, "github-")
		return syncpkg.MirrorComment(ctx, coord.Store, sink, model.UpstreamGitHub, id, number, "", body.Body)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) snapshot(r *http.Request, coord *coordinator.Coordinator) (*dag.Snapshot, []*model.Issue, error) {
	issues, edges, err := coord.Store.Snapshot(r.Context())
	if err != nil {
		return nil, nil, err
	}
	return dag.NewSnapshot(issues, edges), issues, nil
}

func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	coord, err := h.coordinatorFor(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	snap, _, err := h.snapshot(r, coord)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDTOList(snap.Ready()))
}

func (h *Handler) handleBlocked(w http.ResponseWriter, r *http.Request) {
	coord, err := h.coordinatorFor(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	snap, _, err := h.snapshot(r, coord)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDTOList(snap.Blocked()))
}

func (h *Handler) handleCriticalPath(w http.ResponseWriter, r *http.Request) {
	coord, err := h.coordinatorFor(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	snap, _, err := h.snapshot(r, coord)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDTOList(snap.CriticalPath()))
}

func (h *Handler) handleDeps(w http.ResponseWriter, r *http.Request) {
	coord, err := h.coordinatorFor(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	var body depDTO
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, errs.Wrap(errs.KindValidation, "httpapi: decode dependency edit", err))
		return
	}
	kind := model.DependencyKind(body.Kind)
	if kind == "" {
		kind = model.KindBlocks
	}
	if !kind.Valid() {
		writeError(w, errs.New(errs.KindValidation, "httpapi: unknown dependency kind "+body.Kind))
		return
	}
	if body.From == "" || body.To == "" {
		writeError(w, errs.New(errs.KindValidation, "httpapi: from and to are required"))
		return
	}

	err = submit(coord, func(ctx context.Context) error {
		if body.Remove {
			return coord.Store.DeleteEdge(ctx, body.From, body.To, kind)
		}
		return coord.Store.AddEdge(ctx, body.From, body.To, kind)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
