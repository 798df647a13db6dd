package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/steveyegge/coordinator/internal/config"
	"github.com/steveyegge/coordinator/internal/coordinator"
	"github.com/steveyegge/coordinator/internal/model"
	"github.com/steveyegge/coordinator/internal/pattern"
	"github.com/steveyegge/coordinator/internal/storage/memory"
)

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	dir := t.TempDir()
	filesRoot := filepath.Join(dir, "files")
	require.NoError(t, os.MkdirAll(filesRoot, 0o755))
	beadsPath := filepath.Join(dir, "issues.jsonl")
	require.NoError(t, os.WriteFile(beadsPath, nil, 0o644))
	pat, err := pattern.Compile(pattern.Default)
	require.NoError(t, err)

	pool := coordinator.NewPool(func(repo model.RepoContext) (*coordinator.Coordinator, error) {
		cfg := config.SyncConfig{
			FilesRoot:      filesRoot,
			WatchDebounce:  10 * time.Millisecond,
			WatchStability: 5 * time.Millisecond,
			PollInterval:   time.Hour,
		}
		return coordinator.New(repo, memory.New(), filesRoot, pat, beadsPath, cfg, nil), nil
	}, nil)

	return &Handler{Pool: pool}
}

func setContext(t *testing.T, mux *http.ServeMux) {
	t.Helper()
	body, _ := json.Marshal(contextDTO{Owner: "acme", Name: "widgets"})
	req := httptest.NewRequest(http.MethodPost, "/context", bytes.NewReader(body))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
}

func createIssue(t *testing.T, mux *http.ServeMux, title string) issueDTO {
	t.Helper()
	body, _ := json.Marshal(issueDTO{Title: title})
	req := httptest.NewRequest(http.MethodPost, "/issues", bytes.NewReader(body))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var out issueDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestCreateAndGetIssue(t *testing.T) {
	h := newTestHandler(t)
	mux := h.Routes()
	setContext(t, mux)

	created := createIssue(t, mux, "fix the bug")
	require.NotEmpty(t, created.ID)
	require.Equal(t, model.StatusOpen, created.Status)

	req := httptest.NewRequest(http.MethodGet, "/issues/"+created.ID, nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var got issueDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Equal(t, created.ID, got.ID)
	require.Equal(t, "fix the bug", got.Title)
}

func TestListIssuesFiltersByStatus(t *testing.T) {
	h := newTestHandler(t)
	mux := h.Routes()
	setContext(t, mux)

	a := createIssue(t, mux, "issue a")
	createIssue(t, mux, "issue b")

	closeReq := httptest.NewRequest(http.MethodPost, "/issues/"+a.ID+"/close", bytes.NewReader([]byte(`{}`)))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, closeReq)
	require.Equal(t, http.StatusNoContent, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/issues?status=open", nil)
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var list []issueDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)
	require.Equal(t, "issue b", list[0].Title)
}

func TestPatchIssueAppliesOnlyGivenFields(t *testing.T) {
	h := newTestHandler(t)
	mux := h.Routes()
	setContext(t, mux)

	created := createIssue(t, mux, "original title")

	patch, _ := json.Marshal(map[string]any{"priority": 0})
	req := httptest.NewRequest(http.MethodPatch, "/issues/"+created.ID, bytes.NewReader(patch))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var got issueDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Equal(t, "original title", got.Title)
	require.Equal(t, 0, *got.Priority)
}

func TestDepsRejectsCycle(t *testing.T) {
	h := newTestHandler(t)
	mux := h.Routes()
	setContext(t, mux)

	a := createIssue(t, mux, "a")
	b := createIssue(t, mux, "b")

	add := func(from, to string) int {
		body, _ := json.Marshal(depDTO{From: from, To: to, Kind: "blocks"})
		req := httptest.NewRequest(http.MethodPost, "/deps", bytes.NewReader(body))
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, req)
		return w.Code
	}

	require.Equal(t, http.StatusNoContent, add(a.ID, b.ID))
	require.Equal(t, http.StatusUnprocessableEntity, add(b.ID, a.ID))
}

func TestReadyAndBlockedEndpoints(t *testing.T) {
	h := newTestHandler(t)
	mux := h.Routes()
	setContext(t, mux)

	a := createIssue(t, mux, "a")
	b := createIssue(t, mux, "b")

	body, _ := json.Marshal(depDTO{From: a.ID, To: b.ID, Kind: "blocks"})
	req := httptest.NewRequest(http.MethodPost, "/deps", bytes.NewReader(body))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	require.Equal(t, http.StatusNoContent, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/ready", nil)
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	var ready []issueDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ready))
	require.Len(t, ready, 1)
	require.Equal(t, a.ID, ready[0].ID)

	req = httptest.NewRequest(http.MethodGet, "/blocked", nil)
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	var blocked []issueDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &blocked))
	require.Len(t, blocked, 1)
	require.Equal(t, b.ID, blocked[0].ID)
}

func TestIssuesWithoutContextReturnsValidationError(t *testing.T) {
	h := newTestHandler(t)
	mux := h.Routes()

	req := httptest.NewRequest(http.MethodGet, "/issues", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetMissingIssueReturnsNotFound(t *testing.T) {
	h := newTestHandler(t)
	mux := h.Routes()
	setContext(t, mux)

	req := httptest.NewRequest(http.MethodGet, "/issues/does-not-exist", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	require.Equal(t, http.StatusNotFound, w.Code)
}
