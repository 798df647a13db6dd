package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func signGitHub(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func signLinear(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifyGitHubRejectsBadSignature(t *testing.T) {
	body := []byte(`{"action":"opened"}`)
	err := VerifyGitHub([]byte("secret"), "sha256=deadbeef", body)
	require.ErrorIs(t, err, ErrBadSignature)
}

func TestVerifyGitHubAcceptsValidSignature(t *testing.T) {
	body := []byte(`{"action":"opened"}`)
	sig := signGitHub([]byte("secret"), body)
	require.NoError(t, VerifyGitHub([]byte("secret"), sig, body))
}

func TestVerifyLinearRejectsReplay(t *testing.T) {
	body := []byte(`{"action":"create"}`)
	sig := signLinear([]byte("secret"), body)
	now := time.Now().UTC()
	old := now.Add(-2 * time.Minute).UnixMilli()
	err := VerifyLinear([]byte("secret"), sig, body, old, now, 60*time.Second)
	require.ErrorIs(t, err, ErrReplay)
}

func TestVerifyLinearAcceptsWithinWindow(t *testing.T) {
	body := []byte(`{"action":"create"}`)
	sig := signLinear([]byte("secret"), body)
	now := time.Now().UTC()
	require.NoError(t, VerifyLinear([]byte("secret"), sig, body, now.UnixMilli(), now, 60*time.Second))
}

type fakeLedger struct {
	seen map[string]bool
	seq  int64
}

func newFakeLedger() *fakeLedger { return &fakeLedger{seen: map[string]bool{}} }

func (f *fakeLedger) FindEvent(ctx context.Context, upstream Upstream, key string) (bool, error) {
	return f.seen[string(upstream)+"|"+key], nil
}

func (f *fakeLedger) AppendEventPending(ctx context.Context, upstream Upstream, kind, key string) (int64, error) {
	f.seen[string(upstream)+"|"+key] = true
	f.seq++
	return f.seq, nil
}

func TestServeGitHubAppliesOnceThenDeduplicates(t *testing.T) {
	secret := []byte("s3cret")
	body := []byte(`{"action":"opened"}`)
	ledger := newFakeLedger()
	applied := 0

	h := &Handler{
		Secret: secret,
		Ledger: ledger,
		Apply:  func(ctx context.Context, d Delivery) { applied++ },
	}

	req := httptest.NewRequest(http.MethodPost, "/webhooks/github", strings.NewReader(string(body)))
	req.Header.Set("X-Hub-Signature-256", signGitHub(secret, body))
	req.Header.Set("X-GitHub-Delivery", "delivery-1")
	req.Header.Set("X-GitHub-Event", "issues")
	w := httptest.NewRecorder()
	h.ServeGitHub(w, req)
	require.Equal(t, http.StatusAccepted, w.Code)

	req2 := httptest.NewRequest(http.MethodPost, "/webhooks/github", strings.NewReader(string(body)))
	req2.Header.Set("X-Hub-Signature-256", signGitHub(secret, body))
	req2.Header.Set("X-GitHub-Delivery", "delivery-1")
	req2.Header.Set("X-GitHub-Event", "issues")
	w2 := httptest.NewRecorder()
	h.ServeGitHub(w2, req2)
	require.Equal(t, http.StatusOK, w2.Code)

	require.Equal(t, 1, applied)
}

func TestServeGitHubRejectsBadSignature(t *testing.T) {
	ledger := newFakeLedger()
	h := &Handler{Secret: []byte("s3cret"), Ledger: ledger}

	req := httptest.NewRequest(http.MethodPost, "/webhooks/github", strings.NewReader("{}"))
	req.Header.Set("X-Hub-Signature-256", "sha256=bogus")
	w := httptest.NewRecorder()
	h.ServeGitHub(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestServeLinearRejectsReplay(t *testing.T) {
	secret := []byte("s3cret")
	body := []byte(`{"action":"create"}`)
	ledger := newFakeLedger()
	now := time.Now().UTC()

	h := &Handler{Secret: secret, ReplayWindow: 60 * time.Second, Ledger: ledger, Now: func() time.Time { return now }}

	req := httptest.NewRequest(http.MethodPost, "/webhooks/linear", strings.NewReader(string(body)))
	req.Header.Set("Linear-Signature", signLinear(secret, body))
	req.Header.Set("Linear-Event-Timestamp", strconv.FormatInt(now.Add(-5*time.Minute).UnixMilli(), 10))
	req.Header.Set("Linear-Event", "Issue")
	w := httptest.NewRecorder()
	h.ServeLinear(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}
