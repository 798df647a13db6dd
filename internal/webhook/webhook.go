// Package webhook is the inbound ingress of C9 (spec §4.8): verifies each
// delivery's HMAC-SHA256 signature and timestamp, then durably records it
// in the SyncEvent ledger before handing it to C8 — ledger-before-work, so
// a crash between "received" and "applied" loses no deliveries and a
// redelivery after a crash is caught by the idempotency key already
// recorded rather than reapplied twice.
//
// Grounded on examples/beads-web-ui/routes.go for the Go 1.22+
// method-pattern mux convention this package's Router follows.
package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrBadSignature means the delivery's signature header didn't match the
// computed HMAC for the configured secret.
var ErrBadSignature = errors.New("webhook: signature mismatch")

// ErrReplay means the delivery's timestamp fell outside the configured
// replay window.
var ErrReplay = errors.New("webhook: timestamp outside replay window")

// VerifyGitHub checks a GitHub webhook delivery's X-Hub-Signature-256
// header (spec §4.8: "sha256=<hex hmac of body>") against secret. GitHub's
// webhook payloads carry no signed timestamp, so replay protection for
// this upstream rests entirely on the delivery-id idempotency key recorded
// downstream in C8's SyncEvent ledger, not on a window check here.
func VerifyGitHub(secret []byte, signatureHeader string, body []byte) error {
	const prefix = "sha256="
	if !strings.HasPrefix(signatureHeader, prefix) {
		return ErrBadSignature
	}
	want, err := hex.DecodeString(strings.TrimPrefix(signatureHeader, prefix))
	if err != nil {
		return ErrBadSignature
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	got := mac.Sum(nil)
	if !hmac.Equal(got, want) {
		return ErrBadSignature
	}
	return nil
}

// VerifyLinear checks a Linear webhook delivery's Linear-Signature header
// (a bare hex HMAC-SHA256, no "sha256=" prefix) against secret, and its
// timestamp in ms since epoch (ServeLinear reads it from the
// Linear-Event-Timestamp header) against replayWindow, rejecting a delivery
// whose clock skew exceeds the window (spec §4.8's 60s default).
func VerifyLinear(secret []byte, signatureHeader string, body []byte, webhookTimestampMillis int64, now time.Time, replayWindow time.Duration) error {
	want, err := hex.DecodeString(signatureHeader)
	if err != nil {
		return ErrBadSignature
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	got := mac.Sum(nil)
	if !hmac.Equal(got, want) {
		return ErrBadSignature
	}

	sentAt := time.UnixMilli(webhookTimestampMillis)
	skew := now.Sub(sentAt)
	if skew < 0 {
		skew = -skew
	}
	if skew > replayWindow {
		return ErrReplay
	}
	return nil
}

// Ledger is the subset of storage.Store webhook ingestion needs, kept
// narrow so a handler can be tested without a full Store.
type Ledger interface {
	FindEvent(ctx context.Context, upstream Upstream, idempotencyKey string) (found bool, err error)
	AppendEventPending(ctx context.Context, upstream Upstream, kind, idempotencyKey string) (sequence int64, err error)
}

// Upstream names which external system a delivery came from, mirroring
// model.Upstream without importing it (keeps this package's dependency
// surface to net/http and crypto, matching the teacher's own handler
// files' narrow imports).
type Upstream string

const (
	UpstreamGitHub Upstream = "github"
	UpstreamLinear Upstream = "linear"
)

// Delivery is one verified, ledger-recorded inbound webhook call, handed
// to the caller's Apply func for C8 to process.
type Delivery struct {
	Upstream   Upstream
	Kind       string // e.g. "issues", "Comment"
	DeliveryID string
	Body       []byte
	Sequence   int64
}

// Handler verifies, ledgers, and dispatches one upstream's webhook
// deliveries. Apply is called once per new (non-duplicate) delivery, after
// the 202 status is written, so nothing Apply does changes the HTTP
// response — per spec §4.8, a webhook handler always acks 2xx once the
// delivery is durably recorded. Apply returns no error and the handler
// does not retry it.
type Handler struct {
	Secret       []byte
	ReplayWindow time.Duration
	Ledger       Ledger
	Apply        func(ctx context.Context, d Delivery)
	Log          *zap.Logger
	Now          func() time.Time
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now().UTC()
}

// ServeGitHub handles one GitHub webhook POST.
func (h *Handler) ServeGitHub(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 10<<20))
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}

	if err := VerifyGitHub(h.Secret, r.Header.Get("X-Hub-Signature-256"), body); err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	deliveryID := r.Header.Get("X-GitHub-Delivery")
	kind := r.Header.Get("X-GitHub-Event")
	h.ingest(r.Context(), w, UpstreamGitHub, kind, deliveryID, body)
}

// ServeLinear handles one Linear webhook POST.
func (h *Handler) ServeLinear(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 10<<20))
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}

	ts, err := strconv.ParseInt(r.Header.Get("Linear-Event-Timestamp"), 10, 64)
	if err != nil {
		http.Error(w, "missing timestamp", http.StatusBadRequest)
		return
	}

	if err := VerifyLinear(h.Secret, r.Header.Get("Linear-Signature"), body, ts, h.now(), h.ReplayWindow); err != nil {
		// Both a bad signature and an expired timestamp are unauthenticated
		// per spec §4.8: "on expired timestamp -> 401".
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	// Linear has no per-delivery id header, so ingest keys the delivery by
	// the SHA-256 of its body; C8 keeps its own (upstream_id, payload_hash)
	// key for the issue it applies.
	kind := r.Header.Get("Linear-Event")
	h.ingest(r.Context(), w, UpstreamLinear, kind, "", body)
}

func (h *Handler) ingest(ctx context.Context, w http.ResponseWriter, upstream Upstream, kind, deliveryID string, body []byte) {
	key := deliveryID
	if key == "" {
		key = fmt.Sprintf("%x", sha256.Sum256(body))
	}

	found, err := h.Ledger.FindEvent(ctx, upstream, key)
	if err != nil {
		if h.Log != nil {
			h.Log.Error("webhook: ledger lookup failed", zap.Error(err), zap.String("upstream", string(upstream)))
		}
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if found {
		w.WriteHeader(http.StatusOK)
		return
	}

	seq, err := h.Ledger.AppendEventPending(ctx, upstream, kind, key)
	if err != nil {
		if h.Log != nil {
			h.Log.Error("webhook: ledger append failed", zap.Error(err), zap.String("upstream", string(upstream)))
		}
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusAccepted)

	if h.Apply != nil {
		h.Apply(ctx, Delivery{Upstream: upstream, Kind: kind, DeliveryID: deliveryID, Body: body, Sequence: seq})
	}
}
