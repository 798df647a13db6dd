// Package ids provides stable issue identifier generation, title
// slugification for filenames, and external-ref key formatting — the
// identifier utilities shared by every other component (spec §4.1, C1).
//
// Grounded on the teacher's internal/types/id_generator.go: the same
// content-addressed hash ID with progressive-length collision handling.
package ids

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/steveyegge/coordinator/internal/model"
)

// MinIDHexLen and MaxIDHexLen bound the progressive hash-ID extension:
// 6 chars covers the common case; extend to 7, then 8 on collision.
const (
	MinIDHexLen = 6
	MaxIDHexLen = 8
)

// ContentHash computes a deterministic SHA-256 digest over the fields that
// make an issue unique within a workspace: title, body, creation instant,
// and workspace ID. Callers take hash[:n] for n in [MinIDHexLen, MaxIDHexLen],
// extending on collision.
func ContentHash(title, body string, created time.Time, workspaceID string) string {
	h := sha256.New()
	h.Write([]byte(title))
	h.Write([]byte(body))
	h.Write([]byte(created.Format(time.RFC3339Nano)))
	h.Write([]byte(workspaceID))
	return hex.EncodeToString(h.Sum(nil))
}

// NewID generates a candidate canonical ID of the form "prefix-xxxxxx",
// starting at MinIDHexLen. exists reports whether a candidate ID is already
// taken; NewID extends the hex segment until it finds a free one or hits
// MaxIDHexLen, at which point it returns the longest candidate regardless
// (the caller's store enforces I1 and will surface a conflict if truly
// exhausted — astronomically unlikely at 8 hex chars).
func NewID(prefix, title, body string, created time.Time, workspaceID string, exists func(id string) bool) string {
	full := ContentHash(title, body, created, workspaceID)
	var candidate string
	for n := MinIDHexLen; n <= MaxIDHexLen; n++ {
		candidate = fmt.Sprintf("%s-%s", prefix, full[:n])
		if exists == nil || !exists(candidate) {
			return candidate
		}
	}
	return candidate
}

var nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)

// MaxSlugLen is the cap applied when slugifying a title for filenames.
const MaxSlugLen = 50

// Slug lowercases s, replaces runs of non-alphanumeric characters with a
// single hyphen, trims leading/trailing hyphens, and caps the result at
// MaxSlugLen (spec §4.3, the `title` pattern variable's emit rule).
func Slug(s string) string {
	lower := strings.ToLower(s)
	slug := nonAlphanumeric.ReplaceAllString(lower, "-")
	slug = strings.Trim(slug, "-")
	if len(slug) > MaxSlugLen {
		slug = strings.Trim(slug[:MaxSlugLen], "-")
	}
	return slug
}

// Deslug reverses Slug on a best-effort basis: hyphens become spaces. This
// is intentionally lossy (spec §4.3: "title ... best-effort reverse") since
// the original casing and punctuation cannot be recovered.
func Deslug(slug string) string {
	return strings.ReplaceAll(slug, "-", " ")
}

// ExternalRefKey formats an (upstream, upstream id) pair into the opaque
// string stored in Issue.ExternalRefs, following each upstream's own
// convention from the field-mapping table in spec §4.6:
//
//	github -> "github-123"
//	linear -> "linear:uuid"
//	beads  -> "beads:todo-abc"
func ExternalRefKey(upstream model.Upstream, upstreamID string) string {
	switch upstream {
	case model.UpstreamGitHub:
		return fmt.Sprintf("github-%s", upstreamID)
	default:
		return fmt.Sprintf("%s:%s", upstream, upstreamID)
	}
}

// ParseGitHubRefKey extracts the numeric issue number from a "github-N" key.
// Returns ok=false if key is not in that form.
func ParseGitHubRefKey(key string) (number string, ok bool) {
	const prefix = "github-"
	if !strings.HasPrefix(key, prefix) {
		return "", false
	}
	return strings.TrimPrefix(key, prefix), true
}
