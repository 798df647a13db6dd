// Package beads reads and writes the local beads tracker's JSONL export
// (one JSON object per line, "issues.jsonl"), the third leg of C7.
// Grounded on the teacher's internal/importer/importer.go: content-hash
// based change detection, and the orphan-handling vocabulary
// (strict/skip/allow; the importer's resurrect mode has no counterpart
// here) applied to dependency edges whose endpoint hasn't synced into the
// canonical store yet.
package beads

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/steveyegge/coordinator/internal/errs"
	"github.com/steveyegge/coordinator/internal/ids"
	"github.com/steveyegge/coordinator/internal/model"
)

// OrphanHandling mirrors the teacher importer's vocabulary for dependency
// edges whose endpoint does not yet exist in the canonical store.
type OrphanHandling string

const (
	OrphanStrict    OrphanHandling = "strict"
	OrphanSkip      OrphanHandling = "skip"
	OrphanAllow     OrphanHandling = "allow"
	DefaultOrphans                 = OrphanAllow
)

// Record is one line of issues.jsonl — beads' native wire shape. Field
// names match the teacher's JSONL export so existing beads installs parse
// unchanged.
type Record struct {
	ID                 string            `json:"id"`
	Title              string            `json:"title"`
	Description        string            `json:"description"`
	Design             string            `json:"design,omitempty"`
	AcceptanceCriteria string            `json:"acceptance_criteria,omitempty"`
	Notes              string            `json:"notes,omitempty"`
	Status             string            `json:"status"`
	IssueType          string            `json:"issue_type"`
	Priority           int               `json:"priority"`
	Assignee           string            `json:"assignee,omitempty"`
	Labels             []string          `json:"labels,omitempty"`
	DependsOn          []string          `json:"depends_on,omitempty"`
	ExternalRef        string            `json:"external_ref,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
	ClosedAt           *time.Time        `json:"closed_at,omitempty"`
	ContentHash        string            `json:"content_hash,omitempty"`
}

// ReadJSONL reads path line by line, skipping blank lines, tolerating a
// malformed line by returning it in skipped rather than aborting the whole
// read — one bad export line should not block sync of everything else.
func ReadJSONL(path string) (records []Record, skipped []string, err error) {
	f, openErr := os.Open(path)
	if openErr != nil {
		return nil, nil, errs.Wrap(errs.KindNotFound, "beads: open "+path, openErr)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			skipped = append(skipped, string(line))
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return records, skipped, errs.Wrap(errs.KindTransient, "beads: read "+path, err)
	}
	return records, skipped, nil
}

// WriteJSONL overwrites path with one JSON object per line, sorted by ID
// for a stable diff in version control — beads.jsonl is typically committed.
func WriteJSONL(path string, records []Record) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return errs.Wrap(errs.KindInternal, "beads: mkdir", err)
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return errs.Wrap(errs.KindInternal, "beads: create "+tmp, err)
	}
	w := bufio.NewWriter(f)
	for _, rec := range records {
		line, err := json.Marshal(rec)
		if err != nil {
			f.Close()
			return errs.Wrap(errs.KindInternal, "beads: marshal "+rec.ID, err)
		}
		w.Write(line)
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return errs.Wrap(errs.KindTransient, "beads: flush", err)
	}
	if err := f.Close(); err != nil {
		return errs.Wrap(errs.KindTransient, "beads: close", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return errs.Wrap(errs.KindInternal, "beads: rename into place", err)
	}
	return nil
}

// Fingerprint computes the same content hash internal/ids uses for ID
// generation, letting the sync layer detect whether a record changed
// since last seen without re-deriving field-by-field diffs.
func Fingerprint(r Record) string {
	return ids.ContentHash(r.Title, r.Description, r.CreatedAt, r.ID)
}

// ToIssue maps a beads Record onto the canonical model. ExternalRefs and
// MilestoneID/EpicID are left for the caller (internal/sync), which alone
// has the store lookups needed to resolve them.
func ToIssue(r Record) *model.Issue {
	iss := &model.Issue{
		ID:                 r.ID,
		Title:              r.Title,
		Body:               r.Description,
		Status:             model.Status(r.Status),
		Type:               model.IssueType(r.IssueType),
		Priority:           model.Priority(r.Priority),
		Design:             r.Design,
		AcceptanceCriteria: r.AcceptanceCriteria,
		Notes:              r.Notes,
		Labels:             append([]string{}, r.Labels...),
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
		ClosedAt:           r.ClosedAt,
	}
	if r.Assignee != "" {
		iss.Assignees = []string{r.Assignee}
	}
	if !iss.Status.Valid() {
		iss.Status = model.StatusOpen
	}
	if !iss.Type.Valid() {
		iss.Type = model.DefaultIssueType
	}
	return iss
}

// FromIssue maps the canonical model back onto beads' wire shape, used
// when writing updates back to issues.jsonl.
func FromIssue(iss *model.Issue, dependsOn []string) Record {
	return Record{
		ID:                 iss.ID,
		Title:              iss.Title,
		Description:        iss.Body,
		Design:             iss.Design,
		AcceptanceCriteria: iss.AcceptanceCriteria,
		Notes:              iss.Notes,
		Status:             string(iss.Status),
		IssueType:          string(iss.Type),
		Priority:           int(iss.Priority),
		Assignee:           iss.PrimaryAssignee(),
		Labels:             iss.Labels,
		DependsOn:          dependsOn,
		ExternalRef:        iss.ExternalRefs[model.UpstreamGitHub],
		CreatedAt:          iss.CreatedAt,
		UpdatedAt:          iss.UpdatedAt,
		ClosedAt:           iss.ClosedAt,
		ContentHash:        Fingerprint(FromIssueRecordOnly(iss)),
	}
}

// FromIssueRecordOnly builds just enough of a Record for Fingerprint to
// hash, without resolving dependencies — used internally by FromIssue.
func FromIssueRecordOnly(iss *model.Issue) Record {
	return Record{ID: iss.ID, Title: iss.Title, Description: iss.Body, CreatedAt: iss.CreatedAt}
}

// ClosedFields is the patch-field set permitted on a beads update, matching
// the spec's closed field list for update_issue: any other key is rejected
// rather than silently ignored, so a typo'd field name surfaces immediately.
var ClosedFields = map[string]bool{
	"status": true, "priority": true, "title": true,
	"description": true, "labels": true, "assignee": true,
}

// Patch is a partial update to one beads record, keyed by ClosedFields.
type Patch map[string]any

// Validate rejects any key outside ClosedFields.
func (p Patch) Validate() error {
	for k := range p {
		if !ClosedFields[k] {
			return errs.New(errs.KindValidation, fmt.Sprintf("beads: field %q is not updatable", k))
		}
	}
	return nil
}

// Apply mutates r in place with p's fields, after validating p.
func (p Patch) Apply(r *Record) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if v, ok := p["status"].(string); ok {
		r.Status = v
	}
	if v, ok := p["priority"].(int); ok {
		r.Priority = v
	}
	if v, ok := p["title"].(string); ok {
		r.Title = v
	}
	if v, ok := p["description"].(string); ok {
		r.Description = v
	}
	if v, ok := p["labels"].([]string); ok {
		r.Labels = v
	}
	if v, ok := p["assignee"].(string); ok {
		r.Assignee = v
	}
	return nil
}

// Adapter reads and writes one issues.jsonl file, tracking orphan policy
// for dependency edges pointing at IDs not present in the batch.
type Adapter struct {
	Path    string
	Orphans OrphanHandling
}

// NewAdapter returns an Adapter with the default (allow) orphan policy.
func NewAdapter(path string) *Adapter {
	return &Adapter{Path: path, Orphans: DefaultOrphans}
}

// Load reads every record from the adapter's JSONL file.
func (a *Adapter) Load(ctx context.Context) ([]Record, []string, error) {
	return ReadJSONL(a.Path)
}

// UpdateIssue applies patch to the record with id, rewriting the whole
// file — beads.jsonl is small enough (thousands of lines, not millions)
// that a full rewrite per update keeps the adapter simple and the on-disk
// format always fully materialized, matching the teacher's own
// load-all/write-all importer shape.
func (a *Adapter) UpdateIssue(ctx context.Context, id string, patch Patch) error {
	records, _, err := a.Load(ctx)
	if err != nil {
		return err
	}
	found := false
	for i := range records {
		if records[i].ID == id {
			if err := patch.Apply(&records[i]); err != nil {
				return err
			}
			records[i].UpdatedAt = timeNow()
			records[i].ContentHash = Fingerprint(records[i])
			found = true
			break
		}
	}
	if !found {
		return errs.New(errs.KindNotFound, "beads: issue "+id+" not found")
	}
	return WriteJSONL(a.Path, records)
}

// CloseIssue sets status=closed and closed_at=now on id.
func (a *Adapter) CloseIssue(ctx context.Context, id string) error {
	records, _, err := a.Load(ctx)
	if err != nil {
		return err
	}
	found := false
	for i := range records {
		if records[i].ID == id {
			now := timeNow()
			records[i].Status = string(model.StatusClosed)
			records[i].ClosedAt = &now
			records[i].UpdatedAt = now
			records[i].ContentHash = Fingerprint(records[i])
			found = true
			break
		}
	}
	if !found {
		return errs.New(errs.KindNotFound, "beads: issue "+id+" not found")
	}
	return WriteJSONL(a.Path, records)
}

// ResolveOrphans partitions edges into (resolvable, orphaned) given the set
// of IDs known to exist, applying the adapter's OrphanHandling policy.
// Strict mode returns an error naming the first orphan instead of
// partitioning.
func (a *Adapter) ResolveOrphans(edges []DependsOnEdge, known map[string]bool) (ok []DependsOnEdge, orphaned []DependsOnEdge, err error) {
	for _, e := range edges {
		if known[e.DependsOnID] {
			ok = append(ok, e)
			continue
		}
		switch a.Orphans {
		case OrphanStrict:
			return nil, nil, errs.New(errs.KindValidation, fmt.Sprintf("beads: %s depends on missing %s", e.IssueID, e.DependsOnID))
		case OrphanSkip:
			orphaned = append(orphaned, e)
		default: // OrphanAllow
			ok = append(ok, e)
		}
	}
	return ok, orphaned, nil
}

// DependsOnEdge is one "depends_on" relation read from a Record's
// DependsOn list, prior to being translated into a model.DependencyEdge by
// the caller.
type DependsOnEdge struct {
	IssueID     string
	DependsOnID string
}

func timeNow() time.Time {
	return time.Now().UTC()
}
