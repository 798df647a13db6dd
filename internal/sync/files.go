package sync

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/steveyegge/coordinator/internal/mdadapter"
	"github.com/steveyegge/coordinator/internal/model"
	"github.com/steveyegge/coordinator/internal/pattern"
	"github.com/steveyegge/coordinator/internal/storage"
)

// FileSync runs the beads↔files axis (spec §4.7.1-2): file changes mutate
// canonical state, canonical changes regenerate files. It keeps an
// in-memory cache of each file's last-observed frontmatter so
// ApplyFileChange can tell which fields the file itself changed, separate
// from fields that moved because canonical state changed underneath it.
type FileSync struct {
	Root    string
	Pattern *pattern.Pattern
	last    map[string]map[string]any
}

// NewFileSync builds a FileSync rooted at root using pat (compiled once by
// the caller, per spec §4.3).
func NewFileSync(root string, pat *pattern.Pattern) *FileSync {
	return &FileSync{Root: root, Pattern: pat, last: map[string]map[string]any{}}
}

// ApplyFileChange reads path, parses it, computes the change set against
// the cached last-known frontmatter, and upserts the merged result into
// store. A file with no cached entry is treated as newly tracked: its
// entire frontmatter is the change set (spec §4.7.1: "a missing beads_id
// means the file is not yet tracked"). It then adds the blocks edges the
// file's depends_on/blocks lists declare (syncDependencyEdges) and returns
// the resulting issue plus those neighbor ids.
func (fs *FileSync) ApplyFileChange(ctx context.Context, store storage.Store, path string) (*model.Issue, []string, []string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, nil, err
	}
	doc, err := mdadapter.Parse(string(raw))
	if err != nil {
		return nil, nil, nil, err
	}
	incoming, dependsOn, blocks, err := mdadapter.ParseIssue(doc)
	if err != nil {
		return nil, nil, nil, err
	}

	changed := fs.changeSet(path, doc.Frontmatter)
	fs.last[path] = doc.Frontmatter

	var existing *model.Issue
	if incoming.ID != "" {
		existing, err = store.Get(ctx, incoming.ID)
		if err != nil && err != storage.ErrNotFound {
			return nil, nil, nil, err
		}
	}

	merged := mergeChangedFields(existing, incoming, changed)
	merged.UpdatedAt = nowUTC()

	guard := storage.Guard{}
	if existing != nil {
		guard.ExpectedUpdatedAt = existing.UpdatedAt
	}
	if _, err := store.Upsert(ctx, merged, guard); err != nil {
		return nil, nil, nil, err
	}

	if err := syncDependencyEdges(ctx, store, merged.ID, dependsOn, blocks); err != nil {
		return nil, nil, nil, err
	}
	return merged, dependsOn, blocks, nil
}

// syncDependencyEdges adds a blocks edge dep->id for every id the file's
// depends_on lists, and id->b for every b it blocks (spec §9's Open
// Question resolution: depends_on/blocks declared in a file become DAG
// edges regardless of whether the file ever stored a literal "blocked"
// status, since status itself is always derived from the DAG per I4). An
// edge whose other endpoint hasn't synced into the canonical store yet
// (storage.ErrMissing) is left for a later pass once that issue arrives;
// a self-loop or would-be cycle is dropped rather than failing the whole
// file's ingest.
func syncDependencyEdges(ctx context.Context, store storage.Store, id string, dependsOn, blocks []string) error {
	for _, dep := range dependsOn {
		if err := store.AddEdge(ctx, dep, id, model.KindBlocks); err != nil &&
			err != storage.ErrMissing && err != storage.ErrSelfLoop && err != storage.ErrCycle {
			return err
		}
	}
	for _, b := range blocks {
		if err := store.AddEdge(ctx, id, b, model.KindBlocks); err != nil &&
			err != storage.ErrMissing && err != storage.ErrSelfLoop && err != storage.ErrCycle {
			return err
		}
	}
	return nil
}

// changeSet returns the set of frontmatter keys present in newFM that
// differ from the cached value for path (spec §4.7.2's "intersection of
// (fields in the new frontmatter) with (fields differing from cached
// last-known state)"). An uncached path reports every key in newFM.
func (fs *FileSync) changeSet(path string, newFM map[string]any) map[string]bool {
	cached, ok := fs.last[path]
	out := map[string]bool{}
	for k, v := range newFM {
		if !ok {
			out[k] = true
			continue
		}
		old, present := cached[k]
		if !present || !equalScalarOrSlice(old, v) {
			out[k] = true
		}
	}
	return out
}

func equalScalarOrSlice(a, b any) bool {
	as, aok := a.([]string)
	bs, bok := b.([]string)
	if aok && bok {
		if len(as) != len(bs) {
			return false
		}
		for i := range as {
			if as[i] != bs[i] {
				return false
			}
		}
		return true
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

// mergeChangedFields starts from existing (or a zero Issue if nil) and
// overlays only the frontmatter fields changed reports true for, taken from
// incoming, so an unrelated field present in the file (but unchanged) can't
// clobber a newer canonical value for that field. The body is not part of
// the change set and is always taken from incoming, and incoming's external
// refs are merged over existing's.
func mergeChangedFields(existing, incoming *model.Issue, changed map[string]bool) *model.Issue {
	merged := &model.Issue{ExternalRefs: map[model.Upstream]string{}}
	if existing != nil {
		*merged = *existing
		merged.ExternalRefs = cloneRefs(existing.ExternalRefs)
	}
	merged.ID = incoming.ID
	if changed["title"] {
		merged.Title = incoming.Title
	}
	if changed["status"] {
		merged.Status = incoming.Status
	}
	if changed["priority"] {
		merged.Priority = incoming.Priority
	}
	if changed["type"] {
		merged.Type = incoming.Type
	}
	if changed["labels"] {
		merged.Labels = incoming.Labels
	}
	if changed["assignees"] {
		merged.Assignees = incoming.Assignees
	}
	if changed["milestone"] {
		merged.MilestoneID = incoming.MilestoneID
	}
	merged.Body = incoming.Body
	for k, v := range incoming.ExternalRefs {
		merged.ExternalRefs[k] = v
	}
	if merged.CreatedAt.IsZero() {
		merged.CreatedAt = nowUTC()
	}
	return merged
}

func cloneRefs(refs map[model.Upstream]string) map[model.Upstream]string {
	out := make(map[model.Upstream]string, len(refs))
	for k, v := range refs {
		out[k] = v
	}
	return out
}

// RegenerateFiles writes one Markdown file per issue in store under
// fs.Root, named per fs.Pattern, with dependsOn/blocks neighbor ids
// resolved from edges (spec §4.7.1: "canonical changes regenerate files
// via C4+C5"). It returns the paths written.
func RegenerateFiles(ctx context.Context, store storage.Store, fs *FileSync) ([]string, error) {
	issues, edges, err := store.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	dependsOn, blocks := neighborsByID(edges)

	if err := os.MkdirAll(fs.Root, 0o750); err != nil {
		return nil, err
	}

	var written []string
	for _, iss := range issues {
		doc := mdadapter.EmitIssue(iss, dependsOn[iss.ID], blocks[iss.ID])
		content := mdadapter.Render(doc, mdadapter.FieldOrder)
		githubNumber := githubIssueNumber(iss)
		filename := pattern.Emit(fs.Pattern, iss, githubNumber)
		path := filepath.Join(fs.Root, filename)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return written, err
		}
		fs.last[path] = doc.Frontmatter
		written = append(written, path)
	}
	sort.Strings(written)
	return written, nil
}

// githubIssueNumber extracts the numeric suffix of a "github-N" external
// ref for the [number] pattern variable, or 0 if the issue has none yet.
func githubIssueNumber(iss *model.Issue) int {
	ref, ok := iss.ExternalRefs[model.UpstreamGitHub]
	if !ok {
		return 0
	}
	idx := strings.LastIndex(ref, "-")
	if idx < 0 {
		return 0
	}
	n := 0
	for _, c := range ref[idx+1:] {
		if c < '0' || c > '9' {
			return 0
		}
		n = n*10 + int(c-'0')
	}
	return n
}

// neighborsByID partitions blocks edges into each issue's depends_on
// (edges where it is the "to" side: things blocking it) and blocks (edges
// where it is the "from" side: things it blocks) neighbor id lists.
func neighborsByID(edges []model.DependencyEdge) (dependsOn, blocks map[string][]string) {
	dependsOn = map[string][]string{}
	blocks = map[string][]string{}
	for _, e := range edges {
		if e.Kind != model.KindBlocks {
			continue
		}
		dependsOn[e.To] = append(dependsOn[e.To], e.From)
		blocks[e.From] = append(blocks[e.From], e.To)
	}
	return dependsOn, blocks
}

// ListMarkdownFiles returns every file under root matching the compiled
// pattern's extension convention (".md", after the compile-time .mdx
// normalization), sorted for deterministic scan order.
func ListMarkdownFiles(root string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.HasSuffix(path, ".md") {
			out = append(out, path)
		}
		return nil
	})
	sort.Strings(out)
	return out, err
}
