// Package pattern implements the file-pattern engine of spec §4.3 (C4): a
// declarative filename template (default "[id]-[title].mdx") over a closed
// variable set, compiled once and usable bidirectionally to emit a filename
// from an Issue or to extract fields back out of one. It touches no
// filesystem — purely string transforms, grounded in the teacher's own
// filename conventions ("bd-xxxxxx-title.md") generalized into a compiler.
package pattern

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/steveyegge/coordinator/internal/ids"
	"github.com/steveyegge/coordinator/internal/model"
)

// Var is one of the closed set of pattern variables.
type Var string

const (
	VarID       Var = "id"
	VarTitle    Var = "title"
	VarType     Var = "type"
	VarState    Var = "state"
	VarPriority Var = "priority"
	VarNumber   Var = "number"
	VarPrefix   Var = "prefix"
)

func (v Var) valid() bool {
	switch v {
	case VarID, VarTitle, VarType, VarState, VarPriority, VarNumber, VarPrefix:
		return true
	default:
		return false
	}
}

// segment is one token of a compiled pattern: either a literal separator or
// a variable reference.
type segment struct {
	literal string
	isVar   bool
	v       Var
}

// Pattern is a compiled filename template.
type Pattern struct {
	segments []segment
	raw      string
}

var varToken = regexp.MustCompile(`\[([a-zA-Z]+)\]`)

// Default is the pattern used when no override is configured.
const Default = "[id]-[title].mdx"

// Compile parses a pattern string, failing at compile time (per spec §4.3)
// if it references a variable outside the closed set.
func Compile(p string) (*Pattern, error) {
	var segs []segment
	last := 0
	for _, loc := range varToken.FindAllStringSubmatchIndex(p, -1) {
		if loc[0] > last {
			segs = append(segs, segment{literal: p[last:loc[0]]})
		}
		name := Var(p[loc[2]:loc[3]])
		if !name.valid() {
			return nil, fmt.Errorf("pattern: unknown variable %q", name)
		}
		segs = append(segs, segment{isVar: true, v: name})
		last = loc[1]
	}
	if last < len(p) {
		segs = append(segs, segment{literal: p[last:]})
	}
	// Normalize a trailing ".mdx" literal to ".md" at compile time so Emit
	// and Parse agree on the on-disk extension (spec §4.3: "the emitter
	// normalizes .mdx -> .md on disk").
	if n := len(segs); n > 0 && !segs[n-1].isVar && strings.HasSuffix(segs[n-1].literal, ".mdx") {
		segs[n-1].literal = strings.TrimSuffix(segs[n-1].literal, ".mdx") + ".md"
	}
	return &Pattern{segments: segs, raw: p}, nil
}

// String returns the original pattern text.
func (p *Pattern) String() string { return p.raw }

// Emit renders a filename for iss, with number being the external GitHub
// issue number (0 if none). The emitter always normalizes a trailing
// ".mdx" to ".md" on disk, per spec §4.3.
func Emit(p *Pattern, iss *model.Issue, number int) string {
	var sb strings.Builder
	for _, s := range p.segments {
		if !s.isVar {
			sb.WriteString(s.literal)
			continue
		}
		sb.WriteString(emitVar(s.v, iss, number))
	}
	return sb.String()
}

func emitVar(v Var, iss *model.Issue, number int) string {
	switch v {
	case VarID:
		return iss.ID
	case VarTitle:
		return ids.Slug(iss.Title)
	case VarType:
		return string(iss.Type)
	case VarState:
		return string(iss.Status)
	case VarPriority:
		return fmt.Sprintf("p%d", int(iss.Priority))
	case VarNumber:
		return strconv.Itoa(number)
	case VarPrefix:
		if idx := strings.Index(iss.ID, "-"); idx >= 0 {
			return iss.ID[:idx]
		}
		return iss.ID
	default:
		return ""
	}
}

// Extracted holds the best-effort fields recovered from a filename by Parse.
// Title is lossy (hyphens become spaces); ID and Type round-trip exactly
// (spec P5).
type Extracted struct {
	ID       string
	Title    string
	Type     string
	State    string
	Priority int
	Number   int
	HasType  bool
	HasState bool
}

// Parse extracts fields from filename according to p. Extraction is
// non-greedy between separators; when a separator pattern is ambiguous the
// first match is returned (spec §4.3). An id has the "prefix-hash" form, so
// the separator after [id] is searched for only past the id's own first
// hyphen. The "prefix" variable is never populated on parse — it's
// redundant with "id".
func Parse(p *Pattern, filename string) (Extracted, error) {
	name := filename

	var out Extracted
	pos := 0
	for i, s := range p.segments {
		if !s.isVar {
			idx := strings.Index(name[pos:], s.literal)
			if idx < 0 {
				return out, fmt.Errorf("pattern: literal %q not found in %q", s.literal, filename)
			}
			pos += idx + len(s.literal)
			continue
		}

		// Determine the stop marker: the literal of the next segment (if any).
		end := len(name)
		from := pos
		if s.v == VarID {
			if dash := strings.Index(name[pos:], "-"); dash >= 0 {
				from = pos + dash + 1
			}
		}
		if i+1 < len(p.segments) && !p.segments[i+1].isVar && p.segments[i+1].literal != "" {
			if idx := strings.Index(name[from:], p.segments[i+1].literal); idx >= 0 {
				end = from + idx
			}
		}
		value := name[pos:end]
		pos = end

		if err := assignVar(&out, s.v, value); err != nil {
			return out, err
		}
	}
	return out, nil
}

func assignVar(out *Extracted, v Var, value string) error {
	switch v {
	case VarID:
		out.ID = value
	case VarTitle:
		out.Title = ids.Deslug(value)
	case VarType:
		out.Type = value
		out.HasType = true
	case VarState:
		out.State = value
		out.HasState = true
	case VarPriority:
		n, err := strconv.Atoi(strings.TrimPrefix(value, "p"))
		if err != nil {
			return fmt.Errorf("pattern: invalid priority segment %q: %w", value, err)
		}
		out.Priority = n
	case VarNumber:
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("pattern: invalid number segment %q: %w", value, err)
		}
		out.Number = n
	case VarPrefix:
		// ignored on parse
	}
	return nil
}
