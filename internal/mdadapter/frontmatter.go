// Package mdadapter implements the Markdown adapter of spec §4.4 (C5): a
// minimal YAML-subset frontmatter parser/emitter plus a per-issue Markdown
// file format. It deliberately does not pull in a CommonMark/MDX engine —
// that parser is listed as an external collaborator in spec §1 — so the
// frontmatter subset here is hand-rolled, the way the teacher's own JSONL
// and config loaders treat their line formats as data, not prose.
package mdadapter

import (
	"fmt"
	"strconv"
	"strings"
)

// Document is a parsed Markdown file: its frontmatter (as a generic value
// tree) and its body text.
type Document struct {
	Frontmatter map[string]any
	Body        string
}

const delimiter = "---"

// Parse splits content into frontmatter and body. If content has no
// frontmatter delimiter, Frontmatter is empty and Body is the entire
// content (spec §4.4). If title is absent from frontmatter but the body
// begins with a "# Heading", the heading is lifted into Frontmatter["title"]
// and stripped from Body.
func Parse(content string) (Document, error) {
	lines := strings.Split(content, "\n")

	doc := Document{Frontmatter: map[string]any{}}
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != delimiter {
		doc.Body = content
		liftHeading(&doc)
		return doc, nil
	}

	end := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == delimiter {
			end = i
			break
		}
	}
	if end < 0 {
		return doc, fmt.Errorf("mdadapter: unterminated frontmatter block")
	}

	fm, err := parseYAMLSubset(lines[1:end])
	if err != nil {
		return doc, err
	}
	doc.Frontmatter = fm
	doc.Body = strings.Join(lines[end+1:], "\n")
	doc.Body = strings.TrimPrefix(doc.Body, "\n")

	liftHeading(&doc)
	return doc, nil
}

func liftHeading(doc *Document) {
	if _, ok := doc.Frontmatter["title"]; ok {
		return
	}
	trimmed := strings.TrimLeft(doc.Body, "\n")
	if !strings.HasPrefix(trimmed, "# ") {
		return
	}
	nl := strings.IndexByte(trimmed, '\n')
	var heading, rest string
	if nl < 0 {
		heading, rest = trimmed[2:], ""
	} else {
		heading, rest = trimmed[2:nl], trimmed[nl+1:]
	}
	doc.Frontmatter["title"] = strings.TrimSpace(heading)
	doc.Body = strings.TrimLeft(rest, "\n")
}

// Render re-serializes a Document back to Markdown text using the field
// order given (spec §4.4: "deterministic field order"). Keys not present
// in order are appended afterward in Go map-iteration order, which varies
// between runs; EmitIssue in document.go sets only keys listed in
// FieldOrder, so rendering an emitted issue with FieldOrder never reaches
// that case.
func Render(doc Document, order []string) string {
	var sb strings.Builder
	if len(doc.Frontmatter) > 0 {
		sb.WriteString(delimiter + "\n")
		seen := make(map[string]bool, len(order))
		for _, k := range order {
			v, ok := doc.Frontmatter[k]
			if !ok {
				continue
			}
			seen[k] = true
			writeField(&sb, k, v)
		}
		for k, v := range doc.Frontmatter {
			if seen[k] {
				continue
			}
			writeField(&sb, k, v)
		}
		sb.WriteString(delimiter + "\n")
	}
	sb.WriteString(doc.Body)
	return sb.String()
}

func writeField(sb *strings.Builder, key string, v any) {
	switch val := v.(type) {
	case []string:
		if len(val) == 0 {
			fmt.Fprintf(sb, "%s: []\n", key)
			return
		}
		fmt.Fprintf(sb, "%s:\n", key)
		for _, item := range val {
			fmt.Fprintf(sb, "  - %s\n", scalarString(item))
		}
	case map[string]string:
		if len(val) == 0 {
			fmt.Fprintf(sb, "%s: {}\n", key)
			return
		}
		fmt.Fprintf(sb, "%s:\n", key)
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sortStrings(keys)
		for _, k := range keys {
			fmt.Fprintf(sb, "  %s: %s\n", k, scalarString(val[k]))
		}
	case bool:
		fmt.Fprintf(sb, "%s: %t\n", key, val)
	case nil:
		fmt.Fprintf(sb, "%s: null\n", key)
	case int:
		fmt.Fprintf(sb, "%s: %d\n", key, val)
	case float64:
		fmt.Fprintf(sb, "%s: %s\n", key, strconv.FormatFloat(val, 'g', -1, 64))
	default:
		fmt.Fprintf(sb, "%s: %s\n", key, scalarString(fmt.Sprintf("%v", val)))
	}
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// scalarString quotes a string value if it needs it to round-trip safely
// (contains a colon, starts with a special character, or is empty).
func scalarString(s string) string {
	if s == "" {
		return `""`
	}
	needsQuote := strings.ContainsAny(s, ":#[]{}\"'") || strings.TrimSpace(s) != s
	if !needsQuote {
		return s
	}
	return strconv.Quote(s)
}
