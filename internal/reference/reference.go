// Package reference resolves the entries of an item's references list to
// concrete files and keyword positions inside the project.
package reference

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/doorlink/internal/models"
	"github.com/starford/doorlink/internal/region"
)

// TypeFile is the only reference type items currently declare.
const TypeFile = "file"

// Reference is one resolved entry of an item's references list.
type Reference struct {
	Span    region.Span `json:"span"`
	Path    string      `json:"path,omitempty"`
	Keyword string      `json:"keyword,omitempty"`
	File    string      `json:"file,omitempty"`
	Point   int         `json:"point"`
	Row     int         `json:"row,omitempty"`
	Column  int         `json:"column,omitempty"`
}

// Valid reports whether the reference points at an existing file and, when a
// keyword was requested, the keyword was found in it.
func (r *Reference) Valid() bool {
	if r.Path == "" || r.File == "" {
		return false
	}
	if r.Keyword != "" && r.Row == 0 {
		return false
	}
	return true
}

// Href returns the goto target for the reference: the resolved file, with
// ":row:column" appended when a keyword position is known. It falls back to
// the declared path for unresolved references.
func (r *Reference) Href() string {
	target := r.File
	if target == "" {
		target = r.Path
	}
	if target == "" || r.Row == 0 {
		return target
	}
	return target + ":" + strconv.Itoa(r.Row) + ":" + strconv.Itoa(r.Column)
}

// Label is the picker text for the reference.
func (r *Reference) Label() string {
	if r.Keyword == "" {
		return r.Path
	}
	return r.Path + ": " + r.Keyword
}

// Result splits resolved references by validity, preserving source order.
type Result struct {
	Valid   []Reference `json:"valid"`
	Invalid []Reference `json:"invalid"`
}

// All returns valid and invalid references in one slice.
func (r *Result) All() []Reference {
	out := make([]Reference, 0, len(r.Valid)+len(r.Invalid))
	out = append(out, r.Valid...)
	return append(out, r.Invalid...)
}

// Parse decodes a single raw list entry such as
//
//	- path: src/main.c
//	  type: file
//	  keyword: init
//
// ok is false when the text is not a YAML list whose first element is a mapping.
func Parse(raw string) (entry models.ReferenceEntry, ok bool) {
	var list []map[string]any
	if err := yaml.Unmarshal([]byte(raw), &list); err != nil || len(list) == 0 || list[0] == nil {
		return models.ReferenceEntry{}, false
	}
	m := list[0]
	entry.Path = scalar(m["path"])
	entry.Type = scalar(m["type"])
	entry.Keyword = scalar(m["keyword"])
	return entry, true
}

func scalar(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool, int, int64, float64:
		return fmt.Sprint(t)
	default:
		return ""
	}
}

// NewEntry builds the reference an item should carry for file, relative to
// root. Only the first line of selection is used as the keyword.
func NewEntry(root, file, selection string) (models.ReferenceEntry, error) {
	rel, err := filepath.Rel(root, file)
	if err != nil {
		return models.ReferenceEntry{}, fmt.Errorf("reference: relative path: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return models.ReferenceEntry{}, fmt.Errorf("reference: %s is outside %s", file, root)
	}
	keyword, _, _ := strings.Cut(selection, "\n")
	return models.ReferenceEntry{
		Path:    filepath.ToSlash(rel),
		Type:    TypeFile,
		Keyword: keyword,
	}, nil
}

// Format renders entry as a list element ready to paste under references:.
func Format(entry models.ReferenceEntry) string {
	typ := entry.Type
	if typ == "" {
		typ = TypeFile
	}
	lines := []string{
		"- path: " + quote(entry.Path),
		"  type: " + typ,
	}
	if entry.Keyword != "" {
		lines = append(lines, "  keyword: "+quote(entry.Keyword))
	}
	return strings.Join(lines, "\n")
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
