package analysis

import (
	"github.com/starford/doorlink/internal/models"
	"github.com/starford/doorlink/internal/reference"
)

// Target is a labelled jump destination.
type Target struct {
	Label string `json:"label"`
	Href  string `json:"href"`
}

// HoverSection groups the targets of one relation kind.
type HoverSection struct {
	Title   string   `json:"title"`
	Targets []Target `json:"targets"`
}

// Hover is the popup content for the links key. An empty Sections slice
// means the item has no links at all.
type Hover struct {
	Sections []HoverSection `json:"sections"`
}

// ReferenceAt returns the reference whose entry contains point.
func (s *Snapshot) ReferenceAt(point int) (*reference.Reference, bool) {
	for _, ref := range s.References.All() {
		if ref.Span.Contains(point) {
			return &ref, true
		}
	}
	return nil, false
}

// ReferenceTargets lists the resolved references for a picker.
func (s *Snapshot) ReferenceTargets() []Target {
	out := make([]Target, 0, len(s.References.Valid))
	for _, ref := range s.References.Valid {
		out = append(out, Target{Label: ref.Label(), Href: ref.Href()})
	}
	return out
}

// GotoTargets lists every related item as "Parent|Child|Other: UID: text".
func (s *Snapshot) GotoTargets() []Target {
	var out []Target
	for _, g := range s.groups() {
		for _, it := range g.items {
			out = append(out, Target{Label: g.kind + ": " + it.UID + ": " + it.Text, Href: it.Path})
		}
	}
	return out
}

// LinksHover returns the popup for point. ok is false when point is not on
// the links key.
func (s *Snapshot) LinksHover(point int) (*Hover, bool) {
	if s.LinksKey == nil || !s.LinksKey.Contains(point) {
		return nil, false
	}
	h := &Hover{Sections: []HoverSection{}}
	for _, g := range s.groups() {
		if len(g.items) == 0 {
			continue
		}
		sec := HoverSection{Title: g.title}
		for _, it := range g.items {
			sec.Targets = append(sec.Targets, Target{Label: it.UID + ": " + it.Text, Href: it.Path})
		}
		h.Sections = append(h.Sections, sec)
	}
	return h, true
}

type group struct {
	kind  string
	title string
	items []models.ItemSummary
}

// groups lists each related item once. Children holds every referrer, so the
// ones reported under Other are left out of the Child group.
func (s *Snapshot) groups() []group {
	other := make(map[string]bool, len(s.Linked))
	for _, it := range s.Linked {
		other[it.UID] = true
	}
	children := make([]models.ItemSummary, 0, len(s.Children))
	for _, it := range s.Children {
		if !other[it.UID] {
			children = append(children, it)
		}
	}
	return []group{
		{kind: "Parent", title: "Parent(s)", items: s.Parents},
		{kind: "Child", title: "Child(ren)", items: children},
		{kind: "Other", title: "Other", items: s.Linked},
	}
}
