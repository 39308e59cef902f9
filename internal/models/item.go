// Package models defines the domain types for doorlink.
package models

import (
	"strings"
	"time"
)

// Item is a single traceable requirement loaded from the tree.
type Item struct {
	UID        string           `json:"uid"`
	Prefix     string           `json:"prefix"`
	Path       string           `json:"path"`
	Header     string           `json:"header,omitempty"`
	Body       string           `json:"body,omitempty"`
	Links      []string         `json:"links"`
	ChildLinks []string         `json:"child_links"`
	References []ReferenceEntry `json:"references,omitempty"`
	Normative  bool             `json:"normative"`
	Active     bool             `json:"active"`
	Checksum   string           `json:"checksum,omitempty"`
}

// Text returns the display text: the header, or the first line of the body.
func (i *Item) Text() string {
	if i.Header != "" {
		return i.Header
	}
	first, _, _ := strings.Cut(i.Body, "\n")
	return first
}

// Summary returns the wire representation of the item.
func (i *Item) Summary() ItemSummary {
	return ItemSummary{UID: i.UID, Path: i.Path, Text: i.Text()}
}

// HasLink reports whether uid is one of the item's outbound links.
func (i *Item) HasLink(uid string) bool {
	for _, l := range i.Links {
		if l == uid {
			return true
		}
	}
	return false
}

// Document is a named collection of items, optionally nested under a parent.
type Document struct {
	Prefix string `json:"prefix"`
	Path   string `json:"path"`
	Parent string `json:"parent,omitempty"`
	Sep    string `json:"sep,omitempty"`
	Digits int    `json:"digits,omitempty"`
}

// Summary returns the wire representation of the document.
func (d *Document) Summary() DocumentSummary {
	return DocumentSummary{Prefix: d.Prefix, Path: d.Path, Parent: d.Parent}
}

// ItemSummary is what list and graph queries return for an item.
type ItemSummary struct {
	UID  string `json:"uid"`
	Path string `json:"path"`
	Text string `json:"text"`
}

// DocumentSummary is what the documents query returns.
type DocumentSummary struct {
	Prefix string `json:"prefix"`
	Path   string `json:"path"`
	Parent string `json:"parent,omitempty"`
}

// ReferenceEntry is one element of an item's references list as stored on disk.
type ReferenceEntry struct {
	Path    string `json:"path" yaml:"path"`
	Type    string `json:"type" yaml:"type"`
	Keyword string `json:"keyword,omitempty" yaml:"keyword,omitempty"`
}

// FileMetadata is a lightweight representation returned by storage list operations.
type FileMetadata struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}
