// Package region locates the list entries that belong to a top-level YAML key
// in raw item text, without parsing the whole document.
//
// Item files are written with their list entries at column 0:
//
//	references:
//	- path: src/main.c
//	  type: file
//	  keyword: init
//	text: |
//	  ...
//
// Only documents where the key appears exactly once are processed.
package region

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Span is a byte range [Begin, End) of the source text.
type Span struct {
	Begin int    `json:"begin"`
	End   int    `json:"end"`
	Text  string `json:"text"`
}

// Contains reports whether point falls inside the span. The end is inclusive so
// that a cursor placed right after the last character still hits the span.
func (s Span) Contains(point int) bool {
	return point >= s.Begin && point <= s.End
}

// Region is a top-level key together with its list entries.
type Region struct {
	Key     Span   `json:"key"`
	Entries []Span `json:"entries"`
}

type line struct {
	begin int
	text  string // without the line terminator
}

// Extract returns the list-entry spans that follow key. ok is false when the
// key line is missing or appears more than once.
func Extract(text, key string) ([]Span, bool) {
	r, ok := Find(text, key)
	if !ok {
		return nil, false
	}
	return r.Entries, true
}

// Find locates key and its list entries. Entries is never nil when ok is true.
func Find(text, key string) (*Region, bool) {
	lines := splitLines(text)
	prefix := key + ":"

	keyIdx := -1
	for i, l := range lines {
		if strings.HasPrefix(l.text, prefix) {
			if keyIdx >= 0 {
				return nil, false
			}
			keyIdx = i
		}
	}
	if keyIdx < 0 {
		return nil, false
	}

	stop := len(lines)
	for i := keyIdx + 1; i < len(lines); i++ {
		if startsWithWord(lines[i].text) {
			stop = i
			break
		}
	}

	kl := lines[keyIdx]
	out := &Region{
		Key:     Span{Begin: kl.begin, End: kl.begin + len(kl.text), Text: kl.text},
		Entries: []Span{},
	}

	for i := keyIdx + 1; i < stop; i++ {
		if !isEntryStart(lines[i].text) {
			continue
		}
		last := i
		for j := i + 1; j < stop; j++ {
			if strings.HasPrefix(lines[j].text, "-") {
				break
			}
			if strings.TrimSpace(lines[j].text) != "" {
				last = j
			}
		}
		begin := lines[i].begin
		end := lines[last].begin + len(lines[last].text)
		out.Entries = append(out.Entries, Span{Begin: begin, End: end, Text: text[begin:end]})
		i = last
	}
	return out, true
}

func isEntryStart(s string) bool {
	return s == "-" || strings.HasPrefix(s, "- ")
}

func startsWithWord(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return false
	}
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func splitLines(text string) []line {
	var out []line
	begin := 0
	for begin <= len(text) {
		idx := strings.IndexByte(text[begin:], '\n')
		if idx < 0 {
			if begin < len(text) {
				out = append(out, line{begin: begin, text: strings.TrimSuffix(text[begin:], "\r")})
			}
			break
		}
		out = append(out, line{begin: begin, text: strings.TrimSuffix(text[begin:begin+idx], "\r")})
		begin += idx + 1
	}
	return out
}
