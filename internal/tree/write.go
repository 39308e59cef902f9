package tree

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/starford/doorlink/internal/apperr"
	"github.com/starford/doorlink/internal/region"
)

// AppendEntry adds a column-0 list entry under the top-level key of an item
// file and returns the edited text. The rest of the file is left byte for
// byte untouched so that hand-written formatting survives.
//
// An empty "key: []" is expanded into a block list. A missing key is inserted
// in sorted position among the other top-level keys.
func AppendEntry(text, key, entry string) (string, error) {
	entry = strings.TrimRight(entry, "\n")
	r, ok := region.Find(text, key)
	if !ok {
		if countKeyLines(text, key) > 1 {
			return "", fmt.Errorf("tree: key %q appears more than once: %w", key, apperr.ErrConflict)
		}
		return insertKey(text, key, entry), nil
	}

	if n := len(r.Entries); n > 0 {
		end := r.Entries[n-1].End
		return text[:end] + "\n" + entry + text[end:], nil
	}

	inline := strings.TrimSpace(strings.TrimPrefix(r.Key.Text, key+":"))
	switch inline {
	case "", "[]", "null", "~":
	default:
		return "", fmt.Errorf("tree: %s is not a block list: %w", key, apperr.ErrInvalid)
	}
	return text[:r.Key.Begin] + key + ":\n" + entry + text[r.Key.End:], nil
}

func insertKey(text, key, entry string) string {
	block := key + ":\n" + entry + "\n"
	pos := 0
	for pos < len(text) {
		lineEnd := strings.IndexByte(text[pos:], '\n')
		var l string
		if lineEnd < 0 {
			l = text[pos:]
		} else {
			l = text[pos : pos+lineEnd]
		}
		if name, ok := topLevelKey(l); ok && name > key {
			return text[:pos] + block + text[pos:]
		}
		if lineEnd < 0 {
			break
		}
		pos += lineEnd + 1
	}
	if text != "" && !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	return text + block
}

func topLevelKey(l string) (string, bool) {
	r, _ := utf8.DecodeRuneInString(l)
	if r == utf8.RuneError || !(r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)) {
		return "", false
	}
	name, _, found := strings.Cut(l, ":")
	return name, found
}

func countKeyLines(text, key string) int {
	n := 0
	for _, l := range strings.Split(text, "\n") {
		if strings.HasPrefix(l, key+":") {
			n++
		}
	}
	return n
}

// LinkEntry formats an unstamped link list entry.
func LinkEntry(uid string) string {
	return "- " + uid + ": null"
}
