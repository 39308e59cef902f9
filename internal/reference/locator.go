package reference

import (
	"bufio"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/starford/doorlink/internal/region"
)

// Locator resolves references against a project root. Declared paths are
// searched for rather than joined, because items may declare them relative to
// any subtree of the project.
//
// The project file listing is built lazily and kept until Invalidate is
// called; file contents are always read fresh.
type Locator struct {
	root   string
	ignore map[string]struct{}
	logger *slog.Logger

	mu    sync.Mutex
	files []string // root-relative, slash separated, in walk order
	built bool
}

// NewLocator creates a Locator for root. Directories named in ignore are not
// searched.
func NewLocator(root string, logger *slog.Logger, ignore ...string) *Locator {
	skip := make(map[string]struct{}, len(ignore))
	for _, name := range ignore {
		skip[name] = struct{}{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Locator{root: root, ignore: skip, logger: logger}
}

// Root returns the project root the locator searches.
func (l *Locator) Root() string {
	return l.root
}

// Invalidate drops the cached file listing. The next lookup walks the tree again.
func (l *Locator) Invalidate() {
	l.mu.Lock()
	l.files = nil
	l.built = false
	l.mu.Unlock()
}

// ResolveAll resolves every span and splits the results by validity.
// Each span is resolved independently; a malformed entry does not affect its
// siblings.
func (l *Locator) ResolveAll(spans []region.Span) Result {
	res := Result{Valid: []Reference{}, Invalid: []Reference{}}
	for _, s := range spans {
		ref := l.Resolve(s)
		if ref.Valid() {
			res.Valid = append(res.Valid, ref)
		} else {
			res.Invalid = append(res.Invalid, ref)
		}
	}
	return res
}

// Resolve parses span as a reference entry and locates its file and keyword.
// It never fails: problems leave the corresponding fields unresolved.
func (l *Locator) Resolve(span region.Span) Reference {
	ref := Reference{Span: span}
	entry, ok := Parse(span.Text)
	if !ok {
		l.logger.Debug("reference: could not parse entry", slog.String("text", span.Text))
		return ref
	}
	ref.Path = entry.Path
	ref.Keyword = entry.Keyword
	if ref.Path == "" {
		return ref
	}

	file, ok := l.FindFile(ref.Path)
	if !ok {
		l.logger.Debug("reference: file not found", slog.String("path", ref.Path))
		return ref
	}
	ref.File = file
	if ref.Keyword == "" {
		return ref
	}

	pos, err := ScanKeyword(file, ref.Keyword)
	if err != nil {
		l.logger.Debug("reference: scan failed", slog.String("file", file), slog.String("error", err.Error()))
		return ref
	}
	if pos == nil {
		l.logger.Debug("reference: keyword not found",
			slog.String("file", file), slog.String("keyword", ref.Keyword))
		return ref
	}
	ref.Point, ref.Row, ref.Column = pos.Point, pos.Row, pos.Column
	return ref
}

// FindFile returns the absolute path of the first project file, in walk order,
// whose trailing path segments match pattern. Each pattern segment may use
// path.Match wildcards.
func (l *Locator) FindFile(pattern string) (string, bool) {
	if filepath.IsAbs(pattern) {
		if isFile(pattern) {
			return pattern, true
		}
		return "", false
	}
	want := strings.Split(path.Clean(filepath.ToSlash(pattern)), "/")

	files, err := l.listing()
	if err != nil {
		l.logger.Warn("reference: walk failed", slog.String("root", l.root), slog.String("error", err.Error()))
		return "", false
	}
	for _, rel := range files {
		if matchTail(strings.Split(rel, "/"), want) {
			return filepath.Join(l.root, filepath.FromSlash(rel)), true
		}
	}
	return "", false
}

func matchTail(have, want []string) bool {
	if len(have) < len(want) {
		return false
	}
	offset := len(have) - len(want)
	for i, w := range want {
		ok, err := path.Match(w, have[offset+i])
		if err != nil || !ok {
			return false
		}
	}
	return true
}

func (l *Locator) listing() ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.built {
		return l.files, nil
	}

	var files []string
	err := filepath.WalkDir(l.root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if p == l.root {
				return walkErr
			}
			return nil
		}
		if d.IsDir() {
			if _, skip := l.ignore[d.Name()]; skip && p != l.root {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() && !isFile(p) {
			return nil
		}
		rel, err := filepath.Rel(l.root, p)
		if err != nil {
			return nil
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	l.files, l.built = files, true
	return files, nil
}

func isFile(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}

// Position is where a keyword was found inside a file.
type Position struct {
	Point  int // byte offset of the start of the line
	Row    int // 1-based line number
	Column int // 1-based character column of the first match
}

// ScanKeyword returns the position of the first occurrence of keyword in file,
// or nil when it does not occur. keyword is matched literally.
func ScanKeyword(file, keyword string) (*Position, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	point, row := 0, 1
	for {
		line, err := r.ReadString('\n')
		if idx := strings.Index(line, keyword); idx >= 0 && line != "" {
			return &Position{
				Point:  point,
				Row:    row,
				Column: utf8.RuneCountInString(line[:idx]) + 1,
			}, nil
		}
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		point += len(line)
		row++
	}
}
