// Package keep builds the set of identifiers that must never be renamed.
package keep

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sort"
	"strings"
)

var keywords = func() map[string]struct{} {
	m := make(map[string]struct{}, len(cKeywords)+len(cppKeywords))
	for _, w := range cKeywords {
		m[w] = struct{}{}
	}
	for _, w := range cppKeywords {
		m[w] = struct{}{}
	}
	return m
}()

// IsKeyword reports whether s is a C or C++ reserved word.
func IsKeyword(s string) bool {
	_, ok := keywords[s]
	return ok
}

// Set is a read-only set of protected identifiers. Build one with a Builder.
type Set struct {
	words map[string]struct{}
	user  int
}

// Contains reports whether s is protected.
func (s *Set) Contains(name string) bool {
	if s == nil {
		return false
	}
	_, ok := s.words[name]
	return ok
}

// Len returns the number of protected identifiers.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.words)
}

// UserCount returns how many entries came from keep-lists and not from the
// built-in sets.
func (s *Set) UserCount() int {
	if s == nil {
		return 0
	}
	return s.user
}

// Sorted returns the protected identifiers in lexical order.
func (s *Set) Sorted() []string {
	if s == nil {
		return nil
	}
	out := make([]string, 0, len(s.words))
	for w := range s.words {
		out = append(out, w)
	}
	sort.Strings(out)
	return out
}

// Builder accumulates protected identifiers.
type Builder struct {
	words   map[string]struct{}
	builtin map[string]struct{}
}

// NewBuilder returns a builder seeded with the keywords and, if withStd is
// set, the built-in standard-library names.
func NewBuilder(withStd bool) *Builder {
	b := &Builder{words: make(map[string]struct{}), builtin: make(map[string]struct{})}
	for w := range keywords {
		b.words[w] = struct{}{}
		b.builtin[w] = struct{}{}
	}
	if withStd {
		for _, w := range stdNames {
			b.words[w] = struct{}{}
			b.builtin[w] = struct{}{}
		}
	}
	return b
}

// Add protects the given identifiers.
func (b *Builder) Add(names ...string) *Builder {
	for _, n := range names {
		b.words[n] = struct{}{}
	}
	return b
}

// Read adds every entry of a keep-list read from r. One identifier per line;
// blank lines and lines starting with '#' are ignored.
func (b *Builder) Read(r io.Reader) error {
	names, err := Parse(r)
	if err != nil {
		return err
	}
	b.Add(names...)
	return nil
}

// ReadFile adds the entries of the keep-list at path. A missing file is
// reported with an error wrapping fs.ErrNotExist so callers can downgrade it
// to a warning.
func (b *Builder) ReadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("keep-list %s: %w", path, fs.ErrNotExist)
		}
		return fmt.Errorf("open keep-list: %w", err)
	}
	defer f.Close()
	if err := b.Read(f); err != nil {
		return fmt.Errorf("read keep-list %s: %w", path, err)
	}
	return nil
}

// Build freezes the builder into a Set.
func (b *Builder) Build() *Set {
	words := make(map[string]struct{}, len(b.words))
	user := 0
	for w := range b.words {
		words[w] = struct{}{}
		if _, ok := b.builtin[w]; !ok {
			user++
		}
	}
	return &Set{words: words, user: user}
}

// Default returns the keywords plus the built-in standard-library names.
func Default() *Set {
	return NewBuilder(true).Build()
}

// Parse reads keep-list entries from r.
func Parse(r io.Reader) ([]string, error) {
	var names []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		names = append(names, line)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return names, nil
}
