// Package mapping reads and writes the mapping artifact: one
// "original -> synthetic" pair per line, in insertion order.
package mapping

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/panbanda/veil/pkg/rename"
)

const arrow = " -> "

// ErrPersist is the target for errors.Is when the mapping cannot be stored.
var ErrPersist = errors.New("mapping not persisted")

// PersistError reports a failure to write the mapping artifact. Without it
// the run cannot be reversed, so callers treat it as fatal.
type PersistError struct {
	Path string
	Err  error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("write mapping %s: %v", e.Path, e.Err)
}

func (e *PersistError) Unwrap() []error {
	return []error{ErrPersist, e.Err}
}

// Encode writes pairs to w.
func Encode(w io.Writer, pairs []rename.Pair) error {
	bw := bufio.NewWriter(w)
	for _, p := range pairs {
		if _, err := bw.WriteString(p.Original + arrow + p.Synthetic + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Decode parses pairs from r. Blank lines and lines starting with '#' are
// skipped.
func Decode(r io.Reader) ([]rename.Pair, error) {
	var pairs []rename.Pair
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		orig, syn, ok := strings.Cut(text, "->")
		if !ok {
			return nil, fmt.Errorf("line %d: missing \"->\"", line)
		}
		orig, syn = strings.TrimSpace(orig), strings.TrimSpace(syn)
		if orig == "" || syn == "" {
			return nil, fmt.Errorf("line %d: empty name", line)
		}
		pairs = append(pairs, rename.Pair{Original: orig, Synthetic: syn})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return pairs, nil
}

// WriteFile stores pairs at path, replacing any existing file. The file is
// written under a temporary name and renamed into place, so a failed write
// never leaves a truncated mapping behind. Errors are *PersistError.
func WriteFile(path string, pairs []rename.Pair) error {
	fail := func(err error) error { return &PersistError{Path: path, Err: err} }

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fail(err)
	}
	tmp, err := os.CreateTemp(dir, ".veil-map-*")
	if err != nil {
		return fail(err)
	}
	defer os.Remove(tmp.Name())

	if err := Encode(tmp, pairs); err != nil {
		tmp.Close()
		return fail(err)
	}
	if err := tmp.Close(); err != nil {
		return fail(err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fail(err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fail(err)
	}
	return nil
}

// ReadFile loads the pairs stored at path.
func ReadFile(path string) ([]rename.Pair, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	pairs, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return pairs, nil
}
