// Package deadcode injects unreferenced functions and types into rewritten
// source. Fragment symbols are allocated from the same name space as real
// identifiers, so they never collide with renamed code.
package deadcode

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/panbanda/veil/pkg/lexer"
	"github.com/panbanda/veil/pkg/namegen"
)

// Region markers bracketing injected code.
const (
	BeginMarker = "// veil:dead-code begin"
	EndMarker   = "// veil:dead-code end"
)

// Dialect selects the template set.
type Dialect uint8

const (
	DialectCPP Dialect = iota
	DialectC
)

func (d Dialect) String() string {
	if d == DialectC {
		return "c"
	}
	return "c++"
}

// DialectFor derives the dialect from a file name. Plain C sources and
// headers get C-compatible fragments.
func DialectFor(path string) Dialect {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".c", ".h":
		return DialectC
	}
	return DialectCPP
}

// Target describes the file receiving fragments.
type Target struct {
	Dialect Dialect
	// Header is set for files included by other translation units.
	Header bool
}

// TargetFor derives the target from a file name.
func TargetFor(path string) Target {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".h", ".hh", ".hpp", ".hxx":
		return Target{Dialect: DialectFor(path), Header: true}
	}
	return Target{Dialect: DialectFor(path)}
}

// Linkage is the storage prefix of injected functions. Functions never get
// external linkage, so a header included by several translation units does
// not define the same symbol twice.
func (t Target) Linkage() string {
	if t.Header {
		return "static inline "
	}
	return "static "
}

// Allocator issues fresh synthetic names.
type Allocator interface {
	Allocate(f namegen.Family) (string, error)
}

// Fragment is one rendered piece of dead code.
type Fragment struct {
	Kind     FragmentKind `json:"kind"`
	Template string       `json:"template"`
	Name     string       `json:"name"`
	Symbols  []string     `json:"symbols"`
	Text     string       `json:"-"`
}

// Injector renders and splices dead-code fragments.
type Injector struct {
	functions int
	classes   int
	logger    *zap.Logger
}

// Option configures an Injector.
type Option func(*Injector)

// WithLogger sets the injector's logger.
func WithLogger(l *zap.Logger) Option {
	return func(in *Injector) {
		if l != nil {
			in.logger = l
		}
	}
}

// New returns an injector adding the given number of functions and classes
// to every file.
func New(functions, classes int, opts ...Option) *Injector {
	in := &Injector{functions: functions, classes: classes, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Enabled reports whether the injector adds anything.
func (in *Injector) Enabled() bool {
	return in != nil && in.functions+in.classes > 0
}

// Render allocates names for one fragment built from t.
func Render(t Template, alloc Allocator) (Fragment, error) {
	name, err := alloc.Allocate(t.Family(0))
	if err != nil {
		return Fragment{}, fmt.Errorf("allocate %s name: %w", t.Name, err)
	}
	return render(t, name, alloc)
}

func render(t Template, name string, alloc Allocator) (Fragment, error) {
	names := make([]string, t.Slots)
	names[0] = name
	for i := 1; i < len(names); i++ {
		n, err := alloc.Allocate(t.Family(i))
		if err != nil {
			return Fragment{}, fmt.Errorf("allocate %s symbol: %w", t.Name, err)
		}
		names[i] = n
	}
	return Fragment{
		Kind:     t.Kind,
		Template: t.Name,
		Name:     name,
		Symbols:  names,
		Text:     t.Render(names),
	}, nil
}

// fragment allocates the top-level name first and picks the template from
// its ordinal, so template choice follows the batch's allocation order.
func fragment(lib []Template, alloc Allocator) (Fragment, error) {
	name, err := alloc.Allocate(namegen.Outer)
	if err != nil {
		return Fragment{}, fmt.Errorf("allocate fragment name: %w", err)
	}
	_, ord, _ := namegen.Parse(name)
	return render(lib[ord%len(lib)], name, alloc)
}

// Fragments renders the configured number of functions then classes.
func (in *Injector) Fragments(t Target, alloc Allocator) ([]Fragment, error) {
	classes := Classes
	if t.Dialect == DialectC {
		classes = Structs
	}
	var out []Fragment
	for i := 0; i < in.functions; i++ {
		f, err := fragment(Functions, alloc)
		if err != nil {
			return nil, err
		}
		f.Text = t.Linkage() + f.Text
		out = append(out, f)
	}
	for i := 0; i < in.classes; i++ {
		f, err := fragment(classes, alloc)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// Inject renders fragments and inserts them at Anchor(src), between
// BeginMarker and EndMarker. Text outside the inserted region is unchanged.
func (in *Injector) Inject(src []byte, t Target, alloc Allocator) ([]byte, []Fragment, error) {
	if !in.Enabled() {
		return src, nil, nil
	}
	frags, err := in.Fragments(t, alloc)
	if err != nil {
		return nil, nil, err
	}

	at := Anchor(src)
	var buf bytes.Buffer
	buf.Grow(len(src) + 512*len(frags))
	buf.Write(src[:at])
	if at > 0 && src[at-1] != '\n' {
		buf.WriteByte('\n')
	}
	buf.WriteByte('\n')
	buf.WriteString(BeginMarker)
	buf.WriteByte('\n')
	for _, f := range frags {
		buf.WriteString(f.Text)
		buf.WriteByte('\n')
	}
	buf.WriteString(EndMarker)
	buf.WriteString("\n\n")
	buf.Write(src[at:])

	in.logger.Debug("injected dead code",
		zap.Int("fragments", len(frags)),
		zap.Int("offset", at),
		zap.Stringer("dialect", t.Dialect),
		zap.Bool("header", t.Header))
	return buf.Bytes(), frags, nil
}

// Anchor returns the offset just past the line holding the last top-level
// #include directive or using declaration, or 0 if there is none. An include
// guard (#ifndef X / #define X opening the file) or #pragma once is also an
// anchor, so fragments land inside the guarded region.
func Anchor(src []byte) int {
	spans, _ := lexer.Locate(src)
	anchor := 0
	depth := 0
	lineStart := true
	directives := 0
	guard := ""

	for _, sp := range spans {
		switch sp.Kind {
		case lexer.KindPreprocessor:
			fields := directiveFields(sp.Text(src))
			if len(fields) == 0 {
				continue
			}
			directives++
			switch {
			case depth != 0:
			case fields[0] == "include":
				anchor = lineEnd(src, sp.End)
			case fields[0] == "pragma" && len(fields) > 1 && fields[1] == "once":
				anchor = lineEnd(src, sp.End)
			case directives == 1 && fields[0] == "ifndef" && len(fields) > 1:
				guard = fields[1]
			case directives == 2 && guard != "" && fields[0] == "define" && len(fields) > 1 && fields[1] == guard:
				anchor = lineEnd(src, sp.End)
			}
			continue
		case lexer.KindCode:
		default:
			lineStart = false
			continue
		}

		for i := sp.Start; i < sp.End; i++ {
			c := src[i]
			switch {
			case c == '\n':
				lineStart = true
			case c == ' ' || c == '\t' || c == '\r':
			case c == '{':
				depth++
				lineStart = false
			case c == '}':
				if depth > 0 {
					depth--
				}
				lineStart = false
			case lineStart && depth == 0 && hasWord(src[i:sp.End], "using"):
				if semi := bytes.IndexByte(src[i:sp.End], ';'); semi >= 0 {
					anchor = lineEnd(src, i+semi+1)
				}
				lineStart = false
			default:
				lineStart = false
			}
		}
	}
	return anchor
}

// Region returns the bounds of the injected region in src, markers
// included.
func Region(src []byte) (start, end int, ok bool) {
	start = bytes.Index(src, []byte(BeginMarker))
	if start < 0 {
		return 0, 0, false
	}
	rel := bytes.Index(src[start:], []byte(EndMarker))
	if rel < 0 {
		return 0, 0, false
	}
	return start, start + rel + len(EndMarker), true
}

// directiveFields splits a directive line into its words: the directive
// name first. A span that does not start with '#' (the rest of a directive
// after a comment) yields nothing.
func directiveFields(line []byte) []string {
	s := strings.TrimLeft(string(line), " \t")
	if !strings.HasPrefix(s, "#") {
		return nil
	}
	return strings.FieldsFunc(s[1:], func(r rune) bool {
		return r > 0x7f || !lexer.IsWordByte(byte(r))
	})
}

func hasWord(b []byte, w string) bool {
	return bytes.HasPrefix(b, []byte(w)) && (len(b) == len(w) || !lexer.IsWordByte(b[len(w)]))
}

// lineEnd returns the offset after the newline ending the line that
// contains i, or len(src).
func lineEnd(src []byte, i int) int {
	nl := bytes.IndexByte(src[i:], '\n')
	if nl < 0 {
		return len(src)
	}
	return i + nl + 1
}
