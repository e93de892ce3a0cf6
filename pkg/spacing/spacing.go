// Package spacing randomizes whitespace in code regions without changing
// the token stream. Output is a pure function of the input, the level, the
// seed and the file's path.
package spacing

import (
	"bytes"
	"fmt"
	"math/rand/v2"

	"github.com/cespare/xxhash/v2"

	"github.com/panbanda/veil/pkg/lexer"
)

// Level selects how aggressive the randomizer is.
type Level string

const (
	None   Level = "none"
	Light  Level = "light"
	Medium Level = "medium"
	Heavy  Level = "heavy"
)

// Levels lists the accepted level names.
var Levels = []Level{None, Light, Medium, Heavy}

type profile struct {
	operator float64
	comma    float64
	blank    float64
	tab      float64
}

var profiles = map[Level]profile{
	Light:  {operator: 0.2, comma: 0.2, blank: 0.05, tab: 0.1},
	Medium: {operator: 0.4, comma: 0.3, blank: 0.1, tab: 0.3},
	Heavy:  {operator: 0.5, comma: 0.4, blank: 0.15, tab: 0.3},
}

// ParseLevel parses a level name. The empty string means None.
func ParseLevel(s string) (Level, error) {
	if s == "" {
		return None, nil
	}
	for _, l := range Levels {
		if string(l) == s {
			return l, nil
		}
	}
	return None, fmt.Errorf("unknown spacing level %q (want none, light, medium or heavy)", s)
}

// Spacer applies one level with one seed.
type Spacer struct {
	level Level
	seed  uint64
}

// New returns a spacer. A None spacer returns its input unchanged.
func New(level Level, seed uint64) *Spacer {
	return &Spacer{level: level, seed: seed}
}

// Enabled reports whether Apply changes anything.
func (s *Spacer) Enabled() bool {
	if s == nil {
		return false
	}
	_, ok := profiles[s.level]
	return ok
}

// Apply randomizes the whitespace of src. Only code regions are touched:
// single-character operators (= + - * < >) between operands are padded with
// two spaces, commas followed by a blank get an extra space, some lines
// ending in ';' or '}' get a trailing blank line, and some four-space
// indents become tabs. Compound operators, numeric exponents, literals and
// preprocessor lines are never modified.
func (s *Spacer) Apply(path string, src []byte) []byte {
	p, ok := profiles[s.level]
	if !ok {
		return src
	}
	w := &writer{
		src: src,
		p:   p,
		rng: rand.New(rand.NewPCG(s.seed, xxhash.Sum64String(path))),
	}
	w.buf.Grow(len(src) + len(src)/8)

	spans, _ := lexer.Locate(src)
	for _, sp := range spans {
		if sp.Kind != lexer.KindCode {
			w.buf.Write(sp.Text(src))
			continue
		}
		w.code(sp)
	}
	return w.buf.Bytes()
}

type writer struct {
	src []byte
	p   profile
	rng *rand.Rand
	buf bytes.Buffer
}

func (w *writer) code(sp lexer.Span) {
	src := w.src
	for i := sp.Start; i < sp.End; {
		c := src[i]
		switch {
		case c == '\n':
			w.buf.WriteByte('\n')
			i++
			if lineEndsStatement(w.buf.Bytes()) && w.rng.Float64() < w.p.blank {
				w.buf.WriteByte('\n')
			}
			i = w.indent(i, sp.End)
		case isPaddable(c) && w.operand(src, i, sp.End) && w.rng.Float64() < w.p.operator:
			w.trimBlanks()
			w.buf.WriteString("  ")
			w.buf.WriteByte(c)
			w.buf.WriteString("  ")
			i = skipBlanks(src, i+1, sp.End)
		case c == ',' && i+1 < sp.End && isBlank(src[i+1]) && w.rng.Float64() < w.p.comma:
			w.buf.WriteString(",  ")
			i = skipBlanks(src, i+1, sp.End)
		default:
			w.buf.WriteByte(c)
			i++
		}
	}
}

// indent copies the leading blanks of the line starting at i, sometimes
// turning groups of four spaces into tabs.
func (w *writer) indent(i, end int) int {
	j := i
	for j < end && w.src[j] == ' ' {
		j++
	}
	n := j - i
	if n >= 4 && w.rng.Float64() < w.p.tab {
		w.buf.Write(bytes.Repeat([]byte{'\t'}, n/4))
		w.buf.Write(bytes.Repeat([]byte{' '}, n%4))
		return j
	}
	return i
}

// operand reports whether the operator at i sits between two operands on
// one line: the previous non-blank output byte is a word byte or ')', the
// next non-blank source byte is a word byte or '(', and the left side is
// not a numeric exponent such as 1e-5.
func (w *writer) operand(src []byte, i, end int) bool {
	out := w.buf.Bytes()
	k := len(out) - 1
	for k >= 0 && isBlank(out[k]) {
		k--
	}
	if k < 0 || !(lexer.IsWordByte(out[k]) || out[k] == ')') {
		return false
	}
	if isExponent(out[:k+1]) {
		return false
	}
	j := skipBlanks(src, i+1, end)
	if j >= end {
		return false
	}
	return lexer.IsWordByte(src[j]) || src[j] == '('
}

func (w *writer) trimBlanks() {
	out := w.buf.Bytes()
	k := len(out)
	for k > 0 && isBlank(out[k-1]) {
		k--
	}
	w.buf.Truncate(k)
}

// isExponent reports whether out ends in a number run whose last byte is an
// exponent marker.
func isExponent(out []byte) bool {
	last := out[len(out)-1]
	if last != 'e' && last != 'E' && last != 'p' && last != 'P' {
		return false
	}
	k := len(out) - 1
	for k > 0 && (lexer.IsWordByte(out[k-1]) || out[k-1] == '.') {
		k--
	}
	return out[k] >= '0' && out[k] <= '9' || out[k] == '.'
}

// lineEndsStatement reports whether the line just finished in out ends in
// ';' or '}'.
func lineEndsStatement(out []byte) bool {
	k := len(out) - 2
	for k >= 0 && (out[k] == ' ' || out[k] == '\t' || out[k] == '\r') {
		k--
	}
	return k >= 0 && (out[k] == ';' || out[k] == '}')
}

func isPaddable(c byte) bool {
	switch c {
	case '=', '+', '-', '*', '<', '>':
		return true
	}
	return false
}

func isBlank(c byte) bool {
	return c == ' ' || c == '\t'
}

func skipBlanks(src []byte, i, end int) int {
	for i < end && isBlank(src[i]) {
		i++
	}
	return i
}
