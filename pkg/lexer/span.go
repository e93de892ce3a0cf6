// Package lexer partitions C-family source text into protected spans and
// code spans, and extracts identifier tokens from the code spans.
//
// The scanner is a single-pass finite-state machine with one state variable
// (the kind of the currently active span). Exactly one span kind is active at
// a time, so comment markers inside strings and quotes inside comments are
// never recognized.
package lexer

import (
	"bytes"
	"fmt"
)

// Kind classifies a span of source text.
type Kind uint8

const (
	KindCode Kind = iota
	KindLineComment
	KindBlockComment
	KindString
	KindChar
	KindPreprocessor
)

var kindNames = [...]string{
	KindCode:         "code",
	KindLineComment:  "line_comment",
	KindBlockComment: "block_comment",
	KindString:       "string",
	KindChar:         "char",
	KindPreprocessor: "preprocessor",
}

// String implements fmt.Stringer.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", k)
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	for i, name := range kindNames {
		if name == string(b) {
			*k = Kind(i)
			return nil
		}
	}
	return fmt.Errorf("unknown span kind %q", b)
}

// IsComment reports whether spans of this kind are comments.
func (k Kind) IsComment() bool {
	return k == KindLineComment || k == KindBlockComment
}

// IsLiteral reports whether spans of this kind are string or char literals.
func (k Kind) IsLiteral() bool {
	return k == KindString || k == KindChar
}

// Span is a half-open byte range [Start, End) of one file's text.
type Span struct {
	Start int  `json:"start"`
	End   int  `json:"end"`
	Kind  Kind `json:"kind"`
}

// Len returns the number of bytes covered by the span.
func (s Span) Len() int {
	return s.End - s.Start
}

// Text returns the bytes of src covered by the span.
func (s Span) Text(src []byte) []byte {
	return src[s.Start:s.End]
}

// Warning reports a malformed span. The scanner recovers by closing the span
// at end of input, so warnings never stop processing.
type Warning struct {
	Kind    Kind   `json:"kind"`
	Offset  int    `json:"offset"`
	Line    int    `json:"line"`
	Message string `json:"message"`
}

func (w Warning) Error() string {
	return fmt.Sprintf("line %d: %s", w.Line, w.Message)
}

// scanner holds the automaton state for one Locate call.
type scanner struct {
	src   []byte
	state Kind
	start int

	// lineStart is true while only whitespace (or block comments) has been
	// seen since the last newline in code state.
	lineStart bool
	// resume is the lineStart value to restore when a block comment closes.
	resume bool
	// ret is the kind a closing block comment returns to: code, or the
	// directive it was opened in.
	ret Kind
	// quote is the open quote of a literal inside a directive line, or 0.
	quote byte

	spans    []Span
	warnings []Warning
}

// Locate partitions src into an ordered, non-overlapping sequence of spans
// covering every byte. Unterminated block comments and literals extend to
// end of input and are reported as warnings.
func Locate(src []byte) ([]Span, []Warning) {
	s := &scanner{src: src, lineStart: true}
	s.run()
	return s.spans, s.warnings
}

func (s *scanner) peek(i int) byte {
	if i < len(s.src) {
		return s.src[i]
	}
	return 0
}

// enter closes the active span at offset at and makes k the active kind.
func (s *scanner) enter(k Kind, at int) {
	if at > s.start {
		s.spans = append(s.spans, Span{Start: s.start, End: at, Kind: s.state})
	}
	s.start = at
	s.state = k
}

func (s *scanner) run() {
	src := s.src
	n := len(src)
	i := 0
	for i < n {
		c := src[i]
		switch s.state {
		case KindCode:
			switch {
			case c == '\n':
				s.lineStart = true
				i++
			case isSpace(c):
				i++
			case c == '#' && s.lineStart:
				s.enter(KindPreprocessor, i)
				i++
			case c == '/' && s.peek(i+1) == '/':
				s.enter(KindLineComment, i)
				i += 2
			case c == '/' && s.peek(i+1) == '*':
				s.resume = s.lineStart
				s.enter(KindBlockComment, i)
				i += 2
			case c == '"':
				s.lineStart = false
				s.enter(KindString, i)
				i++
			case c == '\'' && s.digitSeparator(i):
				i++
			case c == '\'':
				s.lineStart = false
				s.enter(KindChar, i)
				i++
			default:
				s.lineStart = false
				i++
			}

		case KindLineComment:
			if c == '\n' {
				s.enter(KindCode, i)
				continue
			}
			i++

		case KindPreprocessor:
			// Literals in a directive are not split out, but comment markers
			// inside them are ignored. An unterminated one ends with the line.
			switch {
			case c == '\n':
				s.quote = 0
				if !s.continued(i) {
					s.enter(KindCode, i)
					continue
				}
				i++
			case s.quote != 0:
				switch c {
				case '\\':
					i += 2
				case s.quote:
					s.quote = 0
					i++
				default:
					i++
				}
			case c == '"' || c == '\'':
				s.quote = c
				i++
			case c == '/' && s.peek(i+1) == '/':
				s.enter(KindLineComment, i)
				i += 2
			case c == '/' && s.peek(i+1) == '*':
				s.ret = KindPreprocessor
				s.enter(KindBlockComment, i)
				i += 2
			default:
				i++
			}

		case KindBlockComment:
			if c == '\n' {
				s.resume = true
			}
			if c == '*' && s.peek(i+1) == '/' {
				i += 2
				// A comment opened in a directive continues it, even across
				// newlines.
				ret := s.ret
				s.ret = KindCode
				s.enter(ret, i)
				if ret == KindCode {
					s.lineStart = s.resume
				}
				continue
			}
			i++

		case KindString, KindChar:
			quote := byte('"')
			if s.state == KindChar {
				quote = '\''
			}
			switch c {
			case '\\':
				// A backslash always consumes the next byte, so an even run of
				// backslashes before a quote leaves the quote unescaped.
				i += 2
			case quote:
				i++
				s.enter(KindCode, i)
			default:
				i++
			}
		}
	}

	switch s.state {
	case KindBlockComment:
		s.warn("unterminated block comment")
	case KindString:
		s.warn("unterminated string literal")
	case KindChar:
		s.warn("unterminated character literal")
	}
	s.enter(KindCode, n)
}

// digitSeparator reports whether the quote at i separates digits of a
// number, as in 1'000 or 0xFF'FF.
func (s *scanner) digitSeparator(i int) bool {
	if i == s.start || !isWord(s.src[i-1]) || !isWord(s.peek(i+1)) {
		return false
	}
	j := i - 1
	for j > s.start && (isWord(s.src[j-1]) || s.src[j-1] == '\'') {
		j--
	}
	return isDigit(s.src[j])
}

// continued reports whether the newline at i is escaped by a trailing
// backslash (optionally followed by a carriage return).
func (s *scanner) continued(i int) bool {
	j := i - 1
	if j >= s.start && s.src[j] == '\r' {
		j--
	}
	return j >= s.start && s.src[j] == '\\'
}

func (s *scanner) warn(msg string) {
	s.warnings = append(s.warnings, Warning{
		Kind:    s.state,
		Offset:  s.start,
		Line:    LineOf(s.src, s.start),
		Message: msg,
	})
}

// LineOf returns the 1-based line number of offset in src.
func LineOf(src []byte, offset int) int {
	if offset > len(src) {
		offset = len(src)
	}
	return bytes.Count(src[:offset], []byte{'\n'}) + 1
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\f' || c == '\v'
}
