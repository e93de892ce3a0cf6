// Package rename classifies identifier tokens as protected or renameable,
// assigns synthetic names to renameable identifiers, and rebuilds source text
// with those names substituted.
package rename

import (
	"fmt"
	"strings"

	"github.com/panbanda/veil/pkg/keep"
	"github.com/panbanda/veil/pkg/lexer"
	"github.com/panbanda/veil/pkg/namegen"
)

// Reason records why a token was protected, or that it is renameable.
type Reason uint8

const (
	Renameable Reason = iota
	ProtectedMain
	ProtectedReserved
	ProtectedKeyword
	ProtectedKeep
	ProtectedScope
	ProtectedCast
	// ProtectedPinned marks a text that is scope-qualified or cast-like at
	// some other occurrence in the batch.
	ProtectedPinned
	// ProtectedDirective marks a text that appears in a preprocessor line.
	ProtectedDirective
)

var reasonNames = [...]string{
	Renameable:         "renameable",
	ProtectedMain:      "main",
	ProtectedReserved:  "reserved",
	ProtectedKeyword:   "keyword",
	ProtectedKeep:      "keep",
	ProtectedScope:     "scope",
	ProtectedCast:      "cast",
	ProtectedPinned:    "pinned",
	ProtectedDirective: "directive",
}

func (r Reason) String() string {
	if int(r) < len(reasonNames) {
		return reasonNames[r]
	}
	return fmt.Sprintf("reason(%d)", r)
}

// Protected reports whether the token keeps its original text.
func (r Reason) Protected() bool {
	return r != Renameable
}

// Classify applies the classification rules to tok in precedence order:
// main, reserved "__" prefix, keyword, keep-set, scope qualifier, cast.
// It does not consult batch-wide pinning; see Context.Classify.
func Classify(src []byte, tok lexer.Token, set *keep.Set) Reason {
	if r := classifyText(tok.Text, set); r.Protected() {
		return r
	}
	return classifyPosition(src, tok)
}

func classifyText(text string, set *keep.Set) Reason {
	switch {
	case text == "main":
		return ProtectedMain
	case strings.HasPrefix(text, "__"):
		return ProtectedReserved
	case keep.IsKeyword(text):
		return ProtectedKeyword
	case set.Contains(text):
		return ProtectedKeep
	}
	return Renameable
}

func classifyPosition(src []byte, tok lexer.Token) Reason {
	switch {
	case isScoped(src, tok):
		return ProtectedScope
	case isCast(src, tok):
		return ProtectedCast
	}
	return Renameable
}

// isScoped reports whether tok is immediately preceded or followed by "::".
// Whitespace around the operator is not tolerated.
func isScoped(src []byte, tok lexer.Token) bool {
	s, e := tok.Start, tok.End
	if s >= 2 && src[s-2] == ':' && src[s-1] == ':' {
		return true
	}
	return e+1 < len(src) && src[e] == ':' && src[e+1] == ':'
}

// isCast reports whether tok is written as "(tok)" directly followed by an
// identifier byte, a digit or an opening parenthesis, as in "(ll)x" or
// "(__int128)(a)". Multi-token casts such as "(unsigned long)" are not
// recognized.
func isCast(src []byte, tok lexer.Token) bool {
	s, e := tok.Start, tok.End
	if s < 1 || src[s-1] != '(' {
		return false
	}
	if e+1 >= len(src) || src[e] != ')' {
		return false
	}
	next := src[e+1]
	return lexer.IsWordByte(next) || next == '('
}

// outerIntroducers are keywords after which a name declares a file-level
// symbol.
var outerIntroducers = map[string]bool{
	"class": true, "struct": true, "union": true, "enum": true,
	"namespace": true, "typedef": true,
}

// familyFor picks the name family for a newly seen identifier: outer for
// names followed by "(" or introduced by a type keyword, inner otherwise.
func familyFor(src []byte, tok lexer.Token) namegen.Family {
	i := tok.End
	for i < len(src) && (src[i] == ' ' || src[i] == '\t') {
		i++
	}
	if i < len(src) && src[i] == '(' {
		return namegen.Outer
	}

	j := tok.Start - 1
	for j >= 0 && (src[j] == ' ' || src[j] == '\t' || src[j] == '\n' || src[j] == '\r') {
		j--
	}
	end := j + 1
	for j >= 0 && lexer.IsWordByte(src[j]) {
		j--
	}
	if outerIntroducers[string(src[j+1:end])] {
		return namegen.Outer
	}
	return namegen.Inner
}
