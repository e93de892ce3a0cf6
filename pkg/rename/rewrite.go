package rename

import (
	"bytes"

	"github.com/panbanda/veil/pkg/lexer"
)

// Rewrite rebuilds f with comments removed and every renameable token
// replaced by its synthetic name. String, character and preprocessor spans
// are copied unchanged, as is all code text outside tokens. decisions must be
// the result of Context.Classify for f.
//
// A block comment sitting directly between two non-space bytes becomes a
// single space so the neighbors do not fuse into one token.
func Rewrite(f *lexer.File, decisions []Decision) []byte {
	src := f.Src
	var buf bytes.Buffer
	buf.Grow(len(src))

	d := 0
	for _, sp := range f.Spans {
		switch {
		case sp.Kind.IsComment():
			if sp.Kind == lexer.KindBlockComment && fuses(buf.Bytes(), src, sp.End) {
				buf.WriteByte(' ')
			}
			continue
		case sp.Kind != lexer.KindCode:
			buf.Write(sp.Text(src))
			continue
		}

		pos := sp.Start
		for d < len(decisions) && decisions[d].Token.Start < sp.End {
			dec := decisions[d]
			d++
			if dec.Token.Start < pos || dec.Reason.Protected() {
				continue
			}
			buf.Write(src[pos:dec.Token.Start])
			buf.WriteString(dec.Name)
			pos = dec.Token.End
		}
		buf.Write(src[pos:sp.End])
	}
	return buf.Bytes()
}

func fuses(out, src []byte, next int) bool {
	if len(out) == 0 || next >= len(src) {
		return false
	}
	prev := out[len(out)-1]
	return !isBlank(prev) && !isBlank(src[next])
}

func isBlank(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\v' || c == '\f'
}
