package lexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func texts(toks []Token) []string {
	out := make([]string, len(toks))
	for i, t := range toks {
		out[i] = t.Text
	}
	return out
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []string
	}{
		{
			name: "simple function",
			src:  "int sum(int a, int b) { return a + b; }",
			want: []string{"int", "sum", "int", "a", "int", "b", "return", "a", "b"},
		},
		{
			name: "numbers yield no tokens",
			src:  "x = 10ULL + 0x1Fu + 1e5f + 3.14;",
			want: []string{"x"},
		},
		{
			name: "digit separators belong to the number",
			src:  "x = 1'000 + 0x1F'FFu;",
			want: []string{"x"},
		},
		{
			name: "strings and comments are skipped",
			src:  "call(\"name\"); // other\n/* more */ done;",
			want: []string{"call", "done"},
		},
		{
			name: "preprocessor lines are skipped",
			src:  "#define LIMIT 10\nint v = LIMIT;",
			want: []string{"int", "v", "LIMIT"},
		},
		{
			name: "encoding prefixes belong to the literal",
			src:  `auto w = L"wide"; auto u = u8"x"; char c = U'c';`,
			want: []string{"auto", "w", "auto", "u", "char", "c"},
		},
		{
			name: "literal suffix belongs to the literal",
			src:  `auto s = "abc"sv;`,
			want: []string{"auto", "s"},
		},
		{
			name: "identifier named like a prefix is a token",
			src:  `int L = 1; f(L, "x");`,
			want: []string{"int", "L", "f", "L"},
		},
		{
			name: "underscores and scope",
			src:  "std::__gcd(_a1, b_2);",
			want: []string{"std", "__gcd", "_a1", "b_2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := Lex([]byte(tt.src))
			assert.Equal(t, tt.want, texts(f.Tokens))
			for _, tok := range f.Tokens {
				assert.Equal(t, tok.Text, tt.src[tok.Start:tok.End])
			}
		})
	}
}

func TestDirectiveWords(t *testing.T) {
	src := []byte("#define MAXN 100\n#ifdef DEBUG\nint x = MAXN;\n#endif\n")
	spans, _ := Locate(src)
	assert.Equal(t, []string{"define", "MAXN", "ifdef", "DEBUG", "endif"}, DirectiveWords(src, spans))
}

func TestDirectiveWords_SkipsComments(t *testing.T) {
	src := []byte("#define LIMIT 10 // secret note\n#include <a.h> /* more\nwords */\n")
	spans, _ := Locate(src)
	assert.Equal(t, []string{"define", "LIMIT", "include", "a", "h"}, DirectiveWords(src, spans))
}

func TestIsIdentifier(t *testing.T) {
	assert.True(t, IsIdentifier("a"))
	assert.True(t, IsIdentifier("_x9"))
	assert.False(t, IsIdentifier(""))
	assert.False(t, IsIdentifier("9x"))
	assert.False(t, IsIdentifier("a-b"))
}
