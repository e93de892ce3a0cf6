package rename

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panbanda/veil/pkg/keep"
	"github.com/panbanda/veil/pkg/lexer"
	"github.com/panbanda/veil/pkg/namegen"
)

// obfuscate pins and classifies every source in order, then rewrites each.
func obfuscate(t *testing.T, set *keep.Set, srcs ...string) ([]string, *Context) {
	t.Helper()
	ctx := NewContext(set)
	files := make([]*lexer.File, len(srcs))
	for i, s := range srcs {
		files[i] = lexer.Lex([]byte(s))
		ctx.Pin(files[i])
	}
	out := make([]string, len(srcs))
	for i, f := range files {
		decisions, err := ctx.Classify(f)
		require.NoError(t, err)
		out[i] = string(Rewrite(f, decisions))
	}
	return out, ctx
}

func empty() *keep.Set {
	return keep.NewBuilder(false).Build()
}

func TestClassify(t *testing.T) {
	set := keep.NewBuilder(false).Add("solve").Build()
	tests := []struct {
		name string
		src  string
		word string
		want Reason
	}{
		{"main", "int main() {}", "main", ProtectedMain},
		{"reserved prefix", "__builtin_expect(x, 0);", "__builtin_expect", ProtectedReserved},
		{"keyword", "return x;", "return", ProtectedKeyword},
		{"keep set", "solve();", "solve", ProtectedKeep},
		{"followed by scope", "Foo::bar();", "Foo", ProtectedScope},
		{"preceded by scope", "Foo::bar();", "bar", ProtectedScope},
		{"spaced scope is not recognized", "Foo :: bar();", "Foo", Renameable},
		{"cast before identifier", "y = (ll)x;", "ll", ProtectedCast},
		{"cast before paren", "y = (ll)(x);", "ll", ProtectedCast},
		{"cast before digit", "y = (ll)1;", "ll", ProtectedCast},
		{"parenthesized value", "y = (a) + b;", "a", Renameable},
		{"cast followed by space is not recognized", "y = (T) x;", "T", Renameable},
		{"call argument", "f(a);", "a", Renameable},
		{"multi token cast", "y = (unsigned long)x;", "long", ProtectedKeyword},
		{"plain identifier", "int value = 1;", "value", Renameable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := lexer.Lex([]byte(tt.src))
			var found bool
			for _, tok := range f.Tokens {
				if tok.Text != tt.word {
					continue
				}
				found = true
				assert.Equal(t, tt.want, Classify(f.Src, tok, set))
				break
			}
			require.True(t, found, "token %q not found", tt.word)
		})
	}
}

func TestReason_String(t *testing.T) {
	assert.Equal(t, "renameable", Renameable.String())
	assert.Equal(t, "directive", ProtectedDirective.String())
	assert.Equal(t, "reason(99)", Reason(99).String())
	assert.False(t, Renameable.Protected())
	assert.True(t, ProtectedCast.Protected())
}

func TestRenamingScenario(t *testing.T) {
	out, ctx := obfuscate(t, empty(),
		"int calculate_sum(int a, int b) { int result = a + b; return result; }")

	assert.Equal(t,
		"int O100000000(int l100000001, int l100000010) { int l100000011 = l100000001 + l100000010; return l100000011; }",
		out[0])
	assert.Equal(t, []string{"calculate_sum", "a", "b", "result"}, ctx.Map().Originals())

	stats := ctx.Stats()
	assert.Equal(t, 4, stats.Allocated)
	assert.Equal(t, 7, stats.Renamed)
	assert.Equal(t, 5, stats.ByReason["keyword"])
}

func TestCastPreservation(t *testing.T) {
	out, ctx := obfuscate(t, empty(), "x = (__int128)a * b;")
	assert.Contains(t, out[0], "(__int128)")
	_, mapped := ctx.Map().Lookup("__int128")
	assert.False(t, mapped)
}

func TestScopePreservation(t *testing.T) {
	out, ctx := obfuscate(t, empty(), "std::ios_base::sync_with_stdio(false);")
	assert.Equal(t, "std::ios_base::sync_with_stdio(false);", out[0])
	assert.Zero(t, ctx.Map().Len())
}

func TestCommentRemoval(t *testing.T) {
	out, _ := obfuscate(t, empty(), "int x = 1; // secret note\nint y = x;\n")
	assert.NotContains(t, out[0], "secret note")
	assert.Equal(t, "int l100000000 = 1; \nint l100000001 = l100000000;\n", out[0])
}

func TestCommentRemoval_Directives(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			"line comment after define",
			"#define LIMIT 10 // secret note\nint value = LIMIT;\n",
			"#define LIMIT 10 \nint l100000000 = LIMIT;\n",
		},
		{
			"block comment spanning lines after include",
			"#include <stdio.h> /* starts here\nstill a comment */\nint value = 1;\n",
			"#include <stdio.h> \nint l100000000 = 1;\n",
		},
		{
			"block comment inside define body",
			"#define TWICE(v) ((v)/*x*/*2)\nint n = TWICE(3);\n",
			"#define TWICE(v) ((v) *2)\nint l100000000 = TWICE(3);\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, ctx := obfuscate(t, empty(), tt.src)
			assert.Equal(t, tt.want, out[0])
			assert.NotContains(t, out[0], "secret")
			for _, word := range []string{"still", "comment", "starts", "note"} {
				_, mapped := ctx.Map().Lookup(word)
				assert.False(t, mapped, "comment word %q was classified", word)
			}
		})
	}
}

func TestRewrite_DigitSeparators(t *testing.T) {
	out, _ := obfuscate(t, empty(), "int x = (T) y;\nint z = 1'000;\nint w = x + z;\n")
	assert.Equal(t,
		"int l100000000 = (l100000001) l100000010;\nint l100000011 = 1'000;\nint l100000100 = l100000000 + l100000011;\n",
		out[0])
}

func TestRewrite_BlockComments(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"between words", "int/* c */x;", "int l100000000;"},
		{"between operators", "a -/**/- b;", "l100000000 - - l100000001;"},
		{"after space", "int /* c */x;", "int l100000000;"},
		{"at end of file", "int x;/* tail */", "int l100000000;"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _ := obfuscate(t, empty(), tt.src)
			assert.Equal(t, tt.want, out[0])
		})
	}
}

func TestRewrite_LiteralsUntouched(t *testing.T) {
	src := "const char *s = \"value inside\"; char c = 'v'; int value = 2;"
	out, _ := obfuscate(t, empty(), src)
	assert.Contains(t, out[0], "\"value inside\"")
	assert.Contains(t, out[0], "'v'")
	assert.NotContains(t, out[0], "int value")
}

func TestRewrite_Idempotent(t *testing.T) {
	ctx := NewContext(empty())
	f := lexer.Lex([]byte("int total = count + 1;"))
	ctx.Pin(f)
	decisions, err := ctx.Classify(f)
	require.NoError(t, err)

	first := Rewrite(f, decisions)
	second := Rewrite(f, decisions)
	assert.Equal(t, first, second)
}

func TestProtectionInvariant(t *testing.T) {
	srcs := []string{
		"#include <vector>\n#define LIMIT 10\nint Foo = LIMIT;\nint arr[LIMIT];\n",
		"void Foo::run() { helper(); }\nlong v = (word)raw;\n",
		"int helper() { word w = 0; return w; }\n",
	}
	_, ctx := obfuscate(t, keep.Default(), srcs...)

	for _, text := range []string{"Foo", "run", "LIMIT", "word", "vector", "include", "define"} {
		_, mapped := ctx.Map().Lookup(text)
		assert.False(t, mapped, "%s must stay protected", text)
	}
	for _, text := range []string{"arr", "helper", "raw", "w", "v"} {
		_, mapped := ctx.Map().Lookup(text)
		assert.True(t, mapped, "%s should be renamed", text)
	}

	reasons := make(map[string]Reason)
	for _, d := range ctx.ProtectedNames() {
		reasons[d.Token.Text] = d.Reason
	}
	assert.Equal(t, ProtectedPinned, reasons["Foo"])
	assert.Equal(t, ProtectedDirective, reasons["LIMIT"])
	assert.Equal(t, ProtectedCast, reasons["word"])
}

func TestDeterminism(t *testing.T) {
	srcs := []string{
		"int alpha(int x) { return x * 2; }\n",
		"int beta = alpha(3); // note\nstruct Node { int key; };\n",
	}
	out1, ctx1 := obfuscate(t, keep.Default(), srcs...)
	out2, ctx2 := obfuscate(t, keep.Default(), srcs...)

	assert.Equal(t, out1, out2)
	assert.Equal(t, ctx1.Map().Pairs(), ctx2.Map().Pairs())
}

func TestIdempotentClassification(t *testing.T) {
	ctx := NewContext(empty())
	f := lexer.Lex([]byte("int first = second + third;"))
	ctx.Pin(f)

	_, err := ctx.Classify(f)
	require.NoError(t, err)
	issued := ctx.Counter().Count()

	_, err = ctx.Classify(f)
	require.NoError(t, err)
	assert.Equal(t, issued, ctx.Counter().Count())
	assert.Equal(t, 3, ctx.Stats().Allocated)
}

func TestFamily(t *testing.T) {
	_, ctx := obfuscate(t, empty(), "struct Point { int x; };\nint area(struct Point p);\n")
	pairs := ctx.Map().Pairs()
	families := make(map[string]namegen.Family)
	for _, p := range pairs {
		fam, _, ok := namegen.Parse(p.Synthetic)
		require.True(t, ok)
		families[p.Original] = fam
	}
	assert.Equal(t, namegen.Outer, families["Point"])
	assert.Equal(t, namegen.Outer, families["area"])
	assert.Equal(t, namegen.Inner, families["x"])
	assert.Equal(t, namegen.Inner, families["p"])
}

func TestContext_Seed(t *testing.T) {
	ctx := NewContext(keep.Default())
	require.NoError(t, ctx.Seed([]Pair{
		{Original: "alpha", Synthetic: "O100000101"},
		{Original: "vector", Synthetic: "l100000110"},
	}))

	name, ok := ctx.Map().Lookup("alpha")
	require.True(t, ok)
	assert.Equal(t, "O100000101", name)
	_, ok = ctx.Map().Lookup("vector")
	assert.False(t, ok, "protected originals are not mapped")
	assert.Equal(t, 7, ctx.Counter().Peek())

	f := lexer.Lex([]byte("int beta = alpha;"))
	decisions, err := ctx.Classify(f)
	require.NoError(t, err)
	assert.Equal(t, "int l100000111 = O100000101;", string(Rewrite(f, decisions)))
}

func TestContext_SeedRejectsBadPairs(t *testing.T) {
	tests := []struct {
		name  string
		pairs []Pair
	}{
		{"bad original", []Pair{{Original: "1abc", Synthetic: "O100000000"}}},
		{"bad synthetic", []Pair{{Original: "abc", Synthetic: "renamed"}}},
		{"duplicate synthetic", []Pair{
			{Original: "a", Synthetic: "O100000000"},
			{Original: "b", Synthetic: "O100000000"},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewContext(empty()).Seed(tt.pairs)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvariant)
		})
	}
}

func TestContext_AllocateAvoidsMap(t *testing.T) {
	_, ctx := obfuscate(t, empty(), "int a = b;")
	name, err := ctx.Allocate(namegen.Outer)
	require.NoError(t, err)
	assert.False(t, ctx.Map().HasSynthetic(name))
	assert.Equal(t, "O100000010", name)
}

func TestContext_AllocateCollision(t *testing.T) {
	set := keep.NewBuilder(false).Add("O100000000").Build()
	ctx := NewContext(set)
	_, err := ctx.Allocate(namegen.Outer)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvariant)

	var inv *InvariantError
	require.ErrorAs(t, err, &inv)
	assert.Equal(t, "O100000000", inv.Subject)
}

func TestMap(t *testing.T) {
	m := NewMap()
	require.NoError(t, m.add("a", "l100000000"))
	require.NoError(t, m.add("b", "l100000001"))
	assert.ErrorIs(t, m.add("a", "l100000010"), ErrInvariant)
	assert.ErrorIs(t, m.add("c", "l100000000"), ErrInvariant)

	assert.Equal(t, 2, m.Len())
	assert.True(t, m.HasSynthetic("l100000001"))
	pairs := m.Pairs()
	pairs[0].Synthetic = "changed"
	name, _ := m.Lookup("a")
	assert.Equal(t, "l100000000", name)
}
