package spacing

import (
	"strings"
	"testing"
	"unicode"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panbanda/veil/pkg/lexer"
)

const sample = `#include <vector>
#define SQ(x) ((x)*(x))
int l100000000(int l100000001, int l100000010) {
    int l100000011 = l100000001+l100000010*2;
    double l100000100 = 1.5e-3+l100000011;
    l100000011 += l100000001 - l100000010;
    if (l100000011<l100000001 && l100000010>=0) {
        l100000011 = l100000001<<2;
    }
    const char *l100000101 = "a=b+c, d";
    char l100000110 = '-';
    std::vector<std::vector<int>> l100000111;
    return l100000011->l100001000 ? f(l100000001, l100000010) : 0x1p-4;
}
`

func squeeze(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

func tokenTexts(src []byte) []string {
	f := lexer.Lex(src)
	out := make([]string, len(f.Tokens))
	for i, t := range f.Tokens {
		out[i] = t.Text
	}
	return out
}

func TestApply_PreservesTokens(t *testing.T) {
	for _, level := range []Level{Light, Medium, Heavy} {
		for seed := uint64(0); seed < 25; seed++ {
			out := New(level, seed).Apply("src/a.cpp", []byte(sample))
			assert.Equal(t, squeeze(sample), squeeze(string(out)), "level %s seed %d", level, seed)
			assert.Equal(t, tokenTexts([]byte(sample)), tokenTexts(out))
		}
	}
}

func TestApply_LeavesProtectedText(t *testing.T) {
	for seed := uint64(0); seed < 25; seed++ {
		out := string(New(Heavy, seed).Apply("a.cpp", []byte(sample)))
		for _, want := range []string{
			"#include <vector>",
			"#define SQ(x) ((x)*(x))",
			`"a=b+c, d"`,
			"'-'",
			"1.5e-3",
			"0x1p-4",
			"+=",
			"<<",
			">=",
			"->",
			"&&",
			"::",
			">>",
		} {
			assert.Contains(t, out, want, "seed %d", seed)
		}
	}
}

func TestApply_ChangesSomething(t *testing.T) {
	out := New(Heavy, 7).Apply("a.cpp", []byte(sample))
	assert.NotEqual(t, sample, string(out))
	assert.Contains(t, string(out), "  ")
}

func TestApply_Deterministic(t *testing.T) {
	a := New(Medium, 42).Apply("dir/x.cpp", []byte(sample))
	b := New(Medium, 42).Apply("dir/x.cpp", []byte(sample))
	assert.Equal(t, a, b)
}

func TestApply_None(t *testing.T) {
	s := New(None, 1)
	assert.False(t, s.Enabled())
	assert.Equal(t, sample, string(s.Apply("a.cpp", []byte(sample))))

	var nilSpacer *Spacer
	assert.False(t, nilSpacer.Enabled())
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"", None, false},
		{"none", None, false},
		{"light", Light, false},
		{"medium", Medium, false},
		{"heavy", Heavy, false},
		{"extreme", None, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsExponent(t *testing.T) {
	assert.True(t, isExponent([]byte("x = 1e")))
	assert.True(t, isExponent([]byte("1.5e")))
	assert.True(t, isExponent([]byte("0x1p")))
	assert.False(t, isExponent([]byte("value")))
	assert.False(t, isExponent([]byte("count")))
	assert.False(t, isExponent([]byte("obj.size")))
}
