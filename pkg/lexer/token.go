package lexer

// Token is a maximal identifier-shaped run found inside a code span.
type Token struct {
	Start int    `json:"start"`
	End   int    `json:"end"`
	Text  string `json:"text"`
}

// File is the lexed form of one source file.
type File struct {
	Src      []byte
	Spans    []Span
	Tokens   []Token
	Warnings []Warning
}

// Lex runs Locate and Tokenize over src.
func Lex(src []byte) *File {
	spans, warnings := Locate(src)
	return &File{
		Src:      src,
		Spans:    spans,
		Tokens:   Tokenize(src, spans),
		Warnings: warnings,
	}
}

// literalPrefixes are encoding prefixes that belong to the literal they
// precede (L"x", u8"x", R"(x)").
var literalPrefixes = map[string]bool{
	"L": true, "u": true, "U": true, "u8": true,
	"R": true, "LR": true, "uR": true, "UR": true, "u8R": true,
}

// Tokenize returns the identifier tokens of every code span, in source order.
//
// A token is a run of [A-Za-z0-9_] that starts with a letter or underscore.
// Runs starting with a digit are numbers (10ULL, 0x1Fu, 1e5f, 0xFF'FFu) and
// yield no token. Encoding prefixes glued to a following literal and user-defined
// literal suffixes glued to a preceding one are part of that literal.
func Tokenize(src []byte, spans []Span) []Token {
	var toks []Token
	for idx, sp := range spans {
		if sp.Kind != KindCode {
			continue
		}
		afterLiteral := idx > 0 && spans[idx-1].Kind.IsLiteral()
		beforeLiteral := idx+1 < len(spans) && spans[idx+1].Kind.IsLiteral()

		i := sp.Start
		for i < sp.End {
			if !isWord(src[i]) {
				i++
				continue
			}
			j := wordEnd(src, i, sp.End)
			text := string(src[i:j])
			switch {
			case !isIdentStart(src[i]):
			case afterLiteral && i == sp.Start:
			case beforeLiteral && j == sp.End && literalPrefixes[text]:
			default:
				toks = append(toks, Token{Start: i, End: j, Text: text})
			}
			i = j
		}
	}
	return toks
}

// DirectiveWords returns the identifier-shaped words appearing inside
// preprocessor spans. Macro names and parameters defined or tested there are
// copied verbatim, so callers use these words to keep code references to them
// unchanged.
func DirectiveWords(src []byte, spans []Span) []string {
	var words []string
	for _, sp := range spans {
		if sp.Kind != KindPreprocessor {
			continue
		}
		i := sp.Start
		for i < sp.End {
			if !isWord(src[i]) {
				i++
				continue
			}
			j := wordEnd(src, i, sp.End)
			if isIdentStart(src[i]) {
				words = append(words, string(src[i:j]))
			}
			i = j
		}
	}
	return words
}

// wordEnd returns the end of the word starting at i. A number continues
// across digit separators (1'000), an identifier does not.
func wordEnd(src []byte, i, end int) int {
	number := !isIdentStart(src[i])
	j := i
	for j < end {
		switch {
		case isWord(src[j]):
		case number && src[j] == '\'' && j+1 < end && isWord(src[j+1]):
		default:
			return j
		}
		j++
	}
	return j
}

// IsIdentifier reports whether s matches [A-Za-z_][A-Za-z0-9_]*.
func IsIdentifier(s string) bool {
	if s == "" || !isIdentStart(s[0]) {
		return false
	}
	for i := 1; i < len(s); i++ {
		if !isWord(s[i]) {
			return false
		}
	}
	return true
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isWord(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

// IsWordByte reports whether c may appear inside an identifier.
func IsWordByte(c byte) bool {
	return isWord(c)
}
