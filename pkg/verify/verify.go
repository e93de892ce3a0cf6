// Package verify checks rewritten sources for syntax errors with the
// tree-sitter C and C++ grammars.
package verify

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"
	"github.com/smacker/go-tree-sitter/cpp"
)

// Language is a grammar the verifier can parse.
type Language string

const (
	LangC   Language = "c"
	LangCPP Language = "cpp"
)

// LanguageFor picks the grammar for a file name.
func LanguageFor(path string) Language {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".c", ".h":
		return LangC
	}
	return LangCPP
}

func grammar(lang Language) (*sitter.Language, error) {
	switch lang {
	case LangC:
		return c.GetLanguage(), nil
	case LangCPP:
		return cpp.GetLanguage(), nil
	}
	return nil, fmt.Errorf("unsupported language: %s", lang)
}

// Issue is one ERROR or MISSING node in a syntax tree.
type Issue struct {
	Line    int    `json:"line"`
	Column  int    `json:"column"`
	Missing bool   `json:"missing,omitempty"`
	Snippet string `json:"snippet,omitempty"`
}

func (i Issue) String() string {
	kind := "syntax error"
	if i.Missing {
		kind = "missing token"
	}
	if i.Snippet == "" {
		return fmt.Sprintf("%d:%d: %s", i.Line, i.Column, kind)
	}
	return fmt.Sprintf("%d:%d: %s near %q", i.Line, i.Column, kind, i.Snippet)
}

// Result compares the syntax errors of an input and its rewritten output.
type Result struct {
	Path         string   `json:"path"`
	Language     Language `json:"language"`
	InputErrors  int      `json:"input_errors"`
	OutputErrors int      `json:"output_errors"`
	Issues       []Issue  `json:"issues,omitempty"`
}

// OK reports whether the rewrite introduced no new syntax errors. Inputs the
// grammar already rejects are judged relative to their own error count.
func (r Result) OK() bool {
	return r.OutputErrors <= r.InputErrors
}

// Verifier wraps a tree-sitter parser. It is not safe for concurrent use.
type Verifier struct {
	parser *sitter.Parser
}

// New creates a verifier.
func New() *Verifier {
	return &Verifier{parser: sitter.NewParser()}
}

// Close releases parser resources.
func (v *Verifier) Close() {
	v.parser.Close()
}

const maxSnippet = 40

// Check parses src and returns its error and missing nodes in source order.
func (v *Verifier) Check(ctx context.Context, src []byte, lang Language) ([]Issue, error) {
	g, err := grammar(lang)
	if err != nil {
		return nil, err
	}
	v.parser.SetLanguage(g)
	tree, err := v.parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("failed to parse: %w", err)
	}
	defer tree.Close()

	var issues []Issue
	collect(tree.RootNode(), src, &issues)
	return issues, nil
}

func collect(node *sitter.Node, src []byte, issues *[]Issue) {
	if node == nil {
		return
	}
	if node.IsError() || node.IsMissing() {
		p := node.StartPoint()
		snippet := node.Content(src)
		if i := strings.IndexByte(snippet, '\n'); i >= 0 {
			snippet = snippet[:i]
		}
		if len(snippet) > maxSnippet {
			snippet = snippet[:maxSnippet]
		}
		*issues = append(*issues, Issue{
			Line:    int(p.Row) + 1,
			Column:  int(p.Column) + 1,
			Missing: node.IsMissing(),
			Snippet: snippet,
		})
		if node.IsMissing() {
			return
		}
	}
	if !node.HasError() {
		return
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		collect(node.Child(i), src, issues)
	}
}

// Compare checks input and output of one file.
func (v *Verifier) Compare(ctx context.Context, path string, input, output []byte) (Result, error) {
	lang := LanguageFor(path)
	in, err := v.Check(ctx, input, lang)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", path, err)
	}
	out, err := v.Check(ctx, output, lang)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", path, err)
	}
	return Result{
		Path:         path,
		Language:     lang,
		InputErrors:  len(in),
		OutputErrors: len(out),
		Issues:       out,
	}, nil
}
