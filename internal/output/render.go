package output

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// Renderable is a result that renders itself as text or Markdown, and
// exposes the value serialized for JSON and TOON.
type Renderable interface {
	RenderText(w io.Writer, colored bool) error
	RenderMarkdown(w io.Writer) error
	RenderData() any
}

// Report is a titled sequence of sections and tables. Data, when set, is
// what JSON and TOON serialize instead of the parts.
type Report struct {
	Title    string
	Sections []Renderable
	Data     any
}

func (r *Report) RenderData() any {
	if r.Data != nil {
		return r.Data
	}
	parts := make([]any, len(r.Sections))
	for i, s := range r.Sections {
		parts[i] = s.RenderData()
	}
	return map[string]any{"title": r.Title, "sections": parts}
}

func (r *Report) RenderText(w io.Writer, colored bool) error {
	heading(w, r.Title, '=', colored, color.Bold, color.FgCyan)
	for i, s := range r.Sections {
		if i > 0 {
			fmt.Fprintln(w)
		}
		if err := s.RenderText(w, colored); err != nil {
			return err
		}
	}
	return nil
}

func (r *Report) RenderMarkdown(w io.Writer) error {
	if r.Title != "" {
		fmt.Fprintf(w, "# %s\n\n", r.Title)
	}
	for _, s := range r.Sections {
		if err := s.RenderMarkdown(w); err != nil {
			return err
		}
	}
	return nil
}

// Section is a titled block of preformatted lines, such as a summary whose
// labels are already aligned.
type Section struct {
	Title string   `json:"title,omitempty" toon:"title,omitempty"`
	Lines []string `json:"lines" toon:"lines"`
}

func (s *Section) RenderData() any {
	return s
}

func (s *Section) RenderText(w io.Writer, colored bool) error {
	heading(w, s.Title, '-', colored, color.Bold)
	for _, l := range s.Lines {
		fmt.Fprintln(w, l)
	}
	return nil
}

// RenderMarkdown keeps the lines in a text block so their alignment
// survives.
func (s *Section) RenderMarkdown(w io.Writer) error {
	if s.Title != "" {
		fmt.Fprintf(w, "## %s\n\n", s.Title)
	}
	if len(s.Lines) > 0 {
		fmt.Fprintf(w, "```text\n%s\n```\n\n", strings.Join(s.Lines, "\n"))
	}
	return nil
}

// Table is a titled table. Columns whose body cells are all integers are
// right-aligned. Data, when set, is what JSON and TOON serialize instead of
// the cells.
type Table struct {
	Title   string     `json:"title,omitempty" toon:"title,omitempty"`
	Headers []string   `json:"headers" toon:"headers"`
	Rows    [][]string `json:"rows" toon:"rows"`
	Footer  []string   `json:"footer,omitempty" toon:"footer,omitempty"`
	Data    any        `json:"-" toon:"-"`
}

// NewTable creates a table.
func NewTable(title string, headers []string, rows [][]string, footer []string, data any) *Table {
	return &Table{Title: title, Headers: headers, Rows: rows, Footer: footer, Data: data}
}

func (t *Table) RenderData() any {
	if t.Data != nil {
		return t.Data
	}
	return t
}

// numeric reports, per column, whether every non-empty body cell parses as
// an integer. A column with no such cells is not numeric.
func (t *Table) numeric() []bool {
	out := make([]bool, len(t.Headers))
	for col := range out {
		seen := false
		out[col] = true
		for _, row := range t.Rows {
			if col >= len(row) || row[col] == "" {
				continue
			}
			seen = true
			if _, err := strconv.Atoi(row[col]); err != nil {
				out[col] = false
				break
			}
		}
		out[col] = out[col] && seen
	}
	return out
}

func (t *Table) RenderText(w io.Writer, colored bool) error {
	heading(w, t.Title, '-', colored, color.Bold)

	align := make([]tw.Align, len(t.Headers))
	for i, num := range t.numeric() {
		align[i] = tw.AlignLeft
		if num {
			align[i] = tw.AlignRight
		}
	}
	table := tablewriter.NewTable(w,
		tablewriter.WithConfig(tablewriter.Config{
			Header: tw.CellConfig{
				Alignment:  tw.CellAlignment{Global: tw.AlignLeft, PerColumn: align},
				Formatting: tw.CellFormatting{AutoFormat: tw.On},
			},
			Row: tw.CellConfig{
				Alignment: tw.CellAlignment{Global: tw.AlignLeft, PerColumn: align},
			},
			Footer: tw.CellConfig{
				Alignment: tw.CellAlignment{Global: tw.AlignLeft},
			},
		}),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.Border{Left: tw.Off, Right: tw.Off, Top: tw.Off, Bottom: tw.Off},
			Settings: tw.Settings{
				Separators: tw.Separators{BetweenColumns: tw.Off},
			},
		}),
	)

	table.Header(t.Headers)
	for _, row := range t.Rows {
		if err := table.Append(row); err != nil {
			return err
		}
	}
	if len(t.Footer) > 0 {
		cells := make([]any, len(t.Footer))
		for i, c := range t.Footer {
			cells[i] = c
		}
		table.Footer(cells...)
	}
	return table.Render()
}

func (t *Table) RenderMarkdown(w io.Writer) error {
	if t.Title != "" {
		fmt.Fprintf(w, "## %s\n\n", t.Title)
	}
	seps := make([]string, len(t.Headers))
	for i, num := range t.numeric() {
		seps[i] = "---"
		if num {
			seps[i] = "---:"
		}
	}
	writeRow(w, t.Headers)
	writeRow(w, seps)
	for _, row := range t.Rows {
		writeRow(w, row)
	}
	if len(t.Footer) > 0 {
		writeRow(w, t.Footer)
	}
	fmt.Fprintln(w)
	return nil
}

func writeRow(w io.Writer, cells []string) {
	escaped := make([]string, len(cells))
	for i, c := range cells {
		escaped[i] = strings.ReplaceAll(c, "|", `\|`)
	}
	fmt.Fprintf(w, "| %s |\n", strings.Join(escaped, " | "))
}

// heading writes title underlined with rule, followed by a blank line.
func heading(w io.Writer, title string, rule byte, colored bool, attrs ...color.Attribute) {
	if title == "" {
		return
	}
	if colored {
		color.New(attrs...).Fprintln(w, title)
	} else {
		fmt.Fprintln(w, title)
	}
	fmt.Fprintf(w, "%s\n\n", strings.Repeat(string(rule), len(title)))
}
