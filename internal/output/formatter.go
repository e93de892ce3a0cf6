// Package output renders command results as text, JSON, Markdown or TOON.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	toon "github.com/toon-format/toon-go"
)

// Format represents an output format.
type Format string

const (
	FormatText     Format = "text"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
	FormatTOON     Format = "toon"
)

// ParseFormat converts a string to Format, defaulting to text.
func ParseFormat(s string) Format {
	switch strings.ToLower(s) {
	case "json":
		return FormatJSON
	case "markdown", "md":
		return FormatMarkdown
	case "toon":
		return FormatTOON
	default:
		return FormatText
	}
}

// Formatter writes results in one format. Results go to the result writer
// (stdout or the --report file); status lines go to the status writer so
// JSON and TOON output stay machine-readable.
type Formatter struct {
	format  Format
	writer  io.Writer
	status  io.Writer
	file    *os.File
	colored bool
}

// Option configures a Formatter.
type Option func(*Formatter)

// WithWriter sends results to w instead of stdout. Ignored when a report
// file is given.
func WithWriter(w io.Writer) Option {
	return func(f *Formatter) {
		if f.file == nil {
			f.writer = w
		}
	}
}

// WithStatus sends status lines to w instead of stderr.
func WithStatus(w io.Writer) Option {
	return func(f *Formatter) {
		f.status = w
	}
}

// NewFormatter creates a formatter. A non-empty report path sends results to
// that file, uncolored.
func NewFormatter(format Format, report string, colored bool, opts ...Option) (*Formatter, error) {
	f := &Formatter{format: format, writer: os.Stdout, status: os.Stderr, colored: colored}
	if report != "" {
		file, err := os.Create(report)
		if err != nil {
			return nil, err
		}
		f.writer, f.file, f.colored = file, file, false
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Close closes the report file, if any. It is safe to call twice.
func (f *Formatter) Close() error {
	if f.file == nil {
		return nil
	}
	err := f.file.Close()
	f.file = nil
	return err
}

// Format returns the configured format.
func (f *Formatter) Format() Format {
	return f.format
}

// Colored reports whether text output is colored.
func (f *Formatter) Colored() bool {
	return f.colored
}

// Output writes r in the configured format.
func (f *Formatter) Output(r Renderable) error {
	switch f.format {
	case FormatJSON:
		enc := json.NewEncoder(f.writer)
		enc.SetIndent("", "  ")
		return enc.Encode(r.RenderData())
	case FormatTOON:
		out, err := toon.Marshal(r.RenderData(), toon.WithIndent(2))
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(f.writer, string(out))
		return err
	case FormatMarkdown:
		return r.RenderMarkdown(f.writer)
	default:
		return r.RenderText(f.writer, f.colored)
	}
}

func (f *Formatter) Success(format string, args ...any) {
	f.message(color.FgGreen, "", format, args...)
}

func (f *Formatter) Warning(format string, args ...any) {
	f.message(color.FgYellow, "WARNING: ", format, args...)
}

func (f *Formatter) Error(format string, args ...any) {
	f.message(color.FgRed, "ERROR: ", format, args...)
}

func (f *Formatter) Info(format string, args ...any) {
	f.message(color.FgCyan, "", format, args...)
}

// message writes one status line. The prefix marks severity when there is
// no color to do it.
func (f *Formatter) message(c color.Attribute, prefix, format string, args ...any) {
	if f.colored {
		color.New(c).Fprintf(f.status, format+"\n", args...)
		return
	}
	fmt.Fprintf(f.status, prefix+format+"\n", args...)
}
