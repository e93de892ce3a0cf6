package batch

import (
	"fmt"
	"sort"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gonum.org/v1/gonum/stat"

	"github.com/panbanda/veil/internal/output"
	"github.com/panbanda/veil/pkg/rename"
)

// CandidateLimit caps the identifiers listed by a dry run.
const CandidateLimit = 200

// Summary is the machine-readable summary of a batch.
type Summary struct {
	Files          int            `json:"files" toon:"files"`
	Succeeded      int            `json:"succeeded" toon:"succeeded"`
	Failed         int            `json:"failed" toon:"failed"`
	Tokens         int            `json:"tokens" toon:"tokens"`
	Renamed        int            `json:"renamed" toon:"renamed"`
	Protected      int            `json:"protected" toon:"protected"`
	Identifiers    int            `json:"identifiers" toon:"identifiers"`
	Mapped         int            `json:"mapped" toon:"mapped"`
	DeadCode       int            `json:"dead_code" toon:"dead_code"`
	VerifyFailures int            `json:"verify_failures" toon:"verify_failures"`
	RenamedMean    float64        `json:"renamed_per_file_mean" toon:"renamed_per_file_mean"`
	RenamedStdDev  float64        `json:"renamed_per_file_stddev" toon:"renamed_per_file_stddev"`
	ByReason       map[string]int `json:"by_reason" toon:"by_reason"`
	OutDir         string         `json:"out_dir,omitempty" toon:"out_dir,omitempty"`
	MapFile        string         `json:"map_file,omitempty" toon:"map_file,omitempty"`
	DryRun         bool           `json:"dry_run" toon:"dry_run"`
}

// FileRow is one file in a report.
type FileRow struct {
	Path         string `json:"path" toon:"path"`
	Output       string `json:"output,omitempty" toon:"output,omitempty"`
	Status       string `json:"status" toon:"status"`
	Tokens       int    `json:"tokens" toon:"tokens"`
	Renamed      int    `json:"renamed" toon:"renamed"`
	Protected    int    `json:"protected" toon:"protected"`
	DeadCode     int    `json:"dead_code" toon:"dead_code"`
	Warnings     int    `json:"warnings" toon:"warnings"`
	VerifyErrors int    `json:"verify_errors,omitempty" toon:"verify_errors,omitempty"`
	Digest       string `json:"blake3,omitempty" toon:"blake3,omitempty"`
	Error        string `json:"error,omitempty" toon:"error,omitempty"`
}

// ProtectedRow is one identifier that kept its name.
type ProtectedRow struct {
	Name   string `json:"name" toon:"name"`
	Reason string `json:"reason" toon:"reason"`
}

// ReportData is the serialized form of a batch report.
type ReportData struct {
	Summary    Summary        `json:"summary" toon:"summary"`
	Files      []FileRow      `json:"files" toon:"files"`
	Candidates []rename.Pair  `json:"candidates,omitempty" toon:"candidates,omitempty"`
	Protected  []ProtectedRow `json:"protected,omitempty" toon:"protected,omitempty"`
	Warnings   []string       `json:"warnings,omitempty" toon:"warnings,omitempty"`
}

// Summarize computes the summary of r. mapFile is the persisted mapping, if
// any.
func (r *Result) Summarize(mapFile string) Summary {
	s := Summary{
		Files:       len(r.Files),
		Succeeded:   r.Succeeded(),
		Tokens:      r.Stats.Tokens,
		Renamed:     r.Stats.Renamed,
		Protected:   r.Stats.Protected,
		Identifiers: r.Stats.Unique,
		Mapped:      len(r.Pairs),
		ByReason:    r.Stats.ByReason,
		MapFile:     mapFile,
		DryRun:      r.DryRun,
	}
	if !r.DryRun {
		s.OutDir = r.OutDir
	}
	var perFile []float64
	for _, f := range r.Files {
		if f.Status == StatusFailed {
			s.Failed++
			continue
		}
		s.DeadCode += f.DeadCode
		perFile = append(perFile, float64(f.Renamed))
	}
	s.VerifyFailures = len(r.VerifyFailures())
	if len(perFile) > 0 {
		s.RenamedMean, s.RenamedStdDev = stat.MeanStdDev(perFile, nil)
		if len(perFile) == 1 {
			s.RenamedStdDev = 0
		}
	}
	return s
}

// Data returns the serialized report.
func (r *Result) Data(mapFile string) ReportData {
	d := ReportData{
		Summary:  r.Summarize(mapFile),
		Files:    make([]FileRow, len(r.Files)),
		Warnings: r.Warnings(),
	}
	for i, f := range r.Files {
		row := FileRow{
			Path:      f.Rel,
			Output:    f.Output,
			Status:    string(f.Status),
			Tokens:    f.Tokens,
			Renamed:   f.Renamed,
			Protected: f.Protected,
			DeadCode:  f.DeadCode,
			Warnings:  len(f.Warnings),
			Digest:    f.Digest,
		}
		if f.Verify != nil {
			row.VerifyErrors = f.Verify.OutputErrors
		}
		if f.Err != nil {
			row.Error = f.Err.Error()
		}
		d.Files[i] = row
	}
	if r.DryRun {
		d.Candidates = r.Pairs
		for _, p := range r.Protected {
			d.Protected = append(d.Protected, ProtectedRow{Name: p.Token.Text, Reason: p.Reason.String()})
		}
	}
	return d
}

// Report builds a renderable report of r.
func (r *Result) Report(mapFile string) *output.Report {
	d := r.Data(mapFile)
	p := message.NewPrinter(language.English)
	s := d.Summary

	title := "Obfuscation Report"
	if r.DryRun {
		title = "Obfuscation Preview"
	}

	var lines []string
	lines = append(lines,
		p.Sprintf("Files:        %d (%d succeeded, %d failed)", s.Files, s.Succeeded, s.Failed),
		p.Sprintf("Tokens:       %d (%d renamed, %d protected)", s.Tokens, s.Renamed, s.Protected),
		p.Sprintf("Identifiers:  %d distinct, %d mapped", s.Identifiers, s.Mapped),
		p.Sprintf("Per file:     %.1f renamed on average (stddev %.1f)", s.RenamedMean, s.RenamedStdDev),
	)
	if s.DeadCode > 0 {
		lines = append(lines, p.Sprintf("Dead code:    %d fragments", s.DeadCode))
	}
	if s.OutDir != "" {
		lines = append(lines, "Output:       "+s.OutDir)
	}
	if s.MapFile != "" {
		lines = append(lines, "Mapping:      "+s.MapFile)
	}
	if s.VerifyFailures > 0 {
		lines = append(lines, p.Sprintf("Verify:       %d files with new syntax errors", s.VerifyFailures))
	}

	sections := []output.Renderable{
		&output.Section{Title: "Summary", Lines: lines},
		reasonTable(s.ByReason),
		fileTable(d.Files, r.DryRun),
	}
	if r.DryRun {
		sections = append(sections, candidateTable(d.Candidates))
	}
	if len(d.Warnings) > 0 {
		sections = append(sections, &output.Section{Title: "Warnings", Lines: d.Warnings})
	}
	return &output.Report{Title: title, Sections: sections, Data: d}
}

func reasonTable(byReason map[string]int) *output.Table {
	reasons := make([]string, 0, len(byReason))
	for k := range byReason {
		reasons = append(reasons, k)
	}
	sort.Strings(reasons)
	rows := make([][]string, len(reasons))
	for i, k := range reasons {
		rows[i] = []string{k, fmt.Sprint(byReason[k])}
	}
	return output.NewTable("Classification", []string{"Reason", "Tokens"}, rows, nil, nil)
}

func fileTable(files []FileRow, dryRun bool) *output.Table {
	headers := []string{"File", "Status", "Tokens", "Renamed", "Protected"}
	if !dryRun {
		headers = append(headers, "Dead code", "Output")
	}
	rows := make([][]string, len(files))
	for i, f := range files {
		row := []string{f.Path, f.Status, fmt.Sprint(f.Tokens), fmt.Sprint(f.Renamed), fmt.Sprint(f.Protected)}
		if !dryRun {
			dest := f.Output
			if f.Error != "" {
				dest = f.Error
			}
			row = append(row, fmt.Sprint(f.DeadCode), dest)
		}
		rows[i] = row
	}
	return output.NewTable("Files", headers, rows, nil, nil)
}

func candidateTable(pairs []rename.Pair) *output.Table {
	shown := pairs
	var footer []string
	if len(pairs) > CandidateLimit {
		shown = pairs[:CandidateLimit]
		footer = []string{fmt.Sprintf("... and %d more", len(pairs)-CandidateLimit), ""}
	}
	rows := make([][]string, len(shown))
	for i, p := range shown {
		rows[i] = []string{p.Original, p.Synthetic}
	}
	return output.NewTable("Renameable identifiers", []string{"Identifier", "Name"}, rows, footer, nil)
}
