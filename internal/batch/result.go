package batch

import (
	"github.com/panbanda/veil/internal/fileproc"
	"github.com/panbanda/veil/pkg/lexer"
	"github.com/panbanda/veil/pkg/rename"
	"github.com/panbanda/veil/pkg/verify"
)

// Status is the state a file reached in a batch.
type Status string

const (
	StatusPending    Status = "pending"
	StatusClassified Status = "classified"
	StatusWritten    Status = "written"
	StatusFailed     Status = "failed"
)

// FileResult describes one input file.
type FileResult struct {
	Path      string
	Rel       string
	Output    string
	Status    Status
	Tokens    int
	Renamed   int
	Protected int
	DeadCode  int
	Bytes     int
	Digest    string
	CacheHit  bool
	Warnings  []lexer.Warning
	Verify    *verify.Result
	Err       error
}

// Result is the outcome of a batch.
type Result struct {
	Root      string
	OutDir    string
	DryRun    bool
	Files     []FileResult
	Pairs     []rename.Pair
	Protected []rename.Decision
	Stats     rename.Stats
	// Ordinals counts every name issued, including injected code.
	Ordinals int
}

// Succeeded returns the number of files that completed.
func (r *Result) Succeeded() int {
	n := 0
	for _, f := range r.Files {
		if f.Status == StatusWritten || f.Status == StatusClassified {
			n++
		}
	}
	return n
}

// Failures collects the per-file errors, or nil when there are none.
func (r *Result) Failures() *fileproc.ProcessingErrors {
	errs := &fileproc.ProcessingErrors{}
	for _, f := range r.Files {
		if f.Status == StatusFailed {
			errs.Add(f.Path, f.Err)
		}
	}
	if !errs.HasErrors() {
		return nil
	}
	return errs
}

// VerifyFailures lists the files whose output has new syntax errors.
func (r *Result) VerifyFailures() []FileResult {
	var out []FileResult
	for _, f := range r.Files {
		if f.Verify != nil && !f.Verify.OK() {
			out = append(out, f)
		}
	}
	return out
}

// Warnings returns every malformed-span warning, prefixed with its file.
func (r *Result) Warnings() []string {
	var out []string
	for _, f := range r.Files {
		for _, w := range f.Warnings {
			out = append(out, f.Rel+": "+w.Error())
		}
	}
	return out
}
