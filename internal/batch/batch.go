// Package batch runs the obfuscation pipeline over a set of files with one
// shared naming context.
//
// Files are processed in sorted order. Reading, lexing and pinning run in
// parallel; classification, name allocation and dead-code injection run
// sequentially so that names depend only on the inputs. Whitespace
// randomization, verification and writing run in parallel again.
package batch

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/panbanda/veil/internal/cache"
	"github.com/panbanda/veil/internal/fileproc"
	"github.com/panbanda/veil/pkg/deadcode"
	"github.com/panbanda/veil/pkg/keep"
	"github.com/panbanda/veil/pkg/lexer"
	"github.com/panbanda/veil/pkg/rename"
	"github.com/panbanda/veil/pkg/source"
	"github.com/panbanda/veil/pkg/spacing"
	"github.com/panbanda/veil/pkg/verify"
)

// FileError is an I/O failure on one file. The batch skips the file and
// continues with the others.
type FileError struct {
	Path string
	Op   string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// Progress reports per-file progress of one phase.
type Progress interface {
	Tick()
	FinishSuccess()
}

// ProgressFunc starts progress reporting for a phase over total files.
type ProgressFunc func(label string, total int) Progress

// Runner executes batches.
type Runner struct {
	keep     *keep.Set
	source   source.ContentSource
	sink     source.ContentSink
	cache    *cache.Cache
	injector *deadcode.Injector
	spacer   *spacing.Spacer
	logger   *zap.Logger
	workers  int
	verify   bool
	progress ProgressFunc
}

// Option configures a Runner.
type Option func(*Runner)

// WithSource sets where input files are read from.
func WithSource(src source.ContentSource) Option {
	return func(r *Runner) {
		r.source = src
	}
}

// WithSink sets where rewritten files are written.
func WithSink(sink source.ContentSink) Option {
	return func(r *Runner) {
		r.sink = sink
	}
}

// WithCache enables the lexing cache.
func WithCache(c *cache.Cache) Option {
	return func(r *Runner) {
		r.cache = c
	}
}

// WithDeadCode injects dead code into every rewritten file.
func WithDeadCode(in *deadcode.Injector) Option {
	return func(r *Runner) {
		r.injector = in
	}
}

// WithSpacing randomizes whitespace of every rewritten file.
func WithSpacing(sp *spacing.Spacer) Option {
	return func(r *Runner) {
		r.spacer = sp
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithWorkers bounds the parallel phases. Values <= 0 use the default.
func WithWorkers(n int) Option {
	return func(r *Runner) {
		r.workers = n
	}
}

// WithVerify compares the syntax errors of every output with its input.
func WithVerify(enabled bool) Option {
	return func(r *Runner) {
		r.verify = enabled
	}
}

// WithProgress reports progress of the parallel phases.
func WithProgress(fn ProgressFunc) Option {
	return func(r *Runner) {
		r.progress = fn
	}
}

// New creates a runner protecting the identifiers in set.
func New(set *keep.Set, opts ...Option) *Runner {
	fs := source.NewFilesystem()
	r := &Runner{
		keep:   set,
		source: fs,
		sink:   fs,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunOptions describe one batch.
type RunOptions struct {
	// OutDir receives each output at its path relative to Root.
	OutDir string
	// Root is the directory input paths are made relative to. Defaults to
	// the deepest directory containing every input.
	Root string
	// DryRun stops after classification. Nothing is rewritten or written.
	DryRun bool
	// Seed continues an earlier mapping.
	Seed []rename.Pair
}

type lexed struct {
	file *lexer.File
	hit  bool
}

// Run processes files. Per-file I/O failures are recorded in the result and
// do not stop the batch. An invariant violation aborts the batch; the
// returned result then lists the files completed before the stop.
func (r *Runner) Run(ctx context.Context, files []string, opts RunOptions) (*Result, error) {
	files = sortUnique(files)
	root := opts.Root
	if root == "" {
		root = CommonRoot(files)
	}

	res := &Result{
		Root:   root,
		OutDir: opts.OutDir,
		DryRun: opts.DryRun,
		Files:  make([]FileResult, len(files)),
	}
	index := make(map[string]int, len(files))
	for i, path := range files {
		res.Files[i] = FileResult{Path: path, Rel: relPath(root, path), Status: StatusPending}
		index[path] = i
	}

	nc := rename.NewContext(r.keep, rename.WithLogger(r.logger.Named("rename")))

	// Read, lex and pin every file. Pinning is order independent.
	tracker := r.track("Lexing", len(files))
	lexResults := fileproc.MapFiles(ctx, files, r.workers, func(_ context.Context, path string) (lexed, error) {
		src, err := r.source.Read(path)
		if err != nil {
			return lexed{}, &FileError{Path: path, Op: "read", Err: err}
		}
		f, hit := r.cache.Lex(path, src)
		nc.Pin(f)
		return lexed{file: f, hit: hit}, nil
	}, tracker.Tick)
	tracker.FinishSuccess()
	if err := ctx.Err(); err != nil {
		return res, err
	}

	if len(opts.Seed) > 0 {
		if err := nc.Seed(opts.Seed); err != nil {
			return res, fmt.Errorf("extend map: %w", err)
		}
	}

	// Classify in file order; the first sight of an identifier fixes its name.
	decisions := make([][]rename.Decision, len(files))
	for i, lr := range lexResults {
		fr := &res.Files[i]
		if lr.Err != nil {
			r.fail(fr, lr.Err)
			continue
		}
		f := lr.Value.file
		fr.CacheHit = lr.Value.hit
		fr.Warnings = f.Warnings
		for _, w := range f.Warnings {
			r.logger.Warn("malformed span",
				zap.String("file", fr.Rel),
				zap.Int("line", w.Line),
				zap.String("message", w.Message))
		}

		ds, err := nc.Classify(f)
		if err != nil {
			r.finish(res, nc)
			return res, fmt.Errorf("classify %s: %w", fr.Rel, err)
		}
		decisions[i] = ds
		fr.Tokens = len(ds)
		for _, d := range ds {
			if d.Reason.Protected() {
				fr.Protected++
			} else {
				fr.Renamed++
			}
		}
	}

	if opts.DryRun {
		for i := range res.Files {
			if res.Files[i].Status == StatusPending {
				res.Files[i].Status = StatusClassified
			}
		}
		r.finish(res, nc)
		return res, nil
	}

	// Rewrite and inject in file order; injected names follow all real ones.
	outputs := make([][]byte, len(files))
	pending := make([]string, 0, len(files))
	for i, lr := range lexResults {
		fr := &res.Files[i]
		if fr.Status != StatusPending {
			continue
		}
		out := rename.Rewrite(lr.Value.file, decisions[i])
		if r.injector.Enabled() {
			injected, frags, err := r.injector.Inject(out, deadcode.TargetFor(fr.Path), nc)
			if err != nil {
				r.finish(res, nc)
				return res, fmt.Errorf("inject %s: %w", fr.Rel, err)
			}
			out = injected
			fr.DeadCode = len(frags)
		}
		outputs[i] = out
		pending = append(pending, fr.Path)
	}
	r.finish(res, nc)

	tracker = r.track("Writing", len(pending))
	written := fileproc.MapFilesWithResource(ctx, pending, r.workers,
		r.newVerifier,
		func(v *verify.Verifier) {
			if v != nil {
				v.Close()
			}
		},
		func(ctx context.Context, v *verify.Verifier, path string) (FileResult, error) {
			i := index[path]
			fr := res.Files[i]
			out := outputs[i]
			if r.spacer.Enabled() {
				out = r.spacer.Apply(fr.Rel, out)
			}
			if v != nil {
				vr, err := v.Compare(ctx, path, lexResults[i].Value.file.Src, out)
				if err != nil {
					return fr, err
				}
				fr.Verify = &vr
			}
			fr.Output = filepath.Join(opts.OutDir, fr.Rel)
			if err := r.sink.Write(fr.Output, out); err != nil {
				return fr, &FileError{Path: fr.Output, Op: "write", Err: err}
			}
			fr.Digest = cache.HashBytes(out)
			fr.Bytes = len(out)
			return fr, nil
		},
		tracker.Tick,
	)
	tracker.FinishSuccess()

	for _, w := range written {
		i := index[w.Path]
		if w.Err != nil {
			r.fail(&res.Files[i], w.Err)
			continue
		}
		res.Files[i] = w.Value
		res.Files[i].Status = StatusWritten
		if vr := w.Value.Verify; vr != nil && !vr.OK() {
			r.logger.Warn("output has new syntax errors",
				zap.String("file", w.Value.Rel),
				zap.Int("input_errors", vr.InputErrors),
				zap.Int("output_errors", vr.OutputErrors))
		}
	}
	return res, ctx.Err()
}

func (r *Runner) newVerifier() (*verify.Verifier, error) {
	if !r.verify {
		return nil, nil
	}
	return verify.New(), nil
}

func (r *Runner) fail(fr *FileResult, err error) {
	fr.Status = StatusFailed
	fr.Err = err
	r.logger.Warn("file failed", zap.String("file", fr.Rel), zap.Error(err))
}

func (r *Runner) finish(res *Result, nc *rename.Context) {
	res.Pairs = nc.Map().Pairs()
	res.Stats = nc.Stats()
	res.Protected = nc.ProtectedNames()
	res.Ordinals = nc.Counter().Count()
}

type nopProgress struct{}

func (nopProgress) Tick()          {}
func (nopProgress) FinishSuccess() {}

func (r *Runner) track(label string, total int) Progress {
	if r.progress == nil || total == 0 {
		return nopProgress{}
	}
	if p := r.progress(label, total); p != nil {
		return p
	}
	return nopProgress{}
}

// VerifyOutputs compares every input with its output under outDir, as
// written by an earlier Run with the same root.
func (r *Runner) VerifyOutputs(ctx context.Context, files []string, root, outDir string) ([]verify.Result, *fileproc.ProcessingErrors) {
	files = sortUnique(files)
	if root == "" {
		root = CommonRoot(files)
	}
	tracker := r.track("Verifying", len(files))
	results := fileproc.MapFilesWithResource(ctx, files, r.workers,
		func() (*verify.Verifier, error) { return verify.New(), nil },
		(*verify.Verifier).Close,
		func(ctx context.Context, v *verify.Verifier, path string) (verify.Result, error) {
			in, err := r.source.Read(path)
			if err != nil {
				return verify.Result{}, &FileError{Path: path, Op: "read", Err: err}
			}
			outPath := filepath.Join(outDir, relPath(root, path))
			out, err := r.source.Read(outPath)
			if err != nil {
				return verify.Result{}, &FileError{Path: outPath, Op: "read", Err: err}
			}
			return v.Compare(ctx, path, in, out)
		},
		tracker.Tick,
	)
	tracker.FinishSuccess()
	return fileproc.Collect(results)
}

// CommonRoot returns the deepest directory containing every path. Paths are
// made absolute first.
func CommonRoot(paths []string) string {
	var root []string
	for i, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			abs = p
		}
		parts := strings.Split(filepath.Dir(abs), string(filepath.Separator))
		if i == 0 {
			root = parts
			continue
		}
		n := 0
		for n < len(root) && n < len(parts) && root[n] == parts[n] {
			n++
		}
		root = root[:n]
	}
	if root == nil {
		return "."
	}
	joined := strings.Join(root, string(filepath.Separator))
	if joined == "" {
		return string(filepath.Separator)
	}
	return joined
}

// relPath returns path relative to root. Paths outside root keep only their
// base name.
func relPath(root, path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Base(path)
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return filepath.Base(path)
	}
	rel, err := filepath.Rel(absRoot, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.Base(path)
	}
	return rel
}

func sortUnique(files []string) []string {
	out := make([]string, 0, len(files))
	seen := make(map[string]struct{}, len(files))
	for _, f := range files {
		f = filepath.Clean(f)
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}
