package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/panbanda/veil/internal/batch"
	"github.com/panbanda/veil/internal/cache"
	"github.com/panbanda/veil/internal/logging"
	"github.com/panbanda/veil/internal/output"
	"github.com/panbanda/veil/internal/progress"
	"github.com/panbanda/veil/internal/scanner"
	"github.com/panbanda/veil/pkg/config"
	"github.com/panbanda/veil/pkg/deadcode"
	"github.com/panbanda/veil/pkg/keep"
	"github.com/panbanda/veil/pkg/mapping"
	"github.com/panbanda/veil/pkg/rename"
	"github.com/panbanda/veil/pkg/spacing"
)

func runFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "out-dir",
			Aliases: []string{"o"},
			Usage:   "Directory receiving the rewritten files",
		},
		&cli.StringSliceFlag{
			Name:    "keep",
			Aliases: []string{"k"},
			Usage:   "Keep-list file of identifiers that must not be renamed (repeatable)",
		},
		&cli.StringSliceFlag{
			Name:  "keep-name",
			Usage: "Identifier that must not be renamed (repeatable)",
		},
		&cli.BoolFlag{
			Name:  "no-std",
			Usage: "Do not protect the built-in standard-library names",
		},
		&cli.StringFlag{
			Name:    "map",
			Aliases: []string{"m"},
			Usage:   "Where to write the mapping file",
		},
		&cli.StringFlag{
			Name:  "extend-map",
			Usage: "Continue the names of an earlier mapping file",
		},
		&cli.BoolFlag{
			Name:  "dead-code",
			Usage: "Inject unreferenced functions and classes",
		},
		&cli.IntFlag{
			Name:  "dead-functions",
			Usage: "Dead functions per file",
		},
		&cli.IntFlag{
			Name:  "dead-classes",
			Usage: "Dead classes per file",
		},
		&cli.StringFlag{
			Name:  "spacing",
			Usage: "Whitespace randomization: none, light, medium, heavy",
		},
		&cli.Uint64Flag{
			Name:  "seed",
			Usage: "Seed for whitespace randomization",
		},
		&cli.IntFlag{
			Name:  "workers",
			Usage: "Parallel workers (0 = 2x CPU count)",
		},
		&cli.BoolFlag{
			Name:  "verify",
			Usage: "Check that outputs parse no worse than their inputs",
		},
		&cli.BoolFlag{
			Name:  "no-cache",
			Usage: "Disable the lexing cache",
		},
	}
}

func runCmd() *cli.Command {
	flags := append(runFlags(), &cli.BoolFlag{
		Name:  "dry-run",
		Usage: "Classify only; list the identifiers that would be renamed",
	})
	return &cli.Command{
		Name:      "run",
		Usage:     "Obfuscate C and C++ sources",
		ArgsUsage: "[path...]",
		Flags:     flags,
		Action: func(c *cli.Context) error {
			return runObfuscate(c, c.Bool("dry-run"))
		},
	}
}

func previewCmd() *cli.Command {
	return &cli.Command{
		Name:      "preview",
		Aliases:   []string{"dry-run"},
		Usage:     "List the identifiers that would be renamed without writing anything",
		ArgsUsage: "[path...]",
		Flags:     runFlags(),
		Action: func(c *cli.Context) error {
			return runObfuscate(c, true)
		},
	}
}

// applyRunFlags overrides cfg with the flags set on the command line.
func applyRunFlags(c *cli.Context, cfg *config.Config) {
	if c.IsSet("out-dir") {
		cfg.Obfuscate.OutDir = c.String("out-dir")
	}
	if c.IsSet("map") {
		cfg.Obfuscate.MapFile = c.String("map")
	}
	if c.IsSet("extend-map") {
		cfg.Obfuscate.ExtendMap = c.String("extend-map")
	}
	if c.IsSet("workers") {
		cfg.Obfuscate.Workers = c.Int("workers")
	}
	if c.IsSet("verify") {
		cfg.Obfuscate.Verify = c.Bool("verify")
	}
	if c.IsSet("keep") {
		cfg.Keep.Files = append(cfg.Keep.Files, c.StringSlice("keep")...)
	}
	if c.IsSet("keep-name") {
		cfg.Keep.Names = append(cfg.Keep.Names, c.StringSlice("keep-name")...)
	}
	if c.Bool("no-std") {
		cfg.Keep.Std = false
	}
	if c.IsSet("dead-code") {
		cfg.DeadCode.Enabled = c.Bool("dead-code")
	}
	if c.IsSet("dead-functions") {
		cfg.DeadCode.Functions = c.Int("dead-functions")
	}
	if c.IsSet("dead-classes") {
		cfg.DeadCode.Classes = c.Int("dead-classes")
	}
	if c.IsSet("spacing") {
		cfg.Spacing.Level = c.String("spacing")
	}
	if c.IsSet("seed") {
		cfg.Spacing.Seed = c.Uint64("seed")
	}
	if c.Bool("no-cache") {
		cfg.Cache.Enabled = false
	}
	// Never read back our own output.
	if out := filepath.Base(cfg.Obfuscate.OutDir); out != "." && out != string(filepath.Separator) {
		cfg.Exclude.Dirs = append(cfg.Exclude.Dirs, out)
	}
}

func runObfuscate(c *cli.Context, dryRun bool) error {
	loaded, err := loadConfig(c)
	if err != nil {
		return err
	}
	cfg := loaded.Config
	applyRunFlags(c, cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	formatter, err := newFormatter(c, cfg)
	if err != nil {
		return err
	}
	defer formatter.Close()

	logger := logging.New(c.App.ErrWriter, verbose(c, cfg))
	defer func() { _ = logger.Sync() }()

	var spinner *progress.Tracker
	if formatter.Format() == output.FormatText {
		spinner = progress.NewSpinner(c.App.ErrWriter, "Scanning")
	}
	files, warnings, err := scanner.NewScanner(cfg).Discover(getPaths(c))
	if err != nil {
		spinner.FinishError(err)
		return err
	}
	spinner.FinishSuccess()
	for _, w := range warnings {
		formatter.Warning("%s", w)
	}
	if len(files) == 0 {
		formatter.Warning("No source files found")
		return nil
	}

	set, err := buildKeepSet(cfg, formatter)
	if err != nil {
		return err
	}

	var seed []rename.Pair
	if cfg.Obfuscate.ExtendMap != "" {
		seed, err = mapping.ReadFile(cfg.Obfuscate.ExtendMap)
		if err != nil {
			return fmt.Errorf("read mapping to extend: %w", err)
		}
		logger.Info("extending mapping", zap.String("file", cfg.Obfuscate.ExtendMap), zap.Int("pairs", len(seed)))
	}

	runner := batch.New(set, runnerOptions(c, cfg, formatter, logger)...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, runErr := runner.Run(ctx, files, batch.RunOptions{
		OutDir: cfg.Obfuscate.OutDir,
		DryRun: dryRun,
		Seed:   seed,
	})

	mapFile := ""
	if !dryRun && runErr == nil {
		if err := mapping.WriteFile(cfg.Obfuscate.MapFile, res.Pairs); err != nil {
			formatter.Error("could not write the mapping file %s", cfg.Obfuscate.MapFile)
			formatter.Error("the files in %s cannot be reversed without it", cfg.Obfuscate.OutDir)
			return err
		}
		mapFile = cfg.Obfuscate.MapFile
	}

	if err := formatter.Output(res.Report(mapFile)); err != nil {
		return err
	}
	if runErr != nil {
		return runErr
	}

	if n := len(res.VerifyFailures()); n > 0 {
		formatter.Warning("%s gained syntax errors", plural(n, "output file"))
	}
	if failures := res.Failures(); failures != nil {
		return fmt.Errorf("%d of %s failed", len(failures.Errors), plural(len(res.Files), "file"))
	}
	if dryRun {
		formatter.Info("Dry run: %s would be renamed", plural(len(res.Pairs), "identifier"))
	} else {
		formatter.Success("Obfuscated %s into %s", plural(res.Succeeded(), "file"), cfg.Obfuscate.OutDir)
	}
	return nil
}

// buildKeepSet combines the built-in names with the configured keep-lists.
// A keep-list that does not exist is a warning.
func buildKeepSet(cfg *config.Config, formatter *output.Formatter) (*keep.Set, error) {
	b := keep.NewBuilder(cfg.Keep.Std).Add(cfg.Keep.Names...)
	for _, path := range cfg.Keep.Files {
		if err := b.ReadFile(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				formatter.Warning("keep-list %s not found, continuing without it", path)
				continue
			}
			return nil, err
		}
	}
	return b.Build(), nil
}

func runnerOptions(c *cli.Context, cfg *config.Config, formatter *output.Formatter, logger *zap.Logger) []batch.Option {
	opts := []batch.Option{
		batch.WithLogger(logging.Named(logger, "batch")),
		batch.WithWorkers(cfg.Obfuscate.Workers),
		batch.WithVerify(cfg.Obfuscate.Verify),
	}

	lexCache, err := cache.New(cfg.Cache.Dir, cfg.Cache.TTL, cfg.Cache.Enabled)
	if err != nil {
		formatter.Warning("cache disabled: %v", err)
	} else {
		opts = append(opts, batch.WithCache(lexCache))
	}

	if cfg.DeadCode.Enabled {
		opts = append(opts, batch.WithDeadCode(deadcode.New(cfg.DeadCode.Functions, cfg.DeadCode.Classes,
			deadcode.WithLogger(logging.Named(logger, "deadcode")))))
	}

	// Validate has already checked the level.
	level, _ := spacing.ParseLevel(cfg.Spacing.Level)
	opts = append(opts, batch.WithSpacing(spacing.New(level, cfg.Spacing.Seed)))

	if formatter.Format() == output.FormatText {
		w := c.App.ErrWriter
		opts = append(opts, batch.WithProgress(func(label string, total int) batch.Progress {
			return progress.NewTracker(w, label, total)
		}))
	}
	return opts
}
