package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/panbanda/veil/internal/batch"
	"github.com/panbanda/veil/internal/output"
	"github.com/panbanda/veil/internal/progress"
	"github.com/panbanda/veil/internal/scanner"
	"github.com/panbanda/veil/pkg/verify"
)

func verifyCmd() *cli.Command {
	return &cli.Command{
		Name:      "verify",
		Usage:     "Compare the syntax errors of inputs and their obfuscated outputs",
		ArgsUsage: "[path...]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "out-dir",
				Aliases: []string{"o"},
				Usage:   "Directory holding the rewritten files",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Parallel workers (0 = 2x CPU count)",
			},
		},
		Action: runVerifyCmd,
	}
}

func runVerifyCmd(c *cli.Context) error {
	loaded, err := loadConfig(c)
	if err != nil {
		return err
	}
	cfg := loaded.Config
	if c.IsSet("out-dir") {
		cfg.Obfuscate.OutDir = c.String("out-dir")
	}
	if c.IsSet("workers") {
		cfg.Obfuscate.Workers = c.Int("workers")
	}
	cfg.Exclude.Dirs = append(cfg.Exclude.Dirs, filepath.Base(cfg.Obfuscate.OutDir))

	formatter, err := newFormatter(c, cfg)
	if err != nil {
		return err
	}
	defer formatter.Close()

	files, warnings, err := scanner.NewScanner(cfg).Discover(getPaths(c))
	if err != nil {
		return err
	}
	for _, w := range warnings {
		formatter.Warning("%s", w)
	}
	if len(files) == 0 {
		formatter.Warning("No source files found")
		return nil
	}

	opts := []batch.Option{batch.WithWorkers(cfg.Obfuscate.Workers)}
	if formatter.Format() == output.FormatText {
		w := c.App.ErrWriter
		opts = append(opts, batch.WithProgress(func(label string, total int) batch.Progress {
			return progress.NewTracker(w, label, total)
		}))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := batch.CommonRoot(files)
	results, errs := batch.New(nil, opts...).VerifyOutputs(ctx, files, root, cfg.Obfuscate.OutDir)

	if err := formatter.Output(verifyTable(results, root, formatter.Colored())); err != nil {
		return err
	}
	if errs != nil {
		for _, pe := range errs.Sorted() {
			formatter.Warning("%v", pe.Err)
		}
	}

	var regressed int
	for _, r := range results {
		if !r.OK() {
			regressed++
		}
	}
	switch {
	case regressed > 0:
		return fmt.Errorf("%s gained syntax errors", plural(regressed, "output file"))
	case errs != nil:
		return fmt.Errorf("%s could not be verified", plural(len(errs.Errors), "file"))
	}
	formatter.Success("All %s parse no worse than their inputs", plural(len(results), "output"))
	return nil
}

func verifyTable(results []verify.Result, root string, colored bool) *output.Table {
	rows := make([][]string, len(results))
	for i, r := range results {
		status := "ok"
		if !r.OK() {
			status = "regressed"
			if colored {
				status = color.RedString(status)
			}
		}
		var issues []string
		for _, is := range r.Issues {
			issues = append(issues, is.String())
		}
		path := r.Path
		if rel, err := filepath.Rel(root, r.Path); err == nil {
			path = rel
		}
		rows[i] = []string{
			path,
			string(r.Language),
			fmt.Sprint(r.InputErrors),
			fmt.Sprint(r.OutputErrors),
			status,
			strings.Join(issues, "; "),
		}
	}
	return output.NewTable("Verification",
		[]string{"File", "Language", "Input errors", "Output errors", "Status", "Issues"},
		rows, nil, results)
}
