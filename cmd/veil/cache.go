package main

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/panbanda/veil/internal/cache"
	"github.com/panbanda/veil/internal/output"
)

func cacheCmd() *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Lexing cache maintenance",
		Subcommands: []*cli.Command{
			{
				Name:   "stats",
				Usage:  "Show cache size and age",
				Action: runCacheStats,
			},
			{
				Name:   "clear",
				Usage:  "Remove every cache entry",
				Action: runCacheClear,
			},
		},
	}
}

func openCache(c *cli.Context) (*cache.Cache, *output.Formatter, error) {
	loaded, err := loadConfig(c)
	if err != nil {
		return nil, nil, err
	}
	cfg := loaded.Config
	lexCache, err := cache.New(cfg.Cache.Dir, cfg.Cache.TTL, cfg.Cache.Enabled)
	if err != nil {
		return nil, nil, err
	}
	formatter, err := newFormatter(c, cfg)
	if err != nil {
		return nil, nil, err
	}
	return lexCache, formatter, nil
}

func runCacheStats(c *cli.Context) error {
	lexCache, formatter, err := openCache(c)
	if err != nil {
		return err
	}
	defer formatter.Close()

	if !lexCache.Enabled() {
		formatter.Warning("Cache is disabled")
		return nil
	}
	stats, err := lexCache.GetStats()
	if err != nil {
		return fmt.Errorf("read cache: %w", err)
	}
	rows := [][]string{
		{"Entries", fmt.Sprint(stats.Entries)},
		{"Size", fmt.Sprintf("%d bytes", stats.TotalSize)},
		{"Oldest", stats.OldestAge.Round(time.Second).String()},
		{"Newest", stats.NewestAge.Round(time.Second).String()},
	}
	return formatter.Output(output.NewTable("Cache", []string{"Metric", "Value"}, rows, nil, stats))
}

func runCacheClear(c *cli.Context) error {
	lexCache, formatter, err := openCache(c)
	if err != nil {
		return err
	}
	defer formatter.Close()

	if err := lexCache.Clear(); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	formatter.Success("Cache cleared")
	return nil
}
