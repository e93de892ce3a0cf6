package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/panbanda/veil/pkg/spacing"
)

// Config holds all configuration options for veil.
type Config struct {
	// Rewrite settings
	Obfuscate ObfuscateConfig `koanf:"obfuscate" toml:"obfuscate" yaml:"obfuscate"`

	// Identifiers that are never renamed
	Keep KeepConfig `koanf:"keep" toml:"keep" yaml:"keep"`

	// Injected unreferenced code
	DeadCode DeadCodeConfig `koanf:"dead_code" toml:"dead_code" yaml:"dead_code"`

	// Whitespace randomization
	Spacing SpacingConfig `koanf:"spacing" toml:"spacing" yaml:"spacing"`

	// File selection
	Exclude ExcludeConfig `koanf:"exclude" toml:"exclude" yaml:"exclude"`

	// Lexing cache
	Cache CacheConfig `koanf:"cache" toml:"cache" yaml:"cache"`

	// Output settings
	Output OutputConfig `koanf:"output" toml:"output" yaml:"output"`
}

// ObfuscateConfig controls where results go and how the batch runs.
type ObfuscateConfig struct {
	OutDir    string `koanf:"out_dir" toml:"out_dir" yaml:"out_dir"`
	MapFile   string `koanf:"map_file" toml:"map_file" yaml:"map_file"`
	ExtendMap string `koanf:"extend_map" toml:"extend_map" yaml:"extend_map"`
	Workers   int    `koanf:"workers" toml:"workers" yaml:"workers"` // 0 means one per CPU
	Verify    bool   `koanf:"verify" toml:"verify" yaml:"verify"`
}

// KeepConfig defines protected identifiers.
type KeepConfig struct {
	Files []string `koanf:"files" toml:"files" yaml:"files"`
	Names []string `koanf:"names" toml:"names" yaml:"names"`
	Std   bool     `koanf:"std" toml:"std" yaml:"std"`
}

// DeadCodeConfig controls dead-code injection.
type DeadCodeConfig struct {
	Enabled   bool `koanf:"enabled" toml:"enabled" yaml:"enabled"`
	Functions int  `koanf:"functions" toml:"functions" yaml:"functions"`
	Classes   int  `koanf:"classes" toml:"classes" yaml:"classes"`
}

// SpacingConfig controls whitespace randomization.
type SpacingConfig struct {
	Level string `koanf:"level" toml:"level" yaml:"level"` // none, light, medium, heavy
	Seed  uint64 `koanf:"seed" toml:"seed" yaml:"seed"`
}

// ExcludeConfig defines which files are processed.
type ExcludeConfig struct {
	Extensions []string `koanf:"extensions" toml:"extensions" yaml:"extensions"` // source extensions to include
	Patterns   []string `koanf:"patterns" toml:"patterns" yaml:"patterns"`
	Dirs       []string `koanf:"dirs" toml:"dirs" yaml:"dirs"`
	Gitignore  bool     `koanf:"gitignore" toml:"gitignore" yaml:"gitignore"`
}

// CacheConfig controls caching behavior.
type CacheConfig struct {
	Enabled bool   `koanf:"enabled" toml:"enabled" yaml:"enabled"`
	Dir     string `koanf:"dir" toml:"dir" yaml:"dir"`
	TTL     int    `koanf:"ttl" toml:"ttl" yaml:"ttl"` // TTL in hours
}

// OutputConfig controls output formatting.
type OutputConfig struct {
	Format  string `koanf:"format" toml:"format" yaml:"format"` // text, json, markdown, toon
	Color   bool   `koanf:"color" toml:"color" yaml:"color"`
	Verbose bool   `koanf:"verbose" toml:"verbose" yaml:"verbose"`
}

// Formats lists the accepted output formats.
var Formats = []string{"text", "json", "markdown", "toon"}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Obfuscate: ObfuscateConfig{
			OutDir:  "obfuscated_out",
			MapFile: "obfuscation_map.txt",
		},
		Keep: KeepConfig{
			Std: true,
		},
		DeadCode: DeadCodeConfig{
			Enabled:   false,
			Functions: 3,
			Classes:   2,
		},
		Spacing: SpacingConfig{
			Level: string(spacing.None),
		},
		Exclude: ExcludeConfig{
			Extensions: []string{".c", ".cc", ".cpp", ".cxx", ".h", ".hpp"},
			Patterns:   []string{"*.pb.h", "*.pb.cc"},
			Dirs: []string{
				".git",
				".veil",
				"obfuscated_out",
				"build",
				"cmake-build-debug",
				"cmake-build-release",
				"third_party",
				"vendor",
			},
			Gitignore: true,
		},
		Cache: CacheConfig{
			Enabled: true,
			Dir:     ".veil/cache",
			TTL:     24,
		},
		Output: OutputConfig{
			Format:  "text",
			Color:   true,
			Verbose: false,
		},
	}
}

// Load loads configuration from a file on top of the defaults.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := DefaultConfig()

	// Determine parser based on extension
	var parser koanf.Parser
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		parser = toml.Parser()
	}

	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// configNames are searched in order in each of searchDirs.
var configNames = []string{
	"veil.toml",
	"veil.yaml",
	"veil.yml",
	"veil.json",
	".veil.toml",
	".veil.yaml",
	".veil.yml",
	".veil.json",
}

var searchDirs = []string{".", ".veil"}

// LoadResult is a loaded configuration and the file it came from. Source is
// empty when no file was found and defaults are in effect.
type LoadResult struct {
	Config *Config
	Source string
}

type loadOptions struct {
	path string
	dir  string
}

// LoadOption configures LoadConfig.
type LoadOption func(*loadOptions)

// WithPath loads exactly this file instead of searching.
func WithPath(path string) LoadOption {
	return func(o *loadOptions) { o.path = path }
}

// WithDir searches for config files relative to dir instead of the working
// directory.
func WithDir(dir string) LoadOption {
	return func(o *loadOptions) { o.dir = dir }
}

// LoadConfig loads an explicit file, or the first config found in the
// standard locations, and validates it.
func LoadConfig(opts ...LoadOption) (*LoadResult, error) {
	o := loadOptions{dir: "."}
	for _, opt := range opts {
		opt(&o)
	}

	source := o.path
	if source == "" {
		source = find(o.dir)
	}
	if source == "" {
		return &LoadResult{Config: DefaultConfig()}, nil
	}

	cfg, err := Load(source)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", source, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}
	return &LoadResult{Config: cfg, Source: source}, nil
}

func find(root string) string {
	for _, dir := range searchDirs {
		for _, name := range configNames {
			path := filepath.Join(root, dir, name)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// LoadOrDefault tries to load config from standard locations or returns defaults.
func LoadOrDefault() *Config {
	res, err := LoadConfig()
	if err != nil {
		return DefaultConfig()
	}
	return res.Config
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error
	if c.DeadCode.Functions < 0 {
		errs = append(errs, fmt.Errorf("dead_code.functions must not be negative, got %d", c.DeadCode.Functions))
	}
	if c.DeadCode.Classes < 0 {
		errs = append(errs, fmt.Errorf("dead_code.classes must not be negative, got %d", c.DeadCode.Classes))
	}
	if c.Obfuscate.Workers < 0 {
		errs = append(errs, fmt.Errorf("obfuscate.workers must not be negative, got %d", c.Obfuscate.Workers))
	}
	if c.Obfuscate.OutDir == "" {
		errs = append(errs, errors.New("obfuscate.out_dir must be set"))
	}
	if c.Obfuscate.MapFile == "" {
		errs = append(errs, errors.New("obfuscate.map_file must be set"))
	}
	if _, err := spacing.ParseLevel(c.Spacing.Level); err != nil {
		errs = append(errs, fmt.Errorf("spacing.level: %w", err))
	}
	if !slices.Contains(Formats, c.Output.Format) {
		errs = append(errs, fmt.Errorf("output.format %q is not one of %s", c.Output.Format, strings.Join(Formats, ", ")))
	}
	if c.Cache.TTL < 0 {
		errs = append(errs, fmt.Errorf("cache.ttl must not be negative, got %d", c.Cache.TTL))
	}
	for _, ext := range c.Exclude.Extensions {
		if !strings.HasPrefix(ext, ".") {
			errs = append(errs, fmt.Errorf("exclude.extensions entry %q must start with '.'", ext))
		}
	}
	return errors.Join(errs...)
}

// IsSource reports whether path has one of the configured source extensions.
func (c *Config) IsSource(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range c.Exclude.Extensions {
		if ext == strings.ToLower(e) {
			return true
		}
	}
	return false
}

// ShouldExclude checks if a path should be skipped.
func (c *Config) ShouldExclude(path string) bool {
	// Check directory exclusions
	for _, dir := range c.Exclude.Dirs {
		if strings.Contains(path, string(filepath.Separator)+dir+string(filepath.Separator)) ||
			strings.HasPrefix(path, dir+string(filepath.Separator)) {
			return true
		}
	}

	// Check pattern exclusions
	base := filepath.Base(path)
	for _, pattern := range c.Exclude.Patterns {
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
	}

	return false
}
