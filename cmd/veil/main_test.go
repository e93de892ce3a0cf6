package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/panbanda/veil/internal/batch"
	"github.com/panbanda/veil/pkg/config"
	"github.com/panbanda/veil/pkg/mapping"
)

const (
	addSrc   = "int add(int a, int b) { return a + b; }\n"
	twiceSrc = "int twice(int a) { return add(a, a); }\n"
)

// TestGetPaths verifies path handling from CLI arguments.
func TestGetPaths(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected []string
	}{
		{"no args defaults to current dir", []string{}, []string{"."}},
		{"single path", []string{"/foo/bar"}, []string{"/foo/bar"}},
		{"multiple paths", []string{"/foo", "/bar"}, []string{"/foo", "/bar"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			app := &cli.App{
				Action: func(c *cli.Context) error {
					got = getPaths(c)
					return nil
				},
			}
			require.NoError(t, app.Run(append([]string{"test"}, tt.args...)))
			assert.Equal(t, tt.expected, got)
		})
	}
}

type project struct {
	dir    string
	src    string
	out    string
	mapped string
	config string
}

// newProject lays out sources and a config that keeps every artifact inside
// a temp dir.
func newProject(t *testing.T, files map[string]string) *project {
	t.Helper()
	dir := t.TempDir()
	p := &project{
		dir:    dir,
		src:    filepath.Join(dir, "src"),
		out:    filepath.Join(dir, "out"),
		mapped: filepath.Join(dir, "map.txt"),
		config: filepath.Join(dir, "veil.toml"),
	}
	require.NoError(t, os.MkdirAll(p.src, 0o755))
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(p.src, name), []byte(content), 0o644))
	}
	cfg := fmt.Sprintf(`[obfuscate]
out_dir = %q
map_file = %q

[keep]
std = false

[cache]
enabled = false
dir = %q
`, p.out, p.mapped, filepath.Join(dir, "cache"))
	require.NoError(t, os.WriteFile(p.config, []byte(cfg), 0o644))
	return p
}

func runApp(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	app := newApp()
	app.Writer = &stdout
	app.ErrWriter = &stderr
	err := app.Run(append([]string{"veil", "--no-color"}, args...))
	return stdout.String(), stderr.String(), err
}

func (p *project) read(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestRunCommand(t *testing.T) {
	p := newProject(t, map[string]string{"add.cpp": addSrc, "twice.cpp": twiceSrc, "notes.txt": "add"})

	stdout, stderr, err := runApp(t, "-c", p.config, "run", p.src)
	require.NoError(t, err, stderr)

	assert.Equal(t,
		"int O100000000(int l100000001, int l100000010) { return l100000001 + l100000010; }\n",
		p.read(t, filepath.Join(p.out, "add.cpp")))
	assert.Equal(t,
		"int O100000011(int l100000001) { return O100000000(l100000001, l100000001); }\n",
		p.read(t, filepath.Join(p.out, "twice.cpp")))
	assert.NoFileExists(t, filepath.Join(p.out, "notes.txt"))

	assert.Equal(t,
		"add -> O100000000\na -> l100000001\nb -> l100000010\ntwice -> O100000011\n",
		p.read(t, p.mapped))

	assert.Contains(t, stdout, "Obfuscation Report")
	assert.Contains(t, stdout, "Mapping:      "+p.mapped)
	assert.Contains(t, stderr, "Obfuscated 2 files into "+p.out)
}

func TestRunCommandFlagsOverrideConfig(t *testing.T) {
	p := newProject(t, map[string]string{"add.cpp": addSrc})
	out := filepath.Join(p.dir, "elsewhere")
	mapFile := filepath.Join(p.dir, "names.txt")

	_, stderr, err := runApp(t, "-c", p.config, "run", "--out-dir", out, "--map", mapFile, "--keep-name", "add", p.src)
	require.NoError(t, err, stderr)

	assert.Equal(t,
		"int add(int l100000000, int l100000001) { return l100000000 + l100000001; }\n",
		p.read(t, filepath.Join(out, "add.cpp")))
	assert.FileExists(t, mapFile)
	assert.NoDirExists(t, p.out)
}

func TestRunCommandJSON(t *testing.T) {
	p := newProject(t, map[string]string{"add.cpp": addSrc, "twice.cpp": twiceSrc})

	stdout, stderr, err := runApp(t, "-c", p.config, "-f", "json", "run", "--dead-code", p.src)
	require.NoError(t, err, stderr)

	var data batch.ReportData
	require.NoError(t, json.Unmarshal([]byte(stdout), &data), stdout)
	assert.Equal(t, 2, data.Summary.Succeeded)
	assert.Equal(t, 4, data.Summary.Mapped)
	assert.Equal(t, 10, data.Summary.DeadCode)
	assert.Equal(t, p.mapped, data.Summary.MapFile)
	require.Len(t, data.Files, 2)
	assert.Len(t, data.Files[0].Digest, 64)
	assert.NotContains(t, stderr, "Lexing", "progress is text-only")
}

func TestPreviewWritesNothing(t *testing.T) {
	p := newProject(t, map[string]string{"add.cpp": addSrc})

	stdout, stderr, err := runApp(t, "-c", p.config, "preview", p.src)
	require.NoError(t, err, stderr)

	assert.NoDirExists(t, p.out)
	assert.NoFileExists(t, p.mapped)
	assert.Contains(t, stdout, "Obfuscation Preview")
	assert.Contains(t, stdout, "O100000000")
	assert.Contains(t, stderr, "Dry run: 3 identifiers would be renamed")

	_, _, err = runApp(t, "-c", p.config, "run", "--dry-run", p.src)
	require.NoError(t, err)
	assert.NoDirExists(t, p.out)
}

func TestRunExtendMap(t *testing.T) {
	p := newProject(t, map[string]string{"add.cpp": addSrc})
	_, stderr, err := runApp(t, "-c", p.config, "run", p.src)
	require.NoError(t, err, stderr)

	next := filepath.Join(p.dir, "next")
	require.NoError(t, os.MkdirAll(next, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(next, "twice.cpp"), []byte(twiceSrc), 0o644))
	nextMap := filepath.Join(p.dir, "next-map.txt")
	nextOut := filepath.Join(p.dir, "next-out")

	_, stderr, err = runApp(t, "-c", p.config, "run", "--extend-map", p.mapped, "--map", nextMap, "--out-dir", nextOut, next)
	require.NoError(t, err, stderr)

	assert.Equal(t,
		"int O100000011(int l100000001) { return O100000000(l100000001, l100000001); }\n",
		p.read(t, filepath.Join(nextOut, "twice.cpp")))
	pairs, err := mapping.ReadFile(nextMap)
	require.NoError(t, err)
	assert.Len(t, pairs, 4)
}

func TestRunMissingKeepFileWarns(t *testing.T) {
	p := newProject(t, map[string]string{"add.cpp": addSrc})

	_, stderr, err := runApp(t, "-c", p.config, "run", "--keep", filepath.Join(p.dir, "absent.txt"), p.src)
	require.NoError(t, err)
	assert.Contains(t, stderr, "WARNING: keep-list")
	assert.Contains(t, stderr, "not found")
}

func TestRunKeepFile(t *testing.T) {
	p := newProject(t, map[string]string{"add.cpp": addSrc})
	keepFile := filepath.Join(p.dir, "keep.txt")
	require.NoError(t, os.WriteFile(keepFile, []byte("add\n"), 0o644))

	_, stderr, err := runApp(t, "-c", p.config, "run", "-k", keepFile, p.src)
	require.NoError(t, err, stderr)
	assert.Contains(t, p.read(t, filepath.Join(p.out, "add.cpp")), "int add(")
}

func TestRunMappingPersistFailure(t *testing.T) {
	p := newProject(t, map[string]string{"add.cpp": addSrc})
	blocker := filepath.Join(p.dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	_, stderr, err := runApp(t, "-c", p.config, "run", "--map", filepath.Join(blocker, "map.txt"), p.src)
	require.Error(t, err)
	assert.ErrorIs(t, err, mapping.ErrPersist)
	assert.Contains(t, stderr, "ERROR: could not write the mapping file")
}

func TestRunNoFiles(t *testing.T) {
	p := newProject(t, nil)

	_, stderr, err := runApp(t, "-c", p.config, "run", p.src, filepath.Join(p.dir, "missing"))
	require.NoError(t, err)
	assert.Contains(t, stderr, "path not found")
	assert.Contains(t, stderr, "No source files found")
}

func TestRunInvalidSettings(t *testing.T) {
	p := newProject(t, map[string]string{"add.cpp": addSrc})

	_, _, err := runApp(t, "-c", p.config, "run", "--spacing", "wild", p.src)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "spacing.level")

	_, _, err = runApp(t, "-c", p.config, "run", "--dead-functions=-1", p.src)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dead_code.functions")
}

func TestVerifyCommand(t *testing.T) {
	p := newProject(t, map[string]string{
		"add.cpp": "#include <cstdio>\n" + addSrc,
		"m.c":     "int twice(int v) { return v * 2; }\n",
	})

	_, stderr, err := runApp(t, "-c", p.config, "run", "--dead-code", "--spacing", "heavy", "--verify", p.src)
	require.NoError(t, err, stderr)

	stdout, stderr, err := runApp(t, "-c", p.config, "verify", p.src)
	require.NoError(t, err, stderr)
	assert.Contains(t, stdout, "Verification")
	assert.Contains(t, stdout, "add.cpp")
	assert.Contains(t, stderr, "All 2 outputs parse no worse than their inputs")
}

func TestVerifyCommandMissingOutputs(t *testing.T) {
	p := newProject(t, map[string]string{"add.cpp": addSrc})

	_, stderr, err := runApp(t, "-c", p.config, "verify", p.src)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "could not be verified")
	assert.Contains(t, stderr, "WARNING:")
}

func TestConfigShow(t *testing.T) {
	p := newProject(t, nil)

	stdout, _, err := runApp(t, "-c", p.config, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, stdout, "# Configuration from: "+p.config)
	assert.Contains(t, stdout, "out_dir")
	assert.Contains(t, stdout, p.out)

	stdout, _, err = runApp(t, "-c", p.config, "config", "show", "--yaml")
	require.NoError(t, err)
	assert.Contains(t, stdout, "out_dir: "+p.out)
}

func TestConfigValidate(t *testing.T) {
	p := newProject(t, nil)

	stdout, _, err := runApp(t, "-c", p.config, "config", "validate")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Configuration valid: "+p.config)

	bad := filepath.Join(p.dir, "bad.toml")
	require.NoError(t, os.WriteFile(bad, []byte("[dead_code]\nfunctions = -2\n"), 0o644))
	_, stderr, err := runApp(t, "-c", bad, "config", "validate")
	require.Error(t, err)
	assert.Contains(t, stderr, "Configuration validation failed")
}

func TestInitCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".veil", "veil.toml")

	stdout, _, err := runApp(t, "init", "-o", path)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Created "+path)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, config.DefaultConfig().Obfuscate, cfg.Obfuscate)
	assert.Equal(t, config.DefaultConfig().Exclude.Extensions, cfg.Exclude.Extensions)

	_, _, err = runApp(t, "init", "-o", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	_, _, err = runApp(t, "init", "-o", path, "--force")
	require.NoError(t, err)
}

func TestCacheCommands(t *testing.T) {
	p := newProject(t, map[string]string{"add.cpp": addSrc, "twice.cpp": twiceSrc})
	cached := filepath.Join(p.dir, "cached.toml")
	cfg := fmt.Sprintf("[obfuscate]\nout_dir = %q\nmap_file = %q\n\n[cache]\nenabled = true\ndir = %q\n\n[output]\nformat = \"json\"\n",
		p.out, p.mapped, filepath.Join(p.dir, "cache"))
	require.NoError(t, os.WriteFile(cached, []byte(cfg), 0o644))

	_, stderr, err := runApp(t, "-c", cached, "run", p.src)
	require.NoError(t, err, stderr)

	stdout, _, err := runApp(t, "-c", cached, "cache", "stats")
	require.NoError(t, err)
	assert.Contains(t, stdout, `"entries": 2`)

	_, stderr, err = runApp(t, "-c", cached, "cache", "clear")
	require.NoError(t, err)
	assert.Contains(t, stderr, "Cache cleared")

	stdout, _, err = runApp(t, "-c", cached, "cache", "stats")
	require.NoError(t, err)
	assert.Contains(t, stdout, `"entries": 0`)
}
