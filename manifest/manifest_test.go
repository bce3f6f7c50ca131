package manifest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeManifest(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[input]
dirs = ["build", "/abs/dumps"]
exclude = ["*_test.cbor"]

[output]
dir = "out"
asm = true
dump = true
skip-source = true

[batch]
workers = 8
cache = ".depyo/results.db"

[log]
verbosity = 2
file = "depyo.log"
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if paths := m.InputDirPaths(); len(paths) != 2 || paths[0] != filepath.Join(m.Dir, "build") || paths[1] != "/abs/dumps" {
		t.Errorf("input dirs = %v", paths)
	}
	if m.OutputDir() != filepath.Join(m.Dir, "out") {
		t.Errorf("output dir = %q", m.OutputDir())
	}
	if !m.Output.Asm || !m.Output.Dump || !m.Output.SkipSource || m.Output.Raw {
		t.Errorf("output flags = %+v", m.Output)
	}
	if m.Batch.Workers != 8 {
		t.Errorf("workers = %d, want 8", m.Batch.Workers)
	}
	if m.CachePath() != filepath.Join(m.Dir, ".depyo", "results.db") {
		t.Errorf("cache = %q", m.CachePath())
	}
	if m.Log.Verbosity != 2 || m.LogFile() != filepath.Join(m.Dir, "depyo.log") {
		t.Errorf("log = %+v", m.Log)
	}
	if !m.Excluded("build/pkg/mod_test.cbor") || m.Excluded("build/pkg/mod.cbor") {
		t.Error("exclude patterns not applied to base names")
	}
}

func TestLoadManifestDefaults(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "[batch]\nworkers = 2\n")

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(m.Input.Dirs) != 1 || m.Input.Dirs[0] != "." {
		t.Errorf("default input dirs = %v, want [.]", m.Input.Dirs)
	}
	if m.OutputDir() != "" || m.CachePath() != "" || m.LogFile() != "" {
		t.Errorf("output %q, cache %q and log %q should be unset", m.OutputDir(), m.CachePath(), m.LogFile())
	}
}

func TestLoadManifestErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"syntax", "[output\n", "parse error"},
		{"unknown key", "[output]\ncolour = true\n", "unknown key"},
		{"bad pattern", "[input]\nexclude = [\"[\"]\n", "exclude pattern"},
		{"negative workers", "[batch]\nworkers = -1\n", "workers"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeManifest(t, dir, tt.content)
			_, err := Load(dir)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestFindAndLoad(t *testing.T) {
	// Create nested directory structure
	dir := t.TempDir()
	subDir := filepath.Join(dir, "a", "b", "c")
	if err := os.MkdirAll(subDir, 0755); err != nil {
		t.Fatal(err)
	}
	writeManifest(t, dir, "[output]\ndir = \"found\"\n")

	// Should find manifest when starting from a deep subdirectory
	m, err := FindAndLoad(subDir)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if m == nil {
		t.Fatal("FindAndLoad returned nil")
	}
	if m.Output.Dir != "found" {
		t.Errorf("output dir = %q, want found", m.Output.Dir)
	}
}

func TestFindAndLoadNotFound(t *testing.T) {
	dir := t.TempDir()
	m, err := FindAndLoad(dir)
	if err != nil {
		t.Fatalf("FindAndLoad error: %v", err)
	}
	if m != nil {
		t.Error("expected nil manifest when no depyo.toml exists")
	}
}

func TestDefault(t *testing.T) {
	m := Default("/work")
	if paths := m.InputDirPaths(); len(paths) != 1 || paths[0] != "/work" {
		t.Errorf("input dirs = %v, want [/work]", paths)
	}
	if m.OutputDir() != "" {
		t.Errorf("output dir = %q, want next to inputs", m.OutputDir())
	}
}
