// Package manifest handles depyo.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// FileName is the configuration file looked up by FindAndLoad.
const FileName = "depyo.toml"

// Manifest represents a depyo.toml project configuration.
type Manifest struct {
	Input  Input  `toml:"input"`
	Output Output `toml:"output"`
	Batch  Batch  `toml:"batch"`
	Log    Log    `toml:"log"`

	// Dir is the directory containing the depyo.toml file (set at load time).
	Dir string `toml:"-"`
}

// Input configures where code-object dumps are found.
type Input struct {
	Dirs    []string `toml:"dirs"`
	Exclude []string `toml:"exclude"`
}

// Output configures what is written for each input.
type Output struct {
	Dir        string `toml:"dir"`
	Raw        bool   `toml:"raw"`
	Dump       bool   `toml:"dump"`
	Asm        bool   `toml:"asm"`
	SkipSource bool   `toml:"skip-source"`
}

// Batch configures parallel runs.
type Batch struct {
	Workers int    `toml:"workers"`
	Cache   string `toml:"cache"`
}

// Log configures logging.
type Log struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Default returns the configuration used when no depyo.toml exists.
func Default(dir string) *Manifest {
	m := &Manifest{Dir: dir}
	m.defaults()
	return m
}

func (m *Manifest) defaults() {
	if len(m.Input.Dirs) == 0 {
		m.Input.Dirs = []string{"."}
	}
}

// Load parses a depyo.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	md, err := toml.Decode(string(data), &m)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("%s: unknown key %s", path, undecoded[0])
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	for _, p := range m.Input.Exclude {
		if _, err := filepath.Match(p, ""); err != nil {
			return nil, fmt.Errorf("%s: exclude pattern %q: %w", path, p, err)
		}
	}
	if m.Batch.Workers < 0 {
		return nil, fmt.Errorf("%s: batch.workers must not be negative", path)
	}
	m.defaults()

	return &m, nil
}

// FindAndLoad walks up from startDir to find a depyo.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

func (m *Manifest) abs(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.Dir, p)
}

// InputDirPaths returns absolute paths for the configured input directories.
func (m *Manifest) InputDirPaths() []string {
	var paths []string
	for _, d := range m.Input.Dirs {
		paths = append(paths, m.abs(d))
	}
	return paths
}

// OutputDir returns the absolute output directory, or "" to write each
// output next to its input.
func (m *Manifest) OutputDir() string { return m.abs(m.Output.Dir) }

// CachePath returns the absolute result-cache path, or "" when caching
// is off.
func (m *Manifest) CachePath() string { return m.abs(m.Batch.Cache) }

// LogFile returns the absolute log file path, or "" for stderr.
func (m *Manifest) LogFile() string { return m.abs(m.Log.File) }

// Excluded reports whether the base name of path matches an exclude
// pattern.
func (m *Manifest) Excluded(path string) bool {
	base := filepath.Base(path)
	for _, p := range m.Input.Exclude {
		if ok, _ := filepath.Match(p, base); ok {
			return true
		}
	}
	return false
}
