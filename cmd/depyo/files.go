package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/skuznetsov/depyo.js-sub000/pkg/dump"
)

// Suffixes of files depyo writes itself; they are never read back as
// inputs.
const (
	quarantineSuffix = ".unclean.cbor"
	dumpSuffix       = ".dump.yaml"
	rawMarker        = ".raw."
)

// input is one dump file and the directory its output layout is
// relative to.
type input struct {
	path string
	base string
}

func isDumpFile(path string) bool {
	name := strings.ToLower(filepath.Base(path))
	if strings.HasSuffix(name, quarantineSuffix) || strings.HasSuffix(name, dumpSuffix) || strings.Contains(name, rawMarker) {
		return false
	}
	return dump.IsYAML(name) || filepath.Ext(name) == ".cbor"
}

// collectInputs expands directories into the dump files below them.
func collectInputs(paths []string, opts *options) ([]input, error) {
	var out []input
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		base := opts.baseDir
		if !info.IsDir() {
			if base == "" {
				base = filepath.Dir(p)
			}
			out = append(out, input{path: p, base: base})
			continue
		}
		if base == "" {
			base = p
		}
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !isDumpFile(path) || opts.manifest.Excluded(path) {
				return nil
			}
			out = append(out, input{path: path, base: base})
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("scanning %s: %w", p, err)
		}
	}
	return out, nil
}

// outputPath places the output for in under outDir, keeping its path
// relative to the base and replacing its extension with ext. Without an
// output directory the file goes next to the input.
func outputPath(in input, outDir, ext string) string {
	stem := strings.TrimSuffix(in.path, filepath.Ext(in.path))
	if outDir == "" {
		return stem + ext
	}
	rel, err := filepath.Rel(in.base, stem)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		rel = filepath.Base(stem)
	}
	return filepath.Join(outDir, rel) + ext
}

func writeOutput(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
