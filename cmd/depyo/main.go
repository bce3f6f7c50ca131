// depyo CLI - decompiles code-object dumps back to source
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/skuznetsov/depyo.js-sub000/manifest"
)

const (
	modeDecompile = "decompile"
	modeDisasm    = "disasm"
	modeDump      = "dump"
)

// options is the merged depyo.toml and command-line configuration.
type options struct {
	mode       string
	outDir     string
	baseDir    string
	asm        bool
	dump       bool
	raw        bool
	skipSource bool
	stats      bool
	workers    int
	cache      string
	format     string
	verbosity  int
	logFile    string
	manifest   *manifest.Manifest
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	mode := modeDecompile
	if len(args) > 0 {
		switch args[0] {
		case modeDecompile, modeDisasm, modeDump:
			mode, args = args[0], args[1:]
		}
	}

	wd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	m, err := manifest.FindAndLoad(wd)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if m == nil {
		m = manifest.Default(wd)
	}

	opts, paths, err := parseFlags(mode, args, m, stderr)
	if err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}

	var logFile *string
	if opts.logFile != "" {
		logFile = &opts.logFile
	}
	commonlog.Configure(opts.verbosity, logFile)

	if len(paths) == 0 {
		paths = m.InputDirPaths()
	}
	inputs, err := collectInputs(paths, opts)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if len(inputs) == 0 {
		fmt.Fprintf(stderr, "No code-object dumps found\n")
		return 1
	}

	switch opts.mode {
	case modeDisasm:
		return disasmAll(inputs, stdout, stderr)
	case modeDump:
		return convertAll(inputs, opts, stderr)
	}
	return decompileAll(inputs, opts, stdout, stderr)
}

func parseFlags(mode string, args []string, m *manifest.Manifest, stderr io.Writer) (*options, []string, error) {
	opts := &options{mode: mode, manifest: m}
	fs := flag.NewFlagSet("depyo", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.outDir, "o", m.OutputDir(), "Output directory")
	fs.StringVar(&opts.baseDir, "basedir", "", "Directory input paths are taken relative to when laying out output")
	fs.BoolVar(&opts.asm, "asm", m.Output.Asm, "Also write a .pyasm disassembly listing")
	fs.BoolVar(&opts.dump, "dump", m.Output.Dump, "Also write a YAML dump of the code object")
	fs.BoolVar(&opts.raw, "raw", m.Output.Raw, "Also copy the input next to the output")
	fs.BoolVar(&opts.skipSource, "skip-source-gen", m.Output.SkipSource, "Do not write .py source")
	fs.BoolVar(&opts.stats, "stats", false, "Print per-file timing and totals")
	fs.IntVar(&opts.workers, "j", m.Batch.Workers, "Parallel workers (0 = one per CPU)")
	fs.StringVar(&opts.cache, "cache", m.CachePath(), "SQLite result cache (empty disables caching)")
	fs.StringVar(&opts.format, "format", "yaml", "Output format of the dump mode: yaml or cbor")
	fs.IntVar(&opts.verbosity, "v", m.Log.Verbosity, "Log verbosity (0-2)")
	fs.StringVar(&opts.logFile, "log", m.LogFile(), "Log file (default stderr)")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: depyo [decompile|disasm|dump] [options] [paths...]\n\n")
		fmt.Fprintf(stderr, "Decompiles code-object dumps (.cbor, .yaml) found at the given paths.\n")
		fmt.Fprintf(stderr, "Without paths, the input dirs of depyo.toml are used.\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  depyo build/                 # Write .py next to every dump under build/\n")
		fmt.Fprintf(stderr, "  depyo -o out --asm build/    # Write .py and .pyasm under out/\n")
		fmt.Fprintf(stderr, "  depyo disasm mod.cbor        # Print the disassembly\n")
		fmt.Fprintf(stderr, "  depyo dump -format yaml a.cbor  # Convert a dump to YAML\n")
	}
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	switch opts.format {
	case "yaml", "cbor":
	default:
		fmt.Fprintf(stderr, "Error: unknown dump format %q\n", opts.format)
		return nil, nil, fmt.Errorf("unknown dump format %q", opts.format)
	}
	if opts.workers < 0 {
		fmt.Fprintf(stderr, "Error: -j must not be negative\n")
		return nil, nil, fmt.Errorf("negative workers")
	}
	return opts, fs.Args(), nil
}
