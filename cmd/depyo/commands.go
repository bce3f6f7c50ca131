package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/skuznetsov/depyo.js-sub000/decompiler"
	"github.com/skuznetsov/depyo.js-sub000/pkg/batch"
	"github.com/skuznetsov/depyo.js-sub000/pkg/bytecode"
	"github.com/skuznetsov/depyo.js-sub000/pkg/dump"
	"github.com/skuznetsov/depyo.js-sub000/pkg/store"
)

// loadAll reads every input, reporting the ones that fail.
func loadAll(inputs []input, stderr io.Writer) ([]batch.Item, []input, int) {
	var items []batch.Item
	var loaded []input
	failed := 0
	for _, in := range inputs {
		code, v, err := dump.ReadFile(in.path)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			failed++
			continue
		}
		items = append(items, batch.Item{Name: in.path, Code: code, Version: v})
		loaded = append(loaded, in)
	}
	return items, loaded, failed
}

func disasmAll(inputs []input, stdout, stderr io.Writer) int {
	items, _, failed := loadAll(inputs, stderr)
	for _, it := range items {
		listing, err := bytecode.Disassemble(it.Code, it.Version)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %s: %v\n", it.Name, err)
			failed++
		}
		fmt.Fprintf(stdout, "# %s (%s)\n%s\n", it.Name, it.Version, listing)
	}
	return exitCode(failed)
}

func convertAll(inputs []input, opts *options, stderr io.Writer) int {
	items, loaded, failed := loadAll(inputs, stderr)
	ext := ".yaml"
	if opts.format == "cbor" {
		ext = ".cbor"
	}
	for i, it := range items {
		path := outputPath(loaded[i], opts.outDir, ext)
		if path == loaded[i].path {
			fmt.Fprintf(stderr, "Skipping %s: already %s\n", path, opts.format)
			continue
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			failed++
			continue
		}
		if err := dump.WriteFile(path, it.Code, it.Version); err != nil {
			fmt.Fprintf(stderr, "Error: %s: %v\n", path, err)
			failed++
		}
	}
	return exitCode(failed)
}

func decompileAll(inputs []input, opts *options, stdout, stderr io.Writer) int {
	start := time.Now()
	items, loaded, failed := loadAll(inputs, stderr)

	var cache batch.Cache
	if opts.cache != "" {
		s, err := store.Open(opts.cache)
		if err != nil {
			fmt.Fprintf(stderr, "Warning: result cache disabled: %v\n", err)
		} else {
			defer s.Close()
			cache = s
		}
	}

	outcomes := batch.Run(context.Background(), items, batch.Options{
		Workers:    opts.workers,
		Decompiler: decompiler.New(nil),
		Cache:      cache,
	})
	for i, o := range outcomes {
		if o.Err != nil {
			fmt.Fprintf(stderr, "Error: %s: %v\n", o.Item.Name, o.Err)
			failed++
			continue
		}
		if err := writeResults(loaded[i], o, opts); err != nil {
			fmt.Fprintf(stderr, "Error: %s: %v\n", o.Item.Name, err)
			failed++
		}
		if !o.Clean {
			fmt.Fprintf(stderr, "Warning: %s: decompilation incomplete\n", o.Item.Name)
		}
	}

	if opts.stats {
		printStats(stdout, outcomes, time.Since(start))
	}
	return exitCode(failed)
}

// writeResults writes the files one outcome asks for. Unclean objects are
// quarantined as CBOR dumps next to their source.
func writeResults(in input, o batch.Outcome, opts *options) error {
	it := o.Item
	if !opts.skipSource {
		if err := writeOutput(outputPath(in, opts.outDir, ".py"), []byte(o.Source)); err != nil {
			return err
		}
	}
	if opts.asm {
		listing, err := bytecode.Disassemble(it.Code, it.Version)
		if err != nil {
			return err
		}
		if err := writeOutput(outputPath(in, opts.outDir, ".pyasm"), []byte(listing)); err != nil {
			return err
		}
	}
	if opts.dump {
		data, err := dump.MarshalYAML(it.Code, it.Version)
		if err != nil {
			return err
		}
		if err := writeOutput(outputPath(in, opts.outDir, dumpSuffix), data); err != nil {
			return err
		}
	}
	if opts.raw {
		data, err := os.ReadFile(in.path)
		if err != nil {
			return err
		}
		raw := outputPath(in, opts.outDir, ".raw"+filepath.Ext(in.path))
		if err := writeOutput(raw, data); err != nil {
			return err
		}
	}
	if !o.Clean {
		data, err := dump.MarshalCBOR(it.Code, it.Version)
		if err != nil {
			return err
		}
		if err := writeOutput(outputPath(in, opts.outDir, quarantineSuffix), data); err != nil {
			return err
		}
	}
	return nil
}

func printStats(w io.Writer, outcomes []batch.Outcome, wall time.Duration) {
	p := message.NewPrinter(language.English)
	for _, o := range outcomes {
		status := "clean"
		switch {
		case o.Err != nil:
			status = "failed"
		case !o.Clean:
			status = "unclean"
		}
		if o.Cached {
			status += ", cached"
		}
		p.Fprintf(w, "%-40s %10.3f ms  %s\n", o.Item.Name, float64(o.Elapsed.Microseconds())/1000, status)
	}
	s := batch.Summarize(outcomes)
	rate := 0.0
	if wall > 0 {
		rate = float64(s.Total) / wall.Seconds()
	}
	p.Fprintf(w, "%d files: %d clean, %d unclean, %d failed, %d cached in %v (%.1f files/s)\n",
		s.Total, s.Clean, s.Unclean, s.Failed, s.Cached, wall.Round(time.Millisecond), rate)
}

func exitCode(failed int) int {
	if failed > 0 {
		return 1
	}
	return 0
}
