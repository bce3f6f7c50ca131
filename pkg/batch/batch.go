// Package batch decompiles many top-level code objects in parallel. Each
// item runs its own pass, so one item's failure never affects another.
package batch

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/tliron/commonlog"
	"golang.org/x/sync/errgroup"

	"github.com/skuznetsov/depyo.js-sub000/decompiler"
	"github.com/skuznetsov/depyo.js-sub000/pkg/bytecode"
	"github.com/skuznetsov/depyo.js-sub000/pkg/dump"
	"github.com/skuznetsov/depyo.js-sub000/pkg/store"
)

var log = commonlog.GetLogger("depyo.batch")

// ErrPanic marks an item whose decompilation panicked.
var ErrPanic = errors.New("decompiler panic")

// Item is one top-level code object to decompile.
type Item struct {
	Name    string
	Code    *bytecode.CodeObject
	Version *bytecode.Version
}

// Outcome is the result for one item, in input order.
type Outcome struct {
	Item    Item
	Hash    string
	Source  string
	Clean   bool
	Result  *decompiler.Result // nil when served from the cache or failed
	Cached  bool
	Err     error
	Elapsed time.Duration
}

// Cache stores rendered results by content hash. *store.Store
// implements it.
type Cache interface {
	Lookup(hash string) (*store.Record, error)
	Save(r *store.Record) error
}

// Options configures a run.
type Options struct {
	Workers    int // defaults to GOMAXPROCS
	Decompiler *decompiler.Decompiler
	Cache      Cache
}

// Run decompiles items with bounded concurrency and returns one outcome
// per item. Items not started before ctx is cancelled carry its error.
func Run(ctx context.Context, items []Item, opts Options) []Outcome {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	d := opts.Decompiler
	if d == nil {
		d = decompiler.New(nil)
	}
	out := make([]Outcome, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range items {
		i := i
		out[i].Item = items[i]
		if err := gctx.Err(); err != nil {
			out[i].Err = err
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				out[i].Err = err
				return nil
			}
			runOne(d, opts.Cache, &out[i])
			return nil
		})
	}
	g.Wait()
	return out
}

func runOne(d *decompiler.Decompiler, cache Cache, o *Outcome) {
	start := time.Now()
	defer func() {
		o.Elapsed = time.Since(start)
		if r := recover(); r != nil {
			o.Result, o.Source, o.Clean = nil, "", false
			o.Err = fmt.Errorf("%w: %s: %v", ErrPanic, o.Item.Name, r)
			log.Errorf("%v", o.Err)
		}
	}()

	it := o.Item
	if cache != nil {
		data, err := dump.MarshalCBOR(it.Code, it.Version)
		if err != nil {
			log.Warningf("%s: hashing: %v", it.Name, err)
		} else {
			o.Hash = store.Hash(data)
			rec, err := cache.Lookup(o.Hash)
			switch {
			case err == nil:
				o.Source, o.Clean, o.Cached = rec.Source, rec.Clean, true
				log.Debugf("%s: cached", it.Name)
				return
			case !errors.Is(err, store.ErrNotFound):
				log.Warningf("%s: cache lookup: %v", it.Name, err)
			}
		}
	}

	r, err := d.Decompile(it.Code, it.Version)
	if err != nil {
		o.Err = err
		log.Errorf("%s: %v", it.Name, err)
		return
	}
	o.Result = r
	o.Source = r.Source()
	o.Clean = r.Clean

	if cache != nil && o.Hash != "" {
		rec := &store.Record{
			Hash:     o.Hash,
			Path:     it.Name,
			Version:  it.Version.String(),
			Source:   o.Source,
			Clean:    r.Clean,
			Warnings: len(r.Warnings),
			Elapsed:  time.Since(start),
		}
		if err := cache.Save(rec); err != nil {
			log.Warningf("%s: cache save: %v", it.Name, err)
		}
	}
}

// Summary totals a run.
type Summary struct {
	Total   int
	Clean   int
	Unclean int
	Failed  int
	Cached  int
	Elapsed time.Duration // sum of per-item time
}

// Summarize totals outcomes.
func Summarize(outcomes []Outcome) Summary {
	var s Summary
	for _, o := range outcomes {
		s.Total++
		s.Elapsed += o.Elapsed
		switch {
		case o.Err != nil:
			s.Failed++
			continue
		case o.Clean:
			s.Clean++
		default:
			s.Unclean++
		}
		if o.Cached {
			s.Cached++
		}
	}
	return s
}
