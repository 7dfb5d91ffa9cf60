package batch

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wippyai/simhook/bridge"
	"github.com/wippyai/simhook/errors"
	"github.com/wippyai/simhook/hook"
	"github.com/wippyai/simhook/paramgen"
	"github.com/wippyai/simhook/sim"
)

// Config describes one sweep.
type Config struct {
	Hook    hook.Config
	Seed    uint64
	Ranges  paramgen.Ranges
	Count   int
	Workers int

	// Base supplies the request fields the generator does not draw. Nil
	// means sim.CreepingLineRequest.
	Base *sim.PatternRequest

	// OnItem, when set, is called once per finished item. Calls are
	// serialized but arrive in completion order.
	OnItem func(Item)
}

// Item is one sweep entry.
type Item struct {
	Index    int                   `json:"index" yaml:"index"`
	Worker   int                   `json:"worker" yaml:"worker"`
	Params   paramgen.ParameterSet `json:"params" yaml:"params"`
	Pattern  *sim.SearchPattern    `json:"pattern" yaml:"pattern"`
	Error    string                `json:"error,omitempty" yaml:"error,omitempty"`
	Duration time.Duration         `json:"duration_ns" yaml:"duration_ns"`
}

// OK reports whether the item produced a pattern.
func (it Item) OK() bool {
	return it.Pattern != nil && it.Pattern.Status() == sim.StatusOK
}

// String renders the parameter dump followed by the pattern dump.
func (it Item) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "#%d %s\n\t=>", it.Index, it.Params)
	if it.Pattern != nil {
		b.WriteString(it.Pattern.String())
	}
	if it.Error != "" {
		fmt.Fprintf(&b, " error[%s]", it.Error)
	}
	return b.String()
}

// Report is the outcome of a sweep. Items are in draw order.
type Report struct {
	RunID   string        `json:"run_id" yaml:"run_id"`
	Seed    uint64        `json:"seed" yaml:"seed"`
	Count   int           `json:"count" yaml:"count"`
	Workers int           `json:"workers" yaml:"workers"`
	Started time.Time     `json:"started" yaml:"started"`
	Elapsed time.Duration `json:"elapsed_ns" yaml:"elapsed_ns"`
	OK      int           `json:"ok" yaml:"ok"`
	Failed  int           `json:"failed" yaml:"failed"`
	Resets  int           `json:"resets" yaml:"resets"`
	Items   []Item        `json:"items" yaml:"items"`
}

// Draw returns the first n parameter sets of the seeded sequence.
func Draw(seed uint64, ranges paramgen.Ranges, n int) ([]paramgen.ParameterSet, error) {
	g, err := paramgen.New(seed, ranges)
	if err != nil {
		return nil, err
	}
	sets := make([]paramgen.ParameterSet, n)
	for i := range sets {
		sets[i] = g.Next()
	}
	return sets, nil
}

// Run draws Count parameter sets and builds one pattern per set, spread over
// Workers facades, each with its own session. Parameters are drawn before
// any work starts, so the items do not depend on the worker count.
//
// A cancelled context stops the sweep; the partial report is returned with
// the context's error.
func Run(ctx context.Context, cfg Config) (*Report, error) {
	if cfg.Count < 0 {
		return nil, errors.MalformedInput("count must not be negative, got %d", cfg.Count)
	}
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > cfg.Count && cfg.Count > 0 {
		workers = cfg.Count
	}
	base := sim.CreepingLineRequest()
	if cfg.Base != nil {
		base = *cfg.Base
	}

	sets, err := Draw(cfg.Seed, cfg.Ranges, cfg.Count)
	if err != nil {
		return nil, err
	}

	report := &Report{
		RunID:   uuid.NewString(),
		Seed:    cfg.Seed,
		Count:   cfg.Count,
		Workers: workers,
		Started: time.Now(),
		Items:   make([]Item, cfg.Count),
	}
	log := bridge.Logger().With(zap.String("run_id", report.RunID))
	log.Info("sweep started",
		zap.Uint64("seed", cfg.Seed),
		zap.Int("count", cfg.Count),
		zap.Int("workers", workers))

	hooks := make([]*hook.Hook, workers)
	for i := range hooks {
		hooks[i] = hook.New(ctx, cfg.Hook)
	}
	defer func() {
		for _, h := range hooks {
			if err := h.Close(context.Background()); err != nil {
				log.Warn("close worker session", zap.Error(err))
			}
		}
	}()

	work := make(chan int)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(work)
		for i := range sets {
			select {
			case work <- i:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	var mu sync.Mutex
	for w, h := range hooks {
		g.Go(func() error {
			for i := range work {
				item := runItem(gctx, h, w, i, sets[i], base)
				report.Items[i] = item
				if cfg.OnItem != nil {
					mu.Lock()
					cfg.OnItem(item)
					mu.Unlock()
				}
			}
			return nil
		})
	}

	err = g.Wait()
	report.Elapsed = time.Since(report.Started)

	done := report.Items[:0]
	for _, it := range report.Items {
		if it.Pattern == nil {
			continue
		}
		if it.OK() {
			report.OK++
		} else {
			report.Failed++
		}
		done = append(done, it)
	}
	report.Items = done
	for _, h := range hooks {
		report.Resets += h.Resets()
	}

	log.Info("sweep finished",
		zap.Int("ok", report.OK),
		zap.Int("failed", report.Failed),
		zap.Int("resets", report.Resets),
		zap.Duration("elapsed", report.Elapsed))
	return report, err
}

func runItem(ctx context.Context, h *hook.Hook, worker, index int, params paramgen.ParameterSet, base sim.PatternRequest) Item {
	start := time.Now()
	pat := h.MakePattern(ctx, params.Apply(base))
	item := Item{
		Index:    index,
		Worker:   worker,
		Params:   params,
		Pattern:  pat,
		Duration: time.Since(start),
	}
	if pat.Status() == sim.StatusFailed {
		if err := h.LastError(); err != nil {
			item.Error = err.Error()
		}
	}
	return item
}
