package bridge

import (
	"context"
	"sort"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/simhook/engine"
	"github.com/wippyai/simhook/errors"
	"github.com/wippyai/simhook/marshal"
)

// Config configures a session. It is the runtime configuration: library
// location, implementation set, memory limit, cache and host modules.
type Config struct {
	engine.Config
}

// entryPoint is a resolved guest export.
type entryPoint struct {
	symbol Symbol
	fn     api.Function
	module *engine.Module
	heap   *marshal.Heap
	faults *faultHooks
	sig    Signature
}

// faultHooks are the exception exports of one module. Any may be nil.
// heap decodes the description string and is nil when the module has no
// guest heap.
type faultHooks struct {
	check    api.Function
	clear    api.Function
	describe api.Function
	heap     *marshal.Heap
}

// SymbolInfo describes the resolution of one entry point.
type SymbolInfo struct {
	Name      string `json:"name" yaml:"name"`
	Module    string `json:"module,omitempty" yaml:"module,omitempty"`
	Signature string `json:"signature" yaml:"signature"`
	Resolved  bool   `json:"resolved" yaml:"resolved"`
}

// Session binds the guest library to host operations. It owns its runtime.
// A Session is not safe for concurrent use.
type Session struct {
	rt      *engine.Runtime
	err     error
	entries map[Symbol]*entryPoint
	missing []string
	heaps   map[string]*marshal.Heap
	faults  map[string]*faultHooks
	closed  bool
}

// Open starts a runtime, loads the library and resolves every entry point.
// It never returns nil: a session whose runtime failed to start reports the
// cause from Err and fails every operation fast, and a session with
// unresolved entry points is usable for the operations that did resolve.
func Open(ctx context.Context, cfg Config) *Session {
	s := &Session{
		entries: make(map[Symbol]*entryPoint, len(symbolSpecs)),
		heaps:   make(map[string]*marshal.Heap),
		faults:  make(map[string]*faultHooks),
	}

	rt, err := engine.New(ctx, cfg.Config)
	if err != nil {
		s.err = errors.RuntimeUnavailable(err)
		Logger().Error("guest runtime unavailable", zap.Error(err))
		return s
	}
	s.rt = rt
	s.resolve()

	if len(s.missing) > 0 {
		Logger().Warn("session degraded",
			zap.Int("resolved", len(s.entries)),
			zap.Strings("missing", s.missing))
	} else {
		Logger().Debug("session opened", zap.Int("resolved", len(s.entries)))
	}
	return s
}

func (s *Session) resolve() {
	for _, spec := range symbolSpecs {
		name := string(spec.symbol)
		mod, fn := s.rt.Lookup(name)
		if fn == nil {
			s.missing = append(s.missing, name)
			continue
		}
		if !spec.sig.matches(fn.Definition()) {
			Logger().Warn("entry point signature mismatch",
				zap.String("symbol", name),
				zap.String("module", mod.Name()),
				zap.String("want", spec.sig.String()))
			s.missing = append(s.missing, name)
			continue
		}

		ep := &entryPoint{
			symbol: spec.symbol,
			fn:     fn,
			module: mod,
			faults: s.faultHooksFor(mod),
			sig:    spec.sig,
		}
		if spec.refs {
			heap, err := s.heapFor(mod)
			if err != nil {
				Logger().Warn("entry point module has no guest heap",
					zap.String("symbol", name),
					zap.String("module", mod.Name()),
					zap.Error(err))
				s.missing = append(s.missing, name)
				continue
			}
			ep.heap = heap
		}
		s.entries[spec.symbol] = ep
	}
	sort.Strings(s.missing)
}

func (s *Session) heapFor(mod *engine.Module) (*marshal.Heap, error) {
	if h, ok := s.heaps[mod.Name()]; ok {
		return h, nil
	}
	h, err := marshal.NewHeap(mod)
	if err != nil {
		return nil, err
	}
	s.heaps[mod.Name()] = h
	return h, nil
}

func (s *Session) faultHooksFor(mod *engine.Module) *faultHooks {
	if f, ok := s.faults[mod.Name()]; ok {
		return f
	}
	f := &faultHooks{
		check:    mod.Function(marshal.ExportExceptionCheck),
		clear:    mod.Function(marshal.ExportExceptionClear),
		describe: mod.Function(marshal.ExportExceptionDescribe),
	}
	if f.describe != nil {
		if h, err := s.heapFor(mod); err == nil {
			f.heap = h
		}
	}
	s.faults[mod.Name()] = f
	return f
}

// Err returns the startup error, or nil when the runtime is running.
func (s *Session) Err() error { return s.err }

// Degraded reports whether the runtime failed to start or any entry point
// is unresolved.
func (s *Session) Degraded() bool { return s.err != nil || len(s.missing) > 0 }

// Missing lists the unresolved entry points, sorted. It is empty when the
// runtime never started.
func (s *Session) Missing() []string {
	return append([]string(nil), s.missing...)
}

// Symbols reports the resolution of every entry point in table order.
func (s *Session) Symbols() []SymbolInfo {
	out := make([]SymbolInfo, 0, len(symbolSpecs))
	for _, spec := range symbolSpecs {
		info := SymbolInfo{Name: string(spec.symbol), Signature: spec.sig.String()}
		if ep, ok := s.entries[spec.symbol]; ok {
			info.Module = ep.module.Name()
			info.Resolved = true
		}
		out = append(out, info)
	}
	return out
}

// Runtime returns the session's runtime, nil when it never started.
func (s *Session) Runtime() *engine.Runtime { return s.rt }

// LiveRefs sums the outstanding host references over every guest heap the
// session uses. Heaps without a counter are skipped.
func (s *Session) LiveRefs(ctx context.Context) (int, error) {
	total := 0
	for _, h := range s.heaps {
		n, ok, err := h.LiveRefs(ctx)
		if err != nil {
			return 0, err
		}
		if ok {
			total += n
		}
	}
	return total, nil
}

// Close releases the runtime. Closing twice is a no-op.
func (s *Session) Close(ctx context.Context) error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.rt == nil {
		return nil
	}
	return s.rt.Close(ctx)
}

// entry returns the resolved entry point for sym or the error explaining why
// it cannot be called.
func (s *Session) entry(sym Symbol) (*entryPoint, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.closed {
		return nil, errors.New(errors.PhaseCall, errors.KindRuntimeUnavailable).
			Symbol(string(sym)).
			Detail("session closed").
			Build()
	}
	ep, ok := s.entries[sym]
	if !ok {
		return nil, errors.SymbolMissing(string(sym))
	}
	return ep, nil
}
