package engine

import (
	"context"
	"io"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"go.uber.org/zap"

	"github.com/wippyai/simhook/errors"
)

// DefaultImplementationSet is the implementation-set flag passed to guests
// when none is configured.
const DefaultImplementationSet = "Sws22"

// ImplementationSetEnv is the environment variable carrying the
// implementation set into WASI guests.
const ImplementationSetEnv = "SIM_IMPLEMENTATION_SET"

// Config holds configuration for runtime creation
type Config struct {
	// LibraryDir is scanned for *.wasm modules.
	LibraryDir string

	// Modules lists extra module files, loaded after LibraryDir.
	Modules []string

	// Sources are in-memory modules, loaded last.
	Sources []Source

	// ImplementationSet selects the guest's implementation map.
	// Empty means DefaultImplementationSet.
	ImplementationSet string

	// MemoryLimitPages sets the maximum memory per instance in pages (64KB each).
	// 0 means default (65536 pages = 4GB).
	MemoryLimitPages uint32

	// CacheDir enables the on-disk compilation cache.
	CacheDir string

	// CloseOnContextDone makes a cancelled context abort an in-flight guest
	// call. The aborted module is closed and unusable afterwards.
	CloseOnContextDone bool

	// Stdout receives console.println output and WASI stdout.
	Stdout io.Writer

	// Stderr receives WASI stderr.
	Stderr io.Writer

	// Hosts are extra host modules registered next to mathlib and console.
	Hosts []Host
}

func (c Config) implementationSet() string {
	if c.ImplementationSet == "" {
		return DefaultImplementationSet
	}
	return c.ImplementationSet
}

// Module is one instantiated library module.
type Module struct {
	name   string
	path   string
	mod    api.Module
	memory *Memory
}

func (m *Module) Name() string { return m.name }

// Path returns the file the module was loaded from, empty for in-memory
// sources.
func (m *Module) Path() string { return m.path }

// Function returns the named export, or nil.
func (m *Module) Function(name string) api.Function {
	return m.mod.ExportedFunction(name)
}

// Exports lists the module's exported function names, sorted.
func (m *Module) Exports() []string {
	defs := m.mod.ExportedFunctionDefinitions()
	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Memory returns the module's exported memory view.
func (m *Module) Memory() *Memory { return m.memory }

// Closed reports whether the module has been closed, by Close or by a
// context-aborted call.
func (m *Module) Closed() bool { return m.mod.IsClosed() }

// Close closes this module only.
func (m *Module) Close(ctx context.Context) error { return m.mod.Close(ctx) }

// Runtime owns a wazero runtime and the library modules instantiated in it.
type Runtime struct {
	runtime wazero.Runtime
	cache   wazero.CompilationCache
	modules []*Module
	byName  map[string]*Module
	closed  atomic.Bool
}

type compiledSource struct {
	Source
	compiled wazero.CompiledModule
}

// New starts a runtime and loads the configured library:
//  1. host modules (mathlib, console, extra hosts) and WASI are registered;
//  2. every source is compiled;
//  3. modules are instantiated once all the modules they import exist.
//
// On error everything created so far is closed.
func New(ctx context.Context, cfg Config) (rt *Runtime, err error) {
	sources, err := Discover(cfg.LibraryDir, cfg.Modules)
	if err != nil {
		return nil, err
	}
	sources = append(sources, cfg.Sources...)
	if err := checkNames(sources); err != nil {
		return nil, err
	}
	if len(sources) == 0 {
		return nil, errors.New(errors.PhaseLoad, errors.KindNotFound).
			Detail("no library modules in %q", cfg.LibraryDir).
			Build()
	}

	runtimeCfg := wazero.NewRuntimeConfig()
	if cfg.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}
	if cfg.CloseOnContextDone {
		runtimeCfg = runtimeCfg.WithCloseOnContextDone(true)
	}

	rt = &Runtime{byName: make(map[string]*Module, len(sources))}
	if cfg.CacheDir != "" {
		cache, err := wazero.NewCompilationCacheWithDir(cfg.CacheDir)
		if err != nil {
			return nil, errors.Load("open compilation cache "+cfg.CacheDir, err)
		}
		rt.cache = cache
		runtimeCfg = runtimeCfg.WithCompilationCache(cache)
	}
	rt.runtime = wazero.NewRuntimeWithConfig(ctx, runtimeCfg)

	defer func() {
		if err != nil {
			_ = rt.Close(ctx)
			rt = nil
		}
	}()

	hosts := NewHostRegistry()
	for _, h := range append([]Host{MathLib{}, &Console{Out: cfg.Stdout}}, cfg.Hosts...) {
		if err := hosts.RegisterHost(h); err != nil {
			return nil, err
		}
	}
	if err := hosts.Instantiate(ctx, rt.runtime); err != nil {
		return nil, err
	}
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt.runtime); err != nil {
		return nil, errors.Instantiation(wasi_snapshot_preview1.ModuleName, err)
	}

	compiled := make([]*compiledSource, 0, len(sources))
	for _, src := range sources {
		bin, err := src.Binary()
		if err != nil {
			return nil, err
		}
		c, err := rt.runtime.CompileModule(ctx, bin)
		if err != nil {
			return nil, errors.New(errors.PhaseLoad, errors.KindInvalidData).
				Path(src.Name).
				Detail("compile module").
				Cause(err).
				Build()
		}
		compiled = append(compiled, &compiledSource{Source: src, compiled: c})
	}

	if err := rt.instantiate(ctx, compiled, cfg); err != nil {
		return nil, err
	}

	for _, c := range compiled {
		rt.modules = append(rt.modules, rt.byName[c.Name])
	}

	Logger().Info("guest runtime started",
		zap.Int("modules", len(rt.modules)),
		zap.String("implementation_set", cfg.implementationSet()),
		zap.Uint32("memory_limit_pages", cfg.MemoryLimitPages))
	return rt, nil
}

// instantiate repeatedly instantiates every pending module whose imports
// are all available until none are left. A round without progress means a
// cycle or an import no module provides.
func (r *Runtime) instantiate(ctx context.Context, pending []*compiledSource, cfg Config) error {
	for len(pending) > 0 {
		var next []*compiledSource
		var unresolved []string

		for _, c := range pending {
			if missing := r.missingImports(c.compiled); len(missing) > 0 {
				next = append(next, c)
				unresolved = append(unresolved, c.Name+" -> "+strings.Join(missing, ","))
				continue
			}

			mod, err := r.runtime.InstantiateModule(ctx, c.compiled, r.moduleConfig(c.Name, cfg))
			if err != nil {
				return errors.Instantiation(c.Name, err)
			}

			r.byName[c.Name] = &Module{name: c.Name, path: c.Path, mod: mod, memory: NewMemory(mod.Memory())}

			Logger().Debug("library module instantiated",
				zap.String("module", c.Name),
				zap.String("path", c.Path))
		}

		if len(next) == len(pending) {
			return errors.New(errors.PhaseLoad, errors.KindInstantiation).
				Detail("unresolved imports: %s", strings.Join(unresolved, "; ")).
				Build()
		}
		pending = next
	}
	return nil
}

func (r *Runtime) missingImports(c wazero.CompiledModule) []string {
	seen := make(map[string]bool)
	var missing []string
	check := func(module string) {
		if seen[module] {
			return
		}
		seen[module] = true
		if r.runtime.Module(module) == nil {
			missing = append(missing, module)
		}
	}
	for _, def := range c.ImportedFunctions() {
		module, _, _ := def.Import()
		check(module)
	}
	for _, def := range c.ImportedMemories() {
		module, _, _ := def.Import()
		check(module)
	}
	return missing
}

func (r *Runtime) moduleConfig(name string, cfg Config) wazero.ModuleConfig {
	set := cfg.implementationSet()
	mc := wazero.NewModuleConfig().
		WithName(name).
		WithStartFunctions("_initialize").
		WithArgs(name, "-DAbstract.Classes.Map="+set).
		WithEnv(ImplementationSetEnv, set).
		WithSysWalltime().
		WithSysNanotime()
	if cfg.Stdout != nil {
		mc = mc.WithStdout(cfg.Stdout)
	}
	if cfg.Stderr != nil {
		mc = mc.WithStderr(cfg.Stderr)
	}
	return mc
}

// Modules returns the library modules in library order.
func (r *Runtime) Modules() []*Module {
	return r.modules
}

// Module returns the named library module, or nil.
func (r *Runtime) Module(name string) *Module {
	return r.byName[name]
}

// Lookup finds the first module in library order exporting name.
func (r *Runtime) Lookup(name string) (*Module, api.Function) {
	for _, m := range r.modules {
		if fn := m.Function(name); fn != nil {
			return m, fn
		}
	}
	return nil, nil
}

// Closed reports whether Close has been called.
func (r *Runtime) Closed() bool { return r.closed.Load() }

// Close closes every module, the runtime and the compilation cache.
// Closing twice is a no-op.
func (r *Runtime) Close(ctx context.Context) error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	var err error
	if r.runtime != nil {
		err = r.runtime.Close(ctx)
	}
	if r.cache != nil {
		if cerr := r.cache.Close(ctx); err == nil {
			err = cerr
		}
	}
	return err
}
