package engine

import (
	"context"
	"io"
	"math"
	"reflect"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/simhook/errors"
)

// Host is the interface for struct-based host modules.
// All exported methods (except Namespace) are registered as host functions
// under the lower-kebab form of the method name, so Atan2 becomes "atan2".
// Method signatures must be acceptable to wazero's WithFunc: an optional
// context.Context and api.Module followed by numeric parameters.
type Host interface {
	// Namespace returns the import module name (e.g., "mathlib").
	Namespace() string
}

// HostRegistry collects host functions by import module name.
type HostRegistry struct {
	funcs map[string]map[string]any
	mu    sync.RWMutex
}

func NewHostRegistry() *HostRegistry {
	return &HostRegistry{
		funcs: make(map[string]map[string]any),
	}
}

func (r *HostRegistry) RegisterHost(h Host) error {
	ns := h.Namespace()
	if ns == "" {
		return errors.New(errors.PhaseLoad, errors.KindMalformedInput).
			Detail("host namespace cannot be empty").
			Build()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.funcs[ns] == nil {
		r.funcs[ns] = make(map[string]any)
	}

	rv := reflect.ValueOf(h)
	rt := rv.Type()

	for i := 0; i < rt.NumMethod(); i++ {
		method := rt.Method(i)
		if !method.IsExported() || method.Name == "Namespace" {
			continue
		}
		r.funcs[ns][hostFuncName(method.Name)] = rv.Method(i).Interface()
	}

	return nil
}

// functions lists the registered functions of namespace, sorted. Callers
// hold r.mu.
func (r *HostRegistry) functions(namespace string) []string {
	names := make([]string, 0, len(r.funcs[namespace]))
	for name := range r.funcs[namespace] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Instantiate builds one wazero host module per namespace.
func (r *HostRegistry) Instantiate(ctx context.Context, rt wazero.Runtime) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	namespaces := make([]string, 0, len(r.funcs))
	for ns := range r.funcs {
		namespaces = append(namespaces, ns)
	}
	sort.Strings(namespaces)

	for _, ns := range namespaces {
		builder := rt.NewHostModuleBuilder(ns)
		for name, fn := range r.funcs[ns] {
			builder = builder.NewFunctionBuilder().WithFunc(fn).Export(name)
		}
		if _, err := builder.Instantiate(ctx); err != nil {
			return errors.Instantiation(ns, err)
		}
		Logger().Debug("host module registered",
			zap.String("namespace", ns),
			zap.Strings("functions", r.functions(ns)))
	}
	return nil
}

// hostFuncName converts PascalCase to lower kebab-case.
// Handles acronyms: GetHTTPURL -> get-http-url
func hostFuncName(s string) string {
	if len(s) == 0 {
		return ""
	}

	runes := []rune(s)
	var result strings.Builder

	for i := 0; i < len(runes); i++ {
		r := runes[i]

		if unicode.IsUpper(r) {
			acronymEnd := i + 1
			for acronymEnd < len(runes) && unicode.IsUpper(runes[acronymEnd]) {
				acronymEnd++
			}

			if acronymEnd > i+1 {
				// Last uppercase before lowercase starts next word, not part of acronym
				if acronymEnd < len(runes) && unicode.IsLower(runes[acronymEnd]) {
					acronymEnd--
				}
			}

			if i > 0 {
				result.WriteByte('-')
			}

			for j := i; j < acronymEnd; j++ {
				result.WriteRune(unicode.ToLower(runes[j]))
			}
			i = acronymEnd - 1
		} else {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// MathLib is the native math library offered to guests as "mathlib".
type MathLib struct{}

func (MathLib) Namespace() string { return "mathlib" }

func (MathLib) Sin(x float64) float64      { return math.Sin(x) }
func (MathLib) Cos(x float64) float64      { return math.Cos(x) }
func (MathLib) Tan(x float64) float64      { return math.Tan(x) }
func (MathLib) Asin(x float64) float64     { return math.Asin(x) }
func (MathLib) Acos(x float64) float64     { return math.Acos(x) }
func (MathLib) Atan(x float64) float64     { return math.Atan(x) }
func (MathLib) Atan2(y, x float64) float64 { return math.Atan2(y, x) }
func (MathLib) Sqrt(x float64) float64     { return math.Sqrt(x) }
func (MathLib) Exp(x float64) float64      { return math.Exp(x) }
func (MathLib) Log(x float64) float64      { return math.Log(x) }
func (MathLib) Pow(x, y float64) float64   { return math.Pow(x, y) }
func (MathLib) Hypot(x, y float64) float64 { return math.Hypot(x, y) }

// Console receives guest text output as "console". Lines are logged and,
// when Out is set, written to it.
type Console struct {
	Out io.Writer
	mu  sync.Mutex
}

func (c *Console) Namespace() string { return "console" }

// Println writes the UTF-8 text at ptr..ptr+length followed by a newline.
func (c *Console) Println(_ context.Context, m api.Module, ptr, length uint32) {
	mem := m.Memory()
	if mem == nil {
		return
	}
	text, ok := mem.Read(ptr, length)
	if !ok {
		Logger().Warn("guest println out of bounds",
			zap.String("module", m.Name()),
			zap.Uint32("ptr", ptr),
			zap.Uint32("len", length))
		return
	}
	Logger().Info("guest output", zap.String("module", m.Name()), zap.ByteString("text", text))

	if c.Out == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	line := make([]byte, 0, len(text)+1)
	line = append(line, text...)
	line = append(line, '\n')
	_, _ = c.Out.Write(line)
}
