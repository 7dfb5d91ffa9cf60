package marshal

import (
	"bytes"
	"context"
	"math"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/wippyai/simhook/engine"
	"github.com/wippyai/simhook/errors"
	"github.com/wippyai/simhook/internal/simguest"
)

//go:generate wat2wasm testdata/nullalloc.wat -o testdata/nullalloc.wasm
//go:generate wat2wasm testdata/partialheap.wat -o testdata/partialheap.wasm

type fixture struct {
	ctx  context.Context
	rt   *engine.Runtime
	mod  *engine.Module
	heap *Heap
	out  *bytes.Buffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	out := &bytes.Buffer{}
	rt, err := engine.New(ctx, engine.Config{
		Sources: []engine.Source{simguest.Source()},
		Stdout:  out,
	})
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	t.Cleanup(func() { rt.Close(ctx) })

	mod := rt.Module(simguest.ModuleName)
	heap, err := NewHeap(mod)
	if err != nil {
		t.Fatalf("NewHeap: %v", err)
	}
	return &fixture{ctx: ctx, rt: rt, mod: mod, heap: heap, out: out}
}

func (f *fixture) live(t *testing.T) int {
	t.Helper()
	n, ok, err := f.heap.LiveRefs(f.ctx)
	if err != nil || !ok {
		t.Fatalf("LiveRefs: %d %v %v", n, ok, err)
	}
	return n
}

func TestHeap_Float64s(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		values []float64
	}{
		{"empty", []float64{}},
		{"single", []float64{math.Pi}},
		{"mixed", []float64{0, -1.5, math.MaxFloat64, math.SmallestNonzeroFloat64, math.Inf(-1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref, err := f.heap.Float64s(f.ctx, tt.values)
			if err != nil {
				t.Fatalf("Float64s: %v", err)
			}
			kind, err := f.heap.Kind(ref)
			if err != nil || kind != KindF64Array {
				t.Fatalf("kind = %v, %v", kind, err)
			}
			got, err := f.heap.TakeFloat64s(f.ctx, ref)
			if err != nil {
				t.Fatalf("TakeFloat64s: %v", err)
			}
			if len(got) != len(tt.values) {
				t.Fatalf("len = %d, want %d", len(got), len(tt.values))
			}
			for i := range got {
				if got[i] != tt.values[i] {
					t.Errorf("[%d] = %v, want %v", i, got[i], tt.values[i])
				}
			}
			if n := f.live(t); n != 0 {
				t.Errorf("live = %d, want 0", n)
			}
		})
	}
}

func TestHeap_Int64s(t *testing.T) {
	f := newFixture(t)
	values := []int64{0, -1, math.MaxInt64, math.MinInt64, 1700000000}
	ref, err := f.heap.Int64s(f.ctx, values)
	if err != nil {
		t.Fatalf("Int64s: %v", err)
	}
	got, err := f.heap.TakeInt64s(f.ctx, ref)
	if err != nil {
		t.Fatalf("TakeInt64s: %v", err)
	}
	for i := range values {
		if got[i] != values[i] {
			t.Errorf("[%d] = %d, want %d", i, got[i], values[i])
		}
	}
}

func TestHeap_String(t *testing.T) {
	f := newFixture(t)
	for _, s := range []string{"", "GC", "Überlingen ∑"} {
		ref, err := f.heap.String(f.ctx, s)
		if err != nil {
			t.Fatalf("String(%q): %v", s, err)
		}
		got, err := f.heap.TakeString(f.ctx, ref)
		if err != nil || got != s {
			t.Errorf("TakeString = %q, %v; want %q", got, err, s)
		}
	}
	if n := f.live(t); n != 0 {
		t.Errorf("live = %d, want 0", n)
	}
}

func TestHeap_Refs(t *testing.T) {
	f := newFixture(t)
	a, _ := f.heap.String(f.ctx, "a")
	b, _ := f.heap.Float64s(f.ctx, []float64{1})
	arr, err := f.heap.Refs(f.ctx, []Ref{a, Null, b})
	if err != nil {
		t.Fatalf("Refs: %v", err)
	}
	got, err := f.heap.ReadRefs(arr)
	if err != nil {
		t.Fatalf("ReadRefs: %v", err)
	}
	if len(got) != 3 || got[0] != a || got[1] != Null || got[2] != b {
		t.Errorf("refs = %v", got)
	}
	for _, r := range []Ref{b, a, arr} {
		if err := f.heap.Release(f.ctx, r); err != nil {
			t.Fatalf("Release: %v", err)
		}
	}
	if n := f.live(t); n != 0 {
		t.Errorf("live = %d, want 0", n)
	}
}

func TestHeap_NullReads(t *testing.T) {
	f := newFixture(t)
	if v, err := f.heap.ReadFloat64s(Null); err != nil || v == nil || len(v) != 0 {
		t.Errorf("ReadFloat64s(Null) = %v, %v", v, err)
	}
	if v, err := f.heap.ReadInt64s(Null); err != nil || v == nil || len(v) != 0 {
		t.Errorf("ReadInt64s(Null) = %v, %v", v, err)
	}
	if v, err := f.heap.ReadString(Null); err != nil || v != "" {
		t.Errorf("ReadString(Null) = %q, %v", v, err)
	}
	if err := f.heap.Release(f.ctx, Null); err != nil {
		t.Errorf("Release(Null): %v", err)
	}
}

func TestHeap_KindMismatch(t *testing.T) {
	f := newFixture(t)
	ref, err := f.heap.String(f.ctx, "not numbers")
	if err != nil {
		t.Fatalf("String: %v", err)
	}
	defer f.heap.Release(f.ctx, ref)

	_, err = f.heap.ReadFloat64s(ref)
	if !errors.IsKind(err, errors.KindInvalidData) {
		t.Errorf("err = %v, want invalid_data", err)
	}
}

func TestHeap_CorruptHeader(t *testing.T) {
	f := newFixture(t)
	mem := f.mod.Memory()
	// A fabricated f64 array header claiming more elements than allowed.
	const addr = 64
	if err := mem.WriteU32(addr, MaxElements+1); err != nil {
		t.Fatal(err)
	}
	if err := mem.WriteU32(addr+4, uint32(KindF64Array)); err != nil {
		t.Fatal(err)
	}
	if _, err := f.heap.ReadFloat64s(addr); !errors.IsKind(err, errors.KindInvalidData) {
		t.Errorf("oversized header: err = %v, want invalid_data", err)
	}

	// A header that fits the limit but runs past the end of memory.
	if err := mem.WriteU32(addr, 1<<20); err != nil {
		t.Fatal(err)
	}
	if _, err := f.heap.ReadFloat64s(addr); !errors.IsKind(err, errors.KindOutOfBounds) {
		t.Errorf("past end: err = %v, want out_of_bounds", err)
	}

	if _, err := f.heap.ReadString(Ref(mem.Size())); !errors.IsKind(err, errors.KindOutOfBounds) {
		t.Errorf("header past end: err = %v, want out_of_bounds", err)
	}
}

func TestEnvelope_Strings(t *testing.T) {
	f := newFixture(t)
	env := f.heap.NewEnvelope(f.ctx, 1).Strings([]string{"one", "two", ""})
	if err := env.Err(); err != nil {
		t.Fatalf("Strings: %v", err)
	}
	if env.Acquired() != 4 {
		t.Errorf("acquired = %d, want 4", env.Acquired())
	}
	if _, err := f.mod.Function("print_args").Call(f.ctx, env.Stack(1)...); err != nil {
		t.Fatalf("print_args: %v", err)
	}
	if err := env.Release(f.ctx); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if got := f.out.String(); got != "one\ntwo\n\n" {
		t.Errorf("output = %q", got)
	}
	if n := f.live(t); n != 0 {
		t.Errorf("live = %d, want 0", n)
	}
	// A second release is a no-op.
	if err := env.Release(f.ctx); err != nil {
		t.Errorf("second Release: %v", err)
	}
}

func TestEnvelope_Matrix(t *testing.T) {
	f := newFixture(t)
	rows := [][]float64{{1, 2, 3}, {4, 5}, {}}
	env := f.heap.NewEnvelope(f.ctx, 2).F64(7).Matrix(rows)
	if err := env.Err(); err != nil {
		t.Fatalf("Matrix: %v", err)
	}
	stack := env.Stack(1)
	if len(stack) != 2 {
		t.Fatalf("stack = %v", stack)
	}

	container := Ref(uint32(stack[1]))
	refs, err := f.heap.ReadRefs(container)
	if err != nil {
		t.Fatalf("ReadRefs: %v", err)
	}
	if len(refs) != len(rows) {
		t.Fatalf("rows = %d, want %d", len(refs), len(rows))
	}
	for i, r := range refs {
		got, err := f.heap.ReadFloat64s(r)
		if err != nil {
			t.Fatalf("row %d: %v", i, err)
		}
		if len(got) != len(rows[i]) {
			t.Errorf("row %d len = %d, want %d", i, len(got), len(rows[i]))
		}
	}
	if got := f.live(t); got != len(rows)+1 {
		t.Errorf("live = %d, want %d", got, len(rows)+1)
	}
	if err := env.Release(f.ctx); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if n := f.live(t); n != 0 {
		t.Errorf("live = %d, want 0", n)
	}
}

func TestEnvelope_Scalars(t *testing.T) {
	f := newFixture(t)
	env := f.heap.NewEnvelope(f.ctx, 5).F64(1.5).I32(-2).I64(-3).Bool(true).Ref(Null)
	stack := env.Stack(8)
	if len(stack) != 8 {
		t.Fatalf("len = %d, want 8", len(stack))
	}
	if stack[1] != uint64(uint32(0xFFFFFFFE)) || stack[2] != uint64(0xFFFFFFFFFFFFFFFD) || stack[3] != 1 || stack[4] != 0 {
		t.Errorf("stack = %x", stack)
	}
	if env.Acquired() != 0 {
		t.Errorf("acquired = %d, want 0", env.Acquired())
	}
}

func TestEnvelope_StickyError(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zapcore.DebugLevel)
	engine.SetLogger(zap.New(core))
	defer engine.SetLogger(nil)

	rt, err := engine.New(ctx, engine.Config{Sources: []engine.Source{
		{Name: "nullheap", Path: "testdata/nullalloc.wasm"},
	}})
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	defer rt.Close(ctx)
	mod := rt.Module("nullheap")
	heap, err := NewHeap(mod)
	if err != nil {
		t.Fatalf("NewHeap: %v", err)
	}

	env := heap.NewEnvelope(ctx, 3).F64(1).Float64s([]float64{1, 2}).F64(3).String("x")
	if !errors.IsKind(env.Err(), errors.KindAllocation) {
		t.Fatalf("err = %v, want allocation", env.Err())
	}
	if got := env.Stack(0); len(got) != 1 {
		t.Errorf("stack after failure = %v, want only the first argument", got)
	}
	if env.Acquired() != 0 {
		t.Errorf("acquired = %d, want 0", env.Acquired())
	}

	// The allocator's pending exception was cleared.
	res, err := mod.Function(ExportExceptionCheck).Call(ctx)
	if err != nil || res[0] != 0 {
		t.Errorf("exception pending after failed allocation: %v %v", res, err)
	}
	if _, ok, _ := heap.LiveRefs(ctx); ok {
		t.Error("LiveRefs reported ok for a guest without the counter")
	}

	failed := logs.FilterMessage("guest allocation failed").All()
	if len(failed) != 1 {
		t.Fatalf("allocation failure logs = %d, want 1", len(failed))
	}
	if fields := failed[0].ContextMap(); fields["module"] != "nullheap" || fields["memory_bytes"] != uint32(65536) {
		t.Errorf("allocation failure fields = %v", fields)
	}
}

func TestNewHeap_MissingExports(t *testing.T) {
	ctx := context.Background()
	rt, err := engine.New(ctx, engine.Config{Sources: []engine.Source{
		{Name: "partial", Path: "testdata/partialheap.wasm"},
	}})
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	defer rt.Close(ctx)

	_, err = NewHeap(rt.Module("partial"))
	if !errors.IsKind(err, errors.KindSymbolMissing) {
		t.Fatalf("err = %v, want symbol_missing", err)
	}
	var e *errors.Error
	if !asError(err, &e) || e.Symbol != ExportNewI64Array {
		t.Errorf("symbol = %v, want %s", err, ExportNewI64Array)
	}
}

func TestHeap_MalformedLength(t *testing.T) {
	f := newFixture(t)
	if _, err := f.heap.alloc(f.ctx, f.heap.newF64, KindF64Array, MaxElements+1); !errors.IsKind(err, errors.KindMalformedInput) {
		t.Errorf("err = %v, want malformed_input", err)
	}
}

func asError(err error, target **errors.Error) bool {
	e, ok := err.(*errors.Error)
	if ok {
		*target = e
	}
	return ok
}
