package marshal

import (
	"context"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/simhook/engine"
	"github.com/wippyai/simhook/errors"
)

// Kind is the object kind stored in a guest header.
type Kind uint32

const (
	KindF64Array Kind = 1
	KindI64Array Kind = 2
	KindString   Kind = 3
	KindRefArray Kind = 4
	KindPattern  Kind = 5
)

func (k Kind) String() string {
	switch k {
	case KindF64Array:
		return "f64 array"
	case KindI64Array:
		return "i64 array"
	case KindString:
		return "string"
	case KindRefArray:
		return "ref array"
	case KindPattern:
		return "pattern"
	default:
		return "unknown"
	}
}

// Ref is a guest object handle: the address of its header. Null is 0.
type Ref uint32

const Null Ref = 0

// headerSize is [len u32][kind u32].
const headerSize = 8

// MaxElements bounds any array or string crossing the boundary.
const MaxElements = 1 << 26

// Guest heap and fault exports.
const (
	ExportNewF64Array       = "sim_new_f64_array"
	ExportNewI64Array       = "sim_new_i64_array"
	ExportNewString         = "sim_new_string"
	ExportNewRefArray       = "sim_new_ref_array"
	ExportRelease           = "sim_release"
	ExportLiveRefs          = "sim_live_refs"
	ExportExceptionCheck    = "sim_exception_check"
	ExportExceptionClear    = "sim_exception_clear"
	ExportExceptionDescribe = "sim_exception_describe"
)

// RequiredExports lists the heap exports a guest module must provide.
var RequiredExports = []string{
	ExportNewF64Array,
	ExportNewI64Array,
	ExportNewString,
	ExportNewRefArray,
	ExportRelease,
}

// Heap allocates, reads and releases objects in one guest module.
// A Heap is not safe for concurrent use.
type Heap struct {
	module      string
	mem         *engine.Memory
	newF64      api.Function
	newI64      api.Function
	newString   api.Function
	newRefArray api.Function
	release     api.Function
	liveRefs    api.Function
	excClear    api.Function
	stack       [1]uint64
}

// NewHeap resolves the heap exports of mod.
func NewHeap(mod *engine.Module) (*Heap, error) {
	h := &Heap{
		module:   mod.Name(),
		mem:      mod.Memory(),
		liveRefs: mod.Function(ExportLiveRefs),
		excClear: mod.Function(ExportExceptionClear),
	}
	targets := []*api.Function{&h.newF64, &h.newI64, &h.newString, &h.newRefArray, &h.release}
	for i, name := range RequiredExports {
		fn := mod.Function(name)
		if fn == nil {
			err := errors.SymbolMissing(name)
			err.Path = []string{mod.Name()}
			return nil, err
		}
		*targets[i] = fn
	}
	return h, nil
}

// Module returns the name of the module owning the heap.
func (h *Heap) Module() string { return h.module }

func (h *Heap) call1(ctx context.Context, fn api.Function, arg uint64) (uint64, error) {
	h.stack[0] = arg
	if err := fn.CallWithStack(ctx, h.stack[:]); err != nil {
		return 0, err
	}
	return h.stack[0], nil
}

func (h *Heap) alloc(ctx context.Context, fn api.Function, kind Kind, n int) (Ref, error) {
	if n < 0 || n > MaxElements {
		return Null, errors.New(errors.PhaseEncode, errors.KindMalformedInput).
			Detail("%s of length %d exceeds limit %d", kind, n, MaxElements).
			Build()
	}
	res, err := h.call1(ctx, fn, uint64(n))
	if err != nil {
		return Null, errors.AllocationFailed(errors.PhaseEncode, kind.String(), uint32(n), err)
	}
	ref := Ref(api.DecodeU32(res))
	if ref == Null {
		// The allocator raises a guest exception on exhaustion; drop it so
		// the next call starts clean.
		if h.excClear != nil {
			_, _ = h.excClear.Call(ctx)
		}
		engine.Logger().Debug("guest allocation failed",
			zap.String("module", h.module),
			zap.Stringer("kind", kind),
			zap.Int("elements", n),
			zap.Uint32("memory_bytes", h.mem.Size()))
		return Null, errors.AllocationFailed(errors.PhaseEncode, kind.String(), uint32(n), nil)
	}
	return ref, nil
}

// Release drops one host reference. Releasing Null is a no-op.
func (h *Heap) Release(ctx context.Context, ref Ref) error {
	if ref == Null {
		return nil
	}
	if _, err := h.call1(ctx, h.release, uint64(ref)); err != nil {
		return errors.New(errors.PhaseCall, errors.KindBoundaryFault).
			Symbol(ExportRelease).
			Value(ref).
			Cause(err).
			Build()
	}
	return nil
}

// LiveRefs reports the guest's count of outstanding host references. ok is
// false when the guest does not export the counter.
func (h *Heap) LiveRefs(ctx context.Context) (n int, ok bool, err error) {
	if h.liveRefs == nil {
		return 0, false, nil
	}
	res, err := h.liveRefs.Call(ctx)
	if err != nil {
		return 0, true, errors.BoundaryFault(ExportLiveRefs, "live reference count", err)
	}
	return int(int32(api.DecodeU32(res[0]))), true, nil
}

// Header reads an object's length and kind.
func (h *Heap) Header(ref Ref) (uint32, Kind, error) {
	n, err := h.mem.ReadU32(uint32(ref))
	if err != nil {
		return 0, 0, err
	}
	kind, err := h.mem.ReadU32(uint32(ref) + 4)
	if err != nil {
		return 0, 0, err
	}
	return n, Kind(kind), nil
}

// checked reads the header of ref and verifies its kind and length.
func (h *Heap) checked(ref Ref, want Kind) (uint32, error) {
	n, kind, err := h.Header(ref)
	if err != nil {
		return 0, err
	}
	if kind != want {
		return 0, errors.New(errors.PhaseDecode, errors.KindInvalidData).
			Value(ref).
			Detail("object at %d is a %s, want %s", ref, kind, want).
			Build()
	}
	if n > MaxElements {
		return 0, errors.New(errors.PhaseDecode, errors.KindInvalidData).
			Value(ref).
			Detail("%s length %d exceeds limit %d", want, n, MaxElements).
			Build()
	}
	return n, nil
}

// Kind returns the kind of the object at ref.
func (h *Heap) Kind(ref Ref) (Kind, error) {
	_, kind, err := h.Header(ref)
	return kind, err
}
