package marshal

import (
	"context"
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/wippyai/simhook/errors"
)

// hostLittleEndian is true when Go values share the guest's byte order, so
// element arrays can be moved with a single byte copy.
var hostLittleEndian = func() bool {
	x := uint16(1)
	return *(*byte)(unsafe.Pointer(&x)) == 1
}()

func payload(ref Ref) uint32 { return uint32(ref) + headerSize }

func byteLen(n uint32, elemSize uint32) (uint32, error) {
	if n == 0 {
		return 0, nil
	}
	if n > math.MaxUint32/elemSize {
		return 0, errors.New(errors.PhaseDecode, errors.KindInvalidData).
			Detail("length overflow: %d * %d exceeds uint32", n, elemSize).
			Build()
	}
	return n * elemSize, nil
}

// Float64s allocates a guest f64 array holding values.
func (h *Heap) Float64s(ctx context.Context, values []float64) (Ref, error) {
	ref, err := h.alloc(ctx, h.newF64, KindF64Array, len(values))
	if err != nil || len(values) == 0 {
		return ref, err
	}
	var data []byte
	if hostLittleEndian {
		data = unsafe.Slice((*byte)(unsafe.Pointer(&values[0])), len(values)*8)
	} else {
		data = make([]byte, len(values)*8)
		for i, v := range values {
			binary.LittleEndian.PutUint64(data[i*8:], math.Float64bits(v))
		}
	}
	if err := h.mem.Write(payload(ref), data); err != nil {
		_ = h.Release(ctx, ref)
		return Null, err
	}
	return ref, nil
}

// Int64s allocates a guest i64 array holding values.
func (h *Heap) Int64s(ctx context.Context, values []int64) (Ref, error) {
	ref, err := h.alloc(ctx, h.newI64, KindI64Array, len(values))
	if err != nil || len(values) == 0 {
		return ref, err
	}
	var data []byte
	if hostLittleEndian {
		data = unsafe.Slice((*byte)(unsafe.Pointer(&values[0])), len(values)*8)
	} else {
		data = make([]byte, len(values)*8)
		for i, v := range values {
			binary.LittleEndian.PutUint64(data[i*8:], uint64(v))
		}
	}
	if err := h.mem.Write(payload(ref), data); err != nil {
		_ = h.Release(ctx, ref)
		return Null, err
	}
	return ref, nil
}

// String allocates a guest UTF-8 string.
func (h *Heap) String(ctx context.Context, s string) (Ref, error) {
	ref, err := h.alloc(ctx, h.newString, KindString, len(s))
	if err != nil || len(s) == 0 {
		return ref, err
	}
	if err := h.mem.Write(payload(ref), unsafe.Slice(unsafe.StringData(s), len(s))); err != nil {
		_ = h.Release(ctx, ref)
		return Null, err
	}
	return ref, nil
}

// Refs allocates a guest reference array holding refs. The array does not
// take ownership of the elements; callers release them separately.
func (h *Heap) Refs(ctx context.Context, refs []Ref) (Ref, error) {
	ref, err := h.alloc(ctx, h.newRefArray, KindRefArray, len(refs))
	if err != nil {
		return ref, err
	}
	for i, r := range refs {
		if err := h.mem.WriteU32(payload(ref)+uint32(i)*4, uint32(r)); err != nil {
			_ = h.Release(ctx, ref)
			return Null, err
		}
	}
	return ref, nil
}

// ReadFloat64s copies a guest f64 array into a new slice. Null yields an
// empty slice.
func (h *Heap) ReadFloat64s(ref Ref) ([]float64, error) {
	if ref == Null {
		return []float64{}, nil
	}
	n, err := h.checked(ref, KindF64Array)
	if err != nil {
		return nil, err
	}
	size, err := byteLen(n, 8)
	if err != nil {
		return nil, err
	}
	result := make([]float64, n)
	if n == 0 {
		return result, nil
	}
	view, err := h.mem.View(payload(ref), size)
	if err != nil {
		return nil, err
	}
	if hostLittleEndian {
		copy(unsafe.Slice((*byte)(unsafe.Pointer(&result[0])), size), view)
		return result, nil
	}
	for i := range result {
		result[i] = math.Float64frombits(binary.LittleEndian.Uint64(view[i*8:]))
	}
	return result, nil
}

// ReadInt64s copies a guest i64 array into a new slice. Null yields an
// empty slice.
func (h *Heap) ReadInt64s(ref Ref) ([]int64, error) {
	if ref == Null {
		return []int64{}, nil
	}
	n, err := h.checked(ref, KindI64Array)
	if err != nil {
		return nil, err
	}
	size, err := byteLen(n, 8)
	if err != nil {
		return nil, err
	}
	result := make([]int64, n)
	if n == 0 {
		return result, nil
	}
	view, err := h.mem.View(payload(ref), size)
	if err != nil {
		return nil, err
	}
	if hostLittleEndian {
		copy(unsafe.Slice((*byte)(unsafe.Pointer(&result[0])), size), view)
		return result, nil
	}
	for i := range result {
		result[i] = int64(binary.LittleEndian.Uint64(view[i*8:]))
	}
	return result, nil
}

// ReadString copies a guest string. Null yields "".
func (h *Heap) ReadString(ref Ref) (string, error) {
	if ref == Null {
		return "", nil
	}
	n, err := h.checked(ref, KindString)
	if err != nil {
		return "", err
	}
	data, err := h.mem.View(payload(ref), n)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ReadRefs reads the elements of a guest reference array. Null yields an
// empty slice.
func (h *Heap) ReadRefs(ref Ref) ([]Ref, error) {
	if ref == Null {
		return []Ref{}, nil
	}
	n, err := h.checked(ref, KindRefArray)
	if err != nil {
		return nil, err
	}
	size, err := byteLen(n, 4)
	if err != nil {
		return nil, err
	}
	view, err := h.mem.View(payload(ref), size)
	if err != nil {
		return nil, err
	}
	result := make([]Ref, n)
	for i := range result {
		result[i] = Ref(binary.LittleEndian.Uint32(view[i*4:]))
	}
	return result, nil
}

// TakeFloat64s reads a returned f64 array and releases it. The handle is
// released on every path.
func (h *Heap) TakeFloat64s(ctx context.Context, ref Ref) ([]float64, error) {
	values, err := h.ReadFloat64s(ref)
	if rerr := h.Release(ctx, ref); err == nil {
		err = rerr
	}
	if err != nil {
		return nil, err
	}
	return values, nil
}

// TakeInt64s reads a returned i64 array and releases it.
func (h *Heap) TakeInt64s(ctx context.Context, ref Ref) ([]int64, error) {
	values, err := h.ReadInt64s(ref)
	if rerr := h.Release(ctx, ref); err == nil {
		err = rerr
	}
	if err != nil {
		return nil, err
	}
	return values, nil
}

// TakeString reads a returned string and releases it.
func (h *Heap) TakeString(ctx context.Context, ref Ref) (string, error) {
	s, err := h.ReadString(ref)
	if rerr := h.Release(ctx, ref); err == nil {
		err = rerr
	}
	if err != nil {
		return "", err
	}
	return s, nil
}
