package marshal

import (
	"context"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/simhook/engine"
)

// Envelope builds the argument stack of one boundary call and owns every
// guest reference acquired while doing so. The first error is sticky: later
// appends are skipped and Err reports it. Callers defer Release.
type Envelope struct {
	ctx      context.Context
	heap     *Heap
	stack    []uint64
	acquired []Ref
	err      error
}

// NewEnvelope starts an envelope for a call with up to hint arguments.
// ctx is used for the guest allocations made while marshalling.
func (h *Heap) NewEnvelope(ctx context.Context, hint int) *Envelope {
	return &Envelope{ctx: ctx, heap: h, stack: make([]uint64, 0, hint)}
}

func (e *Envelope) F64(v float64) *Envelope {
	if e.err == nil {
		e.stack = append(e.stack, api.EncodeF64(v))
	}
	return e
}

func (e *Envelope) I32(v int32) *Envelope {
	if e.err == nil {
		e.stack = append(e.stack, api.EncodeI32(v))
	}
	return e
}

func (e *Envelope) I64(v int64) *Envelope {
	if e.err == nil {
		e.stack = append(e.stack, api.EncodeI64(v))
	}
	return e
}

// Bool is passed as an i32 0 or 1.
func (e *Envelope) Bool(v bool) *Envelope {
	if v {
		return e.I32(1)
	}
	return e.I32(0)
}

// Ref passes a borrowed reference; the envelope does not release it.
func (e *Envelope) Ref(r Ref) *Envelope {
	if e.err == nil {
		e.stack = append(e.stack, api.EncodeU32(uint32(r)))
	}
	return e
}

func (e *Envelope) own(r Ref, err error) Ref {
	if err != nil {
		e.err = err
		return Null
	}
	if r != Null {
		e.acquired = append(e.acquired, r)
	}
	return r
}

func (e *Envelope) String(s string) *Envelope {
	if e.err != nil {
		return e
	}
	return e.Ref(e.own(e.heap.String(e.ctx, s)))
}

func (e *Envelope) Float64s(values []float64) *Envelope {
	if e.err != nil {
		return e
	}
	return e.Ref(e.own(e.heap.Float64s(e.ctx, values)))
}

// Strings passes a reference array of guest strings.
func (e *Envelope) Strings(values []string) *Envelope {
	if e.err != nil {
		return e
	}
	container := e.own(e.heap.Refs(e.ctx, make([]Ref, len(values))))
	if e.err != nil {
		return e
	}
	for i, s := range values {
		r := e.own(e.heap.String(e.ctx, s))
		if e.err != nil {
			return e
		}
		if err := e.heap.mem.WriteU32(payload(container)+uint32(i)*4, uint32(r)); err != nil {
			e.err = err
			return e
		}
	}
	return e.Ref(container)
}

// Matrix passes a reference array of f64 row arrays. The container is
// acquired first so that reverse-order release frees the rows before it.
func (e *Envelope) Matrix(rows [][]float64) *Envelope {
	if e.err != nil {
		return e
	}
	container := e.own(e.heap.Refs(e.ctx, make([]Ref, len(rows))))
	if e.err != nil {
		return e
	}
	for i, row := range rows {
		r := e.own(e.heap.Float64s(e.ctx, row))
		if e.err != nil {
			return e
		}
		if err := e.heap.mem.WriteU32(payload(container)+uint32(i)*4, uint32(r)); err != nil {
			e.err = err
			return e
		}
	}
	return e.Ref(container)
}

// Stack returns the argument stack, grown to at least n slots so that
// results fit.
func (e *Envelope) Stack(n int) []uint64 {
	if len(e.stack) >= n {
		return e.stack
	}
	out := make([]uint64, n)
	copy(out, e.stack)
	return out
}

// Err returns the first marshalling error.
func (e *Envelope) Err() error { return e.err }

// Acquired returns the number of references the envelope owns.
func (e *Envelope) Acquired() int { return len(e.acquired) }

// Release drops every acquired reference once, newest first. The first
// release error is returned after all releases were attempted.
func (e *Envelope) Release(ctx context.Context) error {
	var first error
	for i := len(e.acquired) - 1; i >= 0; i-- {
		if err := e.heap.Release(ctx, e.acquired[i]); err != nil {
			engine.Logger().Warn("release guest reference",
				zap.String("module", e.heap.module),
				zap.Uint32("ref", uint32(e.acquired[i])),
				zap.Error(err))
			if first == nil {
				first = err
			}
		}
	}
	e.acquired = nil
	return first
}
