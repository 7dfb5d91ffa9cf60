package bridge

import (
	"context"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/simhook/errors"
	"github.com/wippyai/simhook/marshal"
)

// invoke calls ep with stack and turns a trap or a pending guest exception
// into a boundary fault. The guest's exception state is always cleared
// before invoke returns.
func (s *Session) invoke(ctx context.Context, ep *entryPoint, stack []uint64) error {
	if err := ep.fn.CallWithStack(ctx, stack); err != nil {
		Logger().Warn("guest call failed",
			zap.String("symbol", string(ep.symbol)),
			zap.String("module", ep.module.Name()),
			zap.Error(err))
		return errors.BoundaryFault(string(ep.symbol), "guest call failed", err)
	}
	return s.checkFault(ctx, ep)
}

func (s *Session) checkFault(ctx context.Context, ep *entryPoint) error {
	f := ep.faults
	if f.check == nil {
		return nil
	}
	res, err := f.check.Call(ctx)
	if err != nil {
		return errors.BoundaryFault(string(ep.symbol), "exception check failed", err)
	}
	if api.DecodeU32(res[0]) == 0 {
		return nil
	}

	text := s.describe(ctx, ep)
	Logger().Warn("guest exception",
		zap.String("symbol", string(ep.symbol)),
		zap.String("module", ep.module.Name()),
		zap.String("exception", text))

	if f.clear != nil {
		if _, err := f.clear.Call(ctx); err != nil {
			return errors.BoundaryFault(string(ep.symbol), text, err)
		}
	}
	return errors.BoundaryFault(string(ep.symbol), text, nil)
}

func (s *Session) describe(ctx context.Context, ep *entryPoint) string {
	const fallback = "guest exception"
	f := ep.faults
	if f.describe == nil || f.heap == nil {
		return fallback
	}
	res, err := f.describe.Call(ctx)
	if err != nil {
		return fallback
	}
	text, err := f.heap.TakeString(ctx, marshal.Ref(api.DecodeU32(res[0])))
	if err != nil || text == "" {
		return fallback
	}
	return text
}

// callRef invokes ep and returns the reference it produced. A reference
// returned alongside a guest exception is released.
func (s *Session) callRef(ctx context.Context, ep *entryPoint, stack []uint64) (marshal.Ref, error) {
	if err := ep.fn.CallWithStack(ctx, stack); err != nil {
		Logger().Warn("guest call failed",
			zap.String("symbol", string(ep.symbol)),
			zap.String("module", ep.module.Name()),
			zap.Error(err))
		return marshal.Null, errors.BoundaryFault(string(ep.symbol), "guest call failed", err)
	}
	ref := marshal.Ref(api.DecodeU32(stack[0]))
	if err := s.checkFault(ctx, ep); err != nil {
		release(ctx, ep.heap, ref)
		return marshal.Null, err
	}
	return ref, nil
}

// release drops ref and logs a failure; used on deferred paths.
func release(ctx context.Context, heap *marshal.Heap, ref marshal.Ref) {
	if err := heap.Release(ctx, ref); err != nil {
		Logger().Warn("release guest reference",
			zap.String("module", heap.Module()),
			zap.Uint32("ref", uint32(ref)),
			zap.Error(err))
	}
}

// callF64 invokes a scalar entry point taking and returning f64 values.
func (s *Session) callF64(ctx context.Context, sym Symbol, args ...float64) (float64, error) {
	ep, err := s.entry(sym)
	if err != nil {
		return 0, err
	}
	stack := make([]uint64, ep.sig.stackSize())
	for i, a := range args {
		stack[i] = api.EncodeF64(a)
	}
	if err := s.invoke(ctx, ep, stack); err != nil {
		return 0, err
	}
	return api.DecodeF64(stack[0]), nil
}
