package bridge

import (
	"context"
	"math"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/simhook/errors"
	"github.com/wippyai/simhook/sim"
)

// PrintDiagnosticArgs passes args to the guest's print_args. It is a
// liveness check: the guest echoes each string on its console.
func (s *Session) PrintDiagnosticArgs(ctx context.Context, args []string) error {
	ep, err := s.entry(SymPrintArgs)
	if err != nil {
		return err
	}
	env := ep.heap.NewEnvelope(ctx, 1).Strings(args)
	defer env.Release(ctx)
	if err := env.Err(); err != nil {
		return err
	}
	return s.invoke(ctx, ep, env.Stack(ep.sig.stackSize()))
}

// ArcCosine returns acos(x) in radians as computed by the guest. |x| > 1 is
// a guest fault.
func (s *Session) ArcCosine(ctx context.Context, x float64) (float64, error) {
	r, err := s.callF64(ctx, SymArcCosine, x)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(r) || r < 0 || r > math.Pi {
		return 0, errors.New(errors.PhaseDecode, errors.KindBoundaryFault).
			Symbol(string(SymArcCosine)).
			Value(r).
			Detail("result %v outside [0, pi]", r).
			Build()
	}
	return r, nil
}

// VersionName returns the guest library's version string.
func (s *Session) VersionName(ctx context.Context) (string, error) {
	ep, err := s.entry(SymVersionName)
	if err != nil {
		return "", err
	}
	ref, err := s.callRef(ctx, ep, make([]uint64, ep.sig.stackSize()))
	if err != nil {
		return "", err
	}
	return ep.heap.TakeString(ctx, ref)
}

// LogOddsMaxPd returns the maximum detection probability of the log-odds
// curve a0 + a1*ln(x) + a2*ln(x)^2 over (0, maxX].
func (s *Session) LogOddsMaxPd(ctx context.Context, a0, a1, a2, maxX float64) (float64, error) {
	pd, err := s.callF64(ctx, SymLogOddsMaxPd, a0, a1, a2, maxX)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(pd) || pd < 0 || pd > 1 {
		return 0, errors.New(errors.PhaseDecode, errors.KindBoundaryFault).
			Symbol(string(SymLogOddsMaxPd)).
			Value(pd).
			Detail("probability %v outside [0, 1]", pd).
			Build()
	}
	return pd, nil
}

// ComputeSweepWidth returns the sweep width in nautical miles for a sensor
// definition block.
func (s *Session) ComputeSweepWidth(ctx context.Context, text string) (float64, error) {
	ep, err := s.entry(SymSweepWidth)
	if err != nil {
		return 0, err
	}
	env := ep.heap.NewEnvelope(ctx, 1).String(text)
	defer env.Release(ctx)
	if err := env.Err(); err != nil {
		return 0, err
	}
	stack := env.Stack(ep.sig.stackSize())
	if err := s.invoke(ctx, ep, stack); err != nil {
		return 0, err
	}
	sw := api.DecodeF64(stack[0])
	if math.IsNaN(sw) || sw < 0 {
		return 0, errors.New(errors.PhaseDecode, errors.KindBoundaryFault).
			Symbol(string(SymSweepWidth)).
			Value(sw).
			Detail("negative sweep width %v", sw).
			Build()
	}
	return sw, nil
}

// MakeNavCalc relates (lat0, lng0) to a second point. With findRangeBearing
// set, (p3, p4) is the second point and range and bearing are computed;
// otherwise (p3, p4) is range in NM and bearing in degrees and the second
// point is computed.
func (s *Session) MakeNavCalc(ctx context.Context, lat0, lng0, p3, p4 float64, mt sim.MotionType, findRangeBearing bool) (*sim.NavigationSolution, error) {
	if !mt.Valid() {
		return nil, errors.MalformedInput("unknown motion type %q", string(mt))
	}
	ep, err := s.entry(SymNavAnswer)
	if err != nil {
		return nil, err
	}
	env := ep.heap.NewEnvelope(ctx, 6).
		F64(lat0).F64(lng0).F64(p3).F64(p4).
		String(string(mt)).
		Bool(findRangeBearing)
	defer env.Release(ctx)
	if err := env.Err(); err != nil {
		return nil, err
	}

	ref, err := s.callRef(ctx, ep, env.Stack(ep.sig.stackSize()))
	if err != nil {
		return nil, err
	}
	v, err := ep.heap.TakeFloat64s(ctx, ref)
	if err != nil {
		return nil, err
	}
	if len(v) != 2 {
		return nil, errors.InvalidData(errors.PhaseDecode, []string{string(SymNavAnswer)},
			"navigation answer must have 2 values")
	}
	nav := &sim.NavigationSolution{
		Lat0:              lat0,
		Lng0:              lng0,
		MotionType:        mt,
		FoundRangeBearing: findRangeBearing,
		Result:            sim.StatusOK,
	}
	if findRangeBearing {
		nav.Lat1, nav.Lng1 = p3, p4
		nav.RangeNmi, nav.Bearing = v[0], v[1]
	} else {
		nav.Lat1, nav.Lng1 = v[0], v[1]
		nav.RangeNmi, nav.Bearing = p3, p4
	}
	return nav, nil
}

// SolveForRangeBearing computes range and bearing from point 0 to point 1.
func (s *Session) SolveForRangeBearing(ctx context.Context, lat0, lng0, lat1, lng1 float64, mt sim.MotionType) (*sim.NavigationSolution, error) {
	return s.MakeNavCalc(ctx, lat0, lng0, lat1, lng1, mt, true)
}

// SolveForDestination computes the point reached from point 0 after
// rangeNmi along bearing.
func (s *Session) SolveForDestination(ctx context.Context, lat0, lng0, rangeNmi, bearing float64, mt sim.MotionType) (*sim.NavigationSolution, error) {
	return s.MakeNavCalc(ctx, lat0, lng0, rangeNmi, bearing, mt, false)
}
