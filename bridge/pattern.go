package bridge

import (
	"context"
	"math"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/simhook/errors"
	"github.com/wippyai/simhook/marshal"
	"github.com/wippyai/simhook/sim"
)

// MakePattern builds a search pattern in the guest and copies every field
// of the result into host storage. The guest pattern object is released
// before MakePattern returns.
func (s *Session) MakePattern(ctx context.Context, req sim.PatternRequest) (*sim.SearchPattern, error) {
	if !req.MotionType.Valid() {
		return nil, errors.MalformedInput("unknown motion type %q", string(req.MotionType))
	}
	if req.DurationSecs < math.MinInt32 || req.DurationSecs > math.MaxInt32 {
		return nil, errors.MalformedInput("duration %d s does not fit in 32 bits", req.DurationSecs)
	}
	for _, sym := range patternSymbols() {
		if _, err := s.entry(sym); err != nil {
			return nil, err
		}
	}
	ep := s.entries[SymPatternNew]

	fixed := req.FixedTrackSpacingNmi
	if fixed <= 0 {
		fixed = -1
	}
	env := ep.heap.NewEnvelope(ctx, len(ep.sig.Params)).
		F64(req.SpeedKts).
		I64(req.StartEpochSecs).
		I32(int32(req.DurationSecs)).
		F64(req.CenterLat).
		F64(req.CenterLng).
		F64(req.Orientation).
		Bool(req.FirstTurnRight).
		F64(req.MinTrackSpacingNmi).
		F64(fixed).
		F64(req.ExclusionBufferNmi).
		F64(req.LengthNmi).
		F64(req.WidthNmi).
		Bool(req.ParallelSweep).
		String(string(req.MotionType)).
		Bool(req.ExpandSpecsIfNeeded)
	defer env.Release(ctx)
	if err := env.Err(); err != nil {
		return nil, err
	}

	pattern, err := s.callRef(ctx, ep, env.Stack(ep.sig.stackSize()))
	if err != nil {
		return nil, err
	}
	if pattern == marshal.Null {
		return nil, errors.BoundaryFault(string(SymPatternNew), "null pattern", nil)
	}
	defer release(ctx, ep.heap, pattern)

	p := &sim.SearchPattern{Result: sim.StatusOK}
	arg := api.EncodeU32(uint32(pattern))
	stack := []uint64{0}

	for _, a := range patternScalars {
		stack[0] = arg
		if err := s.invoke(ctx, s.entries[a.symbol], stack); err != nil {
			return nil, err
		}
		a.set(p, api.DecodeF64(stack[0]))
	}
	for _, a := range patternFlags {
		stack[0] = arg
		if err := s.invoke(ctx, s.entries[a.symbol], stack); err != nil {
			return nil, err
		}
		a.set(p, api.DecodeU32(stack[0]) != 0)
	}

	secsEP := s.entries[symWaypointSecs]
	stack[0] = arg
	secsRef, err := s.callRef(ctx, secsEP, stack)
	if err != nil {
		return nil, err
	}
	if p.Path.Secs, err = secsEP.heap.TakeInt64s(ctx, secsRef); err != nil {
		return nil, err
	}

	for _, a := range patternArrays {
		aep := s.entries[a.symbol]
		stack[0] = arg
		ref, err := s.callRef(ctx, aep, stack)
		if err != nil {
			return nil, err
		}
		values, err := aep.heap.TakeFloat64s(ctx, ref)
		if err != nil {
			return nil, err
		}
		a.set(p, values)
	}

	if err := checkPattern(p); err != nil {
		return nil, err
	}
	return p, nil
}

func checkPattern(p *sim.SearchPattern) error {
	if len(p.Path.Lats) != len(p.Path.Lngs) || len(p.Path.Lats) != len(p.Path.Secs) {
		return errors.InvalidData(errors.PhaseDecode, []string{"pattern", "path"},
			"path lats, lngs and waypoint secs differ in length")
	}
	polygons := []struct {
		name string
		poly sim.Polygon
	}{
		{"specLoose", p.SpecLoose},
		{"tsLoose", p.TsLoose},
		{"tsTight", p.TsTight},
		{"excTight", p.ExcTight},
	}
	for _, pg := range polygons {
		if len(pg.poly.Lats) != len(pg.poly.Lngs) {
			return errors.InvalidData(errors.PhaseDecode, []string{"pattern", pg.name},
				"lats and lngs differ in length")
		}
	}
	if p.Path.Len() == 0 {
		return errors.BoundaryFault(string(SymPatternNew), "empty path", nil)
	}
	return nil
}
