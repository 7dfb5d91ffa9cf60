package bridge

import (
	"context"
	"fmt"

	"github.com/wippyai/simhook/errors"
	"github.com/wippyai/simhook/sim"
)

// EllipseMode selects which guest ellipse computation FitEllipse runs.
type EllipseMode int

const (
	// EllipseSelfTestDefault asks the guest for its built-in probe ellipse.
	EllipseSelfTestDefault EllipseMode = iota
	// EllipseSelfTestCustom derives an ellipse from a caller vector.
	EllipseSelfTestCustom
	// EllipseCompute fits an ellipse to lines of bearing.
	EllipseCompute
)

func (m EllipseMode) String() string {
	switch m {
	case EllipseSelfTestDefault:
		return "self-test-default"
	case EllipseSelfTestCustom:
		return "self-test-custom"
	case EllipseCompute:
		return "compute"
	}
	return fmt.Sprintf("EllipseMode(%d)", int(m))
}

// EllipseRequest is the input of FitEllipse. Only the fields of the chosen
// mode are read.
type EllipseRequest struct {
	Mode EllipseMode

	// Fail makes the probe raise a guest exception.
	Fail bool

	// Custom needs at least five values.
	Custom []float64

	Thresholds sim.Thresholds
	Lobs       []sim.Lob
}

// SelfTestCustomInput is the vector the self-test sequence passes to the
// custom variant.
func SelfTestCustomInput() []float64 {
	return []float64{100, 102, 104, 106, 108, 110, 112, 114}
}

// FitEllipse runs one of the guest's ellipse computations. A guest answer
// equal to the no-ellipse sentinel is returned with StatusNoSolution.
func (s *Session) FitEllipse(ctx context.Context, req EllipseRequest) (*sim.BearingEllipse, error) {
	var sym Symbol
	switch req.Mode {
	case EllipseSelfTestDefault:
		sym = SymEllipseProbe
	case EllipseSelfTestCustom:
		if len(req.Custom) < 5 {
			return nil, errors.MalformedInput("custom ellipse input has %d values, want at least 5", len(req.Custom))
		}
		sym = SymEllipseCustom
	case EllipseCompute:
		if len(req.Lobs) == 0 {
			return nil, errors.MalformedInput("ellipse fit needs at least one line of bearing")
		}
		sym = SymEllipseFit
	default:
		return nil, errors.MalformedInput("unknown ellipse mode %d", int(req.Mode))
	}

	ep, err := s.entry(sym)
	if err != nil {
		return nil, err
	}
	env := ep.heap.NewEnvelope(ctx, len(ep.sig.Params))
	defer env.Release(ctx)

	switch req.Mode {
	case EllipseSelfTestDefault:
		env.Bool(req.Fail)
	case EllipseSelfTestCustom:
		env.Float64s(req.Custom)
	case EllipseCompute:
		thr := req.Thresholds.Values()
		rows := make([][]float64, len(req.Lobs))
		for i, l := range req.Lobs {
			v := l.Values()
			rows[i] = v[:]
		}
		env.Float64s(thr[:]).Matrix(rows)
	}
	if err := env.Err(); err != nil {
		return nil, err
	}

	ref, err := s.callRef(ctx, ep, env.Stack(ep.sig.stackSize()))
	if err != nil {
		return nil, err
	}
	values, err := ep.heap.TakeFloat64s(ctx, ref)
	if err != nil {
		return nil, err
	}
	e, err := sim.NewBearingEllipse(values)
	if err != nil {
		return nil, errors.New(errors.PhaseDecode, errors.KindInvalidData).
			Symbol(string(sym)).
			Detail("%v", err).
			Build()
	}
	return e, nil
}

// MakeLobsEllipse fits an ellipse to lobs. Nil thresholds mean the
// defaults. With no lobs it runs the self-test sequence instead: the probe,
// then the custom variant on SelfTestCustomInput, whose ellipse is returned.
func (s *Session) MakeLobsEllipse(ctx context.Context, thresholds *sim.Thresholds, lobs []sim.Lob) (*sim.BearingEllipse, error) {
	if len(lobs) > 0 {
		thr := sim.DefaultThresholds()
		if thresholds != nil {
			thr = *thresholds
		}
		return s.FitEllipse(ctx, EllipseRequest{Mode: EllipseCompute, Thresholds: thr, Lobs: lobs})
	}

	if _, err := s.FitEllipse(ctx, EllipseRequest{Mode: EllipseSelfTestDefault}); err != nil {
		return nil, err
	}
	return s.FitEllipse(ctx, EllipseRequest{Mode: EllipseSelfTestCustom, Custom: SelfTestCustomInput()})
}
