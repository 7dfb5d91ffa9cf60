package paramgen

import (
	stderrors "errors"
	"math"
	"strings"
	"testing"

	"github.com/wippyai/simhook/errors"
	"github.com/wippyai/simhook/sim"
)

func TestGenerator_Deterministic(t *testing.T) {
	a := Default()
	b := Default()
	first := make([]ParameterSet, 20)
	for i := range first {
		first[i] = a.Next()
		if got := b.Next(); got != first[i] {
			t.Fatalf("draw %d differs: %s vs %s", i, first[i], got)
		}
	}

	a.Reset()
	for i, want := range first {
		if got := a.Next(); got != want {
			t.Fatalf("after Reset draw %d = %s, want %s", i, got, want)
		}
	}

	other, err := New(DefaultSeed+1, DefaultRanges())
	if err != nil {
		t.Fatal(err)
	}
	if other.Next() == first[0] {
		t.Error("different seeds produced the same first draw")
	}
}

func TestGenerator_Ranges(t *testing.T) {
	g := Default()
	r := g.Ranges()
	in := func(v float64, rr Range) bool { return v >= rr.Lo && v < rr.Hi }

	var fixed, free, right, ps int
	for i := 0; i < 2000; i++ {
		p := g.Next()
		if !in(p.SpeedKts, r.SpeedKts) || !in(p.Lat, r.Lat) || !in(p.Lng, r.Lng) ||
			!in(p.Orientation, r.Orientation) || !in(p.MinTrackSpacingNmi, r.MinTrackSpacingNmi) ||
			!in(p.WidthNmi, r.WidthNmi) {
			t.Fatalf("draw %d out of range: %s", i, p)
		}
		if p.DurationSecs < r.DurationSecs.Lo || p.DurationSecs > r.DurationSecs.Hi {
			t.Fatalf("duration %d out of range", p.DurationSecs)
		}
		mult := p.LengthNmi / p.WidthNmi
		if mult < r.LengthMultiplier.Lo-1e-9 || mult > r.LengthMultiplier.Hi+1e-9 {
			t.Fatalf("length multiplier %v out of range", mult)
		}
		if p.HasFixedSpacing() {
			fixed++
			if p.FixedTrackSpacingNmi != p.MinTrackSpacingNmi {
				t.Fatalf("fixed spacing %v != min spacing %v", p.FixedTrackSpacingNmi, p.MinTrackSpacingNmi)
			}
		} else {
			free++
			if p.FixedTrackSpacingNmi != -1 {
				t.Fatalf("unused fixed spacing = %v, want -1", p.FixedTrackSpacingNmi)
			}
		}
		if p.FirstTurnRight {
			right++
		}
		if p.ParallelSweep {
			ps++
		}
	}
	if fixed == 0 || free == 0 || right == 0 || ps == 0 {
		t.Errorf("flags never drawn both ways: fixed=%d free=%d right=%d ps=%d", fixed, free, right, ps)
	}
}

func TestGenerator_DegenerateRange(t *testing.T) {
	r := DefaultRanges()
	r.SpeedKts = Range{90, 90}
	r.DurationSecs = IntRange{3600, 3600}
	r.UseFixedSpacing = IntRange{0, 0}
	g, err := New(7, r)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10; i++ {
		p := g.Next()
		if p.SpeedKts != 90 || p.DurationSecs != 3600 || p.HasFixedSpacing() {
			t.Fatalf("draw = %s", p)
		}
	}
}

func TestNew_InvertedRange(t *testing.T) {
	r := DefaultRanges()
	r.WidthNmi = Range{20, 5}
	if _, err := New(1, r); !errors.IsKind(err, errors.KindMalformedInput) {
		t.Errorf("err = %v", err)
	}

	r = DefaultRanges()
	r.DurationSecs = IntRange{10, 9}
	_, err := New(1, r)
	var e *errors.Error
	if !stderrors.As(err, &e) || len(e.Path) != 2 || e.Path[1] != "duration_secs" {
		t.Errorf("err = %v", err)
	}
}

func TestParameterSet_String(t *testing.T) {
	p := ParameterSet{
		SpeedKts:             90,
		DurationSecs:         7200,
		Lat:                  36.5,
		Lng:                  -75.25,
		Orientation:          45,
		FirstTurnRight:       true,
		MinTrackSpacingNmi:   0.1,
		FixedTrackSpacingNmi: -1,
		LengthNmi:            19.2,
		WidthNmi:             6,
	}
	want := "Spd[90.0000] DrtnInScnds[7200] Lat/Lng[36.5000/-75.2500] Orntn[45.0000] FrstTrnRt[T] " +
		"MnTs[0.1000] Len[19.2000] Wid[6.0000] Ps[F]"
	if got := p.String(); got != want {
		t.Errorf("String() =\n%s\nwant\n%s", got, want)
	}

	p.FixedTrackSpacingNmi = 1.5
	p.ParallelSweep = true
	got := p.String()
	if !strings.Contains(got, "FixedTs[1.5000] ") || !strings.HasSuffix(got, "Ps[T] ") {
		t.Errorf("fixed layout = %q", got)
	}
}

func TestParameterSet_Request(t *testing.T) {
	p := Default().Next()
	req := p.Request()
	base := sim.CreepingLineRequest()
	if req.MotionType != base.MotionType || req.ExclusionBufferNmi != base.ExclusionBufferNmi {
		t.Errorf("base fields not kept: %+v", req)
	}
	if FromRequest(req) != p {
		t.Errorf("round trip = %s, want %s", FromRequest(req), p)
	}
}

func TestParameterSet_FromPattern(t *testing.T) {
	p := ParameterSet{SpeedKts: 100, DurationSecs: 3600, FixedTrackSpacingNmi: -1}
	pat := &sim.SearchPattern{
		CenterLat:              10,
		CenterLng:              20,
		Orientation:            30,
		MinTrackSpacingNmi:     0.5,
		FixedTrackSpacingNmi:   0.5,
		LengthNmi:              12,
		WidthNmi:               4,
		FirstTurnRight:         true,
		ParallelSweep:          true,
		EffectivePathLengthNmi: 80,
	}
	if !p.FromPattern(pat) {
		t.Fatal("FromPattern rejected an ok pattern")
	}
	if math.Abs(p.SpeedKts-80) > 1e-12 {
		t.Errorf("speed = %v, want 80", p.SpeedKts)
	}
	if p.Lat != 10 || p.Lng != 20 || p.Orientation != 30 || p.LengthNmi != 12 || p.WidthNmi != 4 ||
		!p.FirstTurnRight || !p.ParallelSweep || !p.HasFixedSpacing() {
		t.Errorf("set = %s", p)
	}

	before := p
	if p.FromPattern(sim.InvalidSearchPattern()) || p != before {
		t.Error("FromPattern accepted the invalid sentinel")
	}
	if p.FromPattern(nil) {
		t.Error("FromPattern accepted nil")
	}
}
