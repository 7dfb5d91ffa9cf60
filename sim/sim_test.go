package sim

import (
	"strings"
	"testing"
)

func TestParseMotionType(t *testing.T) {
	tests := []struct {
		in      string
		want    MotionType
		wantErr bool
	}{
		{"GC", GreatCircle, false},
		{"rl", RhumbLine, false},
		{" tc ", TangentCylinder, false},
		{"mid-latitude", MidLatitude, false},
		{"Great-Circle", GreatCircle, false},
		{"XX", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMotionType(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseMotionType(%q) expected error", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseMotionType(%q): %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseMotionType(%q) = %q, want %q", tt.in, got, tt.want)
			}
			if !got.Valid() {
				t.Errorf("%q should be valid", got)
			}
		})
	}

	if MotionType("ZZ").Valid() {
		t.Error("ZZ should not be valid")
	}
}

func TestThresholds(t *testing.T) {
	d := DefaultThresholds()
	want := [NThresholds]float64{3000, 500, 250, 64, 5}
	if d.Values() != want {
		t.Errorf("defaults = %v, want %v", d.Values(), want)
	}

	got, err := ThresholdsFrom(want[:])
	if err != nil {
		t.Fatalf("ThresholdsFrom: %v", err)
	}
	if got != d {
		t.Errorf("round trip = %+v, want %+v", got, d)
	}

	if _, err := ThresholdsFrom([]float64{1, 2, 3, 4}); err == nil {
		t.Error("expected error for 4 thresholds")
	}
}

func TestLobFrom(t *testing.T) {
	v := []float64{36.1357778, -75.8241944, 1.0, 111.0, 3.0, 0, 36.41}
	lob, err := LobFrom(v)
	if err != nil {
		t.Fatalf("LobFrom: %v", err)
	}
	if lob.BearingDeg != 111.0 || lob.MaxRingNmi != 36.41 {
		t.Errorf("unexpected lob %+v", lob)
	}
	vals := lob.Values()
	for i := range v {
		if vals[i] != v[i] {
			t.Errorf("Values()[%d] = %v, want %v", i, vals[i], v[i])
		}
	}
	if _, err := LobFrom(v[:6]); err == nil {
		t.Error("expected error for 6 values")
	}
}

func TestNewBearingEllipse(t *testing.T) {
	t.Run("solution", func(t *testing.T) {
		e, err := NewBearingEllipse([]float64{36.0, -75.7, 12.5, 4.25, 30, 0, 0.9999, 2.0000001})
		if err != nil {
			t.Fatalf("NewBearingEllipse: %v", err)
		}
		if e.Status() != StatusOK {
			t.Errorf("Status = %v, want ok", e.Status())
		}
		want := []int{0, 1, 2}
		if len(e.IndicesUsed) != len(want) {
			t.Fatalf("IndicesUsed = %v, want %v", e.IndicesUsed, want)
		}
		for i := range want {
			if e.IndicesUsed[i] != want[i] {
				t.Errorf("IndicesUsed[%d] = %d, want %d", i, e.IndicesUsed[i], want[i])
			}
		}
	})

	t.Run("no ellipse passes through", func(t *testing.T) {
		e, err := NewBearingEllipse([]float64{91, 181, -1, -1, -1})
		if err != nil {
			t.Fatalf("NewBearingEllipse: %v", err)
		}
		if e.Status() != StatusNoSolution {
			t.Errorf("Status = %v, want no-solution", e.Status())
		}
		if e.CenterLat != 91 || e.CenterLng != 181 || e.SemiMajorNmi95 != -1 ||
			e.SemiMinorNmi95 != -1 || e.SemiMajorDegsCwFromN != -1 {
			t.Errorf("sentinel fields altered: %+v", e)
		}
	})

	t.Run("too short", func(t *testing.T) {
		if _, err := NewBearingEllipse([]float64{1, 2, 3}); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("invalid differs from no ellipse", func(t *testing.T) {
		inv := InvalidBearingEllipse()
		if inv.Status() != StatusFailed {
			t.Errorf("Status = %v, want failed", inv.Status())
		}
		if inv.SemiMajorDegsCwFromN != InvalidBearing || len(inv.IndicesUsed) != 0 {
			t.Errorf("unexpected invalid ellipse %+v", inv)
		}
	})
}

func TestInvalidSearchPattern(t *testing.T) {
	p := InvalidSearchPattern()
	if p.Status() != StatusFailed {
		t.Fatalf("Status = %v, want failed", p.Status())
	}
	counts := []int{p.PathCount(), p.SpecCount(), p.TsLooseCount(), p.TsTightCount(), p.ExcTightCount()}
	for i, c := range counts {
		if c != -1 {
			t.Errorf("count %d = %d, want -1", i, c)
		}
	}
	if p.CenterLat != InvalidLat || p.CenterLng != InvalidLng {
		t.Errorf("center = %v/%v, want 91/181", p.CenterLat, p.CenterLng)
	}
	if !strings.Contains(p.String(), "nPath[-1]") {
		t.Errorf("dump %q should report nPath[-1]", p.String())
	}
}

func TestSearchPatternDump(t *testing.T) {
	p := &SearchPattern{
		RawSearchKtsToUse: 90,
		LengthNmi:         19.2,
		WidthNmi:          6,
		SubLegLengthNmi:   19.2,
		TrackSpacingNmi:   1.5,
		FirstTurnRight:    true,
		Path:              Track{Lats: []float64{0, 1}, Lngs: []float64{0, 0}, Secs: []int64{0, 7200}},
		SpecLoose:         Polygon{Lats: make([]float64, 4), Lngs: make([]float64, 4)},
	}
	want := "RAW_SPD_TO_USE[90.000000] LEN[19.2000] WID[6.0000]\n\tSLL[19.2000] TS[1.5000], PS[F] FrstTrnRt[T] " +
		"nPath[2] nSpec[4] nTsLoose[0] nTsTight[0] nExcTight[0]"
	if got := p.String(); got != want {
		t.Errorf("dump =\n%q\nwant\n%q", got, want)
	}
}

func TestEllipseDump(t *testing.T) {
	e := &BearingEllipse{CenterLat: 36.04, CenterLng: -75.66, SemiMajorNmi95: 10.25, SemiMinorNmi95: 3.5, SemiMajorDegsCwFromN: 45}
	want := "CntrLat[36.0] CntrLng[-75.7] SemiMajor95Nmi[10.25] SemiMinor95Nmi[3.50] semiMajorDegsCwFromN[45.00]"
	if got := e.String(); got != want {
		t.Errorf("dump = %q, want %q", got, want)
	}
}

func TestInvalidNavigationSolution(t *testing.T) {
	n := InvalidNavigationSolution()
	if n.Lat0 != 91 || n.Lng1 != 181 || n.RangeNmi != -1 || n.Bearing != 361 {
		t.Errorf("unexpected sentinel %+v", n)
	}
	if n.Status() != StatusFailed {
		t.Errorf("Status = %v, want failed", n.Status())
	}
}

func TestSensorText(t *testing.T) {
	text := InverseCubeSensor().Text()
	for _, s := range []string{
		"<LRC_SET>",
		`<SENSOR SubType = "InverseCube"`,
		`sw = "1.2435 NM"`,
		`ApplyToCrossLegs = "true"`,
		`UpCreepMaxRange = "100.0 NM"`,
		`DownCreepMaxLookAngle = "180.0 degs" />`,
		"</LRC_SET>",
	} {
		if !strings.Contains(text, s) {
			t.Errorf("sensor text missing %q:\n%s", s, text)
		}
	}
}

func TestStatusText(t *testing.T) {
	tests := map[Status]string{
		StatusOK:         "ok",
		StatusNoSolution: "no-solution",
		StatusFailed:     "failed",
		Status(9):        "unknown",
	}
	for s, want := range tests {
		b, _ := s.MarshalText()
		if string(b) != want {
			t.Errorf("%d: MarshalText = %q, want %q", s, b, want)
		}
	}
}
