package bridge

import (
	"bytes"
	"context"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/wippyai/simhook/engine"
	"github.com/wippyai/simhook/errors"
	"github.com/wippyai/simhook/internal/simguest"
	"github.com/wippyai/simhook/sim"
)

//go:generate wat2wasm testdata/partial.wat -o testdata/partial.wasm

func openGuest(t *testing.T) (*Session, *bytes.Buffer) {
	t.Helper()
	ctx := context.Background()
	out := &bytes.Buffer{}
	s := Open(ctx, Config{Config: engine.Config{
		Sources: []engine.Source{simguest.Source()},
		Stdout:  out,
	}})
	if err := s.Err(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close(ctx) })
	return s, out
}

func assertNoLive(t *testing.T, s *Session) {
	t.Helper()
	n, err := s.LiveRefs(context.Background())
	if err != nil {
		t.Fatalf("LiveRefs: %v", err)
	}
	if n != 0 {
		t.Errorf("live references = %d, want 0", n)
	}
}

func observe(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	SetLogger(zap.New(core))
	t.Cleanup(func() { SetLogger(nil) })
	return logs
}

func TestOpen_Resolved(t *testing.T) {
	s, _ := openGuest(t)
	if s.Degraded() {
		t.Fatalf("degraded: missing %v", s.Missing())
	}
	symbols := s.Symbols()
	if len(symbols) != len(symbolSpecs) {
		t.Fatalf("symbols = %d, want %d", len(symbols), len(symbolSpecs))
	}
	for _, info := range symbols {
		if !info.Resolved || info.Module != simguest.ModuleName {
			t.Errorf("%s: resolved=%v module=%q", info.Name, info.Resolved, info.Module)
		}
	}
	if symbols[0].Name != string(SymPrintArgs) || symbols[0].Signature != "(i32) -> ()" {
		t.Errorf("first symbol = %+v", symbols[0])
	}
}

func TestOpen_RuntimeUnavailable(t *testing.T) {
	ctx := context.Background()
	logs := observe(t)

	s := Open(ctx, Config{Config: engine.Config{LibraryDir: filepath.Join(t.TempDir(), "missing")}})
	if s == nil {
		t.Fatal("Open returned nil")
	}
	defer s.Close(ctx)

	if !errors.IsKind(s.Err(), errors.KindRuntimeUnavailable) || !s.Degraded() {
		t.Fatalf("Err = %v, Degraded = %v", s.Err(), s.Degraded())
	}
	if !errors.IsKind(s.Err(), errors.KindNotFound) {
		t.Errorf("cause not kept: %v", s.Err())
	}
	if logs.FilterMessage("guest runtime unavailable").Len() != 1 {
		t.Error("startup failure not logged")
	}

	calls := map[string]func() error{
		"PrintDiagnosticArgs": func() error { return s.PrintDiagnosticArgs(ctx, []string{"x"}) },
		"ArcCosine":           func() error { _, err := s.ArcCosine(ctx, 0); return err },
		"VersionName":         func() error { _, err := s.VersionName(ctx); return err },
		"MakePattern":         func() error { _, err := s.MakePattern(ctx, sim.CreepingLineRequest()); return err },
		"MakeLobsEllipse":     func() error { _, err := s.MakeLobsEllipse(ctx, nil, nil); return err },
		"SolveForDestination": func() error {
			_, err := s.SolveForDestination(ctx, 0, 0, 1, 1, sim.GreatCircle)
			return err
		},
		"LogOddsMaxPd":      func() error { _, err := s.LogOddsMaxPd(ctx, 0, 1, -1, 10); return err },
		"ComputeSweepWidth": func() error { _, err := s.ComputeSweepWidth(ctx, "1.0"); return err },
	}
	for name, call := range calls {
		if err := call(); !errors.IsKind(err, errors.KindRuntimeUnavailable) {
			t.Errorf("%s: err = %v, want runtime_unavailable", name, err)
		}
	}
	if n, err := s.LiveRefs(ctx); n != 0 || err != nil {
		t.Errorf("LiveRefs = %d, %v", n, err)
	}
}

func TestOpen_MissingSymbols(t *testing.T) {
	ctx := context.Background()
	s := Open(ctx, Config{Config: engine.Config{Sources: []engine.Source{
		{Name: "partial", Path: "testdata/partial.wasm"},
	}}})
	defer s.Close(ctx)

	if s.Err() != nil {
		t.Fatalf("Err = %v", s.Err())
	}
	if !s.Degraded() {
		t.Fatal("session with missing symbols is not degraded")
	}
	missing := strings.Join(s.Missing(), " ")
	for _, want := range []string{"version_name", "log_odds_max_pd", "pattern._centerLat"} {
		if !strings.Contains(missing, want) {
			t.Errorf("missing %q not reported in %v", want, s.Missing())
		}
	}
	if strings.Contains(missing, "acos_x") {
		t.Error("acos_x reported missing")
	}

	if got, err := s.ArcCosine(ctx, 0.5); err != nil || got != 1 {
		t.Errorf("ArcCosine = %v, %v", got, err)
	}
	if _, err := s.VersionName(ctx); !errors.IsKind(err, errors.KindSymbolMissing) {
		t.Errorf("VersionName err = %v, want symbol_missing", err)
	}
	if _, err := s.LogOddsMaxPd(ctx, 0, 1, -1, 10); !errors.IsKind(err, errors.KindSymbolMissing) {
		t.Errorf("LogOddsMaxPd err = %v, want symbol_missing", err)
	}
	if _, err := s.MakePattern(ctx, sim.CreepingLineRequest()); !errors.IsKind(err, errors.KindSymbolMissing) {
		t.Errorf("MakePattern err = %v, want symbol_missing", err)
	}
}

func TestSession_PrintDiagnosticArgs(t *testing.T) {
	s, out := openGuest(t)
	if err := s.PrintDiagnosticArgs(context.Background(), []string{"alpha", "beta"}); err != nil {
		t.Fatalf("PrintDiagnosticArgs: %v", err)
	}
	if out.String() != "alpha\nbeta\n" {
		t.Errorf("output = %q", out.String())
	}
	assertNoLive(t, s)
}

func TestSession_ArcCosine(t *testing.T) {
	s, _ := openGuest(t)
	ctx := context.Background()
	logs := observe(t)

	got, err := s.ArcCosine(ctx, 0)
	if err != nil || got != math.Pi/2 {
		t.Fatalf("ArcCosine(0) = %v, %v", got, err)
	}

	_, err = s.ArcCosine(ctx, 2)
	if !errors.IsKind(err, errors.KindBoundaryFault) {
		t.Fatalf("ArcCosine(2) err = %v, want boundary_fault", err)
	}
	if !strings.Contains(err.Error(), "acos argument outside [-1, 1]") {
		t.Errorf("fault text lost: %v", err)
	}
	entries := logs.FilterMessage("guest exception").All()
	if len(entries) != 1 || entries[0].ContextMap()["symbol"] != "acos_x" {
		t.Errorf("exception log = %v", entries)
	}

	// The exception was cleared; the session keeps working.
	for _, x := range []float64{1, -1, 0.25} {
		got, err := s.ArcCosine(ctx, x)
		if err != nil || got < 0 || got > math.Pi {
			t.Errorf("ArcCosine(%v) = %v, %v", x, got, err)
		}
	}
	assertNoLive(t, s)
}

func TestSession_VersionName(t *testing.T) {
	s, _ := openGuest(t)
	ctx := context.Background()
	first, err := s.VersionName(ctx)
	if err != nil {
		t.Fatalf("VersionName: %v", err)
	}
	second, err := s.VersionName(ctx)
	if err != nil || second != first {
		t.Errorf("second VersionName = %q, %v; want %q", second, err, first)
	}
	if first != "SimLib reference guest 2.2 (wasm)" {
		t.Errorf("version = %q", first)
	}
	assertNoLive(t, s)
}

func TestSession_MakePattern(t *testing.T) {
	s, _ := openGuest(t)
	ctx := context.Background()

	req := sim.CreepingLineRequest()
	req.CenterLat = 36.5
	req.CenterLng = -75.25
	req.Orientation = 45
	req.StartEpochSecs = 1000
	req.ParallelSweep = true

	p, err := s.MakePattern(ctx, req)
	if err != nil {
		t.Fatalf("MakePattern: %v", err)
	}
	if p.Status() != sim.StatusOK {
		t.Errorf("status = %v", p.Status())
	}
	if p.CenterLat != req.CenterLat || p.CenterLng != req.CenterLng || p.Orientation != req.Orientation {
		t.Errorf("center/orientation not echoed: %v %v %v", p.CenterLat, p.CenterLng, p.Orientation)
	}
	if p.FixedTrackSpacingNmi > 0 {
		t.Errorf("fixed spacing = %v, want <= 0", p.FixedTrackSpacingNmi)
	}
	if p.TrackSpacingNmi != req.MinTrackSpacingNmi {
		t.Errorf("ts = %v, want min ts %v", p.TrackSpacingNmi, req.MinTrackSpacingNmi)
	}
	if p.EffectivePathLengthNmi != 180 {
		t.Errorf("epl = %v, want 180", p.EffectivePathLengthNmi)
	}
	if !p.ParallelSweep || p.FirstTurnRight {
		t.Errorf("flags = ps %v ftr %v", p.ParallelSweep, p.FirstTurnRight)
	}
	if p.PathCount() < 2 {
		t.Fatalf("path count = %d, want >= 2", p.PathCount())
	}
	if len(p.Path.Lats) != len(p.Path.Lngs) || len(p.Path.Lats) != len(p.Path.Secs) {
		t.Errorf("path lengths differ: %d %d %d", len(p.Path.Lats), len(p.Path.Lngs), len(p.Path.Secs))
	}
	if p.Path.Secs[0] != 1000 || p.Path.Secs[1] != 8200 {
		t.Errorf("secs = %v", p.Path.Secs)
	}
	for name, poly := range map[string]sim.Polygon{
		"spec": p.SpecLoose, "tsLoose": p.TsLoose, "tsTight": p.TsTight, "excTight": p.ExcTight,
	} {
		if poly.Len() != 4 || len(poly.Lngs) != 4 {
			t.Errorf("%s vertices = %d/%d, want 4", name, len(poly.Lats), len(poly.Lngs))
		}
	}
	assertNoLive(t, s)

	fixed := req
	fixed.FixedTrackSpacingNmi = 1.5
	p, err = s.MakePattern(ctx, fixed)
	if err != nil {
		t.Fatalf("MakePattern fixed: %v", err)
	}
	if p.TrackSpacingNmi != 1.5 || p.FixedTrackSpacingNmi != 1.5 {
		t.Errorf("fixed spacing: ts %v fxd %v", p.TrackSpacingNmi, p.FixedTrackSpacingNmi)
	}
	assertNoLive(t, s)
}

func TestSession_MakePatternFailures(t *testing.T) {
	s, _ := openGuest(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		modify func(*sim.PatternRequest)
		kind   errors.Kind
	}{
		{"empty path", func(r *sim.PatternRequest) { r.DurationSecs = 0 }, errors.KindBoundaryFault},
		{"unknown motion", func(r *sim.PatternRequest) { r.MotionType = "XX" }, errors.KindMalformedInput},
		{"duration overflow", func(r *sim.PatternRequest) { r.DurationSecs = math.MaxInt32 + 1 }, errors.KindMalformedInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := sim.CreepingLineRequest()
			tt.modify(&req)
			p, err := s.MakePattern(ctx, req)
			if p != nil || !errors.IsKind(err, tt.kind) {
				t.Errorf("MakePattern = %v, %v; want %s", p, err, tt.kind)
			}
			assertNoLive(t, s)
		})
	}
}

var crossingLobs = []sim.Lob{
	{OriginLat: 36.0, OriginLng: -75.0, OriginPeNmi: 1, BearingDeg: 30, BearingSdDeg: 2, MaxRingNmi: 100},
	{OriginLat: 36.5, OriginLng: -75.5, OriginPeNmi: 1, BearingDeg: 120, BearingSdDeg: 3, MaxRingNmi: 100},
}

func TestSession_MakeLobsEllipse(t *testing.T) {
	s, _ := openGuest(t)
	ctx := context.Background()

	selfTest, err := s.MakeLobsEllipse(ctx, nil, nil)
	if err != nil {
		t.Fatalf("self test: %v", err)
	}
	if selfTest.Status() != sim.StatusOK {
		t.Errorf("self test status = %v", selfTest.Status())
	}
	if len(selfTest.IndicesUsed) != 3 || selfTest.IndicesUsed[2] != 2 {
		t.Errorf("self test indices = %v, want [0 1 2]", selfTest.IndicesUsed)
	}
	if selfTest.CenterLat != 36 || selfTest.CenterLng != -76.5 {
		t.Errorf("self test center = (%v, %v)", selfTest.CenterLat, selfTest.CenterLng)
	}

	e, err := s.MakeLobsEllipse(ctx, nil, crossingLobs)
	if err != nil {
		t.Fatalf("fit: %v", err)
	}
	if e.Status() != sim.StatusOK {
		t.Fatalf("fit status = %v", e.Status())
	}
	if e.CenterLat != 36.25 || e.CenterLng != -75.25 || e.SemiMajorNmi95 != 6 || e.SemiMinorNmi95 != 3 || e.SemiMajorDegsCwFromN != 30 {
		t.Errorf("fit = %s", e)
	}
	if len(e.IndicesUsed) != 2 {
		t.Errorf("indices = %v", e.IndicesUsed)
	}
	assertNoLive(t, s)
}

func TestSession_EllipseNoSolution(t *testing.T) {
	s, _ := openGuest(t)
	ctx := context.Background()

	narrow := []sim.Lob{crossingLobs[0], crossingLobs[1]}
	narrow[1].BearingDeg = 32

	distant := []sim.Lob{crossingLobs[0], crossingLobs[1]}
	distant[1].OriginLat = 46

	tight := sim.DefaultThresholds()
	tight.SemiMajorNmi = 2

	tests := []struct {
		name string
		thr  *sim.Thresholds
		lobs []sim.Lob
	}{
		{"angle", nil, narrow},
		{"distance", nil, distant},
		{"semi-major", &tight, crossingLobs},
		{"single lob", nil, crossingLobs[:1]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := s.MakeLobsEllipse(ctx, tt.thr, tt.lobs)
			if err != nil {
				t.Fatalf("MakeLobsEllipse: %v", err)
			}
			if e.Status() != sim.StatusNoSolution {
				t.Errorf("status = %v, want no-solution", e.Status())
			}
			if e.CenterLat != sim.InvalidLat || e.CenterLng != sim.InvalidLng || e.SemiMajorNmi95 != -1 {
				t.Errorf("sentinel = %s", e)
			}
			assertNoLive(t, s)
		})
	}
}

func TestSession_FitEllipseModes(t *testing.T) {
	s, _ := openGuest(t)
	ctx := context.Background()

	probe, err := s.FitEllipse(ctx, EllipseRequest{Mode: EllipseSelfTestDefault})
	if err != nil || probe.Status() != sim.StatusOK || probe.CenterLat != 36 {
		t.Errorf("probe = %v, %v", probe, err)
	}
	if _, err := s.FitEllipse(ctx, EllipseRequest{Mode: EllipseSelfTestDefault, Fail: true}); !errors.IsKind(err, errors.KindBoundaryFault) {
		t.Errorf("failing probe err = %v, want boundary_fault", err)
	}

	malformed := []EllipseRequest{
		{Mode: EllipseSelfTestCustom, Custom: []float64{1, 2, 3}},
		{Mode: EllipseCompute},
		{Mode: EllipseMode(9)},
	}
	for _, req := range malformed {
		if _, err := s.FitEllipse(ctx, req); !errors.IsKind(err, errors.KindMalformedInput) {
			t.Errorf("%v: err = %v, want malformed_input", req.Mode, err)
		}
	}
	assertNoLive(t, s)
}

func TestSession_NavRoundTrip(t *testing.T) {
	s, _ := openGuest(t)
	ctx := context.Background()

	for _, mt := range sim.MotionTypes {
		t.Run(string(mt), func(t *testing.T) {
			dest, err := s.SolveForDestination(ctx, 36.5, -75.25, 42, 117, mt)
			if err != nil {
				t.Fatalf("SolveForDestination: %v", err)
			}
			if dest.FoundRangeBearing || dest.MotionType != mt || dest.Status() != sim.StatusOK {
				t.Errorf("destination = %s", dest)
			}
			back, err := s.SolveForRangeBearing(ctx, 36.5, -75.25, dest.Lat1, dest.Lng1, mt)
			if err != nil {
				t.Fatalf("SolveForRangeBearing: %v", err)
			}
			if math.Abs(back.RangeNmi-42) > 1e-6 || math.Abs(back.Bearing-117) > 1e-6 {
				t.Errorf("round trip = (%v, %v), want (42, 117)", back.RangeNmi, back.Bearing)
			}
			if !back.FoundRangeBearing || back.Lat1 != dest.Lat1 {
				t.Errorf("range/bearing = %s", back)
			}
			assertNoLive(t, s)
		})
	}

	if _, err := s.MakeNavCalc(ctx, 0, 0, 1, 1, "XX", true); !errors.IsKind(err, errors.KindMalformedInput) {
		t.Errorf("unknown motion err = %v", err)
	}
}

func TestSession_NavAnswerMapping(t *testing.T) {
	s, _ := openGuest(t)
	ctx := context.Background()

	rb, err := s.SolveForRangeBearing(ctx, 36.5, -75.25, 37, -75, sim.GreatCircle)
	if err != nil {
		t.Fatalf("SolveForRangeBearing: %v", err)
	}
	if rb.Lat0 != 36.5 || rb.Lng0 != -75.25 || rb.Lat1 != 37 || rb.Lng1 != -75 {
		t.Errorf("range/bearing endpoints = %s", rb)
	}
	if rb.RangeNmi <= 0 || rb.Bearing <= 0 || rb.Bearing >= 90 {
		t.Errorf("range/bearing = (%v, %v)", rb.RangeNmi, rb.Bearing)
	}

	dest, err := s.SolveForDestination(ctx, 36.5, -75.25, 60, 0, sim.RhumbLine)
	if err != nil {
		t.Fatalf("SolveForDestination: %v", err)
	}
	if dest.RangeNmi != 60 || dest.Bearing != 0 {
		t.Errorf("destination kept (%v, %v), want (60, 0)", dest.RangeNmi, dest.Bearing)
	}
	if math.Abs(dest.Lat1-37.5) > 1e-9 || math.Abs(dest.Lng1+75.25) > 1e-9 {
		t.Errorf("destination = (%v, %v), want (37.5, -75.25)", dest.Lat1, dest.Lng1)
	}
	assertNoLive(t, s)
}

func TestSession_LogOddsMaxPd(t *testing.T) {
	s, _ := openGuest(t)
	ctx := context.Background()

	pd, err := s.LogOddsMaxPd(ctx, 0, 2, -1, 10)
	if err != nil || math.Abs(pd-1/(1+math.Exp(-1))) > 1e-12 {
		t.Errorf("pd = %v, %v", pd, err)
	}
	_, err = s.LogOddsMaxPd(ctx, 0, 2, -1, 0)
	if !errors.IsKind(err, errors.KindBoundaryFault) {
		t.Fatalf("maxX 0 err = %v, want boundary_fault", err)
	}
	if !strings.Contains(err.Error(), "maxX must be positive") {
		t.Errorf("fault text lost: %v", err)
	}
	assertNoLive(t, s)
}

func TestSession_ComputeSweepWidth(t *testing.T) {
	s, _ := openGuest(t)
	ctx := context.Background()

	sw, err := s.ComputeSweepWidth(ctx, sim.InverseCubeSensor().Text())
	if err != nil || sw != 1.2435 {
		t.Errorf("sweep width = %v, %v", sw, err)
	}
	if _, err := s.ComputeSweepWidth(ctx, "<LRC_SET/>"); !errors.IsKind(err, errors.KindBoundaryFault) {
		t.Errorf("no number err = %v, want boundary_fault", err)
	}
	assertNoLive(t, s)
}

func TestSession_Closed(t *testing.T) {
	ctx := context.Background()
	s, _ := openGuest(t)

	if err := s.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Close(ctx); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if _, err := s.ArcCosine(ctx, 0); !errors.IsKind(err, errors.KindRuntimeUnavailable) {
		t.Errorf("closed session err = %v, want runtime_unavailable", err)
	}
}

func TestSession_ModuleClosed(t *testing.T) {
	ctx := context.Background()
	s, _ := openGuest(t)

	if err := s.Runtime().Module(simguest.ModuleName).Close(ctx); err != nil {
		t.Fatalf("close module: %v", err)
	}
	if _, err := s.ArcCosine(ctx, 0); !errors.IsKind(err, errors.KindBoundaryFault) {
		t.Errorf("err = %v, want boundary_fault", err)
	}
	if _, err := s.VersionName(ctx); !errors.IsKind(err, errors.KindBoundaryFault) {
		t.Errorf("err = %v, want boundary_fault", err)
	}
}
