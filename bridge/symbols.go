package bridge

import (
	"strings"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/simhook/sim"
)

// Symbol is the export name of a guest entry point.
type Symbol string

const (
	SymPrintArgs     Symbol = "print_args"
	SymArcCosine     Symbol = "acos_x"
	SymVersionName   Symbol = "version_name"
	SymPatternNew    Symbol = "pattern_new"
	SymEllipseProbe  Symbol = "ellipse_probe"
	SymEllipseCustom Symbol = "ellipse_custom"
	SymEllipseFit    Symbol = "ellipse_fit"
	SymNavAnswer     Symbol = "nav_answer"
	SymLogOddsMaxPd  Symbol = "log_odds_max_pd"
	SymSweepWidth    Symbol = "sweep_width"
)

const (
	f64 = api.ValueTypeF64
	i32 = api.ValueTypeI32
	i64 = api.ValueTypeI64
	ref = api.ValueTypeI32
)

// Signature is the expected wasm type of an entry point.
type Signature struct {
	Params  []api.ValueType
	Results []api.ValueType
}

func sig(params []api.ValueType, results ...api.ValueType) Signature {
	return Signature{Params: params, Results: results}
}

func (s Signature) stackSize() int {
	return max(len(s.Params), len(s.Results))
}

func (s Signature) matches(def api.FunctionDefinition) bool {
	return equalTypes(s.Params, def.ParamTypes()) && equalTypes(s.Results, def.ResultTypes())
}

func equalTypes(a, b []api.ValueType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (s Signature) String() string {
	return "(" + typeNames(s.Params) + ") -> (" + typeNames(s.Results) + ")"
}

func typeNames(types []api.ValueType) string {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = api.ValueTypeName(t)
	}
	return strings.Join(names, ", ")
}

type patternF64 struct {
	symbol Symbol
	set    func(p *sim.SearchPattern, v float64)
}

type patternBool struct {
	symbol Symbol
	set    func(p *sim.SearchPattern, v bool)
}

type patternF64s struct {
	symbol Symbol
	set    func(p *sim.SearchPattern, v []float64)
}

var patternScalars = []patternF64{
	{"pattern._centerLat", func(p *sim.SearchPattern, v float64) { p.CenterLat = v }},
	{"pattern._centerLng", func(p *sim.SearchPattern, v float64) { p.CenterLng = v }},
	{"pattern._orntn", func(p *sim.SearchPattern, v float64) { p.Orientation = v }},
	{"pattern._minTsNmi", func(p *sim.SearchPattern, v float64) { p.MinTrackSpacingNmi = v }},
	{"pattern._fixedTsNmi", func(p *sim.SearchPattern, v float64) { p.FixedTrackSpacingNmi = v }},
	{"pattern._excBufferNmi", func(p *sim.SearchPattern, v float64) { p.ExclusionBufferNmi = v }},
	{"pattern._lenNmi", func(p *sim.SearchPattern, v float64) { p.LengthNmi = v }},
	{"pattern._widNmi", func(p *sim.SearchPattern, v float64) { p.WidthNmi = v }},
	{"pattern._eplNmi", func(p *sim.SearchPattern, v float64) { p.EffectivePathLengthNmi = v }},
	{"pattern._rawSearchKtsToUse", func(p *sim.SearchPattern, v float64) { p.RawSearchKtsToUse = v }},
	{"pattern._tsNmi", func(p *sim.SearchPattern, v float64) { p.TrackSpacingNmi = v }},
	{"pattern._sllNmi", func(p *sim.SearchPattern, v float64) { p.SubLegLengthNmi = v }},
}

var patternFlags = []patternBool{
	{"pattern._firstTurnRight", func(p *sim.SearchPattern, v bool) { p.FirstTurnRight = v }},
	{"pattern._ps", func(p *sim.SearchPattern, v bool) { p.ParallelSweep = v }},
}

const symWaypointSecs Symbol = "pattern._waypointSecsS"

var patternArrays = []patternF64s{
	{"pattern._pathLats", func(p *sim.SearchPattern, v []float64) { p.Path.Lats = v }},
	{"pattern._pathLngs", func(p *sim.SearchPattern, v []float64) { p.Path.Lngs = v }},
	{"pattern._specLooseLats", func(p *sim.SearchPattern, v []float64) { p.SpecLoose.Lats = v }},
	{"pattern._specLooseLngs", func(p *sim.SearchPattern, v []float64) { p.SpecLoose.Lngs = v }},
	{"pattern._tsLooseLats", func(p *sim.SearchPattern, v []float64) { p.TsLoose.Lats = v }},
	{"pattern._tsLooseLngs", func(p *sim.SearchPattern, v []float64) { p.TsLoose.Lngs = v }},
	{"pattern._tsTightLats", func(p *sim.SearchPattern, v []float64) { p.TsTight.Lats = v }},
	{"pattern._tsTightLngs", func(p *sim.SearchPattern, v []float64) { p.TsTight.Lngs = v }},
	{"pattern._excTightLats", func(p *sim.SearchPattern, v []float64) { p.ExcTight.Lats = v }},
	{"pattern._excTightLngs", func(p *sim.SearchPattern, v []float64) { p.ExcTight.Lngs = v }},
}

// symbolSpec describes one entry point: its signature and whether calling
// it moves guest references, which requires the owning module's heap.
type symbolSpec struct {
	symbol Symbol
	sig    Signature
	refs   bool
}

func buildSymbolSpecs() []symbolSpec {
	specs := []symbolSpec{
		{SymPrintArgs, sig([]api.ValueType{ref}), true},
		{SymArcCosine, sig([]api.ValueType{f64}, f64), false},
		{SymVersionName, sig(nil, ref), true},
		{SymPatternNew, sig([]api.ValueType{
			f64, i64, i32, f64, f64, f64, i32, f64, f64, f64, f64, f64, i32, ref, i32,
		}, ref), true},
	}
	for _, a := range patternScalars {
		specs = append(specs, symbolSpec{a.symbol, sig([]api.ValueType{ref}, f64), true})
	}
	for _, a := range patternFlags {
		specs = append(specs, symbolSpec{a.symbol, sig([]api.ValueType{ref}, i32), true})
	}
	specs = append(specs, symbolSpec{symWaypointSecs, sig([]api.ValueType{ref}, ref), true})
	for _, a := range patternArrays {
		specs = append(specs, symbolSpec{a.symbol, sig([]api.ValueType{ref}, ref), true})
	}
	return append(specs,
		symbolSpec{SymEllipseProbe, sig([]api.ValueType{i32}, ref), true},
		symbolSpec{SymEllipseCustom, sig([]api.ValueType{ref}, ref), true},
		symbolSpec{SymEllipseFit, sig([]api.ValueType{ref, ref}, ref), true},
		symbolSpec{SymNavAnswer, sig([]api.ValueType{f64, f64, f64, f64, ref, i32}, ref), true},
		symbolSpec{SymLogOddsMaxPd, sig([]api.ValueType{f64, f64, f64, f64}, f64), false},
		symbolSpec{SymSweepWidth, sig([]api.ValueType{ref}, f64), true},
	)
}

// symbolSpecs is the complete entry point table in resolution order.
var symbolSpecs = buildSymbolSpecs()

// patternSymbols are the entry points MakePattern needs.
func patternSymbols() []Symbol {
	out := []Symbol{SymPatternNew}
	for _, a := range patternScalars {
		out = append(out, a.symbol)
	}
	for _, a := range patternFlags {
		out = append(out, a.symbol)
	}
	out = append(out, symWaypointSecs)
	for _, a := range patternArrays {
		out = append(out, a.symbol)
	}
	return out
}
