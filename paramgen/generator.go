package paramgen

import (
	"fmt"
	"math/rand/v2"

	"github.com/wippyai/simhook/errors"
	"github.com/wippyai/simhook/sim"
)

// DefaultSeed is the seed used when none is configured.
const DefaultSeed uint64 = 820305

// Range is a closed-open real interval [Lo, Hi).
type Range struct {
	Lo float64 `yaml:"lo" json:"lo"`
	Hi float64 `yaml:"hi" json:"hi"`
}

// IntRange is a closed integer interval [Lo, Hi].
type IntRange struct {
	Lo int64 `yaml:"lo" json:"lo"`
	Hi int64 `yaml:"hi" json:"hi"`
}

// Ranges bounds every drawn parameter. The flag ranges (FirstTurnRight,
// UseFixedSpacing, ParallelSweep) draw an integer and treat nonzero as true.
type Ranges struct {
	SpeedKts           Range    `yaml:"speed_kts" json:"speed_kts"`
	DurationSecs       IntRange `yaml:"duration_secs" json:"duration_secs"`
	Lat                Range    `yaml:"lat" json:"lat"`
	Lng                Range    `yaml:"lng" json:"lng"`
	Orientation        Range    `yaml:"orientation" json:"orientation"`
	FirstTurnRight     IntRange `yaml:"first_turn_right" json:"first_turn_right"`
	MinTrackSpacingNmi Range    `yaml:"min_track_spacing_nmi" json:"min_track_spacing_nmi"`
	UseFixedSpacing    IntRange `yaml:"use_fixed_spacing" json:"use_fixed_spacing"`
	LengthMultiplier   Range    `yaml:"length_multiplier" json:"length_multiplier"`
	WidthNmi           Range    `yaml:"width_nmi" json:"width_nmi"`
	ParallelSweep      IntRange `yaml:"parallel_sweep" json:"parallel_sweep"`
}

// DefaultRanges returns the stock sweep bounds.
func DefaultRanges() Ranges {
	return Ranges{
		SpeedKts:           Range{60, 180},
		DurationSecs:       IntRange{1800, 7200},
		Lat:                Range{-90, 90},
		Lng:                Range{-180, 180},
		Orientation:        Range{0, 360},
		FirstTurnRight:     IntRange{0, 1},
		MinTrackSpacingNmi: Range{0.1, 3.0},
		UseFixedSpacing:    IntRange{0, 1},
		LengthMultiplier:   Range{0.5, 10},
		WidthNmi:           Range{5, 20},
		ParallelSweep:      IntRange{0, 1},
	}
}

// Validate rejects inverted intervals.
func (r Ranges) Validate() error {
	reals := []struct {
		name string
		r    Range
	}{
		{"speed_kts", r.SpeedKts},
		{"lat", r.Lat},
		{"lng", r.Lng},
		{"orientation", r.Orientation},
		{"min_track_spacing_nmi", r.MinTrackSpacingNmi},
		{"length_multiplier", r.LengthMultiplier},
		{"width_nmi", r.WidthNmi},
	}
	for _, c := range reals {
		if c.r.Hi < c.r.Lo {
			return inverted(c.name, c.r.Lo, c.r.Hi)
		}
	}
	ints := []struct {
		name string
		r    IntRange
	}{
		{"duration_secs", r.DurationSecs},
		{"first_turn_right", r.FirstTurnRight},
		{"use_fixed_spacing", r.UseFixedSpacing},
		{"parallel_sweep", r.ParallelSweep},
	}
	for _, c := range ints {
		if c.r.Hi < c.r.Lo {
			return inverted(c.name, c.r.Lo, c.r.Hi)
		}
	}
	return nil
}

func inverted(name string, lo, hi any) error {
	return errors.New(errors.PhaseConfig, errors.KindMalformedInput).
		Path("ranges", name).
		Detail("range [%v, %v] is inverted", lo, hi).
		Build()
}

// Generator draws pattern parameter sets from a seeded source. The same
// seed and ranges always produce the same sequence. A Generator is not safe
// for concurrent use.
type Generator struct {
	seed   uint64
	ranges Ranges
	rng    *rand.Rand
}

// New returns a generator positioned at the start of its sequence.
func New(seed uint64, ranges Ranges) (*Generator, error) {
	if err := ranges.Validate(); err != nil {
		return nil, err
	}
	g := &Generator{seed: seed, ranges: ranges}
	g.Reset()
	return g, nil
}

// Default returns a generator with DefaultSeed and DefaultRanges.
func Default() *Generator {
	g, _ := New(DefaultSeed, DefaultRanges())
	return g
}

// Seed returns the generator's seed.
func (g *Generator) Seed() uint64 { return g.seed }

// Ranges returns the generator's bounds.
func (g *Generator) Ranges() Ranges { return g.ranges }

// Reset rewinds the sequence to its first element.
func (g *Generator) Reset() {
	g.rng = rand.New(rand.NewPCG(g.seed, g.seed))
}

func (g *Generator) real(r Range) float64 {
	return r.Lo + g.rng.Float64()*(r.Hi-r.Lo)
}

func (g *Generator) integer(r IntRange) int64 {
	return r.Lo + g.rng.Int64N(r.Hi-r.Lo+1)
}

// Next draws the next parameter set. The draw order is fixed: changing it
// changes every sequence.
func (g *Generator) Next() ParameterSet {
	var p ParameterSet
	p.SpeedKts = g.real(g.ranges.SpeedKts)
	p.DurationSecs = g.integer(g.ranges.DurationSecs)
	p.Lat = g.real(g.ranges.Lat)
	p.Lng = g.real(g.ranges.Lng)
	p.Orientation = g.real(g.ranges.Orientation)
	p.FirstTurnRight = g.integer(g.ranges.FirstTurnRight) != 0
	p.MinTrackSpacingNmi = g.real(g.ranges.MinTrackSpacingNmi)
	p.FixedTrackSpacingNmi = -1
	if g.integer(g.ranges.UseFixedSpacing) != 0 {
		p.FixedTrackSpacingNmi = p.MinTrackSpacingNmi
	}
	p.WidthNmi = g.real(g.ranges.WidthNmi)
	p.LengthNmi = p.WidthNmi * g.real(g.ranges.LengthMultiplier)
	p.ParallelSweep = g.integer(g.ranges.ParallelSweep) != 0
	return p
}

// ParameterSet is one draw of pattern inputs.
type ParameterSet struct {
	SpeedKts             float64 `json:"speed_kts" yaml:"speed_kts"`
	DurationSecs         int64   `json:"duration_secs" yaml:"duration_secs"`
	Lat                  float64 `json:"lat" yaml:"lat"`
	Lng                  float64 `json:"lng" yaml:"lng"`
	Orientation          float64 `json:"orientation" yaml:"orientation"`
	FirstTurnRight       bool    `json:"first_turn_right" yaml:"first_turn_right"`
	MinTrackSpacingNmi   float64 `json:"min_track_spacing_nmi" yaml:"min_track_spacing_nmi"`
	FixedTrackSpacingNmi float64 `json:"fixed_track_spacing_nmi" yaml:"fixed_track_spacing_nmi"`
	LengthNmi            float64 `json:"length_nmi" yaml:"length_nmi"`
	WidthNmi             float64 `json:"width_nmi" yaml:"width_nmi"`
	ParallelSweep        bool    `json:"parallel_sweep" yaml:"parallel_sweep"`
}

// HasFixedSpacing reports whether the set requests a fixed track spacing.
func (p ParameterSet) HasFixedSpacing() bool { return p.FixedTrackSpacingNmi > 0 }

func flag(b bool) byte {
	if b {
		return 'T'
	}
	return 'F'
}

// String renders the set in the dump layout. FixedTs only appears when a
// fixed spacing is requested.
func (p ParameterSet) String() string {
	if p.HasFixedSpacing() {
		return fmt.Sprintf("Spd[%.4f] DrtnInScnds[%d] Lat/Lng[%.4f/%.4f] "+
			"Orntn[%.4f] FrstTrnRt[%c] MnTs[%.4f] FixedTs[%.4f] "+
			"Len[%.4f] Wid[%.4f] Ps[%c] ",
			p.SpeedKts, p.DurationSecs, p.Lat, p.Lng, p.Orientation, flag(p.FirstTurnRight),
			p.MinTrackSpacingNmi, p.FixedTrackSpacingNmi, p.LengthNmi, p.WidthNmi, flag(p.ParallelSweep))
	}
	return fmt.Sprintf("Spd[%.4f] DrtnInScnds[%d] Lat/Lng[%.4f/%.4f] Orntn[%.4f] FrstTrnRt[%c] "+
		"MnTs[%.4f] Len[%.4f] Wid[%.4f] Ps[%c]",
		p.SpeedKts, p.DurationSecs, p.Lat, p.Lng, p.Orientation, flag(p.FirstTurnRight),
		p.MinTrackSpacingNmi, p.LengthNmi, p.WidthNmi, flag(p.ParallelSweep))
}

// Apply overlays the set onto base. Motion type, start time, exclusion
// buffer and spec expansion come from base.
func (p ParameterSet) Apply(base sim.PatternRequest) sim.PatternRequest {
	base.SpeedKts = p.SpeedKts
	base.DurationSecs = p.DurationSecs
	base.CenterLat = p.Lat
	base.CenterLng = p.Lng
	base.Orientation = p.Orientation
	base.FirstTurnRight = p.FirstTurnRight
	base.MinTrackSpacingNmi = p.MinTrackSpacingNmi
	base.FixedTrackSpacingNmi = p.FixedTrackSpacingNmi
	base.LengthNmi = p.LengthNmi
	base.WidthNmi = p.WidthNmi
	base.ParallelSweep = p.ParallelSweep
	return base
}

// Request overlays the set onto the creeping-line request.
func (p ParameterSet) Request() sim.PatternRequest {
	return p.Apply(sim.CreepingLineRequest())
}

// FromRequest captures the drawable fields of req.
func FromRequest(req sim.PatternRequest) ParameterSet {
	return ParameterSet{
		SpeedKts:             req.SpeedKts,
		DurationSecs:         req.DurationSecs,
		Lat:                  req.CenterLat,
		Lng:                  req.CenterLng,
		Orientation:          req.Orientation,
		FirstTurnRight:       req.FirstTurnRight,
		MinTrackSpacingNmi:   req.MinTrackSpacingNmi,
		FixedTrackSpacingNmi: req.FixedTrackSpacingNmi,
		LengthNmi:            req.LengthNmi,
		WidthNmi:             req.WidthNmi,
		ParallelSweep:        req.ParallelSweep,
	}
}

// FromPattern feeds a returned pattern back into the set so the next
// request starts where the guest left off. Speed is scaled by the ratio of
// the pattern's effective path length to the one the set implied. It
// reports false and leaves the set unchanged when pat carries no answer.
func (p *ParameterSet) FromPattern(pat *sim.SearchPattern) bool {
	if pat == nil || pat.Status() != sim.StatusOK {
		return false
	}
	oldEpl := p.SpeedKts * float64(p.DurationSecs) / 3600.0
	if oldEpl > 0 && pat.EffectivePathLengthNmi > 0 {
		p.SpeedKts *= pat.EffectivePathLengthNmi / oldEpl
	}
	p.MinTrackSpacingNmi = pat.MinTrackSpacingNmi
	p.FixedTrackSpacingNmi = pat.FixedTrackSpacingNmi
	p.LengthNmi = pat.LengthNmi
	p.WidthNmi = pat.WidthNmi
	p.ParallelSweep = pat.ParallelSweep
	p.FirstTurnRight = pat.FirstTurnRight
	p.Orientation = pat.Orientation
	p.Lat = pat.CenterLat
	p.Lng = pat.CenterLng
	return true
}
