package sim

import "fmt"

// PatternRequest holds the inputs of a search-pattern construction.
// Distances are nautical miles, angles are degrees clockwise from north and
// times are whole seconds. A FixedTrackSpacingNmi <= 0 requests no fixed
// spacing.
type PatternRequest struct {
	MotionType           MotionType `json:"motion_type" yaml:"motion_type"`
	SpeedKts             float64    `json:"speed_kts" yaml:"speed_kts"`
	StartEpochSecs       int64      `json:"start_epoch_secs" yaml:"start_epoch_secs"`
	DurationSecs         int64      `json:"duration_secs" yaml:"duration_secs"`
	CenterLat            float64    `json:"center_lat" yaml:"center_lat"`
	CenterLng            float64    `json:"center_lng" yaml:"center_lng"`
	Orientation          float64    `json:"orientation" yaml:"orientation"`
	MinTrackSpacingNmi   float64    `json:"min_track_spacing_nmi" yaml:"min_track_spacing_nmi"`
	FixedTrackSpacingNmi float64    `json:"fixed_track_spacing_nmi" yaml:"fixed_track_spacing_nmi"`
	ExclusionBufferNmi   float64    `json:"exclusion_buffer_nmi" yaml:"exclusion_buffer_nmi"`
	LengthNmi            float64    `json:"length_nmi" yaml:"length_nmi"`
	WidthNmi             float64    `json:"width_nmi" yaml:"width_nmi"`
	FirstTurnRight       bool       `json:"first_turn_right" yaml:"first_turn_right"`
	ParallelSweep        bool       `json:"parallel_sweep" yaml:"parallel_sweep"`
	ExpandSpecsIfNeeded  bool       `json:"expand_specs_if_needed" yaml:"expand_specs_if_needed"`
}

// CreepingLineRequest is the 90 kt, two hour, 19.2 x 6.0 NM great-circle
// case used by the console drivers.
func CreepingLineRequest() PatternRequest {
	return PatternRequest{
		MotionType:           GreatCircle,
		SpeedKts:             90.0,
		DurationSecs:         7200,
		MinTrackSpacingNmi:   0.1,
		FixedTrackSpacingNmi: -1.0,
		ExclusionBufferNmi:   0.5,
		LengthNmi:            19.2,
		WidthNmi:             6.0,
	}
}

// UsesFixedSpacing reports whether a fixed track spacing was requested.
func (r PatternRequest) UsesFixedSpacing() bool {
	return r.FixedTrackSpacingNmi > 0
}

// Track is a flown path: parallel latitude, longitude and waypoint-time
// slices.
type Track struct {
	Lats []float64 `json:"lats" yaml:"lats"`
	Lngs []float64 `json:"lngs" yaml:"lngs"`
	Secs []int64   `json:"secs" yaml:"secs"`
}

// Len returns the number of waypoints.
func (t Track) Len() int { return len(t.Secs) }

// Polygon is a sequence of lat/lng vertices.
type Polygon struct {
	Lats []float64 `json:"lats" yaml:"lats"`
	Lngs []float64 `json:"lngs" yaml:"lngs"`
}

// Len returns the number of vertices.
func (p Polygon) Len() int { return len(p.Lats) }

// SearchPattern is the result of a pattern construction. Scalar inputs are
// echoed back as the guest rounded them. Every slice is owned by the record.
type SearchPattern struct {
	CenterLat            float64 `json:"center_lat" yaml:"center_lat"`
	CenterLng            float64 `json:"center_lng" yaml:"center_lng"`
	Orientation          float64 `json:"orientation" yaml:"orientation"`
	MinTrackSpacingNmi   float64 `json:"min_track_spacing_nmi" yaml:"min_track_spacing_nmi"`
	FixedTrackSpacingNmi float64 `json:"fixed_track_spacing_nmi" yaml:"fixed_track_spacing_nmi"`
	ExclusionBufferNmi   float64 `json:"exclusion_buffer_nmi" yaml:"exclusion_buffer_nmi"`
	LengthNmi            float64 `json:"length_nmi" yaml:"length_nmi"`
	WidthNmi             float64 `json:"width_nmi" yaml:"width_nmi"`
	FirstTurnRight       bool    `json:"first_turn_right" yaml:"first_turn_right"`
	ParallelSweep        bool    `json:"parallel_sweep" yaml:"parallel_sweep"`

	EffectivePathLengthNmi float64 `json:"epl_nmi" yaml:"epl_nmi"`
	RawSearchKtsToUse      float64 `json:"raw_search_kts_to_use" yaml:"raw_search_kts_to_use"`
	TrackSpacingNmi        float64 `json:"ts_nmi" yaml:"ts_nmi"`
	SubLegLengthNmi        float64 `json:"sll_nmi" yaml:"sll_nmi"`

	Path      Track   `json:"path" yaml:"path"`
	SpecLoose Polygon `json:"spec_loose" yaml:"spec_loose"`
	TsLoose   Polygon `json:"ts_loose" yaml:"ts_loose"`
	TsTight   Polygon `json:"ts_tight" yaml:"ts_tight"`
	ExcTight  Polygon `json:"exc_tight" yaml:"exc_tight"`

	Result Status `json:"status" yaml:"status"`
}

// InvalidSearchPattern returns the sentinel reported when no pattern could
// be obtained.
func InvalidSearchPattern() *SearchPattern {
	return &SearchPattern{
		CenterLat:              InvalidLat,
		CenterLng:              InvalidLng,
		MinTrackSpacingNmi:     -1,
		FixedTrackSpacingNmi:   -1,
		ExclusionBufferNmi:     -1,
		LengthNmi:              -1,
		WidthNmi:               -1,
		EffectivePathLengthNmi: -1,
		RawSearchKtsToUse:      -1,
		TrackSpacingNmi:        -1,
		SubLegLengthNmi:        -1,
		Result:                 StatusFailed,
	}
}

// Status reports whether the pattern is usable.
func (p *SearchPattern) Status() Status { return p.Result }

func (p *SearchPattern) count(n int) int {
	if p.Result == StatusFailed {
		return -1
	}
	return n
}

// PathCount returns the number of flown-path points, or -1 if invalid.
func (p *SearchPattern) PathCount() int { return p.count(p.Path.Len()) }

// SpecCount returns the number of loose specification vertices, or -1.
func (p *SearchPattern) SpecCount() int { return p.count(p.SpecLoose.Len()) }

// TsLooseCount returns the number of loose track-spacing box vertices, or -1.
func (p *SearchPattern) TsLooseCount() int { return p.count(p.TsLoose.Len()) }

// TsTightCount returns the number of tight track-spacing box vertices, or -1.
func (p *SearchPattern) TsTightCount() int { return p.count(p.TsTight.Len()) }

// ExcTightCount returns the number of tight exclusion vertices, or -1.
func (p *SearchPattern) ExcTightCount() int { return p.count(p.ExcTight.Len()) }

// String renders the pattern in the console dump layout.
func (p *SearchPattern) String() string {
	return fmt.Sprintf("RAW_SPD_TO_USE[%f] LEN[%.4f] WID[%.4f]"+
		"\n\tSLL[%.4f] TS[%.4f], PS[%c] FrstTrnRt[%c] "+
		"nPath[%d] nSpec[%d] nTsLoose[%d] nTsTight[%d] nExcTight[%d]",
		p.RawSearchKtsToUse,
		p.LengthNmi, p.WidthNmi, p.SubLegLengthNmi, p.TrackSpacingNmi,
		boolChar(p.ParallelSweep), boolChar(p.FirstTurnRight),
		p.PathCount(), p.SpecCount(), p.TsLooseCount(), p.TsTightCount(), p.ExcTightCount())
}
