package sim

import (
	"fmt"
	"math"
)

// NThresholds is the number of values in a threshold vector.
const NThresholds = 5

// NLobValues is the number of values describing one line of bearing.
const NLobValues = 7

// Thresholds bound an acceptable ellipse fit.
type Thresholds struct {
	AreaNmi2     float64 `json:"area_nmi2" yaml:"area_nmi2" mapstructure:"area_nmi2"`
	DistanceNmi  float64 `json:"distance_nmi" yaml:"distance_nmi" mapstructure:"distance_nmi"`
	SemiMajorNmi float64 `json:"semi_major_nmi" yaml:"semi_major_nmi" mapstructure:"semi_major_nmi"`
	MajorToMinor float64 `json:"major_to_minor" yaml:"major_to_minor" mapstructure:"major_to_minor"`
	MinAngleDeg  float64 `json:"min_angle_deg" yaml:"min_angle_deg" mapstructure:"min_angle_deg"`
}

// DefaultThresholds returns the documented defaults: 3000 NM², 500 NM,
// 250 NM, 64 and 5°.
func DefaultThresholds() Thresholds {
	return Thresholds{
		AreaNmi2:     3000,
		DistanceNmi:  500,
		SemiMajorNmi: 250,
		MajorToMinor: 64,
		MinAngleDeg:  5,
	}
}

// Values returns the thresholds in wire order.
func (t Thresholds) Values() [NThresholds]float64 {
	return [NThresholds]float64{t.AreaNmi2, t.DistanceNmi, t.SemiMajorNmi, t.MajorToMinor, t.MinAngleDeg}
}

// ThresholdsFrom builds thresholds from exactly five values in wire order.
func ThresholdsFrom(v []float64) (Thresholds, error) {
	if len(v) != NThresholds {
		return Thresholds{}, fmt.Errorf("thresholds have %d values, want %d", len(v), NThresholds)
	}
	return Thresholds{v[0], v[1], v[2], v[3], v[4]}, nil
}

// Lob is one line-of-bearing observation.
type Lob struct {
	OriginLat    float64 `json:"origin_lat" yaml:"origin_lat"`
	OriginLng    float64 `json:"origin_lng" yaml:"origin_lng"`
	OriginPeNmi  float64 `json:"origin_pe_nmi" yaml:"origin_pe_nmi"`
	BearingDeg   float64 `json:"bearing_deg" yaml:"bearing_deg"`
	BearingSdDeg float64 `json:"bearing_sd_deg" yaml:"bearing_sd_deg"`
	MinRingNmi   float64 `json:"min_ring_nmi" yaml:"min_ring_nmi"`
	MaxRingNmi   float64 `json:"max_ring_nmi" yaml:"max_ring_nmi"`
}

// Values returns the observation in wire order.
func (l Lob) Values() [NLobValues]float64 {
	return [NLobValues]float64{l.OriginLat, l.OriginLng, l.OriginPeNmi, l.BearingDeg, l.BearingSdDeg, l.MinRingNmi, l.MaxRingNmi}
}

// LobFrom builds an observation from exactly seven values in wire order.
func LobFrom(v []float64) (Lob, error) {
	if len(v) != NLobValues {
		return Lob{}, fmt.Errorf("lob has %d values, want %d", len(v), NLobValues)
	}
	return Lob{v[0], v[1], v[2], v[3], v[4], v[5], v[6]}, nil
}

// BearingEllipse is a 95% containment ellipse fitted to lines of bearing.
type BearingEllipse struct {
	CenterLat            float64 `json:"center_lat" yaml:"center_lat"`
	CenterLng            float64 `json:"center_lng" yaml:"center_lng"`
	SemiMajorNmi95       float64 `json:"semi_major_nmi_95" yaml:"semi_major_nmi_95"`
	SemiMinorNmi95       float64 `json:"semi_minor_nmi_95" yaml:"semi_minor_nmi_95"`
	SemiMajorDegsCwFromN float64 `json:"semi_major_degs_cw_from_n" yaml:"semi_major_degs_cw_from_n"`
	IndicesUsed          []int   `json:"indices_used" yaml:"indices_used"`
	Result               Status  `json:"status" yaml:"status"`
}

// NewBearingEllipse builds an ellipse from the guest's numeric answer: five
// scalars followed by the indices of the observations used, rounded to the
// nearest integer. The guest's no-ellipse answer is kept verbatim and
// flagged StatusNoSolution.
func NewBearingEllipse(values []float64) (*BearingEllipse, error) {
	if len(values) < 5 {
		return nil, fmt.Errorf("ellipse answer has %d values, want at least 5", len(values))
	}
	e := &BearingEllipse{
		CenterLat:            values[0],
		CenterLng:            values[1],
		SemiMajorNmi95:       values[2],
		SemiMinorNmi95:       values[3],
		SemiMajorDegsCwFromN: values[4],
		IndicesUsed:          make([]int, len(values)-5),
	}
	for k, v := range values[5:] {
		e.IndicesUsed[k] = int(math.Floor(v + 0.5))
	}
	if e.isNoEllipse() {
		e.Result = StatusNoSolution
	}
	return e, nil
}

// InvalidBearingEllipse returns the sentinel reported when no ellipse could
// be obtained.
func InvalidBearingEllipse() *BearingEllipse {
	return &BearingEllipse{
		CenterLat:            InvalidLat,
		CenterLng:            InvalidLng,
		SemiMajorDegsCwFromN: InvalidBearing,
		IndicesUsed:          []int{},
		Result:               StatusFailed,
	}
}

func (e *BearingEllipse) isNoEllipse() bool {
	return e.CenterLat == InvalidLat && e.CenterLng == InvalidLng &&
		e.SemiMajorNmi95 == -1 && e.SemiMinorNmi95 == -1 && e.SemiMajorDegsCwFromN == -1
}

// Status reports whether the ellipse is usable.
func (e *BearingEllipse) Status() Status { return e.Result }

// String renders the ellipse in the console dump layout.
func (e *BearingEllipse) String() string {
	return fmt.Sprintf("CntrLat[%.1f] CntrLng[%.1f] SemiMajor95Nmi[%.2f] SemiMinor95Nmi[%.2f] "+
		"semiMajorDegsCwFromN[%.2f]",
		e.CenterLat, e.CenterLng, e.SemiMajorNmi95, e.SemiMinorNmi95, e.SemiMajorDegsCwFromN)
}
