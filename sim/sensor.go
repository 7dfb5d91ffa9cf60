package sim

import (
	"fmt"
	"strings"
)

// CreepLimits bounds the range and look angle over which a sensor detects
// while creeping up or down a leg.
type CreepLimits struct {
	MinRangeNmi     float64 `json:"min_range_nmi" yaml:"min_range_nmi"`
	MaxRangeNmi     float64 `json:"max_range_nmi" yaml:"max_range_nmi"`
	MinLookAngleDeg float64 `json:"min_look_angle_deg" yaml:"min_look_angle_deg"`
	MaxLookAngleDeg float64 `json:"max_look_angle_deg" yaml:"max_look_angle_deg"`
}

// SensorDefinition describes a sensor's detection law for the sweep-width
// computation.
type SensorDefinition struct {
	SubType          string      `json:"sub_type" yaml:"sub_type"`
	SweepWidthNmi    float64     `json:"sweep_width_nmi" yaml:"sweep_width_nmi"`
	ApplyToCrossLegs bool        `json:"apply_to_cross_legs" yaml:"apply_to_cross_legs"`
	UpCreep          CreepLimits `json:"up_creep" yaml:"up_creep"`
	DownCreep        CreepLimits `json:"down_creep" yaml:"down_creep"`
}

// InverseCubeSensor is the reference sensor used by the console drivers.
func InverseCubeSensor() SensorDefinition {
	full := CreepLimits{MinRangeNmi: 0, MaxRangeNmi: 100, MinLookAngleDeg: 0, MaxLookAngleDeg: 180}
	return SensorDefinition{
		SubType:          "InverseCube",
		SweepWidthNmi:    1.2435,
		ApplyToCrossLegs: true,
		UpCreep:          full,
		DownCreep:        full,
	}
}

// Text renders the LRC_SET block the guest parses.
func (s SensorDefinition) Text() string {
	var b strings.Builder
	b.WriteString("<LRC_SET>")
	fmt.Fprintf(&b, "\n<SENSOR SubType = %q", s.SubType)
	fmt.Fprintf(&b, "\nsw = \"%s NM\"", formatDecimal(s.SweepWidthNmi))
	fmt.Fprintf(&b, "\nApplyToCrossLegs = \"%t\"", s.ApplyToCrossLegs)
	writeCreep(&b, "Up", s.UpCreep)
	writeCreep(&b, "Down", s.DownCreep)
	b.WriteString(" />")
	b.WriteString("\n</LRC_SET>")
	return b.String()
}

func writeCreep(b *strings.Builder, dir string, c CreepLimits) {
	fmt.Fprintf(b, "\n%sCreepMinRange = \"%s NM\"", dir, formatDecimal(c.MinRangeNmi))
	fmt.Fprintf(b, "\n%sCreepMaxRange = \"%s NM\"", dir, formatDecimal(c.MaxRangeNmi))
	fmt.Fprintf(b, "\n%sCreepMinLookAngle = \"%s degs\"", dir, formatDecimal(c.MinLookAngleDeg))
	fmt.Fprintf(b, "\n%sCreepMaxLookAngle = \"%s degs\"", dir, formatDecimal(c.MaxLookAngleDeg))
}

// formatDecimal keeps at least one fractional digit so 100 renders as 100.0.
func formatDecimal(v float64) string {
	s := fmt.Sprintf("%g", v)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}
