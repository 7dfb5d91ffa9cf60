package sim

import (
	"fmt"
	"strings"
)

// MotionType selects the navigation model. Values are the stable
// two-letter codes understood by the guest.
type MotionType string

const (
	GreatCircle     MotionType = "GC"
	RhumbLine       MotionType = "RL"
	TangentCylinder MotionType = "TC"
	MidLatitude     MotionType = "ML"
)

// MotionTypes lists every supported model in display order.
var MotionTypes = []MotionType{GreatCircle, RhumbLine, TangentCylinder, MidLatitude}

// Valid reports whether m is one of the four known codes.
func (m MotionType) Valid() bool {
	switch m {
	case GreatCircle, RhumbLine, TangentCylinder, MidLatitude:
		return true
	}
	return false
}

// Name returns the long name of the model.
func (m MotionType) Name() string {
	switch m {
	case GreatCircle:
		return "great-circle"
	case RhumbLine:
		return "rhumb-line"
	case TangentCylinder:
		return "tangent-cylinder"
	case MidLatitude:
		return "mid-latitude"
	}
	return "unknown"
}

// ParseMotionType accepts a two-letter code or a long name, case-insensitive.
func ParseMotionType(s string) (MotionType, error) {
	s = strings.TrimSpace(s)
	for _, m := range MotionTypes {
		if strings.EqualFold(s, string(m)) || strings.EqualFold(s, m.Name()) {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown motion type %q (want GC, RL, TC or ML)", s)
}
