package sim

import "fmt"

// NavigationSolution relates two points by range and bearing under a
// motion model. FoundRangeBearing records which way the question was asked:
// true when range and bearing were derived from the two points, false when
// the second point was derived from range and bearing.
type NavigationSolution struct {
	Lat0              float64    `json:"lat0" yaml:"lat0"`
	Lng0              float64    `json:"lng0" yaml:"lng0"`
	Lat1              float64    `json:"lat1" yaml:"lat1"`
	Lng1              float64    `json:"lng1" yaml:"lng1"`
	RangeNmi          float64    `json:"range_nmi" yaml:"range_nmi"`
	Bearing           float64    `json:"bearing" yaml:"bearing"`
	MotionType        MotionType `json:"motion_type" yaml:"motion_type"`
	FoundRangeBearing bool       `json:"found_range_bearing" yaml:"found_range_bearing"`
	Result            Status     `json:"status" yaml:"status"`
}

// InvalidNavigationSolution returns the sentinel reported when no solution
// could be obtained.
func InvalidNavigationSolution() *NavigationSolution {
	return &NavigationSolution{
		Lat0:              InvalidLat,
		Lng0:              InvalidLng,
		Lat1:              InvalidLat,
		Lng1:              InvalidLng,
		RangeNmi:          -1,
		Bearing:           InvalidBearing,
		FoundRangeBearing: true,
		Result:            StatusFailed,
	}
}

// Status reports whether the solution is usable.
func (n *NavigationSolution) Status() Status { return n.Result }

// String renders the solution in the console dump layout.
func (n *NavigationSolution) String() string {
	return fmt.Sprintf("Lat0/Lng0[%.6f/%.6f] Lat1/Lng1[%.6f/%.6f] RangeNmi[%.4f] Bearing[%.4f] "+
		"Motion[%s] FoundRngBrg[%c]",
		n.Lat0, n.Lng0, n.Lat1, n.Lng1, n.RangeNmi, n.Bearing, n.MotionType, boolChar(n.FoundRangeBearing))
}
