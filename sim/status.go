package sim

// Status is the outcome carried by every result value.
type Status int

const (
	// StatusOK means the guest computed an answer.
	StatusOK Status = iota
	// StatusNoSolution means the computation ran but the inputs admit no
	// answer. The value's fields hold the guest's documented sentinels.
	StatusNoSolution
	// StatusFailed means the call never produced an answer (runtime
	// unavailable, guest fault, malformed input). The value is the type's
	// invalid sentinel.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusNoSolution:
		return "no-solution"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalText renders the status for JSON and YAML reports.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Sentinel coordinates shared by the invalid variants.
const (
	InvalidLat     = 91.0
	InvalidLng     = 181.0
	InvalidBearing = 361.0
)

func boolChar(b bool) byte {
	if b {
		return 'T'
	}
	return 'F'
}
