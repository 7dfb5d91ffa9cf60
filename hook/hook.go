package hook

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/simhook/bridge"
	"github.com/wippyai/simhook/errors"
	"github.com/wippyai/simhook/sim"
)

// BadString is returned by VersionName when no version could be obtained.
const BadString = "BAD BAD STRING"

// Failure sentinels of the scalar operations.
const (
	BadAngle       = -1.0
	BadProbability = -1.0
	BadSweepWidth  = -1.0
)

// ResetPolicy decides what happens between a failed call and its retry.
type ResetPolicy int

const (
	// ResetRestart closes the session and opens a fresh one with the same
	// configuration.
	ResetRestart ResetPolicy = iota
	// ResetNone keeps the session as it is.
	ResetNone
)

func (p ResetPolicy) String() string {
	switch p {
	case ResetRestart:
		return "restart"
	case ResetNone:
		return "none"
	}
	return fmt.Sprintf("ResetPolicy(%d)", int(p))
}

// ParseResetPolicy accepts "restart" or "none".
func ParseResetPolicy(s string) (ResetPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "restart":
		return ResetRestart, nil
	case "none":
		return ResetNone, nil
	}
	return 0, errors.New(errors.PhaseConfig, errors.KindMalformedInput).
		Value(s).
		Detail("unknown reset policy %q (want restart or none)", s).
		Build()
}

// Config configures a Hook.
type Config struct {
	Bridge bridge.Config
	Reset  ResetPolicy
}

// Hook serializes calls into one bridge session and turns every failure
// into the operation's sentinel after one reset and retry. Ellipse calls
// are forwarded once.
type Hook struct {
	mu      sync.Mutex
	cfg     Config
	session *bridge.Session
	resets  int
	lastErr error
}

// New opens a session. The returned Hook is usable even when the session
// is degraded.
func New(ctx context.Context, cfg Config) *Hook {
	return &Hook{cfg: cfg, session: bridge.Open(ctx, cfg.Bridge)}
}

// reset applies the reset policy. Callers hold mu.
func (h *Hook) reset(ctx context.Context) {
	if h.cfg.Reset != ResetRestart {
		return
	}
	if err := h.session.Close(ctx); err != nil {
		bridge.Logger().Warn("close session before restart", zap.Error(err))
	}
	h.session = bridge.Open(ctx, h.cfg.Bridge)
	h.resets++
	bridge.Logger().Info("session restarted",
		zap.Int("resets", h.resets),
		zap.Bool("degraded", h.session.Degraded()))
}

// call runs op against the session, resetting and retrying once on
// failure. Malformed input is not retried.
func call[T any](ctx context.Context, h *Hook, name string, op func(*bridge.Session) (T, error)) (T, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	v, err := op(h.session)
	if err == nil {
		h.lastErr = nil
		return v, true
	}
	if errors.IsKind(err, errors.KindMalformedInput) {
		h.lastErr = err
		bridge.Logger().Debug("rejected input", zap.String("op", name), zap.Error(err))
		var zero T
		return zero, false
	}

	bridge.Logger().Warn("operation failed, retrying after reset",
		zap.String("op", name),
		zap.Stringer("policy", h.cfg.Reset),
		zap.Error(err))
	h.reset(ctx)

	v, err = op(h.session)
	if err != nil {
		h.lastErr = err
		bridge.Logger().Error("operation failed after retry", zap.String("op", name), zap.Error(err))
		var zero T
		return zero, false
	}
	h.lastErr = nil
	return v, true
}

// forward runs op once with no reset or retry. Any error still yields the
// sentinel and is kept as the last error.
func forward[T any](h *Hook, name string, op func(*bridge.Session) (T, error)) (T, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	v, err := op(h.session)
	h.lastErr = err
	if err != nil {
		bridge.Logger().Warn("operation failed", zap.String("op", name), zap.Error(err))
		var zero T
		return zero, false
	}
	return v, true
}

// PrintArgs echoes args through the guest console. It reports whether the
// call succeeded.
func (h *Hook) PrintArgs(ctx context.Context, args []string) bool {
	_, ok := call(ctx, h, "print_args", func(s *bridge.Session) (struct{}, error) {
		return struct{}{}, s.PrintDiagnosticArgs(ctx, args)
	})
	return ok
}

// ArcCosine returns acos(x) in [0, pi], or BadAngle.
func (h *Hook) ArcCosine(ctx context.Context, x float64) float64 {
	v, ok := call(ctx, h, "acos", func(s *bridge.Session) (float64, error) {
		return s.ArcCosine(ctx, x)
	})
	if !ok {
		return BadAngle
	}
	return v
}

// VersionName returns the guest library version, or BadString.
func (h *Hook) VersionName(ctx context.Context) string {
	v, ok := call(ctx, h, "version_name", func(s *bridge.Session) (string, error) {
		return s.VersionName(ctx)
	})
	if !ok {
		return BadString
	}
	return v
}

// MakePattern builds a search pattern, or returns InvalidSearchPattern.
func (h *Hook) MakePattern(ctx context.Context, req sim.PatternRequest) *sim.SearchPattern {
	v, ok := call(ctx, h, "make_pattern", func(s *bridge.Session) (*sim.SearchPattern, error) {
		return s.MakePattern(ctx, req)
	})
	if !ok {
		return sim.InvalidSearchPattern()
	}
	return v
}

// MakeLobsEllipse fits an ellipse, passing a no-solution answer through.
// The call is forwarded once without a retry. It returns
// InvalidBearingEllipse when no answer could be obtained.
func (h *Hook) MakeLobsEllipse(ctx context.Context, thresholds *sim.Thresholds, lobs []sim.Lob) *sim.BearingEllipse {
	v, ok := forward(h, "make_lobs_ellipse", func(s *bridge.Session) (*sim.BearingEllipse, error) {
		return s.MakeLobsEllipse(ctx, thresholds, lobs)
	})
	if !ok {
		return sim.InvalidBearingEllipse()
	}
	return v
}

// FitEllipse runs an explicit ellipse variant, forwarded once like
// MakeLobsEllipse.
func (h *Hook) FitEllipse(ctx context.Context, req bridge.EllipseRequest) *sim.BearingEllipse {
	v, ok := forward(h, "fit_ellipse", func(s *bridge.Session) (*sim.BearingEllipse, error) {
		return s.FitEllipse(ctx, req)
	})
	if !ok {
		return sim.InvalidBearingEllipse()
	}
	return v
}

// MakeNavCalc is the dual-mode navigation call; see
// bridge.Session.MakeNavCalc.
func (h *Hook) MakeNavCalc(ctx context.Context, lat0, lng0, p3, p4 float64, mt sim.MotionType, findRangeBearing bool) *sim.NavigationSolution {
	v, ok := call(ctx, h, "make_nav_calc", func(s *bridge.Session) (*sim.NavigationSolution, error) {
		return s.MakeNavCalc(ctx, lat0, lng0, p3, p4, mt, findRangeBearing)
	})
	if !ok {
		return sim.InvalidNavigationSolution()
	}
	return v
}

// SolveForRangeBearing returns range and bearing from point 0 to point 1,
// or InvalidNavigationSolution.
func (h *Hook) SolveForRangeBearing(ctx context.Context, lat0, lng0, lat1, lng1 float64, mt sim.MotionType) *sim.NavigationSolution {
	return h.MakeNavCalc(ctx, lat0, lng0, lat1, lng1, mt, true)
}

// SolveForDestination returns the point reached from point 0 after
// rangeNmi along bearing, or InvalidNavigationSolution.
func (h *Hook) SolveForDestination(ctx context.Context, lat0, lng0, rangeNmi, bearing float64, mt sim.MotionType) *sim.NavigationSolution {
	return h.MakeNavCalc(ctx, lat0, lng0, rangeNmi, bearing, mt, false)
}

// LogOddsMaxPd returns the detection probability bound in [0, 1], or
// BadProbability.
func (h *Hook) LogOddsMaxPd(ctx context.Context, a0, a1, a2, maxX float64) float64 {
	v, ok := call(ctx, h, "log_odds_max_pd", func(s *bridge.Session) (float64, error) {
		return s.LogOddsMaxPd(ctx, a0, a1, a2, maxX)
	})
	if !ok {
		return BadProbability
	}
	return v
}

// SweepWidth returns the sweep width in NM for a sensor definition, or
// BadSweepWidth.
func (h *Hook) SweepWidth(ctx context.Context, sensorText string) float64 {
	v, ok := call(ctx, h, "sweep_width", func(s *bridge.Session) (float64, error) {
		return s.ComputeSweepWidth(ctx, sensorText)
	})
	if !ok {
		return BadSweepWidth
	}
	return v
}

// Resets returns how many times the session was restarted.
func (h *Hook) Resets() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.resets
}

// LastError returns the error behind the most recent sentinel, or nil when
// the last operation succeeded.
func (h *Hook) LastError() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastErr
}

// Err returns the current session's startup error.
func (h *Hook) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.session.Err()
}

// Degraded reports whether the current session is degraded.
func (h *Hook) Degraded() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.session.Degraded()
}

// Missing lists the current session's unresolved entry points.
func (h *Hook) Missing() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.session.Missing()
}

// Symbols reports entry point resolution of the current session.
func (h *Hook) Symbols() []bridge.SymbolInfo {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.session.Symbols()
}

// WithSession runs fn with the current session while holding the lock.
func (h *Hook) WithSession(fn func(*bridge.Session)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	fn(h.session)
}

// Close closes the current session.
func (h *Hook) Close(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.session.Close(ctx)
}
