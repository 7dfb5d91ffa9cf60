package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/wippyai/simhook/errors"
	"github.com/wippyai/simhook/sim"
)

// patternFlags binds the fifteen pattern inputs to flags.
type patternFlags struct {
	req    sim.PatternRequest
	motion string
}

func (p *patternFlags) register(fs *pflag.FlagSet) {
	def := sim.CreepingLineRequest()
	fs.Float64Var(&p.req.SpeedKts, "speed", def.SpeedKts, "search speed in knots")
	fs.Int64Var(&p.req.StartEpochSecs, "start", def.StartEpochSecs, "start time, seconds since the epoch")
	fs.Int64Var(&p.req.DurationSecs, "duration", def.DurationSecs, "duration in seconds")
	fs.Float64Var(&p.req.CenterLat, "lat", def.CenterLat, "center latitude")
	fs.Float64Var(&p.req.CenterLng, "lng", def.CenterLng, "center longitude")
	fs.Float64Var(&p.req.Orientation, "orientation", def.Orientation, "orientation in degrees clockwise from north")
	fs.BoolVar(&p.req.FirstTurnRight, "first-turn-right", def.FirstTurnRight, "first turn to the right")
	fs.Float64Var(&p.req.MinTrackSpacingNmi, "min-ts", def.MinTrackSpacingNmi, "minimum track spacing in NM")
	fs.Float64Var(&p.req.FixedTrackSpacingNmi, "fixed-ts", def.FixedTrackSpacingNmi, "fixed track spacing in NM, <= 0 for none")
	fs.Float64Var(&p.req.ExclusionBufferNmi, "exclusion", def.ExclusionBufferNmi, "exclusion buffer in NM")
	fs.Float64Var(&p.req.LengthNmi, "length", def.LengthNmi, "pattern length in NM")
	fs.Float64Var(&p.req.WidthNmi, "width", def.WidthNmi, "pattern width in NM")
	fs.BoolVar(&p.req.ParallelSweep, "ps", def.ParallelSweep, "parallel sweep instead of creeping line")
	fs.StringVar(&p.motion, "motion", string(def.MotionType), "motion type (GC|RL|TC|ML)")
	fs.BoolVar(&p.req.ExpandSpecsIfNeeded, "expand", def.ExpandSpecsIfNeeded, "expand the specs if needed")
}

func (p *patternFlags) request() (sim.PatternRequest, error) {
	mt, err := sim.ParseMotionType(p.motion)
	if err != nil {
		return sim.PatternRequest{}, errors.MalformedInput("%v", err)
	}
	req := p.req
	req.MotionType = mt
	return req, nil
}

func (a *app) patternCmd() *cobra.Command {
	var (
		flags  patternFlags
		points bool
	)
	cmd := &cobra.Command{
		Use:   "pattern",
		Short: "Build a search pattern",
		Long: `Build a search pattern. The defaults are the 90 kt, two hour, 19.2 x 6.0 NM
great-circle creeping-line case.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, err := flags.request()
			if err != nil {
				return err
			}
			h, err := a.facade(cmd)
			if err != nil {
				return err
			}
			pat := h.MakePattern(cmd.Context(), req)
			var b strings.Builder
			b.WriteString(pat.String())
			if points {
				writeTrack(&b, pat.Path)
			}
			if err := a.render(cmd, pat, b.String()); err != nil {
				return err
			}
			if pat.Status() == sim.StatusFailed {
				return a.failed()
			}
			return nil
		},
	}
	flags.register(cmd.Flags())
	cmd.Flags().BoolVar(&points, "points", false, "list the trackline points")
	return cmd
}

func writeTrack(w io.Writer, t sim.Track) {
	fmt.Fprint(w, "\n\tTrackline points")
	for i := 0; i < t.Len(); i++ {
		fmt.Fprintf(w, "\n\t\tpoint #%d: [%g,%g] t[%d]", i, t.Lats[i], t.Lngs[i], t.Secs[i])
	}
}
