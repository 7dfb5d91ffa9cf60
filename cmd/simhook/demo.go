package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wippyai/simhook/errors"
	"github.com/wippyai/simhook/hook"
	"github.com/wippyai/simhook/paramgen"
	"github.com/wippyai/simhook/sim"
)

// demoLobs are the two crossing bearings of the console run.
var demoLobs = []sim.Lob{
	{OriginLat: 36.13577780, OriginLng: -75.82419440, OriginPeNmi: 1, BearingDeg: 111, BearingSdDeg: 3, MinRingNmi: 0, MaxRingNmi: 36.41},
	{OriginLat: 35.79591670, OriginLng: -75.55038890, OriginPeNmi: 1, BearingDeg: 11, BearingSdDeg: 4, MinRingNmi: 0, MaxRingNmi: 25.59},
}

// Log-odds detection curve of the console run.
const (
	demoA0   = 5.28395899644369926
	demoA1   = -2.62862019317526929
	demoA2   = -0.28910017589801196
	demoMaxX = 1.0e+20
)

// demoPatternRounds is how many times a pattern is fed back into the next
// request.
const demoPatternRounds = 3

func (a *app) demoCmd() *cobra.Command {
	var dump string
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run the console demonstration and write a dump file",
		Long: `Run every computation once in the order of the original console driver:
version, print-args, acos(0), ellipses, detection bound, sweep width and a
pattern fed back into itself. Results go to stdout and to the --dump file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := os.Create(dump)
			if err != nil {
				return errors.New(errors.PhaseConfig, errors.KindNotFound).
					Path(dump).
					Detail("create dump file").
					Cause(err).
					Build()
			}
			defer f.Close()

			h, err := a.facade(cmd)
			if err != nil {
				return err
			}
			gen, err := paramgen.New(a.cfg.Random.Seed, paramgen.DefaultRanges())
			if err != nil {
				return err
			}
			w := io.MultiWriter(cmd.OutOrStdout(), f)
			if err := runDemo(cmd.Context(), h, w, gen, a.cfg.Thresholds); err != nil {
				return err
			}
			a.logger.Info("demo finished",
				zap.String("dump", dump),
				zap.Int("resets", h.Resets()))
			return f.Close()
		},
	}
	cmd.Flags().StringVar(&dump, "dump", "Dump.txt", "dump file")
	return cmd
}

// demo writes one console run to w. Only write errors stop it; failed
// computations show up as their sentinels.
type demo struct {
	ctx context.Context
	h   *hook.Hook
	w   io.Writer
	err error
}

func (d *demo) printf(format string, args ...any) {
	if d.err != nil {
		return
	}
	_, d.err = fmt.Fprintf(d.w, format, args...)
}

func (d *demo) point(prefix string, lat, lng float64) {
	d.printf("%s[%.6g,%.6g]", prefix, lat, lng)
}

func (d *demo) outOfBounds(out bool, bound, value float64) {
	if out {
		d.printf("    <===== !!!! OUT OF BOUNDS !!! bound[%f] value[%f]", bound, value)
	}
}

func runDemo(ctx context.Context, h *hook.Hook, w io.Writer, gen *paramgen.Generator, thr sim.Thresholds) error {
	d := &demo{ctx: ctx, h: h, w: w}

	d.printf("\nVersionName: %s\n", h.VersionName(ctx))
	h.PrintArgs(ctx, []string{"Hello", "from", "simhook"})
	d.printf("\n%s\n", formatFloat(h.ArcCosine(ctx, 0)))

	// The self-test ellipse goes first and is discarded.
	h.MakeLobsEllipse(ctx, nil, nil)
	d.printf("%s\n", h.MakeLobsEllipse(ctx, &thr, demoLobs))

	d.printf("%s\n", formatFloat(h.LogOddsMaxPd(ctx, demoA0, demoA1, demoA2, demoMaxX)))

	sensor := sim.InverseCubeSensor().Text()
	d.printf("%s\n%s\n", sensor, formatFloat(h.SweepWidth(ctx, sensor)))

	d.patterns(gen)
	d.printf("\n")
	return d.err
}

// patterns builds a creeping-line pattern, feeds each answer back into the
// next request and moves it to a freshly drawn center and orientation.
func (d *demo) patterns(gen *paramgen.Generator) {
	req := sim.CreepingLineRequest()
	params := paramgen.FromRequest(req)

	for k := 0; k < demoPatternRounds; k++ {
		d.printf("\n%s", params)
		pat := d.h.MakePattern(d.ctx, params.Apply(req))
		d.printf("\n\t=>%s", pat)
		params.FromPattern(pat)
		if k == 0 && pat.Status() == sim.StatusOK {
			d.edges(pat, params)
		}
		next := gen.Next()
		params.Orientation = next.Orientation
		params.Lat = next.Lat
		params.Lng = next.Lng
	}
}

// edges lists the trackline and checks it against the pattern's four edge
// midpoints.
func (d *demo) edges(pat *sim.SearchPattern, params paramgen.ParameterSet) {
	d.printf("\n\tTrackline points")
	north, south := math.Inf(-1), math.Inf(1)
	east, west := math.Inf(-1), math.Inf(1)
	for i := 0; i < pat.Path.Len(); i++ {
		lat, lng := pat.Path.Lats[i], pat.Path.Lngs[i]
		d.printf("\n\t\tpoint #%d: ", i)
		d.point("", lat, lng)
		north, south = math.Max(north, lat), math.Min(south, lat)
		east, west = math.Max(east, lng), math.Min(west, lng)
	}

	edge := func(label string, rangeNmi, brg float64) *sim.NavigationSolution {
		n := d.h.SolveForDestination(d.ctx, params.Lat, params.Lng, rangeNmi, brg, sim.GreatCircle)
		if n.Status() == sim.StatusOK {
			d.point("\n\t"+label+" edge point is ", n.Lat1, n.Lng1)
		}
		return n
	}
	if n := edge("Western", params.WidthNmi/2, 270); n.Status() == sim.StatusOK {
		d.outOfBounds(west < n.Lng1, west, n.Lng1)
	}
	if n := edge("Eastern", params.WidthNmi/2, 90); n.Status() == sim.StatusOK {
		d.outOfBounds(east > n.Lng1, east, n.Lng1)
	}
	if n := edge("Northern", params.LengthNmi/2, 0); n.Status() == sim.StatusOK {
		d.outOfBounds(north > n.Lat1, north, n.Lat1)
	}
	if n := edge("Southern", params.LengthNmi/2, 180); n.Status() == sim.StatusOK {
		d.outOfBounds(south < n.Lat1, south, n.Lat1)
	}
}
