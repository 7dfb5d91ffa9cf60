package main

import (
	"github.com/spf13/cobra"

	"github.com/wippyai/simhook/errors"
	"github.com/wippyai/simhook/sim"
)

func (a *app) navCmd() *cobra.Command {
	var (
		from, to      string
		rangeNmi, brg float64
		motion        string
	)
	cmd := &cobra.Command{
		Use:   "nav",
		Short: "Solve a navigation problem",
		Long: `Solve for range and bearing between --from and --to, or for the destination
reached from --from along --range and --bearing.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mt, err := sim.ParseMotionType(motion)
			if err != nil {
				return errors.MalformedInput("%v", err)
			}
			p0, err := parseCSV(from, 2)
			if err != nil {
				return err
			}
			h, err := a.facade(cmd)
			if err != nil {
				return err
			}

			var n *sim.NavigationSolution
			if to != "" {
				p1, err := parseCSV(to, 2)
				if err != nil {
					return err
				}
				n = h.SolveForRangeBearing(cmd.Context(), p0[0], p0[1], p1[0], p1[1], mt)
			} else {
				n = h.SolveForDestination(cmd.Context(), p0[0], p0[1], rangeNmi, brg, mt)
			}
			if err := a.render(cmd, n, n.String()); err != nil {
				return err
			}
			if n.Status() == sim.StatusFailed {
				return a.failed()
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "0,0", "start point as LAT,LNG")
	cmd.Flags().StringVar(&to, "to", "", "end point as LAT,LNG")
	cmd.Flags().Float64Var(&rangeNmi, "range", 0, "range in NM")
	cmd.Flags().Float64Var(&brg, "bearing", 0, "bearing in degrees clockwise from north")
	cmd.Flags().StringVar(&motion, "motion", string(sim.GreatCircle), "motion type (GC|RL|TC|ML)")
	cmd.MarkFlagsMutuallyExclusive("to", "range")
	cmd.MarkFlagsMutuallyExclusive("to", "bearing")
	cmd.MarkFlagsRequiredTogether("range", "bearing")
	cmd.MarkFlagsOneRequired("to", "range")
	return cmd
}
