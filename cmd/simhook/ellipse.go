package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/wippyai/simhook/bridge"
	"github.com/wippyai/simhook/sim"
)

func (a *app) ellipseCmd() *cobra.Command {
	var (
		lobFlags   []string
		thresholds string
		selfTest   bool
	)
	cmd := &cobra.Command{
		Use:   "ellipse",
		Short: "Fit a 95% containment ellipse to lines of bearing",
		Long: `Fit a 95% containment ellipse to lines of bearing. Each --lob is
LAT,LNG,ORIGIN_PE_NM,BEARING,BEARING_SD,MIN_RING_NM,MAX_RING_NM and
--thresholds is AREA_NM2,DISTANCE_NM,SEMI_MAJOR_NM,MAJOR_TO_MINOR,MIN_ANGLE.
Without lobs the guest self-test ellipse is returned.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			lobs := make([]sim.Lob, 0, len(lobFlags))
			for _, s := range lobFlags {
				v, err := parseCSV(s, sim.NLobValues)
				if err != nil {
					return err
				}
				lob, _ := sim.LobFrom(v)
				lobs = append(lobs, lob)
			}
			var thr *sim.Thresholds
			if thresholds != "" {
				v, err := parseCSV(thresholds, sim.NThresholds)
				if err != nil {
					return err
				}
				t, _ := sim.ThresholdsFrom(v)
				thr = &t
			} else if len(lobs) > 0 {
				t := a.cfg.Thresholds
				thr = &t
			}

			h, err := a.facade(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			if selfTest {
				probe := h.FitEllipse(ctx, bridge.EllipseRequest{Mode: bridge.EllipseSelfTestDefault})
				custom := h.FitEllipse(ctx, bridge.EllipseRequest{
					Mode:   bridge.EllipseSelfTestCustom,
					Custom: bridge.SelfTestCustomInput(),
				})
				out := struct {
					Probe  *sim.BearingEllipse `json:"probe" yaml:"probe"`
					Custom *sim.BearingEllipse `json:"custom" yaml:"custom"`
				}{probe, custom}
				if err := a.render(cmd, out, probe.String()+"\n"+custom.String()); err != nil {
					return err
				}
				if probe.Status() == sim.StatusFailed || custom.Status() == sim.StatusFailed {
					return a.failed()
				}
				return nil
			}

			e := h.MakeLobsEllipse(ctx, thr, lobs)
			var b strings.Builder
			b.WriteString(e.String())
			if e.Status() == sim.StatusNoSolution {
				b.WriteString("\n(no ellipse satisfies the thresholds)")
			}
			if err := a.render(cmd, e, b.String()); err != nil {
				return err
			}
			if e.Status() == sim.StatusFailed {
				return a.failed()
			}
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&lobFlags, "lob", nil, "line of bearing as 7 comma-separated values, repeatable")
	cmd.Flags().StringVar(&thresholds, "thresholds", "", "5 comma-separated thresholds (default from config)")
	cmd.Flags().BoolVar(&selfTest, "self-test", false, "run the default and custom self-test ellipses")
	return cmd
}
