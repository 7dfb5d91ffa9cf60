package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wippyai/simhook/batch"
	"github.com/wippyai/simhook/paramgen"
)

func (a *app) randomCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "random",
		Short: "Build patterns for a seeded sweep of random parameters",
		Long: `Draw --count parameter sets from the seeded generator and build one pattern
per set. The work is spread over --workers guest sessions; the drawn sets
depend only on the seed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			hc, err := a.cfg.HookConfig(cmd.OutOrStdout(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			r := a.cfg.Random
			report, err := batch.Run(cmd.Context(), batch.Config{
				Hook:    hc,
				Seed:    r.Seed,
				Ranges:  paramgen.DefaultRanges(),
				Count:   r.Count,
				Workers: r.Workers,
				OnItem: func(it batch.Item) {
					a.logger.Debug("sweep item", zap.Int("index", it.Index), zap.Bool("ok", it.OK()))
				},
			})
			if report == nil {
				return err
			}

			var b strings.Builder
			fmt.Fprintf(&b, "Run[%s] Seed[%d] Count[%d] Workers[%d]", report.RunID, report.Seed, report.Count, report.Workers)
			for _, it := range report.Items {
				b.WriteString("\n")
				b.WriteString(it.String())
			}
			fmt.Fprintf(&b, "\nOk[%d] Failed[%d] Resets[%d] Elapsed[%s]", report.OK, report.Failed, report.Resets, report.Elapsed)
			if rerr := a.render(cmd, report, b.String()); rerr != nil {
				return rerr
			}
			if err == nil && report.Failed > 0 {
				err = fmt.Errorf("%d of %d patterns failed", report.Failed, len(report.Items))
			}
			return err
		},
	}
	cmd.Flags().Uint64("seed", paramgen.DefaultSeed, "generator seed")
	cmd.Flags().Int("count", 10, "number of parameter sets")
	cmd.Flags().Int("workers", 1, "parallel guest sessions")
	return cmd
}
