package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wippyai/simhook/errors"
	"github.com/wippyai/simhook/hook"
	"github.com/wippyai/simhook/sim"
)

func (a *app) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the guest library version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			h, err := a.facade(cmd)
			if err != nil {
				return err
			}
			name := h.VersionName(cmd.Context())
			out := struct {
				VersionName string `json:"version_name" yaml:"version_name"`
			}{name}
			if err := a.render(cmd, out, "VersionName: "+name); err != nil {
				return err
			}
			if name == hook.BadString {
				return a.failed()
			}
			return nil
		},
	}
}

func (a *app) printArgsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "print-args [args...]",
		Short: "Echo arguments through the guest console",
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := a.facade(cmd)
			if err != nil {
				return err
			}
			if !h.PrintArgs(cmd.Context(), args) {
				return a.failed()
			}
			return nil
		},
	}
}

func (a *app) acosCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "acos X",
		Short: "Compute the arc cosine of X in the guest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			x, err := parseFloats(args)
			if err != nil {
				return err
			}
			h, err := a.facade(cmd)
			if err != nil {
				return err
			}
			v := h.ArcCosine(cmd.Context(), x[0])
			out := struct {
				X    float64 `json:"x" yaml:"x"`
				Acos float64 `json:"acos" yaml:"acos"`
			}{x[0], v}
			if err := a.render(cmd, out, formatFloat(v)); err != nil {
				return err
			}
			if v == hook.BadAngle {
				return a.failed()
			}
			return nil
		},
	}
}

func (a *app) pdCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pd A0 A1 A2 MAXX",
		Short: "Compute the maximum detection probability of a log-odds curve",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := parseFloats(args)
			if err != nil {
				return err
			}
			h, err := a.facade(cmd)
			if err != nil {
				return err
			}
			pd := h.LogOddsMaxPd(cmd.Context(), v[0], v[1], v[2], v[3])
			out := struct {
				MaxPd float64 `json:"max_pd" yaml:"max_pd"`
			}{pd}
			if err := a.render(cmd, out, formatFloat(pd)); err != nil {
				return err
			}
			if pd == hook.BadProbability {
				return a.failed()
			}
			return nil
		},
	}
}

func (a *app) sweepWidthCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "sweep-width",
		Short: "Compute the sweep width of a sensor definition",
		Long: `Compute the sweep width of an LRC_SET sensor definition. Without --file
the built-in InverseCube sensor is used.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			text := sim.InverseCubeSensor().Text()
			if file != "" {
				data, err := os.ReadFile(file)
				if err != nil {
					return errors.New(errors.PhaseConfig, errors.KindNotFound).
						Path(file).
						Detail("read sensor definition").
						Cause(err).
						Build()
				}
				text = string(data)
			}
			h, err := a.facade(cmd)
			if err != nil {
				return err
			}
			sw := h.SweepWidth(cmd.Context(), text)
			out := struct {
				Sensor        string  `json:"sensor" yaml:"sensor"`
				SweepWidthNmi float64 `json:"sweep_width_nmi" yaml:"sweep_width_nmi"`
			}{text, sw}
			if err := a.render(cmd, out, text+"\n"+formatFloat(sw)); err != nil {
				return err
			}
			if sw == hook.BadSweepWidth {
				return a.failed()
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "file holding the sensor definition")
	return cmd
}

func (a *app) symbolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "symbols",
		Short: "Report which guest entry points resolved",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			h, err := a.facade(cmd)
			if err != nil {
				return err
			}
			if err := h.Err(); err != nil {
				return err
			}
			syms := h.Symbols()
			var b strings.Builder
			resolved := 0
			for _, s := range syms {
				state := "missing"
				if s.Resolved {
					state = s.Module
					resolved++
				}
				fmt.Fprintf(&b, "%-36s %-28s %s\n", s.Name, s.Signature, state)
			}
			fmt.Fprintf(&b, "%d/%d resolved", resolved, len(syms))
			return a.render(cmd, syms, b.String())
		},
	}
}

func parseFloats(args []string) ([]float64, error) {
	out := make([]float64, len(args))
	for i, s := range args {
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil, errors.MalformedInput("argument %d: %q is not a number", i+1, s)
		}
		out[i] = v
	}
	return out, nil
}

// parseCSV parses exactly n comma-separated numbers.
func parseCSV(s string, n int) ([]float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != n {
		return nil, errors.MalformedInput("%q has %d values, want %d", s, len(parts), n)
	}
	return parseFloats(parts)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
