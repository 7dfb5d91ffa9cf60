package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	"github.com/wippyai/simhook/config"
)

// render writes v in the configured format. Text output uses text, which
// holds the fixed dump layout of the value.
func (a *app) render(cmd *cobra.Command, v any, text string) error {
	return writeAs(cmd.OutOrStdout(), a.cfg.Output, v, text)
}

func writeAs(w io.Writer, format string, v any, text string) error {
	switch format {
	case config.OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case config.OutputYAML:
		out, err := yaml.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		_, err = w.Write(out)
		return err
	default:
		_, err := fmt.Fprintln(w, text)
		return err
	}
}
