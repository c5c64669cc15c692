package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/DoyleJ11/map-pickban-backend/internal/engine"
)

func newFormatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "formats",
		Short: "Print the built-in formats and the map pool",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "map pool: %s\n", strings.Join(engine.MapPool(), ", "))
			for _, f := range engine.Formats() {
				seq, err := engine.SequenceFor(f)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "\n%s (%d steps)\n", f, len(seq))
				for i, step := range seq {
					fmt.Fprintf(out, "  %2d. %-9s %s\n", i+1, step.Action, step.Side)
				}
			}
			return nil
		},
	}
}
