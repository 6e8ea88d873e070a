package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Load the model artifact and print its column contract and capability",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadArtifact(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "name:        %s\n", a.Name())
		fmt.Fprintf(out, "version:     %s\n", a.Version())
		fmt.Fprintf(out, "capability:  %s\n", a.Capability())
		if members := a.Estimators(); len(members) > 0 {
			names := make([]string, 0, len(members))
			for _, m := range members {
				names = append(names, m.Name())
			}
			fmt.Fprintf(out, "estimators:  %s\n", strings.Join(names, ", "))
		}
		fmt.Fprintln(out, "expected_columns:")
		for i, col := range a.ExpectedColumns() {
			fmt.Fprintf(out, "  %2d  %s\n", i, col)
		}
		return nil
	},
}
