package main

import (
	"fmt"
	"io"
	"os"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/rushteam/survkit/core"
)

var (
	predictInput   string
	predictSubject string
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Predict survival for one passenger record (JSON object)",
	Long: `Reads a single passenger record as a JSON object from --input or stdin
and prints the prediction result as JSON.

Example:
  echo '{"Pclass":3,"Sex":"male","Age":22,...}' | survkit predict -m model.json --subject "Mr. Owen Harris Braund"`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var r io.Reader = cmd.InOrStdin()
		if predictInput != "" && predictInput != "-" {
			f, err := os.Open(predictInput)
			if err != nil {
				return err
			}
			defer f.Close()
			r = f
		}
		var raw map[string]any
		if err := json.NewDecoder(r).Decode(&raw); err != nil {
			return fmt.Errorf("decode record: %w", err)
		}
		rec, err := core.RecordFromMap(raw)
		if err != nil {
			return err
		}

		a, err := buildApp(cmd.Context(), cfg, false)
		if err != nil {
			return err
		}
		defer a.close()

		res, err := a.predictor.Predict(cmd.Context(), predictSubject, rec)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	},
}

func init() {
	predictCmd.Flags().StringVarP(&predictInput, "input", "i", "", "record JSON file (default stdin)")
	predictCmd.Flags().StringVarP(&predictSubject, "subject", "s", "", "passenger name used in the result message")
}
