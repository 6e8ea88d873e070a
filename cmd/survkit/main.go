// Command survkit 加载泰坦尼克生还分类模型，提供 HTTP 预测服务与命令行预测。
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rushteam/survkit/config"
	_ "github.com/rushteam/survkit/config/builders"
	"github.com/rushteam/survkit/logging"
)

var (
	configPath  string
	modelSource string
	logLevel    string

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "survkit",
	Short: "Titanic survival classifier: validate, align, infer, score",
	Long: `survkit serves predictions from a trained passenger survival model.

Each request runs four stages in order:
  1. validate  categorical fields against the canonical category tables
  2. align     derive missing features and project onto the model's expected columns
  3. infer     predict the label and both class probabilities
  4. score     map the winning probability to a confidence tier

Configuration is read from defaults, then --config, then SURVKIT_* environment variables.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if modelSource != "" {
			loaded.Model.Source = modelSource
		}
		if logLevel != "" {
			loaded.Logging.Level = logLevel
		}
		logging.Init(loaded.Logging)
		cfg = loaded
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config file")
	rootCmd.PersistentFlags().StringVarP(&modelSource, "model", "m", "", "model artifact path or URL (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (overrides config)")

	rootCmd.AddCommand(serveCmd, predictCmd, inspectCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
