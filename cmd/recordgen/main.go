package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/arkframe/record/gen"
)

var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newLogger builds the CLI logger. Generation is a developer-facing tool,
// so the console encoder is the right default.
func newLogger() (*zap.Logger, error) {
	return zap.NewDevelopment()
}

var rootCmd = &cobra.Command{
	Use:   "recordgen",
	Short: "Scaffold model files from a YAML config",
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate model files once",
	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := newLogger()
		if err != nil {
			return err
		}
		defer log.Sync()

		cfg, err := gen.LoadConfig(configPath)
		if err != nil {
			return err
		}
		return gen.New(cfg, log).Generate(cmd.Context())
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Regenerate whenever the config changes",
	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := newLogger()
		if err != nil {
			return err
		}
		defer log.Sync()

		return gen.Watch(cmd.Context(), configPath, log)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", gen.DefaultConfigFile, "path to the generator config")
	rootCmd.AddCommand(generateCmd, watchCmd)
}
