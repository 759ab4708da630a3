package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kartoza/airscope/internal/config"
	"github.com/kartoza/airscope/internal/logging"
)

var (
	cfgPath  string
	logLevel string
	version  = "dev"

	// cfg is loaded before any subcommand runs
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "airscope",
	Short:         "AirScope air quality prediction website",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if logLevel != "" {
			loaded.Logging.Level = logLevel
		}
		loaded.Version = version
		logging.Setup(loaded.Logging)
		cfg = loaded
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version and exit",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "AirScope v%s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "configuration file (yaml or json)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the CLI.
func Execute(v string) error {
	if v != "" {
		version = v
	}
	return rootCmd.Execute()
}
