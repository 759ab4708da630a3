package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/kartoza/airscope/internal/ingest"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest file.csv...",
	Short: "Load SO2 readings from CSV into the prediction service database",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runIngest,
}

func init() {
	ingestCmd.Flags().String("db", "", "sqlite database path")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if cmd.Flags().Changed("db") {
		cfg.Backend.DBPath, _ = cmd.Flags().GetString("db")
	}

	st, err := openStore(cfg.Backend.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	total := 0
	for _, path := range args {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		n, err := ingest.Load(st, f)
		f.Close()
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		log.Info().Str("file", path).Int("rows", n).Msg("Ingested")
		total += n
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Ingested %d data points into %s\n", total, cfg.Backend.DBPath)
	return nil
}
