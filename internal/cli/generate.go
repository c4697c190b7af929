package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/dennisdiepolder/monti/acw/internal/generator"
	"github.com/dennisdiepolder/monti/acw/internal/ingestion"
	"github.com/dennisdiepolder/monti/acw/internal/storage"
	"github.com/dennisdiepolder/monti/acw/internal/types"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Write a synthetic transaction log",
	Long: `Generate a synthetic transaction log for demos and load tests.

Examples:
  acw generate --agents 200 --days 5 --out transactions.csv
  acw generate --agents 50 --seed 7 --out -
  acw generate --agents 200 --days 30 --dynamodb`,
	Args: cobra.NoArgs,
	RunE: runGenerate,
}

// Flags
var (
	generateAgents   int
	generateDays     int
	generateOut      string
	generateSeed     int64
	generateStart    string
	generateDynamoDB bool
)

func init() {
	generateCmd.Flags().IntVar(&generateAgents, "agents", 200, "Number of agents")
	generateCmd.Flags().IntVar(&generateDays, "days", 1, "Number of days")
	generateCmd.Flags().StringVarP(&generateOut, "out", "o", "transactions.csv", "Output CSV file, - for stdout")
	generateCmd.Flags().Int64Var(&generateSeed, "seed", 1, "Random seed")
	generateCmd.Flags().StringVar(&generateStart, "start", "", "First day, YYYY-MM-DD (defaults to today)")
	generateCmd.Flags().BoolVar(&generateDynamoDB, "dynamodb", false, "Seed the DynamoDB transactions table instead of writing CSV")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	start := time.Now().UTC()
	if generateStart != "" {
		t, err := time.Parse(types.DateLayout, generateStart)
		if err != nil {
			return fmt.Errorf("invalid --start %q: %w", generateStart, err)
		}
		start = t
	}

	records, err := generator.NewGenerator(generateSeed).Generate(generator.Options{
		Agents: generateAgents,
		Days:   generateDays,
		Start:  start,
	})
	if err != nil {
		return err
	}

	if generateDynamoDB {
		store, err := storage.NewDynamoDBStore(cmd.Context(), storage.LoadDynamoConfig(cfg), log.Logger)
		if err != nil {
			return err
		}
		return store.SaveTransactions(cmd.Context(), records)
	}

	if generateOut == "-" {
		return ingestion.WriteCSV(cmd.OutOrStdout(), records)
	}
	if err := writeCSVFile(generateOut, records); err != nil {
		return err
	}

	log.Info().
		Str("path", generateOut).
		Int("record_count", len(records)).
		Int("agents", generateAgents).
		Int("days", generateDays).
		Int64("seed", generateSeed).
		Msg("transaction log written")
	return nil
}

func writeCSVFile(path string, records []types.TransactionRecord) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("failed to close %s: %w", path, cerr)
		}
	}()

	return ingestion.WriteCSV(f, records)
}
