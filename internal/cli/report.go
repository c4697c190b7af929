package cli

import (
	"fmt"

	"github.com/dennisdiepolder/monti/acw/internal/report"
	"github.com/dennisdiepolder/monti/acw/internal/storage"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print the average after-call work per service",
	Long: `Read a transaction log and print the rounded average after-call work in
seconds for every service.

Examples:
  acw report --input transactions.csv
  acw report --input transactions.csv --format json
  acw report --source dynamodb --from 2024-01-01 --to 2024-01-31`,
	Args: cobra.NoArgs,
	RunE: runReport,
}

// Flags
var (
	reportInput  string
	reportSource string
	reportFormat string
	reportFrom   string
	reportTo     string
)

const (
	formatTable = "table"
	formatJSON  = "json"
)

func init() {
	reportCmd.Flags().StringVarP(&reportInput, "input", "i", "", "CSV transaction log (defaults to INPUT_PATH)")
	reportCmd.Flags().StringVar(&reportSource, "source", "", "Record source: csv or dynamodb (defaults to RECORD_SOURCE)")
	reportCmd.Flags().StringVarP(&reportFormat, "format", "f", formatTable, "Output format: table or json")
	reportCmd.Flags().StringVar(&reportFrom, "from", "", "First day to include, YYYY-MM-DD (dynamodb only)")
	reportCmd.Flags().StringVar(&reportTo, "to", "", "Last day to include, YYYY-MM-DD (dynamodb only)")
}

func runReport(cmd *cobra.Command, args []string) error {
	if reportFormat != formatTable && reportFormat != formatJSON {
		return fmt.Errorf("unknown format %q (want %s or %s)", reportFormat, formatTable, formatJSON)
	}

	ctx := cmd.Context()
	source, name, err := newRecordSource(ctx, cfg, sourceOptions{
		Kind:  reportSource,
		Input: reportInput,
		Dates: storage.DateRange{From: reportFrom, To: reportTo},
	}, log.Logger)
	if err != nil {
		return err
	}

	rep, err := report.NewBuilder(source, name, log.Logger).Build(ctx)
	if err != nil {
		return err
	}

	if reportFormat == formatJSON {
		return report.WriteJSON(cmd.OutOrStdout(), rep)
	}
	return report.WriteTable(cmd.OutOrStdout(), rep)
}
