package ingestion

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dennisdiepolder/monti/acw/internal/types"
	"github.com/rs/zerolog"
)

// Column names of the transaction log
const (
	ColTransactionID   = "transaction_id"
	ColAgentID         = "agent_id"
	ColAgentJoinedAt   = "agent_joined_at"
	ColSelectedService = "selected_service"
	ColFinishedAt      = "finished_at"
	ColFinalStatus     = "final_status"
)

// Header is the column order written by WriteCSV
var Header = []string{
	ColTransactionID,
	ColAgentID,
	ColAgentJoinedAt,
	ColSelectedService,
	ColFinishedAt,
	ColFinalStatus,
}

// ErrNoHeader is returned for an input without a header row
var ErrNoHeader = errors.New("csv has no header row")

// CSVSource reads records from a CSV file
type CSVSource struct {
	path   string
	logger zerolog.Logger
}

// NewCSVSource creates a CSVSource for path
func NewCSVSource(path string, logger zerolog.Logger) *CSVSource {
	return &CSVSource{
		path:   path,
		logger: logger.With().Str("component", "csv_source").Logger(),
	}
}

// Records reads the whole file
func (s *CSVSource) Records(_ context.Context) ([]types.TransactionRecord, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", s.path, err)
	}
	defer f.Close()

	records, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.path, err)
	}

	s.logger.Debug().
		Str("path", s.path).
		Int("record_count", len(records)).
		Msg("transaction log loaded")

	return records, nil
}

// ReadCSV parses a transaction log. Columns are matched by header name;
// missing columns and short rows read as empty strings.
func ReadCSV(r io.Reader) ([]types.TransactionRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrNoHeader
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		if _, dup := index[name]; !dup {
			index[name] = i
		}
	}

	field := func(row []string, name string) string {
		i, ok := index[name]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	var records []types.TransactionRecord
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row %d: %w", len(records)+2, err)
		}

		records = append(records, types.TransactionRecord{
			TransactionID:   field(row, ColTransactionID),
			AgentID:         field(row, ColAgentID),
			AgentJoinedAt:   field(row, ColAgentJoinedAt),
			SelectedService: field(row, ColSelectedService),
			FinishedAt:      field(row, ColFinishedAt),
			FinalStatus:     types.FinalStatus(field(row, ColFinalStatus)),
		})
	}

	return records, nil
}

// WriteCSV writes records with Header as the first row
func WriteCSV(w io.Writer, records []types.TransactionRecord) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(Header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, rec := range records {
		row := []string{
			rec.TransactionID,
			rec.AgentID,
			rec.AgentJoinedAt,
			rec.SelectedService,
			rec.FinishedAt,
			string(rec.FinalStatus),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write record %s: %w", rec.TransactionID, err)
		}
	}

	writer.Flush()
	return writer.Error()
}
