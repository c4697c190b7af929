package cli

import (
	"context"
	"fmt"

	"github.com/dennisdiepolder/monti/acw/internal/config"
	"github.com/dennisdiepolder/monti/acw/internal/ingestion"
	"github.com/dennisdiepolder/monti/acw/internal/storage"
	"github.com/rs/zerolog"
)

// sourceOptions selects where transactions are read from. Empty fields fall
// back to the configuration.
type sourceOptions struct {
	Kind  string
	Input string
	Dates storage.DateRange
}

// newRecordSource builds the record source for kind and returns its name
// for logs and metrics
func newRecordSource(ctx context.Context, cfg *config.Config, opts sourceOptions, logger zerolog.Logger) (ingestion.RecordSource, string, error) {
	kind := opts.Kind
	if kind == "" {
		kind = cfg.RecordSource
	}

	switch kind {
	case config.SourceCSV:
		path := opts.Input
		if path == "" {
			path = cfg.InputPath
		}
		return ingestion.NewCSVSource(path, logger), config.SourceCSV, nil

	case config.SourceDynamoDB:
		store, err := storage.NewDynamoDBStore(ctx, storage.LoadDynamoConfig(cfg), logger)
		if err != nil {
			return nil, "", fmt.Errorf("failed to open DynamoDB source: %w", err)
		}
		return store.WithDateRange(opts.Dates), config.SourceDynamoDB, nil
	}

	return nil, "", fmt.Errorf("unknown record source %q (want %s or %s)", kind, config.SourceCSV, config.SourceDynamoDB)
}
