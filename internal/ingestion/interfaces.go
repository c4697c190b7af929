package ingestion

import (
	"context"

	"github.com/dennisdiepolder/monti/acw/internal/types"
)

// RecordSource supplies the full transaction log for one run (CSV file,
// DynamoDB table, uploaded body, ...). Order is not guaranteed.
type RecordSource interface {
	Records(ctx context.Context) ([]types.TransactionRecord, error)
}

// StaticSource serves an in-memory record set
type StaticSource []types.TransactionRecord

// Records returns the wrapped records
func (s StaticSource) Records(_ context.Context) ([]types.TransactionRecord, error) {
	return s, nil
}
