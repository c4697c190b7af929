package report

import (
	"context"
	"fmt"
	"time"

	"github.com/dennisdiepolder/monti/acw/internal/aggregator"
	"github.com/dennisdiepolder/monti/acw/internal/ingestion"
	"github.com/dennisdiepolder/monti/acw/internal/metrics"
	"github.com/dennisdiepolder/monti/acw/internal/pairing"
	"github.com/dennisdiepolder/monti/acw/internal/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Builder runs the record source -> pairing -> aggregation pipeline
type Builder struct {
	source     ingestion.RecordSource
	sourceName string
	logger     zerolog.Logger
	now        func() time.Time
}

// NewBuilder creates a Builder reading from source. sourceName labels logs
// and metrics ("csv", "dynamodb", "upload").
func NewBuilder(source ingestion.RecordSource, sourceName string, logger zerolog.Logger) *Builder {
	return &Builder{
		source:     source,
		sourceName: sourceName,
		logger:     logger.With().Str("component", "report_builder").Str("source", sourceName).Logger(),
		now:        time.Now,
	}
}

// Build loads every record from the source and computes the report
func (b *Builder) Build(ctx context.Context) (*types.Report, error) {
	start := b.now()
	m := metrics.Get()

	records, err := b.source.Records(ctx)
	if err != nil {
		m.RecordSourceError(b.sourceName)
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}
	m.RecordIngested(len(records))

	slots, stats := pairing.BuildDailySlotsWithStats(records)
	m.RecordPairing(metrics.PairingCounts{
		Opened:         stats.Opened,
		Closed:         stats.Closed,
		SkippedOpeners: stats.SkippedOpeners,
		Ignored:        stats.Ignored,
		InvalidGaps:    stats.InvalidGaps,
	})

	rep := newReport(len(records), slots, b.now())
	m.RecordReport(b.now().Sub(start), rep.GeneratedAt, rep.Averages)

	b.logger.Info().
		Str("run_id", rep.RunID).
		Int("record_count", stats.Records).
		Int("day_count", len(slots)).
		Int("slots_opened", stats.Opened).
		Int("slots_closed", stats.Closed).
		Int("skipped_openers", stats.SkippedOpeners).
		Int("ignored_records", stats.Ignored).
		Int("service_count", len(rep.Services)).
		Msg("report built")

	if stats.InvalidGaps > 0 {
		b.logger.Warn().
			Str("run_id", rep.RunID).
			Int("invalid_gaps", stats.InvalidGaps).
			Msg("slots closed with unparseable timestamps, counted as 0s")
	}

	return rep, nil
}

// FromRecords computes a report from an in-memory record set
func FromRecords(records []types.TransactionRecord) *types.Report {
	return newReport(len(records), pairing.BuildDailySlots(records), time.Now())
}

func newReport(recordCount int, slots types.DailySlots, at time.Time) *types.Report {
	services := aggregator.Summarize(slots)
	averages := make(map[string]int64, len(services))
	for _, s := range services {
		averages[s.Service] = s.AverageSeconds
	}

	return &types.Report{
		RunID:       uuid.New().String(),
		GeneratedAt: at.UTC(),
		RecordCount: recordCount,
		Averages:    averages,
		Services:    services,
		Slots:       slots,
	}
}
