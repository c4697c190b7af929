package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/dennisdiepolder/monti/acw/internal/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// batchWriteLimit is the DynamoDB maximum for BatchWriteItem
const batchWriteLimit = 25

// maxBatchAttempts bounds the writes of one batch, retries included
const maxBatchAttempts = 5

// batchRetryDelay is the wait before the first retry of unprocessed items.
// It doubles with every further attempt.
var batchRetryDelay = 50 * time.Millisecond

// ErrDynamoDisabled is returned when DYNAMO_MODE is none
var ErrDynamoDisabled = errors.New("DynamoDB disabled (DYNAMO_MODE=none)")

// transactionItem is the stored form of a TransactionRecord
type transactionItem struct {
	DateKey string `dynamodbav:"DateKey"`
	types.TransactionRecord
}

// DateRange limits a scan to day keys between From and To, inclusive.
// Empty bounds are open.
type DateRange struct {
	From string
	To   string
}

// dynamoAPI is the part of the DynamoDB client the store uses
type dynamoAPI interface {
	dynamodb.ScanAPIClient
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

// DynamoDBStore reads and seeds the transaction log in DynamoDB
type DynamoDBStore struct {
	client dynamoAPI
	config DynamoConfig
	dates  DateRange
	logger zerolog.Logger
}

// NewDynamoDBStore creates a new DynamoDB store
func NewDynamoDBStore(ctx context.Context, cfg DynamoConfig, logger zerolog.Logger) (*DynamoDBStore, error) {
	if !cfg.Enabled() {
		return nil, ErrDynamoDisabled
	}

	var client *dynamodb.Client

	if cfg.Mode == DynamoModeLocal {
		// For local mode, build the client directly without LoadDefaultConfig.
		// LoadDefaultConfig probes the EC2 IMDS endpoint which hangs on EC2
		// instances when static credentials are intended.
		client = dynamodb.New(dynamodb.Options{
			Region:       cfg.Region,
			BaseEndpoint: aws.String(cfg.Endpoint),
			Credentials:  credentials.NewStaticCredentialsProvider("local", "local", ""),
		})
	} else {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		client = dynamodb.NewFromConfig(awsCfg)
	}

	store := &DynamoDBStore{
		client: client,
		config: cfg,
		logger: logger.With().Str("component", "dynamodb_store").Logger(),
	}

	if cfg.Mode == DynamoModeLocal {
		if err := CreateTablesIfNotExist(ctx, client, cfg, store.logger); err != nil {
			return nil, err
		}
	}

	store.logger.Info().
		Str("mode", string(cfg.Mode)).
		Str("region", cfg.Region).
		Str("table", cfg.TransactionsTable).
		Msg("DynamoDB store initialized")

	return store, nil
}

// WithDateRange returns a copy of the store whose Records scan is limited to dates
func (s *DynamoDBStore) WithDateRange(dates DateRange) *DynamoDBStore {
	cp := *s
	cp.dates = dates
	return &cp
}

// Records scans the transactions table
func (s *DynamoDBStore) Records(ctx context.Context) ([]types.TransactionRecord, error) {
	input := &dynamodb.ScanInput{
		TableName: aws.String(s.config.TransactionsTable),
	}

	if filter, ok := s.dates.filter(); ok {
		expr, err := expression.NewBuilder().WithFilter(filter).Build()
		if err != nil {
			return nil, fmt.Errorf("failed to build expression: %w", err)
		}
		input.FilterExpression = expr.Filter()
		input.ExpressionAttributeNames = expr.Names()
		input.ExpressionAttributeValues = expr.Values()
	}

	var records []types.TransactionRecord
	paginator := dynamodb.NewScanPaginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transactions: %w", err)
		}

		var items []transactionItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, fmt.Errorf("failed to unmarshal transactions: %w", err)
		}
		for _, item := range items {
			records = append(records, item.TransactionRecord)
		}
	}

	s.logger.Debug().
		Str("from", s.dates.From).
		Str("to", s.dates.To).
		Int("record_count", len(records)).
		Msg("transactions scanned")

	return records, nil
}

// SaveTransactions writes records in batches of 25. Records without a
// transaction id get a random one.
func (s *DynamoDBStore) SaveTransactions(ctx context.Context, records []types.TransactionRecord) error {
	for i := 0; i < len(records); i += batchWriteLimit {
		end := min(i+batchWriteLimit, len(records))

		requests := make([]dbtypes.WriteRequest, 0, end-i)
		for _, rec := range records[i:end] {
			if rec.TransactionID == "" {
				rec.TransactionID = uuid.New().String()
			}
			item, err := attributevalue.MarshalMap(transactionItem{DateKey: rec.DayKey(), TransactionRecord: rec})
			if err != nil {
				return fmt.Errorf("failed to marshal transaction %s: %w", rec.TransactionID, err)
			}
			requests = append(requests, dbtypes.WriteRequest{
				PutRequest: &dbtypes.PutRequest{Item: item},
			})
		}

		if err := s.writeBatch(ctx, requests); err != nil {
			return err
		}
	}

	s.logger.Info().Int("record_count", len(records)).Msg("transactions saved")
	return nil
}

// writeBatch retries unprocessed items until the batch is fully written
func (s *DynamoDBStore) writeBatch(ctx context.Context, requests []dbtypes.WriteRequest) error {
	pending := map[string][]dbtypes.WriteRequest{s.config.TransactionsTable: requests}

	for attempt := 0; len(pending) > 0; attempt++ {
		if attempt >= maxBatchAttempts {
			return fmt.Errorf("failed to save transactions: %d items unprocessed", len(pending[s.config.TransactionsTable]))
		}
		if attempt > 0 {
			delay := batchRetryDelay << (attempt - 1)
			s.logger.Debug().
				Int("attempt", attempt).
				Int("unprocessed", len(pending[s.config.TransactionsTable])).
				Dur("delay", delay).
				Msg("retrying unprocessed transactions")

			select {
			case <-ctx.Done():
				return fmt.Errorf("failed to save transactions: %w", ctx.Err())
			case <-time.After(delay):
			}
		}

		out, err := s.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: pending,
		})
		if err != nil {
			return fmt.Errorf("failed to save transactions: %w", err)
		}
		pending = out.UnprocessedItems
	}

	return nil
}

func (d DateRange) filter() (expression.ConditionBuilder, bool) {
	key := expression.Name(attrDateKey)
	switch {
	case d.From != "" && d.To != "":
		return key.Between(expression.Value(d.From), expression.Value(d.To)), true
	case d.From != "":
		return key.GreaterThanEqual(expression.Value(d.From)), true
	case d.To != "":
		return key.LessThanEqual(expression.Value(d.To)), true
	}
	return expression.ConditionBuilder{}, false
}
