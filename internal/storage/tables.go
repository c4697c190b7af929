package storage

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog"
)

// Key attributes of the transactions table
const (
	attrDateKey       = "DateKey"       // YYYY-MM-DD (partition key)
	attrTransactionID = "TransactionID" // sort key
)

// CreateTablesIfNotExist creates the transactions table for local development
func CreateTablesIfNotExist(ctx context.Context, client *dynamodb.Client, config DynamoConfig, logger zerolog.Logger) error {
	_, err := client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(config.TransactionsTable),
	})
	if err == nil {
		logger.Info().Str("table", config.TransactionsTable).Msg("table already exists")
		return nil
	}

	_, err = client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(config.TransactionsTable),
		KeySchema: []dbtypes.KeySchemaElement{
			{AttributeName: aws.String(attrDateKey), KeyType: dbtypes.KeyTypeHash},
			{AttributeName: aws.String(attrTransactionID), KeyType: dbtypes.KeyTypeRange},
		},
		AttributeDefinitions: []dbtypes.AttributeDefinition{
			{AttributeName: aws.String(attrDateKey), AttributeType: dbtypes.ScalarAttributeTypeS},
			{AttributeName: aws.String(attrTransactionID), AttributeType: dbtypes.ScalarAttributeTypeS},
		},
		BillingMode: dbtypes.BillingModePayPerRequest,
	})
	if err != nil {
		return fmt.Errorf("failed to create table %s: %w", config.TransactionsTable, err)
	}
	logger.Info().Str("table", config.TransactionsTable).Msg("table created")

	return nil
}
