package storage

import "github.com/dennisdiepolder/monti/acw/internal/config"

// DynamoMode represents the DynamoDB connection mode
type DynamoMode string

const (
	DynamoModeLocal DynamoMode = "local"
	DynamoModeAWS   DynamoMode = "aws"
	DynamoModeNone  DynamoMode = "none"
)

// DynamoConfig holds DynamoDB configuration
type DynamoConfig struct {
	Mode              DynamoMode
	Endpoint          string // for local mode
	Region            string
	TransactionsTable string
}

// LoadDynamoConfig extracts the DynamoDB settings from the app config
func LoadDynamoConfig(cfg *config.Config) DynamoConfig {
	mode := DynamoMode(cfg.DynamoMode)
	if mode != DynamoModeLocal && mode != DynamoModeAWS {
		mode = DynamoModeNone
	}

	return DynamoConfig{
		Mode:              mode,
		Endpoint:          cfg.DynamoEndpoint,
		Region:            cfg.DynamoRegion,
		TransactionsTable: cfg.DynamoTransactionsTable,
	}
}

// Enabled reports whether a DynamoDB connection is configured
func (c DynamoConfig) Enabled() bool {
	return c.Mode == DynamoModeLocal || c.Mode == DynamoModeAWS
}
