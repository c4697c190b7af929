package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// ConfigFileEnv names the optional YAML file layered under the environment
const ConfigFileEnv = "ACW_CONFIG"

// Config holds all configuration for the application
type Config struct {
	Port           string   `koanf:"port"`
	AllowedOrigins []string `koanf:"allowed_origins"`
	LogLevel       string   `koanf:"log_level"`
	Env            string   `koanf:"env"`

	// Record source
	RecordSource   string `koanf:"record_source"` // csv | dynamodb
	InputPath      string `koanf:"input_path"`
	MaxUploadBytes int64  `koanf:"max_upload_bytes"`

	// Auth
	SkipAuth           bool   `koanf:"skip_auth"`
	VerifyJWTSignature bool   `koanf:"verify_jwt_signature"`
	OIDCIssuer         string `koanf:"oidc_issuer"`

	// DynamoDB
	DynamoMode              string `koanf:"dynamo_mode"` // none | local | aws
	DynamoEndpoint          string `koanf:"dynamo_endpoint"`
	DynamoRegion            string `koanf:"dynamo_region"`
	DynamoTransactionsTable string `koanf:"dynamo_transactions_table"`

	// WebSocket, seconds in the environment
	WSReadTimeoutSecs  int `koanf:"ws_read_timeout"`
	WSWriteTimeoutSecs int `koanf:"ws_write_timeout"`

	WSReadTimeout  time.Duration `koanf:"-"`
	WSWriteTimeout time.Duration `koanf:"-"`
	PingPeriod     time.Duration `koanf:"-"`
	PongWait       time.Duration `koanf:"-"`
	WriteWait      time.Duration `koanf:"-"`
	MaxMessageSize int64         `koanf:"-"`
}

// Record source kinds
const (
	SourceCSV      = "csv"
	SourceDynamoDB = "dynamodb"
)

func defaults() Config {
	return Config{
		Port:                    "8080",
		AllowedOrigins:          []string{"http://localhost:5173"},
		LogLevel:                "info",
		RecordSource:            SourceCSV,
		InputPath:               "transactions.csv",
		MaxUploadBytes:          10 << 20,
		DynamoMode:              "none",
		DynamoEndpoint:          "http://localhost:8000",
		DynamoRegion:            "eu-central-1",
		DynamoTransactionsTable: "monti-acw-transactions",
		WSReadTimeoutSecs:       60,
		WSWriteTimeoutSecs:      10,
	}
}

// Load loads configuration from defaults, an optional YAML file and the
// environment, in increasing precedence. A .env file is read into the
// environment first when present.
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	k := koanf.New(".")

	if path := os.Getenv(ConfigFileEnv); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
	}

	// PORT -> port, DYNAMO_MODE -> dynamo_mode
	if err := k.Load(env.ProviderWithValue("", ".", envValue), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	config := defaults()
	if err := k.UnmarshalWithConf("", &config, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if config.WSReadTimeoutSecs <= 0 {
		return nil, fmt.Errorf("invalid WS_READ_TIMEOUT: %d", config.WSReadTimeoutSecs)
	}
	if config.WSWriteTimeoutSecs <= 0 {
		return nil, fmt.Errorf("invalid WS_WRITE_TIMEOUT: %d", config.WSWriteTimeoutSecs)
	}
	if config.RecordSource != SourceCSV && config.RecordSource != SourceDynamoDB {
		return nil, fmt.Errorf("invalid RECORD_SOURCE: %q", config.RecordSource)
	}

	config.WSReadTimeout = time.Duration(config.WSReadTimeoutSecs) * time.Second
	config.WSWriteTimeout = time.Duration(config.WSWriteTimeoutSecs) * time.Second

	// Calculate WebSocket constants
	config.PongWait = config.WSReadTimeout
	config.PingPeriod = (config.PongWait * 9) / 10 // Must be less than pongWait
	config.WriteWait = config.WSWriteTimeout
	config.MaxMessageSize = 512

	// Trim spaces from allowed origins
	for i, origin := range config.AllowedOrigins {
		config.AllowedOrigins[i] = strings.TrimSpace(origin)
	}

	return &config, nil
}

// envValue lowercases the key and splits comma lists
func envValue(key, value string) (string, interface{}) {
	key = strings.ToLower(key)
	if key == "allowed_origins" {
		return key, strings.Split(value, ",")
	}
	return key, value
}

// VerifySignature reports whether JWT signatures must be checked against the
// OIDC provider. Any ENV other than empty or "development" forces it on.
func (c *Config) VerifySignature() bool {
	if c.Env != "" && c.Env != "development" {
		return true
	}
	return c.VerifyJWTSignature
}
