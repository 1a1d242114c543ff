// Package config provides configuration management for the syncdal server:
// environment-specific settings, validation with struct tags, sensible
// defaults with overrides, and hot reloading in development.
//
// Cache and queue parameters are enumerated structs, never dynamic maps;
// adding a knob means extending a struct here and threading it through.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Environment represents the deployment environment.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

// Config is the complete application configuration.
type Config struct {
	Environment Environment `yaml:"environment" json:"environment" validate:"required,oneof=development staging production"`
	Server      Server      `yaml:"server" json:"server" validate:"required"`
	AWS         AWS         `yaml:"aws" json:"aws"`
	DynamoDB    DynamoDB    `yaml:"dynamodb" json:"dynamodb"`
	Supabase    Supabase    `yaml:"supabase" json:"supabase"`
	FileStore   FileStore   `yaml:"file_store" json:"file_store"`
	DAL         DAL         `yaml:"dal" json:"dal" validate:"required"`
	Events      Events      `yaml:"events" json:"events"`
	Notify      Notify      `yaml:"notify" json:"notify"`
	Logging     Logging     `yaml:"logging" json:"logging"`
	Tracing     Tracing     `yaml:"tracing" json:"tracing"`
	Concurrency Concurrency `yaml:"concurrency" json:"concurrency"`
}

// Server holds the HTTP server settings for the introspection/config API.
type Server struct {
	Port            int      `yaml:"port" json:"port" validate:"min=1,max=65535"`
	ReadTimeout     Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout    Duration `yaml:"write_timeout" json:"write_timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

// AWS holds shared AWS client settings.
type AWS struct {
	Region   string `yaml:"region" json:"region"`
	Endpoint string `yaml:"endpoint" json:"endpoint"` // non-empty for localstack
}

// DynamoDB configures the DynamoDB back-end adapter.
type DynamoDB struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	TableName string `yaml:"table_name" json:"table_name" validate:"required_if=Enabled true"`
	IndexName string `yaml:"index_name" json:"index_name"`
}

// Supabase configures the Supabase (Postgres/REST) back-end adapter.
type Supabase struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	URL     string `yaml:"url" json:"url" validate:"required_if=Enabled true"`
	Key     string `yaml:"key" json:"key" validate:"required_if=Enabled true"`
	Table   string `yaml:"table" json:"table"`
}

// FileStore configures the debug line-delimited-JSON file adapter.
type FileStore struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Dir     string `yaml:"dir" json:"dir"`
}

// DAL holds the storage-access layer's own knobs: the shared call timeout
// every synchronous wrapper is bounded by, default cache and queue
// parameters, and whether new adapters are wrapped in a write-back cache.
type DAL struct {
	CallTimeout   Duration    `yaml:"call_timeout" json:"call_timeout" validate:"required"`
	WrapWithCache bool        `yaml:"wrap_with_cache" json:"wrap_with_cache"`
	Cache         CacheParams `yaml:"cache" json:"cache"`
	Queue         QueueParams `yaml:"queue" json:"queue"`
}

// CacheParams mirrors the write-back cache's enumerated configuration.
type CacheParams struct {
	MaxCommitInterval Duration `yaml:"max_commit_interval" json:"max_commit_interval"`
	MaxCommitUpdates  int      `yaml:"max_commit_updates" json:"max_commit_updates" validate:"min=1"`
	MinCommitUpdates  int      `yaml:"min_commit_updates" json:"min_commit_updates" validate:"min=0"`
	MaxCacheSize      int      `yaml:"max_cache_size" json:"max_cache_size" validate:"min=1"`
	AlwaysEvict       bool     `yaml:"always_evict" json:"always_evict"`
	ClearObjectAge    bool     `yaml:"clear_object_age" json:"clear_object_age"`
}

// QueueParams mirrors the dispatch queue's enumerated configuration.
type QueueParams struct {
	Mode             string `yaml:"mode" json:"mode" validate:"oneof=primary-read-primary-write primary-read-all-write all-read-all-write"`
	MaxReadFailures  int    `yaml:"max_read_failures" json:"max_read_failures" validate:"min=1"`
	MaxWriteFailures int    `yaml:"max_write_failures" json:"max_write_failures" validate:"min=1"`
	FailureAction    string `yaml:"failure_action" json:"failure_action" validate:"oneof=ignore drop drop-unless-last push-to-back reconnect"`
}

// Events configures the EventBridge completion audit trail.
type Events struct {
	Enabled      bool   `yaml:"enabled" json:"enabled"`
	EventBusName string `yaml:"event_bus_name" json:"event_bus_name" validate:"required_if=Enabled true"`
	Source       string `yaml:"source" json:"source"`
}

// Notify configures the WebSocket completion fan-out.
type Notify struct {
	Enabled          bool   `yaml:"enabled" json:"enabled"`
	GatewayEndpoint  string `yaml:"gateway_endpoint" json:"gateway_endpoint" validate:"required_if=Enabled true"`
	ConnectionsTable string `yaml:"connections_table" json:"connections_table"`
}

// Logging holds the zap logger settings.
type Logging struct {
	Level    string `yaml:"level" json:"level" validate:"oneof=debug info warn error"`
	Encoding string `yaml:"encoding" json:"encoding" validate:"oneof=json console"`
}

// Tracing holds the OpenTelemetry settings.
type Tracing struct {
	Enabled     bool    `yaml:"enabled" json:"enabled"`
	Endpoint    string  `yaml:"endpoint" json:"endpoint"`
	SampleRate  float64 `yaml:"sample_rate" json:"sample_rate" validate:"min=0,max=1"`
	EnableXRay  bool    `yaml:"enable_xray" json:"enable_xray"`
	EnableDebug bool    `yaml:"enable_debug" json:"enable_debug"`
}

// Concurrency bounds the worker pool real adapters run their submissions on.
type Concurrency struct {
	MinWorkers    int      `yaml:"min_workers" json:"min_workers" validate:"min=1"`
	MaxWorkers    int      `yaml:"max_workers" json:"max_workers" validate:"min=1"`
	QueueDepth    int      `yaml:"queue_depth" json:"queue_depth" validate:"min=1"`
	IdleTimeout   Duration `yaml:"idle_timeout" json:"idle_timeout"`
	ScaleInterval Duration `yaml:"scale_interval" json:"scale_interval"`
}

// DefaultConfig returns the development defaults every load starts from.
func DefaultConfig() *Config {
	return &Config{
		Environment: Development,
		Server: Server{
			Port:            8080,
			ReadTimeout:     Duration(15 * time.Second),
			WriteTimeout:    Duration(15 * time.Second),
			ShutdownTimeout: Duration(30 * time.Second),
		},
		AWS: AWS{Region: "us-east-1"},
		DynamoDB: DynamoDB{
			TableName: "syncdal-records",
			IndexName: "owner-index",
		},
		Supabase:  Supabase{Table: "records"},
		FileStore: FileStore{Dir: "./data"},
		DAL: DAL{
			CallTimeout:   Duration(5 * time.Second),
			WrapWithCache: true,
			Cache: CacheParams{
				MaxCommitInterval: Duration(5 * time.Second),
				MaxCommitUpdates:  100,
				MinCommitUpdates:  1,
				MaxCacheSize:      10000,
				AlwaysEvict:       false,
				ClearObjectAge:    true,
			},
			Queue: QueueParams{
				Mode:             "primary-read-primary-write",
				MaxReadFailures:  3,
				MaxWriteFailures: 3,
				FailureAction:    "push-to-back",
			},
		},
		Events: Events{
			EventBusName: "syncdal-events",
			Source:       "syncdal.dal",
		},
		Notify: Notify{ConnectionsTable: "syncdal-connections"},
		Logging: Logging{
			Level:    "info",
			Encoding: "json",
		},
		Tracing: Tracing{
			Endpoint:   "localhost:4317",
			SampleRate: 1.0,
		},
		Concurrency: Concurrency{
			MinWorkers:    2,
			MaxWorkers:    16,
			QueueDepth:    256,
			IdleTimeout:   Duration(30 * time.Second),
			ScaleInterval: Duration(5 * time.Second),
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file named
// by SYNCDAL_CONFIG, and environment-variable overrides, then validates it.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	if path := os.Getenv("SYNCDAL_CONFIG"); path != "" {
		if err := loadFile(cfg, path); err != nil {
			return nil, fmt.Errorf("config: loading %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration against its struct tags plus the
// cross-field rules validator tags cannot express.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("config: validation failed: %w", err)
	}
	if c.DAL.Cache.MinCommitUpdates > c.DAL.Cache.MaxCommitUpdates {
		return fmt.Errorf("config: dal.cache.min_commit_updates (%d) exceeds max_commit_updates (%d)",
			c.DAL.Cache.MinCommitUpdates, c.DAL.Cache.MaxCommitUpdates)
	}
	if c.Concurrency.MinWorkers > c.Concurrency.MaxWorkers {
		return fmt.Errorf("config: concurrency.min_workers (%d) exceeds max_workers (%d)",
			c.Concurrency.MinWorkers, c.Concurrency.MaxWorkers)
	}
	if c.Environment == Production && c.Logging.Level == "debug" {
		return fmt.Errorf("config: debug logging is not permitted in production")
	}
	return nil
}

// IsDevelopment reports whether the environment is development.
func (c *Config) IsDevelopment() bool { return c.Environment == Development }

// IsProduction reports whether the environment is production.
func (c *Config) IsProduction() bool { return c.Environment == Production }

// applyEnvOverrides layers SYNCDAL_* environment variables over cfg.
// Environment variables win over file values, file values over defaults.
func applyEnvOverrides(cfg *Config) {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setBool := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				*dst = b
			}
		}
	}
	setInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	setDuration := func(key string, dst *Duration) {
		if v := os.Getenv(key); v != "" {
			if d, err := time.ParseDuration(v); err == nil {
				*dst = Duration(d)
			}
		}
	}

	if v := os.Getenv("SYNCDAL_ENVIRONMENT"); v != "" {
		cfg.Environment = Environment(strings.ToLower(v))
	}
	setInt("SYNCDAL_SERVER_PORT", &cfg.Server.Port)
	setString("AWS_REGION", &cfg.AWS.Region)
	setString("SYNCDAL_AWS_ENDPOINT", &cfg.AWS.Endpoint)
	setBool("SYNCDAL_DYNAMODB_ENABLED", &cfg.DynamoDB.Enabled)
	setString("SYNCDAL_DYNAMODB_TABLE", &cfg.DynamoDB.TableName)
	setString("SYNCDAL_DYNAMODB_INDEX", &cfg.DynamoDB.IndexName)
	setBool("SYNCDAL_SUPABASE_ENABLED", &cfg.Supabase.Enabled)
	setString("SYNCDAL_SUPABASE_URL", &cfg.Supabase.URL)
	setString("SYNCDAL_SUPABASE_KEY", &cfg.Supabase.Key)
	setString("SYNCDAL_SUPABASE_TABLE", &cfg.Supabase.Table)
	setBool("SYNCDAL_FILESTORE_ENABLED", &cfg.FileStore.Enabled)
	setString("SYNCDAL_FILESTORE_DIR", &cfg.FileStore.Dir)
	setDuration("SYNCDAL_CALL_TIMEOUT", &cfg.DAL.CallTimeout)
	setBool("SYNCDAL_WRAP_WITH_CACHE", &cfg.DAL.WrapWithCache)
	setDuration("SYNCDAL_CACHE_MAX_COMMIT_INTERVAL", &cfg.DAL.Cache.MaxCommitInterval)
	setInt("SYNCDAL_CACHE_MAX_COMMIT_UPDATES", &cfg.DAL.Cache.MaxCommitUpdates)
	setInt("SYNCDAL_CACHE_MIN_COMMIT_UPDATES", &cfg.DAL.Cache.MinCommitUpdates)
	setInt("SYNCDAL_CACHE_MAX_CACHE_SIZE", &cfg.DAL.Cache.MaxCacheSize)
	setBool("SYNCDAL_CACHE_ALWAYS_EVICT", &cfg.DAL.Cache.AlwaysEvict)
	setString("SYNCDAL_QUEUE_MODE", &cfg.DAL.Queue.Mode)
	setInt("SYNCDAL_QUEUE_MAX_READ_FAILURES", &cfg.DAL.Queue.MaxReadFailures)
	setInt("SYNCDAL_QUEUE_MAX_WRITE_FAILURES", &cfg.DAL.Queue.MaxWriteFailures)
	setString("SYNCDAL_QUEUE_FAILURE_ACTION", &cfg.DAL.Queue.FailureAction)
	setBool("SYNCDAL_EVENTS_ENABLED", &cfg.Events.Enabled)
	setString("SYNCDAL_EVENTS_BUS_NAME", &cfg.Events.EventBusName)
	setBool("SYNCDAL_NOTIFY_ENABLED", &cfg.Notify.Enabled)
	setString("SYNCDAL_NOTIFY_GATEWAY_ENDPOINT", &cfg.Notify.GatewayEndpoint)
	setString("SYNCDAL_NOTIFY_CONNECTIONS_TABLE", &cfg.Notify.ConnectionsTable)
	setString("SYNCDAL_LOG_LEVEL", &cfg.Logging.Level)
	setString("SYNCDAL_LOG_ENCODING", &cfg.Logging.Encoding)
	setBool("SYNCDAL_TRACING_ENABLED", &cfg.Tracing.Enabled)
	setString("SYNCDAL_TRACING_ENDPOINT", &cfg.Tracing.Endpoint)
}
