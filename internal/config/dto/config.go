package dto

import (
	"fmt"
	"slices"
	"strings"
)

// ApplicationConfig is the root configuration structure
type ApplicationConfig struct {
	Application   ApplicationInfo     `mapstructure:"application"`
	Source        SourceConfig        `mapstructure:"source"`
	Export        ExportConfig        `mapstructure:"export"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// ApplicationInfo contains application metadata
type ApplicationInfo struct {
	Name string `mapstructure:"name"`
}

// SourceConfig describes the input event log
type SourceConfig struct {
	Path                string `mapstructure:"path"`
	ChunkSize           int    `mapstructure:"chunk_size"`
	HeaderSize          int    `mapstructure:"header_size"`
	SkipHeader          bool   `mapstructure:"skip_header"`
	Reader              string `mapstructure:"reader"`
	MaxFailuresRetained int    `mapstructure:"max_failures_retained"`
	AlternateFormat     string `mapstructure:"alternate_format"`
}

// ExportConfig describes the tabular output
type ExportConfig struct {
	Output         string   `mapstructure:"output"`
	BatchSize      int      `mapstructure:"batch_size"`
	Format         string   `mapstructure:"format"`
	Compression    string   `mapstructure:"compression"`
	Columns        []string `mapstructure:"columns"`
	OverflowColumn string   `mapstructure:"overflow_column"`
	Rejects        string   `mapstructure:"rejects"`
}

// StorageConfig contains object store credentials and options
type StorageConfig struct {
	S3    S3Config    `mapstructure:"s3"`
	Azure AzureConfig `mapstructure:"azure"`
	GCS   GCSConfig   `mapstructure:"gcs"`
}

// S3Config contains AWS S3 configuration
type S3Config struct {
	Region       string `mapstructure:"region"`
	Endpoint     string `mapstructure:"endpoint"`
	UsePathStyle bool   `mapstructure:"use_path_style"`
	SSEEnabled   bool   `mapstructure:"sse_enabled"`
	SSEKMSKeyID  string `mapstructure:"sse_kms_key_id"`
}

// AzureConfig contains Azure Blob Storage configuration
type AzureConfig struct {
	AccountName string `mapstructure:"account_name"`
	AccountKey  string `mapstructure:"account_key"`
	Endpoint    string `mapstructure:"endpoint"`
}

// GCSConfig contains Google Cloud Storage configuration
type GCSConfig struct {
	ProjectID            string `mapstructure:"project_id"`
	CredentialsFile      string `mapstructure:"credentials_file"`
	CredentialsJSON      string `mapstructure:"credentials_json"`
	Endpoint             string `mapstructure:"endpoint"`
	UseDefaultCredential bool   `mapstructure:"use_default_credential"`
}

// KafkaConfig contains client settings for kafka:// sinks and reject topics
type KafkaConfig struct {
	SecurityProtocol      string `mapstructure:"security_protocol"`
	SASLMechanism         string `mapstructure:"sasl_mechanism"`
	SASLUsername          string `mapstructure:"sasl_username"`
	SASLPassword          string `mapstructure:"sasl_password"`
	AWSRegion             string `mapstructure:"aws_region"`
	Compression           string `mapstructure:"compression"`
	TLSInsecureSkipVerify bool   `mapstructure:"tls_insecure_skip_verify"`
	MaxMessageBytes       int    `mapstructure:"max_message_bytes"`
}

// PostgresConfig contains settings for postgres:// sinks
type PostgresConfig struct {
	Table string `mapstructure:"table"`
}

// ObservabilityConfig contains observability settings
type ObservabilityConfig struct {
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Health   HealthConfig   `mapstructure:"health"`
	Progress ProgressConfig `mapstructure:"progress"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// MetricsConfig contains metrics settings
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// HealthConfig contains health check settings
type HealthConfig struct {
	Port int `mapstructure:"port"`
}

// ProgressConfig contains progress reporting settings
type ProgressConfig struct {
	IntervalBytes int64 `mapstructure:"interval_bytes"`
}

var (
	readerModes      = []string{"buffered", "mmap"}
	alternateFormats = []string{"none", "keyvalue"}
	formats          = []string{"csv", "parquet", "avro"}
	logLevels        = []string{"debug", "info", "warn", "warning", "error"}
	logFormats       = []string{"json", "text"}
	logOutputs       = []string{"stdout", "stderr"}
)

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if c.Application.Name == "" {
		return fmt.Errorf("application.name is required")
	}
	if err := c.Source.Validate(); err != nil {
		return err
	}
	if err := c.Export.Validate(); err != nil {
		return err
	}
	if c.Postgres.Table == "" {
		return fmt.Errorf("postgres.table is required")
	}
	return c.Observability.Validate()
}

// Validate validates source configuration.
func (c *SourceConfig) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("source.path is required")
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("source.chunk_size must be positive, got %d", c.ChunkSize)
	}
	if c.HeaderSize < 0 {
		return fmt.Errorf("source.header_size must not be negative, got %d", c.HeaderSize)
	}
	if !slices.Contains(readerModes, strings.ToLower(c.Reader)) {
		return fmt.Errorf("unsupported source.reader: %s", c.Reader)
	}
	if !slices.Contains(alternateFormats, strings.ToLower(c.AlternateFormat)) {
		return fmt.Errorf("unsupported source.alternate_format: %s", c.AlternateFormat)
	}
	return nil
}

// Validate validates export configuration.
func (c *ExportConfig) Validate() error {
	if c.BatchSize <= 0 {
		return fmt.Errorf("export.batch_size must be positive, got %d", c.BatchSize)
	}
	if !slices.Contains(formats, strings.ToLower(c.Format)) {
		return fmt.Errorf("unsupported export.format: %s", c.Format)
	}
	for _, col := range c.Columns {
		if strings.TrimSpace(col) == "" {
			return fmt.Errorf("export.columns contains an empty column")
		}
	}
	return nil
}

// Validate validates observability configuration.
func (c *ObservabilityConfig) Validate() error {
	if !slices.Contains(logLevels, strings.ToLower(c.Logging.Level)) {
		return fmt.Errorf("unsupported log level: %s", c.Logging.Level)
	}
	if !slices.Contains(logFormats, strings.ToLower(c.Logging.Format)) {
		return fmt.Errorf("unsupported log format: %s", c.Logging.Format)
	}
	if !slices.Contains(logOutputs, strings.ToLower(c.Logging.Output)) {
		return fmt.Errorf("unsupported log output: %s", c.Logging.Output)
	}
	if c.Metrics.Enabled {
		if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
			return fmt.Errorf("invalid metrics port: %d", c.Metrics.Port)
		}
		if c.Health.Port < 1 || c.Health.Port > 65535 {
			return fmt.Errorf("invalid health port: %d", c.Health.Port)
		}
	}
	if c.Progress.IntervalBytes < 0 {
		return fmt.Errorf("observability.progress.interval_bytes must not be negative")
	}
	return nil
}
