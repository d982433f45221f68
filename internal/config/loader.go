// Package config loads export configuration from a YAML file, EVEX_
// environment variables and command-line overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/jittakal/evexport/internal/config/dto"
	apperrors "github.com/jittakal/evexport/internal/errors"
)

// EnvPrefix is prepended to environment variable names: source.chunk_size
// is read from EVEX_SOURCE_CHUNK_SIZE.
const EnvPrefix = "EVEX"

// Loader handles configuration loading and validation
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return NewLoaderWithFs(afero.NewOsFs())
}

// NewLoaderWithFs creates a loader that reads config files from fs.
func NewLoaderWithFs(fs afero.Fs) *Loader {
	v := viper.New()
	v.SetFs(fs)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return &Loader{v: v}
}

// Set overrides a key. Overrides take precedence over environment
// variables, the config file and defaults.
func (l *Loader) Set(key string, value any) {
	l.v.Set(key, value)
}

// Load loads configuration from file and environment variables
func (l *Loader) Load(path string) (*dto.ApplicationConfig, error) {
	l.setDefaults()

	if path != "" {
		l.v.SetConfigFile(path)
		if err := l.v.ReadInConfig(); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("%w: %s", apperrors.ErrFileNotFound, path)
			}
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Expand ${VAR} references so secrets can stay out of the file
	for _, key := range l.v.AllKeys() {
		value := l.v.GetString(key)
		if strings.Contains(value, "${") {
			l.v.Set(key, os.ExpandEnv(value))
		}
	}

	var config dto.ApplicationConfig
	if err := l.v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := l.Validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values. Every key gets a default,
// even an empty one, so that AutomaticEnv can resolve it during Unmarshal.
func (l *Loader) setDefaults() {
	l.v.SetDefault("application.name", "evexport")

	l.v.SetDefault("source.path", "")
	l.v.SetDefault("source.chunk_size", 1024*1024)
	l.v.SetDefault("source.header_size", 16)
	l.v.SetDefault("source.skip_header", false)
	l.v.SetDefault("source.reader", "buffered")
	l.v.SetDefault("source.max_failures_retained", 1000)
	l.v.SetDefault("source.alternate_format", "none")

	l.v.SetDefault("export.output", "")
	l.v.SetDefault("export.batch_size", 10000)
	l.v.SetDefault("export.format", "csv")
	l.v.SetDefault("export.compression", "")
	l.v.SetDefault("export.columns", []string{})
	l.v.SetDefault("export.overflow_column", "")
	l.v.SetDefault("export.rejects", "")

	l.v.SetDefault("storage.s3.region", "")
	l.v.SetDefault("storage.s3.endpoint", "")
	l.v.SetDefault("storage.s3.use_path_style", false)
	l.v.SetDefault("storage.s3.sse_enabled", true)
	l.v.SetDefault("storage.s3.sse_kms_key_id", "")
	l.v.SetDefault("storage.gcs.project_id", "")
	l.v.SetDefault("storage.gcs.credentials_file", "")
	l.v.SetDefault("storage.gcs.credentials_json", "")
	l.v.SetDefault("storage.gcs.endpoint", "")
	l.v.SetDefault("storage.gcs.use_default_credential", true)
	l.v.SetDefault("storage.azure.account_name", "")
	l.v.SetDefault("storage.azure.account_key", "")
	l.v.SetDefault("storage.azure.endpoint", "")

	l.v.SetDefault("kafka.security_protocol", "PLAINTEXT")
	l.v.SetDefault("kafka.sasl_mechanism", "PLAIN")
	l.v.SetDefault("kafka.sasl_username", "")
	l.v.SetDefault("kafka.sasl_password", "")
	l.v.SetDefault("kafka.aws_region", "")
	l.v.SetDefault("kafka.compression", "snappy")
	l.v.SetDefault("kafka.tls_insecure_skip_verify", false)
	l.v.SetDefault("kafka.max_message_bytes", 1000000)

	l.v.SetDefault("postgres.table", "eve_events")

	l.v.SetDefault("observability.logging.level", "info")
	l.v.SetDefault("observability.logging.format", "json")
	l.v.SetDefault("observability.logging.output", "stderr")
	l.v.SetDefault("observability.metrics.enabled", false)
	l.v.SetDefault("observability.metrics.port", 9090)
	l.v.SetDefault("observability.health.port", 8080)
	l.v.SetDefault("observability.progress.interval_bytes", 64<<20)
}

// Validate validates the configuration
func (l *Loader) Validate(config *dto.ApplicationConfig) error {
	return config.Validate()
}
