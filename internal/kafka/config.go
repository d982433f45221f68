// Package kafka publishes exported rows and rejected records to Kafka topics.
package kafka

import (
	"context"
	"crypto/tls"
	"fmt"
	"strconv"
	"strings"

	"github.com/IBM/sarama"
	"github.com/aws/aws-msk-iam-sasl-signer-go/signer"

	apperrors "github.com/jittakal/evexport/internal/errors"
)

// Config contains Kafka producer configuration.
type Config struct {
	BootstrapServers      []string
	ClientID              string
	SecurityProtocol      string
	SASLMechanism         string
	SASLUsername          string
	SASLPassword          string
	AWSRegion             string
	Compression           string
	TLSInsecureSkipVerify bool
	MaxMessageBytes       int
}

// Validate checks required settings.
func (c Config) Validate() error {
	if len(c.BootstrapServers) == 0 {
		return &apperrors.ConfigError{Key: "kafka.bootstrap_servers", Reason: "at least one broker is required"}
	}
	for _, b := range c.BootstrapServers {
		if strings.TrimSpace(b) == "" {
			return &apperrors.ConfigError{Key: "kafka.bootstrap_servers", Reason: "empty broker address"}
		}
	}
	if c.MaxMessageBytes < 0 {
		return &apperrors.ConfigError{Key: "kafka.max_message_bytes", Reason: "must not be negative"}
	}
	return nil
}

// MetricsCollector defines the metrics the Kafka sinks report.
type MetricsCollector interface {
	ObserveStorageWriteDuration(backend string, duration float64)
	IncStorageErrors(backend string, operation string)
}

type nopMetrics struct{}

func (nopMetrics) ObserveStorageWriteDuration(string, float64) {}
func (nopMetrics) IncStorageErrors(string, string) {}

// NewProducerConfig builds an idempotent, acks=all producer configuration.
func NewProducerConfig(cfg Config) (*sarama.Config, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V2_8_0_0
	if cfg.ClientID != "" {
		saramaConfig.ClientID = cfg.ClientID
	}
	saramaConfig.Producer.RequiredAcks = sarama.WaitForAll
	saramaConfig.Producer.Retry.Max = 5
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Return.Errors = true
	saramaConfig.Producer.Idempotent = true
	saramaConfig.Net.MaxOpenRequests = 1
	if cfg.MaxMessageBytes > 0 {
		saramaConfig.Producer.MaxMessageBytes = cfg.MaxMessageBytes
	}

	codec, err := compressionCodec(cfg.Compression)
	if err != nil {
		return nil, err
	}
	saramaConfig.Producer.Compression = codec

	if err := configureSecurity(saramaConfig, cfg); err != nil {
		return nil, fmt.Errorf("failed to configure security: %w", err)
	}

	if err := saramaConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid producer configuration: %w", err)
	}
	return saramaConfig, nil
}

// NewSyncProducer connects a synchronous producer to the configured brokers.
func NewSyncProducer(cfg Config) (sarama.SyncProducer, error) {
	saramaConfig, err := NewProducerConfig(cfg)
	if err != nil {
		return nil, err
	}
	producer, err := sarama.NewSyncProducer(cfg.BootstrapServers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create sync producer: %w", err)
	}
	return producer, nil
}

func compressionCodec(name string) (sarama.CompressionCodec, error) {
	switch strings.ToLower(name) {
	case "", "snappy":
		return sarama.CompressionSnappy, nil
	case "none":
		return sarama.CompressionNone, nil
	case "gzip":
		return sarama.CompressionGZIP, nil
	case "lz4":
		return sarama.CompressionLZ4, nil
	case "zstd":
		return sarama.CompressionZSTD, nil
	default:
		return sarama.CompressionNone, &apperrors.ConfigError{Key: "kafka.compression", Reason: "unsupported codec " + name}
	}
}

// MSKAccessTokenProvider implements sarama.AccessTokenProvider for AWS MSK IAM authentication.
type MSKAccessTokenProvider struct {
	region string
}

// Token generates an AWS MSK IAM authentication token.
func (m *MSKAccessTokenProvider) Token() (*sarama.AccessToken, error) {
	// credentials come from the default AWS chain
	token, expiryMs, err := signer.GenerateAuthToken(context.Background(), m.region)
	if err != nil {
		return nil, fmt.Errorf("failed to generate MSK IAM token: %w", err)
	}

	return &sarama.AccessToken{
		Token: token,
		Extensions: map[string]string{
			"expiry": strconv.FormatInt(expiryMs, 10),
		},
	}, nil
}

func configureSecurity(config *sarama.Config, cfg Config) error {
	switch cfg.SecurityProtocol {
	case "", "PLAINTEXT":
		return nil

	case "SASL_PLAINTEXT", "SASL_SSL":
		config.Net.SASL.Enable = true

		switch cfg.SASLMechanism {
		case "PLAIN":
			config.Net.SASL.Mechanism = sarama.SASLTypePlaintext
			config.Net.SASL.User = cfg.SASLUsername
			config.Net.SASL.Password = cfg.SASLPassword

		case "SCRAM-SHA-256", "SCRAM-SHA-512":
			mechanism, generator, _ := scramClientGenerator(cfg.SASLMechanism)
			config.Net.SASL.Mechanism = mechanism
			config.Net.SASL.User = cfg.SASLUsername
			config.Net.SASL.Password = cfg.SASLPassword
			config.Net.SASL.SCRAMClientGeneratorFunc = generator

		case "AWS_MSK_IAM":
			if cfg.AWSRegion == "" {
				return &apperrors.ConfigError{Key: "kafka.aws_region", Reason: "required for AWS_MSK_IAM"}
			}
			config.Net.SASL.Mechanism = sarama.SASLTypeOAuth
			config.Net.SASL.TokenProvider = &MSKAccessTokenProvider{region: cfg.AWSRegion}

		default:
			return fmt.Errorf("unsupported SASL mechanism: %s", cfg.SASLMechanism)
		}

		if cfg.SecurityProtocol == "SASL_SSL" {
			enableTLS(config, cfg)
		}

	case "SSL":
		enableTLS(config, cfg)

	default:
		return fmt.Errorf("unsupported security protocol: %s", cfg.SecurityProtocol)
	}

	return nil
}

func enableTLS(config *sarama.Config, cfg Config) {
	config.Net.TLS.Enable = true
	config.Net.TLS.Config = &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: cfg.TLSInsecureSkipVerify,
	}
}
