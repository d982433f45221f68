package kafka

import (
	"testing"

	"github.com/IBM/sarama"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{name: "valid", config: Config{BootstrapServers: []string{"localhost:9092"}}},
		{name: "no brokers", config: Config{}, wantErr: true},
		{name: "blank broker", config: Config{BootstrapServers: []string{"a:9092", " "}}, wantErr: true},
		{name: "negative max message bytes", config: Config{BootstrapServers: []string{"a:9092"}, MaxMessageBytes: -1}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewProducerConfig_Security(t *testing.T) {
	brokers := []string{"localhost:9092"}

	tests := []struct {
		name          string
		config        Config
		wantErr       bool
		wantSASL      bool
		wantMechanism sarama.SASLMechanism
		wantTLS       bool
	}{
		{
			name:   "plaintext default",
			config: Config{BootstrapServers: brokers},
		},
		{
			name:   "explicit plaintext",
			config: Config{BootstrapServers: brokers, SecurityProtocol: "PLAINTEXT"},
		},
		{
			name:    "ssl",
			config:  Config{BootstrapServers: brokers, SecurityProtocol: "SSL"},
			wantTLS: true,
		},
		{
			name: "sasl plain",
			config: Config{
				BootstrapServers: brokers,
				SecurityProtocol: "SASL_PLAINTEXT",
				SASLMechanism:    "PLAIN",
				SASLUsername:     "user",
				SASLPassword:     "pass",
			},
			wantSASL:      true,
			wantMechanism: sarama.SASLTypePlaintext,
		},
		{
			name: "scram sha 256 over ssl",
			config: Config{
				BootstrapServers: brokers,
				SecurityProtocol: "SASL_SSL",
				SASLMechanism:    "SCRAM-SHA-256",
				SASLUsername:     "user",
				SASLPassword:     "pass",
			},
			wantSASL:      true,
			wantMechanism: sarama.SASLTypeSCRAMSHA256,
			wantTLS:       true,
		},
		{
			name: "scram sha 512",
			config: Config{
				BootstrapServers: brokers,
				SecurityProtocol: "SASL_PLAINTEXT",
				SASLMechanism:    "SCRAM-SHA-512",
				SASLUsername:     "user",
				SASLPassword:     "pass",
			},
			wantSASL:      true,
			wantMechanism: sarama.SASLTypeSCRAMSHA512,
		},
		{
			name: "msk iam",
			config: Config{
				BootstrapServers: brokers,
				SecurityProtocol: "SASL_SSL",
				SASLMechanism:    "AWS_MSK_IAM",
				AWSRegion:        "eu-west-1",
			},
			wantSASL:      true,
			wantMechanism: sarama.SASLTypeOAuth,
			wantTLS:       true,
		},
		{
			name: "msk iam without region",
			config: Config{
				BootstrapServers: brokers,
				SecurityProtocol: "SASL_SSL",
				SASLMechanism:    "AWS_MSK_IAM",
			},
			wantErr: true,
		},
		{
			name: "scram without credentials",
			config: Config{
				BootstrapServers: brokers,
				SecurityProtocol: "SASL_PLAINTEXT",
				SASLMechanism:    "SCRAM-SHA-256",
			},
			wantErr: true,
		},
		{
			name:    "unknown mechanism",
			config:  Config{BootstrapServers: brokers, SecurityProtocol: "SASL_SSL", SASLMechanism: "GSSAPI"},
			wantErr: true,
		},
		{
			name:    "unknown protocol",
			config:  Config{BootstrapServers: brokers, SecurityProtocol: "TLS"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := NewProducerConfig(tt.config)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewProducerConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}

			if cfg.Net.SASL.Enable != tt.wantSASL {
				t.Errorf("SASL.Enable = %v, want %v", cfg.Net.SASL.Enable, tt.wantSASL)
			}
			if tt.wantSASL && cfg.Net.SASL.Mechanism != tt.wantMechanism {
				t.Errorf("SASL.Mechanism = %v, want %v", cfg.Net.SASL.Mechanism, tt.wantMechanism)
			}
			if cfg.Net.TLS.Enable != tt.wantTLS {
				t.Errorf("TLS.Enable = %v, want %v", cfg.Net.TLS.Enable, tt.wantTLS)
			}
			if !cfg.Producer.Idempotent || cfg.Producer.RequiredAcks != sarama.WaitForAll {
				t.Error("producer should be idempotent with acks=all")
			}
		})
	}
}

func TestNewProducerConfig_Options(t *testing.T) {
	cfg, err := NewProducerConfig(Config{
		BootstrapServers: []string{"localhost:9092"},
		ClientID:         "evexport-test",
		Compression:      "zstd",
		MaxMessageBytes:  2 << 20,
	})
	if err != nil {
		t.Fatalf("NewProducerConfig() error = %v", err)
	}
	if cfg.ClientID != "evexport-test" {
		t.Errorf("ClientID = %v", cfg.ClientID)
	}
	if cfg.Producer.Compression != sarama.CompressionZSTD {
		t.Errorf("Compression = %v, want zstd", cfg.Producer.Compression)
	}
	if cfg.Producer.MaxMessageBytes != 2<<20 {
		t.Errorf("MaxMessageBytes = %v", cfg.Producer.MaxMessageBytes)
	}
}

func TestCompressionCodec(t *testing.T) {
	tests := []struct {
		name    string
		want    sarama.CompressionCodec
		wantErr bool
	}{
		{"", sarama.CompressionSnappy, false},
		{"snappy", sarama.CompressionSnappy, false},
		{"NONE", sarama.CompressionNone, false},
		{"gzip", sarama.CompressionGZIP, false},
		{"lz4", sarama.CompressionLZ4, false},
		{"zstd", sarama.CompressionZSTD, false},
		{"brotli", sarama.CompressionNone, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := compressionCodec(tt.name)
			if (err != nil) != tt.wantErr {
				t.Fatalf("compressionCodec() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("compressionCodec() = %v, want %v", got, tt.want)
			}
		})
	}
}
