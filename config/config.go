package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Fareflow    FareflowConfig    `yaml:"fareflow"`
	Collector   CollectorConfig   `yaml:"collector"`
	Logging     LoggingConfig     `yaml:"logging"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Diagnostics DiagnosticsConfig `yaml:"diagnostics"`
	Storage     StorageConfig     `yaml:"storage"`
}

type FareflowConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type CollectorConfig struct {
	MaxWorkers             int             `yaml:"max_workers"`
	SkipFareByRuleForLocal bool            `yaml:"skip_fare_by_rule_for_local"`
	AmountDecimals         int32           `yaml:"amount_decimals"`
	RemoveIdenticalFares   bool            `yaml:"remove_identical_fares"`
	Timeout                time.Duration   `yaml:"timeout"`
	FinderRateLimit        RateLimitConfig `yaml:"finder_rate_limit"`
}

type RateLimitConfig struct {
	RequestsPerSecond int `yaml:"requests_per_second"`
	BurstSize         int `yaml:"burst_size"`
}

type LoggingConfig struct {
	Level      string           `yaml:"level"`
	Format     string           `yaml:"format"`
	Output     string           `yaml:"output"`
	MaxAge     int              `yaml:"max_age"`
	CloudWatch CloudWatchConfig `yaml:"cloudwatch"`
}

type CloudWatchConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Region    string `yaml:"region"`
	Namespace string `yaml:"namespace"`
	Dashboard string `yaml:"dashboard"`
}

type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
	Listen    string `yaml:"listen"`
}

type DiagnosticsConfig struct {
	Listen string `yaml:"listen"`
	Buffer int    `yaml:"buffer"`
}

type StorageConfig struct {
	S3       S3Config       `yaml:"s3"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Database DatabaseConfig `yaml:"database"`
}

type S3Config struct {
	Enabled         bool   `yaml:"enabled"`
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	PathStyle       bool   `yaml:"path_style"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Prefix          string `yaml:"prefix"`
	Compression     string `yaml:"compression"`
}

type KafkaConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type DatabaseConfig struct {
	Enabled bool   `yaml:"enabled"`
	DSN     string `yaml:"dsn"`
}

// Default returns the configuration used before a file is applied.
func Default() Config {
	return Config{
		Collector: CollectorConfig{
			MaxWorkers:     4,
			AmountDecimals: 2,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Metrics: MetricsConfig{
			Namespace: "fareflow",
			Listen:    ":2112",
		},
		Diagnostics: DiagnosticsConfig{
			Buffer: 256,
		},
		Storage: StorageConfig{
			S3: S3Config{
				Compression: "snappy",
			},
			Kafka: KafkaConfig{
				Topic: "fareflow.fare-markets",
			},
		},
	}
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := applyEnv(&config); err != nil {
		return nil, err
	}

	config.Storage.S3.Bucket = strings.TrimSpace(config.Storage.S3.Bucket)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

func applyEnv(config *Config) error {
	if v := os.Getenv("FAREFLOW_MAX_WORKERS"); v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid FAREFLOW_MAX_WORKERS %q: %w", v, err)
		}
		config.Collector.MaxWorkers = n
	}

	if config.Storage.S3.Enabled {
		if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" {
			config.Storage.S3.AccessKeyID = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" {
			config.Storage.S3.SecretAccessKey = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_REGION"); v != "" {
			config.Storage.S3.Region = strings.TrimSpace(v)
		}
		if v := os.Getenv("S3_BUCKET"); v != "" {
			config.Storage.S3.Bucket = strings.TrimSpace(v)
		}
	}

	if v := os.Getenv("KAFKA_BROKERS"); v != "" && config.Storage.Kafka.Enabled {
		var brokers []string
		for _, b := range strings.Split(v, ",") {
			if b = strings.TrimSpace(b); b != "" {
				brokers = append(brokers, b)
			}
		}
		config.Storage.Kafka.Brokers = brokers
	}

	if v := os.Getenv("DATABASE_URL"); v != "" && config.Storage.Database.Enabled {
		config.Storage.Database.DSN = strings.TrimSpace(v)
	}
	return nil
}

func validateConfig(cfg *Config) error {
	if cfg.Fareflow.Name == "" {
		return fmt.Errorf("fareflow.name is required")
	}

	if cfg.Fareflow.Version == "" {
		return fmt.Errorf("fareflow.version is required")
	}

	if cfg.Collector.MaxWorkers <= 0 {
		return fmt.Errorf("collector.max_workers must be greater than 0")
	}
	if cfg.Collector.AmountDecimals < 0 || cfg.Collector.AmountDecimals > 4 {
		return fmt.Errorf("collector.amount_decimals must be between 0 and 4")
	}
	if cfg.Collector.Timeout < 0 {
		return fmt.Errorf("collector.timeout must not be negative")
	}
	if cfg.Collector.FinderRateLimit.RequestsPerSecond < 0 {
		return fmt.Errorf("collector.finder_rate_limit.requests_per_second must not be negative")
	}

	if cfg.Storage.S3.Enabled {
		if cfg.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required when S3 is enabled")
		}
		if cfg.Storage.S3.Region == "" {
			return fmt.Errorf("storage.s3.region is required when S3 is enabled")
		}
		if (cfg.Storage.S3.AccessKeyID == "") != (cfg.Storage.S3.SecretAccessKey == "") {
			return fmt.Errorf("storage.s3.access_key_id and storage.s3.secret_access_key must be set together")
		}
		if !isValidS3Bucket(cfg.Storage.S3.Bucket) {
			return fmt.Errorf("storage.s3.bucket '%s' is invalid", cfg.Storage.S3.Bucket)
		}
		switch cfg.Storage.S3.Compression {
		case "", "snappy", "gzip", "none":
		default:
			return fmt.Errorf("storage.s3.compression '%s' is not supported", cfg.Storage.S3.Compression)
		}
	}

	if cfg.Storage.Kafka.Enabled {
		if len(cfg.Storage.Kafka.Brokers) == 0 {
			return fmt.Errorf("storage.kafka.brokers is required when Kafka is enabled")
		}
		if cfg.Storage.Kafka.Topic == "" {
			return fmt.Errorf("storage.kafka.topic is required when Kafka is enabled")
		}
	}

	if cfg.Storage.Database.Enabled && cfg.Storage.Database.DSN == "" {
		return fmt.Errorf("storage.database.dsn is required when the database is enabled")
	}

	return nil
}

var s3BucketRegexp = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)

func isValidS3Bucket(name string) bool {
	if len(name) < 3 || len(name) > 63 {
		return false
	}
	if strings.Contains(name, "..") || strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") {
		return false
	}
	return s3BucketRegexp.MatchString(name)
}
