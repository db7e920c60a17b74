package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/kafka"
	"github.com/Ramsey-B/clover/pkg/redis"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

type Config struct {
	AppName            string `env:"APP_NAME" envDefault:"clover"`
	LogLevel           string `env:"LOG_LEVEL" envDefault:"info"`
	PrettyLogs         bool   `env:"PRETTY_LOGS" envDefault:"false"`
	StartupMaxAttempts int    `env:"STARTUP_MAX_ATTEMPTS" envDefault:"5"`
	MetricsAddr        string `env:"METRICS_ADDR" envDefault:":9090"`

	// Database. DB_PATH selects an SQLite file when DB_DRIVER is sqlite.
	DatabaseDriver              string        `env:"DB_DRIVER" envDefault:"postgres"`
	DatabaseHost                string        `env:"DB_HOST" envDefault:"localhost"`
	DatabasePort                string        `env:"DB_PORT" envDefault:"5432"`
	DatabaseUserName            string        `env:"DB_USER_NAME" envDefault:""`
	DatabasePassword            string        `env:"DB_PASSWORD" envDefault:""`
	DatabaseName                string        `env:"DB_NAME" envDefault:"clover"`
	DatabaseSSLMode             string        `env:"DB_SSL_MODE" envDefault:"disable"`
	DatabasePath                string        `env:"DB_PATH" envDefault:"clover.db"`
	DatabaseMaxOpenConns        int           `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	DatabaseMaxIdleConns        int           `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	DatabaseConnMaxLifetime     time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"10m"`
	DatabaseMigrationFolderPath string        `env:"DB_MIGRATION_FOLDER_PATH" envDefault:"db/pg"`
	DatabaseMigrationVersion    uint          `env:"DB_MIGRATION_VERSION" envDefault:"0"`
	DatabaseMigrationForce      int           `env:"DB_MIGRATION_FORCE" envDefault:"0"`

	// Redis (job locks and checkpoints)
	RedisEnabled  bool          `env:"REDIS_ENABLED" envDefault:"true"`
	RedisHost     string        `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     int           `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string        `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int           `env:"REDIS_DB" envDefault:"0"`
	LockTTL       time.Duration `env:"DEDUPLICATION_LOCK_TTL" envDefault:"5m"`
	CheckpointTTL time.Duration `env:"DEDUPLICATION_CHECKPOINT_TTL" envDefault:"24h"`

	// Kafka
	KafkaEnabled       bool          `env:"KAFKA_ENABLED" envDefault:"true"`
	KafkaBrokers       []string      `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	KafkaRequestTopic  string        `env:"KAFKA_REQUEST_TOPIC" envDefault:"deduplication-requests"`
	KafkaConsumerGroup string        `env:"KAFKA_CONSUMER_GROUP" envDefault:"clover-worker"`
	KafkaEventsTopic   string        `env:"KAFKA_EVENTS_TOPIC" envDefault:"deduplication-events"`
	KafkaBatchSize     int           `env:"KAFKA_BATCH_SIZE" envDefault:"100"`
	KafkaBatchTimeout  time.Duration `env:"KAFKA_BATCH_TIMEOUT" envDefault:"100ms"`
	KafkaRequiredAcks  int           `env:"KAFKA_REQUIRED_ACKS" envDefault:"1"`
	KafkaCompression   string        `env:"KAFKA_COMPRESSION" envDefault:"snappy"`

	// Processing
	MatchingConfigPath string `env:"MATCHING_CONFIG_PATH" envDefault:""`
	Workers            int    `env:"DEDUPLICATION_WORKERS" envDefault:"4"`
	CheckpointEvery    int    `env:"DEDUPLICATION_CHECKPOINT_EVERY" envDefault:"500"`

	// Tracing
	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:""`
	OTLPInsecure bool   `env:"OTEL_EXPORTER_OTLP_INSECURE" envDefault:"true"`
}

// Load reads a .env file when present and parses the environment.
func Load(files ...string) (Config, error) {
	// a missing .env file is not an error
	_ = godotenv.Load(files...)

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// DatabaseDSN builds the connection string for the configured driver.
func (c Config) DatabaseDSN() string {
	if c.DatabaseDriver == database.DriverSQLite {
		return c.DatabasePath
	}
	u := url.URL{
		Scheme:   "postgres",
		Host:     net.JoinHostPort(c.DatabaseHost, c.DatabasePort),
		Path:     "/" + c.DatabaseName,
		RawQuery: url.Values{"sslmode": []string{c.DatabaseSSLMode}}.Encode(),
	}
	if c.DatabaseUserName != "" {
		u.User = url.UserPassword(c.DatabaseUserName, c.DatabasePassword)
	}
	return u.String()
}

func (c Config) Database() database.Config {
	return database.Config{
		Driver:          c.DatabaseDriver,
		DSN:             c.DatabaseDSN(),
		MaxOpenConns:    c.DatabaseMaxOpenConns,
		MaxIdleConns:    c.DatabaseMaxIdleConns,
		ConnMaxLifetime: c.DatabaseConnMaxLifetime,
	}
}

func (c Config) Migration() *database.MigrationConfig {
	return &database.MigrationConfig{
		MigrationFolderPath: c.DatabaseMigrationFolderPath,
		Version:             c.DatabaseMigrationVersion,
		Force:               c.DatabaseMigrationForce,
	}
}

func (c Config) Redis() redis.Config {
	return redis.Config{
		Host:     c.RedisHost,
		Port:     c.RedisPort,
		Password: c.RedisPassword,
		DB:       c.RedisDB,
	}
}

func (c Config) KafkaConsumer() kafka.ConsumerConfig {
	return kafka.ConsumerConfig{
		Brokers:       c.KafkaBrokers,
		Topic:         c.KafkaRequestTopic,
		ConsumerGroup: c.KafkaConsumerGroup,
	}
}

// KafkaProducer returns the producer settings for topic.
func (c Config) KafkaProducer(topic string) kafka.ProducerConfig {
	return kafka.ProducerConfig{
		Brokers:      c.KafkaBrokers,
		Topic:        topic,
		BatchSize:    c.KafkaBatchSize,
		BatchTimeout: c.KafkaBatchTimeout,
		RequiredAcks: c.KafkaRequiredAcks,
		Compression:  c.KafkaCompression,
	}
}

func (c Config) Tracing() tracing.Config {
	return tracing.Config{
		ServiceName: c.AppName,
		Endpoint:    c.OTLPEndpoint,
		Insecure:    c.OTLPInsecure,
		Timeout:     10 * time.Second,
	}
}

// RedisAddr is host:port of the Redis server.
func (c Config) RedisAddr() string {
	return net.JoinHostPort(c.RedisHost, strconv.Itoa(c.RedisPort))
}
