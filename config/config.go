package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/genc-murat/outbox-broker/log"
	"github.com/genc-murat/outbox-broker/outbox"

	"github.com/alexflint/go-arg"
)

const (
	MySQL    DbDriver = "mysql"
	Postgres DbDriver = "postgres"

	Kafka BrokerType = "kafka"
	Nats  BrokerType = "nats"

	// MinPollFrequencyMs is the lowest polling interval the worker will
	// accept; anything lower just hammers the store for no benefit.
	MinPollFrequencyMs = 100

	defaultBatchSize        = 250
	defaultPollFrequencyMs  = 500
	defaultMaxRetryAttempts = 5
	defaultRetryBaseDelayMs = 500
	defaultCleanupAgeHours  = 1
)

type DbDriver string

type BrokerType string

var supportedDbTypes = map[DbDriver]bool{
	Postgres: true,
	MySQL:    true,
}

var supportedBrokerTypes = map[BrokerType]bool{
	Kafka: true,
	Nats:  true,
}

type Config struct {
	SkipMigrations     bool       `arg:"--skip-migrations,env:SKIP_MIGRATIONS"`
	DBHost             string     `arg:"--db-host,env:DB_HOST,required"`
	DBPort             uint32     `arg:"--db-port,env:DB_PORT,required"`
	DBUser             string     `arg:"--db-user,env:DB_USER,required"`
	DBPass             string     `arg:"--db-pass,env:DB_PASS,required"`
	DBSchema           string     `arg:"--db-schema,env:DB_SCHEMA,required"`
	DBDriver           DbDriver   `arg:"--db-driver,env:DB_DRIVER,required"`
	DBOutboxTable      string     `arg:"--db-outbox-table,env:DB_OUTBOX_TABLE,required"`
	Broker             BrokerType `arg:"--broker,env:BROKER_TYPE"`
	KafkaHost          []string   `arg:"--kafka-host,env:KAFKA_HOST"`
	KafkaDefaultTopic  string     `arg:"--kafka-default-topic,env:KAFKA_DEFAULT_TOPIC"`
	KafkaConsumerGroup string     `arg:"--kafka-consumer-group,env:KAFKA_CONSUMER_GROUP"`
	TLSEnable          bool       `arg:"--kafka-tls,env:TLS_ENABLE"`
	TLSSkipVerifyPeer  bool       `arg:"--kafka-tls-verify-peer,env:TLS_SKIP_VERIFY_PEER"`
	NatsURL            string     `arg:"--nats-url,env:NATS_URL"`
	OutboxEnabled      bool       `arg:"--outbox-enabled,env:OUTBOX_ENABLED"`
	BatchSize          int        `arg:"--batch-size,env:BATCH_SIZE"`
	PollFrequencyMs    int        `arg:"--poll-frequency-ms,env:POLL_FREQUENCY_MS"`
	MaxRetryAttempts   int        `arg:"--max-retry-attempts,env:MAX_RETRY_ATTEMPTS"`
	RetryBaseDelayMs   int        `arg:"--retry-base-delay-ms,env:RETRY_BASE_DELAY_MS"`
	RunCleanup         bool       `arg:"--cleanup,env:RUN_CLEANUP"`
	CleanupAgeHours    int        `arg:"--cleanup-age-hours,env:CLEANUP_AGE_HOURS"`
}

func NewConfig() (*Config, error) {
	c := newWithDefaults()
	arg.MustParse(c)

	if err := c.Validate(); err != nil {
		return nil, err
	}

	return c, nil
}

func newWithDefaults() *Config {
	return &Config{
		Broker:           Kafka,
		OutboxEnabled:    true,
		BatchSize:        defaultBatchSize,
		PollFrequencyMs:  defaultPollFrequencyMs,
		MaxRetryAttempts: defaultMaxRetryAttempts,
		RetryBaseDelayMs: defaultRetryBaseDelayMs,
		CleanupAgeHours:  defaultCleanupAgeHours,
	}
}

// Validate checks the configuration before any component starts, so a bad
// deployment fails immediately with a descriptive error instead of surfacing
// later inside the worker loop.
func (c *Config) Validate() error {
	if !supportedDbTypes[c.DBDriver] {
		return fmt.Errorf("the DB_DRIVER provided (%s) is not supported", c.DBDriver)
	}

	if !supportedBrokerTypes[c.Broker] {
		return fmt.Errorf("the BROKER_TYPE provided (%s) is not supported", c.Broker)
	}

	if c.Broker == Kafka && len(c.KafkaHost) == 0 {
		return fmt.Errorf("KAFKA_HOST must be set when the broker type is %s", Kafka)
	}

	if c.Broker == Nats && c.NatsURL == "" {
		return fmt.Errorf("NATS_URL must be set when the broker type is %s", Nats)
	}

	if c.BatchSize < 1 {
		return fmt.Errorf("BATCH_SIZE must be greater than zero, got %d", c.BatchSize)
	}

	if c.MaxRetryAttempts < 1 {
		return fmt.Errorf("MAX_RETRY_ATTEMPTS must be greater than zero, got %d", c.MaxRetryAttempts)
	}

	if c.RetryBaseDelayMs < 1 {
		return fmt.Errorf("RETRY_BASE_DELAY_MS must be greater than zero, got %d", c.RetryBaseDelayMs)
	}

	if c.PollFrequencyMs < MinPollFrequencyMs {
		return fmt.Errorf("POLL_FREQUENCY_MS must be at least %dms, got %d", MinPollFrequencyMs, c.PollFrequencyMs)
	}

	return nil
}

// Outbox produces the options consumed by the decorator and the worker.
func (c *Config) Outbox() outbox.Options {
	return outbox.Options{
		Enabled:          c.OutboxEnabled,
		BatchSize:        c.BatchSize,
		PollInterval:     c.GetPollIntervalDuration(),
		MaxRetryAttempts: c.MaxRetryAttempts,
		RetryBaseDelay:   time.Duration(c.RetryBaseDelayMs) * time.Millisecond,
	}
}

func (c *Config) GetPollIntervalDuration() time.Duration {
	return time.Duration(c.PollFrequencyMs) * time.Millisecond
}

func (c *Config) GetCleanupAge() time.Duration {
	return time.Duration(c.CleanupAgeHours) * time.Hour
}

func (c *Config) GetDSN() string {
	switch c.DBDriver {
	case MySQL:
		tls := "false"
		if c.TLSEnable {
			if c.TLSSkipVerifyPeer {
				tls = "skip-verify"
			} else {
				tls = "true"
			}
		}
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&tls=%s&multiStatements=true", c.DBUser, c.DBPass, c.DBHost, c.DBPort, c.DBSchema, tls)
	case Postgres:
		sslMode := "disable"
		if c.TLSEnable {
			if c.TLSSkipVerifyPeer {
				sslMode = "require"
			} else {
				sslMode = "verify-full"
			}
		}
		return fmt.Sprintf("%s://%s@%s:%d/%s?sslmode=%s", c.DBDriver, url.UserPassword(c.DBUser, c.DBPass), c.DBHost, c.DBPort, c.DBSchema, sslMode)
	default:
		log.Logger.Fatalf("the DB driver configured (%s) is not supported", c.DBDriver)
		return ""
	}
}

// GetDependencySystemAddresses returns the broker addresses that readiness
// checks should dial.
func (c *Config) GetDependencySystemAddresses() []string {
	if c.Broker == Nats {
		return []string{natsHostPort(c.NatsURL)}
	}
	return c.KafkaHost
}

func natsHostPort(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return u.Host
}

func (c Config) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]interface{}{
		"SkipMigrations":     c.SkipMigrations,
		"DBHost":             c.DBHost,
		"DBPort":             c.DBPort,
		"DBUser":             c.DBUser,
		"DBPass":             "xxxxx",
		"DBSchema":           c.DBSchema,
		"DBDriver":           c.DBDriver,
		"DBOutboxTable":      c.DBOutboxTable,
		"Broker":             c.Broker,
		"KafkaHost":          c.KafkaHost,
		"KafkaDefaultTopic":  c.KafkaDefaultTopic,
		"KafkaConsumerGroup": c.KafkaConsumerGroup,
		"TLSEnable":          c.TLSEnable,
		"TLSSkipVerifyPeer":  c.TLSSkipVerifyPeer,
		"NatsURL":            c.NatsURL,
		"OutboxEnabled":      c.OutboxEnabled,
		"BatchSize":          c.BatchSize,
		"PollFrequencyMs":    c.PollFrequencyMs,
		"MaxRetryAttempts":   c.MaxRetryAttempts,
		"RetryBaseDelayMs":   c.RetryBaseDelayMs,
		"RunCleanup":         c.RunCleanup,
		"CleanupAgeHours":    c.CleanupAgeHours,
	})
}

func (d DbDriver) MySQL() bool {
	return d == MySQL
}

func (d DbDriver) Postgres() bool {
	return d == Postgres
}

func (d DbDriver) String() string {
	return string(d)
}

func (b BrokerType) String() string {
	return string(b)
}
