package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	Mongo         MongoConfig
	Links         LinksConfig
	Cache         CacheConfig
	Analytics     AnalyticsConfig
	Worker        WorkerConfig
	Sweeper       SweeperConfig
	App           AppConfig
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string        `envconfig:"SERVER_PORT" required:"true"`
	Host            string        `envconfig:"SERVER_HOST" required:"true"`
	BaseURL         string        `envconfig:"SERVER_BASE_URL" required:"true"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" required:"true"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" required:"true"`
	IdleTimeout     time.Duration `envconfig:"SERVER_IDLE_TIMEOUT" required:"true"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" required:"true"`
	AllowedOrigins  []string      `envconfig:"SERVER_ALLOWED_ORIGINS"`
}

func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port cannot be empty")
	}
	if c.Host == "" {
		return errors.New("host cannot be empty")
	}
	if _, err := url.ParseRequestURI(c.BaseURL); err != nil {
		return fmt.Errorf("base URL %q is not an absolute URL", c.BaseURL)
	}
	if c.ReadTimeout <= 0 || c.WriteTimeout <= 0 || c.IdleTimeout <= 0 {
		return errors.New("read, write and idle timeouts must be positive")
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}
	return nil
}

// Addr is the listen address.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// DatabaseConfig holds Postgres connection configuration.
type DatabaseConfig struct {
	Host        string `envconfig:"DB_HOST" required:"true"`
	Port        string `envconfig:"DB_PORT" required:"true"`
	User        string `envconfig:"DB_USER" required:"true"`
	Password    string `envconfig:"DB_PASSWORD" required:"true"`
	Name        string `envconfig:"DB_NAME" required:"true"`
	SSLMode     string `envconfig:"DB_SSLMODE" required:"true"`
	MaxConns    int32  `envconfig:"DB_MAX_CONNS" required:"true"`
	MinConns    int32  `envconfig:"DB_MIN_CONNS" required:"true"`
	AutoMigrate bool   `envconfig:"DB_AUTO_MIGRATE" default:"false"`
}

var validSSLModes = map[string]bool{
	"disable":     true,
	"require":     true,
	"verify-ca":   true,
	"verify-full": true,
}

func (c *DatabaseConfig) Validate() error {
	if c.Host == "" || c.Port == "" {
		return errors.New("host and port cannot be empty")
	}
	if c.User == "" {
		return errors.New("user cannot be empty")
	}
	if c.Password == "" {
		return errors.New("password cannot be empty")
	}
	if c.Name == "" {
		return errors.New("database name cannot be empty")
	}
	if c.MaxConns <= 0 || c.MinConns <= 0 {
		return errors.New("connection limits must be positive")
	}
	if c.MinConns > c.MaxConns {
		return fmt.Errorf("min connections (%d) cannot be greater than max connections (%d)", c.MinConns, c.MaxConns)
	}
	if !validSSLModes[c.SSLMode] {
		return fmt.Errorf("invalid SSL mode: %s (must be one of: disable, require, verify-ca, verify-full)", c.SSLMode)
	}
	return nil
}

// ConnectionString returns the keyword/value DSN understood by pgxpool.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// MigrateURL returns the database URL in the form golang-migrate's pgx/v5 driver expects.
func (c *DatabaseConfig) MigrateURL() string {
	u := url.URL{
		Scheme:   "pgx5",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, c.Port),
		Path:     "/" + c.Name,
		RawQuery: url.Values{"sslmode": {c.SSLMode}}.Encode(),
	}
	return u.String()
}

// RedisConfig covers both the link cache and the pub/sub event bus; they share one client.
type RedisConfig struct {
	Addr        string        `envconfig:"REDIS_ADDR" required:"true"`
	Password    string        `envconfig:"REDIS_PASSWORD"`
	DB          int           `envconfig:"REDIS_DB" default:"0"`
	DialTimeout time.Duration `envconfig:"REDIS_DIAL_TIMEOUT" default:"5s"`
}

func (c *RedisConfig) Validate() error {
	if c.Addr == "" {
		return errors.New("address cannot be empty")
	}
	if c.DB < 0 {
		return fmt.Errorf("db index must be non-negative, got %d", c.DB)
	}
	if c.DialTimeout <= 0 {
		return errors.New("dial timeout must be positive")
	}
	return nil
}

// MongoConfig is only consulted when ANALYTICS_STORE=mongo.
type MongoConfig struct {
	URI      string `envconfig:"MONGO_URI"`
	Database string `envconfig:"MONGO_DATABASE" default:"shortlinks"`
}

func (c *MongoConfig) Validate() error {
	if c.Database == "" {
		return errors.New("database cannot be empty")
	}
	return nil
}

type LinksConfig struct {
	DefaultExpirationMinutes float64 `envconfig:"LINK_DEFAULT_EXPIRATION_MINUTES" default:"60"`
	CodeLength               int     `envconfig:"LINK_CODE_LENGTH" default:"7"`
	MaxRetries               int     `envconfig:"LINK_CODE_MAX_RETRIES" default:"3"`
}

func (c *LinksConfig) Validate() error {
	if c.DefaultExpirationMinutes <= 0 {
		return errors.New("default expiration must be positive")
	}
	if c.CodeLength < 4 || c.CodeLength > 32 {
		return fmt.Errorf("code length must be between 4 and 32, got %d", c.CodeLength)
	}
	if c.MaxRetries < 1 {
		return errors.New("max retries must be at least 1")
	}
	return nil
}

type CacheConfig struct {
	LookupTimeout time.Duration `envconfig:"CACHE_LOOKUP_TIMEOUT" default:"50ms"`
	WriteTimeout  time.Duration `envconfig:"CACHE_WRITE_TIMEOUT" default:"200ms"`
	FallbackTTL   time.Duration `envconfig:"CACHE_FALLBACK_TTL" default:"1h"`
}

func (c *CacheConfig) Validate() error {
	if c.LookupTimeout <= 0 || c.WriteTimeout <= 0 {
		return errors.New("cache timeouts must be positive")
	}
	if c.FallbackTTL < time.Second {
		return errors.New("fallback TTL must be at least 1s")
	}
	return nil
}

const (
	StorePostgres = "postgres"
	StoreMongo    = "mongo"

	BackendRedis  = "redis"
	BackendMemory = "memory"
)

type AnalyticsConfig struct {
	Topic           string        `envconfig:"ANALYTICS_TOPIC" default:"analytics_event"`
	Store           string        `envconfig:"ANALYTICS_STORE" default:"postgres"`
	EventsBackend   string        `envconfig:"EVENTS_BACKEND" default:"redis"`
	ConsumerEnabled bool          `envconfig:"ANALYTICS_CONSUMER_ENABLED" default:"true"`
	Concurrency     int           `envconfig:"ANALYTICS_CONSUMER_CONCURRENCY" default:"1"`
	InsertTimeout   time.Duration `envconfig:"ANALYTICS_INSERT_TIMEOUT" default:"5s"`
}

func (c *AnalyticsConfig) Validate() error {
	if c.Topic == "" {
		return errors.New("topic cannot be empty")
	}
	switch c.Store {
	case StorePostgres, StoreMongo:
	default:
		return fmt.Errorf("invalid store: %s (must be one of: postgres, mongo)", c.Store)
	}
	switch c.EventsBackend {
	case BackendRedis, BackendMemory:
	default:
		return fmt.Errorf("invalid events backend: %s (must be one of: redis, memory)", c.EventsBackend)
	}
	if c.Concurrency < 1 {
		return errors.New("consumer concurrency must be at least 1")
	}
	if c.InsertTimeout <= 0 {
		return errors.New("insert timeout must be positive")
	}
	return nil
}

// WorkerConfig sizes the pool that runs visit recording off the request path.
type WorkerConfig struct {
	Size        int           `envconfig:"VISIT_WORKERS" default:"8"`
	QueueSize   int           `envconfig:"VISIT_QUEUE_SIZE" default:"1024"`
	TaskTimeout time.Duration `envconfig:"VISIT_TASK_TIMEOUT" default:"5s"`
}

func (c *WorkerConfig) Validate() error {
	if c.Size < 1 {
		return errors.New("worker count must be at least 1")
	}
	if c.QueueSize < 1 {
		return errors.New("queue size must be at least 1")
	}
	if c.TaskTimeout <= 0 {
		return errors.New("task timeout must be positive")
	}
	return nil
}

// SweeperConfig controls deletion of expired links. An Interval of 0 disables it.
type SweeperConfig struct {
	Interval time.Duration `envconfig:"SWEEP_INTERVAL" default:"1m"`
}

func (c *SweeperConfig) Validate() error {
	if c.Interval < 0 {
		return errors.New("sweep interval cannot be negative")
	}
	return nil
}

type AppConfig struct {
	Environment string `envconfig:"APP_ENV" required:"true"`   // development, staging, production, test
	LogLevel    string `envconfig:"LOG_LEVEL" required:"true"` // debug, info, warn, error
}

func (c *AppConfig) Validate() error {
	switch c.Environment {
	case "development", "staging", "production", "test":
	default:
		return fmt.Errorf("invalid environment: %s (must be one of: development, staging, production, test)", c.Environment)
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}
	return nil
}

type ObservabilityConfig struct {
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"`
	MetricsPath    string `envconfig:"METRICS_PATH" default:"/metrics"`
	ServiceName    string `envconfig:"SERVICE_NAME" default:"shortlinks"`
	ServiceVersion string `envconfig:"SERVICE_VERSION" default:"dev"`
}

func (c *ObservabilityConfig) Validate() error {
	if c.ServiceName == "" {
		return errors.New("service name cannot be empty")
	}
	if c.MetricsEnabled && (c.MetricsPath == "" || c.MetricsPath[0] != '/') {
		return fmt.Errorf("metrics path must start with '/', got %q", c.MetricsPath)
	}
	return nil
}

type validator interface {
	Validate() error
}

type section struct {
	name string
	cfg  validator
}

func process(sections ...section) error {
	for _, s := range sections {
		if err := envconfig.Process("", s.cfg); err != nil {
			return fmt.Errorf("failed to load %s config: %w", s.name, err)
		}
		if err := s.cfg.Validate(); err != nil {
			return fmt.Errorf("invalid %s config: %w", s.name, err)
		}
	}
	return nil
}

func (c *Config) validateMongo() error {
	if c.Analytics.Store == StoreMongo && c.Mongo.URI == "" {
		return errors.New("invalid Mongo config: MONGO_URI is required when ANALYTICS_STORE=mongo")
	}
	return nil
}

// Load loads the API server configuration from environment variables only.
// .env loading happens in internal/app for development and test environments.
func Load() (*Config, error) {
	cfg := &Config{}

	err := process(
		section{"Server", &cfg.Server},
		section{"Database", &cfg.Database},
		section{"Redis", &cfg.Redis},
		section{"Mongo", &cfg.Mongo},
		section{"Links", &cfg.Links},
		section{"Cache", &cfg.Cache},
		section{"Analytics", &cfg.Analytics},
		section{"Worker", &cfg.Worker},
		section{"Sweeper", &cfg.Sweeper},
		section{"App", &cfg.App},
		section{"Observability", &cfg.Observability},
	)
	if err != nil {
		return nil, err
	}
	if err := cfg.validateMongo(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadWorker loads the subset needed by the standalone analytics worker.
// HTTP, link issuance and cache settings are left zero.
func LoadWorker() (*Config, error) {
	cfg := &Config{}

	err := process(
		section{"Database", &cfg.Database},
		section{"Redis", &cfg.Redis},
		section{"Mongo", &cfg.Mongo},
		section{"Analytics", &cfg.Analytics},
		section{"App", &cfg.App},
		section{"Observability", &cfg.Observability},
	)
	if err != nil {
		return nil, err
	}
	if cfg.Analytics.EventsBackend == BackendMemory {
		return nil, errors.New("invalid Analytics config: the standalone worker needs EVENTS_BACKEND=redis")
	}
	if err := cfg.validateMongo(); err != nil {
		return nil, err
	}
	return cfg, nil
}
