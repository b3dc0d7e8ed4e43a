package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

// Config is the root configuration structure for Gatekeeper Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Cache     CacheConfig     `yaml:"cache"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// DatabaseConfig contains record store settings.
//
// Driver selects the backend. The sqlite driver uses Path; the network
// drivers (postgres, mysql) use Host, Port, User, Password and Name.
type DatabaseConfig struct {
	Driver      string `yaml:"driver"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`

	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`

	MaxOpenConns int `yaml:"max_open_conns"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains live-update channel settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
	// SendBuffer is the per-observer queue length. An observer whose queue
	// is full when an event is broadcast is disconnected.
	SendBuffer int `yaml:"send_buffer"`
}

// CacheConfig contains Redis read-cache settings.
type CacheConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	TTL      int    `yaml:"ttl"` // seconds
}

// MQTTConfig contains MQTT broker connection settings for the event mirror.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// MetricsConfig contains Prometheus exposition settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load builds the configuration from defaults, an optional YAML file and the
// environment.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults), skipped when path is empty
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern GATEKEEPER_SECTION_KEY. The
// variables understood by the original deployment (DB_HOST, DB_USER,
// DB_PASSWORD, DB_NAME, PORT) are honoured when the prefixed form is unset.
//
// Parameters:
//   - path: Path to the YAML configuration file, or "" for defaults + environment
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("applying environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:       DriverSQLite,
			Path:         "./data/gatekeeper.db",
			WALMode:      true,
			BusyTimeout:  5,
			Host:         "localhost",
			User:         "root",
			Name:         "school_gatekeeper",
			SSLMode:      "disable",
			MaxOpenConns: 10,
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 3000,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
			SendBuffer:     256,
		},
		Cache: CacheConfig{
			Host: "localhost",
			Port: 6379,
			TTL:  300,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "gatekeeper-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// lookupEnv returns the first non-empty value among the given variable names.
func lookupEnv(names ...string) (string, bool) {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v, true
		}
	}
	return "", false
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) error {
	// Database
	if v, ok := lookupEnv("GATEKEEPER_DB_DRIVER"); ok {
		cfg.Database.Driver = strings.ToLower(v)
	}
	if v, ok := lookupEnv("GATEKEEPER_DB_PATH"); ok {
		cfg.Database.Path = v
	}
	if v, ok := lookupEnv("GATEKEEPER_DB_HOST", "DB_HOST"); ok {
		cfg.Database.Host = v
	}
	if v, ok := lookupEnv("GATEKEEPER_DB_PORT", "DB_PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid database port %q: %w", v, err)
		}
		cfg.Database.Port = port
	}
	if v, ok := lookupEnv("GATEKEEPER_DB_USER", "DB_USER"); ok {
		cfg.Database.User = v
	}
	if v, ok := lookupEnv("GATEKEEPER_DB_PASSWORD", "DB_PASSWORD"); ok {
		cfg.Database.Password = v
	}
	if v, ok := lookupEnv("GATEKEEPER_DB_NAME", "DB_NAME"); ok {
		cfg.Database.Name = v
	}

	// API
	if v, ok := lookupEnv("GATEKEEPER_API_HOST"); ok {
		cfg.API.Host = v
	}
	if v, ok := lookupEnv("GATEKEEPER_API_PORT", "PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid listen port %q: %w", v, err)
		}
		cfg.API.Port = port
	}

	// Cache
	if v, ok := lookupEnv("GATEKEEPER_REDIS_HOST"); ok {
		cfg.Cache.Host = v
	}
	if v, ok := lookupEnv("GATEKEEPER_REDIS_PASSWORD"); ok {
		cfg.Cache.Password = v
	}

	// MQTT
	if v, ok := lookupEnv("GATEKEEPER_MQTT_HOST"); ok {
		cfg.MQTT.Broker.Host = v
	}
	if v, ok := lookupEnv("GATEKEEPER_MQTT_USERNAME"); ok {
		cfg.MQTT.Auth.Username = v
	}
	if v, ok := lookupEnv("GATEKEEPER_MQTT_PASSWORD"); ok {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v, ok := lookupEnv("GATEKEEPER_INFLUXDB_TOKEN"); ok {
		cfg.InfluxDB.Token = v
	}

	// Logging
	if v, ok := lookupEnv("GATEKEEPER_LOG_LEVEL"); ok {
		cfg.Logging.Level = v
	}

	return nil
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			errs = append(errs, "database.path is required for the sqlite driver")
		}
	case DriverPostgres, DriverMySQL:
		if c.Database.Host == "" {
			errs = append(errs, "database.host is required")
		}
		if c.Database.Name == "" {
			errs = append(errs, "database.name is required")
		}
		if c.Database.User == "" {
			errs = append(errs, "database.user is required")
		}
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q is not supported (sqlite, postgres, mysql)", c.Database.Driver))
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.WebSocket.SendBuffer < 1 {
		errs = append(errs, "websocket.send_buffer must be at least 1")
	}

	if c.MQTT.Enabled && (c.MQTT.QoS < 0 || c.MQTT.QoS > 2) {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.Cache.Enabled && c.Cache.TTL < 1 {
		errs = append(errs, "cache.ttl must be at least 1 second")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if len(errs) > 0 {
		return errors.New("configuration errors: " + strings.Join(errs, "; "))
	}

	return nil
}

// networkStoreEnv lists the variables that only apply to the postgres and
// mysql drivers.
var networkStoreEnv = []string{
	"GATEKEEPER_DB_HOST", "DB_HOST",
	"GATEKEEPER_DB_PORT", "DB_PORT",
	"GATEKEEPER_DB_USER", "DB_USER",
	"GATEKEEPER_DB_PASSWORD", "DB_PASSWORD",
	"GATEKEEPER_DB_NAME", "DB_NAME",
}

// IgnoredStoreEnv returns the network store variables that are set in the
// environment but have no effect because the sqlite driver is selected.
// Callers should warn about them; a deployment carrying DB_HOST from the
// original service otherwise starts on a local file without notice.
func (c *Config) IgnoredStoreEnv() []string {
	if c.Database.Driver != DriverSQLite {
		return nil
	}
	var ignored []string
	for _, name := range networkStoreEnv {
		if os.Getenv(name) != "" {
			ignored = append(ignored, name)
		}
	}
	return ignored
}

// DatabasePort returns the configured store port, or the driver's
// well-known port when none is set.
func (c *Config) DatabasePort() int {
	if c.Database.Port != 0 {
		return c.Database.Port
	}
	switch c.Database.Driver {
	case DriverPostgres:
		return 5432
	case DriverMySQL:
		return 3306
	default:
		return 0
	}
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// GetCacheTTL returns the read-cache entry lifetime.
func (c *Config) GetCacheTTL() time.Duration {
	return time.Duration(c.Cache.TTL) * time.Second
}
