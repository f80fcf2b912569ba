// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig          `mapstructure:"app"`
	Carrier       CarrierConfig      `mapstructure:"carrier"`
	Pipeline      PipelineConfig     `mapstructure:"pipeline"`
	Database      DatabaseConfig     `mapstructure:"database"`
	Server        ServerConfig       `mapstructure:"server"`
	Logging       LoggingConfig      `mapstructure:"logging"`
	Notifications NotificationConfig `mapstructure:"notifications"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// CarrierConfig holds the carrier composite API connection settings.
type CarrierConfig struct {
	BaseURL           string `mapstructure:"base_url"`
	CompositeEndpoint string `mapstructure:"composite_endpoint"`
	Username          string `mapstructure:"username"`
	Password          string `mapstructure:"password"`
	BearerToken       string `mapstructure:"bearer_token"`
	TokenURL          string `mapstructure:"token_url"`
	ClientID          string `mapstructure:"client_id"`
	ClientSecret      string `mapstructure:"client_secret"`
	Timeout           int    `mapstructure:"timeout"`      // milliseconds
	TokenBuffer       int    `mapstructure:"token_buffer"` // seconds before expiry to refresh
}

// PipelineConfig holds submission pipeline defaults.
type PipelineConfig struct {
	ProducerCode    string `mapstructure:"producer_code"`
	ProductCode     string `mapstructure:"product_code"`
	DefaultState    string `mapstructure:"default_state"`
	DefaultCoverage int64  `mapstructure:"default_coverage"`
	MaxAttempts     int    `mapstructure:"max_attempts"`
	RetryDelay      int    `mapstructure:"retry_delay"` // milliseconds
	SimulateOnError bool   `mapstructure:"simulate_on_error"`
	SplitMode       bool   `mapstructure:"split_mode"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Address         string `mapstructure:"address"`
	ReadTimeout     int    `mapstructure:"read_timeout"`     // milliseconds
	WriteTimeout    int    `mapstructure:"write_timeout"`    // milliseconds
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"` // milliseconds
}

// NotificationConfig holds settings for failure alert emails.
type NotificationConfig struct {
	Email struct {
		Enabled   bool   `mapstructure:"enabled"`
		FromEmail string `mapstructure:"from_email"`
		ToEmail   string `mapstructure:"to_email"`
	} `mapstructure:"email"`
	AWS struct {
		Region string `mapstructure:"region"`
	} `mapstructure:"aws"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
