package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ServerConfig represents server configuration
type ServerConfig struct {
	Address  string         `yaml:"address"`
	TLS      TLSConfig      `yaml:"tls"`
	JWT      JWTConfig      `yaml:"jwt"`
	Database DatabaseConfig `yaml:"database"`
	Logging  LoggingConfig  `yaml:"logging"`
	CORS     CORSConfig     `yaml:"cors"`
	Chat     ChatConfig     `yaml:"chat"`
}

// TLSConfig represents TLS settings
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// JWTConfig represents token signing settings
type JWTConfig struct {
	Secret   string `yaml:"secret"`
	TokenTTL int    `yaml:"token_ttl_hours"`
}

// DatabaseConfig represents database settings
type DatabaseConfig struct {
	Type string `yaml:"type"` // sqlite | mysql
	Path string `yaml:"path"` // file path for sqlite, DSN for mysql
}

// LoggingConfig represents logging settings
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// CORSConfig represents cross-origin settings for the REST API
type CORSConfig struct {
	Origin string `yaml:"origin"`
}

// ChatConfig represents chat room limits
type ChatConfig struct {
	MaxMessageBytes int `yaml:"max_message_bytes"`
	SendBufferSize  int `yaml:"send_buffer_size"`
}

// DefaultConfig returns default configuration
func DefaultConfig() *ServerConfig {
	return &ServerConfig{
		Address: ":5000",
		TLS: TLSConfig{
			Enabled:  false,
			CertFile: "",
			KeyFile:  "",
		},
		JWT: JWTConfig{
			Secret:   "kwak-secret-key",
			TokenTTL: 24,
		},
		Database: DatabaseConfig{
			Type: "sqlite",
			Path: "./kwak.db",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		CORS: CORSConfig{
			Origin: "*",
		},
		Chat: ChatConfig{
			MaxMessageBytes: 4096,
			SendBufferSize:  64,
		},
	}
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*ServerConfig, error) {
	config := DefaultConfig()

	// Load from file if provided
	if configPath != "" {
		if err := loadFromFile(configPath, config); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	// Override with environment variables
	applyEnvOverrides(config)

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// loadFromFile loads configuration from a YAML file
func loadFromFile(path string, config *ServerConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return err
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides
func applyEnvOverrides(config *ServerConfig) {
	if addr := os.Getenv("KWAK_ADDR"); addr != "" {
		config.Address = addr
	}

	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		config.JWT.Secret = secret
	}

	if port := os.Getenv("PORT"); port != "" {
		config.Address = ":" + port
	}

	if dbType := os.Getenv("DB_TYPE"); dbType != "" {
		config.Database.Type = dbType
	}

	if dbPath := os.Getenv("DB_PATH"); dbPath != "" {
		config.Database.Path = dbPath
	}

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		config.Logging.Level = logLevel
	}

	if logFormat := os.Getenv("LOG_FORMAT"); logFormat != "" {
		config.Logging.Format = logFormat
	}

	if origin := os.Getenv("CORS_ORIGIN"); origin != "" {
		config.CORS.Origin = origin
	}

	if tlsEnabled := os.Getenv("TLS_ENABLED"); tlsEnabled != "" {
		config.TLS.Enabled = tlsEnabled == "true"
	}

	if certFile := os.Getenv("TLS_CERT_FILE"); certFile != "" {
		config.TLS.CertFile = certFile
	}

	if keyFile := os.Getenv("TLS_KEY_FILE"); keyFile != "" {
		config.TLS.KeyFile = keyFile
	}

	if ttl := os.Getenv("JWT_TOKEN_TTL_HOURS"); ttl != "" {
		if val, err := strconv.Atoi(ttl); err == nil {
			config.JWT.TokenTTL = val
		}
	}
}

// Validate validates the configuration
func (c *ServerConfig) Validate() error {
	if c.Address == "" {
		return fmt.Errorf("server address cannot be empty")
	}

	if c.JWT.Secret == "" {
		return fmt.Errorf("jwt secret cannot be empty")
	}

	if c.JWT.TokenTTL < 1 {
		return fmt.Errorf("jwt token ttl must be at least 1 hour")
	}

	switch c.Database.Type {
	case "sqlite", "mysql":
	default:
		return fmt.Errorf("unsupported database type: %s", c.Database.Type)
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database path cannot be empty")
	}

	if c.TLS.Enabled {
		if c.TLS.CertFile == "" || c.TLS.KeyFile == "" {
			return fmt.Errorf("TLS enabled but cert/key files not provided")
		}

		if _, err := os.Stat(c.TLS.CertFile); err != nil {
			return fmt.Errorf("certificate file not found: %w", err)
		}

		if _, err := os.Stat(c.TLS.KeyFile); err != nil {
			return fmt.Errorf("key file not found: %w", err)
		}
	}

	if c.Chat.MaxMessageBytes < 1 {
		return fmt.Errorf("max message bytes must be at least 1")
	}

	if c.Chat.SendBufferSize < 1 {
		return fmt.Errorf("send buffer size must be at least 1")
	}

	if !isValidLogLevel(c.Logging.Level) {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	return nil
}

// TokenTTLDuration returns the configured token lifetime as a duration
func (c *JWTConfig) TokenTTLDuration() time.Duration {
	return time.Duration(c.TokenTTL) * time.Hour
}

// isValidLogLevel checks if the log level is valid
func isValidLogLevel(level string) bool {
	valid := []string{"debug", "info", "warn", "error"}
	level = strings.ToLower(level)
	for _, v := range valid {
		if level == v {
			return true
		}
	}
	return false
}

// String returns a string representation of the configuration (for logging)
func (c *ServerConfig) String() string {
	return fmt.Sprintf("Config{Address: %s, DB: %s/%s, TLS: %v, LogLevel: %s}",
		c.Address, c.Database.Type, c.Database.Path, c.TLS.Enabled, c.Logging.Level)
}
