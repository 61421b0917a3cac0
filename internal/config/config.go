package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment variable the server reads.
const EnvPrefix = "VISUALMATH_"

type Config struct {
	Database  *DatabaseConfig  `json:"database"`
	HTTP      *HTTPConfig      `json:"http"`
	WebSocket *WebSocketConfig `json:"websocket"`
	Session   *SessionConfig   `json:"session"`
	Log       *LogConfig       `json:"log"`
	Redis     *RedisConfig     `json:"redis"`
	RateLimit *RateLimitConfig `json:"rate_limit"`
}

type DatabaseConfig struct {
	Path           string        `json:"path"`
	Timeout        time.Duration `json:"timeout"`
	MaxConnections int           `json:"max_connections"`
	MigrationsPath string        `json:"migrations_path"`
}

type HTTPConfig struct {
	Port           int           `json:"port"`
	ReadTimeout    time.Duration `json:"read_timeout"`
	WriteTimeout   time.Duration `json:"write_timeout"`
	Host           string        `json:"host"`
	AllowedOrigins []string      `json:"allowed_origins"`
}

type WebSocketConfig struct {
	PingInterval   time.Duration `json:"ping_interval"`
	ReadTimeout    time.Duration `json:"read_timeout"`
	WriteTimeout   time.Duration `json:"write_timeout"`
	BufferSize     int           `json:"buffer_size"`
	MaxMessageSize int64         `json:"max_message_size"`
}

// SessionConfig sizes the per-session actors.
type SessionConfig struct {
	QueueSize   int           `json:"queue_size"`
	IdleTimeout time.Duration `json:"idle_timeout"`
	OpTimeout   time.Duration `json:"op_timeout"`
}

type LogConfig struct {
	Mode  string `json:"mode"`
	Level string `json:"level"`
}

// RedisConfig configures the cross-instance bus. An empty Addr disables it.
type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	Channel  string `json:"channel"`
}

type RateLimitConfig struct {
	EventsPerMinute int `json:"events_per_minute"`
}

// DefaultConfig returns settings suitable for a single classroom server.
func DefaultConfig() *Config {
	return &Config{
		Database: &DatabaseConfig{
			Path:           "./visualmath.db",
			Timeout:        30 * time.Second,
			MaxConnections: 10,
		},
		HTTP: &HTTPConfig{
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			Host:         "0.0.0.0",
		},
		WebSocket: &WebSocketConfig{
			PingInterval:   30 * time.Second,
			ReadTimeout:    60 * time.Second,
			WriteTimeout:   10 * time.Second,
			BufferSize:     100,
			MaxMessageSize: 64 * 1024,
		},
		Session: &SessionConfig{
			QueueSize:   64,
			IdleTimeout: 5 * time.Minute,
			OpTimeout:   10 * time.Second,
		},
		Log: &LogConfig{
			Mode: "dev",
		},
		Redis: &RedisConfig{
			Channel: "visualmath:started_lectures",
		},
		RateLimit: &RateLimitConfig{
			EventsPerMinute: 120,
		},
	}
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	if c.Database == nil {
		return fmt.Errorf("database configuration is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path cannot be empty")
	}
	if c.Database.Timeout <= 0 {
		return fmt.Errorf("database timeout must be positive")
	}
	if c.Database.MaxConnections <= 0 {
		return fmt.Errorf("database max connections must be positive")
	}

	if c.HTTP == nil {
		return fmt.Errorf("HTTP configuration is required")
	}
	// Port 0 binds a free port.
	if c.HTTP.Port < 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("HTTP port must be between 0 and 65535")
	}
	if c.HTTP.ReadTimeout <= 0 {
		return fmt.Errorf("HTTP read timeout must be positive")
	}
	if c.HTTP.WriteTimeout <= 0 {
		return fmt.Errorf("HTTP write timeout must be positive")
	}
	if c.HTTP.Host == "" {
		return fmt.Errorf("HTTP host cannot be empty")
	}

	if c.WebSocket == nil {
		return fmt.Errorf("WebSocket configuration is required")
	}
	if c.WebSocket.PingInterval <= 0 {
		return fmt.Errorf("WebSocket ping interval must be positive")
	}
	if c.WebSocket.ReadTimeout <= c.WebSocket.PingInterval {
		return fmt.Errorf("WebSocket read timeout must exceed the ping interval")
	}
	if c.WebSocket.WriteTimeout <= 0 {
		return fmt.Errorf("WebSocket write timeout must be positive")
	}
	if c.WebSocket.BufferSize <= 0 {
		return fmt.Errorf("WebSocket buffer size must be positive")
	}
	if c.WebSocket.MaxMessageSize <= 0 {
		return fmt.Errorf("WebSocket max message size must be positive")
	}

	if c.Session == nil {
		return fmt.Errorf("session configuration is required")
	}
	if c.Session.QueueSize <= 0 {
		return fmt.Errorf("session queue size must be positive")
	}
	if c.Session.IdleTimeout <= 0 {
		return fmt.Errorf("session idle timeout must be positive")
	}
	if c.Session.OpTimeout <= 0 {
		return fmt.Errorf("session operation timeout must be positive")
	}

	if c.Log == nil {
		return fmt.Errorf("log configuration is required")
	}
	switch strings.ToLower(c.Log.Mode) {
	case "dev", "development", "prod", "production":
	default:
		return fmt.Errorf("log mode must be dev or prod, got %q", c.Log.Mode)
	}

	if c.Redis == nil {
		return fmt.Errorf("redis configuration is required")
	}
	if c.Redis.Addr != "" && c.Redis.Channel == "" {
		return fmt.Errorf("redis channel cannot be empty when redis is enabled")
	}

	if c.RateLimit == nil || c.RateLimit.EventsPerMinute <= 0 {
		return fmt.Errorf("rate limit must be positive")
	}

	return nil
}

// LoadDotEnv loads a .env file into the process environment if one exists.
// Variables already set are left untouched.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

// LoadFromEnv returns the defaults overridden by VISUALMATH_* variables.
// Malformed values are ignored.
func LoadFromEnv() *Config {
	config := DefaultConfig()
	applyEnv(config)
	return config
}

func applyEnv(config *Config) {
	envString("DATABASE_PATH", &config.Database.Path)
	envDuration("DATABASE_TIMEOUT", &config.Database.Timeout)
	envInt("DATABASE_MAX_CONNECTIONS", &config.Database.MaxConnections)
	envString("DATABASE_MIGRATIONS_PATH", &config.Database.MigrationsPath)

	envInt("HTTP_PORT", &config.HTTP.Port)
	envString("HTTP_HOST", &config.HTTP.Host)
	envDuration("HTTP_READ_TIMEOUT", &config.HTTP.ReadTimeout)
	envDuration("HTTP_WRITE_TIMEOUT", &config.HTTP.WriteTimeout)
	if origins := os.Getenv(EnvPrefix + "HTTP_ALLOWED_ORIGINS"); origins != "" {
		config.HTTP.AllowedOrigins = splitList(origins)
	}

	envDuration("WEBSOCKET_PING_INTERVAL", &config.WebSocket.PingInterval)
	envDuration("WEBSOCKET_READ_TIMEOUT", &config.WebSocket.ReadTimeout)
	envDuration("WEBSOCKET_WRITE_TIMEOUT", &config.WebSocket.WriteTimeout)
	envInt("WEBSOCKET_BUFFER_SIZE", &config.WebSocket.BufferSize)
	if v := os.Getenv(EnvPrefix + "WEBSOCKET_MAX_MESSAGE_SIZE"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			config.WebSocket.MaxMessageSize = n
		}
	}

	envInt("SESSION_QUEUE_SIZE", &config.Session.QueueSize)
	envDuration("SESSION_IDLE_TIMEOUT", &config.Session.IdleTimeout)
	envDuration("SESSION_OP_TIMEOUT", &config.Session.OpTimeout)

	envString("LOG_MODE", &config.Log.Mode)
	envString("LOG_LEVEL", &config.Log.Level)

	envString("REDIS_ADDR", &config.Redis.Addr)
	envString("REDIS_PASSWORD", &config.Redis.Password)
	envInt("REDIS_DB", &config.Redis.DB)
	envString("REDIS_CHANNEL", &config.Redis.Channel)

	envInt("RATE_LIMIT_EVENTS_PER_MINUTE", &config.RateLimit.EventsPerMinute)
}

func envString(name string, dst *string) {
	if v := strings.TrimSpace(os.Getenv(EnvPrefix + name)); v != "" {
		*dst = v
	}
}

func envInt(name string, dst *int) {
	if v := strings.TrimSpace(os.Getenv(EnvPrefix + name)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envDuration(name string, dst *time.Duration) {
	if v := strings.TrimSpace(os.Getenv(EnvPrefix + name)); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ConfigFile is the JSON layout of a config file. Durations are strings such as "30s".
type ConfigFile struct {
	Database  *DatabaseConfigFile  `json:"database"`
	HTTP      *HTTPConfigFile      `json:"http"`
	WebSocket *WebSocketConfigFile `json:"websocket"`
	Session   *SessionConfigFile   `json:"session"`
	Log       *LogConfig           `json:"log"`
	Redis     *RedisConfig         `json:"redis"`
	RateLimit *RateLimitConfig     `json:"rate_limit"`
}

type DatabaseConfigFile struct {
	Path           string `json:"path"`
	Timeout        string `json:"timeout"`
	MaxConnections int    `json:"max_connections"`
	MigrationsPath string `json:"migrations_path"`
}

type HTTPConfigFile struct {
	Port           int      `json:"port"`
	ReadTimeout    string   `json:"read_timeout"`
	WriteTimeout   string   `json:"write_timeout"`
	Host           string   `json:"host"`
	AllowedOrigins []string `json:"allowed_origins"`
}

type WebSocketConfigFile struct {
	PingInterval   string `json:"ping_interval"`
	ReadTimeout    string `json:"read_timeout"`
	WriteTimeout   string `json:"write_timeout"`
	BufferSize     int    `json:"buffer_size"`
	MaxMessageSize int64  `json:"max_message_size"`
}

type SessionConfigFile struct {
	QueueSize   int    `json:"queue_size"`
	IdleTimeout string `json:"idle_timeout"`
	OpTimeout   string `json:"op_timeout"`
}

// LoadFromFile reads a JSON config file over the defaults and validates the result.
func LoadFromFile(filepath string) (*Config, error) {
	config := DefaultConfig()
	if err := applyFile(config, filepath); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", filepath, err)
	}
	return config, nil
}

func applyFile(config *Config, filepath string) error {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", filepath, err)
	}

	var cf ConfigFile
	if err := json.Unmarshal(data, &cf); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", filepath, err)
	}

	var errs []string
	duration := func(field, raw string, dst *time.Duration) {
		if raw == "" {
			return
		}
		d, err := time.ParseDuration(raw)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", field, err))
			return
		}
		*dst = d
	}

	if f := cf.Database; f != nil {
		if f.Path != "" {
			config.Database.Path = f.Path
		}
		if f.MaxConnections > 0 {
			config.Database.MaxConnections = f.MaxConnections
		}
		if f.MigrationsPath != "" {
			config.Database.MigrationsPath = f.MigrationsPath
		}
		duration("database.timeout", f.Timeout, &config.Database.Timeout)
	}

	if f := cf.HTTP; f != nil {
		if f.Port > 0 {
			config.HTTP.Port = f.Port
		}
		if f.Host != "" {
			config.HTTP.Host = f.Host
		}
		if len(f.AllowedOrigins) > 0 {
			config.HTTP.AllowedOrigins = f.AllowedOrigins
		}
		duration("http.read_timeout", f.ReadTimeout, &config.HTTP.ReadTimeout)
		duration("http.write_timeout", f.WriteTimeout, &config.HTTP.WriteTimeout)
	}

	if f := cf.WebSocket; f != nil {
		if f.BufferSize > 0 {
			config.WebSocket.BufferSize = f.BufferSize
		}
		if f.MaxMessageSize > 0 {
			config.WebSocket.MaxMessageSize = f.MaxMessageSize
		}
		duration("websocket.ping_interval", f.PingInterval, &config.WebSocket.PingInterval)
		duration("websocket.read_timeout", f.ReadTimeout, &config.WebSocket.ReadTimeout)
		duration("websocket.write_timeout", f.WriteTimeout, &config.WebSocket.WriteTimeout)
	}

	if f := cf.Session; f != nil {
		if f.QueueSize > 0 {
			config.Session.QueueSize = f.QueueSize
		}
		duration("session.idle_timeout", f.IdleTimeout, &config.Session.IdleTimeout)
		duration("session.op_timeout", f.OpTimeout, &config.Session.OpTimeout)
	}

	if f := cf.Log; f != nil {
		if f.Mode != "" {
			config.Log.Mode = f.Mode
		}
		if f.Level != "" {
			config.Log.Level = f.Level
		}
	}

	if f := cf.Redis; f != nil {
		if f.Addr != "" {
			config.Redis.Addr = f.Addr
		}
		if f.Password != "" {
			config.Redis.Password = f.Password
		}
		if f.DB != 0 {
			config.Redis.DB = f.DB
		}
		if f.Channel != "" {
			config.Redis.Channel = f.Channel
		}
	}

	if f := cf.RateLimit; f != nil && f.EventsPerMinute > 0 {
		config.RateLimit.EventsPerMinute = f.EventsPerMinute
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid durations in %s: %s", filepath, strings.Join(errs, "; "))
	}
	return nil
}

// LoadConfigWithPrecedence resolves file > environment > defaults. An empty
// filepath skips the file layer.
func LoadConfigWithPrecedence(filepath string) (*Config, error) {
	config := LoadFromEnv()
	if filepath != "" {
		if err := applyFile(config, filepath); err != nil {
			return nil, err
		}
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}
