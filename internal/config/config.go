package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const defaultJWTSecret = "your-secret-key"

type Config struct {
	Server     ServerConfig     `json:"server"`
	Database   DatabaseConfig   `json:"database"`
	Redis      RedisConfig      `json:"redis"`
	Worker     WorkerConfig     `json:"worker"`
	Auth       AuthConfig       `json:"auth"`
	RateLimit  RateLimitConfig  `json:"rate_limit"`
	AccessCode AccessCodeConfig `json:"access_code"`
	Log        LogConfig        `json:"log"`
}

type ServerConfig struct {
	Host               string        `json:"host"`
	Port               string        `json:"port"`
	ReadTimeout        time.Duration `json:"read_timeout"`
	WriteTimeout       time.Duration `json:"write_timeout"`
	IdleTimeout        time.Duration `json:"idle_timeout"`
	RequestTimeout     time.Duration `json:"request_timeout"`
	Environment        string        `json:"environment"`
	CORSAllowedOrigins []string      `json:"cors_allowed_origins"`
}

type DatabaseConfig struct {
	Driver          string        `json:"driver"`
	Host            string        `json:"host"`
	Port            string        `json:"port"`
	User            string        `json:"user"`
	Password        string        `json:"password"`
	Name            string        `json:"name"`
	SSLMode         string        `json:"ssl_mode"`
	SQLitePath      string        `json:"sqlite_path"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time"`
	AutoMigrate     bool          `json:"auto_migrate"`
}

type RedisConfig struct {
	Host         string        `json:"host"`
	Port         string        `json:"port"`
	Password     string        `json:"password"`
	DB           int           `json:"db"`
	PoolSize     int           `json:"pool_size"`
	MinIdleConns int           `json:"min_idle_conns"`
	MaxRetries   int           `json:"max_retries"`
	DialTimeout  time.Duration `json:"dial_timeout"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	TaskCacheTTL time.Duration `json:"task_cache_ttl"`
}

type WorkerConfig struct {
	Enabled      bool          `json:"enabled"`
	Concurrency  int           `json:"concurrency"`
	PollInterval time.Duration `json:"poll_interval"`
	Queues       []string      `json:"queues"`
}

type AuthConfig struct {
	JWTSecret       string        `json:"jwt_secret"`
	Issuer          string        `json:"issuer"`
	AccessTokenTTL  time.Duration `json:"access_token_ttl"`
	RefreshTokenTTL time.Duration `json:"refresh_token_ttl"`
	BCryptCost      int           `json:"bcrypt_cost"`
}

type RateLimitConfig struct {
	Enabled         bool          `json:"enabled"`
	RequestsPerMin  int           `json:"requests_per_minute"`
	BurstSize       int           `json:"burst_size"`
	CleanupInterval time.Duration `json:"cleanup_interval"`
}

type AccessCodeConfig struct {
	MaxAttempts int `json:"max_attempts"`
}

type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// LoadConfig reads settings from the environment and, when CONFIG_FILE is set,
// from that file. Environment variables win over file values.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	config := &Config{
		Server: ServerConfig{
			Host:               getString(v, "HOST", "localhost"),
			Port:               getString(v, "PORT", "8080"),
			ReadTimeout:        getDuration(v, "READ_TIMEOUT", 30*time.Second),
			WriteTimeout:       getDuration(v, "WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:        getDuration(v, "IDLE_TIMEOUT", 60*time.Second),
			RequestTimeout:     getDuration(v, "REQUEST_TIMEOUT", 10*time.Second),
			Environment:        getString(v, "ENVIRONMENT", "development"),
			CORSAllowedOrigins: getList(v, "CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
		},
		Database: DatabaseConfig{
			Driver:          getString(v, "DB_DRIVER", "postgres"),
			Host:            getString(v, "DB_HOST", "localhost"),
			Port:            getString(v, "DB_PORT", "5432"),
			User:            getString(v, "DB_USER", "postgres"),
			Password:        getString(v, "DB_PASSWORD", ""),
			Name:            getString(v, "DB_NAME", "taskhub"),
			SSLMode:         getString(v, "DB_SSL_MODE", "disable"),
			SQLitePath:      getString(v, "DB_SQLITE_PATH", "taskhub.db"),
			MaxOpenConns:    getInt(v, "DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getInt(v, "DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime: getDuration(v, "DB_CONN_MAX_LIFETIME", time.Hour),
			ConnMaxIdleTime: getDuration(v, "DB_CONN_MAX_IDLE_TIME", 30*time.Minute),
			AutoMigrate:     getBool(v, "DB_AUTO_MIGRATE", true),
		},
		Redis: RedisConfig{
			Host:         getString(v, "REDIS_HOST", "localhost"),
			Port:         getString(v, "REDIS_PORT", "6379"),
			Password:     getString(v, "REDIS_PASSWORD", ""),
			DB:           getInt(v, "REDIS_DB", 0),
			PoolSize:     getInt(v, "REDIS_POOL_SIZE", 10),
			MinIdleConns: getInt(v, "REDIS_MIN_IDLE_CONNS", 5),
			MaxRetries:   getInt(v, "REDIS_MAX_RETRIES", 3),
			DialTimeout:  getDuration(v, "REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getDuration(v, "REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getDuration(v, "REDIS_WRITE_TIMEOUT", 3*time.Second),
			TaskCacheTTL: getDuration(v, "TASK_CACHE_TTL", 30*time.Minute),
		},
		Worker: WorkerConfig{
			Enabled:      getBool(v, "WORKER_ENABLED", true),
			Concurrency:  getInt(v, "WORKER_CONCURRENCY", 4),
			PollInterval: getDuration(v, "WORKER_POLL_INTERVAL", 5*time.Second),
			Queues:       getList(v, "WORKER_QUEUES", []string{"activity", "retry_queue"}),
		},
		Auth: AuthConfig{
			JWTSecret:       getString(v, "JWT_SECRET", defaultJWTSecret),
			Issuer:          getString(v, "JWT_ISSUER", "taskhub-backend"),
			AccessTokenTTL:  getDuration(v, "ACCESS_TOKEN_TTL", 15*time.Minute),
			RefreshTokenTTL: getDuration(v, "REFRESH_TOKEN_TTL", 7*24*time.Hour),
			BCryptCost:      getInt(v, "BCRYPT_COST", 10),
		},
		RateLimit: RateLimitConfig{
			Enabled:         getBool(v, "RATE_LIMIT_ENABLED", true),
			RequestsPerMin:  getInt(v, "RATE_LIMIT_RPM", 30),
			BurstSize:       getInt(v, "RATE_LIMIT_BURST", 10),
			CleanupInterval: getDuration(v, "RATE_LIMIT_CLEANUP", 10*time.Minute),
		},
		AccessCode: AccessCodeConfig{
			MaxAttempts: getInt(v, "ACCESS_CODE_MAX_ATTEMPTS", 1000),
		},
		Log: LogConfig{
			Level:  getString(v, "LOG_LEVEL", "info"),
			Format: getString(v, "LOG_FORMAT", ""),
		},
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) validate() error {
	if c.Database.Password == "" && c.IsProduction() && c.Database.Driver == "postgres" {
		return errors.New("database password is required in production")
	}

	if c.Auth.JWTSecret == defaultJWTSecret && c.IsProduction() {
		return errors.New("JWT secret must be set in production")
	}

	if c.AccessCode.MaxAttempts <= 0 {
		return fmt.Errorf("ACCESS_CODE_MAX_ATTEMPTS must be positive, got %d", c.AccessCode.MaxAttempts)
	}

	return nil
}

func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Redis.Host, c.Redis.Port)
}

func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}

func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

func getString(v *viper.Viper, key, defaultValue string) string {
	if value := v.GetString(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(v *viper.Viper, key string, defaultValue int) int {
	if value := v.GetString(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getBool(v *viper.Viper, key string, defaultValue bool) bool {
	if value := v.GetString(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getDuration(v *viper.Viper, key string, defaultValue time.Duration) time.Duration {
	if value := v.GetString(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getList(v *viper.Viper, key string, defaultValue []string) []string {
	value := v.GetString(key)
	if value == "" {
		return defaultValue
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return defaultValue
	}
	return items
}
