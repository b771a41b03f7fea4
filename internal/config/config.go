package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database    DatabaseConfig
	Redis       RedisConfig
	Server      ServerConfig
	Leaderboard LeaderboardConfig
	Logging     LoggingConfig
	Worker      WorkerConfig
}

type StoreDriver string

const (
	StoreDriverPostgres StoreDriver = "postgres"
	StoreDriverMemory   StoreDriver = "memory"
)

type DatabaseConfig struct {
	Driver   StoreDriver
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig configures pub/sub fan-out across instances and the recompute
// queue. With Enabled false live updates stay in-process.
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

type ServerConfig struct {
	HTTPPort        string
	ShutdownTimeout time.Duration
}

type ScoreSource string

const (
	ScoreSourceStored      ScoreSource = "stored"
	ScoreSourceSubmissions ScoreSource = "submissions"
)

type TriggerMode string

const (
	TriggerModeSync  TriggerMode = "sync"
	TriggerModeQueue TriggerMode = "queue"
)

type LeaderboardConfig struct {
	ScoreSource     ScoreSource
	TriggerMode     TriggerMode
	BroadcastTopN   int
	DefaultPageSize int
	MaxPageSize     int
	RefreshInterval time.Duration
	StatusInterval  time.Duration
}

type LoggingConfig struct {
	Level     string
	GormLevel string
}

type WorkerConfig struct {
	HeartbeatInterval time.Duration
	DequeueTimeout    time.Duration
}

func LoadConfig() *Config {
	config, _ := Load()
	return config
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	config := &Config{
		Database: DatabaseConfig{
			Driver:   StoreDriver(getEnv("STORE_DRIVER", string(StoreDriverPostgres))),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "skillport"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "skillport"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Enabled:  getEnvAsBool("REDIS_ENABLED", true),
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Server: ServerConfig{
			HTTPPort:        getEnv("HTTP_PORT", "8080"),
			ShutdownTimeout: getEnvAsSeconds("SHUTDOWN_TIMEOUT_SECONDS", 10),
		},
		Leaderboard: LeaderboardConfig{
			ScoreSource:     ScoreSource(getEnv("LEADERBOARD_SCORE_SOURCE", string(ScoreSourceStored))),
			TriggerMode:     TriggerMode(getEnv("LEADERBOARD_TRIGGER_MODE", string(TriggerModeSync))),
			BroadcastTopN:   getEnvAsInt("LEADERBOARD_BROADCAST_TOP_N", 50),
			DefaultPageSize: getEnvAsInt("LEADERBOARD_DEFAULT_PAGE_SIZE", 20),
			MaxPageSize:     getEnvAsInt("LEADERBOARD_MAX_PAGE_SIZE", 100),
			RefreshInterval: getEnvAsSeconds("LEADERBOARD_REFRESH_INTERVAL_SECONDS", 30),
			StatusInterval:  getEnvAsSeconds("CONTEST_STATUS_INTERVAL_SECONDS", 15),
		},
		Logging: LoggingConfig{
			Level:     getEnv("LOG_LEVEL", "info"),
			GormLevel: getEnv("GORM_LOG_LEVEL", "warn"),
		},
		Worker: WorkerConfig{
			HeartbeatInterval: getEnvAsSeconds("WORKER_HEARTBEAT_INTERVAL", 15),
			DequeueTimeout:    getEnvAsSeconds("WORKER_DEQUEUE_TIMEOUT", 5),
		},
	}

	if err := config.Validate(); err != nil {
		return config, err
	}
	return config, nil
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case StoreDriverPostgres, StoreDriverMemory:
	default:
		return fmt.Errorf("invalid STORE_DRIVER %q", c.Database.Driver)
	}
	switch c.Leaderboard.ScoreSource {
	case ScoreSourceStored, ScoreSourceSubmissions:
	default:
		return fmt.Errorf("invalid LEADERBOARD_SCORE_SOURCE %q", c.Leaderboard.ScoreSource)
	}
	switch c.Leaderboard.TriggerMode {
	case TriggerModeSync, TriggerModeQueue:
	default:
		return fmt.Errorf("invalid LEADERBOARD_TRIGGER_MODE %q", c.Leaderboard.TriggerMode)
	}
	if c.Leaderboard.TriggerMode == TriggerModeQueue && !c.Redis.Enabled {
		return fmt.Errorf("LEADERBOARD_TRIGGER_MODE=queue requires REDIS_ENABLED")
	}
	if c.Leaderboard.BroadcastTopN <= 0 {
		return fmt.Errorf("LEADERBOARD_BROADCAST_TOP_N must be positive, got %d", c.Leaderboard.BroadcastTopN)
	}
	if c.Leaderboard.MaxPageSize <= 0 || c.Leaderboard.DefaultPageSize <= 0 ||
		c.Leaderboard.DefaultPageSize > c.Leaderboard.MaxPageSize {
		return fmt.Errorf("invalid page sizes: default %d, max %d",
			c.Leaderboard.DefaultPageSize, c.Leaderboard.MaxPageSize)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsSeconds(key string, defaultSeconds int) time.Duration {
	return time.Duration(getEnvAsInt(key, defaultSeconds)) * time.Second
}
