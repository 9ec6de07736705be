package bootstrap

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const (
	StoreMemory = "memory"
	StoreMySQL  = "mysql"
)

// Config 存储从环境变量、.env 或配置文件加载的配置
type Config struct {
	AppEnv            string        `mapstructure:"app_env"`
	ServerPort        string        `mapstructure:"server_port"`
	LogLevel          string        `mapstructure:"log_level"`
	StoreDriver       string        `mapstructure:"store_driver"`
	DBUser            string        `mapstructure:"db_user"`
	DBPassword        string        `mapstructure:"db_password"`
	DBHost            string        `mapstructure:"db_host"`
	DBPort            string        `mapstructure:"db_port"`
	DBName            string        `mapstructure:"db_name"`
	RedisAddr         string        `mapstructure:"redis_addr"`
	RedisPassword     string        `mapstructure:"redis_password"`
	RedisDB           int           `mapstructure:"redis_db"`
	KeyPrefix         string        `mapstructure:"redis_key_prefix"`
	RateLimitMax      int           `mapstructure:"rate_limit_max"`
	RateLimitWindow   time.Duration `mapstructure:"rate_limit_window"`
	NatsURL           string        `mapstructure:"nats_url"`
	CORSAllowedOrigin string        `mapstructure:"cors_allowed_origin"`
	StaleRoomAfter    time.Duration `mapstructure:"stale_room_after"`
	StaleScanSchedule string        `mapstructure:"stale_scan_schedule"`
	JoinAttemptLimit  int           `mapstructure:"join_attempt_limit"`
	JoinAttemptWindow time.Duration `mapstructure:"join_attempt_window"`
}

var defaults = map[string]interface{}{
	"app_env":             "development",
	"server_port":         "3001",
	"log_level":           "info",
	"store_driver":        StoreMemory,
	"db_user":             "",
	"db_password":         "",
	"db_host":             "127.0.0.1",
	"db_port":             "3306",
	"db_name":             "board_hill",
	"redis_addr":          "",
	"redis_password":      "",
	"redis_db":            0,
	"redis_key_prefix":    "hill:",
	"rate_limit_max":      100,
	"rate_limit_window":   "1s",
	"nats_url":            "",
	"cors_allowed_origin": "*",
	"stale_room_after":    "24h",
	"stale_scan_schedule": "@every 30m",
	"join_attempt_limit":  10,
	"join_attempt_window": "10s",
}

// LoadConfig 加载配置：.env -> 环境变量 -> 可选的 CONFIG_FILE (yaml)
func LoadConfig() (*Config, error) {
	// .env 不存在时只使用环境变量
	_ = godotenv.Load()

	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.AutomaticEnv()

	if file := v.GetString("config_file"); file != "" {
		v.SetConfigFile(file)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	c.StoreDriver = strings.ToLower(strings.TrimSpace(c.StoreDriver))
	switch c.StoreDriver {
	case StoreMemory:
	case StoreMySQL:
		if c.DBUser == "" || c.DBPassword == "" {
			return fmt.Errorf("DB_USER and DB_PASSWORD must be set when STORE_DRIVER=mysql")
		}
	default:
		return fmt.Errorf("unsupported STORE_DRIVER %q (want %s or %s)", c.StoreDriver, StoreMemory, StoreMySQL)
	}
	if c.ServerPort == "" {
		return fmt.Errorf("SERVER_PORT must not be empty")
	}
	if c.RedisAddr != "" && (c.RateLimitMax <= 0 || c.RateLimitWindow <= 0) {
		return fmt.Errorf("RATE_LIMIT_MAX and RATE_LIMIT_WINDOW must be positive")
	}
	if c.StaleRoomAfter <= 0 {
		return fmt.Errorf("STALE_ROOM_AFTER must be positive")
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		logrus.Warnf("Invalid LOG_LEVEL '%s', using default 'info'", c.LogLevel)
		c.LogLevel = "info"
	}
	return nil
}
