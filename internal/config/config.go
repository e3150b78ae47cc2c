package config

import (
	"log"
	"time"

	"github.com/spf13/viper"

	"github.com/noakmilo/qventory-relist/pkg/postgres"
	"github.com/noakmilo/qventory-relist/pkg/redis"
)

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Marketplace MarketplaceConfig `mapstructure:"marketplace"`
	Relist      RelistConfig      `mapstructure:"relist"`
	Database    postgres.Config   `mapstructure:"database"`
	Redis       redis.Config      `mapstructure:"redis"`
	Log         LogConfig         `mapstructure:"log"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type ServerConfig struct {
	Port string
	Env  string
}

type MarketplaceConfig struct {
	APIBaseURL                string
	AuthBaseURL               string
	ClientID                  string
	ClientSecret              string
	RequestTimeout            time.Duration
	MaxGlobalRequestPerSecond int
	MaxUserRequestPerSecond   int
	RateLimitCleanupDuration  time.Duration
	RateLimitExpireDuration   time.Duration
	TokenCacheTTL             time.Duration
}

type RelistConfig struct {
	TickInterval          time.Duration
	Workers               int
	WithdrawPublishDelay  time.Duration
	DueBatchLimit         int
	DefaultMaxConsecutive int
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		log.Println("Failed to read config file .env config try read from environment variables")
	}

	viper.SetDefault("RELIST_TICK_INTERVAL", "15m")
	viper.SetDefault("RELIST_WORKERS", 5)
	viper.SetDefault("RELIST_WITHDRAW_PUBLISH_DELAY", "30s")
	viper.SetDefault("RELIST_DUE_BATCH_LIMIT", 100)
	viper.SetDefault("RELIST_DEFAULT_MAX_CONSECUTIVE_ERRORS", 3)
	viper.SetDefault("MARKETPLACE_REQUEST_TIMEOUT", "30s")
	viper.SetDefault("MARKETPLACE_MAX_GLOBAL_REQUEST_PER_SECOND", 10)
	viper.SetDefault("MARKETPLACE_MAX_USER_REQUEST_PER_SECOND", 3)
	viper.SetDefault("MARKETPLACE_RATE_LIMIT_CLEANUP_DURATION", "10m")
	viper.SetDefault("MARKETPLACE_RATE_LIMIT_EXPIRE_DURATION", "30m")
	viper.SetDefault("MARKETPLACE_TOKEN_CACHE_TTL", "90m")

	config := &Config{
		Server: ServerConfig{
			Port: viper.GetString("PORT"),
			Env:  viper.GetString("ENV"),
		},
		Marketplace: MarketplaceConfig{
			APIBaseURL:                viper.GetString("MARKETPLACE_API_BASE_URL"),
			AuthBaseURL:               viper.GetString("MARKETPLACE_AUTH_BASE_URL"),
			ClientID:                  viper.GetString("MARKETPLACE_CLIENT_ID"),
			ClientSecret:              viper.GetString("MARKETPLACE_CLIENT_SECRET"),
			RequestTimeout:            viper.GetDuration("MARKETPLACE_REQUEST_TIMEOUT"),
			MaxGlobalRequestPerSecond: viper.GetInt("MARKETPLACE_MAX_GLOBAL_REQUEST_PER_SECOND"),
			MaxUserRequestPerSecond:   viper.GetInt("MARKETPLACE_MAX_USER_REQUEST_PER_SECOND"),
			RateLimitCleanupDuration:  viper.GetDuration("MARKETPLACE_RATE_LIMIT_CLEANUP_DURATION"),
			RateLimitExpireDuration:   viper.GetDuration("MARKETPLACE_RATE_LIMIT_EXPIRE_DURATION"),
			TokenCacheTTL:             viper.GetDuration("MARKETPLACE_TOKEN_CACHE_TTL"),
		},
		Relist: RelistConfig{
			TickInterval:          viper.GetDuration("RELIST_TICK_INTERVAL"),
			Workers:               viper.GetInt("RELIST_WORKERS"),
			WithdrawPublishDelay:  viper.GetDuration("RELIST_WITHDRAW_PUBLISH_DELAY"),
			DueBatchLimit:         viper.GetInt("RELIST_DUE_BATCH_LIMIT"),
			DefaultMaxConsecutive: viper.GetInt("RELIST_DEFAULT_MAX_CONSECUTIVE_ERRORS"),
		},
		Log: LogConfig{
			Level: viper.GetString("LOG_LEVEL"),
		},
		Database: postgres.Config{
			Host:            viper.GetString("DATABASE_HOST"),
			Port:            viper.GetInt("DATABASE_PORT"),
			User:            viper.GetString("DATABASE_USER"),
			Password:        viper.GetString("DATABASE_PASSWORD"),
			DBName:          viper.GetString("DATABASE_NAME"),
			SSLMode:         viper.GetString("DATABASE_SSL_MODE"),
			TimeZone:        viper.GetString("DATABASE_TIME_ZONE"),
			MaxIdleConns:    viper.GetInt("DATABASE_MAX_IDLE_CONNS"),
			MaxOpenConns:    viper.GetInt("DATABASE_MAX_OPEN_CONNS"),
			ConnMaxLifetime: viper.GetString("DATABASE_CONN_MAX_LIFETIME"),
			LogLevel:        viper.GetString("DATABASE_LOG_LEVEL"),
		},
		Redis: redis.Config{
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetInt("REDIS_PORT"),
			Password: viper.GetString("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
			PoolSize: viper.GetInt("REDIS_POOL_SIZE"),
		},
	}

	return config, nil
}
