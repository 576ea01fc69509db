package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultHTTPAddr       = ":8080"
	defaultMeetingBaseURL = "https://zoom.us"
	defaultPoolTTL        = 5 * time.Minute
)

type Config struct {
	DBDSN             string        `mapstructure:"DB_DSN"`
	Environment       string        `mapstructure:"ENV"`
	HTTPAddr          string        `mapstructure:"HTTP_ADDR"`
	RedisURL          string        `mapstructure:"REDIS_URL"`
	TelegramToken     string        `mapstructure:"TELEGRAM_TOKEN"`
	MeetingBaseURL    string        `mapstructure:"MEETING_BASE_URL"`
	PoolTTL           time.Duration `mapstructure:"POOL_TTL"`
	PoolSweepInterval time.Duration `mapstructure:"POOL_SWEEP_INTERVAL"`
}

func Load() (*Config, error) {
	// Пытаемся загрузить .env файл (игнорируем ошибку, если файла нет)
	if err := godotenv.Load(".env"); err != nil {
		log.Println("No .env file found, using environment variables")
	} else {
		log.Println("Loaded configuration from .env file")
	}

	return FromEnv()
}

// FromEnv читает конфигурацию из переменных окружения
func FromEnv() (*Config, error) {
	cfg := &Config{
		DBDSN:          os.Getenv("DB_DSN"),
		Environment:    os.Getenv("ENV"),
		HTTPAddr:       os.Getenv("HTTP_ADDR"),
		RedisURL:       os.Getenv("REDIS_URL"),
		TelegramToken:  os.Getenv("TELEGRAM_TOKEN"),
		MeetingBaseURL: os.Getenv("MEETING_BASE_URL"),
		PoolTTL:        defaultPoolTTL,
	}

	// Устанавливаем дефолтные значения
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = defaultHTTPAddr
	}
	if cfg.MeetingBaseURL == "" {
		cfg.MeetingBaseURL = defaultMeetingBaseURL
	}

	var err error
	if cfg.PoolTTL, err = durationEnv("POOL_TTL", defaultPoolTTL); err != nil {
		return nil, err
	}
	if cfg.PoolSweepInterval, err = durationEnv("POOL_SWEEP_INTERVAL", 0); err != nil {
		return nil, err
	}
	if cfg.PoolTTL <= 0 {
		return nil, fmt.Errorf("POOL_TTL must be positive, got %s", cfg.PoolTTL)
	}

	// Проверяем обязательные поля
	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("DB_DSN is required but not set")
	}

	return cfg, nil
}

func (c *Config) GetDBDSN() string {
	return c.DBDSN
}

// IsProduction true для боевого окружения
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}
