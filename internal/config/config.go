package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

type Config struct {
	Environment string `mapstructure:"ENV"`
	LogLevel    string `mapstructure:"LOG_LEVEL"`

	DBDSN       string `mapstructure:"DB_DSN"`
	AutoMigrate bool   `mapstructure:"AUTO_MIGRATE"`

	HTTPAddr       string        `mapstructure:"HTTP_ADDR"`
	JWTSecret      string        `mapstructure:"JWT_SECRET"`
	AccessTokenTTL time.Duration `mapstructure:"ACCESS_TOKEN_TTL"`
	LinkTokenTTL   time.Duration `mapstructure:"LINK_TOKEN_TTL"`

	TelegramToken       string `mapstructure:"TELEGRAM_TOKEN"`
	TelegramBotUsername string `mapstructure:"TELEGRAM_BOT_USERNAME"`

	RedisAddr     string        `mapstructure:"REDIS_ADDR"`
	RedisPassword string        `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int           `mapstructure:"REDIS_DB"`
	LockTTL       time.Duration `mapstructure:"LOCK_TTL"`

	// Все даты и время суток трактуются в этой локации
	Timezone     string `mapstructure:"TIMEZONE"`
	ReminderCron string `mapstructure:"REMINDER_CRON"`
}

var keys = []string{
	"ENV", "LOG_LEVEL", "DB_DSN", "AUTO_MIGRATE", "HTTP_ADDR", "JWT_SECRET",
	"ACCESS_TOKEN_TTL", "LINK_TOKEN_TTL", "TELEGRAM_TOKEN", "TELEGRAM_BOT_USERNAME", "REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "LOCK_TTL", "TIMEZONE", "REMINDER_CRON",
}

func Load() (*Config, error) {
	// Пытаемся загрузить .env файл (игнорируем ошибку, если файла нет)
	if err := godotenv.Load(".env"); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	v := viper.New()

	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("AUTO_MIGRATE", true)
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("ACCESS_TOKEN_TTL", "24h")
	v.SetDefault("LINK_TOKEN_TTL", "15m")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("LOCK_TTL", "10s")
	v.SetDefault("TIMEZONE", "UTC")
	v.SetDefault("REMINDER_CRON", "0 18 * * *")

	// Unmarshal видит только ключи, о которых viper знает, поэтому привязываем их явно
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate проверяет обязательные поля
func (c *Config) Validate() error {
	if c.DBDSN == "" {
		return fmt.Errorf("DB_DSN is required but not set")
	}
	if len(c.JWTSecret) < 16 {
		return fmt.Errorf("JWT_SECRET must be at least 16 characters")
	}
	if c.AccessTokenTTL <= 0 || c.LinkTokenTTL <= 0 {
		return fmt.Errorf("ACCESS_TOKEN_TTL and LINK_TOKEN_TTL must be positive")
	}
	if c.LockTTL <= 0 {
		return fmt.Errorf("LOCK_TTL must be positive")
	}
	if _, err := cron.ParseStandard(c.ReminderCron); err != nil {
		return fmt.Errorf("invalid REMINDER_CRON %q: %w", c.ReminderCron, err)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location возвращает локацию, в которой работает расписание
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}
