package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"
)

type Config struct {
	DBDSN       string `mapstructure:"DB_DSN"`
	Environment string `mapstructure:"ENV"`
	HTTPAddr    string `mapstructure:"HTTP_ADDR"`
	// Пусто: debug в development, info в production
	LogLevel    string `mapstructure:"LOG_LEVEL"`

	// Единые региональные часы для генерации слотов и записи
	Timezone *time.Location `mapstructure:"APP_TIMEZONE"`

	TelegramToken        string  `mapstructure:"TELEGRAM_TOKEN"`
	TelegramNotifyChatID int64   `mapstructure:"TELEGRAM_NOTIFY_CHAT_ID"`
	TelegramAdminIDs     []int64 `mapstructure:"TELEGRAM_ADMIN_IDS"`

	DBMaxConns int32 `mapstructure:"DB_MAX_CONNS"`
	DBMinConns int32 `mapstructure:"DB_MIN_CONNS"`

	GenerateParallelism int           `mapstructure:"GENERATE_PARALLELISM"`
	StoreRetryAttempts  int           `mapstructure:"STORE_RETRY_ATTEMPTS"`
	BookingLeadTime     time.Duration `mapstructure:"BOOKING_LEAD_TIME"`
	DirectoryCacheSize  int           `mapstructure:"DIRECTORY_CACHE_SIZE"`
}

func Load() (*Config, error) {
	// Пытаемся загрузить .env файл (игнорируем ошибку, если файла нет)
	if err := godotenv.Load(".env"); err != nil {
		log.Println("No .env file found, using environment variables")
	}
	return FromEnv(os.Getenv)
}

// FromEnv читает конфигурацию через getenv, пустое значение означает дефолт
func FromEnv(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		DBDSN:         getenv("DB_DSN"),
		Environment:   withDefault(getenv("ENV"), "development"),
		HTTPAddr:      withDefault(getenv("HTTP_ADDR"), ":8080"),
		LogLevel:      strings.ToLower(strings.TrimSpace(getenv("LOG_LEVEL"))),
		TelegramToken: getenv("TELEGRAM_TOKEN"),
	}

	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("DB_DSN is required but not set")
	}

	if cfg.LogLevel != "" {
		if _, err := zapcore.ParseLevel(cfg.LogLevel); err != nil {
			return nil, fmt.Errorf("LOG_LEVEL: %w", err)
		}
	}

	tz := withDefault(getenv("APP_TIMEZONE"), "Asia/Kolkata")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("APP_TIMEZONE: %w", err)
	}
	cfg.Timezone = loc

	if cfg.TelegramNotifyChatID, err = parseInt64(getenv("TELEGRAM_NOTIFY_CHAT_ID"), 0); err != nil {
		return nil, fmt.Errorf("TELEGRAM_NOTIFY_CHAT_ID: %w", err)
	}
	if cfg.TelegramAdminIDs, err = parseIDList(getenv("TELEGRAM_ADMIN_IDS")); err != nil {
		return nil, fmt.Errorf("TELEGRAM_ADMIN_IDS: %w", err)
	}

	maxConns, err := parsePositive(getenv("DB_MAX_CONNS"), 10)
	if err != nil {
		return nil, fmt.Errorf("DB_MAX_CONNS: %w", err)
	}
	minConns, err := parsePositive(getenv("DB_MIN_CONNS"), 1)
	if err != nil {
		return nil, fmt.Errorf("DB_MIN_CONNS: %w", err)
	}
	if minConns > maxConns {
		return nil, fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", minConns, maxConns)
	}
	cfg.DBMaxConns, cfg.DBMinConns = int32(maxConns), int32(minConns)

	if cfg.GenerateParallelism, err = parsePositive(getenv("GENERATE_PARALLELISM"), 4); err != nil {
		return nil, fmt.Errorf("GENERATE_PARALLELISM: %w", err)
	}
	if cfg.StoreRetryAttempts, err = parsePositive(getenv("STORE_RETRY_ATTEMPTS"), 3); err != nil {
		return nil, fmt.Errorf("STORE_RETRY_ATTEMPTS: %w", err)
	}
	if cfg.DirectoryCacheSize, err = parsePositive(getenv("DIRECTORY_CACHE_SIZE"), 256); err != nil {
		return nil, fmt.Errorf("DIRECTORY_CACHE_SIZE: %w", err)
	}

	cfg.BookingLeadTime = time.Hour
	if v := getenv("BOOKING_LEAD_TIME"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return nil, fmt.Errorf("BOOKING_LEAD_TIME: invalid duration %q", v)
		}
		cfg.BookingLeadTime = d
	}

	return cfg, nil
}

// TelegramEnabled есть ли токен бота
func (c *Config) TelegramEnabled() bool {
	return c.TelegramToken != ""
}

// IsAdmin проверяет, входит ли пользователь Telegram в список администраторов
func (c *Config) IsAdmin(userID int64) bool {
	for _, id := range c.TelegramAdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}

func withDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func parseInt64(v string, def int64) (int64, error) {
	if v == "" {
		return def, nil
	}
	return strconv.ParseInt(strings.TrimSpace(v), 10, 64)
}

func parsePositive(v string, def int) (int, error) {
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, fmt.Errorf("must be positive, got %d", n)
	}
	return n, nil
}

func parseIDList(v string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
