package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Config содержит все конфигурационные параметры приложения
type Config struct {
	Database  DatabaseConfig
	App       AppConfig
	Auth      AuthConfig
	Redis     RedisConfig
	Telegram  TelegramConfig
	Scheduler SchedulerConfig
	Business  BusinessConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

type AppConfig struct {
	Env      string
	LogLevel string
	Port     int
}

// AuthConfig содержит настройки выдачи токенов
type AuthConfig struct {
	JWTSecret  string
	TokenTTL   time.Duration
	AdminEmail string // Получает роль admin при регистрации
}

// RedisConfig содержит настройки кэша. Пустой адрес отключает кэш.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// TelegramConfig содержит настройки бота для персонала
type TelegramConfig struct {
	BotToken     string
	AdminChatIDs []int64
}

// SchedulerConfig содержит настройки фоновых задач
type SchedulerConfig struct {
	Enabled  bool
	Interval time.Duration
}

// BusinessConfig содержит правила барбершопа
type BusinessConfig struct {
	DefaultVIPPrice    decimal.Decimal
	VIPPeriodDays      int
	ReferralCodePrefix string
}

// Load загружает конфигурацию из переменных окружения и .env
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	// Database
	cfg.Database.Host = getEnvDefault("DB_HOST", "localhost")
	cfg.Database.Port = getEnvIntDefault("DB_PORT", 5432)
	cfg.Database.User = os.Getenv("DB_USER")
	cfg.Database.Password = os.Getenv("DB_PASSWORD")
	cfg.Database.Name = os.Getenv("DB_NAME")
	cfg.Database.SSLMode = getEnvDefault("DB_SSL_MODE", "disable")

	// App
	cfg.App.Env = getEnvDefault("APP_ENV", "development")
	cfg.App.LogLevel = getEnvDefault("LOG_LEVEL", "info")
	cfg.App.Port = getEnvIntDefault("APP_PORT", 8080)

	// Auth
	cfg.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	cfg.Auth.TokenTTL = getEnvDurationDefault("JWT_TTL", 24*time.Hour)
	cfg.Auth.AdminEmail = strings.ToLower(strings.TrimSpace(os.Getenv("ADMIN_EMAIL")))

	// Redis
	cfg.Redis.Addr = os.Getenv("REDIS_ADDR")
	cfg.Redis.Password = os.Getenv("REDIS_PASSWORD")
	cfg.Redis.DB = getEnvIntDefault("REDIS_DB", 0)
	cfg.Redis.TTL = getEnvDurationDefault("REDIS_TTL", 5*time.Minute)

	// Telegram
	cfg.Telegram.BotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	cfg.Telegram.AdminChatIDs = getEnvInt64List("TELEGRAM_ADMIN_CHAT_IDS")

	// Scheduler
	cfg.Scheduler.Enabled = getEnvBoolDefault("SCHEDULER_ENABLED", true)
	cfg.Scheduler.Interval = getEnvDurationDefault("SCHEDULER_INTERVAL", time.Hour)

	// Business
	cfg.Business.DefaultVIPPrice = getEnvDecimalDefault("VIP_DEFAULT_PRICE", decimal.NewFromInt(2500))
	cfg.Business.VIPPeriodDays = getEnvIntDefault("VIP_PERIOD_DAYS", 30)
	cfg.Business.ReferralCodePrefix = getEnvDefault("REFERRAL_CODE_PREFIX", "CELEB-")

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("ошибка валидации конфигурации: %w", err)
	}

	return cfg, nil
}

func getEnvDefault(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getEnvIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getEnvBoolDefault(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getEnvDurationDefault(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func getEnvDecimalDefault(key string, def decimal.Decimal) decimal.Decimal {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return def
	}
	return d
}

// getEnvInt64List разбирает список ID через запятую, некорректные значения пропускаются
func getEnvInt64List(key string) []int64 {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var ids []int64
	for _, part := range strings.Split(v, ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// validateConfig проверяет корректность конфигурации
func validateConfig(config *Config) error {
	if config.Database.Host == "" {
		return fmt.Errorf("DB_HOST не установлен")
	}
	if config.Database.User == "" {
		return fmt.Errorf("DB_USER не установлен")
	}
	if config.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD не установлен")
	}
	if config.Database.Name == "" {
		return fmt.Errorf("DB_NAME не установлен")
	}
	if config.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET не установлен")
	}
	if !config.Business.DefaultVIPPrice.IsPositive() {
		return fmt.Errorf("VIP_DEFAULT_PRICE должна быть положительной")
	}
	if config.Business.VIPPeriodDays <= 0 {
		return fmt.Errorf("VIP_PERIOD_DAYS должен быть положительным")
	}
	if config.Telegram.BotToken != "" && len(config.Telegram.AdminChatIDs) == 0 {
		return fmt.Errorf("TELEGRAM_ADMIN_CHAT_IDS не установлен")
	}

	return nil
}

// GetDSN возвращает строку подключения к базе данных
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

// IsDevelopment проверяет, запущено ли приложение в режиме разработки
func (c *AppConfig) IsDevelopment() bool {
	return c.Env == "development"
}

// GetLogLevel возвращает уровень логирования в формате zap
func (c *AppConfig) GetLogLevel() zap.AtomicLevel {
	switch c.LogLevel {
	case "debug":
		return zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		return zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		return zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		return zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		return zap.NewAtomicLevelAt(zap.InfoLevel)
	}
}

// Enabled проверяет, настроен ли Redis
func (c *RedisConfig) Enabled() bool {
	return c.Addr != ""
}

// IsAdminChat проверяет, разрешен ли чат для команд персонала
func (c *TelegramConfig) IsAdminChat(chatID int64) bool {
	for _, id := range c.AdminChatIDs {
		if id == chatID {
			return true
		}
	}
	return false
}
