package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadConfig(t *testing.T) {
	// Устанавливаем переменные окружения для теста
	t.Setenv("DB_HOST", "localhost")
	t.Setenv("DB_USER", "test_user")
	t.Setenv("DB_PASSWORD", "test_password")
	t.Setenv("DB_NAME", "test_db")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("ADMIN_EMAIL", " Admin@Example.com ")
	t.Setenv("TELEGRAM_BOT_TOKEN", "")

	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, "test_user", cfg.Database.User)
	assert.Equal(t, "test_password", cfg.Database.Password)
	assert.Equal(t, "test_db", cfg.Database.Name)
	assert.Equal(t, "admin@example.com", cfg.Auth.AdminEmail)

	// Проверяем значения по умолчанию
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "disable", cfg.Database.SSLMode)
	assert.Equal(t, "development", cfg.App.Env)
	assert.Equal(t, "info", cfg.App.LogLevel)
	assert.Equal(t, 8080, cfg.App.Port)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.True(t, cfg.Business.DefaultVIPPrice.Equal(decimal.NewFromInt(2500)))
	assert.Equal(t, 30, cfg.Business.VIPPeriodDays)
	assert.Equal(t, "CELEB-", cfg.Business.ReferralCodePrefix)
}

func TestDatabaseDSN(t *testing.T) {
	cfg := &DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "test_user",
		Password: "test_password",
		Name:     "test_db",
		SSLMode:  "disable",
	}

	dsn := cfg.GetDSN()
	expected := "host=localhost port=5432 user=test_user password=test_password dbname=test_db sslmode=disable"
	assert.Equal(t, expected, dsn)
}

func TestAppConfigMethods(t *testing.T) {
	cfg := &AppConfig{
		Env:      "development",
		LogLevel: "debug",
	}

	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, zap.DebugLevel, cfg.GetLogLevel().Level())

	cfg.Env = "production"
	cfg.LogLevel = "verbose"
	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, zap.InfoLevel, cfg.GetLogLevel().Level())
}

func TestValidateConfig(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Database: DatabaseConfig{
				Host:     "localhost",
				User:     "test_user",
				Password: "test_password",
				Name:     "test_db",
			},
			Auth:     AuthConfig{JWTSecret: "secret"},
			Business: BusinessConfig{DefaultVIPPrice: decimal.NewFromInt(2500), VIPPeriodDays: 30},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "корректная конфигурация", mutate: func(c *Config) {}, wantErr: false},
		{name: "нет пароля БД", mutate: func(c *Config) { c.Database.Password = "" }, wantErr: true},
		{name: "нет секрета JWT", mutate: func(c *Config) { c.Auth.JWTSecret = "" }, wantErr: true},
		{name: "нулевая цена VIP", mutate: func(c *Config) { c.Business.DefaultVIPPrice = decimal.Zero }, wantErr: true},
		{name: "бот без чатов персонала", mutate: func(c *Config) { c.Telegram.BotToken = "token" }, wantErr: true},
		{name: "бот с чатом персонала", mutate: func(c *Config) {
			c.Telegram.BotToken = "token"
			c.Telegram.AdminChatIDs = []int64{42}
		}, wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := validateConfig(cfg)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	// Пустая конфигурация
	assert.Error(t, validateConfig(&Config{}))
}

func TestAdminChatIDs(t *testing.T) {
	t.Setenv("TELEGRAM_ADMIN_CHAT_IDS", "42, abc ,-100500")
	ids := getEnvInt64List("TELEGRAM_ADMIN_CHAT_IDS")
	assert.Equal(t, []int64{42, -100500}, ids)

	cfg := &TelegramConfig{AdminChatIDs: ids}
	assert.True(t, cfg.IsAdminChat(42))
	assert.False(t, cfg.IsAdminChat(7))
}
