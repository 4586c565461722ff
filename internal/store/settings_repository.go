package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// SettingsRepository интерфейс для работы с настройками
type SettingsRepository interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

type settingsRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewSettingsRepository создает новый репозиторий настроек
func NewSettingsRepository(db *pgxpool.Pool, logger *zap.Logger) SettingsRepository {
	return &settingsRepository{
		db:     db,
		logger: logger,
	}
}

// Get возвращает значение настройки или NotFound
func (r *settingsRepository) Get(ctx context.Context, key string) (string, error) {
	var value string
	if err := r.db.QueryRow(ctx, `SELECT value FROM settings WHERE key = $1`, key).Scan(&value); err != nil {
		return "", mapErr("настройка "+key, err)
	}
	return value, nil
}

// Set сохраняет значение настройки
func (r *settingsRepository) Set(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO settings (key, value, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`
	if _, err := r.db.Exec(ctx, query, key, value); err != nil {
		return mapErr("сохранение настройки "+key, err)
	}

	r.logger.Info("настройка обновлена", zap.String("key", key), zap.String("value", value))
	return nil
}
