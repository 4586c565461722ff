package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Redis оборачивает клиент go-redis
type Redis struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

// Config содержит параметры подключения к Redis
type Config struct {
	Addr     string
	Password string
	DB       int
	Prefix   string // Префикс ключей приложения
}

// New создает клиент Redis по конфигурации
func New(cfg Config, logger *zap.Logger) *Redis {
	return &Redis{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
		prefix: cfg.Prefix,
		logger: logger.With(zap.String("component", "redis")),
	}
}

// Ping проверяет соединение с Redis
func (r *Redis) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// SetJSON сохраняет значение в JSON с указанным TTL
func (r *Redis) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}
	if err := r.client.Set(ctx, r.prefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// GetJSON читает значение и разбирает его в dest. false, если ключа нет.
func (r *Redis) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	res, err := r.client.Get(ctx, r.prefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("redis get %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(res), dest); err != nil {
		r.logger.Warn("повреждено значение в кэше", zap.String("key", key), zap.Error(err))
		return false, nil
	}
	return true, nil
}

// Delete удаляет ключ
func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

// Close освобождает ресурсы клиента
func (r *Redis) Close() error {
	return r.client.Close()
}
