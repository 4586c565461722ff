// Package settings читает и меняет настройки барбершопа с кэшированием в Redis
package settings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"celeb-barber/internal/amount"
	"celeb-barber/internal/apperr"
	"celeb-barber/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// KeyVIPPrice ключ ежемесячной цены VIP
const KeyVIPPrice = "vip.monthly_price"

// Cache хранит значения настроек между запросами
type Cache interface {
	GetJSON(ctx context.Context, key string, dest any) (bool, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Service представляет сервис настроек
type Service struct {
	repo         store.SettingsRepository
	cache        Cache
	ttl          time.Duration
	defaultPrice decimal.Decimal
	logger       *zap.Logger
}

// NewService создает сервис настроек. cache может быть nil.
func NewService(repo store.SettingsRepository, cache Cache, ttl time.Duration, defaultPrice decimal.Decimal, logger *zap.Logger) *Service {
	return &Service{
		repo:         repo,
		cache:        cache,
		ttl:          ttl,
		defaultPrice: defaultPrice,
		logger:       logger,
	}
}

// VIPPrice возвращает текущую цену VIP. Отсутствующая или некорректная настройка дает цену по умолчанию.
func (s *Service) VIPPrice(ctx context.Context) (decimal.Decimal, error) {
	if s.cache != nil {
		var cached string
		found, err := s.cache.GetJSON(ctx, KeyVIPPrice, &cached)
		if err != nil {
			s.logger.Warn("кэш настроек недоступен", zap.Error(err))
		} else if found {
			if price := amount.ParseString(cached); price.IsPositive() {
				return price, nil
			}
		}
	}

	raw, err := s.repo.Get(ctx, KeyVIPPrice)
	if err != nil {
		if !errors.Is(err, apperr.ErrNotFound) {
			return decimal.Zero, fmt.Errorf("ошибка чтения цены VIP: %w", err)
		}
		raw = ""
	}

	price := amount.ParseString(raw)
	if !price.IsPositive() {
		if raw != "" {
			s.logger.Warn("некорректная цена VIP в настройках", zap.String("value", raw))
		}
		price = s.defaultPrice
	}

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, KeyVIPPrice, price.String(), s.ttl); err != nil {
			s.logger.Warn("не удалось сохранить цену VIP в кэш", zap.Error(err))
		}
	}
	return price, nil
}

// SetVIPPrice меняет цену VIP
func (s *Service) SetVIPPrice(ctx context.Context, price decimal.Decimal) error {
	if !price.IsPositive() {
		return apperr.Invalid("цена VIP должна быть положительной")
	}

	if err := s.repo.Set(ctx, KeyVIPPrice, price.String()); err != nil {
		return fmt.Errorf("ошибка сохранения цены VIP: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.Delete(ctx, KeyVIPPrice); err != nil {
			s.logger.Warn("не удалось сбросить кэш цены VIP", zap.Error(err))
		}
	}

	s.logger.Info("цена VIP изменена", zap.String("price", price.String()))
	return nil
}
