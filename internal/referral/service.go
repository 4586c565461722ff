package referral

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"celeb-barber/internal/apperr"
	"celeb-barber/internal/metrics"
	"celeb-barber/internal/store"
	"celeb-barber/pkg/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// codeLength количество символов ID в реферальном коде
const codeLength = 4

// Normalize приводит код к виду для сравнения: без пробелов по краям, в верхнем регистре
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Code выводит реферальный код из ID пользователя
func Code(prefix, userID string) string {
	return CodeN(prefix, userID, codeLength)
}

// CodeN выводит код из первых n символов ID. Нужен, когда короткий код уже занят.
func CodeN(prefix, userID string, n int) string {
	id := userID
	if len(id) > n {
		id = id[:n]
	}
	return Normalize(prefix + id)
}

// DeriveStatus вычисляет статус приглашения: явный статус важнее суммы трат
func DeriveStatus(u *models.User, spend decimal.Decimal) string {
	if u.ReferralStatus != nil && *u.ReferralStatus != "" {
		return *u.ReferralStatus
	}
	if spend.IsPositive() {
		return models.ReferralStatusSuccessful
	}
	return models.ReferralStatusPending
}

// Service представляет сервис для управления реферальной системой
type Service struct {
	users    store.UserRepository
	bookings store.BookingRepository
	prefix   string
	metrics  *metrics.Metrics
	logger   *zap.Logger
	now      func() time.Time
}

// NewService создает новый сервис рефералов
func NewService(users store.UserRepository, bookings store.BookingRepository, prefix string, m *metrics.Metrics, logger *zap.Logger) *Service {
	return &Service{
		users:    users,
		bookings: bookings,
		prefix:   prefix,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

// CodeFor возвращает реферальный код для нового пользователя
func (s *Service) CodeFor(userID string) string {
	return Code(s.prefix, userID)
}

// LongCodeFor возвращает удлиненный код из n символов ID
func (s *Service) LongCodeFor(userID string, n int) string {
	return CodeN(s.prefix, userID, n)
}

// Link привязывает нового пользователя к владельцу кода.
// Неизвестный код игнорируется, возвращается false.
func (s *Service) Link(ctx context.Context, userID, code string) (bool, error) {
	normalized := Normalize(code)
	if normalized == "" {
		return false, nil
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("ошибка получения пользователя: %w", err)
	}
	if user.UsedReferralCode != nil {
		s.logger.Info("код уже привязан",
			zap.String("user_id", userID),
			zap.String("used_code", *user.UsedReferralCode))
		return false, nil
	}

	referrer, err := s.users.GetByReferralCode(ctx, normalized)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			s.logger.Info("реферальный код не найден, пропускаем",
				zap.String("user_id", userID),
				zap.String("code", normalized))
			s.metrics.RecordReferralLink(false)
			return false, nil
		}
		return false, fmt.Errorf("ошибка поиска реферального кода: %w", err)
	}
	if referrer.ID == userID {
		s.logger.Warn("попытка использовать собственный код", zap.String("user_id", userID))
		return false, nil
	}

	linked, err := s.users.LinkReferral(ctx, userID, normalized, referrer.ID)
	if err != nil {
		return false, fmt.Errorf("ошибка привязки приглашения: %w", err)
	}
	if !linked {
		// код успели привязать параллельно
		return false, nil
	}

	s.metrics.RecordReferralLink(true)
	s.logger.Info("пользователь привязан к пригласившему",
		zap.String("user_id", userID),
		zap.String("referrer_id", referrer.ID),
		zap.String("code", normalized))
	return true, nil
}

// CreditSuccessful засчитывает успешное приглашение в серию пригласившего.
// Повторный вызов для того же пользователя ничего не меняет.
func (s *Service) CreditSuccessful(ctx context.Context, referredID string) (bool, error) {
	user, err := s.users.GetByID(ctx, referredID)
	if err != nil {
		return false, fmt.Errorf("ошибка получения пользователя: %w", err)
	}
	if user.UsedReferralCode == nil || user.ReferralCredited {
		return false, nil
	}

	referrer, err := s.users.GetByReferralCode(ctx, *user.UsedReferralCode)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("ошибка поиска пригласившего: %w", err)
	}

	marked, err := s.users.MarkReferralCredited(ctx, referredID)
	if err != nil {
		return false, fmt.Errorf("ошибка отметки зачета: %w", err)
	}
	if !marked {
		return false, nil
	}

	if err := s.users.IncrementReferralStreak(ctx, referrer.ID); err != nil {
		return false, fmt.Errorf("ошибка увеличения серии: %w", err)
	}

	s.logger.Info("приглашение засчитано",
		zap.String("referred_id", referredID),
		zap.String("referrer_id", referrer.ID))
	return true, nil
}

// Verify вручную подтверждает приглашение
func (s *Service) Verify(ctx context.Context, referredID string) error {
	if err := s.users.SetReferralStatus(ctx, referredID, models.ReferralStatusSuccessful); err != nil {
		return fmt.Errorf("ошибка подтверждения приглашения: %w", err)
	}
	if _, err := s.CreditSuccessful(ctx, referredID); err != nil {
		return err
	}

	s.logger.Info("приглашение подтверждено", zap.String("referred_id", referredID))
	return nil
}

// GrantReward выдает награду приглашенному и обнуляет серию пригласившего
func (s *Service) GrantReward(ctx context.Context, referredID, reward string) error {
	if reward == "" {
		reward = models.RewardThirtyOff
	}
	if !models.IsValidReward(reward) {
		return apperr.Invalid("неизвестный тип награды %q", reward)
	}

	user, err := s.users.GetByID(ctx, referredID)
	if err != nil {
		return fmt.Errorf("ошибка получения пользователя: %w", err)
	}

	var referrer *models.User
	if user.UsedReferralCode != nil {
		referrer, err = s.users.GetByReferralCode(ctx, *user.UsedReferralCode)
		if err != nil && !errors.Is(err, apperr.ErrNotFound) {
			return fmt.Errorf("ошибка поиска пригласившего: %w", err)
		}
	}

	if err := s.users.ApplyReward(ctx, referredID, reward, s.now()); err != nil {
		return fmt.Errorf("ошибка выдачи награды: %w", err)
	}

	if referrer == nil {
		s.logger.Warn("награда выдана без пригласившего", zap.String("referred_id", referredID))
		s.metrics.RecordReward(reward)
		return nil
	}

	// награда погашает это приглашение, позже оно не должно попасть в серию
	if _, err := s.users.MarkReferralCredited(ctx, referredID); err != nil {
		return fmt.Errorf("ошибка отметки зачета: %w", err)
	}
	if err := s.users.ConsumeStreak(ctx, referrer.ID, reward); err != nil {
		return fmt.Errorf("ошибка сброса серии: %w", err)
	}

	s.metrics.RecordReward(reward)
	s.logger.Info("реферальная награда выдана",
		zap.String("referred_id", referredID),
		zap.String("referrer_id", referrer.ID),
		zap.String("reward", models.RewardLabel(reward)))
	return nil
}

// Unlink удаляет привязку приглашенного и уменьшает счетчик пригласившего
func (s *Service) Unlink(ctx context.Context, referredID string) error {
	user, err := s.users.GetByID(ctx, referredID)
	if err != nil {
		return fmt.Errorf("ошибка получения пользователя: %w", err)
	}
	if user.UsedReferralCode == nil {
		return apperr.NotFound("пользователь %s не приглашен", referredID)
	}

	referrer, err := s.users.GetByReferralCode(ctx, *user.UsedReferralCode)
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return fmt.Errorf("ошибка поиска пригласившего: %w", err)
	}

	var referrerID *string
	if referrer != nil {
		referrerID = &referrer.ID
	}
	if _, err := s.users.UnlinkReferral(ctx, referredID, referrerID); err != nil {
		return fmt.Errorf("ошибка удаления привязки: %w", err)
	}

	s.logger.Info("привязка удалена", zap.String("referred_id", referredID))
	return nil
}

// Status возвращает производный статус приглашения пользователя
func (s *Service) Status(ctx context.Context, referredID string) (string, error) {
	user, err := s.users.GetByID(ctx, referredID)
	if err != nil {
		return "", fmt.Errorf("ошибка получения пользователя: %w", err)
	}
	spend, err := s.canonicalSpend(ctx, user)
	if err != nil {
		return "", err
	}
	return DeriveStatus(user, spend), nil
}

// List возвращает все приглашения, новые первыми
func (s *Service) List(ctx context.Context) ([]*models.ReferralLink, error) {
	referred, err := s.users.ListReferred(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения приглашенных: %w", err)
	}

	referrers := make(map[string]*models.User)
	links := make([]*models.ReferralLink, 0, len(referred))
	for _, u := range referred {
		code := *u.UsedReferralCode
		referrer, ok := referrers[code]
		if !ok {
			referrer, err = s.users.GetByReferralCode(ctx, code)
			if err != nil && !errors.Is(err, apperr.ErrNotFound) {
				return nil, fmt.Errorf("ошибка поиска пригласившего: %w", err)
			}
			referrers[code] = referrer
		}

		link, err := s.link(ctx, u, referrer)
		if err != nil {
			return nil, err
		}
		links = append(links, link)
	}

	sort.SliceStable(links, func(i, j int) bool { return links[i].CreatedAt.After(links[j].CreatedAt) })
	return links, nil
}

// ForReferrer возвращает историю приглашений пользователя
func (s *Service) ForReferrer(ctx context.Context, referrerID string) ([]*models.ReferralLink, error) {
	referrer, err := s.users.GetByID(ctx, referrerID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения пользователя: %w", err)
	}

	referred, err := s.users.ListByUsedCode(ctx, Normalize(referrer.ReferralCode))
	if err != nil {
		return nil, fmt.Errorf("ошибка получения приглашенных: %w", err)
	}

	links := make([]*models.ReferralLink, 0, len(referred))
	for _, u := range referred {
		link, err := s.link(ctx, u, referrer)
		if err != nil {
			return nil, err
		}
		links = append(links, link)
	}
	return links, nil
}

func (s *Service) link(ctx context.Context, u, referrer *models.User) (*models.ReferralLink, error) {
	spend, err := s.canonicalSpend(ctx, u)
	if err != nil {
		return nil, err
	}

	link := &models.ReferralLink{
		ReferredID:    u.ID,
		ReferredName:  u.FullName,
		ReferredEmail: u.Email,
		ReferrerCode:  *u.UsedReferralCode,
		Status:        DeriveStatus(u, spend),
		LastClaimed:   u.LastClaimedReward,
		CreatedAt:     u.CreatedAt,
		ClaimedAt:     u.RewardClaimedAt,
	}
	if referrer != nil {
		link.ReferrerID = referrer.ID
		link.ReferrerName = referrer.FullName
		link.ReferralCount = referrer.ReferralCount
	}
	return link, nil
}

// canonicalSpend считает траты по бронированиям, для старых данных без бронирований берет сохраненную сумму
func (s *Service) canonicalSpend(ctx context.Context, u *models.User) (decimal.Decimal, error) {
	bookings, err := s.bookings.ListByUser(ctx, u.ID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("ошибка получения бронирований: %w", err)
	}
	if len(bookings) == 0 {
		return u.TotalSpent, nil
	}
	return models.SettledSpend(bookings), nil
}
