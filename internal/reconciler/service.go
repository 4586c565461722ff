// Package reconciler пересчитывает траты пользователя и окно VIP-членства
package reconciler

import (
	"context"
	"fmt"
	"time"

	"celeb-barber/internal/apperr"
	"celeb-barber/internal/metrics"
	"celeb-barber/internal/store"
	"celeb-barber/pkg/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ReferralCreditor засчитывает успешное приглашение
type ReferralCreditor interface {
	CreditSuccessful(ctx context.Context, referredID string) (bool, error)
}

// LedgerTotals возвращает сумму журнала пользователя
type LedgerTotals interface {
	UserTotal(ctx context.Context, userID string) (decimal.Decimal, int, error)
}

// Membership описывает VIP-пользователя для списка персонала
type Membership struct {
	User         *models.User  `json:"user"`
	Remaining    time.Duration `json:"remaining"`
	ExpiringSoon bool          `json:"expiring_soon"`
}

// Result описывает пересчет суммы трат одного пользователя
type Result struct {
	UserID   string          `json:"user_id"`
	Stored   decimal.Decimal `json:"stored"`
	Computed decimal.Decimal `json:"computed"`
	Changed  bool            `json:"changed"`
}

// Service представляет сервис сверки трат и членства
type Service struct {
	users     store.UserRepository
	bookings  store.BookingRepository
	ledger    LedgerTotals
	referrals ReferralCreditor
	period    time.Duration
	metrics   *metrics.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

// NewService создает новый сервис сверки. periodDays задает длительность VIP-членства.
func NewService(
	users store.UserRepository,
	bookings store.BookingRepository,
	ledger LedgerTotals,
	referrals ReferralCreditor,
	periodDays int,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Service {
	return &Service{
		users:     users,
		bookings:  bookings,
		ledger:    ledger,
		referrals: referrals,
		period:    time.Duration(periodDays) * 24 * time.Hour,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
}

// RecomputeSpend пересчитывает total_spent из бронирований пользователя
func (s *Service) RecomputeSpend(ctx context.Context, userID string) (decimal.Decimal, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("ошибка получения пользователя: %w", err)
	}

	bookings, err := s.bookings.ListByUser(ctx, userID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("ошибка получения бронирований: %w", err)
	}

	total := models.SettledSpend(bookings)
	if !total.Equal(user.TotalSpent) {
		if err := s.users.SetTotalSpent(ctx, userID, total); err != nil {
			return decimal.Zero, fmt.Errorf("ошибка сохранения суммы трат: %w", err)
		}
		s.logger.Info("сумма трат пересчитана",
			zap.String("user_id", userID),
			zap.String("previous", user.TotalSpent.String()),
			zap.String("total_spent", total.String()))
	}

	if total.IsPositive() && user.UsedReferralCode != nil && !user.ReferralCredited && s.referrals != nil {
		if _, err := s.referrals.CreditSuccessful(ctx, userID); err != nil {
			return total, fmt.Errorf("ошибка зачета приглашения: %w", err)
		}
	}

	return total, nil
}

// GetUserSpend возвращает сумму трат для отображения: бронирования, затем журнал,
// затем сохраненное значение
func (s *Service) GetUserSpend(ctx context.Context, userID string) (*models.SpendSummary, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения пользователя: %w", err)
	}

	bookings, err := s.bookings.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения бронирований: %w", err)
	}
	if len(bookings) > 0 {
		return &models.SpendSummary{
			UserID:     userID,
			TotalSpent: models.SettledSpend(bookings),
			Source:     models.SpendSourceBookings,
		}, nil
	}

	total, count, err := s.ledger.UserTotal(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения журнала: %w", err)
	}
	if count > 0 {
		return &models.SpendSummary{UserID: userID, TotalSpent: total, Source: models.SpendSourceLedger}, nil
	}

	return &models.SpendSummary{UserID: userID, TotalSpent: user.TotalSpent, Source: models.SpendSourceStored}, nil
}

// ActivateMembership включает VIP на период от текущего момента
func (s *Service) ActivateMembership(ctx context.Context, userID string) (time.Time, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return time.Time{}, fmt.Errorf("ошибка получения пользователя: %w", err)
	}

	now := s.now().UTC()
	expires := now.Add(s.period)
	since := now
	if user.HasActiveVIP(now) && user.VIPSince != nil {
		since = *user.VIPSince
	}

	if err := s.users.SetVIP(ctx, userID, true, &since, &expires); err != nil {
		return time.Time{}, fmt.Errorf("ошибка активации VIP: %w", err)
	}

	s.logger.Info("VIP активирован",
		zap.String("user_id", userID),
		zap.Time("vip_expires", expires))
	return expires, nil
}

// GiftDays продлевает VIP на days дней. Истекший срок отсчитывается от текущего момента.
func (s *Service) GiftDays(ctx context.Context, userID string, days int) (time.Time, error) {
	if days <= 0 {
		return time.Time{}, apperr.Invalid("количество дней должно быть положительным: %d", days)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return time.Time{}, fmt.Errorf("ошибка получения пользователя: %w", err)
	}

	now := s.now().UTC()
	expires := ExtendExpiry(user.VIPExpires, now, s.period, days)

	if err := s.users.SetVIPExpiry(ctx, userID, expires); err != nil {
		return time.Time{}, fmt.Errorf("ошибка продления VIP: %w", err)
	}

	s.logger.Info("VIP продлен",
		zap.String("user_id", userID),
		zap.Int("days", days),
		zap.Time("vip_expires", expires))
	return expires, nil
}

// ExtendExpiry вычисляет новый срок: без срока база now+period, истекший срок база now
func ExtendExpiry(current *time.Time, now time.Time, period time.Duration, days int) time.Time {
	var baseline time.Time
	switch {
	case current == nil:
		baseline = now.Add(period)
	case current.Before(now):
		baseline = now
	default:
		baseline = *current
	}
	return baseline.AddDate(0, 0, days)
}

// Revoke снимает флаг VIP и срок членства
func (s *Service) Revoke(ctx context.Context, userID string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("ошибка получения пользователя: %w", err)
	}

	if err := s.users.SetVIP(ctx, userID, false, user.VIPSince, nil); err != nil {
		return fmt.Errorf("ошибка отзыва VIP: %w", err)
	}

	s.logger.Info("VIP отозван", zap.String("user_id", userID))
	return nil
}

// ExpireMemberships отзывает VIP у пользователей с истекшим сроком
func (s *Service) ExpireMemberships(ctx context.Context) (int, error) {
	expired, err := s.users.ListExpiredVIP(ctx, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("ошибка получения истекших VIP: %w", err)
	}

	revoked := 0
	for _, u := range expired {
		if err := s.Revoke(ctx, u.ID); err != nil {
			s.logger.Error("ошибка отзыва истекшего VIP", zap.Error(err), zap.String("user_id", u.ID))
			continue
		}
		revoked++
	}
	return revoked, nil
}

// Memberships возвращает VIP-пользователей с оставшимся сроком
func (s *Service) Memberships(ctx context.Context) ([]*Membership, error) {
	users, err := s.users.ListVIP(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения VIP: %w", err)
	}

	now := s.now().UTC()
	result := make([]*Membership, 0, len(users))
	for _, u := range users {
		m := &Membership{User: u}
		if u.VIPExpires != nil {
			m.Remaining = u.VIPExpires.Sub(now)
			m.ExpiringSoon = m.Remaining < 24*time.Hour
		}
		result = append(result, m)
	}

	s.metrics.SetGauge("active_vips", float64(len(result)))
	return result, nil
}

// Reconcile пересчитывает траты указанных пользователей или всех, если список пуст.
// При dryRun ничего не сохраняет.
func (s *Service) Reconcile(ctx context.Context, userIDs []string, dryRun bool) ([]Result, error) {
	var users []*models.User
	if len(userIDs) == 0 {
		all, err := s.users.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("ошибка получения пользователей: %w", err)
		}
		users = all
	} else {
		for _, id := range userIDs {
			u, err := s.users.GetByID(ctx, id)
			if err != nil {
				return nil, fmt.Errorf("ошибка получения пользователя: %w", err)
			}
			users = append(users, u)
		}
	}

	results := make([]Result, 0, len(users))
	for _, u := range users {
		bookings, err := s.bookings.ListByUser(ctx, u.ID)
		if err != nil {
			return results, fmt.Errorf("ошибка получения бронирований: %w", err)
		}

		r := Result{UserID: u.ID, Stored: u.TotalSpent, Computed: models.SettledSpend(bookings)}
		r.Changed = !r.Stored.Equal(r.Computed)

		if !dryRun {
			if _, err := s.RecomputeSpend(ctx, u.ID); err != nil {
				return results, err
			}
		}
		results = append(results, r)
	}

	return results, nil
}
