package scheduler

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// MembershipExpirer отзывает истекшие VIP-членства
type MembershipExpirer interface {
	ExpireMemberships(ctx context.Context) (int, error)
}

// BookingHealer возвращает в pending бронирования без ожидающей заявки
type BookingHealer interface {
	HealStale(ctx context.Context) (int, error)
}

// VIPExpiryJob снимает VIP у пользователей с истекшим сроком
type VIPExpiryJob struct {
	memberships MembershipExpirer
	logger      *zap.Logger
}

// NewVIPExpiryJob создает задачу истечения VIP
func NewVIPExpiryJob(memberships MembershipExpirer, logger *zap.Logger) *VIPExpiryJob {
	return &VIPExpiryJob{memberships: memberships, logger: logger}
}

func (j *VIPExpiryJob) Name() string { return "vip_expiry" }

func (j *VIPExpiryJob) Run(ctx context.Context) error {
	revoked, err := j.memberships.ExpireMemberships(ctx)
	if err != nil {
		return fmt.Errorf("ошибка истечения VIP: %w", err)
	}

	if revoked > 0 {
		j.logger.Info("истекшие VIP отозваны", zap.Int("count", revoked))
	}
	return nil
}

// StaleBookingJob возвращает в pending бронирования, потерявшие заявку
type StaleBookingJob struct {
	bookings BookingHealer
	logger   *zap.Logger
}

// NewStaleBookingJob создает задачу лечения бронирований
func NewStaleBookingJob(bookings BookingHealer, logger *zap.Logger) *StaleBookingJob {
	return &StaleBookingJob{bookings: bookings, logger: logger}
}

func (j *StaleBookingJob) Name() string { return "stale_bookings" }

func (j *StaleBookingJob) Run(ctx context.Context) error {
	healed, err := j.bookings.HealStale(ctx)
	if err != nil {
		return fmt.Errorf("ошибка лечения бронирований: %w", err)
	}
	if healed > 0 {
		j.logger.Info("бронирования переведены в итоговый статус", zap.Int("count", healed))
	}
	return nil
}
