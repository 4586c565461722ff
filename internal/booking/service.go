// Package booking управляет жизненным циклом бронирований и их связью с очередью заявок
package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"celeb-barber/internal/apperr"
	"celeb-barber/internal/metrics"
	"celeb-barber/internal/store"
	"celeb-barber/pkg/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// casAttempts сколько раз повторять смену статуса при параллельной записи
const casAttempts = 3

// Итоги прямого решения по бронированию
const (
	OutcomeApprove = "approve"
	OutcomeCancel  = "cancel"
)

// SpendRecomputer пересчитывает траты пользователя после смены статуса
type SpendRecomputer interface {
	RecomputeSpend(ctx context.Context, userID string) (decimal.Decimal, error)
}

// Service представляет сервис бронирований
type Service struct {
	bookings  store.BookingRepository
	approvals store.ApprovalRepository
	users     store.UserRepository
	spend     SpendRecomputer
	metrics   *metrics.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

// NewService создает новый сервис бронирований
func NewService(
	bookings store.BookingRepository,
	approvals store.ApprovalRepository,
	users store.UserRepository,
	spend SpendRecomputer,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Service {
	return &Service{
		bookings:  bookings,
		approvals: approvals,
		users:     users,
		spend:     spend,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
}

// Create создает бронирование в статусе pending
func (s *Service) Create(ctx context.Context, req *models.CreateBookingRequest) (*models.Booking, error) {
	service := strings.TrimSpace(req.Service)
	switch {
	case req.UserID == "":
		return nil, apperr.Invalid("не указан пользователь")
	case service == "":
		return nil, apperr.Invalid("не указана услуга")
	case strings.TrimSpace(req.Date) == "":
		return nil, apperr.Invalid("не указана дата")
	case !req.Price.IsPositive():
		return nil, apperr.Invalid("цена должна быть положительной")
	}

	user, err := s.users.GetByID(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения пользователя: %w", err)
	}

	b := &models.Booking{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		UserEmail: user.Email,
		UserName:  user.FullName,
		Service:   service,
		Price:     req.Price,
		Date:      strings.TrimSpace(req.Date),
		Notes:     req.Notes,
		Receipt:   req.Receipt,
		Status:    models.BookingStatusPending,
		CreatedAt: s.now(),
	}

	if err := s.bookings.Create(ctx, b); err != nil {
		return nil, fmt.Errorf("ошибка создания бронирования: %w", err)
	}

	s.metrics.RecordBooking("created")
	s.logger.Info("бронирование создано",
		zap.String("booking_id", b.ID),
		zap.String("user_id", b.UserID),
		zap.String("service", b.Service),
		zap.String("price", b.Price.String()))
	return b, nil
}

// Get возвращает бронирование, исправляя зависший статус pending_approval
func (s *Service) Get(ctx context.Context, id string) (*models.Booking, error) {
	b, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения бронирования: %w", err)
	}
	if err := s.heal(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

// ListForUser возвращает бронирования пользователя, новые первыми
func (s *Service) ListForUser(ctx context.Context, userID string) ([]*models.Booking, error) {
	bookings, err := s.bookings.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения бронирований: %w", err)
	}
	for _, b := range bookings {
		if err := s.heal(ctx, b); err != nil {
			return nil, err
		}
	}
	return bookings, nil
}

// HealStale исправляет все бронирования, застрявшие в pending_approval без заявки
func (s *Service) HealStale(ctx context.Context) (int, error) {
	stale, err := s.bookings.ListByStatus(ctx, models.BookingStatusPendingApproval)
	if err != nil {
		return 0, fmt.Errorf("ошибка получения бронирований: %w", err)
	}

	healed := 0
	for _, b := range stale {
		if err := s.heal(ctx, b); err != nil {
			s.logger.Error("ошибка исправления бронирования", zap.Error(err), zap.String("booking_id", b.ID))
			continue
		}
		if b.Status == models.BookingStatusPending {
			healed++
		}
	}
	return healed, nil
}

// heal возвращает бронирование в pending, если ожидающей заявки для него нет
func (s *Service) heal(ctx context.Context, b *models.Booking) error {
	if b.Status != models.BookingStatusPendingApproval {
		return nil
	}

	_, err := s.approvals.GetPendingByBooking(ctx, b.ID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return fmt.Errorf("ошибка проверки заявки бронирования: %w", err)
	}

	changed, err := s.bookings.CompareAndSetStatus(ctx, b.ID, models.BookingStatusPendingApproval, models.BookingStatusPending)
	if err != nil {
		return fmt.Errorf("ошибка исправления статуса: %w", err)
	}
	if changed {
		b.Status = models.BookingStatusPending
		s.metrics.RecordBooking("healed")
		s.logger.Warn("бронирование без заявки возвращено в pending", zap.String("booking_id", b.ID))
		return nil
	}

	// статус успели изменить, перечитываем
	fresh, err := s.bookings.GetByID(ctx, b.ID)
	if err != nil {
		return fmt.Errorf("ошибка получения бронирования: %w", err)
	}
	*b = *fresh
	return nil
}

// QueueForApproval ставит бронирование в очередь на подтверждение оплаты.
// Повторный вызов возвращает уже созданную заявку.
func (s *Service) QueueForApproval(ctx context.Context, bookingID, receipt string) (*models.ApprovalRequest, error) {
	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения бронирования: %w", err)
	}
	if b.Status != models.BookingStatusPending && b.Status != models.BookingStatusPendingApproval {
		return nil, apperr.Conflict("бронирование %s в статусе %s нельзя отправить на подтверждение", b.ID, b.Status)
	}

	existing, err := s.approvals.GetPendingByBooking(ctx, b.ID)
	switch {
	case err == nil:
		if err := s.markQueued(ctx, b); err != nil {
			return nil, err
		}
		s.logger.Info("заявка по бронированию уже существует",
			zap.String("booking_id", b.ID),
			zap.String("approval_id", existing.ID))
		return existing, nil
	case !errors.Is(err, apperr.ErrNotFound):
		return nil, fmt.Errorf("ошибка проверки заявки бронирования: %w", err)
	}

	if !b.Price.IsPositive() {
		return nil, apperr.Invalid("цена бронирования %s должна быть положительной", b.ID)
	}
	if receipt == "" {
		receipt = b.Receipt
	}

	bookingRef := b.ID
	req := &models.ApprovalRequest{
		ID:        uuid.NewString(),
		Type:      models.ApprovalTypeBooking,
		UserID:    b.UserID,
		UserEmail: b.UserEmail,
		UserName:  b.UserName,
		Service:   b.Service,
		Amount:    b.Price,
		BookingID: &bookingRef,
		Receipt:   receipt,
		Status:    models.ApprovalStatusPending,
		CreatedAt: s.now(),
	}

	// сначала заявка, потом статус: сбой между шагами исправляется повтором или heal
	if err := s.approvals.Create(ctx, req); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			// параллельный вызов успел создать заявку
			if winner, getErr := s.approvals.GetPendingByBooking(ctx, b.ID); getErr == nil {
				return winner, s.markQueued(ctx, b)
			}
		}
		return nil, fmt.Errorf("ошибка создания заявки: %w", err)
	}

	if err := s.markQueued(ctx, b); err != nil {
		return nil, err
	}

	s.metrics.RecordBooking("queued")
	s.logger.Info("бронирование отправлено на подтверждение",
		zap.String("booking_id", b.ID),
		zap.String("approval_id", req.ID))
	return req, nil
}

// markQueued переводит бронирование в pending_approval после создания заявки.
// Если бронирование успели завершить, заявка удаляется.
func (s *Service) markQueued(ctx context.Context, b *models.Booking) error {
	for attempt := 0; attempt < casAttempts; attempt++ {
		switch {
		case b.Status == models.BookingStatusPendingApproval:
			return nil
		case terminalStatus(b.Status) != "":
			if _, err := s.approvals.DeletePendingByBooking(ctx, b.ID); err != nil {
				return fmt.Errorf("ошибка удаления заявок бронирования: %w", err)
			}
			s.logger.Warn("бронирование завершено во время постановки в очередь",
				zap.String("booking_id", b.ID),
				zap.String("status", b.Status))
			return apperr.Conflict("бронирование %s уже в статусе %s", b.ID, b.Status)
		}

		changed, err := s.bookings.CompareAndSetStatus(ctx, b.ID, b.Status, models.BookingStatusPendingApproval)
		if err != nil {
			return fmt.Errorf("ошибка смены статуса бронирования: %w", err)
		}
		if changed {
			b.Status = models.BookingStatusPendingApproval
			return nil
		}

		fresh, err := s.bookings.GetByID(ctx, b.ID)
		if err != nil {
			return fmt.Errorf("ошибка получения бронирования: %w", err)
		}
		*b = *fresh
	}
	return apperr.Conflict("статус бронирования %s меняется параллельно", b.ID)
}

// Finalize напрямую подтверждает или отменяет бронирование. Журнал не пишется,
// ожидающие заявки по бронированию удаляются.
func (s *Service) Finalize(ctx context.Context, bookingID, outcome string) (*models.Booking, error) {
	var target string
	switch outcome {
	case OutcomeApprove:
		target = models.BookingStatusConfirmed
	case OutcomeCancel:
		target = models.BookingStatusCancelled
	default:
		return nil, apperr.Invalid("неизвестное решение %q", outcome)
	}

	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения бронирования: %w", err)
	}

	if current := terminalStatus(b.Status); current != "" && current != target {
		return nil, apperr.Conflict("бронирование %s уже в статусе %s", b.ID, b.Status)
	}

	// сначала заявки: подтверждение по ним не должно пережить отмену
	deleted, err := s.approvals.DeletePendingByBooking(ctx, b.ID)
	if err != nil {
		return nil, fmt.Errorf("ошибка удаления заявок бронирования: %w", err)
	}

	b, changed, err := s.settle(ctx, bookingID, target)
	if err != nil {
		return nil, err
	}

	if _, err := s.spend.RecomputeSpend(ctx, b.UserID); err != nil {
		return nil, fmt.Errorf("ошибка пересчета трат: %w", err)
	}

	s.logger.Info("бронирование завершено",
		zap.String("booking_id", b.ID),
		zap.String("status", b.Status),
		zap.Bool("changed", changed),
		zap.Int64("deleted_requests", deleted))
	return b, nil
}

// Confirm переводит бронирование в confirmed после подтверждения заявки.
// Отмененное бронирование подтвердить нельзя, возвращается Conflict.
func (s *Service) Confirm(ctx context.Context, bookingID string) error {
	_, _, err := s.settle(ctx, bookingID, models.BookingStatusConfirmed)
	if errors.Is(err, apperr.ErrNotFound) {
		s.logger.Warn("бронирование подтвержденной заявки не найдено", zap.String("booking_id", bookingID))
		return nil
	}
	return err
}

// settle переводит бронирование из pending или pending_approval в итоговый статус.
// Уже достигнутый итог возвращается без записи.
func (s *Service) settle(ctx context.Context, bookingID, target string) (*models.Booking, bool, error) {
	for attempt := 0; attempt < casAttempts; attempt++ {
		b, err := s.bookings.GetByID(ctx, bookingID)
		if err != nil {
			return nil, false, fmt.Errorf("ошибка получения бронирования: %w", err)
		}

		switch current := terminalStatus(b.Status); {
		case current == target:
			return b, false, nil
		case current != "":
			return nil, false, apperr.Conflict("бронирование %s уже в статусе %s", b.ID, b.Status)
		}

		changed, err := s.bookings.CompareAndSetStatus(ctx, b.ID, b.Status, target)
		if err != nil {
			return nil, false, fmt.Errorf("ошибка смены статуса бронирования: %w", err)
		}
		if changed {
			b.Status = target
			s.metrics.RecordBooking(target)
			return b, true, nil
		}
	}
	return nil, false, apperr.Conflict("статус бронирования %s меняется параллельно", bookingID)
}

// terminalStatus сводит итоговые статусы, включая старые, к confirmed или cancelled
func terminalStatus(status string) string {
	switch {
	case models.IsSettledBookingStatus(status):
		return models.BookingStatusConfirmed
	case status == models.BookingStatusCancelled:
		return models.BookingStatusCancelled
	default:
		return ""
	}
}
