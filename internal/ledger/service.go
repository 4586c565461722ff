// Package ledger ведет журнал проведенных сумм: одна запись на подтвержденную заявку
package ledger

import (
	"context"
	"errors"
	"fmt"

	"celeb-barber/internal/apperr"
	"celeb-barber/internal/metrics"
	"celeb-barber/internal/store"
	"celeb-barber/pkg/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ListLimit максимальное количество записей в общем списке
const ListLimit = 50

// Service представляет сервис журнала
type Service struct {
	entries  store.LedgerRepository
	bookings store.BookingRepository
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewService создает новый сервис журнала
func NewService(entries store.LedgerRepository, bookings store.BookingRepository, m *metrics.Metrics, logger *zap.Logger) *Service {
	return &Service{
		entries:  entries,
		bookings: bookings,
		metrics:  m,
		logger:   logger,
	}
}

// Record проводит сумму подтвержденной заявки. Повтор с тем же ключом возвращает
// существующую запись и false.
func (s *Service) Record(ctx context.Context, req *models.ApprovalRequest) (*models.LedgerEntry, bool, error) {
	if req.ID == "" {
		return nil, false, apperr.Invalid("не указан ключ заявки")
	}
	if !req.Amount.IsPositive() {
		return nil, false, apperr.Invalid("сумма заявки %s должна быть положительной", req.ID)
	}

	// проверка перед записью, уникальный индекс закрывает оставшуюся гонку
	existing, err := s.entries.GetByApproval(ctx, req.ID)
	if err == nil {
		s.metrics.RecordLedgerWrite(false, req.Type, req.Amount)
		s.logger.Info("запись журнала уже существует",
			zap.String("approval_id", req.ID),
			zap.String("entry_id", existing.ID))
		return existing, false, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return nil, false, fmt.Errorf("ошибка проверки журнала: %w", err)
	}

	entry := &models.LedgerEntry{
		ID:         uuid.NewString(),
		ApprovalID: req.ID,
		BookingID:  req.BookingID,
		UserID:     req.UserID,
		UserEmail:  req.UserEmail,
		UserName:   req.UserName,
		Type:       req.Type,
		Service:    req.Service,
		Amount:     req.Amount,
		Status:     models.LedgerStatusConfirmed,
	}

	created, err := s.entries.Insert(ctx, entry)
	if err != nil {
		return nil, false, fmt.Errorf("ошибка записи в журнал: %w", err)
	}
	s.metrics.RecordLedgerWrite(created, req.Type, req.Amount)

	if !created {
		existing, err := s.entries.GetByApproval(ctx, req.ID)
		if err != nil {
			return nil, false, fmt.Errorf("ошибка чтения журнала: %w", err)
		}
		return existing, false, nil
	}

	s.logger.Info("сумма проведена",
		zap.String("entry_id", entry.ID),
		zap.String("approval_id", req.ID),
		zap.String("user_id", req.UserID),
		zap.String("amount", req.Amount.String()))
	return entry, true, nil
}

// All возвращает последние записи журнала
func (s *Service) All(ctx context.Context) ([]*models.LedgerEntry, error) {
	entries, err := s.entries.List(ctx, ListLimit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения журнала: %w", err)
	}
	return entries, nil
}

// ForUser возвращает записи пользователя
func (s *Service) ForUser(ctx context.Context, userID string) ([]*models.LedgerEntry, error) {
	entries, err := s.entries.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения журнала пользователя: %w", err)
	}
	return entries, nil
}

// UserTotal возвращает сумму записей пользователя и их количество
func (s *Service) UserTotal(ctx context.Context, userID string) (decimal.Decimal, int, error) {
	entries, err := s.ForUser(ctx, userID)
	if err != nil {
		return decimal.Zero, 0, err
	}
	total := decimal.Zero
	for _, e := range entries {
		total = total.Add(e.Amount)
	}
	return total, len(entries), nil
}

// Revenue считает выручку по журналу, при пустом журнале по оплаченным бронированиям
func (s *Service) Revenue(ctx context.Context) (*models.Revenue, error) {
	total, count, err := s.entries.Total(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка подсчета выручки: %w", err)
	}
	if count > 0 {
		return &models.Revenue{Total: total, Entries: count, Source: models.SpendSourceLedger}, nil
	}

	bookings, err := s.bookings.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения бронирований: %w", err)
	}

	settled := 0
	for _, b := range bookings {
		if models.IsSettledBookingStatus(b.Status) {
			settled++
		}
	}

	s.logger.Info("журнал пуст, выручка по бронированиям", zap.Int("bookings", settled))
	return &models.Revenue{
		Total:   models.SettledSpend(bookings),
		Entries: settled,
		Source:  models.SpendSourceBookings,
	}, nil
}

// Correct удаляет ошибочную запись. Только для администратора.
func (s *Service) Correct(ctx context.Context, entryID, actor string) error {
	if err := s.entries.Delete(ctx, entryID); err != nil {
		return fmt.Errorf("ошибка корректировки журнала: %w", err)
	}

	s.logger.Warn("запись журнала удалена корректировкой",
		zap.String("entry_id", entryID),
		zap.String("actor", actor))
	return nil
}
