// Package approval ведет очередь заявок, через которую оплата бронирований и VIP
// становится проведенной
package approval

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

// PendingLimit максимальное количество заявок в списке ожидающих
const PendingLimit = 20

// DefaultDeclineReason причина отказа, если администратор ее не указал
const DefaultDeclineReason = "Не указана"

// Settler проводит сумму подтвержденной заявки в журнал
type Settler interface {
	Record(ctx context.Context, req *models.ApprovalRequest) (*models.LedgerEntry, bool, error)
}

// BookingConfirmer подтверждает бронирование по заявке
type BookingConfirmer interface {
	Confirm(ctx context.Context, bookingID string) error
}

// Reconciler пересчитывает траты и членство пользователя
type Reconciler interface {
	RecomputeSpend(ctx context.Context, userID string) (decimal.Decimal, error)
	ActivateMembership(ctx context.Context, userID string) (time.Time, error)
}

// PriceSource возвращает текущую цену VIP
type PriceSource interface {
	VIPPrice(ctx context.Context) (decimal.Decimal, error)
}

// Service представляет сервис очереди заявок
type Service struct {
	approvals  store.ApprovalRepository
	users      store.UserRepository
	ledger     Settler
	bookings   BookingConfirmer
	reconciler Reconciler
	prices     PriceSource
	metrics    *metrics.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

// NewService создает новый сервис заявок
func NewService(
	approvals store.ApprovalRepository,
	users store.UserRepository,
	ledger Settler,
	bookings BookingConfirmer,
	reconciler Reconciler,
	prices PriceSource,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Service {
	return &Service{
		approvals:  approvals,
		users:      users,
		ledger:     ledger,
		bookings:   bookings,
		reconciler: reconciler,
		prices:     prices,
		metrics:    m,
		logger:     logger,
		now:        time.Now,
	}
}

// SubmitVIPRequest создает заявку на VIP-членство по текущей цене
func (s *Service) SubmitVIPRequest(ctx context.Context, userID, receipt string) (*models.ApprovalRequest, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения пользователя: %w", err)
	}

	if user.HasActiveVIP(s.now()) {
		s.metrics.RecordVIPRequest(false)
		return nil, apperr.Conflict("пользователь %s уже VIP", userID)
	}

	pending, err := s.approvals.GetPendingVIP(ctx, userID)
	switch {
	case err == nil:
		s.metrics.RecordVIPRequest(false)
		return nil, apperr.Conflict("у пользователя %s уже есть ожидающая VIP-заявка %s", userID, pending.ID)
	case !errors.Is(err, apperr.ErrNotFound):
		return nil, fmt.Errorf("ошибка проверки VIP-заявки: %w", err)
	}

	price, err := s.prices.VIPPrice(ctx)
	if err != nil {
		return nil, err
	}

	req := &models.ApprovalRequest{
		ID:        uuid.NewString(),
		Type:      models.ApprovalTypeVIP,
		UserID:    user.ID,
		UserEmail: user.Email,
		UserName:  user.FullName,
		Service:   "VIP Membership",
		Amount:    price,
		Receipt:   receipt,
		Status:    models.ApprovalStatusPending,
		CreatedAt: s.now(),
	}

	if err := s.approvals.Create(ctx, req); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			s.metrics.RecordVIPRequest(false)
		}
		return nil, fmt.Errorf("ошибка создания VIP-заявки: %w", err)
	}

	s.metrics.RecordVIPRequest(true)
	s.logger.Info("VIP-заявка создана",
		zap.String("approval_id", req.ID),
		zap.String("user_id", userID),
		zap.String("amount", price.String()))
	return req, nil
}

// Resolve принимает решение по заявке. Повторное решение уже решенной заявки ничего не меняет.
func (s *Service) Resolve(ctx context.Context, id, outcome, actor, reason string) (*models.ApprovalRequest, error) {
	if outcome != models.ApprovalStatusConfirmed && outcome != models.ApprovalStatusDeclined {
		return nil, apperr.Invalid("неизвестное решение %q", outcome)
	}
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return nil, apperr.Invalid("не указан администратор")
	}

	req, err := s.approvals.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения заявки: %w", err)
	}

	if req.IsResolved() {
		s.metrics.RecordResolution(req.Type, "noop")
		s.logger.Info("заявка уже решена",
			zap.String("approval_id", id),
			zap.String("status", req.Status))
		return req, nil
	}

	if outcome == models.ApprovalStatusDeclined {
		return s.decline(ctx, req, actor, reason)
	}
	return s.confirm(ctx, req, actor)
}

// confirm проводит заявку. Каждый шаг идемпотентен, статус меняется последним,
// поэтому прерванное подтверждение можно безопасно повторить.
func (s *Service) confirm(ctx context.Context, req *models.ApprovalRequest, actor string) (*models.ApprovalRequest, error) {
	// бронирование раньше журнала: отмененное не должно попасть в выручку
	if req.Type == models.ApprovalTypeBooking && req.BookingID != nil {
		if err := s.bookings.Confirm(ctx, *req.BookingID); err != nil {
			return nil, err
		}
	}

	if _, _, err := s.ledger.Record(ctx, req); err != nil {
		return nil, err
	}

	if _, err := s.reconciler.RecomputeSpend(ctx, req.UserID); err != nil {
		return nil, err
	}
	if req.Type == models.ApprovalTypeVIP {
		if _, err := s.reconciler.ActivateMembership(ctx, req.UserID); err != nil {
			return nil, err
		}
	}

	return s.finish(ctx, req, models.ApprovalStatusConfirmed, actor, nil)
}

func (s *Service) decline(ctx context.Context, req *models.ApprovalRequest, actor, reason string) (*models.ApprovalRequest, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = DefaultDeclineReason
	}
	return s.finish(ctx, req, models.ApprovalStatusDeclined, actor, &reason)
}

// finish переводит заявку из pending в итоговый статус
func (s *Service) finish(ctx context.Context, req *models.ApprovalRequest, status, actor string, reason *string) (*models.ApprovalRequest, error) {
	at := s.now()
	changed, err := s.approvals.Resolve(ctx, req.ID, status, actor, reason, at)
	if err != nil {
		return nil, fmt.Errorf("ошибка сохранения решения: %w", err)
	}

	if !changed {
		current, err := s.approvals.GetByID(ctx, req.ID)
		if err != nil {
			return nil, fmt.Errorf("ошибка получения заявки: %w", err)
		}
		if current.Status != status {
			s.logger.Error("заявка решена параллельно с другим итогом",
				zap.String("approval_id", req.ID),
				zap.String("requested", status),
				zap.String("status", current.Status))
		}
		s.metrics.RecordResolution(req.Type, "noop")
		return current, nil
	}

	req.Status = status
	req.ResolvedBy = &actor
	req.ResolvedAt = &at
	req.DeclineReason = reason

	s.metrics.RecordResolution(req.Type, status)
	s.logger.Info("решение по заявке принято",
		zap.String("approval_id", req.ID),
		zap.String("type", req.Type),
		zap.String("user_id", req.UserID),
		zap.String("status", status),
		zap.String("actor", actor))
	return req, nil
}

// ListPending возвращает ожидающие заявки, старые первыми
func (s *Service) ListPending(ctx context.Context) ([]*models.ApprovalRequest, error) {
	requests, err := s.approvals.ListPending(ctx, PendingLimit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения заявок: %w", err)
	}
	s.metrics.SetGauge("pending_approvals", float64(len(requests)))
	return requests, nil
}

// Get возвращает заявку по ID
func (s *Service) Get(ctx context.Context, id string) (*models.ApprovalRequest, error) {
	req, err := s.approvals.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения заявки: %w", err)
	}
	return req, nil
}
