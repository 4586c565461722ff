package store

import (
	"context"
	"time"

	"celeb-barber/pkg/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// ApprovalRepository интерфейс для работы с заявками
type ApprovalRepository interface {
	Create(ctx context.Context, req *models.ApprovalRequest) error
	GetByID(ctx context.Context, id string) (*models.ApprovalRequest, error)
	GetPendingVIP(ctx context.Context, userID string) (*models.ApprovalRequest, error)
	GetPendingByBooking(ctx context.Context, bookingID string) (*models.ApprovalRequest, error)
	ListPending(ctx context.Context, limit int) ([]*models.ApprovalRequest, error)
	// Resolve переводит заявку из pending в итоговый статус. false, если заявка уже решена.
	Resolve(ctx context.Context, id, status, actor string, reason *string, at time.Time) (bool, error)
	DeletePendingByBooking(ctx context.Context, bookingID string) (int64, error)
}

// approvalRepository реализует ApprovalRepository
type approvalRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewApprovalRepository создает новый репозиторий заявок
func NewApprovalRepository(db *pgxpool.Pool, logger *zap.Logger) ApprovalRepository {
	return &approvalRepository{
		db:     db,
		logger: logger,
	}
}

const approvalColumns = `id, type, user_id, user_email, user_name, service, amount, booking_id, receipt, status,
	created_at, resolved_at, resolved_by, decline_reason`

func scanApproval(row pgx.Row) (*models.ApprovalRequest, error) {
	a := &models.ApprovalRequest{}
	err := row.Scan(&a.ID, &a.Type, &a.UserID, &a.UserEmail, &a.UserName, &a.Service, &a.Amount, &a.BookingID,
		&a.Receipt, &a.Status, &a.CreatedAt, &a.ResolvedAt, &a.ResolvedBy, &a.DeclineReason)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Create сохраняет заявку. Вторая ожидающая заявка того же вида дает Conflict.
func (r *approvalRepository) Create(ctx context.Context, req *models.ApprovalRequest) error {
	query := `
		INSERT INTO approval_requests (id, type, user_id, user_email, user_name, service, amount, booking_id, receipt, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now()
	}

	_, err := r.db.Exec(ctx, query,
		req.ID, req.Type, req.UserID, req.UserEmail, req.UserName, req.Service, req.Amount,
		req.BookingID, req.Receipt, req.Status, req.CreatedAt,
	)
	if err != nil {
		return mapErr("создание заявки", err)
	}

	r.logger.Info("заявка создана",
		zap.String("approval_id", req.ID),
		zap.String("type", req.Type),
		zap.String("user_id", req.UserID))
	return nil
}

// GetByID получает заявку по ID
func (r *approvalRepository) GetByID(ctx context.Context, id string) (*models.ApprovalRequest, error) {
	a, err := scanApproval(r.db.QueryRow(ctx, `SELECT `+approvalColumns+` FROM approval_requests WHERE id = $1`, id))
	if err != nil {
		return nil, mapErr("заявка "+id, err)
	}
	return a, nil
}

// GetPendingVIP получает ожидающую VIP-заявку пользователя
func (r *approvalRepository) GetPendingVIP(ctx context.Context, userID string) (*models.ApprovalRequest, error) {
	query := `SELECT ` + approvalColumns + ` FROM approval_requests
		WHERE user_id = $1 AND type = $2 AND status = $3 LIMIT 1`
	a, err := scanApproval(r.db.QueryRow(ctx, query, userID, models.ApprovalTypeVIP, models.ApprovalStatusPending))
	if err != nil {
		return nil, mapErr("ожидающая VIP-заявка", err)
	}
	return a, nil
}

// GetPendingByBooking получает ожидающую заявку по бронированию
func (r *approvalRepository) GetPendingByBooking(ctx context.Context, bookingID string) (*models.ApprovalRequest, error) {
	query := `SELECT ` + approvalColumns + ` FROM approval_requests
		WHERE booking_id = $1 AND status = $2 LIMIT 1`
	a, err := scanApproval(r.db.QueryRow(ctx, query, bookingID, models.ApprovalStatusPending))
	if err != nil {
		return nil, mapErr("ожидающая заявка бронирования", err)
	}
	return a, nil
}

// ListPending возвращает ожидающие заявки, старые первыми
func (r *approvalRepository) ListPending(ctx context.Context, limit int) ([]*models.ApprovalRequest, error) {
	query := `SELECT ` + approvalColumns + ` FROM approval_requests
		WHERE status = $1 ORDER BY created_at LIMIT $2`

	rows, err := r.db.Query(ctx, query, models.ApprovalStatusPending, limit)
	if err != nil {
		return nil, mapErr("список заявок", err)
	}
	defer rows.Close()

	var requests []*models.ApprovalRequest
	for rows.Next() {
		a, err := scanApproval(rows)
		if err != nil {
			return nil, mapErr("список заявок", err)
		}
		requests = append(requests, a)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr("список заявок", err)
	}
	return requests, nil
}

// Resolve переводит заявку из pending в итоговый статус
func (r *approvalRepository) Resolve(ctx context.Context, id, status, actor string, reason *string, at time.Time) (bool, error) {
	query := `
		UPDATE approval_requests
		SET status = $2, resolved_by = $3, decline_reason = $4, resolved_at = $5
		WHERE id = $1 AND status = $6`

	result, err := r.db.Exec(ctx, query, id, status, actor, reason, at, models.ApprovalStatusPending)
	if err != nil {
		return false, mapErr("решение по заявке", err)
	}
	return result.RowsAffected() == 1, nil
}

// DeletePendingByBooking удаляет ожидающие заявки бронирования
func (r *approvalRepository) DeletePendingByBooking(ctx context.Context, bookingID string) (int64, error) {
	result, err := r.db.Exec(ctx,
		`DELETE FROM approval_requests WHERE booking_id = $1 AND status = $2`, bookingID, models.ApprovalStatusPending)
	if err != nil {
		return 0, mapErr("удаление заявок бронирования", err)
	}
	return result.RowsAffected(), nil
}
