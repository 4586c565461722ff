package store

import (
	"context"
	"time"

	"celeb-barber/internal/apperr"
	"celeb-barber/pkg/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// LedgerRepository интерфейс для работы с журналом проведенных сумм
type LedgerRepository interface {
	// Insert добавляет запись. false, если запись с таким approval_id уже есть.
	Insert(ctx context.Context, entry *models.LedgerEntry) (bool, error)
	GetByApproval(ctx context.Context, approvalID string) (*models.LedgerEntry, error)
	List(ctx context.Context, limit int) ([]*models.LedgerEntry, error)
	ListByUser(ctx context.Context, userID string) ([]*models.LedgerEntry, error)
	Total(ctx context.Context) (decimal.Decimal, int, error)
	Delete(ctx context.Context, id string) error
}

// ledgerRepository реализует LedgerRepository
type ledgerRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewLedgerRepository создает новый репозиторий журнала
func NewLedgerRepository(db *pgxpool.Pool, logger *zap.Logger) LedgerRepository {
	return &ledgerRepository{
		db:     db,
		logger: logger,
	}
}

const ledgerColumns = `id, approval_id, booking_id, user_id, user_email, user_name, type, service, amount, status, created_at`

func scanLedgerEntry(row pgx.Row) (*models.LedgerEntry, error) {
	e := &models.LedgerEntry{}
	err := row.Scan(&e.ID, &e.ApprovalID, &e.BookingID, &e.UserID, &e.UserEmail, &e.UserName,
		&e.Type, &e.Service, &e.Amount, &e.Status, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (r *ledgerRepository) queryEntries(ctx context.Context, op, query string, args ...any) ([]*models.LedgerEntry, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, mapErr(op, err)
	}
	defer rows.Close()

	var entries []*models.LedgerEntry
	for rows.Next() {
		e, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, mapErr(op, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(op, err)
	}
	return entries, nil
}

// Insert добавляет запись, уникальный индекс по approval_id отсекает повтор
func (r *ledgerRepository) Insert(ctx context.Context, entry *models.LedgerEntry) (bool, error) {
	query := `
		INSERT INTO ledger_entries (id, approval_id, booking_id, user_id, user_email, user_name, type, service, amount, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (approval_id) DO NOTHING`

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	result, err := r.db.Exec(ctx, query,
		entry.ID, entry.ApprovalID, entry.BookingID, entry.UserID, entry.UserEmail, entry.UserName,
		entry.Type, entry.Service, entry.Amount, entry.Status, entry.CreatedAt,
	)
	if err != nil {
		return false, mapErr("запись в журнал", err)
	}
	return result.RowsAffected() == 1, nil
}

// GetByApproval получает запись по ключу заявки
func (r *ledgerRepository) GetByApproval(ctx context.Context, approvalID string) (*models.LedgerEntry, error) {
	e, err := scanLedgerEntry(r.db.QueryRow(ctx,
		`SELECT `+ledgerColumns+` FROM ledger_entries WHERE approval_id = $1`, approvalID))
	if err != nil {
		return nil, mapErr("запись журнала по заявке "+approvalID, err)
	}
	return e, nil
}

// List возвращает последние записи, новые первыми
func (r *ledgerRepository) List(ctx context.Context, limit int) ([]*models.LedgerEntry, error) {
	return r.queryEntries(ctx, "журнал",
		`SELECT `+ledgerColumns+` FROM ledger_entries ORDER BY created_at DESC LIMIT $1`, limit)
}

// ListByUser возвращает записи пользователя
func (r *ledgerRepository) ListByUser(ctx context.Context, userID string) ([]*models.LedgerEntry, error) {
	return r.queryEntries(ctx, "журнал пользователя",
		`SELECT `+ledgerColumns+` FROM ledger_entries WHERE user_id = $1 ORDER BY created_at DESC`, userID)
}

// Total возвращает сумму и количество записей журнала
func (r *ledgerRepository) Total(ctx context.Context) (decimal.Decimal, int, error) {
	var (
		total decimal.Decimal
		count int
	)
	err := r.db.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0), COUNT(*) FROM ledger_entries`).Scan(&total, &count)
	if err != nil {
		return decimal.Zero, 0, mapErr("сумма журнала", err)
	}
	return total, count, nil
}

// Delete удаляет запись при административной корректировке
func (r *ledgerRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM ledger_entries WHERE id = $1`, id)
	if err != nil {
		return mapErr("удаление записи журнала", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound("запись журнала %s", id)
	}

	r.logger.Warn("запись журнала удалена", zap.String("entry_id", id))
	return nil
}
