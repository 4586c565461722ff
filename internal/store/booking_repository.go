package store

import (
	"context"
	"time"

	"celeb-barber/internal/apperr"
	"celeb-barber/pkg/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// BookingRepository интерфейс для работы с бронированиями
type BookingRepository interface {
	Create(ctx context.Context, booking *models.Booking) error
	GetByID(ctx context.Context, id string) (*models.Booking, error)
	ListByUser(ctx context.Context, userID string) ([]*models.Booking, error)
	ListByStatus(ctx context.Context, status string) ([]*models.Booking, error)
	ListAll(ctx context.Context) ([]*models.Booking, error)
	UpdateStatus(ctx context.Context, id, status string) error
	// CompareAndSetStatus меняет статус только из состояния from
	CompareAndSetStatus(ctx context.Context, id, from, to string) (bool, error)
}

// bookingRepository реализует BookingRepository
type bookingRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewBookingRepository создает новый репозиторий бронирований
func NewBookingRepository(db *pgxpool.Pool, logger *zap.Logger) BookingRepository {
	return &bookingRepository{
		db:     db,
		logger: logger,
	}
}

const bookingColumns = `id, user_id, user_email, user_name, service, price, date, notes, receipt, status, created_at, updated_at`

func scanBooking(row pgx.Row) (*models.Booking, error) {
	b := &models.Booking{}
	err := row.Scan(&b.ID, &b.UserID, &b.UserEmail, &b.UserName, &b.Service, &b.Price,
		&b.Date, &b.Notes, &b.Receipt, &b.Status, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (r *bookingRepository) queryBookings(ctx context.Context, op, query string, args ...any) ([]*models.Booking, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, mapErr(op, err)
	}
	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, mapErr(op, err)
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(op, err)
	}
	return bookings, nil
}

// Create сохраняет новое бронирование
func (r *bookingRepository) Create(ctx context.Context, booking *models.Booking) error {
	query := `
		INSERT INTO bookings (id, user_id, user_email, user_name, service, price, date, notes, receipt, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	now := time.Now()
	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = now
	}
	booking.UpdatedAt = now

	_, err := r.db.Exec(ctx, query,
		booking.ID, booking.UserID, booking.UserEmail, booking.UserName, booking.Service, booking.Price,
		booking.Date, booking.Notes, booking.Receipt, booking.Status, booking.CreatedAt, booking.UpdatedAt,
	)
	if err != nil {
		return mapErr("создание бронирования", err)
	}
	return nil
}

// GetByID получает бронирование по ID
func (r *bookingRepository) GetByID(ctx context.Context, id string) (*models.Booking, error) {
	b, err := scanBooking(r.db.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id))
	if err != nil {
		return nil, mapErr("бронирование "+id, err)
	}
	return b, nil
}

// ListByUser возвращает бронирования пользователя, новые первыми
func (r *bookingRepository) ListByUser(ctx context.Context, userID string) ([]*models.Booking, error) {
	return r.queryBookings(ctx, "бронирования пользователя",
		`SELECT `+bookingColumns+` FROM bookings WHERE user_id = $1 ORDER BY created_at DESC`, userID)
}

// ListByStatus возвращает бронирования в указанном статусе
func (r *bookingRepository) ListByStatus(ctx context.Context, status string) ([]*models.Booking, error) {
	return r.queryBookings(ctx, "бронирования по статусу",
		`SELECT `+bookingColumns+` FROM bookings WHERE status = $1 ORDER BY created_at`, status)
}

// ListAll возвращает все бронирования
func (r *bookingRepository) ListAll(ctx context.Context) ([]*models.Booking, error) {
	return r.queryBookings(ctx, "все бронирования",
		`SELECT `+bookingColumns+` FROM bookings ORDER BY created_at DESC`)
}

// UpdateStatus устанавливает статус бронирования
func (r *bookingRepository) UpdateStatus(ctx context.Context, id, status string) error {
	result, err := r.db.Exec(ctx,
		`UPDATE bookings SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	if err != nil {
		return mapErr("обновление статуса бронирования", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound("бронирование %s", id)
	}

	r.logger.Info("статус бронирования обновлен",
		zap.String("booking_id", id),
		zap.String("status", status))
	return nil
}

// CompareAndSetStatus меняет статус только из состояния from
func (r *bookingRepository) CompareAndSetStatus(ctx context.Context, id, from, to string) (bool, error) {
	result, err := r.db.Exec(ctx,
		`UPDATE bookings SET status = $3, updated_at = now() WHERE id = $1 AND status = $2`, id, from, to)
	if err != nil {
		return false, mapErr("смена статуса бронирования", err)
	}
	return result.RowsAffected() == 1, nil
}
