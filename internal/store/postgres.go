package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"celeb-barber/internal/apperr"
	"celeb-barber/internal/config"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// uniqueViolation код ошибки PostgreSQL при нарушении уникальности
const uniqueViolation = "23505"

// Store представляет интерфейс для работы с базой данных
type Store interface {
	User() UserRepository
	Booking() BookingRepository
	Approval() ApprovalRepository
	Ledger() LedgerRepository
	Settings() SettingsRepository
	Identity() IdentityRepository
	Ping(ctx context.Context) error
	Close() error
}

// store реализует интерфейс Store
type store struct {
	db       *pgxpool.Pool
	logger   *zap.Logger
	user     UserRepository
	booking  BookingRepository
	approval ApprovalRepository
	ledger   LedgerRepository
	settings SettingsRepository
	identity IdentityRepository
}

// NewStore создает новое подключение к базе данных
func NewStore(cfg *config.Config, logger *zap.Logger) (Store, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Создание пула подключений
	poolConfig, err := pgxpool.ParseConfig(cfg.Database.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("ошибка парсинга DSN: %w", err)
	}

	// Настройка пула
	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	db, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к базе данных: %w", err)
	}

	if err := db.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ошибка проверки подключения к базе данных: %w", err)
	}

	logger.Info("успешное подключение к базе данных PostgreSQL")

	s := &store{
		db:     db,
		logger: logger,
	}

	// Инициализация репозиториев
	s.user = NewUserRepository(db, logger)
	s.booking = NewBookingRepository(db, logger)
	s.approval = NewApprovalRepository(db, logger)
	s.ledger = NewLedgerRepository(db, logger)
	s.settings = NewSettingsRepository(db, logger)
	s.identity = NewIdentityRepository(db, logger)

	return s, nil
}

// User возвращает репозиторий пользователей
func (s *store) User() UserRepository {
	return s.user
}

// Booking возвращает репозиторий бронирований
func (s *store) Booking() BookingRepository {
	return s.booking
}

// Approval возвращает репозиторий заявок
func (s *store) Approval() ApprovalRepository {
	return s.approval
}

// Ledger возвращает репозиторий журнала
func (s *store) Ledger() LedgerRepository {
	return s.ledger
}

// Settings возвращает репозиторий настроек
func (s *store) Settings() SettingsRepository {
	return s.settings
}

// Identity возвращает репозиторий учетных записей
func (s *store) Identity() IdentityRepository {
	return s.identity
}

// Ping проверяет доступность базы данных
func (s *store) Ping(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return apperr.Unavailable("ping", err)
	}
	return nil
}

// Close закрывает подключение к базе данных
func (s *store) Close() error {
	s.logger.Info("закрытие подключения к базе данных")
	s.db.Close()
	return nil
}

// mapErr переводит ошибку драйвера в вид ошибки ядра
func mapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("%s", op)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return apperr.Conflict("%s: %s", op, pgErr.ConstraintName)
	}
	return apperr.Unavailable(op, err)
}
