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

// UserRepository интерфейс для работы с пользователями
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByReferralCode(ctx context.Context, code string) (*models.User, error)
	List(ctx context.Context) ([]*models.User, error)
	ListReferred(ctx context.Context) ([]*models.User, error)
	ListByUsedCode(ctx context.Context, code string) ([]*models.User, error)
	ListVIP(ctx context.Context) ([]*models.User, error)
	ListExpiredVIP(ctx context.Context, now time.Time) ([]*models.User, error)
	// LinkReferral сохраняет код и увеличивает счетчик пригласившего атомарно.
	// false, если у пользователя код уже есть.
	LinkReferral(ctx context.Context, userID, code, referrerID string) (bool, error)
	// UnlinkReferral снимает код и уменьшает счетчик пригласившего атомарно.
	// false, если кода не было. referrerID может быть nil.
	UnlinkReferral(ctx context.Context, userID string, referrerID *string) (bool, error)
	IncrementReferralStreak(ctx context.Context, userID string) error
	MarkReferralCredited(ctx context.Context, userID string) (bool, error)
	SetReferralStatus(ctx context.Context, userID, status string) error
	ApplyReward(ctx context.Context, userID, reward string, at time.Time) error
	ConsumeStreak(ctx context.Context, referrerID, reward string) error
	SetTotalSpent(ctx context.Context, userID string, total decimal.Decimal) error
	SetVIP(ctx context.Context, userID string, isVIP bool, since, expires *time.Time) error
	SetVIPExpiry(ctx context.Context, userID string, expires time.Time) error
}

// userRepository реализует UserRepository
type userRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewUserRepository создает новый репозиторий пользователей
func NewUserRepository(db *pgxpool.Pool, logger *zap.Logger) UserRepository {
	return &userRepository{
		db:     db,
		logger: logger,
	}
}

const userColumns = `id, full_name, email, phone, is_vip, vip_since, vip_expires, total_spent,
	referral_code, used_referral_code, referral_count, referral_streak, referral_status, referral_credited,
	last_claimed_reward, reward_claimed_at, total_referrals, last_reward_granted, created_at, updated_at`

func scanUser(row pgx.Row) (*models.User, error) {
	u := &models.User{}
	err := row.Scan(
		&u.ID, &u.FullName, &u.Email, &u.Phone, &u.IsVIP, &u.VIPSince, &u.VIPExpires, &u.TotalSpent,
		&u.ReferralCode, &u.UsedReferralCode, &u.ReferralCount, &u.ReferralStreak, &u.ReferralStatus, &u.ReferralCredited,
		&u.LastClaimedReward, &u.RewardClaimedAt, &u.TotalReferrals, &u.LastRewardGranted, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (r *userRepository) queryUsers(ctx context.Context, op, query string, args ...any) ([]*models.User, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, mapErr(op, err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, mapErr(op, err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(op, err)
	}
	return users, nil
}

// exec выполняет обновление одной строки, отсутствие строки дает NotFound
func (r *userRepository) exec(ctx context.Context, op, query string, args ...any) error {
	result, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return mapErr(op, err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound("пользователь %v", args[0])
	}
	return nil
}

// Create создает нового пользователя
func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, full_name, email, phone, is_vip, vip_since, vip_expires, total_spent,
		                   referral_code, used_referral_code, referral_count, referral_streak, referral_status,
		                   referral_credited, last_claimed_reward, reward_claimed_at, total_referrals,
		                   last_reward_granted, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`

	now := time.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	_, err := r.db.Exec(ctx, query,
		user.ID, user.FullName, user.Email, user.Phone, user.IsVIP, user.VIPSince, user.VIPExpires, user.TotalSpent,
		user.ReferralCode, user.UsedReferralCode, user.ReferralCount, user.ReferralStreak, user.ReferralStatus,
		user.ReferralCredited, user.LastClaimedReward, user.RewardClaimedAt, user.TotalReferrals,
		user.LastRewardGranted, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		return mapErr("создание пользователя", err)
	}

	r.logger.Info("пользователь создан",
		zap.String("user_id", user.ID),
		zap.String("referral_code", user.ReferralCode))
	return nil
}

// GetByID получает пользователя по ID
func (r *userRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return nil, mapErr("пользователь "+id, err)
	}
	return u, nil
}

// GetByEmail получает пользователя по email
func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email))
	if err != nil {
		return nil, mapErr("пользователь с email "+email, err)
	}
	return u, nil
}

// GetByReferralCode ищет владельца нормализованного реферального кода
func (r *userRepository) GetByReferralCode(ctx context.Context, code string) (*models.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE referral_code = $1`, code))
	if err != nil {
		return nil, mapErr("реферальный код "+code, err)
	}
	return u, nil
}

// List возвращает всех пользователей
func (r *userRepository) List(ctx context.Context) ([]*models.User, error) {
	return r.queryUsers(ctx, "список пользователей",
		`SELECT `+userColumns+` FROM users ORDER BY created_at`)
}

// ListReferred возвращает пользователей, пришедших по реферальному коду
func (r *userRepository) ListReferred(ctx context.Context) ([]*models.User, error) {
	return r.queryUsers(ctx, "список приглашенных",
		`SELECT `+userColumns+` FROM users WHERE used_referral_code IS NOT NULL ORDER BY created_at DESC`)
}

// ListByUsedCode возвращает пользователей, использовавших код
func (r *userRepository) ListByUsedCode(ctx context.Context, code string) ([]*models.User, error) {
	return r.queryUsers(ctx, "приглашенные по коду",
		`SELECT `+userColumns+` FROM users WHERE used_referral_code = $1 ORDER BY created_at DESC`, code)
}

// ListVIP возвращает пользователей с флагом VIP
func (r *userRepository) ListVIP(ctx context.Context) ([]*models.User, error) {
	return r.queryUsers(ctx, "список VIP",
		`SELECT `+userColumns+` FROM users WHERE is_vip ORDER BY vip_expires NULLS LAST`)
}

// ListExpiredVIP возвращает VIP-пользователей с истекшим сроком
func (r *userRepository) ListExpiredVIP(ctx context.Context, now time.Time) ([]*models.User, error) {
	return r.queryUsers(ctx, "истекшие VIP",
		`SELECT `+userColumns+` FROM users WHERE is_vip AND vip_expires IS NOT NULL AND vip_expires <= $1`, now)
}

// LinkReferral сохраняет использованный код и увеличивает счетчик пригласившего в одной транзакции
func (r *userRepository) LinkReferral(ctx context.Context, userID, code, referrerID string) (bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, mapErr("начало транзакции привязки", err)
	}
	defer tx.Rollback(ctx)

	result, err := tx.Exec(ctx,
		`UPDATE users SET used_referral_code = $2, updated_at = now() WHERE id = $1 AND used_referral_code IS NULL`,
		userID, code)
	if err != nil {
		return false, mapErr("установка использованного кода", err)
	}
	if result.RowsAffected() == 0 {
		return false, nil
	}

	result, err = tx.Exec(ctx,
		`UPDATE users SET referral_count = referral_count + 1, updated_at = now() WHERE id = $1`, referrerID)
	if err != nil {
		return false, mapErr("увеличение счетчика приглашений", err)
	}
	if result.RowsAffected() == 0 {
		return false, apperr.NotFound("пригласивший %s", referrerID)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, mapErr("фиксация привязки", err)
	}
	return true, nil
}

// UnlinkReferral снимает использованный код и уменьшает счетчик пригласившего, не ниже нуля
func (r *userRepository) UnlinkReferral(ctx context.Context, userID string, referrerID *string) (bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, mapErr("начало транзакции отвязки", err)
	}
	defer tx.Rollback(ctx)

	result, err := tx.Exec(ctx,
		`UPDATE users SET used_referral_code = NULL, updated_at = now() WHERE id = $1 AND used_referral_code IS NOT NULL`,
		userID)
	if err != nil {
		return false, mapErr("удаление привязки", err)
	}
	if result.RowsAffected() == 0 {
		return false, nil
	}

	if referrerID != nil {
		if _, err := tx.Exec(ctx,
			`UPDATE users SET referral_count = GREATEST(referral_count - 1, 0), updated_at = now() WHERE id = $1`,
			*referrerID); err != nil {
			return false, mapErr("уменьшение счетчика приглашений", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, mapErr("фиксация отвязки", err)
	}
	return true, nil
}

// IncrementReferralStreak атомарно увеличивает серию успешных приглашений
func (r *userRepository) IncrementReferralStreak(ctx context.Context, userID string) error {
	return r.exec(ctx, "увеличение серии приглашений",
		`UPDATE users SET referral_streak = referral_streak + 1, updated_at = now() WHERE id = $1`, userID)
}

// MarkReferralCredited отмечает, что приглашение уже засчитано. Возвращает false при повторе.
func (r *userRepository) MarkReferralCredited(ctx context.Context, userID string) (bool, error) {
	result, err := r.db.Exec(ctx,
		`UPDATE users SET referral_credited = TRUE, updated_at = now() WHERE id = $1 AND NOT referral_credited`, userID)
	if err != nil {
		return false, mapErr("отметка зачета приглашения", err)
	}
	return result.RowsAffected() == 1, nil
}

// SetReferralStatus явно устанавливает статус приглашения
func (r *userRepository) SetReferralStatus(ctx context.Context, userID, status string) error {
	return r.exec(ctx, "установка статуса приглашения",
		`UPDATE users SET referral_status = $2, updated_at = now() WHERE id = $1`, userID, status)
}

// ApplyReward отмечает награду на приглашенном пользователе
func (r *userRepository) ApplyReward(ctx context.Context, userID, reward string, at time.Time) error {
	query := `
		UPDATE users
		SET referral_status = $2, last_claimed_reward = $3, reward_claimed_at = $4,
		    total_referrals = total_referrals + 1, updated_at = now()
		WHERE id = $1`
	return r.exec(ctx, "выдача награды", query, userID, models.ReferralStatusSuccessful, reward, at)
}

// ConsumeStreak обнуляет серию пригласившего после выдачи награды
func (r *userRepository) ConsumeStreak(ctx context.Context, referrerID, reward string) error {
	return r.exec(ctx, "сброс серии приглашений",
		`UPDATE users SET referral_streak = 0, last_reward_granted = $2, updated_at = now() WHERE id = $1`, referrerID, reward)
}

// SetTotalSpent сохраняет пересчитанную сумму трат
func (r *userRepository) SetTotalSpent(ctx context.Context, userID string, total decimal.Decimal) error {
	return r.exec(ctx, "сохранение суммы трат",
		`UPDATE users SET total_spent = $2, updated_at = now() WHERE id = $1`, userID, total)
}

// SetVIP устанавливает флаг и окно VIP-членства
func (r *userRepository) SetVIP(ctx context.Context, userID string, isVIP bool, since, expires *time.Time) error {
	return r.exec(ctx, "обновление VIP",
		`UPDATE users SET is_vip = $2, vip_since = $3, vip_expires = $4, updated_at = now() WHERE id = $1`,
		userID, isVIP, since, expires)
}

// SetVIPExpiry продлевает VIP без изменения флага
func (r *userRepository) SetVIPExpiry(ctx context.Context, userID string, expires time.Time) error {
	return r.exec(ctx, "продление VIP",
		`UPDATE users SET vip_expires = $2, updated_at = now() WHERE id = $1`, userID, expires)
}
