package store

import (
	"context"
	"time"

	"celeb-barber/internal/apperr"
	"celeb-barber/pkg/models"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// IdentityRepository интерфейс для работы с учетными записями
type IdentityRepository interface {
	Create(ctx context.Context, identity *models.Identity) error
	GetByEmail(ctx context.Context, email string) (*models.Identity, error)
	Delete(ctx context.Context, id string) error
}

type identityRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewIdentityRepository создает новый репозиторий учетных записей
func NewIdentityRepository(db *pgxpool.Pool, logger *zap.Logger) IdentityRepository {
	return &identityRepository{
		db:     db,
		logger: logger,
	}
}

// Create сохраняет учетную запись. Повторный email дает Conflict.
func (r *identityRepository) Create(ctx context.Context, identity *models.Identity) error {
	query := `
		INSERT INTO identities (id, email, secret_hash, display_name, role, created_at)
		VALUES ($1, lower($2), $3, $4, $5, $6)`

	if identity.CreatedAt.IsZero() {
		identity.CreatedAt = time.Now()
	}

	_, err := r.db.Exec(ctx, query, identity.ID, identity.Email, identity.SecretHash,
		identity.DisplayName, identity.Role, identity.CreatedAt)
	if err != nil {
		return mapErr("создание учетной записи", err)
	}
	return nil
}

// GetByEmail получает учетную запись по email
func (r *identityRepository) GetByEmail(ctx context.Context, email string) (*models.Identity, error) {
	query := `SELECT id, email, secret_hash, display_name, role, created_at FROM identities WHERE email = lower($1)`

	i := &models.Identity{}
	err := r.db.QueryRow(ctx, query, email).Scan(&i.ID, &i.Email, &i.SecretHash, &i.DisplayName, &i.Role, &i.CreatedAt)
	if err != nil {
		return nil, mapErr("учетная запись "+email, err)
	}
	return i, nil
}

// Delete удаляет учетную запись
func (r *identityRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM identities WHERE id = $1`, id)
	if err != nil {
		return mapErr("удаление учетной записи", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound("учетная запись %s", id)
	}

	r.logger.Info("учетная запись удалена", zap.String("identity_id", id))
	return nil
}
