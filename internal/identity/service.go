// Package identity хранит учетные записи и выдает JWT для клиентов и персонала
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"celeb-barber/internal/apperr"
	"celeb-barber/internal/store"
	"celeb-barber/pkg/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// minSecretLength минимальная длина пароля
const minSecretLength = 6

// Claims содержит данные токена
type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// IsAdmin проверяет роль администратора
func (c *Claims) IsAdmin() bool {
	return c.Role == models.RoleAdmin
}

// Service представляет сервис учетных записей
type Service struct {
	repo       store.IdentityRepository
	secret     []byte
	ttl        time.Duration
	adminEmail string
	logger     *zap.Logger
	now        func() time.Time
}

// NewService создает сервис учетных записей. adminEmail получает роль администратора при входе.
func NewService(repo store.IdentityRepository, secret string, ttl time.Duration, adminEmail string, logger *zap.Logger) *Service {
	return &Service{
		repo:       repo,
		secret:     []byte(secret),
		ttl:        ttl,
		adminEmail: strings.ToLower(strings.TrimSpace(adminEmail)),
		logger:     logger,
		now:        time.Now,
	}
}

// CreateIdentity регистрирует учетную запись. Занятый email дает ErrConflict.
func (s *Service) CreateIdentity(ctx context.Context, email, secret, displayName string) (*models.Identity, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !strings.Contains(email, "@") {
		return nil, apperr.Invalid("некорректный email %q", email)
	}
	if len(secret) < minSecretLength {
		return nil, apperr.Invalid("пароль короче %d символов", minSecretLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("ошибка хеширования пароля: %w", err)
	}

	identity := &models.Identity{
		ID:          uuid.NewString(),
		Email:       email,
		SecretHash:  string(hash),
		DisplayName: strings.TrimSpace(displayName),
		Role:        s.roleFor(email, models.RoleClient),
		CreatedAt:   s.now(),
	}

	if err := s.repo.Create(ctx, identity); err != nil {
		return nil, fmt.Errorf("ошибка создания учетной записи: %w", err)
	}

	s.logger.Info("учетная запись создана",
		zap.String("identity_id", identity.ID),
		zap.String("role", identity.Role))
	return identity, nil
}

// DeleteIdentity удаляет учетную запись
func (s *Service) DeleteIdentity(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("ошибка удаления учетной записи: %w", err)
	}
	return nil
}

// Authenticate проверяет email и пароль
func (s *Service) Authenticate(ctx context.Context, email, secret string) (*models.Identity, error) {
	identity, err := s.repo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.Unauthorized("неверный email или пароль")
		}
		return nil, fmt.Errorf("ошибка получения учетной записи: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(identity.SecretHash), []byte(secret)); err != nil {
		return nil, apperr.Unauthorized("неверный email или пароль")
	}

	identity.Role = s.roleFor(identity.Email, identity.Role)
	return identity, nil
}

// IssueToken выдает подписанный токен для учетной записи
func (s *Service) IssueToken(identity *models.Identity) (string, time.Time, error) {
	now := s.now()
	expires := now.Add(s.ttl)
	claims := &Claims{
		Email: identity.Email,
		Role:  s.roleFor(identity.Email, identity.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("ошибка подписи токена: %w", err)
	}
	return signed, expires, nil
}

// ParseToken проверяет подпись и срок токена
func (s *Service) ParseToken(raw string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("неожиданный метод подписи %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return nil, apperr.Unauthorized("недействительный токен")
	}
	if claims.Subject == "" {
		return nil, apperr.Unauthorized("в токене нет пользователя")
	}
	return claims, nil
}

func (s *Service) roleFor(email, stored string) string {
	if s.adminEmail != "" && email == s.adminEmail {
		return models.RoleAdmin
	}
	if stored == "" {
		return models.RoleClient
	}
	return stored
}
