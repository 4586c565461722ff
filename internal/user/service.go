package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"celeb-barber/internal/apperr"
	"celeb-barber/internal/store"
	"celeb-barber/pkg/models"

	"go.uber.org/zap"
)

// codeLengths длины кода, которые пробуем по очереди при занятом коротком коде
var codeLengths = []int{4, 6, 8, 12}

// Identities управляет учетными записями
type Identities interface {
	CreateIdentity(ctx context.Context, email, secret, displayName string) (*models.Identity, error)
	DeleteIdentity(ctx context.Context, id string) error
	Authenticate(ctx context.Context, email, secret string) (*models.Identity, error)
	IssueToken(identity *models.Identity) (string, time.Time, error)
}

// Referrals выдает коды и привязывает приглашенных
type Referrals interface {
	LongCodeFor(userID string, n int) string
	Link(ctx context.Context, userID, code string) (bool, error)
	Status(ctx context.Context, referredID string) (string, error)
}

// SpendReader возвращает сумму трат для отображения
type SpendReader interface {
	GetUserSpend(ctx context.Context, userID string) (*models.SpendSummary, error)
}

// Session описывает результат входа
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	UserID    string    `json:"user_id"`
	Role      string    `json:"role"`
}

// Profile описывает профиль клиента
type Profile struct {
	User           *models.User         `json:"user"`
	Spend          *models.SpendSummary `json:"spend"`
	ReferralStatus string               `json:"referral_status,omitempty"`
}

// Service представляет сервис для работы с пользователями
type Service struct {
	users      store.UserRepository
	identities Identities
	referrals  Referrals
	spend      SpendReader
	logger     *zap.Logger
	now        func() time.Time
}

// NewService создает новый сервис пользователей
func NewService(users store.UserRepository, identities Identities, referrals Referrals, spend SpendReader, logger *zap.Logger) *Service {
	return &Service{
		users:      users,
		identities: identities,
		referrals:  referrals,
		spend:      spend,
		logger:     logger,
		now:        time.Now,
	}
}

// Signup регистрирует клиента: учетная запись, профиль и привязка реферального кода.
// Если профиль сохранить не удалось, учетная запись удаляется.
func (s *Service) Signup(ctx context.Context, req *models.SignupRequest) (*models.User, error) {
	identity, err := s.identities.CreateIdentity(ctx, req.Email, req.Secret, req.FullName)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.FullName)
	if name == "" {
		name = strings.SplitN(identity.Email, "@", 2)[0]
	}

	user := &models.User{
		ID:        identity.ID,
		FullName:  name,
		Email:     identity.Email,
		Phone:     strings.TrimSpace(req.Phone),
		CreatedAt: s.now(),
	}

	if err := s.createProfile(ctx, user); err != nil {
		if delErr := s.identities.DeleteIdentity(ctx, identity.ID); delErr != nil {
			s.logger.Error("не удалось удалить учетную запись после ошибки регистрации",
				zap.String("identity_id", identity.ID),
				zap.Error(delErr))
		}
		return nil, err
	}

	s.logger.Info("создан новый пользователь",
		zap.String("user_id", user.ID),
		zap.String("referral_code", user.ReferralCode))

	if req.ReferralCode != "" {
		if _, err := s.referrals.Link(ctx, user.ID, req.ReferralCode); err != nil {
			s.logger.Warn("не удалось привязать реферальный код",
				zap.String("user_id", user.ID),
				zap.String("code", req.ReferralCode),
				zap.Error(err))
		} else if fresh, err := s.users.GetByID(ctx, user.ID); err == nil {
			user = fresh
		}
	}

	return user, nil
}

// createProfile сохраняет профиль, удлиняя код при совпадении с чужим
func (s *Service) createProfile(ctx context.Context, user *models.User) error {
	var err error
	for _, n := range codeLengths {
		user.ReferralCode = s.referrals.LongCodeFor(user.ID, n)
		err = s.users.Create(ctx, user)
		if err == nil || !errors.Is(err, apperr.ErrConflict) {
			break
		}
		s.logger.Info("реферальный код занят, удлиняем", zap.String("code", user.ReferralCode))
	}
	if err != nil {
		return fmt.Errorf("ошибка создания пользователя: %w", err)
	}
	return nil
}

// Login проверяет учетные данные и выдает токен
func (s *Service) Login(ctx context.Context, email, secret string) (*Session, error) {
	identity, err := s.identities.Authenticate(ctx, email, secret)
	if err != nil {
		return nil, err
	}

	token, expires, err := s.identities.IssueToken(identity)
	if err != nil {
		return nil, err
	}

	return &Session{Token: token, ExpiresAt: expires, UserID: identity.ID, Role: identity.Role}, nil
}

// Profile возвращает профиль клиента с суммой трат
func (s *Service) Profile(ctx context.Context, userID string) (*Profile, error) {
	user, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	spend, err := s.spend.GetUserSpend(ctx, userID)
	if err != nil {
		return nil, err
	}

	p := &Profile{User: user, Spend: spend}
	if user.UsedReferralCode != nil {
		status, err := s.referrals.Status(ctx, userID)
		if err != nil {
			s.logger.Warn("не удалось получить статус приглашения", zap.String("user_id", userID), zap.Error(err))
		}
		p.ReferralStatus = status
	}
	return p, nil
}

// GetUserByID получает пользователя по ID
func (s *Service) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения пользователя: %w", err)
	}
	return user, nil
}

// GetAllUsers получает всех клиентов для персонала
func (s *Service) GetAllUsers(ctx context.Context) ([]*models.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения всех пользователей: %w", err)
	}
	return users, nil
}
