// Package memstore хранит данные в памяти процесса. Используется в тестах и для
// пробных прогонов утилит, повторяет ограничения схемы PostgreSQL.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"celeb-barber/internal/apperr"
	"celeb-barber/internal/store"
	"celeb-barber/pkg/models"

	"github.com/shopspring/decimal"
)

// Store реализует store.Store в памяти
type Store struct {
	mu         sync.Mutex
	users      map[string]*models.User
	bookings   map[string]*models.Booking
	approvals  map[string]*models.ApprovalRequest
	ledger     map[string]*models.LedgerEntry
	settings   map[string]string
	identities map[string]*models.Identity
	failing    error
}

// New создает пустое хранилище
func New() *Store {
	return &Store{
		users:      make(map[string]*models.User),
		bookings:   make(map[string]*models.Booking),
		approvals:  make(map[string]*models.ApprovalRequest),
		ledger:     make(map[string]*models.LedgerEntry),
		settings:   make(map[string]string),
		identities: make(map[string]*models.Identity),
	}
}

// Fail заставляет все операции возвращать недоступность хранилища. nil снимает сбой.
func (s *Store) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing = err
}

func (s *Store) lock(op string) error {
	s.mu.Lock()
	if s.failing != nil {
		err := s.failing
		s.mu.Unlock()
		return apperr.Unavailable(op, err)
	}
	return nil
}

func (s *Store) User() store.UserRepository         { return (*userRepo)(s) }
func (s *Store) Booking() store.BookingRepository   { return (*bookingRepo)(s) }
func (s *Store) Approval() store.ApprovalRepository { return (*approvalRepo)(s) }
func (s *Store) Ledger() store.LedgerRepository     { return (*ledgerRepo)(s) }
func (s *Store) Settings() store.SettingsRepository { return (*settingsRepo)(s) }
func (s *Store) Identity() store.IdentityRepository { return (*identityRepo)(s) }

func (s *Store) Ping(ctx context.Context) error {
	if err := s.lock("ping"); err != nil {
		return err
	}
	s.mu.Unlock()
	return nil
}

func (s *Store) Close() error { return nil }

var _ store.Store = (*Store)(nil)

func cloneUser(u *models.User) *models.User {
	c := *u
	return &c
}

func cloneBooking(b *models.Booking) *models.Booking {
	c := *b
	return &c
}

func cloneApproval(a *models.ApprovalRequest) *models.ApprovalRequest {
	c := *a
	return &c
}

func cloneEntry(e *models.LedgerEntry) *models.LedgerEntry {
	c := *e
	return &c
}

// users

type userRepo Store

func (r *userRepo) s() *Store { return (*Store)(r) }

func (r *userRepo) Create(ctx context.Context, user *models.User) error {
	s := r.s()
	if err := s.lock("создание пользователя"); err != nil {
		return err
	}
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; ok {
		return apperr.Conflict("пользователь %s уже существует", user.ID)
	}
	for _, u := range s.users {
		if u.ReferralCode == user.ReferralCode {
			return apperr.Conflict("реферальный код %s занят", user.ReferralCode)
		}
	}
	now := time.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	s.users[user.ID] = cloneUser(user)
	return nil
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	s := r.s()
	if err := s.lock("пользователь"); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, apperr.NotFound("пользователь %s", id)
	}
	return cloneUser(u), nil
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.find("пользователь с email "+email, func(u *models.User) bool {
		return strings.EqualFold(u.Email, email)
	})
}

func (r *userRepo) GetByReferralCode(ctx context.Context, code string) (*models.User, error) {
	return r.find("реферальный код "+code, func(u *models.User) bool {
		return u.ReferralCode == code
	})
}

func (r *userRepo) find(op string, match func(*models.User) bool) (*models.User, error) {
	s := r.s()
	if err := s.lock(op); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	for _, u := range s.users {
		if match(u) {
			return cloneUser(u), nil
		}
	}
	return nil, apperr.NotFound("%s", op)
}

func (r *userRepo) filter(op string, match func(*models.User) bool) ([]*models.User, error) {
	s := r.s()
	if err := s.lock(op); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	var users []*models.User
	for _, u := range s.users {
		if match(u) {
			users = append(users, cloneUser(u))
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].CreatedAt.Before(users[j].CreatedAt) })
	return users, nil
}

func (r *userRepo) List(ctx context.Context) ([]*models.User, error) {
	return r.filter("список пользователей", func(*models.User) bool { return true })
}

func (r *userRepo) ListReferred(ctx context.Context) ([]*models.User, error) {
	return r.filter("список приглашенных", func(u *models.User) bool { return u.UsedReferralCode != nil })
}

func (r *userRepo) ListByUsedCode(ctx context.Context, code string) ([]*models.User, error) {
	return r.filter("приглашенные по коду", func(u *models.User) bool {
		return u.UsedReferralCode != nil && *u.UsedReferralCode == code
	})
}

func (r *userRepo) ListVIP(ctx context.Context) ([]*models.User, error) {
	return r.filter("список VIP", func(u *models.User) bool { return u.IsVIP })
}

func (r *userRepo) ListExpiredVIP(ctx context.Context, now time.Time) ([]*models.User, error) {
	return r.filter("истекшие VIP", func(u *models.User) bool {
		return u.IsVIP && u.VIPExpires != nil && !u.VIPExpires.After(now)
	})
}

// update применяет изменение к одному пользователю под блокировкой
func (r *userRepo) update(op, id string, fn func(u *models.User)) error {
	s := r.s()
	if err := s.lock(op); err != nil {
		return err
	}
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return apperr.NotFound("пользователь %s", id)
	}
	fn(u)
	u.UpdatedAt = time.Now()
	return nil
}

func (r *userRepo) LinkReferral(ctx context.Context, userID, code, referrerID string) (bool, error) {
	s := r.s()
	if err := s.lock("привязка приглашения"); err != nil {
		return false, err
	}
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok || u.UsedReferralCode != nil {
		return false, nil
	}
	referrer, ok := s.users[referrerID]
	if !ok {
		return false, apperr.NotFound("пригласивший %s", referrerID)
	}

	now := time.Now()
	c := code
	u.UsedReferralCode = &c
	u.UpdatedAt = now
	referrer.ReferralCount++
	referrer.UpdatedAt = now
	return true, nil
}

func (r *userRepo) UnlinkReferral(ctx context.Context, userID string, referrerID *string) (bool, error) {
	s := r.s()
	if err := s.lock("удаление привязки"); err != nil {
		return false, err
	}
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok || u.UsedReferralCode == nil {
		return false, nil
	}

	now := time.Now()
	u.UsedReferralCode = nil
	u.UpdatedAt = now
	if referrerID != nil {
		if referrer, ok := s.users[*referrerID]; ok && referrer.ReferralCount > 0 {
			referrer.ReferralCount--
			referrer.UpdatedAt = now
		}
	}
	return true, nil
}

func (r *userRepo) IncrementReferralStreak(ctx context.Context, userID string) error {
	return r.update("увеличение серии приглашений", userID, func(u *models.User) { u.ReferralStreak++ })
}

func (r *userRepo) MarkReferralCredited(ctx context.Context, userID string) (bool, error) {
	marked := false
	err := r.update("отметка зачета приглашения", userID, func(u *models.User) {
		if !u.ReferralCredited {
			u.ReferralCredited = true
			marked = true
		}
	})
	return marked, err
}

func (r *userRepo) SetReferralStatus(ctx context.Context, userID, status string) error {
	return r.update("установка статуса приглашения", userID, func(u *models.User) {
		st := status
		u.ReferralStatus = &st
	})
}

func (r *userRepo) ApplyReward(ctx context.Context, userID, reward string, at time.Time) error {
	return r.update("выдача награды", userID, func(u *models.User) {
		status := models.ReferralStatusSuccessful
		rw := reward
		claimed := at
		u.ReferralStatus = &status
		u.LastClaimedReward = &rw
		u.RewardClaimedAt = &claimed
		u.TotalReferrals++
	})
}

func (r *userRepo) ConsumeStreak(ctx context.Context, referrerID, reward string) error {
	return r.update("сброс серии приглашений", referrerID, func(u *models.User) {
		rw := reward
		u.ReferralStreak = 0
		u.LastRewardGranted = &rw
	})
}

func (r *userRepo) SetTotalSpent(ctx context.Context, userID string, total decimal.Decimal) error {
	return r.update("сохранение суммы трат", userID, func(u *models.User) { u.TotalSpent = total })
}

func (r *userRepo) SetVIP(ctx context.Context, userID string, isVIP bool, since, expires *time.Time) error {
	return r.update("обновление VIP", userID, func(u *models.User) {
		u.IsVIP = isVIP
		u.VIPSince = copyTime(since)
		u.VIPExpires = copyTime(expires)
	})
}

func (r *userRepo) SetVIPExpiry(ctx context.Context, userID string, expires time.Time) error {
	return r.update("продление VIP", userID, func(u *models.User) { u.VIPExpires = copyTime(&expires) })
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

// bookings

type bookingRepo Store

func (r *bookingRepo) s() *Store { return (*Store)(r) }

func (r *bookingRepo) Create(ctx context.Context, booking *models.Booking) error {
	s := r.s()
	if err := s.lock("создание бронирования"); err != nil {
		return err
	}
	defer s.mu.Unlock()

	if _, ok := s.bookings[booking.ID]; ok {
		return apperr.Conflict("бронирование %s уже существует", booking.ID)
	}
	now := time.Now()
	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = now
	}
	booking.UpdatedAt = now
	s.bookings[booking.ID] = cloneBooking(booking)
	return nil
}

func (r *bookingRepo) GetByID(ctx context.Context, id string) (*models.Booking, error) {
	s := r.s()
	if err := s.lock("бронирование"); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	b, ok := s.bookings[id]
	if !ok {
		return nil, apperr.NotFound("бронирование %s", id)
	}
	return cloneBooking(b), nil
}

func (r *bookingRepo) filter(op string, match func(*models.Booking) bool, newestFirst bool) ([]*models.Booking, error) {
	s := r.s()
	if err := s.lock(op); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	var bookings []*models.Booking
	for _, b := range s.bookings {
		if match(b) {
			bookings = append(bookings, cloneBooking(b))
		}
	}
	sort.Slice(bookings, func(i, j int) bool {
		if newestFirst {
			return bookings[i].CreatedAt.After(bookings[j].CreatedAt)
		}
		return bookings[i].CreatedAt.Before(bookings[j].CreatedAt)
	})
	return bookings, nil
}

func (r *bookingRepo) ListByUser(ctx context.Context, userID string) ([]*models.Booking, error) {
	return r.filter("бронирования пользователя", func(b *models.Booking) bool { return b.UserID == userID }, true)
}

func (r *bookingRepo) ListByStatus(ctx context.Context, status string) ([]*models.Booking, error) {
	return r.filter("бронирования по статусу", func(b *models.Booking) bool { return b.Status == status }, false)
}

func (r *bookingRepo) ListAll(ctx context.Context) ([]*models.Booking, error) {
	return r.filter("все бронирования", func(*models.Booking) bool { return true }, true)
}

func (r *bookingRepo) UpdateStatus(ctx context.Context, id, status string) error {
	s := r.s()
	if err := s.lock("обновление статуса бронирования"); err != nil {
		return err
	}
	defer s.mu.Unlock()

	b, ok := s.bookings[id]
	if !ok {
		return apperr.NotFound("бронирование %s", id)
	}
	b.Status = status
	b.UpdatedAt = time.Now()
	return nil
}

func (r *bookingRepo) CompareAndSetStatus(ctx context.Context, id, from, to string) (bool, error) {
	s := r.s()
	if err := s.lock("смена статуса бронирования"); err != nil {
		return false, err
	}
	defer s.mu.Unlock()

	b, ok := s.bookings[id]
	if !ok || b.Status != from {
		return false, nil
	}
	b.Status = to
	b.UpdatedAt = time.Now()
	return true, nil
}

// approvals

type approvalRepo Store

func (r *approvalRepo) s() *Store { return (*Store)(r) }

func (r *approvalRepo) Create(ctx context.Context, req *models.ApprovalRequest) error {
	s := r.s()
	if err := s.lock("создание заявки"); err != nil {
		return err
	}
	defer s.mu.Unlock()

	if _, ok := s.approvals[req.ID]; ok {
		return apperr.Conflict("заявка %s уже существует", req.ID)
	}
	if req.Status == models.ApprovalStatusPending {
		for _, a := range s.approvals {
			if a.Status != models.ApprovalStatusPending {
				continue
			}
			if req.Type == models.ApprovalTypeVIP && a.Type == models.ApprovalTypeVIP && a.UserID == req.UserID {
				return apperr.Conflict("uq_approval_pending_vip")
			}
			if req.BookingID != nil && a.BookingID != nil && *a.BookingID == *req.BookingID {
				return apperr.Conflict("uq_approval_pending_booking")
			}
		}
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now()
	}
	s.approvals[req.ID] = cloneApproval(req)
	return nil
}

func (r *approvalRepo) GetByID(ctx context.Context, id string) (*models.ApprovalRequest, error) {
	s := r.s()
	if err := s.lock("заявка"); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	a, ok := s.approvals[id]
	if !ok {
		return nil, apperr.NotFound("заявка %s", id)
	}
	return cloneApproval(a), nil
}

func (r *approvalRepo) findPending(op string, match func(*models.ApprovalRequest) bool) (*models.ApprovalRequest, error) {
	s := r.s()
	if err := s.lock(op); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	for _, a := range s.approvals {
		if a.Status == models.ApprovalStatusPending && match(a) {
			return cloneApproval(a), nil
		}
	}
	return nil, apperr.NotFound("%s", op)
}

func (r *approvalRepo) GetPendingVIP(ctx context.Context, userID string) (*models.ApprovalRequest, error) {
	return r.findPending("ожидающая VIP-заявка", func(a *models.ApprovalRequest) bool {
		return a.Type == models.ApprovalTypeVIP && a.UserID == userID
	})
}

func (r *approvalRepo) GetPendingByBooking(ctx context.Context, bookingID string) (*models.ApprovalRequest, error) {
	return r.findPending("ожидающая заявка бронирования", func(a *models.ApprovalRequest) bool {
		return a.BookingID != nil && *a.BookingID == bookingID
	})
}

func (r *approvalRepo) ListPending(ctx context.Context, limit int) ([]*models.ApprovalRequest, error) {
	s := r.s()
	if err := s.lock("список заявок"); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	var requests []*models.ApprovalRequest
	for _, a := range s.approvals {
		if a.Status == models.ApprovalStatusPending {
			requests = append(requests, cloneApproval(a))
		}
	}
	sort.Slice(requests, func(i, j int) bool { return requests[i].CreatedAt.Before(requests[j].CreatedAt) })
	if limit > 0 && len(requests) > limit {
		requests = requests[:limit]
	}
	return requests, nil
}

func (r *approvalRepo) Resolve(ctx context.Context, id, status, actor string, reason *string, at time.Time) (bool, error) {
	s := r.s()
	if err := s.lock("решение по заявке"); err != nil {
		return false, err
	}
	defer s.mu.Unlock()

	a, ok := s.approvals[id]
	if !ok || a.Status != models.ApprovalStatusPending {
		return false, nil
	}
	by := actor
	resolved := at
	a.Status = status
	a.ResolvedBy = &by
	a.ResolvedAt = &resolved
	if reason != nil {
		rs := *reason
		a.DeclineReason = &rs
	}
	return true, nil
}

func (r *approvalRepo) DeletePendingByBooking(ctx context.Context, bookingID string) (int64, error) {
	s := r.s()
	if err := s.lock("удаление заявок бронирования"); err != nil {
		return 0, err
	}
	defer s.mu.Unlock()

	var deleted int64
	for id, a := range s.approvals {
		if a.Status == models.ApprovalStatusPending && a.BookingID != nil && *a.BookingID == bookingID {
			delete(s.approvals, id)
			deleted++
		}
	}
	return deleted, nil
}

// ledger

type ledgerRepo Store

func (r *ledgerRepo) s() *Store { return (*Store)(r) }

func (r *ledgerRepo) Insert(ctx context.Context, entry *models.LedgerEntry) (bool, error) {
	s := r.s()
	if err := s.lock("запись в журнал"); err != nil {
		return false, err
	}
	defer s.mu.Unlock()

	for _, e := range s.ledger {
		if e.ApprovalID == entry.ApprovalID {
			return false, nil
		}
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	s.ledger[entry.ID] = cloneEntry(entry)
	return true, nil
}

func (r *ledgerRepo) GetByApproval(ctx context.Context, approvalID string) (*models.LedgerEntry, error) {
	s := r.s()
	if err := s.lock("запись журнала по заявке"); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	for _, e := range s.ledger {
		if e.ApprovalID == approvalID {
			return cloneEntry(e), nil
		}
	}
	return nil, apperr.NotFound("запись журнала по заявке %s", approvalID)
}

func (r *ledgerRepo) entries(op string, match func(*models.LedgerEntry) bool) ([]*models.LedgerEntry, error) {
	s := r.s()
	if err := s.lock(op); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	var entries []*models.LedgerEntry
	for _, e := range s.ledger {
		if match(e) {
			entries = append(entries, cloneEntry(e))
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].CreatedAt.After(entries[j].CreatedAt) })
	return entries, nil
}

func (r *ledgerRepo) List(ctx context.Context, limit int) ([]*models.LedgerEntry, error) {
	entries, err := r.entries("журнал", func(*models.LedgerEntry) bool { return true })
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (r *ledgerRepo) ListByUser(ctx context.Context, userID string) ([]*models.LedgerEntry, error) {
	return r.entries("журнал пользователя", func(e *models.LedgerEntry) bool { return e.UserID == userID })
}

func (r *ledgerRepo) Total(ctx context.Context) (decimal.Decimal, int, error) {
	entries, err := r.entries("сумма журнала", func(*models.LedgerEntry) bool { return true })
	if err != nil {
		return decimal.Zero, 0, err
	}
	total := decimal.Zero
	for _, e := range entries {
		total = total.Add(e.Amount)
	}
	return total, len(entries), nil
}

func (r *ledgerRepo) Delete(ctx context.Context, id string) error {
	s := r.s()
	if err := s.lock("удаление записи журнала"); err != nil {
		return err
	}
	defer s.mu.Unlock()

	if _, ok := s.ledger[id]; !ok {
		return apperr.NotFound("запись журнала %s", id)
	}
	delete(s.ledger, id)
	return nil
}

// settings

type settingsRepo Store

func (r *settingsRepo) Get(ctx context.Context, key string) (string, error) {
	s := (*Store)(r)
	if err := s.lock("настройка"); err != nil {
		return "", err
	}
	defer s.mu.Unlock()

	v, ok := s.settings[key]
	if !ok {
		return "", apperr.NotFound("настройка %s", key)
	}
	return v, nil
}

func (r *settingsRepo) Set(ctx context.Context, key, value string) error {
	s := (*Store)(r)
	if err := s.lock("сохранение настройки"); err != nil {
		return err
	}
	defer s.mu.Unlock()

	s.settings[key] = value
	return nil
}

// identities

type identityRepo Store

func (r *identityRepo) Create(ctx context.Context, identity *models.Identity) error {
	s := (*Store)(r)
	if err := s.lock("создание учетной записи"); err != nil {
		return err
	}
	defer s.mu.Unlock()

	email := strings.ToLower(identity.Email)
	for _, i := range s.identities {
		if i.Email == email {
			return apperr.Conflict("email %s уже зарегистрирован", email)
		}
	}
	if identity.CreatedAt.IsZero() {
		identity.CreatedAt = time.Now()
	}
	c := *identity
	c.Email = email
	s.identities[identity.ID] = &c
	return nil
}

func (r *identityRepo) GetByEmail(ctx context.Context, email string) (*models.Identity, error) {
	s := (*Store)(r)
	if err := s.lock("учетная запись"); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	for _, i := range s.identities {
		if i.Email == strings.ToLower(email) {
			c := *i
			return &c, nil
		}
	}
	return nil, apperr.NotFound("учетная запись %s", email)
}

func (r *identityRepo) Delete(ctx context.Context, id string) error {
	s := (*Store)(r)
	if err := s.lock("удаление учетной записи"); err != nil {
		return err
	}
	defer s.mu.Unlock()

	if _, ok := s.identities[id]; !ok {
		return apperr.NotFound("учетная запись %s", id)
	}
	delete(s.identities, id)
	return nil
}
