package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// User представляет клиента барбершопа
type User struct {
	ID                string          `json:"id" db:"id"` // ID от провайдера идентификации
	FullName          string          `json:"full_name" db:"full_name"`
	Email             string          `json:"email" db:"email"`
	Phone             string          `json:"phone" db:"phone"`
	IsVIP             bool            `json:"is_vip" db:"is_vip"`
	VIPSince          *time.Time      `json:"vip_since" db:"vip_since"`
	VIPExpires        *time.Time      `json:"vip_expires" db:"vip_expires"`
	TotalSpent        decimal.Decimal `json:"total_spent" db:"total_spent"`     // Пересчитывается из бронирований
	ReferralCode      string          `json:"referral_code" db:"referral_code"` // Префикс + 4 символа ID
	UsedReferralCode  *string         `json:"used_referral_code" db:"used_referral_code"`
	ReferralCount     int             `json:"referral_count" db:"referral_count"`
	ReferralStreak    int             `json:"referral_streak" db:"referral_streak"` // Успешные рефералы без награды
	ReferralStatus    *string         `json:"referral_status" db:"referral_status"` // Явно установленный статус
	ReferralCredited  bool            `json:"referral_credited" db:"referral_credited"`
	LastClaimedReward *string         `json:"last_claimed_reward" db:"last_claimed_reward"`
	RewardClaimedAt   *time.Time      `json:"reward_claimed_at" db:"reward_claimed_at"`
	TotalReferrals    int             `json:"total_referrals" db:"total_referrals"` // Полученные награды за рефералы
	LastRewardGranted *string         `json:"last_reward_granted" db:"last_reward_granted"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at" db:"updated_at"`
}

// HasActiveVIP проверяет, действует ли VIP-членство на момент now
func (u *User) HasActiveVIP(now time.Time) bool {
	if !u.IsVIP {
		return false
	}
	return u.VIPExpires == nil || u.VIPExpires.After(now)
}

// Booking представляет запись клиента на услугу
type Booking struct {
	ID        string          `json:"id" db:"id"`
	UserID    string          `json:"user_id" db:"user_id"`
	UserEmail string          `json:"user_email" db:"user_email"`
	UserName  string          `json:"user_name" db:"user_name"`
	Service   string          `json:"service" db:"service"`
	Price     decimal.Decimal `json:"price" db:"price"`
	Date      string          `json:"date" db:"date"` // Дата в формате клиента
	Notes     string          `json:"notes" db:"notes"`
	Receipt   string          `json:"receipt,omitempty" db:"receipt"` // Непроверяемое подтверждение оплаты
	Status    string          `json:"status" db:"status"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

// ApprovalRequest представляет заявку, ожидающую решения администратора
type ApprovalRequest struct {
	ID            string          `json:"id" db:"id"`
	Type          string          `json:"type" db:"type"` // booking, vip
	UserID        string          `json:"user_id" db:"user_id"`
	UserEmail     string          `json:"user_email" db:"user_email"`
	UserName      string          `json:"user_name" db:"user_name"`
	Service       string          `json:"service" db:"service"`
	Amount        decimal.Decimal `json:"amount" db:"amount"`
	BookingID     *string         `json:"booking_id,omitempty" db:"booking_id"`
	Receipt       string          `json:"receipt,omitempty" db:"receipt"`
	Status        string          `json:"status" db:"status"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
	ResolvedAt    *time.Time      `json:"resolved_at,omitempty" db:"resolved_at"`
	ResolvedBy    *string         `json:"resolved_by,omitempty" db:"resolved_by"`
	DeclineReason *string         `json:"decline_reason,omitempty" db:"decline_reason"`
}

// IsResolved проверяет, принято ли по заявке решение
func (r *ApprovalRequest) IsResolved() bool {
	return r.Status != ApprovalStatusPending
}

// LedgerEntry представляет проведенную сумму в журнале
type LedgerEntry struct {
	ID         string          `json:"id" db:"id"`
	ApprovalID string          `json:"approval_id" db:"approval_id"` // Ключ идемпотентности
	BookingID  *string         `json:"booking_id,omitempty" db:"booking_id"`
	UserID     string          `json:"user_id" db:"user_id"`
	UserEmail  string          `json:"user_email" db:"user_email"`
	UserName   string          `json:"user_name" db:"user_name"`
	Type       string          `json:"type" db:"type"`
	Service    string          `json:"service" db:"service"`
	Amount     decimal.Decimal `json:"amount" db:"amount"`
	Status     string          `json:"status" db:"status"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}

// ReferralLink представляет производную связь "приглашен по коду"
type ReferralLink struct {
	ReferredID    string     `json:"referred_id"`
	ReferredName  string     `json:"referred_name"`
	ReferredEmail string     `json:"referred_email"`
	ReferrerID    string     `json:"referrer_id"`
	ReferrerName  string     `json:"referrer_name"`
	ReferrerCode  string     `json:"referrer_code"`
	ReferralCount int        `json:"referral_count"`
	Status        string     `json:"status"`
	LastClaimed   *string    `json:"last_claimed,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	ClaimedAt     *time.Time `json:"claimed_at,omitempty"`
}

// SpendSummary представляет сумму трат пользователя для отображения
type SpendSummary struct {
	UserID     string          `json:"user_id"`
	TotalSpent decimal.Decimal `json:"total_spent"`
	Source     string          `json:"source"` // bookings, ledger, stored
}

// Revenue представляет суммарную выручку
type Revenue struct {
	Total   decimal.Decimal `json:"total"`
	Entries int             `json:"entries"`
	Source  string          `json:"source"` // ledger, bookings
}

// Identity представляет учетную запись у провайдера идентификации
type Identity struct {
	ID          string    `json:"id" db:"id"`
	Email       string    `json:"email" db:"email"`
	SecretHash  string    `json:"-" db:"secret_hash"`
	DisplayName string    `json:"display_name" db:"display_name"`
	Role        string    `json:"role" db:"role"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// CreateBookingRequest представляет запрос на запись
type CreateBookingRequest struct {
	UserID  string          `json:"user_id"`
	Service string          `json:"service"`
	Price   decimal.Decimal `json:"price"`
	Date    string          `json:"date"`
	Notes   string          `json:"notes"`
	Receipt string          `json:"receipt"`
}

// SignupRequest представляет запрос на регистрацию
type SignupRequest struct {
	Email        string `json:"email"`
	Secret       string `json:"password"`
	FullName     string `json:"full_name"`
	Phone        string `json:"phone"`
	ReferralCode string `json:"referral_code"`
}

// Constants для статусов бронирования
const (
	BookingStatusPending         = "pending"
	BookingStatusPendingApproval = "pending_approval"
	BookingStatusConfirmed       = "confirmed"
	BookingStatusCancelled       = "cancelled"

	// Статусы из старых данных, которые тоже считаются оплаченными
	BookingStatusApproved  = "approved"
	BookingStatusCompleted = "completed"
)

// Constants для типов и статусов заявок
const (
	ApprovalTypeBooking = "booking"
	ApprovalTypeVIP     = "vip"

	ApprovalStatusPending   = "pending"
	ApprovalStatusConfirmed = "confirmed"
	ApprovalStatusDeclined  = "declined"
)

// Constants для записей журнала
const (
	LedgerStatusConfirmed = "confirmed"
)

// Constants для реферальной программы
const (
	ReferralStatusPending    = "pending"
	ReferralStatusSuccessful = "successful"

	RewardThirtyOff = "30off"
	RewardFreeCut   = "freecut"
)

// Constants для ролей
const (
	RoleClient = "client"
	RoleAdmin  = "admin"
)

// Constants для источников суммы трат
const (
	SpendSourceBookings = "bookings"
	SpendSourceLedger   = "ledger"
	SpendSourceStored   = "stored"
)

// IsSettledBookingStatus проверяет, входит ли бронирование в сумму трат
func IsSettledBookingStatus(status string) bool {
	switch status {
	case BookingStatusApproved, BookingStatusConfirmed, BookingStatusCompleted:
		return true
	default:
		return false
	}
}

// IsValidApprovalType проверяет корректность типа заявки
func IsValidApprovalType(t string) bool {
	switch t {
	case ApprovalTypeBooking, ApprovalTypeVIP:
		return true
	default:
		return false
	}
}

// IsValidReward проверяет корректность типа награды
func IsValidReward(reward string) bool {
	switch reward {
	case RewardThirtyOff, RewardFreeCut:
		return true
	default:
		return false
	}
}

// RewardLabel возвращает название награды для сообщений
func RewardLabel(reward string) string {
	if reward == RewardThirtyOff {
		return "30% OFF"
	}
	return "FREE CUT"
}

// SettledSpend суммирует цены оплаченных бронирований
func SettledSpend(bookings []*Booking) decimal.Decimal {
	total := decimal.Zero
	for _, b := range bookings {
		if IsSettledBookingStatus(b.Status) {
			total = total.Add(b.Price)
		}
	}
	return total
}
