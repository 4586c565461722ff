package models

import (
	"strings"
	"time"

	"celeb-barber/internal/amount"
)

// Document представляет запись из старого документного хранилища
type Document map[string]any

// expiryLayouts перечисляет форматы ISO-8601, встречающиеся в старых данных
var expiryLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseExpiry разбирает дату окончания VIP, допускает завершающий маркер UTC
func ParseExpiry(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}
	if strings.HasSuffix(s, "Z") || strings.HasSuffix(s, "z") {
		s = s[:len(s)-1] + "+00:00"
	}

	for _, layout := range expiryLayouts {
		var (
			t   time.Time
			err error
		)
		if layout == time.RFC3339Nano {
			t, err = time.Parse(layout, s)
		} else {
			t, err = time.ParseInLocation(layout, s, time.UTC)
		}
		if err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// String возвращает первое непустое строковое поле из списка псевдонимов
func (d Document) String(keys ...string) string {
	for _, k := range keys {
		if v, ok := d[k]; ok && v != nil {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

// Bool возвращает true, если хотя бы один из псевдонимов истинен
func (d Document) Bool(keys ...string) bool {
	for _, k := range keys {
		switch v := d[k].(type) {
		case bool:
			if v {
				return true
			}
		case string:
			if strings.EqualFold(v, "true") {
				return true
			}
		}
	}
	return false
}

// Int возвращает целое значение первого присутствующего псевдонима
func (d Document) Int(keys ...string) int {
	for _, k := range keys {
		if v, ok := d[k]; ok && v != nil {
			return int(amount.Parse(v).IntPart())
		}
	}
	return 0
}

// Time разбирает метку времени: ISO-строку, секунды Unix или объект {_seconds}
func (d Document) Time(keys ...string) (time.Time, bool) {
	for _, k := range keys {
		switch v := d[k].(type) {
		case string:
			if t, ok := ParseExpiry(v); ok {
				return t, true
			}
		case float64:
			return time.Unix(int64(v), 0).UTC(), true
		case int64:
			return time.Unix(v, 0).UTC(), true
		case map[string]any:
			for _, sk := range []string{"_seconds", "seconds"} {
				if sec, ok := v[sk].(float64); ok {
					return time.Unix(int64(sec), 0).UTC(), true
				}
			}
		}
	}
	return time.Time{}, false
}

func (d Document) optionalString(keys ...string) *string {
	if s := d.String(keys...); s != "" {
		return &s
	}
	return nil
}

// UserFromDocument переводит старую запись пользователя в каноническую форму
func UserFromDocument(id string, d Document) *User {
	email := d.String("email")
	name := d.String("full_name", "name", "display_name")
	if name == "" && email != "" {
		name = strings.Split(email, "@")[0]
	}

	u := &User{
		ID:                id,
		FullName:          name,
		Email:             email,
		Phone:             d.String("phone"),
		IsVIP:             d.Bool("is_vip", "isVIP"),
		TotalSpent:        amount.Parse(d["total_spent"]),
		ReferralCode:      strings.ToUpper(strings.TrimSpace(d.String("referral_code", "referralCode"))),
		ReferralCount:     d.Int("referral_count", "referralCount"),
		ReferralStreak:    d.Int("referral_streak"),
		ReferralStatus:    d.optionalString("referral_status"),
		LastClaimedReward: d.optionalString("last_claimed_reward"),
		TotalReferrals:    d.Int("total_referrals"),
		LastRewardGranted: d.optionalString("last_reward_claimed"),
	}

	if used := d.String("used_referral_code"); used != "" {
		normalized := strings.ToUpper(strings.TrimSpace(used))
		u.UsedReferralCode = &normalized
	}
	if exp, ok := ParseExpiry(d.String("vip_expires", "vipExpires")); ok {
		u.VIPExpires = &exp
	}
	if since, ok := ParseExpiry(d.String("vip_since", "vipSince")); ok {
		u.VIPSince = &since
	}
	if created, ok := d.Time("created_at"); ok {
		u.CreatedAt = created
	}

	return u
}

// BookingFromDocument переводит старую запись бронирования в каноническую форму
func BookingFromDocument(id string, d Document) *Booking {
	price := d["price"]
	if amount.Parse(price).IsZero() {
		price = d["amount"]
	}

	b := &Booking{
		ID:        id,
		UserID:    d.String("user_id", "userId"),
		UserEmail: d.String("user_email"),
		UserName:  d.String("user_name"),
		Service:   d.String("service", "requests"),
		Price:     amount.Parse(price),
		Date:      d.String("date"),
		Notes:     d.String("requests", "notes"),
		Receipt:   d.String("receipt"),
		Status:    d.String("status"),
	}
	if b.Status == "" {
		b.Status = BookingStatusPending
	}
	if created, ok := d.Time("created_at"); ok {
		b.CreatedAt = created
	}
	return b
}

// ApprovalFromDocument переводит старую заявку в каноническую форму
func ApprovalFromDocument(id string, d Document) *ApprovalRequest {
	r := &ApprovalRequest{
		ID:            id,
		Type:          d.String("type"),
		UserID:        d.String("user_id", "userId"),
		UserEmail:     d.String("user_email"),
		UserName:      d.String("user_name"),
		Service:       d.String("service"),
		Amount:        amount.Parse(d["amount"]),
		BookingID:     d.optionalString("booking_id"),
		Receipt:       d.String("receipt"),
		Status:        d.String("status"),
		ResolvedBy:    d.optionalString("confirmedBy", "declinedBy"),
		DeclineReason: d.optionalString("declineReason"),
	}
	if r.Status == "" {
		r.Status = ApprovalStatusPending
	}
	if created, ok := d.Time("created_at"); ok {
		r.CreatedAt = created
	}
	if resolved, ok := d.Time("confirmedAt", "declinedAt"); ok {
		r.ResolvedAt = &resolved
	}
	return r
}

// LedgerEntryFromDocument переводит старую запись журнала в каноническую форму.
// Старые записи не имели ключа заявки, поэтому ключом служит ID самой записи.
func LedgerEntryFromDocument(id string, d Document) *LedgerEntry {
	e := &LedgerEntry{
		ID:         id,
		ApprovalID: d.String("approval_id"),
		BookingID:  d.optionalString("booking_id"),
		UserID:     d.String("user_id"),
		UserEmail:  d.String("user_email"),
		UserName:   d.String("user_name"),
		Type:       d.String("type"),
		Service:    d.String("service", "label"),
		Amount:     amount.Parse(d["amount"]),
		Status:     LedgerStatusConfirmed,
	}
	if e.ApprovalID == "" {
		e.ApprovalID = "legacy-" + id
	}
	if created, ok := d.Time("created_at"); ok {
		e.CreatedAt = created
	}
	return e
}
