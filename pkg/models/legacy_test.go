package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseExpiry(t *testing.T) {
	want := time.Date(2025, 3, 1, 10, 30, 0, 0, time.UTC)

	tests := []struct {
		name  string
		input string
		ok    bool
	}{
		{name: "с маркером Z", input: "2025-03-01T10:30:00Z", ok: true},
		{name: "со смещением", input: "2025-03-01T10:30:00+00:00", ok: true},
		{name: "без зоны", input: "2025-03-01T10:30:00", ok: true},
		{name: "микросекунды и Z", input: "2025-03-01T10:30:00.000000Z", ok: true},
		{name: "пустая строка", input: "", ok: false},
		{name: "мусор", input: "завтра", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseExpiry(tt.input)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.True(t, want.Equal(got), "получено %s", got)
			}
		})
	}
}

func TestUserFromDocument_Aliases(t *testing.T) {
	doc := Document{
		"email":              "ada@example.com",
		"isVIP":              true,
		"vipExpires":         "2030-01-01T00:00:00Z",
		"total_spent":        "₦12,500",
		"referralCode":       "CELEB-ABCD",
		"used_referral_code": " celeb-wxyz ",
		"referral_count":     float64(2),
	}

	u := UserFromDocument("abcd1234", doc)

	assert.Equal(t, "ada", u.FullName)
	assert.True(t, u.IsVIP)
	require.NotNil(t, u.VIPExpires)
	assert.Equal(t, 2030, u.VIPExpires.Year())
	assert.True(t, u.TotalSpent.Equal(decimal.NewFromInt(12500)))
	assert.Equal(t, "CELEB-ABCD", u.ReferralCode)
	require.NotNil(t, u.UsedReferralCode)
	assert.Equal(t, "CELEB-WXYZ", *u.UsedReferralCode)
	assert.Equal(t, 2, u.ReferralCount)
}

func TestBookingFromDocument_PriceFallsBackToAmount(t *testing.T) {
	b := BookingFromDocument("b1", Document{
		"userId": "u1",
		"amount": "5,000",
		"status": "approved",
	})

	assert.Equal(t, "u1", b.UserID)
	assert.True(t, b.Price.Equal(decimal.NewFromInt(5000)))
	assert.True(t, IsSettledBookingStatus(b.Status))
}

func TestBookingFromDocument_DefaultStatus(t *testing.T) {
	b := BookingFromDocument("b2", Document{"price": 3000})
	assert.Equal(t, BookingStatusPending, b.Status)
}

func TestApprovalFromDocument(t *testing.T) {
	r := ApprovalFromDocument("a1", Document{
		"type":        "vip",
		"userId":      "u1",
		"amount":      2500,
		"status":      "confirmed",
		"confirmedBy": "admin@example.com",
		"confirmedAt": map[string]any{"_seconds": float64(1700000000)},
	})

	assert.Equal(t, ApprovalTypeVIP, r.Type)
	assert.True(t, r.IsResolved())
	require.NotNil(t, r.ResolvedBy)
	assert.Equal(t, "admin@example.com", *r.ResolvedBy)
	require.NotNil(t, r.ResolvedAt)
	assert.Equal(t, int64(1700000000), r.ResolvedAt.Unix())
}

func TestLedgerEntryFromDocument_SyntheticKey(t *testing.T) {
	e := LedgerEntryFromDocument("l1", Document{"amount": "2500", "type": "vip"})
	assert.Equal(t, "legacy-l1", e.ApprovalID)
	assert.Equal(t, LedgerStatusConfirmed, e.Status)
}

func TestSettledSpend(t *testing.T) {
	bookings := []*Booking{
		{Price: decimal.NewFromInt(5000), Status: BookingStatusConfirmed},
		{Price: decimal.NewFromInt(1000), Status: BookingStatusApproved},
		{Price: decimal.NewFromInt(700), Status: BookingStatusCompleted},
		{Price: decimal.NewFromInt(9999), Status: BookingStatusPendingApproval},
		{Price: decimal.NewFromInt(9999), Status: BookingStatusCancelled},
	}
	assert.True(t, SettledSpend(bookings).Equal(decimal.NewFromInt(6700)))
}

func TestHasActiveVIP(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	assert.False(t, (&User{IsVIP: false}).HasActiveVIP(now))
	assert.True(t, (&User{IsVIP: true}).HasActiveVIP(now))
	assert.True(t, (&User{IsVIP: true, VIPExpires: &future}).HasActiveVIP(now))
	assert.False(t, (&User{IsVIP: true, VIPExpires: &past}).HasActiveVIP(now))
}
