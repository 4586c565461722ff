package reconciler

import (
	"context"
	"errors"
	"testing"
	"time"

	"celeb-barber/internal/apperr"
	"celeb-barber/internal/ledger"
	"celeb-barber/internal/referral"
	"celeb-barber/internal/store/memstore"
	"celeb-barber/pkg/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var now = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

func newService(t *testing.T) (*Service, *memstore.Store) {
	t.Helper()
	st := memstore.New()
	logger := zap.NewNop()
	refs := referral.NewService(st.User(), st.Booking(), "CELEB-", nil, logger)
	led := ledger.NewService(st.Ledger(), st.Booking(), nil, logger)

	s := NewService(st.User(), st.Booking(), led, refs, 30, nil, logger)
	s.now = func() time.Time { return now }
	return s, st
}

func addUser(t *testing.T, st *memstore.Store, u *models.User) {
	t.Helper()
	if u.ReferralCode == "" {
		u.ReferralCode = "CELEB-" + u.ID
	}
	require.NoError(t, st.User().Create(context.Background(), u))
}

func addBooking(t *testing.T, st *memstore.Store, id, userID, status string, price int64) {
	t.Helper()
	require.NoError(t, st.Booking().Create(context.Background(), &models.Booking{
		ID:     id,
		UserID: userID,
		Price:  decimal.NewFromInt(price),
		Status: status,
	}))
}

func timePtr(t time.Time) *time.Time { return &t }

func TestExtendExpiry(t *testing.T) {
	period := 30 * 24 * time.Hour
	tests := []struct {
		name    string
		current *time.Time
		days    int
		want    time.Time
	}{
		{name: "без срока", current: nil, days: 10, want: now.Add(period).AddDate(0, 0, 10)},
		{name: "истек пять дней назад", current: timePtr(now.AddDate(0, 0, -5)), days: 10, want: now.AddDate(0, 0, 10)},
		{name: "активный", current: timePtr(now.AddDate(0, 0, 3)), days: 7, want: now.AddDate(0, 0, 10)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtendExpiry(tt.current, now, period, tt.days))
		})
	}
}

func TestGiftDays(t *testing.T) {
	s, st := newService(t)
	ctx := context.Background()
	addUser(t, st, &models.User{ID: "u1", IsVIP: true, VIPExpires: timePtr(now.AddDate(0, 0, -5))})

	expires, err := s.GiftDays(ctx, "u1", 10)
	require.NoError(t, err)
	assert.Equal(t, now.AddDate(0, 0, 10), expires)

	u, err := st.User().GetByID(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, u.VIPExpires)
	assert.Equal(t, expires, *u.VIPExpires)

	for _, days := range []int{0, -3} {
		_, err := s.GiftDays(ctx, "u1", days)
		assert.ErrorIs(t, err, apperr.ErrInvalidInput)
	}

	_, err = s.GiftDays(ctx, "ghost", 5)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestActivateMembership(t *testing.T) {
	s, st := newService(t)
	ctx := context.Background()
	since := now.AddDate(0, 0, -20)
	addUser(t, st, &models.User{ID: "active", IsVIP: true, VIPSince: &since, VIPExpires: timePtr(now.AddDate(0, 0, 10))})
	addUser(t, st, &models.User{ID: "fresh"})

	expires, err := s.ActivateMembership(ctx, "fresh")
	require.NoError(t, err)
	assert.Equal(t, now.AddDate(0, 0, 30), expires)

	u, err := st.User().GetByID(ctx, "fresh")
	require.NoError(t, err)
	assert.True(t, u.IsVIP)
	assert.Equal(t, now, *u.VIPSince)

	_, err = s.ActivateMembership(ctx, "active")
	require.NoError(t, err)
	u, err = st.User().GetByID(ctx, "active")
	require.NoError(t, err)
	assert.Equal(t, since, *u.VIPSince, "дата начала сохраняется при продлении")
}

func TestRevokeAndExpire(t *testing.T) {
	s, st := newService(t)
	ctx := context.Background()
	addUser(t, st, &models.User{ID: "expired", IsVIP: true, VIPExpires: timePtr(now.Add(-time.Hour))})
	addUser(t, st, &models.User{ID: "active", IsVIP: true, VIPExpires: timePtr(now.Add(time.Hour))})

	revoked, err := s.ExpireMemberships(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, revoked)

	u, err := st.User().GetByID(ctx, "expired")
	require.NoError(t, err)
	assert.False(t, u.IsVIP)
	assert.Nil(t, u.VIPExpires)

	members, err := s.Memberships(ctx)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "active", members[0].User.ID)
	assert.True(t, members[0].ExpiringSoon)
}

func TestRecomputeSpend(t *testing.T) {
	s, st := newService(t)
	ctx := context.Background()
	addUser(t, st, &models.User{ID: "u1", TotalSpent: decimal.NewFromInt(999)})
	addBooking(t, st, "b1", "u1", models.BookingStatusConfirmed, 5000)
	addBooking(t, st, "b2", "u1", models.BookingStatusApproved, 2000)
	addBooking(t, st, "b3", "u1", models.BookingStatusCancelled, 7000)
	addBooking(t, st, "b4", "u1", models.BookingStatusPending, 3000)

	for i := 0; i < 2; i++ {
		total, err := s.RecomputeSpend(ctx, "u1")
		require.NoError(t, err)
		assert.True(t, total.Equal(decimal.NewFromInt(7000)))
	}

	u, err := st.User().GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, u.TotalSpent.Equal(decimal.NewFromInt(7000)))
}

func TestRecomputeSpend_CreditsReferralOnce(t *testing.T) {
	s, st := newService(t)
	ctx := context.Background()
	code := "CELEB-REF"
	addUser(t, st, &models.User{ID: "ref", ReferralCode: code})
	addUser(t, st, &models.User{ID: "u1", UsedReferralCode: &code})
	addBooking(t, st, "b1", "u1", models.BookingStatusConfirmed, 5000)

	_, err := s.RecomputeSpend(ctx, "u1")
	require.NoError(t, err)
	_, err = s.RecomputeSpend(ctx, "u1")
	require.NoError(t, err)

	ref, err := st.User().GetByID(ctx, "ref")
	require.NoError(t, err)
	assert.Equal(t, 1, ref.ReferralStreak)
}

func TestGetUserSpend(t *testing.T) {
	s, st := newService(t)
	ctx := context.Background()
	addUser(t, st, &models.User{ID: "with-bookings", TotalSpent: decimal.NewFromInt(1)})
	addBooking(t, st, "b1", "with-bookings", models.BookingStatusConfirmed, 5000)
	addUser(t, st, &models.User{ID: "with-ledger"})
	_, inserted, err := ledger.NewService(st.Ledger(), st.Booking(), nil, zap.NewNop()).Record(ctx, &models.ApprovalRequest{
		ID: "a1", Type: models.ApprovalTypeVIP, UserID: "with-ledger", Amount: decimal.NewFromInt(2500),
	})
	require.NoError(t, err)
	require.True(t, inserted)
	addUser(t, st, &models.User{ID: "legacy", TotalSpent: decimal.NewFromInt(12000)})

	tests := []struct {
		userID     string
		wantSource string
		wantTotal  int64
	}{
		{userID: "with-bookings", wantSource: models.SpendSourceBookings, wantTotal: 5000},
		{userID: "with-ledger", wantSource: models.SpendSourceLedger, wantTotal: 2500},
		{userID: "legacy", wantSource: models.SpendSourceStored, wantTotal: 12000},
	}

	for _, tt := range tests {
		t.Run(tt.userID, func(t *testing.T) {
			spend, err := s.GetUserSpend(ctx, tt.userID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSource, spend.Source)
			assert.True(t, spend.TotalSpent.Equal(decimal.NewFromInt(tt.wantTotal)))
		})
	}
}

func TestReconcile_DryRun(t *testing.T) {
	s, st := newService(t)
	ctx := context.Background()
	addUser(t, st, &models.User{ID: "u1", TotalSpent: decimal.NewFromInt(100)})
	addBooking(t, st, "b1", "u1", models.BookingStatusConfirmed, 5000)

	results, err := s.Reconcile(ctx, []string{"u1"}, true)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Changed)

	u, err := st.User().GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, u.TotalSpent.Equal(decimal.NewFromInt(100)), "пробный прогон ничего не пишет")

	_, err = s.Reconcile(ctx, nil, false)
	require.NoError(t, err)
	u, err = st.User().GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, u.TotalSpent.Equal(decimal.NewFromInt(5000)))
}

func TestStoreUnavailable(t *testing.T) {
	s, st := newService(t)
	addUser(t, st, &models.User{ID: "u1"})
	st.Fail(errors.New("нет соединения"))

	_, err := s.RecomputeSpend(context.Background(), "u1")
	assert.ErrorIs(t, err, apperr.ErrStoreUnavailable)
}
