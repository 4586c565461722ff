package referral

import (
	"context"
	"errors"
	"testing"
	"time"

	"celeb-barber/internal/apperr"
	"celeb-barber/internal/store"
	"celeb-barber/internal/store/memstore"
	"celeb-barber/pkg/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newService(t *testing.T) (*Service, *memstore.Store) {
	t.Helper()
	st := memstore.New()
	return NewService(st.User(), st.Booking(), "CELEB-", nil, zap.NewNop()), st
}

func addUser(t *testing.T, s *Service, st *memstore.Store, id string) *models.User {
	t.Helper()
	u := &models.User{ID: id, FullName: "Клиент " + id, Email: id + "@example.com", ReferralCode: s.CodeFor(id)}
	require.NoError(t, st.User().Create(context.Background(), u))
	return u
}

func strPtr(s string) *string { return &s }

// flakyLinks отказывает в первой привязке, как оборвавшееся соединение
type flakyLinks struct {
	store.UserRepository
	failures int
}

func (f *flakyLinks) LinkReferral(ctx context.Context, userID, code, referrerID string) (bool, error) {
	if f.failures > 0 {
		f.failures--
		return false, apperr.Unavailable("привязка приглашения", errors.New("соединение разорвано"))
	}
	return f.UserRepository.LinkReferral(ctx, userID, code, referrerID)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		code string
		want string
	}{
		{name: "пробелы по краям", code: " abc123 ", want: "ABC123"},
		{name: "уже нормализован", code: "ABC123", want: "ABC123"},
		{name: "смешанный регистр и управляющие символы", code: "\tcelEB-x1y2\n", want: "CELEB-X1Y2"},
		{name: "пустой", code: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			once := Normalize(tt.code)
			assert.Equal(t, tt.want, once)
			assert.Equal(t, once, Normalize(once))
		})
	}

	assert.Equal(t, Normalize(" abc123 "), Normalize("ABC123"))
}

func TestCode(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
		userID string
		want   string
	}{
		{name: "длинный ID", prefix: "CELEB-", userID: "ab12cd34", want: "CELEB-AB12"},
		{name: "короткий ID", prefix: "CELEB-", userID: "x9", want: "CELEB-X9"},
		{name: "нижний регистр префикса", prefix: "celeb-", userID: "zzzz", want: "CELEB-ZZZZ"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Code(tt.prefix, tt.userID))
		})
	}
}

func TestDeriveStatus(t *testing.T) {
	tests := []struct {
		name  string
		user  *models.User
		spend decimal.Decimal
		want  string
	}{
		{name: "нет трат", user: &models.User{}, spend: decimal.Zero, want: models.ReferralStatusPending},
		{name: "есть траты", user: &models.User{}, spend: decimal.NewFromInt(100), want: models.ReferralStatusSuccessful},
		{name: "явный статус важнее", user: &models.User{ReferralStatus: strPtr(models.ReferralStatusPending)}, spend: decimal.NewFromInt(100), want: models.ReferralStatusPending},
		{name: "пустой явный статус", user: &models.User{ReferralStatus: strPtr("")}, spend: decimal.Zero, want: models.ReferralStatusPending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveStatus(tt.user, tt.spend))
		})
	}
}

func TestLink(t *testing.T) {
	s, st := newService(t)
	ctx := context.Background()
	ref := addUser(t, s, st, "ref1")
	addUser(t, s, st, "new1")

	linked, err := s.Link(ctx, "new1", "  celeb-ref1 ")
	require.NoError(t, err)
	assert.True(t, linked)

	// повторная привязка не увеличивает счетчик
	linked, err = s.Link(ctx, "new1", ref.ReferralCode)
	require.NoError(t, err)
	assert.False(t, linked)

	got, err := st.User().GetByID(ctx, "ref1")
	require.NoError(t, err)
	assert.Equal(t, 1, got.ReferralCount)

	u, err := st.User().GetByID(ctx, "new1")
	require.NoError(t, err)
	require.NotNil(t, u.UsedReferralCode)
	assert.Equal(t, "CELEB-REF1", *u.UsedReferralCode)
}

func TestLink_RetryAfterFailure(t *testing.T) {
	st := memstore.New()
	users := &flakyLinks{UserRepository: st.User(), failures: 1}
	s := NewService(users, st.Booking(), "CELEB-", nil, zap.NewNop())
	ctx := context.Background()
	addUser(t, s, st, "ref1")
	addUser(t, s, st, "new1")

	_, err := s.Link(ctx, "new1", "CELEB-REF1")
	require.True(t, errors.Is(err, apperr.ErrStoreUnavailable))

	u, err := st.User().GetByID(ctx, "new1")
	require.NoError(t, err)
	assert.Nil(t, u.UsedReferralCode)

	linked, err := s.Link(ctx, "new1", "CELEB-REF1")
	require.NoError(t, err)
	assert.True(t, linked)

	ref, err := st.User().GetByID(ctx, "ref1")
	require.NoError(t, err)
	assert.Equal(t, 1, ref.ReferralCount)
}

func TestLinkReferral_MissingReferrerWritesNothing(t *testing.T) {
	s, st := newService(t)
	ctx := context.Background()
	addUser(t, s, st, "new1")

	_, err := st.User().LinkReferral(ctx, "new1", "CELEB-GONE", "gone")
	require.True(t, errors.Is(err, apperr.ErrNotFound))

	u, err := st.User().GetByID(ctx, "new1")
	require.NoError(t, err)
	assert.Nil(t, u.UsedReferralCode)
}

func TestLink_Skipped(t *testing.T) {
	tests := []struct {
		name string
		code string
	}{
		{name: "пустой код", code: "  "},
		{name: "неизвестный код", code: "CELEB-NOPE"},
		{name: "собственный код", code: "CELEB-SELF"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, st := newService(t)
			addUser(t, s, st, "self")

			linked, err := s.Link(context.Background(), "self", tt.code)
			require.NoError(t, err)
			assert.False(t, linked)

			u, err := st.User().GetByID(context.Background(), "self")
			require.NoError(t, err)
			assert.Nil(t, u.UsedReferralCode)
			assert.Equal(t, 0, u.ReferralCount)
		})
	}
}

func TestCreditSuccessful(t *testing.T) {
	s, st := newService(t)
	ctx := context.Background()
	addUser(t, s, st, "ref1")
	addUser(t, s, st, "new1")
	_, err := s.Link(ctx, "new1", "CELEB-REF1")
	require.NoError(t, err)

	credited, err := s.CreditSuccessful(ctx, "new1")
	require.NoError(t, err)
	assert.True(t, credited)

	credited, err = s.CreditSuccessful(ctx, "new1")
	require.NoError(t, err)
	assert.False(t, credited)

	ref, err := st.User().GetByID(ctx, "ref1")
	require.NoError(t, err)
	assert.Equal(t, 1, ref.ReferralStreak)
}

func TestGrantReward(t *testing.T) {
	s, st := newService(t)
	ctx := context.Background()
	at := time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return at }

	addUser(t, s, st, "ref1")
	addUser(t, s, st, "new1")
	addUser(t, s, st, "new2")
	for _, id := range []string{"new1", "new2"} {
		_, err := s.Link(ctx, id, "CELEB-REF1")
		require.NoError(t, err)
	}
	_, err := s.CreditSuccessful(ctx, "new2")
	require.NoError(t, err)

	require.NoError(t, s.GrantReward(ctx, "new1", ""))

	u, err := st.User().GetByID(ctx, "new1")
	require.NoError(t, err)
	assert.Equal(t, models.RewardThirtyOff, *u.LastClaimedReward)
	assert.Equal(t, at, *u.RewardClaimedAt)
	assert.Equal(t, models.ReferralStatusSuccessful, *u.ReferralStatus)
	assert.Equal(t, 1, u.TotalReferrals)
	assert.True(t, u.ReferralCredited)

	ref, err := st.User().GetByID(ctx, "ref1")
	require.NoError(t, err)
	assert.Equal(t, 0, ref.ReferralStreak)
	assert.Equal(t, models.RewardThirtyOff, *ref.LastRewardGranted)

	// погашенное наградой приглашение не попадает в серию
	credited, err := s.CreditSuccessful(ctx, "new1")
	require.NoError(t, err)
	assert.False(t, credited)

	assert.ErrorIs(t, s.GrantReward(ctx, "new1", "lifetime"), apperr.ErrInvalidInput)
	assert.ErrorIs(t, s.GrantReward(ctx, "ghost", models.RewardFreeCut), apperr.ErrNotFound)
}

func TestGrantReward_WithoutReferrer(t *testing.T) {
	s, st := newService(t)
	ctx := context.Background()
	addUser(t, s, st, "solo")

	require.NoError(t, s.GrantReward(ctx, "solo", models.RewardFreeCut))

	u, err := st.User().GetByID(ctx, "solo")
	require.NoError(t, err)
	assert.Equal(t, models.RewardFreeCut, *u.LastClaimedReward)
}

func TestUnlink(t *testing.T) {
	s, st := newService(t)
	ctx := context.Background()
	addUser(t, s, st, "ref1")
	addUser(t, s, st, "new1")
	_, err := s.Link(ctx, "new1", "CELEB-REF1")
	require.NoError(t, err)

	require.NoError(t, s.Unlink(ctx, "new1"))
	assert.ErrorIs(t, s.Unlink(ctx, "new1"), apperr.ErrNotFound)

	ref, err := st.User().GetByID(ctx, "ref1")
	require.NoError(t, err)
	assert.Equal(t, 0, ref.ReferralCount)
}

func TestListAndStatus(t *testing.T) {
	s, st := newService(t)
	ctx := context.Background()
	addUser(t, s, st, "ref1")
	addUser(t, s, st, "paid")
	addUser(t, s, st, "idle")
	for _, id := range []string{"paid", "idle"} {
		_, err := s.Link(ctx, id, "CELEB-REF1")
		require.NoError(t, err)
	}
	require.NoError(t, st.Booking().Create(ctx, &models.Booking{
		ID: "b1", UserID: "paid", Price: decimal.NewFromInt(5000), Status: models.BookingStatusConfirmed,
	}))

	status, err := s.Status(ctx, "paid")
	require.NoError(t, err)
	assert.Equal(t, models.ReferralStatusSuccessful, status)

	status, err = s.Status(ctx, "idle")
	require.NoError(t, err)
	assert.Equal(t, models.ReferralStatusPending, status)

	links, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, links, 2)
	for _, l := range links {
		assert.Equal(t, "ref1", l.ReferrerID)
		assert.Equal(t, 2, l.ReferralCount)
	}

	mine, err := s.ForReferrer(ctx, "ref1")
	require.NoError(t, err)
	assert.Len(t, mine, 2)
}

func TestStoreUnavailable(t *testing.T) {
	s, st := newService(t)
	addUser(t, s, st, "u1")
	st.Fail(errors.New("нет соединения"))

	_, err := s.Link(context.Background(), "u1", "CELEB-X")
	assert.ErrorIs(t, err, apperr.ErrStoreUnavailable)
}
