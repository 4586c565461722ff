package settings

import (
	"context"
	"errors"
	"testing"
	"time"

	"celeb-barber/internal/apperr"
	"celeb-barber/internal/cache"
	"celeb-barber/internal/store/memstore"

	"github.com/alicebob/miniredis/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var defaultPrice = decimal.NewFromInt(2500)

func newService(t *testing.T) (*Service, *memstore.Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rc := cache.New(cache.Config{Addr: mr.Addr(), Prefix: "test:"}, zap.NewNop())
	t.Cleanup(func() { _ = rc.Close() })

	st := memstore.New()
	return NewService(st.Settings(), rc, time.Minute, defaultPrice, zap.NewNop()), st, mr
}

func TestVIPPrice_DefaultWhenMissing(t *testing.T) {
	s, _, _ := newService(t)

	price, err := s.VIPPrice(context.Background())
	require.NoError(t, err)
	assert.True(t, price.Equal(defaultPrice))
}

func TestVIPPrice_StoredValue(t *testing.T) {
	tests := []struct {
		name   string
		stored string
		want   decimal.Decimal
	}{
		{name: "число", stored: "3000", want: decimal.NewFromInt(3000)},
		{name: "с разделителями", stored: "₦4,500", want: decimal.NewFromInt(4500)},
		{name: "мусор", stored: "бесплатно", want: defaultPrice},
		{name: "ноль", stored: "0", want: defaultPrice},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, st, _ := newService(t)
			require.NoError(t, st.Settings().Set(context.Background(), KeyVIPPrice, tt.stored))

			price, err := s.VIPPrice(context.Background())
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(price), "получено %s", price)
		})
	}
}

func TestVIPPrice_ServedFromCache(t *testing.T) {
	s, st, mr := newService(t)
	ctx := context.Background()
	require.NoError(t, st.Settings().Set(ctx, KeyVIPPrice, "3000"))

	_, err := s.VIPPrice(ctx)
	require.NoError(t, err)
	assert.True(t, mr.Exists("test:"+KeyVIPPrice))

	// хранилище недоступно, но значение есть в кэше
	st.Fail(errors.New("нет соединения"))
	price, err := s.VIPPrice(ctx)
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.NewFromInt(3000)))
}

func TestVIPPrice_StoreUnavailable(t *testing.T) {
	s, st, _ := newService(t)
	st.Fail(errors.New("нет соединения"))

	_, err := s.VIPPrice(context.Background())
	assert.ErrorIs(t, err, apperr.ErrStoreUnavailable)
}

func TestVIPPrice_CacheDownFallsBackToStore(t *testing.T) {
	s, st, mr := newService(t)
	ctx := context.Background()
	require.NoError(t, st.Settings().Set(ctx, KeyVIPPrice, "2800"))
	mr.Close()

	price, err := s.VIPPrice(ctx)
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.NewFromInt(2800)))
}

func TestSetVIPPrice(t *testing.T) {
	s, _, _ := newService(t)
	ctx := context.Background()

	_, err := s.VIPPrice(ctx) // прогреваем кэш значением по умолчанию
	require.NoError(t, err)

	require.NoError(t, s.SetVIPPrice(ctx, decimal.NewFromInt(4000)))
	price, err := s.VIPPrice(ctx)
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.NewFromInt(4000)), "кэш должен сброситься")

	err = s.SetVIPPrice(ctx, decimal.Zero)
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestVIPPrice_WithoutCache(t *testing.T) {
	st := memstore.New()
	s := NewService(st.Settings(), nil, time.Minute, defaultPrice, zap.NewNop())

	price, err := s.VIPPrice(context.Background())
	require.NoError(t, err)
	assert.True(t, price.Equal(defaultPrice))
}
