package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	r := New(Config{Addr: mr.Addr(), Prefix: "celeb:"}, zap.NewNop())
	t.Cleanup(func() { _ = r.Close() })
	return r, mr
}

func TestRedis_JSONRoundTrip(t *testing.T) {
	r, mr := newTestRedis(t)
	ctx := context.Background()

	require.NoError(t, r.Ping(ctx))
	require.NoError(t, r.SetJSON(ctx, "price", "2500", time.Minute))
	assert.True(t, mr.Exists("celeb:price"))

	var got string
	found, err := r.GetJSON(ctx, "price", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "2500", got)

	mr.FastForward(2 * time.Minute)
	found, err = r.GetJSON(ctx, "price", &got)
	require.NoError(t, err)
	assert.False(t, found, "ключ должен истечь")
}

func TestRedis_Delete(t *testing.T) {
	r, mr := newTestRedis(t)
	ctx := context.Background()

	require.NoError(t, r.SetJSON(ctx, "k", 1, 0))
	require.NoError(t, r.Delete(ctx, "k"))
	assert.False(t, mr.Exists("celeb:k"))
}

func TestRedis_CorruptedValue(t *testing.T) {
	r, mr := newTestRedis(t)
	require.NoError(t, mr.Set("celeb:bad", "{не json"))

	var dest map[string]any
	found, err := r.GetJSON(context.Background(), "bad", &dest)
	assert.NoError(t, err)
	assert.False(t, found)
}

func TestRedis_Unavailable(t *testing.T) {
	r, mr := newTestRedis(t)
	mr.Close()

	var dest string
	_, err := r.GetJSON(context.Background(), "price", &dest)
	assert.Error(t, err)
}
