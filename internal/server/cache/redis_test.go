package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, "refresh_token::user::u1", RefreshByUserKey("u1"))
	assert.Equal(t, "refresh_token::token::abc", RefreshByTokenKey("abc"))
	assert.Equal(t, "blacklist:token:j1", BlacklistKey("j1"))
	assert.NotEqual(t, BlacklistKey("x"), BlacklistExpiryKey)
}

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)

	c, err := NewRedisClient(context.Background(), Options{Addr: mr.Addr(), DialTimeout: time.Second, ReadTimeout: time.Second})
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Set(context.Background(), "k", "v", 0).Err())
	got, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}

func TestNewRedisClient_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedisClient(context.Background(), Options{Addr: addr, DialTimeout: 100 * time.Millisecond})
	require.ErrorContains(t, err, "redis ping")
}
