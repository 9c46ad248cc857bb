package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyCache_Miss(t *testing.T) {
	s := miniredis.RunT(t)
	cache := NewVerifyCache(goredis.NewClient(&goredis.Options{Addr: s.Addr()}))

	val, err := cache.Get(context.Background(), "sha256:abc")
	require.NoError(t, err)
	assert.Nil(t, val)
}

func TestVerifyCache_SetGet(t *testing.T) {
	s := miniredis.RunT(t)
	cache := NewVerifyCache(goredis.NewClient(&goredis.Options{Addr: s.Addr()}))
	ctx := context.Background()

	payload := []byte(`{"payload":{"receipt_id":"x"},"signature":"sig"}`)
	require.NoError(t, cache.Set(ctx, "sha256:abc", payload, time.Hour))

	val, err := cache.Get(ctx, "sha256:abc")
	require.NoError(t, err)
	assert.Equal(t, payload, val)
	assert.True(t, s.Exists("verify:sha256:abc"))
}

func TestVerifyCache_Expiry(t *testing.T) {
	s := miniredis.RunT(t)
	cache := NewVerifyCache(goredis.NewClient(&goredis.Options{Addr: s.Addr()}))
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "sha512:def", []byte("x"), time.Minute))
	s.FastForward(2 * time.Minute)

	val, err := cache.Get(ctx, "sha512:def")
	require.NoError(t, err)
	assert.Nil(t, val)
}
