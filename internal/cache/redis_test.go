package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/extools/internal/config"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "pair:", Key("pair"))
	assert.Equal(t, "pair:chain:alvey:address:0xabc:", Key("pair", F("chain", "alvey"), F("address", "0xabc")))
}

func TestPattern(t *testing.T) {
	assert.Equal(t, "*:chain:alvey:*", Pattern(F("chain", "alvey")))
}

func TestExtract(t *testing.T) {
	key := Key("pair", F("chain", "alvey"), F("address", "0xabc"))

	v, ok := Extract(key, "address")
	assert.True(t, ok)
	assert.Equal(t, "0xabc", v)

	v, ok = Extract(key, "chain")
	assert.True(t, ok)
	assert.Equal(t, "alvey", v)

	_, ok = Extract(key, "symbol")
	assert.False(t, ok)

	_, ok = Extract("a:b", "b")
	assert.False(t, ok)
}

func TestContains(t *testing.T) {
	key := Key("pair", F("chain", "alvey"), F("address", "0xabc"))
	assert.True(t, contains(key, F("chain", "alvey")))
	assert.True(t, contains(key, F("address", "0xabc")))
	assert.False(t, contains(key, F("chain", "alv")))
	assert.False(t, contains(key, F("hain", "alvey")))
}

// Runs against a real server when REDIS_ADDR is set
func TestRedisJSON_Integration(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	ctx := context.Background()
	store := New(config.RedisConfig{Addr: addr, Prefix: "extools-test:"})
	defer store.Close()
	require.NoError(t, store.Ping(ctx))
	require.NoError(t, store.Clear(ctx))

	type pair struct {
		Symbol string `json:"symbol"`
	}

	k1 := Key("pair", F("chain", "alvey"), F("address", "0x1"))
	k2 := Key("pair", F("chain", "alvey"), F("address", "0x2"))
	k3 := Key("pair", F("chain", "bsc"), F("address", "0x3"))
	require.NoError(t, store.SetJSON(ctx, k1, pair{"WALV"}, time.Minute))
	require.NoError(t, store.SetJSON(ctx, k2, pair{"USDT"}, time.Minute))
	require.NoError(t, store.SetJSON(ctx, k3, pair{"BNB"}, time.Minute))

	keys, err := store.FindKeys(ctx, F("chain", "alvey"))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{k1, k2}, keys)

	var got pair
	ok, err := store.FindOne(ctx, &got, F("chain", "alvey"), F("address", "0x2"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "USDT", got.Symbol)

	all, err := store.FindAll(ctx, F("chain", "bsc"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"symbol":"BNB"}`, string(all[k3]))

	require.NoError(t, store.Delete(ctx, k3))
	_, ok, err = store.FindKey(ctx, F("chain", "bsc"))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = store.GetJSON(ctx, "missing:", &got)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Clear(ctx))
	keys, err = store.FindKeys(ctx, F("chain", "alvey"))
	require.NoError(t, err)
	assert.Empty(t, keys)
}
