package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/config"
)

func newTestClient() (*Client, *fakeCommands) {
	fake := newFakeCommands()
	return &Client{cmd: fake, keys: NewKeyspace("")}, fake
}

func TestFixedWindowAllowExpiresOnFirstHitOnly(t *testing.T) {
	ctx := context.Background()
	client, fake := newTestClient()

	for i, want := range []bool{true, true, false} {
		allowed, count, err := client.FixedWindowAllow(ctx, "login:ip:1.2.3.4", 2, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, want, allowed, "hit %d", i+1)
		assert.EqualValues(t, i+1, count)
	}
	require.Len(t, fake.expires, 1)
	assert.Equal(t, "sf:rl:login:ip:1.2.3.4", fake.expires[0].key)
	assert.Equal(t, time.Minute, fake.expires[0].ttl)
}

func TestSetNXIsFirstWriterWins(t *testing.T) {
	ctx := context.Background()
	client, _ := newTestClient()
	key := client.WebhookEventKey("square", "evt-1")

	ok, err := client.SetNX(ctx, key, "1", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = client.SetNX(ctx, key, "1", time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, client.Del(ctx, key))
	_, err = client.Get(ctx, key)
	assert.ErrorIs(t, err, redis.Nil)
}

func TestJSONRoundTripAndMissingKey(t *testing.T) {
	ctx := context.Background()
	client, _ := newTestClient()
	type record struct {
		Status int    `json:"status"`
		Hash   string `json:"hash"`
	}

	var got record
	found, err := client.GetJSON(ctx, "sf:idem:missing", &got)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, client.SetJSON(ctx, "sf:idem:checkout", record{Status: 201, Hash: "abc"}, time.Hour))
	found, err = client.GetJSON(ctx, "sf:idem:checkout", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, record{Status: 201, Hash: "abc"}, got)
}

func TestGetJSONReportsCorruptValues(t *testing.T) {
	ctx := context.Background()
	client, _ := newTestClient()
	require.NoError(t, client.Set(ctx, "sf:idem:bad", "not-json", 0))

	var dest map[string]any
	found, err := client.GetJSON(ctx, "sf:idem:bad", &dest)
	assert.True(t, found)
	assert.Error(t, err)
}

func TestCompareAndDeleteOnlyRemovesOwnValue(t *testing.T) {
	ctx := context.Background()
	client, fake := newTestClient()
	key := client.LockKey("cron")
	fake.data[key] = "worker-b"

	deleted, err := client.CompareAndDelete(ctx, key, "worker-a")
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.Equal(t, "worker-b", fake.data[key])

	deleted, err = client.CompareAndDelete(ctx, key, "worker-b")
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.NotContains(t, fake.data, key)
}

func TestTakeIsSingleUse(t *testing.T) {
	ctx := context.Background()
	client, _ := newTestClient()
	key := client.PasswordResetKey("digest")
	require.NoError(t, client.Set(ctx, key, "user-1", time.Hour))

	value, ok, err := client.Take(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "user-1", value)

	_, ok, err = client.Take(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUninitializedClient(t *testing.T) {
	client := &Client{}
	assert.Error(t, client.Ping(context.Background()))
	_, err := client.IncrWithTTL(context.Background(), "k", time.Second)
	assert.Error(t, err)
	assert.NoError(t, client.Close())
}

func TestKeyspace(t *testing.T) {
	keys := NewKeyspace("shop:")
	assert.Equal(t, "shop:idem:user-1|POST|/api/v1/checkout:abc", keys.Idempotency("user-1|POST|/api/v1/checkout", "abc"))
	assert.Equal(t, "shop:session:jti", keys.Session("jti"))
	assert.Equal(t, "shop:webhook:square", keys.Webhook("square", ""))
	assert.Equal(t, "shop:lock:cron", keys.Lock("cron"))
	assert.Equal(t, "shop:pwreset:abc", keys.PasswordReset("abc"))
	assert.Equal(t, "shop:content:home", keys.Content("home"))
	assert.Equal(t, "sf:rl:x", Keyspace{}.RateLimit("x"))
}

func TestOptionsFromConfig(t *testing.T) {
	opts, err := optionsFromConfig(config.RedisConfig{URL: "redis://:secret@cache:6380/2", PoolSize: 20, DialTimeout: time.Second})
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, 20, opts.PoolSize)
	assert.Equal(t, time.Second, opts.DialTimeout)

	opts, err = optionsFromConfig(config.RedisConfig{Address: "localhost:6379", DB: 3})
	require.NoError(t, err)
	assert.Equal(t, 3, opts.DB)

	_, err = optionsFromConfig(config.RedisConfig{})
	assert.Error(t, err)
}

type expireCall struct {
	key string
	ttl time.Duration
}

type fakeCommands struct {
	data    map[string]string
	counts  map[string]int64
	expires []expireCall
	err     error
}

func newFakeCommands() *fakeCommands {
	return &fakeCommands{data: map[string]string{}, counts: map[string]int64{}}
}

func stringify(value any) string {
	if b, ok := value.([]byte); ok {
		return string(b)
	}
	return fmt.Sprint(value)
}

func (f *fakeCommands) Ping(context.Context) *redis.StatusCmd {
	if f.err != nil {
		return redis.NewStatusResult("", f.err)
	}
	return redis.NewStatusResult("PONG", nil)
}

func (f *fakeCommands) Set(_ context.Context, key string, value any, _ time.Duration) *redis.StatusCmd {
	f.data[key] = stringify(value)
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeCommands) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeCommands) GetDel(_ context.Context, key string) *redis.StringCmd {
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	delete(f.data, key)
	return redis.NewStringResult(v, nil)
}

func (f *fakeCommands) SetNX(_ context.Context, key string, value any, _ time.Duration) *redis.BoolCmd {
	if _, exists := f.data[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	f.data[key] = stringify(value)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeCommands) Incr(_ context.Context, key string) *redis.IntCmd {
	f.counts[key]++
	return redis.NewIntResult(f.counts[key], nil)
}

func (f *fakeCommands) Expire(_ context.Context, key string, ttl time.Duration) *redis.BoolCmd {
	f.expires = append(f.expires, expireCall{key: key, ttl: ttl})
	return redis.NewBoolResult(true, nil)
}

func (f *fakeCommands) Del(_ context.Context, keys ...string) *redis.IntCmd {
	for _, key := range keys {
		delete(f.data, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

// Eval understands only the compare-and-delete script the client sends.
func (f *fakeCommands) Eval(_ context.Context, _ string, keys []string, args ...any) *redis.Cmd {
	if len(keys) == 1 && len(args) == 1 && f.data[keys[0]] == stringify(args[0]) {
		delete(f.data, keys[0])
		return redis.NewCmdResult(int64(1), nil)
	}
	return redis.NewCmdResult(int64(0), nil)
}
