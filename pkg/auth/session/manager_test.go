package session

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/config"
)

type memoryStore struct {
	mu   sync.Mutex
	data map[string]string
	err  error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: map[string]string{}}
}

func (m *memoryStore) SetJSON(_ context.Context, key string, value any, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = string(raw)
	return nil
}

func (m *memoryStore) GetJSON(_ context.Context, key string, dest any) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal([]byte(raw), dest)
}

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

func (m *memoryStore) AccessSessionKey(accessID string) string { return "sess:" + accessID }

func newTestManager(store Store) *Manager {
	return &Manager{store: store, ttl: time.Hour, now: time.Now}
}

func TestGenerateStoresDigestOnly(t *testing.T) {
	store := newMemoryStore()
	manager := newTestManager(store)

	token, err := manager.Generate(context.Background(), "access-123")
	require.NoError(t, err)

	stored := store.data["sess:access-123"]
	assert.NotContains(t, stored, token)
	assert.True(t, strings.Contains(stored, digest(token)))
}

func TestRotateIsSingleUse(t *testing.T) {
	store := newMemoryStore()
	manager := newTestManager(store)
	ctx := context.Background()

	token, err := manager.Generate(ctx, "access-123")
	require.NoError(t, err)

	_, _, err = manager.Rotate(ctx, "access-123", "wrong")
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)

	newAccessID, newToken, err := manager.Rotate(ctx, "access-123", token)
	require.NoError(t, err)
	assert.NotEqual(t, token, newToken)
	assert.NotContains(t, store.data, "sess:access-123")
	assert.Contains(t, store.data, "sess:"+newAccessID)

	_, _, err = manager.Rotate(ctx, "access-123", token)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken, "replaying a rotated token must fail")
}

func TestRevokeEndsSession(t *testing.T) {
	store := newMemoryStore()
	manager := newTestManager(store)
	ctx := context.Background()

	_, err := manager.Generate(ctx, "access-1")
	require.NoError(t, err)
	ok, err := manager.HasSession(ctx, "access-1")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, manager.Revoke(ctx, "access-1"))
	ok, err = manager.HasSession(ctx, "access-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRotateSurfacesStoreFailure(t *testing.T) {
	store := newMemoryStore()
	store.err = errors.New("redis down")
	_, _, err := newTestManager(store).Rotate(context.Background(), "a", "b")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrInvalidRefreshToken))
}

func TestNewManagerRejectsShortRefreshTTL(t *testing.T) {
	_, err := NewManager(newMemoryStore(), config.JWTConfig{ExpirationMinutes: 60, RefreshTokenTTLMinutes: 30})
	assert.Error(t, err)
	_, err = NewManager(nil, config.JWTConfig{ExpirationMinutes: 15, RefreshTokenTTLMinutes: 60})
	assert.Error(t, err)
}
