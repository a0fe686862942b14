// Package idempotency lets broker consumers handle each event once even
// though delivery is at least once.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrUnavailable wraps failures of the claim store itself, as opposed to
// failures of the work being guarded.
var ErrUnavailable = errors.New("idempotency store unavailable")

type claimStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
}

// Manager records claims under keys of the form
// <prefix>evt:processed:<consumer>:<event_id>. A claim outlives its work by
// ttl so late redeliveries are still recognised.
type Manager struct {
	store claimStore
	ttl   time.Duration
	now   func() time.Time
}

func NewManager(store claimStore, ttl time.Duration) (*Manager, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, fmt.Errorf("ttl must be non-negative, got %s", ttl)
	}
	return &Manager{store: store, ttl: ttl, now: time.Now}, nil
}

// Once runs fn unless consumer already handled eventID. When fn fails the
// claim is dropped so the redelivery gets another try.
func (m *Manager) Once(ctx context.Context, consumer string, eventID uuid.UUID, fn func(context.Context) error) (skipped bool, err error) {
	key, err := m.key(consumer, eventID)
	if err != nil {
		return false, err
	}
	claimed, err := m.store.SetNX(ctx, key, m.now().UTC().Format(time.RFC3339), m.ttl)
	if err != nil {
		return false, fmt.Errorf("%w: claim %s: %v", ErrUnavailable, key, err)
	}
	if !claimed {
		return true, nil
	}
	if err := fn(ctx); err != nil {
		if delErr := m.store.Del(ctx, key); delErr != nil {
			return false, errors.Join(err, fmt.Errorf("%w: release %s: %v", ErrUnavailable, key, delErr))
		}
		return false, err
	}
	return false, nil
}

func (m *Manager) key(consumer string, eventID uuid.UUID) (string, error) {
	switch {
	case consumer == "":
		return "", errors.New("consumer name is required")
	case eventID == uuid.Nil:
		return "", errors.New("event id is required")
	}
	return m.store.IdempotencyKey("evt:processed:"+consumer, eventID.String()), nil
}
