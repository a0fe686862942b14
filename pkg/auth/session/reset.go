package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrInvalidResetToken = errors.New("invalid or expired reset token")

// ResetStore is the redis surface reset tokens need; *redis.Client satisfies it.
type ResetStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Take(ctx context.Context, key string) (string, bool, error)
	PasswordResetKey(digest string) string
}

// ResetTokens issues single-use password reset tokens. Redis holds only the
// token digest, mapped to the user id.
type ResetTokens struct {
	store ResetStore
	ttl   time.Duration
}

func NewResetTokens(store ResetStore, ttl time.Duration) (*ResetTokens, error) {
	if store == nil {
		return nil, fmt.Errorf("reset token store is required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("reset token ttl must be positive")
	}
	return &ResetTokens{store: store, ttl: ttl}, nil
}

// TTL is how long an issued token stays valid.
func (r *ResetTokens) TTL() time.Duration { return r.ttl }

func (r *ResetTokens) Issue(ctx context.Context, userID uuid.UUID) (string, error) {
	if userID == uuid.Nil {
		return "", fmt.Errorf("user id is required")
	}
	token, err := randomToken()
	if err != nil {
		return "", fmt.Errorf("generating reset token: %w", err)
	}
	if err := r.store.Set(ctx, r.store.PasswordResetKey(digest(token)), userID.String(), r.ttl); err != nil {
		return "", fmt.Errorf("store reset token: %w", err)
	}
	return token, nil
}

// Consume redeems token once and returns its user.
func (r *ResetTokens) Consume(ctx context.Context, token string) (uuid.UUID, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return uuid.Nil, ErrInvalidResetToken
	}
	raw, ok, err := r.store.Take(ctx, r.store.PasswordResetKey(digest(token)))
	if err != nil {
		return uuid.Nil, fmt.Errorf("load reset token: %w", err)
	}
	if !ok {
		return uuid.Nil, ErrInvalidResetToken
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, ErrInvalidResetToken
	}
	return userID, nil
}
