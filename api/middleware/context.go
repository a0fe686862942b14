package middleware

import (
	"context"

	"github.com/google/uuid"
)

type contextKey uint8

const (
	keyUserID contextKey = iota
	keyRole
	keyAccessID
	keyCartSession
)

func lookup(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(key).(string)
	return v
}

func with(ctx context.Context, key contextKey, value string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, key, value)
}

func UserIDFromContext(ctx context.Context) string { return lookup(ctx, keyUserID) }

// UserUUIDFromContext returns nil for guests.
func UserUUIDFromContext(ctx context.Context) *uuid.UUID {
	id, err := uuid.Parse(UserIDFromContext(ctx))
	if err != nil {
		return nil
	}
	return &id
}

func RoleFromContext(ctx context.Context) string { return lookup(ctx, keyRole) }

// AccessIDFromContext returns the jti of the bearer token.
func AccessIDFromContext(ctx context.Context) string { return lookup(ctx, keyAccessID) }

func CartSessionFromContext(ctx context.Context) string { return lookup(ctx, keyCartSession) }

func WithUserID(ctx context.Context, userID string) context.Context {
	return with(ctx, keyUserID, userID)
}

func WithRole(ctx context.Context, role string) context.Context {
	return with(ctx, keyRole, role)
}

func WithCartSession(ctx context.Context, token string) context.Context {
	return with(ctx, keyCartSession, token)
}
