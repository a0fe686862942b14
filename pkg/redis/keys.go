package redis

import "strings"

const defaultKeyPrefix = "sf"

// Keyspace builds every redis key the storefront writes so that all of them
// share one prefix and can be scanned or flushed together.
type Keyspace struct {
	prefix string
}

func NewKeyspace(prefix string) Keyspace {
	prefix = strings.Trim(strings.TrimSpace(prefix), ":")
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return Keyspace{prefix: prefix}
}

func (k Keyspace) join(parts ...string) string {
	prefix := k.prefix
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	b := strings.Builder{}
	b.WriteString(prefix)
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		b.WriteByte(':')
		b.WriteString(part)
	}
	return b.String()
}

// Idempotency keys replayable HTTP responses and consumer dedupe markers.
func (k Keyspace) Idempotency(scope, id string) string { return k.join("idem", scope, id) }

// RateLimit keys a fixed-window counter.
func (k Keyspace) RateLimit(scope string) string { return k.join("rl", scope) }

// Session keys the refresh token bound to an access token id.
func (k Keyspace) Session(accessID string) string { return k.join("session", accessID) }

// Webhook keys a processed gateway notification.
func (k Keyspace) Webhook(provider, eventID string) string {
	return k.join("webhook", provider, eventID)
}

// Lock keys a leader lock.
func (k Keyspace) Lock(name string) string { return k.join("lock", name) }

// PasswordReset is keyed by the digest of the emailed token.
func (k Keyspace) PasswordReset(digest string) string { return k.join("pwreset", digest) }

// Content keys a cached storefront content payload.
func (k Keyspace) Content(name string) string { return k.join("content", name) }
