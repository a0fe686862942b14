package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), buf.String())
	return entry
}

func TestErrorKeepsContextFieldsAndStack(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "api", Level: "debug", Output: buf})

	ctx := log.WithRequestID(context.Background(), "req-123")
	ctx = log.WithFields(ctx, map[string]any{"order_number": "SF-1"})
	log.Error(ctx, "checkout.failed", errors.New("boom"))

	entry := decode(t, buf)
	assert.Equal(t, "req-123", entry["request_id"])
	assert.Equal(t, "SF-1", entry["order_number"])
	assert.Equal(t, "boom", entry["error"])
	assert.Equal(t, "api", entry["service"])
	assert.NotEmpty(t, entry["stack"])
}

func TestFieldsDoNotLeakToParentContext(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{Output: buf})
	parent := log.WithUserID(context.Background(), "u-1")
	_ = log.WithOrderID(parent, "o-1")

	log.Info(parent, "x")
	entry := decode(t, buf)
	assert.Equal(t, "u-1", entry["user_id"])
	assert.NotContains(t, entry, "order_id")
}

func TestWarnStackToggle(t *testing.T) {
	for enabled, want := range map[bool]bool{true: true, false: false} {
		buf := &bytes.Buffer{}
		New(Options{Output: buf, WarnStack: enabled}).Warn(context.Background(), "warn")
		_, has := decode(t, buf)["stack"]
		assert.Equal(t, want, has)
	}
}

func TestCartSessionIsTruncated(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{Output: buf})
	log.Info(log.WithCartSession(context.Background(), "abcdefghijklmnop"), "cart")
	assert.Equal(t, "abcdefgh", decode(t, buf)["cart_session"])

	buf.Reset()
	log.Info(log.WithCartSession(context.Background(), "abc"), "cart")
	assert.Equal(t, "abc", decode(t, buf)["cart_session"])
}

func TestDebugFilteredAtInfo(t *testing.T) {
	buf := &bytes.Buffer{}
	New(Options{Output: buf}).Debug(context.Background(), "hidden")
	assert.Zero(t, buf.Len())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("loud"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel(" WARN "))
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("debug"))
}
