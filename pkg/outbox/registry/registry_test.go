package registry

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

func sealed(t *testing.T, data string) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC),
		Data:       json.RawMessage(data),
	})
	require.NoError(t, err)
	return raw
}

func newRegistry(t *testing.T) *Registry {
	t.Helper()
	reg, err := New("domain-topic")
	require.NoError(t, err)
	return reg
}

func TestResolveDecodesTypedPayload(t *testing.T) {
	orderID := uuid.New()
	data, err := json.Marshal(payloads.OrderStatusChangedEvent{
		OrderID:        orderID,
		PreviousStatus: enums.OrderStatusPending,
		Status:         enums.OrderStatusProcessing,
		Paid:           true,
	})
	require.NoError(t, err)

	resolved, err := newRegistry(t).Resolve(models.OutboxEvent{
		EventType:     enums.EventOrderStatusChanged,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderID,
		Payload:       sealed(t, string(data)),
	})
	require.NoError(t, err)
	assert.Equal(t, "domain-topic", resolved.Route.Topic)
	payload, ok := resolved.Payload.(*payloads.OrderStatusChangedEvent)
	require.True(t, ok, "got %T", resolved.Payload)
	assert.Equal(t, orderID, payload.OrderID)
	assert.True(t, payload.Paid)
	assert.NotEmpty(t, resolved.Envelope.EventID)
}

func TestResolveRejections(t *testing.T) {
	reg := newRegistry(t)
	cases := map[string]struct {
		event models.OutboxEvent
		want  error
	}{
		"unknown type": {
			event: models.OutboxEvent{EventType: "cart.abandoned", AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: sealed(t, `{}`)},
			want:  ErrUnroutable,
		},
		"aggregate mismatch": {
			event: models.OutboxEvent{EventType: enums.EventUserRegistered, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: sealed(t, `{}`)},
			want:  ErrMalformed,
		},
		"nil aggregate": {
			event: models.OutboxEvent{EventType: enums.EventOrderCreated, AggregateType: enums.AggregateOrder, Payload: sealed(t, `{}`)},
			want:  ErrMalformed,
		},
		"null data": {
			event: models.OutboxEvent{EventType: enums.EventOrderCreated, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: sealed(t, `null`)},
			want:  ErrMalformed,
		},
		"broken envelope": {
			event: models.OutboxEvent{EventType: enums.EventOrderCreated, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: json.RawMessage(`{"data":`)},
			want:  ErrMalformed,
		},
		"wrong data shape": {
			event: models.OutboxEvent{EventType: enums.EventOrderCreated, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: sealed(t, `{"order_id":42}`)},
			want:  ErrMalformed,
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := reg.Resolve(tc.event)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestNewRequiresTopic(t *testing.T) {
	_, err := New("  ")
	assert.Error(t, err)
	assert.Len(t, newRegistry(t).Routes(), 6)
}
