package registry

import (
	"encoding/json"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backoffice/pkg/config"
	"github.com/angelmondragon/storefront-backoffice/pkg/db/models"
	"github.com/angelmondragon/storefront-backoffice/pkg/enums"
	"github.com/angelmondragon/storefront-backoffice/pkg/outbox"
	"github.com/angelmondragon/storefront-backoffice/pkg/outbox/payloads"
)

func newTestEventRegistry(t *testing.T) *EventRegistry {
	t.Helper()
	reg, err := NewEventRegistry(config.PubSubConfig{OrdersTopic: "orders-topic", StockTopic: "stock-topic"})
	require.NoError(t, err)
	return reg
}

func mustEnvelope(t *testing.T, data any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	envelope, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       raw,
	})
	require.NoError(t, err)
	return envelope
}

func TestEventRegistryResolveStockAdjusted(t *testing.T) {
	reg := newTestEventRegistry(t)

	event := models.OutboxEvent{
		EventType:     enums.EventStockAdjusted,
		AggregateType: enums.AggregateStockUnit,
		AggregateID:   uuid.New(),
		Payload: mustEnvelope(t, payloads.StockAdjustedEvent{
			StockUnitID:    "01HZX",
			Kind:           enums.MovementOut,
			Amount:         4,
			QuantityBefore: 42,
			QuantityAfter:  38,
			Reason:         "Stock outbound",
		}),
	}

	resolved, err := reg.Resolve(event)
	require.NoError(t, err)
	assert.Equal(t, "stock-topic", resolved.Descriptor.Topic)
	payload, ok := resolved.Payload.(*payloads.StockAdjustedEvent)
	require.True(t, ok, "unexpected payload type %T", resolved.Payload)
	assert.Equal(t, 38, payload.QuantityAfter)
	assert.NotEmpty(t, resolved.Envelope.EventID)
}

func TestEventRegistryRoutesOrderEvents(t *testing.T) {
	reg := newTestEventRegistry(t)

	event := models.OutboxEvent{
		EventType:     enums.EventOrderStatusChanged,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload: mustEnvelope(t, payloads.OrderStatusChangedEvent{
			OrderID: "01HZY",
			From:    enums.OrderStatusPending,
			To:      enums.OrderStatusConfirmed,
		}),
	}

	resolved, err := reg.Resolve(event)
	require.NoError(t, err)
	assert.Equal(t, "orders-topic", resolved.Descriptor.Topic)
}

func TestEventRegistryRejectsBadRows(t *testing.T) {
	reg := newTestEventRegistry(t)

	cases := map[string]models.OutboxEvent{
		"unknown type": {
			EventType:     "order.refunded",
			AggregateType: enums.AggregateOrder,
			AggregateID:   uuid.New(),
			Payload:       mustEnvelope(t, map[string]string{"a": "b"}),
		},
		"aggregate mismatch": {
			EventType:     enums.EventStockAdjusted,
			AggregateType: enums.AggregateOrder,
			AggregateID:   uuid.New(),
			Payload:       mustEnvelope(t, payloads.StockAdjustedEvent{}),
		},
		"missing aggregate": {
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			Payload:       mustEnvelope(t, payloads.OrderCreatedEvent{}),
		},
		"null payload": {
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   uuid.New(),
			Payload:       mustEnvelope(t, nil),
		},
		"broken envelope": {
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   uuid.New(),
			Payload:       json.RawMessage(`{"data":`),
		},
	}

	for name, event := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := reg.Resolve(event)
			require.Error(t, err)
			var nonRetry NonRetryableError
			assert.True(t, errors.As(err, &nonRetry), "expected non-retryable error, got %T", err)
		})
	}
}

func TestNewEventRegistryRequiresTopics(t *testing.T) {
	_, err := NewEventRegistry(config.PubSubConfig{OrdersTopic: "orders"})
	require.Error(t, err)

	reg := newTestEventRegistry(t)
	topics := reg.Topics()
	sort.Strings(topics)
	assert.Equal(t, []string{"orders-topic", "stock-topic"}, topics)
}
