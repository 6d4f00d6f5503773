package orders

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backoffice/pkg/db/models"
	"github.com/angelmondragon/storefront-backoffice/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backoffice/pkg/errors"
)

func strPtr(s string) *string { return &s }

func TestTransitionTable(t *testing.T) {
	allowed := map[enums.OrderStatus][]enums.OrderStatus{
		enums.OrderStatusPending:   {enums.OrderStatusConfirmed, enums.OrderStatusCancelled},
		enums.OrderStatusConfirmed: {enums.OrderStatusShipped, enums.OrderStatusCancelled},
		enums.OrderStatusShipped:   {enums.OrderStatusDelivered},
	}
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	for _, from := range enums.OrderStatuses() {
		for _, to := range enums.OrderStatuses() {
			order := &models.Order{Status: from}
			err := Transition(order, to, strPtr("note"), now)

			if contains(allowed[from], to) {
				require.NoError(t, err, "%s -> %s", from, to)
				assert.Equal(t, to, order.Status)
				assert.Equal(t, now, order.UpdatedAt)
				continue
			}
			require.Error(t, err, "%s -> %s", from, to)
			typed := pkgerrors.As(err)
			require.NotNil(t, typed)
			assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code(), "%s -> %s", from, to)
			assert.Equal(t, map[string]any{"from": string(from), "to": string(to)}, typed.Details())
			assert.Equal(t, from, order.Status)
		}
	}
}

func contains(list []enums.OrderStatus, target enums.OrderStatus) bool {
	for _, s := range list {
		if s == target {
			return true
		}
	}
	return false
}

func TestTransitionRequiresNotesForCancelAndShip(t *testing.T) {
	now := time.Now()
	for _, notes := range []*string{nil, strPtr(""), strPtr("   ")} {
		order := &models.Order{Status: enums.OrderStatusPending}
		err := Transition(order, enums.OrderStatusCancelled, notes, now)
		require.Error(t, err)
		assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
		assert.Equal(t, "cancellation reason is required", pkgerrors.As(err).Message())
		assert.Equal(t, enums.OrderStatusPending, order.Status)

		confirmed := &models.Order{Status: enums.OrderStatusConfirmed}
		err = Transition(confirmed, enums.OrderStatusShipped, notes, now)
		require.Error(t, err)
		assert.Equal(t, "shipping notes are required", pkgerrors.As(err).Message())
		assert.Equal(t, enums.OrderStatusConfirmed, confirmed.Status)
	}
}

func TestTransitionNotesCheckedBeforeTable(t *testing.T) {
	order := &models.Order{Status: enums.OrderStatusPending}
	err := Transition(order, enums.OrderStatusShipped, nil, time.Now())
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestTransitionNotesOverwrittenOnlyWhenProvided(t *testing.T) {
	order := &models.Order{Status: enums.OrderStatusConfirmed}
	require.NoError(t, Transition(order, enums.OrderStatusShipped, strPtr("  dispatched  "), time.Now()))
	require.NotNil(t, order.Notes)
	assert.Equal(t, "dispatched", *order.Notes)

	require.NoError(t, Transition(order, enums.OrderStatusDelivered, nil, time.Now()))
	assert.Equal(t, "dispatched", *order.Notes)
}

func TestTransitionRejectsUnknownTarget(t *testing.T) {
	order := &models.Order{Status: enums.OrderStatusPending}
	err := Transition(order, enums.OrderStatus("LOST"), nil, time.Now())
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
	assert.Error(t, Transition(nil, enums.OrderStatusConfirmed, nil, time.Now()))
}

func TestTerminalStatesAndHelpers(t *testing.T) {
	assert.True(t, IsTerminal(enums.OrderStatusDelivered))
	assert.True(t, IsTerminal(enums.OrderStatusCancelled))
	assert.False(t, IsTerminal(enums.OrderStatusPending))
	assert.False(t, IsTerminal(enums.OrderStatus("BOGUS")))

	targets := AllowedTransitions(enums.OrderStatusPending)
	assert.Equal(t, []enums.OrderStatus{enums.OrderStatusConfirmed, enums.OrderStatusCancelled}, targets)
	targets[0] = enums.OrderStatusDelivered
	assert.True(t, CanTransition(enums.OrderStatusPending, enums.OrderStatusConfirmed))
	assert.Empty(t, AllowedTransitions(enums.OrderStatusCancelled))
}
