package orders

import (
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-backoffice/pkg/db/models"
	"github.com/angelmondragon/storefront-backoffice/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backoffice/pkg/errors"
)

var transitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPending:   {enums.OrderStatusConfirmed, enums.OrderStatusCancelled},
	enums.OrderStatusConfirmed: {enums.OrderStatusShipped, enums.OrderStatusCancelled},
	enums.OrderStatusShipped:   {enums.OrderStatusDelivered},
}

// AllowedTransitions lists the statuses reachable from from in one step.
func AllowedTransitions(from enums.OrderStatus) []enums.OrderStatus {
	targets := transitions[from]
	out := make([]enums.OrderStatus, len(targets))
	copy(out, targets)
	return out
}

// IsTerminal reports whether no transition leaves status.
func IsTerminal(status enums.OrderStatus) bool {
	return status.IsValid() && len(transitions[status]) == 0
}

// CanTransition reports whether the table allows from -> to.
func CanTransition(from, to enums.OrderStatus) bool {
	for _, candidate := range transitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// Transition moves order to target, enforcing the lifecycle table and the
// notes requirements of cancellation and shipping. On error the order is
// left untouched.
func Transition(order *models.Order, target enums.OrderStatus, notes *string, now time.Time) error {
	if order == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order is required")
	}
	if !target.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown order status %q", target)).
			WithDetails(map[string]any{"status": string(target)})
	}

	trimmed := normalizeNotes(notes)
	switch target {
	case enums.OrderStatusCancelled:
		if trimmed == nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "cancellation reason is required")
		}
	case enums.OrderStatusShipped:
		if trimmed == nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "shipping notes are required")
		}
	}

	if err := checkTransition(order.Status, target); err != nil {
		return err
	}

	order.Status = target
	if trimmed != nil {
		order.Notes = trimmed
	}
	order.UpdatedAt = now
	return nil
}

func checkTransition(from, to enums.OrderStatus) error {
	if CanTransition(from, to) {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("cannot transition order from %s to %s", from, to)).
		WithDetails(map[string]any{"from": string(from), "to": string(to)})
}

func normalizeNotes(notes *string) *string {
	if notes == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*notes)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
