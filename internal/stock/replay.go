package stock

import (
	"fmt"

	"github.com/angelmondragon/storefront-backoffice/pkg/db/models"
)

// Replay folds movements from oldest to newest and returns the resulting
// quantity. It fails on the first movement whose before/after values break
// the chain or whose amount disagrees with its kind.
func Replay(movements []models.StockMovement) (int, error) {
	quantity := 0
	for i, m := range movements {
		if !m.Kind.IsValid() {
			return quantity, fmt.Errorf("movement %d has unknown kind %q", i, m.Kind)
		}
		if m.Amount < 0 {
			return quantity, fmt.Errorf("movement %d has negative amount %d", i, m.Amount)
		}
		if m.QuantityBefore != quantity {
			return quantity, fmt.Errorf("movement %d starts at %d, expected %d", i, m.QuantityBefore, quantity)
		}
		expected := m.QuantityBefore + m.SignedAmount()
		if expected < 0 {
			return quantity, fmt.Errorf("movement %d drives quantity below zero", i)
		}
		if m.QuantityAfter != expected {
			return quantity, fmt.Errorf("movement %d ends at %d, expected %d", i, m.QuantityAfter, expected)
		}
		quantity = m.QuantityAfter
	}
	return quantity, nil
}
