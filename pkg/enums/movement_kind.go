package enums

import "fmt"

// MovementKind is the direction of a stock movement.
type MovementKind string

const (
	MovementIn  MovementKind = "IN"
	MovementOut MovementKind = "OUT"
)

// String implements fmt.Stringer.
func (k MovementKind) String() string {
	return string(k)
}

// IsValid reports whether the value is IN or OUT.
func (k MovementKind) IsValid() bool {
	return k == MovementIn || k == MovementOut
}

// DefaultReason is the movement reason recorded when the caller supplies none.
func (k MovementKind) DefaultReason() string {
	if k == MovementOut {
		return "Stock outbound"
	}
	return "Stock inbound"
}

// ParseMovementKind converts raw input into a MovementKind.
func ParseMovementKind(value string) (MovementKind, error) {
	switch MovementKind(value) {
	case MovementIn:
		return MovementIn, nil
	case MovementOut:
		return MovementOut, nil
	}
	return "", fmt.Errorf("invalid movement kind %q", value)
}
