package payments

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrVerificationTimeout is returned when the provider does not answer in time.
var ErrVerificationTimeout = errors.New("payment verification timed out")

// Verification is the provider's verdict on a checkout session.
type Verification struct {
	Success       bool   `json:"success"`
	PaymentStatus string `json:"paymentStatus"`
	SessionID     string `json:"sessionId"`
	AmountTotal   int64  `json:"amountTotal"`
	Currency      string `json:"currency"`
	Message       string `json:"message,omitempty"`
}

// Gateway verifies that a checkout session was paid.
type Gateway interface {
	VerifySession(ctx context.Context, sessionRef string) (*Verification, error)
}

type timeoutGateway struct {
	next    Gateway
	timeout time.Duration
}

// WithTimeout bounds every verification by timeout. A non-positive timeout
// returns next unchanged.
func WithTimeout(next Gateway, timeout time.Duration) Gateway {
	if timeout <= 0 {
		return next
	}
	return &timeoutGateway{next: next, timeout: timeout}
}

func (g *timeoutGateway) VerifySession(ctx context.Context, sessionRef string) (*Verification, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	type outcome struct {
		verification *Verification
		err          error
	}
	done := make(chan outcome, 1)
	go func() {
		v, err := g.next.VerifySession(ctx, sessionRef)
		done <- outcome{verification: v, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s: %v", ErrVerificationTimeout, g.timeout, res.err)
		}
		return res.verification, res.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s", ErrVerificationTimeout, g.timeout)
		}
		return nil, ctx.Err()
	}
}
