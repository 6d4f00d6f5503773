package payments

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v78"

	stripeclient "github.com/angelmondragon/storefront-backoffice/pkg/stripe"
)

// StripeGateway verifies Stripe Checkout sessions.
type StripeGateway struct {
	sessions stripeclient.CheckoutSessionAPI
}

func NewStripeGateway(sessions stripeclient.CheckoutSessionAPI) (*StripeGateway, error) {
	if sessions == nil {
		return nil, errors.New("stripe checkout session api required")
	}
	return &StripeGateway{sessions: sessions}, nil
}

// VerifySession succeeds only for a completed session whose payment settled.
// An unknown session is an unsuccessful verification, not an error.
func (g *StripeGateway) VerifySession(ctx context.Context, sessionRef string) (*Verification, error) {
	sessionRef = strings.TrimSpace(sessionRef)
	if sessionRef == "" {
		return &Verification{Message: "payment reference is required"}, nil
	}

	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	session, err := g.sessions.Get(sessionRef, params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.HTTPStatusCode == http.StatusNotFound {
			return &Verification{SessionID: sessionRef, Message: "checkout session not found"}, nil
		}
		return nil, fmt.Errorf("retrieve checkout session: %w", err)
	}

	v := &Verification{
		PaymentStatus: string(session.PaymentStatus),
		SessionID:     session.ID,
		AmountTotal:   session.AmountTotal,
		Currency:      string(session.Currency),
	}
	if v.SessionID == "" {
		v.SessionID = sessionRef
	}

	switch {
	case session.Status != stripe.CheckoutSessionStatusComplete:
		v.Message = fmt.Sprintf("checkout session is %s", session.Status)
	case session.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
		session.PaymentStatus == stripe.CheckoutSessionPaymentStatusNoPaymentRequired:
		v.Success = true
	default:
		v.Message = fmt.Sprintf("payment status is %s", session.PaymentStatus)
	}
	return v, nil
}
