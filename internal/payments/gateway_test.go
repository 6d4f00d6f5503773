package payments

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v78"
)

type stubSessions struct {
	session *stripe.CheckoutSession
	err     error
	gotID   string
	gotCtx  bool
}

func (s *stubSessions) Get(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	s.gotID = id
	s.gotCtx = params != nil && params.Context != nil
	return s.session, s.err
}

func TestStripeGatewayPaidSession(t *testing.T) {
	sessions := &stubSessions{session: &stripe.CheckoutSession{
		ID:            "cs_test_123",
		Status:        stripe.CheckoutSessionStatusComplete,
		PaymentStatus: stripe.CheckoutSessionPaymentStatusPaid,
		AmountTotal:   4598,
		Currency:      stripe.CurrencyUSD,
	}}
	gw, err := NewStripeGateway(sessions)
	require.NoError(t, err)

	v, err := gw.VerifySession(context.Background(), " cs_test_123 ")
	require.NoError(t, err)
	assert.True(t, v.Success)
	assert.Equal(t, "cs_test_123", sessions.gotID)
	assert.True(t, sessions.gotCtx)
	assert.Equal(t, "paid", v.PaymentStatus)
	assert.EqualValues(t, 4598, v.AmountTotal)
	assert.Equal(t, "usd", v.Currency)
}

func TestStripeGatewayUnpaidOrOpenSession(t *testing.T) {
	cases := map[string]*stripe.CheckoutSession{
		"unpaid": {
			ID:            "cs_1",
			Status:        stripe.CheckoutSessionStatusComplete,
			PaymentStatus: stripe.CheckoutSessionPaymentStatusUnpaid,
		},
		"open": {
			ID:            "cs_2",
			Status:        stripe.CheckoutSessionStatusOpen,
			PaymentStatus: stripe.CheckoutSessionPaymentStatusUnpaid,
		},
	}
	for name, session := range cases {
		t.Run(name, func(t *testing.T) {
			gw, err := NewStripeGateway(&stubSessions{session: session})
			require.NoError(t, err)
			v, err := gw.VerifySession(context.Background(), session.ID)
			require.NoError(t, err)
			assert.False(t, v.Success)
			assert.NotEmpty(t, v.Message)
		})
	}
}

func TestStripeGatewayErrors(t *testing.T) {
	notFound := &stubSessions{err: &stripe.Error{HTTPStatusCode: http.StatusNotFound, Msg: "No such checkout.session"}}
	gw, err := NewStripeGateway(notFound)
	require.NoError(t, err)
	v, err := gw.VerifySession(context.Background(), "cs_missing")
	require.NoError(t, err)
	assert.False(t, v.Success)
	assert.Equal(t, "checkout session not found", v.Message)

	down := &stubSessions{err: errors.New("connection reset")}
	gw, err = NewStripeGateway(down)
	require.NoError(t, err)
	_, err = gw.VerifySession(context.Background(), "cs_1")
	assert.Error(t, err)

	v, err = gw.VerifySession(context.Background(), "")
	require.NoError(t, err)
	assert.False(t, v.Success)

	_, err = NewStripeGateway(nil)
	assert.Error(t, err)
}

type slowGateway struct {
	delay time.Duration
}

func (g slowGateway) VerifySession(ctx context.Context, ref string) (*Verification, error) {
	select {
	case <-time.After(g.delay):
		return &Verification{Success: true, SessionID: ref}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestWithTimeout(t *testing.T) {
	fast := WithTimeout(slowGateway{delay: time.Millisecond}, time.Second)
	v, err := fast.VerifySession(context.Background(), "cs_1")
	require.NoError(t, err)
	assert.True(t, v.Success)

	slow := WithTimeout(slowGateway{delay: time.Second}, 10*time.Millisecond)
	_, err = slow.VerifySession(context.Background(), "cs_1")
	assert.ErrorIs(t, err, ErrVerificationTimeout)

	inner := slowGateway{}
	assert.Equal(t, Gateway(inner), WithTimeout(inner, 0))
}
