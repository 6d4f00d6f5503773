package stripe

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backoffice/pkg/config"
)

func TestNewClientValidatesKeyAgainstEnv(t *testing.T) {
	ctx := context.Background()

	_, err := NewClient(ctx, config.StripeConfig{}, nil)
	assert.ErrorIs(t, err, errAPIKeyRequired)

	_, err = NewClient(ctx, config.StripeConfig{APIKey: "sk_live_123", Env: "test"}, nil)
	assert.Error(t, err)

	_, err = NewClient(ctx, config.StripeConfig{APIKey: "sk_test_123", Env: "staging"}, nil)
	assert.ErrorIs(t, err, errInvalidStripeEnv)

	c, err := NewClient(ctx, config.StripeConfig{APIKey: "rk_live_123", Env: "LIVE"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "live", c.Environment())
	assert.NotNil(t, c.CheckoutSessions())
}

func TestNilClientAccessors(t *testing.T) {
	var c *Client
	assert.Nil(t, c.CheckoutSessions())
	assert.Equal(t, "", c.Environment())
}
