package route

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNeedsRoute(t *testing.T) {
	tests := []struct {
		name          string
		payerChain    int64
		payerToken    string
		merchantChain int64
		merchantToken string
		want          bool
	}{
		{"same chain, same token", 1, "USDC", 1, "USDC", false},
		{"same chain, different token", 1, "ETH", 1, "USDC", true},
		{"different chain, same token", 1, "USDC", 8453, "USDC", true},
		{"different chain, different token", 1, "ETH", 8453, "USDC", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NeedsRoute(tt.payerChain, tt.payerToken, tt.merchantChain, tt.merchantToken)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNeedsRouteTokenCaseInsensitive(t *testing.T) {
	assert.False(t, NeedsRoute(1, "usdc", 1, "USDC"))
}

func TestDecide(t *testing.T) {
	t.Run("no route needed is a direct transfer", func(t *testing.T) {
		d := Decide(1, 1, false, false)
		assert.False(t, d.NeedsRoute)
		assert.Equal(t, ActionDirect, d.Action)
	})

	t.Run("route available is routed", func(t *testing.T) {
		d := Decide(1, 8453, true, false)
		assert.True(t, d.NeedsRoute)
		assert.Equal(t, ActionRouted, d.Action)
	})

	t.Run("quote failure on same chain falls back to direct", func(t *testing.T) {
		// Scenario: payer and merchant share a chain but tokens
		// differ, and the aggregator errored.
		d := Decide(1, 1, true, true)
		assert.Equal(t, ActionFallbackDirect, d.Action)
		assert.Empty(t, d.Message)
	})

	t.Run("quote failure across chains blocks with chain-switch message", func(t *testing.T) {
		d := Decide(1, 8453, true, true)
		require.Equal(t, ActionBlocked, d.Action)
		assert.Contains(t, d.Message, "Base")
	})

	t.Run("blocked message names unknown chains by id", func(t *testing.T) {
		d := Decide(1, 99999, true, true)
		require.Equal(t, ActionBlocked, d.Action)
		assert.Contains(t, d.Message, "Chain 99999")
	})
}

func TestActionString(t *testing.T) {
	assert.Equal(t, "direct", ActionDirect.String())
	assert.Equal(t, "routed", ActionRouted.String())
	assert.Equal(t, "fallback-direct", ActionFallbackDirect.String())
	assert.Equal(t, "blocked", ActionBlocked.String())
}
