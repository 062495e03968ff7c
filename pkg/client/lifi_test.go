package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paylink/pkg/types"
)

func quoteRequest() *types.QuoteRequest {
	return &types.QuoteRequest{
		FromChain:   1,
		ToChain:     8453,
		FromToken:   "0x0000000000000000000000000000000000000000",
		ToToken:     "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
		FromAmount:  "1000000000000000000",
		FromAddress: "0x1111111111111111111111111111111111111111",
		ToAddress:   "0x2222222222222222222222222222222222222222",
	}
}

func TestGetQuote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/quote", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "1", q.Get("fromChain"))
		assert.Equal(t, "8453", q.Get("toChain"))
		assert.Equal(t, "1000000000000000000", q.Get("fromAmount"))
		assert.Equal(t, "0.03", q.Get("slippage"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "q-1",
			"tool": "stargate",
			"estimate": {
				"fromAmount": "1000000000000000000",
				"toAmount": "3412000000",
				"toAmountMin": "3309640000",
				"approvalAddress": "0x3333333333333333333333333333333333333333",
				"executionDuration": 90,
				"gasCosts": [{"amountUSD": "1.20"}],
				"feeCosts": [{"amountUSD": "0.80"}]
			},
			"transactionRequest": {
				"data": "0xdeadbeef",
				"to": "0x4444444444444444444444444444444444444444",
				"value": "0xde0b6b3a7640000",
				"chainId": 1
			}
		}`))
	}))
	defer srv.Close()

	c := NewLiFiClient(srv.URL)
	quote, err := c.GetQuote(context.Background(), quoteRequest())
	require.NoError(t, err)

	assert.Equal(t, "stargate", quote.Tool)
	assert.Equal(t, "3412000000", quote.Estimate.ToAmount)
	assert.Equal(t, "0x3333333333333333333333333333333333333333", quote.Estimate.ApprovalAddress)
	require.NotNil(t, quote.TransactionRequest)
	assert.Equal(t, "0xdeadbeef", quote.TransactionRequest.Data)
	assert.InDelta(t, 2.0, TotalFeesUSD(quote), 0.001)
}

func TestGetQuoteNilRequest(t *testing.T) {
	c := NewLiFiClient("")
	_, err := c.GetQuote(context.Background(), nil)
	require.Error(t, err)
}

func TestGetQuoteAPIErrorMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message": "No available quotes for the requested transfer"}`))
	}))
	defer srv.Close()

	c := NewLiFiClient(srv.URL)
	_, err := c.GetQuote(context.Background(), quoteRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "No available quotes for the requested transfer")
}

func TestGetQuoteAPIErrorNonJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream unavailable"))
	}))
	defer srv.Close()

	c := NewLiFiClient(srv.URL)
	_, err := c.GetQuote(context.Background(), quoteRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream unavailable")
	assert.Contains(t, err.Error(), "502")
}

func TestGetQuoteCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewLiFiClient(srv.URL)
	_, err := c.GetQuote(ctx, quoteRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGetTokens(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tokens", r.URL.Path)
		assert.Equal(t, "8453", r.URL.Query().Get("chains"))
		w.Write([]byte(`{"tokens": {"8453": [
			{"address": "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913", "symbol": "USDC", "decimals": 6, "chainId": 8453},
			{"address": "0x0000000000000000000000000000000000000000", "symbol": "ETH", "decimals": 18, "chainId": 8453}
		]}}`))
	}))
	defer srv.Close()

	c := NewLiFiClient(srv.URL)
	tokens, err := c.GetTokens(context.Background(), 8453)
	require.NoError(t, err)
	require.Len(t, tokens, 2)
	assert.Equal(t, "USDC", tokens[0].Symbol)
	assert.Equal(t, 6, tokens[0].Decimals)
}

func TestFindToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"tokens": {"1": [
			{"address": "0xaaa0000000000000000000000000000000000001", "symbol": "WETH", "decimals": 18, "chainId": 1},
			{"address": "0x0000000000000000000000000000000000000000", "symbol": "ETH", "decimals": 18, "chainId": 1}
		]}}`))
	}))
	defer srv.Close()

	c := NewLiFiClient(srv.URL)

	t.Run("exact match wins over partial", func(t *testing.T) {
		token, err := c.FindToken(context.Background(), 1, "eth")
		require.NoError(t, err)
		assert.Equal(t, "ETH", token.Symbol)
	})

	t.Run("partial match as fallback", func(t *testing.T) {
		token, err := c.FindToken(context.Background(), 1, "WET")
		require.NoError(t, err)
		assert.Equal(t, "WETH", token.Symbol)
	})

	t.Run("unknown symbol errors", func(t *testing.T) {
		_, err := c.FindToken(context.Background(), 1, "PEPE")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "PEPE")
	})
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "~45s", FormatDuration(45))
	assert.Equal(t, "~2m", FormatDuration(150))
}

func TestFormatUSD(t *testing.T) {
	assert.Equal(t, "$12.35", FormatUSD("12.349"))
	assert.Equal(t, "$0.00", FormatUSD("not-a-number"))
}
