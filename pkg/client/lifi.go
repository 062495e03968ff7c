package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"paylink/pkg/types"
)

// DefaultBaseURL is the public LI.FI API endpoint.
const DefaultBaseURL = "https://li.quest/v1"

// DefaultSlippage is applied when a request carries no explicit
// slippage tolerance.
const DefaultSlippage = 0.03

// LiFiClient is a stateless wrapper around the LI.FI routing
// aggregator's HTTP API. It performs no caching, retries, or
// debouncing; callers own those concerns.
type LiFiClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewLiFiClient creates a new aggregator client. An empty baseURL
// selects the public endpoint.
func NewLiFiClient(baseURL string) *LiFiClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &LiFiClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{},
	}
}

// GetQuote requests a route for the given transfer. The context
// carries cancellation and any deadline; an aborted call returns the
// context's error.
func (c *LiFiClient) GetQuote(ctx context.Context, req *types.QuoteRequest) (*types.Quote, error) {
	if req == nil {
		return nil, fmt.Errorf("quote request is required")
	}

	slippage := req.Slippage
	if slippage == 0 {
		slippage = DefaultSlippage
	}

	q := url.Values{}
	q.Set("fromChain", strconv.FormatInt(req.FromChain, 10))
	q.Set("toChain", strconv.FormatInt(req.ToChain, 10))
	q.Set("fromToken", req.FromToken)
	q.Set("toToken", req.ToToken)
	q.Set("fromAmount", req.FromAmount)
	q.Set("fromAddress", req.FromAddress)
	q.Set("toAddress", req.ToAddress)
	q.Set("slippage", strconv.FormatFloat(slippage, 'f', -1, 64))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/quote?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build quote request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to get quote from API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.apiError(resp)
	}

	var quote types.Quote
	if err := json.NewDecoder(resp.Body).Decode(&quote); err != nil {
		return nil, fmt.Errorf("failed to decode quote response: %w", err)
	}

	return &quote, nil
}

// tokensResponse is the wire shape of the /tokens endpoint: token
// lists keyed by chain id.
type tokensResponse struct {
	Tokens map[string][]types.Token `json:"tokens"`
}

// GetTokens retrieves the supported token list for a chain.
func (c *LiFiClient) GetTokens(ctx context.Context, chainID int64) ([]types.Token, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/tokens?chains=%d", c.baseURL, chainID), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build tokens request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to get tokens: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.apiError(resp)
	}

	var parsed tokensResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode tokens response: %w", err)
	}

	return parsed.Tokens[strconv.FormatInt(chainID, 10)], nil
}

// FindToken searches a chain's token list for a symbol, preferring an
// exact match over a partial one.
func (c *LiFiClient) FindToken(ctx context.Context, chainID int64, symbol string) (*types.Token, error) {
	tokens, err := c.GetTokens(ctx, chainID)
	if err != nil {
		return nil, err
	}

	symbol = strings.ToUpper(symbol)

	// Try exact match first
	for _, token := range tokens {
		if strings.ToUpper(token.Symbol) == symbol {
			return &token, nil
		}
	}

	// Try partial match
	for _, token := range tokens {
		if strings.Contains(strings.ToUpper(token.Symbol), symbol) {
			return &token, nil
		}
	}

	return nil, fmt.Errorf("token '%s' not found on chain %d", symbol, chainID)
}

// apiError extracts the human-readable message from an aggregator
// error body, falling back to the raw body or the bare status code.
func (c *LiFiClient) apiError(resp *http.Response) error {
	bodyBytes, readErr := io.ReadAll(resp.Body)
	if readErr == nil && len(bodyBytes) > 0 {
		var errorResp map[string]interface{}
		if jsonErr := json.Unmarshal(bodyBytes, &errorResp); jsonErr == nil {
			if message, ok := errorResp["message"].(string); ok && message != "" {
				return fmt.Errorf("API error (status %d): %s", resp.StatusCode, message)
			}
			if errors, ok := errorResp["errors"]; ok {
				return fmt.Errorf("API error (status %d): %v", resp.StatusCode, errors)
			}
		}
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(bodyBytes))
	}
	return fmt.Errorf("API returned status code %d", resp.StatusCode)
}

// TotalFeesUSD sums a quote's fee and gas line items in USD.
func TotalFeesUSD(q *types.Quote) float64 {
	total := 0.0
	for _, f := range q.Estimate.FeeCosts {
		if v, err := strconv.ParseFloat(f.AmountUSD, 64); err == nil {
			total += v
		}
	}
	for _, g := range q.Estimate.GasCosts {
		if v, err := strconv.ParseFloat(g.AmountUSD, 64); err == nil {
			total += v
		}
	}
	return total
}

// FormatDuration renders an execution-duration estimate in seconds as
// a compact human string.
func FormatDuration(seconds float64) string {
	if seconds < 60 {
		return fmt.Sprintf("~%.0fs", seconds)
	}
	return fmt.Sprintf("~%.0fm", math.Floor(seconds/60))
}

// FormatUSD renders a USD-denominated decimal string.
func FormatUSD(amount string) string {
	v, err := strconv.ParseFloat(amount, 64)
	if err != nil {
		return "$0.00"
	}
	return fmt.Sprintf("$%.2f", v)
}

// WithTimeout wraps a context with the bounded quote deadline so a
// stalled aggregator surfaces as a timeout error instead of an
// indefinite wait.
func WithTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
