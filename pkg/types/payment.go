package types

import (
	"strconv"
	"strings"
)

// MerchantConfig is a recipient's resolved payment preferences.
// It is built fresh on every resolution and treated as immutable
// by everything downstream.
type MerchantConfig struct {
	Address         string // empty when the name has no address record
	PreferredToken  string // token symbol, defaults to "USDC"
	PreferredChain  *int64 // nil when the chainId record is absent or malformed
	Description     string
	SuggestedAmount string
	AvatarURI       string
	Name            string // the identifier that was resolved
}

// HasAddress reports whether the configuration is usable as a payment
// target. A config without an address must be treated as a resolution
// failure, never paid to.
func (m *MerchantConfig) HasAddress() bool {
	return m.Address != ""
}

// ChainID returns the merchant's preferred chain, or the fallback when
// no preference is recorded.
func (m *MerchantConfig) ChainID(fallback int64) int64 {
	if m.PreferredChain != nil {
		return *m.PreferredChain
	}
	return fallback
}

// QuoteRequest is a normalized cross-chain transfer request. Amounts
// are integer strings in the token's smallest unit. A request is only
// constructed when every field is present and the amount is non-zero;
// "no request" is a nil *QuoteRequest, never a zeroed one.
type QuoteRequest struct {
	FromChain   int64  `validate:"required"`
	ToChain     int64  `validate:"required"`
	FromToken   string `validate:"required"`
	ToToken     string `validate:"required"`
	FromAmount  string `validate:"required"`
	FromAddress string `validate:"required"`
	ToAddress   string `validate:"required"`
	Slippage    float64
}

// Key returns a stable identity for the request, used to detect
// whether a resubmission is actually a change.
func (r *QuoteRequest) Key() string {
	if r == nil {
		return ""
	}
	return strings.Join([]string{
		strconv.FormatInt(r.FromChain, 10),
		strconv.FormatInt(r.ToChain, 10),
		r.FromToken,
		r.ToToken,
		r.FromAmount,
		r.FromAddress,
		r.ToAddress,
	}, "|")
}

// Token describes a token as reported by the routing aggregator.
type Token struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
	ChainID  int64  `json:"chainId"`
	Name     string `json:"name"`
	LogoURI  string `json:"logoURI,omitempty"`
	PriceUSD string `json:"priceUSD,omitempty"`
}

// FeeCost is a single fee line item in a quote estimate.
type FeeCost struct {
	Name      string `json:"name"`
	AmountUSD string `json:"amountUSD"`
}

// GasCost is a single gas line item in a quote estimate.
type GasCost struct {
	AmountUSD string `json:"amountUSD"`
}

// Estimate is the aggregator's projection for a route.
type Estimate struct {
	FromAmount        string    `json:"fromAmount"`
	ToAmount          string    `json:"toAmount"`
	ToAmountMin       string    `json:"toAmountMin"`
	ApprovalAddress   string    `json:"approvalAddress"`
	FeeCosts          []FeeCost `json:"feeCosts"`
	GasCosts          []GasCost `json:"gasCosts"`
	ExecutionDuration float64   `json:"executionDuration"`
	FromAmountUSD     string    `json:"fromAmountUSD"`
	ToAmountUSD       string    `json:"toAmountUSD"`
}

// TxRequest is the ready-to-sign transaction payload attached to a
// routed quote.
type TxRequest struct {
	Data     string `json:"data"`
	To       string `json:"to"`
	Value    string `json:"value"`
	From     string `json:"from,omitempty"`
	ChainID  int64  `json:"chainId"`
	GasPrice string `json:"gasPrice,omitempty"`
	GasLimit string `json:"gasLimit,omitempty"`
}

// QuoteAction mirrors the request the aggregator answered, with
// resolved token metadata.
type QuoteAction struct {
	FromChainID int64   `json:"fromChainId"`
	FromAmount  string  `json:"fromAmount"`
	FromToken   Token   `json:"fromToken"`
	ToChainID   int64   `json:"toChainId"`
	ToToken     Token   `json:"toToken"`
	Slippage    float64 `json:"slippage"`
	FromAddress string  `json:"fromAddress"`
	ToAddress   string  `json:"toAddress"`
}

// Quote is the aggregator's proposed route. It is owned by the
// pipeline invocation that produced it and is discarded wholesale when
// a later invocation supersedes it.
type Quote struct {
	ID                 string      `json:"id"`
	Type               string      `json:"type"`
	Tool               string      `json:"tool"`
	Action             QuoteAction `json:"action"`
	Estimate           Estimate    `json:"estimate"`
	TransactionRequest *TxRequest  `json:"transactionRequest,omitempty"`
	IncludedSteps      []QuoteStep `json:"includedSteps,omitempty"`
}

// QuoteStep is an individual hop inside a routed quote.
type QuoteStep struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Tool string `json:"tool"`
}
