package route

import (
	"fmt"
	"strings"

	"paylink/pkg/chains"
)

// Action is the execution path the policy selects for a payment.
type Action int

const (
	// ActionDirect transfers the payer's token straight to the
	// merchant; no routing involved.
	ActionDirect Action = iota
	// ActionRouted executes the aggregator quote's transaction
	// payload.
	ActionRouted
	// ActionFallbackDirect is a same-chain direct transfer of the
	// payer's original token, permitted when routing is wanted but
	// unavailable.
	ActionFallbackDirect
	// ActionBlocked means the payment cannot proceed; Decision.Message
	// carries the remediation.
	ActionBlocked
)

func (a Action) String() string {
	switch a {
	case ActionDirect:
		return "direct"
	case ActionRouted:
		return "routed"
	case ActionFallbackDirect:
		return "fallback-direct"
	case ActionBlocked:
		return "blocked"
	default:
		return "unknown"
	}
}

// Decision is the policy's verdict for one payment configuration.
type Decision struct {
	NeedsRoute bool
	Action     Action
	// Message is the user-facing remediation when Action is
	// ActionBlocked.
	Message string
}

// NeedsRoute reports whether a payment requires the routing
// aggregator: true iff the payer and merchant chains differ or the
// payer's token symbol differs from the merchant's preferred token.
// This is the single source of truth for engaging the quote pipeline
// and must be re-evaluated on every input change.
func NeedsRoute(payerChainID int64, payerToken string, merchantChainID int64, merchantToken string) bool {
	if payerChainID != merchantChainID {
		return true
	}
	return !strings.EqualFold(payerToken, merchantToken)
}

// Decide selects the execution path given whether routing is needed
// and whether the quote pipeline has terminated with an error. When
// routing fails on the merchant's own chain a direct transfer of the
// payer's token is still possible; across chains there is no fallback
// and the payer must switch chains.
func Decide(payerChainID, merchantChainID int64, needsRoute, quoteFailed bool) Decision {
	if !needsRoute {
		return Decision{Action: ActionDirect}
	}

	if !quoteFailed {
		return Decision{NeedsRoute: true, Action: ActionRouted}
	}

	if payerChainID == merchantChainID {
		return Decision{NeedsRoute: true, Action: ActionFallbackDirect}
	}

	return Decision{
		NeedsRoute: true,
		Action:     ActionBlocked,
		Message: fmt.Sprintf("routing is unavailable; switch your wallet to %s to complete this payment",
			chains.Name(merchantChainID)),
	}
}
