package allowance

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"paylink/pkg/chains"
)

// ERC20 allowance function ABI
const erc20AllowanceABI = `[{"constant":true,"inputs":[{"name":"_owner","type":"address"},{"name":"_spender","type":"address"}],"name":"allowance","outputs":[{"name":"","type":"uint256"}],"type":"function"}]`

// State is the derived approval precondition for one (payer, token,
// spender, amount) tuple. It is recomputed on every input change and
// never cached; there is no stored "approved" flag to go stale.
type State struct {
	// Allowance is the current on-chain allowance, nil for native
	// tokens where no allowance exists.
	Allowance *big.Int
	// NeedsApproval is true when a routed transfer cannot execute
	// until the spender is granted a larger allowance.
	NeedsApproval bool
}

// Tracker reads ERC20 allowances to decide whether an approval
// transaction must precede a routed transfer.
type Tracker struct {
	caller ethereum.ContractCaller
}

// NewTracker creates a tracker over a contract caller for the payer's
// chain.
func NewTracker(caller ethereum.ContractCaller) *Tracker {
	return &Tracker{caller: caller}
}

// Check derives the approval state for a pending routed transfer.
// Native tokens never need approval and skip the network read
// entirely. A zero spender address (quote without an approval
// contract) also needs none.
func (t *Tracker) Check(ctx context.Context, token, owner, spender string, amount *big.Int) (State, error) {
	if chains.IsNative(token) || isZeroAddress(spender) {
		return State{}, nil
	}

	current, err := t.Allowance(ctx,
		common.HexToAddress(token),
		common.HexToAddress(owner),
		common.HexToAddress(spender))
	if err != nil {
		return State{}, fmt.Errorf("failed to read allowance: %w", err)
	}

	return State{
		Allowance:     current,
		NeedsApproval: NeedsApproval(token, current, amount),
	}, nil
}

// Allowance reads the current on-chain allowance granted by owner to
// spender for an ERC20 token.
func (t *Tracker) Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	parsedABI, err := abi.JSON(strings.NewReader(erc20AllowanceABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse allowance ABI: %w", err)
	}

	data, err := parsedABI.Pack("allowance", owner, spender)
	if err != nil {
		return nil, fmt.Errorf("failed to pack allowance data: %w", err)
	}

	msg := ethereum.CallMsg{
		To:   &token,
		Data: data,
	}

	result, err := t.caller.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to call allowance: %w", err)
	}

	allowance := new(big.Int)
	allowance.SetBytes(result)

	return allowance, nil
}

// NeedsApproval reports whether a spend of amount requires a prior
// approval: only for non-native tokens, and only when the known
// allowance is strictly below the amount. An unknown (nil) allowance
// never forces an approval.
func NeedsApproval(token string, allowance, amount *big.Int) bool {
	if chains.IsNative(token) {
		return false
	}
	if allowance == nil || amount == nil {
		return false
	}
	return allowance.Cmp(amount) < 0
}

func isZeroAddress(addr string) bool {
	return addr == "" || common.HexToAddress(addr) == (common.Address{})
}
