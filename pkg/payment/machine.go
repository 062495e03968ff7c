package payment

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"paylink/pkg/types"
)

// ERC20 transfer function ABI
const erc20TransferABI = `[{"constant":false,"inputs":[{"name":"_to","type":"address"},{"name":"_value","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"type":"function"}]`

// Status is the lifecycle position of a payment attempt.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusSending    Status = "sending"
	StatusConfirming Status = "confirming"
	StatusSuccess    Status = "success"
	StatusError      Status = "error"
)

// Terminal reports whether the status requires an explicit Reset
// before another attempt can start.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusError
}

// ErrAttemptInFlight rejects a submission while a previous attempt is
// in a non-terminal state.
var ErrAttemptInFlight = errors.New("a payment attempt is already in progress")

// ErrNoTransactionData marks a routed quote that arrived without a
// signable payload. The attempt fails rather than retrying.
var ErrNoTransactionData = errors.New("no transaction data in quote")

// Transaction is a fully determined instruction for the signing
// capability. Data is nil for a plain native transfer.
type Transaction struct {
	To      string
	Data    []byte
	Value   *big.Int
	ChainID int64
}

// Sender is the external wallet signing capability: it either returns
// a transaction hash or fails with the wallet's rejection reason.
type Sender interface {
	SendTransaction(ctx context.Context, tx Transaction) (string, error)
}

// Watcher is the external confirmation capability: given a submitted
// transaction it reports whether the on-chain receipt succeeded.
type Watcher interface {
	WaitForReceipt(ctx context.Context, chainID int64, txHash string) (bool, error)
}

// Attempt is a read-only snapshot of the live payment attempt.
type Attempt struct {
	Status Status
	TxHash string
	ErrMsg string
}

// Machine drives a single payment attempt through
// idle -> sending -> confirming -> success, or into error. It performs
// no routing decisions of its own: by submission time the transaction
// is fully determined. Exactly one attempt is live at a time;
// overlapping submissions are rejected.
type Machine struct {
	sender  Sender
	watcher Watcher

	mu      sync.Mutex
	status  Status
	txHash  string
	chainID int64
	errMsg  string
}

// NewMachine creates a machine in the idle state.
func NewMachine(sender Sender, watcher Watcher) *Machine {
	return &Machine{
		sender:  sender,
		watcher: watcher,
		status:  StatusIdle,
	}
}

// SubmitRouted executes a routed quote's transaction payload. The
// quote must carry one; a payload-less quote fails the attempt with
// ErrNoTransactionData.
func (m *Machine) SubmitRouted(ctx context.Context, q *types.Quote) (string, error) {
	if err := m.begin(); err != nil {
		return "", err
	}

	if q == nil || q.TransactionRequest == nil {
		m.fail(ErrNoTransactionData.Error())
		return "", ErrNoTransactionData
	}

	txReq := q.TransactionRequest
	value, err := parseBig(txReq.Value)
	if err != nil {
		m.fail(fmt.Sprintf("invalid transaction value: %v", err))
		return "", fmt.Errorf("invalid transaction value: %w", err)
	}

	return m.send(ctx, Transaction{
		To:      txReq.To,
		Data:    common.FromHex(txReq.Data),
		Value:   value,
		ChainID: txReq.ChainID,
	})
}

// SubmitDirect executes a direct native transfer to the recipient.
func (m *Machine) SubmitDirect(ctx context.Context, to string, amountWei *big.Int, chainID int64) (string, error) {
	if err := m.begin(); err != nil {
		return "", err
	}

	return m.send(ctx, Transaction{
		To:      to,
		Value:   amountWei,
		ChainID: chainID,
	})
}

// SubmitToken executes a direct same-chain ERC20 transfer, the
// fallback path when routing is wanted but unavailable.
func (m *Machine) SubmitToken(ctx context.Context, token, to string, amount *big.Int, chainID int64) (string, error) {
	if err := m.begin(); err != nil {
		return "", err
	}

	data, err := packTransfer(to, amount)
	if err != nil {
		m.fail(failureMessage(err))
		return "", err
	}

	return m.send(ctx, Transaction{
		To:      token,
		Data:    data,
		Value:   big.NewInt(0),
		ChainID: chainID,
	})
}

// Confirm waits on the external receipt watcher and moves
// confirming -> success, or into error when the receipt reports
// failure.
func (m *Machine) Confirm(ctx context.Context) error {
	m.mu.Lock()
	if m.status != StatusConfirming {
		status := m.status
		m.mu.Unlock()
		return fmt.Errorf("cannot confirm from status %q", status)
	}
	txHash := m.txHash
	chainID := m.chainID
	m.mu.Unlock()

	ok, err := m.watcher.WaitForReceipt(ctx, chainID, txHash)
	if err != nil {
		m.fail(failureMessage(err))
		return fmt.Errorf("confirmation failed: %w", err)
	}
	if !ok {
		m.fail("transaction reverted on chain")
		return errors.New("transaction reverted on chain")
	}

	m.mu.Lock()
	m.status = StatusSuccess
	m.mu.Unlock()
	return nil
}

// Reset returns a terminal attempt to idle, clearing the transaction
// hash and error unconditionally.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = StatusIdle
	m.txHash = ""
	m.chainID = 0
	m.errMsg = ""
}

// Snapshot returns the current attempt state.
func (m *Machine) Snapshot() Attempt {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Attempt{
		Status: m.status,
		TxHash: m.txHash,
		ErrMsg: m.errMsg,
	}
}

// begin moves idle -> sending, rejecting overlap with a live attempt.
func (m *Machine) begin() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != StatusIdle {
		return ErrAttemptInFlight
	}
	m.status = StatusSending
	m.errMsg = ""
	return nil
}

func (m *Machine) send(ctx context.Context, tx Transaction) (string, error) {
	hash, err := m.sender.SendTransaction(ctx, tx)
	if err != nil {
		m.fail(failureMessage(err))
		return "", fmt.Errorf("failed to send transaction: %w", err)
	}

	m.mu.Lock()
	m.txHash = hash
	m.chainID = tx.ChainID
	m.status = StatusConfirming
	m.mu.Unlock()
	return hash, nil
}

func (m *Machine) fail(msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = StatusError
	m.errMsg = msg
}

// failureMessage keeps the wallet's rejection reason verbatim when one
// exists.
func failureMessage(err error) string {
	if err == nil || err.Error() == "" {
		return "transaction failed"
	}
	return err.Error()
}

// packTransfer builds ERC20 transfer call data.
func packTransfer(to string, amount *big.Int) ([]byte, error) {
	parsedABI, err := abi.JSON(strings.NewReader(erc20TransferABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse transfer ABI: %w", err)
	}

	data, err := parsedABI.Pack("transfer", common.HexToAddress(to), amount)
	if err != nil {
		return nil, fmt.Errorf("failed to pack transfer data: %w", err)
	}
	return data, nil
}

// parseBig parses a transaction value that may be hex ("0x...") or
// decimal, the two encodings aggregators emit.
func parseBig(value string) (*big.Int, error) {
	if value == "" {
		return big.NewInt(0), nil
	}

	v := new(big.Int)
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		if _, ok := v.SetString(strings.TrimPrefix(strings.ToLower(value), "0x"), 16); !ok {
			return nil, fmt.Errorf("invalid hex value %q", value)
		}
		return v, nil
	}
	if _, ok := v.SetString(value, 10); !ok {
		return nil, fmt.Errorf("invalid value %q", value)
	}
	return v, nil
}
