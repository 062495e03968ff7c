package wallet

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"paylink/config"
	"paylink/pkg/payment"
)

// ERC20 approve function ABI
const erc20ApproveABI = `[{"constant":false,"inputs":[{"name":"_spender","type":"address"},{"name":"_value","type":"uint256"}],"name":"approve","outputs":[{"name":"","type":"bool"}],"type":"function"}]`

// receiptPollInterval is how often WaitForReceipt re-checks the chain.
const receiptPollInterval = 3 * time.Second

// EVMWallet is the CLI's signing and confirmation capability across
// the configured EVM networks. It implements payment.Sender and
// payment.Watcher.
type EVMWallet struct {
	networks   map[int64]config.EVMNetwork
	privateKey *ecdsa.PrivateKey
	address    common.Address

	mu      sync.Mutex
	clients map[int64]*ethclient.Client
}

// NewEVMWallet builds a wallet from the configured networks and
// signing key. RPC connections are dialed lazily per chain.
func NewEVMWallet(cfg *config.Config) (*EVMWallet, error) {
	if cfg.PrivateKey == "" {
		return nil, fmt.Errorf("private key not configured")
	}

	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}

	publicKey, ok := privateKey.Public().(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("failed to get public key")
	}

	networks := make(map[int64]config.EVMNetwork, len(cfg.Networks))
	for name, n := range cfg.Networks {
		if n.RPCUrl == "" {
			return nil, fmt.Errorf("RPC URL not configured for network %s", name)
		}
		networks[n.ChainID] = n
	}

	return &EVMWallet{
		networks:   networks,
		privateKey: privateKey,
		address:    crypto.PubkeyToAddress(*publicKey),
		clients:    make(map[int64]*ethclient.Client),
	}, nil
}

// Address returns the payer address controlled by this wallet.
func (w *EVMWallet) Address() common.Address {
	return w.address
}

// SendTransaction signs and broadcasts a fully determined transaction
// on its chain, returning the transaction hash.
func (w *EVMWallet) SendTransaction(ctx context.Context, tx payment.Transaction) (string, error) {
	if !common.IsHexAddress(tx.To) {
		return "", fmt.Errorf("invalid recipient address: %s", tx.To)
	}

	client, network, err := w.client(tx.ChainID)
	if err != nil {
		return "", err
	}

	toAddress := common.HexToAddress(tx.To)
	value := tx.Value
	if value == nil {
		value = big.NewInt(0)
	}

	// Get nonce
	nonce, err := client.PendingNonceAt(ctx, w.address)
	if err != nil {
		return "", fmt.Errorf("failed to get nonce: %w", err)
	}

	// Get gas price
	gasPrice, err := w.gasPrice(ctx, client, network)
	if err != nil {
		return "", fmt.Errorf("failed to get gas price: %w", err)
	}

	gasLimit, err := w.gasLimit(ctx, client, network, toAddress, value, tx.Data)
	if err != nil {
		return "", err
	}

	// Native transfers spend from the account balance directly; fail
	// early instead of broadcasting a doomed transaction.
	if len(tx.Data) == 0 {
		balance, err := client.BalanceAt(ctx, w.address, nil)
		if err != nil {
			return "", fmt.Errorf("failed to get balance: %w", err)
		}
		if balance.Cmp(value) < 0 {
			return "", fmt.Errorf("insufficient balance: have %s wei, need %s wei", balance.String(), value.String())
		}
	}

	rawTx := ethtypes.NewTransaction(nonce, toAddress, value, gasLimit, gasPrice, tx.Data)

	signedTx, err := ethtypes.SignTx(rawTx, ethtypes.NewEIP155Signer(big.NewInt(tx.ChainID)), w.privateKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := client.SendTransaction(ctx, signedTx); err != nil {
		return "", fmt.Errorf("failed to send transaction: %w", err)
	}

	return signedTx.Hash().Hex(), nil
}

// Approve grants spender an allowance on an ERC20 token. It is a
// distinct on-chain action; callers must wait for its receipt before
// executing the routed transfer it unlocks.
func (w *EVMWallet) Approve(ctx context.Context, token, spender string, amount *big.Int, chainID int64) (string, error) {
	if !common.IsHexAddress(token) {
		return "", fmt.Errorf("invalid token contract address: %s", token)
	}
	if !common.IsHexAddress(spender) {
		return "", fmt.Errorf("invalid spender address: %s", spender)
	}

	parsedABI, err := abi.JSON(strings.NewReader(erc20ApproveABI))
	if err != nil {
		return "", fmt.Errorf("failed to parse approve ABI: %w", err)
	}

	data, err := parsedABI.Pack("approve", common.HexToAddress(spender), amount)
	if err != nil {
		return "", fmt.Errorf("failed to pack approve data: %w", err)
	}

	return w.SendTransaction(ctx, payment.Transaction{
		To:      token,
		Data:    data,
		Value:   big.NewInt(0),
		ChainID: chainID,
	})
}

// WaitForReceipt polls for a transaction's receipt until it lands or
// the context expires. Returns true when the receipt reports success.
func (w *EVMWallet) WaitForReceipt(ctx context.Context, chainID int64, txHash string) (bool, error) {
	client, _, err := w.client(chainID)
	if err != nil {
		return false, err
	}

	hash := common.HexToHash(txHash)
	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()

	for {
		receipt, err := client.TransactionReceipt(ctx, hash)
		if err == nil && receipt != nil {
			return receipt.Status == ethtypes.ReceiptStatusSuccessful, nil
		}

		select {
		case <-ctx.Done():
			return false, fmt.Errorf("gave up waiting for receipt: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

// Caller returns the contract caller for a chain, for read-only
// consumers like the allowance tracker.
func (w *EVMWallet) Caller(chainID int64) (ethereum.ContractCaller, error) {
	client, _, err := w.client(chainID)
	return client, err
}

// client returns the cached RPC connection for a chain, dialing on
// first use.
func (w *EVMWallet) client(chainID int64) (*ethclient.Client, config.EVMNetwork, error) {
	network, exists := w.networks[chainID]
	if !exists {
		return nil, config.EVMNetwork{}, fmt.Errorf("chain %d not configured", chainID)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if client, ok := w.clients[chainID]; ok {
		return client, network, nil
	}

	client, err := ethclient.Dial(network.RPCUrl)
	if err != nil {
		return nil, config.EVMNetwork{}, fmt.Errorf("failed to connect to RPC endpoint: %w", err)
	}
	w.clients[chainID] = client
	return client, network, nil
}

func (w *EVMWallet) gasPrice(ctx context.Context, client *ethclient.Client, network config.EVMNetwork) (*big.Int, error) {
	// Use configured gas price if available
	if network.GasPrice != nil {
		return big.NewInt(*network.GasPrice), nil
	}
	return client.SuggestGasPrice(ctx)
}

func (w *EVMWallet) gasLimit(ctx context.Context, client *ethclient.Client, network config.EVMNetwork, to common.Address, value *big.Int, data []byte) (uint64, error) {
	if network.GasLimit != nil {
		return *network.GasLimit, nil
	}

	if len(data) == 0 {
		return 21000, nil // Standard native transfer
	}

	msg := ethereum.CallMsg{
		From:  w.address,
		To:    &to,
		Value: value,
		Data:  data,
	}
	estimated, err := client.EstimateGas(ctx, msg)
	if err != nil {
		// Routed payloads vary widely; fall back to a generous limit
		// when estimation fails.
		return 600000, nil
	}
	return estimated * 120 / 100, nil
}

// Close closes all open RPC connections.
func (w *EVMWallet) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, client := range w.clients {
		client.Close()
	}
	w.clients = make(map[int64]*ethclient.Client)
}
