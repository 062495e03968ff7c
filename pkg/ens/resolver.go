package ens

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"paylink/pkg/types"
)

// Text record keys holding a merchant's payment preferences.
const (
	KeyToken       = "com.enspaylinks.token"
	KeyChainID     = "com.enspaylinks.chainId"
	KeyDescription = "com.enspaylinks.description"
	KeyAmount      = "com.enspaylinks.amount"
	KeyAvatar      = "avatar"
)

// DefaultToken is assumed when a merchant records no token preference.
const DefaultToken = "USDC"

// The ENS registry lives at the same address on mainnet and Sepolia.
const registryAddress = "0x00000000000C2E074eC69A0dFb2997BA6C7d2e1e"

// Public RPC endpoints used when no explicit endpoint is configured.
const (
	defaultMainnetRPC = "https://cloudflare-eth.com"
	defaultSepoliaRPC = "https://rpc.sepolia.org"
)

// ErrNoAddress marks a name that resolved but carries no payable
// address. Partial preference data is never an error; a missing
// address always is.
var ErrNoAddress = errors.New("name not found or has no address set")

const registryABIJSON = `[{"constant":true,"inputs":[{"name":"node","type":"bytes32"}],"name":"resolver","outputs":[{"name":"","type":"address"}],"type":"function"}]`

const resolverABIJSON = `[
	{"constant":true,"inputs":[{"name":"node","type":"bytes32"}],"name":"addr","outputs":[{"name":"","type":"address"}],"type":"function"},
	{"constant":true,"inputs":[{"name":"node","type":"bytes32"},{"name":"key","type":"string"}],"name":"text","outputs":[{"name":"","type":"string"}],"type":"function"},
	{"constant":true,"inputs":[{"name":"node","type":"bytes32"}],"name":"name","outputs":[{"name":"","type":"string"}],"type":"function"}
]`

var (
	registryABI = mustParseABI(registryABIJSON)
	resolverABI = mustParseABI(resolverABIJSON)
)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("invalid ABI: %v", err))
	}
	return parsed
}

// Resolver reads payment configurations from the ENS registry on a
// single network chosen at construction. All lookups are read-only.
type Resolver struct {
	caller   ethereum.ContractCaller
	registry common.Address
}

// NewResolver dials the registry network. The testnet flag selects
// Sepolia; it is decided once here, not per call. An empty rpcURL
// falls back to a public endpoint for the selected network.
func NewResolver(rpcURL string, testnet bool) (*Resolver, error) {
	if rpcURL == "" {
		if testnet {
			rpcURL = defaultSepoliaRPC
		} else {
			rpcURL = defaultMainnetRPC
		}
	}

	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to registry RPC endpoint: %w", err)
	}

	return NewResolverWithCaller(client), nil
}

// NewResolverWithCaller creates a resolver over an existing contract
// caller.
func NewResolverWithCaller(caller ethereum.ContractCaller) *Resolver {
	return &Resolver{
		caller:   caller,
		registry: common.HexToAddress(registryAddress),
	}
}

// Resolve looks up a name's full payment configuration: the address,
// avatar, and the four preference records, queried concurrently. Each
// sub-lookup degrades silently to its zero value; the returned config
// is always fully populated. Callers must treat a config without an
// address as a resolution failure (ErrNoAddress), never as a payment
// target.
func (r *Resolver) Resolve(ctx context.Context, name string) (*types.MerchantConfig, error) {
	normalized, err := Normalize(name)
	if err != nil {
		return nil, fmt.Errorf("invalid name %q: %w", name, err)
	}

	node := Namehash(normalized)

	resolverAddr, err := r.resolverFor(ctx, node)
	if err != nil {
		// No resolver means no records at all. Surface the empty
		// config; the caller turns the missing address into the
		// not-found error.
		return emptyConfig(name), nil
	}

	cfg := emptyConfig(name)

	var wg sync.WaitGroup
	var address common.Address
	var token, chainID, description, amount, avatar string

	lookups := []func(){
		func() { address, _ = r.addr(ctx, resolverAddr, node) },
		func() { token, _ = r.text(ctx, resolverAddr, node, KeyToken) },
		func() { chainID, _ = r.text(ctx, resolverAddr, node, KeyChainID) },
		func() { description, _ = r.text(ctx, resolverAddr, node, KeyDescription) },
		func() { amount, _ = r.text(ctx, resolverAddr, node, KeyAmount) },
		func() { avatar, _ = r.text(ctx, resolverAddr, node, KeyAvatar) },
	}
	wg.Add(len(lookups))
	for _, lookup := range lookups {
		go func(fn func()) {
			defer wg.Done()
			fn()
		}(lookup)
	}
	wg.Wait()

	if address != (common.Address{}) {
		cfg.Address = address.Hex()
	}
	if token != "" {
		cfg.PreferredToken = token
	}
	// Malformed chain ids degrade to nil rather than failing the
	// whole resolution.
	if chainID != "" {
		if parsed, perr := strconv.ParseInt(chainID, 10, 64); perr == nil {
			cfg.PreferredChain = &parsed
		}
	}
	cfg.Description = description
	cfg.SuggestedAmount = amount
	cfg.AvatarURI = avatar

	return cfg, nil
}

// ReverseResolve finds the primary name registered for an address, or
// an empty string when none is set.
func (r *Resolver) ReverseResolve(ctx context.Context, address string) (string, error) {
	reverseName := strings.ToLower(strings.TrimPrefix(address, "0x")) + ".addr.reverse"
	node := Namehash(reverseName)

	resolverAddr, err := r.resolverFor(ctx, node)
	if err != nil {
		return "", nil
	}

	data, err := resolverABI.Pack("name", node)
	if err != nil {
		return "", fmt.Errorf("failed to pack name data: %w", err)
	}

	result, err := r.call(ctx, resolverAddr, data)
	if err != nil {
		return "", nil
	}

	var name string
	if err := resolverABI.UnpackIntoInterface(&name, "name", result); err != nil {
		return "", nil
	}
	return name, nil
}

// resolverFor asks the registry which resolver contract owns a node.
func (r *Resolver) resolverFor(ctx context.Context, node [32]byte) (common.Address, error) {
	data, err := registryABI.Pack("resolver", node)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to pack resolver data: %w", err)
	}

	result, err := r.call(ctx, r.registry, data)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to query registry: %w", err)
	}

	var addr common.Address
	if err := registryABI.UnpackIntoInterface(&addr, "resolver", result); err != nil {
		return common.Address{}, fmt.Errorf("failed to unpack resolver address: %w", err)
	}
	if addr == (common.Address{}) {
		return common.Address{}, fmt.Errorf("no resolver set for node")
	}
	return addr, nil
}

func (r *Resolver) addr(ctx context.Context, resolver common.Address, node [32]byte) (common.Address, error) {
	data, err := resolverABI.Pack("addr", node)
	if err != nil {
		return common.Address{}, err
	}

	result, err := r.call(ctx, resolver, data)
	if err != nil {
		return common.Address{}, err
	}

	var addr common.Address
	if err := resolverABI.UnpackIntoInterface(&addr, "addr", result); err != nil {
		return common.Address{}, err
	}
	return addr, nil
}

func (r *Resolver) text(ctx context.Context, resolver common.Address, node [32]byte, key string) (string, error) {
	data, err := resolverABI.Pack("text", node, key)
	if err != nil {
		return "", err
	}

	result, err := r.call(ctx, resolver, data)
	if err != nil {
		return "", err
	}

	var value string
	if err := resolverABI.UnpackIntoInterface(&value, "text", result); err != nil {
		return "", err
	}
	return value, nil
}

func (r *Resolver) call(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	msg := ethereum.CallMsg{
		To:   &to,
		Data: data,
	}
	return r.caller.CallContract(ctx, msg, nil)
}

func emptyConfig(name string) *types.MerchantConfig {
	return &types.MerchantConfig{
		Name:           name,
		PreferredToken: DefaultToken,
	}
}
