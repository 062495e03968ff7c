package chains

import "fmt"

// Chain IDs for every network the payment flow can touch.
const (
	Ethereum    int64 = 1
	Optimism    int64 = 10
	Base        int64 = 8453
	Arbitrum    int64 = 42161
	Sepolia     int64 = 11155111
	BaseSepolia int64 = 84532
)

// NativeToken is the placeholder address the routing aggregator uses
// for a chain's base currency.
const NativeToken = "0x0000000000000000000000000000000000000000"

// Meta holds display and explorer metadata for a chain.
type Meta struct {
	Name     string
	Explorer string
}

var meta = map[int64]Meta{
	Ethereum:    {Name: "Ethereum", Explorer: "https://etherscan.io"},
	Optimism:    {Name: "Optimism", Explorer: "https://optimistic.etherscan.io"},
	Base:        {Name: "Base", Explorer: "https://basescan.org"},
	Arbitrum:    {Name: "Arbitrum", Explorer: "https://arbiscan.io"},
	Sepolia:     {Name: "Sepolia", Explorer: "https://sepolia.etherscan.io"},
	BaseSepolia: {Name: "Base Sepolia", Explorer: "https://sepolia.basescan.org"},
}

// USDC contract addresses by chain ID.
var usdcAddresses = map[int64]string{
	Ethereum:    "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48",
	Base:        "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
	Arbitrum:    "0xaf88d065e77c8cC2239327C5EDb3A432268e5831",
	Optimism:    "0x0b2C639c533813f4Aa9D7837CAf62653d097Ff85",
	Sepolia:     "0x1c7D4B196Cb0C7B01d743Fbc6116a902379C7238",
	BaseSepolia: "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
}

// Name returns a human-readable chain name, falling back to the
// numeric id for chains outside the table.
func Name(chainID int64) string {
	if m, ok := meta[chainID]; ok {
		return m.Name
	}
	return fmt.Sprintf("Chain %d", chainID)
}

// ExplorerTxURL returns a block-explorer link for a transaction hash,
// or an empty string when the chain has no known explorer.
func ExplorerTxURL(chainID int64, txHash string) string {
	m, ok := meta[chainID]
	if !ok {
		return ""
	}
	return m.Explorer + "/tx/" + txHash
}

// USDCAddress returns the USDC contract address on a chain, or an
// empty string when USDC is not deployed there.
func USDCAddress(chainID int64) string {
	return usdcAddresses[chainID]
}

// IsTestnet reports whether a chain is one of the supported test
// networks.
func IsTestnet(chainID int64) bool {
	return chainID == Sepolia || chainID == BaseSepolia
}

// IsNative reports whether a token address is the aggregator's
// native-asset placeholder.
func IsNative(tokenAddress string) bool {
	return tokenAddress == "" || tokenAddress == NativeToken
}

// Supported returns the IDs of all chains the payment flow knows
// about, mainnets first.
func Supported() []int64 {
	return []int64{Ethereum, Base, Arbitrum, Optimism, Sepolia, BaseSepolia}
}
