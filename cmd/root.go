package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "paylink",
	Short: "Pay anyone by name, on any chain, settled in their preferred asset",
	Long: `paylink is a command-line tool for sending tokens to recipients
identified by an ENS name. The recipient's payment preferences (token,
chain, suggested amount) are read from their name's text records, and
cross-chain or cross-asset payments are routed through the LI.FI
aggregator.

Examples:
  paylink pay 0.1 ETH to alice.eth
  paylink pay 25 USDC to shop.eth --chain 8453
  paylink resolve alice.eth
  paylink tokens --chain 8453
  paylink status 0xabc... --chain 1`,
	Version: "0.1.0",
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Add global flags
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "Output in JSON format")
}

func printError(err error) {
	fmt.Printf("\nError: %v\n\n", err)
}

func printSuccess(message string) {
	fmt.Printf("\n%s\n\n", message)
}
