package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"paylink/config"
	"paylink/pkg/chains"
	"paylink/pkg/ens"
	"paylink/pkg/types"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <name>",
	Short: "Resolve a name's payment configuration",
	Long: `Look up an ENS name's address and payment preferences: preferred
token, preferred chain, description, and suggested amount.

Examples:
  paylink resolve alice.eth
  paylink resolve shop.eth --json`,
	Args: cobra.ExactArgs(1),
	Run:  runResolve,
}

func init() {
	rootCmd.AddCommand(resolveCmd)
}

func runResolve(cmd *cobra.Command, args []string) {
	name := args[0]
	jsonOutput, _ := cmd.Flags().GetBool("json")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	resolver, err := ens.NewResolver(cfg.RegistryRPC(), cfg.Testnet)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Resolving " + name + "..."
		s.Start()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	merchant, err := resolver.Resolve(ctx, name)
	if !jsonOutput {
		s.Stop()
	}

	if err != nil {
		printError(err)
		os.Exit(1)
	}

	// Partial data is fine; a missing address is not.
	if !merchant.HasAddress() {
		printError(ens.ErrNoAddress)
		os.Exit(1)
	}

	if jsonOutput {
		jsonData, _ := json.MarshalIndent(merchant, "", "  ")
		fmt.Println(string(jsonData))
	} else {
		displayMerchant(merchant, cfg.FallbackChainID)
	}
}

func displayMerchant(m *types.MerchantConfig, fallbackChain int64) {
	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Green("                 PAYMENT CONFIGURATION")
	fmt.Println(strings.Repeat("=", 60))

	fmt.Printf("\n  Name:             %s\n", color.CyanString(m.Name))
	fmt.Printf("  Address:          %s\n", color.CyanString(m.Address))
	fmt.Printf("  Preferred Token:  %s\n", color.YellowString(m.PreferredToken))
	fmt.Printf("  Preferred Chain:  %s\n", chains.Name(m.ChainID(fallbackChain)))

	if m.Description != "" {
		fmt.Printf("  Description:      %s\n", m.Description)
	}
	if m.SuggestedAmount != "" {
		fmt.Printf("  Suggested Amount: %s %s\n", m.SuggestedAmount, m.PreferredToken)
	}
	if m.AvatarURI != "" {
		fmt.Printf("  Avatar:           %s\n", color.HiBlackString(m.AvatarURI))
	}

	fmt.Println("\n" + strings.Repeat("=", 60) + "\n")
}
