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
	"paylink/pkg/client"
	"paylink/pkg/types"
)

var (
	tokensChainID int64
	filterSymbol  string
)

var tokensCmd = &cobra.Command{
	Use:     "tokens",
	Aliases: []string{"list-tokens", "ls"},
	Short:   "List tokens the routing aggregator supports on a chain",
	Long: `List the tokens LI.FI can route on a chain.

You can filter tokens by symbol.

Examples:
  paylink tokens --chain 1
  paylink tokens --chain 8453 --symbol USDC`,
	Run: runListTokens,
}

func init() {
	rootCmd.AddCommand(tokensCmd)

	tokensCmd.Flags().Int64Var(&tokensChainID, "chain", chains.Ethereum, "Chain ID to list tokens for")
	tokensCmd.Flags().StringVar(&filterSymbol, "symbol", "", "Filter by token symbol")
}

func runListTokens(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	apiClient := client.NewLiFiClient(cfg.LiFiBaseURL)

	// Get tokens with spinner
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Fetching supported tokens..."
		s.Start()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	tokens, err := apiClient.GetTokens(ctx, tokensChainID)
	if !jsonOutput {
		s.Stop()
	}

	if err != nil {
		printError(err)
		os.Exit(1)
	}

	// Apply filter
	filtered := tokens
	if filterSymbol != "" {
		var temp []types.Token
		for _, token := range filtered {
			if strings.Contains(strings.ToUpper(token.Symbol), strings.ToUpper(filterSymbol)) {
				temp = append(temp, token)
			}
		}
		filtered = temp
	}

	// Output
	if jsonOutput {
		jsonData, _ := json.MarshalIndent(filtered, "", "  ")
		fmt.Println(string(jsonData))
	} else {
		displayTokens(filtered, tokensChainID)
	}
}

func displayTokens(tokens []types.Token, chainID int64) {
	if len(tokens) == 0 {
		fmt.Println("\nNo tokens found matching the criteria.")
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	color.Green("                     SUPPORTED TOKENS ON %s", strings.ToUpper(chains.Name(chainID)))
	fmt.Println(strings.Repeat("=", 90))
	fmt.Println()

	for _, token := range tokens {
		address := token.Address

		// Truncate address if too long
		if len(address) > 44 {
			address = address[:41] + "..."
		}

		fmt.Printf("  %-10s  %2d decimals  %s\n",
			color.YellowString(token.Symbol),
			token.Decimals,
			color.HiBlackString(address))
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	fmt.Printf("\nTotal: %d tokens on %s\n\n", len(tokens), chains.Name(chainID))
}
