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
	"paylink/pkg/wallet"
)

var (
	statusChainID int64
	watchTimeout  int
)

var statusCmd = &cobra.Command{
	Use:   "status <tx-hash>",
	Short: "Check a payment transaction's confirmation status",
	Long: `Wait for a payment transaction's on-chain receipt and report whether
it succeeded.

Examples:
  paylink status 0x1234...abcd --chain 1
  paylink status 0x1234...abcd --chain 8453 --timeout 300`,
	Args: cobra.ExactArgs(1),
	Run:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().Int64Var(&statusChainID, "chain", chains.Ethereum, "Chain ID the transaction was sent on")
	statusCmd.Flags().IntVar(&watchTimeout, "timeout", 180, "Seconds to wait for the receipt")
}

func runStatus(cmd *cobra.Command, args []string) {
	txHash := args[0]
	jsonOutput, _ := cmd.Flags().GetBool("json")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	w, err := wallet.NewEVMWallet(cfg)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer w.Close()

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Waiting for confirmation..."
		s.Start()
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(watchTimeout)*time.Second)
	defer cancel()

	ok, err := w.WaitForReceipt(ctx, statusChainID, txHash)
	if !jsonOutput {
		s.Stop()
	}

	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if jsonOutput {
		output := map[string]interface{}{
			"tx_hash":  txHash,
			"chain_id": statusChainID,
			"success":  ok,
		}
		jsonData, _ := json.MarshalIndent(output, "", "  ")
		fmt.Println(string(jsonData))
		return
	}

	displayReceipt(txHash, statusChainID, ok)
}

func displayReceipt(txHash string, chainID int64, success bool) {
	fmt.Println("\n" + strings.Repeat("=", 70))
	color.Green("                      TRANSACTION STATUS")
	fmt.Println(strings.Repeat("=", 70))

	fmt.Printf("\n  Transaction: %s\n", color.CyanString(txHash))
	fmt.Printf("  Chain:       %s\n", chains.Name(chainID))
	if success {
		fmt.Printf("  Status:      %s\n", color.GreenString("SUCCESS"))
	} else {
		fmt.Printf("  Status:      %s\n", color.RedString("FAILED"))
	}
	if url := chains.ExplorerTxURL(chainID, txHash); url != "" {
		fmt.Printf("  Explorer:    %s\n", color.HiBlackString(url))
	}

	fmt.Println("\n" + strings.Repeat("=", 70) + "\n")
}
