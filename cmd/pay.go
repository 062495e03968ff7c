package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"paylink/config"
	"paylink/pkg/allowance"
	"paylink/pkg/chains"
	"paylink/pkg/client"
	"paylink/pkg/ens"
	"paylink/pkg/parser"
	"paylink/pkg/payment"
	"paylink/pkg/quote"
	"paylink/pkg/route"
	"paylink/pkg/types"
	"paylink/pkg/wallet"
)

var (
	payChainID int64
	noConfirm  bool
)

var payCmd = &cobra.Command{
	Use:   "pay <amount> <token> to <name>",
	Short: "Send a payment to an ENS name",
	Long: `Send any supported token to a recipient identified by an ENS name.
The recipient's preferred token and chain are read from their name's
text records. When your token or chain differs from the recipient's
preference, the payment is routed through the LI.FI aggregator;
otherwise it is a direct transfer.

Examples:
  # Direct payment (your chain and token match the recipient's preference)
  paylink pay 0.1 ETH to alice.eth

  # Cross-chain / cross-asset payment, routed automatically
  paylink pay 0.5 ETH to shop.eth --chain 1

  # Skip the confirmation prompt
  paylink pay 25 USDC to alice.eth --yes`,
	Args: cobra.MinimumNArgs(1),
	Run:  runPay,
}

func init() {
	rootCmd.AddCommand(payCmd)

	payCmd.Flags().Int64Var(&payChainID, "chain", 0, "Chain ID to pay from (default: configured payer chain)")
	payCmd.Flags().BoolVarP(&noConfirm, "yes", "y", false, "Skip confirmation prompt")
}

func runPay(cmd *cobra.Command, args []string) {
	// Parse the command
	commandStr := strings.Join(args, " ")
	payReq, err := parser.ParsePayCommand(commandStr)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	if err := parser.ValidatePayRequest(payReq); err != nil {
		printError(err)
		os.Exit(1)
	}

	verbose, _ := cmd.Flags().GetBool("verbose")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	payerChain := cfg.PayerChainID
	if payChainID != 0 {
		payerChain = payChainID
	}

	ctx := context.Background()

	// Resolve the recipient
	merchant := resolveMerchant(ctx, cfg, payReq.Name, jsonOutput)
	merchantChain := merchant.ChainID(cfg.FallbackChainID)

	if verbose {
		fmt.Printf("\nDebug: %s prefers %s on %s\n",
			merchant.Name, merchant.PreferredToken, chains.Name(merchantChain))
	}

	// Wallet is the signing capability for everything that follows.
	w, err := wallet.NewEVMWallet(cfg)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer w.Close()
	payerAddr := w.Address().Hex()

	apiClient := client.NewLiFiClient(cfg.LiFiBaseURL)

	// Resolve the payer-side token to an address and decimals.
	fromToken, decimals, err := payerToken(ctx, apiClient, payerChain, payReq.Token)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	fromAmount, err := parser.ToSmallestUnit(payReq.Amount, decimals)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	amountWei, _ := new(big.Int).SetString(fromAmount, 10)

	needsRoute := route.NeedsRoute(payerChain, payReq.Token, merchantChain, merchant.PreferredToken)

	// Acquire a quote when routing is needed.
	var routedQuote *types.Quote
	quoteFailed := false
	if needsRoute {
		routedQuote, err = fetchQuote(ctx, cfg, apiClient, &types.QuoteRequest{
			FromChain:   payerChain,
			ToChain:     merchantChain,
			FromToken:   fromToken,
			ToToken:     merchantToken(merchantChain),
			FromAmount:  fromAmount,
			FromAddress: payerAddr,
			ToAddress:   merchant.Address,
			Slippage:    cfg.Slippage,
		}, jsonOutput)
		if err != nil {
			quoteFailed = true
			if verbose {
				fmt.Printf("\nDebug: quote failed: %v\n", err)
			}
		}
	}

	decision := route.Decide(payerChain, merchantChain, needsRoute, quoteFailed)
	if decision.Action == route.ActionBlocked {
		printError(fmt.Errorf("%s", decision.Message))
		os.Exit(1)
	}

	// Show what will happen and confirm.
	if jsonOutput {
		displayPlanJSON(payReq, merchant, decision, routedQuote, payerChain, merchantChain)
	} else {
		displayPlan(payReq, merchant, decision, routedQuote, payerChain, merchantChain)
		if !noConfirm && !cfg.AutoConfirm {
			if !confirmPayment() {
				fmt.Println("\nPayment cancelled.")
				os.Exit(0)
			}
		}
	}

	// Approval precondition for routed non-native transfers.
	if decision.Action == route.ActionRouted {
		if err := ensureApproval(ctx, cfg, w, payerChain, fromToken, payerAddr, routedQuote, amountWei, jsonOutput); err != nil {
			printError(err)
			os.Exit(1)
		}
	}

	// Execute.
	machine := payment.NewMachine(w, w)
	txHash := executePayment(ctx, machine, decision, routedQuote, merchant, fromToken, amountWei, payerChain, jsonOutput)

	// Confirm on chain.
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Waiting for on-chain confirmation..."
		s.Start()
	}

	confirmCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	confirmErr := machine.Confirm(confirmCtx)
	cancel()
	if !jsonOutput {
		s.Stop()
	}

	attempt := machine.Snapshot()
	if jsonOutput {
		output := map[string]interface{}{
			"status":   string(attempt.Status),
			"tx_hash":  attempt.TxHash,
			"chain_id": payerChain,
		}
		if attempt.ErrMsg != "" {
			output["error"] = attempt.ErrMsg
		}
		jsonData, _ := json.MarshalIndent(output, "", "  ")
		fmt.Println(string(jsonData))
		if confirmErr != nil {
			os.Exit(1)
		}
		return
	}

	if confirmErr != nil {
		color.Red("\n✗ Payment failed: %s", attempt.ErrMsg)
		fmt.Println("Run the command again to retry.")
		os.Exit(1)
	}

	color.Green("\n✓ Payment sent!")
	fmt.Printf("  %s %s to %s\n", payReq.Amount, payReq.Token, color.CyanString(merchant.Name))
	fmt.Printf("  Transaction: %s\n", color.CyanString(txHash))
	if url := chains.ExplorerTxURL(payerChain, txHash); url != "" {
		fmt.Printf("  Explorer:    %s\n", color.HiBlackString(url))
	}
	fmt.Println()
}

// resolveMerchant resolves the recipient and exits on resolution
// failure: a name without an address is never a payment target.
func resolveMerchant(ctx context.Context, cfg *config.Config, name string, jsonOutput bool) *types.MerchantConfig {
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

	resolveCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	merchant, err := resolver.Resolve(resolveCtx, name)
	if !jsonOutput {
		s.Stop()
	}

	if err != nil {
		printError(err)
		os.Exit(1)
	}
	if !merchant.HasAddress() {
		printError(ens.ErrNoAddress)
		os.Exit(1)
	}
	return merchant
}

// payerToken maps the payer's token symbol to its address and decimals
// on the payer's chain.
func payerToken(ctx context.Context, apiClient *client.LiFiClient, chainID int64, symbol string) (string, int, error) {
	switch symbol {
	case "ETH":
		return chains.NativeToken, 18, nil
	case "USDC":
		if addr := chains.USDCAddress(chainID); addr != "" {
			return addr, 6, nil
		}
		return "", 0, fmt.Errorf("USDC is not available on %s", chains.Name(chainID))
	default:
		lookupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		token, err := apiClient.FindToken(lookupCtx, chainID, symbol)
		if err != nil {
			return "", 0, fmt.Errorf("source token error: %w", err)
		}
		return token.Address, token.Decimals, nil
	}
}

// merchantToken is the settlement asset on the merchant's chain: USDC
// where it is deployed, the native asset elsewhere.
func merchantToken(chainID int64) string {
	if addr := chains.USDCAddress(chainID); addr != "" {
		return addr
	}
	return chains.NativeToken
}

// fetchQuote runs one request through the acquisition pipeline and
// waits for it to settle.
func fetchQuote(ctx context.Context, cfg *config.Config, apiClient *client.LiFiClient, req *types.QuoteRequest, jsonOutput bool) (*types.Quote, error) {
	pipeline := quote.NewPipeline(apiClient)
	defer pipeline.Close()
	pipeline.SetDebounce(cfg.QuoteDebounce)
	pipeline.SetTimeout(cfg.QuoteTimeout)

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Finding best route..."
		s.Start()
	}

	res, err := quote.Await(ctx, pipeline.Submit(req))
	if !jsonOutput {
		s.Stop()
	}

	if err != nil {
		return nil, err
	}
	if res.Err != nil {
		return nil, res.Err
	}
	return res.Quote, nil
}

// ensureApproval checks the allowance precondition and, when required,
// issues the approval transaction and waits for its receipt before the
// routed transfer is allowed to proceed.
func ensureApproval(ctx context.Context, cfg *config.Config, w *wallet.EVMWallet, chainID int64, token, owner string, q *types.Quote, amount *big.Int, jsonOutput bool) error {
	if chains.IsNative(token) || q == nil {
		return nil
	}

	caller, err := w.Caller(chainID)
	if err != nil {
		return err
	}
	tracker := allowance.NewTracker(caller)

	spender := q.Estimate.ApprovalAddress
	state, err := tracker.Check(ctx, token, owner, spender, amount)
	if err != nil {
		return err
	}
	if !state.NeedsApproval {
		return nil
	}

	if !jsonOutput {
		color.Yellow("\nThe router needs an allowance to move your tokens.")
		fmt.Printf("  Token:   %s\n", token)
		fmt.Printf("  Spender: %s\n", spender)
		fmt.Printf("  Amount:  %s\n", amount.String())
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Sending approval..."
		s.Start()
	}

	approveTx, err := w.Approve(ctx, token, spender, amount, chainID)
	if err != nil {
		if !jsonOutput {
			s.Stop()
		}
		return fmt.Errorf("approval failed: %w", err)
	}

	if !jsonOutput {
		s.Suffix = " Waiting for approval confirmation..."
	}

	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	ok, err := w.WaitForReceipt(waitCtx, chainID, approveTx)
	cancel()
	if !jsonOutput {
		s.Stop()
	}

	if err != nil {
		return fmt.Errorf("approval failed: %w", err)
	}
	if !ok {
		return fmt.Errorf("approval transaction reverted")
	}

	// Re-derive rather than trusting a flag: the transfer only
	// proceeds if the allowance now actually covers the amount.
	state, err = tracker.Check(ctx, token, owner, spender, amount)
	if err != nil {
		return err
	}
	if state.NeedsApproval {
		return fmt.Errorf("allowance still insufficient after approval")
	}

	if !jsonOutput {
		color.Green("✓ Approval confirmed")
	}
	return nil
}

// executePayment drives the state machine down the decided path.
func executePayment(ctx context.Context, machine *payment.Machine, decision route.Decision, q *types.Quote, merchant *types.MerchantConfig, fromToken string, amountWei *big.Int, payerChain int64, jsonOutput bool) string {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Sending transaction..."
		s.Start()
	}

	var txHash string
	var err error
	switch {
	case decision.Action == route.ActionRouted:
		txHash, err = machine.SubmitRouted(ctx, q)
	case chains.IsNative(fromToken):
		txHash, err = machine.SubmitDirect(ctx, merchant.Address, amountWei, payerChain)
	default:
		txHash, err = machine.SubmitToken(ctx, fromToken, merchant.Address, amountWei, payerChain)
	}

	if !jsonOutput {
		s.Stop()
	}

	if err != nil {
		attempt := machine.Snapshot()
		printError(fmt.Errorf("%s", attempt.ErrMsg))
		os.Exit(1)
	}
	return txHash
}

func displayPlan(payReq *parser.PayRequest, merchant *types.MerchantConfig, decision route.Decision, q *types.Quote, payerChain, merchantChain int64) {
	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Green("                      PAYMENT PLAN")
	fmt.Println(strings.Repeat("=", 60))

	fmt.Printf("\n  Recipient:   %s\n", color.CyanString(merchant.Name))
	fmt.Printf("  Address:     %s\n", color.HiBlackString(merchant.Address))
	fmt.Printf("  You send:    %s %s on %s\n", payReq.Amount, color.YellowString(payReq.Token), chains.Name(payerChain))

	switch decision.Action {
	case route.ActionRouted:
		fmt.Printf("  They get:    %s on %s\n", color.YellowString(merchant.PreferredToken), chains.Name(merchantChain))
		fmt.Printf("  Route:       %s\n", q.Tool)
		if fees := client.TotalFeesUSD(q); fees > 0 {
			fmt.Printf("  Fees:        %s\n", fmt.Sprintf("$%.2f", fees))
		}
		fmt.Printf("  You send:    %s\n", client.FormatUSD(q.Estimate.FromAmountUSD))
		fmt.Printf("  They get:    %s\n", client.FormatUSD(q.Estimate.ToAmountUSD))
		fmt.Printf("  Est. time:   %s\n", client.FormatDuration(q.Estimate.ExecutionDuration))
	case route.ActionFallbackDirect:
		color.Yellow("\n  Routing is unavailable; falling back to a direct %s transfer on %s.", payReq.Token, chains.Name(payerChain))
	default:
		fmt.Printf("  Transfer:    direct, same chain\n")
	}

	fmt.Println("\n" + strings.Repeat("=", 60) + "\n")
}

func displayPlanJSON(payReq *parser.PayRequest, merchant *types.MerchantConfig, decision route.Decision, q *types.Quote, payerChain, merchantChain int64) {
	output := map[string]interface{}{
		"recipient":      merchant.Name,
		"address":        merchant.Address,
		"amount":         payReq.Amount,
		"token":          payReq.Token,
		"payer_chain":    payerChain,
		"merchant_chain": merchantChain,
		"action":         decision.Action.String(),
	}
	if q != nil {
		output["route_tool"] = q.Tool
		output["to_amount"] = q.Estimate.ToAmount
		output["fees_usd"] = client.TotalFeesUSD(q)
	}
	jsonData, _ := json.MarshalIndent(output, "", "  ")
	fmt.Println(string(jsonData))
}

func confirmPayment() bool {
	reader := bufio.NewReader(os.Stdin)
	fmt.Print("\nProceed with payment? (y/N): ")

	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}

	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}
