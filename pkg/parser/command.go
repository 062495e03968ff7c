package parser

import (
	"fmt"
	"regexp"
	"strings"
)

// PayRequest is a parsed pay command: how much of which token to send
// to which name.
type PayRequest struct {
	Amount string
	Token  string
	Name   string
}

// Pattern: <amount> <token> to <name>. The recipient keeps its case;
// name normalization happens at resolution time.
var payPattern = regexp.MustCompile(`^(\d+\.?\d*)\s+([A-Za-z0-9]+)\s+(?i:to)\s+(\S+)$`)

// ParsePayCommand parses a natural language pay command
// Examples:
//   - "pay 0.1 ETH to alice.eth"
//   - "25 USDC to shop.eth"
func ParsePayCommand(command string) (*PayRequest, error) {
	command = strings.TrimSpace(command)

	// Remove the word "pay" if present at the beginning
	if len(command) > 4 && strings.EqualFold(command[:4], "PAY ") {
		command = strings.TrimSpace(command[4:])
	}

	matches := payPattern.FindStringSubmatch(command)
	if matches == nil {
		return nil, fmt.Errorf("invalid pay command format. Expected: 'pay <amount> <token> to <name>' (e.g., 'pay 0.1 ETH to alice.eth')")
	}

	return &PayRequest{
		Amount: matches[1],
		Token:  strings.ToUpper(matches[2]),
		Name:   matches[3],
	}, nil
}

// ValidatePayRequest validates that a pay request has all required fields
func ValidatePayRequest(req *PayRequest) error {
	if req.Amount == "" || req.Amount == "0" {
		return fmt.Errorf("amount must be greater than 0")
	}
	if req.Token == "" {
		return fmt.Errorf("token is required")
	}
	if req.Name == "" {
		return fmt.Errorf("recipient name is required")
	}
	return nil
}
