package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePayCommand(t *testing.T) {
	tests := []struct {
		name    string
		command string
		want    *PayRequest
		wantErr bool
	}{
		{
			name:    "full command with pay prefix",
			command: "pay 0.1 ETH to alice.eth",
			want:    &PayRequest{Amount: "0.1", Token: "ETH", Name: "alice.eth"},
		},
		{
			name:    "without pay prefix",
			command: "25 USDC to shop.eth",
			want:    &PayRequest{Amount: "25", Token: "USDC", Name: "shop.eth"},
		},
		{
			name:    "uppercase PAY and TO",
			command: "PAY 5 usdc TO bob.eth",
			want:    &PayRequest{Amount: "5", Token: "USDC", Name: "bob.eth"},
		},
		{
			name:    "recipient case preserved",
			command: "pay 1 ETH to Alice.ETH",
			want:    &PayRequest{Amount: "1", Token: "ETH", Name: "Alice.ETH"},
		},
		{
			name:    "surrounding whitespace",
			command: "  pay 2.5 DAI to carol.eth  ",
			want:    &PayRequest{Amount: "2.5", Token: "DAI", Name: "carol.eth"},
		},
		{
			name:    "missing recipient",
			command: "pay 1 ETH to",
			wantErr: true,
		},
		{
			name:    "missing token",
			command: "pay 1 to alice.eth",
			wantErr: true,
		},
		{
			name:    "negative amount",
			command: "pay -1 ETH to alice.eth",
			wantErr: true,
		},
		{
			name:    "empty command",
			command: "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePayCommand(tt.command)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidatePayRequest(t *testing.T) {
	valid := &PayRequest{Amount: "1", Token: "ETH", Name: "alice.eth"}
	require.NoError(t, ValidatePayRequest(valid))

	assert.Error(t, ValidatePayRequest(&PayRequest{Amount: "0", Token: "ETH", Name: "alice.eth"}))
	assert.Error(t, ValidatePayRequest(&PayRequest{Amount: "1", Token: "", Name: "alice.eth"}))
	assert.Error(t, ValidatePayRequest(&PayRequest{Amount: "1", Token: "ETH", Name: ""}))
}
