package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToSmallestUnit(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		decimals int
		want     string
		wantErr  bool
	}{
		{name: "whole ether", amount: "1", decimals: 18, want: "1000000000000000000"},
		{name: "fractional ether", amount: "0.1", decimals: 18, want: "100000000000000000"},
		{name: "usdc cents", amount: "25.5", decimals: 6, want: "25500000"},
		{name: "full precision", amount: "0.000001", decimals: 6, want: "1"},
		{name: "too many decimals", amount: "0.0000001", decimals: 6, wantErr: true},
		{name: "zero", amount: "0", decimals: 18, wantErr: true},
		{name: "negative", amount: "-1", decimals: 18, wantErr: true},
		{name: "not a number", amount: "abc", decimals: 18, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToSmallestUnit(tt.amount, tt.decimals)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestToSmallestUnitBig(t *testing.T) {
	v, err := ToSmallestUnitBig("2.5", 6)
	require.NoError(t, err)
	assert.Equal(t, "2500000", v.String())

	_, err = ToSmallestUnitBig("0", 6)
	require.Error(t, err)
}

func TestFromSmallestUnit(t *testing.T) {
	got, err := FromSmallestUnit("1000000000000000000", 18)
	require.NoError(t, err)
	assert.Equal(t, "1", got)

	got, err = FromSmallestUnit("25500000", 6)
	require.NoError(t, err)
	assert.Equal(t, "25.5", got)

	_, err = FromSmallestUnit("nope", 6)
	require.Error(t, err)
}
