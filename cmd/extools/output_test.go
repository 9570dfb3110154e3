package main

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatUnits(t *testing.T) {
	tests := []struct {
		value    string
		decimals uint8
		want     string
	}{
		{"1000000", 6, "1"},
		{"1234567", 6, "1.234567"},
		{"1500000000000000000", 18, "1.5"},
		{"0", 18, "0"},
		{"42", 0, "42"},
		{"1", 18, "0.000000000000000001"},
	}
	for _, tt := range tests {
		v, ok := new(big.Int).SetString(tt.value, 10)
		assert.True(t, ok)
		assert.Equal(t, tt.want, formatUnits(v, tt.decimals))
	}
	assert.Equal(t, "-", formatUnits(nil, 6))
}

func TestFormatUSD(t *testing.T) {
	assert.Equal(t, "-", formatUSD(0))
	assert.Equal(t, "$1.50", formatUSD(1.5))
	assert.Equal(t, "$0.0012345", formatUSD(0.0012345))
}
