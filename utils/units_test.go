package utils

import (
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEther(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1", "1000000000000000000"},
		{"0.1", "100000000000000000"},
		{"0.55", "550000000000000000"},
		{"0.000000000000000001", "1"},
		{"0", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseEther(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}

	_, err := ParseEther("0.0000000000000000001")
	assert.Error(t, err)
	_, err = ParseEther("one")
	assert.Error(t, err)
}

func TestFormatEther(t *testing.T) {
	assert.Equal(t, "0.975", FormatEther(big.NewInt(975_000_000_000_000_000)))
	assert.Equal(t, "0.000000000000000001", FormatEther(big.NewInt(1)))
	assert.Equal(t, "0", FormatEther(nil))
	assert.Equal(t, "0", FormatEther(new(big.Int)))
}

func TestGenerateAuctionId(t *testing.T) {
	a, b := GenerateAuctionId(), GenerateAuctionId()
	assert.NotEqual(t, a, b)
	parts := strings.Split(a, "-")
	require.Len(t, parts, 2)
	assert.Len(t, parts[1], 8)
}
