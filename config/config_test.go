package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_MODE", "")
	t.Setenv("START_PRICE_ETH", "")
	t.Setenv("RESERVE_PRICE_ETH", "")
	t.Setenv("MAX_DURATION", "")
	t.Setenv("REQUIRE_SIGNATURE", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ModeLocal, cfg.Mode)
	assert.Equal(t, "1000000000000000000", cfg.StartPriceWei.String())
	assert.Equal(t, "100000000000000000", cfg.ReservePriceWei.String())
	assert.Equal(t, 720*time.Hour, cfg.MaxDuration)
	assert.False(t, cfg.RequireSignature)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown mode", map[string]string{"APP_MODE": "testnet"}},
		{"bad redis db", map[string]string{"REDIS_DB": "one"}},
		{"bad duration", map[string]string{"MAX_DURATION": "forever"}},
		{"negative duration", map[string]string{"MAX_DURATION": "-1h"}},
		{"reserve above start", map[string]string{"START_PRICE_ETH": "1", "RESERVE_PRICE_ETH": "2"}},
		{"too many decimals", map[string]string{"START_PRICE_ETH": "0.0000000000000000001"}},
		{"bad organizer", map[string]string{"ORGANIZER_ADDR": "0x123"}},
		{"chain without contract", map[string]string{"APP_MODE": ModeChain, "OPERATOR_PRIVATE_KEY": "aa"}},
		{"chain bad dsn", map[string]string{
			"APP_MODE":             ModeChain,
			"MYSQL_DSN":            "root@tcp(127.0.0.1:3306",
			"NFT_CONTRACT_ADDR":    "0x5000000000000000000000000000000000000005",
			"OPERATOR_PRIVATE_KEY": "aa",
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoad_Chain(t *testing.T) {
	t.Setenv("APP_MODE", ModeChain)
	t.Setenv("NFT_CONTRACT_ADDR", "0x5000000000000000000000000000000000000005")
	t.Setenv("OPERATOR_PRIVATE_KEY", "aa")
	t.Setenv("ORGANIZER_ADDR", "0x4000000000000000000000000000000000000004")
	t.Setenv("REQUIRE_SIGNATURE", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.RequireSignature)
	assert.Equal(t, "0x4000000000000000000000000000000000000004", cfg.Organizer().Hex())
}
