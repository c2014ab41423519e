package auction_test

import (
	"math/big"
	"testing"
	"time"

	"nft_auction/auction"

	"github.com/stretchr/testify/assert"
)

func TestPriceAt(t *testing.T) {
	start, reserve := eth("1"), eth("0.1")
	end := t0.Add(3600 * time.Second)

	tests := []struct {
		name string
		at   time.Time
		want *big.Int
	}{
		{"before start", t0.Add(-time.Minute), eth("1")},
		{"at start", t0, eth("1")},
		{"half way", t0.Add(1800 * time.Second), eth("0.55")},
		{"quarter", t0.Add(900 * time.Second), eth("0.775")},
		{"at end", end, eth("0.1")},
		{"after end", end.Add(24 * time.Hour), eth("0.1")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := auction.PriceAt(start, reserve, t0, end, tt.at)
			assert.Equal(t, 0, got.Cmp(tt.want), "got %s want %s", got, tt.want)
		})
	}
}

func TestPriceAt_MonotonicWithinBounds(t *testing.T) {
	start, reserve := eth("1"), eth("0.1")
	end := t0.Add(7 * time.Hour)

	prev := auction.PriceAt(start, reserve, t0, end, t0)
	for ts := t0; !ts.After(end.Add(time.Hour)); ts = ts.Add(37 * time.Second) {
		p := auction.PriceAt(start, reserve, t0, end, ts)
		assert.True(t, p.Cmp(reserve) >= 0, "price %s below reserve at %s", p, ts)
		assert.True(t, p.Cmp(start) <= 0, "price %s above start at %s", p, ts)
		assert.True(t, p.Cmp(prev) <= 0, "price increased at %s", ts)
		prev = p
	}
}

func TestPriceAt_LargeValues(t *testing.T) {
	// 价格与时长乘积超出int64
	start := new(big.Int).Lsh(big.NewInt(1), 200)
	reserve := big.NewInt(0)
	end := t0.Add(365 * 24 * time.Hour)

	got := auction.PriceAt(start, reserve, t0, end, t0.Add(365*12*time.Hour))
	want := new(big.Int).Rsh(start, 1)
	assert.Equal(t, 0, got.Cmp(want))
}

func TestSplitProceeds(t *testing.T) {
	prices := []*big.Int{
		big.NewInt(0),
		big.NewInt(1),
		big.NewInt(999),
		big.NewInt(1001),
		eth("0.55"),
		new(big.Int).Add(eth("1"), big.NewInt(7)),
	}
	for _, price := range prices {
		b, o := auction.SplitProceeds(price)

		want := new(big.Int).Mul(price, big.NewInt(975))
		want.Quo(want, big.NewInt(1000))
		assert.Equal(t, 0, b.Cmp(want), "beneficiary share for %s", price)
		assert.Equal(t, 0, new(big.Int).Add(b, o).Cmp(price), "shares must sum to %s", price)
		assert.True(t, o.Sign() >= 0)
	}
}

func TestPriceAt_SubSecond(t *testing.T) {
	start, reserve := eth("1"), eth("0.1")
	end := t0.Add(time.Hour)

	whole := auction.PriceAt(start, reserve, t0, end, t0.Add(10*time.Second))
	half := auction.PriceAt(start, reserve, t0, end, t0.Add(10*time.Second+500*time.Millisecond))
	next := auction.PriceAt(start, reserve, t0, end, t0.Add(11*time.Second))

	// 半秒处的价格严格介于相邻两个整秒之间
	assert.Equal(t, 1, whole.Cmp(half))
	assert.Equal(t, 1, half.Cmp(next))
	assert.Equal(t, 0, whole.Cmp(new(big.Int).Add(half, new(big.Int).Sub(half, next))))
}
