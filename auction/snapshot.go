package auction

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Snapshot 拍卖完整状态，用于持久化与重启恢复
type Snapshot struct {
	ID             string
	AssetID        *big.Int
	Beneficiary    common.Address
	Organizer      common.Address
	StartTime      time.Time
	EndTime        time.Time
	StartPrice     *big.Int
	ReservePrice   *big.Int
	Status         Status
	HighestBidder  common.Address
	HighestBid     *big.Int
	PendingReturns map[common.Address]*big.Int
}

// Snapshot 导出当前状态的副本
func (a *Auction) Snapshot() Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()

	pending := make(map[common.Address]*big.Int, len(a.pendingReturns))
	for addr, amount := range a.pendingReturns {
		pending[addr] = new(big.Int).Set(amount)
	}
	return Snapshot{
		ID:             a.id,
		AssetID:        new(big.Int).Set(a.assetID),
		Beneficiary:    a.beneficiary,
		Organizer:      a.organizer,
		StartTime:      a.startTime,
		EndTime:        a.endTime,
		StartPrice:     new(big.Int).Set(a.startPrice),
		ReservePrice:   new(big.Int).Set(a.reservePrice),
		Status:         a.status,
		HighestBidder:  a.highestBidder,
		HighestBid:     new(big.Int).Set(a.highestBid),
		PendingReturns: pending,
	}
}

func fromSnapshot(s Snapshot, deps Deps) *Auction {
	a := &Auction{
		id:             s.ID,
		assetID:        new(big.Int).Set(s.AssetID),
		beneficiary:    s.Beneficiary,
		organizer:      s.Organizer,
		startTime:      s.StartTime,
		endTime:        s.EndTime,
		startPrice:     new(big.Int).Set(s.StartPrice),
		reservePrice:   new(big.Int).Set(s.ReservePrice),
		status:         s.Status,
		highestBidder:  s.HighestBidder,
		highestBid:     new(big.Int),
		pendingReturns: make(map[common.Address]*big.Int, len(s.PendingReturns)),
		deps:           deps,
	}
	if s.HighestBid != nil {
		a.highestBid.Set(s.HighestBid)
	}
	for addr, amount := range s.PendingReturns {
		if amount != nil && amount.Sign() > 0 {
			a.pendingReturns[addr] = new(big.Int).Set(amount)
		}
	}
	return a
}
