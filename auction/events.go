package auction

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// EventType 事件类型
type EventType string

const (
	EventAuctionCreated EventType = "AuctionCreated"
	EventAuctionEnded   EventType = "AuctionEnded"
	EventWithdrawn      EventType = "Withdrawn"
)

// Event 拍卖对外事件（金额均为wei十进制字符串）
type Event struct {
	ID           string     `json:"id"`
	Type         EventType  `json:"type"`
	AuctionID    string     `json:"auction_id"`
	AssetID      string     `json:"asset_id"`
	Beneficiary  string     `json:"beneficiary,omitempty"`
	StartPrice   string     `json:"start_price,omitempty"`
	ReservePrice string     `json:"reserve_price,omitempty"`
	EndTime      *time.Time `json:"end_time,omitempty"`
	Winner       string     `json:"winner,omitempty"`
	FinalPrice   string     `json:"final_price,omitempty"`
	Account      string     `json:"account,omitempty"`
	Amount       string     `json:"amount,omitempty"`
	Time         time.Time  `json:"time"`
}

// RoutingKey 事件在消息总线上的路由键
func (e Event) RoutingKey() string {
	switch e.Type {
	case EventAuctionCreated:
		return "auction.created"
	case EventAuctionEnded:
		return "auction.ended"
	default:
		return "auction.withdrawn"
	}
}

func createdEvent(a *Auction, now time.Time) Event {
	endTime := a.endTime
	return Event{
		ID:           uuid.NewString(),
		Type:         EventAuctionCreated,
		AuctionID:    a.id,
		AssetID:      a.assetID.String(),
		Beneficiary:  a.beneficiary.Hex(),
		StartPrice:   a.startPrice.String(),
		ReservePrice: a.reservePrice.String(),
		EndTime:      &endTime,
		Time:         now,
	}
}

// endedEvent 未成交时winner为零地址、价格为0
func endedEvent(a *Auction, winner common.Address, price *big.Int, now time.Time) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       EventAuctionEnded,
		AuctionID:  a.id,
		AssetID:    a.assetID.String(),
		Winner:     winner.Hex(),
		FinalPrice: price.String(),
		Time:       now,
	}
}

func withdrawnEvent(a *Auction, account common.Address, amount *big.Int, now time.Time) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      EventWithdrawn,
		AuctionID: a.id,
		AssetID:   a.assetID.String(),
		Account:   account.Hex(),
		Amount:    amount.String(),
		Time:      now,
	}
}
