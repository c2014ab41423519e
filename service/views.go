package service

import (
	"math/big"
	"time"

	"nft_auction/auction"
	"nft_auction/utils"

	"github.com/ethereum/go-ethereum/common"
)

// AuctionView 拍卖对外展示结构，金额同时给出wei和ETH
type AuctionView struct {
	AuctionID       string    `json:"auction_id"`
	AssetID         string    `json:"asset_id"`
	Beneficiary     string    `json:"beneficiary"`
	Organizer       string    `json:"organizer"`
	StartPrice      string    `json:"start_price"`
	ReservePrice    string    `json:"reserve_price"`
	CurrentPrice    string    `json:"current_price"`
	CurrentPriceEth string    `json:"current_price_eth"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	Status          string    `json:"status"`
	Ended           bool      `json:"ended"`
	Winner          string    `json:"winner,omitempty"`
	FinalPrice      string    `json:"final_price,omitempty"`
}

// PriceView 当前价格
type PriceView struct {
	AuctionID       string    `json:"auction_id"`
	Price           string    `json:"price"`
	PriceEth        string    `json:"price_eth"`
	ReservePrice    string    `json:"reserve_price"`
	At              time.Time `json:"at"`
	Ended           bool      `json:"ended"`
	SecondsToExpiry int64     `json:"seconds_to_expiry"`
}

// BalanceView 待领取余额或领取结果
type BalanceView struct {
	AuctionID string `json:"auction_id"`
	Account   string `json:"account"`
	Amount    string `json:"amount"`
	AmountEth string `json:"amount_eth"`
}

// TransferView 结算中的单笔转账
type TransferView struct {
	To          string `json:"to"`
	Amount      string `json:"amount"`
	Delivered   bool   `json:"delivered"`
	Unconfirmed bool   `json:"unconfirmed,omitempty"`
}

// SettlementView 成交结果
type SettlementView struct {
	AuctionID   string        `json:"auction_id"`
	Winner      string        `json:"winner"`
	Price       string        `json:"price"`
	PriceEth    string        `json:"price_eth"`
	Refund      *TransferView `json:"refund,omitempty"`
	Beneficiary TransferView  `json:"beneficiary"`
	Organizer   TransferView  `json:"organizer"`
	// AssetUnconfirmed 资产转移交易已广播，尚未确认
	AssetUnconfirmed bool `json:"asset_unconfirmed,omitempty"`
}

func newAuctionView(a *auction.Auction, now time.Time) AuctionView {
	price := a.PriceAt(now)
	v := AuctionView{
		AuctionID:       a.ID(),
		AssetID:         a.AssetID().String(),
		Beneficiary:     a.Beneficiary().Hex(),
		Organizer:       a.Organizer().Hex(),
		StartPrice:      a.StartPrice().String(),
		ReservePrice:    a.ReservePrice().String(),
		CurrentPrice:    price.String(),
		CurrentPriceEth: utils.FormatEther(price),
		StartTime:       a.StartTime(),
		EndTime:         a.EndTime(),
		Status:          a.Status().String(),
		Ended:           a.IsEnded(),
	}
	if winner := a.Winner(); winner != auction.NoBidder {
		v.Winner = winner.Hex()
		v.FinalPrice = a.HighestBid().String()
	}
	return v
}

func newBalanceView(auctionID string, account common.Address, amount *big.Int) *BalanceView {
	return &BalanceView{
		AuctionID: auctionID,
		Account:   account.Hex(),
		Amount:    amount.String(),
		AmountEth: utils.FormatEther(amount),
	}
}

func newTransferView(t auction.Transfer) TransferView {
	return TransferView{To: t.To.Hex(), Amount: t.Amount.String(), Delivered: t.Delivered, Unconfirmed: t.Unconfirmed}
}

func newSettlementView(s *auction.Settlement) *SettlementView {
	v := &SettlementView{
		AuctionID:   s.AuctionID,
		Winner:      s.Winner.Hex(),
		Price:       s.Price.String(),
		PriceEth:    utils.FormatEther(s.Price),
		Beneficiary: newTransferView(s.Beneficiary),
		Organizer:   newTransferView(s.Organizer),

		AssetUnconfirmed: s.AssetUnconfirmed,
	}
	if s.Refund != nil {
		r := newTransferView(*s.Refund)
		v.Refund = &r
	}
	return v
}
