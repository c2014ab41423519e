package model

import (
	"time"

	"gorm.io/gorm"
)

// AuctionRecord 荷兰式拍卖表（金额均为wei十进制字符串）
type AuctionRecord struct {
	ID            uint64         `gorm:"primaryKey;comment:自增ID"`
	AuctionID     string         `gorm:"uniqueIndex;size:64;comment:拍卖ID"`
	AssetID       string         `gorm:"index;size:80;comment:链上TokenID"`
	Beneficiary   string         `gorm:"size:42;comment:受益人钱包地址"`
	Organizer     string         `gorm:"size:42;comment:手续费接收地址"`
	StartPrice    string         `gorm:"size:80;comment:起拍价"`
	ReservePrice  string         `gorm:"size:80;comment:底价"`
	StartTime     time.Time      `gorm:"comment:拍卖开始时间"`
	EndTime       time.Time      `gorm:"index;comment:拍卖结束时间"`
	Status        int            `gorm:"comment:0-进行中 1-已结束"`
	HighestBidder string         `gorm:"size:42;comment:中标人地址（流拍为零地址）"`
	HighestBid    string         `gorm:"size:80;comment:成交价（流拍为0）"`
	CreatedAt     time.Time      `gorm:"comment:创建时间"`
	UpdatedAt     time.Time      `gorm:"comment:更新时间"`
	DeletedAt     gorm.DeletedAt `gorm:"index;comment:删除时间"`
}

// TableName 表名
func (AuctionRecord) TableName() string {
	return "dutch_auctions"
}

// PendingReturnRecord 待领取余额表（转账失败时暂存）
type PendingReturnRecord struct {
	ID        uint64    `gorm:"primaryKey;comment:自增ID"`
	AuctionID string    `gorm:"uniqueIndex:idx_auction_account;size:64;comment:拍卖ID"`
	Account   string    `gorm:"uniqueIndex:idx_auction_account;size:42;comment:钱包地址"`
	Amount    string    `gorm:"size:80;comment:待领取金额"`
	CreatedAt time.Time `gorm:"comment:创建时间"`
	UpdatedAt time.Time `gorm:"comment:更新时间"`
}

// TableName 表名
func (PendingReturnRecord) TableName() string {
	return "auction_pending_returns"
}

// AuctionEventRecord 拍卖事件表（事件索引）
type AuctionEventRecord struct {
	ID         uint64    `gorm:"primaryKey;comment:自增ID" json:"-"`
	EventID    string    `gorm:"uniqueIndex;size:36;comment:事件ID（UUID）" json:"event_id"`
	AuctionID  string    `gorm:"index;size:64;comment:拍卖ID" json:"auction_id"`
	AssetID    string    `gorm:"index;size:80;comment:链上TokenID" json:"asset_id"`
	Type       string    `gorm:"size:32;comment:事件类型" json:"type"`
	Winner     string    `gorm:"size:42;comment:中标人地址" json:"winner,omitempty"`
	FinalPrice string    `gorm:"size:80;comment:成交价" json:"final_price,omitempty"`
	Account    string    `gorm:"size:42;comment:领取人地址" json:"account,omitempty"`
	Amount     string    `gorm:"size:80;comment:领取金额" json:"amount,omitempty"`
	Payload    string    `gorm:"type:text;comment:原始事件JSON" json:"-"`
	EventTime  time.Time `gorm:"index;comment:事件时间" json:"event_time"`
	CreatedAt  time.Time `gorm:"comment:创建时间" json:"created_at"`
}

// TableName 表名
func (AuctionEventRecord) TableName() string {
	return "auction_events"
}
