package dao

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	"nft_auction/auction"
	"nft_auction/model"

	"github.com/ethereum/go-ethereum/common"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AutoMigrate 自动迁移拍卖相关表
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.AuctionRecord{},
		&model.PendingReturnRecord{},
		&model.AuctionEventRecord{},
	)
}

// AuctionStore 拍卖快照与事件的MySQL存储
type AuctionStore struct {
	db *gorm.DB
}

// NewAuctionStore 创建拍卖存储
func NewAuctionStore(db *gorm.DB) *AuctionStore {
	return &AuctionStore{db: db}
}

// SaveSnapshot 事务写入拍卖状态与待领取余额
func (s *AuctionStore) SaveSnapshot(ctx context.Context, snap auction.Snapshot) error {
	record, pending := ToRecords(snap)

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 拍卖主表：已存在时只更新可变字段
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "auction_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"status", "highest_bidder", "highest_bid", "updated_at"}),
		}).Create(&record).Error; err != nil {
			return fmt.Errorf("upsert auction: %w", err)
		}

		// 待领取余额整体替换
		if err := tx.Where("auction_id = ?", snap.ID).Delete(&model.PendingReturnRecord{}).Error; err != nil {
			return fmt.Errorf("clear pending returns: %w", err)
		}
		if len(pending) > 0 {
			if err := tx.Create(&pending).Error; err != nil {
				return fmt.Errorf("insert pending returns: %w", err)
			}
		}
		return nil
	})
}

// LoadSnapshots 读取全部拍卖快照
func (s *AuctionStore) LoadSnapshots(ctx context.Context) ([]auction.Snapshot, error) {
	var records []model.AuctionRecord
	if err := s.db.WithContext(ctx).Order("start_time ASC").Find(&records).Error; err != nil {
		return nil, err
	}
	var pending []model.PendingReturnRecord
	if err := s.db.WithContext(ctx).Find(&pending).Error; err != nil {
		return nil, err
	}

	byAuction := make(map[string][]model.PendingReturnRecord)
	for _, p := range pending {
		byAuction[p.AuctionID] = append(byAuction[p.AuctionID], p)
	}

	snaps := make([]auction.Snapshot, 0, len(records))
	for _, r := range records {
		snap, err := FromRecords(r, byAuction[r.AuctionID])
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	return snaps, nil
}

// SaveEvent 写入事件，重复投递的事件被忽略
func (s *AuctionStore) SaveEvent(ctx context.Context, ev auction.Event) error {
	record, err := ToEventRecord(ev)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&record).Error
}

// ToEventRecord 事件转换为表记录，Payload保留原始JSON
func ToEventRecord(ev auction.Event) (model.AuctionEventRecord, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return model.AuctionEventRecord{}, err
	}
	return model.AuctionEventRecord{
		EventID:    ev.ID,
		AuctionID:  ev.AuctionID,
		AssetID:    ev.AssetID,
		Type:       string(ev.Type),
		Winner:     ev.Winner,
		FinalPrice: ev.FinalPrice,
		Account:    ev.Account,
		Amount:     ev.Amount,
		Payload:    string(payload),
		EventTime:  ev.Time,
	}, nil
}

// ListEvents 分页查询某场拍卖的事件
func (s *AuctionStore) ListEvents(ctx context.Context, auctionID string, page, pageSize int) ([]model.AuctionEventRecord, int64, error) {
	var records []model.AuctionEventRecord
	var total int64

	query := s.db.WithContext(ctx).Model(&model.AuctionEventRecord{})
	if auctionID != "" {
		query = query.Where("auction_id = ?", auctionID)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	if err := query.Offset(offset).Limit(pageSize).Order("event_time DESC").Find(&records).Error; err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

// ToRecords 快照转换为表记录
func ToRecords(snap auction.Snapshot) (model.AuctionRecord, []model.PendingReturnRecord) {
	record := model.AuctionRecord{
		AuctionID:     snap.ID,
		AssetID:       snap.AssetID.String(),
		Beneficiary:   snap.Beneficiary.Hex(),
		Organizer:     snap.Organizer.Hex(),
		StartPrice:    snap.StartPrice.String(),
		ReservePrice:  snap.ReservePrice.String(),
		StartTime:     snap.StartTime,
		EndTime:       snap.EndTime,
		Status:        int(snap.Status),
		HighestBidder: snap.HighestBidder.Hex(),
		HighestBid:    snap.HighestBid.String(),
	}

	pending := make([]model.PendingReturnRecord, 0, len(snap.PendingReturns))
	for addr, amount := range snap.PendingReturns {
		if amount.Sign() <= 0 {
			continue
		}
		pending = append(pending, model.PendingReturnRecord{
			AuctionID: snap.ID,
			Account:   addr.Hex(),
			Amount:    amount.String(),
		})
	}
	return record, pending
}

// FromRecords 表记录还原为快照
func FromRecords(r model.AuctionRecord, pending []model.PendingReturnRecord) (auction.Snapshot, error) {
	snap := auction.Snapshot{
		ID:             r.AuctionID,
		Beneficiary:    common.HexToAddress(r.Beneficiary),
		Organizer:      common.HexToAddress(r.Organizer),
		StartTime:      r.StartTime,
		EndTime:        r.EndTime,
		Status:         auction.Status(r.Status),
		HighestBidder:  common.HexToAddress(r.HighestBidder),
		PendingReturns: make(map[common.Address]*big.Int, len(pending)),
	}

	var err error
	if snap.AssetID, err = parseInt(r.AssetID, "asset_id", r.AuctionID); err != nil {
		return snap, err
	}
	if snap.StartPrice, err = parseInt(r.StartPrice, "start_price", r.AuctionID); err != nil {
		return snap, err
	}
	if snap.ReservePrice, err = parseInt(r.ReservePrice, "reserve_price", r.AuctionID); err != nil {
		return snap, err
	}
	if snap.HighestBid, err = parseInt(r.HighestBid, "highest_bid", r.AuctionID); err != nil {
		return snap, err
	}
	for _, p := range pending {
		amount, err := parseInt(p.Amount, "pending_return", r.AuctionID)
		if err != nil {
			return snap, err
		}
		snap.PendingReturns[common.HexToAddress(p.Account)] = amount
	}
	return snap, nil
}

func parseInt(v, field, auctionID string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(v, 10)
	if !ok {
		return nil, fmt.Errorf("auction %s: invalid %s %q", auctionID, field, v)
	}
	return n, nil
}
