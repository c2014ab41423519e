package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"time"

	"nft_auction/auction"
	"nft_auction/model"
	"nft_auction/utils"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// ErrInvalidParam 请求参数格式错误
var ErrInvalidParam = errors.New("invalid parameter")

const maxDurationSeconds = math.MaxInt64 / int64(time.Second)

// Store 拍卖持久化
type Store interface {
	SaveSnapshot(ctx context.Context, snap auction.Snapshot) error
	LoadSnapshots(ctx context.Context) ([]auction.Snapshot, error)
	SaveEvent(ctx context.Context, ev auction.Event) error
	ListEvents(ctx context.Context, auctionID string, page, pageSize int) ([]model.AuctionEventRecord, int64, error)
}

// Locker 拍卖写操作锁
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

// AuctionService 拍卖服务接口
type AuctionService interface {
	CreateAuction(ctx context.Context, req CreateAuctionReq) (*AuctionView, error)
	ListAuctions(ctx context.Context) []AuctionView
	GetAuction(ctx context.Context, auctionID string) (*AuctionView, error)
	GetAuctionByAsset(ctx context.Context, assetID string) (*AuctionView, error)
	GetAuctionByIndex(ctx context.Context, index int) (*AuctionView, error)
	GetCurrentPrice(ctx context.Context, auctionID string) (*PriceView, error)
	GetPendingReturns(ctx context.Context, auctionID, account string) (*BalanceView, error)
	Bid(ctx context.Context, req BidReq) (*SettlementView, error)
	EndAuction(ctx context.Context, req EndAuctionReq) error
	Withdraw(ctx context.Context, req WithdrawReq) (*BalanceView, error)
	GetEvents(ctx context.Context, req GetEventsReq) ([]model.AuctionEventRecord, int64, error)
	HandleEvent(ctx context.Context, body []byte) error
	Restore(ctx context.Context) error
}

// Options 服务可选依赖
type Options struct {
	Locker      Locker        // nil表示单实例部署，不加分布式锁
	Clock       auction.Clock // nil表示time.Now
	MaxDuration time.Duration // 0表示不限制
}

// auctionService 拍卖服务实现
type auctionService struct {
	factory     *auction.Factory
	store       Store
	locker      Locker
	clock       auction.Clock
	maxDuration time.Duration
}

// NewAuctionService 创建拍卖服务
func NewAuctionService(factory *auction.Factory, store Store, opts Options) AuctionService {
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	return &auctionService{
		factory:     factory,
		store:       store,
		locker:      opts.Locker,
		clock:       clock,
		maxDuration: opts.MaxDuration,
	}
}

// -------------- 请求结构体 --------------
// CreateAuctionReq 创建拍卖请求，金额为wei十进制字符串
type CreateAuctionReq struct {
	Caller          string `json:"-"`
	AssetID         string `json:"asset_id" binding:"required"`
	DurationSeconds int64  `json:"duration_seconds" binding:"required"`
	StartPrice      string `json:"start_price"`   // 可选
	ReservePrice    string `json:"reserve_price"` // 可选
}

// BidReq 出价请求
type BidReq struct {
	Caller    string `json:"-"`
	AuctionID string `json:"-"`
	Amount    string `json:"amount" binding:"required"`
	TxHash    string `json:"tx_hash"` // 链上模式必填
}

// EndAuctionReq 手动结束请求
type EndAuctionReq struct {
	Caller    string `json:"-"`
	AuctionID string `json:"-"`
}

// WithdrawReq 领取待领取余额请求
type WithdrawReq struct {
	Caller    string `json:"-"`
	AuctionID string `json:"-"`
}

// GetEventsReq 查询事件请求
type GetEventsReq struct {
	AuctionID string `json:"auction_id"`
	Page      int    `json:"page"`
	PageSize  int    `json:"page_size"`
}

// -------------- 核心方法 --------------
// CreateAuction 创建拍卖
func (s *auctionService) CreateAuction(ctx context.Context, req CreateAuctionReq) (*AuctionView, error) {
	caller, err := parseAddress(req.Caller, "caller")
	if err != nil {
		return nil, err
	}
	assetID, err := parseUint(req.AssetID, "asset_id")
	if err != nil {
		return nil, err
	}
	if req.DurationSeconds > maxDurationSeconds {
		return nil, fmt.Errorf("%w: duration_seconds out of range", auction.ErrInvalidDuration)
	}
	params := auction.CreateParams{
		Caller:   caller,
		AssetID:  assetID,
		Duration: time.Duration(req.DurationSeconds) * time.Second,
	}
	if s.maxDuration > 0 && params.Duration > s.maxDuration {
		return nil, fmt.Errorf("%w: longer than %s", auction.ErrInvalidDuration, s.maxDuration)
	}
	if req.StartPrice != "" {
		if params.StartPrice, err = parseUint(req.StartPrice, "start_price"); err != nil {
			return nil, err
		}
	}
	if req.ReservePrice != "" {
		if params.ReservePrice, err = parseUint(req.ReservePrice, "reserve_price"); err != nil {
			return nil, err
		}
	}

	unlock, err := s.lock(ctx, "asset:"+assetID.String())
	if err != nil {
		return nil, err
	}
	defer unlock()

	a, err := s.factory.CreateAuction(ctx, params)
	if err != nil {
		return nil, err
	}
	s.persist(ctx, a)

	view := s.view(a)
	return &view, nil
}

// ListAuctions 按创建顺序列出全部拍卖
func (s *auctionService) ListAuctions(ctx context.Context) []AuctionView {
	all := s.factory.AllAuctions()
	views := make([]AuctionView, 0, len(all))
	for _, a := range all {
		views = append(views, s.view(a))
	}
	return views
}

// GetAuction 按拍卖ID查询
func (s *auctionService) GetAuction(ctx context.Context, auctionID string) (*AuctionView, error) {
	a, err := s.factory.AuctionByID(auctionID)
	if err != nil {
		return nil, err
	}
	view := s.view(a)
	return &view, nil
}

// GetAuctionByAsset 按资产ID查询
func (s *auctionService) GetAuctionByAsset(ctx context.Context, assetID string) (*AuctionView, error) {
	id, err := parseUint(assetID, "asset_id")
	if err != nil {
		return nil, err
	}
	a, err := s.factory.AuctionByAsset(id)
	if err != nil {
		return nil, err
	}
	view := s.view(a)
	return &view, nil
}

// GetAuctionByIndex 按创建顺序查询
func (s *auctionService) GetAuctionByIndex(ctx context.Context, index int) (*AuctionView, error) {
	a, err := s.factory.AuctionByIndex(index)
	if err != nil {
		return nil, err
	}
	view := s.view(a)
	return &view, nil
}

// GetCurrentPrice 查询当前价格
func (s *auctionService) GetCurrentPrice(ctx context.Context, auctionID string) (*PriceView, error) {
	a, err := s.factory.AuctionByID(auctionID)
	if err != nil {
		return nil, err
	}
	now := s.clock()
	price := a.PriceAt(now)
	return &PriceView{
		AuctionID:       a.ID(),
		Price:           price.String(),
		PriceEth:        utils.FormatEther(price),
		At:              now,
		Ended:           a.IsEnded() || !now.Before(a.EndTime()),
		ReservePrice:    a.ReservePrice().String(),
		SecondsToExpiry: secondsUntil(now, a.EndTime()),
	}, nil
}

// GetPendingReturns 查询待领取余额
func (s *auctionService) GetPendingReturns(ctx context.Context, auctionID, account string) (*BalanceView, error) {
	a, err := s.factory.AuctionByID(auctionID)
	if err != nil {
		return nil, err
	}
	addr, err := parseAddress(account, "account")
	if err != nil {
		return nil, err
	}
	return newBalanceView(a.ID(), addr, a.PendingReturns(addr)), nil
}

// Bid 出价
func (s *auctionService) Bid(ctx context.Context, req BidReq) (*SettlementView, error) {
	caller, err := parseAddress(req.Caller, "caller")
	if err != nil {
		return nil, err
	}
	amount, err := parseUint(req.Amount, "amount")
	if err != nil {
		return nil, err
	}
	payment := auction.Payment{From: caller, Amount: amount}
	if req.TxHash != "" {
		if len(common.FromHex(req.TxHash)) != common.HashLength {
			return nil, fmt.Errorf("%w: tx_hash", ErrInvalidParam)
		}
		payment.TxHash = common.HexToHash(req.TxHash)
	}

	a, err := s.factory.AuctionByID(req.AuctionID)
	if err != nil {
		return nil, err
	}

	unlock, err := s.lock(ctx, a.ID())
	if err != nil {
		return nil, err
	}
	defer unlock()

	settlement, err := a.Bid(ctx, payment)
	// 被拒绝的出价也可能把退款记入待领取余额，每次都落库
	s.persist(ctx, a)
	if err != nil {
		return nil, err
	}
	return newSettlementView(settlement), nil
}

// EndAuction 受益人手动结束拍卖
func (s *auctionService) EndAuction(ctx context.Context, req EndAuctionReq) error {
	caller, err := parseAddress(req.Caller, "caller")
	if err != nil {
		return err
	}
	a, err := s.factory.AuctionByID(req.AuctionID)
	if err != nil {
		return err
	}

	unlock, err := s.lock(ctx, a.ID())
	if err != nil {
		return err
	}
	defer unlock()

	if err := a.End(ctx, caller); err != nil {
		return err
	}
	s.persist(ctx, a)
	return nil
}

// Withdraw 领取待领取余额
func (s *auctionService) Withdraw(ctx context.Context, req WithdrawReq) (*BalanceView, error) {
	caller, err := parseAddress(req.Caller, "caller")
	if err != nil {
		return nil, err
	}
	a, err := s.factory.AuctionByID(req.AuctionID)
	if err != nil {
		return nil, err
	}

	unlock, err := s.lock(ctx, a.ID())
	if err != nil {
		return nil, err
	}
	defer unlock()

	amount, err := a.Withdraw(ctx, caller)
	// 转账未确认时余额已扣减，同样需要落库
	s.persist(ctx, a)
	if err != nil {
		return nil, err
	}
	return newBalanceView(a.ID(), caller, amount), nil
}

// GetEvents 分页查询拍卖事件
func (s *auctionService) GetEvents(ctx context.Context, req GetEventsReq) ([]model.AuctionEventRecord, int64, error) {
	if req.Page <= 0 {
		req.Page = 1
	}
	if req.PageSize <= 0 {
		req.PageSize = 10
	}
	return s.store.ListEvents(ctx, req.AuctionID, req.Page, req.PageSize)
}

// HandleEvent 消费消息总线上的拍卖事件并写入事件表
func (s *auctionService) HandleEvent(ctx context.Context, body []byte) error {
	var ev auction.Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return err
	}
	if ev.ID == "" || ev.AuctionID == "" {
		return fmt.Errorf("%w: event without id", ErrInvalidParam)
	}
	return s.store.SaveEvent(ctx, ev)
}

// Restore 启动时从存储恢复拍卖登记簿
func (s *auctionService) Restore(ctx context.Context) error {
	snaps, err := s.store.LoadSnapshots(ctx)
	if err != nil {
		return fmt.Errorf("load auction snapshots: %w", err)
	}
	s.factory.Restore(snaps)
	return nil
}

func (s *auctionService) lock(ctx context.Context, key string) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	unlock, err := s.locker.Lock(ctx, "nft_auction:lock:"+key)
	if err != nil {
		utils.Logger.Error("获取分布式锁失败", zap.String("key", key), zap.Error(err))
		return nil, fmt.Errorf("auction is busy, retry later: %w", err)
	}
	return unlock, nil
}

// persist 写入快照；内存状态已提交，落库不随请求取消，失败只记录日志
func (s *auctionService) persist(ctx context.Context, a *auction.Auction) {
	if err := s.store.SaveSnapshot(context.WithoutCancel(ctx), a.Snapshot()); err != nil {
		utils.Logger.Error("保存拍卖快照失败", zap.String("auction_id", a.ID()), zap.Error(err))
	}
}

func (s *auctionService) view(a *auction.Auction) AuctionView {
	return newAuctionView(a, s.clock())
}

func parseAddress(v, field string) (common.Address, error) {
	if !common.IsHexAddress(v) {
		return common.Address{}, fmt.Errorf("%w: %s must be a hex address", ErrInvalidParam, field)
	}
	return common.HexToAddress(v), nil
}

func parseUint(v, field string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(v, 10)
	if !ok || n.Sign() < 0 {
		return nil, fmt.Errorf("%w: %s must be a non-negative integer", ErrInvalidParam, field)
	}
	return n, nil
}

func secondsUntil(now, t time.Time) int64 {
	if !now.Before(t) {
		return 0
	}
	return int64(t.Sub(now) / time.Second)
}

// ParseIndex 解析列表下标
func ParseIndex(v string) (int, error) {
	i, err := strconv.Atoi(v)
	if err != nil || i < 0 {
		return 0, fmt.Errorf("%w: index", ErrInvalidParam)
	}
	return i, nil
}
