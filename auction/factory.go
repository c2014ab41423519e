package auction

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"sync"
	"time"

	"nft_auction/utils"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// 默认价格曲线：起拍 1 ETH，底价 0.1 ETH（wei）
var (
	DefaultStartPrice   = big.NewInt(1_000_000_000_000_000_000)
	DefaultReservePrice = big.NewInt(100_000_000_000_000_000)
)

// PriceCurve 起拍价与底价
type PriceCurve struct {
	StartPrice   *big.Int
	ReservePrice *big.Int
}

// DefaultPriceCurve 默认价格曲线
func DefaultPriceCurve() PriceCurve {
	return PriceCurve{
		StartPrice:   new(big.Int).Set(DefaultStartPrice),
		ReservePrice: new(big.Int).Set(DefaultReservePrice),
	}
}

// Validate 校验 0 <= reserve <= start
func (c PriceCurve) Validate() error {
	if c.StartPrice == nil || c.ReservePrice == nil {
		return ErrInvalidPriceRange
	}
	if c.ReservePrice.Sign() < 0 || c.ReservePrice.Cmp(c.StartPrice) > 0 {
		return ErrInvalidPriceRange
	}
	return nil
}

// CreateParams 创建拍卖参数
type CreateParams struct {
	Caller   common.Address
	AssetID  *big.Int
	Duration time.Duration
	// 可选，为nil时使用工厂默认曲线
	StartPrice   *big.Int
	ReservePrice *big.Int
}

// Option 工厂可选项
type Option func(*Factory)

// WithIDGenerator 自定义拍卖ID生成器
func WithIDGenerator(gen func() string) Option {
	return func(f *Factory) { f.newID = gen }
}

// WithPriceCurve 自定义默认价格曲线
func WithPriceCurve(c PriceCurve) Option {
	return func(f *Factory) { f.curve = c }
}

// Factory 拍卖登记簿：创建拍卖、按创建顺序与资产ID索引
// 同一资产存在未结束的拍卖时拒绝再次创建；旧拍卖结束后允许重新拍卖，资产索引指向最新一场
type Factory struct {
	mu sync.RWMutex

	organizer common.Address
	operator  common.Address
	curve     PriceCurve
	deps      Deps
	newID     func() string

	auctions []*Auction
	byAsset  map[string]*Auction
	byID     map[string]*Auction
}

// NewFactory 创建登记簿，organizer为所有拍卖共享的手续费接收地址，
// operator为需要获得资产转移授权的地址
func NewFactory(organizer, operator common.Address, deps Deps, opts ...Option) *Factory {
	f := &Factory{
		organizer: organizer,
		operator:  operator,
		curve:     DefaultPriceCurve(),
		deps:      deps,
		newID:     utils.GenerateAuctionId,
		byAsset:   make(map[string]*Auction),
		byID:      make(map[string]*Auction),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Organizer 手续费接收地址
func (f *Factory) Organizer() common.Address { return f.organizer }

// Operator 执行资产转移的地址
func (f *Factory) Operator() common.Address { return f.operator }

// CreateAuction 为调用者持有的资产创建荷兰式拍卖
func (f *Factory) CreateAuction(ctx context.Context, p CreateParams) (*Auction, error) {
	if p.Duration <= 0 {
		return nil, ErrInvalidDuration
	}
	if p.AssetID == nil || p.AssetID.Sign() < 0 {
		return nil, ErrInvalidAssetID
	}

	curve := PriceCurve{StartPrice: f.curve.StartPrice, ReservePrice: f.curve.ReservePrice}
	if p.StartPrice != nil {
		curve.StartPrice = p.StartPrice
	}
	if p.ReservePrice != nil {
		curve.ReservePrice = p.ReservePrice
	}
	if err := curve.Validate(); err != nil {
		return nil, err
	}

	// 1. 校验资产归属
	owner, err := f.deps.Assets.OwnerOf(ctx, p.AssetID)
	if err != nil {
		return nil, fmt.Errorf("query asset owner: %w", err)
	}
	if owner != p.Caller {
		utils.Logger.Warn("创建拍卖被拒绝：非资产持有者", zap.Stringer("asset_id", p.AssetID), zap.String("caller", p.Caller.Hex()), zap.String("owner", owner.Hex()))
		return nil, ErrNotAssetOwner
	}

	// 2. 校验转移授权
	approved, err := f.deps.Assets.IsApprovedForTransfer(ctx, p.AssetID, f.operator)
	if err != nil {
		return nil, fmt.Errorf("query asset approval: %w", err)
	}
	if !approved {
		utils.Logger.Warn("创建拍卖被拒绝：未授权", zap.Stringer("asset_id", p.AssetID), zap.String("operator", f.operator.Hex()))
		return nil, ErrNotApproved
	}

	// 3. 同一资产只允许一场进行中的拍卖
	// 状态在f.mu之外读取，加锁后确认登记未被替换
	key := p.AssetID.String()
	for {
		f.mu.RLock()
		existing := f.byAsset[key]
		f.mu.RUnlock()
		if existing != nil && !existing.IsEnded() {
			return nil, ErrAuctionLive
		}
		f.mu.Lock()
		if f.byAsset[key] == existing {
			break
		}
		f.mu.Unlock()
	}

	now := f.deps.now()
	a := &Auction{
		id:             f.newID(),
		assetID:        new(big.Int).Set(p.AssetID),
		beneficiary:    p.Caller,
		organizer:      f.organizer,
		startTime:      now,
		endTime:        now.Add(p.Duration),
		startPrice:     new(big.Int).Set(curve.StartPrice),
		reservePrice:   new(big.Int).Set(curve.ReservePrice),
		status:         StatusActive,
		highestBid:     new(big.Int),
		pendingReturns: make(map[common.Address]*big.Int),
		deps:           f.deps,
	}
	f.auctions = append(f.auctions, a)
	f.byAsset[key] = a
	f.byID[a.id] = a
	f.mu.Unlock()

	utils.Logger.Info("创建拍卖成功",
		zap.String("auction_id", a.id),
		zap.Stringer("asset_id", a.assetID),
		zap.String("beneficiary", a.beneficiary.Hex()),
		zap.Time("end_time", a.endTime))
	a.publish(ctx, createdEvent(a, now))
	return a, nil
}

// AuctionByAsset 按资产ID查询拍卖
func (f *Factory) AuctionByAsset(assetID *big.Int) (*Auction, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	a, ok := f.byAsset[assetID.String()]
	if !ok {
		return nil, ErrAuctionNotFound
	}
	return a, nil
}

// AuctionByID 按拍卖ID查询
func (f *Factory) AuctionByID(id string) (*Auction, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	a, ok := f.byID[id]
	if !ok {
		return nil, ErrAuctionNotFound
	}
	return a, nil
}

// AuctionByIndex 按创建顺序查询
func (f *Factory) AuctionByIndex(i int) (*Auction, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if i < 0 || i >= len(f.auctions) {
		return nil, ErrIndexOutOfRange
	}
	return f.auctions[i], nil
}

// AllAuctions 按创建顺序返回全部拍卖
func (f *Factory) AllAuctions() []*Auction {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]*Auction, len(f.auctions))
	copy(out, f.auctions)
	return out
}

// Len 拍卖数量
func (f *Factory) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.auctions)
}

// Restore 从快照重建登记簿，按开始时间恢复创建顺序
func (f *Factory) Restore(snaps []Snapshot) {
	sorted := make([]Snapshot, len(snaps))
	copy(sorted, snaps)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].StartTime.Before(sorted[j].StartTime)
	})

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range sorted {
		if _, ok := f.byID[s.ID]; ok {
			continue
		}
		a := fromSnapshot(s, f.deps)
		f.auctions = append(f.auctions, a)
		f.byAsset[a.assetID.String()] = a
		f.byID[a.id] = a
	}
	utils.Logger.Info("恢复拍卖登记簿", zap.Int("count", len(f.auctions)))
}
