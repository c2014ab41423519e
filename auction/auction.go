package auction

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"nft_auction/utils"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// Status 拍卖状态，只会从Active变为Ended
type Status int

const (
	StatusActive Status = iota
	StatusEnded
)

func (s Status) String() string {
	if s == StatusEnded {
		return "ended"
	}
	return "active"
}

// NoBidder 未成交时的中标人占位（零地址）
var NoBidder = common.Address{}

// Transfer 一次推送转账的结果
// Delivered为false时金额已记入待领取余额；Unconfirmed表示交易已广播但未确认，不再记入
type Transfer struct {
	To          common.Address
	Amount      *big.Int
	Delivered   bool
	Unconfirmed bool
}

// Settlement 成交结算明细
type Settlement struct {
	AuctionID   string
	Winner      common.Address
	Price       *big.Int
	Refund      *Transfer // 多付部分，无多付时为nil
	Beneficiary Transfer
	Organizer   Transfer
	// AssetUnconfirmed 资产转移交易已广播但未确认，成交状态保留待对账
	AssetUnconfirmed bool
}

// Auction 单个资产的荷兰式拍卖
type Auction struct {
	// opMu 串行化出价、结束与领取，外部调用期间一直持有
	opMu sync.Mutex
	// mu 只保护下方可变字段，持有期间不做外部调用
	mu sync.RWMutex

	id           string
	assetID      *big.Int
	beneficiary  common.Address
	organizer    common.Address
	startTime    time.Time
	endTime      time.Time
	startPrice   *big.Int
	reservePrice *big.Int

	status         Status
	highestBidder  common.Address
	highestBid     *big.Int
	pendingReturns map[common.Address]*big.Int

	deps Deps
}

func (a *Auction) ID() string                  { return a.id }
func (a *Auction) AssetID() *big.Int           { return new(big.Int).Set(a.assetID) }
func (a *Auction) Beneficiary() common.Address { return a.beneficiary }
func (a *Auction) Organizer() common.Address   { return a.organizer }
func (a *Auction) StartTime() time.Time        { return a.startTime }
func (a *Auction) EndTime() time.Time          { return a.endTime }
func (a *Auction) StartPrice() *big.Int        { return new(big.Int).Set(a.startPrice) }
func (a *Auction) ReservePrice() *big.Int      { return new(big.Int).Set(a.reservePrice) }

// Duration 拍卖时长
func (a *Auction) Duration() time.Duration { return a.endTime.Sub(a.startTime) }

// Status 当前状态标志（不考虑时钟是否已过期）
func (a *Auction) Status() Status {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.status
}

// IsEnded 状态是否已结束
func (a *Auction) IsEnded() bool {
	return a.Status() == StatusEnded
}

// HighestBidder 中标人，未成交返回NoBidder
func (a *Auction) HighestBidder() common.Address {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.highestBidder
}

// Winner 同HighestBidder
func (a *Auction) Winner() common.Address {
	return a.HighestBidder()
}

// HighestBid 成交价，未成交为0
func (a *Auction) HighestBid() *big.Int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return new(big.Int).Set(a.highestBid)
}

// PendingReturns 查询addr的待领取余额
func (a *Auction) PendingReturns(addr common.Address) *big.Int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if v, ok := a.pendingReturns[addr]; ok {
		return new(big.Int).Set(v)
	}
	return new(big.Int)
}

// CurrentPrice 当前时刻的价格
func (a *Auction) CurrentPrice() *big.Int {
	return a.PriceAt(a.deps.now())
}

// PriceAt 指定时刻的价格，结束后仍可查询
func (a *Auction) PriceAt(t time.Time) *big.Int {
	return PriceAt(a.startPrice, a.reservePrice, a.startTime, a.endTime, t)
}

// Bid 以当前价格购买资产
// 外部调用使用与请求脱钩的限时上下文；资产转移明确失败时退还全部出价，状态不变
func (a *Auction) Bid(ctx context.Context, p Payment) (*Settlement, error) {
	if p.Amount == nil || p.Amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}

	a.opMu.Lock()
	defer a.opMu.Unlock()
	ctx, cancel := a.deps.settleContext(ctx)
	defer cancel()
	now := a.deps.now()

	// 1. 校验拍卖是否已结束，时间判断优先于状态标志
	if a.Status() == StatusEnded || !now.Before(a.endTime) {
		a.rejectBid(ctx, p, ErrAuctionAlreadyEnded)
		return nil, ErrAuctionAlreadyEnded
	}

	// 2. 计算当前价格
	price := a.PriceAt(now)
	if p.Amount.Cmp(price) < 0 {
		err := &BidNotHighEnoughError{Price: price}
		a.rejectBid(ctx, p, err)
		return nil, err
	}

	// 3. 收取出价资金
	if err := a.deps.Treasury.Collect(ctx, p); err != nil {
		utils.Logger.Warn("收取出价资金失败", zap.String("auction_id", a.id), zap.String("bidder", p.From.Hex()), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrPaymentFailed, err)
	}

	settlement := &Settlement{
		AuctionID: a.id,
		Winner:    p.From,
		Price:     new(big.Int).Set(price),
	}

	// 4. 资产转移（受益人 -> 出价人），明确失败则退款
	if err := a.deps.Assets.TransferOwnership(ctx, a.assetID, a.beneficiary, p.From); err != nil {
		if !errors.Is(err, ErrTransferUnconfirmed) {
			refund := a.pushOrEscrow(ctx, p.From, p.Amount)
			utils.Logger.Error("资产转移失败，出价已退回",
				zap.String("auction_id", a.id),
				zap.String("bidder", p.From.Hex()),
				zap.Bool("refund_delivered", refund.Delivered),
				zap.Error(err))
			return nil, fmt.Errorf("%w: %v", ErrAssetTransferFailed, err)
		}
		settlement.AssetUnconfirmed = true
		utils.Logger.Error("资产转移未确认，按成交处理",
			zap.String("auction_id", a.id),
			zap.String("bidder", p.From.Hex()),
			zap.Error(err))
	}

	// 5. 记录成交
	a.mu.Lock()
	a.status = StatusEnded
	a.highestBidder = p.From
	a.highestBid = new(big.Int).Set(price)
	a.mu.Unlock()

	// 6. 退还多付部分
	if excess := new(big.Int).Sub(p.Amount, price); excess.Sign() > 0 {
		refund := a.pushOrEscrow(ctx, p.From, excess)
		settlement.Refund = &refund
	}

	// 7. 分配成交款
	beneficiaryShare, organizerShare := SplitProceeds(price)
	settlement.Beneficiary = a.pushOrEscrow(ctx, a.beneficiary, beneficiaryShare)
	settlement.Organizer = a.pushOrEscrow(ctx, a.organizer, organizerShare)

	utils.Logger.Info("拍卖成交",
		zap.String("auction_id", a.id),
		zap.Stringer("asset_id", a.assetID),
		zap.String("winner", p.From.Hex()),
		zap.Stringer("price", price))

	// 8. 通知拍卖结束
	a.publish(ctx, endedEvent(a, p.From, price, now))
	return settlement, nil
}

// End 受益人在无人出价且已到期时手动结束拍卖
func (a *Auction) End(ctx context.Context, caller common.Address) error {
	a.opMu.Lock()
	defer a.opMu.Unlock()
	now := a.deps.now()

	var err error
	switch {
	case caller != a.beneficiary:
		err = ErrOnlyBeneficiary
	case now.Before(a.endTime):
		err = ErrAuctionNotYetEnded
	case a.Status() == StatusEnded:
		err = ErrAuctionAlreadyEnded
	}
	if err != nil {
		a.logRejected("结束拍卖", caller, err)
		return err
	}

	a.mu.Lock()
	a.status = StatusEnded
	a.mu.Unlock()

	utils.Logger.Info("拍卖流拍结束", zap.String("auction_id", a.id), zap.Stringer("asset_id", a.assetID))
	a.publish(ctx, endedEvent(a, NoBidder, new(big.Int), now))
	return nil
}

// Withdraw 领取待领取余额，余额在转账前清零
// 转账明确失败时恢复余额；交易已广播未确认时不恢复，返回ErrTransferUnconfirmed
func (a *Auction) Withdraw(ctx context.Context, caller common.Address) (*big.Int, error) {
	a.opMu.Lock()
	defer a.opMu.Unlock()
	ctx, cancel := a.deps.settleContext(ctx)
	defer cancel()
	now := a.deps.now()

	a.mu.Lock()
	amount, ok := a.pendingReturns[caller]
	if !ok || amount.Sign() <= 0 {
		a.mu.Unlock()
		return nil, ErrNothingToWithdraw
	}
	delete(a.pendingReturns, caller)
	a.mu.Unlock()

	if err := a.deps.Treasury.Send(ctx, caller, amount); err != nil {
		if errors.Is(err, ErrTransferUnconfirmed) {
			utils.Logger.Error("领取转账未确认", zap.String("auction_id", a.id), zap.String("account", caller.Hex()), zap.Stringer("amount", amount), zap.Error(err))
			a.publish(ctx, withdrawnEvent(a, caller, amount, now))
			return nil, err
		}
		a.mu.Lock()
		a.creditPending(caller, amount)
		a.mu.Unlock()
		utils.Logger.Warn("领取待领取余额失败", zap.String("auction_id", a.id), zap.String("account", caller.Hex()), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrWithdrawFailed, err)
	}

	utils.Logger.Info("领取待领取余额", zap.String("auction_id", a.id), zap.String("account", caller.Hex()), zap.Stringer("amount", amount))
	a.publish(ctx, withdrawnEvent(a, caller, amount, now))
	return new(big.Int).Set(amount), nil
}

// rejectBid 记录被拒绝的出价；链上出价若已入金，认领入金后退回出价人
func (a *Auction) rejectBid(ctx context.Context, p Payment, reason error) {
	a.logRejected("出价", p.From, reason)
	if p.TxHash == (common.Hash{}) {
		return
	}
	if err := a.deps.Treasury.Collect(ctx, p); err != nil {
		utils.Logger.Warn("被拒绝出价的入金无法认领",
			zap.String("auction_id", a.id),
			zap.String("bidder", p.From.Hex()),
			zap.String("tx_hash", p.TxHash.Hex()),
			zap.Error(err))
		return
	}
	t := a.pushOrEscrow(ctx, p.From, p.Amount)
	utils.Logger.Info("退回被拒绝出价的入金",
		zap.String("auction_id", a.id),
		zap.String("bidder", p.From.Hex()),
		zap.String("tx_hash", p.TxHash.Hex()),
		zap.Bool("delivered", t.Delivered))
}

// pushOrEscrow 直接转账，失败则记入待领取余额；调用方需持有opMu
func (a *Auction) pushOrEscrow(ctx context.Context, to common.Address, amount *big.Int) Transfer {
	t := Transfer{To: to, Amount: new(big.Int).Set(amount), Delivered: true}
	if amount.Sign() == 0 {
		return t
	}
	err := a.deps.Treasury.Send(ctx, to, amount)
	switch {
	case err == nil:
	case errors.Is(err, ErrTransferUnconfirmed):
		t.Delivered, t.Unconfirmed = false, true
		utils.Logger.Error("转账未确认",
			zap.String("auction_id", a.id),
			zap.String("to", to.Hex()),
			zap.Stringer("amount", amount),
			zap.Error(err))
	default:
		t.Delivered = false
		a.mu.Lock()
		a.creditPending(to, amount)
		a.mu.Unlock()
		utils.Logger.Warn("转账失败，记入待领取余额",
			zap.String("auction_id", a.id),
			zap.String("to", to.Hex()),
			zap.Stringer("amount", amount),
			zap.Error(err))
	}
	return t
}

// creditPending 调用方需持有mu
func (a *Auction) creditPending(to common.Address, amount *big.Int) {
	if cur, ok := a.pendingReturns[to]; ok {
		a.pendingReturns[to] = new(big.Int).Add(cur, amount)
		return
	}
	a.pendingReturns[to] = new(big.Int).Set(amount)
}

func (a *Auction) publish(ctx context.Context, ev Event) {
	if a.deps.Events == nil {
		return
	}
	if err := a.deps.Events.Publish(ctx, ev); err != nil {
		utils.Logger.Error("发布拍卖事件失败", zap.String("auction_id", a.id), zap.String("type", string(ev.Type)), zap.Error(err))
	}
}

func (a *Auction) logRejected(op string, caller common.Address, err error) {
	var tooLow *BidNotHighEnoughError
	fields := []zap.Field{zap.String("auction_id", a.id), zap.String("caller", caller.Hex()), zap.Error(err)}
	if errors.As(err, &tooLow) {
		fields = append(fields, zap.Stringer("current_price", tooLow.Price))
	}
	utils.Logger.Warn(op+"被拒绝", fields...)
}
