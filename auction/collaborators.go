package auction

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// AssetRegistry NFT资产登记簿（外部合约），拍卖只消费其中的转移与查询能力
type AssetRegistry interface {
	// OwnerOf 查询资产当前持有者
	OwnerOf(ctx context.Context, assetID *big.Int) (common.Address, error)
	// IsApprovedForTransfer operator是否被授权转移该资产
	IsApprovedForTransfer(ctx context.Context, assetID *big.Int, operator common.Address) (bool, error)
	// TransferOwnership 由已授权的operator把资产从from转给to
	// 交易已广播但未等到确认时返回包装ErrTransferUnconfirmed的错误
	TransferOwnership(ctx context.Context, assetID *big.Int, from, to common.Address) error
}

// Payment 随出价附带的资金
type Payment struct {
	From   common.Address
	Amount *big.Int
	// TxHash 链上模式下的入金交易，本地模式为空
	TxHash common.Hash
}

// Treasury 拍卖资金托管
type Treasury interface {
	// Collect 将出价资金收入托管，同一笔入金只能收取一次
	Collect(ctx context.Context, p Payment) error
	// Send 从托管向to支付amount，收款方拒收时返回错误
	// 交易已广播但未等到确认时返回包装ErrTransferUnconfirmed的错误
	Send(ctx context.Context, to common.Address, amount *big.Int) error
}

// EventPublisher 拍卖事件出口
type EventPublisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Clock 时间来源，每个操作只采样一次
type Clock func() time.Time

// Deps 拍卖引擎依赖的外部协作者
type Deps struct {
	Assets   AssetRegistry
	Treasury Treasury
	Events   EventPublisher // 可为nil
	Clock    Clock          // 为nil时使用time.Now
	// SettleTimeout 单次出价或领取中外部调用的总时限，默认DefaultSettleTimeout
	SettleTimeout time.Duration
}

// DefaultSettleTimeout 结算外部调用的默认总时限
const DefaultSettleTimeout = 5 * time.Minute

// settleContext 结算不随请求取消而中断，只受自身时限约束
func (d Deps) settleContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := d.SettleTimeout
	if timeout <= 0 {
		timeout = DefaultSettleTimeout
	}
	return context.WithTimeout(context.WithoutCancel(ctx), timeout)
}

func (d Deps) now() time.Time {
	if d.Clock == nil {
		return time.Now()
	}
	return d.Clock()
}
