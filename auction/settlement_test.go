package auction_test

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"testing"
	"time"

	"nft_auction/auction"
	"nft_auction/contract"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// hookAssets 替换LocalAssets的资产转移行为
type hookAssets struct {
	*contract.LocalAssets
	transfer func(ctx context.Context, assetID *big.Int, from, to common.Address) error
}

func (h *hookAssets) TransferOwnership(ctx context.Context, assetID *big.Int, from, to common.Address) error {
	return h.transfer(ctx, assetID, from, to)
}

// pendingBank 对指定收款方的转账模拟为已广播未确认
type pendingBank struct {
	*contract.LocalBank

	mu      sync.Mutex
	pending map[common.Address]bool
}

func newPendingBank(bank *contract.LocalBank) *pendingBank {
	return &pendingBank{LocalBank: bank, pending: make(map[common.Address]bool)}
}

func (b *pendingBank) SetPending(addr common.Address, pending bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending[addr] = pending
}

func (b *pendingBank) Send(ctx context.Context, to common.Address, amount *big.Int) error {
	b.mu.Lock()
	pending := b.pending[to]
	b.mu.Unlock()
	if pending {
		return fmt.Errorf("%w: tx 0xabc: %v", auction.ErrTransferUnconfirmed, context.DeadlineExceeded)
	}
	return b.LocalBank.Send(ctx, to, amount)
}

// rebuild 用修改后的依赖重建工厂
func (f *fixture) rebuild(mutate func(d *auction.Deps)) {
	d := auction.Deps{
		Assets:   f.assets,
		Treasury: f.bank,
		Events:   f.events,
		Clock:    f.clock.Now,
	}
	mutate(&d)
	f.factory = auction.NewFactory(organizer, operator, d)
}

func TestBid_CallerCancelledAfterTransfer(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.rebuild(func(d *auction.Deps) {
		d.Assets = &hookAssets{LocalAssets: f.assets, transfer: func(tctx context.Context, id *big.Int, from, to common.Address) error {
			if err := f.assets.TransferOwnership(tctx, id, from, to); err != nil {
				return err
			}
			// 调用方在转移完成后断开
			cancel()
			return tctx.Err()
		}}
	})
	a := f.create(t)

	price := a.CurrentPrice()
	s, err := a.Bid(ctx, auction.Payment{From: bidder, Amount: price})
	require.NoError(t, err)
	assert.False(t, s.AssetUnconfirmed)
	require.Error(t, ctx.Err())

	assert.True(t, a.IsEnded())
	assert.Equal(t, bidder, a.HighestBidder())
	owner, _ := f.assets.OwnerOf(f.ctx, assetID)
	assert.Equal(t, bidder, owner)

	wantBeneficiary, wantOrganizer := auction.SplitProceeds(price)
	assert.Equal(t, 0, f.bank.BalanceOf(seller).Cmp(wantBeneficiary))
	assert.Equal(t, 0, f.bank.BalanceOf(organizer).Cmp(wantOrganizer))
}

func TestBid_AssetTransferUnconfirmedKeepsSale(t *testing.T) {
	f := newFixture(t)
	f.rebuild(func(d *auction.Deps) {
		d.SettleTimeout = 20 * time.Millisecond
		d.Assets = &hookAssets{LocalAssets: f.assets, transfer: func(tctx context.Context, _ *big.Int, _, _ common.Address) error {
			<-tctx.Done()
			return fmt.Errorf("%w: tx 0xdef: %v", auction.ErrTransferUnconfirmed, tctx.Err())
		}}
	})
	a := f.create(t)

	price := a.CurrentPrice()
	begin := time.Now()
	s, err := a.Bid(f.ctx, auction.Payment{From: bidder, Amount: price})
	require.NoError(t, err)
	assert.Less(t, time.Since(begin), 5*time.Second)
	assert.True(t, s.AssetUnconfirmed)

	// 成交状态保留，不退款
	assert.True(t, a.IsEnded())
	assert.Equal(t, bidder, a.HighestBidder())
	assert.Equal(t, 0, a.HighestBid().Cmp(price))
	assert.Equal(t, 0, a.PendingReturns(bidder).Sign())
	spent := new(big.Int).Sub(eth("5"), f.bank.BalanceOf(bidder))
	assert.Equal(t, 0, spent.Cmp(price))
	assert.Equal(t, auction.EventAuctionEnded, f.events.last().Type)

	_, err = a.Bid(f.ctx, auction.Payment{From: other, Amount: eth("1")})
	require.ErrorIs(t, err, auction.ErrAuctionAlreadyEnded)
}

func TestBid_PayoutUnconfirmedNotEscrowed(t *testing.T) {
	f := newFixture(t)
	bank := newPendingBank(f.bank)
	bank.SetPending(seller, true)
	f.rebuild(func(d *auction.Deps) { d.Treasury = bank })
	a := f.create(t)

	s, err := a.Bid(f.ctx, auction.Payment{From: bidder, Amount: a.CurrentPrice()})
	require.NoError(t, err)
	assert.True(t, s.Beneficiary.Unconfirmed)
	assert.False(t, s.Beneficiary.Delivered)
	assert.True(t, s.Organizer.Delivered)
	assert.Equal(t, 0, a.PendingReturns(seller).Sign())
}

func TestWithdraw_UnconfirmedKeepsDebit(t *testing.T) {
	f := newFixture(t)
	bank := newPendingBank(f.bank)
	f.rebuild(func(d *auction.Deps) { d.Treasury = bank })
	a := f.create(t)

	f.bank.RejectPayments(organizer, true)
	price := a.CurrentPrice()
	_, err := a.Bid(f.ctx, auction.Payment{From: bidder, Amount: price})
	require.NoError(t, err)
	_, wantOrganizer := auction.SplitProceeds(price)
	require.Equal(t, 0, a.PendingReturns(organizer).Cmp(wantOrganizer))

	f.bank.RejectPayments(organizer, false)
	bank.SetPending(organizer, true)
	_, err = a.Withdraw(f.ctx, organizer)
	require.ErrorIs(t, err, auction.ErrTransferUnconfirmed)

	// 交易可能已上链，余额不恢复
	assert.Equal(t, 0, a.PendingReturns(organizer).Sign())
	_, err = a.Withdraw(f.ctx, organizer)
	require.ErrorIs(t, err, auction.ErrNothingToWithdraw)

	ev := f.events.last()
	assert.Equal(t, auction.EventWithdrawn, ev.Type)
	assert.Equal(t, wantOrganizer.String(), ev.Amount)
}

func TestBid_SlowTransferDoesNotBlockReaders(t *testing.T) {
	f := newFixture(t)
	entered := make(chan struct{})
	release := make(chan struct{})
	f.rebuild(func(d *auction.Deps) {
		d.Assets = &hookAssets{LocalAssets: f.assets, transfer: func(tctx context.Context, id *big.Int, from, to common.Address) error {
			close(entered)
			<-release
			return f.assets.TransferOwnership(tctx, id, from, to)
		}}
	})
	a := f.create(t)
	otherAsset := big.NewInt(2)
	require.NoError(t, f.assets.Mint(otherAsset, other))
	require.NoError(t, f.assets.Approve(other, otherAsset, operator))

	bidDone := make(chan error, 1)
	go func() {
		_, err := a.Bid(f.ctx, auction.Payment{From: bidder, Amount: a.CurrentPrice()})
		bidDone <- err
	}()
	<-entered

	readsDone := make(chan struct{})
	go func() {
		defer close(readsDone)
		assert.Equal(t, auction.StatusActive, a.Status())
		assert.Equal(t, a.ID(), a.Snapshot().ID)
		assert.Equal(t, 0, a.PendingReturns(bidder).Sign())
		assert.Equal(t, 0, a.HighestBid().Sign())
		assert.Len(t, f.factory.AllAuctions(), 1)
		_, err := f.factory.AuctionByIndex(0)
		assert.NoError(t, err)

		_, err = f.factory.CreateAuction(f.ctx, auction.CreateParams{Caller: other, AssetID: otherAsset, Duration: time.Hour})
		assert.NoError(t, err)
		_, err = f.factory.CreateAuction(f.ctx, auction.CreateParams{Caller: seller, AssetID: assetID, Duration: time.Hour})
		assert.ErrorIs(t, err, auction.ErrAuctionLive)
	}()

	select {
	case <-readsDone:
	case <-time.After(2 * time.Second):
		close(release)
		t.Fatal("查询被进行中的结算阻塞")
	}

	close(release)
	require.NoError(t, <-bidDone)
	assert.True(t, a.IsEnded())
	assert.Len(t, f.factory.AllAuctions(), 2)
}

func TestBid_RejectedDepositReturned(t *testing.T) {
	f := newFixture(t)
	a := f.create(t)
	deposit := auction.Payment{From: other, Amount: eth("0.2"), TxHash: common.HexToHash("0x01")}

	// 低于当前价格：入金被认领后退回
	_, err := a.Bid(f.ctx, deposit)
	require.ErrorIs(t, err, auction.ErrBidNotHighEnough)
	assert.Equal(t, 0, f.bank.BalanceOf(other).Cmp(eth("5")))
	assert.Equal(t, 0, f.bank.Custody().Sign())

	// 退款失败时记入待领取余额
	f.bank.RejectPayments(other, true)
	_, err = a.Bid(f.ctx, deposit)
	require.ErrorIs(t, err, auction.ErrBidNotHighEnough)
	assert.Equal(t, 0, a.PendingReturns(other).Cmp(eth("0.2")))
	assert.False(t, a.IsEnded())

	// 不带入金交易的出价不动用资金
	f.bank.RejectPayments(other, false)
	_, err = a.Bid(f.ctx, auction.Payment{From: other, Amount: eth("0.2")})
	require.ErrorIs(t, err, auction.ErrBidNotHighEnough)
	assert.Equal(t, 0, f.bank.BalanceOf(other).Cmp(eth("4.8")))
}
