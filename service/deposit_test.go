package service_test

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"

	"nft_auction/auction"
	"nft_auction/contract"
	"nft_auction/service"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var latecomer = common.HexToAddress("0x3000000000000000000000000000000000000003")

var (
	errNoDeposit       = errors.New("deposit required")
	errDepositUsed     = errors.New("deposit already used")
	errDepositMismatch = errors.New("deposit mismatch")
	errRejected        = errors.New("receiver rejected")
)

type deposit struct {
	from   common.Address
	amount *big.Int
}

// depositTreasury 按交易哈希核验入金，每笔入金只能认领一次
type depositTreasury struct {
	mu        sync.Mutex
	deposits  map[common.Hash]deposit
	claimed   map[common.Hash]bool
	rejecting map[common.Address]bool
	sent      map[common.Address]*big.Int
}

func newDepositTreasury() *depositTreasury {
	return &depositTreasury{
		deposits:  make(map[common.Hash]deposit),
		claimed:   make(map[common.Hash]bool),
		rejecting: make(map[common.Address]bool),
		sent:      make(map[common.Address]*big.Int),
	}
}

func (d *depositTreasury) Deposit(hash common.Hash, from common.Address, amount *big.Int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.deposits[hash] = deposit{from: from, amount: amount}
}

func (d *depositTreasury) Reject(addr common.Address, reject bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rejecting[addr] = reject
}

func (d *depositTreasury) SentTo(addr common.Address) *big.Int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if v, ok := d.sent[addr]; ok {
		return new(big.Int).Set(v)
	}
	return new(big.Int)
}

func (d *depositTreasury) Collect(_ context.Context, p auction.Payment) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p.TxHash == (common.Hash{}) {
		return errNoDeposit
	}
	if d.claimed[p.TxHash] {
		return errDepositUsed
	}
	dep, ok := d.deposits[p.TxHash]
	if !ok || dep.from != p.From || dep.amount.Cmp(p.Amount) != 0 {
		return errDepositMismatch
	}
	d.claimed[p.TxHash] = true
	return nil
}

func (d *depositTreasury) Send(_ context.Context, to common.Address, amount *big.Int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.rejecting[to] {
		return errRejected
	}
	cur, ok := d.sent[to]
	if !ok {
		cur = new(big.Int)
	}
	d.sent[to] = new(big.Int).Add(cur, amount)
	return nil
}

func newDepositEnv(t *testing.T, treasury auction.Treasury) *env {
	t.Helper()
	e := &env{
		ctx:    context.Background(),
		clock:  &fakeClock{now: t0},
		assets: contract.NewLocalAssets(operator),
		store:  service.NewMemoryStore(),
		locker: &countingLocker{},
	}
	factory := auction.NewFactory(organizer, operator, auction.Deps{
		Assets:   e.assets,
		Treasury: treasury,
		Events:   service.StorePublisher{Store: e.store},
		Clock:    e.clock.Now,
	})
	e.svc = service.NewAuctionService(factory, e.store, service.Options{
		Locker: e.locker,
		Clock:  e.clock.Now,
	})
	require.NoError(t, e.assets.Mint(big.NewInt(7), seller))
	require.NoError(t, e.assets.Approve(seller, big.NewInt(7), operator))
	return e
}

func TestService_RejectedBidReturnsDeposit(t *testing.T) {
	treasury := newDepositTreasury()
	e := newDepositEnv(t, treasury)
	view := e.create(t)

	low := common.HexToHash("0x01")
	win := common.HexToHash("0x02")
	late := common.HexToHash("0x03")
	treasury.Deposit(low, bidder, eth("0.5"))
	treasury.Deposit(win, bidder, eth("1"))
	treasury.Deposit(late, latecomer, eth("1"))

	// 低于当前价格：入金退回出价人
	_, err := e.svc.Bid(e.ctx, service.BidReq{Caller: bidder.Hex(), AuctionID: view.AuctionID, Amount: eth("0.5").String(), TxHash: low.Hex()})
	require.ErrorIs(t, err, auction.ErrBidNotHighEnough)
	assert.Equal(t, 0, treasury.SentTo(bidder).Cmp(eth("0.5")))

	// 同一笔入金不会被退回两次
	_, err = e.svc.Bid(e.ctx, service.BidReq{Caller: bidder.Hex(), AuctionID: view.AuctionID, Amount: eth("0.5").String(), TxHash: low.Hex()})
	require.ErrorIs(t, err, auction.ErrBidNotHighEnough)
	assert.Equal(t, 0, treasury.SentTo(bidder).Cmp(eth("0.5")))

	_, err = e.svc.Bid(e.ctx, service.BidReq{Caller: bidder.Hex(), AuctionID: view.AuctionID, Amount: eth("1").String(), TxHash: win.Hex()})
	require.NoError(t, err)

	// 已结束：退款失败时记入待领取余额并落库
	treasury.Reject(latecomer, true)
	_, err = e.svc.Bid(e.ctx, service.BidReq{Caller: latecomer.Hex(), AuctionID: view.AuctionID, Amount: eth("1").String(), TxHash: late.Hex()})
	require.ErrorIs(t, err, auction.ErrAuctionAlreadyEnded)

	pending, err := e.svc.GetPendingReturns(e.ctx, view.AuctionID, latecomer.Hex())
	require.NoError(t, err)
	assert.Equal(t, eth("1").String(), pending.Amount)

	snaps, err := e.store.LoadSnapshots(e.ctx)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	require.Contains(t, snaps[0].PendingReturns, latecomer)
	assert.Equal(t, 0, snaps[0].PendingReturns[latecomer].Cmp(eth("1")))
	assert.Equal(t, bidder, snaps[0].HighestBidder)

	treasury.Reject(latecomer, false)
	got, err := e.svc.Withdraw(e.ctx, service.WithdrawReq{Caller: latecomer.Hex(), AuctionID: view.AuctionID})
	require.NoError(t, err)
	assert.Equal(t, eth("1").String(), got.Amount)
	assert.Equal(t, 0, treasury.SentTo(latecomer).Cmp(eth("1")))
}

func TestService_RejectedBidWithUnknownDepositKeepsFunds(t *testing.T) {
	treasury := newDepositTreasury()
	e := newDepositEnv(t, treasury)
	view := e.create(t)

	// 入金核验失败时不退款
	_, err := e.svc.Bid(e.ctx, service.BidReq{Caller: bidder.Hex(), AuctionID: view.AuctionID, Amount: eth("0.5").String(), TxHash: common.HexToHash("0x09").Hex()})
	require.ErrorIs(t, err, auction.ErrBidNotHighEnough)
	assert.Equal(t, 0, treasury.SentTo(bidder).Sign())

	pending, err := e.svc.GetPendingReturns(e.ctx, view.AuctionID, bidder.Hex())
	require.NoError(t, err)
	assert.Equal(t, "0", pending.Amount)
}
