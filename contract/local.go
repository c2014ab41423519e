package contract

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"nft_auction/auction"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrAssetExists         = errors.New("asset already minted")
	ErrAssetNotFound       = errors.New("asset does not exist")
	ErrNotOwner            = errors.New("from is not the current owner")
	ErrNotAuthorized       = errors.New("operator is not approved for the asset")
	ErrReceiverRejected    = errors.New("receiver does not accept assets")
	ErrInsufficientFunds   = errors.New("insufficient balance")
	ErrPaymentRejected     = errors.New("receiver rejected payment")
	ErrInsufficientCustody = errors.New("insufficient custody balance")
)

// LocalAssets 进程内ERC721登记簿，本地模式和测试使用
type LocalAssets struct {
	mu sync.Mutex

	operator          common.Address
	owners            map[string]common.Address
	approvals         map[string]common.Address
	operatorApprovals map[common.Address]map[common.Address]bool
	rejecting         map[common.Address]bool
}

// NewLocalAssets operator为执行TransferOwnership的地址
func NewLocalAssets(operator common.Address) *LocalAssets {
	return &LocalAssets{
		operator:          operator,
		owners:            make(map[string]common.Address),
		approvals:         make(map[string]common.Address),
		operatorApprovals: make(map[common.Address]map[common.Address]bool),
		rejecting:         make(map[common.Address]bool),
	}
}

// Mint 铸造资产
func (l *LocalAssets) Mint(assetID *big.Int, owner common.Address) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := assetID.String()
	if _, ok := l.owners[key]; ok {
		return ErrAssetExists
	}
	l.owners[key] = owner
	return nil
}

// Approve 持有者授权operator转移单个资产
func (l *LocalAssets) Approve(caller common.Address, assetID *big.Int, operator common.Address) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := assetID.String()
	owner, ok := l.owners[key]
	if !ok {
		return ErrAssetNotFound
	}
	if owner != caller {
		return ErrNotOwner
	}
	l.approvals[key] = operator
	return nil
}

// SetApprovalForAll 持有者授权operator转移其全部资产
func (l *LocalAssets) SetApprovalForAll(owner, operator common.Address, approved bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.operatorApprovals[owner] == nil {
		l.operatorApprovals[owner] = make(map[common.Address]bool)
	}
	l.operatorApprovals[owner][operator] = approved
}

// RejectTransfersTo 模拟未实现onERC721Received的接收方
func (l *LocalAssets) RejectTransfersTo(addr common.Address, reject bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rejecting[addr] = reject
}

func (l *LocalAssets) OwnerOf(_ context.Context, assetID *big.Int) (common.Address, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	owner, ok := l.owners[assetID.String()]
	if !ok {
		return common.Address{}, ErrAssetNotFound
	}
	return owner, nil
}

func (l *LocalAssets) IsApprovedForTransfer(_ context.Context, assetID *big.Int, operator common.Address) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.approvedLocked(assetID.String(), operator)
}

func (l *LocalAssets) approvedLocked(key string, operator common.Address) (bool, error) {
	owner, ok := l.owners[key]
	if !ok {
		return false, ErrAssetNotFound
	}
	if l.approvals[key] == operator {
		return true, nil
	}
	return l.operatorApprovals[owner][operator], nil
}

// TransferOwnership 由operator执行转移，转移后清除单个授权
func (l *LocalAssets) TransferOwnership(_ context.Context, assetID *big.Int, from, to common.Address) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := assetID.String()
	owner, ok := l.owners[key]
	if !ok {
		return ErrAssetNotFound
	}
	if owner != from {
		return ErrNotOwner
	}
	approved, err := l.approvedLocked(key, l.operator)
	if err != nil {
		return err
	}
	if !approved {
		return ErrNotAuthorized
	}
	if l.rejecting[to] {
		return ErrReceiverRejected
	}
	l.owners[key] = to
	delete(l.approvals, key)
	return nil
}

// LocalBank 进程内账户余额与拍卖托管
type LocalBank struct {
	mu sync.Mutex

	balances  map[common.Address]*big.Int
	custody   *big.Int
	rejecting map[common.Address]bool
}

func NewLocalBank() *LocalBank {
	return &LocalBank{
		balances:  make(map[common.Address]*big.Int),
		custody:   new(big.Int),
		rejecting: make(map[common.Address]bool),
	}
}

// Deposit 给账户充值（本地水龙头）
func (b *LocalBank) Deposit(addr common.Address, amount *big.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.creditLocked(addr, amount)
}

// BalanceOf 账户余额
func (b *LocalBank) BalanceOf(addr common.Address) *big.Int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if v, ok := b.balances[addr]; ok {
		return new(big.Int).Set(v)
	}
	return new(big.Int)
}

// Custody 托管中的资金
func (b *LocalBank) Custody() *big.Int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return new(big.Int).Set(b.custody)
}

// RejectPayments 模拟无法接收转账的地址
func (b *LocalBank) RejectPayments(addr common.Address, reject bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rejecting[addr] = reject
}

func (b *LocalBank) Collect(_ context.Context, p auction.Payment) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	bal, ok := b.balances[p.From]
	if !ok || bal.Cmp(p.Amount) < 0 {
		return ErrInsufficientFunds
	}
	b.balances[p.From] = new(big.Int).Sub(bal, p.Amount)
	b.custody.Add(b.custody, p.Amount)
	return nil
}

func (b *LocalBank) Send(_ context.Context, to common.Address, amount *big.Int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.rejecting[to] {
		return ErrPaymentRejected
	}
	if b.custody.Cmp(amount) < 0 {
		return ErrInsufficientCustody
	}
	b.custody.Sub(b.custody, amount)
	b.creditLocked(to, amount)
	return nil
}

func (b *LocalBank) creditLocked(addr common.Address, amount *big.Int) {
	if cur, ok := b.balances[addr]; ok {
		b.balances[addr] = new(big.Int).Add(cur, amount)
		return
	}
	b.balances[addr] = new(big.Int).Set(amount)
}
