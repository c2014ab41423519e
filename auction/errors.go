package auction

import (
	"errors"
	"fmt"
	"math/big"
)

// 参数校验类错误
var (
	ErrAuctionAlreadyEnded = errors.New("auction already ended")
	ErrAuctionNotYetEnded  = errors.New("auction not yet ended")
	ErrBidNotHighEnough    = errors.New("bid not high enough")
	ErrInvalidDuration     = errors.New("invalid auction duration")
	ErrInvalidPriceRange   = errors.New("reserve price must be between zero and start price")
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrInvalidAssetID      = errors.New("invalid asset id")
	ErrNothingToWithdraw   = errors.New("no pending returns to withdraw")
)

// 权限类错误
var (
	ErrNotAssetOwner   = errors.New("caller is not the owner of the asset")
	ErrNotApproved     = errors.New("operator is not approved to transfer the asset")
	ErrOnlyBeneficiary = errors.New("only the beneficiary can end the auction")
)

// 查询类错误
var (
	ErrAuctionNotFound = errors.New("auction not found")
	ErrIndexOutOfRange = errors.New("auction index out of range")
	ErrAuctionLive     = errors.New("asset already has a live auction")
)

// 转账类错误
var (
	ErrPaymentFailed       = errors.New("bid payment could not be collected")
	ErrAssetTransferFailed = errors.New("asset ownership transfer failed")
	ErrWithdrawFailed      = errors.New("withdrawal transfer failed")
	// ErrTransferUnconfirmed 交易已广播但等待确认失败，结果未知，需按链上回执对账
	ErrTransferUnconfirmed = errors.New("transfer broadcast but not confirmed")
)

// BidNotHighEnoughError 出价低于当前价格，携带出价时刻的价格
type BidNotHighEnoughError struct {
	Price *big.Int
}

func (e *BidNotHighEnoughError) Error() string {
	return fmt.Sprintf("bid not high enough: current price is %s wei", e.Price.String())
}

// Is 使 errors.Is(err, ErrBidNotHighEnough) 成立
func (e *BidNotHighEnoughError) Is(target error) bool {
	return target == ErrBidNotHighEnough
}
