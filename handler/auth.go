package handler

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"nft_auction/utils"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// 钱包身份请求头
const (
	HeaderWalletAddress   = "X-Wallet-Address"
	HeaderWalletSignature = "X-Wallet-Signature"
	HeaderWalletTimestamp = "X-Wallet-Timestamp"
)

// signatureWindow 签名时间戳允许的偏差
const signatureWindow = 5 * time.Minute

var errUnauthenticated = errors.New("missing or invalid wallet identity")

// Authenticator 解析并校验调用者钱包地址
type Authenticator struct {
	RequireSignature bool
	Now              func() time.Time
}

// Caller 从请求头得到调用者地址
// 签名消息为 nft_auction:{action}:{parts...}:{timestamp}，timestamp为unix秒
func (a Authenticator) Caller(c *gin.Context, action string, parts ...string) (string, error) {
	addr := c.GetHeader(HeaderWalletAddress)
	if !common.IsHexAddress(addr) {
		return "", fmt.Errorf("%w: %s header required", errUnauthenticated, HeaderWalletAddress)
	}
	if !a.RequireSignature {
		return addr, nil
	}

	tsHeader := c.GetHeader(HeaderWalletTimestamp)
	ts, err := strconv.ParseInt(tsHeader, 10, 64)
	if err != nil {
		return "", fmt.Errorf("%w: %s header required", errUnauthenticated, HeaderWalletTimestamp)
	}
	now := time.Now
	if a.Now != nil {
		now = a.Now
	}
	skew := now().Sub(time.Unix(ts, 0))
	if skew > signatureWindow || skew < -signatureWindow {
		return "", fmt.Errorf("%w: signature expired", errUnauthenticated)
	}

	message := utils.SignedMessage(action, append(parts, tsHeader)...)
	if !utils.VerifySignature(common.HexToAddress(addr), message, c.GetHeader(HeaderWalletSignature)) {
		utils.Logger.Warn("钱包签名校验失败", zap.String("address", addr), zap.String("action", action))
		return "", utils.ErrInvalidSignature
	}
	return addr, nil
}
