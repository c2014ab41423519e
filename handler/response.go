package handler

import (
	"errors"
	"net/http"

	"nft_auction/auction"
	"nft_auction/service"
	"nft_auction/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{
		"code": 200,
		"msg":  "success",
		"data": data,
	})
}

func fail(c *gin.Context, status int, msg string, data interface{}) {
	body := gin.H{
		"code": status,
		"msg":  msg,
	}
	if data != nil {
		body["data"] = data
	}
	c.JSON(status, body)
}

// abortWithError 按错误类型返回状态码
func abortWithError(c *gin.Context, err error) {
	status := statusOf(err)

	var tooLow *auction.BidNotHighEnoughError
	if errors.As(err, &tooLow) {
		fail(c, status, err.Error(), gin.H{
			"current_price":     tooLow.Price.String(),
			"current_price_eth": utils.FormatEther(tooLow.Price),
		})
		return
	}

	if status >= http.StatusInternalServerError {
		utils.Logger.Error("请求处理失败", zap.String("path", c.FullPath()), zap.Error(err))
	}
	fail(c, status, err.Error(), nil)
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidParam),
		errors.Is(err, auction.ErrInvalidDuration),
		errors.Is(err, auction.ErrInvalidPriceRange),
		errors.Is(err, auction.ErrInvalidAmount),
		errors.Is(err, auction.ErrInvalidAssetID),
		errors.Is(err, auction.ErrBidNotHighEnough),
		errors.Is(err, auction.ErrNothingToWithdraw):
		return http.StatusBadRequest
	case errors.Is(err, errUnauthenticated),
		errors.Is(err, utils.ErrInvalidSignature):
		return http.StatusUnauthorized
	case errors.Is(err, auction.ErrNotAssetOwner),
		errors.Is(err, auction.ErrNotApproved),
		errors.Is(err, auction.ErrOnlyBeneficiary):
		return http.StatusForbidden
	case errors.Is(err, auction.ErrAuctionNotFound),
		errors.Is(err, auction.ErrIndexOutOfRange):
		return http.StatusNotFound
	case errors.Is(err, auction.ErrAuctionAlreadyEnded),
		errors.Is(err, auction.ErrAuctionNotYetEnded),
		errors.Is(err, auction.ErrAuctionLive):
		return http.StatusConflict
	case errors.Is(err, auction.ErrTransferUnconfirmed):
		return http.StatusAccepted
	case errors.Is(err, auction.ErrPaymentFailed):
		return http.StatusPaymentRequired
	case errors.Is(err, auction.ErrAssetTransferFailed),
		errors.Is(err, auction.ErrWithdrawFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
