package handler

import (
	"net/http"
	"strconv"

	"nft_auction/service"
	"nft_auction/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AuctionHandler 拍卖处理器
type AuctionHandler struct {
	auctionService service.AuctionService
	auth           Authenticator
}

// NewAuctionHandler 创建拍卖处理器
func NewAuctionHandler(auctionService service.AuctionService, auth Authenticator) *AuctionHandler {
	return &AuctionHandler{
		auctionService: auctionService,
		auth:           auth,
	}
}

// CreateAuction 创建拍卖（调用者为受益人）
func (h *AuctionHandler) CreateAuction(c *gin.Context) {
	var req service.CreateAuctionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Logger.Error("参数绑定失败", zap.Error(err))
		fail(c, http.StatusBadRequest, err.Error(), nil)
		return
	}

	caller, err := h.auth.Caller(c, "create", req.AssetID, strconv.FormatInt(req.DurationSeconds, 10))
	if err != nil {
		abortWithError(c, err)
		return
	}
	req.Caller = caller

	view, err := h.auctionService.CreateAuction(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, err)
		return
	}
	success(c, view)
}

// ListAuctions 按创建顺序列出全部拍卖
func (h *AuctionHandler) ListAuctions(c *gin.Context) {
	list := h.auctionService.ListAuctions(c.Request.Context())
	success(c, gin.H{
		"list":  list,
		"total": len(list),
	})
}

// GetAuction 查询拍卖详情
func (h *AuctionHandler) GetAuction(c *gin.Context) {
	view, err := h.auctionService.GetAuction(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	success(c, view)
}

// GetAuctionByIndex 按创建顺序查询
func (h *AuctionHandler) GetAuctionByIndex(c *gin.Context) {
	index, err := service.ParseIndex(c.Param("index"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	view, err := h.auctionService.GetAuctionByIndex(c.Request.Context(), index)
	if err != nil {
		abortWithError(c, err)
		return
	}
	success(c, view)
}

// GetAuctionByAsset 按资产ID查询最近一次拍卖
func (h *AuctionHandler) GetAuctionByAsset(c *gin.Context) {
	view, err := h.auctionService.GetAuctionByAsset(c.Request.Context(), c.Param("assetId"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	success(c, view)
}

// GetCurrentPrice 查询当前价格
func (h *AuctionHandler) GetCurrentPrice(c *gin.Context) {
	price, err := h.auctionService.GetCurrentPrice(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	success(c, price)
}

// Bid 出价
func (h *AuctionHandler) Bid(c *gin.Context) {
	var req service.BidReq
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Logger.Error("参数绑定失败", zap.Error(err))
		fail(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	req.AuctionID = c.Param("id")

	caller, err := h.auth.Caller(c, "bid", req.AuctionID, req.Amount)
	if err != nil {
		abortWithError(c, err)
		return
	}
	req.Caller = caller

	settlement, err := h.auctionService.Bid(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, err)
		return
	}
	success(c, settlement)
}

// EndAuction 受益人结束无人出价的到期拍卖
func (h *AuctionHandler) EndAuction(c *gin.Context) {
	req := service.EndAuctionReq{AuctionID: c.Param("id")}
	caller, err := h.auth.Caller(c, "end", req.AuctionID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	req.Caller = caller

	if err := h.auctionService.EndAuction(c.Request.Context(), req); err != nil {
		abortWithError(c, err)
		return
	}
	success(c, gin.H{"auction_id": req.AuctionID})
}

// Withdraw 领取待领取余额
func (h *AuctionHandler) Withdraw(c *gin.Context) {
	req := service.WithdrawReq{AuctionID: c.Param("id")}
	caller, err := h.auth.Caller(c, "withdraw", req.AuctionID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	req.Caller = caller

	balance, err := h.auctionService.Withdraw(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, err)
		return
	}
	success(c, balance)
}

// GetPendingReturns 查询待领取余额
func (h *AuctionHandler) GetPendingReturns(c *gin.Context) {
	balance, err := h.auctionService.GetPendingReturns(c.Request.Context(), c.Param("id"), c.Param("addr"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	success(c, balance)
}

// GetEvents 分页查询拍卖事件
func (h *AuctionHandler) GetEvents(c *gin.Context) {
	page, _ := strconv.Atoi(c.Query("page"))
	if page <= 0 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(c.Query("page_size"))
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 10
	}

	records, total, err := h.auctionService.GetEvents(c.Request.Context(), service.GetEventsReq{
		AuctionID: c.Param("id"),
		Page:      page,
		PageSize:  pageSize,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	success(c, gin.H{
		"list":      records,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}
