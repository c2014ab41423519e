package handler

import (
	"github.com/gin-gonic/gin"
)

// NewRouter 注册路由，dev为nil时不暴露本地模式接口
func NewRouter(auctions *AuctionHandler, dev *DevHandler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	v1 := r.Group("/api/v1/auctions")
	{
		v1.POST("", auctions.CreateAuction)                      // 创建拍卖
		v1.GET("", auctions.ListAuctions)                        // 拍卖列表
		v1.GET("/index/:index", auctions.GetAuctionByIndex)      // 按创建顺序查询
		v1.GET("/asset/:assetId", auctions.GetAuctionByAsset)    // 按资产查询
		v1.GET("/:id", auctions.GetAuction)                      // 拍卖详情
		v1.GET("/:id/price", auctions.GetCurrentPrice)           // 当前价格
		v1.GET("/:id/events", auctions.GetEvents)                // 拍卖事件
		v1.GET("/:id/pending/:addr", auctions.GetPendingReturns) // 待领取余额
		v1.POST("/:id/bid", auctions.Bid)                        // 出价
		v1.POST("/:id/end", auctions.EndAuction)                 // 手动结束
		v1.POST("/:id/withdraw", auctions.Withdraw)              // 领取
	}

	if dev != nil {
		d := r.Group("/api/v1/dev")
		{
			d.POST("/mint", dev.Mint)
			d.POST("/approve", dev.Approve)
			d.POST("/deposit", dev.Deposit)
			d.GET("/balance/:addr", dev.Balance)
		}
	}
	return r
}
