package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nft_auction/auction"
	"nft_auction/config"
	"nft_auction/contract"
	"nft_auction/dao"
	"nft_auction/handler"
	"nft_auction/service"
	"nft_auction/utils"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// localOperator 本地模式下执行资产转移的虚拟地址
var localOperator = common.HexToAddress("0x00000000000000000000000000000000000a0c71")

func main() {
	// 1. 初始化配置
	if err := config.InitConfig(); err != nil {
		zap.L().Fatal("初始化配置失败", zap.Error(err))
	}
	cfg := config.GlobalConfig

	// 2. 初始化日志
	if err := utils.InitLogger(cfg.LogDev); err != nil {
		zap.L().Fatal("初始化日志失败", zap.Error(err))
	}
	defer utils.Logger.Sync()
	cfg.Log()

	ctx := context.Background()
	curve := auction.PriceCurve{StartPrice: cfg.StartPriceWei, ReservePrice: cfg.ReservePriceWei}

	var (
		auctionService service.AuctionService
		devHandler     *handler.DevHandler
	)
	switch cfg.Mode {
	case config.ModeChain:
		auctionService = setupChain(ctx, cfg, curve)
	default:
		auctionService, devHandler = setupLocal(cfg, curve)
	}

	// 3. 初始化路由
	if !cfg.LogDev {
		gin.SetMode(gin.ReleaseMode)
	}
	auth := handler.Authenticator{RequireSignature: cfg.RequireSignature}
	r := handler.NewRouter(handler.NewAuctionHandler(auctionService, auth), devHandler)

	srv := &http.Server{
		Addr:              cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// 4. 启动服务（优雅关闭）
	go func() {
		utils.Logger.Info("服务启动", zap.String("addr", cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			utils.Logger.Fatal("启动服务失败", zap.Error(err))
		}
	}()

	// 监听系统信号，优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	utils.Logger.Info("服务正在关闭...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		utils.Logger.Error("服务关闭失败", zap.Error(err))
	}
	if cfg.Mode == config.ModeChain {
		utils.CloseRabbitMQ()
		utils.CloseRedis()
	}
}

// setupLocal 本地模式：进程内资产登记簿、账户与存储
func setupLocal(cfg *config.Config, curve auction.PriceCurve) (service.AuctionService, *handler.DevHandler) {
	assets := contract.NewLocalAssets(localOperator)
	bank := contract.NewLocalBank()
	store := service.NewMemoryStore()

	factory := auction.NewFactory(cfg.Organizer(), localOperator, auction.Deps{
		Assets:   assets,
		Treasury: bank,
		Events:   service.StorePublisher{Store: store},
	}, auction.WithPriceCurve(curve))

	svc := service.NewAuctionService(factory, store, service.Options{MaxDuration: cfg.MaxDuration})
	utils.Logger.Info("本地模式已启动", zap.String("operator", localOperator.Hex()))
	return svc, handler.NewDevHandler(assets, bank, localOperator)
}

// setupChain 链上模式：ERC721合约、operator钱包托管、MySQL、Redis、RabbitMQ
func setupChain(ctx context.Context, cfg *config.Config, curve auction.PriceCurve) service.AuctionService {
	// 初始化MySQL
	db, err := gorm.Open(mysql.Open(cfg.MySQLDSN), &gorm.Config{})
	if err != nil {
		utils.Logger.Fatal("连接MySQL失败", zap.Error(err))
	}
	if err := dao.AutoMigrate(db); err != nil {
		utils.Logger.Fatal("迁移表结构失败", zap.Error(err))
	}

	// 初始化Redis
	if err := utils.InitRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB); err != nil {
		utils.Logger.Fatal("初始化Redis失败", zap.Error(err))
	}

	// 初始化RabbitMQ
	if err := utils.InitRabbitMQ(cfg.RabbitMQURL); err != nil {
		utils.Logger.Fatal("初始化RabbitMQ失败", zap.Error(err))
	}

	// 初始化链上依赖
	client, err := ethclient.DialContext(ctx, cfg.ChainRPCURL)
	if err != nil {
		utils.Logger.Fatal("连接以太坊节点失败", zap.Error(err))
	}
	registry, err := contract.NewERC721Registry(ctx, client, cfg.NFTContractAddr, cfg.OperatorPrivateKey)
	if err != nil {
		utils.Logger.Fatal("初始化ERC721合约失败", zap.Error(err))
	}
	treasury, err := contract.NewEthTreasury(ctx, client, cfg.OperatorPrivateKey)
	if err != nil {
		utils.Logger.Fatal("初始化资金托管失败", zap.Error(err))
	}

	factory := auction.NewFactory(cfg.Organizer(), registry.Operator(), auction.Deps{
		Assets:   registry,
		Treasury: treasury,
		Events:   service.MQPublisher{},
	}, auction.WithPriceCurve(curve))

	svc := service.NewAuctionService(factory, dao.NewAuctionStore(db), service.Options{
		Locker:      utils.RedisMutexLocker{},
		MaxDuration: cfg.MaxDuration,
	})
	if err := svc.Restore(ctx); err != nil {
		utils.Logger.Fatal("恢复拍卖状态失败", zap.Error(err))
	}

	// 启动RabbitMQ消费者（事件入库）
	if err := service.StartEventConsumer(svc); err != nil {
		utils.Logger.Fatal("启动消费者失败", zap.Error(err))
	}

	utils.Logger.Info("链上模式已启动",
		zap.String("operator", registry.Operator().Hex()),
		zap.String("nft_contract", cfg.NFTContractAddr),
		zap.Int("auctions", factory.Len()))
	return svc
}
