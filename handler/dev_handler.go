package handler

import (
	"math/big"
	"net/http"

	"nft_auction/contract"
	"nft_auction/service"
	"nft_auction/utils"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// DevHandler 本地模式的测试资产与充值接口
type DevHandler struct {
	assets   *contract.LocalAssets
	bank     *contract.LocalBank
	operator common.Address
}

// NewDevHandler 创建本地模式处理器
func NewDevHandler(assets *contract.LocalAssets, bank *contract.LocalBank, operator common.Address) *DevHandler {
	return &DevHandler{assets: assets, bank: bank, operator: operator}
}

// MintReq 铸造请求
type MintReq struct {
	AssetID string `json:"asset_id" binding:"required"`
	Owner   string `json:"owner" binding:"required"`
}

// ApproveReq 授权请求，operator为空时授权给拍卖operator
type ApproveReq struct {
	AssetID  string `json:"asset_id" binding:"required"`
	Owner    string `json:"owner" binding:"required"`
	Operator string `json:"operator"`
}

// DepositReq 充值请求，amount为ETH字符串
type DepositReq struct {
	Account string `json:"account" binding:"required"`
	Amount  string `json:"amount" binding:"required"`
}

// Mint 铸造资产
func (h *DevHandler) Mint(c *gin.Context) {
	var req MintReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	assetID, owner, ok := parseAssetAndOwner(c, req.AssetID, req.Owner)
	if !ok {
		return
	}
	if err := h.assets.Mint(assetID, owner); err != nil {
		fail(c, http.StatusConflict, err.Error(), nil)
		return
	}
	utils.Logger.Info("本地铸造资产", zap.Stringer("asset_id", assetID), zap.String("owner", owner.Hex()))
	success(c, gin.H{"asset_id": assetID.String(), "owner": owner.Hex()})
}

// Approve 授权资产转移
func (h *DevHandler) Approve(c *gin.Context) {
	var req ApproveReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	assetID, owner, ok := parseAssetAndOwner(c, req.AssetID, req.Owner)
	if !ok {
		return
	}
	operator := h.operator
	if req.Operator != "" {
		if !common.IsHexAddress(req.Operator) {
			fail(c, http.StatusBadRequest, "operator must be a hex address", nil)
			return
		}
		operator = common.HexToAddress(req.Operator)
	}
	if err := h.assets.Approve(owner, assetID, operator); err != nil {
		fail(c, http.StatusForbidden, err.Error(), nil)
		return
	}
	success(c, gin.H{"asset_id": assetID.String(), "operator": operator.Hex()})
}

// Deposit 给账户充值
func (h *DevHandler) Deposit(c *gin.Context) {
	var req DepositReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if !common.IsHexAddress(req.Account) {
		fail(c, http.StatusBadRequest, "account must be a hex address", nil)
		return
	}
	amount, err := utils.ParseEther(req.Amount)
	if err != nil || amount.Sign() <= 0 {
		fail(c, http.StatusBadRequest, "amount must be a positive ETH value", nil)
		return
	}
	account := common.HexToAddress(req.Account)
	h.bank.Deposit(account, amount)
	success(c, balanceBody(account, h.bank.BalanceOf(account)))
}

// Balance 查询账户余额
func (h *DevHandler) Balance(c *gin.Context) {
	addr := c.Param("addr")
	if !common.IsHexAddress(addr) {
		fail(c, http.StatusBadRequest, "address must be hex", nil)
		return
	}
	account := common.HexToAddress(addr)
	success(c, balanceBody(account, h.bank.BalanceOf(account)))
}

func parseAssetAndOwner(c *gin.Context, assetStr, ownerStr string) (*big.Int, common.Address, bool) {
	assetID, ok := new(big.Int).SetString(assetStr, 10)
	if !ok || assetID.Sign() < 0 {
		fail(c, http.StatusBadRequest, service.ErrInvalidParam.Error()+": asset_id", nil)
		return nil, common.Address{}, false
	}
	if !common.IsHexAddress(ownerStr) {
		fail(c, http.StatusBadRequest, service.ErrInvalidParam.Error()+": owner", nil)
		return nil, common.Address{}, false
	}
	return assetID, common.HexToAddress(ownerStr), true
}

func balanceBody(account common.Address, bal *big.Int) gin.H {
	return gin.H{
		"account":     account.Hex(),
		"balance":     bal.String(),
		"balance_eth": utils.FormatEther(bal),
	}
}
