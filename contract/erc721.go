package contract

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"nft_auction/auction"
	"nft_auction/utils"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

// ERC721ABI 拍卖用到的ERC721方法
const ERC721ABI = `[
	{
		"inputs": [{"internalType": "uint256", "name": "tokenId", "type": "uint256"}],
		"name": "ownerOf",
		"outputs": [{"internalType": "address", "name": "", "type": "address"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [{"internalType": "uint256", "name": "tokenId", "type": "uint256"}],
		"name": "getApproved",
		"outputs": [{"internalType": "address", "name": "", "type": "address"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [
			{"internalType": "address", "name": "owner", "type": "address"},
			{"internalType": "address", "name": "operator", "type": "address"}
		],
		"name": "isApprovedForAll",
		"outputs": [{"internalType": "bool", "name": "", "type": "bool"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [
			{"internalType": "address", "name": "from", "type": "address"},
			{"internalType": "address", "name": "to", "type": "address"},
			{"internalType": "uint256", "name": "tokenId", "type": "uint256"}
		],
		"name": "safeTransferFrom",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	}
]`

var ErrTxReverted = errors.New("transaction reverted")

// ERC721Registry 基于链上ERC721合约的资产登记簿，转移由operator私钥签名
type ERC721Registry struct {
	client       *ethclient.Client
	abi          abi.ABI
	contract     *bind.BoundContract
	contractAddr common.Address
	chainID      *big.Int
	key          *ecdsa.PrivateKey
	operator     common.Address
}

// ParseERC721ABI 解析ERC721 ABI
func ParseERC721ABI() (abi.ABI, error) {
	return abi.JSON(strings.NewReader(ERC721ABI))
}

// NewERC721Registry 创建ERC721登记簿
func NewERC721Registry(ctx context.Context, client *ethclient.Client, contractAddr, operatorKey string) (*ERC721Registry, error) {
	abiObj, err := ParseERC721ABI()
	if err != nil {
		utils.Logger.Error("解析ABI失败", zap.Error(err))
		return nil, err
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(operatorKey, "0x"))
	if err != nil {
		utils.Logger.Error("解析operator私钥失败", zap.Error(err))
		return nil, err
	}

	chainID, err := client.ChainID(ctx)
	if err != nil {
		utils.Logger.Error("获取链ID失败", zap.Error(err))
		return nil, err
	}

	addr := common.HexToAddress(contractAddr)
	return &ERC721Registry{
		client:       client,
		abi:          abiObj,
		contract:     bind.NewBoundContract(addr, abiObj, client, client, client),
		contractAddr: addr,
		chainID:      chainID,
		key:          key,
		operator:     crypto.PubkeyToAddress(key.PublicKey),
	}, nil
}

// Operator 执行转移的地址
func (e *ERC721Registry) Operator() common.Address { return e.operator }

// OwnerOf 查询资产持有者
func (e *ERC721Registry) OwnerOf(ctx context.Context, assetID *big.Int) (common.Address, error) {
	var out []interface{}
	if err := e.contract.Call(&bind.CallOpts{Context: ctx}, &out, "ownerOf", assetID); err != nil {
		return common.Address{}, fmt.Errorf("ownerOf(%s): %w", assetID, err)
	}
	return *abi.ConvertType(out[0], new(common.Address)).(*common.Address), nil
}

// IsApprovedForTransfer 单个授权或全部授权均视为已授权
func (e *ERC721Registry) IsApprovedForTransfer(ctx context.Context, assetID *big.Int, operator common.Address) (bool, error) {
	opts := &bind.CallOpts{Context: ctx}

	var out []interface{}
	if err := e.contract.Call(opts, &out, "getApproved", assetID); err != nil {
		return false, fmt.Errorf("getApproved(%s): %w", assetID, err)
	}
	if *abi.ConvertType(out[0], new(common.Address)).(*common.Address) == operator {
		return true, nil
	}

	owner, err := e.OwnerOf(ctx, assetID)
	if err != nil {
		return false, err
	}
	out = nil
	if err := e.contract.Call(opts, &out, "isApprovedForAll", owner, operator); err != nil {
		return false, fmt.Errorf("isApprovedForAll: %w", err)
	}
	return *abi.ConvertType(out[0], new(bool)).(*bool), nil
}

// TransferOwnership 执行safeTransferFrom并等待上链，广播前的失败为明确失败
func (e *ERC721Registry) TransferOwnership(ctx context.Context, assetID *big.Int, from, to common.Address) error {
	auth, err := bind.NewKeyedTransactorWithChainID(e.key, e.chainID)
	if err != nil {
		utils.Logger.Error("构建交易授权失败", zap.Error(err))
		return err
	}
	auth.Context = ctx

	operatorTxMu.Lock()
	defer operatorTxMu.Unlock()

	tx, err := e.contract.Transact(auth, "safeTransferFrom", from, to, assetID)
	if err != nil {
		utils.Logger.Error("执行safeTransferFrom失败", zap.Stringer("asset_id", assetID), zap.Error(err))
		return err
	}
	return waitSuccess(ctx, e.client, tx)
}

// waitSuccess 等待交易上链并校验回执状态
// 交易已广播，等待出错时结果未知，返回包装auction.ErrTransferUnconfirmed的错误
func waitSuccess(ctx context.Context, backend bind.DeployBackend, tx *types.Transaction) error {
	receipt, err := bind.WaitMined(ctx, backend, tx)
	if err != nil {
		utils.Logger.Error("等待交易上链失败", zap.String("tx_hash", tx.Hash().Hex()), zap.Error(err))
		return fmt.Errorf("%w: %s: %v", auction.ErrTransferUnconfirmed, tx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		utils.Logger.Error("交易执行失败（状态为0）", zap.String("tx_hash", tx.Hash().Hex()))
		return fmt.Errorf("%w: %s", ErrTxReverted, tx.Hash().Hex())
	}
	return nil
}
