package contract

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"nft_auction/auction"
	"nft_auction/utils"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

var (
	ErrDepositRequired = errors.New("bid requires a deposit transaction hash")
	ErrDepositUsed     = errors.New("deposit transaction already used")
	ErrDepositPending  = errors.New("deposit transaction not yet mined")
	ErrDepositMismatch = errors.New("deposit transaction does not match bid")
)

// depositClaimTTL 入金交易防重放标记保留时间
const depositClaimTTL = 30 * 24 * time.Hour

// operatorTxMu 资产转移与转账共用operator钱包，交易需串行分配nonce
var operatorTxMu sync.Mutex

// EthTreasury 由operator钱包托管出价资金：出价人先向operator转账，出价时提交交易哈希
type EthTreasury struct {
	client  *ethclient.Client
	key     *ecdsa.PrivateKey
	address common.Address
	signer  types.Signer
}

// NewEthTreasury 创建链上资金托管
func NewEthTreasury(ctx context.Context, client *ethclient.Client, operatorKey string) (*EthTreasury, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(operatorKey, "0x"))
	if err != nil {
		return nil, err
	}
	chainID, err := client.ChainID(ctx)
	if err != nil {
		return nil, err
	}
	return &EthTreasury{
		client:  client,
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		signer:  types.LatestSignerForChainID(chainID),
	}, nil
}

// Address 托管钱包地址（出价人入金地址）
func (t *EthTreasury) Address() common.Address { return t.address }

// Collect 校验入金交易：发送方、接收方、金额与回执状态，并用Redis防止重复使用
func (t *EthTreasury) Collect(ctx context.Context, p auction.Payment) (err error) {
	if p.TxHash == (common.Hash{}) {
		return ErrDepositRequired
	}

	claimKey := "nft_auction:deposit:" + p.TxHash.Hex()
	claimed, err := utils.ClaimOnce(ctx, claimKey, depositClaimTTL)
	if err != nil {
		return err
	}
	if !claimed {
		return ErrDepositUsed
	}
	defer func() {
		if err != nil {
			if relErr := utils.ReleaseClaim(context.Background(), claimKey); relErr != nil {
				utils.Logger.Warn("释放入金占用失败", zap.String("tx_hash", p.TxHash.Hex()), zap.Error(relErr))
			}
		}
	}()

	tx, pending, err := t.client.TransactionByHash(ctx, p.TxHash)
	if err != nil {
		return fmt.Errorf("query deposit: %w", err)
	}
	if pending {
		return ErrDepositPending
	}
	if tx.To() == nil || *tx.To() != t.address || tx.Value().Cmp(p.Amount) != 0 {
		return ErrDepositMismatch
	}
	sender, err := types.Sender(t.signer, tx)
	if err != nil {
		return fmt.Errorf("recover deposit sender: %w", err)
	}
	if sender != p.From {
		return ErrDepositMismatch
	}

	receipt, err := t.client.TransactionReceipt(ctx, p.TxHash)
	if err != nil {
		return fmt.Errorf("query deposit receipt: %w", err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("%w: %s", ErrTxReverted, p.TxHash.Hex())
	}
	return nil
}

// Send 从托管钱包转出ETH；收款合约拒收时EstimateGas或回执失败
// 广播后等待出错返回包装auction.ErrTransferUnconfirmed的错误，不可按失败重试
func (t *EthTreasury) Send(ctx context.Context, to common.Address, amount *big.Int) error {
	operatorTxMu.Lock()
	defer operatorTxMu.Unlock()

	gas, err := t.client.EstimateGas(ctx, ethereum.CallMsg{From: t.address, To: &to, Value: amount})
	if err != nil {
		return fmt.Errorf("estimate gas: %w", err)
	}
	nonce, err := t.client.PendingNonceAt(ctx, t.address)
	if err != nil {
		return fmt.Errorf("pending nonce: %w", err)
	}
	gasPrice, err := t.client.SuggestGasPrice(ctx)
	if err != nil {
		return fmt.Errorf("suggest gas price: %w", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gas,
		To:       &to,
		Value:    amount,
	})
	signed, err := types.SignTx(tx, t.signer, t.key)
	if err != nil {
		return fmt.Errorf("sign transfer: %w", err)
	}
	if err := t.client.SendTransaction(ctx, signed); err != nil {
		return fmt.Errorf("send transfer: %w", err)
	}
	return waitSuccess(ctx, t.client, signed)
}
