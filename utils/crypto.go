package utils

import (
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

var ErrInvalidSignature = errors.New("invalid wallet signature")

// SignedMessage 构造待签名消息，与前端personal_sign保持一致
func SignedMessage(action string, parts ...string) string {
	return "nft_auction:" + action + ":" + strings.Join(parts, ":")
}

// RecoverSigner 从EIP-191 personal_sign签名中恢复签名地址
func RecoverSigner(message, signature string) (common.Address, error) {
	sig, err := hexutil.Decode(signature)
	if err != nil || len(sig) != crypto.SignatureLength {
		return common.Address{}, ErrInvalidSignature
	}
	// 钱包返回的V为27/28，恢复时需要0/1
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return common.Address{}, ErrInvalidSignature
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// VerifySignature 校验signature是否由userAddr对message签名
func VerifySignature(userAddr common.Address, message, signature string) bool {
	signer, err := RecoverSigner(message, signature)
	if err != nil {
		return false
	}
	return signer == userAddr
}
