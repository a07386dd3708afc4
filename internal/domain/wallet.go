package domain

import (
	"crypto/ecdsa"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
)

// Wallet 子钱包领域模型
// 私钥只在签名时解析为 ecdsa.PrivateKey，禁止写入日志或对外发送
type Wallet struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Address     string          `json:"address"`
	PrivateKey  string          `json:"private_key"`
	CreatedAt   time.Time       `json:"created_at"`
	BalanceBNB  decimal.Decimal `json:"balance_bnb"`
	BalanceUSDT decimal.Decimal `json:"balance_usdt"`
}

// Key 解析私钥（hex，可带 0x 前缀）
func (w *Wallet) Key() (*ecdsa.PrivateKey, error) {
	return crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(w.PrivateKey), "0x"))
}

// Addr 返回 checksum 地址
func (w *Wallet) Addr() common.Address {
	return common.HexToAddress(w.Address)
}

// SameAddress 判断两个地址是否相同（大小写不敏感）
func SameAddress(a, b string) bool {
	return common.HexToAddress(a) == common.HexToAddress(b)
}
