package domain

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// BSC 上 BNB 与 USDT 均为 18 位小数
const TokenDecimals = 18

var weiPerToken = decimal.New(1, TokenDecimals)

// ToWei 人类可读金额 -> wei（向下取整）
func ToWei(amount decimal.Decimal) *big.Int {
	return amount.Mul(weiPerToken).BigInt()
}

// FromWei wei -> 人类可读金额
func FromWei(wei *big.Int) decimal.Decimal {
	if wei == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(wei, -TokenDecimals)
}

// Gwei gas 价格换算
func Gwei(d decimal.Decimal) *big.Int {
	return d.Mul(decimal.New(1, 9)).BigInt()
}
