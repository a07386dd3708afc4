package domain

import "math/big"

// 链上操作的费用预留，单位 wei
// BSC 上 0.1 gwei gas price 下这些预留足够覆盖对应操作
var (
	// 下注前保留的 gas 余量（0.00003 BNB）
	betGasReserve = weiFromMicro(30)

	// 资金分发时每笔转账的 gas 预留（0.00003 BNB）
	transferReserve = weiFromMicro(30)

	// 分发下限：主钱包至少要有 0.001 BNB 才值得分发
	distributeMin = weiFromMicro(1000)

	// 归集时小于 0.00001 BNB 的尾数不再回收
	drainDust = weiFromMicro(10)

	// 清空钱包预留的手续费（0.0001 BNB），低于 0.00011 BNB 不执行
	emptyWalletFee = weiFromMicro(100)
	emptyWalletMin = weiFromMicro(110)
)

// weiFromMicro 把「百万分之一 BNB」换算成 wei（1e-6 BNB = 1e12 wei）
func weiFromMicro(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1e12))
}

func BetGasReserveWei() *big.Int   { return new(big.Int).Set(betGasReserve) }
func TransferReserveWei() *big.Int { return new(big.Int).Set(transferReserve) }
func DistributeMinWei() *big.Int   { return new(big.Int).Set(distributeMin) }
func DrainDustWei() *big.Int       { return new(big.Int).Set(drainDust) }
func EmptyWalletFeeWei() *big.Int  { return new(big.Int).Set(emptyWalletFee) }
func EmptyWalletMinWei() *big.Int  { return new(big.Int).Set(emptyWalletMin) }
