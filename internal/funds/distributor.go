package funds

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/betbot/predictbot/internal/chain"
	"github.com/betbot/predictbot/internal/domain"
	"github.com/betbot/predictbot/pkg/logger"
)

// Distributor 资金调度：主钱包向子钱包分发 BNB、子钱包归集回主钱包、清空钱包
type Distributor struct {
	chain *chain.Client
}

// NewDistributor 创建资金调度器
func NewDistributor(c *chain.Client) *Distributor {
	return &Distributor{chain: c}
}

// ConfirmFunc 分发前的确认回调：返回 false 则放弃本次分发
type ConfirmFunc func(perWallet decimal.Decimal, count int) bool

// Distribute 把主钱包 95% 的 BNB 均分给全部子钱包，返回成功笔数
// 余额低于下限、或可分金额不足 n 笔 gas 预留时整体放弃；发送阶段单笔失败跳过，不中断其余
func (d *Distributor) Distribute(ctx context.Context, main *domain.Wallet, subs []*domain.Wallet, confirm ConfirmFunc) (int, error) {
	if len(subs) == 0 {
		return 0, fmt.Errorf("%w: 没有子钱包", domain.ErrValidation)
	}

	balance, err := d.chain.NativeBalance(ctx, main.Addr())
	if err != nil {
		return 0, fmt.Errorf("查询主钱包余额失败: %w", err)
	}
	if balance.Cmp(domain.DistributeMinWei()) < 0 {
		return 0, fmt.Errorf("%w: 主钱包余额 %s 低于分发下限 %s",
			domain.ErrInsufficientFunds, domain.FromWei(balance), domain.FromWei(domain.DistributeMinWei()))
	}

	n := int64(len(subs))

	// 可分金额 = 余额 × 95%，再为每个子钱包预留一笔转账 gas
	distributable := new(big.Int).Mul(balance, big.NewInt(95))
	distributable.Div(distributable, big.NewInt(100))

	reserveTotal := new(big.Int).Mul(domain.TransferReserveWei(), big.NewInt(n))
	if distributable.Cmp(reserveTotal) < 0 {
		return 0, fmt.Errorf("%w: 可分金额 %s 不足 %d 笔gas预留",
			domain.ErrInsufficientFunds, domain.FromWei(distributable), n)
	}

	perWallet := new(big.Int).Sub(distributable, reserveTotal)
	perWallet.Div(perWallet, big.NewInt(n))
	if perWallet.Sign() <= 0 {
		return 0, fmt.Errorf("%w: 每份金额为零", domain.ErrInsufficientFunds)
	}

	if confirm != nil && !confirm(domain.FromWei(perWallet), len(subs)) {
		logger.Info("分发已取消")
		return 0, nil
	}

	key, err := main.Key()
	if err != nil {
		return 0, err
	}

	logger.Infof("分发 %s BNB × %d 个子钱包", domain.FromWei(perWallet), n)

	sent := 0
	for _, w := range subs {
		if _, terr := d.chain.Transfer(ctx, key, w.Addr(), perWallet); terr != nil {
			logger.Warnf("向 %s 转账失败: %v", w.Address, terr)
			continue
		}
		sent++
		logger.Infof("已转 %s BNB 到 %s", domain.FromWei(perWallet), w.Address)
	}
	return sent, nil
}

// DrainAll 把全部子钱包的 BNB 归集回主钱包，每个钱包只留一笔转账的实际手续费
// 尾数低于回收下限、或子钱包本就是主地址的跳过；单个失败不中断其余
func (d *Distributor) DrainAll(ctx context.Context, subs []*domain.Wallet, mainAddr common.Address) (drained int, total *big.Int, err error) {
	total = big.NewInt(0)
	fee := d.chain.TransferFeeWei()
	floor := new(big.Int).Add(domain.DrainDustWei(), fee)

	for _, w := range subs {
		if w.Addr() == mainAddr {
			continue
		}

		balance, berr := d.chain.NativeBalance(ctx, w.Addr())
		if berr != nil {
			logger.Warnf("查询 %s 余额失败: %v", w.Address, berr)
			continue
		}
		if balance.Cmp(floor) <= 0 {
			continue
		}

		key, kerr := w.Key()
		if kerr != nil {
			logger.Warnf("解析 %s 私钥失败: %v", w.Address, kerr)
			continue
		}

		amount := new(big.Int).Sub(balance, fee)
		if _, terr := d.chain.Transfer(ctx, key, mainAddr, amount); terr != nil {
			logger.Warnf("归集 %s 失败: %v", w.Address, terr)
			continue
		}

		drained++
		total.Add(total, amount)
		logger.Infof("已归集 %s BNB（钱包 %s）", domain.FromWei(amount), w.Address)
	}
	return drained, total, nil
}

// EmptyWallet 把单个钱包的 BNB 全部转到目标地址，仅保留手续费
// 余额低于执行下限时拒绝
func (d *Distributor) EmptyWallet(ctx context.Context, w *domain.Wallet, dest common.Address) (*big.Int, error) {
	if w.Addr() == dest {
		return nil, fmt.Errorf("%w: 目标地址与钱包相同", domain.ErrValidation)
	}

	balance, err := d.chain.NativeBalance(ctx, w.Addr())
	if err != nil {
		return nil, fmt.Errorf("查询余额失败: %w", err)
	}
	if balance.Cmp(domain.EmptyWalletMinWei()) < 0 {
		return nil, fmt.Errorf("%w: 余额 %s 低于清空下限 %s",
			domain.ErrInsufficientFunds, domain.FromWei(balance), domain.FromWei(domain.EmptyWalletMinWei()))
	}

	key, err := w.Key()
	if err != nil {
		return nil, err
	}

	amount := new(big.Int).Sub(balance, domain.EmptyWalletFeeWei())
	if _, err := d.chain.Transfer(ctx, key, dest, amount); err != nil {
		return nil, fmt.Errorf("清空转账失败: %w", err)
	}
	logger.Infof("已清空钱包 %s，转出 %s BNB 到 %s", w.Address, domain.FromWei(amount), dest.Hex())
	return amount, nil
}

// TotalSubWalletBalance 汇总全部子钱包的链上 BNB 余额
// 单个查询失败时跳过该钱包
func (d *Distributor) TotalSubWalletBalance(ctx context.Context, subs []*domain.Wallet) decimal.Decimal {
	total := big.NewInt(0)
	for _, w := range subs {
		balance, err := d.chain.NativeBalance(ctx, w.Addr())
		if err != nil {
			logger.Warnf("查询 %s 余额失败: %v", w.Address, err)
			continue
		}
		total.Add(total, balance)
	}
	return domain.FromWei(total)
}
