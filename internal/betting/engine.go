package betting

import (
	"context"
	"fmt"
	"math/big"
	"time"

	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"

	"github.com/betbot/predictbot/internal/chain"
	"github.com/betbot/predictbot/internal/domain"
	"github.com/betbot/predictbot/pkg/logger"
)

// Engine 下注引擎：对当前轮提交 BNB 注单
// 锁盘窗口校验在本地时钟上做，未通过时绝不上链
type Engine struct {
	chain      *chain.Client
	prediction *chain.Prediction
	now        func() time.Time
}

// NewEngine 创建下注引擎
func NewEngine(c *chain.Client, p *chain.Prediction) *Engine {
	return &Engine{
		chain:      c,
		prediction: p,
		now:        time.Now,
	}
}

// Result 一次下注的结果
type Result struct {
	Epoch   *big.Int
	Dir     domain.Direction
	Amount  decimal.Decimal
	TxHash  string
	GasUsed uint64
}

// CurrentRound 读取当前轮编号和快照
func (e *Engine) CurrentRound(ctx context.Context) (*domain.Round, error) {
	epoch, err := e.prediction.CurrentEpoch(ctx)
	if err != nil {
		return nil, fmt.Errorf("查询当前轮失败: %w", err)
	}
	round, err := e.prediction.Rounds(ctx, epoch)
	if err != nil {
		return nil, fmt.Errorf("查询轮次数据失败: %w", err)
	}
	return round, nil
}

// Bet 用子钱包对当前轮下注
// 校验顺序：轮次未锁盘 → 余额足以覆盖注额加 gas 预留 → 提交并等待回执
func (e *Engine) Bet(ctx context.Context, w *domain.Wallet, dir domain.Direction, amount decimal.Decimal) (*Result, error) {
	value := domain.ToWei(amount)
	if value.Sign() <= 0 {
		return nil, fmt.Errorf("%w: 注额必须为正", domain.ErrValidation)
	}

	round, err := e.CurrentRound(ctx)
	if err != nil {
		return nil, err
	}

	if e.now().Unix() >= round.LockTimestamp {
		return nil, fmt.Errorf("%w: 第 %s 轮已于 %s 锁盘",
			domain.ErrRoundLocked, round.Epoch,
			time.Unix(round.LockTimestamp, 0).Format("15:04:05"))
	}

	balance, err := e.chain.NativeBalance(ctx, w.Addr())
	if err != nil {
		return nil, fmt.Errorf("查询BNB余额失败: %w", err)
	}
	need := new(big.Int).Add(value, domain.BetGasReserveWei())
	if balance.Cmp(need) < 0 {
		return nil, fmt.Errorf("%w: BNB余额 %s 不足注额 %s 加gas预留",
			domain.ErrInsufficientFunds, domain.FromWei(balance), amount)
	}

	key, err := w.Key()
	if err != nil {
		return nil, err
	}

	logger.Infof("第 %s 轮下注 %s：%s BNB（钱包 %s）", round.Epoch, dir, amount, w.Address)

	receipt, err := e.prediction.Bet(ctx, key, round.Epoch, dir, value)
	if err != nil {
		return nil, fmt.Errorf("下注交易失败: %w", err)
	}

	return &Result{
		Epoch:   round.Epoch,
		Dir:     dir,
		Amount:  amount,
		TxHash:  receiptHash(receipt),
		GasUsed: receipt.GasUsed,
	}, nil
}

// MaxBetAmount 按余额扣除 gas 预留后的最大可下注额
func MaxBetAmount(balance *big.Int) decimal.Decimal {
	avail := new(big.Int).Sub(balance, domain.BetGasReserveWei())
	if avail.Sign() <= 0 {
		return decimal.Zero
	}
	return domain.FromWei(avail)
}

func receiptHash(r *ethtypes.Receipt) string {
	if r == nil {
		return ""
	}
	return r.TxHash.Hex()
}
