package reward

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/betbot/predictbot/internal/chain"
	"github.com/betbot/predictbot/internal/domain"
	"github.com/betbot/predictbot/pkg/cache"
	"github.com/betbot/predictbot/pkg/logger"
)

// Engine 领奖引擎：回溯扫描可领取的轮次并批量领取
type Engine struct {
	prediction *chain.Prediction
	scanWindow uint64

	// 出结果后的轮次数据不再变化，缓存减少重复 RPC
	rounds *cache.InMemoryCache[uint64, *domain.Round]
}

// NewEngine 创建领奖引擎；scanWindow 为回溯局数，0 取默认值 5
func NewEngine(p *chain.Prediction, scanWindow uint64) *Engine {
	if scanWindow == 0 {
		scanWindow = 5
	}
	return &Engine{
		prediction: p,
		scanWindow: scanWindow,
		rounds:     cache.NewInMemoryCache[uint64, *domain.Round](10 * time.Minute),
	}
}

// EstimateReward 按轮次快照估算某仓位的应得奖励（wei）
// 已领取或无奖励基数时为 0；公式是合约同款的整数等比分配
func EstimateReward(round *domain.Round, ur *domain.UserRound) *big.Int {
	if ur == nil || round == nil || ur.Claimed {
		return big.NewInt(0)
	}
	if ur.Amount == nil || ur.Amount.Sign() == 0 {
		return big.NewInt(0)
	}
	if round.RewardBaseCal == nil || round.RewardBaseCal.Sign() == 0 {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(ur.Amount, round.RewardAmount)
	return out.Div(out, round.RewardBaseCal)
}

// roundAt 读取某轮快照，只缓存已出结果的轮次
func (e *Engine) roundAt(ctx context.Context, epoch uint64) (*domain.Round, error) {
	if r, ok := e.rounds.Get(epoch); ok {
		return r, nil
	}
	r, err := e.prediction.Rounds(ctx, new(big.Int).SetUint64(epoch))
	if err != nil {
		return nil, err
	}
	if r.OraclesCalled {
		e.rounds.Set(epoch, r, 0)
	}
	return r, nil
}

// ScanClaimable 扫描某钱包近 scanWindow 轮里可领取的轮次
// 窗口为 [max(1, current-scanWindow), current)，当前轮未结束不在扫描范围内
func (e *Engine) ScanClaimable(ctx context.Context, w *domain.Wallet) ([]domain.ClaimableEntry, error) {
	// 过期的轮次缓存只在这里回收，扫描是唯一的常驻调用方
	e.rounds.Cleanup()

	current, err := e.prediction.CurrentEpoch(ctx)
	if err != nil {
		return nil, fmt.Errorf("查询当前轮失败: %w", err)
	}
	cur := current.Uint64()

	start := uint64(1)
	if cur > e.scanWindow {
		start = cur - e.scanWindow
	}

	addr := w.Addr()
	var entries []domain.ClaimableEntry

	for epoch := start; epoch < cur; epoch++ {
		ok, err := e.prediction.Claimable(ctx, new(big.Int).SetUint64(epoch), addr)
		if err != nil {
			logger.Warnf("查询第 %d 轮可领取状态失败: %v", epoch, err)
			continue
		}
		if !ok {
			continue
		}

		ur, err := e.prediction.Ledger(ctx, new(big.Int).SetUint64(epoch), addr)
		if err != nil {
			logger.Warnf("查询第 %d 轮仓位失败: %v", epoch, err)
			continue
		}
		if ur.Claimed || ur.Amount == nil || ur.Amount.Sign() == 0 {
			continue
		}

		round, err := e.roundAt(ctx, epoch)
		if err != nil {
			logger.Warnf("查询第 %d 轮快照失败: %v", epoch, err)
			continue
		}

		entries = append(entries, domain.ClaimableEntry{
			Epoch:     epoch,
			Position:  ur.Position,
			BetAmount: ur.Amount,
			Reward:    EstimateReward(round, ur),
		})
	}

	return entries, nil
}

// ClaimedEpoch 已领取的单轮明细
type ClaimedEpoch struct {
	Epoch  uint64
	Reward *big.Int
	TxHash string
}

// ClaimResult 一次领奖的结果
type ClaimResult struct {
	Claimed []ClaimedEpoch
	Failed  []uint64 // 提交失败的轮次
	Skipped []uint64 // 复核时已不可领取的轮次（通常是已被领走）
	Reward  *big.Int // 成功部分的预估奖励合计
}

// Claim 逐轮提交 claim 交易
// 提交前重新核对可领取状态（扫描之后可能已被领走）；单轮失败跳过，至少领到一轮算成功
// 全部轮次都只是复核落空（无一失败）不算错误
func (e *Engine) Claim(ctx context.Context, w *domain.Wallet, entries []domain.ClaimableEntry) (*ClaimResult, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: 没有可领取的轮次", domain.ErrValidation)
	}

	key, err := w.Key()
	if err != nil {
		return nil, err
	}
	addr := w.Addr()

	result := &ClaimResult{Reward: big.NewInt(0)}
	for _, en := range entries {
		epoch := new(big.Int).SetUint64(en.Epoch)

		ok, cerr := e.prediction.Claimable(ctx, epoch, addr)
		if cerr != nil {
			logger.Warnf("复核第 %d 轮可领取状态失败: %v", en.Epoch, cerr)
			result.Failed = append(result.Failed, en.Epoch)
			continue
		}
		if !ok {
			logger.Infof("第 %d 轮已不可领取，跳过", en.Epoch)
			result.Skipped = append(result.Skipped, en.Epoch)
			continue
		}

		receipt, cerr := e.prediction.Claim(ctx, key, []*big.Int{epoch})
		if cerr != nil {
			logger.Warnf("第 %d 轮领奖交易失败: %v", en.Epoch, cerr)
			result.Failed = append(result.Failed, en.Epoch)
			continue
		}

		result.Claimed = append(result.Claimed, ClaimedEpoch{
			Epoch:  en.Epoch,
			Reward: en.Reward,
			TxHash: receipt.TxHash.Hex(),
		})
		if en.Reward != nil {
			result.Reward.Add(result.Reward, en.Reward)
		}
		logger.Infof("钱包 %s 领取第 %d 轮奖励，预估 %s BNB", w.Address, en.Epoch, domain.FromWei(en.Reward))
	}

	if len(result.Claimed) == 0 && len(result.Failed) > 0 {
		return nil, fmt.Errorf("全部 %d 轮领取失败", len(result.Failed))
	}
	return result, nil
}

// ScanAndClaim 扫描后立即领取；无可领取轮次时返回 (nil, nil)
func (e *Engine) ScanAndClaim(ctx context.Context, w *domain.Wallet) (*ClaimResult, error) {
	entries, err := e.ScanClaimable(ctx, w)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return e.Claim(ctx, w, entries)
}
