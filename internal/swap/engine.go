package swap

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"

	"github.com/betbot/predictbot/internal/chain"
	"github.com/betbot/predictbot/internal/domain"
	"github.com/betbot/predictbot/pkg/logger"
)

const (
	// 滑点保护：成交下限 = 询价 × 999/1000
	slippageNum = 999
	slippageDen = 1000

	// 交易截止时间
	deadlineWindow = 300 * time.Second
)

// Engine 兑换引擎：USDT 与 BNB 互换，走 DEX 路由
type Engine struct {
	chain      *chain.Client
	router     *chain.Router
	stable     *chain.ERC20
	wbnb       common.Address
	stableAddr common.Address
}

// NewEngine 创建兑换引擎
func NewEngine(c *chain.Client, router *chain.Router, stable *chain.ERC20, stableAddr, wbnb common.Address) *Engine {
	return &Engine{
		chain:      c,
		router:     router,
		stable:     stable,
		wbnb:       wbnb,
		stableAddr: stableAddr,
	}
}

// QuoteStableToNative 询价：amountIn USDT 能换多少 BNB（wei）
// 询价失败返回 ErrQuoteUnavailable，调用方展示 0 即可
func (e *Engine) QuoteStableToNative(ctx context.Context, amountIn *big.Int) (*big.Int, error) {
	if amountIn == nil || amountIn.Sign() <= 0 {
		return big.NewInt(0), nil
	}
	path := []common.Address{e.stableAddr, e.wbnb}
	amounts, err := e.router.GetAmountsOut(ctx, amountIn, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrQuoteUnavailable, err)
	}
	return amounts[len(amounts)-1], nil
}

// QuoteNativeToStable 询价：amountIn BNB 能换多少 USDT（wei）
func (e *Engine) QuoteNativeToStable(ctx context.Context, amountIn *big.Int) (*big.Int, error) {
	if amountIn == nil || amountIn.Sign() <= 0 {
		return big.NewInt(0), nil
	}
	path := []common.Address{e.wbnb, e.stableAddr}
	amounts, err := e.router.GetAmountsOut(ctx, amountIn, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrQuoteUnavailable, err)
	}
	return amounts[len(amounts)-1], nil
}

// MinOut 按滑点保护计算成交下限
func MinOut(quote *big.Int) *big.Int {
	out := new(big.Int).Mul(quote, big.NewInt(slippageNum))
	return out.Div(out, big.NewInt(slippageDen))
}

// SwapStableToNative 用主钱包的 USDT 换 BNB，换出的 BNB 直接打到 recipient
// 余额、授权都查主钱包，交易也由主钱包签名；recipient 通常是待补仓的子钱包
// 预检余额 → 授权不足时按 2 倍注额授权 → 询价 → 带滑点下限成交
func (e *Engine) SwapStableToNative(ctx context.Context, main *domain.Wallet, amount decimal.Decimal, recipient common.Address) (*ethtypes.Receipt, error) {
	amountIn := domain.ToWei(amount)
	if amountIn.Sign() <= 0 {
		return nil, fmt.Errorf("%w: 兑换数量必须为正", domain.ErrValidation)
	}

	key, err := main.Key()
	if err != nil {
		return nil, err
	}
	owner := main.Addr()

	balance, err := e.stable.BalanceOf(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("查询USDT余额失败: %w", err)
	}
	if balance.Cmp(amountIn) < 0 {
		return nil, fmt.Errorf("%w: 主钱包USDT余额 %s 不足 %s",
			domain.ErrInsufficientFunds, domain.FromWei(balance), amount)
	}

	if err := e.ensureAllowance(ctx, main, amountIn); err != nil {
		return nil, err
	}

	quote, err := e.QuoteStableToNative(ctx, amountIn)
	if err != nil {
		return nil, err
	}
	minOut := MinOut(quote)
	deadline := big.NewInt(time.Now().Add(deadlineWindow).Unix())
	path := []common.Address{e.stableAddr, e.wbnb}

	logger.Infof("兑换 %s USDT -> BNB，询价 %s，下限 %s（主钱包 %s -> %s）",
		amount, domain.FromWei(quote), domain.FromWei(minOut), main.Address, recipient.Hex())

	receipt, err := e.router.SwapExactTokensForETH(ctx, key, amountIn, minOut, path, recipient, deadline)
	if err != nil {
		return nil, fmt.Errorf("兑换交易失败: %w", err)
	}
	return receipt, nil
}

// SwapNativeToStable 用子钱包的 BNB 换 USDT
func (e *Engine) SwapNativeToStable(ctx context.Context, w *domain.Wallet, amount decimal.Decimal) (*ethtypes.Receipt, error) {
	amountIn := domain.ToWei(amount)
	if amountIn.Sign() <= 0 {
		return nil, fmt.Errorf("%w: 兑换数量必须为正", domain.ErrValidation)
	}

	key, err := w.Key()
	if err != nil {
		return nil, err
	}
	owner := w.Addr()

	balance, err := e.chain.NativeBalance(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("查询BNB余额失败: %w", err)
	}
	// 留出 swap 的 gas 开销
	need := new(big.Int).Add(amountIn, domain.BetGasReserveWei())
	if balance.Cmp(need) < 0 {
		return nil, fmt.Errorf("%w: BNB余额 %s 不足 %s（含gas预留）",
			domain.ErrInsufficientFunds, domain.FromWei(balance), domain.FromWei(need))
	}

	quote, err := e.QuoteNativeToStable(ctx, amountIn)
	if err != nil {
		return nil, err
	}
	minOut := MinOut(quote)
	deadline := big.NewInt(time.Now().Add(deadlineWindow).Unix())
	path := []common.Address{e.wbnb, e.stableAddr}

	logger.Infof("兑换 %s BNB -> USDT，询价 %s，下限 %s（钱包 %s）",
		amount, domain.FromWei(quote), domain.FromWei(minOut), w.Address)

	receipt, err := e.router.SwapExactETHForTokens(ctx, key, amountIn, minOut, path, owner, deadline)
	if err != nil {
		return nil, fmt.Errorf("兑换交易失败: %w", err)
	}
	return receipt, nil
}

// ensureAllowance 授权额度不足时按 2 倍注额重新授权，减少后续授权次数
func (e *Engine) ensureAllowance(ctx context.Context, w *domain.Wallet, amountIn *big.Int) error {
	allowance, err := e.stable.Allowance(ctx, w.Addr(), e.router.Address())
	if err != nil {
		return fmt.Errorf("查询授权额度失败: %w", err)
	}
	if allowance.Cmp(amountIn) >= 0 {
		return nil
	}

	key, err := w.Key()
	if err != nil {
		return err
	}
	approveAmount := new(big.Int).Mul(amountIn, big.NewInt(2))
	logger.Infof("授权路由 %s USDT（钱包 %s）", domain.FromWei(approveAmount), w.Address)
	if _, err := e.stable.Approve(ctx, key, e.router.Address(), approveAmount); err != nil {
		return fmt.Errorf("授权失败: %w", err)
	}
	return nil
}
