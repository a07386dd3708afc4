package telegram

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/betbot/predictbot/internal/betting"
	"github.com/betbot/predictbot/internal/domain"
	"github.com/betbot/predictbot/internal/swap"
	"github.com/betbot/predictbot/internal/wallet"
	"github.com/betbot/predictbot/pkg/logger"
	"github.com/betbot/predictbot/pkg/persistence"
	"github.com/betbot/predictbot/pkg/ratelimit"
)

// 下注取兑换后 BNB 余额的 95%，剩余覆盖 gas
var betPortion = decimal.NewFromFloat(0.95)

// Recorder 把桥执行的下注写入历史，nil 时不记录
type Recorder interface {
	RecordBet(walletAddr string, epoch uint64, dir string, amount decimal.Decimal, txHash string) error
}

// Bridge 把 Telegram 命令接到下注流水线：/bet <序号>/<USDT数量>/<up|down>
// 收到命令后用主钱包的 USDT 换 BNB 打给目标子钱包，再以刷新后 BNB 余额的 95% 下注
type Bridge struct {
	client   *Client
	notifier *Notifier
	main     *domain.Wallet
	wallets  *wallet.Store
	swapper  *swap.Engine
	bettor   *betting.Engine
	recorder Recorder

	chatID       int64
	pollInterval time.Duration
	backoff      *ratelimit.Backoff

	// 轮询游标，跨重启持久化，避免重复消费命令
	Cursor struct {
		Offset int64 `json:"offset"`
	} `persistence:"telegram_cursor"`

	persist persistence.Service
}

// BridgeOptions Bridge 依赖项
type BridgeOptions struct {
	Client       *Client
	Notifier     *Notifier
	MainWallet   *domain.Wallet
	Wallets      *wallet.Store
	Swapper      *swap.Engine
	Bettor       *betting.Engine
	Recorder     Recorder
	ChatID       int64
	PollInterval time.Duration
	Persistence  persistence.Service
}

// NewBridge 创建命令桥并恢复轮询游标
func NewBridge(opts BridgeOptions) (*Bridge, error) {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	b := &Bridge{
		client:       opts.Client,
		notifier:     opts.Notifier,
		main:         opts.MainWallet,
		wallets:      opts.Wallets,
		swapper:      opts.Swapper,
		bettor:       opts.Bettor,
		recorder:     opts.Recorder,
		chatID:       opts.ChatID,
		pollInterval: opts.PollInterval,
		backoff:      ratelimit.NewBackoff(2*time.Second, 60*time.Second),
		persist:      opts.Persistence,
	}
	if err := persistence.LoadFields(b, "telegram", opts.Persistence); err != nil {
		return nil, fmt.Errorf("恢复轮询游标失败: %w", err)
	}
	return b, nil
}

// Run 长轮询主循环，ctx 取消后保存游标退出
func (b *Bridge) Run(ctx context.Context) error {
	logger.Infof("Telegram 命令桥启动，游标 offset=%d", b.Cursor.Offset)

	for {
		select {
		case <-ctx.Done():
			b.saveCursor()
			return ctx.Err()
		default:
		}

		updates, err := b.client.GetUpdates(ctx, b.Cursor.Offset, 30)
		if err != nil {
			if ctx.Err() != nil {
				b.saveCursor()
				return ctx.Err()
			}
			wait := b.backoff.Next()
			logger.Warnf("拉取更新失败，%s 后重试: %v", wait.Round(time.Millisecond), err)
			select {
			case <-ctx.Done():
				b.saveCursor()
				return ctx.Err()
			case <-time.After(wait):
			}
			continue
		}
		b.backoff.Reset()

		for _, u := range updates {
			if u.UpdateID >= b.Cursor.Offset {
				b.Cursor.Offset = u.UpdateID + 1
			}
			b.handleUpdate(ctx, u)
		}
		if len(updates) > 0 {
			b.saveCursor()
		}

		select {
		case <-ctx.Done():
			b.saveCursor()
			return ctx.Err()
		case <-time.After(b.pollInterval):
		}
	}
}

func (b *Bridge) saveCursor() {
	if err := persistence.SaveFields(b, "telegram", b.persist); err != nil {
		logger.Warnf("保存轮询游标失败: %v", err)
	}
}

func (b *Bridge) handleUpdate(ctx context.Context, u Update) {
	if u.Message == nil || u.Message.Text == "" {
		return
	}
	// 只接受绑定会话的指令
	if b.chatID != 0 && u.Message.Chat.ID != b.chatID {
		logger.Warnf("忽略来自未绑定会话 %d 的消息", u.Message.Chat.ID)
		return
	}

	text := strings.TrimSpace(u.Message.Text)
	switch {
	case strings.HasPrefix(text, "/bet"):
		b.handleBet(ctx, text)
	case text == "/start" || text == "/help":
		b.notifier.Notify(ctx, "用法: /bet <钱包序号>/<USDT数量>/<up|down>")
	default:
		logger.Debugf("忽略未知指令: %s", text)
	}
}

// BetCommand 解析后的下注指令
type BetCommand struct {
	WalletIndex int
	AmountUSDT  decimal.Decimal
	Dir         domain.Direction
}

// ParseBetCommand 解析 "/bet <序号>/<USDT数量>/<up|down>"
func ParseBetCommand(text string) (*BetCommand, error) {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) != 2 || fields[0] != "/bet" {
		return nil, fmt.Errorf("%w: 格式应为 /bet <序号>/<数量>/<up|down>", domain.ErrValidation)
	}

	parts := strings.Split(fields[1], "/")
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: 格式应为 /bet <序号>/<数量>/<up|down>", domain.ErrValidation)
	}

	var index int
	if _, err := fmt.Sscanf(parts[0], "%d", &index); err != nil || index < 1 {
		return nil, fmt.Errorf("%w: 钱包序号非法 %q", domain.ErrValidation, parts[0])
	}

	amount, err := decimal.NewFromString(parts[1])
	if err != nil || amount.Sign() <= 0 {
		return nil, fmt.Errorf("%w: USDT数量非法 %q", domain.ErrValidation, parts[1])
	}

	dir, err := domain.ParseDirection(parts[2])
	if err != nil {
		return nil, err
	}

	return &BetCommand{WalletIndex: index, AmountUSDT: amount, Dir: dir}, nil
}

func (b *Bridge) handleBet(ctx context.Context, text string) {
	// 格式不对的指令只记日志，不回消息
	cmd, err := ParseBetCommand(text)
	if err != nil {
		logger.Debugf("忽略无法解析的指令 %q: %v", text, err)
		return
	}

	w, err := b.wallets.Get(cmd.WalletIndex)
	if err != nil {
		b.notifier.Notifyf(ctx, "❌ %v", err)
		return
	}

	logger.Infof("执行指令：主钱包兑换 %s USDT 打给钱包#%d 后下注 %s", cmd.AmountUSDT, cmd.WalletIndex, cmd.Dir)

	if _, err := b.swapper.SwapStableToNative(ctx, b.main, cmd.AmountUSDT, w.Addr()); err != nil {
		logger.Errorf("兑换失败: %v", err)
		b.notifier.Notifyf(ctx, "❌ 兑换失败: %v", err)
		return
	}

	if err := b.wallets.RefreshOne(ctx, w); err != nil {
		logger.Warnf("刷新余额失败，按上次余额继续: %v", err)
	}

	betAmount := w.BalanceBNB.Mul(betPortion)
	// 余额很小时 95% 可能吃掉 gas 预留，再压一次上限
	if limit := betting.MaxBetAmount(domain.ToWei(w.BalanceBNB)); betAmount.GreaterThan(limit) {
		betAmount = limit
	}
	if betAmount.Sign() <= 0 {
		logger.Warnf("钱包#%d 兑换后余额不足以覆盖 gas 预留，放弃下注", cmd.WalletIndex)
		b.notifier.Notifyf(ctx, "❌ 钱包 %s 余额不足以下注", w.Address)
		return
	}
	result, err := b.bettor.Bet(ctx, w, cmd.Dir, betAmount)
	if err != nil {
		logger.Errorf("下注失败: %v", err)
		b.notifier.Notifyf(ctx, "❌ 下注失败: %v", err)
		return
	}

	if b.recorder != nil {
		if err := b.recorder.RecordBet(w.Address, result.Epoch.Uint64(), result.Dir.String(), result.Amount, result.TxHash); err != nil {
			logger.Warnf("记录下注历史失败: %v", err)
		}
	}

	b.notifier.Notifyf(ctx, "✅ 第 %s 轮已下注 %s：%s BNB\n钱包: %s\n交易: %s",
		result.Epoch, result.Dir, result.Amount, w.Address, result.TxHash)
}
