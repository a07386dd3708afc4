package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/ethereum/go-ethereum/common"
	"github.com/olekukonko/tablewriter"
	"github.com/shopspring/decimal"

	"github.com/betbot/predictbot/internal/betting"
	"github.com/betbot/predictbot/internal/domain"
	"github.com/betbot/predictbot/internal/funds"
	"github.com/betbot/predictbot/internal/history"
	"github.com/betbot/predictbot/internal/reward"
	"github.com/betbot/predictbot/internal/swap"
	"github.com/betbot/predictbot/internal/telegram"
	"github.com/betbot/predictbot/internal/wallet"
	"github.com/betbot/predictbot/pkg/logger"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
)

// Console 交互式控制台：钱包管理、资金调度、下注、领奖的人工入口
type Console struct {
	in  *bufio.Reader
	out io.Writer

	main        *domain.Wallet
	wallets     *wallet.Store
	swapper     *swap.Engine
	bettor      *betting.Engine
	rewards     *reward.Engine
	distributor *funds.Distributor
	notifier    *telegram.Notifier
	hist        *history.Store
}

// Options Console 依赖项；Notifier 和 History 可为 nil
type Options struct {
	In          io.Reader
	Out         io.Writer
	MainWallet  *domain.Wallet
	Wallets     *wallet.Store
	Swapper     *swap.Engine
	Bettor      *betting.Engine
	Rewards     *reward.Engine
	Distributor *funds.Distributor
	Notifier    *telegram.Notifier
	History     *history.Store
}

// New 创建控制台
func New(opts Options) *Console {
	if opts.In == nil {
		opts.In = os.Stdin
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	return &Console{
		in:          bufio.NewReader(opts.In),
		out:         opts.Out,
		main:        opts.MainWallet,
		wallets:     opts.Wallets,
		swapper:     opts.Swapper,
		bettor:      opts.Bettor,
		rewards:     opts.Rewards,
		distributor: opts.Distributor,
		notifier:    opts.Notifier,
		hist:        opts.History,
	}
}

// Run 菜单主循环，ctx 取消或用户选择退出时返回
func (c *Console) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		c.printMenu()
		choice, err := c.readLine("请选择: ")
		if err != nil {
			return err
		}

		switch strings.TrimSpace(choice) {
		case "1":
			c.createWallet(ctx)
		case "2":
			c.listWallets(ctx)
		case "3":
			c.deleteWallet(ctx)
		case "4":
			c.distribute(ctx)
		case "5":
			c.drainAll(ctx)
		case "6":
			c.emptyWallet(ctx)
		case "7":
			c.manualBet(ctx)
		case "8":
			c.manualSwap(ctx)
		case "9":
			c.showClaimable(ctx)
		case "10":
			c.claimAll(ctx)
		case "11":
			c.mainBalance(ctx)
		case "0", "q":
			fmt.Fprintln(c.out, "再见")
			return nil
		default:
			fmt.Fprintln(c.out, warnStyle.Render("无效选项"))
		}
	}
}

func (c *Console) printMenu() {
	fmt.Fprintln(c.out)
	fmt.Fprintln(c.out, titleStyle.Render("===== 预测下注控制台 ====="))
	fmt.Fprintln(c.out, " 1. 创建子钱包")
	fmt.Fprintln(c.out, " 2. 查看钱包列表（刷新余额）")
	fmt.Fprintln(c.out, " 3. 删除子钱包")
	fmt.Fprintln(c.out, " 4. 分发资金（主钱包 -> 子钱包）")
	fmt.Fprintln(c.out, " 5. 归集资金（子钱包 -> 主钱包）")
	fmt.Fprintln(c.out, " 6. 清空钱包")
	fmt.Fprintln(c.out, " 7. 手动下注")
	fmt.Fprintln(c.out, " 8. 兑换（主钱包 USDT -> BNB / 子钱包 BNB -> USDT）")
	fmt.Fprintln(c.out, " 9. 查看可领取奖励")
	fmt.Fprintln(c.out, "10. 领取全部奖励")
	fmt.Fprintln(c.out, "11. 查看主钱包余额")
	fmt.Fprintln(c.out, " 0. 退出")
}

func (c *Console) readLine(prompt string) (string, error) {
	fmt.Fprint(c.out, prompt)
	line, err := c.in.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (c *Console) confirm(prompt string) bool {
	line, err := c.readLine(prompt + " [y/N]: ")
	if err != nil {
		return false
	}
	line = strings.ToLower(line)
	return line == "y" || line == "yes"
}

func (c *Console) readIndex(prompt string) (int, bool) {
	line, err := c.readLine(prompt)
	if err != nil {
		return 0, false
	}
	n, err := strconv.Atoi(line)
	if err != nil {
		fmt.Fprintln(c.out, warnStyle.Render("序号非法"))
		return 0, false
	}
	return n, true
}

func (c *Console) readAmount(prompt string) (decimal.Decimal, bool) {
	line, err := c.readLine(prompt)
	if err != nil {
		return decimal.Zero, false
	}
	amount, err := decimal.NewFromString(line)
	if err != nil || amount.Sign() <= 0 {
		fmt.Fprintln(c.out, warnStyle.Render("金额非法"))
		return decimal.Zero, false
	}
	return amount, true
}

func (c *Console) createWallet(ctx context.Context) {
	name, err := c.readLine("钱包名称: ")
	if err != nil {
		return
	}
	mnemonic, err := c.readLine("助记词（留空则生成全新密钥）: ")
	if err != nil {
		return
	}

	var w *domain.Wallet
	if mnemonic == "" {
		w, err = c.wallets.Create(name)
	} else {
		path, perr := c.readLine("派生路径（留空取 m/44'/60'/0'/0/0）: ")
		if perr != nil {
			return
		}
		w, err = c.wallets.CreateFromMnemonic(name, mnemonic, path)
	}
	if err != nil {
		// 落盘失败时钱包已在内存里，提示操作员而不是假装没创建
		if w != nil {
			fmt.Fprintln(c.out, warnStyle.Render(fmt.Sprintf("钱包已创建但落盘失败，重启前请先处理: %v", err)))
		} else {
			fmt.Fprintln(c.out, warnStyle.Render(fmt.Sprintf("创建失败: %v", err)))
			return
		}
	}
	fmt.Fprintln(c.out, okStyle.Render(fmt.Sprintf("已创建: %s (%s)", w.Name, w.Address)))
}

func (c *Console) listWallets(ctx context.Context) {
	if err := c.wallets.RefreshBalances(ctx); err != nil {
		fmt.Fprintln(c.out, warnStyle.Render(fmt.Sprintf("刷新余额失败: %v", err)))
	}

	list := c.wallets.List()
	if len(list) == 0 {
		fmt.Fprintln(c.out, "还没有子钱包")
		return
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("#", "名称", "地址", "BNB", "USDT")
	for i, w := range list {
		table.Append(
			strconv.Itoa(i+1),
			w.Name,
			w.Address,
			w.BalanceBNB.StringFixed(6),
			w.BalanceUSDT.StringFixed(2),
		)
	}
	table.Render()

	total := c.distributor.TotalSubWalletBalance(ctx, list)
	fmt.Fprintf(c.out, "子钱包 BNB 合计: %s\n", total.StringFixed(6))
}

func (c *Console) deleteWallet(ctx context.Context) {
	index, ok := c.readIndex("要删除的钱包序号: ")
	if !ok {
		return
	}
	if !c.confirm("删除不会转走余额，确认删除？") {
		return
	}
	w, err := c.wallets.Delete(index)
	if err != nil {
		fmt.Fprintln(c.out, warnStyle.Render(fmt.Sprintf("删除失败: %v", err)))
		return
	}
	fmt.Fprintln(c.out, okStyle.Render(fmt.Sprintf("已删除 %s (%s)", w.Name, w.Address)))
}

func (c *Console) distribute(ctx context.Context) {
	subs := c.wallets.List()
	sent, err := c.distributor.Distribute(ctx, c.main, subs, func(per decimal.Decimal, n int) bool {
		return c.confirm(fmt.Sprintf("将向 %d 个子钱包各转 %s BNB，确认？", n, per.StringFixed(6)))
	})
	if err != nil {
		fmt.Fprintln(c.out, warnStyle.Render(fmt.Sprintf("分发失败: %v", err)))
		return
	}
	fmt.Fprintln(c.out, okStyle.Render(fmt.Sprintf("分发完成：%d/%d 笔成功", sent, len(subs))))
	if sent > 0 {
		c.notifier.Notifyf(ctx, "💸 分发完成：%d/%d 笔成功", sent, len(subs))
	}
}

func (c *Console) drainAll(ctx context.Context) {
	if !c.confirm("将全部子钱包 BNB 归集回主钱包，确认？") {
		return
	}
	drained, total, err := c.distributor.DrainAll(ctx, c.wallets.List(), c.main.Addr())
	if err != nil {
		fmt.Fprintln(c.out, warnStyle.Render(fmt.Sprintf("归集失败: %v", err)))
		return
	}
	fmt.Fprintln(c.out, okStyle.Render(fmt.Sprintf("已归集 %d 个钱包，共 %s BNB", drained, domain.FromWei(total).StringFixed(6))))
	if drained > 0 {
		c.notifier.Notifyf(ctx, "📥 已归集 %d 个钱包，共 %s BNB", drained, domain.FromWei(total).StringFixed(6))
	}
}

func (c *Console) emptyWallet(ctx context.Context) {
	index, ok := c.readIndex("要清空的钱包序号: ")
	if !ok {
		return
	}
	w, err := c.wallets.Get(index)
	if err != nil {
		fmt.Fprintln(c.out, warnStyle.Render(err.Error()))
		return
	}
	destStr, err := c.readLine("目标地址（留空转回主钱包）: ")
	if err != nil {
		return
	}
	dest := c.main.Addr()
	if destStr != "" {
		if !common.IsHexAddress(destStr) {
			fmt.Fprintln(c.out, warnStyle.Render("目标地址非法"))
			return
		}
		dest = common.HexToAddress(destStr)
	}
	if !c.confirm(fmt.Sprintf("将把 %s 的全部 BNB 转到 %s，确认？", w.Address, dest.Hex())) {
		return
	}
	amount, err := c.distributor.EmptyWallet(ctx, w, dest)
	if err != nil {
		fmt.Fprintln(c.out, warnStyle.Render(fmt.Sprintf("清空失败: %v", err)))
		return
	}
	fmt.Fprintln(c.out, okStyle.Render(fmt.Sprintf("已转出 %s BNB", domain.FromWei(amount).StringFixed(6))))
}

func (c *Console) manualBet(ctx context.Context) {
	index, ok := c.readIndex("钱包序号: ")
	if !ok {
		return
	}
	w, err := c.wallets.Get(index)
	if err != nil {
		fmt.Fprintln(c.out, warnStyle.Render(err.Error()))
		return
	}
	dirStr, err := c.readLine("方向 (up/down): ")
	if err != nil {
		return
	}
	dir, err := domain.ParseDirection(dirStr)
	if err != nil {
		fmt.Fprintln(c.out, warnStyle.Render(err.Error()))
		return
	}
	amount, ok := c.readAmount("注额 (BNB): ")
	if !ok {
		return
	}
	if !c.confirm(fmt.Sprintf("对当前轮下注 %s：%s BNB，确认？", dir, amount)) {
		return
	}

	result, err := c.bettor.Bet(ctx, w, dir, amount)
	if err != nil {
		fmt.Fprintln(c.out, warnStyle.Render(fmt.Sprintf("下注失败: %v", err)))
		return
	}
	fmt.Fprintln(c.out, okStyle.Render(fmt.Sprintf("第 %s 轮下注成功，交易 %s", result.Epoch, result.TxHash)))

	if c.hist != nil {
		if err := c.hist.RecordBet(w.Address, result.Epoch.Uint64(), dir.String(), amount, result.TxHash); err != nil {
			logger.Warnf("记录下注历史失败: %v", err)
		}
	}
	c.notifier.Notifyf(ctx, "✅ 钱包 %s 第 %s 轮下注 %s：%s BNB", w.Address, result.Epoch, dir, amount)
}

func (c *Console) manualSwap(ctx context.Context) {
	dir, err := c.readLine("方向 (1=主钱包USDT->BNB, 2=子钱包BNB->USDT): ")
	if err != nil {
		return
	}

	switch dir {
	case "1":
		// 主钱包出 USDT，换出的 BNB 可以直接打给子钱包补仓
		recipient := c.main.Addr()
		line, rerr := c.readLine("接收钱包序号（留空打回主钱包）: ")
		if rerr != nil {
			return
		}
		if line != "" {
			index, aerr := strconv.Atoi(line)
			if aerr != nil {
				fmt.Fprintln(c.out, warnStyle.Render("序号非法"))
				return
			}
			w, gerr := c.wallets.Get(index)
			if gerr != nil {
				fmt.Fprintln(c.out, warnStyle.Render(gerr.Error()))
				return
			}
			recipient = w.Addr()
		}
		amount, ok := c.readAmount("数量 (USDT): ")
		if !ok {
			return
		}
		_, err = c.swapper.SwapStableToNative(ctx, c.main, amount, recipient)
	case "2":
		index, ok := c.readIndex("钱包序号: ")
		if !ok {
			return
		}
		w, gerr := c.wallets.Get(index)
		if gerr != nil {
			fmt.Fprintln(c.out, warnStyle.Render(gerr.Error()))
			return
		}
		amount, ok := c.readAmount("数量 (BNB): ")
		if !ok {
			return
		}
		_, err = c.swapper.SwapNativeToStable(ctx, w, amount)
	default:
		fmt.Fprintln(c.out, warnStyle.Render("无效方向"))
		return
	}
	if err != nil {
		fmt.Fprintln(c.out, warnStyle.Render(fmt.Sprintf("兑换失败: %v", err)))
		return
	}
	fmt.Fprintln(c.out, okStyle.Render("兑换成功"))
}

func (c *Console) showClaimable(ctx context.Context) {
	list := c.wallets.List()
	if len(list) == 0 {
		fmt.Fprintln(c.out, "还没有子钱包")
		return
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("钱包", "轮次", "方向", "注额(BNB)", "预估奖励(BNB)")
	found := false
	for i, w := range list {
		entries, err := c.rewards.ScanClaimable(ctx, w)
		if err != nil {
			logger.Warnf("扫描 %s 可领取失败: %v", w.Address, err)
			continue
		}
		for _, en := range entries {
			found = true
			table.Append(
				fmt.Sprintf("#%d %s", i+1, w.Name),
				strconv.FormatUint(en.Epoch, 10),
				en.Position.String(),
				domain.FromWei(en.BetAmount).StringFixed(6),
				domain.FromWei(en.Reward).StringFixed(6),
			)
		}
	}
	if !found {
		fmt.Fprintln(c.out, "没有可领取的奖励")
		return
	}
	table.Render()
}

func (c *Console) claimAll(ctx context.Context) {
	if !c.confirm("扫描并领取全部子钱包的奖励，确认？") {
		return
	}
	for i, w := range c.wallets.List() {
		result, err := c.rewards.ScanAndClaim(ctx, w)
		if err != nil {
			fmt.Fprintln(c.out, warnStyle.Render(fmt.Sprintf("钱包#%d 领取失败: %v", i+1, err)))
			continue
		}
		if result == nil {
			continue
		}
		if len(result.Failed) > 0 {
			fmt.Fprintln(c.out, warnStyle.Render(fmt.Sprintf("钱包#%d 有 %d 轮领取失败: %v", i+1, len(result.Failed), result.Failed)))
		}
		if len(result.Claimed) == 0 {
			// 复核时已被领走，不算失败
			fmt.Fprintf(c.out, "钱包#%d 本轮无实际领取（%d 轮已不可领）\n", i+1, len(result.Skipped))
			continue
		}
		fmt.Fprintln(c.out, okStyle.Render(fmt.Sprintf(
			"钱包#%d 领取 %d 轮，约 %s BNB",
			i+1, len(result.Claimed), domain.FromWei(result.Reward).StringFixed(6))))

		if c.hist != nil {
			for _, ce := range result.Claimed {
				if err := c.hist.RecordClaim(w.Address, []uint64{ce.Epoch}, domain.FromWei(ce.Reward), ce.TxHash); err != nil {
					logger.Warnf("记录领奖历史失败: %v", err)
				}
			}
		}
		c.notifier.Notifyf(ctx, "🎁 钱包 %s 领取 %d 轮奖励，约 %s BNB",
			w.Address, len(result.Claimed), domain.FromWei(result.Reward).StringFixed(6))
	}
}

func (c *Console) mainBalance(ctx context.Context) {
	bnb, usdt, err := c.wallets.Balances(ctx, c.main.Addr())
	if err != nil {
		fmt.Fprintln(c.out, warnStyle.Render(fmt.Sprintf("查询失败: %v", err)))
		return
	}
	fmt.Fprintf(c.out, "主钱包 %s\n  BNB:  %s\n  USDT: %s\n",
		c.main.Address, bnb.StringFixed(6), usdt.StringFixed(2))
}
