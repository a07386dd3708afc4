package main

import (
	"context"
	"flag"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/betbot/predictbot/internal/betting"
	"github.com/betbot/predictbot/internal/chain"
	"github.com/betbot/predictbot/internal/console"
	"github.com/betbot/predictbot/internal/controlplane/server"
	"github.com/betbot/predictbot/internal/domain"
	"github.com/betbot/predictbot/internal/funds"
	"github.com/betbot/predictbot/internal/history"
	"github.com/betbot/predictbot/internal/reward"
	"github.com/betbot/predictbot/internal/swap"
	"github.com/betbot/predictbot/internal/telegram"
	"github.com/betbot/predictbot/internal/wallet"
	"github.com/betbot/predictbot/pkg/config"
	"github.com/betbot/predictbot/pkg/logger"
	"github.com/betbot/predictbot/pkg/persistence"
	"github.com/betbot/predictbot/pkg/secretstore"
	"github.com/betbot/predictbot/pkg/shutdown"
	"github.com/betbot/predictbot/pkg/syncgroup"
)

func main() {
	configPath := flag.String("config", "", "配置文件路径（支持 .yaml, .yml, .json）")
	envPath := flag.String("env", ".env", ".env 文件路径")
	flag.Parse()

	// .env 不存在不是错误，环境变量可能由外部注入
	if err := godotenv.Load(*envPath); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "加载 .env 失败: %v\n", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(logger.Config{Level: cfg.LogLevel, OutputFile: cfg.LogFile}); err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg); err != nil && err != context.Canceled {
		logger.Errorf("运行失败: %v", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	secrets, err := openSecrets(cfg)
	if err != nil {
		return err
	}
	if secrets != nil {
		defer secrets.Close()
	}

	mainKey := resolveSecret(secrets, "MAIN_WALLET_PRIVATE_KEY")
	if mainKey == "" {
		return fmt.Errorf("MAIN_WALLET_PRIVATE_KEY 未配置（环境变量或密钥库）")
	}
	mainWallet := &domain.Wallet{Name: "main", PrivateKey: mainKey}
	key, err := mainWallet.Key()
	if err != nil {
		return fmt.Errorf("主钱包私钥非法: %w", err)
	}
	mainWallet.Address = crypto.PubkeyToAddress(key.PublicKey).Hex()

	chainClient, err := chain.Dial(cfg.Chain.RPCURL, chain.Options{
		ChainID:        big.NewInt(cfg.Chain.ChainID),
		GasPrice:       domain.Gwei(decimal.NewFromFloat(cfg.Chain.GasPriceGwei)),
		ConfirmTimeout: time.Duration(cfg.Chain.ConfirmTimeout) * time.Second,
		PollInterval:   time.Duration(cfg.Chain.ConfirmInterval) * time.Second,
	})
	if err != nil {
		return err
	}

	stable, err := chain.NewERC20(chainClient, common.HexToAddress(cfg.Contracts.Stable))
	if err != nil {
		return err
	}
	router, err := chain.NewRouter(chainClient, common.HexToAddress(cfg.Contracts.Router))
	if err != nil {
		return err
	}
	prediction, err := chain.NewPrediction(chainClient, common.HexToAddress(cfg.Contracts.Prediction))
	if err != nil {
		return err
	}

	persist := persistence.NewJSONFileService(cfg.DataDir)
	wallets, err := wallet.NewStore(persist, chainClient, stable)
	if err != nil {
		return err
	}

	swapper := swap.NewEngine(chainClient, router, stable,
		common.HexToAddress(cfg.Contracts.Stable), common.HexToAddress(cfg.Contracts.WrappedBNB))
	bettor := betting.NewEngine(chainClient, prediction)
	rewards := reward.NewEngine(prediction, cfg.ClaimScanWindow)
	distributor := funds.NewDistributor(chainClient)

	hist, err := history.New(cfg.Server.DBPath)
	if err != nil {
		return err
	}

	sd := shutdown.NewManager()
	sd.OnShutdown(func(ctx context.Context) { _ = hist.Close() })

	sg := syncgroup.NewSyncGroup()

	// Telegram 命令桥：没配 token 就只留交互菜单
	var notifier *telegram.Notifier
	botToken := resolveSecret(secrets, "TELEGRAM_BOT_TOKEN")
	if botToken == "" {
		botToken = cfg.Telegram.BotToken
	}
	if botToken != "" {
		tgClient := telegram.NewClient(botToken)
		notifier = telegram.NewNotifier(tgClient, cfg.Telegram.ChatID)
		bridge, err := telegram.NewBridge(telegram.BridgeOptions{
			Client:       tgClient,
			Notifier:     notifier,
			MainWallet:   mainWallet,
			Wallets:      wallets,
			Swapper:      swapper,
			Bettor:       bettor,
			Recorder:     hist,
			ChatID:       cfg.Telegram.ChatID,
			PollInterval: time.Duration(cfg.Telegram.PollInterval) * time.Second,
			Persistence:  persist,
		})
		if err != nil {
			return err
		}
		sg.Add(func() {
			if err := bridge.Run(ctx); err != nil && err != context.Canceled {
				logger.Errorf("命令桥退出: %v", err)
			}
		})
	} else {
		logger.Info("未配置 TELEGRAM_BOT_TOKEN，远程命令桥未启用")
	}

	if cfg.Server.Enabled {
		srv := server.New(server.Config{ListenAddr: cfg.Server.ListenAddr}, wallets, hist)
		sd.OnShutdown(func(ctx context.Context) { _ = srv.Shutdown(ctx) })
		sg.Add(func() {
			if err := srv.Run(); err != nil {
				logger.Errorf("状态服务退出: %v", err)
			}
		})
	}

	sg.Run()

	ui := console.New(console.Options{
		MainWallet:  mainWallet,
		Wallets:     wallets,
		Swapper:     swapper,
		Bettor:      bettor,
		Rewards:     rewards,
		Distributor: distributor,
		Notifier:    notifier,
		History:     hist,
	})
	runErr := ui.Run(ctx)

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	sd.Shutdown(shutdownCtx)
	sg.Wait()

	return runErr
}

// openSecrets 打开加密密钥库；未配置加密密钥时跳过
func openSecrets(cfg *config.Config) (*secretstore.Store, error) {
	raw := os.Getenv("SECRET_STORE_KEY")
	keyBytes, err := secretstore.ParseKey(raw)
	if err != nil {
		return nil, fmt.Errorf("解析密钥库加密密钥失败: %w", err)
	}
	if keyBytes == nil {
		return nil, nil
	}
	return secretstore.Open(secretstore.OpenOptions{
		Path:          cfg.SecretStorePath,
		EncryptionKey: keyBytes,
	})
}

// resolveSecret 先查环境变量，再查密钥库 env/ 前缀
func resolveSecret(secrets *secretstore.Store, key string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	if secrets == nil {
		return ""
	}
	v, ok, err := secrets.GetString("env/" + key)
	if err != nil || !ok {
		return ""
	}
	return strings.TrimSpace(v)
}
