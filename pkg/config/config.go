package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ChainConfig 链相关配置
type ChainConfig struct {
	RPCURL          string  `yaml:"rpc_url" json:"rpc_url"`
	ChainID         int64   `yaml:"chain_id" json:"chain_id"`
	GasPriceGwei    float64 `yaml:"gas_price_gwei" json:"gas_price_gwei"`
	ConfirmTimeout  int     `yaml:"confirm_timeout" json:"confirm_timeout"`   // 交易确认超时（秒）
	ConfirmInterval int     `yaml:"confirm_interval" json:"confirm_interval"` // 回执轮询间隔（秒）
}

// ContractsConfig 合约地址配置
type ContractsConfig struct {
	Prediction string `yaml:"prediction" json:"prediction"`
	Stable     string `yaml:"stable" json:"stable"`
	Router     string `yaml:"router" json:"router"`
	WrappedBNB string `yaml:"wrapped_bnb" json:"wrapped_bnb"`
}

// TelegramConfig Telegram 配置
type TelegramConfig struct {
	BotToken     string `yaml:"bot_token" json:"bot_token"`
	ChatID       int64  `yaml:"chat_id" json:"chat_id"`
	PollInterval int    `yaml:"poll_interval" json:"poll_interval"` // 轮询最小间隔（秒）
}

// ServerConfig 状态查询服务配置
type ServerConfig struct {
	Enabled    bool   `yaml:"enabled" json:"enabled"`
	ListenAddr string `yaml:"listen_addr" json:"listen_addr"`
	DBPath     string `yaml:"db_path" json:"db_path"`
}

// Config 应用配置
type Config struct {
	Chain     ChainConfig     `yaml:"chain" json:"chain"`
	Contracts ContractsConfig `yaml:"contracts" json:"contracts"`
	Telegram  TelegramConfig  `yaml:"telegram" json:"telegram"`
	Server    ServerConfig    `yaml:"server" json:"server"`

	DataDir         string `yaml:"data_dir" json:"data_dir"`                   // 钱包档案与状态目录
	SecretStorePath string `yaml:"secret_store_path" json:"secret_store_path"` // Badger 密钥库目录
	ClaimScanWindow uint64 `yaml:"claim_scan_window" json:"claim_scan_window"` // 领奖扫描回溯局数

	LogLevel string `yaml:"log_level" json:"log_level"`
	LogFile  string `yaml:"log_file" json:"log_file"`
}

// BSC 主网默认值
const (
	DefaultRPCURL          = "https://bsc-dataseed.binance.org/"
	DefaultChainID         = 56
	DefaultGasPriceGwei    = 0.1
	DefaultPredictionAddr  = "0x18B2A687610328590Bc8F2e5fEdDe3b582A49cdA"
	DefaultStableAddr      = "0x55d398326f99059fF775485246999027B3197955"
	DefaultRouterAddr      = "0x10ED43C718714eb63d5aA57B78B54704E256024E"
	DefaultWrappedBNBAddr  = "0xbb4CdB9CBd36B01bD1cBaEBF2De08d9173bc095c"
	DefaultClaimScanWindow = 5
)

// Load 加载配置：配置文件（YAML/JSON，可选）打底，环境变量覆盖，最后补默认值
func Load(filePath string) (*Config, error) {
	cfg := &Config{}

	if filePath != "" {
		if err := loadFile(filePath, cfg); err != nil {
			return nil, fmt.Errorf("加载配置文件失败 %s: %w", filePath, err)
		}
	}

	applyEnv(cfg)
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("配置验证失败: %w", err)
	}
	return cfg, nil
}

func loadFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("读取配置文件失败: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(filePath)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("解析 YAML 配置文件失败: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("解析 JSON 配置文件失败: %w", err)
		}
	default:
		return fmt.Errorf("不支持的配置文件格式: %s (支持 .yaml, .yml, .json)", ext)
	}
	return nil
}

// applyEnv 环境变量覆盖（godotenv 在 main 中先行加载 .env）
func applyEnv(cfg *Config) {
	setStr(&cfg.Chain.RPCURL, "BSC_RPC_URL")
	setInt64(&cfg.Chain.ChainID, "BSC_CHAIN_ID")
	setFloat(&cfg.Chain.GasPriceGwei, "GAS_PRICE_GWEI")
	setInt(&cfg.Chain.ConfirmTimeout, "TX_CONFIRM_TIMEOUT")
	setInt(&cfg.Chain.ConfirmInterval, "TX_CONFIRM_INTERVAL")

	setStr(&cfg.Contracts.Prediction, "PREDICTION_CONTRACT")
	setStr(&cfg.Contracts.Stable, "STABLE_CONTRACT")
	setStr(&cfg.Contracts.Router, "ROUTER_CONTRACT")
	setStr(&cfg.Contracts.WrappedBNB, "WBNB_CONTRACT")

	setStr(&cfg.Telegram.BotToken, "TELEGRAM_BOT_TOKEN")
	setInt64(&cfg.Telegram.ChatID, "TELEGRAM_CHAT_ID")
	setInt(&cfg.Telegram.PollInterval, "TELEGRAM_POLL_INTERVAL")

	setStr(&cfg.Server.ListenAddr, "SERVER_LISTEN_ADDR")
	setStr(&cfg.Server.DBPath, "SERVER_DB_PATH")
	if v := os.Getenv("SERVER_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Server.Enabled = b
		}
	}

	setStr(&cfg.DataDir, "DATA_DIR")
	setStr(&cfg.SecretStorePath, "SECRET_STORE_PATH")
	if v := os.Getenv("CLAIM_SCAN_WINDOW"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil && n > 0 {
			cfg.ClaimScanWindow = n
		}
	}

	setStr(&cfg.LogLevel, "LOG_LEVEL")
	setStr(&cfg.LogFile, "LOG_FILE")
}

func applyDefaults(cfg *Config) {
	if cfg.Chain.RPCURL == "" {
		cfg.Chain.RPCURL = DefaultRPCURL
	}
	if cfg.Chain.ChainID == 0 {
		cfg.Chain.ChainID = DefaultChainID
	}
	if cfg.Chain.GasPriceGwei <= 0 {
		cfg.Chain.GasPriceGwei = DefaultGasPriceGwei
	}
	if cfg.Chain.ConfirmTimeout <= 0 {
		cfg.Chain.ConfirmTimeout = 120
	}
	if cfg.Chain.ConfirmInterval <= 0 {
		cfg.Chain.ConfirmInterval = 2
	}

	if cfg.Contracts.Prediction == "" {
		cfg.Contracts.Prediction = DefaultPredictionAddr
	}
	if cfg.Contracts.Stable == "" {
		cfg.Contracts.Stable = DefaultStableAddr
	}
	if cfg.Contracts.Router == "" {
		cfg.Contracts.Router = DefaultRouterAddr
	}
	if cfg.Contracts.WrappedBNB == "" {
		cfg.Contracts.WrappedBNB = DefaultWrappedBNBAddr
	}

	if cfg.Telegram.PollInterval <= 0 {
		cfg.Telegram.PollInterval = 2
	}

	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8822"
	}
	if cfg.Server.DBPath == "" {
		cfg.Server.DBPath = "data/history.db"
	}

	if cfg.DataDir == "" {
		cfg.DataDir = "data"
	}
	if cfg.SecretStorePath == "" {
		cfg.SecretStorePath = "data/secrets"
	}
	if cfg.ClaimScanWindow == 0 {
		cfg.ClaimScanWindow = DefaultClaimScanWindow
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.LogFile == "" {
		cfg.LogFile = "logs/predictbot.log"
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.Chain.RPCURL == "" {
		return fmt.Errorf("BSC_RPC_URL 未配置")
	}
	if c.Chain.ChainID <= 0 {
		return fmt.Errorf("BSC_CHAIN_ID 必须大于 0")
	}
	for name, addr := range map[string]string{
		"prediction":  c.Contracts.Prediction,
		"stable":      c.Contracts.Stable,
		"router":      c.Contracts.Router,
		"wrapped_bnb": c.Contracts.WrappedBNB,
	} {
		if !isHexAddress(addr) {
			return fmt.Errorf("合约地址 %s 非法: %q", name, addr)
		}
	}
	return nil
}

func isHexAddress(s string) bool {
	if !strings.HasPrefix(s, "0x") || len(s) != 42 {
		return false
	}
	for _, r := range s[2:] {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}
