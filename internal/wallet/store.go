package wallet

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	hdwallet "github.com/miguelmota/go-ethereum-hdwallet"
	"github.com/shopspring/decimal"

	"github.com/betbot/predictbot/internal/chain"
	"github.com/betbot/predictbot/internal/domain"
	"github.com/betbot/predictbot/pkg/logger"
	"github.com/betbot/predictbot/pkg/persistence"
)

// Store 子钱包仓库：负责创建、删除、列举子钱包，并整体持久化到 JSON 档案
// 写路径由 mu 串行化；余额刷新失败时保留上一次的数值（宁可显示陈旧数据也不清零）
type Store struct {
	mu      sync.Mutex
	wallets []*domain.Wallet

	store  persistence.Store
	chain  *chain.Client
	stable *chain.ERC20
}

// NewStore 创建钱包仓库并加载已有档案
func NewStore(svc persistence.Service, c *chain.Client, stable *chain.ERC20) (*Store, error) {
	s := &Store{
		store:  svc.NewStore("predictbot", "wallets", "records"),
		chain:  c,
		stable: stable,
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	var records []*domain.Wallet
	if err := s.store.Load(&records); err != nil {
		if err == persistence.ErrNotExists {
			return nil
		}
		return fmt.Errorf("%w: 加载钱包档案失败: %v", domain.ErrPersistence, err)
	}
	s.wallets = records
	logger.Infof("已加载 %d 个子钱包", len(records))
	return nil
}

// save 调用方必须持有 s.mu
func (s *Store) save() error {
	if err := s.store.Save(s.wallets); err != nil {
		return fmt.Errorf("%w: 保存钱包档案失败: %v", domain.ErrPersistence, err)
	}
	return nil
}

// Create 生成一个全新密钥的子钱包并立即落盘
// 落盘失败时钱包仍留在内存（密钥已经生成，丢弃等于丢钱），随错误一并返回，调用方负责重试持久化
func (s *Store) Create(name string) (*domain.Wallet, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("生成密钥失败: %w", err)
	}

	w := &domain.Wallet{
		ID:         uuid.NewString(),
		Name:       name,
		Address:    crypto.PubkeyToAddress(key.PublicKey).Hex(),
		PrivateKey: fmt.Sprintf("%x", crypto.FromECDSA(key)),
		CreatedAt:  time.Now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.wallets = append(s.wallets, w)
	if err := s.save(); err != nil {
		logger.Warnf("钱包 %s 已创建但落盘失败，待重试: %v", w.Address, err)
		return w, err
	}
	logger.Infof("创建子钱包 %s (%s)", w.Name, w.Address)
	return w, nil
}

// CreateFromMnemonic 从助记词按 BIP44 路径派生子钱包
// path 形如 "m/44'/60'/0'/0/3"，空串时使用账户 0
// 落盘失败时的行为同 Create：钱包留在内存并随错误返回
func (s *Store) CreateFromMnemonic(name, mnemonic, path string) (*domain.Wallet, error) {
	hw, err := hdwallet.NewFromMnemonic(mnemonic)
	if err != nil {
		return nil, fmt.Errorf("%w: 助记词非法: %v", domain.ErrValidation, err)
	}
	if path == "" {
		path = "m/44'/60'/0'/0/0"
	}
	dp, err := hdwallet.ParseDerivationPath(path)
	if err != nil {
		return nil, fmt.Errorf("%w: 派生路径非法: %v", domain.ErrValidation, err)
	}
	account, err := hw.Derive(dp, false)
	if err != nil {
		return nil, fmt.Errorf("派生账户失败: %w", err)
	}
	pkHex, err := hw.PrivateKeyHex(account)
	if err != nil {
		return nil, fmt.Errorf("导出私钥失败: %w", err)
	}

	w := &domain.Wallet{
		ID:         uuid.NewString(),
		Name:       name,
		Address:    account.Address.Hex(),
		PrivateKey: pkHex,
		CreatedAt:  time.Now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.wallets = append(s.wallets, w)
	if err := s.save(); err != nil {
		logger.Warnf("钱包 %s 已创建但落盘失败，待重试: %v", w.Address, err)
		return w, err
	}
	logger.Infof("从助记词派生子钱包 %s (%s)", w.Name, w.Address)
	return w, nil
}

// Delete 按序号删除子钱包（序号从 1 开始，对齐展示顺序）
// 删除不会转走余额，调用方应先排空钱包
func (s *Store) Delete(index int) (*domain.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 1 || index > len(s.wallets) {
		return nil, fmt.Errorf("%w: 序号 %d 超出范围 [1, %d]", domain.ErrInvalidIndex, index, len(s.wallets))
	}

	removed := s.wallets[index-1]
	backup := s.wallets
	s.wallets = append(append([]*domain.Wallet{}, s.wallets[:index-1]...), s.wallets[index:]...)
	if err := s.save(); err != nil {
		s.wallets = backup
		return nil, err
	}
	logger.Infof("删除子钱包 %s (%s)", removed.Name, removed.Address)
	return removed, nil
}

// Get 按序号取子钱包（序号从 1 开始）
func (s *Store) Get(index int) (*domain.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 1 || index > len(s.wallets) {
		return nil, fmt.Errorf("%w: 序号 %d 超出范围 [1, %d]", domain.ErrInvalidIndex, index, len(s.wallets))
	}
	return s.wallets[index-1], nil
}

// List 返回当前快照（切片副本，元素共享）
func (s *Store) List() []*domain.Wallet {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.Wallet, len(s.wallets))
	copy(out, s.wallets)
	return out
}

// Len 返回子钱包数量
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.wallets)
}

// RefreshBalances 逐个刷新链上余额并落盘
// 单个钱包查询失败不中断整体刷新，该钱包保留上次余额
func (s *Store) RefreshBalances(ctx context.Context) error {
	wallets := s.List()

	for _, w := range wallets {
		addr := common.HexToAddress(w.Address)

		if bnb, err := s.chain.NativeBalance(ctx, addr); err != nil {
			logger.Warnf("刷新 %s BNB 余额失败: %v", w.Address, err)
		} else {
			w.BalanceBNB = domain.FromWei(bnb)
		}

		if usdt, err := s.stable.BalanceOf(ctx, addr); err != nil {
			logger.Warnf("刷新 %s USDT 余额失败: %v", w.Address, err)
		} else {
			w.BalanceUSDT = domain.FromWei(usdt)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save()
}

// Balances 查询任意地址当前的 BNB 与 USDT 余额（不落盘）
func (s *Store) Balances(ctx context.Context, addr common.Address) (bnb, usdt decimal.Decimal, err error) {
	rawBNB, err := s.chain.NativeBalance(ctx, addr)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("查询 BNB 余额失败: %w", err)
	}
	rawUSDT, err := s.stable.BalanceOf(ctx, addr)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("查询 USDT 余额失败: %w", err)
	}
	return domain.FromWei(rawBNB), domain.FromWei(rawUSDT), nil
}

// RefreshOne 刷新单个钱包余额并落盘
func (s *Store) RefreshOne(ctx context.Context, w *domain.Wallet) error {
	addr := common.HexToAddress(w.Address)

	bnb, err := s.chain.NativeBalance(ctx, addr)
	if err != nil {
		return fmt.Errorf("查询 BNB 余额失败: %w", err)
	}
	usdt, err := s.stable.BalanceOf(ctx, addr)
	if err != nil {
		return fmt.Errorf("查询 USDT 余额失败: %w", err)
	}

	w.BalanceBNB = domain.FromWei(bnb)
	w.BalanceUSDT = domain.FromWei(usdt)

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save()
}
