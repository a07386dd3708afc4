package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/betbot/predictbot/internal/domain"
	"github.com/betbot/predictbot/pkg/logger"
)

// Backend 链交互所需的最小 RPC 原语集合
// *ethclient.Client 天然实现；测试中用内存替身
type Backend interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error)
}

// Options 链客户端参数
type Options struct {
	ChainID        *big.Int
	GasPrice       *big.Int      // 固定 gas 价格（不随行情调整）
	ConfirmTimeout time.Duration // 等待回执的上限，超过则报 ErrConfirmationTimeout
	PollInterval   time.Duration // 回执轮询间隔
}

// Client 链客户端
// 关键约束：同一地址的 nonce 获取与交易提交必须串行，
// 交互菜单与远程命令两条路径并发作用于同一钱包时靠 addrLocks 保证不冲突
type Client struct {
	backend Backend
	opts    Options

	mu        sync.Mutex
	addrLocks map[common.Address]*sync.Mutex
}

// Dial 连接 RPC 节点
func Dial(rpcURL string, opts Options) (*Client, error) {
	ec, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("连接RPC节点失败: %w", err)
	}
	return New(ec, opts), nil
}

// New 用给定 backend 创建客户端（测试入口）
func New(backend Backend, opts Options) *Client {
	if opts.ConfirmTimeout <= 0 {
		opts.ConfirmTimeout = 120 * time.Second
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	return &Client{
		backend:   backend,
		opts:      opts,
		addrLocks: make(map[common.Address]*sync.Mutex),
	}
}

// GasPrice 返回固定 gas 价格
func (c *Client) GasPrice() *big.Int {
	return new(big.Int).Set(c.opts.GasPrice)
}

// lockAddr 获取某地址的提交锁
func (c *Client) lockAddr(addr common.Address) func() {
	c.mu.Lock()
	l, ok := c.addrLocks[addr]
	if !ok {
		l = &sync.Mutex{}
		c.addrLocks[addr] = l
	}
	c.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// NativeBalance 查询原生币余额（wei）
func (c *Client) NativeBalance(ctx context.Context, addr common.Address) (*big.Int, error) {
	return c.backend.BalanceAt(ctx, addr, nil)
}

// CallView 调用合约 view 函数并解包返回值
func (c *Client) CallView(ctx context.Context, to common.Address, cabi abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	data, err := cabi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("打包%s参数失败: %w", method, err)
	}
	result, err := c.backend.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("调用%s失败: %w", method, err)
	}
	out, err := cabi.Unpack(method, result)
	if err != nil {
		return nil, fmt.Errorf("解析%s结果失败: %w", method, err)
	}
	return out, nil
}

// SendAndWait 签名、提交并阻塞等待回执
// nonce 获取到提交完成之间持有 from 地址的锁，保证同地址 nonce 严格递增且无空洞；
// 等待阶段不再持锁（交易已进入交易池，后续 PendingNonceAt 会返回已递增的值）
func (c *Client) SendAndWait(ctx context.Context, key *ecdsa.PrivateKey, to common.Address, value *big.Int, gasLimit uint64, data []byte) (*ethtypes.Receipt, error) {
	from := crypto.PubkeyToAddress(key.PublicKey)

	hash, err := func() (common.Hash, error) {
		unlock := c.lockAddr(from)
		defer unlock()

		nonce, err := c.backend.PendingNonceAt(ctx, from)
		if err != nil {
			return common.Hash{}, fmt.Errorf("获取nonce失败: %w", err)
		}

		tx := ethtypes.NewTransaction(nonce, to, value, gasLimit, c.GasPrice(), data)
		signedTx, err := ethtypes.SignTx(tx, ethtypes.NewEIP155Signer(c.opts.ChainID), key)
		if err != nil {
			return common.Hash{}, fmt.Errorf("签名交易失败: %w", err)
		}
		if err := c.backend.SendTransaction(ctx, signedTx); err != nil {
			return common.Hash{}, fmt.Errorf("发送交易失败: %w", err)
		}
		return signedTx.Hash(), nil
	}()
	if err != nil {
		return nil, err
	}

	logger.Infof("交易已发送: %s（等待确认）", hash.Hex())
	return c.WaitMined(ctx, hash)
}

// WaitMined 轮询回执直到确认、回滚或超时
func (c *Client) WaitMined(ctx context.Context, hash common.Hash) (*ethtypes.Receipt, error) {
	deadline := time.Now().Add(c.opts.ConfirmTimeout)
	ticker := time.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.backend.TransactionReceipt(ctx, hash)
		if err == nil && receipt != nil {
			if receipt.Status != ethtypes.ReceiptStatusSuccessful {
				return receipt, fmt.Errorf("%w: tx=%s", domain.ErrTxReverted, hash.Hex())
			}
			return receipt, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			logger.Debugf("查询交易回执失败: %v（继续等待）", err)
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: tx=%s", domain.ErrConfirmationTimeout, hash.Hex())
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
