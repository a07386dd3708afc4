package chain

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/betbot/predictbot/internal/domain"
)

// fakeBackend 内存替身：nonce 自增、回执可编程
type fakeBackend struct {
	mu       sync.Mutex
	balances map[common.Address]*big.Int
	callFn   func(to common.Address, data []byte) ([]byte, error)
	nonce    uint64
	sent     []*ethtypes.Transaction

	receiptStatus uint64
	neverMine     bool
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		balances:      make(map[common.Address]*big.Int),
		receiptStatus: ethtypes.ReceiptStatusSuccessful,
	}
}

func (f *fakeBackend) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.balances[account]; ok {
		return new(big.Int).Set(b), nil
	}
	return big.NewInt(0), nil
}

func (f *fakeBackend) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	if f.callFn == nil {
		return nil, errors.New("no view handler")
	}
	return f.callFn(*msg.To, msg.Data)
}

func (f *fakeBackend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nonce, nil
}

func (f *fakeBackend) SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, tx)
	f.nonce++
	return nil
}

func (f *fakeBackend) TransactionReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error) {
	if f.neverMine {
		return nil, ethereum.NotFound
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, tx := range f.sent {
		if tx.Hash() == txHash {
			return &ethtypes.Receipt{Status: f.receiptStatus, TxHash: txHash, GasUsed: 21000}, nil
		}
	}
	return nil, ethereum.NotFound
}

func testClient(f *fakeBackend) *Client {
	return New(f, Options{
		ChainID:        big.NewInt(56),
		GasPrice:       big.NewInt(100000000), // 0.1 gwei
		ConfirmTimeout: 500 * time.Millisecond,
		PollInterval:   5 * time.Millisecond,
	})
}

func TestSendAndWaitSuccess(t *testing.T) {
	f := newFakeBackend()
	c := testClient(f)
	key, _ := crypto.GenerateKey()

	receipt, err := c.SendAndWait(context.Background(), key, common.HexToAddress("0x1"), big.NewInt(1), 21000, nil)
	if err != nil {
		t.Fatalf("SendAndWait: %v", err)
	}
	if receipt.Status != ethtypes.ReceiptStatusSuccessful {
		t.Fatalf("status = %d", receipt.Status)
	}
	if len(f.sent) != 1 {
		t.Fatalf("sent %d txs, want 1", len(f.sent))
	}
}

func TestSendAndWaitReverted(t *testing.T) {
	f := newFakeBackend()
	f.receiptStatus = ethtypes.ReceiptStatusFailed
	c := testClient(f)
	key, _ := crypto.GenerateKey()

	_, err := c.SendAndWait(context.Background(), key, common.HexToAddress("0x1"), big.NewInt(1), 21000, nil)
	if !errors.Is(err, domain.ErrTxReverted) {
		t.Fatalf("err = %v, want ErrTxReverted", err)
	}
}

func TestSendAndWaitConfirmationTimeout(t *testing.T) {
	f := newFakeBackend()
	f.neverMine = true
	c := New(f, Options{
		ChainID:        big.NewInt(56),
		GasPrice:       big.NewInt(100000000),
		ConfirmTimeout: 30 * time.Millisecond,
		PollInterval:   5 * time.Millisecond,
	})
	key, _ := crypto.GenerateKey()

	_, err := c.SendAndWait(context.Background(), key, common.HexToAddress("0x1"), big.NewInt(1), 21000, nil)
	if !errors.Is(err, domain.ErrConfirmationTimeout) {
		t.Fatalf("err = %v, want ErrConfirmationTimeout", err)
	}
	// 超时不等于回滚
	if errors.Is(err, domain.ErrTxReverted) {
		t.Fatalf("timeout should not match ErrTxReverted")
	}
}

// 同一地址并发提交时 nonce 必须不重不漏
func TestNonceSerializedPerAddress(t *testing.T) {
	f := newFakeBackend()
	c := testClient(f)
	key, _ := crypto.GenerateKey()

	const n = 8
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			if _, err := c.SendAndWait(context.Background(), key, common.HexToAddress("0x2"), big.NewInt(1), 21000, nil); err != nil {
				t.Errorf("SendAndWait: %v", err)
			}
		}()
	}
	wg.Wait()

	seen := make(map[uint64]bool)
	for _, tx := range f.sent {
		if seen[tx.Nonce()] {
			t.Fatalf("nonce %d 被重复使用", tx.Nonce())
		}
		seen[tx.Nonce()] = true
	}
	for i := uint64(0); i < n; i++ {
		if !seen[i] {
			t.Fatalf("nonce %d 缺失", i)
		}
	}
}

func TestNativeBalance(t *testing.T) {
	f := newFakeBackend()
	addr := common.HexToAddress("0xabc")
	f.balances[addr] = big.NewInt(1500000000000000000) // 1.5 BNB
	c := testClient(f)

	got, err := c.NativeBalance(context.Background(), addr)
	if err != nil {
		t.Fatalf("NativeBalance: %v", err)
	}
	if domain.FromWei(got).String() != "1.5" {
		t.Fatalf("balance = %s, want 1.5", domain.FromWei(got))
	}
}
