package funds

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
	"github.com/shopspring/decimal"

	"github.com/betbot/predictbot/internal/chain"
	"github.com/betbot/predictbot/internal/domain"
)

type transferBackend struct {
	mu       sync.Mutex
	balances map[common.Address]*big.Int
	sent     []*ethtypes.Transaction
	nonce    uint64
	failTo   common.Address // 发往该地址的交易返回错误
}

func newTransferBackend() *transferBackend {
	return &transferBackend{balances: make(map[common.Address]*big.Int)}
}

func (b *transferBackend) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if v, ok := b.balances[account]; ok {
		return new(big.Int).Set(v), nil
	}
	return big.NewInt(0), nil
}

func (b *transferBackend) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return nil, ethereum.NotFound
}

func (b *transferBackend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.nonce, nil
}

func (b *transferBackend) SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if tx.To() != nil && *tx.To() == b.failTo {
		return errors.New("node rejected tx")
	}
	b.sent = append(b.sent, tx)
	b.nonce++
	return nil
}

func (b *transferBackend) TransactionReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, tx := range b.sent {
		if tx.Hash() == txHash {
			return &ethtypes.Receipt{Status: ethtypes.ReceiptStatusSuccessful, TxHash: txHash, GasUsed: 21000}, nil
		}
	}
	return nil, ethereum.NotFound
}

func newTestDistributor(backend *transferBackend) *Distributor {
	return NewDistributor(chain.New(backend, chain.Options{
		ChainID:        big.NewInt(56),
		GasPrice:       big.NewInt(100000000),
		ConfirmTimeout: 500 * time.Millisecond,
		PollInterval:   5 * time.Millisecond,
	}))
}

func newFundedWallet(t *testing.T, backend *transferBackend, bnb string) *domain.Wallet {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	w := &domain.Wallet{
		Address:    crypto.PubkeyToAddress(key.PublicKey).Hex(),
		PrivateKey: common.Bytes2Hex(crypto.FromECDSA(key)),
	}
	amount, err := decimal.NewFromString(bnb)
	if err != nil {
		t.Fatalf("bad amount %q: %v", bnb, err)
	}
	backend.balances[w.Addr()] = domain.ToWei(amount)
	return w
}

func TestDistributeBelowMinimum(t *testing.T) {
	backend := newTransferBackend()
	d := newTestDistributor(backend)
	main := newFundedWallet(t, backend, "0.0005") // 低于 0.001 下限
	sub := newFundedWallet(t, backend, "0")

	_, err := d.Distribute(context.Background(), main, []*domain.Wallet{sub}, nil)
	if !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("err = %v, want ErrInsufficientFunds", err)
	}
	if len(backend.sent) != 0 {
		t.Fatalf("low balance still transferred %d txs", len(backend.sent))
	}
}

func TestDistributeCancelled(t *testing.T) {
	backend := newTransferBackend()
	d := newTestDistributor(backend)
	main := newFundedWallet(t, backend, "1")
	sub := newFundedWallet(t, backend, "0")

	sent, err := d.Distribute(context.Background(), main, []*domain.Wallet{sub}, func(per decimal.Decimal, n int) bool {
		return false // 用户取消
	})
	if err != nil {
		t.Fatalf("cancel should not error: %v", err)
	}
	if sent != 0 || len(backend.sent) != 0 {
		t.Fatalf("cancelled distribute still transferred %d txs", len(backend.sent))
	}
}

func TestDistributeSplits95Percent(t *testing.T) {
	backend := newTransferBackend()
	d := newTestDistributor(backend)
	main := newFundedWallet(t, backend, "1")
	subs := []*domain.Wallet{
		newFundedWallet(t, backend, "0"),
		newFundedWallet(t, backend, "0"),
	}

	var confirmed decimal.Decimal
	sent, err := d.Distribute(context.Background(), main, subs, func(per decimal.Decimal, n int) bool {
		confirmed = per
		return true
	})
	if err != nil {
		t.Fatalf("Distribute: %v", err)
	}
	if sent != 2 || len(backend.sent) != 2 {
		t.Fatalf("sent = %d (%d txs), want 2", sent, len(backend.sent))
	}

	// (1e18 × 95% - 2×3e13) ÷ 2
	balance := domain.ToWei(decimal.NewFromInt(1))
	distributable := new(big.Int).Mul(balance, big.NewInt(95))
	distributable.Div(distributable, big.NewInt(100))
	reserved := new(big.Int).Sub(distributable, new(big.Int).Mul(domain.TransferReserveWei(), big.NewInt(2)))
	want := new(big.Int).Div(reserved, big.NewInt(2))

	for _, tx := range backend.sent {
		if tx.Value().Cmp(want) != 0 {
			t.Fatalf("per-wallet value = %s, want %s", tx.Value(), want)
		}
	}
	if !confirmed.Equal(domain.FromWei(want)) {
		t.Fatalf("confirm callback got %s, want %s", confirmed, domain.FromWei(want))
	}
}

// 单笔转账失败不中断其余分发
func TestDistributeContinuesPastFailure(t *testing.T) {
	backend := newTransferBackend()
	d := newTestDistributor(backend)
	main := newFundedWallet(t, backend, "1")
	bad := newFundedWallet(t, backend, "0")
	good := newFundedWallet(t, backend, "0")
	backend.failTo = bad.Addr()

	sent, err := d.Distribute(context.Background(), main, []*domain.Wallet{bad, good},
		func(per decimal.Decimal, n int) bool { return true })
	if err != nil {
		t.Fatalf("Distribute: %v", err)
	}
	if sent != 1 || len(backend.sent) != 1 {
		t.Fatalf("sent = %d (%d txs), want 1", sent, len(backend.sent))
	}
	if *backend.sent[0].To() != good.Addr() {
		t.Fatalf("surviving transfer went to %s, want %s", backend.sent[0].To(), good.Address)
	}
}

func TestDrainAllSkips(t *testing.T) {
	backend := newTransferBackend()
	d := newTestDistributor(backend)
	main := newFundedWallet(t, backend, "0")

	dusty := newFundedWallet(t, backend, "0.00001")  // 低于回收下限
	funded := newFundedWallet(t, backend, "0.5")     // 应归集
	selfRef := &domain.Wallet{Address: main.Address} // 主地址自身，跳过

	drained, total, err := d.DrainAll(context.Background(),
		[]*domain.Wallet{dusty, funded, selfRef}, main.Addr())
	if err != nil {
		t.Fatalf("DrainAll: %v", err)
	}
	if drained != 1 {
		t.Fatalf("drained = %d, want 1", drained)
	}
	// 留存 = 实际手续费 gasPrice × 21000
	fee := new(big.Int).Mul(big.NewInt(100000000), big.NewInt(21000))
	want := new(big.Int).Sub(domain.ToWei(decimal.NewFromFloat(0.5)), fee)
	if total.Cmp(want) != 0 {
		t.Fatalf("total = %s, want %s", total, want)
	}
	if len(backend.sent) != 1 {
		t.Fatalf("sent = %d, want 1", len(backend.sent))
	}
	if *backend.sent[0].To() != main.Addr() {
		t.Fatalf("transfer to %s, want main wallet", backend.sent[0].To())
	}
}

func TestEmptyWalletBelowMinimum(t *testing.T) {
	backend := newTransferBackend()
	d := newTestDistributor(backend)
	w := newFundedWallet(t, backend, "0.0001") // 低于 0.00011 的执行下限

	_, err := d.EmptyWallet(context.Background(), w, common.HexToAddress("0x2"))
	if !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("err = %v, want ErrInsufficientFunds", err)
	}
	if len(backend.sent) != 0 {
		t.Fatalf("below-min empty still transferred")
	}
}

func TestEmptyWalletKeepsFee(t *testing.T) {
	backend := newTransferBackend()
	d := newTestDistributor(backend)
	w := newFundedWallet(t, backend, "0.2")
	dest := common.HexToAddress("0x00000000000000000000000000000000000000cc")

	amount, err := d.EmptyWallet(context.Background(), w, dest)
	if err != nil {
		t.Fatalf("EmptyWallet: %v", err)
	}
	want := new(big.Int).Sub(domain.ToWei(decimal.NewFromFloat(0.2)), domain.EmptyWalletFeeWei())
	if amount.Cmp(want) != 0 {
		t.Fatalf("amount = %s, want %s", amount, want)
	}
}

// 只留实际手续费：0.00002 BNB 这种小额也要能归集回来
func TestDrainAllRecoversSmallBalances(t *testing.T) {
	backend := newTransferBackend()
	d := newTestDistributor(backend)
	main := newFundedWallet(t, backend, "0")
	small := newFundedWallet(t, backend, "0.00002")

	drained, total, err := d.DrainAll(context.Background(), []*domain.Wallet{small}, main.Addr())
	if err != nil {
		t.Fatalf("DrainAll: %v", err)
	}
	if drained != 1 {
		t.Fatalf("drained = %d, want 1", drained)
	}
	fee := new(big.Int).Mul(big.NewInt(100000000), big.NewInt(21000))
	want := new(big.Int).Sub(domain.ToWei(decimal.NewFromFloat(0.00002)), fee)
	if total.Cmp(want) != 0 {
		t.Fatalf("total = %s, want %s", total, want)
	}
}
