package reward

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/betbot/predictbot/internal/chain"
	"github.com/betbot/predictbot/internal/domain"
)

func TestEstimateReward(t *testing.T) {
	round := &domain.Round{
		RewardBaseCal: big.NewInt(100),
		RewardAmount:  big.NewInt(150),
	}
	ur := &domain.UserRound{Position: domain.Bull, Amount: big.NewInt(10)}

	got := EstimateReward(round, ur)
	if got.Cmp(big.NewInt(15)) != 0 {
		t.Fatalf("reward = %s, want 15", got)
	}

	// 估算不改变输入，重复调用结果一致
	again := EstimateReward(round, ur)
	if again.Cmp(got) != 0 {
		t.Fatalf("second estimate = %s, want %s", again, got)
	}
	if ur.Amount.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("input amount mutated: %s", ur.Amount)
	}
}

func TestEstimateRewardZeroCases(t *testing.T) {
	round := &domain.Round{
		RewardBaseCal: big.NewInt(100),
		RewardAmount:  big.NewInt(150),
	}

	if got := EstimateReward(round, nil); got.Sign() != 0 {
		t.Fatalf("nil position: reward = %s, want 0", got)
	}
	claimed := &domain.UserRound{Amount: big.NewInt(10), Claimed: true}
	if got := EstimateReward(round, claimed); got.Sign() != 0 {
		t.Fatalf("claimed: reward = %s, want 0", got)
	}
	noBase := &domain.Round{RewardBaseCal: big.NewInt(0), RewardAmount: big.NewInt(150)}
	ur := &domain.UserRound{Amount: big.NewInt(10)}
	if got := EstimateReward(noBase, ur); got.Sign() != 0 {
		t.Fatalf("zero divisor: reward = %s, want 0", got)
	}
}

// predictionBackend 按方法选择器分发的只读替身
type predictionBackend struct {
	abi abi.ABI

	currentEpoch uint64
	claimable    map[uint64]bool
	ledger       map[uint64]*domain.UserRound
	rounds       map[uint64]*domain.Round

	roundsCalls int
	failClaim   map[uint64]bool // 节点拒绝这些轮次的领奖交易
	sent        []*ethtypes.Transaction
	nonce       uint64
}

// claimEpoch 从 claim 交易 calldata 解出第一个轮次
func (p *predictionBackend) claimEpoch(tx *ethtypes.Transaction) (uint64, bool) {
	data := tx.Data()
	if len(data) < 4 {
		return 0, false
	}
	method, err := p.abi.MethodById(data[:4])
	if err != nil || method.Name != "claim" {
		return 0, false
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return 0, false
	}
	epochs := args[0].([]*big.Int)
	if len(epochs) == 0 {
		return 0, false
	}
	return epochs[0].Uint64(), true
}

func (p *predictionBackend) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	method, err := p.abi.MethodById(msg.Data[:4])
	if err != nil {
		return nil, err
	}
	args, err := method.Inputs.Unpack(msg.Data[4:])
	if err != nil {
		return nil, err
	}

	switch method.Name {
	case "currentEpoch":
		return method.Outputs.Pack(new(big.Int).SetUint64(p.currentEpoch))
	case "claimable":
		epoch := args[0].(*big.Int).Uint64()
		return method.Outputs.Pack(p.claimable[epoch])
	case "ledger":
		epoch := args[0].(*big.Int).Uint64()
		ur := p.ledger[epoch]
		if ur == nil {
			ur = &domain.UserRound{Amount: big.NewInt(0)}
		}
		return method.Outputs.Pack(uint8(ur.Position), ur.Amount, ur.Claimed)
	case "rounds":
		epoch := args[0].(*big.Int).Uint64()
		p.roundsCalls++
		r := p.rounds[epoch]
		if r == nil {
			return nil, ethereum.NotFound
		}
		zero := big.NewInt(0)
		return method.Outputs.Pack(
			r.Epoch, zero, zero, zero, zero, zero, zero, zero,
			r.TotalAmount, r.BullAmount, r.BearAmount,
			r.RewardBaseCal, r.RewardAmount, r.OraclesCalled,
		)
	}
	return nil, ethereum.NotFound
}

func (p *predictionBackend) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	return big.NewInt(0), nil
}
func (p *predictionBackend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return p.nonce, nil
}
func (p *predictionBackend) SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error {
	if epoch, ok := p.claimEpoch(tx); ok && p.failClaim[epoch] {
		return errors.New("node rejected tx")
	}
	p.sent = append(p.sent, tx)
	p.nonce++
	return nil
}
func (p *predictionBackend) TransactionReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error) {
	for _, tx := range p.sent {
		if tx.Hash() == txHash {
			return &ethtypes.Receipt{Status: ethtypes.ReceiptStatusSuccessful, TxHash: txHash, GasUsed: 150000}, nil
		}
	}
	return nil, ethereum.NotFound
}

func newPredictionBackend(t *testing.T) *predictionBackend {
	t.Helper()
	pabi, err := abi.JSON(strings.NewReader(chain.PredictionABI))
	if err != nil {
		t.Fatalf("parse abi: %v", err)
	}
	return &predictionBackend{
		abi:       pabi,
		claimable: make(map[uint64]bool),
		ledger:    make(map[uint64]*domain.UserRound),
		rounds:    make(map[uint64]*domain.Round),
		failClaim: make(map[uint64]bool),
	}
}

func testRound(epoch uint64, base, reward int64) *domain.Round {
	return &domain.Round{
		Epoch:         new(big.Int).SetUint64(epoch),
		TotalAmount:   big.NewInt(0),
		BullAmount:    big.NewInt(0),
		BearAmount:    big.NewInt(0),
		RewardBaseCal: big.NewInt(base),
		RewardAmount:  big.NewInt(reward),
		OraclesCalled: true,
	}
}

func TestScanClaimable(t *testing.T) {
	backend := newPredictionBackend(t)
	backend.currentEpoch = 100

	// 96：有仓位可领，98：已领取应排除，97：无可领标记
	backend.claimable[96] = true
	backend.claimable[98] = true
	backend.ledger[96] = &domain.UserRound{Position: domain.Bear, Amount: big.NewInt(10)}
	backend.ledger[98] = &domain.UserRound{Position: domain.Bull, Amount: big.NewInt(5), Claimed: true}
	backend.rounds[96] = testRound(96, 100, 150)
	backend.rounds[98] = testRound(98, 100, 150)

	client := chain.New(backend, chain.Options{
		ChainID:        big.NewInt(56),
		GasPrice:       big.NewInt(100000000),
		ConfirmTimeout: 100 * time.Millisecond,
		PollInterval:   5 * time.Millisecond,
	})
	prediction, err := chain.NewPrediction(client, common.HexToAddress("0x18B2A687610328590Bc8F2e5fEdDe3b582A49cdA"))
	if err != nil {
		t.Fatalf("NewPrediction: %v", err)
	}

	engine := NewEngine(prediction, 5)
	w := &domain.Wallet{Address: "0x00000000000000000000000000000000000000aa"}

	entries, err := engine.ScanClaimable(context.Background(), w)
	if err != nil {
		t.Fatalf("ScanClaimable: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	if entries[0].Epoch != 96 {
		t.Fatalf("epoch = %d, want 96", entries[0].Epoch)
	}
	if entries[0].Position != domain.Bear {
		t.Fatalf("position = %s, want DOWN", entries[0].Position)
	}
	if entries[0].Reward.Cmp(big.NewInt(15)) != 0 {
		t.Fatalf("reward = %s, want 15", entries[0].Reward)
	}

	// 已出结果的轮次走缓存，二次扫描不再查询 rounds
	calls := backend.roundsCalls
	if _, err := engine.ScanClaimable(context.Background(), w); err != nil {
		t.Fatalf("second scan: %v", err)
	}
	if backend.roundsCalls != calls {
		t.Fatalf("rounds queried again: %d -> %d", calls, backend.roundsCalls)
	}
}

// 领奖逐轮提交：提交前复核，失效轮次跳过，单轮失败不影响其余
func TestClaimPerEpoch(t *testing.T) {
	backend := newPredictionBackend(t)
	backend.claimable[94] = true
	backend.claimable[95] = false // 扫描后被领走
	backend.claimable[96] = true
	backend.failClaim[94] = true

	client := chain.New(backend, chain.Options{
		ChainID:        big.NewInt(56),
		GasPrice:       big.NewInt(100000000),
		ConfirmTimeout: 500 * time.Millisecond,
		PollInterval:   5 * time.Millisecond,
	})
	prediction, err := chain.NewPrediction(client, common.HexToAddress("0x18B2A687610328590Bc8F2e5fEdDe3b582A49cdA"))
	if err != nil {
		t.Fatalf("NewPrediction: %v", err)
	}

	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	w := &domain.Wallet{
		Address:    crypto.PubkeyToAddress(key.PublicKey).Hex(),
		PrivateKey: common.Bytes2Hex(crypto.FromECDSA(key)),
	}

	entries := []domain.ClaimableEntry{
		{Epoch: 94, Reward: big.NewInt(7)},
		{Epoch: 95, Reward: big.NewInt(9)},
		{Epoch: 96, Reward: big.NewInt(15)},
	}

	engine := NewEngine(prediction, 5)
	result, err := engine.Claim(context.Background(), w, entries)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}

	if len(result.Claimed) != 1 || result.Claimed[0].Epoch != 96 {
		t.Fatalf("claimed = %+v, want single epoch 96", result.Claimed)
	}
	if result.Claimed[0].TxHash == "" {
		t.Fatal("claimed epoch missing tx hash")
	}
	if len(result.Failed) != 1 || result.Failed[0] != 94 {
		t.Fatalf("failed epochs = %v, want [94]", result.Failed)
	}
	if len(result.Skipped) != 1 || result.Skipped[0] != 95 {
		t.Fatalf("skipped epochs = %v, want [95]", result.Skipped)
	}
	if result.Reward.Cmp(big.NewInt(15)) != 0 {
		t.Fatalf("reward = %s, want 15", result.Reward)
	}
	if len(backend.sent) != 1 {
		t.Fatalf("sent = %d txs, want 1", len(backend.sent))
	}
	if epoch, ok := backend.claimEpoch(backend.sent[0]); !ok || epoch != 96 {
		t.Fatalf("submitted claim for epoch %d, want 96", epoch)
	}
}

func TestScanClaimableWindowFloor(t *testing.T) {
	backend := newPredictionBackend(t)
	backend.currentEpoch = 3 // 窗口下限收在第 1 轮
	backend.claimable[1] = true
	backend.ledger[1] = &domain.UserRound{Position: domain.Bull, Amount: big.NewInt(4)}
	backend.rounds[1] = testRound(1, 2, 4)

	client := chain.New(backend, chain.Options{
		ChainID:  big.NewInt(56),
		GasPrice: big.NewInt(100000000),
	})
	prediction, err := chain.NewPrediction(client, common.HexToAddress("0x1"))
	if err != nil {
		t.Fatalf("NewPrediction: %v", err)
	}

	engine := NewEngine(prediction, 5)
	w := &domain.Wallet{Address: "0x00000000000000000000000000000000000000bb"}

	entries, err := engine.ScanClaimable(context.Background(), w)
	if err != nil {
		t.Fatalf("ScanClaimable: %v", err)
	}
	if len(entries) != 1 || entries[0].Epoch != 1 {
		t.Fatalf("entries = %+v, want single epoch 1", entries)
	}
	// 4 × 4 / 2 = 8
	if entries[0].Reward.Cmp(big.NewInt(8)) != 0 {
		t.Fatalf("reward = %s, want 8", entries[0].Reward)
	}
}

// 扫描和领取之间奖励全部被领走：不是失败，不该报错
func TestClaimAllSkippedIsNotAnError(t *testing.T) {
	backend := newPredictionBackend(t)
	backend.claimable[94] = false
	backend.claimable[95] = false

	client := chain.New(backend, chain.Options{
		ChainID:        big.NewInt(56),
		GasPrice:       big.NewInt(100000000),
		ConfirmTimeout: 500 * time.Millisecond,
		PollInterval:   5 * time.Millisecond,
	})
	prediction, err := chain.NewPrediction(client, common.HexToAddress("0x18B2A687610328590Bc8F2e5fEdDe3b582A49cdA"))
	if err != nil {
		t.Fatalf("NewPrediction: %v", err)
	}

	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	w := &domain.Wallet{
		Address:    crypto.PubkeyToAddress(key.PublicKey).Hex(),
		PrivateKey: common.Bytes2Hex(crypto.FromECDSA(key)),
	}

	entries := []domain.ClaimableEntry{
		{Epoch: 94, Reward: big.NewInt(7)},
		{Epoch: 95, Reward: big.NewInt(9)},
	}

	engine := NewEngine(prediction, 5)
	result, err := engine.Claim(context.Background(), w, entries)
	if err != nil {
		t.Fatalf("all-skipped claim should not error: %v", err)
	}
	if len(result.Claimed) != 0 || len(result.Failed) != 0 {
		t.Fatalf("claimed = %v failed = %v, want both empty", result.Claimed, result.Failed)
	}
	if len(result.Skipped) != 2 {
		t.Fatalf("skipped = %v, want [94 95]", result.Skipped)
	}
	if len(backend.sent) != 0 {
		t.Fatalf("sent = %d txs, want 0", len(backend.sent))
	}
}
