package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/betbot/predictbot/internal/domain"
)

// Prediction 预测合约客户端
type Prediction struct {
	c       *Client
	address common.Address
	abi     abi.ABI

	gasLimitBet   uint64
	gasLimitClaim uint64
}

// NewPrediction 创建预测合约客户端
func NewPrediction(c *Client, address common.Address) (*Prediction, error) {
	pabi, err := abi.JSON(strings.NewReader(PredictionABI))
	if err != nil {
		return nil, fmt.Errorf("解析预测合约ABI失败: %w", err)
	}
	return &Prediction{
		c:             c,
		address:       address,
		abi:           pabi,
		gasLimitBet:   200000,
		gasLimitClaim: 200000,
	}, nil
}

// CurrentEpoch 当前轮编号
func (p *Prediction) CurrentEpoch(ctx context.Context) (*big.Int, error) {
	out, err := p.c.CallView(ctx, p.address, p.abi, "currentEpoch")
	if err != nil {
		return nil, err
	}
	return out[0].(*big.Int), nil
}

// Rounds 读取某轮快照
func (p *Prediction) Rounds(ctx context.Context, epoch *big.Int) (*domain.Round, error) {
	out, err := p.c.CallView(ctx, p.address, p.abi, "rounds", epoch)
	if err != nil {
		return nil, err
	}
	// rounds() 返回 14 个字段，顺序见 PredictionABI
	return &domain.Round{
		Epoch:          out[0].(*big.Int),
		StartTimestamp: out[1].(*big.Int).Int64(),
		LockTimestamp:  out[2].(*big.Int).Int64(),
		CloseTimestamp: out[3].(*big.Int).Int64(),
		LockPrice:      out[4].(*big.Int),
		ClosePrice:     out[5].(*big.Int),
		TotalAmount:    out[8].(*big.Int),
		BullAmount:     out[9].(*big.Int),
		BearAmount:     out[10].(*big.Int),
		RewardBaseCal:  out[11].(*big.Int),
		RewardAmount:   out[12].(*big.Int),
		OraclesCalled:  out[13].(bool),
	}, nil
}

// Ledger 读取某轮某地址的仓位
func (p *Prediction) Ledger(ctx context.Context, epoch *big.Int, user common.Address) (*domain.UserRound, error) {
	out, err := p.c.CallView(ctx, p.address, p.abi, "ledger", epoch, user)
	if err != nil {
		return nil, err
	}
	return &domain.UserRound{
		Position: domain.Direction(out[0].(uint8)),
		Amount:   out[1].(*big.Int),
		Claimed:  out[2].(bool),
	}, nil
}

// Claimable 某轮对某地址是否可领取
func (p *Prediction) Claimable(ctx context.Context, epoch *big.Int, user common.Address) (bool, error) {
	out, err := p.c.CallView(ctx, p.address, p.abi, "claimable", epoch, user)
	if err != nil {
		return false, err
	}
	return out[0].(bool), nil
}

// Bet 以 value 为注额提交 betBull/betBear
func (p *Prediction) Bet(ctx context.Context, key *ecdsa.PrivateKey, epoch *big.Int, dir domain.Direction, value *big.Int) (*ethtypes.Receipt, error) {
	method := "betBull"
	if dir == domain.Bear {
		method = "betBear"
	}
	data, err := p.abi.Pack(method, epoch)
	if err != nil {
		return nil, fmt.Errorf("打包%s参数失败: %w", method, err)
	}
	return p.c.SendAndWait(ctx, key, p.address, value, p.gasLimitBet, data)
}

// Claim 批量领取奖励
func (p *Prediction) Claim(ctx context.Context, key *ecdsa.PrivateKey, epochs []*big.Int) (*ethtypes.Receipt, error) {
	data, err := p.abi.Pack("claim", epochs)
	if err != nil {
		return nil, fmt.Errorf("打包claim参数失败: %w", err)
	}
	return p.c.SendAndWait(ctx, key, p.address, big.NewInt(0), p.gasLimitClaim, data)
}
