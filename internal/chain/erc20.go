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
)

// ERC20 代币客户端（稳定币）
type ERC20 struct {
	c       *Client
	address common.Address
	abi     abi.ABI

	gasLimitApprove uint64
}

// NewERC20 创建 ERC20 客户端
func NewERC20(c *Client, address common.Address) (*ERC20, error) {
	tabi, err := abi.JSON(strings.NewReader(ERC20ABI))
	if err != nil {
		return nil, fmt.Errorf("解析ERC20 ABI失败: %w", err)
	}
	return &ERC20{
		c:               c,
		address:         address,
		abi:             tabi,
		gasLimitApprove: 100000,
	}, nil
}

// BalanceOf 查询余额（wei）
func (t *ERC20) BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error) {
	out, err := t.c.CallView(ctx, t.address, t.abi, "balanceOf", owner)
	if err != nil {
		return nil, err
	}
	return out[0].(*big.Int), nil
}

// Allowance 查询授权额度
func (t *ERC20) Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error) {
	out, err := t.c.CallView(ctx, t.address, t.abi, "allowance", owner, spender)
	if err != nil {
		return nil, err
	}
	return out[0].(*big.Int), nil
}

// Approve 授权并等待确认
func (t *ERC20) Approve(ctx context.Context, key *ecdsa.PrivateKey, spender common.Address, amount *big.Int) (*ethtypes.Receipt, error) {
	data, err := t.abi.Pack("approve", spender, amount)
	if err != nil {
		return nil, fmt.Errorf("打包approve参数失败: %w", err)
	}
	return t.c.SendAndWait(ctx, key, t.address, big.NewInt(0), t.gasLimitApprove, data)
}
