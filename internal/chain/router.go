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

// Router 去中心化交易所路由客户端
type Router struct {
	c       *Client
	address common.Address
	abi     abi.ABI

	gasLimitSwap uint64
}

// NewRouter 创建路由客户端
func NewRouter(c *Client, address common.Address) (*Router, error) {
	rabi, err := abi.JSON(strings.NewReader(RouterABI))
	if err != nil {
		return nil, fmt.Errorf("解析路由ABI失败: %w", err)
	}
	return &Router{
		c:            c,
		address:      address,
		abi:          rabi,
		gasLimitSwap: 300000,
	}, nil
}

// Address 返回路由合约地址（授权 spender 用）
func (r *Router) Address() common.Address {
	return r.address
}

// GetAmountsOut 按路径询价
func (r *Router) GetAmountsOut(ctx context.Context, amountIn *big.Int, path []common.Address) ([]*big.Int, error) {
	out, err := r.c.CallView(ctx, r.address, r.abi, "getAmountsOut", amountIn, path)
	if err != nil {
		return nil, err
	}
	return out[0].([]*big.Int), nil
}

// SwapExactTokensForETH 代币换原生币，输出直接打到 to
func (r *Router) SwapExactTokensForETH(ctx context.Context, key *ecdsa.PrivateKey, amountIn, amountOutMin *big.Int, path []common.Address, to common.Address, deadline *big.Int) (*ethtypes.Receipt, error) {
	data, err := r.abi.Pack("swapExactTokensForETH", amountIn, amountOutMin, path, to, deadline)
	if err != nil {
		return nil, fmt.Errorf("打包swapExactTokensForETH参数失败: %w", err)
	}
	return r.c.SendAndWait(ctx, key, r.address, big.NewInt(0), r.gasLimitSwap, data)
}

// SwapExactETHForTokens 原生币换代币（注额走 value）
func (r *Router) SwapExactETHForTokens(ctx context.Context, key *ecdsa.PrivateKey, value, amountOutMin *big.Int, path []common.Address, to common.Address, deadline *big.Int) (*ethtypes.Receipt, error) {
	data, err := r.abi.Pack("swapExactETHForTokens", amountOutMin, path, to, deadline)
	if err != nil {
		return nil, fmt.Errorf("打包swapExactETHForTokens参数失败: %w", err)
	}
	return r.c.SendAndWait(ctx, key, r.address, value, r.gasLimitSwap, data)
}

// 原生币裸转账的固定 gas 用量
const transferGasLimit = 21000

// Transfer 原生币裸转账（21000 gas）
func (c *Client) Transfer(ctx context.Context, key *ecdsa.PrivateKey, to common.Address, value *big.Int) (*ethtypes.Receipt, error) {
	return c.SendAndWait(ctx, key, to, value, transferGasLimit, nil)
}

// TransferFeeWei 一笔裸转账的实际手续费（固定 gas 价格 × 21000）
func (c *Client) TransferFeeWei() *big.Int {
	return new(big.Int).Mul(c.GasPrice(), big.NewInt(transferGasLimit))
}
