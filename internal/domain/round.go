package domain

import (
	"fmt"
	"math/big"
	"strings"
)

// Direction 下注方向
type Direction int

const (
	// Bull 看涨（合约 position = 0）
	Bull Direction = 0
	// Bear 看跌（合约 position = 1）
	Bear Direction = 1
)

// ParseDirection 解析命令里的方向词（up/down）
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "up":
		return Bull, nil
	case "down":
		return Bear, nil
	}
	return 0, fmt.Errorf("%w: 无效方向 %q（应为 up 或 down）", ErrValidation, s)
}

func (d Direction) String() string {
	if d == Bull {
		return "UP"
	}
	return "DOWN"
}

// Round 预测合约的一轮（epoch）
// 合约 rounds(epoch) 返回的快照，本地只读，不做任何修改
type Round struct {
	Epoch          *big.Int
	StartTimestamp int64
	LockTimestamp  int64
	CloseTimestamp int64
	LockPrice      *big.Int
	ClosePrice     *big.Int
	TotalAmount    *big.Int
	BullAmount     *big.Int
	BearAmount     *big.Int
	RewardBaseCal  *big.Int
	RewardAmount   *big.Int
	OraclesCalled  bool
}

// UserRound 合约 ledger(epoch, address) 返回的用户仓位
type UserRound struct {
	Position Direction
	Amount   *big.Int
	Claimed  bool
}

// ClaimableEntry 扫描出的一个可领取仓位
type ClaimableEntry struct {
	Epoch     uint64
	Position  Direction
	BetAmount *big.Int
	Reward    *big.Int
}
