package domain

import "errors"

// 错误种类作为哨兵值导出，调用方用 errors.Is 分支判断结果，
// 而不是捕获笼统的失败
var (
	// ErrValidation 参数校验失败（下单前拒绝，无任何链上副作用）
	ErrValidation = errors.New("参数校验失败")
	// ErrInvalidIndex 钱包序号越界
	ErrInvalidIndex = errors.New("无效的钱包序号")
	// ErrInsufficientFunds 余额不足以覆盖操作金额 + gas 预留
	ErrInsufficientFunds = errors.New("余额不足")
	// ErrRoundLocked 当前轮已过锁定时间，下注必然回滚，直接拒绝
	ErrRoundLocked = errors.New("当前轮已锁定")
	// ErrTxReverted 交易上链后回执状态为失败
	ErrTxReverted = errors.New("交易已回滚")
	// ErrConfirmationTimeout 等待回执超时（区别于回滚：交易状态未知）
	ErrConfirmationTimeout = errors.New("等待交易确认超时")
	// ErrQuoteUnavailable 询价失败，0 报价是哨兵而不是有效价格
	ErrQuoteUnavailable = errors.New("询价不可用")
	// ErrPersistence 钱包存档读写失败，内存状态可能与磁盘暂时不一致
	ErrPersistence = errors.New("持久化失败")
)
