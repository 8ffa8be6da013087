package domain

import "errors"

// 订单生命周期的错误定义
// 仓储与应用层用 errors.Is 判断，接口层据此映射 HTTP 状态码
var (
	// ErrValidation 订单字段不满足类型要求
	ErrValidation = errors.New("order validation failed")
	// ErrInvalidTransition 非法的状态迁移
	ErrInvalidTransition = errors.New("invalid order state transition")
	// ErrOverfill 累计成交将超过委托数量
	ErrOverfill = errors.New("fill exceeds remaining order quantity")
	// ErrOrderNotFound 订单不存在
	ErrOrderNotFound = errors.New("order not found")
	// ErrConcurrencyConflict 乐观锁版本冲突，调用方应以相同幂等键重试
	ErrConcurrencyConflict = errors.New("concurrent modification detected")
	// ErrStoreUnavailable 持久层暂时不可用，可退避重试
	ErrStoreUnavailable = errors.New("store unavailable")
)
