package domain

import "context"

// OrderRepository 订单仓储接口
// Update 必须带版本号条件，版本不匹配返回 ErrConcurrencyConflict
type OrderRepository interface {
	Create(ctx context.Context, order *Order) error
	Get(ctx context.Context, orderID string) (*Order, error)
	ListByUser(ctx context.Context, userID uint, status OrderStatus, limit, offset int) ([]*Order, int64, error)
	ListByPortfolio(ctx context.Context, portfolioID uint, status OrderStatus, limit, offset int) ([]*Order, int64, error)
	Update(ctx context.Context, order *Order) error
}

// ExecutionRepository 成交记录仓储接口，只追加
type ExecutionRepository interface {
	Append(ctx context.Context, execution *OrderExecution) error
	Exists(ctx context.Context, orderID, executionID string) (bool, error)
	ListByOrder(ctx context.Context, orderID string) ([]*OrderExecution, error)
}
