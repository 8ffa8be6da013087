package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// OrderExecution 单笔成交的不可变记录，只追加、不修改
// ExecutionID 是上游撮合/交易所的成交标识，同一订单内唯一，作为幂等键
type OrderExecution struct {
	ID          uint
	OrderID     string
	ExecutionID string
	Price       decimal.Decimal
	Quantity    decimal.Decimal
	Commission  decimal.Decimal
	Fees        decimal.Decimal
	ExecutedAt  time.Time
}

// NewExecution 创建成交记录并校验字段
func NewExecution(orderID, executionID string, price, quantity, commission, fees decimal.Decimal, executedAt time.Time) (*OrderExecution, error) {
	if executionID == "" {
		return nil, fmt.Errorf("%w: execution id is required", ErrValidation)
	}
	if !price.IsPositive() {
		return nil, fmt.Errorf("%w: execution price must be positive", ErrValidation)
	}
	if !quantity.IsPositive() {
		return nil, fmt.Errorf("%w: execution quantity must be positive", ErrValidation)
	}
	if commission.IsNegative() || fees.IsNegative() {
		return nil, fmt.Errorf("%w: commission and fees must be non-negative", ErrValidation)
	}
	if executedAt.IsZero() {
		executedAt = time.Now()
	}
	return &OrderExecution{
		OrderID:     orderID,
		ExecutionID: executionID,
		Price:       price,
		Quantity:    quantity,
		Commission:  commission.Round(2),
		Fees:        fees.Round(2),
		ExecutedAt:  executedAt,
	}, nil
}

// GrossAmount 成交金额（数量 × 价格），货币精度
func (e *OrderExecution) GrossAmount() decimal.Decimal {
	return e.Quantity.Mul(e.Price).Round(2)
}

// TotalCharges 佣金加费用
func (e *OrderExecution) TotalCharges() decimal.Decimal {
	return e.Commission.Add(e.Fees)
}
