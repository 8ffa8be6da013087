// Package domain 包含订单服务的领域模型
package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	mddomain "github.com/wyfcoding/papertrading/internal/marketdata/domain"
)

// OrderStatus 订单状态
type OrderStatus string

const (
	OrderStatusPending         OrderStatus = "PENDING"
	OrderStatusOpen            OrderStatus = "OPEN"
	OrderStatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderStatusFilled          OrderStatus = "FILLED"
	OrderStatusCancelled       OrderStatus = "CANCELLED"
	OrderStatusRejected        OrderStatus = "REJECTED"
)

// IsTerminal 终态订单不再接受任何状态变更或成交
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusFilled || s == OrderStatusCancelled || s == OrderStatusRejected
}

// OrderSide 订单方向
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// OrderType 订单类型
type OrderType string

const (
	OrderTypeMarket    OrderType = "MARKET"
	OrderTypeLimit     OrderType = "LIMIT"
	OrderTypeStop      OrderType = "STOP"
	OrderTypeStopLimit OrderType = "STOP_LIMIT"
)

// TimeInForce 订单有效期
type TimeInForce string

const (
	TimeInForceGTC TimeInForce = "GTC" // Good Till Cancel
	TimeInForceDay TimeInForce = "DAY"
	TimeInForceIOC TimeInForce = "IOC" // Immediate Or Cancel
	TimeInForceFOK TimeInForce = "FOK" // Fill Or Kill
)

// Order 订单聚合根
// 生命周期：PENDING -> OPEN -> (PARTIALLY_FILLED)* -> FILLED / CANCELLED / REJECTED
type Order struct {
	ID      uint
	OrderID string
	UserID  uint
	// 所属组合
	PortfolioID uint
	// 标的引用（Asset 或 Option 二选一）
	Instrument mddomain.Instrument
	Side       OrderSide
	Type       OrderType
	// 委托数量
	Quantity decimal.Decimal
	// 限价（LIMIT / STOP_LIMIT 必填）
	Price decimal.Decimal
	// 触发价（STOP / STOP_LIMIT 必填）
	StopPrice decimal.Decimal
	// 累计成交数量
	FilledQuantity decimal.Decimal
	// 成交均价（数量加权）
	AverageFillPrice decimal.Decimal
	Status           OrderStatus
	TimeInForce      TimeInForce
	Notes            string
	FilledAt         *time.Time
	CancelledAt      *time.Time
	// 乐观锁版本号
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewOrder 创建订单，初始状态 PENDING
func NewOrder(orderID string, userID, portfolioID uint, inst mddomain.Instrument, side OrderSide, orderType OrderType, quantity, price, stopPrice decimal.Decimal, tif TimeInForce, notes string) *Order {
	if tif == "" {
		tif = TimeInForceGTC
	}
	return &Order{
		OrderID:          orderID,
		UserID:           userID,
		PortfolioID:      portfolioID,
		Instrument:       inst,
		Side:             side,
		Type:             orderType,
		Quantity:         quantity,
		Price:            price,
		StopPrice:        stopPrice,
		FilledQuantity:   decimal.Zero,
		AverageFillPrice: decimal.Zero,
		Status:           OrderStatusPending,
		TimeInForce:      tif,
		Notes:            notes,
	}
}

// Validate 校验订单字段是否满足类型要求，提交前调用，未通过则不落库
func (o *Order) Validate() error {
	if o.Instrument.IsZero() {
		return fmt.Errorf("%w: instrument is required", ErrValidation)
	}
	if o.UserID == 0 || o.PortfolioID == 0 {
		return fmt.Errorf("%w: user and portfolio are required", ErrValidation)
	}
	if o.Side != OrderSideBuy && o.Side != OrderSideSell {
		return fmt.Errorf("%w: invalid side %q", ErrValidation, o.Side)
	}
	if !o.Quantity.IsPositive() {
		return fmt.Errorf("%w: quantity must be positive", ErrValidation)
	}

	needsPrice := o.Type == OrderTypeLimit || o.Type == OrderTypeStopLimit
	needsStop := o.Type == OrderTypeStop || o.Type == OrderTypeStopLimit

	switch o.Type {
	case OrderTypeMarket, OrderTypeLimit, OrderTypeStop, OrderTypeStopLimit:
	default:
		return fmt.Errorf("%w: invalid order type %q", ErrValidation, o.Type)
	}

	if needsPrice && !o.Price.IsPositive() {
		return fmt.Errorf("%w: %s order requires a limit price", ErrValidation, o.Type)
	}
	if needsStop && !o.StopPrice.IsPositive() {
		return fmt.Errorf("%w: %s order requires a stop price", ErrValidation, o.Type)
	}
	if o.Type == OrderTypeMarket && (!o.Price.IsZero() || !o.StopPrice.IsZero()) {
		return fmt.Errorf("%w: market order must not carry prices", ErrValidation)
	}

	switch o.TimeInForce {
	case TimeInForceGTC, TimeInForceDay, TimeInForceIOC, TimeInForceFOK:
	default:
		return fmt.Errorf("%w: invalid time in force %q", ErrValidation, o.TimeInForce)
	}

	return nil
}

// Accept 接受订单：PENDING -> OPEN
func (o *Order) Accept() error {
	if o.Status != OrderStatusPending {
		return fmt.Errorf("%w: cannot accept order in status %s", ErrInvalidTransition, o.Status)
	}
	o.Status = OrderStatusOpen
	return nil
}

// Reject 拒绝订单：PENDING -> REJECTED
func (o *Order) Reject() error {
	if o.Status != OrderStatusPending {
		return fmt.Errorf("%w: cannot reject order in status %s", ErrInvalidTransition, o.Status)
	}
	o.Status = OrderStatusRejected
	return nil
}

// Cancel 取消订单，仅允许 PENDING / OPEN / PARTIALLY_FILLED
func (o *Order) Cancel(now time.Time) error {
	switch o.Status {
	case OrderStatusPending, OrderStatusOpen, OrderStatusPartiallyFilled:
		o.Status = OrderStatusCancelled
		o.CancelledAt = &now
		return nil
	default:
		return fmt.Errorf("%w: cannot cancel order in status %s", ErrInvalidTransition, o.Status)
	}
}

// RemainingQuantity 剩余可成交数量
func (o *Order) RemainingQuantity() decimal.Decimal {
	return o.Quantity.Sub(o.FilledQuantity)
}

// ApplyExecution 应用一笔成交：累加成交量、重算数量加权均价、推进状态
// 终态订单与超量成交在此拒绝，聚合保持不变
func (o *Order) ApplyExecution(price, quantity decimal.Decimal, executedAt time.Time) error {
	if o.Status.IsTerminal() {
		return fmt.Errorf("%w: order %s is %s", ErrInvalidTransition, o.OrderID, o.Status)
	}

	newFilled := o.FilledQuantity.Add(quantity)
	if newFilled.GreaterThan(o.Quantity) {
		return fmt.Errorf("%w: order %s filled %s + fill %s > quantity %s",
			ErrOverfill, o.OrderID, o.FilledQuantity, quantity, o.Quantity)
	}

	// avg' = (avg*filled + price*qty) / (filled+qty)
	notional := o.AverageFillPrice.Mul(o.FilledQuantity).Add(price.Mul(quantity))
	o.AverageFillPrice = notional.Div(newFilled).Round(8)
	o.FilledQuantity = newFilled

	if newFilled.Equal(o.Quantity) {
		o.Status = OrderStatusFilled
		if o.FilledAt == nil {
			at := executedAt
			o.FilledAt = &at
		}
	} else {
		o.Status = OrderStatusPartiallyFilled
	}

	return nil
}
