package domain

import (
	"context"
	"time"
)

// 订单领域事件类型
const (
	EventOrderSubmitted = "order.submitted"
	EventOrderAccepted  = "order.accepted"
	EventOrderRejected  = "order.rejected"
	EventOrderFilled    = "order.filled"
	EventOrderCancelled = "order.cancelled"
	EventFillApplied    = "order.fill_applied"
)

// OrderEvent 订单领域事件，事务提交后发布
// 十进制字段按字符串编码，消费方自行解析
type OrderEvent struct {
	Type             string    `json:"type"`
	OrderID          string    `json:"order_id"`
	UserID           uint      `json:"user_id"`
	PortfolioID      uint      `json:"portfolio_id"`
	Instrument       string    `json:"instrument"`
	Side             string    `json:"side"`
	Status           string    `json:"status"`
	Quantity         string    `json:"quantity"`
	FilledQuantity   string    `json:"filled_quantity"`
	AverageFillPrice string    `json:"average_fill_price"`
	ExecutionID      string    `json:"execution_id,omitempty"`
	FillPrice        string    `json:"fill_price,omitempty"`
	FillQuantity     string    `json:"fill_quantity,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
}

// NewOrderEvent 从订单当前状态构造事件
func NewOrderEvent(eventType string, o *Order) OrderEvent {
	return OrderEvent{
		Type:             eventType,
		OrderID:          o.OrderID,
		UserID:           o.UserID,
		PortfolioID:      o.PortfolioID,
		Instrument:       o.Instrument.String(),
		Side:             string(o.Side),
		Status:           string(o.Status),
		Quantity:         o.Quantity.String(),
		FilledQuantity:   o.FilledQuantity.String(),
		AverageFillPrice: o.AverageFillPrice.String(),
		Timestamp:        time.Now(),
	}
}

// EventPublisher 订单事件发布接口
type EventPublisher interface {
	Publish(ctx context.Context, event OrderEvent) error
}
