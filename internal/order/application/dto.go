package application

import (
	"github.com/wyfcoding/papertrading/internal/order/domain"
)

// OrderDTO 订单视图，十进制字段按字符串编码
type OrderDTO struct {
	OrderID          string `json:"order_id"`
	UserID           uint   `json:"user_id"`
	PortfolioID      uint   `json:"portfolio_id"`
	InstrumentKind   string `json:"instrument_kind"`
	InstrumentID     uint   `json:"instrument_id"`
	Side             string `json:"side"`
	Type             string `json:"type"`
	Quantity         string `json:"quantity"`
	Price            string `json:"price,omitempty"`
	StopPrice        string `json:"stop_price,omitempty"`
	FilledQuantity   string `json:"filled_quantity"`
	AverageFillPrice string `json:"average_fill_price,omitempty"`
	Status           string `json:"status"`
	TimeInForce      string `json:"time_in_force"`
	Notes            string `json:"notes,omitempty"`
	CreatedAt        int64  `json:"created_at"`
	FilledAt         *int64 `json:"filled_at,omitempty"`
	CancelledAt      *int64 `json:"cancelled_at,omitempty"`
}

// ExecutionDTO 成交记录视图
type ExecutionDTO struct {
	ExecutionID string `json:"execution_id"`
	OrderID     string `json:"order_id"`
	Price       string `json:"price"`
	Quantity    string `json:"quantity"`
	Commission  string `json:"commission"`
	Fees        string `json:"fees"`
	ExecutedAt  int64  `json:"executed_at"`
}

func toOrderDTO(o *domain.Order) *OrderDTO {
	dto := &OrderDTO{
		OrderID:        o.OrderID,
		UserID:         o.UserID,
		PortfolioID:    o.PortfolioID,
		InstrumentKind: string(o.Instrument.Kind),
		InstrumentID:   o.Instrument.ID,
		Side:           string(o.Side),
		Type:           string(o.Type),
		Quantity:       o.Quantity.String(),
		FilledQuantity: o.FilledQuantity.String(),
		Status:         string(o.Status),
		TimeInForce:    string(o.TimeInForce),
		Notes:          o.Notes,
		CreatedAt:      o.CreatedAt.Unix(),
	}
	if !o.Price.IsZero() {
		dto.Price = o.Price.String()
	}
	if !o.StopPrice.IsZero() {
		dto.StopPrice = o.StopPrice.String()
	}
	if !o.AverageFillPrice.IsZero() {
		dto.AverageFillPrice = o.AverageFillPrice.String()
	}
	if o.FilledAt != nil {
		ts := o.FilledAt.Unix()
		dto.FilledAt = &ts
	}
	if o.CancelledAt != nil {
		ts := o.CancelledAt.Unix()
		dto.CancelledAt = &ts
	}
	return dto
}

func toExecutionDTO(e *domain.OrderExecution) *ExecutionDTO {
	return &ExecutionDTO{
		ExecutionID: e.ExecutionID,
		OrderID:     e.OrderID,
		Price:       e.Price.String(),
		Quantity:    e.Quantity.String(),
		Commission:  e.Commission.String(),
		Fees:        e.Fees.String(),
		ExecutedAt:  e.ExecutedAt.Unix(),
	}
}
