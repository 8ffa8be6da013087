package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	mddomain "github.com/wyfcoding/papertrading/internal/marketdata/domain"
)

// Holding 组合内某一标的的持仓
// 数量为零的持仓保留不删，留存历史成本均价；本服务不支持负持仓（做空）
type Holding struct {
	ID          uint
	PortfolioID uint
	Instrument  mddomain.Instrument
	Quantity    decimal.Decimal
	// 成本均价（数量加权买入价，卖出不改变）
	AverageCost decimal.Decimal
	// 以下为估值快照字段
	CurrentValue         decimal.Decimal
	UnrealizedPnL        decimal.Decimal
	UnrealizedPnLPercent decimal.Decimal
	// 乐观锁版本号
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewHolding 创建空持仓
func NewHolding(portfolioID uint, inst mddomain.Instrument) *Holding {
	return &Holding{
		PortfolioID: portfolioID,
		Instrument:  inst,
		Quantity:    decimal.Zero,
		AverageCost: decimal.Zero,
	}
}

// ApplyBuy 买入成交入账：数量累加，成本均价按数量加权重算
func (h *Holding) ApplyBuy(quantity, price decimal.Decimal) {
	newQty := h.Quantity.Add(quantity)
	cost := h.AverageCost.Mul(h.Quantity).Add(price.Mul(quantity))
	h.AverageCost = cost.Div(newQty).Round(8)
	h.Quantity = newQty
}

// ApplySell 卖出成交入账：数量扣减，返回本笔已实现盈亏
// 卖出不改变成本均价；数量将为负时失败且不改变状态
func (h *Holding) ApplySell(quantity, price decimal.Decimal) (decimal.Decimal, error) {
	if h.Quantity.LessThan(quantity) {
		return decimal.Zero, fmt.Errorf("%w: held %s, selling %s", ErrInsufficientHolding, h.Quantity, quantity)
	}
	h.Quantity = h.Quantity.Sub(quantity)
	realized := price.Sub(h.AverageCost).Mul(quantity).Round(2)
	return realized, nil
}

// CostBasis 持仓成本（数量 × 成本均价），货币精度
func (h *Holding) CostBasis() decimal.Decimal {
	return h.Quantity.Mul(h.AverageCost).Round(2)
}

// IsFlat 是否已平仓
func (h *Holding) IsFlat() bool {
	return h.Quantity.IsZero()
}
