// Package domain 包含投资组合与持仓的领域模型
package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrPortfolioNotFound 组合不存在
	ErrPortfolioNotFound = errors.New("portfolio not found")
	// ErrHoldingNotFound 持仓不存在
	ErrHoldingNotFound = errors.New("holding not found")
	// ErrInsufficientFunds 现金不足以支付买入成交
	ErrInsufficientFunds = errors.New("insufficient cash balance")
	// ErrInsufficientHolding 卖出数量超过持仓（不支持做空）
	ErrInsufficientHolding = errors.New("sell exceeds held quantity")
)

// Portfolio 投资组合聚合根
// total_value / unrealized_pnl 是估值快照字段，由 Revalue 整体重算，不做增量修补
type Portfolio struct {
	ID          uint
	UserID      uint
	Name        string
	Description string
	CashBalance decimal.Decimal
	TotalValue  decimal.Decimal
	// 未实现盈亏（估值快照）
	UnrealizedPnL decimal.Decimal
	// 已实现盈亏（卖出时锁定，只增量累加）
	RealizedPnL decimal.Decimal
	IsDefault   bool
	// 乐观锁版本号
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewPortfolio 创建组合，初始总值等于初始资金
func NewPortfolio(userID uint, name, description string, startingCash decimal.Decimal) *Portfolio {
	cash := startingCash.Round(2)
	return &Portfolio{
		UserID:        userID,
		Name:          name,
		Description:   description,
		CashBalance:   cash,
		TotalValue:    cash,
		UnrealizedPnL: decimal.Zero,
		RealizedPnL:   decimal.Zero,
	}
}

// Debit 扣减现金，余额不足时失败且不改变状态
func (p *Portfolio) Debit(amount decimal.Decimal) error {
	amount = amount.Round(2)
	if p.CashBalance.LessThan(amount) {
		return fmt.Errorf("%w: balance %s, required %s", ErrInsufficientFunds, p.CashBalance, amount)
	}
	p.CashBalance = p.CashBalance.Sub(amount)
	return nil
}

// Credit 增加现金
func (p *Portfolio) Credit(amount decimal.Decimal) {
	p.CashBalance = p.CashBalance.Add(amount.Round(2))
}

// AddRealizedPnL 累加已实现盈亏
func (p *Portfolio) AddRealizedPnL(pnl decimal.Decimal) {
	p.RealizedPnL = p.RealizedPnL.Add(pnl.Round(2))
}
