package domain

import (
	"fmt"

	"github.com/shopspring/decimal"

	mddomain "github.com/wyfcoding/papertrading/internal/marketdata/domain"
)

// PortfolioSummary 组合估值结果
type PortfolioSummary struct {
	PortfolioID          uint            `json:"portfolio_id"`
	TotalValue           decimal.Decimal `json:"total_value"`
	CashBalance          decimal.Decimal `json:"cash_balance"`
	InvestedValue        decimal.Decimal `json:"invested_value"`
	UnrealizedPnL        decimal.Decimal `json:"unrealized_pnl"`
	UnrealizedPnLPercent decimal.Decimal `json:"unrealized_pnl_percent"`
	RealizedPnL          decimal.Decimal `json:"realized_pnl"`
	DayChange            decimal.Decimal `json:"day_change"`
	DayChangePercent     decimal.Decimal `json:"day_change_percent"`
	HoldingsCount        int             `json:"holdings_count"`
}

var hundred = decimal.NewFromInt(100)

// RevalueHolding 按报价重算单个持仓的估值快照字段
func (h *Holding) RevalueHolding(q mddomain.Quote) {
	h.CurrentValue = h.Quantity.Mul(q.Mark).Round(2)
	costBasis := h.CostBasis()
	h.UnrealizedPnL = h.CurrentValue.Sub(costBasis)
	if costBasis.IsZero() {
		h.UnrealizedPnLPercent = decimal.Zero
	} else {
		h.UnrealizedPnLPercent = h.UnrealizedPnL.Div(costBasis).Mul(hundred).Round(4)
	}
}

// Revalue 用行情快照整体重算组合估值
// 纯重算：每次从现金与持仓推导全部快照字段，不在旧值上修补，因此天然幂等
// 会就地更新 portfolio 与 holdings 的快照字段，并返回汇总
func Revalue(p *Portfolio, holdings []*Holding, snapshot mddomain.PriceSnapshot) (*PortfolioSummary, error) {
	invested := decimal.Zero
	unrealized := decimal.Zero
	costTotal := decimal.Zero
	dayChange := decimal.Zero

	for _, h := range holdings {
		q, ok := snapshot.Lookup(h.Instrument)
		if !ok {
			return nil, fmt.Errorf("no quote for instrument %s", h.Instrument.String())
		}
		h.RevalueHolding(q)

		invested = invested.Add(h.CurrentValue)
		unrealized = unrealized.Add(h.UnrealizedPnL)
		costTotal = costTotal.Add(h.CostBasis())
		dayChange = dayChange.Add(h.Quantity.Mul(q.Change24h))
	}

	dayChange = dayChange.Round(2)

	p.TotalValue = p.CashBalance.Add(invested)
	p.UnrealizedPnL = unrealized

	summary := &PortfolioSummary{
		PortfolioID:   p.ID,
		TotalValue:    p.TotalValue,
		CashBalance:   p.CashBalance,
		InvestedValue: invested,
		UnrealizedPnL: unrealized,
		RealizedPnL:   p.RealizedPnL,
		DayChange:     dayChange,
		HoldingsCount: len(holdings),
	}

	if costTotal.IsZero() {
		summary.UnrealizedPnLPercent = decimal.Zero
	} else {
		summary.UnrealizedPnLPercent = unrealized.Div(costTotal).Mul(hundred).Round(4)
	}

	prevTotal := p.TotalValue.Sub(dayChange)
	if prevTotal.IsZero() {
		summary.DayChangePercent = decimal.Zero
	} else {
		summary.DayChangePercent = dayChange.Div(prevTotal).Mul(hundred).Round(4)
	}

	return summary, nil
}
