package domain

import (
	"context"

	mddomain "github.com/wyfcoding/papertrading/internal/marketdata/domain"
)

// PortfolioRepository 组合仓储接口
// Update 带版本号条件，版本不匹配返回订单域的 ErrConcurrencyConflict
type PortfolioRepository interface {
	Create(ctx context.Context, portfolio *Portfolio) error
	Get(ctx context.Context, id uint) (*Portfolio, error)
	ListByUser(ctx context.Context, userID uint) ([]*Portfolio, error)
	Update(ctx context.Context, portfolio *Portfolio) error
}

// HoldingRepository 持仓仓储接口
type HoldingRepository interface {
	Create(ctx context.Context, holding *Holding) error
	GetByInstrument(ctx context.Context, portfolioID uint, inst mddomain.Instrument) (*Holding, error)
	ListByPortfolio(ctx context.Context, portfolioID uint) ([]*Holding, error)
	Update(ctx context.Context, holding *Holding) error
}
