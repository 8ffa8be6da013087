package domain

import (
	"context"
	"time"
)

// AssetRepository 资产仓储接口
type AssetRepository interface {
	Save(ctx context.Context, asset *Asset) error
	Get(ctx context.Context, id uint) (*Asset, error)
	GetBySymbol(ctx context.Context, symbol string) (*Asset, error)
	ListActive(ctx context.Context, limit, offset int) ([]*Asset, int64, error)
	Update(ctx context.Context, asset *Asset) error
}

// OptionRepository 期权仓储接口
type OptionRepository interface {
	Save(ctx context.Context, option *Option) error
	Get(ctx context.Context, id uint) (*Option, error)
	ListByUnderlying(ctx context.Context, assetID uint) ([]*Option, error)
	Update(ctx context.Context, option *Option) error
}

// PriceHistoryRepository K 线仓储接口
type PriceHistoryRepository interface {
	Append(ctx context.Context, record *PriceHistory) error
	Range(ctx context.Context, assetID uint, tf Timeframe, from, to time.Time) ([]*PriceHistory, error)
}

// PriceCache 行情快照缓存接口（读穿缓存，源是仓储）
type PriceCache interface {
	GetQuote(ctx context.Context, inst Instrument) (Quote, bool, error)
	SetQuote(ctx context.Context, inst Instrument, q Quote) error
	Invalidate(ctx context.Context, inst Instrument) error
}
