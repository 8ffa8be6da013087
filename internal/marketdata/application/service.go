// Package application 行情与参考数据的用例逻辑
package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/papertrading/internal/marketdata/domain"
	"github.com/wyfcoding/papertrading/pkg/logger"
)

// ErrInstrumentNotFound 标的不存在
var ErrInstrumentNotFound = errors.New("instrument not found")

// MarketDataService 行情应用服务
// 维护资产/期权参考数据，并向交易核心提供行情快照
type MarketDataService struct {
	assets  domain.AssetRepository
	options domain.OptionRepository
	history domain.PriceHistoryRepository
	cache   domain.PriceCache
}

// NewMarketDataService 创建行情应用服务
// cache 可以为 nil，此时快照直接读仓储
func NewMarketDataService(
	assets domain.AssetRepository,
	options domain.OptionRepository,
	history domain.PriceHistoryRepository,
	cache domain.PriceCache,
) *MarketDataService {
	return &MarketDataService{
		assets:  assets,
		options: options,
		history: history,
		cache:   cache,
	}
}

// CreateAsset 创建资产
func (s *MarketDataService) CreateAsset(ctx context.Context, asset *domain.Asset) error {
	if asset.Symbol == "" || asset.Name == "" {
		return fmt.Errorf("symbol and name are required")
	}
	asset.IsActive = true
	if err := s.assets.Save(ctx, asset); err != nil {
		return fmt.Errorf("failed to create asset: %w", err)
	}
	return nil
}

// GetAsset 获取资产
func (s *MarketDataService) GetAsset(ctx context.Context, id uint) (*domain.Asset, error) {
	asset, err := s.assets.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if asset == nil {
		return nil, ErrInstrumentNotFound
	}
	return asset, nil
}

// ListAssets 列出活跃资产
func (s *MarketDataService) ListAssets(ctx context.Context, limit, offset int) ([]*domain.Asset, int64, error) {
	return s.assets.ListActive(ctx, limit, offset)
}

// UpdateAssetPrice 更新资产行情，落一条 K 线并使缓存失效
func (s *MarketDataService) UpdateAssetPrice(ctx context.Context, assetID uint, price, change24h decimal.Decimal) (*domain.Asset, error) {
	if price.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("price must be positive")
	}

	asset, err := s.GetAsset(ctx, assetID)
	if err != nil {
		return nil, err
	}

	asset.ApplyPrice(price, change24h)
	if err := s.assets.Update(ctx, asset); err != nil {
		return nil, fmt.Errorf("failed to update asset price: %w", err)
	}

	tick := domain.NewTick(assetID, price, time.Now(), domain.Timeframe1m)
	if err := s.history.Append(ctx, tick); err != nil {
		// 行情历史缺一条不阻断价格更新
		logger.Warn(ctx, "failed to append price history", "asset_id", assetID, "error", err)
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, asset.Instrument()); err != nil {
			logger.Warn(ctx, "failed to invalidate price cache", "instrument", asset.Instrument().String(), "error", err)
		}
	}

	return asset, nil
}

// CreateOption 创建期权合约
func (s *MarketDataService) CreateOption(ctx context.Context, option *domain.Option) error {
	if option.Symbol == "" || option.UnderlyingAssetID == 0 {
		return fmt.Errorf("symbol and underlying asset are required")
	}
	underlying, err := s.assets.Get(ctx, option.UnderlyingAssetID)
	if err != nil {
		return err
	}
	if underlying == nil {
		return ErrInstrumentNotFound
	}
	option.IsActive = true
	if err := s.options.Save(ctx, option); err != nil {
		return fmt.Errorf("failed to create option: %w", err)
	}
	return nil
}

// GetOption 获取期权合约
func (s *MarketDataService) GetOption(ctx context.Context, id uint) (*domain.Option, error) {
	option, err := s.options.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if option == nil {
		return nil, ErrInstrumentNotFound
	}
	return option, nil
}

// UpdateOptionPrice 更新期权行情
func (s *MarketDataService) UpdateOptionPrice(ctx context.Context, optionID uint, price decimal.Decimal) (*domain.Option, error) {
	if price.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("price must be positive")
	}

	option, err := s.GetOption(ctx, optionID)
	if err != nil {
		return nil, err
	}

	option.CurrentPrice = price
	option.UpdatedAt = time.Now()
	if err := s.options.Update(ctx, option); err != nil {
		return nil, fmt.Errorf("failed to update option price: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, option.Instrument()); err != nil {
			logger.Warn(ctx, "failed to invalidate price cache", "instrument", option.Instrument().String(), "error", err)
		}
	}

	return option, nil
}

// Candles 查询 K 线
func (s *MarketDataService) Candles(ctx context.Context, assetID uint, tf domain.Timeframe, from, to time.Time) ([]*domain.PriceHistory, error) {
	return s.history.Range(ctx, assetID, tf, from, to)
}

// InstrumentTradable 标的是否存在且可交易，订单提交前校验用
func (s *MarketDataService) InstrumentTradable(ctx context.Context, inst domain.Instrument) (bool, error) {
	switch inst.Kind {
	case domain.InstrumentAsset:
		asset, err := s.assets.Get(ctx, inst.ID)
		if err != nil {
			return false, err
		}
		return asset != nil && asset.IsActive, nil
	case domain.InstrumentOption:
		option, err := s.options.Get(ctx, inst.ID)
		if err != nil {
			return false, err
		}
		return option != nil && option.IsActive && !option.IsExpired(time.Now()), nil
	default:
		return false, nil
	}
}

// Snapshot 构建一组标的的行情快照，优先读缓存
func (s *MarketDataService) Snapshot(ctx context.Context, instruments []domain.Instrument) (domain.PriceSnapshot, error) {
	snapshot := make(domain.PriceSnapshot, len(instruments))

	for _, inst := range instruments {
		if _, done := snapshot[inst]; done {
			continue
		}

		if s.cache != nil {
			if q, ok, err := s.cache.GetQuote(ctx, inst); err == nil && ok {
				snapshot[inst] = q
				continue
			}
		}

		q, err := s.quoteFromStore(ctx, inst)
		if err != nil {
			return nil, err
		}
		snapshot[inst] = q

		if s.cache != nil {
			if err := s.cache.SetQuote(ctx, inst, q); err != nil {
				logger.Warn(ctx, "failed to cache quote", "instrument", inst.String(), "error", err)
			}
		}
	}

	return snapshot, nil
}

func (s *MarketDataService) quoteFromStore(ctx context.Context, inst domain.Instrument) (domain.Quote, error) {
	switch inst.Kind {
	case domain.InstrumentAsset:
		asset, err := s.assets.Get(ctx, inst.ID)
		if err != nil {
			return domain.Quote{}, err
		}
		if asset == nil {
			return domain.Quote{}, fmt.Errorf("%w: %s", ErrInstrumentNotFound, inst.String())
		}
		return asset.Quote(), nil
	case domain.InstrumentOption:
		option, err := s.options.Get(ctx, inst.ID)
		if err != nil {
			return domain.Quote{}, err
		}
		if option == nil {
			return domain.Quote{}, fmt.Errorf("%w: %s", ErrInstrumentNotFound, inst.String())
		}
		return option.Quote(), nil
	default:
		return domain.Quote{}, fmt.Errorf("%w: %s", ErrInstrumentNotFound, inst.String())
	}
}
