// Package mysql 行情与参考数据仓储的 MySQL GORM 实现
package mysql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/wyfcoding/papertrading/internal/marketdata/domain"
	"github.com/wyfcoding/papertrading/pkg/db"
	"github.com/wyfcoding/papertrading/pkg/logger"
)

// AssetModel 资产数据库模型，映射 assets 表
type AssetModel struct {
	gorm.Model
	Symbol               string          `gorm:"column:symbol;type:varchar(20);uniqueIndex;not null"`
	Name                 string          `gorm:"column:name;type:varchar(200);not null"`
	AssetType            string          `gorm:"column:asset_type;type:varchar(10);index;not null"`
	Exchange             string          `gorm:"column:exchange;type:varchar(50);not null"`
	CurrentPrice         decimal.Decimal `gorm:"column:current_price;type:decimal(20,8);not null"`
	MarketCap            decimal.Decimal `gorm:"column:market_cap;type:decimal(20,2)"`
	Volume24h            decimal.Decimal `gorm:"column:volume_24h;type:decimal(20,2)"`
	PriceChange24h       decimal.Decimal `gorm:"column:price_change_24h;type:decimal(20,8);not null;default:0"`
	PriceChangePercent24 decimal.Decimal `gorm:"column:price_change_percent_24h;type:decimal(10,4);not null;default:0"`
	IsActive             bool            `gorm:"column:is_active;not null;default:true"`
	Metadata             string          `gorm:"column:metadata;type:json"`
}

// TableName 指定表名
func (AssetModel) TableName() string { return "assets" }

// OptionModel 期权数据库模型，映射 options 表
type OptionModel struct {
	gorm.Model
	Symbol            string          `gorm:"column:symbol;type:varchar(50);uniqueIndex;not null"`
	UnderlyingAssetID uint            `gorm:"column:underlying_asset_id;index;not null"`
	OptionType        string          `gorm:"column:option_type;type:varchar(4);not null"`
	StrikePrice       decimal.Decimal `gorm:"column:strike_price;type:decimal(20,8);not null"`
	ExpirationDate    time.Time       `gorm:"column:expiration_date;not null"`
	CurrentPrice      decimal.Decimal `gorm:"column:current_price;type:decimal(20,8);not null"`
	ImpliedVolatility decimal.Decimal `gorm:"column:implied_volatility;type:decimal(10,4)"`
	Delta             decimal.Decimal `gorm:"column:delta;type:decimal(10,6)"`
	Gamma             decimal.Decimal `gorm:"column:gamma;type:decimal(10,6)"`
	Theta             decimal.Decimal `gorm:"column:theta;type:decimal(10,6)"`
	Vega              decimal.Decimal `gorm:"column:vega;type:decimal(10,6)"`
	OpenInterest      int64           `gorm:"column:open_interest"`
	Volume            int64           `gorm:"column:volume"`
	IsActive          bool            `gorm:"column:is_active;not null;default:true"`
}

// TableName 指定表名
func (OptionModel) TableName() string { return "options" }

// PriceHistoryModel K 线数据库模型，映射 price_history 表
type PriceHistoryModel struct {
	ID         uint            `gorm:"primarykey"`
	AssetID    uint            `gorm:"column:asset_id;index:idx_asset_tf_ts;not null"`
	Timestamp  time.Time       `gorm:"column:timestamp;index:idx_asset_tf_ts;not null"`
	OpenPrice  decimal.Decimal `gorm:"column:open_price;type:decimal(20,8);not null"`
	HighPrice  decimal.Decimal `gorm:"column:high_price;type:decimal(20,8);not null"`
	LowPrice   decimal.Decimal `gorm:"column:low_price;type:decimal(20,8);not null"`
	ClosePrice decimal.Decimal `gorm:"column:close_price;type:decimal(20,8);not null"`
	Volume     decimal.Decimal `gorm:"column:volume;type:decimal(20,2);not null"`
	Timeframe  string          `gorm:"column:timeframe;type:varchar(10);index:idx_asset_tf_ts;not null"`
}

// TableName 指定表名
func (PriceHistoryModel) TableName() string { return "price_history" }

// AutoMigrate 迁移行情相关表
func AutoMigrate(g *gorm.DB) error {
	return g.AutoMigrate(&AssetModel{}, &OptionModel{}, &PriceHistoryModel{})
}

type assetRepositoryImpl struct {
	db *gorm.DB
}

// NewAssetRepository 创建资产仓储实例
func NewAssetRepository(g *gorm.DB) domain.AssetRepository {
	return &assetRepositoryImpl{db: g}
}

func (r *assetRepositoryImpl) Save(ctx context.Context, asset *domain.Asset) error {
	model := assetToModel(asset)
	if err := db.FromContext(ctx, r.db).Create(model).Error; err != nil {
		logger.Error(ctx, "asset_repository.save failed", "symbol", asset.Symbol, "error", err)
		return fmt.Errorf("failed to save asset: %w", err)
	}
	asset.ID = model.ID
	asset.CreatedAt = model.CreatedAt
	asset.UpdatedAt = model.UpdatedAt
	return nil
}

func (r *assetRepositoryImpl) Get(ctx context.Context, id uint) (*domain.Asset, error) {
	var model AssetModel
	if err := db.FromContext(ctx, r.db).First(&model, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get asset: %w", err)
	}
	return assetToDomain(&model), nil
}

func (r *assetRepositoryImpl) GetBySymbol(ctx context.Context, symbol string) (*domain.Asset, error) {
	var model AssetModel
	if err := db.FromContext(ctx, r.db).Where("symbol = ?", symbol).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get asset by symbol: %w", err)
	}
	return assetToDomain(&model), nil
}

func (r *assetRepositoryImpl) ListActive(ctx context.Context, limit, offset int) ([]*domain.Asset, int64, error) {
	var models []AssetModel
	var total int64
	q := db.FromContext(ctx, r.db).Model(&AssetModel{}).Where("is_active = ?", true)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := q.Order("symbol asc").Limit(limit).Offset(offset).Find(&models).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list assets: %w", err)
	}
	assets := make([]*domain.Asset, len(models))
	for i := range models {
		assets[i] = assetToDomain(&models[i])
	}
	return assets, total, nil
}

func (r *assetRepositoryImpl) Update(ctx context.Context, asset *domain.Asset) error {
	updates := map[string]interface{}{
		"current_price":            asset.CurrentPrice,
		"market_cap":               asset.MarketCap,
		"volume_24h":               asset.Volume24h,
		"price_change_24h":         asset.PriceChange24h,
		"price_change_percent_24h": asset.PriceChangePercent24,
		"is_active":                asset.IsActive,
	}
	if err := db.FromContext(ctx, r.db).Model(&AssetModel{}).Where("id = ?", asset.ID).Updates(updates).Error; err != nil {
		logger.Error(ctx, "asset_repository.update failed", "asset_id", asset.ID, "error", err)
		return fmt.Errorf("failed to update asset: %w", err)
	}
	return nil
}

func assetToModel(a *domain.Asset) *AssetModel {
	meta := ""
	if len(a.Metadata) > 0 {
		if data, err := json.Marshal(a.Metadata); err == nil {
			meta = string(data)
		}
	}
	model := &AssetModel{
		Symbol:               a.Symbol,
		Name:                 a.Name,
		AssetType:            string(a.AssetType),
		Exchange:             a.Exchange,
		CurrentPrice:         a.CurrentPrice,
		MarketCap:            a.MarketCap,
		Volume24h:            a.Volume24h,
		PriceChange24h:       a.PriceChange24h,
		PriceChangePercent24: a.PriceChangePercent24,
		IsActive:             a.IsActive,
		Metadata:             meta,
	}
	model.ID = a.ID
	return model
}

func assetToDomain(m *AssetModel) *domain.Asset {
	var meta map[string]any
	if m.Metadata != "" {
		_ = json.Unmarshal([]byte(m.Metadata), &meta)
	}
	return &domain.Asset{
		ID:                   m.ID,
		Symbol:               m.Symbol,
		Name:                 m.Name,
		AssetType:            domain.AssetType(m.AssetType),
		Exchange:             m.Exchange,
		CurrentPrice:         m.CurrentPrice,
		MarketCap:            m.MarketCap,
		Volume24h:            m.Volume24h,
		PriceChange24h:       m.PriceChange24h,
		PriceChangePercent24: m.PriceChangePercent24,
		IsActive:             m.IsActive,
		Metadata:             meta,
		CreatedAt:            m.CreatedAt,
		UpdatedAt:            m.UpdatedAt,
	}
}

type optionRepositoryImpl struct {
	db *gorm.DB
}

// NewOptionRepository 创建期权仓储实例
func NewOptionRepository(g *gorm.DB) domain.OptionRepository {
	return &optionRepositoryImpl{db: g}
}

func (r *optionRepositoryImpl) Save(ctx context.Context, option *domain.Option) error {
	model := optionToModel(option)
	if err := db.FromContext(ctx, r.db).Create(model).Error; err != nil {
		logger.Error(ctx, "option_repository.save failed", "symbol", option.Symbol, "error", err)
		return fmt.Errorf("failed to save option: %w", err)
	}
	option.ID = model.ID
	option.CreatedAt = model.CreatedAt
	option.UpdatedAt = model.UpdatedAt
	return nil
}

func (r *optionRepositoryImpl) Get(ctx context.Context, id uint) (*domain.Option, error) {
	var model OptionModel
	if err := db.FromContext(ctx, r.db).First(&model, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get option: %w", err)
	}
	return optionToDomain(&model), nil
}

func (r *optionRepositoryImpl) ListByUnderlying(ctx context.Context, assetID uint) ([]*domain.Option, error) {
	var models []OptionModel
	err := db.FromContext(ctx, r.db).
		Where("underlying_asset_id = ? AND is_active = ?", assetID, true).
		Order("expiration_date asc").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list options: %w", err)
	}
	options := make([]*domain.Option, len(models))
	for i := range models {
		options[i] = optionToDomain(&models[i])
	}
	return options, nil
}

func (r *optionRepositoryImpl) Update(ctx context.Context, option *domain.Option) error {
	updates := map[string]interface{}{
		"current_price":      option.CurrentPrice,
		"implied_volatility": option.ImpliedVolatility,
		"delta":              option.Delta,
		"gamma":              option.Gamma,
		"theta":              option.Theta,
		"vega":               option.Vega,
		"open_interest":      option.OpenInterest,
		"volume":             option.Volume,
		"is_active":          option.IsActive,
	}
	if err := db.FromContext(ctx, r.db).Model(&OptionModel{}).Where("id = ?", option.ID).Updates(updates).Error; err != nil {
		logger.Error(ctx, "option_repository.update failed", "option_id", option.ID, "error", err)
		return fmt.Errorf("failed to update option: %w", err)
	}
	return nil
}

func optionToModel(o *domain.Option) *OptionModel {
	model := &OptionModel{
		Symbol:            o.Symbol,
		UnderlyingAssetID: o.UnderlyingAssetID,
		OptionType:        string(o.OptionType),
		StrikePrice:       o.StrikePrice,
		ExpirationDate:    o.ExpirationDate,
		CurrentPrice:      o.CurrentPrice,
		ImpliedVolatility: o.ImpliedVolatility,
		Delta:             o.Delta,
		Gamma:             o.Gamma,
		Theta:             o.Theta,
		Vega:              o.Vega,
		OpenInterest:      o.OpenInterest,
		Volume:            o.Volume,
		IsActive:          o.IsActive,
	}
	model.ID = o.ID
	return model
}

func optionToDomain(m *OptionModel) *domain.Option {
	return &domain.Option{
		ID:                m.ID,
		Symbol:            m.Symbol,
		UnderlyingAssetID: m.UnderlyingAssetID,
		OptionType:        domain.OptionType(m.OptionType),
		StrikePrice:       m.StrikePrice,
		ExpirationDate:    m.ExpirationDate,
		CurrentPrice:      m.CurrentPrice,
		ImpliedVolatility: m.ImpliedVolatility,
		Delta:             m.Delta,
		Gamma:             m.Gamma,
		Theta:             m.Theta,
		Vega:              m.Vega,
		OpenInterest:      m.OpenInterest,
		Volume:            m.Volume,
		IsActive:          m.IsActive,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

type priceHistoryRepositoryImpl struct {
	db *gorm.DB
}

// NewPriceHistoryRepository 创建 K 线仓储实例
func NewPriceHistoryRepository(g *gorm.DB) domain.PriceHistoryRepository {
	return &priceHistoryRepositoryImpl{db: g}
}

func (r *priceHistoryRepositoryImpl) Append(ctx context.Context, record *domain.PriceHistory) error {
	model := &PriceHistoryModel{
		AssetID:    record.AssetID,
		Timestamp:  record.Timestamp,
		OpenPrice:  record.OpenPrice,
		HighPrice:  record.HighPrice,
		LowPrice:   record.LowPrice,
		ClosePrice: record.ClosePrice,
		Volume:     record.Volume,
		Timeframe:  string(record.Timeframe),
	}
	if err := db.FromContext(ctx, r.db).Create(model).Error; err != nil {
		return fmt.Errorf("failed to append price history: %w", err)
	}
	record.ID = model.ID
	return nil
}

func (r *priceHistoryRepositoryImpl) Range(ctx context.Context, assetID uint, tf domain.Timeframe, from, to time.Time) ([]*domain.PriceHistory, error) {
	var models []PriceHistoryModel
	err := db.FromContext(ctx, r.db).
		Where("asset_id = ? AND timeframe = ? AND timestamp >= ? AND timestamp < ?", assetID, string(tf), from, to).
		Order("timestamp asc").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query price history: %w", err)
	}
	records := make([]*domain.PriceHistory, len(models))
	for i, m := range models {
		records[i] = &domain.PriceHistory{
			ID:         m.ID,
			AssetID:    m.AssetID,
			Timestamp:  m.Timestamp,
			OpenPrice:  m.OpenPrice,
			HighPrice:  m.HighPrice,
			LowPrice:   m.LowPrice,
			ClosePrice: m.ClosePrice,
			Volume:     m.Volume,
			Timeframe:  domain.Timeframe(m.Timeframe),
		}
	}
	return records, nil
}
