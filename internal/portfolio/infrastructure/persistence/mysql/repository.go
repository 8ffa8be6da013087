// Package mysql 组合与持仓仓储的 MySQL GORM 实现
package mysql

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	mddomain "github.com/wyfcoding/papertrading/internal/marketdata/domain"
	orderdomain "github.com/wyfcoding/papertrading/internal/order/domain"
	"github.com/wyfcoding/papertrading/internal/portfolio/domain"
	"github.com/wyfcoding/papertrading/pkg/db"
	"github.com/wyfcoding/papertrading/pkg/logger"
)

// PortfolioModel 组合数据库模型，映射 portfolios 表
type PortfolioModel struct {
	gorm.Model
	UserID        uint            `gorm:"column:user_id;index;not null"`
	Name          string          `gorm:"column:name;type:varchar(100);not null"`
	Description   string          `gorm:"column:description;type:varchar(500)"`
	CashBalance   decimal.Decimal `gorm:"column:cash_balance;type:decimal(20,2);not null"`
	TotalValue    decimal.Decimal `gorm:"column:total_value;type:decimal(20,2);not null"`
	UnrealizedPnL decimal.Decimal `gorm:"column:unrealized_pnl;type:decimal(20,2);not null;default:0"`
	RealizedPnL   decimal.Decimal `gorm:"column:realized_pnl;type:decimal(20,2);not null;default:0"`
	IsDefault     bool            `gorm:"column:is_default;not null;default:false"`
	Version       int64           `gorm:"column:version;not null;default:0"`
}

// TableName 指定表名
func (PortfolioModel) TableName() string { return "portfolios" }

// HoldingModel 持仓数据库模型，映射 holdings 表
// 同一组合同一标的唯一
type HoldingModel struct {
	gorm.Model
	PortfolioID          uint            `gorm:"column:portfolio_id;uniqueIndex:idx_portfolio_instrument;not null"`
	InstrumentKind       string          `gorm:"column:instrument_kind;type:varchar(10);uniqueIndex:idx_portfolio_instrument;not null"`
	InstrumentID         uint            `gorm:"column:instrument_id;uniqueIndex:idx_portfolio_instrument;not null"`
	Quantity             decimal.Decimal `gorm:"column:quantity;type:decimal(20,8);not null;default:0"`
	AverageCost          decimal.Decimal `gorm:"column:average_cost;type:decimal(20,8);not null;default:0"`
	CurrentValue         decimal.Decimal `gorm:"column:current_value;type:decimal(20,2);not null;default:0"`
	UnrealizedPnL        decimal.Decimal `gorm:"column:unrealized_pnl;type:decimal(20,2);not null;default:0"`
	UnrealizedPnLPercent decimal.Decimal `gorm:"column:unrealized_pnl_percent;type:decimal(10,4);not null;default:0"`
	Version              int64           `gorm:"column:version;not null;default:0"`
}

// TableName 指定表名
func (HoldingModel) TableName() string { return "holdings" }

// AutoMigrate 迁移组合相关表
func AutoMigrate(g *gorm.DB) error {
	return g.AutoMigrate(&PortfolioModel{}, &HoldingModel{})
}

type portfolioRepositoryImpl struct {
	db *gorm.DB
}

// NewPortfolioRepository 创建组合仓储实例
func NewPortfolioRepository(g *gorm.DB) domain.PortfolioRepository {
	return &portfolioRepositoryImpl{db: g}
}

func (r *portfolioRepositoryImpl) Create(ctx context.Context, portfolio *domain.Portfolio) error {
	model := toPortfolioModel(portfolio)
	if err := db.FromContext(ctx, r.db).Create(model).Error; err != nil {
		logger.Error(ctx, "portfolio_repository.create failed", "user_id", portfolio.UserID, "error", err)
		return fmt.Errorf("%w: %w", orderdomain.ErrStoreUnavailable, err)
	}
	portfolio.ID = model.ID
	portfolio.CreatedAt = model.CreatedAt
	portfolio.UpdatedAt = model.UpdatedAt
	return nil
}

func (r *portfolioRepositoryImpl) Get(ctx context.Context, id uint) (*domain.Portfolio, error) {
	var model PortfolioModel
	if err := db.FromContext(ctx, r.db).First(&model, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		logger.Error(ctx, "portfolio_repository.get failed", "portfolio_id", id, "error", err)
		return nil, fmt.Errorf("%w: %w", orderdomain.ErrStoreUnavailable, err)
	}
	return toPortfolioDomain(&model), nil
}

func (r *portfolioRepositoryImpl) ListByUser(ctx context.Context, userID uint) ([]*domain.Portfolio, error) {
	var models []PortfolioModel
	err := db.FromContext(ctx, r.db).
		Where("user_id = ?", userID).
		Order("created_at asc").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("%w: %w", orderdomain.ErrStoreUnavailable, err)
	}
	portfolios := make([]*domain.Portfolio, len(models))
	for i := range models {
		portfolios[i] = toPortfolioDomain(&models[i])
	}
	return portfolios, nil
}

// Update 带版本条件写回组合，版本不匹配返回 ErrConcurrencyConflict
func (r *portfolioRepositoryImpl) Update(ctx context.Context, portfolio *domain.Portfolio) error {
	updates := map[string]interface{}{
		"name":           portfolio.Name,
		"description":    portfolio.Description,
		"cash_balance":   portfolio.CashBalance,
		"total_value":    portfolio.TotalValue,
		"unrealized_pnl": portfolio.UnrealizedPnL,
		"realized_pnl":   portfolio.RealizedPnL,
		"is_default":     portfolio.IsDefault,
		"version":        portfolio.Version + 1,
	}
	res := db.FromContext(ctx, r.db).
		Model(&PortfolioModel{}).
		Where("id = ? AND version = ?", portfolio.ID, portfolio.Version).
		Updates(updates)
	if res.Error != nil {
		logger.Error(ctx, "portfolio_repository.update failed", "portfolio_id", portfolio.ID, "error", res.Error)
		return fmt.Errorf("%w: %w", orderdomain.ErrStoreUnavailable, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: portfolio %d version %d", orderdomain.ErrConcurrencyConflict, portfolio.ID, portfolio.Version)
	}
	portfolio.Version++
	return nil
}

type holdingRepositoryImpl struct {
	db *gorm.DB
}

// NewHoldingRepository 创建持仓仓储实例
func NewHoldingRepository(g *gorm.DB) domain.HoldingRepository {
	return &holdingRepositoryImpl{db: g}
}

func (r *holdingRepositoryImpl) Create(ctx context.Context, holding *domain.Holding) error {
	model := toHoldingModel(holding)
	if err := db.FromContext(ctx, r.db).Create(model).Error; err != nil {
		logger.Error(ctx, "holding_repository.create failed",
			"portfolio_id", holding.PortfolioID,
			"instrument", holding.Instrument.String(),
			"error", err,
		)
		return fmt.Errorf("%w: %w", orderdomain.ErrStoreUnavailable, err)
	}
	holding.ID = model.ID
	holding.CreatedAt = model.CreatedAt
	holding.UpdatedAt = model.UpdatedAt
	return nil
}

func (r *holdingRepositoryImpl) GetByInstrument(ctx context.Context, portfolioID uint, inst mddomain.Instrument) (*domain.Holding, error) {
	var model HoldingModel
	err := db.FromContext(ctx, r.db).
		Where("portfolio_id = ? AND instrument_kind = ? AND instrument_id = ?", portfolioID, string(inst.Kind), inst.ID).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %w", orderdomain.ErrStoreUnavailable, err)
	}
	return toHoldingDomain(&model), nil
}

func (r *holdingRepositoryImpl) ListByPortfolio(ctx context.Context, portfolioID uint) ([]*domain.Holding, error) {
	var models []HoldingModel
	err := db.FromContext(ctx, r.db).
		Where("portfolio_id = ?", portfolioID).
		Order("id asc").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("%w: %w", orderdomain.ErrStoreUnavailable, err)
	}
	holdings := make([]*domain.Holding, len(models))
	for i := range models {
		holdings[i] = toHoldingDomain(&models[i])
	}
	return holdings, nil
}

// Update 带版本条件写回持仓，版本不匹配返回 ErrConcurrencyConflict
func (r *holdingRepositoryImpl) Update(ctx context.Context, holding *domain.Holding) error {
	updates := map[string]interface{}{
		"quantity":               holding.Quantity,
		"average_cost":           holding.AverageCost,
		"current_value":          holding.CurrentValue,
		"unrealized_pnl":         holding.UnrealizedPnL,
		"unrealized_pnl_percent": holding.UnrealizedPnLPercent,
		"version":                holding.Version + 1,
	}
	res := db.FromContext(ctx, r.db).
		Model(&HoldingModel{}).
		Where("id = ? AND version = ?", holding.ID, holding.Version).
		Updates(updates)
	if res.Error != nil {
		logger.Error(ctx, "holding_repository.update failed", "holding_id", holding.ID, "error", res.Error)
		return fmt.Errorf("%w: %w", orderdomain.ErrStoreUnavailable, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: holding %d version %d", orderdomain.ErrConcurrencyConflict, holding.ID, holding.Version)
	}
	holding.Version++
	return nil
}

func toPortfolioModel(p *domain.Portfolio) *PortfolioModel {
	model := &PortfolioModel{
		UserID:        p.UserID,
		Name:          p.Name,
		Description:   p.Description,
		CashBalance:   p.CashBalance,
		TotalValue:    p.TotalValue,
		UnrealizedPnL: p.UnrealizedPnL,
		RealizedPnL:   p.RealizedPnL,
		IsDefault:     p.IsDefault,
		Version:       p.Version,
	}
	model.ID = p.ID
	return model
}

func toPortfolioDomain(m *PortfolioModel) *domain.Portfolio {
	return &domain.Portfolio{
		ID:            m.ID,
		UserID:        m.UserID,
		Name:          m.Name,
		Description:   m.Description,
		CashBalance:   m.CashBalance,
		TotalValue:    m.TotalValue,
		UnrealizedPnL: m.UnrealizedPnL,
		RealizedPnL:   m.RealizedPnL,
		IsDefault:     m.IsDefault,
		Version:       m.Version,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

func toHoldingModel(h *domain.Holding) *HoldingModel {
	model := &HoldingModel{
		PortfolioID:          h.PortfolioID,
		InstrumentKind:       string(h.Instrument.Kind),
		InstrumentID:         h.Instrument.ID,
		Quantity:             h.Quantity,
		AverageCost:          h.AverageCost,
		CurrentValue:         h.CurrentValue,
		UnrealizedPnL:        h.UnrealizedPnL,
		UnrealizedPnLPercent: h.UnrealizedPnLPercent,
		Version:              h.Version,
	}
	model.ID = h.ID
	return model
}

func toHoldingDomain(m *HoldingModel) *domain.Holding {
	return &domain.Holding{
		ID:                   m.ID,
		PortfolioID:          m.PortfolioID,
		Instrument:           mddomain.Instrument{Kind: mddomain.InstrumentKind(m.InstrumentKind), ID: m.InstrumentID},
		Quantity:             m.Quantity,
		AverageCost:          m.AverageCost,
		CurrentValue:         m.CurrentValue,
		UnrealizedPnL:        m.UnrealizedPnL,
		UnrealizedPnLPercent: m.UnrealizedPnLPercent,
		Version:              m.Version,
		CreatedAt:            m.CreatedAt,
		UpdatedAt:            m.UpdatedAt,
	}
}
