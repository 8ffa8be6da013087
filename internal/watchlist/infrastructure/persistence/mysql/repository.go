// Package mysql 自选列表仓储的 MySQL GORM 实现
package mysql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	mddomain "github.com/wyfcoding/papertrading/internal/marketdata/domain"
	orderdomain "github.com/wyfcoding/papertrading/internal/order/domain"
	"github.com/wyfcoding/papertrading/internal/watchlist/domain"
	"github.com/wyfcoding/papertrading/pkg/db"
)

// WatchlistModel 自选列表数据库模型，映射 watchlists 表
type WatchlistModel struct {
	gorm.Model
	UserID uint   `gorm:"column:user_id;index;not null"`
	Name   string `gorm:"column:name;type:varchar(100);not null"`
}

// TableName 指定表名
func (WatchlistModel) TableName() string { return "watchlists" }

// WatchlistItemModel 自选条目数据库模型，映射 watchlist_items 表
type WatchlistItemModel struct {
	ID             uint            `gorm:"primarykey"`
	WatchlistID    uint            `gorm:"column:watchlist_id;uniqueIndex:idx_watchlist_instrument;not null"`
	InstrumentKind string          `gorm:"column:instrument_kind;type:varchar(10);uniqueIndex:idx_watchlist_instrument;not null"`
	InstrumentID   uint            `gorm:"column:instrument_id;uniqueIndex:idx_watchlist_instrument;not null"`
	PriceAlertHigh decimal.Decimal `gorm:"column:price_alert_high;type:decimal(20,8);not null;default:0"`
	PriceAlertLow  decimal.Decimal `gorm:"column:price_alert_low;type:decimal(20,8);not null;default:0"`
	Notes          string          `gorm:"column:notes;type:varchar(500)"`
	CreatedAt      time.Time
}

// TableName 指定表名
func (WatchlistItemModel) TableName() string { return "watchlist_items" }

// AutoMigrate 迁移自选列表相关表
func AutoMigrate(g *gorm.DB) error {
	return g.AutoMigrate(&WatchlistModel{}, &WatchlistItemModel{})
}

type watchlistRepositoryImpl struct {
	db *gorm.DB
}

// NewWatchlistRepository 创建自选列表仓储实例
func NewWatchlistRepository(g *gorm.DB) domain.WatchlistRepository {
	return &watchlistRepositoryImpl{db: g}
}

func (r *watchlistRepositoryImpl) Create(ctx context.Context, watchlist *domain.Watchlist) error {
	model := &WatchlistModel{UserID: watchlist.UserID, Name: watchlist.Name}
	if err := db.FromContext(ctx, r.db).Create(model).Error; err != nil {
		return fmt.Errorf("%w: %w", orderdomain.ErrStoreUnavailable, err)
	}
	watchlist.ID = model.ID
	watchlist.CreatedAt = model.CreatedAt
	watchlist.UpdatedAt = model.UpdatedAt
	return nil
}

func (r *watchlistRepositoryImpl) Get(ctx context.Context, id uint) (*domain.Watchlist, error) {
	var model WatchlistModel
	if err := db.FromContext(ctx, r.db).First(&model, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %w", orderdomain.ErrStoreUnavailable, err)
	}
	return &domain.Watchlist{
		ID:        model.ID,
		UserID:    model.UserID,
		Name:      model.Name,
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}, nil
}

func (r *watchlistRepositoryImpl) ListByUser(ctx context.Context, userID uint) ([]*domain.Watchlist, error) {
	var models []WatchlistModel
	err := db.FromContext(ctx, r.db).
		Where("user_id = ?", userID).
		Order("created_at asc").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("%w: %w", orderdomain.ErrStoreUnavailable, err)
	}
	watchlists := make([]*domain.Watchlist, len(models))
	for i, m := range models {
		watchlists[i] = &domain.Watchlist{
			ID:        m.ID,
			UserID:    m.UserID,
			Name:      m.Name,
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		}
	}
	return watchlists, nil
}

func (r *watchlistRepositoryImpl) Delete(ctx context.Context, id uint) error {
	g := db.FromContext(ctx, r.db)
	if err := g.Where("watchlist_id = ?", id).Delete(&WatchlistItemModel{}).Error; err != nil {
		return fmt.Errorf("%w: %w", orderdomain.ErrStoreUnavailable, err)
	}
	if err := g.Delete(&WatchlistModel{}, id).Error; err != nil {
		return fmt.Errorf("%w: %w", orderdomain.ErrStoreUnavailable, err)
	}
	return nil
}

func (r *watchlistRepositoryImpl) AddItem(ctx context.Context, item *domain.WatchlistItem) error {
	model := &WatchlistItemModel{
		WatchlistID:    item.WatchlistID,
		InstrumentKind: string(item.Instrument.Kind),
		InstrumentID:   item.Instrument.ID,
		PriceAlertHigh: item.PriceAlertHigh,
		PriceAlertLow:  item.PriceAlertLow,
		Notes:          item.Notes,
	}
	err := db.FromContext(ctx, r.db).Create(model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%w: %s", domain.ErrItemExists, item.Instrument.String())
		}
		return fmt.Errorf("%w: %w", orderdomain.ErrStoreUnavailable, err)
	}
	item.ID = model.ID
	item.CreatedAt = model.CreatedAt
	return nil
}

func (r *watchlistRepositoryImpl) ListItems(ctx context.Context, watchlistID uint) ([]*domain.WatchlistItem, error) {
	var models []WatchlistItemModel
	err := db.FromContext(ctx, r.db).
		Where("watchlist_id = ?", watchlistID).
		Order("id asc").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("%w: %w", orderdomain.ErrStoreUnavailable, err)
	}
	items := make([]*domain.WatchlistItem, len(models))
	for i, m := range models {
		items[i] = &domain.WatchlistItem{
			ID:             m.ID,
			WatchlistID:    m.WatchlistID,
			Instrument:     mddomain.Instrument{Kind: mddomain.InstrumentKind(m.InstrumentKind), ID: m.InstrumentID},
			PriceAlertHigh: m.PriceAlertHigh,
			PriceAlertLow:  m.PriceAlertLow,
			Notes:          m.Notes,
			CreatedAt:      m.CreatedAt,
		}
	}
	return items, nil
}

func (r *watchlistRepositoryImpl) RemoveItem(ctx context.Context, watchlistID uint, inst mddomain.Instrument) error {
	err := db.FromContext(ctx, r.db).
		Where("watchlist_id = ? AND instrument_kind = ? AND instrument_id = ?", watchlistID, string(inst.Kind), inst.ID).
		Delete(&WatchlistItemModel{}).Error
	if err != nil {
		return fmt.Errorf("%w: %w", orderdomain.ErrStoreUnavailable, err)
	}
	return nil
}
