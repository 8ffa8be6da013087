// Package mysql 订单与成交仓储的 MySQL GORM 实现
package mysql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	mddomain "github.com/wyfcoding/papertrading/internal/marketdata/domain"
	"github.com/wyfcoding/papertrading/internal/order/domain"
	"github.com/wyfcoding/papertrading/pkg/db"
	"github.com/wyfcoding/papertrading/pkg/logger"
)

// OrderModel 订单数据库模型，映射 orders 表
type OrderModel struct {
	gorm.Model
	OrderID          string          `gorm:"column:order_id;type:varchar(36);uniqueIndex;not null"`
	UserID           uint            `gorm:"column:user_id;index;not null"`
	PortfolioID      uint            `gorm:"column:portfolio_id;index;not null"`
	InstrumentKind   string          `gorm:"column:instrument_kind;type:varchar(10);not null"`
	InstrumentID     uint            `gorm:"column:instrument_id;not null"`
	Side             string          `gorm:"column:side;type:varchar(10);not null"`
	Type             string          `gorm:"column:type;type:varchar(20);not null"`
	Quantity         decimal.Decimal `gorm:"column:quantity;type:decimal(20,8);not null"`
	Price            decimal.Decimal `gorm:"column:price;type:decimal(20,8)"`
	StopPrice        decimal.Decimal `gorm:"column:stop_price;type:decimal(20,8)"`
	FilledQuantity   decimal.Decimal `gorm:"column:filled_quantity;type:decimal(20,8);not null;default:0"`
	AverageFillPrice decimal.Decimal `gorm:"column:average_fill_price;type:decimal(20,8)"`
	Status           string          `gorm:"column:status;type:varchar(20);index;not null"`
	TimeInForce      string          `gorm:"column:time_in_force;type:varchar(10);not null"`
	Notes            string          `gorm:"column:notes;type:varchar(500)"`
	FilledAt         *time.Time      `gorm:"column:filled_at"`
	CancelledAt      *time.Time      `gorm:"column:cancelled_at"`
	Version          int64           `gorm:"column:version;not null;default:0"`
}

// TableName 指定表名
func (OrderModel) TableName() string { return "orders" }

// ExecutionModel 成交数据库模型，映射 order_executions 表
// (order_id, execution_id) 唯一索引兜底幂等
type ExecutionModel struct {
	ID          uint            `gorm:"primarykey"`
	OrderID     string          `gorm:"column:order_id;type:varchar(36);index;uniqueIndex:idx_order_execution;not null"`
	ExecutionID string          `gorm:"column:execution_id;type:varchar(64);uniqueIndex:idx_order_execution;not null"`
	Price       decimal.Decimal `gorm:"column:execution_price;type:decimal(20,8);not null"`
	Quantity    decimal.Decimal `gorm:"column:execution_quantity;type:decimal(20,8);not null"`
	Commission  decimal.Decimal `gorm:"column:commission;type:decimal(10,2);not null;default:0"`
	Fees        decimal.Decimal `gorm:"column:fees;type:decimal(10,2);not null;default:0"`
	ExecutedAt  time.Time       `gorm:"column:executed_at;not null"`
	CreatedAt   time.Time
}

// TableName 指定表名
func (ExecutionModel) TableName() string { return "order_executions" }

// AutoMigrate 迁移订单相关表
func AutoMigrate(g *gorm.DB) error {
	return g.AutoMigrate(&OrderModel{}, &ExecutionModel{})
}

type orderRepositoryImpl struct {
	db *gorm.DB
}

// NewOrderRepository 创建订单仓储实例
func NewOrderRepository(g *gorm.DB) domain.OrderRepository {
	return &orderRepositoryImpl{db: g}
}

func (r *orderRepositoryImpl) Create(ctx context.Context, order *domain.Order) error {
	model := toModel(order)
	if err := db.FromContext(ctx, r.db).Create(model).Error; err != nil {
		logger.Error(ctx, "order_repository.create failed", "order_id", order.OrderID, "error", err)
		return fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
	order.ID = model.ID
	order.CreatedAt = model.CreatedAt
	order.UpdatedAt = model.UpdatedAt
	return nil
}

func (r *orderRepositoryImpl) Get(ctx context.Context, orderID string) (*domain.Order, error) {
	var model OrderModel
	if err := db.FromContext(ctx, r.db).Where("order_id = ?", orderID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		logger.Error(ctx, "order_repository.get failed", "order_id", orderID, "error", err)
		return nil, fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
	return toDomain(&model), nil
}

func (r *orderRepositoryImpl) ListByUser(ctx context.Context, userID uint, status domain.OrderStatus, limit, offset int) ([]*domain.Order, int64, error) {
	return r.list(ctx, "user_id = ?", userID, status, limit, offset)
}

func (r *orderRepositoryImpl) ListByPortfolio(ctx context.Context, portfolioID uint, status domain.OrderStatus, limit, offset int) ([]*domain.Order, int64, error) {
	return r.list(ctx, "portfolio_id = ?", portfolioID, status, limit, offset)
}

func (r *orderRepositoryImpl) list(ctx context.Context, cond string, arg any, status domain.OrderStatus, limit, offset int) ([]*domain.Order, int64, error) {
	var models []OrderModel
	var total int64
	q := db.FromContext(ctx, r.db).Model(&OrderModel{}).Where(cond, arg)
	if status != "" {
		q = q.Where("status = ?", string(status))
	}
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
	if err := q.Order("created_at desc").Limit(limit).Offset(offset).Find(&models).Error; err != nil {
		return nil, 0, fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
	orders := make([]*domain.Order, len(models))
	for i := range models {
		orders[i] = toDomain(&models[i])
	}
	return orders, total, nil
}

// Update 带版本条件写回订单，版本不匹配返回 ErrConcurrencyConflict
func (r *orderRepositoryImpl) Update(ctx context.Context, order *domain.Order) error {
	updates := map[string]interface{}{
		"filled_quantity":    order.FilledQuantity,
		"average_fill_price": order.AverageFillPrice,
		"status":             string(order.Status),
		"notes":              order.Notes,
		"filled_at":          order.FilledAt,
		"cancelled_at":       order.CancelledAt,
		"version":            order.Version + 1,
	}
	res := db.FromContext(ctx, r.db).
		Model(&OrderModel{}).
		Where("order_id = ? AND version = ?", order.OrderID, order.Version).
		Updates(updates)
	if res.Error != nil {
		logger.Error(ctx, "order_repository.update failed", "order_id", order.OrderID, "error", res.Error)
		return fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: order %s version %d", domain.ErrConcurrencyConflict, order.OrderID, order.Version)
	}
	order.Version++
	return nil
}

type executionRepositoryImpl struct {
	db *gorm.DB
}

// NewExecutionRepository 创建成交仓储实例
func NewExecutionRepository(g *gorm.DB) domain.ExecutionRepository {
	return &executionRepositoryImpl{db: g}
}

func (r *executionRepositoryImpl) Append(ctx context.Context, execution *domain.OrderExecution) error {
	model := &ExecutionModel{
		OrderID:     execution.OrderID,
		ExecutionID: execution.ExecutionID,
		Price:       execution.Price,
		Quantity:    execution.Quantity,
		Commission:  execution.Commission,
		Fees:        execution.Fees,
		ExecutedAt:  execution.ExecutedAt,
	}
	if err := db.FromContext(ctx, r.db).Create(model).Error; err != nil {
		logger.Error(ctx, "execution_repository.append failed",
			"order_id", execution.OrderID,
			"execution_id", execution.ExecutionID,
			"error", err,
		)
		return fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
	execution.ID = model.ID
	return nil
}

func (r *executionRepositoryImpl) Exists(ctx context.Context, orderID, executionID string) (bool, error) {
	var count int64
	err := db.FromContext(ctx, r.db).
		Model(&ExecutionModel{}).
		Where("order_id = ? AND execution_id = ?", orderID, executionID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
	return count > 0, nil
}

func (r *executionRepositoryImpl) ListByOrder(ctx context.Context, orderID string) ([]*domain.OrderExecution, error) {
	var models []ExecutionModel
	err := db.FromContext(ctx, r.db).
		Where("order_id = ?", orderID).
		Order("executed_at asc, id asc").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
	executions := make([]*domain.OrderExecution, len(models))
	for i, m := range models {
		executions[i] = &domain.OrderExecution{
			ID:          m.ID,
			OrderID:     m.OrderID,
			ExecutionID: m.ExecutionID,
			Price:       m.Price,
			Quantity:    m.Quantity,
			Commission:  m.Commission,
			Fees:        m.Fees,
			ExecutedAt:  m.ExecutedAt,
		}
	}
	return executions, nil
}

func toModel(o *domain.Order) *OrderModel {
	model := &OrderModel{
		OrderID:          o.OrderID,
		UserID:           o.UserID,
		PortfolioID:      o.PortfolioID,
		InstrumentKind:   string(o.Instrument.Kind),
		InstrumentID:     o.Instrument.ID,
		Side:             string(o.Side),
		Type:             string(o.Type),
		Quantity:         o.Quantity,
		Price:            o.Price,
		StopPrice:        o.StopPrice,
		FilledQuantity:   o.FilledQuantity,
		AverageFillPrice: o.AverageFillPrice,
		Status:           string(o.Status),
		TimeInForce:      string(o.TimeInForce),
		Notes:            o.Notes,
		FilledAt:         o.FilledAt,
		CancelledAt:      o.CancelledAt,
		Version:          o.Version,
	}
	model.ID = o.ID
	return model
}

func toDomain(m *OrderModel) *domain.Order {
	return &domain.Order{
		ID:               m.ID,
		OrderID:          m.OrderID,
		UserID:           m.UserID,
		PortfolioID:      m.PortfolioID,
		Instrument:       mddomain.Instrument{Kind: mddomain.InstrumentKind(m.InstrumentKind), ID: m.InstrumentID},
		Side:             domain.OrderSide(m.Side),
		Type:             domain.OrderType(m.Type),
		Quantity:         m.Quantity,
		Price:            m.Price,
		StopPrice:        m.StopPrice,
		FilledQuantity:   m.FilledQuantity,
		AverageFillPrice: m.AverageFillPrice,
		Status:           domain.OrderStatus(m.Status),
		TimeInForce:      domain.TimeInForce(m.TimeInForce),
		Notes:            m.Notes,
		FilledAt:         m.FilledAt,
		CancelledAt:      m.CancelledAt,
		Version:          m.Version,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}
