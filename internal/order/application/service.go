// Package application 订单生命周期的用例逻辑
package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	mddomain "github.com/wyfcoding/papertrading/internal/marketdata/domain"
	"github.com/wyfcoding/papertrading/internal/order/domain"
	pfdomain "github.com/wyfcoding/papertrading/internal/portfolio/domain"
	"github.com/wyfcoding/papertrading/pkg/logger"
	"github.com/wyfcoding/papertrading/pkg/metrics"
)

// TxManager 事务管理接口，fn 内所有仓储操作共享同一事务
type TxManager interface {
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// InstrumentCatalog 标的校验接口，由行情上下文实现
type InstrumentCatalog interface {
	InstrumentTradable(ctx context.Context, inst mddomain.Instrument) (bool, error)
}

// SubmitOrderCommand 提交订单命令
type SubmitOrderCommand struct {
	UserID      uint
	PortfolioID uint
	Instrument  mddomain.Instrument
	Side        domain.OrderSide
	Type        domain.OrderType
	Quantity    decimal.Decimal
	Price       decimal.Decimal
	StopPrice   decimal.Decimal
	TimeInForce domain.TimeInForce
	Notes       string
}

// ApplyFillCommand 应用成交命令
// ExecutionID 为幂等键：同一订单上重复的 ExecutionID 只入账一次
type ApplyFillCommand struct {
	OrderID     string
	ExecutionID string
	Price       decimal.Decimal
	Quantity    decimal.Decimal
	Commission  decimal.Decimal
	Fees        decimal.Decimal
	ExecutedAt  time.Time
}

// OrderService 订单应用服务
// 负责订单状态机推进，以及成交入账时订单/持仓/组合现金的同事务对账
type OrderService struct {
	tx         TxManager
	orders     domain.OrderRepository
	executions domain.ExecutionRepository
	portfolios pfdomain.PortfolioRepository
	holdings   pfdomain.HoldingRepository
	catalog    InstrumentCatalog
	publisher  domain.EventPublisher
	metrics    *metrics.Metrics
	// 乐观锁冲突时的事务级重试次数
	conflictRetries int
}

// NewOrderService 创建订单应用服务
// publisher 与 m 可为 nil（测试或无 Kafka 部署）
func NewOrderService(
	tx TxManager,
	orders domain.OrderRepository,
	executions domain.ExecutionRepository,
	portfolios pfdomain.PortfolioRepository,
	holdings pfdomain.HoldingRepository,
	catalog InstrumentCatalog,
	publisher domain.EventPublisher,
	m *metrics.Metrics,
	conflictRetries int,
) *OrderService {
	if conflictRetries < 0 {
		conflictRetries = 0
	}
	return &OrderService{
		tx:              tx,
		orders:          orders,
		executions:      executions,
		portfolios:      portfolios,
		holdings:        holdings,
		catalog:         catalog,
		publisher:       publisher,
		metrics:         m,
		conflictRetries: conflictRetries,
	}
}

// Submit 校验并持久化新订单，初始状态 PENDING
// 校验失败时不触达持久层
func (s *OrderService) Submit(ctx context.Context, cmd SubmitOrderCommand) (*OrderDTO, error) {
	order := domain.NewOrder(
		uuid.NewString(),
		cmd.UserID,
		cmd.PortfolioID,
		cmd.Instrument,
		cmd.Side,
		cmd.Type,
		cmd.Quantity,
		cmd.Price,
		cmd.StopPrice,
		cmd.TimeInForce,
		cmd.Notes,
	)

	if err := order.Validate(); err != nil {
		return nil, err
	}

	tradable, err := s.catalog.InstrumentTradable(ctx, cmd.Instrument)
	if err != nil {
		return nil, fmt.Errorf("failed to check instrument: %w", err)
	}
	if !tradable {
		return nil, fmt.Errorf("%w: instrument %s is not tradable", domain.ErrValidation, cmd.Instrument.String())
	}

	portfolio, err := s.portfolios.Get(ctx, cmd.PortfolioID)
	if err != nil {
		return nil, err
	}
	if portfolio == nil || portfolio.UserID != cmd.UserID {
		return nil, fmt.Errorf("%w: portfolio %d", pfdomain.ErrPortfolioNotFound, cmd.PortfolioID)
	}

	if err := s.orders.Create(ctx, order); err != nil {
		return nil, err
	}

	s.count(func(m *metrics.Metrics) { m.OrdersSubmitted.Inc() })
	s.publish(ctx, domain.NewOrderEvent(domain.EventOrderSubmitted, order))

	logger.Info(ctx, "order submitted",
		"order_id", order.OrderID,
		"portfolio_id", order.PortfolioID,
		"instrument", order.Instrument.String(),
		"side", order.Side,
		"quantity", order.Quantity.String(),
	)

	return toOrderDTO(order), nil
}

// Accept 接受订单：PENDING -> OPEN
func (s *OrderService) Accept(ctx context.Context, orderID string) (*OrderDTO, error) {
	order, err := s.transition(ctx, orderID, func(o *domain.Order) error { return o.Accept() })
	if err != nil {
		return nil, err
	}
	s.publish(ctx, domain.NewOrderEvent(domain.EventOrderAccepted, order))
	return toOrderDTO(order), nil
}

// Reject 拒绝订单：PENDING -> REJECTED
func (s *OrderService) Reject(ctx context.Context, orderID string) (*OrderDTO, error) {
	order, err := s.transition(ctx, orderID, func(o *domain.Order) error { return o.Reject() })
	if err != nil {
		return nil, err
	}
	s.publish(ctx, domain.NewOrderEvent(domain.EventOrderRejected, order))
	return toOrderDTO(order), nil
}

// Cancel 取消订单，仅允许 PENDING / OPEN / PARTIALLY_FILLED
func (s *OrderService) Cancel(ctx context.Context, orderID string) (*OrderDTO, error) {
	order, err := s.transition(ctx, orderID, func(o *domain.Order) error { return o.Cancel(time.Now()) })
	if err != nil {
		return nil, err
	}
	s.count(func(m *metrics.Metrics) { m.OrdersCancelled.Inc() })
	s.publish(ctx, domain.NewOrderEvent(domain.EventOrderCancelled, order))
	return toOrderDTO(order), nil
}

// transition 在单个事务内读取订单、应用状态迁移并带版本写回
func (s *OrderService) transition(ctx context.Context, orderID string, apply func(*domain.Order) error) (*domain.Order, error) {
	var result *domain.Order
	err := s.withConflictRetry(ctx, func(ctx context.Context) error {
		order, err := s.orders.Get(ctx, orderID)
		if err != nil {
			return err
		}
		if order == nil {
			return fmt.Errorf("%w: %s", domain.ErrOrderNotFound, orderID)
		}
		if err := apply(order); err != nil {
			return err
		}
		if err := s.orders.Update(ctx, order); err != nil {
			return err
		}
		result = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ApplyFill 应用一笔成交
// 成交追加、订单推进、持仓对账与组合现金变动在同一事务内完成，要么全部生效要么全部回滚
// 重复的 ExecutionID 幂等返回当前订单状态，不重复入账
func (s *OrderService) ApplyFill(ctx context.Context, cmd ApplyFillCommand) (*OrderDTO, error) {
	execution, err := domain.NewExecution(cmd.OrderID, cmd.ExecutionID, cmd.Price, cmd.Quantity, cmd.Commission, cmd.Fees, cmd.ExecutedAt)
	if err != nil {
		return nil, err
	}

	var result *domain.Order
	var duplicate bool

	err = s.withConflictRetry(ctx, func(ctx context.Context) error {
		result = nil
		duplicate = false

		order, err := s.orders.Get(ctx, cmd.OrderID)
		if err != nil {
			return err
		}
		if order == nil {
			return fmt.Errorf("%w: %s", domain.ErrOrderNotFound, cmd.OrderID)
		}

		exists, err := s.executions.Exists(ctx, order.OrderID, cmd.ExecutionID)
		if err != nil {
			return err
		}
		if exists {
			duplicate = true
			result = order
			return nil
		}

		if err := order.ApplyExecution(execution.Price, execution.Quantity, execution.ExecutedAt); err != nil {
			return err
		}

		if err := s.reconcile(ctx, order, execution); err != nil {
			return err
		}

		if err := s.executions.Append(ctx, execution); err != nil {
			return err
		}
		if err := s.orders.Update(ctx, order); err != nil {
			return err
		}

		result = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	if duplicate {
		s.count(func(m *metrics.Metrics) { m.DuplicateFills.Inc() })
		logger.Warn(ctx, "duplicate execution ignored",
			"order_id", cmd.OrderID,
			"execution_id", cmd.ExecutionID,
		)
		return toOrderDTO(result), nil
	}

	s.count(func(m *metrics.Metrics) { m.FillsApplied.Inc() })

	event := domain.NewOrderEvent(domain.EventFillApplied, result)
	event.ExecutionID = execution.ExecutionID
	event.FillPrice = execution.Price.String()
	event.FillQuantity = execution.Quantity.String()
	s.publish(ctx, event)
	if result.Status == domain.OrderStatusFilled {
		s.publish(ctx, domain.NewOrderEvent(domain.EventOrderFilled, result))
	}

	logger.Info(ctx, "fill applied",
		"order_id", result.OrderID,
		"execution_id", execution.ExecutionID,
		"fill_price", execution.Price.String(),
		"fill_quantity", execution.Quantity.String(),
		"filled_quantity", result.FilledQuantity.String(),
		"status", result.Status,
	)

	return toOrderDTO(result), nil
}

// reconcile 将成交入账到持仓与组合现金，必须在 ApplyFill 的事务内调用
func (s *OrderService) reconcile(ctx context.Context, order *domain.Order, execution *domain.OrderExecution) error {
	portfolio, err := s.portfolios.Get(ctx, order.PortfolioID)
	if err != nil {
		return err
	}
	if portfolio == nil {
		return fmt.Errorf("%w: portfolio %d", pfdomain.ErrPortfolioNotFound, order.PortfolioID)
	}

	holding, err := s.holdings.GetByInstrument(ctx, order.PortfolioID, order.Instrument)
	if err != nil {
		return err
	}

	gross := execution.GrossAmount()
	charges := execution.TotalCharges()

	switch order.Side {
	case domain.OrderSideBuy:
		created := false
		if holding == nil {
			holding = pfdomain.NewHolding(order.PortfolioID, order.Instrument)
			created = true
		}
		if err := portfolio.Debit(gross.Add(charges)); err != nil {
			return err
		}
		holding.ApplyBuy(execution.Quantity, execution.Price)
		if created {
			if err := s.holdings.Create(ctx, holding); err != nil {
				return err
			}
		} else {
			if err := s.holdings.Update(ctx, holding); err != nil {
				return err
			}
		}

	case domain.OrderSideSell:
		if holding == nil {
			return fmt.Errorf("%w: no holding for %s", pfdomain.ErrInsufficientHolding, order.Instrument.String())
		}
		realized, err := holding.ApplySell(execution.Quantity, execution.Price)
		if err != nil {
			return err
		}
		portfolio.Credit(gross.Sub(charges))
		portfolio.AddRealizedPnL(realized)
		// 数量归零的持仓保留，留存成本均价
		if err := s.holdings.Update(ctx, holding); err != nil {
			return err
		}

	default:
		return fmt.Errorf("%w: invalid side %q", domain.ErrValidation, order.Side)
	}

	return s.portfolios.Update(ctx, portfolio)
}

// GetOrder 获取订单详情
func (s *OrderService) GetOrder(ctx context.Context, orderID string) (*OrderDTO, error) {
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrOrderNotFound, orderID)
	}
	return toOrderDTO(order), nil
}

// ListOrders 按用户列出订单
func (s *OrderService) ListOrders(ctx context.Context, userID uint, status domain.OrderStatus, limit, offset int) ([]*OrderDTO, int64, error) {
	orders, total, err := s.orders.ListByUser(ctx, userID, status, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	dtos := make([]*OrderDTO, len(orders))
	for i, o := range orders {
		dtos[i] = toOrderDTO(o)
	}
	return dtos, total, nil
}

// ListExecutions 列出订单的成交记录
func (s *OrderService) ListExecutions(ctx context.Context, orderID string) ([]*ExecutionDTO, error) {
	executions, err := s.executions.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	dtos := make([]*ExecutionDTO, len(executions))
	for i, e := range executions {
		dtos[i] = toExecutionDTO(e)
	}
	return dtos, nil
}

// withConflictRetry 执行事务，乐观锁冲突时整体重试
// 每次重试都重新读取聚合，幂等键保证重试不会重复入账
func (s *OrderService) withConflictRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = s.tx.Transaction(ctx, fn)
		if !errors.Is(err, domain.ErrConcurrencyConflict) || attempt >= s.conflictRetries {
			return err
		}
		s.count(func(m *metrics.Metrics) { m.ConcurrencyConflicts.Inc() })
		logger.Warn(ctx, "optimistic lock conflict, retrying", "attempt", attempt+1)
	}
}

func (s *OrderService) publish(ctx context.Context, event domain.OrderEvent) {
	if s.publisher == nil {
		return
	}
	// 事件发布失败不回滚业务事务
	if err := s.publisher.Publish(ctx, event); err != nil {
		logger.Warn(ctx, "failed to publish order event",
			"type", event.Type,
			"order_id", event.OrderID,
			"error", err,
		)
	}
}

func (s *OrderService) count(fn func(*metrics.Metrics)) {
	if s.metrics != nil {
		fn(s.metrics)
	}
}
