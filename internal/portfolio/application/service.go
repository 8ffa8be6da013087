// Package application 组合管理与估值的用例逻辑
package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	mddomain "github.com/wyfcoding/papertrading/internal/marketdata/domain"
	orderdomain "github.com/wyfcoding/papertrading/internal/order/domain"
	"github.com/wyfcoding/papertrading/internal/portfolio/domain"
	"github.com/wyfcoding/papertrading/pkg/logger"
	"github.com/wyfcoding/papertrading/pkg/metrics"
)

// TxManager 事务管理接口
type TxManager interface {
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// QuoteProvider 行情快照提供方，由行情上下文实现
type QuoteProvider interface {
	Snapshot(ctx context.Context, instruments []mddomain.Instrument) (mddomain.PriceSnapshot, error)
}

// PortfolioService 组合应用服务
type PortfolioService struct {
	tx         TxManager
	portfolios domain.PortfolioRepository
	holdings   domain.HoldingRepository
	quotes     QuoteProvider
	metrics    *metrics.Metrics
	// 新组合的初始模拟资金
	defaultCash decimal.Decimal
	// 估值持久化时乐观锁冲突的重试次数
	conflictRetries int
}

// NewPortfolioService 创建组合应用服务，m 可为 nil
func NewPortfolioService(
	tx TxManager,
	portfolios domain.PortfolioRepository,
	holdings domain.HoldingRepository,
	quotes QuoteProvider,
	m *metrics.Metrics,
	defaultCash decimal.Decimal,
	conflictRetries int,
) *PortfolioService {
	if conflictRetries < 0 {
		conflictRetries = 0
	}
	return &PortfolioService{
		tx:              tx,
		portfolios:      portfolios,
		holdings:        holdings,
		quotes:          quotes,
		metrics:         m,
		defaultCash:     defaultCash,
		conflictRetries: conflictRetries,
	}
}

// CreatePortfolio 创建组合，初始资金取服务配置的默认值
func (s *PortfolioService) CreatePortfolio(ctx context.Context, userID uint, name, description string, isDefault bool) (*domain.Portfolio, error) {
	portfolio := domain.NewPortfolio(userID, name, description, s.defaultCash)
	portfolio.IsDefault = isDefault
	if err := s.portfolios.Create(ctx, portfolio); err != nil {
		return nil, err
	}
	logger.Info(ctx, "portfolio created",
		"portfolio_id", portfolio.ID,
		"user_id", userID,
		"starting_cash", portfolio.CashBalance.String(),
	)
	return portfolio, nil
}

// GetPortfolio 获取组合
func (s *PortfolioService) GetPortfolio(ctx context.Context, id uint) (*domain.Portfolio, error) {
	portfolio, err := s.portfolios.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if portfolio == nil {
		return nil, fmt.Errorf("%w: %d", domain.ErrPortfolioNotFound, id)
	}
	return portfolio, nil
}

// ListPortfolios 按用户列出组合
func (s *PortfolioService) ListPortfolios(ctx context.Context, userID uint) ([]*domain.Portfolio, error) {
	return s.portfolios.ListByUser(ctx, userID)
}

// ListHoldings 列出组合持仓
func (s *PortfolioService) ListHoldings(ctx context.Context, portfolioID uint) ([]*domain.Holding, error) {
	if _, err := s.GetPortfolio(ctx, portfolioID); err != nil {
		return nil, err
	}
	return s.holdings.ListByPortfolio(ctx, portfolioID)
}

// Revalue 按最新行情快照重算组合估值并持久化
// 快照在事务外获取；重算与写回在同一事务内，冲突时重取聚合整体重试
func (s *PortfolioService) Revalue(ctx context.Context, portfolioID uint) (*domain.PortfolioSummary, error) {
	holdings, err := s.ListHoldings(ctx, portfolioID)
	if err != nil {
		return nil, err
	}

	instruments := make([]mddomain.Instrument, 0, len(holdings))
	for _, h := range holdings {
		instruments = append(instruments, h.Instrument)
	}

	snapshot, err := s.quotes.Snapshot(ctx, instruments)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch price snapshot: %w", err)
	}

	var summary *domain.PortfolioSummary
	err = s.withConflictRetry(ctx, func(ctx context.Context) error {
		portfolio, err := s.portfolios.Get(ctx, portfolioID)
		if err != nil {
			return err
		}
		if portfolio == nil {
			return fmt.Errorf("%w: %d", domain.ErrPortfolioNotFound, portfolioID)
		}
		holdings, err := s.holdings.ListByPortfolio(ctx, portfolioID)
		if err != nil {
			return err
		}

		summary, err = domain.Revalue(portfolio, holdings, snapshot)
		if err != nil {
			return err
		}

		for _, h := range holdings {
			if err := s.holdings.Update(ctx, h); err != nil {
				return err
			}
		}
		return s.portfolios.Update(ctx, portfolio)
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.Revaluations.Inc()
	}
	logger.Info(ctx, "portfolio revalued",
		"portfolio_id", portfolioID,
		"total_value", summary.TotalValue.String(),
		"unrealized_pnl", summary.UnrealizedPnL.String(),
	)
	return summary, nil
}

func (s *PortfolioService) withConflictRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = s.tx.Transaction(ctx, fn)
		if !errors.Is(err, orderdomain.ErrConcurrencyConflict) || attempt >= s.conflictRetries {
			return err
		}
		if s.metrics != nil {
			s.metrics.ConcurrencyConflicts.Inc()
		}
		logger.Warn(ctx, "optimistic lock conflict during revalue, retrying", "attempt", attempt+1)
	}
}
