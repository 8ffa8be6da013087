// Package application 自选列表的用例逻辑
package application

import (
	"context"
	"fmt"

	mddomain "github.com/wyfcoding/papertrading/internal/marketdata/domain"
	"github.com/wyfcoding/papertrading/internal/watchlist/domain"
	"github.com/wyfcoding/papertrading/pkg/logger"
)

// QuoteProvider 行情快照提供方，由行情上下文实现
type QuoteProvider interface {
	Snapshot(ctx context.Context, instruments []mddomain.Instrument) (mddomain.PriceSnapshot, error)
}

// WatchlistService 自选列表应用服务
type WatchlistService struct {
	watchlists domain.WatchlistRepository
	quotes     QuoteProvider
}

// NewWatchlistService 创建自选列表应用服务
func NewWatchlistService(watchlists domain.WatchlistRepository, quotes QuoteProvider) *WatchlistService {
	return &WatchlistService{watchlists: watchlists, quotes: quotes}
}

// Create 创建自选列表
func (s *WatchlistService) Create(ctx context.Context, userID uint, name string) (*domain.Watchlist, error) {
	watchlist := &domain.Watchlist{UserID: userID, Name: name}
	if err := s.watchlists.Create(ctx, watchlist); err != nil {
		return nil, err
	}
	return watchlist, nil
}

// Get 获取自选列表
func (s *WatchlistService) Get(ctx context.Context, id uint) (*domain.Watchlist, error) {
	watchlist, err := s.watchlists.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if watchlist == nil {
		return nil, fmt.Errorf("%w: %d", domain.ErrWatchlistNotFound, id)
	}
	return watchlist, nil
}

// ListByUser 按用户列出自选列表
func (s *WatchlistService) ListByUser(ctx context.Context, userID uint) ([]*domain.Watchlist, error) {
	return s.watchlists.ListByUser(ctx, userID)
}

// Delete 删除自选列表及其条目
func (s *WatchlistService) Delete(ctx context.Context, id uint) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return s.watchlists.Delete(ctx, id)
}

// AddItem 向自选列表添加条目
func (s *WatchlistService) AddItem(ctx context.Context, item *domain.WatchlistItem) error {
	if _, err := s.Get(ctx, item.WatchlistID); err != nil {
		return err
	}
	return s.watchlists.AddItem(ctx, item)
}

// ListItems 列出自选条目
func (s *WatchlistService) ListItems(ctx context.Context, watchlistID uint) ([]*domain.WatchlistItem, error) {
	if _, err := s.Get(ctx, watchlistID); err != nil {
		return nil, err
	}
	return s.watchlists.ListItems(ctx, watchlistID)
}

// RemoveItem 移除自选条目
func (s *WatchlistService) RemoveItem(ctx context.Context, watchlistID uint, inst mddomain.Instrument) error {
	if _, err := s.Get(ctx, watchlistID); err != nil {
		return err
	}
	return s.watchlists.RemoveItem(ctx, watchlistID, inst)
}

// CheckAlerts 按最新行情评估列表内的价格提醒
func (s *WatchlistService) CheckAlerts(ctx context.Context, watchlistID uint) ([]domain.AlertState, error) {
	items, err := s.ListItems(ctx, watchlistID)
	if err != nil {
		return nil, err
	}

	instruments := make([]mddomain.Instrument, 0, len(items))
	for _, item := range items {
		instruments = append(instruments, item.Instrument)
	}

	snapshot, err := s.quotes.Snapshot(ctx, instruments)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch price snapshot: %w", err)
	}

	states := domain.CheckAlerts(items, snapshot)
	for _, st := range states {
		if st.Triggered() {
			logger.Info(ctx, "price alert triggered",
				"watchlist_id", watchlistID,
				"instrument", st.Item.Instrument.String(),
				"mark", st.Mark.String(),
				"high", st.HighTriggered,
				"low", st.LowTriggered,
			)
		}
	}
	return states, nil
}
