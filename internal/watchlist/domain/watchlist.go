// Package domain 自选列表领域模型
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	mddomain "github.com/wyfcoding/papertrading/internal/marketdata/domain"
)

var (
	// ErrWatchlistNotFound 自选列表不存在
	ErrWatchlistNotFound = errors.New("watchlist not found")
	// ErrItemExists 标的已在列表中
	ErrItemExists = errors.New("instrument already in watchlist")
)

// Watchlist 自选列表
type Watchlist struct {
	ID        uint
	UserID    uint
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// WatchlistItem 自选条目，可设置价格提醒上下界
// 提醒界为零值表示未设置
type WatchlistItem struct {
	ID             uint
	WatchlistID    uint
	Instrument     mddomain.Instrument
	PriceAlertHigh decimal.Decimal
	PriceAlertLow  decimal.Decimal
	Notes          string
	CreatedAt      time.Time
}

// AlertState 条目当前价格与提醒界的关系
type AlertState struct {
	Item          *WatchlistItem
	Mark          decimal.Decimal
	HighTriggered bool
	LowTriggered  bool
}

// Triggered 是否有任一提醒触发
func (a AlertState) Triggered() bool {
	return a.HighTriggered || a.LowTriggered
}

// CheckAlerts 用行情快照逐条目评估价格提醒，缺报价的条目跳过
func CheckAlerts(items []*WatchlistItem, snapshot mddomain.PriceSnapshot) []AlertState {
	states := make([]AlertState, 0, len(items))
	for _, item := range items {
		q, ok := snapshot.Lookup(item.Instrument)
		if !ok {
			continue
		}
		state := AlertState{Item: item, Mark: q.Mark}
		if !item.PriceAlertHigh.IsZero() && q.Mark.GreaterThanOrEqual(item.PriceAlertHigh) {
			state.HighTriggered = true
		}
		if !item.PriceAlertLow.IsZero() && q.Mark.LessThanOrEqual(item.PriceAlertLow) {
			state.LowTriggered = true
		}
		states = append(states, state)
	}
	return states
}

// WatchlistRepository 自选列表仓储接口
type WatchlistRepository interface {
	Create(ctx context.Context, watchlist *Watchlist) error
	Get(ctx context.Context, id uint) (*Watchlist, error)
	ListByUser(ctx context.Context, userID uint) ([]*Watchlist, error)
	Delete(ctx context.Context, id uint) error

	AddItem(ctx context.Context, item *WatchlistItem) error
	ListItems(ctx context.Context, watchlistID uint) ([]*WatchlistItem, error)
	RemoveItem(ctx context.Context, watchlistID uint, inst mddomain.Instrument) error
}
