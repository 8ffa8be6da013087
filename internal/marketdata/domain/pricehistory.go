package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Timeframe K 线周期
type Timeframe string

const (
	Timeframe1m  Timeframe = "1m"
	Timeframe5m  Timeframe = "5m"
	Timeframe15m Timeframe = "15m"
	Timeframe1h  Timeframe = "1h"
	Timeframe4h  Timeframe = "4h"
	Timeframe1d  Timeframe = "1d"
)

// PriceHistory 单根 K 线记录
type PriceHistory struct {
	ID         uint
	AssetID    uint
	Timestamp  time.Time
	OpenPrice  decimal.Decimal
	HighPrice  decimal.Decimal
	LowPrice   decimal.Decimal
	ClosePrice decimal.Decimal
	Volume     decimal.Decimal
	Timeframe  Timeframe
}

// NewTick 用单个价格点构造一根退化 K 线（开高低收相同）
// 价格更新 API 落库时使用
func NewTick(assetID uint, price decimal.Decimal, at time.Time, tf Timeframe) *PriceHistory {
	return &PriceHistory{
		AssetID:    assetID,
		Timestamp:  at,
		OpenPrice:  price,
		HighPrice:  price,
		LowPrice:   price,
		ClosePrice: price,
		Volume:     decimal.Zero,
		Timeframe:  tf,
	}
}
