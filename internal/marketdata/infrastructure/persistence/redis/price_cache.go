// Package redis 行情快照的 Redis 缓存实现
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/papertrading/internal/marketdata/domain"
	"github.com/wyfcoding/papertrading/pkg/cache"
)

// quotePayload 缓存里的报价序列化形式，十进制值按字符串存储避免精度丢失
type quotePayload struct {
	Mark      string `json:"mark"`
	Change24h string `json:"change_24h"`
}

// PriceCache domain.PriceCache 的 Redis 实现
type PriceCache struct {
	cache *cache.RedisCache
	ttl   time.Duration
}

// NewPriceCache 创建行情缓存
func NewPriceCache(c *cache.RedisCache, ttl time.Duration) *PriceCache {
	return &PriceCache{cache: c, ttl: ttl}
}

func quoteKey(inst domain.Instrument) string {
	return fmt.Sprintf("quote:%s", inst.String())
}

// GetQuote 读取缓存的报价
func (pc *PriceCache) GetQuote(ctx context.Context, inst domain.Instrument) (domain.Quote, bool, error) {
	var payload quotePayload
	found, err := pc.cache.GetJSON(ctx, quoteKey(inst), &payload)
	if err != nil || !found {
		return domain.Quote{}, false, err
	}

	mark, err := decimal.NewFromString(payload.Mark)
	if err != nil {
		return domain.Quote{}, false, fmt.Errorf("corrupt cached mark price: %w", err)
	}
	change, err := decimal.NewFromString(payload.Change24h)
	if err != nil {
		return domain.Quote{}, false, fmt.Errorf("corrupt cached price change: %w", err)
	}

	return domain.Quote{Mark: mark, Change24h: change}, true, nil
}

// SetQuote 写入报价缓存
func (pc *PriceCache) SetQuote(ctx context.Context, inst domain.Instrument, q domain.Quote) error {
	payload := quotePayload{
		Mark:      q.Mark.String(),
		Change24h: q.Change24h.String(),
	}
	return pc.cache.SetJSON(ctx, quoteKey(inst), payload, pc.ttl)
}

// Invalidate 删除报价缓存，价格更新后调用
func (pc *PriceCache) Invalidate(ctx context.Context, inst domain.Instrument) error {
	return pc.cache.Delete(ctx, quoteKey(inst))
}
