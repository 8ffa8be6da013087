package application

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/papertrading/internal/marketdata/domain"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

type fakeAssetRepo struct {
	assets map[uint]*domain.Asset
}

func (r *fakeAssetRepo) Save(ctx context.Context, asset *domain.Asset) error {
	if asset.ID == 0 {
		asset.ID = uint(len(r.assets) + 1)
	}
	cp := *asset
	r.assets[asset.ID] = &cp
	return nil
}

func (r *fakeAssetRepo) Get(ctx context.Context, id uint) (*domain.Asset, error) {
	a, ok := r.assets[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (r *fakeAssetRepo) GetBySymbol(ctx context.Context, symbol string) (*domain.Asset, error) {
	for _, a := range r.assets {
		if a.Symbol == symbol {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeAssetRepo) ListActive(ctx context.Context, limit, offset int) ([]*domain.Asset, int64, error) {
	var out []*domain.Asset
	for _, a := range r.assets {
		if a.IsActive {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, int64(len(out)), nil
}

func (r *fakeAssetRepo) Update(ctx context.Context, asset *domain.Asset) error {
	cp := *asset
	r.assets[asset.ID] = &cp
	return nil
}

type fakeOptionRepo struct {
	options map[uint]*domain.Option
}

func (r *fakeOptionRepo) Save(ctx context.Context, option *domain.Option) error {
	if option.ID == 0 {
		option.ID = uint(len(r.options) + 1)
	}
	cp := *option
	r.options[option.ID] = &cp
	return nil
}

func (r *fakeOptionRepo) Get(ctx context.Context, id uint) (*domain.Option, error) {
	o, ok := r.options[id]
	if !ok {
		return nil, nil
	}
	cp := *o
	return &cp, nil
}

func (r *fakeOptionRepo) ListByUnderlying(ctx context.Context, assetID uint) ([]*domain.Option, error) {
	var out []*domain.Option
	for _, o := range r.options {
		if o.UnderlyingAssetID == assetID {
			cp := *o
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeOptionRepo) Update(ctx context.Context, option *domain.Option) error {
	cp := *option
	r.options[option.ID] = &cp
	return nil
}

type fakeHistoryRepo struct {
	records []*domain.PriceHistory
}

func (r *fakeHistoryRepo) Append(ctx context.Context, record *domain.PriceHistory) error {
	r.records = append(r.records, record)
	return nil
}

func (r *fakeHistoryRepo) Range(ctx context.Context, assetID uint, tf domain.Timeframe, from, to time.Time) ([]*domain.PriceHistory, error) {
	var out []*domain.PriceHistory
	for _, rec := range r.records {
		if rec.AssetID == assetID && rec.Timeframe == tf {
			out = append(out, rec)
		}
	}
	return out, nil
}

type fakePriceCache struct {
	quotes map[domain.Instrument]domain.Quote
	hits   int
	misses int
}

func (c *fakePriceCache) GetQuote(ctx context.Context, inst domain.Instrument) (domain.Quote, bool, error) {
	q, ok := c.quotes[inst]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return q, ok, nil
}

func (c *fakePriceCache) SetQuote(ctx context.Context, inst domain.Instrument, q domain.Quote) error {
	c.quotes[inst] = q
	return nil
}

func (c *fakePriceCache) Invalidate(ctx context.Context, inst domain.Instrument) error {
	delete(c.quotes, inst)
	return nil
}

func newMarketDataEnv() (*MarketDataService, *fakeAssetRepo, *fakeOptionRepo, *fakeHistoryRepo, *fakePriceCache) {
	assets := &fakeAssetRepo{assets: map[uint]*domain.Asset{}}
	options := &fakeOptionRepo{options: map[uint]*domain.Option{}}
	history := &fakeHistoryRepo{}
	cache := &fakePriceCache{quotes: map[domain.Instrument]domain.Quote{}}
	return NewMarketDataService(assets, options, history, cache), assets, options, history, cache
}

func seedAsset(t *testing.T, svc *MarketDataService, symbol, price string) *domain.Asset {
	t.Helper()
	asset := &domain.Asset{
		Symbol:       symbol,
		Name:         symbol,
		AssetType:    domain.AssetTypeStock,
		CurrentPrice: dec(price),
	}
	if err := svc.CreateAsset(context.Background(), asset); err != nil {
		t.Fatalf("CreateAsset() error: %v", err)
	}
	return asset
}

func TestUpdateAssetPriceAppendsTickAndInvalidatesCache(t *testing.T) {
	svc, _, _, history, cache := newMarketDataEnv()
	asset := seedAsset(t, svc, "AAPL", "100")

	// 预热缓存
	snapshot, err := svc.Snapshot(context.Background(), []domain.Instrument{asset.Instrument()})
	if err != nil {
		t.Fatal(err)
	}
	if q, _ := snapshot.Lookup(asset.Instrument()); !q.Mark.Equal(dec("100")) {
		t.Fatalf("mark = %s, want 100", q.Mark)
	}

	updated, err := svc.UpdateAssetPrice(context.Background(), asset.ID, dec("105"), dec("5"))
	if err != nil {
		t.Fatalf("UpdateAssetPrice() error: %v", err)
	}
	if !updated.PriceChangePercent24.Equal(dec("5")) {
		t.Fatalf("change pct = %s, want 5", updated.PriceChangePercent24)
	}
	if len(history.records) != 1 {
		t.Fatalf("history records = %d, want 1", len(history.records))
	}
	if _, ok := cache.quotes[asset.Instrument()]; ok {
		t.Fatal("cache not invalidated after price update")
	}

	// 失效后重新快照拿到新价
	snapshot, err = svc.Snapshot(context.Background(), []domain.Instrument{asset.Instrument()})
	if err != nil {
		t.Fatal(err)
	}
	if q, _ := snapshot.Lookup(asset.Instrument()); !q.Mark.Equal(dec("105")) {
		t.Fatalf("mark after update = %s, want 105", q.Mark)
	}
}

func TestSnapshotReadsThroughCache(t *testing.T) {
	svc, _, _, _, cache := newMarketDataEnv()
	asset := seedAsset(t, svc, "AAPL", "100")
	inst := asset.Instrument()

	if _, err := svc.Snapshot(context.Background(), []domain.Instrument{inst}); err != nil {
		t.Fatal(err)
	}
	if cache.misses != 1 {
		t.Fatalf("misses = %d, want 1", cache.misses)
	}

	if _, err := svc.Snapshot(context.Background(), []domain.Instrument{inst}); err != nil {
		t.Fatal(err)
	}
	if cache.hits != 1 {
		t.Fatalf("hits = %d, want 1", cache.hits)
	}
}

func TestSnapshotUnknownInstrument(t *testing.T) {
	svc, _, _, _, _ := newMarketDataEnv()
	_, err := svc.Snapshot(context.Background(), []domain.Instrument{domain.NewAssetInstrument(99)})
	if err == nil {
		t.Fatal("expected error for unknown instrument")
	}
}

func TestInstrumentTradable(t *testing.T) {
	svc, assets, options, _, _ := newMarketDataEnv()
	asset := seedAsset(t, svc, "AAPL", "100")

	tradable, err := svc.InstrumentTradable(context.Background(), asset.Instrument())
	if err != nil || !tradable {
		t.Fatalf("active asset tradable = %v, err = %v", tradable, err)
	}

	// 停用后不可交易
	stored := assets.assets[asset.ID]
	stored.IsActive = false
	tradable, _ = svc.InstrumentTradable(context.Background(), asset.Instrument())
	if tradable {
		t.Fatal("inactive asset should not be tradable")
	}

	// 过期期权不可交易
	option := &domain.Option{
		ID:                1,
		Symbol:            "AAPL-C-100",
		UnderlyingAssetID: asset.ID,
		OptionType:        domain.OptionCall,
		StrikePrice:       dec("100"),
		ExpirationDate:    time.Now().Add(-24 * time.Hour),
		IsActive:          true,
	}
	options.options[1] = option
	tradable, _ = svc.InstrumentTradable(context.Background(), option.Instrument())
	if tradable {
		t.Fatal("expired option should not be tradable")
	}

	// 未知标的
	tradable, _ = svc.InstrumentTradable(context.Background(), domain.NewAssetInstrument(99))
	if tradable {
		t.Fatal("unknown instrument should not be tradable")
	}
}
