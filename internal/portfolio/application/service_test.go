package application

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	mddomain "github.com/wyfcoding/papertrading/internal/marketdata/domain"
	orderdomain "github.com/wyfcoding/papertrading/internal/order/domain"
	"github.com/wyfcoding/papertrading/internal/portfolio/domain"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

type fakeTxManager struct{}

func (fakeTxManager) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakePortfolioRepo struct {
	portfolios map[uint]*domain.Portfolio
	nextID     uint
}

func (r *fakePortfolioRepo) Create(ctx context.Context, p *domain.Portfolio) error {
	r.nextID++
	p.ID = r.nextID
	cp := *p
	r.portfolios[p.ID] = &cp
	return nil
}

func (r *fakePortfolioRepo) Get(ctx context.Context, id uint) (*domain.Portfolio, error) {
	p, ok := r.portfolios[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (r *fakePortfolioRepo) ListByUser(ctx context.Context, userID uint) ([]*domain.Portfolio, error) {
	var out []*domain.Portfolio
	for _, p := range r.portfolios {
		if p.UserID == userID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakePortfolioRepo) Update(ctx context.Context, p *domain.Portfolio) error {
	stored, ok := r.portfolios[p.ID]
	if !ok || stored.Version != p.Version {
		return orderdomain.ErrConcurrencyConflict
	}
	p.Version++
	cp := *p
	r.portfolios[p.ID] = &cp
	return nil
}

type fakeHoldingRepo struct {
	holdings []*domain.Holding
}

func (r *fakeHoldingRepo) Create(ctx context.Context, h *domain.Holding) error {
	cp := *h
	r.holdings = append(r.holdings, &cp)
	return nil
}

func (r *fakeHoldingRepo) GetByInstrument(ctx context.Context, portfolioID uint, inst mddomain.Instrument) (*domain.Holding, error) {
	for _, h := range r.holdings {
		if h.PortfolioID == portfolioID && h.Instrument == inst {
			cp := *h
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeHoldingRepo) ListByPortfolio(ctx context.Context, portfolioID uint) ([]*domain.Holding, error) {
	var out []*domain.Holding
	for _, h := range r.holdings {
		if h.PortfolioID == portfolioID {
			cp := *h
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeHoldingRepo) Update(ctx context.Context, h *domain.Holding) error {
	for i, stored := range r.holdings {
		if stored.PortfolioID == h.PortfolioID && stored.Instrument == h.Instrument {
			if stored.Version != h.Version {
				return orderdomain.ErrConcurrencyConflict
			}
			h.Version++
			cp := *h
			r.holdings[i] = &cp
			return nil
		}
	}
	return orderdomain.ErrConcurrencyConflict
}

type fakeQuotes struct {
	snapshot mddomain.PriceSnapshot
	calls    int
}

func (f *fakeQuotes) Snapshot(ctx context.Context, instruments []mddomain.Instrument) (mddomain.PriceSnapshot, error) {
	f.calls++
	return f.snapshot, nil
}

func newPortfolioEnv(snapshot mddomain.PriceSnapshot) (*PortfolioService, *fakePortfolioRepo, *fakeHoldingRepo) {
	portfolios := &fakePortfolioRepo{portfolios: map[uint]*domain.Portfolio{}}
	holdings := &fakeHoldingRepo{}
	quotes := &fakeQuotes{snapshot: snapshot}
	svc := NewPortfolioService(fakeTxManager{}, portfolios, holdings, quotes, nil, dec("100000"), 3)
	return svc, portfolios, holdings
}

func TestCreatePortfolioUsesDefaultCash(t *testing.T) {
	svc, _, _ := newPortfolioEnv(nil)

	portfolio, err := svc.CreatePortfolio(context.Background(), 1, "默认组合", "", true)
	if err != nil {
		t.Fatalf("CreatePortfolio() error: %v", err)
	}
	if !portfolio.CashBalance.Equal(dec("100000")) {
		t.Fatalf("cash = %s, want 100000", portfolio.CashBalance)
	}
	if !portfolio.TotalValue.Equal(dec("100000")) {
		t.Fatalf("total = %s, want 100000", portfolio.TotalValue)
	}
	if !portfolio.IsDefault {
		t.Fatal("is_default not set")
	}
}

func TestGetPortfolioNotFound(t *testing.T) {
	svc, _, _ := newPortfolioEnv(nil)
	_, err := svc.GetPortfolio(context.Background(), 42)
	if !errors.Is(err, domain.ErrPortfolioNotFound) {
		t.Fatalf("got %v, want ErrPortfolioNotFound", err)
	}
}

func TestRevaluePersistsSnapshotFields(t *testing.T) {
	inst := mddomain.NewAssetInstrument(7)
	snapshot := mddomain.PriceSnapshot{
		inst: {Mark: dec("60"), Change24h: dec("2")},
	}
	svc, portfolios, holdings := newPortfolioEnv(snapshot)

	portfolio, err := svc.CreatePortfolio(context.Background(), 1, "默认组合", "", false)
	if err != nil {
		t.Fatal(err)
	}

	holding := domain.NewHolding(portfolio.ID, inst)
	holding.ApplyBuy(dec("10"), dec("50"))
	if err := holdings.Create(context.Background(), holding); err != nil {
		t.Fatal(err)
	}

	summary, err := svc.Revalue(context.Background(), portfolio.ID)
	if err != nil {
		t.Fatalf("Revalue() error: %v", err)
	}

	if !summary.InvestedValue.Equal(dec("600")) {
		t.Fatalf("invested = %s, want 600", summary.InvestedValue)
	}
	if !summary.UnrealizedPnL.Equal(dec("100")) {
		t.Fatalf("unrealized = %s, want 100", summary.UnrealizedPnL)
	}
	if !summary.DayChange.Equal(dec("20")) {
		t.Fatalf("day change = %s, want 20", summary.DayChange)
	}

	// 快照字段已写回
	stored, _ := portfolios.Get(context.Background(), portfolio.ID)
	if !stored.UnrealizedPnL.Equal(dec("100")) {
		t.Fatalf("persisted unrealized = %s, want 100", stored.UnrealizedPnL)
	}
	storedHoldings, _ := holdings.ListByPortfolio(context.Background(), portfolio.ID)
	if !storedHoldings[0].CurrentValue.Equal(dec("600")) {
		t.Fatalf("persisted current value = %s, want 600", storedHoldings[0].CurrentValue)
	}

	// 再估值一次结果不变
	again, err := svc.Revalue(context.Background(), portfolio.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !again.TotalValue.Equal(summary.TotalValue) || !again.UnrealizedPnL.Equal(summary.UnrealizedPnL) {
		t.Fatalf("revalue not idempotent: %+v vs %+v", summary, again)
	}
}

func TestRevalueUnknownPortfolio(t *testing.T) {
	svc, _, _ := newPortfolioEnv(mddomain.PriceSnapshot{})
	_, err := svc.Revalue(context.Background(), 42)
	if !errors.Is(err, domain.ErrPortfolioNotFound) {
		t.Fatalf("got %v, want ErrPortfolioNotFound", err)
	}
}
