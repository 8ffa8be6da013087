package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	mddomain "github.com/wyfcoding/papertrading/internal/marketdata/domain"
	"github.com/wyfcoding/papertrading/internal/order/domain"
	pfdomain "github.com/wyfcoding/papertrading/internal/portfolio/domain"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// fakeTxManager 串行执行事务体，用互斥锁模拟数据库的写隔离
type fakeTxManager struct {
	mu sync.Mutex
}

func (f *fakeTxManager) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return fn(ctx)
}

type fakeOrderRepo struct {
	orders map[string]*domain.Order
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{orders: make(map[string]*domain.Order)}
}

func (r *fakeOrderRepo) Create(ctx context.Context, order *domain.Order) error {
	cp := *order
	r.orders[order.OrderID] = &cp
	return nil
}

func (r *fakeOrderRepo) Get(ctx context.Context, orderID string) (*domain.Order, error) {
	order, ok := r.orders[orderID]
	if !ok {
		return nil, nil
	}
	cp := *order
	return &cp, nil
}

func (r *fakeOrderRepo) ListByUser(ctx context.Context, userID uint, status domain.OrderStatus, limit, offset int) ([]*domain.Order, int64, error) {
	var out []*domain.Order
	for _, o := range r.orders {
		if o.UserID == userID && (status == "" || o.Status == status) {
			cp := *o
			out = append(out, &cp)
		}
	}
	return out, int64(len(out)), nil
}

func (r *fakeOrderRepo) ListByPortfolio(ctx context.Context, portfolioID uint, status domain.OrderStatus, limit, offset int) ([]*domain.Order, int64, error) {
	var out []*domain.Order
	for _, o := range r.orders {
		if o.PortfolioID == portfolioID && (status == "" || o.Status == status) {
			cp := *o
			out = append(out, &cp)
		}
	}
	return out, int64(len(out)), nil
}

func (r *fakeOrderRepo) Update(ctx context.Context, order *domain.Order) error {
	stored, ok := r.orders[order.OrderID]
	if !ok || stored.Version != order.Version {
		return domain.ErrConcurrencyConflict
	}
	order.Version++
	cp := *order
	r.orders[order.OrderID] = &cp
	return nil
}

type fakeExecutionRepo struct {
	executions []*domain.OrderExecution
}

func (r *fakeExecutionRepo) Append(ctx context.Context, execution *domain.OrderExecution) error {
	cp := *execution
	r.executions = append(r.executions, &cp)
	return nil
}

func (r *fakeExecutionRepo) Exists(ctx context.Context, orderID, executionID string) (bool, error) {
	for _, e := range r.executions {
		if e.OrderID == orderID && e.ExecutionID == executionID {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeExecutionRepo) ListByOrder(ctx context.Context, orderID string) ([]*domain.OrderExecution, error) {
	var out []*domain.OrderExecution
	for _, e := range r.executions {
		if e.OrderID == orderID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

type fakePortfolioRepo struct {
	portfolios map[uint]*pfdomain.Portfolio
}

func (r *fakePortfolioRepo) Create(ctx context.Context, p *pfdomain.Portfolio) error {
	cp := *p
	r.portfolios[p.ID] = &cp
	return nil
}

func (r *fakePortfolioRepo) Get(ctx context.Context, id uint) (*pfdomain.Portfolio, error) {
	p, ok := r.portfolios[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (r *fakePortfolioRepo) ListByUser(ctx context.Context, userID uint) ([]*pfdomain.Portfolio, error) {
	var out []*pfdomain.Portfolio
	for _, p := range r.portfolios {
		if p.UserID == userID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakePortfolioRepo) Update(ctx context.Context, p *pfdomain.Portfolio) error {
	stored, ok := r.portfolios[p.ID]
	if !ok || stored.Version != p.Version {
		return domain.ErrConcurrencyConflict
	}
	p.Version++
	cp := *p
	r.portfolios[p.ID] = &cp
	return nil
}

type fakeHoldingRepo struct {
	holdings map[string]*pfdomain.Holding
	nextID   uint
}

func holdingKey(portfolioID uint, inst mddomain.Instrument) string {
	return inst.String() + "@" + string(rune('0'+portfolioID))
}

func (r *fakeHoldingRepo) Create(ctx context.Context, h *pfdomain.Holding) error {
	r.nextID++
	h.ID = r.nextID
	cp := *h
	r.holdings[holdingKey(h.PortfolioID, h.Instrument)] = &cp
	return nil
}

func (r *fakeHoldingRepo) GetByInstrument(ctx context.Context, portfolioID uint, inst mddomain.Instrument) (*pfdomain.Holding, error) {
	h, ok := r.holdings[holdingKey(portfolioID, inst)]
	if !ok {
		return nil, nil
	}
	cp := *h
	return &cp, nil
}

func (r *fakeHoldingRepo) ListByPortfolio(ctx context.Context, portfolioID uint) ([]*pfdomain.Holding, error) {
	var out []*pfdomain.Holding
	for _, h := range r.holdings {
		if h.PortfolioID == portfolioID {
			cp := *h
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeHoldingRepo) Update(ctx context.Context, h *pfdomain.Holding) error {
	key := holdingKey(h.PortfolioID, h.Instrument)
	stored, ok := r.holdings[key]
	if !ok || stored.Version != h.Version {
		return domain.ErrConcurrencyConflict
	}
	h.Version++
	cp := *h
	r.holdings[key] = &cp
	return nil
}

type fakeCatalog struct{}

func (fakeCatalog) InstrumentTradable(ctx context.Context, inst mddomain.Instrument) (bool, error) {
	return !inst.IsZero(), nil
}

type testEnv struct {
	service    *OrderService
	orders     *fakeOrderRepo
	executions *fakeExecutionRepo
	portfolios *fakePortfolioRepo
	holdings   *fakeHoldingRepo
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	orders := newFakeOrderRepo()
	executions := &fakeExecutionRepo{}
	portfolios := &fakePortfolioRepo{portfolios: map[uint]*pfdomain.Portfolio{}}
	holdings := &fakeHoldingRepo{holdings: map[string]*pfdomain.Holding{}}

	p := pfdomain.NewPortfolio(1, "默认组合", "", dec("100000"))
	p.ID = 1
	portfolios.portfolios[1] = p

	service := NewOrderService(
		&fakeTxManager{},
		orders,
		executions,
		portfolios,
		holdings,
		fakeCatalog{},
		nil,
		nil,
		3,
	)
	return &testEnv{
		service:    service,
		orders:     orders,
		executions: executions,
		portfolios: portfolios,
		holdings:   holdings,
	}
}

func submitLimitBuy(t *testing.T, env *testEnv, quantity, price string) *OrderDTO {
	t.Helper()
	dto, err := env.service.Submit(context.Background(), SubmitOrderCommand{
		UserID:      1,
		PortfolioID: 1,
		Instrument:  mddomain.NewAssetInstrument(42),
		Side:        domain.OrderSideBuy,
		Type:        domain.OrderTypeLimit,
		Quantity:    dec(quantity),
		Price:       dec(price),
	})
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	return dto
}

func TestSubmitAndAccept(t *testing.T) {
	env := newTestEnv(t)
	dto := submitLimitBuy(t, env, "10", "50")

	if dto.Status != string(domain.OrderStatusPending) {
		t.Fatalf("status = %s, want PENDING", dto.Status)
	}

	accepted, err := env.service.Accept(context.Background(), dto.OrderID)
	if err != nil {
		t.Fatalf("Accept() error: %v", err)
	}
	if accepted.Status != string(domain.OrderStatusOpen) {
		t.Fatalf("status = %s, want OPEN", accepted.Status)
	}
}

func TestSubmitValidationFailureDoesNotPersist(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.service.Submit(context.Background(), SubmitOrderCommand{
		UserID:      1,
		PortfolioID: 1,
		Instrument:  mddomain.NewAssetInstrument(42),
		Side:        domain.OrderSideBuy,
		Type:        domain.OrderTypeLimit,
		Quantity:    dec("10"),
		// 缺限价
	})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("got %v, want ErrValidation", err)
	}
	if len(env.orders.orders) != 0 {
		t.Fatal("invalid order was persisted")
	}
}

func TestSubmitUnknownPortfolio(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.service.Submit(context.Background(), SubmitOrderCommand{
		UserID:      1,
		PortfolioID: 99,
		Instrument:  mddomain.NewAssetInstrument(42),
		Side:        domain.OrderSideBuy,
		Type:        domain.OrderTypeMarket,
		Quantity:    dec("10"),
	})
	if !errors.Is(err, pfdomain.ErrPortfolioNotFound) {
		t.Fatalf("got %v, want ErrPortfolioNotFound", err)
	}
}

func applyFill(env *testEnv, orderID, execID, price, quantity, commission string) (*OrderDTO, error) {
	return env.service.ApplyFill(context.Background(), ApplyFillCommand{
		OrderID:     orderID,
		ExecutionID: execID,
		Price:       dec(price),
		Quantity:    dec(quantity),
		Commission:  dec(commission),
		Fees:        decimal.Zero,
		ExecutedAt:  time.Now(),
	})
}

func TestApplyFillReconcilesCashAndHolding(t *testing.T) {
	env := newTestEnv(t)
	dto := submitLimitBuy(t, env, "10", "50")

	filled, err := applyFill(env, dto.OrderID, "ex-1", "50", "10", "1")
	if err != nil {
		t.Fatalf("ApplyFill() error: %v", err)
	}
	if filled.Status != string(domain.OrderStatusFilled) {
		t.Fatalf("status = %s, want FILLED", filled.Status)
	}

	portfolio, _ := env.portfolios.Get(context.Background(), 1)
	if !portfolio.CashBalance.Equal(dec("99499")) {
		t.Fatalf("cash = %s, want 99499", portfolio.CashBalance)
	}

	holding, _ := env.holdings.GetByInstrument(context.Background(), 1, mddomain.NewAssetInstrument(42))
	if holding == nil {
		t.Fatal("holding not created")
	}
	if !holding.Quantity.Equal(dec("10")) || !holding.AverageCost.Equal(dec("50")) {
		t.Fatalf("holding qty=%s avg=%s, want 10/50", holding.Quantity, holding.AverageCost)
	}
}

func TestApplyFillDuplicateExecutionIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	dto := submitLimitBuy(t, env, "10", "50")

	if _, err := applyFill(env, dto.OrderID, "ex-1", "50", "4", "0"); err != nil {
		t.Fatal(err)
	}
	first, _ := env.portfolios.Get(context.Background(), 1)

	// 同一 execution_id 重复应用：成功返回当前状态，不重复入账
	repeat, err := applyFill(env, dto.OrderID, "ex-1", "50", "4", "0")
	if err != nil {
		t.Fatalf("duplicate fill returned error: %v", err)
	}
	if repeat.FilledQuantity != "4" {
		t.Fatalf("filled = %s, want 4", repeat.FilledQuantity)
	}

	second, _ := env.portfolios.Get(context.Background(), 1)
	if !first.CashBalance.Equal(second.CashBalance) {
		t.Fatalf("cash changed on duplicate fill: %s -> %s", first.CashBalance, second.CashBalance)
	}
	if len(env.executions.executions) != 1 {
		t.Fatalf("execution count = %d, want 1", len(env.executions.executions))
	}
}

func TestApplyFillOverfillLeavesStateUntouched(t *testing.T) {
	env := newTestEnv(t)
	dto := submitLimitBuy(t, env, "10", "50")

	if _, err := applyFill(env, dto.OrderID, "ex-1", "50", "8", "0"); err != nil {
		t.Fatal(err)
	}
	before, _ := env.portfolios.Get(context.Background(), 1)

	_, err := applyFill(env, dto.OrderID, "ex-2", "50", "3", "0")
	if !errors.Is(err, domain.ErrOverfill) {
		t.Fatalf("got %v, want ErrOverfill", err)
	}

	after, _ := env.portfolios.Get(context.Background(), 1)
	if !before.CashBalance.Equal(after.CashBalance) {
		t.Fatalf("cash changed on rejected fill: %s -> %s", before.CashBalance, after.CashBalance)
	}
	order, _ := env.orders.Get(context.Background(), dto.OrderID)
	if !order.FilledQuantity.Equal(dec("8")) {
		t.Fatalf("filled = %s, want 8", order.FilledQuantity)
	}
	if len(env.executions.executions) != 1 {
		t.Fatalf("execution count = %d, want 1", len(env.executions.executions))
	}
}

func TestApplyFillInsufficientFundsRollsBack(t *testing.T) {
	env := newTestEnv(t)
	// 初始资金 100000，买 10000 股 @50 需要 500000
	dto := submitLimitBuy(t, env, "10000", "50")

	_, err := applyFill(env, dto.OrderID, "ex-1", "50", "10000", "0")
	if !errors.Is(err, pfdomain.ErrInsufficientFunds) {
		t.Fatalf("got %v, want ErrInsufficientFunds", err)
	}

	order, _ := env.orders.Get(context.Background(), dto.OrderID)
	if !order.FilledQuantity.IsZero() {
		t.Fatalf("filled = %s after rejected fill, want 0", order.FilledQuantity)
	}
	if len(env.executions.executions) != 0 {
		t.Fatal("execution persisted despite rollback")
	}
}

func TestSellWithoutHolding(t *testing.T) {
	env := newTestEnv(t)
	dto, err := env.service.Submit(context.Background(), SubmitOrderCommand{
		UserID:      1,
		PortfolioID: 1,
		Instrument:  mddomain.NewAssetInstrument(42),
		Side:        domain.OrderSideSell,
		Type:        domain.OrderTypeMarket,
		Quantity:    dec("5"),
	})
	if err != nil {
		t.Fatal(err)
	}

	_, err = applyFill(env, dto.OrderID, "ex-1", "60", "5", "0")
	if !errors.Is(err, pfdomain.ErrInsufficientHolding) {
		t.Fatalf("got %v, want ErrInsufficientHolding", err)
	}
}

func TestBuySellRoundTripRealizedPnL(t *testing.T) {
	env := newTestEnv(t)

	buy := submitLimitBuy(t, env, "10", "50")
	if _, err := applyFill(env, buy.OrderID, "ex-b", "50", "10", "1"); err != nil {
		t.Fatal(err)
	}

	sell, err := env.service.Submit(context.Background(), SubmitOrderCommand{
		UserID:      1,
		PortfolioID: 1,
		Instrument:  mddomain.NewAssetInstrument(42),
		Side:        domain.OrderSideSell,
		Type:        domain.OrderTypeLimit,
		Quantity:    dec("10"),
		Price:       dec("60"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := applyFill(env, sell.OrderID, "ex-s", "60", "10", "1"); err != nil {
		t.Fatal(err)
	}

	portfolio, _ := env.portfolios.Get(context.Background(), 1)
	if !portfolio.CashBalance.Equal(dec("100098")) {
		t.Fatalf("cash = %s, want 100098", portfolio.CashBalance)
	}
	if !portfolio.RealizedPnL.Equal(dec("100")) {
		t.Fatalf("realized = %s, want 100", portfolio.RealizedPnL)
	}

	holding, _ := env.holdings.GetByInstrument(context.Background(), 1, mddomain.NewAssetInstrument(42))
	if holding == nil || !holding.Quantity.IsZero() {
		t.Fatalf("holding should remain with zero quantity, got %+v", holding)
	}
	if !holding.AverageCost.Equal(dec("50")) {
		t.Fatalf("average cost = %s, want 50", holding.AverageCost)
	}
}

func TestCancelFilledOrderFails(t *testing.T) {
	env := newTestEnv(t)
	dto := submitLimitBuy(t, env, "10", "50")
	if _, err := applyFill(env, dto.OrderID, "ex-1", "50", "10", "0"); err != nil {
		t.Fatal(err)
	}

	_, err := env.service.Cancel(context.Background(), dto.OrderID)
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("got %v, want ErrInvalidTransition", err)
	}
}

func TestConcurrentFillsNeverOverfill(t *testing.T) {
	env := newTestEnv(t)
	dto := submitLimitBuy(t, env, "10", "50")

	var wg sync.WaitGroup
	errs := make([]error, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = applyFill(env, dto.OrderID, "ex-"+string(rune('a'+i)), "50", "3", "0")
		}(i)
	}
	wg.Wait()

	var ok int
	for _, err := range errs {
		if err == nil {
			ok++
		} else if !errors.Is(err, domain.ErrOverfill) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	// 每笔 3 股，10 股上限下最多成功 3 笔
	if ok != 3 {
		t.Fatalf("successful fills = %d, want 3", ok)
	}

	order, _ := env.orders.Get(context.Background(), dto.OrderID)
	if order.FilledQuantity.GreaterThan(order.Quantity) {
		t.Fatalf("overfilled: %s > %s", order.FilledQuantity, order.Quantity)
	}
	if !order.FilledQuantity.Equal(dec("9")) {
		t.Fatalf("filled = %s, want 9", order.FilledQuantity)
	}
}

func TestListOrdersAndExecutions(t *testing.T) {
	env := newTestEnv(t)
	dto := submitLimitBuy(t, env, "10", "50")
	if _, err := applyFill(env, dto.OrderID, "ex-1", "50", "4", "0"); err != nil {
		t.Fatal(err)
	}
	if _, err := applyFill(env, dto.OrderID, "ex-2", "53", "6", "0"); err != nil {
		t.Fatal(err)
	}

	orders, total, err := env.service.ListOrders(context.Background(), 1, "", 20, 0)
	if err != nil {
		t.Fatal(err)
	}
	if total != 1 || len(orders) != 1 {
		t.Fatalf("orders = %d/%d, want 1/1", len(orders), total)
	}
	// (50*4 + 53*6)/10 = 51.8
	if orders[0].AverageFillPrice != "51.8" {
		t.Fatalf("avg = %s, want 51.8", orders[0].AverageFillPrice)
	}

	executions, err := env.service.ListExecutions(context.Background(), dto.OrderID)
	if err != nil {
		t.Fatal(err)
	}
	if len(executions) != 2 {
		t.Fatalf("executions = %d, want 2", len(executions))
	}
}
