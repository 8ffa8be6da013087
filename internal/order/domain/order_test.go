package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	mddomain "github.com/wyfcoding/papertrading/internal/marketdata/domain"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func newTestOrder(orderType OrderType, price, stopPrice string) *Order {
	return NewOrder(
		"ord-1", 1, 1,
		mddomain.NewAssetInstrument(42),
		OrderSideBuy, orderType,
		dec("10"), dec(price), dec(stopPrice),
		TimeInForceGTC, "",
	)
}

func TestValidateByOrderType(t *testing.T) {
	tests := []struct {
		name      string
		orderType OrderType
		price     string
		stopPrice string
		wantErr   bool
	}{
		{"market without prices", OrderTypeMarket, "0", "0", false},
		{"market with limit price", OrderTypeMarket, "50", "0", true},
		{"market with stop price", OrderTypeMarket, "0", "48", true},
		{"limit with price", OrderTypeLimit, "50", "0", false},
		{"limit without price", OrderTypeLimit, "0", "0", true},
		{"stop with stop price", OrderTypeStop, "0", "48", false},
		{"stop without stop price", OrderTypeStop, "0", "0", true},
		{"stop limit with both", OrderTypeStopLimit, "50", "48", false},
		{"stop limit missing limit", OrderTypeStopLimit, "0", "48", true},
		{"stop limit missing stop", OrderTypeStopLimit, "50", "0", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order := newTestOrder(tt.orderType, tt.price, tt.stopPrice)
			err := order.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("Validate() = %v, want ErrValidation", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Validate() unexpected error: %v", err)
			}
		})
	}
}

func TestValidateRejectsBadFields(t *testing.T) {
	order := newTestOrder(OrderTypeLimit, "50", "0")
	order.Quantity = dec("0")
	if err := order.Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("zero quantity: got %v, want ErrValidation", err)
	}

	order = newTestOrder(OrderTypeLimit, "50", "0")
	order.Instrument = mddomain.Instrument{}
	if err := order.Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("missing instrument: got %v, want ErrValidation", err)
	}

	order = newTestOrder(OrderTypeLimit, "50", "0")
	order.Side = "SHORT"
	if err := order.Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("bad side: got %v, want ErrValidation", err)
	}

	order = newTestOrder(OrderTypeLimit, "50", "0")
	order.TimeInForce = "GTD"
	if err := order.Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("bad time in force: got %v, want ErrValidation", err)
	}
}

func TestLifecycleTransitions(t *testing.T) {
	order := newTestOrder(OrderTypeLimit, "50", "0")
	if order.Status != OrderStatusPending {
		t.Fatalf("new order status = %s, want PENDING", order.Status)
	}

	if err := order.Accept(); err != nil {
		t.Fatalf("Accept() error: %v", err)
	}
	if order.Status != OrderStatusOpen {
		t.Fatalf("status = %s, want OPEN", order.Status)
	}

	// OPEN 状态不能再 accept / reject
	if err := order.Accept(); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("double accept: got %v, want ErrInvalidTransition", err)
	}
	if err := order.Reject(); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("reject open order: got %v, want ErrInvalidTransition", err)
	}

	now := time.Now()
	if err := order.Cancel(now); err != nil {
		t.Fatalf("Cancel() error: %v", err)
	}
	if order.Status != OrderStatusCancelled || order.CancelledAt == nil {
		t.Fatalf("cancelled order: status=%s cancelledAt=%v", order.Status, order.CancelledAt)
	}

	if err := order.Cancel(now); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("cancel cancelled order: got %v, want ErrInvalidTransition", err)
	}
}

func TestRejectPendingOrder(t *testing.T) {
	order := newTestOrder(OrderTypeMarket, "0", "0")
	if err := order.Reject(); err != nil {
		t.Fatalf("Reject() error: %v", err)
	}
	if order.Status != OrderStatusRejected {
		t.Fatalf("status = %s, want REJECTED", order.Status)
	}
}

func TestApplyExecutionWeightedAverage(t *testing.T) {
	order := newTestOrder(OrderTypeLimit, "50", "0")
	if err := order.Accept(); err != nil {
		t.Fatal(err)
	}

	now := time.Now()
	if err := order.ApplyExecution(dec("50"), dec("4"), now); err != nil {
		t.Fatalf("first fill: %v", err)
	}
	if order.Status != OrderStatusPartiallyFilled {
		t.Fatalf("status = %s, want PARTIALLY_FILLED", order.Status)
	}
	if !order.AverageFillPrice.Equal(dec("50")) {
		t.Fatalf("avg after first fill = %s, want 50", order.AverageFillPrice)
	}
	if !order.RemainingQuantity().Equal(dec("6")) {
		t.Fatalf("remaining = %s, want 6", order.RemainingQuantity())
	}

	if err := order.ApplyExecution(dec("53"), dec("6"), now); err != nil {
		t.Fatalf("second fill: %v", err)
	}
	// (50*4 + 53*6) / 10 = 51.8
	if !order.AverageFillPrice.Equal(dec("51.8")) {
		t.Fatalf("avg after second fill = %s, want 51.8", order.AverageFillPrice)
	}
	if order.Status != OrderStatusFilled {
		t.Fatalf("status = %s, want FILLED", order.Status)
	}
	if order.FilledAt == nil {
		t.Fatal("filled order missing FilledAt")
	}
}

func TestApplyExecutionOverfill(t *testing.T) {
	order := newTestOrder(OrderTypeLimit, "50", "0")
	if err := order.Accept(); err != nil {
		t.Fatal(err)
	}
	if err := order.ApplyExecution(dec("50"), dec("8"), time.Now()); err != nil {
		t.Fatal(err)
	}

	err := order.ApplyExecution(dec("50"), dec("3"), time.Now())
	if !errors.Is(err, ErrOverfill) {
		t.Fatalf("overfill: got %v, want ErrOverfill", err)
	}
	// 拒绝后聚合保持不变
	if !order.FilledQuantity.Equal(dec("8")) {
		t.Fatalf("filled quantity changed to %s after rejected fill", order.FilledQuantity)
	}
	if order.Status != OrderStatusPartiallyFilled {
		t.Fatalf("status changed to %s after rejected fill", order.Status)
	}
}

func TestApplyExecutionOnTerminalOrder(t *testing.T) {
	for _, status := range []OrderStatus{OrderStatusFilled, OrderStatusCancelled, OrderStatusRejected} {
		order := newTestOrder(OrderTypeLimit, "50", "0")
		order.Status = status
		err := order.ApplyExecution(dec("50"), dec("1"), time.Now())
		if !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("fill on %s order: got %v, want ErrInvalidTransition", status, err)
		}
	}
}

func TestApplyExecutionOnPendingOrder(t *testing.T) {
	// PENDING 不是终态，允许直接成交
	order := newTestOrder(OrderTypeLimit, "50", "0")
	if err := order.ApplyExecution(dec("50"), dec("10"), time.Now()); err != nil {
		t.Fatalf("fill on pending order: %v", err)
	}
	if order.Status != OrderStatusFilled {
		t.Fatalf("status = %s, want FILLED", order.Status)
	}
}

func TestNewExecutionValidation(t *testing.T) {
	now := time.Now()

	if _, err := NewExecution("ord-1", "", dec("50"), dec("1"), decimal.Zero, decimal.Zero, now); !errors.Is(err, ErrValidation) {
		t.Fatalf("empty execution id: got %v, want ErrValidation", err)
	}
	if _, err := NewExecution("ord-1", "ex-1", dec("0"), dec("1"), decimal.Zero, decimal.Zero, now); !errors.Is(err, ErrValidation) {
		t.Fatalf("zero price: got %v, want ErrValidation", err)
	}
	if _, err := NewExecution("ord-1", "ex-1", dec("50"), dec("-1"), decimal.Zero, decimal.Zero, now); !errors.Is(err, ErrValidation) {
		t.Fatalf("negative quantity: got %v, want ErrValidation", err)
	}
	if _, err := NewExecution("ord-1", "ex-1", dec("50"), dec("1"), dec("-0.5"), decimal.Zero, now); !errors.Is(err, ErrValidation) {
		t.Fatalf("negative commission: got %v, want ErrValidation", err)
	}

	execution, err := NewExecution("ord-1", "ex-1", dec("50"), dec("10"), dec("1"), dec("0.5"), now)
	if err != nil {
		t.Fatalf("valid execution: %v", err)
	}
	if !execution.GrossAmount().Equal(dec("500")) {
		t.Fatalf("gross = %s, want 500", execution.GrossAmount())
	}
	if !execution.TotalCharges().Equal(dec("1.5")) {
		t.Fatalf("charges = %s, want 1.5", execution.TotalCharges())
	}
}
