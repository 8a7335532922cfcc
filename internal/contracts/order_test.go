package contracts

import (
	"errors"
	"testing"
	"time"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from OrderStatus
		to   OrderStatus
		want bool
	}{
		{StatusPlacing, StatusSubmitting, true},
		{StatusPlacing, StatusCancelled, true},
		{StatusSubmitting, StatusLive, true},
		{StatusSubmitting, StatusPlacing, false},
		{StatusLive, StatusPartialFilled, true},
		{StatusPartialFilled, StatusLive, true},
		{StatusLive, StatusCanceling, true},
		{StatusCanceling, StatusLive, true},
		{StatusLive, StatusSubmitting, false},
		{StatusLive, StatusFilled, true},
		{StatusFilled, StatusFilled, true},
		{StatusFilled, StatusLive, false},
		{StatusCancelled, StatusPartialFilled, false},
		{StatusRejected, StatusPlacing, false},
		{StatusExpired, StatusFilled, false},
		{StatusDeleted, StatusLive, false},
		{StatusLive, StatusUnknown, false},
	}

	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%q, %q) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestOrderStatus_Predicates(t *testing.T) {
	terminal := []OrderStatus{StatusFilled, StatusCancelled, StatusPartialCancelled, StatusExpired,
		StatusFailed, StatusRejected, StatusDeleted}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Errorf("%q should be terminal", s)
		}
		if s.IsActive() {
			t.Errorf("%q should not be active", s)
		}
	}

	if !StatusLive.IsActive() || !StatusPartialFilled.IsActive() {
		t.Error("live and partial_filled should be active")
	}
	if StatusSubmitting.IsActive() || StatusPlacing.IsTerminal() {
		t.Error("submitting/placing misclassified")
	}
	if !StatusCanceling.IsLocal() || StatusLive.IsLocal() {
		t.Error("IsLocal misclassified")
	}
}

func TestOrder_Validate(t *testing.T) {
	valid := Order{AccountID: 1, SecurityID: 2, Side: SideBuy, Type: OrderTypeMarket, Quantity: 10}
	if err := valid.Validate(); err != nil {
		t.Fatalf("Validate() = %v", err)
	}

	cases := map[string]func(o *Order){
		"no account":     func(o *Order) { o.AccountID = 0 },
		"no security":    func(o *Order) { o.SecurityID = 0 },
		"hold side":      func(o *Order) { o.Side = SideHold },
		"zero quantity":  func(o *Order) { o.Quantity = 0 },
		"overfilled":     func(o *Order) { o.FilledQuantity = 11 },
		"limit no price": func(o *Order) { o.Type = OrderTypeLimit },
		"stop no price":  func(o *Order) { o.Type = OrderTypeStop },
	}
	for name, mutate := range cases {
		o := valid
		mutate(&o)
		if err := o.Validate(); !errors.Is(err, ErrInvalidOrder) {
			t.Errorf("%s: Validate() = %v, want ErrInvalidOrder", name, err)
		}
	}
}

func TestOrder_RemainingQuantity(t *testing.T) {
	o := Order{Quantity: 10, FilledQuantity: 4}
	if got := o.RemainingQuantity(); got != 6 {
		t.Errorf("RemainingQuantity() = %v, want 6", got)
	}
	o.FilledQuantity = 10
	if got := o.RemainingQuantity(); got != 0 {
		t.Errorf("RemainingQuantity() = %v, want 0", got)
	}
}

func TestResultOf(t *testing.T) {
	tests := []struct {
		err  error
		want ResultCode
	}{
		{nil, ResultOK},
		{ErrNoop, ResultNoop},
		{invalidOrder("x"), ResultInvalidOrder},
		{errors.Join(errors.New("ctx"), ErrSendOrderFailed), ResultSendOrderFailed},
		{ErrCloseTimeout, ResultTimeout},
		{errors.New("boom"), ResultInternalError},
	}
	for _, tt := range tests {
		if got := ResultOf(tt.err); got != tt.want {
			t.Errorf("ResultOf(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestCompareTrades(t *testing.T) {
	a := Trade{ID: 2, ExternalTradeID: 5, Time: t0}
	b := Trade{ID: 1, ExternalTradeID: 6, Time: t0}
	if CompareTrades(a, b) >= 0 {
		t.Error("expected a < b by external trade id")
	}
	b.Time = t0.Add(-1)
	if CompareTrades(a, b) <= 0 {
		t.Error("expected a > b by time")
	}
}

func TestInRange(t *testing.T) {
	if !InRange(t0, t0, t0.Add(1)) {
		t.Error("from bound is inclusive")
	}
	if InRange(t0.Add(1), t0, t0.Add(1)) {
		t.Error("to bound is exclusive")
	}
	if !InRange(t0, time.Time{}, time.Time{}) {
		t.Error("zero bounds are open")
	}
}
