package contracts

import "time"

// Side is the direction of an order or trade
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
	SideHold Side = "hold"
)

// Sign returns +1 for buy, -1 for sell and 0 otherwise
func (s Side) Sign() float64 {
	switch s {
	case SideBuy:
		return 1
	case SideSell:
		return -1
	default:
		return 0
	}
}

// Opposite returns the side that reduces exposure opened by s
func (s Side) Opposite() Side {
	switch s {
	case SideBuy:
		return SideSell
	case SideSell:
		return SideBuy
	default:
		return SideHold
	}
}

// Valid reports whether s can be traded
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// OrderType represents how an order is priced
type OrderType string

const (
	OrderTypeMarket       OrderType = "market"
	OrderTypeLimit        OrderType = "limit"
	OrderTypeStop         OrderType = "stop"
	OrderTypeStopLimit    OrderType = "stop_limit"
	OrderTypeTrailingStop OrderType = "trailing_stop"
)

// TimeInForce represents how long an order stays working
type TimeInForce string

const (
	TimeInForceGTC TimeInForce = "gtc"
	TimeInForceIOC TimeInForce = "ioc"
	TimeInForceFOK TimeInForce = "fok"
	TimeInForceDay TimeInForce = "day"
	TimeInForceGTD TimeInForce = "gtd" // good till ExpireTime
)

// TrailingType selects how TrailingValue is interpreted
type TrailingType string

const (
	TrailingNone    TrailingType = ""
	TrailingAmount  TrailingType = "amount"
	TrailingPercent TrailingType = "percent"
)

// AdvancedSettings carries optional broker-side order behavior
type AdvancedSettings struct {
	TrailingType   TrailingType `json:"trailing_type,omitempty"`
	TrailingValue  float64      `json:"trailing_value,omitempty"`
	TrailingSpread float64      `json:"trailing_spread,omitempty"`
	ExpireTime     time.Time    `json:"expire_time,omitempty"`
}

// OrderStatus is a node of the order lifecycle state machine
type OrderStatus string

const (
	StatusUnknown OrderStatus = ""

	// local-only, before the broker acknowledged anything
	StatusPlacing   OrderStatus = "placing" // to be sent
	StatusModifying OrderStatus = "modifying"
	StatusCanceling OrderStatus = "canceling"

	StatusWaitingSubmit OrderStatus = "waiting_submit"
	StatusSubmitting    OrderStatus = "submitting"
	StatusLive          OrderStatus = "live"
	StatusPartialFilled OrderStatus = "partial_filled"

	// terminal
	StatusFilled           OrderStatus = "filled"
	StatusCancelled        OrderStatus = "cancelled"
	StatusPartialCancelled OrderStatus = "partial_cancelled"
	StatusExpired          OrderStatus = "expired"
	StatusFailed           OrderStatus = "failed"
	StatusRejected         OrderStatus = "rejected"
	StatusDeleted          OrderStatus = "deleted"
)

// IsTerminal reports whether no further transition is allowed out of s
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case StatusFilled, StatusCancelled, StatusPartialCancelled, StatusExpired,
		StatusFailed, StatusRejected, StatusDeleted:
		return true
	}
	return false
}

// IsActive reports whether the order is working at the broker
func (s OrderStatus) IsActive() bool {
	return s == StatusLive || s == StatusPartialFilled
}

// IsLocal reports a state that exists only in this process
func (s OrderStatus) IsLocal() bool {
	return s == StatusPlacing || s == StatusModifying || s == StatusCanceling
}

// rank orders the non-terminal states; a transition may not lower it.
func (s OrderStatus) rank() int {
	switch s {
	case StatusPlacing:
		return 0
	case StatusWaitingSubmit:
		return 1
	case StatusSubmitting:
		return 2
	case StatusLive, StatusPartialFilled, StatusModifying, StatusCanceling:
		return 3
	default:
		if s.IsTerminal() {
			return 4
		}
		return -1
	}
}

// CanTransition reports whether from -> to is a legal lifecycle move.
// Terminal states are final; a repeated status is always accepted.
func CanTransition(from, to OrderStatus) bool {
	if from == to {
		return true
	}
	if from.IsTerminal() || to == StatusUnknown {
		return false
	}
	return to.rank() >= from.rank()
}

// Order is an intent to buy or sell a quantity of a security
type Order struct {
	ID             int64            `json:"id"`
	ExternalID     int64            `json:"external_id"`
	AccountID      int64            `json:"account_id"`
	SecurityID     int64            `json:"security_id"`
	SecurityCode   string           `json:"security_code"`
	BrokerID       int64            `json:"broker_id"`
	Side           Side             `json:"side"`
	Type           OrderType        `json:"type"`
	RequestedPrice float64          `json:"requested_price"`
	Price          float64          `json:"price"` // average fill price once trades arrive
	LimitPrice     float64          `json:"limit_price"`
	StopPrice      float64          `json:"stop_price"`
	Quantity       float64          `json:"quantity"`
	FilledQuantity float64          `json:"filled_quantity"`
	Status         OrderStatus      `json:"status"`
	ParentOrderID  int64            `json:"parent_order_id,omitempty"`
	TimeInForce    TimeInForce      `json:"time_in_force"`
	StrategyID     int64            `json:"strategy_id,omitempty"`
	Comment        string           `json:"comment,omitempty"`
	IsOperational  bool             `json:"is_operational"`
	Advanced       AdvancedSettings `json:"advanced"`

	CreateTime         time.Time `json:"create_time"`
	UpdateTime         time.Time `json:"update_time"`
	ExternalCreateTime time.Time `json:"external_create_time"`
	ExternalUpdateTime time.Time `json:"external_update_time"`
}

// IsActive checks if the order is working at the broker
func (o *Order) IsActive() bool {
	return o.Status.IsActive()
}

// IsClosed checks if the order reached a terminal state
func (o *Order) IsClosed() bool {
	return o.Status.IsTerminal()
}

// RemainingQuantity is the part of the order not yet filled
func (o *Order) RemainingQuantity() float64 {
	if o.FilledQuantity >= o.Quantity {
		return 0
	}
	return o.Quantity - o.FilledQuantity
}

// SecurityRef implements SecurityCarrier
func (o *Order) SecurityRef() (int64, string) { return o.SecurityID, o.SecurityCode }

// SetSecurityRef implements SecurityCarrier
func (o *Order) SetSecurityRef(id int64, code string) { o.SecurityID, o.SecurityCode = id, code }

// Validate checks the fields a caller must provide before the order is sent
func (o *Order) Validate() error {
	switch {
	case o.AccountID <= 0:
		return invalidOrder("account id is required")
	case o.SecurityID <= 0:
		return invalidOrder("security id is required")
	case !o.Side.Valid():
		return invalidOrder("side must be buy or sell")
	case o.Quantity <= 0:
		return invalidOrder("quantity must be positive")
	case o.FilledQuantity > o.Quantity:
		return invalidOrder("filled quantity exceeds quantity")
	case o.Type == OrderTypeLimit && o.LimitPrice <= 0 && o.RequestedPrice <= 0:
		return invalidOrder("price is required for limit orders")
	case (o.Type == OrderTypeStop || o.Type == OrderTypeStopLimit) && o.StopPrice <= 0:
		return invalidOrder("stop price is required for stop orders")
	}
	return nil
}
