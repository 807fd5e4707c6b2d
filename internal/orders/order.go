// Package orders validates, aligns, submits, modifies, cancels and
// tracks orders; manages OCO links and the bracket placement algorithm,
// and reconciles local state against the broker on reconnect.
package orders

import (
	"time"

	"github.com/abdoElHodaky/tradingsuite/internal/money"
)

// Type enumerates the supported order types.
type Type string

const (
	TypeMarket       Type = "Market"
	TypeLimit        Type = "Limit"
	TypeStop         Type = "Stop"
	TypeStopLimit    Type = "StopLimit"
	TypeTrailingStop Type = "TrailingStop"
	TypeJoinAsk      Type = "JoinAsk"
	TypeJoinBid      Type = "JoinBid"
)

// Status is an order's lifecycle state. Pending/Working/PartiallyFilled
// are live; the rest are terminal.
type Status string

const (
	StatusPending         Status = "Pending"
	StatusWorking         Status = "Working"
	StatusPartiallyFilled Status = "PartiallyFilled"
	StatusFilled          Status = "Filled"
	StatusCancelled       Status = "Cancelled"
	StatusRejected        Status = "Rejected"
	StatusExpired         Status = "Expired"
)

// IsTerminal reports whether no further transitions are possible.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusFilled, StatusCancelled, StatusRejected, StatusExpired:
		return true
	default:
		return false
	}
}

// Order is one tracked order. An order is owned exclusively by the
// Engine; other components hold only its BrokerID.
type Order struct {
	BrokerID      string
	IdempotencyKey string
	ContractID    string
	Side          money.Side
	Size          money.Size
	Type          Type
	LimitPrice    money.Decimal
	StopPrice     money.Decimal
	TrailTicks    int64
	LinkedOrderID string
	Status        Status
	FilledSize    int64
	AvgFillPrice  money.Decimal

	CreatedAt  time.Time
	WorkingAt  time.Time
	FilledAt   time.Time
	ClosedAt   time.Time
}

// Clone returns a value copy safe to hand to callers outside the lock.
func (o *Order) Clone() Order { return *o }

// Bracket groups an entry with its linked protective orders.
type Bracket struct {
	EntryID  string
	StopID   string
	TargetID string
	Protected bool
}
