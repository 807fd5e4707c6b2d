package eventbus

import (
	"sync/atomic"
	"time"
)

// Kind tags the closed union of event families the suite emits. Decoders
// that encounter an unrecognized shape never invent a new Kind on the fly
// (see the frame decoders in internal/suite/frames.go); instead they count a
// ProtocolCorruption rejection.
type Kind string

const (
	KindBarClosed              Kind = "bar.closed"
	KindBarUpdated             Kind = "bar.updated"
	KindQuote                  Kind = "market.quote"
	KindTrade                  Kind = "market.trade"
	KindDepthUpdated           Kind = "market.depth_updated"
	KindOrderPlaced            Kind = "order.placed"
	KindOrderModified          Kind = "order.modified"
	KindOrderFilled            Kind = "order.filled"
	KindOrderCancelled         Kind = "order.cancelled"
	KindOrderRejected          Kind = "order.rejected"
	KindBracketOpened          Kind = "bracket.opened"
	KindPositionOpened         Kind = "position.opened"
	KindPositionChanged        Kind = "position.changed"
	KindPositionClosed         Kind = "position.closed"
	KindConnectionStateChanged Kind = "connection.state_changed"
	KindSessionTransition      Kind = "session.transition"
	KindHealthChanged          Kind = "health.changed"
	KindBufferOverflow         Kind = "buffer.overflow"
)

// Event is the common interface every concrete payload satisfies.
type Event interface {
	Kind() Kind
	Sequence() uint64
	OccurredAt() time.Time
}

// base is embedded by every concrete event to supply Kind/Sequence/Time.
type base struct {
	kind Kind
	seq  uint64
	at   time.Time
}

func (b base) Kind() Kind            { return b.kind }
func (b base) Sequence() uint64      { return b.seq }
func (b base) OccurredAt() time.Time { return b.at }

// Sequencer hands out the monotonically-increasing sequence numbers for a
// single emitting component. Each component (a stream hub, the bar
// aggregator, the order engine, ...) owns exactly one Sequencer; sequence
// numbers are therefore scoped to the emitter, not global to the bus.
type Sequencer struct{ n uint64 }

// Next returns the next sequence number, starting at 1.
func (s *Sequencer) Next() uint64 { return atomic.AddUint64(&s.n, 1) }

func newBase(seq *Sequencer, kind Kind) base {
	return base{kind: kind, seq: seq.Next(), at: time.Now()}
}

// --- concrete event families ---

type BarClosed struct {
	base
	Instrument string
	Timeframe  time.Duration
	BucketAt   time.Time
}

func NewBarClosed(seq *Sequencer, instrument string, tf time.Duration, bucketAt time.Time) BarClosed {
	return BarClosed{base: newBase(seq, KindBarClosed), Instrument: instrument, Timeframe: tf, BucketAt: bucketAt}
}

type BarUpdated struct {
	base
	Instrument string
	Timeframe  time.Duration
	BucketAt   time.Time
}

func NewBarUpdated(seq *Sequencer, instrument string, tf time.Duration, bucketAt time.Time) BarUpdated {
	return BarUpdated{base: newBase(seq, KindBarUpdated), Instrument: instrument, Timeframe: tf, BucketAt: bucketAt}
}

type DepthUpdated struct {
	base
	Instrument string
	Side       string
	PriceCount int
}

func NewDepthUpdated(seq *Sequencer, instrument, side string, priceCount int) DepthUpdated {
	return DepthUpdated{base: newBase(seq, KindDepthUpdated), Instrument: instrument, Side: side, PriceCount: priceCount}
}

type Trade struct {
	base
	Instrument string
	Price      string
	Size       int64
	Aggressor  string
}

func NewTrade(seq *Sequencer, instrument, price string, size int64, aggressor string) Trade {
	return Trade{base: newBase(seq, KindTrade), Instrument: instrument, Price: price, Size: size, Aggressor: aggressor}
}

type Quote struct {
	base
	Instrument       string
	Bid, Ask         string
	BidSize, AskSize int64
}

func NewQuote(seq *Sequencer, instrument, bid, ask string, bidSize, askSize int64) Quote {
	return Quote{base: newBase(seq, KindQuote), Instrument: instrument, Bid: bid, Ask: ask, BidSize: bidSize, AskSize: askSize}
}

// OrderLifecycle covers placed/modified/filled/cancelled/rejected; the
// transition is carried in Kind.
type OrderLifecycle struct {
	base
	OrderID string
	Status  string
	Reason  string
}

func NewOrderLifecycle(seq *Sequencer, kind Kind, orderID, status, reason string) OrderLifecycle {
	return OrderLifecycle{base: newBase(seq, kind), OrderID: orderID, Status: status, Reason: reason}
}

type BracketOpened struct {
	base
	EntryID, StopID, TargetID string
}

func NewBracketOpened(seq *Sequencer, entryID, stopID, targetID string) BracketOpened {
	return BracketOpened{base: newBase(seq, KindBracketOpened), EntryID: entryID, StopID: stopID, TargetID: targetID}
}

// PositionLifecycle covers opened/changed/closed.
type PositionLifecycle struct {
	base
	ContractID string
	NetSize    int64
	AvgPrice   string
}

func NewPositionLifecycle(seq *Sequencer, kind Kind, contractID string, netSize int64, avgPrice string) PositionLifecycle {
	return PositionLifecycle{base: newBase(seq, kind), ContractID: contractID, NetSize: netSize, AvgPrice: avgPrice}
}

type ConnectionStateChanged struct {
	base
	Hub   string
	From  string
	To    string
	Cause string
}

func NewConnectionStateChanged(seq *Sequencer, hub, from, to, cause string) ConnectionStateChanged {
	return ConnectionStateChanged{base: newBase(seq, KindConnectionStateChanged), Hub: hub, From: from, To: to, Cause: cause}
}

type SessionTransition struct {
	base
	Instrument   string
	OffsetDelta  time.Duration
	ResumedAtNew time.Time
}

func NewSessionTransition(seq *Sequencer, instrument string, offsetDelta time.Duration, resumedAt time.Time) SessionTransition {
	return SessionTransition{base: newBase(seq, KindSessionTransition), Instrument: instrument, OffsetDelta: offsetDelta, ResumedAtNew: resumedAt}
}

type HealthChanged struct {
	base
	Component string
	From, To  string
	Score     int
}

func NewHealthChanged(seq *Sequencer, component, from, to string, score int) HealthChanged {
	return HealthChanged{base: newBase(seq, KindHealthChanged), Component: component, From: from, To: to, Score: score}
}

type BufferOverflow struct {
	base
	Component string
	Key       string
	Dropped   int
}

func NewBufferOverflow(seq *Sequencer, component, key string, dropped int) BufferOverflow {
	return BufferOverflow{base: newBase(seq, KindBufferOverflow), Component: component, Key: key, Dropped: dropped}
}
