package book

import (
	"context"
	"sync"
	"time"

	"github.com/abdoElHodaky/tradingsuite/internal/eventbus"
	"github.com/abdoElHodaky/tradingsuite/internal/money"
)

// Config tunes the ladder and its analytics window.
type Config struct {
	MaxDepth       int           // default 1000
	AnalyticsWindow time.Duration // default 30m
}

// DefaultConfig matches the documented defaults.
func DefaultConfig() Config {
	return Config{MaxDepth: 1000, AnalyticsWindow: 30 * time.Minute}
}

// Snapshot is a point-in-time, internally consistent view of the book.
type Snapshot struct {
	Bids, Asks             []Level
	BestBid, BestAsk       money.Decimal
	HasBestBid, HasBestAsk bool
	Spread, Mid            money.Decimal
	TotalBidVolume         int64
	TotalAskVolume         int64
}

// Book owns the two ordered ladders for one instrument. All mutation
// and reads go through a single lock so a snapshot never straddles a
// partial update.
type Book struct {
	instrument string
	cfg        Config
	bus        *eventbus.Bus
	seq        eventbus.Sequencer

	mu  sync.RWMutex
	bid *ladder
	ask *ladder

	trades *tradeRing
}

// New constructs a Book for instrument.
func New(cfg Config, instrument string, bus *eventbus.Bus) *Book {
	if cfg.MaxDepth == 0 {
		cfg.MaxDepth = 1000
	}
	if cfg.AnalyticsWindow == 0 {
		cfg.AnalyticsWindow = 30 * time.Minute
	}
	return &Book{
		instrument: instrument,
		cfg:        cfg,
		bus:        bus,
		bid:        newLadder(cfg.MaxDepth, true),
		ask:        newLadder(cfg.MaxDepth, false),
		trades:     newTradeRing(10000),
	}
}

// Side names which ladder a depth update targets.
type Side int

const (
	SideBid Side = iota
	SideAsk
)

// UpdateDepth applies a (price, side, volume) depth frame: volume=0
// removes the level; otherwise the level is created or refreshed and a
// history sample is appended.
func (b *Book) UpdateDepth(ctx context.Context, side Side, price money.Decimal, volume int64, ts time.Time) {
	b.mu.Lock()
	l := b.ladderFor(side)
	if volume == 0 {
		l.remove(price)
		b.mu.Unlock()
		b.emitDepth(ctx, side, l.size())
		return
	}
	lvl, found := l.get(price)
	if !found {
		lvl = &Level{Price: price}
	}
	lvl.refresh(volume, ts, b.cfg.AnalyticsWindow)
	l.put(lvl)
	count := l.size()
	b.mu.Unlock()
	b.emitDepth(ctx, side, count)
}

func (b *Book) ladderFor(side Side) *ladder {
	if side == SideBid {
		return b.bid
	}
	return b.ask
}

func (b *Book) emitDepth(ctx context.Context, side Side, count int) {
	if b.bus == nil {
		return
	}
	label := "bid"
	if side == SideAsk {
		label = "ask"
	}
	b.bus.Emit(ctx, eventbus.NewDepthUpdated(&b.seq, b.instrument, label, count))
}

// RecordTrade appends a trade to the bounded analytics ring, consumed
// by the volume profile.
func (b *Book) RecordTrade(price money.Decimal, size int64, aggressor string, ts time.Time) {
	b.mu.Lock()
	b.trades.push(tradeRecord{Price: price, Size: size, Aggressor: aggressor, At: ts})
	b.mu.Unlock()
}

// TakeSnapshot returns the top-k levels of each side plus summary
// metadata, as a single consistent view.
func (b *Book) TakeSnapshot(k int) Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()

	snap := Snapshot{
		Bids:           b.bid.top(k),
		Asks:           b.ask.top(k),
		TotalBidVolume: b.bid.totalVolume(),
		TotalAskVolume: b.ask.totalVolume(),
	}
	if bb, ok := b.bid.best(); ok {
		snap.BestBid, snap.HasBestBid = bb.Price, true
	}
	if ba, ok := b.ask.best(); ok {
		snap.BestAsk, snap.HasBestAsk = ba.Price, true
	}
	if snap.HasBestBid && snap.HasBestAsk {
		snap.Spread = snap.BestAsk.Sub(snap.BestBid)
		snap.Mid = snap.BestBid.Add(snap.Spread.Div(money.MustNew("2")))
	}
	return snap
}
