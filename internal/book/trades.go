package book

import (
	"time"

	"github.com/abdoElHodaky/tradingsuite/internal/money"
)

// tradeRecord is one executed trade kept for volume-profile analytics.
type tradeRecord struct {
	Price     money.Decimal
	Size      int64
	Aggressor string
	At        time.Time
}

// tradeRing is a bounded FIFO of trade records (default capacity
// 10,000).
type tradeRing struct {
	capacity int
	records  []tradeRecord
}

func newTradeRing(capacity int) *tradeRing {
	return &tradeRing{capacity: capacity}
}

func (r *tradeRing) push(rec tradeRecord) {
	r.records = append(r.records, rec)
	if len(r.records) > r.capacity {
		r.records = r.records[len(r.records)-r.capacity:]
	}
}

func (r *tradeRing) snapshot() []tradeRecord {
	out := make([]tradeRecord, len(r.records))
	copy(out, r.records)
	return out
}
