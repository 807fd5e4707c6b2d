package book

import (
	"github.com/abdoElHodaky/tradingsuite/internal/money"
	"github.com/emirpasic/gods/maps/treemap"
)

// ladder is one side of the book: a price-ordered map capped at
// maxDepth, pruned from the worst price when the cap is exceeded.
// descending selects bid ordering (best = highest price); ascending
// selects ask ordering (best = lowest price).
type ladder struct {
	tree       *treemap.Map
	maxDepth   int
	descending bool
}

func priceComparator(descending bool) func(a, b interface{}) int {
	return func(a, b interface{}) int {
		pa, pb := a.(money.Decimal), b.(money.Decimal)
		cmp := pa.Cmp(pb)
		if descending {
			return -cmp
		}
		return cmp
	}
}

func newLadder(maxDepth int, descending bool) *ladder {
	return &ladder{
		tree:       treemap.NewWith(priceComparator(descending)),
		maxDepth:   maxDepth,
		descending: descending,
	}
}

// get returns the level at price, if tracked.
func (l *ladder) get(price money.Decimal) (*Level, bool) {
	v, found := l.tree.Get(price)
	if !found {
		return nil, false
	}
	return v.(*Level), true
}

// put inserts or replaces the level at price, pruning the worst price
// if this insertion pushes the ladder past maxDepth.
func (l *ladder) put(lvl *Level) {
	l.tree.Put(lvl.Price, lvl)
	if l.tree.Size() > l.maxDepth {
		l.pruneWorst()
	}
}

// remove deletes the level at price (volume=0 update).
func (l *ladder) remove(price money.Decimal) {
	l.tree.Remove(price)
}

func (l *ladder) pruneWorst() {
	it := l.tree.Iterator()
	if it.Last() {
		l.tree.Remove(it.Key())
	}
}

// top returns up to k levels in best-to-worst order.
func (l *ladder) top(k int) []Level {
	out := make([]Level, 0, k)
	it := l.tree.Iterator()
	for it.Next() && len(out) < k {
		out = append(out, *it.Value().(*Level))
	}
	return out
}

// best returns the best (first-iterated) level, if any.
func (l *ladder) best() (Level, bool) {
	it := l.tree.Iterator()
	if it.Next() {
		return *it.Value().(*Level), true
	}
	return Level{}, false
}

// all returns every tracked level in best-to-worst order.
func (l *ladder) all() []Level {
	return l.top(l.tree.Size())
}

func (l *ladder) size() int { return l.tree.Size() }

func (l *ladder) totalVolume() int64 {
	var total int64
	it := l.tree.Iterator()
	for it.Next() {
		total += it.Value().(*Level).Volume
	}
	return total
}
