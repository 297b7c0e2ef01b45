package book

import (
	"github.com/shopspring/decimal"
	"github.com/tidwall/btree"

	"market-replay-lab/internal/domain"
)

// Level is one price level with aggregate size and order count.
// Owned exclusively by the Book; mutated only through ApplyEvent.
type Level struct {
	Price      decimal.Decimal
	Size       int64
	OrderCount int
}

// Book maintains ordered bid and ask price levels reconstructed from a
// stream of ADD/CANCEL events. A level with zero size is removed.
type Book struct {
	tick      decimal.Decimal
	bids      *btree.BTreeG[*Level]
	asks      *btree.BTreeG[*Level]
	timestamp int64
}

func byPrice(a, b *Level) bool {
	return a.Price.LessThan(b.Price)
}

// New creates an empty book with the given tick size.
func New(tick decimal.Decimal) *Book {
	return &Book{
		tick: tick,
		bids: btree.NewBTreeG(byPrice),
		asks: btree.NewBTreeG(byPrice),
	}
}

// NewSeeded creates a book pre-populated with depth levels per side around
// base: bids at base, base-tick, ... and asks at base+tick, base+2*tick, ...
// The seeded snapshot is never crossed.
func NewSeeded(tick, base decimal.Decimal, depth int, sizePerLevel int64, timestamp int64) *Book {
	b := New(tick)
	b.timestamp = timestamp
	for i := 0; i < depth; i++ {
		step := tick.Mul(decimal.NewFromInt(int64(i)))
		b.bids.Set(&Level{Price: base.Sub(step), Size: sizePerLevel, OrderCount: 1})
		b.asks.Set(&Level{Price: base.Add(tick).Add(step), Size: sizePerLevel, OrderCount: 1})
	}
	return b
}

// ApplyEvent mutates the book according to a single market event.
//
// ADD and CANCEL require a positive price on the tick grid and a
// non-negative size. CANCEL of an absent level is a no-op: the decrement is
// clamped at zero. TRADE events only advance the book timestamp; trade flow
// is tracked by the engine, not the book.
//
// Returns ErrCrossedBook when the mutation leaves best bid >= best ask with
// both sides non-empty.
func (b *Book) ApplyEvent(ev *domain.MarketEvent) error {
	if ev.Size < 0 {
		return ErrNegativeSize
	}

	switch ev.Type {
	case domain.EventTypeTrade:
		b.timestamp = ev.Timestamp
		return nil
	case domain.EventTypeAdd, domain.EventTypeCancel:
	default:
		return ErrUnknownEventType
	}

	if ev.Price.Sign() <= 0 || !ev.Price.Mod(b.tick).IsZero() {
		return ErrPriceOffTick
	}

	var tree *btree.BTreeG[*Level]
	switch ev.Side {
	case domain.SideBid:
		tree = b.bids
	case domain.SideAsk:
		tree = b.asks
	default:
		return ErrUnknownSide
	}

	key := &Level{Price: ev.Price}
	lvl, ok := tree.Get(key)

	switch ev.Type {
	case domain.EventTypeAdd:
		if ok {
			lvl.Size += ev.Size
			lvl.OrderCount++
		} else {
			tree.Set(&Level{Price: ev.Price, Size: ev.Size, OrderCount: 1})
		}
	case domain.EventTypeCancel:
		if ok {
			lvl.Size -= ev.Size
			lvl.OrderCount--
			if lvl.OrderCount < 0 {
				lvl.OrderCount = 0
			}
			if lvl.Size <= 0 {
				tree.Delete(key)
			}
		}
	}

	b.timestamp = ev.Timestamp

	if bb, ba, ok := b.top(); ok && bb.Price.Cmp(ba.Price) >= 0 {
		return ErrCrossedBook
	}
	return nil
}

// top returns best bid and best ask when both sides are non-empty.
func (b *Book) top() (*Level, *Level, bool) {
	bb, okB := b.bids.Max()
	ba, okA := b.asks.Min()
	if !okB || !okA {
		return nil, nil, false
	}
	return bb, ba, true
}

// BestBid returns the highest bid level, or false when the bid side is
// empty. Callers must treat an empty side as a no-trade tick.
func (b *Book) BestBid() (*Level, bool) {
	return b.bids.Max()
}

// BestAsk returns the lowest ask level, or false when the ask side is empty.
func (b *Book) BestAsk() (*Level, bool) {
	return b.asks.Min()
}

// Mid returns the midpoint of best bid and best ask, or false when either
// side is empty.
func (b *Book) Mid() (decimal.Decimal, bool) {
	bb, ba, ok := b.top()
	if !ok {
		return decimal.Decimal{}, false
	}
	return bb.Price.Add(ba.Price).Div(decimal.NewFromInt(2)), true
}

// Timestamp returns the timestamp of the last applied event.
func (b *Book) Timestamp() int64 {
	return b.timestamp
}

// TickSize returns the book's price increment.
func (b *Book) TickSize() decimal.Decimal {
	return b.tick
}

// BidDepth returns the number of bid levels.
func (b *Book) BidDepth() int {
	return b.bids.Len()
}

// AskDepth returns the number of ask levels.
func (b *Book) AskDepth() int {
	return b.asks.Len()
}

// Bids returns bid levels ordered descending by price (best first).
func (b *Book) Bids() []*Level {
	out := make([]*Level, 0, b.bids.Len())
	b.bids.Reverse(func(l *Level) bool {
		out = append(out, l)
		return true
	})
	return out
}

// Asks returns ask levels ordered ascending by price (best first).
func (b *Book) Asks() []*Level {
	out := make([]*Level, 0, b.asks.Len())
	b.asks.Scan(func(l *Level) bool {
		out = append(out, l)
		return true
	})
	return out
}
