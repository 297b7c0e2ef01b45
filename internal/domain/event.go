package domain

import "github.com/shopspring/decimal"

// EventType represents the type of market event.
type EventType string

// Event type constants.
const (
	EventTypeAdd    EventType = "ADD"
	EventTypeCancel EventType = "CANCEL"
	EventTypeTrade  EventType = "TRADE"
)

// BookSide identifies the side of the book an event targets.
type BookSide string

// Book side constants.
const (
	SideBid BookSide = "BID"
	SideAsk BookSide = "ASK"
)

// MarketEvent is a single entry of the replayed order flow.
// Immutable once produced by a source.
//
// ADD increases size and order count at a price level (creating it if
// absent). CANCEL decreases them and removes the level at zero. TRADE is
// informational: it feeds the recent-trade window used by signal logic but
// does not mutate book state.
type MarketEvent struct {
	Timestamp int64 // microseconds since epoch
	Sequence  int64 // tie-breaker within a timestamp
	Type      EventType
	Side      BookSide
	Price     decimal.Decimal
	Size      int64
	OrderID   string
	DatasetID string
}
