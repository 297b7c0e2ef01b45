package recorder

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"market-replay-lab/internal/domain"
)

// ErrBadWireEvent is returned when a feed message cannot be normalized.
var ErrBadWireEvent = errors.New("bad wire event")

// wireEvent is the JSON shape of one depth feed message.
type wireEvent struct {
	Timestamp int64  `json:"ts"` // microseconds since epoch
	Sequence  int64  `json:"seq"`
	Type      string `json:"type"` // ADD | CANCEL | TRADE
	Side      string `json:"side"` // BID | ASK, empty for TRADE
	Price     string `json:"price"`
	Size      int64  `json:"size"`
	OrderID   string `json:"order_id,omitempty"`
}

// normalize parses a raw feed message into a MarketEvent.
func normalize(data []byte) (*domain.MarketEvent, error) {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadWireEvent, err)
	}

	switch domain.EventType(w.Type) {
	case domain.EventTypeAdd, domain.EventTypeCancel:
		if domain.BookSide(w.Side) != domain.SideBid && domain.BookSide(w.Side) != domain.SideAsk {
			return nil, fmt.Errorf("%w: side %q", ErrBadWireEvent, w.Side)
		}
	case domain.EventTypeTrade:
		// Trades carry no side on this feed.
	default:
		return nil, fmt.Errorf("%w: type %q", ErrBadWireEvent, w.Type)
	}

	if w.Timestamp <= 0 {
		return nil, fmt.Errorf("%w: timestamp %d", ErrBadWireEvent, w.Timestamp)
	}
	if w.Size <= 0 {
		return nil, fmt.Errorf("%w: size %d", ErrBadWireEvent, w.Size)
	}

	price, err := decimal.NewFromString(w.Price)
	if err != nil {
		return nil, fmt.Errorf("%w: price %q", ErrBadWireEvent, w.Price)
	}
	if price.Sign() <= 0 {
		return nil, fmt.Errorf("%w: price %s not positive", ErrBadWireEvent, price)
	}

	return &domain.MarketEvent{
		Timestamp: w.Timestamp,
		Sequence:  w.Sequence,
		Type:      domain.EventType(w.Type),
		Side:      domain.BookSide(w.Side),
		Price:     price,
		Size:      w.Size,
		OrderID:   w.OrderID,
	}, nil
}
