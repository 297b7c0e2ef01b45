package book

import "errors"

// Book errors.
//
// ErrCrossedBook is fatal to a run: a crossed book after event application
// signals bad input data or a modeling bug and is reported, never
// auto-corrected. The remaining errors are validation failures on a single
// event; callers skip the event and continue.
var (
	ErrCrossedBook      = errors.New("crossed book: best bid >= best ask")
	ErrPriceOffTick     = errors.New("price is not a positive multiple of tick size")
	ErrNegativeSize     = errors.New("negative event size")
	ErrUnknownSide      = errors.New("unknown book side")
	ErrUnknownEventType = errors.New("unknown event type")
)
