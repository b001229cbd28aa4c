package service

import (
	"slices"
	"sync/atomic"

	"trade_dash/internal/domain"
)

type bookState struct {
	book    domain.OrderBook
	version uint64
}

// OrderBookView holds the four book partitions. Replace swaps all four at
// once, so a reader never sees partitions from two different events.
type OrderBookView struct {
	current atomic.Pointer[bookState]
}

// Replace installs book and returns the new version (1 for the first book).
func (v *OrderBookView) Replace(book domain.OrderBook) uint64 {
	var version uint64 = 1
	if old := v.current.Load(); old != nil {
		version = old.version + 1
	}
	v.current.Store(&bookState{book: cloneBook(book), version: version})
	return version
}

// Snapshot returns the current book. ok is false until the first Replace.
func (v *OrderBookView) Snapshot() (book domain.OrderBook, version uint64, ok bool) {
	s := v.current.Load()
	if s == nil {
		return domain.OrderBook{}, 0, false
	}
	return s.book, s.version, true
}

// Loaded reports whether any book has been installed.
func (v *OrderBookView) Loaded() bool {
	return v.current.Load() != nil
}

// cloneBook copies the partitions so later edits by the producer cannot leak
// in. Nil partitions become empty.
func cloneBook(b domain.OrderBook) domain.OrderBook {
	return domain.OrderBook{
		Asks: domain.BookSide{Active: cloneOrders(b.Asks.Active), Conditional: cloneOrders(b.Asks.Conditional)},
		Bids: domain.BookSide{Active: cloneOrders(b.Bids.Active), Conditional: cloneOrders(b.Bids.Conditional)},
	}
}

func cloneOrders(orders []domain.Order) []domain.Order {
	if orders == nil {
		return []domain.Order{}
	}
	return slices.Clone(orders)
}
