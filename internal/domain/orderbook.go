package domain

// BookSide holds the server-ordered active and conditional orders of one side.
type BookSide struct {
	Active      []Order `json:"active"`
	Conditional []Order `json:"conditional"`
}

// OrderBook is the four-partition view of the venue book.
// Partitions are opaque: the client never sorts, merges or patches them.
type OrderBook struct {
	Asks BookSide `json:"asks"`
	Bids BookSide `json:"bids"`
}

// Partition returns the orders for a (mechanism, side) pair.
func (b *OrderBook) Partition(m Mechanism, s Side) []Order {
	side := &b.Asks
	if s == SideBid {
		side = &b.Bids
	}
	if m == MechanismConditional {
		return side.Conditional
	}
	return side.Active
}

// Len returns the total number of orders across all partitions.
func (b *OrderBook) Len() int {
	return len(b.Asks.Active) + len(b.Asks.Conditional) + len(b.Bids.Active) + len(b.Bids.Conditional)
}
