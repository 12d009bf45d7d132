package model

import "time"

// Holding is the accumulated position in one instrument.
type Holding struct {
	Name     string
	Invested float64
	Quantity int64
}

// HoldingsSnapshot maps symbol to holding, as read from the ledger of record.
type HoldingsSnapshot map[string]Holding

// TotalInvested sums the invested amount across all instruments.
func (h HoldingsSnapshot) TotalInvested() float64 {
	var total float64
	for _, v := range h {
		total += v.Invested
	}
	return total
}

// CategoryInvested sums the invested amount of instruments in cat.
func (h HoldingsSnapshot) CategoryInvested(instruments []InstrumentProfile, cat Category) float64 {
	var total float64
	for _, in := range instruments {
		if in.Category == cat {
			total += h[in.Symbol].Invested
		}
	}
	return total
}

// Clone returns an independent copy.
func (h HoldingsSnapshot) Clone() HoldingsSnapshot {
	out := make(HoldingsSnapshot, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}

// Transaction is one committed purchase as written to the ledger of record.
type Transaction struct {
	ID        string
	Timestamp time.Time
	Symbol    string
	Quantity  int64
	Price     float64
	Amount    float64
	Zone      Zone
	Mode      string
}
