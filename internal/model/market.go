package model

import "time"

// Quote is the raw answer of a market data source for one symbol.
type Quote struct {
	Price         float64
	PreviousClose float64
	FetchedAt     time.Time
}

// MarketObservation is one instrument's price movement for the current cycle.
type MarketObservation struct {
	Symbol        string
	Price         float64
	PreviousClose float64
	ChangePct     float64
}
