package model

import (
	"fmt"
	"time"
)

// Zone is the qualitative classification of a price change.
type Zone string

const (
	ZoneCrash Zone = "CRASH"
	ZoneDip   Zone = "DIP"
	ZoneWait  Zone = "WAIT"
	ZoneSkip  Zone = "SKIP"
)

// Buyable reports whether the zone allows a purchase.
func (z Zone) Buyable() bool { return z == ZoneCrash || z == ZoneDip }

// Source indicates who proposed a purchase amount.
type Source string

const (
	SourceRules   Source = "RULES"
	SourceAdvisor Source = "ADVISOR"
)

// SkipReason explains why an instrument was not bought this cycle.
type SkipReason string

const (
	SkipZone          SkipReason = "ZONE"
	SkipTargetReached SkipReason = "TARGET_REACHED"
	SkipLowCash       SkipReason = "LOW_CASH"
	SkipPriceTooHigh  SkipReason = "PRICE_TOO_HIGH"
	SkipGuardrail     SkipReason = "GUARDRAIL"
	SkipAdvisor       SkipReason = "ADVISOR_SKIP"
)

// Purchase is an accepted buy instruction.
type Purchase struct {
	Symbol     string
	Name       string
	Zone       Zone
	ChangePct  float64
	Price      float64
	Quantity   int64
	Amount     float64
	BufferUsed bool
	Source     Source
	Reason     string
}

// Skip records an instrument that was evaluated but not bought.
type Skip struct {
	Symbol    string
	Name      string
	Zone      Zone
	ChangePct float64
	Reason    SkipReason
	Detail    string
}

// FetchError is a per-instrument market data failure. It never aborts a cycle.
type FetchError struct {
	Symbol string
	Err    error
}

func (e *FetchError) Error() string { return fmt.Sprintf("fetch %s: %v", e.Symbol, e.Err) }

func (e *FetchError) Unwrap() error { return e.Err }

// CycleResult is the outcome of one scan cycle.
type CycleResult struct {
	StartedAt    time.Time
	Observations []MarketObservation
	Purchases    []Purchase
	Skips        []Skip
	FetchErrors  []*FetchError
	WriteErrors  int
	AdvisorUsed  bool
	State        BudgetState
}

// TotalSpent sums the accepted purchase amounts.
func (r *CycleResult) TotalSpent() float64 {
	var total float64
	for _, p := range r.Purchases {
		total += p.Amount
	}
	return total
}

// AdviceBuy is one purchase proposed by the advisory collaborator.
type AdviceBuy struct {
	Symbol string  `json:"symbol"`
	Qty    float64 `json:"qty"`
	Price  float64 `json:"price"`
	Amount float64 `json:"amount"`
	Reason string  `json:"reason"`
}

// Advice is the untrusted output of the advisory collaborator.
type Advice struct {
	Buy  []AdviceBuy `json:"buy"`
	Skip []string    `json:"skip"`
}

// AdviceRequest is the context handed to the advisory collaborator.
type AdviceRequest struct {
	Holdings     HoldingsSnapshot
	Observations []MarketObservation
	Zones        map[string]Zone
	Instruments  []InstrumentProfile
	Cash         float64
}
