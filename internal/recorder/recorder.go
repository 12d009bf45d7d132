package recorder

import (
	"context"
	"errors"
	"time"

	"ETFSentinel/internal/model"
)

// ErrClosed is returned by recorders after Close.
var ErrClosed = errors.New("recorder closed")

// CycleEvent summarises one scan cycle for later analysis.
type CycleEvent struct {
	StartedAt   time.Time
	Purchases   int
	Skips       int
	FetchErrors int
	Spent       float64
	DailyCash   float64
	CrashBuffer float64
	IsMonthEnd  bool
	AdvisorUsed bool
}

// FundEvent records a budget state transition.
type FundEvent struct {
	EventType    string // "ACCRUAL", "MONTHLY_RESET", "MONTH_END", "CYCLE", "HYDRATE"
	CashBefore   float64
	CashAfter    float64
	BufferBefore float64
	BufferAfter  float64
	Amount       float64
	Note         string
}

// Recorder is the ledger of record: durable holdings and transactions,
// plus the history of cycles and fund transitions.
type Recorder interface {
	ReadHoldings(ctx context.Context) (model.HoldingsSnapshot, error)
	AppendTransaction(ctx context.Context, tx *model.Transaction) error
	UpdateHoldings(ctx context.Context, symbol, name string, deltaQty int64, deltaAmount float64) error
	// MonthSpend sums the transaction amounts per symbol since monthStart.
	MonthSpend(ctx context.Context, monthStart time.Time) (map[string]float64, error)
	RecordCycle(ctx context.Context, evt *CycleEvent) error
	RecordFundEvent(ctx context.Context, evt *FundEvent) error
	Close() error
}
