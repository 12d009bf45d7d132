package recorder

import (
	"context"
	"sync"
	"time"

	"ETFSentinel/internal/model"
)

// MemoryRecorder keeps the ledger in process memory. It is used when SQLite
// is not configured and in tests.
type MemoryRecorder struct {
	mu           sync.Mutex
	holdings     model.HoldingsSnapshot
	Transactions []model.Transaction
	Cycles       []CycleEvent
	FundEvents   []FundEvent
	closed       bool

	// ReadErr and WriteErr let tests simulate a failing ledger.
	ReadErr  error
	WriteErr error
}

// NewMemoryRecorder returns a recorder seeded with holdings.
func NewMemoryRecorder(seed model.HoldingsSnapshot) *MemoryRecorder {
	if seed == nil {
		seed = model.HoldingsSnapshot{}
	}
	return &MemoryRecorder{holdings: seed.Clone()}
}

func (m *MemoryRecorder) ReadHoldings(_ context.Context) (model.HoldingsSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	if m.ReadErr != nil {
		return nil, m.ReadErr
	}
	return m.holdings.Clone(), nil
}

func (m *MemoryRecorder) AppendTransaction(_ context.Context, tx *model.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WriteErr != nil {
		return m.WriteErr
	}
	m.Transactions = append(m.Transactions, *tx)
	return nil
}

func (m *MemoryRecorder) UpdateHoldings(_ context.Context, symbol, name string, deltaQty int64, deltaAmount float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WriteErr != nil {
		return m.WriteErr
	}
	h := m.holdings[symbol]
	if h.Name == "" {
		h.Name = name
	}
	h.Quantity += deltaQty
	h.Invested += deltaAmount
	m.holdings[symbol] = h
	return nil
}

func (m *MemoryRecorder) MonthSpend(_ context.Context, monthStart time.Time) (map[string]float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]float64{}
	for _, tx := range m.Transactions {
		if !tx.Timestamp.Before(monthStart) {
			out[tx.Symbol] += tx.Amount
		}
	}
	return out, nil
}

func (m *MemoryRecorder) RecordCycle(_ context.Context, evt *CycleEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Cycles = append(m.Cycles, *evt)
	return nil
}

func (m *MemoryRecorder) RecordFundEvent(_ context.Context, evt *FundEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FundEvents = append(m.FundEvents, *evt)
	return nil
}

func (m *MemoryRecorder) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
