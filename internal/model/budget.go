package model

import "time"

// BudgetState is the engine's in-memory cash ledger for the current month.
type BudgetState struct {
	Month       string             `json:"month"` // 2006-01
	DailyCash   float64            `json:"daily_cash"`
	CrashBuffer float64            `json:"crash_buffer"`
	IsMonthEnd  bool               `json:"is_month_end"`
	Spent       map[string]float64 `json:"spent"`
	LastAccrual string             `json:"last_accrual"` // 2006-01-02
	UpdatedAt   time.Time          `json:"updated_at"`
}

// Clone returns a copy that shares no maps with s.
func (s BudgetState) Clone() BudgetState {
	out := s
	out.Spent = make(map[string]float64, len(s.Spent))
	for k, v := range s.Spent {
		out.Spent[k] = v
	}
	return out
}

// TotalSpent sums spend across instruments.
func (s BudgetState) TotalSpent() float64 {
	var total float64
	for _, v := range s.Spent {
		total += v
	}
	return total
}
