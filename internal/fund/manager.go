package fund

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"ETFSentinel/internal/model"
)

// Manager is the single owner of the BudgetState. Every transition goes
// through it and is persisted to the state file afterwards.
type Manager struct {
	mu       sync.Mutex
	state    model.BudgetState
	rules    model.AllocationRules
	filePath string
	log      zerolog.Logger
}

// NewManager loads the state file (or opens a fresh month) and rolls it into
// the month of now.
func NewManager(filePath string, rules model.AllocationRules, now time.Time, log zerolog.Logger) (*Manager, error) {
	state, err := LoadState(filePath)
	if err != nil {
		return nil, err
	}

	m := &Manager{rules: rules, filePath: filePath, log: log.With().Str("component", "fund").Logger()}
	if state.Month == "" {
		m.state = NewState(rules, now)
		m.log.Info().Str("month", m.state.Month).Msg("initialised fresh budget state")
	} else {
		if state.Spent == nil {
			state.Spent = map[string]float64{}
		}
		m.state = *state
		if rolled, ok := RollMonth(m.state, rules, now); ok {
			m.log.Info().Str("from", m.state.Month).Str("to", rolled.Month).Msg("stale state file, month reset")
			m.state = rolled
		}
	}

	if err := m.save(); err != nil {
		return nil, err
	}
	return m, nil
}

// State returns a copy of the current budget state.
func (m *Manager) State() model.BudgetState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Clone()
}

// Rules returns the allocation rules the manager was configured with.
func (m *Manager) Rules() model.AllocationRules { return m.rules }

// Accrue adds the daily base, opening a new month first if needed.
func (m *Manager) Accrue(now time.Time) (model.BudgetState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.rollLocked(now)
	next, ok := Accrue(m.state, m.rules, now)
	if !ok {
		m.log.Debug().Str("date", now.Format(dayLayout)).Msg("daily accrual already applied")
		return m.state.Clone(), false
	}
	m.state = next
	m.log.Info().Float64("added", m.rules.DailyBase).Float64("cash", m.state.DailyCash).Msg("daily saving added")
	m.saveLocked("daily accrual")
	return m.state.Clone(), true
}

// ResetMonth unconditionally opens the month of now.
func (m *Manager) ResetMonth(now time.Time) model.BudgetState {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state = MonthlyReset(m.state, m.rules, now)
	m.log.Info().Str("month", m.state.Month).Float64("buffer", m.state.CrashBuffer).Msg("monthly allocations reset")
	m.saveLocked("monthly reset")
	return m.state.Clone()
}

// RollMonth resets the state if now is in a new month.
func (m *Manager) RollMonth(now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rollLocked(now)
}

// MarkMonthEnd raises the month-end flag when inside the window. It returns
// true only when the flag was newly raised.
func (m *Manager) MarkMonthEnd(now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.rollLocked(now)
	if m.state.IsMonthEnd {
		return false
	}
	m.state = MarkMonthEnd(m.state, m.rules, now)
	if !m.state.IsMonthEnd {
		return false
	}
	m.log.Info().Int("day", now.Day()).Msg("month-end mode activated")
	m.saveLocked("month-end")
	return true
}

// Replace installs the state produced by a decision cycle.
func (m *Manager) Replace(s model.BudgetState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = s.Clone()
	m.saveLocked("cycle commit")
}

// Hydrate merges the ledger of record's spend for the current month into
// the state. Each instrument keeps the larger of the two figures, so a
// ledger write that failed earlier never lowers the tracked spend.
func (m *Manager) Hydrate(ledgerSpent map[string]float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := m.state.Clone()
	var raised int
	for symbol, v := range ledgerSpent {
		if v > next.Spent[symbol] {
			next.Spent[symbol] = v
			raised++
		}
	}
	m.state = next
	m.log.Info().Int("raised", raised).Float64("spent", next.TotalSpent()).Msg("spend reconciled with ledger of record")
	m.saveLocked("hydrate")
}

func (m *Manager) rollLocked(now time.Time) bool {
	next, ok := RollMonth(m.state, m.rules, now)
	if !ok {
		return false
	}
	m.log.Info().Str("from", m.state.Month).Str("to", next.Month).Msg("new month detected, allocations reset")
	m.state = next
	m.saveLocked("month roll")
	return true
}

func (m *Manager) saveLocked(op string) {
	if err := m.save(); err != nil {
		m.log.Error().Err(err).Str("op", op).Msg("failed to save budget state")
	}
}

func (m *Manager) save() error {
	if m.filePath == "" {
		return nil
	}
	return SaveState(m.filePath, &m.state)
}
