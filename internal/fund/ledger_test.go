package fund

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ETFSentinel/internal/model"
)

var testRules = model.AllocationRules{
	MonthlyBudget: 15000,
	DailyBase:     750,
	MinPurchase:   500,
	CrashAmount:   1000,
	DipAmount:     500,
	CrashBuffer:   750,
	MonthEndDays:  3,
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 9, 30, 0, 0, time.UTC)
}

func TestAccrue_NConsecutiveDays(t *testing.T) {
	s := NewState(testRules, day(2026, 3, 2))
	for i := 0; i < 5; i++ {
		var ok bool
		s, ok = Accrue(s, testRules, day(2026, 3, 2+i))
		require.True(t, ok)
	}
	assert.InDelta(t, 5*testRules.DailyBase, s.DailyCash, 1e-9)
}

func TestAccrue_SameDayIsIdempotent(t *testing.T) {
	s := NewState(testRules, day(2026, 3, 2))
	s, _ = Accrue(s, testRules, day(2026, 3, 2))
	s, ok := Accrue(s, testRules, day(2026, 3, 2).Add(2*time.Hour))
	assert.False(t, ok)
	assert.InDelta(t, testRules.DailyBase, s.DailyCash, 1e-9)
}

func TestMonthlyReset_AlwaysRestoresDefaults(t *testing.T) {
	prior := model.BudgetState{
		Month:       "2026-02",
		DailyCash:   3125,
		CrashBuffer: 0,
		IsMonthEnd:  true,
		Spent:       map[string]float64{"NIFTYBEES.NS": 3750, "GOLDBEES.NS": 500},
	}
	s := MonthlyReset(prior, testRules, day(2026, 3, 2))
	assert.Equal(t, "2026-03", s.Month)
	assert.Zero(t, s.DailyCash)
	assert.Equal(t, testRules.CrashBuffer, s.CrashBuffer)
	assert.False(t, s.IsMonthEnd)
	assert.Empty(t, s.Spent)

	// prior must not be mutated
	assert.Equal(t, 3750.0, prior.Spent["NIFTYBEES.NS"])
}

func TestRollMonth_OnlyOnNewMonth(t *testing.T) {
	s := NewState(testRules, day(2026, 3, 2))
	s.DailyCash = 1500

	same, rolled := RollMonth(s, testRules, day(2026, 3, 31))
	assert.False(t, rolled)
	assert.Equal(t, 1500.0, same.DailyCash)

	next, rolled := RollMonth(s, testRules, day(2026, 4, 1))
	assert.True(t, rolled)
	assert.Zero(t, next.DailyCash)
	assert.Equal(t, "2026-04", next.Month)
}

func TestInMonthEndWindow(t *testing.T) {
	tests := []struct {
		date time.Time
		want bool
	}{
		{day(2026, 1, 28), false},
		{day(2026, 1, 29), true},
		{day(2026, 1, 31), true},
		{day(2026, 2, 25), false},
		{day(2026, 2, 26), true},
		{day(2028, 2, 27), true}, // leap year: 27, 28, 29
		{day(2028, 2, 26), false},
		{day(2026, 4, 28), true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, InMonthEndWindow(tt.date, 3), tt.date.Format("2006-01-02"))
	}
	assert.False(t, InMonthEndWindow(day(2026, 1, 31), 0))
}

func TestMarkMonthEnd_NeverClearsItself(t *testing.T) {
	s := NewState(testRules, day(2026, 1, 5))
	s = MarkMonthEnd(s, testRules, day(2026, 1, 10))
	assert.False(t, s.IsMonthEnd)
	s = MarkMonthEnd(s, testRules, day(2026, 1, 30))
	assert.True(t, s.IsMonthEnd)
	s = MarkMonthEnd(s, testRules, day(2026, 1, 10))
	assert.True(t, s.IsMonthEnd)
}

func TestAvailable(t *testing.T) {
	s := model.BudgetState{DailyCash: 750, CrashBuffer: 750}
	assert.Equal(t, 1500.0, Available(s, model.ZoneCrash))
	assert.Equal(t, 750.0, Available(s, model.ZoneDip))
}

func TestCommit_CrashConsumesBuffer(t *testing.T) {
	s := model.BudgetState{DailyCash: 750, CrashBuffer: 750, Spent: map[string]float64{}}
	out, used := Commit(s, "NIFTYBEES.NS", 1000, model.ZoneCrash)
	assert.True(t, used)
	assert.Zero(t, out.DailyCash)
	assert.Zero(t, out.CrashBuffer)
	assert.Equal(t, 1000.0, out.Spent["NIFTYBEES.NS"])
	assert.Equal(t, 750.0, s.DailyCash, "input state must be untouched")
}

func TestCommit_DipLeavesBuffer(t *testing.T) {
	s := model.BudgetState{DailyCash: 1500, CrashBuffer: 750, Spent: map[string]float64{}}
	out, used := Commit(s, "MON100.NS", 500, model.ZoneDip)
	assert.False(t, used)
	assert.Equal(t, 1000.0, out.DailyCash)
	assert.Equal(t, 750.0, out.CrashBuffer)
}

func TestManager_PersistsAndRolls(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	log := zerolog.Nop()

	m, err := NewManager(path, testRules, day(2026, 3, 2), log)
	require.NoError(t, err)
	m.Accrue(day(2026, 3, 2))
	m.Accrue(day(2026, 3, 3))
	s := m.State()
	s, _ = Commit(s, "GOLDBEES.NS", 500, model.ZoneDip)
	m.Replace(s)

	reopened, err := NewManager(path, testRules, day(2026, 3, 4), log)
	require.NoError(t, err)
	got := reopened.State()
	assert.Equal(t, 1000.0, got.DailyCash)
	assert.Equal(t, 500.0, got.Spent["GOLDBEES.NS"])

	nextMonth, err := NewManager(path, testRules, day(2026, 4, 1), log)
	require.NoError(t, err)
	got = nextMonth.State()
	assert.Equal(t, "2026-04", got.Month)
	assert.Zero(t, got.DailyCash)
	assert.Equal(t, testRules.CrashBuffer, got.CrashBuffer)
	assert.Empty(t, got.Spent)
}

func TestManager_AccrueRollsMonthFirst(t *testing.T) {
	m, err := NewManager("", testRules, day(2026, 3, 30), zerolog.Nop())
	require.NoError(t, err)
	m.Accrue(day(2026, 3, 30))
	m.Accrue(day(2026, 3, 31))

	s, ok := m.Accrue(day(2026, 4, 1))
	assert.True(t, ok)
	assert.Equal(t, "2026-04", s.Month)
	assert.Equal(t, testRules.DailyBase, s.DailyCash)
}

func TestManager_MarkMonthEndReportsOnce(t *testing.T) {
	m, err := NewManager("", testRules, day(2026, 3, 29), zerolog.Nop())
	require.NoError(t, err)
	assert.True(t, m.MarkMonthEnd(day(2026, 3, 29)))
	assert.False(t, m.MarkMonthEnd(day(2026, 3, 30)))
	assert.True(t, m.State().IsMonthEnd)
}

func TestManager_Hydrate(t *testing.T) {
	m, err := NewManager("", testRules, day(2026, 3, 10), zerolog.Nop())
	require.NoError(t, err)
	m.Hydrate(map[string]float64{"NIFTYBEES.NS": 2000})
	assert.Equal(t, 2000.0, m.State().Spent["NIFTYBEES.NS"])
}

func TestManager_HydrateKeepsLargerSpend(t *testing.T) {
	m, err := NewManager("", testRules, day(2026, 3, 10), zerolog.Nop())
	require.NoError(t, err)
	s := m.State()
	s.Spent["NIFTYBEES.NS"] = 3750
	s.Spent["GOLDBEES.NS"] = 500
	m.Replace(s)

	m.Hydrate(map[string]float64{"NIFTYBEES.NS": 2500, "GOLDBEES.NS": 1000, "MON100.NS": 340})
	got := m.State().Spent
	assert.Equal(t, 3750.0, got["NIFTYBEES.NS"], "state figure above ledger is kept")
	assert.Equal(t, 1000.0, got["GOLDBEES.NS"])
	assert.Equal(t, 340.0, got["MON100.NS"])

	m.Hydrate(nil)
	assert.Equal(t, 3750.0, m.State().Spent["NIFTYBEES.NS"])
}

func TestLoadState_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	_, err := NewManager(path, testRules, day(2026, 3, 2), zerolog.Nop())
	assert.Error(t, err)
}

func TestLoadState_MissingFileIsFresh(t *testing.T) {
	s, err := LoadState(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Empty(t, s.Month)
}
