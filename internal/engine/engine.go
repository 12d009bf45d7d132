// Package engine runs the allocation cycle end to end: it reads the ledger of
// record, collects quotes, optionally consults the advisor, decides, commits
// and reports.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"ETFSentinel/internal/collector"
	"ETFSentinel/internal/fund"
	"ETFSentinel/internal/model"
	"ETFSentinel/internal/notifier"
	"ETFSentinel/internal/recorder"
	"ETFSentinel/internal/strategy"
)

// ErrHoldingsUnavailable aborts a cycle before anything is committed.
var ErrHoldingsUnavailable = errors.New("holdings unavailable")

// RunMode selects whether purchases reach the ledger of record.
type RunMode string

const (
	ModeLive     RunMode = "LIVE"
	ModePaper    RunMode = "PAPER"
	ModeBacktest RunMode = "BACKTEST"
)

// Writes reports whether purchases are written to the ledger of record.
func (m RunMode) Writes() bool { return m == ModeLive }

// Valid reports whether m is a known mode.
func (m RunMode) Valid() bool {
	return m == ModeLive || m == ModePaper || m == ModeBacktest
}

// Notifier delivers a report to the operator.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// Advisor proposes purchases. Its output is treated as untrusted input.
type Advisor interface {
	Suggest(ctx context.Context, req model.AdviceRequest) (*model.Advice, error)
}

// Deps are the collaborators of an Engine. Advisor may be nil.
type Deps struct {
	Fund        *fund.Manager
	Collector   *collector.Collector
	Recorder    recorder.Recorder
	Notifier    Notifier
	Advisor     Advisor
	Instruments []model.InstrumentProfile
	Mode        RunMode
	Location    *time.Location
	Log         zerolog.Logger
}

// Engine serializes every state transition behind one mutex, so a scan and
// a calendar job never interleave.
type Engine struct {
	mu sync.Mutex

	fund        *fund.Manager
	collector   *collector.Collector
	recorder    recorder.Recorder
	notifier    Notifier
	advisor     Advisor
	instruments []model.InstrumentProfile
	mode        RunMode
	loc         *time.Location
	log         zerolog.Logger

	now func() time.Time
}

// New creates an Engine.
func New(d Deps) *Engine {
	loc := d.Location
	if loc == nil {
		loc = time.Local
	}
	mode := d.Mode
	if mode == "" {
		mode = ModeLive
	}
	return &Engine{
		fund:        d.Fund,
		collector:   d.Collector,
		recorder:    d.Recorder,
		notifier:    d.Notifier,
		advisor:     d.Advisor,
		instruments: d.Instruments,
		mode:        mode,
		loc:         loc,
		log:         d.Log.With().Str("component", "engine").Logger(),
		now:         time.Now,
	}
}

func (e *Engine) clock() time.Time { return e.now().In(e.loc) }

// Scan runs one decision cycle. A failure to read holdings aborts the cycle
// with ErrHoldingsUnavailable; every later failure is logged and the cycle
// completes.
func (e *Engine) Scan(ctx context.Context) (*model.CycleResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock()
	e.fund.RollMonth(now)

	holdings, err := e.recorder.ReadHoldings(ctx)
	if err != nil {
		e.log.Error().Err(err).Msg("scan aborted: cannot read holdings")
		return nil, fmt.Errorf("%w: %v", ErrHoldingsUnavailable, err)
	}

	snap, err := e.collector.Collect(ctx, e.instruments)
	if err != nil {
		return nil, fmt.Errorf("collect quotes: %w", err)
	}

	before := e.fund.State()
	rules := e.fund.Rules()
	in := strategy.Input{
		Rules:        rules,
		Instruments:  e.instruments,
		State:        before,
		Holdings:     holdings,
		Observations: snap.Observations,
		FetchErrors:  snap.Errors,
	}
	if e.advisor != nil {
		in.Advice = e.consult(ctx, in)
	}

	after, res := strategy.Decide(in)
	res.StartedAt = now
	e.fund.Replace(after)

	if e.mode.Writes() {
		res.WriteErrors = e.commit(ctx, res.Purchases, now)
	}

	e.log.Info().
		Int("purchases", len(res.Purchases)).
		Int("skips", len(res.Skips)).
		Int("fetch_errors", len(res.FetchErrors)).
		Int("write_errors", res.WriteErrors).
		Float64("spent", res.TotalSpent()).
		Float64("cash", after.DailyCash).
		Str("mode", string(e.mode)).
		Msg("scan completed")

	e.notify(ctx, notifier.FormatCycleReport(res, e.instruments, string(e.mode)))
	e.recordCycle(ctx, res, before, after)
	return res, nil
}

// consult asks the advisor for proposals. Any failure yields nil advice and
// the cycle runs on the rules alone.
func (e *Engine) consult(ctx context.Context, in strategy.Input) *model.Advice {
	req := model.AdviceRequest{
		Holdings:    in.Holdings,
		Zones:       map[string]model.Zone{},
		Instruments: in.Instruments,
		Cash:        in.State.DailyCash,
	}
	for _, inst := range model.ByPriority(in.Instruments) {
		obs, ok := in.Observations[inst.Symbol]
		if !ok {
			continue
		}
		req.Observations = append(req.Observations, obs)
		req.Zones[inst.Symbol] = strategy.ClassifyZone(obs.ChangePct, in.Rules.Zones)
	}
	if len(req.Observations) == 0 {
		return nil
	}

	advice, err := e.advisor.Suggest(ctx, req)
	if err != nil {
		e.log.Warn().Err(err).Msg("advisor unavailable, deciding on rules only")
		return nil
	}
	return advice
}

// commit writes each purchase to the ledger of record. Failures are counted
// and logged, never reversed.
func (e *Engine) commit(ctx context.Context, purchases []model.Purchase, now time.Time) int {
	var failed int
	for _, p := range purchases {
		tx := &model.Transaction{
			ID:        uuid.NewString(),
			Timestamp: now,
			Symbol:    p.Symbol,
			Quantity:  p.Quantity,
			Price:     p.Price,
			Amount:    p.Amount,
			Zone:      p.Zone,
			Mode:      string(e.mode),
		}
		if err := e.recorder.AppendTransaction(ctx, tx); err != nil {
			failed++
			e.log.Error().Err(err).Str("symbol", p.Symbol).Str("tx", tx.ID).Msg("failed to append transaction")
		}
		if err := e.recorder.UpdateHoldings(ctx, p.Symbol, p.Name, p.Quantity, p.Amount); err != nil {
			failed++
			e.log.Error().Err(err).Str("symbol", p.Symbol).Msg("failed to update holdings")
		}
	}
	return failed
}

// AccrueDaily adds the daily base to the cash pool.
func (e *Engine) AccrueDaily(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	before := e.fund.State()
	after, ok := e.fund.Accrue(e.clock())
	if !ok {
		return
	}
	e.recordFund(ctx, "ACCRUAL", before, after, after.DailyCash-cashIfSameMonth(before, after), "")
}

// ResetMonth opens a new month and reports the previous one.
func (e *Engine) ResetMonth(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	before := e.fund.State()
	after := e.fund.ResetMonth(e.clock())
	e.recordFund(ctx, "MONTHLY_RESET", before, after, 0, before.Month+" -> "+after.Month)
	e.notify(ctx, notifier.FormatMonthlySummary(before, after))
}

// CheckMonthEnd raises the month-end flag inside the window and announces
// it once.
func (e *Engine) CheckMonthEnd(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	before := e.fund.State()
	if !e.fund.MarkMonthEnd(e.clock()) {
		return
	}
	after := e.fund.State()
	e.recordFund(ctx, "MONTH_END", before, after, 0, "")
	e.notify(ctx, notifier.FormatMonthEnd(after, e.instruments))
}

// Hydrate reconciles the month's per-instrument spend with the ledger of
// record, so a lost state file does not reopen targets that were already
// met. Only LIVE writes the ledger, so other modes keep the state file's
// figures untouched.
func (e *Engine) Hydrate(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock()
	e.fund.RollMonth(now)
	if !e.mode.Writes() {
		e.log.Info().Str("mode", string(e.mode)).Msg("ledger of record not written in this mode, hydrate skipped")
		return nil
	}
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	spent, err := e.recorder.MonthSpend(ctx, monthStart)
	if err != nil {
		return fmt.Errorf("read month spend: %w", err)
	}
	before := e.fund.State()
	e.fund.Hydrate(spent)
	e.recordFund(ctx, "HYDRATE", before, e.fund.State(), 0, fmt.Sprintf("%d instruments", len(spent)))
	return nil
}

// Status returns the current budget state and rules.
func (e *Engine) Status() (model.BudgetState, model.AllocationRules) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fund.State(), e.fund.Rules()
}

// Heartbeat logs that the process is alive.
func (e *Engine) Heartbeat() {
	st, _ := e.Status()
	e.log.Info().Float64("cash", st.DailyCash).Float64("buffer", st.CrashBuffer).Msg("heartbeat OK")
}

// HandleCommand answers a chat command.
func (e *Engine) HandleCommand(ctx context.Context, command string) string {
	var cmd string
	if fields := strings.Fields(command); len(fields) > 0 {
		cmd = strings.ToLower(fields[0])
	}
	if i := strings.IndexByte(cmd, '@'); i >= 0 {
		cmd = cmd[:i]
	}

	switch cmd {
	case "/status":
		st, rules := e.Status()
		return notifier.FormatBudgetStatus(st, rules)
	case "/holdings":
		h, err := e.recorder.ReadHoldings(ctx)
		if err != nil {
			e.log.Error().Err(err).Msg("holdings command failed")
			return "❌ Cannot read holdings: " + err.Error()
		}
		return notifier.FormatHoldings(h, e.instruments)
	case "/scan":
		if _, err := e.Scan(ctx); err != nil {
			return "❌ Scan failed: " + err.Error()
		}
		// the report was already sent by Scan
		return ""
	default:
		return notifier.HelpText
	}
}

func (e *Engine) notify(ctx context.Context, text string) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Notify(ctx, text); err != nil {
		e.log.Error().Err(err).Msg("notification failed")
	}
}

func (e *Engine) recordCycle(ctx context.Context, res *model.CycleResult, before, after model.BudgetState) {
	evt := &recorder.CycleEvent{
		StartedAt:   res.StartedAt,
		Purchases:   len(res.Purchases),
		Skips:       len(res.Skips),
		FetchErrors: len(res.FetchErrors),
		Spent:       res.TotalSpent(),
		DailyCash:   after.DailyCash,
		CrashBuffer: after.CrashBuffer,
		IsMonthEnd:  after.IsMonthEnd,
		AdvisorUsed: res.AdvisorUsed,
	}
	if err := e.recorder.RecordCycle(ctx, evt); err != nil {
		e.log.Warn().Err(err).Msg("failed to record cycle")
	}
	if len(res.Purchases) > 0 {
		e.recordFund(ctx, "CYCLE", before, after, res.TotalSpent(), string(e.mode))
	}
}

func (e *Engine) recordFund(ctx context.Context, eventType string, before, after model.BudgetState, amount float64, note string) {
	evt := &recorder.FundEvent{
		EventType:    eventType,
		CashBefore:   before.DailyCash,
		CashAfter:    after.DailyCash,
		BufferBefore: before.CrashBuffer,
		BufferAfter:  after.CrashBuffer,
		Amount:       amount,
		Note:         note,
	}
	if err := e.recorder.RecordFundEvent(ctx, evt); err != nil {
		e.log.Warn().Err(err).Str("event", eventType).Msg("failed to record fund event")
	}
}

// cashIfSameMonth is the cash an accrual started from. An accrual that
// also rolled the month started from zero.
func cashIfSameMonth(before, after model.BudgetState) float64 {
	if before.Month != after.Month {
		return 0
	}
	return before.DailyCash
}
