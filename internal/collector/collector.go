package collector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"ETFSentinel/internal/calculator"
	"ETFSentinel/internal/model"
)

// MockFetcher returns controllable fixed quotes for development and testing.
type MockFetcher struct {
	mu     sync.Mutex
	Quotes map[string]model.Quote
	Errs   map[string]error
	Calls  map[string]int
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) FetchQuote(_ context.Context, symbol string) (model.Quote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Calls == nil {
		m.Calls = map[string]int{}
	}
	m.Calls[symbol]++
	if err, ok := m.Errs[symbol]; ok {
		return model.Quote{}, err
	}
	q, ok := m.Quotes[symbol]
	if !ok {
		return model.Quote{}, fmt.Errorf("mock: no quote for %s", symbol)
	}
	if q.FetchedAt.IsZero() {
		q.FetchedAt = time.Now()
	}
	return q, nil
}

// Snapshot is the joined result of one collection round.
type Snapshot struct {
	Observations map[string]model.MarketObservation
	Errors       map[string]error
}

// Collector fetches quotes for the basket concurrently and derives the
// change percentage itself.
type Collector struct {
	Fetcher     Fetcher
	Concurrency int
	log         zerolog.Logger
}

// NewCollector creates a new Collector.
func NewCollector(fetcher Fetcher, concurrency int, log zerolog.Logger) *Collector {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Collector{
		Fetcher:     fetcher,
		Concurrency: concurrency,
		log:         log.With().Str("component", "collector").Str("source", fetcher.Name()).Logger(),
	}
}

// Collect fetches every instrument and returns once all fetches have
// finished. A failing instrument is reported in Snapshot.Errors and never
// fails the round; only ctx cancellation does.
func (c *Collector) Collect(ctx context.Context, instruments []model.InstrumentProfile) (*Snapshot, error) {
	snap := &Snapshot{
		Observations: make(map[string]model.MarketObservation, len(instruments)),
		Errors:       map[string]error{},
	}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.Concurrency)
	for _, inst := range instruments {
		symbol := inst.Symbol
		g.Go(func() error {
			obs, err := c.observe(gctx, symbol)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				c.log.Warn().Err(err).Str("symbol", symbol).Msg("quote fetch failed")
				snap.Errors[symbol] = err
				return nil
			}
			c.log.Info().Str("symbol", symbol).Float64("price", obs.Price).Float64("change_pct", obs.ChangePct).Msg("fetched quote")
			snap.Observations[symbol] = obs
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("collect: %w", err)
	}
	return snap, nil
}

func (c *Collector) observe(ctx context.Context, symbol string) (model.MarketObservation, error) {
	q, err := c.Fetcher.FetchQuote(ctx, symbol)
	if err != nil {
		return model.MarketObservation{}, err
	}
	pct, err := calculator.ChangePercent(q.Price, q.PreviousClose)
	if err != nil {
		return model.MarketObservation{}, fmt.Errorf("change percent: %w", err)
	}
	return model.MarketObservation{
		Symbol:        symbol,
		Price:         q.Price,
		PreviousClose: q.PreviousClose,
		ChangePct:     pct,
	}, nil
}
