package recorder

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"ETFSentinel/internal/model"
)

// SQLiteRecorder persists the ledger of record to a SQLite database.
type SQLiteRecorder struct {
	db  *sql.DB
	mu  sync.Mutex
	log zerolog.Logger
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string, log zerolog.Logger) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode so reporting tools can read while the bot writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, log: log.With().Str("component", "recorder").Logger()}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	r.log.Info().Str("path", dbPath).Msg("sqlite recorder opened")
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS holdings (
			symbol     TEXT PRIMARY KEY,
			name       TEXT,
			invested   REAL NOT NULL DEFAULT 0,
			quantity   INTEGER NOT NULL DEFAULT 0,
			updated_at INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS transactions (
			id        TEXT PRIMARY KEY,
			timestamp INTEGER NOT NULL,
			symbol    TEXT NOT NULL,
			quantity  INTEGER NOT NULL,
			price     REAL NOT NULL,
			amount    REAL NOT NULL,
			zone      TEXT,
			mode      TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tx_ts ON transactions(timestamp)`,

		`CREATE TABLE IF NOT EXISTS cycles (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp    INTEGER NOT NULL,
			purchases    INTEGER,
			skips        INTEGER,
			fetch_errors INTEGER,
			spent        REAL,
			daily_cash   REAL,
			crash_buffer REAL,
			month_end    INTEGER,
			advisor_used INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_cycles_ts ON cycles(timestamp)`,

		`CREATE TABLE IF NOT EXISTS fund_history (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp     INTEGER NOT NULL,
			event_type    TEXT,
			cash_before   REAL,
			cash_after    REAL,
			buffer_before REAL,
			buffer_after  REAL,
			amount        REAL,
			note          TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_fund_ts ON fund_history(timestamp)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) ReadHoldings(ctx context.Context) (model.HoldingsSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.db.QueryContext(ctx, `SELECT symbol, name, invested, quantity FROM holdings`)
	if err != nil {
		return nil, fmt.Errorf("query holdings: %w", err)
	}
	defer rows.Close()

	out := model.HoldingsSnapshot{}
	for rows.Next() {
		var symbol string
		var name sql.NullString
		var h model.Holding
		if err := rows.Scan(&symbol, &name, &h.Invested, &h.Quantity); err != nil {
			return nil, fmt.Errorf("scan holding: %w", err)
		}
		h.Name = name.String
		out[symbol] = h
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate holdings: %w", err)
	}
	return out, nil
}

func (r *SQLiteRecorder) AppendTransaction(ctx context.Context, tx *model.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.Timestamp.IsZero() {
		tx.Timestamp = time.Now()
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO transactions
		(id, timestamp, symbol, quantity, price, amount, zone, mode)
		VALUES (?,?,?,?,?,?,?,?)`,
		tx.ID, tx.Timestamp.Unix(), tx.Symbol, tx.Quantity, tx.Price, tx.Amount, string(tx.Zone), tx.Mode,
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (r *SQLiteRecorder) UpdateHoldings(ctx context.Context, symbol, name string, deltaQty int64, deltaAmount float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.ExecContext(ctx, `INSERT INTO holdings (symbol, name, invested, quantity, updated_at)
		VALUES (?,?,?,?,?)
		ON CONFLICT(symbol) DO UPDATE SET
			invested   = invested + excluded.invested,
			quantity   = quantity + excluded.quantity,
			name       = COALESCE(NULLIF(holdings.name, ''), excluded.name),
			updated_at = excluded.updated_at`,
		symbol, name, deltaAmount, deltaQty, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("update holdings: %w", err)
	}
	return nil
}

func (r *SQLiteRecorder) MonthSpend(ctx context.Context, monthStart time.Time) (map[string]float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.db.QueryContext(ctx,
		`SELECT symbol, SUM(amount) FROM transactions WHERE timestamp >= ? GROUP BY symbol`,
		monthStart.Unix())
	if err != nil {
		return nil, fmt.Errorf("query month spend: %w", err)
	}
	defer rows.Close()

	out := map[string]float64{}
	for rows.Next() {
		var symbol string
		var sum float64
		if err := rows.Scan(&symbol, &sum); err != nil {
			return nil, fmt.Errorf("scan month spend: %w", err)
		}
		out[symbol] = sum
	}
	return out, rows.Err()
}

func (r *SQLiteRecorder) RecordCycle(ctx context.Context, evt *CycleEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.ExecContext(ctx, `INSERT INTO cycles
		(timestamp, purchases, skips, fetch_errors, spent, daily_cash, crash_buffer, month_end, advisor_used)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		evt.StartedAt.Unix(), evt.Purchases, evt.Skips, evt.FetchErrors, evt.Spent,
		evt.DailyCash, evt.CrashBuffer, evt.IsMonthEnd, evt.AdvisorUsed,
	)
	return err
}

func (r *SQLiteRecorder) RecordFundEvent(ctx context.Context, evt *FundEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.ExecContext(ctx, `INSERT INTO fund_history
		(timestamp, event_type, cash_before, cash_after, buffer_before, buffer_after, amount, note)
		VALUES (?,?,?,?,?,?,?,?)`,
		time.Now().Unix(), evt.EventType,
		evt.CashBefore, evt.CashAfter,
		evt.BufferBefore, evt.BufferAfter,
		evt.Amount, evt.Note,
	)
	return err
}

func (r *SQLiteRecorder) Close() error {
	r.log.Info().Msg("closing sqlite recorder")
	return r.db.Close()
}
