package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/vitos/portfolio_sim/internal/domain"
)

type SQLiteStore struct {
	db          *sql.DB
	portfolioID string
}

// SnapshotRecord is one row of the snapshot history.
type SnapshotRecord struct {
	ID               int64
	Timestamp        time.Time
	Cash             float64
	RealizedPnL      float64
	TotalCommissions float64
	Reason           string
	Positions        int
}

func NewSQLiteStore(dbPath, portfolioID string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	// One writer; SaveCycle transactions must not interleave.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db, portfolioID: portfolioID}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS portfolio_snapshots (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			portfolio_id TEXT NOT NULL,
			timestamp DATETIME NOT NULL,
			cash REAL NOT NULL,
			realized_pnl REAL NOT NULL DEFAULT 0,
			total_commissions REAL NOT NULL DEFAULT 0,
			reason TEXT NOT NULL,
			created_at DATETIME NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_portfolio ON portfolio_snapshots(portfolio_id, id);`,
		`CREATE TABLE IF NOT EXISTS position_snapshots (
			snapshot_id INTEGER NOT NULL REFERENCES portfolio_snapshots(id),
			ticker TEXT NOT NULL,
			quantity INTEGER NOT NULL CHECK (quantity > 0),
			avg_price REAL NOT NULL,
			stop_loss_pct REAL NOT NULL,
			PRIMARY KEY (snapshot_id, ticker)
		);`,
		`CREATE TABLE IF NOT EXISTS trades (
			id TEXT PRIMARY KEY,
			portfolio_id TEXT NOT NULL,
			snapshot_id INTEGER NOT NULL REFERENCES portfolio_snapshots(id),
			executed_at DATETIME NOT NULL,
			ticker TEXT NOT NULL,
			side TEXT NOT NULL,
			quantity INTEGER NOT NULL,
			price REAL NOT NULL,
			notional REAL NOT NULL,
			commission REAL NOT NULL,
			strategy TEXT,
			reason TEXT,
			notes TEXT,
			metadata TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_trades_portfolio ON trades(portfolio_id, executed_at);`,
		`CREATE TABLE IF NOT EXISTS market_prices (
			ticker TEXT PRIMARY KEY,
			price REAL NOT NULL,
			source TEXT,
			timestamp DATETIME NOT NULL
		);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("failed to exec query %s: %w", q, err)
		}
	}

	return nil
}

// PortfolioRepository Implementation

func (s *SQLiteStore) LoadLatest(ctx context.Context) (*domain.PortfolioState, bool, error) {
	query := `SELECT id, timestamp, cash, realized_pnl, total_commissions FROM portfolio_snapshots
			  WHERE portfolio_id = ? ORDER BY id DESC LIMIT 1`
	row := s.db.QueryRowContext(ctx, query, s.portfolioID)

	var snapshotID int64
	state := &domain.PortfolioState{Positions: make(map[string]*domain.Position)}
	err := row.Scan(&snapshotID, &state.Timestamp, &state.Cash, &state.RealizedPnL, &state.TotalCommissions)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT ticker, quantity, avg_price, stop_loss_pct FROM position_snapshots WHERE snapshot_id = ?`, snapshotID)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()

	for rows.Next() {
		var p domain.Position
		if err := rows.Scan(&p.Ticker, &p.Quantity, &p.AvgPrice, &p.StopLossPct); err != nil {
			return nil, false, err
		}
		state.Positions[p.Ticker] = &p
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}

	return state, true, nil
}

// SaveCycle writes the snapshot, its positions and the cycle's trades in one transaction.
func (s *SQLiteStore) SaveCycle(ctx context.Context, state *domain.PortfolioState, trades []domain.Trade, reason string) error {
	if err := state.Validate(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO portfolio_snapshots (portfolio_id, timestamp, cash, realized_pnl, total_commissions, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.portfolioID, state.Timestamp.UTC(), state.Cash, state.RealizedPnL, state.TotalCommissions, reason, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	snapshotID, err := res.LastInsertId()
	if err != nil {
		return err
	}

	for _, ticker := range state.Tickers() {
		p := state.Positions[ticker]
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO position_snapshots (snapshot_id, ticker, quantity, avg_price, stop_loss_pct) VALUES (?, ?, ?, ?, ?)`,
			snapshotID, ticker, p.Quantity, p.AvgPrice, p.StopLossPct); err != nil {
			return fmt.Errorf("insert position %s: %w", ticker, err)
		}
	}

	for _, t := range trades {
		var meta sql.NullString
		if len(t.Metadata) > 0 {
			b, err := json.Marshal(t.Metadata)
			if err != nil {
				return fmt.Errorf("encode metadata for trade %s: %w", t.ID, err)
			}
			meta = sql.NullString{String: string(b), Valid: true}
		}
		portfolioID := t.PortfolioID
		if portfolioID == "" {
			portfolioID = s.portfolioID
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO trades (id, portfolio_id, snapshot_id, executed_at, ticker, side, quantity, price, notional, commission, strategy, reason, notes, metadata)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			t.ID, portfolioID, snapshotID, t.ExecutedAt.UTC(), t.Ticker, string(t.Side), t.Quantity, t.Price,
			t.Notional(), t.Commission, t.Strategy, t.Reason, t.Notes, meta); err != nil {
			return fmt.Errorf("insert trade %s: %w", t.ID, err)
		}
	}

	return tx.Commit()
}

// ListSnapshots returns the newest snapshots first.
func (s *SQLiteStore) ListSnapshots(ctx context.Context, limit int) ([]SnapshotRecord, error) {
	query := `SELECT s.id, s.timestamp, s.cash, s.realized_pnl, s.total_commissions, s.reason,
			  (SELECT COUNT(*) FROM position_snapshots p WHERE p.snapshot_id = s.id)
			  FROM portfolio_snapshots s WHERE s.portfolio_id = ? ORDER BY s.id DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, s.portfolioID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SnapshotRecord
	for rows.Next() {
		var r SnapshotRecord
		if err := rows.Scan(&r.ID, &r.Timestamp, &r.Cash, &r.RealizedPnL, &r.TotalCommissions, &r.Reason, &r.Positions); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// TradeRepository Implementation

func (s *SQLiteStore) ListTrades(ctx context.Context, limit int) ([]domain.Trade, error) {
	query := `SELECT id, portfolio_id, executed_at, ticker, side, quantity, price, commission, strategy, reason, notes, metadata
			  FROM trades WHERE portfolio_id = ? ORDER BY rowid DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, s.portfolioID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []domain.Trade
	for rows.Next() {
		var (
			t                       domain.Trade
			side                    string
			strategy, reason, notes sql.NullString
			meta                    sql.NullString
		)
		if err := rows.Scan(&t.ID, &t.PortfolioID, &t.ExecutedAt, &t.Ticker, &side, &t.Quantity, &t.Price,
			&t.Commission, &strategy, &reason, &notes, &meta); err != nil {
			return nil, err
		}
		t.Side = domain.Side(side)
		t.Strategy, t.Reason, t.Notes = strategy.String, reason.String, notes.String
		if meta.Valid && meta.String != "" {
			if err := json.Unmarshal([]byte(meta.String), &t.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata for trade %s: %w", t.ID, err)
			}
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// QuoteCacheStore Implementation

func (s *SQLiteStore) LoadPrice(ctx context.Context, ticker string) (*domain.MarketQuote, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT ticker, price, source, timestamp FROM market_prices WHERE ticker = ?`, ticker)

	var (
		q      domain.MarketQuote
		source sql.NullString
	)
	err := row.Scan(&q.Ticker, &q.Price, &source, &q.Timestamp)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	q.Source = source.String
	return &q, true, nil
}

func (s *SQLiteStore) StorePrice(ctx context.Context, quote *domain.MarketQuote) error {
	query := `INSERT INTO market_prices (ticker, price, source, timestamp)
			  VALUES (?, ?, ?, ?)
			  ON CONFLICT(ticker) DO UPDATE SET
			  price=excluded.price,
			  source=excluded.source,
			  timestamp=excluded.timestamp`
	_, err := s.db.ExecContext(ctx, query, quote.Ticker, quote.Price, quote.Source, quote.Timestamp.UTC())
	return err
}
