package storage

// sqlite.go persiste el journal de la simulación: trades, resoluciones y
// resúmenes diarios. El engine nunca lee de aquí durante el loop; SQLite
// es solo el histórico para análisis posterior.

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/alejandrodnm/mirrorbot/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS paper_trades (
    id           TEXT PRIMARY KEY,
    market_key   TEXT NOT NULL,
    market_name  TEXT,
    outcome      TEXT NOT NULL,
    shares       REAL NOT NULL,
    price        REAL NOT NULL,
    notional     REAL NOT NULL,
    running_avg  REAL NOT NULL DEFAULT 0,
    phase        TEXT NOT NULL,
    traded_at    DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS resolved_markets (
    id               INTEGER PRIMARY KEY AUTOINCREMENT,
    market_key       TEXT NOT NULL,
    market_name      TEXT,
    invested_up      REAL NOT NULL DEFAULT 0,
    invested_down    REAL NOT NULL DEFAULT 0,
    shares_up        REAL NOT NULL DEFAULT 0,
    shares_down      REAL NOT NULL DEFAULT 0,
    final_price_up   REAL NOT NULL DEFAULT 0,
    final_price_down REAL NOT NULL DEFAULT 0,
    winner           TEXT NOT NULL,
    payout           REAL NOT NULL DEFAULT 0,
    realized_pnl     REAL NOT NULL DEFAULT 0,
    realized_pnl_pct REAL NOT NULL DEFAULT 0,
    voided           INTEGER NOT NULL DEFAULT 0,
    resolved_at      DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS daily_summaries (
    date              DATE PRIMARY KEY,
    trades_placed     INTEGER NOT NULL DEFAULT 0,
    build_trades      INTEGER NOT NULL DEFAULT 0,
    arb_trades        INTEGER NOT NULL DEFAULT 0,
    open_markets      INTEGER NOT NULL DEFAULT 0,
    markets_resolved  INTEGER NOT NULL DEFAULT 0,
    invested          REAL NOT NULL DEFAULT 0,
    available_capital REAL NOT NULL DEFAULT 0,
    realized_pnl      REAL NOT NULL DEFAULT 0,
    win_rate          REAL NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_trades_key      ON paper_trades(market_key);
CREATE INDEX IF NOT EXISTS idx_trades_at       ON paper_trades(traded_at DESC);
CREATE INDEX IF NOT EXISTS idx_resolved_key    ON resolved_markets(market_key);
CREATE INDEX IF NOT EXISTS idx_resolved_at     ON resolved_markets(resolved_at DESC);
`

// SQLiteStorage implementa ports.TradeSink y ports.SummaryStorage
// usando SQLite (pure Go, sin CGo).
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage abre (o crea) la base de datos en la ruta dada
// y aplica el schema.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStorage: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	s := &SQLiteStorage{db: db}
	if err := s.ApplySchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// ApplySchema crea las tablas si no existen.
func (s *SQLiteStorage) ApplySchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("storage.ApplySchema: %w", err)
	}
	return nil
}

// Close cierra la conexión.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// RecordTrade inserta un trade simulado.
func (s *SQLiteStorage) RecordTrade(ctx context.Context, t domain.PaperTrade) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO paper_trades (id, market_key, market_name, outcome, shares,
		                          price, notional, running_avg, phase, traded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, string(t.Key), t.MarketName, string(t.Outcome), t.Shares,
		t.Price, t.Notional, t.RunningAvg, string(t.Phase),
		t.Timestamp.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("storage.RecordTrade: %w", err)
	}
	return nil
}

// RecordResolution inserta el snapshot de un mercado resuelto.
func (s *SQLiteStorage) RecordResolution(ctx context.Context, r domain.ResolvedMarket) error {
	voided := 0
	if r.Voided {
		voided = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO resolved_markets (market_key, market_name, invested_up, invested_down,
		                              shares_up, shares_down, final_price_up, final_price_down,
		                              winner, payout, realized_pnl, realized_pnl_pct,
		                              voided, resolved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(r.Key), r.Name, r.InvestedUp, r.InvestedDown,
		r.SharesUp, r.SharesDown, r.FinalPriceUp, r.FinalPriceDown,
		string(r.Winner), r.Payout, r.RealizedPnL, r.RealizedPnLPct,
		voided, r.ResolvedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("storage.RecordResolution: %w", err)
	}
	return nil
}

// SaveDailySummary hace upsert del resumen del día.
func (s *SQLiteStorage) SaveDailySummary(ctx context.Context, d domain.DailySummary) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO daily_summaries (date, trades_placed, build_trades, arb_trades,
		                             open_markets, markets_resolved, invested,
		                             available_capital, realized_pnl, win_rate)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
		    trades_placed     = excluded.trades_placed,
		    build_trades      = excluded.build_trades,
		    arb_trades        = excluded.arb_trades,
		    open_markets      = excluded.open_markets,
		    markets_resolved  = excluded.markets_resolved,
		    invested          = excluded.invested,
		    available_capital = excluded.available_capital,
		    realized_pnl      = excluded.realized_pnl,
		    win_rate          = excluded.win_rate`,
		d.Date.UTC().Format("2006-01-02"), d.TradesPlaced, d.BuildTrades, d.ArbTrades,
		d.OpenMarkets, d.MarketsResolved, d.Invested,
		d.AvailableCapital, d.RealizedPnL, d.WinRate,
	)
	if err != nil {
		return fmt.Errorf("storage.SaveDailySummary: %w", err)
	}
	return nil
}

// GetDailySummaries devuelve los resúmenes en orden cronológico.
func (s *SQLiteStorage) GetDailySummaries(ctx context.Context) ([]domain.DailySummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT date, trades_placed, build_trades, arb_trades, open_markets,
		       markets_resolved, invested, available_capital, realized_pnl, win_rate
		FROM daily_summaries ORDER BY date ASC`)
	if err != nil {
		return nil, fmt.Errorf("storage.GetDailySummaries: %w", err)
	}
	defer rows.Close()

	var out []domain.DailySummary
	for rows.Next() {
		var d domain.DailySummary
		var dateStr string
		if err := rows.Scan(
			&dateStr, &d.TradesPlaced, &d.BuildTrades, &d.ArbTrades, &d.OpenMarkets,
			&d.MarketsResolved, &d.Invested, &d.AvailableCapital, &d.RealizedPnL, &d.WinRate,
		); err != nil {
			return nil, fmt.Errorf("storage.GetDailySummaries: scan: %w", err)
		}
		if len(dateStr) > 10 {
			dateStr = dateStr[:10]
		}
		d.Date, _ = time.Parse("2006-01-02", dateStr)
		out = append(out, d)
	}
	return out, rows.Err()
}

// GetTrades devuelve los trades de un mercado en orden de ejecución.
// Con key vacía devuelve todos los trades.
func (s *SQLiteStorage) GetTrades(ctx context.Context, key domain.MarketKey) ([]domain.PaperTrade, error) {
	query := `
		SELECT id, market_key, market_name, outcome, shares, price,
		       notional, running_avg, phase, traded_at
		FROM paper_trades`
	var args []any
	if key != "" {
		query += ` WHERE market_key = ?`
		args = append(args, string(key))
	}
	query += ` ORDER BY traded_at ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage.GetTrades: %w", err)
	}
	defer rows.Close()

	var out []domain.PaperTrade
	for rows.Next() {
		var t domain.PaperTrade
		var keyStr, outcome, phase, tradedAt string
		if err := rows.Scan(
			&t.ID, &keyStr, &t.MarketName, &outcome, &t.Shares, &t.Price,
			&t.Notional, &t.RunningAvg, &phase, &tradedAt,
		); err != nil {
			return nil, fmt.Errorf("storage.GetTrades: scan: %w", err)
		}
		t.Key = domain.MarketKey(keyStr)
		t.Outcome = domain.Outcome(outcome)
		t.Phase = domain.TradePhase(phase)
		t.Timestamp, _ = time.Parse(time.RFC3339, tradedAt)
		out = append(out, t)
	}
	return out, rows.Err()
}

// GetResolutions devuelve los mercados resueltos, más recientes primero.
func (s *SQLiteStorage) GetResolutions(ctx context.Context) ([]domain.ResolvedMarket, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT market_key, market_name, invested_up, invested_down, shares_up,
		       shares_down, final_price_up, final_price_down, winner, payout,
		       realized_pnl, realized_pnl_pct, voided, resolved_at
		FROM resolved_markets ORDER BY resolved_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("storage.GetResolutions: %w", err)
	}
	defer rows.Close()

	var out []domain.ResolvedMarket
	for rows.Next() {
		var r domain.ResolvedMarket
		var keyStr, winner, resolvedAt string
		var voided int
		if err := rows.Scan(
			&keyStr, &r.Name, &r.InvestedUp, &r.InvestedDown, &r.SharesUp,
			&r.SharesDown, &r.FinalPriceUp, &r.FinalPriceDown, &winner, &r.Payout,
			&r.RealizedPnL, &r.RealizedPnLPct, &voided, &resolvedAt,
		); err != nil {
			return nil, fmt.Errorf("storage.GetResolutions: scan: %w", err)
		}
		r.Key = domain.MarketKey(keyStr)
		r.Winner = domain.Outcome(winner)
		r.Voided = voided != 0
		r.ResolvedAt, _ = time.Parse(time.RFC3339, resolvedAt)
		out = append(out, r)
	}
	return out, rows.Err()
}
