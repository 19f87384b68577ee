package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/guanacodev/guanaco/internal/history"
	"github.com/guanacodev/guanaco/internal/symbol"
)

// Postgres is a durable candle cache so repeated backtests over the same
// range skip the remote download.
type Postgres struct {
	db *sql.DB
}

// NewPostgres opens a connection pool against connStr and ensures the
// candle schema exists.
func NewPostgres(ctx context.Context, connStr string, maxOpen, maxIdle int) (*Postgres, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening postgres connection: %w", err)
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	p := &Postgres{db: db}
	if err := p.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

// Close releases the underlying connection pool.
func (p *Postgres) Close() error { return p.db.Close() }

func (p *Postgres) ensureSchema(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS candles (
			symbol      TEXT             NOT NULL,
			granularity BIGINT           NOT NULL,
			timestamp   TIMESTAMPTZ      NOT NULL,
			low         DOUBLE PRECISION NOT NULL,
			high        DOUBLE PRECISION NOT NULL,
			open        DOUBLE PRECISION NOT NULL,
			close       DOUBLE PRECISION NOT NULL,
			volume      DOUBLE PRECISION NOT NULL,
			PRIMARY KEY (symbol, granularity, timestamp)
		)`)
	if err != nil {
		return fmt.Errorf("creating candles table: %w", err)
	}
	return nil
}

// SaveCandles upserts buckets in a single transaction.
func (p *Postgres) SaveCandles(ctx context.Context, granularity int64, buckets []history.Bucket) error {
	if len(buckets) == 0 {
		return nil
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	for _, b := range buckets {
		if err := b.Validate(); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("invalid bucket for %s at %s: %w", b.Symbol, b.Time, err)
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO candles (symbol, granularity, timestamp, low, high, open, close, volume)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (symbol, granularity, timestamp) DO UPDATE SET
				low=EXCLUDED.low, high=EXCLUDED.high, open=EXCLUDED.open,
				close=EXCLUDED.close, volume=EXCLUDED.volume`,
			string(b.Symbol), granularity, b.Time.UTC(), b.Low, b.High, b.Open, b.Close, b.Volume)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("upserting bucket for %s at %s: %w", b.Symbol, b.Time, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing candles: %w", err)
	}
	return nil
}

// GetCandles returns cached buckets for sym at the given granularity inside
// [start, end), sorted by ascending time.
func (p *Postgres) GetCandles(ctx context.Context, sym symbol.Symbol, granularity int64, start, end time.Time) ([]history.Bucket, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT timestamp, low, high, open, close, volume
		FROM candles
		WHERE symbol = $1 AND granularity = $2 AND timestamp >= $3 AND timestamp < $4
		ORDER BY timestamp ASC`,
		string(sym), granularity, start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("querying candles for %s: %w", sym, err)
	}
	defer rows.Close()

	var out []history.Bucket
	for rows.Next() {
		var b history.Bucket
		var ts time.Time
		if err := rows.Scan(&ts, &b.Low, &b.High, &b.Open, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("scanning bucket row: %w", err)
		}
		b.Time = ts.UTC()
		b.Symbol = sym
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating bucket rows: %w", err)
	}
	return out, nil
}
