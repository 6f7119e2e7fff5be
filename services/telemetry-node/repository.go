package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgQuerier je podmnožina *pgxpool.Pool, kterou úložiště potřebuje.
type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// TimescaleStore ukládá historii do hypertable v TimescaleDB (Postgres).
// Na rozdíl od CSV logu filtruje časové okno přímo v SQL.
type TimescaleStore struct {
	db       pgQuerier
	deviceID string
}

// NewTimescaleStore otevře pool a ověří spojení (Ping).
func NewTimescaleStore(ctx context.Context, url, deviceID string) (*TimescaleStore, *pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, nil, fmt.Errorf("chyba konfigurace DB: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("DB není dostupná: %w", err)
	}
	return &TimescaleStore{db: pool, deviceID: deviceID}, pool, nil
}

const createReadingsTable = `
	CREATE TABLE IF NOT EXISTS sensor_readings (
		time        TIMESTAMPTZ      NOT NULL,
		device_id   TEXT             NOT NULL,
		temperature DOUBLE PRECISION NOT NULL,
		humidity    DOUBLE PRECISION NOT NULL,
		PRIMARY KEY (device_id, time)
	)
`

// EnsureSchema vytvoří tabulku, pokud chybí.
func (t *TimescaleStore) EnsureSchema(ctx context.Context) error {
	if _, err := t.db.Exec(ctx, createReadingsTable); err != nil {
		return fmt.Errorf("create sensor_readings: %w", err)
	}
	return nil
}

func (t *TimescaleStore) Append(ctx context.Context, s Sample) error {
	query := `INSERT INTO sensor_readings (time, device_id, temperature, humidity) VALUES ($1, $2, $3, $4) ON CONFLICT DO NOTHING`

	if _, err := t.db.Exec(ctx, query, s.Timestamp, t.deviceID, s.Temperature, s.Humidity); err != nil {
		return fmt.Errorf("%w: insert do PG: %w", ErrStoreWrite, err)
	}
	return nil
}

func (t *TimescaleStore) Range(ctx context.Context, q HistoryQuery, now time.Time) ([]Sample, error) {
	now = now.UTC().Truncate(time.Second)
	from := now.Add(-q.Window())

	query := `
		SELECT time, temperature, humidity
		FROM sensor_readings
		WHERE device_id = $1 AND time >= $2 AND time <= $3
		ORDER BY time ASC
	`

	rows, err := t.db.Query(ctx, query, t.deviceID, from, now)
	if err != nil {
		return nil, fmt.Errorf("chyba načítání historie: %w", err)
	}
	defer rows.Close()

	samples := make([]Sample, 0, q.Count())
	for rows.Next() {
		var (
			ts        time.Time
			temp, hum float64
		)
		if err := rows.Scan(&ts, &temp, &hum); err != nil {
			return nil, err
		}
		samples = append(samples, NewSample(ts, temp, hum))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return filterWindow(samples, q, now), nil
}

var _ HistoryStore = (*TimescaleStore)(nil)
