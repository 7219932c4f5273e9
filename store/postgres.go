package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/use-agent/pricewatch/models"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS tracked_items (
    row_idx          INTEGER PRIMARY KEY,
    label            TEXT NOT NULL DEFAULT '',
    url              TEXT NOT NULL DEFAULT '',
    interval_minutes TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS snapshots (
    row_idx          INTEGER PRIMARY KEY,
    observed_at      TEXT NOT NULL DEFAULT '',
    label            TEXT NOT NULL DEFAULT '',
    title            TEXT NOT NULL DEFAULT '',
    price            TEXT NOT NULL DEFAULT '',
    url              TEXT NOT NULL DEFAULT '',
    seller_quantity  TEXT NOT NULL DEFAULT '',
    brand            TEXT NOT NULL DEFAULT '',
    offer_count      TEXT NOT NULL DEFAULT ''
);
`

// PostgresStore backs the monitor with a shared database, for
// deployments where several processes watch disjoint item lists.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects, pings with bounded retries, and ensures the
// schema. The DSN is any libpq-style connection string.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse dsn: %w", err)
	}
	cfg.MaxConns = 4

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}

	for i := 0; i < 5; i++ {
		if err = pool.Ping(ctx); err == nil {
			break
		}
		select {
		case <-time.After(2 * time.Second):
		case <-ctx.Done():
			pool.Close()
			return nil, ctx.Err()
		}
	}
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: init schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Items(ctx context.Context) ([]models.TrackedItem, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT row_idx, label, url, interval_minutes FROM tracked_items ORDER BY row_idx`)
	if err != nil {
		return nil, fmt.Errorf("postgres: read items: %w", err)
	}
	defer rows.Close()

	var items []models.TrackedItem
	for rows.Next() {
		var (
			idx                  int
			label, url, interval string
		)
		if err := rows.Scan(&idx, &label, &url, &interval); err != nil {
			return nil, fmt.Errorf("postgres: scan item: %w", err)
		}
		items = append(items, models.TrackedItem{
			Label:    label,
			URL:      url,
			Interval: models.ParseInterval(interval),
			Row:      idx,
		})
	}
	return items, rows.Err()
}

func (s *PostgresStore) Cell(ctx context.Context, row, col int) (string, error) {
	name, err := columnName(col)
	if err != nil {
		return "", err
	}
	var v string
	err = s.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM snapshots WHERE row_idx = $1`, name), row).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("postgres: read cell r%dc%d: %w", row, col, err)
	}
	return v, nil
}

func (s *PostgresStore) WriteRow(ctx context.Context, row int, r models.Row) error {
	if row < 2 {
		return fmt.Errorf("postgres: row %d is reserved for the header", row)
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO snapshots
			(row_idx, observed_at, label, title, price, url, seller_quantity, brand, offer_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (row_idx) DO UPDATE SET
			observed_at     = excluded.observed_at,
			label           = excluded.label,
			title           = excluded.title,
			price           = excluded.price,
			url             = excluded.url,
			seller_quantity = excluded.seller_quantity,
			brand           = excluded.brand,
			offer_count     = excluded.offer_count`,
		row, r[0], r[1], r[2], r[3], r[4], r[5], r[6], r[7])
	if err != nil {
		return fmt.Errorf("postgres: write row %d: %w", row, err)
	}
	return nil
}

func (s *PostgresStore) PutItem(ctx context.Context, row int, label, url, intervalMinutes string) error {
	if row < 2 {
		return fmt.Errorf("postgres: row %d is reserved for the header", row)
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO tracked_items (row_idx, label, url, interval_minutes)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (row_idx) DO UPDATE SET
			label            = excluded.label,
			url              = excluded.url,
			interval_minutes = excluded.interval_minutes`,
		row, label, url, intervalMinutes)
	if err != nil {
		return fmt.Errorf("postgres: put item %d: %w", row, err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
