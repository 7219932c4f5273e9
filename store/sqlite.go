package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/use-agent/pricewatch/models"
)

const sqliteSchema = `
PRAGMA journal_mode = WAL;
PRAGMA synchronous = NORMAL;

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

// SQLiteStore is the default backend: a single database file with the
// input table and the output table side by side.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens or creates the database file and ensures the schema.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	// The sqlite driver is file-locked; a single connection avoids
	// SQLITE_BUSY under pooled writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: init schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Items(ctx context.Context) ([]models.TrackedItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT row_idx, label, url, interval_minutes FROM tracked_items ORDER BY row_idx`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: read items: %w", err)
	}
	defer rows.Close()

	var items []models.TrackedItem
	for rows.Next() {
		var (
			idx                  int
			label, url, interval string
		)
		if err := rows.Scan(&idx, &label, &url, &interval); err != nil {
			return nil, fmt.Errorf("sqlite: scan item: %w", err)
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

func (s *SQLiteStore) Cell(ctx context.Context, row, col int) (string, error) {
	name, err := columnName(col)
	if err != nil {
		return "", err
	}
	var v string
	err = s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT %s FROM snapshots WHERE row_idx = ?`, name), row).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("sqlite: read cell r%dc%d: %w", row, col, err)
	}
	return v, nil
}

func (s *SQLiteStore) WriteRow(ctx context.Context, row int, r models.Row) error {
	if row < 2 {
		return fmt.Errorf("sqlite: row %d is reserved for the header", row)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO snapshots
			(row_idx, observed_at, label, title, price, url, seller_quantity, brand, offer_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(row_idx) DO UPDATE SET
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
		return fmt.Errorf("sqlite: write row %d: %w", row, err)
	}
	return nil
}

func (s *SQLiteStore) PutItem(ctx context.Context, row int, label, url, intervalMinutes string) error {
	if row < 2 {
		return fmt.Errorf("sqlite: row %d is reserved for the header", row)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tracked_items (row_idx, label, url, interval_minutes)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(row_idx) DO UPDATE SET
			label            = excluded.label,
			url              = excluded.url,
			interval_minutes = excluded.interval_minutes`,
		row, label, url, intervalMinutes)
	if err != nil {
		return fmt.Errorf("sqlite: put item %d: %w", row, err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
