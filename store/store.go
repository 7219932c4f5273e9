// Package store provides the row-addressable tabular store behind the
// monitor. Row indices are 1-based with row 1 reserved for the header,
// matching the spreadsheet layout the output descends from: the first
// tracked item owns row 2, the second row 3, and so on.
package store

import (
	"context"
	"fmt"

	"github.com/use-agent/pricewatch/config"
	"github.com/use-agent/pricewatch/models"
)

// RowStore is the contract the pipeline drives: read the tracked-item
// list once, read single output cells for due checks, overwrite exactly
// one output row per refresh.
type RowStore interface {
	// Items returns every input row in order with its output row index
	// bound. Invalid rows are returned too, so a blank line in the
	// input never shifts the indices of the rows below it.
	Items(ctx context.Context) ([]models.TrackedItem, error)

	// Cell returns one output cell (1-based row and column), or "" when
	// the row has never been written.
	Cell(ctx context.Context, row, col int) (string, error)

	// WriteRow upserts the full record at exactly one row.
	WriteRow(ctx context.Context, row int, r models.Row) error

	Close() error
}

// Seeder is the optional write side of the input table, used by the
// seeding utility. All bundled backends implement it.
type Seeder interface {
	// PutItem upserts one input row at the given output row index.
	PutItem(ctx context.Context, row int, label, url, intervalMinutes string) error
}

// Open selects a backend from configuration.
func Open(ctx context.Context, cfg config.StoreConfig) (RowStore, error) {
	switch cfg.Backend {
	case "sqlite":
		return OpenSQLite(cfg.SQLitePath)
	case "postgres":
		return OpenPostgres(ctx, cfg.PostgresDSN)
	case "csv":
		return OpenCSV(cfg.CSVInput, cfg.CSVOutput)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// snapshotColumns maps 1-based output columns to their SQL names.
var snapshotColumns = [models.RowWidth]string{
	"observed_at",
	"label",
	"title",
	"price",
	"url",
	"seller_quantity",
	"brand",
	"offer_count",
}

func columnName(col int) (string, error) {
	if col < 1 || col > models.RowWidth {
		return "", fmt.Errorf("column %d out of range 1..%d", col, models.RowWidth)
	}
	return snapshotColumns[col-1], nil
}
