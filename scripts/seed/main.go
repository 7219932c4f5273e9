// Seeder: loads a CSV of listings into the configured store's input table.
//
// Usage:
//
//	go run scripts/seed/main.go -csv listings.csv
//
// The CSV columns are label,url,interval_minutes (header row optional).
// Listings are written at stable row indices: the first data line owns
// row 2, the second row 3, and so on. Blank lines keep their row so
// re-seeding never shifts existing snapshots.
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/use-agent/pricewatch/config"
	"github.com/use-agent/pricewatch/store"
)

// CLI flags
var (
	csvPath = flag.String("csv", "seed.csv", "CSV file of listings to track (label,url,interval_minutes)")
	backend = flag.String("backend", "", "override the configured store backend (sqlite, postgres, csv)")
)

type seedRow struct {
	label    string
	url      string
	interval string
}

func main() {
	flag.Parse()

	cfg := config.Load()
	if *backend != "" {
		cfg.Store.Backend = *backend
	}

	fmt.Println("=== Pricewatch Seeder ===")
	fmt.Printf("Input:    %s\n", *csvPath)
	fmt.Printf("Backend:  %s\n", cfg.Store.Backend)
	fmt.Println()

	rows, err := readSeedFile(*csvPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if len(rows) == 0 {
		fmt.Fprintln(os.Stderr, "Error: no listings in seed file")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: open store: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	seeder, ok := st.(store.Seeder)
	if !ok {
		fmt.Fprintf(os.Stderr, "Error: backend %q cannot seed items\n", cfg.Store.Backend)
		os.Exit(1)
	}

	var failed int
	for i, r := range rows {
		row := i + 2 // row 1 is the header
		if err := seeder.PutItem(ctx, row, r.label, r.url, r.interval); err != nil {
			fmt.Fprintf(os.Stderr, "  row %d FAILED: %v\n", row, err)
			failed++
			continue
		}
		fmt.Printf("  row %-3d %s  every %s\n", row, describeLabel(r), describeInterval(r))
	}

	fmt.Printf("\nSeeded %d listing(s), %d failed\n", len(rows)-failed, failed)
	if failed > 0 {
		os.Exit(1)
	}
}

// readSeedFile parses the CSV, skipping an optional header line. Lines with
// missing fields are kept as blanks so they still claim their row index.
func readSeedFile(path string) ([]seedRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	var rows []seedRow
	for i, rec := range records {
		if i == 0 && len(rec) > 0 && strings.EqualFold(strings.TrimSpace(rec[0]), "label") {
			continue
		}
		var row seedRow
		if len(rec) > 0 {
			row.label = strings.TrimSpace(rec[0])
		}
		if len(rec) > 1 {
			row.url = strings.TrimSpace(rec[1])
		}
		if len(rec) > 2 {
			row.interval = strings.TrimSpace(rec[2])
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func describeLabel(r seedRow) string {
	if r.label == "" {
		return "(blank)"
	}
	return r.label
}

func describeInterval(r seedRow) string {
	if r.interval == "" {
		return "60m (default)"
	}
	return r.interval + "m"
}
