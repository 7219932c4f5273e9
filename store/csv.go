package store

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/use-agent/pricewatch/models"
)

var (
	csvInputHeader  = []string{"label", "url", "interval_minutes"}
	csvOutputHeader = snapshotColumns[:]
)

// CSVStore keeps the input and output tables in two plain CSV files,
// for setups that want the sheets greppable and diffable. WriteRow
// rewrites the output file atomically, so a crash mid-write never
// leaves a torn row.
type CSVStore struct {
	mu     sync.Mutex
	input  string
	output string
}

// OpenCSV wires the store to its two files. Neither needs to exist
// yet; the output file is created on first write.
func OpenCSV(input, output string) (*CSVStore, error) {
	if input == output {
		return nil, fmt.Errorf("csv: input and output must be different files, both are %s", input)
	}
	return &CSVStore{input: input, output: output}, nil
}

func (s *CSVStore) Items(ctx context.Context) ([]models.TrackedItem, error) {
	records, err := readCSV(s.input)
	if err != nil {
		return nil, fmt.Errorf("csv: read items: %w", err)
	}
	if len(records) <= 1 {
		return nil, nil
	}

	items := make([]models.TrackedItem, 0, len(records)-1)
	for i, rec := range records[1:] {
		var label, url, interval string
		if len(rec) > 0 {
			label = rec[0]
		}
		if len(rec) > 1 {
			url = rec[1]
		}
		if len(rec) > 2 {
			interval = rec[2]
		}
		items = append(items, models.TrackedItem{
			Label:    label,
			URL:      url,
			Interval: models.ParseInterval(interval),
			Row:      i + 2, // data starts on line 2, below the header
		})
	}
	return items, nil
}

func (s *CSVStore) Cell(ctx context.Context, row, col int) (string, error) {
	if _, err := columnName(col); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := readCSV(s.output)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("csv: read cell r%dc%d: %w", row, col, err)
	}
	if row < 1 || row > len(records) {
		return "", nil
	}
	rec := records[row-1]
	if col > len(rec) {
		return "", nil
	}
	return rec[col-1], nil
}

func (s *CSVStore) WriteRow(ctx context.Context, row int, r models.Row) error {
	if row < 2 {
		return fmt.Errorf("csv: row %d is reserved for the header", row)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := readCSV(s.output)
	if errors.Is(err, fs.ErrNotExist) {
		records = [][]string{csvOutputHeader}
	} else if err != nil {
		return fmt.Errorf("csv: write row %d: %w", row, err)
	}
	if len(records) == 0 {
		records = [][]string{csvOutputHeader}
	}
	for len(records) < row {
		records = append(records, make([]string, models.RowWidth))
	}
	records[row-1] = r[:]

	if err := writeCSV(s.output, records); err != nil {
		return fmt.Errorf("csv: write row %d: %w", row, err)
	}
	return nil
}

func (s *CSVStore) PutItem(ctx context.Context, row int, label, url, intervalMinutes string) error {
	if row < 2 {
		return fmt.Errorf("csv: row %d is reserved for the header", row)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := readCSV(s.input)
	if errors.Is(err, fs.ErrNotExist) {
		records = [][]string{csvInputHeader}
	} else if err != nil {
		return fmt.Errorf("csv: put item %d: %w", row, err)
	}
	if len(records) == 0 {
		records = [][]string{csvInputHeader}
	}
	for len(records) < row {
		records = append(records, make([]string, len(csvInputHeader)))
	}
	records[row-1] = []string{label, url, intervalMinutes}

	if err := writeCSV(s.input, records); err != nil {
		return fmt.Errorf("csv: put item %d: %w", row, err)
	}
	return nil
}

func (s *CSVStore) Close() error {
	return nil
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	return r.ReadAll()
}

// writeCSV replaces path via temp file and rename.
func writeCSV(path string, records [][]string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".pricewatch-*.csv")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.WriteAll(records); err != nil {
		_ = tmp.Close()
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
