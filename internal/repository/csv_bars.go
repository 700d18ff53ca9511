package repository

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"LevelScope/internal/domain/models"
	domrepo "LevelScope/internal/domain/repository"
	"LevelScope/pkg/util"
)

var ErrMissingColumn = errors.New("csv: missing column")

// CSVBarProvider serves bars from an OHLCV CSV file. The file is read once.
// A symbol column is optional; when present, rows are filtered by it.
type CSVBarProvider struct {
	path string

	mu     sync.Mutex
	loaded bool
	rows   []csvRow
}

type csvRow struct {
	symbol string
	bar    models.Bar
}

func NewCSVBarProvider(path string) *CSVBarProvider {
	return &CSVBarProvider{path: path}
}

// GetBars ignores tf; the file holds a single resolution.
func (p *CSVBarProvider) GetBars(ctx context.Context, symbol string, from, to time.Time, _ domrepo.Timeframe) ([]models.Bar, error) {
	if err := p.load(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	lo := sort.Search(len(p.rows), func(i int) bool { return !p.rows[i].bar.Time.Before(from) })
	var out []models.Bar
	for _, r := range p.rows[lo:] {
		if r.bar.Time.After(to) {
			break
		}
		if r.symbol != "" && symbol != "" && !strings.EqualFold(r.symbol, symbol) {
			continue
		}
		out = append(out, r.bar)
	}
	return out, nil
}

func (p *CSVBarProvider) load() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.loaded {
		return nil
	}
	f, err := os.Open(p.path)
	if err != nil {
		return fmt.Errorf("open bars csv: %w", err)
	}
	defer f.Close()

	rows, err := readBarsCSV(f)
	if err != nil {
		return fmt.Errorf("%s: %w", p.path, err)
	}
	p.rows = rows
	p.loaded = true
	return nil
}

// readBarsCSV parses a headed CSV with a time column (timestamp, time, time_utc,
// date or ts) and open/high/low/close/volume columns. Rows are sorted by time.
func readBarsCSV(r io.Reader) ([]csvRow, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	colIdx := map[string]int{}
	for idx, col := range header {
		colIdx[strings.ToLower(strings.TrimSpace(col))] = idx
	}

	timeIdx := -1
	for _, name := range []string{"timestamp", "time_utc", "time", "date", "ts", "datetime"} {
		if idx, ok := colIdx[name]; ok {
			timeIdx = idx
			break
		}
	}
	if timeIdx == -1 {
		return nil, fmt.Errorf("%w: timestamp", ErrMissingColumn)
	}
	for _, col := range []string{"open", "high", "low", "close", "volume"} {
		if _, ok := colIdx[col]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}
	symIdx, hasSym := colIdx["symbol"]

	var out []csvRow
	for line := 2; ; line++ {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		ts, ok := util.ParseTime(strings.TrimSpace(rec[timeIdx]))
		if !ok {
			return nil, fmt.Errorf("line %d: bad timestamp %q", line, rec[timeIdx])
		}
		var vals [5]float64
		for i, col := range []string{"open", "high", "low", "close", "volume"} {
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[colIdx[col]]), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d %s: %w", line, col, err)
			}
			vals[i] = v
		}
		row := csvRow{bar: models.Bar{Time: ts, Open: vals[0], High: vals[1], Low: vals[2], Close: vals[3], Volume: vals[4]}}
		if hasSym {
			row.symbol = strings.TrimSpace(rec[symIdx])
		}
		out = append(out, row)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].bar.Time.Before(out[j].bar.Time) })
	return out, nil
}
