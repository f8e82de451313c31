package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"stockdash/pkg/marketdata"
)

// SeriesRecord is the Parquet schema for an exported price series.
type SeriesRecord struct {
	Symbol    string   `parquet:"symbol"`
	Period    string   `parquet:"period"`
	Timestamp int64    `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Open      float64  `parquet:"open"`
	High      float64  `parquet:"high"`
	Low       float64  `parquet:"low"`
	Close     float64  `parquet:"close"`
	Volume    int64    `parquet:"volume"`
	RSI       *float64 `parquet:"rsi"`
	SMA20     *float64 `parquet:"sma_20"`
	SMA50     *float64 `parquet:"sma_50"`
}

// Series is a price series read back from an export file.
type Series struct {
	Symbol string
	Period marketdata.Period
	Points []marketdata.PricePoint
}

// ExportPath returns the file name for an export of symbol/period taken at t.
// Layout: <dir>/<SYMBOL>_<period>_<YYYYMMDD-HHMMSS>.parquet
func ExportPath(dir, symbol string, period marketdata.Period, t time.Time) string {
	name := fmt.Sprintf("%s_%s_%s.parquet",
		strings.ToUpper(symbol), period, t.Format("20060102-150405"))
	return filepath.Join(dir, name)
}

// ExportSeries writes points to a Parquet file at path, creating parent
// directories as needed. Points are written in time order.
func ExportSeries(path, symbol string, period marketdata.Period, points []marketdata.PricePoint) error {
	sym := marketdata.NormalizeSymbol(symbol)
	if sym == "" {
		return &marketdata.ValidationError{Field: "symbol", Value: symbol, Reason: "empty"}
	}
	if len(points) == 0 {
		return fmt.Errorf("exporting %s %s: empty series", sym, period)
	}

	records := make([]SeriesRecord, len(points))
	for i, p := range points {
		records[i] = SeriesRecord{
			Symbol:    sym,
			Period:    string(period),
			Timestamp: p.Time.UnixMilli(),
			Open:      p.Open,
			High:      p.High,
			Low:       p.Low,
			Close:     p.Close,
			Volume:    p.Volume,
			RSI:       p.Indicators.RSI,
			SMA20:     p.Indicators.SMA20,
			SMA50:     p.Indicators.SMA50,
		}
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp < records[j].Timestamp
	})

	if err := writeParquetFile(path, records); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// ReadSeries reads an export file written by ExportSeries.
func ReadSeries(path string) (*Series, error) {
	records, err := readParquetFile[SeriesRecord](path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	s := &Series{Points: make([]marketdata.PricePoint, len(records))}
	for i, r := range records {
		if i == 0 {
			s.Symbol = r.Symbol
			s.Period = marketdata.Period(r.Period)
		}
		s.Points[i] = marketdata.PricePoint{
			Time:   time.UnixMilli(r.Timestamp).UTC(),
			Open:   r.Open,
			High:   r.High,
			Low:    r.Low,
			Close:  r.Close,
			Volume: r.Volume,
			Indicators: marketdata.Indicators{
				RSI:   r.RSI,
				SMA20: r.SMA20,
				SMA50: r.SMA50,
			},
		}
	}
	return s, nil
}

// ---------------------------------------------------------------------------
// Parquet file helpers
// ---------------------------------------------------------------------------

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func readParquetFile[T any](path string) ([]T, error) {
	rows, err := parquet.ReadFile[T](path)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
