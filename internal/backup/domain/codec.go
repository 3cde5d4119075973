package domain

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/smallbiznis/macrolog/internal/ledger"
)

const TimestampLayout = "2006-01-02 15:04:05"

var csvHeader = []string{
	"Fecha y Hora",
	"Alimento",
	"Cantidad (g)",
	"Calorías",
	"Grasas (g)",
	"Proteínas (g)",
	"Carbohidratos (g)",
}

var ErrMalformedLedger = errors.New("malformed_ledger_file")

// EncodeLedger renders entries as CSV with a header row. An empty slice
// produces a header-only file.
func EncodeLedger(entries []ledger.Entry) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}
	for _, e := range entries {
		if err := w.Write([]string{
			e.Timestamp.Format(TimestampLayout),
			e.FoodName,
			formatFloat(e.QuantityG),
			formatFloat(e.Calories),
			formatFloat(e.FatG),
			formatFloat(e.ProteinG),
			formatFloat(e.CarbsG),
		}); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeLedger parses a file produced by EncodeLedger. Timestamps are read in
// loc since the file carries no zone.
func DecodeLedger(r io.Reader, loc *time.Location) ([]ledger.Entry, error) {
	if loc == nil {
		loc = time.Local
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	var (
		entries []ledger.Entry
		line    int
	)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedLedger, err)
		}
		if line == 1 && isHeader(record) {
			continue
		}
		if len(record) == 1 && strings.TrimSpace(record[0]) == "" {
			continue
		}

		entry, err := decodeRow(record, loc)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedLedger, line, err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func decodeRow(record []string, loc *time.Location) (ledger.Entry, error) {
	if len(record) < len(csvHeader) {
		return ledger.Entry{}, fmt.Errorf("expected %d columns, got %d", len(csvHeader), len(record))
	}

	ts, err := time.ParseInLocation(TimestampLayout, strings.TrimSpace(record[0]), loc)
	if err != nil {
		return ledger.Entry{}, err
	}

	var values [5]float64
	for i := range values {
		v, err := strconv.ParseFloat(strings.TrimSpace(record[i+2]), 64)
		if err != nil {
			return ledger.Entry{}, err
		}
		values[i] = v
	}

	return ledger.Entry{
		Timestamp: ts,
		FoodName:  record[1],
		QuantityG: values[0],
		Calories:  values[1],
		FatG:      values[2],
		ProteinG:  values[3],
		CarbsG:    values[4],
	}, nil
}

func isHeader(record []string) bool {
	if len(record) == 0 {
		return false
	}
	first := strings.TrimSpace(strings.TrimPrefix(record[0], "\ufeff"))
	return strings.EqualFold(first, csvHeader[0])
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
