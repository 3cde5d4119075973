package service

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/smallbiznis/macrolog/internal/catalog/domain"
)

type column int

const (
	colName column = iota
	colCalories
	colFat
	colProtein
	colCarbs
)

// headerAliases maps normalized header names to catalog columns. Both the
// published dataset headers and the short local-file headers are accepted.
var headerAliases = map[string]column{
	"name":             colName,
	"food":             colName,
	"calories":         colCalories,
	"fat (g)":          colFat,
	"fat":              colFat,
	"protein (g)":      colProtein,
	"protein":          colProtein,
	"carbohydrate (g)": colCarbs,
	"carbohydrates":    colCarbs,
	"carbohydrate":     colCarbs,
	"carbs":            colCarbs,
}

var errMissingNameColumn = errors.New("catalog csv has no name column")

type rowError struct {
	line   int
	reason string
}

func (e rowError) Error() string {
	return fmt.Sprintf("line %d: %s", e.line, e.reason)
}

// parseCatalog reads food items from CSV. Rows that violate the catalog
// invariants are skipped and reported, they never fail the whole load.
func parseCatalog(r io.Reader) ([]domain.FoodItem, []rowError, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, errMissingNameColumn
		}
		return nil, nil, err
	}

	index := map[column]int{}
	for i, raw := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(raw, "\ufeff")))
		col, ok := headerAliases[key]
		if !ok {
			continue
		}
		if _, seen := index[col]; !seen {
			index[col] = i
		}
	}
	if _, ok := index[colName]; !ok {
		return nil, nil, errMissingNameColumn
	}

	var (
		items   []domain.FoodItem
		skipped []rowError
		line    = 1
	)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, nil, err
		}

		item, reason := parseRow(record, index)
		if reason != "" {
			skipped = append(skipped, rowError{line: line, reason: reason})
			continue
		}
		items = append(items, item)
	}

	return items, skipped, nil
}

func parseRow(record []string, index map[column]int) (domain.FoodItem, string) {
	name := strings.TrimSpace(cell(record, index, colName))
	if name == "" {
		return domain.FoodItem{}, "empty name"
	}

	values := [4]float64{}
	for i, col := range []column{colCalories, colFat, colProtein, colCarbs} {
		raw := strings.TrimSpace(cell(record, index, col))
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return domain.FoodItem{}, fmt.Sprintf("invalid number %q", raw)
		}
		if v < 0 {
			return domain.FoodItem{}, fmt.Sprintf("negative nutrient %q", raw)
		}
		values[i] = v
	}

	return domain.FoodItem{
		Name:            name,
		CaloriesPer100g: values[0],
		FatPer100g:      values[1],
		ProteinPer100g:  values[2],
		CarbsPer100g:    values[3],
	}, ""
}

func cell(record []string, index map[column]int, col column) string {
	i, ok := index[col]
	if !ok || i >= len(record) {
		return ""
	}
	return record[i]
}
