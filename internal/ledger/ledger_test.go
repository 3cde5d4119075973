package ledger

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	catalogdomain "github.com/smallbiznis/macrolog/internal/catalog/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	apple = catalogdomain.FoodItem{Name: "Apple", CaloriesPer100g: 52, FatPer100g: 0.2, ProteinPer100g: 0.3, CarbsPer100g: 14}
	rice  = catalogdomain.FoodItem{Name: "Rice", CaloriesPer100g: 130, FatPer100g: 0.3, ProteinPer100g: 2.7, CarbsPer100g: 28}
	at    = time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)
)

func TestNewEntryScalesPer100g(t *testing.T) {
	foods := []catalogdomain.FoodItem{apple, rice, {Name: "Agua"}}
	quantities := []float64{0.5, 1, 37.5, 100, 150, 1234.56}

	for _, food := range foods {
		for _, q := range quantities {
			entry, err := NewEntry(food, q, at)
			require.NoError(t, err)
			assert.InDelta(t, food.CaloriesPer100g*q/100, entry.Calories, 1e-9)
			assert.InDelta(t, food.FatPer100g*q/100, entry.FatG, 1e-9)
			assert.InDelta(t, food.ProteinPer100g*q/100, entry.ProteinG, 1e-9)
			assert.InDelta(t, food.CarbsPer100g*q/100, entry.CarbsG, 1e-9)
		}
	}
}

func TestNewEntryApple150g(t *testing.T) {
	entry, err := NewEntry(apple, 150, at)
	require.NoError(t, err)

	assert.Equal(t, "Apple", entry.FoodName)
	assert.Equal(t, at, entry.Timestamp)
	assert.InDelta(t, 78.0, entry.Calories, 1e-9)
	assert.InDelta(t, 0.3, entry.FatG, 1e-9)
	assert.InDelta(t, 0.45, entry.ProteinG, 1e-9)
	assert.InDelta(t, 21.0, entry.CarbsG, 1e-9)
}

func TestNewEntryRejectsInvalidQuantity(t *testing.T) {
	for _, q := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		_, err := NewEntry(apple, q, at)
		assert.ErrorIs(t, err, ErrInvalidQuantity, "quantity %v", q)
	}

	_, err := NewEntry(catalogdomain.FoodItem{Name: "  "}, 10, at)
	assert.ErrorIs(t, err, ErrInvalidFood)
}

func TestLedgerAppendKeepsOrderAndDuplicates(t *testing.T) {
	var l Ledger
	first, _ := NewEntry(apple, 150, at)
	second, _ := NewEntry(rice, 200, at.Add(time.Minute))

	l.Append(first)
	l.Append(second)
	l.Append(first)

	snap := l.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, []Entry{first, second, first}, snap)
	assert.Equal(t, 3, l.Len())
}

func TestLedgerSnapshotIsACopy(t *testing.T) {
	entry, _ := NewEntry(apple, 150, at)
	l := New(entry)

	snap := l.Snapshot()
	snap[0].FoodName = "changed"

	assert.Equal(t, "Apple", l.Snapshot()[0].FoodName)
}

func TestLedgerClear(t *testing.T) {
	entry, _ := NewEntry(apple, 150, at)
	l := New(entry, entry)

	l.Clear()

	assert.Equal(t, 0, l.Len())
	assert.Empty(t, l.Snapshot())
}

func TestLedgerJSON(t *testing.T) {
	first, _ := NewEntry(apple, 150, at)
	second, _ := NewEntry(rice, 200, at.Add(time.Hour))
	l := New(first, second)

	data, err := json.Marshal(l)
	require.NoError(t, err)

	var restored Ledger
	require.NoError(t, json.Unmarshal(data, &restored))
	assert.Equal(t, l.Snapshot(), restored.Snapshot())
}
