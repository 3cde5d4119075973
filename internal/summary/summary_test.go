package summary

import (
	"testing"
	"time"

	catalogdomain "github.com/smallbiznis/macrolog/internal/catalog/domain"
	"github.com/smallbiznis/macrolog/internal/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	apple = catalogdomain.FoodItem{Name: "Apple", CaloriesPer100g: 52, FatPer100g: 0.2, ProteinPer100g: 0.3, CarbsPer100g: 14}
	rice  = catalogdomain.FoodItem{Name: "Rice", CaloriesPer100g: 130, FatPer100g: 0.3, ProteinPer100g: 2.7, CarbsPer100g: 28}
)

func mustEntry(t *testing.T, food catalogdomain.FoodItem, q float64) ledger.Entry {
	t.Helper()
	e, err := ledger.NewEntry(food, q, time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	return e
}

func TestSummarizeEmpty(t *testing.T) {
	_, ok := Summarize(nil)
	assert.False(t, ok)

	_, ok = Summarize([]ledger.Entry{})
	assert.False(t, ok)
}

func TestSummarizeEqualsFieldWiseSum(t *testing.T) {
	foods := []catalogdomain.FoodItem{apple, rice}
	for n := 1; n <= 12; n++ {
		l := ledger.New()
		var want DailySummary
		for i := 0; i < n; i++ {
			e := mustEntry(t, foods[i%2], float64(10*(i+1)))
			l.Append(e)
			want.Calories += e.Calories
			want.FatG += e.FatG
			want.ProteinG += e.ProteinG
			want.CarbsG += e.CarbsG
		}

		got, ok := Summarize(l.Snapshot())
		require.True(t, ok)
		assert.Equal(t, n, got.Entries)
		assert.InDelta(t, want.Calories, got.Calories, 1e-9)
		assert.InDelta(t, want.FatG, got.FatG, 1e-9)
		assert.InDelta(t, want.ProteinG, got.ProteinG, 1e-9)
		assert.InDelta(t, want.CarbsG, got.CarbsG, 1e-9)
	}
}

func TestSummarizeAfterClear(t *testing.T) {
	l := ledger.New(mustEntry(t, apple, 150), mustEntry(t, rice, 200))
	l.Clear()

	_, ok := Summarize(l.Snapshot())
	assert.False(t, ok)
}

func TestSummarizeSingleApple(t *testing.T) {
	got, ok := Summarize([]ledger.Entry{mustEntry(t, apple, 150)})
	require.True(t, ok)
	assert.InDelta(t, 78.0, got.Calories, 1e-9)
	assert.InDelta(t, 0.3, got.FatG, 1e-9)
	assert.InDelta(t, 0.45, got.ProteinG, 1e-9)
	assert.InDelta(t, 21.0, got.CarbsG, 1e-9)
}

func TestSummarizeAppleAndRice(t *testing.T) {
	got, ok := Summarize([]ledger.Entry{mustEntry(t, apple, 150), mustEntry(t, rice, 200)})
	require.True(t, ok)
	assert.InDelta(t, 338.0, got.Calories, 1e-9)
	assert.InDelta(t, 0.9, got.FatG, 1e-9)
	assert.InDelta(t, 5.85, got.ProteinG, 1e-9)
	assert.InDelta(t, 77.0, got.CarbsG, 1e-9)
}

func TestCompare(t *testing.T) {
	s := DailySummary{Calories: 338, ProteinG: 5.85, FatG: 0.9, CarbsG: 77}
	p := Compare(s, Goals{Calories: 2000, Protein: 150})

	require.NotNil(t, p.Calories.Delta)
	assert.InDelta(t, -1662.0, *p.Calories.Delta, 1e-9)
	assert.InDelta(t, 2000.0, *p.Calories.Goal, 1e-9)
	require.NotNil(t, p.Protein.Delta)
	assert.InDelta(t, -144.15, *p.Protein.Delta, 1e-9)

	assert.Nil(t, p.Fat.Goal)
	assert.Nil(t, p.Fat.Delta)
	assert.InDelta(t, 0.9, p.Fat.Total, 1e-9)
	assert.Nil(t, p.Carbs.Delta)
}
