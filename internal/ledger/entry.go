package ledger

import (
	"errors"
	"math"
	"strings"
	"time"

	catalogdomain "github.com/smallbiznis/macrolog/internal/catalog/domain"
)

var (
	ErrInvalidQuantity = errors.New("invalid_quantity")
	ErrInvalidFood     = errors.New("invalid_food")
)

// Entry is one logged consumption. Nutrient values are derived when the entry
// is created and never recomputed.
type Entry struct {
	Timestamp time.Time `json:"timestamp"`
	FoodName  string    `json:"food_name"`
	QuantityG float64   `json:"quantity_g"`
	Calories  float64   `json:"calories"`
	FatG      float64   `json:"fat_g"`
	ProteinG  float64   `json:"protein_g"`
	CarbsG    float64   `json:"carbs_g"`
}

// NewEntry scales the per-100g values of food to quantity grams.
func NewEntry(food catalogdomain.FoodItem, quantity float64, at time.Time) (Entry, error) {
	if math.IsNaN(quantity) || math.IsInf(quantity, 0) || quantity <= 0 {
		return Entry{}, ErrInvalidQuantity
	}
	name := strings.TrimSpace(food.Name)
	if name == "" {
		return Entry{}, ErrInvalidFood
	}

	return Entry{
		Timestamp: at,
		FoodName:  name,
		QuantityG: quantity,
		Calories:  scale(food.CaloriesPer100g, quantity),
		FatG:      scale(food.FatPer100g, quantity),
		ProteinG:  scale(food.ProteinPer100g, quantity),
		CarbsG:    scale(food.CarbsPer100g, quantity),
	}, nil
}

func scale(per100g, quantity float64) float64 {
	return per100g * quantity / 100
}
