package domain

// FoodItem is a reference food with nutrient values per 100 grams.
type FoodItem struct {
	Name            string  `json:"name"`
	CaloriesPer100g float64 `json:"calories_per_100g"`
	FatPer100g      float64 `json:"fat_g_per_100g"`
	ProteinPer100g  float64 `json:"protein_g_per_100g"`
	CarbsPer100g    float64 `json:"carbs_g_per_100g"`
}
