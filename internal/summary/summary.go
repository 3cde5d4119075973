package summary

import "github.com/smallbiznis/macrolog/internal/ledger"

// DailySummary is the field-wise sum of a ledger.
type DailySummary struct {
	Calories float64 `json:"calories"`
	FatG     float64 `json:"fat_g"`
	ProteinG float64 `json:"protein_g"`
	CarbsG   float64 `json:"carbs_g"`
	Entries  int     `json:"entries"`
}

// Goals are daily targets. A value <= 0 means the goal is not set.
type Goals struct {
	Calories float64 `json:"calorie_goal"`
	Protein  float64 `json:"protein_goal"`
	Fat      float64 `json:"fat_goal"`
	Carbs    float64 `json:"carbs_goal"`
}

// Macro is one nutrient compared against its goal.
type Macro struct {
	Total float64  `json:"total"`
	Goal  *float64 `json:"goal,omitempty"`
	Delta *float64 `json:"delta,omitempty"`
}

type Progress struct {
	Calories Macro `json:"calories"`
	Protein  Macro `json:"protein"`
	Fat      Macro `json:"fat"`
	Carbs    Macro `json:"carbs"`
}

// Summarize sums entries. It reports false for an empty ledger so callers can
// tell "nothing logged" from a zero total.
func Summarize(entries []ledger.Entry) (DailySummary, bool) {
	if len(entries) == 0 {
		return DailySummary{}, false
	}

	var out DailySummary
	for _, e := range entries {
		out.Calories += e.Calories
		out.FatG += e.FatG
		out.ProteinG += e.ProteinG
		out.CarbsG += e.CarbsG
	}
	out.Entries = len(entries)
	return out, true
}

func Compare(s DailySummary, goals Goals) Progress {
	return Progress{
		Calories: compare(s.Calories, goals.Calories),
		Protein:  compare(s.ProteinG, goals.Protein),
		Fat:      compare(s.FatG, goals.Fat),
		Carbs:    compare(s.CarbsG, goals.Carbs),
	}
}

func compare(total, goal float64) Macro {
	m := Macro{Total: total}
	if goal <= 0 {
		return m
	}
	delta := total - goal
	m.Goal = &goal
	m.Delta = &delta
	return m
}
