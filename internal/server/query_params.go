package server

import (
	"math"
	"strconv"
	"strings"

	"github.com/smallbiznis/macrolog/internal/config"
	"github.com/smallbiznis/macrolog/internal/summary"
)

func parseOptionalFloat(value string) (*float64, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	parsed, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return nil, err
	}
	if math.IsNaN(parsed) || math.IsInf(parsed, 0) {
		return nil, strconv.ErrSyntax
	}
	return &parsed, nil
}

type goalsQuery struct {
	CalorieGoal string `form:"calorie_goal"`
	ProteinGoal string `form:"protein_goal"`
	FatGoal     string `form:"fat_goal"`
	CarbsGoal   string `form:"carbs_goal"`
}

// resolve overlays the query values on the configured defaults.
func (q goalsQuery) resolve(defaults config.GoalsConfig) (summary.Goals, error) {
	goals := summary.Goals{
		Calories: defaults.Calories,
		Protein:  defaults.Protein,
		Fat:      defaults.Fat,
		Carbs:    defaults.Carbs,
	}

	fields := []struct {
		name  string
		raw   string
		value *float64
	}{
		{"calorie_goal", q.CalorieGoal, &goals.Calories},
		{"protein_goal", q.ProteinGoal, &goals.Protein},
		{"fat_goal", q.FatGoal, &goals.Fat},
		{"carbs_goal", q.CarbsGoal, &goals.Carbs},
	}
	for _, f := range fields {
		parsed, err := parseOptionalFloat(f.raw)
		if err != nil || (parsed != nil && *parsed < 0) {
			return summary.Goals{}, newValidationError(f.name, "invalid_"+f.name, "goal must be a non-negative number")
		}
		if parsed != nil {
			*f.value = *parsed
		}
	}
	return goals, nil
}
