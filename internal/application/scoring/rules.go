package scoring

import (
	"context"
	"math"
)

const (
	SourceML    = "ml"
	SourceRules = "rules"
)

// RuleBased is the deterministic scorer used when the ML service cannot answer.
type RuleBased struct{}

func (RuleBased) Score(_ context.Context, d Data) (*Result, error) {
	score := 50.0
	score += d.RenewableEnergyPct / 100 * 25
	score += d.WasteRecycledPct / 100 * 20
	if d.EmissionsCO2 > 0 {
		score -= math.Min(d.EmissionsCO2/10000, 1) * 30
	}
	if d.EnergyConsumption > 0 && d.RenewableEnergyPct > 50 {
		score += 15
	}
	if d.WaterUsage > 0 && d.WaterUsage < 5000 {
		score += 10
	}
	score = math.Max(0, math.Min(100, score))

	return &Result{
		Score:  math.Round(score*100) / 100,
		Source: SourceRules,
		Explanation: map[string]interface{}{
			"method": "rule_based_fallback",
			"top_features": map[string]interface{}{
				"renewable_energy_pct": map[string]interface{}{"value": d.RenewableEnergyPct, "impact": "positive"},
				"waste_recycled_pct":   map[string]interface{}{"value": d.WasteRecycledPct, "impact": "positive"},
				"emissions_co2":        map[string]interface{}{"value": d.EmissionsCO2, "impact": "negative"},
			},
			"recommendations": recommendations(d, score),
		},
	}, nil
}

func recommendations(d Data, score float64) []string {
	out := []string{}
	if d.RenewableEnergyPct < 50 {
		out = append(out, "Increase renewable energy usage above 50%")
	}
	if d.WasteRecycledPct < 60 {
		out = append(out, "Improve waste recycling rate to at least 60%")
	}
	if d.EmissionsCO2 > 5000 {
		out = append(out, "Implement emission reduction strategies")
	}
	if score < 70 {
		out = append(out, "Consider carbon offset programs")
	}
	return out
}
