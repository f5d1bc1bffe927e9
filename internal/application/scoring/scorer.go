// Package scoring turns environmental data submissions into carbon scores.
package scoring

import (
	"context"
	"time"

	"csx-backend/internal/infrastructure/metrics"

	"github.com/rs/zerolog/log"
)

// Data is one environmental data submission. Missing figures count as zero.
type Data struct {
	EnergyConsumption  float64 `json:"energy_consumption" validate:"gte=0"`
	RenewableEnergyPct float64 `json:"renewable_energy_pct" validate:"gte=0,lte=100"`
	WasteRecycledPct   float64 `json:"waste_recycled_pct" validate:"gte=0,lte=100"`
	EmissionsCO2       float64 `json:"emissions_co2" validate:"gte=0"`
	WaterUsage         float64 `json:"water_usage" validate:"gte=0"`
}

// Result is a raw 0-100 score. Category and rounding are applied by the Service.
type Result struct {
	Score       float64                `json:"score"`
	Explanation map[string]interface{} `json:"explanation,omitempty"`
	Source      string                 `json:"-"`
}

// Scorer computes a score for one submission.
type Scorer interface {
	Score(ctx context.Context, data Data) (*Result, error)
}

// FallbackScorer tries Primary and uses Fallback whenever Primary fails.
type FallbackScorer struct {
	Primary  Scorer
	Fallback Scorer
}

func (f *FallbackScorer) Score(ctx context.Context, data Data) (*Result, error) {
	if f.Primary != nil {
		start := time.Now()
		res, err := f.Primary.Score(ctx, data)
		if err == nil {
			metrics.ScoringDuration.WithLabelValues(res.Source).Observe(time.Since(start).Seconds())
			return res, nil
		}
		log.Warn().Err(err).Msg("ML scoring unavailable, using rule-based fallback")
	}
	start := time.Now()
	res, err := f.Fallback.Score(ctx, data)
	if err != nil {
		return nil, err
	}
	metrics.ScoringDuration.WithLabelValues(res.Source).Observe(time.Since(start).Seconds())
	return res, nil
}
