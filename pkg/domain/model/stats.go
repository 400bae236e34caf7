package model

import (
	"math"

	"github.com/secmon-lab/riskmatrix/pkg/domain/types"
)

// RegisterStats summarizes a risk collection for the dashboard header
type RegisterStats struct {
	Total        int     `json:"total"`
	HighCritical int     `json:"high_critical"`
	Critical     int     `json:"critical"`
	AverageScore float64 `json:"average_score"`
}

// CalculateStats counts risks by severity and averages the score, rounded to one decimal.
func CalculateStats(risks []*Risk) RegisterStats {
	var stats RegisterStats
	sum := 0
	for _, r := range risks {
		if r == nil {
			continue
		}
		stats.Total++
		sum += r.Score
		switch r.Level {
		case types.RiskLevelCritical:
			stats.Critical++
			stats.HighCritical++
		case types.RiskLevelHigh:
			stats.HighCritical++
		}
	}
	if stats.Total > 0 {
		stats.AverageScore = math.Round(float64(sum)/float64(stats.Total)*10) / 10
	}
	return stats
}
