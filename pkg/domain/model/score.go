package model

import (
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskmatrix/pkg/domain/types"
)

const (
	// MinRating and MaxRating bound both likelihood and impact
	MinRating = 1
	MaxRating = 5

	MinScore = MinRating * MinRating
	MaxScore = MaxRating * MaxRating
)

// levelBands is the only definition of the score thresholds. Upper bounds are inclusive.
var levelBands = []struct {
	max   int
	level types.RiskLevel
}{
	{max: 5, level: types.RiskLevelLow},
	{max: 12, level: types.RiskLevelMedium},
	{max: 18, level: types.RiskLevelHigh},
	{max: MaxScore, level: types.RiskLevelCritical},
}

// Score is the outcome of scoring a likelihood/impact pair
type Score struct {
	Value int
	Level types.RiskLevel
}

// ScoreAndClassify multiplies likelihood by impact and classifies the product.
// Every caller that needs a score or a level goes through here.
func ScoreAndClassify(likelihood, impact int) (Score, error) {
	if !InRange(likelihood) || !InRange(impact) {
		return Score{}, goerr.Wrap(ErrInvalidRange, "rating out of range",
			goerr.V(LikelihoodKey, likelihood),
			goerr.V(ImpactKey, impact))
	}

	value := likelihood * impact
	level, err := ClassifyScore(value)
	if err != nil {
		return Score{}, err
	}
	return Score{Value: value, Level: level}, nil
}

// ClassifyScore maps a score in 1..25 to its level
func ClassifyScore(score int) (types.RiskLevel, error) {
	if score < MinScore || score > MaxScore {
		return "", goerr.Wrap(ErrInvalidRange, "score out of range", goerr.V(ScoreKey, score))
	}
	for _, band := range levelBands {
		if score <= band.max {
			return band.level, nil
		}
	}
	// unreachable: the last band ends at MaxScore
	return "", goerr.Wrap(ErrInvalidRange, "score not covered by any band", goerr.V(ScoreKey, score))
}

// InRange reports whether a likelihood or impact rating is within 1..5
func InRange(rating int) bool {
	return rating >= MinRating && rating <= MaxRating
}
