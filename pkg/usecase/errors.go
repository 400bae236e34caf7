package usecase

import "errors"

// Sentinel errors for use case layer
var (
	ErrRiskNotFound = errors.New("risk not found")
	// ErrInconsistentRisk is returned when a persisted risk disagrees with local scoring
	ErrInconsistentRisk = errors.New("persisted score or level differs from local scoring")
)

// Context keys for error values
const (
	RiskIDKey = "risk_id"
	LevelKey  = "level"
)
