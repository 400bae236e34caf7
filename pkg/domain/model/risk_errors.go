package model

import "github.com/m-mizutani/goerr/v2"

// Risk assessment errors
var (
	ErrInvalidRange = goerr.New("likelihood and impact must be between 1 and 5")
	ErrCorruptRisk  = goerr.New("stored risk has out-of-domain likelihood or impact")
	ErrValidation   = goerr.New("risk input validation failed")
	ErrEmptyExport  = goerr.New("no data to export")
	// ErrNotFound is wrapped by every repository backend when a risk does not exist
	ErrNotFound = goerr.New("not found")
)

// Context keys for error values
const (
	LikelihoodKey = "likelihood"
	ImpactKey     = "impact"
	ScoreKey      = "score"
	RiskIDKey     = "risk_id"
	FieldKey      = "field"
)
