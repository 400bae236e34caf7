package model

import (
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskmatrix/pkg/domain/types"
)

// MaxTextLength limits asset and threat names
const MaxTextLength = 200

// Risk is a recorded (asset, threat, likelihood, impact) observation.
// Score and Level are derived at creation time and never change afterwards.
type Risk struct {
	ID         int64           `json:"id"`
	Asset      string          `json:"asset"`
	Threat     string          `json:"threat"`
	Likelihood int             `json:"likelihood"`
	Impact     int             `json:"impact"`
	Score      int             `json:"score"`
	Level      types.RiskLevel `json:"level"`
	CreatedAt  time.Time       `json:"created_at,omitzero"`
}

// RiskInput is the payload of a new assessment
type RiskInput struct {
	Asset      string `json:"asset"`
	Threat     string `json:"threat"`
	Likelihood int    `json:"likelihood"`
	Impact     int    `json:"impact"`
}

// Validate checks required text fields before the ratings, so that a form with
// empty fields never reaches the scorer.
func (x RiskInput) Validate() error {
	if err := validateText("asset", x.Asset); err != nil {
		return err
	}
	if err := validateText("threat", x.Threat); err != nil {
		return err
	}
	if !InRange(x.Likelihood) {
		return goerr.Wrap(ErrInvalidRange, "invalid likelihood",
			goerr.V(FieldKey, "likelihood"),
			goerr.V(LikelihoodKey, x.Likelihood))
	}
	if !InRange(x.Impact) {
		return goerr.Wrap(ErrInvalidRange, "invalid impact",
			goerr.V(FieldKey, "impact"),
			goerr.V(ImpactKey, x.Impact))
	}
	return nil
}

func validateText(field, value string) error {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return goerr.Wrap(ErrValidation, field+" is required", goerr.V(FieldKey, field))
	}
	if len([]rune(trimmed)) > MaxTextLength {
		return goerr.Wrap(ErrValidation, field+" is too long",
			goerr.V(FieldKey, field),
			goerr.V("max_length", MaxTextLength))
	}
	return nil
}

// Normalize returns a copy of the input with surrounding whitespace removed
func (x RiskInput) Normalize() RiskInput {
	x.Asset = strings.TrimSpace(x.Asset)
	x.Threat = strings.TrimSpace(x.Threat)
	return x
}

// NewRisk validates input and builds an unsaved Risk with its score and level filled in.
func NewRisk(input RiskInput) (*Risk, error) {
	input = input.Normalize()
	if err := input.Validate(); err != nil {
		return nil, err
	}

	score, err := ScoreAndClassify(input.Likelihood, input.Impact)
	if err != nil {
		return nil, err
	}

	return &Risk{
		Asset:      input.Asset,
		Threat:     input.Threat,
		Likelihood: input.Likelihood,
		Impact:     input.Impact,
		Score:      score.Value,
		Level:      score.Level,
	}, nil
}

// Consistent reports whether the stored score and level agree with a fresh scoring of
// the stored likelihood and impact.
func (r *Risk) Consistent() bool {
	score, err := ScoreAndClassify(r.Likelihood, r.Impact)
	if err != nil {
		return false
	}
	return score.Value == r.Score && score.Level == r.Level
}

// Copy returns a shallow copy of the risk
func (r *Risk) Copy() *Risk {
	c := *r
	return &c
}
