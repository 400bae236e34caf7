package model

import (
	"errors"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskmatrix/pkg/domain/types"
)

// MatrixSize is the number of likelihood (rows) and impact (columns) ratings
const MatrixSize = MaxRating

// Cell is one (likelihood, impact) bucket of the heatmap. Likelihood and Impact are 1-indexed.
type Cell struct {
	Likelihood int
	Impact     int
	Count      int
	// Risks points into the aggregated collection, in input order
	Risks []*Risk
}

// Level classifies the cell by its own likelihood*impact using the scorer's bands
func (c Cell) Level() types.RiskLevel {
	level, err := ClassifyScore(c.Likelihood * c.Impact)
	if err != nil {
		return ""
	}
	return level
}

// Matrix is a 5x5 aggregation of risks. Cells[l-1][i-1] holds likelihood l, impact i.
type Matrix struct {
	Cells [MatrixSize][MatrixSize]Cell
	// Excluded lists corrupt risks left out under CorruptRiskPolicyExclude
	Excluded []*Risk

	errs []error
}

type matrixOptions struct {
	policy types.CorruptRiskPolicy
}

// MatrixOption configures BuildMatrix
type MatrixOption func(*matrixOptions)

// WithCorruptRiskPolicy selects how out-of-domain risks are handled. Default is exclude.
func WithCorruptRiskPolicy(policy types.CorruptRiskPolicy) MatrixOption {
	return func(o *matrixOptions) {
		if policy.IsValid() {
			o.policy = policy
		}
	}
}

// NewMatrix returns an empty matrix with every cell's coordinates set
func NewMatrix() *Matrix {
	m := &Matrix{}
	for l := range MatrixSize {
		for i := range MatrixSize {
			m.Cells[l][i] = Cell{
				Likelihood: l + 1,
				Impact:     i + 1,
				Risks:      []*Risk{},
			}
		}
	}
	return m
}

// BuildMatrix aggregates risks into a fresh matrix, walking the input in order.
func BuildMatrix(risks []*Risk, opts ...MatrixOption) (*Matrix, error) {
	o := matrixOptions{policy: types.CorruptRiskPolicyExclude}
	for _, opt := range opts {
		opt(&o)
	}

	m := NewMatrix()
	for _, risk := range risks {
		if risk == nil {
			continue
		}

		if !InRange(risk.Likelihood) || !InRange(risk.Impact) {
			err := goerr.Wrap(ErrCorruptRisk, "risk cannot be placed in matrix",
				goerr.V(RiskIDKey, risk.ID),
				goerr.V(LikelihoodKey, risk.Likelihood),
				goerr.V(ImpactKey, risk.Impact))
			if o.policy == types.CorruptRiskPolicyReject {
				return nil, err
			}
			m.Excluded = append(m.Excluded, risk)
			m.errs = append(m.errs, err)
			continue
		}

		cell := &m.Cells[risk.Likelihood-1][risk.Impact-1]
		cell.Count++
		cell.Risks = append(cell.Risks, risk)
	}

	return m, nil
}

// Cell returns the cell for 1-indexed likelihood and impact
func (m *Matrix) Cell(likelihood, impact int) (Cell, bool) {
	if !InRange(likelihood) || !InRange(impact) {
		return Cell{}, false
	}
	return m.Cells[likelihood-1][impact-1], true
}

// Total is the number of aggregated (non-excluded) risks
func (m *Matrix) Total() int {
	total := 0
	for l := range MatrixSize {
		for i := range MatrixSize {
			total += m.Cells[l][i].Count
		}
	}
	return total
}

// Err returns the joined ErrCorruptRisk errors of excluded risks, or nil
func (m *Matrix) Err() error {
	return errors.Join(m.errs...)
}
