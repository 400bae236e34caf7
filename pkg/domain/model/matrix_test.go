package model_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/riskmatrix/pkg/domain/model"
	"github.com/secmon-lab/riskmatrix/pkg/domain/types"
)

func newTestRisk(id int64, likelihood, impact int) *model.Risk {
	r := &model.Risk{ID: id, Asset: "asset", Threat: "threat", Likelihood: likelihood, Impact: impact}
	if score, err := model.ScoreAndClassify(likelihood, impact); err == nil {
		r.Score = score.Value
		r.Level = score.Level
	}
	return r
}

func TestBuildMatrix_Empty(t *testing.T) {
	m, err := model.BuildMatrix(nil)
	gt.NoError(t, err).Required()
	gt.Value(t, m.Total()).Equal(0)

	for l := 0; l < model.MatrixSize; l++ {
		for i := 0; i < model.MatrixSize; i++ {
			cell := m.Cells[l][i]
			gt.Value(t, cell.Count).Equal(0)
			gt.Array(t, cell.Risks).Length(0)
			gt.Value(t, cell.Likelihood).Equal(l + 1)
			gt.Value(t, cell.Impact).Equal(i + 1)
		}
	}
}

func TestBuildMatrix_PlacesRisks(t *testing.T) {
	r1 := newTestRisk(1, 2, 4)
	r2 := newTestRisk(2, 5, 5)
	r3 := newTestRisk(3, 2, 4)
	risks := []*model.Risk{r1, r2, r3}

	m, err := model.BuildMatrix(risks)
	gt.NoError(t, err).Required()
	gt.Value(t, m.Total()).Equal(len(risks))

	cell := m.Cells[1][3]
	gt.Value(t, cell.Count).Equal(2)
	gt.Array(t, cell.Risks).Length(2)
	// back-references, in input order
	gt.Bool(t, cell.Risks[0] == r1).True()
	gt.Bool(t, cell.Risks[1] == r3).True()

	top, ok := m.Cell(5, 5)
	gt.Bool(t, ok).True()
	gt.Value(t, top.Count).Equal(1)
	gt.Bool(t, top.Risks[0] == r2).True()

	_, ok = m.Cell(0, 5)
	gt.Bool(t, ok).False()
}

func TestBuildMatrix_Recomputed(t *testing.T) {
	risks := []*model.Risk{newTestRisk(1, 1, 1)}
	m1, err := model.BuildMatrix(risks)
	gt.NoError(t, err).Required()
	m2, err := model.BuildMatrix(risks)
	gt.NoError(t, err).Required()

	gt.Value(t, m1.Cells[0][0].Count).Equal(1)
	gt.Value(t, m2.Cells[0][0].Count).Equal(1)
}

func TestBuildMatrix_CorruptRisk(t *testing.T) {
	valid := newTestRisk(1, 3, 3)
	corrupt := &model.Risk{ID: 2, Likelihood: 6, Impact: 2, Score: 12, Level: types.RiskLevelMedium}
	risks := []*model.Risk{valid, corrupt, newTestRisk(3, 1, 2)}

	t.Run("exclude keeps remaining risks", func(t *testing.T) {
		m, err := model.BuildMatrix(risks)
		gt.NoError(t, err).Required()
		gt.Value(t, m.Total()).Equal(2)
		gt.Array(t, m.Excluded).Length(1)
		gt.Bool(t, m.Excluded[0] == corrupt).True()
		gt.Error(t, m.Err()).Is(model.ErrCorruptRisk)
	})

	t.Run("reject fails aggregation", func(t *testing.T) {
		m, err := model.BuildMatrix(risks, model.WithCorruptRiskPolicy(types.CorruptRiskPolicyReject))
		gt.Error(t, err).Is(model.ErrCorruptRisk)
		gt.Value(t, m).Nil()
	})

	t.Run("no corrupt risks means no error", func(t *testing.T) {
		m, err := model.BuildMatrix([]*model.Risk{valid})
		gt.NoError(t, err).Required()
		gt.NoError(t, m.Err())
	})
}

func TestCell_LevelMatchesScorer(t *testing.T) {
	m := model.NewMatrix()
	for l := 1; l <= 5; l++ {
		for i := 1; i <= 5; i++ {
			cell, ok := m.Cell(l, i)
			gt.Bool(t, ok).True()

			score, err := model.ScoreAndClassify(l, i)
			gt.NoError(t, err).Required()
			gt.Value(t, cell.Level()).Equal(score.Level)
		}
	}
}
