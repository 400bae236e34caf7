package usecase

import (
	"context"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskmatrix/pkg/domain/model"
)

// ValidationIssue is one stored risk whose derived fields disagree with its ratings
type ValidationIssue struct {
	RiskID  int64
	Message string
}

// ValidateDB rescores every stored risk and reports the ones that do not match.
// It does NOT modify any data.
func (uc *RiskUseCase) ValidateDB(ctx context.Context) ([]ValidationIssue, error) {
	risks, err := uc.repo.Risk().List(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list risks")
	}

	var issues []ValidationIssue
	for _, risk := range risks {
		if risk.Consistent() {
			continue
		}
		issues = append(issues, ValidationIssue{
			RiskID:  risk.ID,
			Message: describeInconsistency(risk),
		})
	}
	return issues, nil
}

func describeInconsistency(risk *model.Risk) string {
	score, err := model.ScoreAndClassify(risk.Likelihood, risk.Impact)
	if err != nil {
		return fmt.Sprintf("ratings out of range: likelihood=%d impact=%d", risk.Likelihood, risk.Impact)
	}
	return fmt.Sprintf("expected score %d (%s), stored %d (%s)", score.Value, score.Level, risk.Score, risk.Level)
}
