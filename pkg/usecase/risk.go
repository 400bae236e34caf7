package usecase

import (
	"context"
	"errors"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskmatrix/pkg/domain/interfaces"
	"github.com/secmon-lab/riskmatrix/pkg/domain/model"
	"github.com/secmon-lab/riskmatrix/pkg/domain/types"
	"github.com/secmon-lab/riskmatrix/pkg/utils/logging"
)

// Assessment is the derived part of a risk, computed without persisting anything
type Assessment struct {
	Score          int             `json:"score"`
	Level          types.RiskLevel `json:"level"`
	MitigationHint string          `json:"mitigation_hint"`
}

// Dashboard bundles everything the register screen renders from one snapshot
type Dashboard struct {
	Stats    model.RegisterStats
	Matrix   *model.Matrix
	Register []*model.Risk
}

type RiskUseCase struct {
	repo      interfaces.Repository
	policy    types.CorruptRiskPolicy
	listeners []interfaces.RiskListener
}

var _ interfaces.RiskFetcher = &RiskUseCase{}

func NewRiskUseCase(repo interfaces.Repository, policy types.CorruptRiskPolicy, listeners ...interfaces.RiskListener) *RiskUseCase {
	if !policy.IsValid() {
		policy = types.CorruptRiskPolicyExclude
	}
	return &RiskUseCase{
		repo:      repo,
		policy:    policy,
		listeners: listeners,
	}
}

// Preview scores likelihood and impact the same way AssessRisk does, without storing anything.
func (uc *RiskUseCase) Preview(likelihood, impact int) (*Assessment, error) {
	return PreviewAssessment(likelihood, impact)
}

// PreviewAssessment is Preview for callers without a repository, such as the CLI.
func PreviewAssessment(likelihood, impact int) (*Assessment, error) {
	score, err := model.ScoreAndClassify(likelihood, impact)
	if err != nil {
		return nil, err
	}
	return &Assessment{
		Score:          score.Value,
		Level:          score.Level,
		MitigationHint: model.MitigationHint(score.Level),
	}, nil
}

// AssessRisk validates input, scores it and persists the result. Listeners are
// notified only after the risk is stored.
func (uc *RiskUseCase) AssessRisk(ctx context.Context, input model.RiskInput) (*model.Risk, error) {
	risk, err := model.NewRisk(input)
	if err != nil {
		return nil, err
	}

	created, err := uc.repo.Risk().Create(ctx, risk)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create risk")
	}

	logging.From(ctx).Info("risk assessed",
		"id", created.ID,
		"score", created.Score,
		"level", created.Level,
	)

	for _, listener := range uc.listeners {
		listener.OnRiskAssessed(ctx, created.Copy())
	}

	return created, nil
}

// GetRisk returns one stored risk
func (uc *RiskUseCase) GetRisk(ctx context.Context, id int64) (*model.Risk, error) {
	risk, err := uc.repo.Risk().Get(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, goerr.Wrap(ErrRiskNotFound, "risk not found", goerr.V(RiskIDKey, id))
		}
		return nil, goerr.Wrap(err, "failed to get risk", goerr.V(RiskIDKey, id))
	}
	return risk, nil
}

// FetchRisks returns the full stored collection ordered by ID
func (uc *RiskUseCase) FetchRisks(ctx context.Context) ([]*model.Risk, error) {
	risks, err := uc.repo.Risk().List(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list risks")
	}
	return risks, nil
}

// ListRisks returns the register filtered and sorted by view. A level filter is
// pushed down to the repository.
func (uc *RiskUseCase) ListRisks(ctx context.Context, view model.RegisterView) ([]*model.Risk, error) {
	var (
		risks []*model.Risk
		err   error
	)
	if view.Filter == "" || view.Filter == model.LevelFilterAll {
		risks, err = uc.repo.Risk().List(ctx)
	} else {
		risks, err = uc.repo.Risk().ListByLevel(ctx, types.RiskLevel(view.Filter))
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list risks", goerr.V(LevelKey, view.Filter))
	}

	return view.Sort.Apply(risks), nil
}

// Matrix aggregates the whole collection into the heatmap
func (uc *RiskUseCase) Matrix(ctx context.Context) (*model.Matrix, error) {
	risks, err := uc.FetchRisks(ctx)
	if err != nil {
		return nil, err
	}
	return uc.buildMatrix(ctx, risks)
}

// Dashboard derives stats, matrix and register from a single fetch so that all
// three views agree with each other.
func (uc *RiskUseCase) Dashboard(ctx context.Context, view model.RegisterView) (*Dashboard, error) {
	risks, err := uc.FetchRisks(ctx)
	if err != nil {
		return nil, err
	}

	matrix, err := uc.buildMatrix(ctx, risks)
	if err != nil {
		return nil, err
	}

	return NewDashboard(risks, matrix, view), nil
}

// NewDashboard assembles a dashboard from a collection and the matrix already built from it
func NewDashboard(risks []*model.Risk, matrix *model.Matrix, view model.RegisterView) *Dashboard {
	return &Dashboard{
		Stats:    model.CalculateStats(risks),
		Matrix:   matrix,
		Register: view.Apply(risks),
	}
}

func (uc *RiskUseCase) buildMatrix(ctx context.Context, risks []*model.Risk) (*model.Matrix, error) {
	matrix, err := model.BuildMatrix(risks, model.WithCorruptRiskPolicy(uc.policy))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to build matrix")
	}
	if err := matrix.Err(); err != nil {
		logging.From(ctx).Warn("corrupt risks excluded from matrix",
			"count", len(matrix.Excluded),
			"error", err.Error(),
		)
	}
	return matrix, nil
}

// VerifyAssessment compares a persisted risk against a local preview of the same ratings.
func VerifyAssessment(preview *Assessment, risk *model.Risk) error {
	if preview.Score != risk.Score || preview.Level != risk.Level {
		return goerr.Wrap(ErrInconsistentRisk, "assessment mismatch",
			goerr.V(RiskIDKey, risk.ID),
			goerr.V("preview_score", preview.Score),
			goerr.V("preview_level", preview.Level),
			goerr.V("stored_score", risk.Score),
			goerr.V("stored_level", risk.Level))
	}
	if !risk.Consistent() {
		return goerr.Wrap(ErrInconsistentRisk, "stored risk is not consistent with its ratings",
			goerr.V(RiskIDKey, risk.ID))
	}
	return nil
}
