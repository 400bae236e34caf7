package interfaces

import (
	"context"

	"github.com/secmon-lab/riskmatrix/pkg/domain/model"
	"github.com/secmon-lab/riskmatrix/pkg/domain/types"
)

// RiskRepository persists assessed risks. Risks are immutable once created.
type RiskRepository interface {
	// Create stores a new risk and returns it with an auto-generated ID
	Create(ctx context.Context, risk *model.Risk) (*model.Risk, error)

	// Get retrieves a risk by ID
	Get(ctx context.Context, id int64) (*model.Risk, error)

	// List retrieves all risks ordered by ID
	List(ctx context.Context) ([]*model.Risk, error)

	// ListByLevel retrieves risks of one level ordered by ID
	ListByLevel(ctx context.Context, level types.RiskLevel) ([]*model.Risk, error)
}

// RiskFetcher returns the full current risk collection
type RiskFetcher interface {
	FetchRisks(ctx context.Context) ([]*model.Risk, error)
}

// RiskListener is told when the risk collection changed. Implementations must not block.
type RiskListener interface {
	OnRiskAssessed(ctx context.Context, risk *model.Risk)
}
