package usecase

import (
	"bytes"
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskmatrix/pkg/domain/model"
)

// ExportResult is a rendered CSV register and the file name it should be saved as
type ExportResult struct {
	Filename string
	Rows     int
	Data     []byte
}

type ExportUseCase struct {
	risk   *RiskUseCase
	prefix string
	now    func() time.Time
}

func NewExportUseCase(risk *RiskUseCase, prefix string, now func() time.Time) *ExportUseCase {
	if now == nil {
		now = time.Now
	}
	return &ExportUseCase{
		risk:   risk,
		prefix: prefix,
		now:    now,
	}
}

// Export renders the register view as CSV. An empty view returns an error
// wrapping model.ErrEmptyExport.
func (uc *ExportUseCase) Export(ctx context.Context, view model.RegisterView) (*ExportResult, error) {
	risks, err := uc.risk.ListRisks(ctx, view)
	if err != nil {
		return nil, err
	}
	return uc.Render(risks)
}

// Render projects already fetched risks into a CSV export
func (uc *ExportUseCase) Render(risks []*model.Risk) (*ExportResult, error) {
	rows, err := model.ToRows(risks)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := model.WriteCSV(&buf, rows); err != nil {
		return nil, goerr.Wrap(err, "failed to render export")
	}

	return &ExportResult{
		Filename: model.ExportFilename(uc.prefix, uc.now()),
		Rows:     len(rows),
		Data:     buf.Bytes(),
	}, nil
}
