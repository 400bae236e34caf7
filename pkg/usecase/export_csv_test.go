package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/riskmatrix/pkg/domain/model"
	"github.com/secmon-lab/riskmatrix/pkg/domain/types"
	"github.com/secmon-lab/riskmatrix/pkg/repository/memory"
	"github.com/secmon-lab/riskmatrix/pkg/usecase"
)

func TestExportUseCase_Export(t *testing.T) {
	fixed := time.Date(2026, 3, 14, 23, 0, 0, 0, time.UTC)

	t.Run("renders filtered view", func(t *testing.T) {
		uc := usecase.New(memory.New(),
			usecase.WithExportPrefix("acme"),
			usecase.WithClock(func() time.Time { return fixed }),
		)
		assess(t, uc, "DB", `SQL "injection"`, 4, 5)
		assess(t, uc, "Wiki", "Defacement", 1, 2)

		result, err := uc.Export.Export(context.Background(), model.RegisterView{
			Filter: model.LevelFilter(types.RiskLevelCritical),
		})
		gt.NoError(t, err).Required()
		gt.Value(t, result.Filename).Equal("acme-2026-03-14.csv")
		gt.Value(t, result.Rows).Equal(1)
		gt.Value(t, string(result.Data)).Equal(
			"ID,Asset,Threat,Likelihood,Impact,Score,Level,Mitigation Hint\n" +
				`"1","DB","SQL ""injection""","4","5","20","Critical","Immediate mitigation; executive-level reporting"`)
	})

	t.Run("default prefix", func(t *testing.T) {
		uc := usecase.New(memory.New(), usecase.WithClock(func() time.Time { return fixed }))
		assess(t, uc, "DB", "SQLi", 1, 1)

		result, err := uc.Export.Export(context.Background(), model.RegisterView{})
		gt.NoError(t, err).Required()
		gt.Value(t, result.Filename).Equal("grc-risks-2026-03-14.csv")
	})

	t.Run("empty view is reported", func(t *testing.T) {
		uc := usecase.New(memory.New())
		_, err := uc.Export.Export(context.Background(), model.RegisterView{})
		gt.Error(t, err).Is(model.ErrEmptyExport)
	})
}
