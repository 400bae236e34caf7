package repository_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/riskmatrix/pkg/domain/interfaces"
	"github.com/secmon-lab/riskmatrix/pkg/domain/model"
	"github.com/secmon-lab/riskmatrix/pkg/domain/types"
	"github.com/secmon-lab/riskmatrix/pkg/repository/firestore"
	"github.com/secmon-lab/riskmatrix/pkg/repository/memory"
	"github.com/secmon-lab/riskmatrix/pkg/repository/sqlite"
)

func mustNewRisk(t *testing.T, asset, threat string, likelihood, impact int) *model.Risk {
	t.Helper()
	risk, err := model.NewRisk(model.RiskInput{
		Asset:      asset,
		Threat:     threat,
		Likelihood: likelihood,
		Impact:     impact,
	})
	gt.NoError(t, err).Required()
	return risk
}

func runRiskRepositoryTest(t *testing.T, newRepo func(t *testing.T) interfaces.Repository) {
	t.Helper()

	t.Run("Create assigns increasing IDs", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		created1, err := repo.Risk().Create(ctx, mustNewRisk(t, "DB", "SQLi", 4, 5))
		gt.NoError(t, err).Required()
		gt.Value(t, created1.Asset).Equal("DB")
		gt.Value(t, created1.Threat).Equal("SQLi")
		gt.Value(t, created1.Score).Equal(20)
		gt.Value(t, created1.Level).Equal(types.RiskLevelCritical)
		gt.Bool(t, created1.CreatedAt.IsZero()).False()

		created2, err := repo.Risk().Create(ctx, mustNewRisk(t, "Web", "XSS", 2, 3))
		gt.NoError(t, err).Required()
		gt.Bool(t, created2.ID > created1.ID).True()
	})

	t.Run("Get retrieves stored risk", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		created, err := repo.Risk().Create(ctx, mustNewRisk(t, "VPN", "Brute force", 3, 5))
		gt.NoError(t, err).Required()

		got, err := repo.Risk().Get(ctx, created.ID)
		gt.NoError(t, err).Required()
		gt.Value(t, got.ID).Equal(created.ID)
		gt.Value(t, got.Asset).Equal("VPN")
		gt.Value(t, got.Likelihood).Equal(3)
		gt.Value(t, got.Impact).Equal(5)
		gt.Value(t, got.Score).Equal(15)
		gt.Value(t, got.Level).Equal(types.RiskLevelHigh)
		gt.Bool(t, got.CreatedAt.Sub(created.CreatedAt).Abs() < time.Second).True()
		gt.Bool(t, got.Consistent()).True()
	})

	t.Run("Get returns ErrNotFound for unknown ID", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.Risk().Get(context.Background(), 99999)
		gt.Error(t, err).Is(model.ErrNotFound)
	})

	t.Run("List returns every risk ordered by ID", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		risks, err := repo.Risk().List(ctx)
		gt.NoError(t, err).Required()
		gt.Array(t, risks).Length(0)

		var createdIDs []int64
		for i := 1; i <= 3; i++ {
			created, err := repo.Risk().Create(ctx, mustNewRisk(t, fmt.Sprintf("asset-%d", i), "threat", i, i))
			gt.NoError(t, err).Required()
			createdIDs = append(createdIDs, created.ID)
		}

		risks, err = repo.Risk().List(ctx)
		gt.NoError(t, err).Required()
		gt.Array(t, risks).Length(3)
		for i, r := range risks {
			gt.Value(t, r.ID).Equal(createdIDs[i])
		}
	})

	t.Run("ListByLevel returns only matching risks", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		_, err := repo.Risk().Create(ctx, mustNewRisk(t, "DB", "SQLi", 4, 5))
		gt.NoError(t, err).Required()
		low1, err := repo.Risk().Create(ctx, mustNewRisk(t, "Printer", "Toner theft", 1, 1))
		gt.NoError(t, err).Required()
		low2, err := repo.Risk().Create(ctx, mustNewRisk(t, "Wiki", "Defacement", 1, 2))
		gt.NoError(t, err).Required()

		lows, err := repo.Risk().ListByLevel(ctx, types.RiskLevelLow)
		gt.NoError(t, err).Required()
		gt.Array(t, lows).Length(2)
		gt.Value(t, lows[0].ID).Equal(low1.ID)
		gt.Value(t, lows[1].ID).Equal(low2.ID)

		highs, err := repo.Risk().ListByLevel(ctx, types.RiskLevelHigh)
		gt.NoError(t, err).Required()
		gt.Array(t, highs).Length(0)
	})

	t.Run("returned risks are copies", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		created, err := repo.Risk().Create(ctx, mustNewRisk(t, "DB", "SQLi", 1, 1))
		gt.NoError(t, err).Required()
		created.Asset = "changed"

		got, err := repo.Risk().Get(ctx, created.ID)
		gt.NoError(t, err).Required()
		gt.Value(t, got.Asset).Equal("DB")
	})
}

func TestRiskRepository_Memory(t *testing.T) {
	runRiskRepositoryTest(t, func(t *testing.T) interfaces.Repository {
		return memory.New()
	})
}

func TestRiskRepository_SQLite(t *testing.T) {
	runRiskRepositoryTest(t, func(t *testing.T) interfaces.Repository {
		repo, err := sqlite.New(context.Background(), filepath.Join(t.TempDir(), "risks.db"))
		gt.NoError(t, err).Required()
		t.Cleanup(func() {
			gt.NoError(t, repo.Close())
		})
		return repo
	})
}

func TestRiskRepository_Firestore(t *testing.T) {
	projectID := os.Getenv("TEST_FIRESTORE_PROJECT_ID")
	if projectID == "" {
		t.Skip("TEST_FIRESTORE_PROJECT_ID not set")
	}
	databaseID := os.Getenv("TEST_FIRESTORE_DATABASE_ID")

	runRiskRepositoryTest(t, func(t *testing.T) interfaces.Repository {
		prefix := fmt.Sprintf("test_%d", time.Now().UnixNano())
		repo, err := firestore.New(context.Background(), projectID, databaseID, firestore.WithCollectionPrefix(prefix))
		gt.NoError(t, err).Required()
		t.Cleanup(func() {
			_ = repo.Close()
		})
		return repo
	})
}
