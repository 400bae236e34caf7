package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskmatrix/pkg/domain/model"
	"github.com/secmon-lab/riskmatrix/pkg/domain/types"
)

const riskColumns = "id, asset, threat, likelihood, impact, score, level, created_at"

type riskRepository struct {
	db *sql.DB
}

func newRiskRepository(db *sql.DB) *riskRepository {
	return &riskRepository{db: db}
}

func (r *riskRepository) Create(ctx context.Context, risk *model.Risk) (*model.Risk, error) {
	created := risk.Copy()
	created.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)

	result, err := r.db.ExecContext(ctx,
		`INSERT INTO risks (asset, threat, likelihood, impact, score, level, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		created.Asset,
		created.Threat,
		created.Likelihood,
		created.Impact,
		created.Score,
		created.Level.String(),
		created.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to insert risk")
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get inserted risk ID")
	}
	created.ID = id

	return created, nil
}

func (r *riskRepository) Get(ctx context.Context, id int64) (*model.Risk, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+riskColumns+" FROM risks WHERE id = ?", id)
	risk, err := scanRisk(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, goerr.Wrap(ErrNotFound, "risk not found", goerr.V("id", id))
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get risk", goerr.V("id", id))
	}
	return risk, nil
}

func (r *riskRepository) List(ctx context.Context) ([]*model.Risk, error) {
	return r.query(ctx, "SELECT "+riskColumns+" FROM risks ORDER BY id")
}

func (r *riskRepository) ListByLevel(ctx context.Context, level types.RiskLevel) ([]*model.Risk, error) {
	return r.query(ctx, "SELECT "+riskColumns+" FROM risks WHERE level = ? ORDER BY id", level.String())
}

func (r *riskRepository) query(ctx context.Context, query string, args ...any) ([]*model.Risk, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query risks")
	}
	defer rows.Close()

	risks := []*model.Risk{}
	for rows.Next() {
		risk, err := scanRisk(rows)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to scan risk")
		}
		risks = append(risks, risk)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate risks")
	}

	return risks, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRisk(s scanner) (*model.Risk, error) {
	var (
		risk      model.Risk
		level     string
		createdAt int64
	)
	if err := s.Scan(
		&risk.ID,
		&risk.Asset,
		&risk.Threat,
		&risk.Likelihood,
		&risk.Impact,
		&risk.Score,
		&level,
		&createdAt,
	); err != nil {
		return nil, err
	}
	risk.Level = types.RiskLevel(level)
	if createdAt > 0 {
		risk.CreatedAt = time.UnixMilli(createdAt).UTC()
	}
	return &risk, nil
}
