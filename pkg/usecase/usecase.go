package usecase

import (
	"time"

	"github.com/secmon-lab/riskmatrix/pkg/domain/interfaces"
	"github.com/secmon-lab/riskmatrix/pkg/domain/model"
	"github.com/secmon-lab/riskmatrix/pkg/domain/types"
)

type UseCases struct {
	repo         interfaces.Repository
	listeners    []interfaces.RiskListener
	policy       types.CorruptRiskPolicy
	exportPrefix string
	now          func() time.Time

	Risk   *RiskUseCase
	Export *ExportUseCase
}

type Option func(*UseCases)

// WithListener registers a listener notified after each successful assessment
func WithListener(listener interfaces.RiskListener) Option {
	return func(uc *UseCases) {
		if listener != nil {
			uc.listeners = append(uc.listeners, listener)
		}
	}
}

// WithCorruptRiskPolicy sets how the matrix treats stored risks with out-of-domain ratings
func WithCorruptRiskPolicy(policy types.CorruptRiskPolicy) Option {
	return func(uc *UseCases) {
		if policy.IsValid() {
			uc.policy = policy
		}
	}
}

// WithExportPrefix sets the file name prefix of exported registers
func WithExportPrefix(prefix string) Option {
	return func(uc *UseCases) {
		if prefix != "" {
			uc.exportPrefix = prefix
		}
	}
}

// WithClock replaces the clock used to stamp export file names
func WithClock(now func() time.Time) Option {
	return func(uc *UseCases) {
		if now != nil {
			uc.now = now
		}
	}
}

func New(repo interfaces.Repository, opts ...Option) *UseCases {
	uc := &UseCases{
		repo:         repo,
		policy:       types.CorruptRiskPolicyExclude,
		exportPrefix: model.DefaultExportPrefix,
		now:          time.Now,
	}

	for _, opt := range opts {
		opt(uc)
	}

	uc.Risk = NewRiskUseCase(repo, uc.policy, uc.listeners...)
	uc.Export = NewExportUseCase(uc.Risk, uc.exportPrefix, uc.now)

	return uc
}
