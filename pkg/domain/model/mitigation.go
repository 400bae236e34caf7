package model

import "github.com/secmon-lab/riskmatrix/pkg/domain/types"

var mitigationHints = map[types.RiskLevel]string{
	types.RiskLevelLow:      "Accept / monitor; periodic review",
	types.RiskLevelMedium:   "Plan mitigation within a bounded horizon; document in register",
	types.RiskLevelHigh:     "Prioritize action; apply compensating controls",
	types.RiskLevelCritical: "Immediate mitigation; executive-level reporting",
}

// MitigationHint returns the recommended action for a level, or "" for an unknown level.
func MitigationHint(level types.RiskLevel) string {
	return mitigationHints[level]
}
