package types_test

import (
	"testing"

	"github.com/secmon-lab/riskmatrix/pkg/domain/types"
)

func TestRiskLevel_IsValid(t *testing.T) {
	tests := []struct {
		name  string
		level types.RiskLevel
		want  bool
	}{
		{"valid low", types.RiskLevelLow, true},
		{"valid medium", types.RiskLevelMedium, true},
		{"valid high", types.RiskLevelHigh, true},
		{"valid critical", types.RiskLevelCritical, true},
		{"lowercase", types.RiskLevel("low"), false},
		{"empty", types.RiskLevel(""), false},
		{"unknown", types.RiskLevel("Unknown"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.level.IsValid(); got != tt.want {
				t.Errorf("RiskLevel.IsValid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRiskLevel_SeverityRank(t *testing.T) {
	levels := types.AllRiskLevels()
	for i := 1; i < len(levels); i++ {
		if levels[i-1].SeverityRank() >= levels[i].SeverityRank() {
			t.Errorf("%s should rank below %s", levels[i-1], levels[i])
		}
	}
	if types.RiskLevel("Severe").SeverityRank() != 0 {
		t.Error("unknown level should rank 0")
	}
}

func TestParseRiskLevel(t *testing.T) {
	level, err := types.ParseRiskLevel("High")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if level != types.RiskLevelHigh {
		t.Errorf("ParseRiskLevel() = %v, want %v", level, types.RiskLevelHigh)
	}

	if _, err := types.ParseRiskLevel("high"); err == nil {
		t.Error("expected error for lowercase level")
	}
}

func TestParseCorruptRiskPolicy(t *testing.T) {
	tests := []struct {
		input   string
		want    types.CorruptRiskPolicy
		wantErr bool
	}{
		{"", types.CorruptRiskPolicyExclude, false},
		{"exclude", types.CorruptRiskPolicyExclude, false},
		{"reject", types.CorruptRiskPolicyReject, false},
		{"ignore", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := types.ParseCorruptRiskPolicy(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseCorruptRiskPolicy() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseCorruptRiskPolicy() = %v, want %v", got, tt.want)
			}
		})
	}
}
