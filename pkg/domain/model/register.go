package model

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/secmon-lab/riskmatrix/pkg/domain/types"
)

// LevelFilter selects risks of one level, or every risk with LevelFilterAll
type LevelFilter string

// LevelFilterAll keeps the whole collection
const LevelFilterAll LevelFilter = "All"

// ParseLevelFilter accepts "All", an empty string (same as All) or a valid level
func ParseLevelFilter(s string) (LevelFilter, error) {
	if s == "" || LevelFilter(s) == LevelFilterAll {
		return LevelFilterAll, nil
	}
	if _, err := types.ParseRiskLevel(s); err != nil {
		return "", err
	}
	return LevelFilter(s), nil
}

// FilterByLevel returns risks whose level matches filter exactly. LevelFilterAll
// returns the input slice itself. Nil entries never match a level.
func FilterByLevel(risks []*Risk, filter LevelFilter) []*Risk {
	if filter == LevelFilterAll {
		return risks
	}

	filtered := make([]*Risk, 0, len(risks))
	for _, risk := range risks {
		if risk != nil && risk.Level == types.RiskLevel(filter) {
			filtered = append(filtered, risk)
		}
	}
	return filtered
}

// SortField is a register column that can be sorted on
type SortField string

const (
	SortFieldID         SortField = "id"
	SortFieldAsset      SortField = "asset"
	SortFieldThreat     SortField = "threat"
	SortFieldLikelihood SortField = "likelihood"
	SortFieldImpact     SortField = "impact"
	SortFieldScore      SortField = "score"
	// SortFieldLevel compares level labels as text: Critical < High < Low < Medium
	SortFieldLevel SortField = "level"
	// SortFieldSeverity compares levels by severity rank instead of label
	SortFieldSeverity SortField = "severity"
)

// IsValid checks if the field is sortable
func (f SortField) IsValid() bool {
	return riskComparators[f] != nil
}

// ParseSortField parses a sortable field name
func ParseSortField(s string) (SortField, error) {
	f := SortField(s)
	if !f.IsValid() {
		return "", fmt.Errorf("invalid sort field: %s", s)
	}
	return f, nil
}

// SortDirection is ascending or descending
type SortDirection string

const (
	SortAscending  SortDirection = "asc"
	SortDescending SortDirection = "desc"
)

// ParseSortDirection parses asc/desc; empty means ascending
func ParseSortDirection(s string) (SortDirection, error) {
	switch SortDirection(s) {
	case "", SortAscending:
		return SortAscending, nil
	case SortDescending:
		return SortDescending, nil
	default:
		return "", fmt.Errorf("invalid sort direction: %s", s)
	}
}

var riskComparators = map[SortField]func(a, b *Risk) int{
	SortFieldID:         func(a, b *Risk) int { return cmp.Compare(a.ID, b.ID) },
	SortFieldAsset:      func(a, b *Risk) int { return cmp.Compare(a.Asset, b.Asset) },
	SortFieldThreat:     func(a, b *Risk) int { return cmp.Compare(a.Threat, b.Threat) },
	SortFieldLikelihood: func(a, b *Risk) int { return cmp.Compare(a.Likelihood, b.Likelihood) },
	SortFieldImpact:     func(a, b *Risk) int { return cmp.Compare(a.Impact, b.Impact) },
	SortFieldScore:      func(a, b *Risk) int { return cmp.Compare(a.Score, b.Score) },
	SortFieldLevel:      func(a, b *Risk) int { return cmp.Compare(a.Level, b.Level) },
	SortFieldSeverity: func(a, b *Risk) int {
		return cmp.Compare(a.Level.SeverityRank(), b.Level.SeverityRank())
	},
}

// SortRisks returns a stably sorted copy of risks without nil entries. Risks that
// compare equal keep their input order in both directions.
func SortRisks(risks []*Risk, field SortField, dir SortDirection) []*Risk {
	sorted := Compact(risks)
	compare, ok := riskComparators[field]
	if !ok {
		return sorted
	}

	if dir == SortDescending {
		slices.SortStableFunc(sorted, func(a, b *Risk) int { return compare(b, a) })
	} else {
		slices.SortStableFunc(sorted, compare)
	}
	return sorted
}

// SortState is the register's current sort column and direction. The zero value is unsorted.
type SortState struct {
	Field     SortField
	Direction SortDirection
}

// Toggle returns the state after a sort request on field: repeating an ascending
// sort flips it to descending, anything else sorts ascending.
func (s SortState) Toggle(field SortField) SortState {
	if s.Field == field && s.Direction == SortAscending {
		return SortState{Field: field, Direction: SortDescending}
	}
	return SortState{Field: field, Direction: SortAscending}
}

// Apply sorts risks by the state; an unsorted state returns the input order.
func (s SortState) Apply(risks []*Risk) []*Risk {
	if s.Field == "" {
		return risks
	}
	return SortRisks(risks, s.Field, s.Direction)
}

// RegisterView is the filter and sort applied to the register table
type RegisterView struct {
	Filter LevelFilter
	Sort   SortState
}

// Apply drops nil entries, then filters and sorts risks
func (v RegisterView) Apply(risks []*Risk) []*Risk {
	filter := v.Filter
	if filter == "" {
		filter = LevelFilterAll
	}
	return v.Sort.Apply(FilterByLevel(Compact(risks), filter))
}

// Compact returns a copy of risks with nil entries removed
func Compact(risks []*Risk) []*Risk {
	compacted := make([]*Risk, 0, len(risks))
	for _, risk := range risks {
		if risk != nil {
			compacted = append(compacted, risk)
		}
	}
	return compacted
}
