package types

import "fmt"

// CorruptRiskPolicy decides what matrix aggregation does with a stored risk
// whose likelihood or impact is outside 1..5.
type CorruptRiskPolicy string

const (
	// CorruptRiskPolicyExclude leaves the risk out and aggregates the rest
	CorruptRiskPolicyExclude CorruptRiskPolicy = "exclude"
	// CorruptRiskPolicyReject fails the whole aggregation
	CorruptRiskPolicyReject CorruptRiskPolicy = "reject"
)

// IsValid checks if the policy is known
func (p CorruptRiskPolicy) IsValid() bool {
	switch p {
	case CorruptRiskPolicyExclude, CorruptRiskPolicyReject:
		return true
	default:
		return false
	}
}

// String returns the string representation of the policy
func (p CorruptRiskPolicy) String() string {
	return string(p)
}

// ParseCorruptRiskPolicy parses a string into a CorruptRiskPolicy. Empty means exclude.
func ParseCorruptRiskPolicy(s string) (CorruptRiskPolicy, error) {
	if s == "" {
		return CorruptRiskPolicyExclude, nil
	}
	p := CorruptRiskPolicy(s)
	if !p.IsValid() {
		return "", fmt.Errorf("invalid corrupt risk policy: %s", s)
	}
	return p, nil
}
