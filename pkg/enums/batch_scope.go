package enums

import "fmt"

// BatchScope distinguishes catalog-wide group buys from host-run sub-groups.
type BatchScope string

const (
	BatchScopeGroupBuy BatchScope = "group_buy"
	BatchScopeSubGroup BatchScope = "sub_group"
)

var validBatchScopes = []BatchScope{
	BatchScopeGroupBuy,
	BatchScopeSubGroup,
}

// String implements fmt.Stringer.
func (s BatchScope) String() string {
	return string(s)
}

// IsValid reports whether the value is a known BatchScope.
func (s BatchScope) IsValid() bool {
	for _, candidate := range validBatchScopes {
		if candidate == s {
			return true
		}
	}
	return false
}

// CodePrefix returns the order-code prefix used for batches in this scope.
func (s BatchScope) CodePrefix() string {
	if s == BatchScopeSubGroup {
		return "SG"
	}
	return "GB"
}

// ParseBatchScope converts raw input into a BatchScope.
func ParseBatchScope(value string) (BatchScope, error) {
	for _, candidate := range validBatchScopes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid batch scope %q", value)
}
