package merge

import (
	"strings"

	"github.com/lherron/roster/internal/domain"
)

// MergeableFields are the profile attributes the reconciler may fill in.
// Identifiers, the account link and audit columns are never reconciled.
var MergeableFields = domain.ProfileFields

// Reconcile returns the fields the target should take from the source: those
// the target lacks and the source has. A target value is never overwritten.
// Values that are empty after trimming whitespace count as missing.
func Reconcile(source, target map[string]*string, fields []string) map[string]string {
	updates := make(map[string]string)
	for _, f := range fields {
		if !blank(target[f]) {
			continue
		}
		if v := source[f]; !blank(v) {
			updates[f] = *v
		}
	}
	return updates
}

// ReconciledFieldNames returns the keys of updates in fields order.
func ReconciledFieldNames(updates map[string]string, fields []string) []string {
	names := make([]string, 0, len(updates))
	for _, f := range fields {
		if _, ok := updates[f]; ok {
			names = append(names, f)
		}
	}
	return names
}

func blank(v *string) bool {
	return v == nil || strings.TrimSpace(*v) == ""
}
