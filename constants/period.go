package constants

import (
	"strings"
)

type PeriodType string

const (
	PeriodWeekly   PeriodType = "semanal"
	PeriodBiweekly PeriodType = "quincenal"
	PeriodMonthly  PeriodType = "mensual"
)

var allPeriodTypes = []PeriodType{
	PeriodWeekly,
	PeriodBiweekly,
	PeriodMonthly,
}

func PeriodTypesAsStringSlice() []string {
	result := make([]string, len(allPeriodTypes))
	for i, p := range allPeriodTypes {
		result[i] = string(p)
	}
	return result
}

// CanonicalPeriodType maps user input (Spanish or English, any case) to a stored period type.
func CanonicalPeriodType(input string) (PeriodType, bool) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	if normalized == "" {
		return "", false
	}

	synonyms := map[string]PeriodType{
		"weekly":    PeriodWeekly,
		"week":      PeriodWeekly,
		"biweekly":  PeriodBiweekly,
		"fortnight": PeriodBiweekly,
		"monthly":   PeriodMonthly,
		"month":     PeriodMonthly,
	}
	if p, ok := synonyms[normalized]; ok {
		return p, true
	}

	for _, p := range allPeriodTypes {
		if normalized == string(p) {
			return p, true
		}
	}
	return "", false
}

// PeriodDateLayout is the calendar-date format used in receipt keys and manifests.
const PeriodDateLayout = "2006-01-02"
