package services

import "strings"

const (
	FrequencyDaily       = "daily"
	FrequencyWeekly      = "weekly"
	FrequencyFortnightly = "fortnightly"
	FrequencyMonthly     = "monthly"
	FrequencyQuarterly   = "quarterly"
	FrequencyBiannually  = "biannually"
	FrequencyAnnually    = "annually"
	FrequencyOnce        = "once"
	FrequencyAsRequired  = "as required"
)

// NormalizeFrequency maps free-text recurrence descriptions onto the frequency vocabulary
// using the built-in synonym table. Unknown values come back lower-cased and trimmed.
func NormalizeFrequency(raw string) string {
	return normalizeFrequency(defaultFrequencies, raw)
}

func normalizeFrequency(table map[string]string, raw string) string {
	key := strings.Join(strings.Fields(lookupKey(raw)), " ")
	if key == "" {
		return ""
	}
	if v, ok := table[key]; ok {
		return v
	}
	return key
}
