package services

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type PrefixRule struct {
	Prefix      string `yaml:"prefix"`
	Replacement string `yaml:"replacement"`
}

// Mappings holds the lookup tables used to clean register rows.
// Aspect and frequency keys are stored lower-cased and trimmed.
type Mappings struct {
	ObligationPrefixes []PrefixRule       `yaml:"obligation_prefixes"`
	MechanismIDs       map[string]string `yaml:"mechanism_ids"`
	Aspects            map[string]string `yaml:"aspects"`
	Frequencies        map[string]string `yaml:"frequencies"`
}

var defaultPrefixes = []PrefixRule{
	{Prefix: "Condition", Replacement: "MS1180-"},
	{Prefix: "Condtion", Replacement: "MS1180-"},
	{Prefix: "PCEMP", Replacement: "PCEMP-"},
}

var defaultMechanismIDs = map[string]string{
	"MS1180":        "MS1180",
	"W6946/2024/1":  "W6946/2024/1",
	"Portside CEMP": "PORTSIDE_CEMP",
}

// Keys are matched against the lower-cased, trimmed cell, so the trailing-space
// variants from the register exports never match on their own.
var defaultAspects = map[string]string{
	"administration":                                  "Administration",
	"cultural heritage management":                    "Cultural Heritage Management",
	"cultural heritage management ":                   "Cultural Heritage Management",
	"terrestrial fauna management":                    "Terrestrial Fauna Management",
	"biosecurity and pest management":                 "Biosecurity And Pest Management",
	"dust management":                                 "Dust Management",
	"dust management ":                                "Dust Management",
	"reporting":                                       "Reporting",
	"reporting ":                                      "Reporting",
	"noise management":                                "Noise Management",
	"noise management ":                               "Noise Management",
	"erosion and sedimentation management":            "Erosion And Sedimentation Management",
	"hazardous substances and hydrocarbon management": "Hazardous Substances And Hydrocarbon Management",
	"waste management":                                "Waste Management",
	"artificial light management":                     "Artificial Light Management",
	"audits and inspections":                          "Audits And Inspections",
	"design and construction requirements":            "Design And Construction Requirements",
	"design and construction requirements ":           "Design And Construction Requirements",
	"regulatory compliance reporting":                 "Regulatory Compliance Reporting",
	"regulatory compliance reporting ":                "Regulatory Compliance Reporting",
	"portside cemp":                                   "Administration",
	"limitations and extent of proposal ":             "Other",
}

var defaultFrequencies = map[string]string{
	"daily":          FrequencyDaily,
	"every day":      FrequencyDaily,
	"day":            FrequencyDaily,
	"weekly":         FrequencyWeekly,
	"every week":     FrequencyWeekly,
	"week":           FrequencyWeekly,
	"fortnightly":    FrequencyFortnightly,
	"every 2 weeks":  FrequencyFortnightly,
	"biweekly":       FrequencyFortnightly,
	"bi-weekly":      FrequencyFortnightly,
	"monthly":        FrequencyMonthly,
	"every month":    FrequencyMonthly,
	"month":          FrequencyMonthly,
	"quarterly":      FrequencyQuarterly,
	"every 3 months": FrequencyQuarterly,
	"3 monthly":      FrequencyQuarterly,
	"biannually":     FrequencyBiannually,
	"bi-annually":    FrequencyBiannually,
	"biannual":       FrequencyBiannually,
	"six monthly":    FrequencyBiannually,
	"6 monthly":      FrequencyBiannually,
	"every 6 months": FrequencyBiannually,
	"half yearly":    FrequencyBiannually,
	"annually":       FrequencyAnnually,
	"annual":         FrequencyAnnually,
	"yearly":         FrequencyAnnually,
	"every year":     FrequencyAnnually,
	"once":           FrequencyOnce,
	"one off":        FrequencyOnce,
	"one-off":        FrequencyOnce,
	"once off":       FrequencyOnce,
	"as required":    FrequencyAsRequired,
	"as needed":      FrequencyAsRequired,
	"ad hoc":         FrequencyAsRequired,
	"when required":  FrequencyAsRequired,
}

// DefaultMappings returns a fresh copy of the built-in tables.
func DefaultMappings() Mappings {
	m := Mappings{
		ObligationPrefixes: append([]PrefixRule(nil), defaultPrefixes...),
		MechanismIDs:       make(map[string]string, len(defaultMechanismIDs)),
		Aspects:            make(map[string]string, len(defaultAspects)),
		Frequencies:        make(map[string]string, len(defaultFrequencies)),
	}
	for k, v := range defaultMechanismIDs {
		m.MechanismIDs[k] = v
	}
	for k, v := range defaultAspects {
		if k != lookupKey(k) {
			continue
		}
		m.Aspects[k] = v
	}
	for k, v := range defaultFrequencies {
		m.Frequencies[lookupKey(k)] = v
	}
	return m
}

// LoadMappings reads a YAML file and layers it over the defaults.
// Prefix rules from the file are tried before the built-in ones.
func LoadMappings(path string) (Mappings, error) {
	base := DefaultMappings()
	if strings.TrimSpace(path) == "" {
		return base, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Mappings{}, fmt.Errorf("read mappings: %w", err)
	}
	var override Mappings
	if err := yaml.Unmarshal(data, &override); err != nil {
		return Mappings{}, fmt.Errorf("parse mappings %s: %w", path, err)
	}
	return base.Merge(override)
}

// Merge returns m with override's entries taking precedence.
func (m Mappings) Merge(override Mappings) (Mappings, error) {
	out := m.clone()
	prefixes := make([]PrefixRule, 0, len(override.ObligationPrefixes)+len(out.ObligationPrefixes))
	for _, r := range override.ObligationPrefixes {
		if strings.TrimSpace(r.Prefix) == "" {
			return Mappings{}, fmt.Errorf("mappings: obligation prefix rule with empty prefix")
		}
		prefixes = append(prefixes, r)
	}
	out.ObligationPrefixes = append(prefixes, out.ObligationPrefixes...)
	for k, v := range override.MechanismIDs {
		out.MechanismIDs[strings.TrimSpace(k)] = v
	}
	for k, v := range override.Aspects {
		out.Aspects[lookupKey(k)] = v
	}
	for k, v := range override.Frequencies {
		out.Frequencies[lookupKey(k)] = v
	}
	return out, nil
}

func (m Mappings) clone() Mappings {
	out := Mappings{
		ObligationPrefixes: append([]PrefixRule(nil), m.ObligationPrefixes...),
		MechanismIDs:       make(map[string]string, len(m.MechanismIDs)),
		Aspects:            make(map[string]string, len(m.Aspects)),
		Frequencies:        make(map[string]string, len(m.Frequencies)),
	}
	for k, v := range m.MechanismIDs {
		out.MechanismIDs[k] = v
	}
	for k, v := range m.Aspects {
		out.Aspects[k] = v
	}
	for k, v := range m.Frequencies {
		out.Frequencies[k] = v
	}
	return out
}

// ReferenceNumber maps a mechanism name to its reference id, defaulting to the name.
func (m Mappings) ReferenceNumber(name string) string {
	name = strings.TrimSpace(name)
	if ref, ok := m.MechanismIDs[name]; ok {
		return ref
	}
	return name
}

func lookupKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
