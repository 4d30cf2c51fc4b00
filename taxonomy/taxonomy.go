// Package taxonomy normalises free-text crisis labels into the fixed
// situation types stored on records.
package taxonomy

import (
	"strings"

	"go-crisislens/types"
)

var (
	disasterKeywords = []string{
		"disaster", "flood", "earthquake", "fire", "cyclone", "tsunami",
		"landslide", "storm", "drought", "hurricane", "typhoon", "tornado",
		"volcano",
	}
	diseaseKeywords = []string{
		"disease", "epidemic", "virus", "outbreak", "health", "pandemic",
		"infection", "cholera", "dengue", "malaria",
	}
)

// MapToTaxonomy maps label to disaster, disease or other. Disaster keywords
// are checked first; no match yields other.
func MapToTaxonomy(label string) types.SituationType {
	l := strings.ToLower(label)
	if containsAny(l, disasterKeywords) {
		return types.Disaster
	}
	if containsAny(l, diseaseKeywords) {
		return types.Disease
	}
	return types.Other
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
