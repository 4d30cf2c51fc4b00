package types

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"
)

// Assessment is the fixed analysis schema shared by the classifier, the
// refinement service and the reconciler. Stored on the record as an opaque payload.
type Assessment struct {
	IsCrisis           bool               `firestore:"is_crisis" json:"is_crisis"`
	TypeClassification TypeClassification `firestore:"type_classification" json:"type_classification"`
	Location           AssessedLocation   `firestore:"location" json:"location"`
	Severity           SeverityAssessment `firestore:"severity" json:"severity"`
	Urgency            Urgency            `firestore:"urgency" json:"urgency"`
	Priority           Priority           `firestore:"priority" json:"priority"`
	Explanation        Explanation        `firestore:"explanation" json:"explanation"`

	// Only sent by the classifier for non-crisis results.
	CrisisConfidence float64 `firestore:"crisis_confidence,omitempty" json:"crisis_confidence,omitempty"`
	Message          string  `firestore:"message,omitempty" json:"message,omitempty"`
}

type TypeClassification struct {
	Type       string  `firestore:"type" json:"type"`
	Confidence float64 `firestore:"confidence" json:"confidence"`
}

type SeverityAssessment struct {
	Overall    float64            `firestore:"overall" json:"overall"`
	Dimensions SeverityDimensions `firestore:"dimensions" json:"dimensions"`
}

type SeverityDimensions struct {
	HumanImpact          float64 `firestore:"human_impact" json:"human_impact"`
	InfrastructureDamage float64 `firestore:"infrastructure_damage" json:"infrastructure_damage"`
	GeographicScale      float64 `firestore:"geographic_scale" json:"geographic_scale"`
	TemporalUrgency      float64 `firestore:"temporal_urgency" json:"temporal_urgency"`
}

type Urgency struct {
	Level    string `firestore:"level" json:"level"`
	IsUrgent bool   `firestore:"is_urgent" json:"is_urgent"`
}

type Priority struct {
	Level string  `firestore:"level" json:"level"`
	Score float64 `firestore:"score" json:"score"`
}

type Explanation struct {
	Content string `firestore:"content" json:"content"`
}

// Coordinates uses pointers so a missing fix can be told apart from (0,0).
type Coordinates struct {
	Lat *float64 `firestore:"lat" json:"lat"`
	Lon *float64 `firestore:"lon" json:"lon"`
}

// Point returns lon, lat and whether both are present and not (0,0).
func (c *Coordinates) Point() (lon, lat float64, ok bool) {
	if c == nil || c.Lat == nil || c.Lon == nil {
		return 0, 0, false
	}
	if *c.Lat == 0 && *c.Lon == 0 {
		return 0, 0, false
	}
	return *c.Lon, *c.Lat, true
}

// NewCoordinates builds a fully populated coordinate pair.
func NewCoordinates(lon, lat float64) *Coordinates {
	return &Coordinates{Lat: &lat, Lon: &lon}
}

type AssessedLocation struct {
	Name        string       `firestore:"name" json:"name"`
	Coordinates *Coordinates `firestore:"coordinates" json:"coordinates"`
}

// UnmarshalJSON accepts both the object form and the bare place-name string
// the classifier emits for non-crisis results.
func (l *AssessedLocation) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*l = AssessedLocation{}
		return nil
	}
	if data[0] == '"' {
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return err
		}
		*l = AssessedLocation{Name: name}
		return nil
	}
	type plain AssessedLocation
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*l = AssessedLocation(p)
	return nil
}

// TypeLabel returns the free-text crisis label, or "Others" when absent.
func (a Assessment) TypeLabel() string {
	if t := strings.TrimSpace(a.TypeClassification.Type); t != "" {
		return t
	}
	return "Others"
}

// LocationName returns the trimmed assessed place name.
func (a Assessment) LocationName() string {
	return strings.TrimSpace(a.Location.Name)
}

// Clamp01 forces v into [0,1]. NaN maps to 0.
func Clamp01(v float64) float64 {
	return ClampRange(v, 0, 1)
}

// ClampRange forces v into [lo,hi]. NaN maps to lo.
func ClampRange(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
