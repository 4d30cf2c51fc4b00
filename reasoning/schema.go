package reasoning

import "github.com/sashabaranov/go-openai/jsonschema"

// CrisisTypes are the labels the reasoning service may assign.
var CrisisTypes = []string{
	"Flood", "Fire", "Earthquake", "Cyclone", "Epidemic", "Food Shortage",
	"Landslide", "Drought", "Storm", "Outbreak", "Others",
}

func number(desc string) jsonschema.Definition {
	return jsonschema.Definition{Type: jsonschema.Number, Description: desc}
}

func object(props map[string]jsonschema.Definition, required ...string) jsonschema.Definition {
	return jsonschema.Definition{
		Type:                 jsonschema.Object,
		Properties:           props,
		Required:             required,
		AdditionalProperties: false,
	}
}

// AssessmentSchema is the fixed schema every refined or merged assessment must match.
func AssessmentSchema() jsonschema.Definition {
	return object(map[string]jsonschema.Definition{
		"is_crisis": {Type: jsonschema.Boolean, Description: "Whether the situation is a crisis"},
		"type_classification": object(map[string]jsonschema.Definition{
			"type":       {Type: jsonschema.String, Enum: CrisisTypes, Description: "The type of crisis"},
			"confidence": number("Confidence score 0-1"),
		}, "type", "confidence"),
		"location": object(map[string]jsonschema.Definition{
			"name": {Type: jsonschema.String, Description: "City or place name"},
			"coordinates": object(map[string]jsonschema.Definition{
				"lat": number("Latitude, 0 when unknown"),
				"lon": number("Longitude, 0 when unknown"),
			}, "lat", "lon"),
		}, "name", "coordinates"),
		"severity": object(map[string]jsonschema.Definition{
			"overall": number("Overall severity 0-1"),
			"dimensions": object(map[string]jsonschema.Definition{
				"human_impact":          number("0-1"),
				"infrastructure_damage": number("0-1"),
				"geographic_scale":      number("0-1"),
				"temporal_urgency":      number("0-1"),
			}, "human_impact", "infrastructure_damage", "geographic_scale", "temporal_urgency"),
		}, "overall", "dimensions"),
		"urgency": object(map[string]jsonschema.Definition{
			"level":     {Type: jsonschema.String, Enum: []string{"critical", "high", "medium", "low"}},
			"is_urgent": {Type: jsonschema.Boolean},
		}, "level", "is_urgent"),
		"priority": object(map[string]jsonschema.Definition{
			"level": {Type: jsonschema.String, Enum: []string{"CRITICAL", "HIGH", "MEDIUM", "LOW"}},
			"score": number("0-1"),
		}, "level", "score"),
		"explanation": object(map[string]jsonschema.Definition{
			"content": {Type: jsonschema.String, Description: "Professional summary of the situation"},
		}, "content"),
	}, "is_crisis", "type_classification", "location", "severity", "urgency", "priority", "explanation")
}

// ReconcileSchema wraps a merged assessment with the update decision.
func ReconcileSchema() jsonschema.Definition {
	return object(map[string]jsonschema.Definition{
		"has_update":      {Type: jsonschema.Boolean, Description: "True only if the new report is materially different"},
		"reason":          {Type: jsonschema.String},
		"merged_analysis": AssessmentSchema(),
	}, "has_update", "reason", "merged_analysis")
}

// ScoringSchema is the urgency ranking the scoring engine asks for.
func ScoringSchema() jsonschema.Definition {
	entry := object(map[string]jsonschema.Definition{
		"id":     {Type: jsonschema.String},
		"score":  number("Urgency 0-100"),
		"reason": {Type: jsonschema.String},
	}, "id", "score", "reason")
	return object(map[string]jsonschema.Definition{
		"analysis": {Type: jsonschema.Array, Items: &entry},
	}, "analysis")
}
