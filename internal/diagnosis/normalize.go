package diagnosis

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	defaultDiseaseID      = "unknown"
	defaultDiseaseName    = "Tidak Teridentifikasi"
	defaultScientificName = "N/A"
	defaultSeverity       = "Unknown"
	defaultConfidence     = 0.5

	// fallbackNotesLimit bounds how much unparseable model text is kept.
	fallbackNotesLimit = 200
)

// DefaultRecommendations fill an empty recommendation list.
var DefaultRecommendations = []string{
	"Monitor kondisi tanaman secara rutin",
	"Pastikan drainase yang baik",
	"Jaga kebersihan area tanam",
	"Konsultasi dengan ahli jika diperlukan",
}

var fallbackRecommendations = []string{
	"Coba upload foto yang lebih jelas",
	"Pastikan foto fokus pada daun/bagian yang sakit",
	"Gunakan pencahayaan yang baik",
	"Konsultasi dengan ahli pertanian lokal",
}

// Parse normalizes raw model output. Text that does not contain a JSON object
// degrades to a low-confidence placeholder diagnosis; Parse never fails.
func Parse(text string) Result {
	cleaned := StripCodeFences(text)
	raw, ok := decodeObject(cleaned)
	if !ok {
		raw = fallbackFields(cleaned)
	}
	return Normalize(raw)
}

// StripCodeFences removes a surrounding markdown code fence, with or without
// a json language tag.
func StripCodeFences(text string) string {
	s := strings.TrimSpace(text)
	switch {
	case strings.HasPrefix(s, "```json"):
		s = s[len("```json"):]
	case strings.HasPrefix(s, "```"):
		s = s[len("```"):]
	}
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// Normalize completes, coerces and enriches an untyped field map into a Result.
func Normalize(raw map[string]any) Result {
	if raw == nil {
		raw = map[string]any{}
	}

	r := Result{
		DiseaseID:             stringField(raw, "disease_id", defaultDiseaseID),
		DiseaseName:           stringField(raw, "disease_name", defaultDiseaseName),
		ScientificName:        stringField(raw, "scientific_name", defaultScientificName),
		Category:              stringField(raw, "category", ""),
		Severity:              stringField(raw, "severity", defaultSeverity),
		AnalysisNotes:         stringField(raw, "analysis_notes", ""),
		Symptoms:              listField(raw, "symptoms"),
		DifferentialDiagnosis: listField(raw, "differential_diagnosis"),
		KeyIndicators:         listField(raw, "key_indicators"),
		Recommendations:       listField(raw, "recommendations"),
		Prevention:            listField(raw, "prevention"),
		AnalysisMethod:        AnalysisMethod,
	}

	if len(r.Recommendations) == 0 {
		r.Recommendations = append([]string(nil), DefaultRecommendations...)
	}

	// derived fields use the unrounded value; only the reported score is rounded
	c := clampConfidence(raw["confidence"])
	r.Confidence = round(c, 4)
	r.ConfidencePercent = round(c*100, 2)
	r.ConfidencePercentage = fmt.Sprintf("%.1f%%", c*100)
	r.ConfidenceLevel = confidenceLevel(c)

	if healthy, ok := raw["is_healthy"].(bool); ok {
		r.IsHealthy = healthy
	} else {
		r.IsHealthy = strings.EqualFold(r.Category, "HEALTHY") ||
			strings.Contains(strings.ToLower(r.DiseaseID), "healthy")
	}
	return r
}

func decodeObject(text string) (map[string]any, bool) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(text), &raw); err == nil && raw != nil {
		return raw, true
	}
	// tolerate prose around the object
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, false
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), &raw); err != nil || raw == nil {
		return nil, false
	}
	return raw, true
}

func fallbackFields(text string) map[string]any {
	notes := text
	if runes := []rune(text); len(runes) > fallbackNotesLimit {
		notes = string(runes[:fallbackNotesLimit])
	}
	recs := make([]any, len(fallbackRecommendations))
	for i, rec := range fallbackRecommendations {
		recs[i] = rec
	}
	return map[string]any{
		"disease_id":      defaultDiseaseID,
		"disease_name":    "Analisis Tidak Lengkap",
		"scientific_name": defaultScientificName,
		"confidence":      defaultConfidence,
		"severity":        defaultSeverity,
		"symptoms":        []any{"Analisis sedang diproses"},
		"recommendations": recs,
		"prevention":      []any{"Monitor kondisi tanaman secara rutin"},
		"analysis_notes":  notes,
	}
}

func stringField(raw map[string]any, key, def string) string {
	switch v := raw[key].(type) {
	case string:
		return v
	case float64, bool:
		return fmt.Sprint(v)
	default:
		return def
	}
}

func listField(raw map[string]any, key string) []string {
	items, ok := raw[key].([]any)
	out := make([]string, 0, len(items))
	if !ok {
		return out
	}
	for _, item := range items {
		switch v := item.(type) {
		case string:
			out = append(out, v)
		case float64, bool:
			out = append(out, fmt.Sprint(v))
		}
	}
	return out
}

func clampConfidence(v any) float64 {
	var f float64
	switch c := v.(type) {
	case float64:
		f = c
	case json.Number:
		parsed, err := c.Float64()
		if err != nil {
			return defaultConfidence
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(c), 64)
		if err != nil {
			return defaultConfidence
		}
		f = parsed
	default:
		return defaultConfidence
	}
	if math.IsNaN(f) {
		return defaultConfidence
	}
	return math.Max(0, math.Min(1, f))
}

func confidenceLevel(c float64) string {
	switch {
	case c > 0.8:
		return LevelHigh
	case c > 0.6:
		return LevelMedium
	default:
		return LevelLow
	}
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
