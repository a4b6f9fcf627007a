// Package diagnosis turns the free-form output of the vision model into a
// schema-complete Result.
package diagnosis

// Confidence levels derived from Result.Confidence.
const (
	LevelHigh   = "High"
	LevelMedium = "Medium"
	LevelLow    = "Low"
)

// AnalysisMethod labels results produced by the vision model.
const AnalysisMethod = "Gemini AI Vision (Pure AI)"

// Result is a normalized plant diagnosis. Every field is populated and
// Confidence lies in [0, 1].
type Result struct {
	DiseaseID             string   `json:"disease_id"`
	DiseaseName           string   `json:"disease_name"`
	ScientificName        string   `json:"scientific_name"`
	Category              string   `json:"category,omitempty"`
	Confidence            float64  `json:"confidence"`
	ConfidencePercent     float64  `json:"confidence_percent"`
	ConfidenceLevel       string   `json:"confidence_level"`
	ConfidencePercentage  string   `json:"confidence_percentage"`
	Severity              string   `json:"severity"`
	Symptoms              []string `json:"symptoms"`
	DifferentialDiagnosis []string `json:"differential_diagnosis"`
	KeyIndicators         []string `json:"key_indicators"`
	Recommendations       []string `json:"recommendations"`
	Prevention            []string `json:"prevention"`
	AnalysisNotes         string   `json:"analysis_notes"`
	AnalysisMethod        string   `json:"analysis_method"`
	IsHealthy             bool     `json:"is_healthy"`
}
