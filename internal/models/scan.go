package models

// Prediction is the /predict response.
type Prediction struct {
	Diagnosis     string             `json:"diagnosis"`
	DiagnosisName string             `json:"diagnosis_name,omitempty"`
	Confidence    float64            `json:"confidence"`
	RiskLevel     string             `json:"risk_level"`
	AllScores     map[string]float64 `json:"all_scores,omitempty"`
}

// Scan is one record of /user/scans.
type Scan struct {
	ID              int64    `json:"id"`
	PredictedLabel  string   `json:"predicted_label"`
	ConfidenceScore *float64 `json:"confidence_score"`
	RiskLevel       string   `json:"risk_level"`
	CreatedAt       string   `json:"created_at"`
	ImageURL        *string  `json:"image_url,omitempty"`
}
