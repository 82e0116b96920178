package diagnosis

import "strings"

type Tier int

const (
	TierLow Tier = iota
	TierModerate
	TierHigh
)

func (t Tier) String() string {
	switch t {
	case TierLow:
		return "Low"
	case TierModerate:
		return "Moderate"
	default:
		return "High"
	}
}

// Label is the backend's risk_level spelling ("High Risk").
func (t Tier) Label() string {
	return t.String() + " Risk"
}

// Color is the accent used for badges and bars.
func (t Tier) Color() string {
	switch t {
	case TierLow:
		return "green"
	case TierModerate:
		return "yellow"
	default:
		return "red"
	}
}

// ParseTier reads a risk_level string. Anything not recognisably low or
// moderate is treated as high.
func ParseTier(riskLevel string) Tier {
	switch {
	case strings.Contains(riskLevel, "Low"):
		return TierLow
	case strings.Contains(riskLevel, "Moderate"):
		return TierModerate
	default:
		return TierHigh
	}
}

type Recommendation struct {
	Title   string
	Urgency string
	Actions []string
}

func (t Tier) Recommendation() Recommendation {
	switch t {
	case TierLow:
		return Recommendation{
			Title:   "Low Risk - Continue Monitoring",
			Urgency: "No immediate action required",
			Actions: []string{
				"Perform monthly self-examinations",
				"Take photos to track any changes over time",
				"Schedule routine dermatology check-up annually",
				"Use sun protection (SPF 30+) daily",
				"Watch for any changes in size, color, or shape",
			},
		}
	case TierModerate:
		return Recommendation{
			Title:   "Moderate Risk - Dermatologist Consultation Recommended",
			Urgency: "Consult within 30 days",
			Actions: []string{
				"Schedule appointment with dermatologist within 30 days",
				"Bring this screening result to your appointment",
				"Document any recent changes in the lesion",
				"Avoid sun exposure to the affected area",
				"Do not attempt self-treatment",
			},
		}
	default:
		return Recommendation{
			Title:   "High Risk - Immediate Medical Attention Required",
			Urgency: "URGENT - Seek immediate care",
			Actions: []string{
				"Contact a dermatologist immediately",
				"Request urgent appointment (within 7 days)",
				"Consider seeking care at a skin cancer clinic",
				"Bring this screening result and original image",
				"Document all symptoms and recent changes",
			},
		}
	}
}
