package diagnosis

import (
	"sort"

	"dermassist/client/internal/models"
)

const DifferentialSize = 3

type Score struct {
	Code  Code
	Score float64
}

func (s Score) Percent() float64 { return s.Score * 100 }

// Differential ranks every class other than diagnosis by score, highest
// first, and keeps the top n. Equal scores keep HAM10000 order. Keys that are
// not one of the seven classes are ignored.
func Differential(scores map[string]float64, diagnosis Code, n int) []Score {
	if len(scores) == 0 || n <= 0 {
		return nil
	}

	out := make([]Score, 0, len(Codes)-1)
	for key, value := range scores {
		code, ok := ParseCode(key)
		if !ok || code == diagnosis {
			continue
		}
		out = append(out, Score{Code: code, Score: value})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return codeTable[out[i].Code].rank < codeTable[out[j].Code].rank
	})

	if len(out) > n {
		out = out[:n]
	}
	return out
}

// Result is the view model behind the result card, the explanation panel and
// the recommendation panel.
type Result struct {
	Code           string
	Known          bool
	Name           string
	Confidence     float64
	Tier           Tier
	Features       []Feature
	Recommendation Recommendation
	Differential   []Score
}

func (r Result) ConfidencePercent() float64 { return r.Confidence * 100 }

func Present(p models.Prediction) Result {
	code, known := ParseCode(p.Diagnosis)
	if !known {
		tier := ParseTier(p.RiskLevel)
		name := p.DiagnosisName
		if name == "" {
			name = p.Diagnosis
		}
		return Result{
			Code:           p.Diagnosis,
			Name:           name,
			Confidence:     p.Confidence,
			Tier:           tier,
			Features:       genericFeatures,
			Recommendation: tier.Recommendation(),
		}
	}

	tier := code.Tier()
	return Result{
		Code:           code.String(),
		Known:          true,
		Name:           code.DisplayName(),
		Confidence:     p.Confidence,
		Tier:           tier,
		Features:       code.Features(),
		Recommendation: tier.Recommendation(),
		Differential:   Differential(p.AllScores, code, DifferentialSize),
	}
}
