package score

import (
	"fmt"
	"math"

	"github.com/ppiankov/factcheck/internal/model"
)

// Scorer calculates the credibility score and generates signals
type Scorer struct{}

// NewScorer creates a new scorer
func NewScorer() *Scorer {
	return &Scorer{}
}

// Credibility returns the percentage of accurate claims rounded to one
// decimal, or 0 for an empty list.
func Credibility(claims []model.Claim) float64 {
	if len(claims) == 0 {
		return 0
	}
	accurate := 0
	for _, c := range claims {
		if c.Status == model.StatusAccurate {
			accurate++
		}
	}
	return round1(100 * float64(accurate) / float64(len(claims)))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// Calculate counts verdicts, computes credibility and generates diagnostic signals
func (s *Scorer) Calculate(claims []model.Claim, ref *model.Reference) model.Score {
	result := model.Score{Total: len(claims)}
	for _, c := range claims {
		switch c.Status {
		case model.StatusAccurate:
			result.Accurate++
		case model.StatusInaccurate:
			result.Inaccurate++
		case model.StatusSubjective:
			result.Subjective++
		default:
			result.Errors++
		}
	}
	result.Credibility = Credibility(claims)
	result.Confidence = s.determineConfidence(result)

	if result.Total == 0 {
		result.Signals = append(result.Signals, model.Signal{
			Type:        model.SignalNoClaims,
			Severity:    model.SeverityWarning,
			Description: "No verifiable claims extracted",
			Data:        map[string]any{"claims": 0},
		})
	} else {
		result.Signals = append(result.Signals, s.credibilitySignal(result))
	}

	if ref == nil {
		result.Signals = append(result.Signals, model.Signal{
			Type:        model.SignalMissingReference,
			Severity:    model.SeverityCritical,
			Description: "No Wikipedia reference found for any keyword",
			Data:        map[string]any{"claims_unverified": result.Total},
		})
	}

	if result.Errors > 0 && ref != nil {
		result.Signals = append(result.Signals, model.Signal{
			Type:        model.SignalVerificationErrors,
			Severity:    model.SeverityWarning,
			Description: fmt.Sprintf("%d of %d claims could not be verified", result.Errors, result.Total),
			Data: map[string]any{
				"errors": result.Errors,
				"total":  result.Total,
			},
		})
	}

	if result.Inaccurate > 0 {
		severity := model.SeverityWarning
		if result.Inaccurate*2 >= result.Total {
			severity = model.SeverityCritical
		}
		result.Signals = append(result.Signals, model.Signal{
			Type:        model.SignalContradictions,
			Severity:    severity,
			Description: fmt.Sprintf("%d claims contradicted by the reference", result.Inaccurate),
			Data: map[string]any{
				"inaccurate": result.Inaccurate,
				"total":      result.Total,
			},
		})
	}

	return result
}

func (s *Scorer) credibilitySignal(sc model.Score) model.Signal {
	severity := model.SeverityInfo
	if sc.Credibility < 50 {
		severity = model.SeverityCritical
	} else if sc.Credibility < 80 {
		severity = model.SeverityWarning
	}

	return model.Signal{
		Type:        model.SignalCredibility,
		Severity:    severity,
		Description: fmt.Sprintf("Credibility: %d/%d accurate (%.1f%%)", sc.Accurate, sc.Total, sc.Credibility),
		Data: map[string]any{
			"accurate":    sc.Accurate,
			"inaccurate":  sc.Inaccurate,
			"subjective":  sc.Subjective,
			"errors":      sc.Errors,
			"total":       sc.Total,
			"credibility": sc.Credibility,
			"formula":     "round(accurate / total * 100, 1)",
		},
	}
}

// determineConfidence rates how much the score can be trusted
func (s *Scorer) determineConfidence(sc model.Score) string {
	if sc.Total == 0 {
		return "none"
	}
	if sc.Errors*2 >= sc.Total {
		return "low"
	}
	if sc.Total >= 5 {
		return "high"
	}
	return "medium"
}
