package model

import "strings"

// Claim represents a single verifiable statement extracted from the input text.
// It lives only for the duration of one check request.
type Claim struct {
	Text          string `json:"claim"`                         // Claim text as returned by the extractor
	Topic         string `json:"topic,omitempty"`               // Main subject of the claim
	Status        Status `json:"status,omitempty"`              // Verdict attached by the verifier
	Justification string `json:"justification,omitempty"`       // Verifier explanation
	Quote         string `json:"relevant_wiki_quote,omitempty"` // Supporting quote from the reference
	SourceURL     string `json:"source_url,omitempty"`          // Reference URL the verdict is based on
}

// Status classifies a claim verdict
type Status string

const (
	StatusAccurate   Status = "accurate"   // Fully supported by the reference
	StatusInaccurate Status = "inaccurate" // Contradicted by the reference
	StatusSubjective Status = "subjective" // Cannot be definitively verified
	StatusError      Status = "error"      // No reference, or verification failed
)

// ParseStatus normalizes a verdict string. Unknown values map to StatusError.
func ParseStatus(s string) Status {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case StatusAccurate:
		return StatusAccurate
	case StatusInaccurate:
		return StatusInaccurate
	case StatusSubjective:
		return StatusSubjective
	default:
		return StatusError
	}
}

// IsVerdict reports whether the status is one of the three verdicts a verifier may return.
func (s Status) IsVerdict() bool {
	return s == StatusAccurate || s == StatusInaccurate || s == StatusSubjective
}

// Color returns the highlight background for the status.
// Unverified and error claims share the subjective color.
func (s Status) Color() string {
	switch s {
	case StatusAccurate:
		return "#E8F5E9"
	case StatusInaccurate:
		return "#FFEBEE"
	default:
		return "#FFF3E0"
	}
}
