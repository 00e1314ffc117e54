package model

import "time"

// Reference is the encyclopedia article used as ground truth for every claim in one request.
// It is immutable after the resolver creates it.
type Reference struct {
	Title    string   `json:"title"`
	Summary  string   `json:"summary"`
	Content  string   `json:"content"` // Truncated to the configured character budget
	URL      string   `json:"url"`
	Language Language `json:"language"`
	Term     string   `json:"term,omitempty"` // Search term that produced the page
}

// Report represents the complete result of one fact-check request
type Report struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Language  Language  `json:"language"`

	InputText   string `json:"input_text"`
	CheckedText string `json:"checked_text"`        // Text after optional typo correction
	Corrected   bool   `json:"corrected,omitempty"` // Whether typo correction changed the text
	WordCount   int    `json:"word_count"`

	Keywords      []string      `json:"keywords"`
	KeywordSource KeywordSource `json:"keyword_source"`
	Reference     *Reference    `json:"reference,omitempty"`

	Claims          []Claim  `json:"claims"`
	Score           Score    `json:"score"`
	HighlightedHTML string   `json:"highlighted_html"`
	Unmatched       []string `json:"unmatched_claims,omitempty"` // Claims that could not be located in the text

	Warnings []string `json:"warnings,omitempty"`
}

// KeywordSource records which extraction path produced the keywords
type KeywordSource string

const (
	KeywordSourceLLM       KeywordSource = "llm"
	KeywordSourceHeuristic KeywordSource = "heuristic"
)

// Score represents the credibility breakdown
type Score struct {
	Credibility float64  `json:"credibility"` // Percentage of accurate claims (0-100, 1 decimal)
	Accurate    int      `json:"accurate"`
	Inaccurate  int      `json:"inaccurate"`
	Subjective  int      `json:"subjective"`
	Errors      int      `json:"errors"`
	Total       int      `json:"total"`
	Confidence  string   `json:"confidence"` // "none", "low", "medium", "high"
	Signals     []Signal `json:"signals,omitempty"`
}

// Signal represents a diagnostic signal with transparent scoring data
type Signal struct {
	Type        SignalType     `json:"type"`
	Severity    SignalSeverity `json:"severity"`
	Description string         `json:"description"`
	Data        map[string]any `json:"data,omitempty"`
}

// SignalType classifies the type of diagnostic signal
type SignalType string

const (
	SignalCredibility        SignalType = "credibility"         // Accurate-to-total ratio
	SignalMissingReference   SignalType = "missing_reference"   // No article matched any keyword
	SignalVerificationErrors SignalType = "verification_errors" // Verdicts that could not be produced
	SignalContradictions     SignalType = "contradictions"      // Claims contradicted by the reference
	SignalNoClaims           SignalType = "no_claims"           // Nothing verifiable was extracted
)

// SignalSeverity indicates the importance of the signal
type SignalSeverity string

const (
	SeverityInfo     SignalSeverity = "info"
	SeverityWarning  SignalSeverity = "warning"
	SeverityCritical SignalSeverity = "critical"
)

// ImageAnalysis is the structured description returned by the vision flow
type ImageAnalysis struct {
	Description       string   `json:"description"`
	ObjectsIdentified []string `json:"objects_identified,omitempty"`
	TextContent       string   `json:"text_content,omitempty"`
	NotableFeatures   []string `json:"notable_features,omitempty"`
	Context           string   `json:"context,omitempty"`
	Structured        bool     `json:"structured"` // False when the model reply was not JSON
}
