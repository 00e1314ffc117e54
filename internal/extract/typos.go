package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/ppiankov/factcheck/internal/llm"
	"github.com/ppiankov/factcheck/internal/model"
	"github.com/ppiankov/factcheck/internal/retry"
)

// TypoCorrector fixes spelling and grammar before claims are extracted
type TypoCorrector struct {
	provider llm.Provider
	policy   retry.Policy
}

// NewTypoCorrector creates a typo corrector
func NewTypoCorrector(provider llm.Provider, policy retry.Policy) *TypoCorrector {
	return &TypoCorrector{provider: provider, policy: policy}
}

type typoReply struct {
	CorrectedText string `json:"corrected_text"`
}

// Correct returns the corrected text and whether it differs from the input.
// On failure or an empty reply the input is returned unchanged with the error.
func (c *TypoCorrector) Correct(ctx context.Context, text string, lang model.Language) (string, bool, error) {
	if c.provider == nil {
		return text, false, fmt.Errorf("typo correction: no provider configured")
	}
	prompt, err := render(typoPrompt, text, lang)
	if err != nil {
		return text, false, fmt.Errorf("typo correction: %w", err)
	}

	var reply typoReply
	if err := llm.CompleteJSON(ctx, c.provider, c.policy, "typo correction", llm.Request{Prompt: prompt}, &reply); err != nil {
		return text, false, err
	}

	corrected := strings.TrimSpace(reply.CorrectedText)
	if corrected == "" {
		return text, false, nil
	}
	return corrected, corrected != text, nil
}
