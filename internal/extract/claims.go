package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/ppiankov/factcheck/internal/llm"
	"github.com/ppiankov/factcheck/internal/model"
	"github.com/ppiankov/factcheck/internal/retry"
)

// ClaimExtractor asks the model for the verifiable statements in a text
type ClaimExtractor struct {
	provider llm.Provider
	policy   retry.Policy
	validate *validator.Validate
}

// NewClaimExtractor creates a new claim extractor
func NewClaimExtractor(provider llm.Provider, policy retry.Policy) *ClaimExtractor {
	return &ClaimExtractor{
		provider: provider,
		policy:   policy,
		validate: validator.New(),
	}
}

type claimReply struct {
	Claims []any `json:"claims"`
}

type claimItem struct {
	Text  string `validate:"required,max=2000"`
	Topic string `validate:"max=500"`
}

// Extract returns the claims found in text.
// On a failed call or unusable reply it returns an empty list and the error;
// callers treat that as "no verifiable claims".
func (e *ClaimExtractor) Extract(ctx context.Context, text string, lang model.Language) ([]model.Claim, error) {
	if e.provider == nil {
		return []model.Claim{}, fmt.Errorf("claim extraction: no provider configured")
	}
	prompt, err := render(claimPrompt, text, lang)
	if err != nil {
		return []model.Claim{}, fmt.Errorf("claim extraction: %w", err)
	}

	var reply claimReply
	if err := llm.CompleteJSON(ctx, e.provider, e.policy, "claim extraction", llm.Request{Prompt: prompt}, &reply); err != nil {
		return []model.Claim{}, err
	}

	claims := make([]model.Claim, 0, len(reply.Claims))
	seen := make(map[string]bool)
	for _, raw := range reply.Claims {
		item := toClaimItem(raw)
		if err := e.validate.Struct(item); err != nil {
			zap.L().Debug("dropping malformed claim", zap.Any("claim", raw), zap.Error(err))
			continue
		}
		if seen[item.Text] {
			continue
		}
		seen[item.Text] = true
		claims = append(claims, model.Claim{Text: item.Text, Topic: item.Topic})
	}
	return claims, nil
}

// toClaimItem accepts {"claim","topic"} objects and bare strings
func toClaimItem(raw any) claimItem {
	switch v := raw.(type) {
	case string:
		return claimItem{Text: strings.TrimSpace(v)}
	case map[string]any:
		text := cast.ToString(v["claim"])
		if text == "" {
			text = cast.ToString(v["text"])
		}
		return claimItem{
			Text:  strings.TrimSpace(text),
			Topic: strings.TrimSpace(cast.ToString(v["topic"])),
		}
	default:
		return claimItem{}
	}
}
