package extract

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/ppiankov/factcheck/internal/llm"
	"github.com/ppiankov/factcheck/internal/model"
	"github.com/ppiankov/factcheck/internal/retry"
)

// MaxFallbackKeywords bounds the heuristic result
const MaxFallbackKeywords = 5

var (
	capitalizedPattern = regexp.MustCompile(`\b[A-Z][a-z]+(?:\s+[A-Z][a-z]+)*\b`)
	yearPattern        = regexp.MustCompile(`\b\d{4}\b`)
	locationPattern    = regexp.MustCompile(`\b(?:di|in|at)\s+([A-Z][a-z]+(?:\s+[A-Z][a-z]+)*)\b`)
)

// KeywordExtractor finds encyclopedia search terms in a text
type KeywordExtractor struct {
	provider llm.Provider
	policy   retry.Policy
}

// NewKeywordExtractor creates a keyword extractor
func NewKeywordExtractor(provider llm.Provider, policy retry.Policy) *KeywordExtractor {
	return &KeywordExtractor{provider: provider, policy: policy}
}

type keywordReply struct {
	Keywords []any `json:"keywords"`
}

// Extract asks the model for search terms, in the order it gives them.
// When the model fails or returns nothing, the heuristic terms are returned
// with KeywordSourceHeuristic; the error then reports why the model path failed.
func (e *KeywordExtractor) Extract(ctx context.Context, text string, lang model.Language) ([]string, model.KeywordSource, error) {
	keywords, err := e.fromModel(ctx, text, lang)
	if err == nil && len(keywords) > 0 {
		return keywords, model.KeywordSourceLLM, nil
	}
	if ctx.Err() != nil {
		return nil, model.KeywordSourceHeuristic, ctx.Err()
	}

	if err == nil {
		err = fmt.Errorf("model returned no keywords")
	}
	zap.L().Info("using fallback keyword extraction", zap.Error(err))
	return FallbackKeywords(text), model.KeywordSourceHeuristic, err
}

func (e *KeywordExtractor) fromModel(ctx context.Context, text string, lang model.Language) ([]string, error) {
	if e.provider == nil {
		return nil, fmt.Errorf("no provider configured")
	}
	prompt, err := render(keywordPrompt, text, lang)
	if err != nil {
		return nil, err
	}

	var reply keywordReply
	if err := llm.CompleteJSON(ctx, e.provider, e.policy, "keyword extraction", llm.Request{Prompt: prompt}, &reply); err != nil {
		return nil, err
	}

	values := make([]string, 0, len(reply.Keywords))
	for _, k := range reply.Keywords {
		values = append(values, cast.ToString(k))
	}
	return dedupe(values), nil
}

type match struct {
	start int
	term  string
}

// FallbackKeywords extracts capitalized word sequences, four-digit years and
// "di/in/at <Place>" locations. Terms are ordered by their first position in
// text, deduplicated, and capped at MaxFallbackKeywords.
func FallbackKeywords(text string) []string {
	var matches []match
	for _, loc := range capitalizedPattern.FindAllStringIndex(text, -1) {
		matches = append(matches, match{loc[0], text[loc[0]:loc[1]]})
	}
	for _, loc := range yearPattern.FindAllStringIndex(text, -1) {
		matches = append(matches, match{loc[0], text[loc[0]:loc[1]]})
	}
	for _, loc := range locationPattern.FindAllStringSubmatchIndex(text, -1) {
		matches = append(matches, match{loc[2], text[loc[2]:loc[3]]})
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].start < matches[j].start })

	terms := make([]string, 0, len(matches))
	for _, m := range matches {
		terms = append(terms, m.term)
	}
	terms = dedupe(terms)
	if len(terms) > MaxFallbackKeywords {
		terms = terms[:MaxFallbackKeywords]
	}
	return terms
}

// dedupe trims values and drops blanks and repeats, keeping first occurrences
func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
