package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/factcheck/internal/extract"
	"github.com/ppiankov/factcheck/internal/highlight"
	"github.com/ppiankov/factcheck/internal/llm"
	"github.com/ppiankov/factcheck/internal/metrics"
	"github.com/ppiankov/factcheck/internal/model"
	"github.com/ppiankov/factcheck/internal/retry"
	"github.com/ppiankov/factcheck/internal/score"
	"github.com/ppiankov/factcheck/internal/util"
	"github.com/ppiankov/factcheck/internal/verify"
	"github.com/ppiankov/factcheck/internal/wikipedia"
)

var (
	// ErrEmptyInput is returned for blank text; nothing external is called
	ErrEmptyInput = errors.New("input text is empty")

	// ErrWordLimit is returned when the text exceeds the configured word limit
	ErrWordLimit = errors.New("input text exceeds word limit")

	// ErrUnsupportedLanguage is returned for a language outside the supported set
	ErrUnsupportedLanguage = errors.New("unsupported language")
)

// Resolver finds the reference article for a list of search terms
type Resolver interface {
	Resolve(ctx context.Context, lang model.Language, terms []string) (*model.Reference, error)
}

// CheckRequest is one fact-check. The language is carried per request.
type CheckRequest struct {
	Text         string         `json:"text"`
	Language     model.Language `json:"language"`
	CorrectTypos bool           `json:"correct_typos"`
}

// Pipeline orchestrates the complete fact-check process
type Pipeline struct {
	keywords    *extract.KeywordExtractor
	claims      *extract.ClaimExtractor
	typos       *extract.TypoCorrector
	resolver    Resolver
	verifier    *verify.Verifier
	highlighter *highlight.Highlighter
	scorer      *score.Scorer
	renderer    *Renderer
	maxWords    int
	metrics     *metrics.Collectors
	tracer      trace.Tracer
}

// New creates a pipeline from its collaborators. m may be nil.
func New(cfg *model.Config, provider llm.Provider, resolver Resolver, m *metrics.Collectors) *Pipeline {
	policy := retry.FromConfig(cfg.Retry)
	return &Pipeline{
		keywords:    extract.NewKeywordExtractor(provider, policy),
		claims:      extract.NewClaimExtractor(provider, policy),
		typos:       extract.NewTypoCorrector(provider, policy),
		resolver:    resolver,
		verifier:    verify.NewVerifier(provider, policy, cfg.Concurrency.VerifyWorkers, m),
		highlighter: highlight.New(cfg.Highlight.FuzzyThreshold),
		scorer:      score.NewScorer(),
		renderer:    NewRenderer(cfg.Output.IncludeFooter),
		maxWords:    cfg.Limits.MaxWords,
		metrics:     m,
		tracer:      otel.Tracer("github.com/ppiankov/factcheck/internal/pipeline"),
	}
}

// MaxWords returns the configured word limit
func (p *Pipeline) MaxWords() int { return p.maxWords }

// Validate checks a request without calling anything external and
// returns the trimmed text and the effective language.
func (p *Pipeline) Validate(req CheckRequest) (string, model.Language, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return "", "", ErrEmptyInput
	}
	if words := util.CountWords(text); p.maxWords > 0 && words > p.maxWords {
		return "", "", fmt.Errorf("%w: %d words (maximum %d)", ErrWordLimit, words, p.maxWords)
	}
	lang, err := model.ParseLanguage(string(req.Language))
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrUnsupportedLanguage, err)
	}
	return text, lang, nil
}

// CheckText runs a check with default options
func (p *Pipeline) CheckText(ctx context.Context, text string, lang model.Language) (*model.Report, error) {
	return p.Check(ctx, CheckRequest{Text: text, Language: lang})
}

// Check runs one fact-check. Only invalid input and cancellation are errors;
// every other failure degrades and is listed in Report.Warnings.
func (p *Pipeline) Check(ctx context.Context, req CheckRequest) (*model.Report, error) {
	start := time.Now()

	text, lang, err := p.Validate(req)
	if err != nil {
		p.observe("rejected", start)
		return nil, err
	}

	ctx, span := p.tracer.Start(ctx, "pipeline.check", trace.WithAttributes(
		attribute.String("language", string(lang)),
		attribute.Int("words", util.CountWords(text)),
	))
	defer span.End()

	report := &model.Report{
		ID:          uuid.NewString(),
		CreatedAt:   time.Now().UTC(),
		Language:    lang,
		InputText:   req.Text,
		CheckedText: text,
		WordCount:   util.CountWords(text),
	}
	log := zap.L().With(zap.String("report_id", report.ID), zap.String("language", string(lang)))

	// 1. Typo correction (optional)
	if req.CorrectTypos {
		corrected, changed, err := p.typos.Correct(ctx, text, lang)
		if err != nil {
			log.Warn("typo correction failed", zap.Error(err))
			report.Warnings = append(report.Warnings, fmt.Sprintf("Typo correction failed: %v", err))
		}
		report.CheckedText = corrected
		report.Corrected = changed
	}

	// 2. Keywords and claims are independent
	var (
		keywords []string
		source   model.KeywordSource
		kwErr    error
		claims   []model.Claim
		claimErr error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		keywords, source, kwErr = p.keywords.Extract(gctx, report.CheckedText, lang)
		return nil
	})
	g.Go(func() error {
		claims, claimErr = p.claims.Extract(gctx, report.CheckedText, lang)
		return nil
	})
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		p.observe("cancelled", start)
		return nil, err
	}

	report.Keywords = keywords
	report.KeywordSource = source
	if source == model.KeywordSourceHeuristic {
		log.Warn("keyword extraction fell back to heuristic", zap.Error(kwErr))
		report.Warnings = append(report.Warnings, "Using fallback keyword extraction method")
	}
	if claimErr != nil {
		log.Warn("claim extraction failed", zap.Error(claimErr))
		report.Warnings = append(report.Warnings, fmt.Sprintf("Error extracting claims: %v", claimErr))
	}
	if len(claims) == 0 {
		report.Warnings = append(report.Warnings, "No verifiable claims found in the text")
	}

	// 3. Reference in the request language
	ref, err := p.resolver.Resolve(ctx, lang, keywords)
	switch {
	case err == nil:
		report.Reference = ref
	case ctx.Err() != nil:
		p.observe("cancelled", start)
		return nil, ctx.Err()
	case errors.Is(err, wikipedia.ErrNoReference):
		report.Warnings = append(report.Warnings, fmt.Sprintf("No Wikipedia reference found in %s for keywords: %s",
			lang.EnglishName(), strings.Join(keywords, ", ")))
	default:
		log.Warn("reference resolution failed", zap.Error(err))
		report.Warnings = append(report.Warnings, fmt.Sprintf("Reference lookup failed: %v", err))
	}

	// 4. Verification fan-out over a fixed reference
	report.Claims = p.verifier.VerifyAll(ctx, claims, report.Reference)
	if err := ctx.Err(); err != nil {
		p.observe("cancelled", start)
		return nil, err
	}

	// 5. Highlight and score
	hl := p.highlighter.Highlight(report.CheckedText, report.Claims)
	report.HighlightedHTML = hl.HTML
	report.Unmatched = hl.Unmatched
	if n := len(hl.Unmatched); n > 0 {
		report.Warnings = append(report.Warnings, fmt.Sprintf("%d claims could not be located in the text", n))
	}
	report.Score = p.scorer.Calculate(report.Claims, report.Reference)

	span.SetAttributes(
		attribute.Int("claims", len(report.Claims)),
		attribute.Float64("credibility", report.Score.Credibility),
	)
	log.Info("check complete",
		zap.Int("claims", len(report.Claims)),
		zap.Float64("credibility", report.Score.Credibility),
		zap.Bool("reference", report.Reference != nil),
		zap.Duration("duration", time.Since(start)),
	)
	p.observe("ok", start)
	return report, nil
}

func (p *Pipeline) observe(outcome string, start time.Time) {
	if p.metrics == nil {
		return
	}
	p.metrics.Checks.WithLabelValues(outcome).Inc()
	if outcome == "ok" {
		p.metrics.CheckDuration.Observe(time.Since(start).Seconds())
	}
}

// RenderReport renders the report to the specified outputs
func (p *Pipeline) RenderReport(report *model.Report, jsonPath string, mdPath string, verbose bool) error {
	if jsonPath != "" {
		if err := p.renderer.RenderJSON(report, jsonPath); err != nil {
			return fmt.Errorf("render JSON: %w", err)
		}
		if verbose {
			fmt.Printf("✓ Wrote JSON: %s\n", jsonPath)
		}
	}

	if mdPath != "" {
		if err := p.renderer.RenderMarkdown(report, mdPath); err != nil {
			return fmt.Errorf("render markdown: %w", err)
		}
		if verbose {
			fmt.Printf("✓ Wrote Markdown: %s\n", mdPath)
		}
	}

	return nil
}

// Renderer returns the report renderer
func (p *Pipeline) Renderer() *Renderer { return p.renderer }
