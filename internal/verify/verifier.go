// Package verify judges claims against the reference article of a request.
package verify

import (
	"context"
	"strings"
	"text/template"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ppiankov/factcheck/internal/llm"
	"github.com/ppiankov/factcheck/internal/metrics"
	"github.com/ppiankov/factcheck/internal/model"
	"github.com/ppiankov/factcheck/internal/retry"
	"github.com/ppiankov/factcheck/internal/worker"
)

const (
	// NoReferenceJustification is given to every claim when no article was resolved
	NoReferenceJustification = "No reference found"

	// FailedJustification is given when the model call or its reply failed
	FailedJustification = "Processing verification failed"

	// DefaultWorkers bounds concurrent verifications when none is configured
	DefaultWorkers = 4
)

var verifyPrompt = template.Must(template.New("verify").Parse(`Verify the following claim against the Wikipedia content:

Claim: "{{.Claim}}"

Wikipedia Article: {{.Title}}
Wikipedia Summary: {{.Summary}}
Wikipedia Content: {{.Content}}

Determine if the claim is:
- Accurate: Fully supported by Wikipedia
- Inaccurate: Contradicted by Wikipedia
- Subjective: Cannot be definitively verified

Write the justification in {{.Language}}.

Respond in JSON format:
{
    "status": "accurate/inaccurate/subjective",
    "justification": "Detailed explanation with specific references",
    "relevant_wiki_quote": "Relevant quote from Wikipedia",
    "source_url": "{{.URL}}"
}`))

// Verdict is the judgment attached to one claim
type Verdict struct {
	Status        model.Status
	Justification string
	Quote         string
	SourceURL     string
}

// Apply copies the verdict onto a claim
func (v Verdict) Apply(c *model.Claim) {
	c.Status = v.Status
	c.Justification = v.Justification
	c.Quote = v.Quote
	c.SourceURL = v.SourceURL
}

// Verifier asks the model whether each claim is supported by the reference
type Verifier struct {
	provider llm.Provider
	policy   retry.Policy
	workers  int
	metrics  *metrics.Collectors
	validate *validator.Validate
	tracer   trace.Tracer
}

// NewVerifier creates a verifier running at most workers verifications at once
func NewVerifier(provider llm.Provider, policy retry.Policy, workers int, m *metrics.Collectors) *Verifier {
	if workers < 1 {
		workers = DefaultWorkers
	}
	return &Verifier{
		provider: provider,
		policy:   policy,
		workers:  workers,
		metrics:  m,
		validate: validator.New(),
		tracer:   otel.Tracer("github.com/ppiankov/factcheck/internal/verify"),
	}
}

type verdictReply struct {
	Status        string `json:"status" validate:"required,oneof=accurate inaccurate subjective"`
	Justification string `json:"justification"`
	Quote         string `json:"relevant_wiki_quote"`
	SourceURL     string `json:"source_url"`
}

// Verify judges one claim. A nil reference yields an error verdict without
// calling the model; any call or reply failure yields an error verdict
// pointing at the reference URL.
func (v *Verifier) Verify(ctx context.Context, claim string, ref *model.Reference) Verdict {
	verdict := v.verify(ctx, claim, ref)
	if v.metrics != nil {
		v.metrics.ClaimVerdicts.WithLabelValues(string(verdict.Status)).Inc()
	}
	return verdict
}

func (v *Verifier) verify(ctx context.Context, claim string, ref *model.Reference) Verdict {
	if ref == nil {
		return Verdict{Status: model.StatusError, Justification: NoReferenceJustification}
	}
	failed := Verdict{Status: model.StatusError, Justification: FailedJustification, SourceURL: ref.URL}

	ctx, span := v.tracer.Start(ctx, "verify.claim", trace.WithAttributes(
		attribute.String("reference.title", ref.Title),
		attribute.Int("claim.length", len(claim)),
	))
	defer span.End()

	var b strings.Builder
	err := verifyPrompt.Execute(&b, map[string]string{
		"Claim":    claim,
		"Title":    ref.Title,
		"Summary":  ref.Summary,
		"Content":  ref.Content,
		"URL":      ref.URL,
		"Language": ref.Language.EnglishName(),
	})
	if err != nil {
		span.RecordError(err)
		return failed
	}

	var reply verdictReply
	err = llm.CompleteJSON(ctx, v.provider, v.policy, "claim verification", llm.Request{Prompt: b.String()}, &reply)
	if err == nil {
		reply.Status = strings.ToLower(strings.TrimSpace(reply.Status))
		err = v.validate.Struct(reply)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "verification failed")
		zap.L().Warn("claim verification failed", zap.String("claim", claim), zap.Error(err))
		return failed
	}

	source := strings.TrimSpace(reply.SourceURL)
	if source != ref.URL {
		if source != "" {
			zap.L().Debug("model changed source url", zap.String("got", source), zap.String("reference", ref.URL))
		}
		source = ref.URL
	}

	status := model.ParseStatus(reply.Status)
	span.SetAttributes(attribute.String("claim.status", string(status)))
	return Verdict{
		Status:        status,
		Justification: strings.TrimSpace(reply.Justification),
		Quote:         strings.TrimSpace(reply.Quote),
		SourceURL:     source,
	}
}

// VerifyAll judges every claim against the same reference and returns the
// claims with verdicts attached, in input order. Claims not reached before
// ctx ends get an error verdict.
func (v *Verifier) VerifyAll(ctx context.Context, claims []model.Claim, ref *model.Reference) []model.Claim {
	out := make([]model.Claim, len(claims))
	copy(out, claims)
	if len(out) == 0 {
		return out
	}

	if ref == nil {
		for i := range out {
			v.Verify(ctx, out[i].Text, nil).Apply(&out[i])
		}
		return out
	}

	for i := range out {
		Verdict{Status: model.StatusError, Justification: FailedJustification, SourceURL: ref.URL}.Apply(&out[i])
	}

	worker.Run(ctx, v.workers, len(out), func(ctx context.Context, i int) error {
		v.Verify(ctx, out[i].Text, ref).Apply(&out[i])
		return nil
	})
	return out
}
