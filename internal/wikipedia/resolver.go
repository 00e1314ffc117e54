package wikipedia

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/ppiankov/factcheck/internal/metrics"
	"github.com/ppiankov/factcheck/internal/model"
	"github.com/ppiankov/factcheck/internal/util"
)

// Resolver picks the reference article for a request from its keywords
type Resolver struct {
	fetcher      Fetcher
	contentChars int
	metrics      *metrics.Collectors
}

// NewResolver creates a resolver; contentChars bounds Reference.Content in runes
func NewResolver(fetcher Fetcher, contentChars int, m *metrics.Collectors) *Resolver {
	return &Resolver{fetcher: fetcher, contentChars: contentChars, metrics: m}
}

// Resolve tries each term in order and returns the first article found.
// A disambiguation page is followed once, to its first option.
// Lookup failures move on to the next term; only cancellation aborts.
func (r *Resolver) Resolve(ctx context.Context, lang model.Language, terms []string) (*model.Reference, error) {
	log := zap.L().With(zap.String("language", string(lang)))

	for _, term := range terms {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}

		page, err := r.fetcher.Page(ctx, lang, term)

		var dis *DisambiguationError
		if errors.As(err, &dis) {
			r.observe(lang, "disambiguation")
			if len(dis.Options) == 0 {
				continue
			}
			log.Debug("following disambiguation", zap.String("term", term), zap.String("option", dis.Options[0]))
			page, err = r.fetcher.Page(ctx, lang, dis.Options[0])
			if errors.As(err, &dis) {
				r.observe(lang, "disambiguation")
				continue
			}
		}

		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			if errors.Is(err, ErrPageNotFound) {
				r.observe(lang, "not_found")
			} else {
				r.observe(lang, "error")
				log.Warn("wikipedia lookup failed", zap.String("term", term), zap.Error(err))
			}
			continue
		}

		r.observe(lang, "found")
		return &model.Reference{
			Title:    page.Title,
			Summary:  page.Summary,
			Content:  util.TruncateRunes(page.Content, r.contentChars),
			URL:      page.URL,
			Language: lang,
			Term:     term,
		}, nil
	}

	return nil, ErrNoReference
}

func (r *Resolver) observe(lang model.Language, outcome string) {
	if r.metrics != nil {
		r.metrics.WikipediaLookups.WithLabelValues(string(lang), outcome).Inc()
	}
}
