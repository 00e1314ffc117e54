package pipeline

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/ppiankov/factcheck/internal/cache"
	"github.com/ppiankov/factcheck/internal/llm"
	"github.com/ppiankov/factcheck/internal/metrics"
	"github.com/ppiankov/factcheck/internal/model"
	"github.com/ppiankov/factcheck/internal/retry"
	"github.com/ppiankov/factcheck/internal/util"
	"github.com/ppiankov/factcheck/internal/wikipedia"
	"github.com/ppiankov/factcheck/internal/worker"
)

// Build wires the production pipeline: the configured text provider behind
// the middleware chain, and a cached, rate-limited Wikipedia resolver.
// A provider that cannot be created (e.g. missing credentials) is an error.
func Build(ctx context.Context, cfg *model.Config, m *metrics.Collectors) (*Pipeline, error) {
	provider, err := llm.NewProvider(ctx, llm.ConfigFromModel(cfg.LLM, cfg.HTTP))
	if err != nil {
		return nil, fmt.Errorf("llm provider: %w", err)
	}
	provider = llm.Wrap(provider, cfg, m)

	resolver, err := NewResolver(cfg, m)
	if err != nil {
		return nil, err
	}
	return New(cfg, provider, resolver, m), nil
}

// NewResolver builds the Wikipedia resolver with its cache and limiter
func NewResolver(cfg *model.Config, m *metrics.Collectors) (*wikipedia.Resolver, error) {
	pages, err := cache.New(cfg.Cache)
	if err != nil {
		zap.L().Warn("page cache unavailable, continuing without it", zap.Error(err))
		pages = cache.Nop{}
	}

	client := wikipedia.NewClient(cfg.Wikipedia,
		wikipedia.WithHTTPClient(&http.Client{
			Timeout:   cfg.Wikipedia.Timeout,
			Transport: util.NewTransport(cfg.HTTP.HTTPProxy, cfg.HTTP.HTTPSProxy, cfg.HTTP.NoProxy),
		}),
		wikipedia.WithLimiter(worker.NewLimiter(cfg.RateLimiting.WikipediaRequestsPerSecond, cfg.RateLimiting.WikipediaBurst)),
		wikipedia.WithCache(pages, 0),
		wikipedia.WithRetryPolicy(retry.FromConfig(cfg.Retry)),
		wikipedia.WithMetrics(m),
	)
	return wikipedia.NewResolver(client, cfg.Wikipedia.ContentChars, m), nil
}
