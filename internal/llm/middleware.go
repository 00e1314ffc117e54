package llm

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/ppiankov/factcheck/internal/metrics"
	"github.com/ppiankov/factcheck/internal/model"
	"github.com/ppiankov/factcheck/internal/retry"
)

// Middleware wraps a Provider with additional behavior
type Middleware func(Provider) Provider

// Chain applies middlewares so that the first one is outermost
func Chain(p Provider, mws ...Middleware) Provider {
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] != nil {
			p = mws[i](p)
		}
	}
	return p
}

// Wrap applies the standard middleware stack from configuration
func Wrap(p Provider, cfg *model.Config, m *metrics.Collectors) Provider {
	mws := []Middleware{TracingMiddleware()}
	if m != nil {
		mws = append(mws, MetricsMiddleware(m))
	}
	if cfg.RateLimiting.LLMRequestsPerSecond > 0 {
		mws = append(mws, RateLimitMiddleware(rate.Limit(cfg.RateLimiting.LLMRequestsPerSecond), cfg.RateLimiting.LLMBurst))
	}
	if cfg.LLM.CircuitBreaker.MaxFailures > 0 {
		mws = append(mws, CircuitBreakerMiddleware(cfg.LLM.CircuitBreaker.MaxFailures, cfg.LLM.CircuitBreaker.Cooldown))
	}
	return Chain(p, mws...)
}

// wrapped forwards Name and IsAvailable to the inner provider
type wrapped struct {
	next     Provider
	complete func(ctx context.Context, req Request) (*Response, error)
}

func (w *wrapped) Name() string { return w.next.Name() }

func (w *wrapped) IsAvailable(ctx context.Context) bool { return w.next.IsAvailable(ctx) }

func (w *wrapped) Complete(ctx context.Context, req Request) (*Response, error) {
	return w.complete(ctx, req)
}

// CircuitBreakerState represents the current state of a circuit breaker
type CircuitBreakerState int

const (
	StateClosed CircuitBreakerState = iota
	StateOpen
	StateHalfOpen
)

// CircuitBreaker opens after maxFailures consecutive provider failures and
// rejects calls until cooldown has elapsed, then lets one probe through.
// Errors that are not retryable (bad request, payload too large) describe the
// request rather than the provider and leave the breaker untouched.
type CircuitBreaker struct {
	mu           sync.Mutex
	state        CircuitBreakerState
	probing      bool
	failureCount int
	maxFailures  int
	cooldown     time.Duration
	lastFailure  time.Time
	now          func() time.Time
}

// NewCircuitBreaker creates a closed circuit breaker
func NewCircuitBreaker(maxFailures int, cooldown time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		state:       StateClosed,
		maxFailures: maxFailures,
		cooldown:    cooldown,
		now:         time.Now,
	}
}

// allow reports whether a call may proceed and whether it is the half-open probe
func (cb *CircuitBreaker) allow() (ok, probe bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.lastFailure) < cb.cooldown {
			return false, false
		}
		cb.state = StateHalfOpen
		cb.probing = true
		return true, true
	case StateHalfOpen:
		if cb.probing {
			return false, false
		}
		cb.probing = true
		return true, true
	default:
		return true, false
	}
}

func (cb *CircuitBreaker) record(err error, probe bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if probe {
		cb.probing = false
	}
	if err == nil {
		if probe || cb.state == StateClosed {
			cb.failureCount = 0
			cb.state = StateClosed
		}
		return
	}
	// cancellation and request-shaped errors say nothing about provider health
	if !retry.IsRetryable(err) {
		return
	}

	cb.failureCount++
	cb.lastFailure = cb.now()
	if probe || cb.failureCount >= cb.maxFailures {
		cb.state = StateOpen
	}
}

// Call executes fn through the breaker
func (cb *CircuitBreaker) Call(fn func() error) error {
	ok, probe := cb.allow()
	if !ok {
		return ErrCircuitOpen
	}
	err := fn()
	cb.record(err, probe)
	return err
}

// State returns the current circuit breaker state
func (cb *CircuitBreaker) State() CircuitBreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// CircuitBreakerMiddleware stops calling the provider after repeated failures
func CircuitBreakerMiddleware(maxFailures int, cooldown time.Duration) Middleware {
	cb := NewCircuitBreaker(maxFailures, cooldown)
	return func(next Provider) Provider {
		return &wrapped{next: next, complete: func(ctx context.Context, req Request) (*Response, error) {
			var resp *Response
			err := cb.Call(func() error {
				var err error
				resp, err = next.Complete(ctx, req)
				return err
			})
			return resp, err
		}}
	}
}

// RateLimitMiddleware paces requests with a token bucket
func RateLimitMiddleware(limit rate.Limit, burst int) Middleware {
	if burst < 1 {
		burst = 1
	}
	limiter := rate.NewLimiter(limit, burst)
	return func(next Provider) Provider {
		return &wrapped{next: next, complete: func(ctx context.Context, req Request) (*Response, error) {
			if err := limiter.Wait(ctx); err != nil {
				return nil, err
			}
			return next.Complete(ctx, req)
		}}
	}
}

// MetricsMiddleware records request counts, latency and token usage
func MetricsMiddleware(m *metrics.Collectors) Middleware {
	return func(next Provider) Provider {
		return &wrapped{next: next, complete: func(ctx context.Context, req Request) (*Response, error) {
			start := time.Now()
			resp, err := next.Complete(ctx, req)

			modelName := req.Model
			if resp != nil && resp.Model != "" {
				modelName = resp.Model
			}
			status := "success"
			if err != nil {
				status = "error"
			}

			m.LLMRequests.WithLabelValues(next.Name(), modelName, status).Inc()
			m.LLMLatency.WithLabelValues(next.Name(), modelName).Observe(time.Since(start).Seconds())
			if resp != nil {
				m.LLMTokens.WithLabelValues(next.Name(), modelName, "input").Add(float64(resp.TokensIn))
				m.LLMTokens.WithLabelValues(next.Name(), modelName, "output").Add(float64(resp.TokensOut))
			}
			return resp, err
		}}
	}
}

// TracingMiddleware wraps each request in an OpenTelemetry span
func TracingMiddleware() Middleware {
	tracer := otel.Tracer("github.com/ppiankov/factcheck/internal/llm")
	return func(next Provider) Provider {
		return &wrapped{next: next, complete: func(ctx context.Context, req Request) (*Response, error) {
			ctx, span := tracer.Start(ctx, "llm.complete",
				trace.WithAttributes(
					attribute.String("llm.provider", next.Name()),
					attribute.String("llm.model", req.Model),
					attribute.Int("llm.prompt.length", len(req.Prompt)),
					attribute.Int("llm.images", len(req.Images)),
					attribute.Bool("llm.json", req.JSON),
				),
			)
			defer span.End()

			resp, err := next.Complete(ctx, req)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return nil, err
			}
			span.SetAttributes(
				attribute.Int("llm.tokens.input", resp.TokensIn),
				attribute.Int("llm.tokens.output", resp.TokensOut),
			)
			return resp, nil
		}}
	}
}
