package llm

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"golang.org/x/time/rate"

	"github.com/ppiankov/factcheck/internal/metrics"
	"github.com/ppiankov/factcheck/internal/model"
)

type fakeProvider struct {
	calls int
	err   error
	reply string
}

func (f *fakeProvider) Name() string { return "fake" }
func (f *fakeProvider) IsAvailable(ctx context.Context) bool { return true }
func (f *fakeProvider) Complete(ctx context.Context, req Request) (*Response, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &Response{Content: f.reply, Model: "fake-1", TokensIn: 3, TokensOut: 2}, nil
}

func TestCircuitBreaker_OpensAndRecovers(t *testing.T) {
	now := time.Unix(0, 0)
	cb := NewCircuitBreaker(2, time.Minute)
	cb.now = func() time.Time { return now }

	boom := errors.New("boom")
	_ = cb.Call(func() error { return boom })
	if cb.State() != StateClosed {
		t.Fatal("Expected closed after one failure")
	}
	_ = cb.Call(func() error { return boom })
	if cb.State() != StateOpen {
		t.Fatal("Expected open after two failures")
	}

	called := false
	if err := cb.Call(func() error { called = true; return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("Expected ErrCircuitOpen, got %v", err)
	}
	if called {
		t.Fatal("Expected call to be rejected while open")
	}

	now = now.Add(2 * time.Minute)
	if err := cb.Call(func() error { return nil }); err != nil {
		t.Fatalf("Expected probe to pass, got %v", err)
	}
	if cb.State() != StateClosed {
		t.Fatal("Expected closed after successful probe")
	}
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	now := time.Unix(0, 0)
	cb := NewCircuitBreaker(1, time.Second)
	cb.now = func() time.Time { return now }

	_ = cb.Call(func() error { return errors.New("x") })
	now = now.Add(2 * time.Second)
	_ = cb.Call(func() error { return errors.New("still down") })
	if cb.State() != StateOpen {
		t.Fatal("Expected failed probe to reopen the circuit")
	}
}

func TestCircuitBreaker_IgnoresCancellation(t *testing.T) {
	cb := NewCircuitBreaker(1, time.Minute)
	_ = cb.Call(func() error { return context.Canceled })
	if cb.State() != StateClosed {
		t.Fatal("Expected cancellation not to trip the breaker")
	}
}

func TestCircuitBreaker_IgnoresRequestErrors(t *testing.T) {
	cb := NewCircuitBreaker(1, time.Minute)

	for _, status := range []int{http.StatusBadRequest, http.StatusRequestEntityTooLarge} {
		_ = cb.Call(func() error { return &ProviderError{Provider: "fake", StatusCode: status} })
	}
	if cb.State() != StateClosed {
		t.Fatal("Expected client errors not to trip the breaker")
	}

	_ = cb.Call(func() error { return &ProviderError{Provider: "fake", StatusCode: http.StatusServiceUnavailable} })
	if cb.State() != StateOpen {
		t.Fatal("Expected a server error to trip the breaker")
	}
}

func TestCircuitBreaker_HalfOpenAdmitsOneCall(t *testing.T) {
	now := time.Unix(0, 0)
	cb := NewCircuitBreaker(1, time.Second)
	cb.now = func() time.Time { return now }

	_ = cb.Call(func() error { return errors.New("down") })
	now = now.Add(2 * time.Second)

	entered := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- cb.Call(func() error {
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered

	for i := 0; i < 3; i++ {
		if err := cb.Call(func() error { return nil }); !errors.Is(err, ErrCircuitOpen) {
			t.Fatalf("call %d while probing: expected ErrCircuitOpen, got %v", i, err)
		}
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("probe failed: %v", err)
	}
	if cb.State() != StateClosed {
		t.Fatal("Expected closed after successful probe")
	}
	if err := cb.Call(func() error { return nil }); err != nil {
		t.Fatalf("Expected calls to pass once closed, got %v", err)
	}
}

func TestCircuitBreaker_RequestErrorReleasesProbe(t *testing.T) {
	now := time.Unix(0, 0)
	cb := NewCircuitBreaker(1, time.Second)
	cb.now = func() time.Time { return now }

	_ = cb.Call(func() error { return errors.New("down") })
	now = now.Add(2 * time.Second)

	_ = cb.Call(func() error { return &ProviderError{Provider: "fake", StatusCode: http.StatusBadRequest} })
	if cb.State() != StateHalfOpen {
		t.Fatalf("Expected half-open after an inconclusive probe, got %v", cb.State())
	}
	if err := cb.Call(func() error { return nil }); err != nil {
		t.Fatalf("Expected the next probe to be admitted, got %v", err)
	}
	if cb.State() != StateClosed {
		t.Fatal("Expected closed after successful probe")
	}
}

func TestChain_Order(t *testing.T) {
	var order []string
	mw := func(name string) Middleware {
		return func(next Provider) Provider {
			return &wrapped{next: next, complete: func(ctx context.Context, req Request) (*Response, error) {
				order = append(order, name)
				return next.Complete(ctx, req)
			}}
		}
	}

	p := Chain(&fakeProvider{reply: "ok"}, mw("outer"), nil, mw("inner"))
	if _, err := p.Complete(context.Background(), Request{}); err != nil {
		t.Fatal(err)
	}
	if len(order) != 2 || order[0] != "outer" || order[1] != "inner" {
		t.Errorf("Unexpected order: %v", order)
	}
	if p.Name() != "fake" {
		t.Errorf("Expected wrapped name fake, got %s", p.Name())
	}
}

func TestMetricsMiddleware(t *testing.T) {
	m := metrics.NewNop()
	inner := &fakeProvider{reply: "ok"}
	p := MetricsMiddleware(m)(inner)

	if _, err := p.Complete(context.Background(), Request{}); err != nil {
		t.Fatal(err)
	}
	inner.err = errors.New("fail")
	_, _ = p.Complete(context.Background(), Request{Model: "fake-1"})

	if v := testutil.ToFloat64(m.LLMRequests.WithLabelValues("fake", "fake-1", "success")); v != 1 {
		t.Errorf("Expected 1 success, got %v", v)
	}
	if v := testutil.ToFloat64(m.LLMRequests.WithLabelValues("fake", "fake-1", "error")); v != 1 {
		t.Errorf("Expected 1 error, got %v", v)
	}
	if v := testutil.ToFloat64(m.LLMTokens.WithLabelValues("fake", "fake-1", "input")); v != 3 {
		t.Errorf("Expected 3 input tokens, got %v", v)
	}
}

func TestRateLimitMiddleware_RespectsContext(t *testing.T) {
	p := RateLimitMiddleware(rate.Every(time.Hour), 1)(&fakeProvider{reply: "ok"})

	if _, err := p.Complete(context.Background(), Request{}); err != nil {
		t.Fatalf("First call should use the burst token: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := p.Complete(ctx, Request{}); err == nil {
		t.Fatal("Expected second call to fail waiting for a token")
	}
}

func TestTracingMiddleware_PassesThrough(t *testing.T) {
	inner := &fakeProvider{err: errors.New("down")}
	p := TracingMiddleware()(inner)
	if _, err := p.Complete(context.Background(), Request{}); err == nil {
		t.Fatal("Expected error to propagate")
	}
	if inner.calls != 1 {
		t.Errorf("Expected 1 call, got %d", inner.calls)
	}
}

func TestWrap_CircuitBreakerFromConfig(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.LLM.CircuitBreaker.MaxFailures = 1
	cfg.LLM.CircuitBreaker.Cooldown = time.Hour

	inner := &fakeProvider{err: errors.New("down")}
	p := Wrap(inner, cfg, nil)

	_, _ = p.Complete(context.Background(), Request{})
	_, err := p.Complete(context.Background(), Request{})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("Expected ErrCircuitOpen, got %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("Expected provider to be called once, got %d", inner.calls)
	}
}
