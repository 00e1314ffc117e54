package verify

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/factcheck/internal/llm"
	"github.com/ppiankov/factcheck/internal/llm/llmtest"
	"github.com/ppiankov/factcheck/internal/metrics"
	"github.com/ppiankov/factcheck/internal/model"
	"github.com/ppiankov/factcheck/internal/retry"
)

var fastPolicy = retry.Policy{MaxAttempts: 2}

var jakarta = &model.Reference{
	Title:    "Jakarta",
	Summary:  "Jakarta adalah ibu kota Indonesia.",
	Content:  "Jakarta adalah ibu kota Indonesia. Kota ini didirikan pada tahun 1527 sebagai Jayakarta.",
	URL:      "https://id.wikipedia.org/wiki/Jakarta",
	Language: model.LangIndonesian,
}

func TestVerify_NilReferenceMakesNoCall(t *testing.T) {
	stub := llmtest.Text(`{"status": "accurate"}`)
	v := NewVerifier(stub, fastPolicy, 2, nil)

	got := v.Verify(context.Background(), "Jakarta didirikan pada tahun 1531", nil)

	assert.Equal(t, model.StatusError, got.Status)
	assert.Equal(t, NoReferenceJustification, got.Justification)
	assert.Empty(t, got.SourceURL)
	assert.Zero(t, stub.Calls())
}

func TestVerify_Verdicts(t *testing.T) {
	tests := []struct {
		name   string
		reply  string
		status model.Status
		quote  string
	}{
		{
			name:   "accurate",
			reply:  `{"status": "accurate", "justification": "Didirikan 1527.", "relevant_wiki_quote": "didirikan pada tahun 1527", "source_url": "https://id.wikipedia.org/wiki/Jakarta"}`,
			status: model.StatusAccurate,
			quote:  "didirikan pada tahun 1527",
		},
		{
			name:   "inaccurate in capitals",
			reply:  `{"status": " INACCURATE ", "justification": "Artikel menyebut 1527, bukan 1531."}`,
			status: model.StatusInaccurate,
		},
		{
			name:   "subjective",
			reply:  `{"status": "subjective", "justification": "Opini."}`,
			status: model.StatusSubjective,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := llmtest.Text(tt.reply)
			got := NewVerifier(stub, fastPolicy, 1, nil).Verify(context.Background(), "Jakarta didirikan pada tahun 1531", jakarta)

			assert.Equal(t, tt.status, got.Status)
			assert.NotEmpty(t, got.Justification)
			assert.Equal(t, tt.quote, got.Quote)
			assert.Equal(t, jakarta.URL, got.SourceURL)
			assert.Equal(t, 1, stub.Calls())

			req := stub.Requests()[0]
			assert.True(t, req.JSON)
			assert.Contains(t, req.Prompt, `Claim: "Jakarta didirikan pada tahun 1531"`)
			assert.Contains(t, req.Prompt, jakarta.Content)
			assert.Contains(t, req.Prompt, "Indonesian")
		})
	}
}

func TestVerify_FailuresBecomeErrorVerdict(t *testing.T) {
	tests := []struct {
		name  string
		reply llmtest.Reply
	}{
		{"unknown status", llmtest.Reply{Content: `{"status": "mostly true", "justification": "x"}`}},
		{"missing status", llmtest.Reply{Content: `{"justification": "x"}`}},
		{"not json", llmtest.Reply{Content: "The claim is accurate."}},
		{"provider error", llmtest.Reply{Err: &llm.ProviderError{Provider: "stub", StatusCode: 500, Message: "boom"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewVerifier(llmtest.New(tt.reply), fastPolicy, 1, nil).Verify(context.Background(), "claim", jakarta)

			assert.Equal(t, model.StatusError, got.Status)
			assert.Equal(t, FailedJustification, got.Justification)
			assert.Equal(t, jakarta.URL, got.SourceURL)
		})
	}
}

func TestVerify_SourceURLPinnedToReference(t *testing.T) {
	stub := llmtest.Text(`{"status": "accurate", "justification": "ok", "source_url": "https://example.com/made-up"}`)

	got := NewVerifier(stub, fastPolicy, 1, nil).Verify(context.Background(), "claim", jakarta)
	assert.Equal(t, jakarta.URL, got.SourceURL)
}

func TestVerifyAll_PreservesOrder(t *testing.T) {
	stub := &llmtest.Stub{Respond: func(req llm.Request) (string, error) {
		switch {
		case strings.Contains(req.Prompt, `Claim: "Jakarta didirikan pada tahun 1531"`):
			time.Sleep(20 * time.Millisecond)
			return `{"status": "inaccurate", "justification": "1527"}`, nil
		case strings.Contains(req.Prompt, `Claim: "Jakarta adalah ibu kota Indonesia"`):
			return `{"status": "accurate", "justification": "ya"}`, nil
		default:
			return `{"status": "subjective", "justification": "?"}`, nil
		}
	}}
	v := NewVerifier(stub, fastPolicy, 3, nil)

	claims := []model.Claim{
		{Text: "Jakarta didirikan pada tahun 1531", Topic: "Jakarta"},
		{Text: "Jakarta adalah ibu kota Indonesia", Topic: "Jakarta"},
		{Text: "Jakarta adalah kota terindah", Topic: "Jakarta"},
	}
	got := v.VerifyAll(context.Background(), claims, jakarta)

	require.Len(t, got, 3)
	assert.Equal(t, model.StatusInaccurate, got[0].Status)
	assert.Equal(t, model.StatusAccurate, got[1].Status)
	assert.Equal(t, model.StatusSubjective, got[2].Status)
	assert.Equal(t, "Jakarta", got[0].Topic)
	assert.Empty(t, claims[0].Status, "input claims are not mutated")
}

func TestVerifyAll_BoundedConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	stub := &llmtest.Stub{Respond: func(req llm.Request) (string, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		return `{"status": "accurate", "justification": "ok"}`, nil
	}}
	v := NewVerifier(stub, fastPolicy, 2, nil)

	claims := make([]model.Claim, 8)
	for i := range claims {
		claims[i] = model.Claim{Text: "claim"}
	}
	got := v.VerifyAll(context.Background(), claims, jakarta)

	assert.Equal(t, 8, stub.Calls())
	assert.LessOrEqual(t, peak.Load(), int32(2))
	for _, c := range got {
		assert.Equal(t, model.StatusAccurate, c.Status)
	}
}

func TestVerifyAll_NoReference(t *testing.T) {
	stub := llmtest.Text(`{"status": "accurate"}`)
	m := metrics.NewNop()
	v := NewVerifier(stub, fastPolicy, 2, m)

	got := v.VerifyAll(context.Background(), []model.Claim{{Text: "a"}, {Text: "b"}}, nil)

	for _, c := range got {
		assert.Equal(t, model.StatusError, c.Status)
		assert.Equal(t, NoReferenceJustification, c.Justification)
	}
	assert.Zero(t, stub.Calls())
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ClaimVerdicts.WithLabelValues("error")))
}

func TestVerifyAll_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got := NewVerifier(llmtest.Text(`{"status": "accurate"}`), fastPolicy, 2, nil).
		VerifyAll(ctx, []model.Claim{{Text: "a"}, {Text: "b"}}, jakarta)

	for _, c := range got {
		assert.Equal(t, model.StatusError, c.Status)
		assert.Equal(t, jakarta.URL, c.SourceURL)
	}
}

func TestVerifyAll_Empty(t *testing.T) {
	got := NewVerifier(nil, fastPolicy, 0, nil).VerifyAll(context.Background(), nil, jakarta)
	assert.Empty(t, got)
}
