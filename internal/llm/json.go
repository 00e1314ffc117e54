package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ppiankov/factcheck/internal/retry"
)

// DecodeJSON parses the first JSON object in a model reply into v.
// Markdown code fences and surrounding prose are ignored.
func DecodeJSON(reply string, v any) error {
	s := strings.TrimSpace(reply)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```JSON")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
		s = strings.TrimSpace(s)
	}

	if err := json.Unmarshal([]byte(s), v); err == nil {
		return nil
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ErrNoJSON
	}
	if err := json.Unmarshal([]byte(s[start:end+1]), v); err != nil {
		return fmt.Errorf("decode model JSON: %w", err)
	}
	return nil
}

// CompleteText calls the provider under the retry policy and returns the reply text
func CompleteText(ctx context.Context, p Provider, policy retry.Policy, op string, req Request) (string, error) {
	var content string
	err := retry.Do(ctx, policy, op, func(ctx context.Context) error {
		resp, err := p.Complete(ctx, req)
		if err != nil {
			return classify(err)
		}
		content = resp.Content
		return nil
	})
	return content, err
}

// CompleteJSON calls the provider under the retry policy and decodes the reply into out.
// A reply that cannot be decoded counts as a failed attempt.
func CompleteJSON(ctx context.Context, p Provider, policy retry.Policy, op string, req Request, out any) error {
	req.JSON = true
	return retry.Do(ctx, policy, op, func(ctx context.Context) error {
		resp, err := p.Complete(ctx, req)
		if err != nil {
			return classify(err)
		}
		return DecodeJSON(resp.Content, out)
	})
}

// classify marks errors that retrying cannot fix
func classify(err error) error {
	if errors.Is(err, ErrCircuitOpen) {
		return retry.Permanent(err)
	}
	return err
}
