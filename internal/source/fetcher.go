// Package source loads the text to fact-check from local files or web articles.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html/charset"

	"github.com/ppiankov/factcheck/internal/model"
	"github.com/ppiankov/factcheck/internal/retry"
	"github.com/ppiankov/factcheck/internal/util"
)

var (
	// ErrDisallowed is returned when robots.txt forbids fetching the page
	ErrDisallowed = errors.New("fetching disallowed by robots.txt")

	// ErrNotHTML is returned for responses that are neither HTML nor plain text
	ErrNotHTML = errors.New("unsupported content type")
)

// StatusError is a non-2xx response; 429 and 5xx are retryable
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: unexpected status %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// IsRetryable reports whether the request is worth repeating
func (e *StatusError) IsRetryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Document is a fetched web article reduced to readable text
type Document struct {
	URL      string
	FinalURL string
	Title    string
	Text     string
}

// Fetcher downloads web articles
type Fetcher struct {
	httpClient *http.Client
	userAgent  string
	maxBytes   int64
	robots     *RobotsChecker
	policy     retry.Policy
}

// NewFetcher creates a fetcher from configuration
func NewFetcher(cfg model.FetchConfig, httpCfg model.HTTPConfig, policy retry.Policy) *Fetcher {
	hc := &http.Client{
		Timeout:   cfg.Timeout,
		Transport: util.NewTransport(httpCfg.HTTPProxy, httpCfg.HTTPSProxy, httpCfg.NoProxy),
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 3 {
				return fmt.Errorf("stopped after 3 redirects")
			}
			return nil
		},
	}
	f := &Fetcher{
		httpClient: hc,
		userAgent:  cfg.UserAgent,
		maxBytes:   cfg.MaxBytes,
		policy:     policy,
	}
	if cfg.RespectRobots {
		f.robots = NewRobotsChecker(hc, cfg.UserAgent)
	}
	return f
}

// Fetch downloads rawURL and extracts its readable text
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Document, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid URL %q", rawURL)
	}

	if f.robots != nil {
		allowed, delay, err := f.robots.Allowed(ctx, rawURL)
		if err != nil {
			return nil, err
		}
		if !allowed {
			return nil, fmt.Errorf("%w: %s", ErrDisallowed, rawURL)
		}
		if delay > 0 {
			zap.L().Debug("robots.txt crawl delay", zap.String("host", u.Host), zap.Duration("delay", delay))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	var doc *Document
	err = retry.Do(ctx, f.policy, "fetch "+rawURL, func(ctx context.Context) error {
		d, err := f.fetchOnce(ctx, rawURL)
		if err != nil {
			return err
		}
		doc = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (f *Fetcher) fetchOnce(ctx context.Context, rawURL string) (*Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.5")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		statusErr := &StatusError{URL: rawURL, StatusCode: resp.StatusCode}
		if !statusErr.IsRetryable() {
			return nil, retry.Permanent(statusErr)
		}
		return nil, statusErr
	}

	contentType := resp.Header.Get("Content-Type")
	mediaType, _, _ := mime.ParseMediaType(contentType)
	if mediaType != "" && mediaType != "text/html" && mediaType != "application/xhtml+xml" && mediaType != "text/plain" {
		return nil, retry.Permanent(fmt.Errorf("%w: %s", ErrNotHTML, mediaType))
	}

	body, err := charset.NewReader(io.LimitReader(resp.Body, f.maxBytes), contentType)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("decode charset: %w", err))
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	doc := &Document{URL: rawURL, FinalURL: resp.Request.URL.String()}
	if mediaType == "text/plain" {
		doc.Text = strings.TrimSpace(string(data))
		doc.Title = subjectOf(doc.FinalURL)
		return doc, nil
	}

	doc.Title, doc.Text, err = ExtractText(string(data))
	if err != nil {
		return nil, retry.Permanent(err)
	}
	if doc.Title == "" {
		doc.Title = subjectOf(doc.FinalURL)
	}
	return doc, nil
}

// subjectOf derives a readable subject from the last URL path segment
func subjectOf(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	path := strings.Trim(parsed.Path, "/")
	if path == "" {
		return parsed.Host
	}

	segments := strings.Split(path, "/")
	last := segments[len(segments)-1]
	if unescaped, err := url.PathUnescape(last); err == nil {
		last = unescaped
	}
	last = strings.NewReplacer("_", " ", "-", " ").Replace(last)
	if idx := strings.LastIndex(last, "."); idx > 0 {
		last = last[:idx]
	}
	return last
}
