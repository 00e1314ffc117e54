package wikipedia

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/ppiankov/factcheck/internal/cache"
	"github.com/ppiankov/factcheck/internal/metrics"
	"github.com/ppiankov/factcheck/internal/model"
	"github.com/ppiankov/factcheck/internal/retry"
	"github.com/ppiankov/factcheck/internal/worker"
)

// Page is an article fetched by exact title
type Page struct {
	Title    string         `json:"title"`
	Summary  string         `json:"summary"`
	Content  string         `json:"content"`
	URL      string         `json:"url"`
	Language model.Language `json:"language"`
}

// Fetcher fetches one article by exact title
type Fetcher interface {
	Page(ctx context.Context, lang model.Language, title string) (*Page, error)
}

// Client talks to the MediaWiki action API of each language edition
type Client struct {
	apiURL     string // contains "{lang}"
	userAgent  string
	httpClient *http.Client
	limiter    *worker.Limiter
	cache      cache.Cache
	cacheTTL   time.Duration
	policy     retry.Policy
	metrics    *metrics.Collectors
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient sets the HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLimiter paces API requests per language host
func WithLimiter(l *worker.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// WithCache stores fetched pages; ttl 0 lets each cache layer apply its own expiry
func WithCache(cc cache.Cache, ttl time.Duration) Option {
	return func(c *Client) {
		c.cache = cc
		c.cacheTTL = ttl
	}
}

// WithRetryPolicy sets the retry policy for API calls
func WithRetryPolicy(p retry.Policy) Option {
	return func(c *Client) { c.policy = p }
}

// WithMetrics records lookup outcomes
func WithMetrics(m *metrics.Collectors) Option {
	return func(c *Client) { c.metrics = m }
}

// NewClient creates a client from configuration
func NewClient(cfg model.WikipediaConfig, opts ...Option) *Client {
	c := &Client{
		apiURL:     cfg.APIURL,
		userAgent:  cfg.UserAgent,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cache:      cache.Nop{},
		policy:     retry.DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// cachedPage is what the cache stores for a title: either a page or a disambiguation list
type cachedPage struct {
	Page    *Page    `json:"page,omitempty"`
	Options []string `json:"options,omitempty"`
}

// Page fetches the article with exactly this title (redirects are followed, no search).
// It returns ErrPageNotFound or a *DisambiguationError when there is no single article.
func (c *Client) Page(ctx context.Context, lang model.Language, title string) (*Page, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrPageNotFound
	}

	key := cache.Key("wiki", "page", string(lang), title)
	var hit cachedPage
	if cache.GetJSON(ctx, c.cache, key, &hit) {
		c.observeCache("hit")
		if hit.Page != nil {
			return hit.Page, nil
		}
		return nil, &DisambiguationError{Title: title, Options: hit.Options}
	}
	c.observeCache("miss")

	page, err := c.fetchPage(ctx, lang, title)
	var dis *DisambiguationError
	switch {
	case err == nil:
		c.store(ctx, key, cachedPage{Page: page})
	case errors.As(err, &dis):
		c.store(ctx, key, cachedPage{Options: dis.Options})
	}
	return page, err
}

func (c *Client) store(ctx context.Context, key string, v cachedPage) {
	if err := cache.SetJSON(ctx, c.cache, key, v, c.cacheTTL); err != nil {
		zap.L().Debug("wikipedia cache write failed", zap.Error(err))
	}
}

func (c *Client) observeCache(result string) {
	if c.metrics != nil {
		c.metrics.CacheHits.WithLabelValues(result).Inc()
	}
}

type queryResponse struct {
	Error *APIError `json:"error,omitempty"`
	Query struct {
		Pages []struct {
			PageID    int               `json:"pageid"`
			Title     string            `json:"title"`
			Missing   bool              `json:"missing"`
			Invalid   bool              `json:"invalid"`
			FullURL   string            `json:"fullurl"`
			Extract   string            `json:"extract"`
			PageProps map[string]string `json:"pageprops"`
		} `json:"pages"`
	} `json:"query"`
}

func (c *Client) fetchPage(ctx context.Context, lang model.Language, title string) (*Page, error) {
	params := url.Values{
		"action":          {"query"},
		"format":          {"json"},
		"formatversion":   {"2"},
		"redirects":       {"1"},
		"prop":            {"info|pageprops|extracts"},
		"inprop":          {"url"},
		"ppprop":          {"disambiguation"},
		"explaintext":     {"1"},
		"exsectionformat": {"wiki"},
		"titles":          {title},
	}

	var resp queryResponse
	if err := c.getJSON(ctx, lang, params, &resp); err != nil {
		return nil, err
	}
	if len(resp.Query.Pages) == 0 {
		return nil, ErrPageNotFound
	}

	p := resp.Query.Pages[0]
	if p.Missing || p.Invalid {
		return nil, ErrPageNotFound
	}
	if _, ok := p.PageProps["disambiguation"]; ok {
		options, err := c.disambiguationOptions(ctx, lang, p.Title)
		if err != nil {
			return nil, fmt.Errorf("disambiguation options for %q: %w", p.Title, err)
		}
		return nil, &DisambiguationError{Title: p.Title, Options: options}
	}

	content := strings.TrimSpace(p.Extract)
	return &Page{
		Title:    p.Title,
		Summary:  summaryOf(content),
		Content:  content,
		URL:      p.FullURL,
		Language: lang,
	}, nil
}

func (r *queryResponse) apiError() *APIError { return r.Error }

type parseResponse struct {
	Error *APIError `json:"error,omitempty"`
	Parse struct {
		Title string `json:"title"`
		Text  string `json:"text"`
	} `json:"parse"`
}

func (r *parseResponse) apiError() *APIError { return r.Error }

// apiResponse is implemented by response bodies that can carry an API error
type apiResponse interface {
	apiError() *APIError
}

// disambiguationOptions lists the articles a disambiguation page links to, in page order
func (c *Client) disambiguationOptions(ctx context.Context, lang model.Language, title string) ([]string, error) {
	params := url.Values{
		"action":        {"parse"},
		"format":        {"json"},
		"formatversion": {"2"},
		"redirects":     {"1"},
		"prop":          {"text"},
		"page":          {title},
	}

	var resp parseResponse
	if err := c.getJSON(ctx, lang, params, &resp); err != nil {
		return nil, err
	}
	return ParseDisambiguation(resp.Parse.Text)
}

// ParseDisambiguation extracts option titles from rendered disambiguation HTML:
// the first link of every list item outside the table of contents.
func ParseDisambiguation(rendered string) ([]string, error) {
	root, err := html.Parse(strings.NewReader(rendered))
	if err != nil {
		return nil, fmt.Errorf("parse disambiguation html: %w", err)
	}
	doc := goquery.NewDocumentFromNode(root)

	var options []string
	seen := make(map[string]bool)
	doc.Find("li").Each(func(_ int, li *goquery.Selection) {
		if class, _ := li.Attr("class"); strings.Contains(class, "tocsection") {
			return
		}
		link := li.Find("a").First()
		if link.Length() == 0 {
			return
		}

		option := strings.TrimSpace(link.Text())
		if t, ok := link.Attr("title"); ok && !link.HasClass("new") && strings.TrimSpace(t) != "" {
			option = strings.TrimSpace(t)
		}
		if option == "" || seen[option] {
			return
		}
		seen[option] = true
		options = append(options, option)
	})
	return options, nil
}

// summaryOf returns the lead section of a plain-text extract
func summaryOf(content string) string {
	if i := strings.Index(content, "\n=="); i >= 0 {
		return strings.TrimSpace(content[:i])
	}
	return content
}

// Endpoint returns the API URL for a language edition
func (c *Client) Endpoint(lang model.Language) string {
	return strings.ReplaceAll(c.apiURL, "{lang}", string(lang))
}

func (c *Client) getJSON(ctx context.Context, lang model.Language, params url.Values, out any) error {
	endpoint := c.Endpoint(lang) + "?" + params.Encode()

	return retry.Do(ctx, c.policy, "wikipedia "+params.Get("action"), func(ctx context.Context) error {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx, endpoint); err != nil {
				return err
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return retry.Permanent(err)
		}
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode != http.StatusOK {
			_, _ = io.Copy(io.Discard, resp.Body)
			return &StatusError{StatusCode: resp.StatusCode, URL: c.Endpoint(lang)}
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		if r, ok := out.(apiResponse); ok {
			if apiErr := r.apiError(); apiErr != nil {
				if apiErr.IsRetryable() {
					return apiErr
				}
				return retry.Permanent(apiErr)
			}
		}
		return nil
	})
}
