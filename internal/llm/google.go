package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
	"google.golang.org/genai"

	"github.com/ppiankov/factcheck/internal/util"
)

const defaultGoogleModel = "gemini-2.0-flash"

// GoogleProvider implements the Provider interface for Gemini models
type GoogleProvider struct {
	client *genai.Client
	config Config
}

// NewGoogleProvider creates a new Gemini provider
func NewGoogleProvider(ctx context.Context, config Config) (*GoogleProvider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("google API key is required")
	}

	cc := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
		HTTPClient: &http.Client{
			Timeout:   config.timeout(),
			Transport: util.NewTransport(config.HTTPProxy, config.HTTPSProxy, config.NoProxy),
		},
	}
	if config.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: strings.TrimSuffix(config.BaseURL, "/") + "/"}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &GoogleProvider{client: client, config: config}, nil
}

// Name returns the provider name
func (p *GoogleProvider) Name() string {
	return "google"
}

// IsAvailable checks if the provider is properly configured
func (p *GoogleProvider) IsAvailable(ctx context.Context) bool {
	if _, err := p.client.Models.List(ctx, &genai.ListModelsConfig{PageSize: 1}); err != nil {
		zap.L().Warn("LLM availability check failed", zap.String("provider", p.Name()), zap.Error(err))
		return false
	}
	return true
}

// Complete sends a GenerateContent request
func (p *GoogleProvider) Complete(ctx context.Context, req Request) (*Response, error) {
	model := p.config.model(req, defaultGoogleModel)

	parts := make([]*genai.Part, 0, len(req.Images)+1)
	for _, img := range req.Images {
		parts = append(parts, genai.NewPartFromBytes(img.Data, img.MIMEType))
	}
	parts = append(parts, genai.NewPartFromText(req.Prompt))

	gc := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(p.config.temperature(req))),
		MaxOutputTokens: int32(p.config.maxTokens(req)),
	}
	if req.JSON {
		gc.ResponseMIMEType = "application/json"
	}
	if req.System != "" {
		gc.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	resp, err := p.client.Models.GenerateContent(ctx, model,
		[]*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}, gc)
	if err != nil {
		return nil, p.wrapError(err)
	}

	content := strings.TrimSpace(resp.Text())
	if content == "" {
		return nil, ErrEmptyResponse
	}

	out := &Response{Content: content, Model: model}
	if resp.ModelVersion != "" {
		out.Model = resp.ModelVersion
	}
	if resp.UsageMetadata != nil {
		out.TokensIn = int(resp.UsageMetadata.PromptTokenCount)
		out.TokensOut = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	return out, nil
}

func (p *GoogleProvider) wrapError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return newProviderError(p.Name(), apiErr.Code, err)
	}
	// auth and quota failures from the Google API front end
	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		return newProviderError(p.Name(), gErr.Code, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return newProviderError(p.Name(), 0, err)
}
