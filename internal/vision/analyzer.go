// Package vision describes uploaded images with a vision-capable model.
package vision

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/ppiankov/factcheck/internal/llm"
	"github.com/ppiankov/factcheck/internal/model"
	"github.com/ppiankov/factcheck/internal/retry"
)

var (
	// ErrUnsupportedImage is returned for content that is not PNG, JPEG or WEBP
	ErrUnsupportedImage = errors.New("unsupported image type (use PNG, JPG, JPEG or WEBP)")

	// ErrImageTooLarge is returned when the upload exceeds the size limit
	ErrImageTooLarge = errors.New("image too large")

	// ErrEmptyImage is returned for an empty upload
	ErrEmptyImage = errors.New("image is empty")
)

// DefaultMaxTokens bounds the description length
const DefaultMaxTokens = 2000

// AllowedExtensions lists the upload extensions offered to users
var AllowedExtensions = []string{".png", ".jpg", ".jpeg", ".webp"}

var allowedTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/webp": true,
}

const analysisPrompt = `Analyze this image and provide:
1. A detailed description
2. Key objects and elements identified
3. Any text content visible in the image
4. Notable features or characteristics
5. Context or setting

Return the analysis in JSON format with these keys:
- description
- objects_identified
- text_content
- notable_features
- context`

// Analyzer validates images and asks the vision model to describe them
type Analyzer struct {
	provider  llm.Provider
	policy    retry.Policy
	maxBytes  int64
	maxTokens int
}

// NewAnalyzer creates an analyzer. maxBytes <= 0 disables the size check.
func NewAnalyzer(provider llm.Provider, policy retry.Policy, maxBytes int64, maxTokens int) *Analyzer {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &Analyzer{provider: provider, policy: policy, maxBytes: maxBytes, maxTokens: maxTokens}
}

// MaxBytes returns the upload size limit
func (a *Analyzer) MaxBytes() int64 { return a.maxBytes }

// DetectType returns the sniffed MIME type of data if it is an accepted image
func DetectType(data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyImage
	}
	mime := http.DetectContentType(data)
	if !allowedTypes[mime] {
		return "", fmt.Errorf("%w: detected %s", ErrUnsupportedImage, mime)
	}
	return mime, nil
}

// Validate checks size and content type without calling the model
func (a *Analyzer) Validate(data []byte, filename string) (string, error) {
	if a.maxBytes > 0 && int64(len(data)) > a.maxBytes {
		return "", fmt.Errorf("%w: %d bytes (maximum %d)", ErrImageTooLarge, len(data), a.maxBytes)
	}
	mime, err := DetectType(data)
	if err != nil {
		return "", err
	}
	if ext := strings.ToLower(filepath.Ext(filename)); ext != "" && !allowedExtension(ext) {
		zap.L().Debug("image extension does not match allowed types", zap.String("filename", filename), zap.String("detected", mime))
	}
	return mime, nil
}

func allowedExtension(ext string) bool {
	for _, e := range AllowedExtensions {
		if e == ext {
			return true
		}
	}
	return false
}

// Analyze describes the image. A reply that is not JSON becomes the description.
func (a *Analyzer) Analyze(ctx context.Context, data []byte, filename string) (*model.ImageAnalysis, error) {
	mime, err := a.Validate(data, filename)
	if err != nil {
		return nil, err
	}

	reply, err := llm.CompleteText(ctx, a.provider, a.policy, "image analysis", llm.Request{
		Prompt:    analysisPrompt,
		MaxTokens: a.maxTokens,
		Images:    []llm.Image{{MIMEType: mime, Data: data}},
	})
	if err != nil {
		return nil, fmt.Errorf("analyze image: %w", err)
	}
	return parseAnalysis(reply), nil
}

func parseAnalysis(reply string) *model.ImageAnalysis {
	var raw map[string]any
	if err := llm.DecodeJSON(reply, &raw); err != nil || raw == nil {
		return &model.ImageAnalysis{Description: strings.TrimSpace(reply)}
	}

	return &model.ImageAnalysis{
		Description:       strings.TrimSpace(cast.ToString(raw["description"])),
		ObjectsIdentified: toList(raw["objects_identified"]),
		TextContent:       textOf(raw["text_content"]),
		NotableFeatures:   toList(raw["notable_features"]),
		Context:           textOf(raw["context"]),
		Structured:        true,
	}
}

// toList accepts a JSON array or a comma/newline separated string
func toList(v any) []string {
	var items []string
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			items = append(items, textOf(item))
		}
	case string:
		items = strings.FieldsFunc(t, func(r rune) bool { return r == ',' || r == '\n' })
	default:
		return nil
	}

	out := items[:0]
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// textOf flattens strings, lists and objects into display text
func textOf(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case []any:
		return strings.Join(toList(t), ", ")
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+": "+textOf(t[k]))
		}
		return strings.Join(parts, "; ")
	default:
		return strings.TrimSpace(cast.ToString(t))
	}
}
