package source

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// Loader reads check input from a local path or an http(s) URL
type Loader struct {
	fetcher *Fetcher
}

// NewLoader creates a loader; a nil fetcher restricts it to local files
func NewLoader(f *Fetcher) *Loader {
	return &Loader{fetcher: f}
}

// IsURL reports whether s names a web page rather than a file
func IsURL(s string) bool {
	lower := strings.ToLower(s)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// Load returns the text behind path
func (l *Loader) Load(ctx context.Context, path string) (string, error) {
	if IsURL(path) {
		if l.fetcher == nil {
			return "", fmt.Errorf("cannot fetch %s: URL input is disabled", path)
		}
		doc, err := l.fetcher.Fetch(ctx, path)
		if err != nil {
			return "", err
		}
		return doc.Text, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}
