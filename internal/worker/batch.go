package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/ppiankov/factcheck/internal/model"
)

// Checker fact-checks one text in the given language
type Checker interface {
	CheckText(ctx context.Context, text string, lang model.Language) (*model.Report, error)
}

// LoadFunc returns the text to check for one list entry
type LoadFunc func(ctx context.Context, path string) (string, error)

// ReadFile is the default LoadFunc
func ReadFile(_ context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

// CheckJob fact-checks the text behind one list entry
type CheckJob struct {
	Path     string
	Language model.Language
	Checker  Checker
	Load     LoadFunc
}

// Execute loads the text and runs the check
func (j *CheckJob) Execute(ctx context.Context) Result {
	load := j.Load
	if load == nil {
		load = ReadFile
	}
	text, err := load(ctx, j.Path)
	if err != nil {
		return &CheckResult{Path: j.Path, Error: err}
	}

	report, err := j.Checker.CheckText(ctx, text, j.Language)
	if err != nil {
		return &CheckResult{Path: j.Path, Error: err}
	}
	return &CheckResult{Path: j.Path, Report: report}
}

// CheckResult is the outcome of one CheckJob
type CheckResult struct {
	Path   string
	Report *model.Report
	Error  error
}

// GetError returns the error from the check
func (r *CheckResult) GetError() error {
	return r.Error
}

// BatchProcessor checks many files concurrently
type BatchProcessor struct {
	checker     Checker
	concurrency int
	load        LoadFunc
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(checker Checker, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		checker:     checker,
		concurrency: concurrency,
		load:        ReadFile,
	}
}

// WithLoader replaces how list entries are turned into text (e.g. to accept URLs)
func (b *BatchProcessor) WithLoader(load LoadFunc) *BatchProcessor {
	if load != nil {
		b.load = load
	}
	return b
}

// ProcessPaths checks every path and returns results in input order
func (b *BatchProcessor) ProcessPaths(ctx context.Context, paths []string, lang model.Language) []*CheckResult {
	if len(paths) == 0 {
		return []*CheckResult{}
	}

	pool := NewPool(ctx, b.concurrency)
	pool.Start()

	for _, path := range paths {
		if !pool.Submit(&CheckJob{Path: path, Language: lang, Checker: b.checker, Load: b.load}) {
			break
		}
	}

	results := pool.Wait()
	out := make([]*CheckResult, len(paths))
	for i, path := range paths {
		if i < len(results) && results[i] != nil {
			out[i] = results[i].(*CheckResult)
			continue
		}
		err := ctx.Err()
		if err == nil {
			err = context.Canceled
		}
		out[i] = &CheckResult{Path: path, Error: err}
	}

	failed := 0
	for _, r := range out {
		if r.Error != nil {
			failed++
		}
	}
	zap.L().Info("batch finished", zap.Int("files", len(paths)), zap.Int("failed", failed))

	return out
}

// ProcessFile reads paths from a list file and checks them
func (b *BatchProcessor) ProcessFile(ctx context.Context, listPath string, lang model.Language) ([]*CheckResult, error) {
	paths, err := ReadPathsFromFile(listPath)
	if err != nil {
		return nil, fmt.Errorf("read paths: %w", err)
	}
	return b.ProcessPaths(ctx, paths, lang), nil
}

// ReadPathsFromFile reads entries (one per line), skipping blanks, comments and duplicates.
// Relative paths are resolved against the list file's directory; URLs are kept as is.
func ReadPathsFromFile(listPath string) ([]string, error) {
	file, err := os.Open(listPath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	base := filepath.Dir(listPath)
	var paths []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !isURL(line) && !filepath.IsAbs(line) {
			line = filepath.Join(base, line)
		}
		if !seen[line] {
			seen[line] = true
			paths = append(paths, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}
	return paths, nil
}

func isURL(s string) bool {
	lower := strings.ToLower(s)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
