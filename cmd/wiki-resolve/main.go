// Diagnostic program: shows how keywords resolve to a Wikipedia reference.
//
//	go run ./cmd/wiki-resolve [lang] [term...]
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ppiankov/factcheck/internal/metrics"
	"github.com/ppiankov/factcheck/internal/model"
	"github.com/ppiankov/factcheck/internal/pipeline"
	"github.com/ppiankov/factcheck/internal/wikipedia"
)

func main() {
	lang := model.LangIndonesian
	terms := []string{"Jakarta", "Merkurius", "Halaman yang tidak ada 12345"}

	if len(os.Args) > 1 {
		l, err := model.ParseLanguage(os.Args[1])
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		lang = l
		if len(os.Args) > 2 {
			terms = os.Args[2:]
		}
	}

	cfg := model.DefaultConfig()
	cfg.Cache.Enabled = false
	cfg.Retry.BaseDelay = time.Second
	cfg.Retry.MaxDelay = 2 * time.Second

	resolver, err := pipeline.NewResolver(cfg, metrics.NewNop())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	fmt.Printf("=== Wikipedia resolution (%s, %s) ===\n\n", lang, lang.EnglishName())

	for _, term := range terms {
		fmt.Printf("Term: %s\n", term)
		fmt.Println(strings.Repeat("-", 60))

		ref, err := resolver.Resolve(ctx, lang, []string{term})
		switch {
		case errors.Is(err, wikipedia.ErrNoReference):
			fmt.Println("  ✗ no article")
		case err != nil:
			fmt.Printf("  ✗ error: %v\n", err)
		default:
			fmt.Printf("  ✓ %s\n", ref.Title)
			fmt.Printf("    URL:     %s\n", ref.URL)
			fmt.Printf("    Summary: %s\n", firstLine(ref.Summary, 120))
			fmt.Printf("    Content: %d runes\n", len([]rune(ref.Content)))
		}
		fmt.Println()
	}

	ref, err := resolver.Resolve(ctx, lang, terms)
	if err != nil {
		fmt.Printf("All terms together: %v\n", err)
		return
	}
	fmt.Printf("All terms together resolve to %q via %q\n", ref.Title, ref.Term)
}

func firstLine(s string, max int) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if r := []rune(s); len(r) > max {
		return string(r[:max]) + "…"
	}
	return s
}
