package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/factcheck/internal/metrics"
	"github.com/ppiankov/factcheck/internal/model"
	"github.com/ppiankov/factcheck/internal/pipeline"
	"github.com/ppiankov/factcheck/internal/retry"
	"github.com/ppiankov/factcheck/internal/source"
)

var (
	outJSON   string
	outMD     string
	checkLang string
	fixTypos  bool
	timeout   time.Duration
	noCache   bool
	noFooter  bool
)

// checkCmd represents the check command
var checkCmd = &cobra.Command{
	Use:   "check [file|url|-]",
	Short: "Fact-check a text file, web article or stdin against Wikipedia",
	Long: `Check reads a text (a file, an http(s) article URL, or stdin) and:
- Extracts key entities (LLM, with a regex fallback)
- Resolves a Wikipedia article in the chosen language
- Extracts verifiable claims and verifies each against the article
- Prints a credibility summary and optionally writes JSON/Markdown reports

Example:
  factcheck check article.txt --lang en
  cat berita.txt | factcheck check - --json report.json --md report.md
  factcheck check article.txt --typos
  factcheck check https://id.wikipedia.org/wiki/Jakarta --lang id`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().StringVar(&outJSON, "json", "", "output JSON path (optional)")
	checkCmd.Flags().StringVar(&outMD, "md", "", "output Markdown path (optional)")
	checkCmd.Flags().StringVarP(&checkLang, "lang", "l", "", "language code (id, en, ar, zh, ja, es, fr, ru; default from config)")
	checkCmd.Flags().BoolVar(&fixTypos, "typos", false, "correct typos before checking")
	checkCmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "overall check timeout")
	checkCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the Wikipedia page cache")
	checkCmd.Flags().BoolVar(&noFooter, "no-footer", false, "disable footer in Markdown reports")
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyCommonFlags(cfg)
	if err := requireCredentials(cfg); err != nil {
		return err
	}

	ctx, cancel := signalContext(timeout)
	defer cancel()

	text, from, err := readInput(ctx, cmd.InOrStdin(), newLoader(cfg), args)
	if err != nil {
		return err
	}

	lang := cfg.Wikipedia.DefaultLanguage
	if checkLang != "" {
		if lang, err = model.ParseLanguage(checkLang); err != nil {
			return err
		}
	}

	p, err := pipeline.Build(ctx, cfg, metrics.NewNop())
	if err != nil {
		return err
	}

	if cfg.Output.Verbose {
		fmt.Fprintf(os.Stderr, "Checking %s (%s)\n", from, lang)
	}

	report, err := p.Check(ctx, pipeline.CheckRequest{Text: text, Language: lang, CorrectTypos: fixTypos})
	if err != nil {
		return fmt.Errorf("check failed: %w", err)
	}

	p.Renderer().RenderSummary(cmd.OutOrStdout(), report)

	if err := p.RenderReport(report, outJSON, outMD, cfg.Output.Verbose); err != nil {
		return fmt.Errorf("render failed: %w", err)
	}
	return nil
}

// readInput reads the text from the named file or URL, or stdin for "-" or no argument
func readInput(ctx context.Context, stdin io.Reader, loader *source.Loader, args []string) (string, string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), "stdin", nil
	}
	text, err := loader.Load(ctx, args[0])
	if err != nil {
		return "", "", err
	}
	return text, args[0], nil
}

func newLoader(cfg *model.Config) *source.Loader {
	return source.NewLoader(source.NewFetcher(cfg.Fetch, cfg.HTTP, retry.FromConfig(cfg.Retry)))
}

func applyCommonFlags(cfg *model.Config) {
	if noCache {
		cfg.Cache.Enabled = false
	}
	if noFooter {
		cfg.Output.IncludeFooter = false
	}
	if verbose {
		cfg.Output.Verbose = true
	}
}

// signalContext is cancelled on interrupt or after d (when d > 0)
func signalContext(d time.Duration) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	if d <= 0 {
		return ctx, stop
	}
	ctx, cancel := context.WithTimeout(ctx, d)
	return ctx, func() {
		cancel()
		stop()
	}
}
