package cli

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ppiankov/factcheck/internal/llm"
	"github.com/ppiankov/factcheck/internal/metrics"
	"github.com/ppiankov/factcheck/internal/model"
	"github.com/ppiankov/factcheck/internal/pipeline"
	"github.com/ppiankov/factcheck/internal/retry"
	"github.com/ppiankov/factcheck/internal/server"
	"github.com/ppiankov/factcheck/internal/vision"
)

var (
	serveAddr string
	noVision  bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web UI and JSON API",
	Long: `Serve starts the web interface (text check and image analysis tabs)
and the JSON API under /api. Prometheus metrics are exposed on /metrics.

Example:
  factcheck serve --addr :8080`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config, :8080)")
	serveCmd.Flags().BoolVar(&noVision, "no-vision", false, "disable the image analysis tab")
	serveCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the Wikipedia page cache")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyCommonFlags(cfg)
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}
	if err := requireCredentials(cfg); err != nil {
		return err
	}

	ctx, cancel := signalContext(0)
	defer cancel()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	p, err := pipeline.Build(ctx, cfg, m)
	if err != nil {
		return err
	}

	var analyzer server.ImageAnalyzer
	if !noVision {
		if a, err := buildAnalyzer(ctx, cfg, m); err != nil {
			zap.L().Warn("image analysis disabled", zap.Error(err))
		} else {
			analyzer = a
		}
	}

	zap.L().Info("starting server",
		zap.String("addr", cfg.Server.Addr),
		zap.String("llm", cfg.LLM.Provider+"/"+cfg.LLM.Model),
		zap.Bool("vision", analyzer != nil),
	)
	return server.New(cfg.Server, p, analyzer, m, reg).Run(ctx)
}

// buildAnalyzer creates the vision analyzer behind the same middleware chain as the text model
func buildAnalyzer(ctx context.Context, cfg *model.Config, m *metrics.Collectors) (*vision.Analyzer, error) {
	provider, err := llm.NewProvider(ctx, llm.VisionConfigFromModel(cfg))
	if err != nil {
		return nil, fmt.Errorf("vision provider: %w", err)
	}
	provider = llm.Wrap(provider, cfg, m)
	return vision.NewAnalyzer(provider, retry.FromConfig(cfg.Retry), cfg.Limits.MaxImageBytes, cfg.Vision.MaxTokens), nil
}
