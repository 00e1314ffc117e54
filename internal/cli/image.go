package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppiankov/factcheck/internal/metrics"
	"github.com/ppiankov/factcheck/internal/model"
)

var imageJSON bool

var imageCmd = &cobra.Command{
	Use:   "image <file>",
	Short: "Describe an image with the vision model",
	Long: `Image sends a PNG, JPG, JPEG or WEBP file to the configured vision model
and prints its description, identified objects, visible text, notable
features and context.

Example:
  factcheck image photo.jpg
  factcheck image chart.png --json`,
	Args: cobra.ExactArgs(1),
	RunE: runImage,
}

func init() {
	rootCmd.AddCommand(imageCmd)
	imageCmd.Flags().BoolVar(&imageJSON, "json", false, "print the analysis as JSON")
}

func runImage(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read %s: %w", args[0], err)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := requireCredentials(cfg); err != nil {
		return err
	}

	ctx, cancel := signalContext(cfg.LLM.Timeout * 2)
	defer cancel()

	analyzer, err := buildAnalyzer(ctx, cfg, metrics.NewNop())
	if err != nil {
		return err
	}
	analysis, err := analyzer.Analyze(ctx, data, args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if imageJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(analysis)
	}
	printAnalysis(out, analysis)
	return nil
}

func printAnalysis(w io.Writer, a *model.ImageAnalysis) {
	section := func(title, body string) {
		if strings.TrimSpace(body) == "" {
			return
		}
		fmt.Fprintf(w, "%s\n%s\n%s\n\n", title, strings.Repeat("-", len(title)), body)
	}

	section("Description", a.Description)
	section("Objects identified", bullets(a.ObjectsIdentified))
	section("Text content", a.TextContent)
	section("Notable features", bullets(a.NotableFeatures))
	section("Context", a.Context)
}

func bullets(items []string) string {
	if len(items) == 0 {
		return ""
	}
	return "- " + strings.Join(items, "\n- ")
}
