package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ppiankov/factcheck/internal/model"
)

// Renderer writes reports as JSON, Markdown, or a terminal summary
type Renderer struct {
	includeFooter bool
}

// NewRenderer creates a renderer
func NewRenderer(includeFooter bool) *Renderer {
	return &Renderer{includeFooter: includeFooter}
}

// RenderJSON writes the report as indented JSON
func (r *Renderer) RenderJSON(report *model.Report, path string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return writeFile(path, append(data, '\n'))
}

// RenderMarkdown writes the report as Markdown
func (r *Renderer) RenderMarkdown(report *model.Report, path string) error {
	return writeFile(path, []byte(r.Markdown(report)))
}

// Markdown formats the report as Markdown
func (r *Renderer) Markdown(report *model.Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Fact-check report\n\n")
	fmt.Fprintf(&b, "- **ID:** %s\n", report.ID)
	fmt.Fprintf(&b, "- **Checked:** %s\n", report.CreatedAt.Format("2006-01-02 15:04:05 UTC"))
	fmt.Fprintf(&b, "- **Language:** %s (%s)\n", report.Language.EnglishName(), report.Language)
	fmt.Fprintf(&b, "- **Words:** %d\n", report.WordCount)
	fmt.Fprintf(&b, "- **Credibility:** %.1f%% (%d/%d accurate, confidence %s)\n\n",
		report.Score.Credibility, report.Score.Accurate, report.Score.Total, report.Score.Confidence)

	b.WriteString("## Reference\n\n")
	if report.Reference != nil {
		fmt.Fprintf(&b, "[%s](%s)\n\n", report.Reference.Title, report.Reference.URL)
		if report.Reference.Summary != "" {
			fmt.Fprintf(&b, "> %s\n\n", strings.ReplaceAll(report.Reference.Summary, "\n", "\n> "))
		}
	} else {
		b.WriteString("No Wikipedia reference found.\n\n")
	}
	fmt.Fprintf(&b, "Keywords (%s): %s\n\n", report.KeywordSource, strings.Join(report.Keywords, ", "))

	b.WriteString("## Claims\n\n")
	if len(report.Claims) == 0 {
		b.WriteString("No verifiable claims found.\n\n")
	}
	for i, c := range report.Claims {
		fmt.Fprintf(&b, "### %d. %s\n\n", i+1, c.Text)
		fmt.Fprintf(&b, "- **Status:** %s\n", strings.ToUpper(string(c.Status)))
		if c.Topic != "" {
			fmt.Fprintf(&b, "- **Topic:** %s\n", c.Topic)
		}
		if c.Justification != "" {
			fmt.Fprintf(&b, "- **Justification:** %s\n", c.Justification)
		}
		if c.Quote != "" {
			fmt.Fprintf(&b, "- **Quote:** \"%s\"\n", c.Quote)
		}
		if c.SourceURL != "" {
			fmt.Fprintf(&b, "- **Source:** %s\n", c.SourceURL)
		}
		b.WriteString("\n")
	}

	if len(report.Score.Signals) > 0 {
		b.WriteString("## Signals\n\n")
		for _, s := range report.Score.Signals {
			fmt.Fprintf(&b, "- [%s] %s: %s\n", s.Severity, s.Type, s.Description)
		}
		b.WriteString("\n")
	}

	if len(report.Warnings) > 0 {
		b.WriteString("## Warnings\n\n")
		for _, w := range report.Warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
		b.WriteString("\n")
	}

	if r.includeFooter {
		b.WriteString("---\n\n")
		b.WriteString("_Verdicts are produced by a language model against a single Wikipedia article and may be wrong. Check the sources._\n")
	}
	return b.String()
}

// RenderSummary prints a short summary for the terminal
func (r *Renderer) RenderSummary(w io.Writer, report *model.Report) {
	fmt.Fprintf(w, "\nCredibility: %.1f%% (%d accurate, %d inaccurate, %d subjective, %d errors)\n",
		report.Score.Credibility, report.Score.Accurate, report.Score.Inaccurate, report.Score.Subjective, report.Score.Errors)
	if report.Reference != nil {
		fmt.Fprintf(w, "Reference:   %s <%s>\n", report.Reference.Title, report.Reference.URL)
	} else {
		fmt.Fprintln(w, "Reference:   none")
	}
	fmt.Fprintf(w, "Keywords:    %s (%s)\n", strings.Join(report.Keywords, ", "), report.KeywordSource)

	for _, c := range report.Claims {
		fmt.Fprintf(w, "  [%-10s] %s\n", strings.ToUpper(string(c.Status)), c.Text)
	}
	for _, warning := range report.Warnings {
		fmt.Fprintf(w, "Warning: %s\n", warning)
	}
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}
