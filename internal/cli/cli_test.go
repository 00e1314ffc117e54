package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/ppiankov/factcheck/internal/model"
	"github.com/ppiankov/factcheck/internal/source"
)

func TestDecodeConfig_Defaults(t *testing.T) {
	v := viper.New()
	if err := configureViper(v, filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for a missing explicit config file")
	}

	cfg, err := decodeConfig(v)
	if err != nil {
		t.Fatalf("decodeConfig() error = %v", err)
	}
	want := model.DefaultConfig()
	if cfg.LLM.Provider != want.LLM.Provider || cfg.Retry != want.Retry || cfg.Limits != want.Limits {
		t.Errorf("decoded defaults differ: got %+v / %+v", cfg.LLM, cfg.Retry)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("Server.Addr = %q, want :8080", cfg.Server.Addr)
	}
}

func TestDecodeConfig_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `llm:
  provider: openai
  model: gpt-4o-mini
retry:
  base_delay: 1s
  max_delay: 2s
wikipedia:
  default_language: en
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("FACTCHECK_LLM_MODEL", "gpt-4.1")
	t.Setenv("FACTCHECK_CONCURRENCY_VERIFY_WORKERS", "8")

	v := viper.New()
	if err := configureViper(v, path); err != nil {
		t.Fatalf("configureViper() error = %v", err)
	}
	cfg, err := decodeConfig(v)
	if err != nil {
		t.Fatalf("decodeConfig() error = %v", err)
	}

	if cfg.LLM.Provider != "openai" {
		t.Errorf("LLM.Provider = %q, want openai", cfg.LLM.Provider)
	}
	if cfg.LLM.Model != "gpt-4.1" {
		t.Errorf("LLM.Model = %q, env should win over file", cfg.LLM.Model)
	}
	if cfg.Retry.BaseDelay != time.Second || cfg.Retry.MaxAttempts != 3 {
		t.Errorf("Retry = %+v, want base 1s with default attempts", cfg.Retry)
	}
	if cfg.Concurrency.VerifyWorkers != 8 {
		t.Errorf("VerifyWorkers = %d, want 8", cfg.Concurrency.VerifyWorkers)
	}
	if cfg.Wikipedia.DefaultLanguage != model.LangEnglish {
		t.Errorf("DefaultLanguage = %q, want en", cfg.Wikipedia.DefaultLanguage)
	}
}

func TestDecodeConfig_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("llm:\n  provider: nobody\nwikipedia:\n  default_language: de\n"), 0600); err != nil {
		t.Fatal(err)
	}

	v := viper.New()
	if err := configureViper(v, path); err != nil {
		t.Fatalf("configureViper() error = %v", err)
	}
	_, err := decodeConfig(v)
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"Provider", "default_language"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestRequireCredentials(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "")
	cfg := model.DefaultConfig()
	if err := requireCredentials(cfg); err == nil || !strings.Contains(err.Error(), "GROQ_API_KEY") {
		t.Fatalf("requireCredentials() error = %v, want missing GROQ_API_KEY", err)
	}

	t.Setenv("GROQ_API_KEY", "gsk-test")
	t.Setenv("OPENAI_API_KEY", "sk-vision")
	cfg = model.DefaultConfig()
	cfg.Vision.Provider = "openai"
	if err := requireCredentials(cfg); err != nil {
		t.Fatalf("requireCredentials() error = %v", err)
	}
	if cfg.LLM.APIKey != "gsk-test" || cfg.Vision.APIKey != "sk-vision" {
		t.Errorf("keys = %q / %q", cfg.LLM.APIKey, cfg.Vision.APIKey)
	}

	cfg = model.DefaultConfig()
	cfg.LLM.Provider = "ollama"
	t.Setenv("OLLAMA_BASE_URL", "http://gpu-box:11434")
	if err := requireCredentials(cfg); err != nil {
		t.Fatalf("ollama needs no key: %v", err)
	}
	if cfg.LLM.BaseURL != "http://gpu-box:11434" {
		t.Errorf("BaseURL = %q", cfg.LLM.BaseURL)
	}
}

func TestReadInput(t *testing.T) {
	loader := source.NewLoader(nil)
	ctx := context.Background()

	text, from, err := readInput(ctx, strings.NewReader("dari stdin"), loader, []string{"-"})
	if err != nil || text != "dari stdin" || from != "stdin" {
		t.Errorf("stdin: got %q, %q, %v", text, from, err)
	}

	path := filepath.Join(t.TempDir(), "article.txt")
	if err := os.WriteFile(path, []byte("from file"), 0600); err != nil {
		t.Fatal(err)
	}
	text, from, err = readInput(ctx, nil, loader, []string{path})
	if err != nil || text != "from file" || from != path {
		t.Errorf("file: got %q, %q, %v", text, from, err)
	}

	if _, _, err := readInput(ctx, nil, loader, []string{filepath.Join(t.TempDir(), "nope.txt")}); err == nil {
		t.Error("expected error for a missing file")
	}
}

func TestReportSlug(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/data/articles/jakarta.txt", "jakarta"},
		{"notes/my article?.md", "my-article_"},
		{"/tmp/.txt", "report"},
		{"berita:hari ini.txt", "berita_hari-ini"},
	}

	for _, tt := range tests {
		if got := reportSlug(tt.path); got != tt.want {
			t.Errorf("reportSlug(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestMask(t *testing.T) {
	tests := map[string]string{
		"":                  "",
		"short":             "****",
		"sk-1234567890abcd": "sk-1****abcd",
	}
	for in, want := range tests {
		if got := mask(in); got != want {
			t.Errorf("mask(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestInitConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	if err := initConfigFile(path); err != nil {
		t.Fatalf("initConfigFile() error = %v", err)
	}

	v := viper.New()
	if err := configureViper(v, path); err != nil {
		t.Fatalf("written file does not load: %v", err)
	}
	if _, err := decodeConfig(v); err != nil {
		t.Fatalf("written file does not validate: %v", err)
	}

	if err := initConfigFile(path); err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Errorf("second init error = %v, want already exists", err)
	}
}

func TestLanguagesCommand(t *testing.T) {
	var buf bytes.Buffer
	languagesCmd.SetOut(&buf)
	languagesCmd.Run(languagesCmd, nil)

	out := buf.String()
	for _, l := range model.SupportedLanguages {
		if !strings.Contains(out, string(l)+" ") {
			t.Errorf("output missing %s:\n%s", l, out)
		}
	}
	if !strings.Contains(out, "(default)") {
		t.Errorf("default language not marked:\n%s", out)
	}
}
