package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatus(t *testing.T) {
	tests := map[string]Status{
		"accurate":     StatusAccurate,
		"  Accurate ":  StatusAccurate,
		"INACCURATE":   StatusInaccurate,
		"subjective":   StatusSubjective,
		"error":        StatusError,
		"":             StatusError,
		"partly true":  StatusError,
		"accurate/inaccurate/subjective": StatusError,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseStatus(in), "input %q", in)
	}
}

func TestStatus_Color(t *testing.T) {
	assert.Equal(t, "#E8F5E9", StatusAccurate.Color())
	assert.Equal(t, "#FFEBEE", StatusInaccurate.Color())
	assert.Equal(t, "#FFF3E0", StatusSubjective.Color())
	assert.Equal(t, StatusSubjective.Color(), StatusError.Color())
	assert.Equal(t, StatusSubjective.Color(), Status("").Color())
}

func TestStatus_IsVerdict(t *testing.T) {
	assert.True(t, StatusAccurate.IsVerdict())
	assert.True(t, StatusInaccurate.IsVerdict())
	assert.True(t, StatusSubjective.IsVerdict())
	assert.False(t, StatusError.IsVerdict())
	assert.False(t, Status("").IsVerdict())
}

func TestParseLanguage(t *testing.T) {
	for _, l := range SupportedLanguages {
		got, err := ParseLanguage(string(l))
		require.NoError(t, err)
		assert.Equal(t, l, got)
	}

	got, err := ParseLanguage("")
	require.NoError(t, err)
	assert.Equal(t, LangIndonesian, got)

	got, err = ParseLanguage(" EN ")
	require.NoError(t, err)
	assert.Equal(t, LangEnglish, got)

	got, err = ParseLanguage("de")
	assert.Error(t, err)
	assert.Equal(t, DefaultLanguage, got)
}

func TestSupportedLanguages(t *testing.T) {
	assert.Len(t, SupportedLanguages, 8)
	assert.Equal(t, LangIndonesian, SupportedLanguages[0])
}

func TestLanguage_Names(t *testing.T) {
	assert.Equal(t, "English", LangEnglish.NativeName())
	assert.Equal(t, "Japanese", LangJapanese.EnglishName())
	assert.Equal(t, "Indonesian", LangIndonesian.EnglishName())
	for _, l := range SupportedLanguages {
		assert.NotEmpty(t, l.NativeName(), "language %s", l)
	}
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	assert.Empty(t, cfg.Validate())

	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 4*time.Second, cfg.Retry.BaseDelay)
	assert.Equal(t, 10*time.Second, cfg.Retry.MaxDelay)
	assert.Equal(t, 40000, cfg.Limits.MaxWords)
	assert.Equal(t, 5000, cfg.Wikipedia.ContentChars)
	assert.Equal(t, int64(10<<20), cfg.Limits.MaxImageBytes)
	assert.InDelta(t, 0.2, cfg.LLM.Temperature, 1e-9)
}

func TestConfig_ValidateReportsEveryProblem(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LLM.Provider = "mystery"
	cfg.Retry.MaxAttempts = 0
	cfg.Wikipedia.APIURL = "https://en.wikipedia.org/w/api.php"
	cfg.Wikipedia.DefaultLanguage = "de"
	cfg.Retry.BaseDelay = time.Minute

	errs := cfg.Validate()
	assert.GreaterOrEqual(t, len(errs), 5)
}
