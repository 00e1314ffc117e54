package model

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Language is a Wikipedia language code. It is carried per request, never held globally.
type Language string

const (
	LangIndonesian Language = "id"
	LangEnglish    Language = "en"
	LangArabic     Language = "ar"
	LangChinese    Language = "zh"
	LangJapanese   Language = "ja"
	LangSpanish    Language = "es"
	LangFrench     Language = "fr"
	LangRussian    Language = "ru"
)

// DefaultLanguage is used when a request does not name one
const DefaultLanguage = LangIndonesian

// SupportedLanguages lists the selectable languages in display order
var SupportedLanguages = []Language{
	LangIndonesian,
	LangEnglish,
	LangArabic,
	LangChinese,
	LangJapanese,
	LangSpanish,
	LangFrench,
	LangRussian,
}

// ParseLanguage validates a language code. Empty input yields DefaultLanguage.
func ParseLanguage(s string) (Language, error) {
	code := Language(strings.ToLower(strings.TrimSpace(s)))
	if code == "" {
		return DefaultLanguage, nil
	}
	for _, l := range SupportedLanguages {
		if l == code {
			return l, nil
		}
	}
	return DefaultLanguage, fmt.Errorf("unsupported language %q (supported: %s)", s, languageList())
}

// Tag returns the BCP 47 tag for the language
func (l Language) Tag() language.Tag {
	return language.Make(string(l))
}

// NativeName returns the language name written in that language (e.g. "Bahasa Indonesia").
func (l Language) NativeName() string {
	if name := display.Self.Name(l.Tag()); name != "" {
		return name
	}
	return string(l)
}

// EnglishName returns the English name of the language, used inside prompts.
func (l Language) EnglishName() string {
	if name := display.English.Languages().Name(l.Tag()); name != "" {
		return name
	}
	return string(l)
}

func languageList() string {
	codes := make([]string, len(SupportedLanguages))
	for i, l := range SupportedLanguages {
		codes[i] = string(l)
	}
	return strings.Join(codes, ", ")
}
