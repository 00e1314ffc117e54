package extract

import (
	"strings"
	"text/template"

	"github.com/ppiankov/factcheck/internal/model"
)

type promptData struct {
	Text     string
	Language string
}

var keywordPrompt = template.Must(template.New("keywords").Parse(`Extract key entities and search terms from the following text:

Guidelines:
1. Focus on proper nouns, specific names, locations, organizations
2. Extract terms most likely to match {{.Language}} Wikipedia page titles
3. Prioritize complete, precise terms
4. Avoid generic or common words
5. Consider context and significance
6. Correct obvious typos so the terms match article titles

Text: {{.Text}}

Return JSON format:
{
    "keywords": [
        "Exact search term 1",
        "Exact search term 2"
    ]
}`))

var claimPrompt = template.Must(template.New("claims").Parse(`Extract specific, verifiable factual claims from the following text:

Rules:
1. Extract claims that are:
   - Objectively verifiable
   - Specific and precise
   - Not subjective opinions
   - Related to names, events, locations, or statistical facts
2. Format each claim with a clear topic and statement
3. Quote each claim exactly as it appears in the text, in the original language ({{.Language}})

Text: {{.Text}}

Return JSON in this format:
{
    "claims": [
        {
            "claim": "Exact verifiable statement",
            "topic": "Main subject of the claim"
        }
    ]
}`))

var typoPrompt = template.Must(template.New("typos").Parse(`Correct any spelling and grammatical errors in the following {{.Language}} text while preserving its meaning:

Text: {{.Text}}

Rules:
1. Maintain the original meaning
2. Fix spelling errors
3. Correct grammar mistakes
4. Keep proper nouns unchanged
5. Return the corrected text only

Return JSON format:
{
    "corrected_text": "The corrected version of the text"
}`))

func render(t *template.Template, text string, lang model.Language) (string, error) {
	var b strings.Builder
	if err := t.Execute(&b, promptData{Text: text, Language: lang.EnglishName()}); err != nil {
		return "", err
	}
	return b.String(), nil
}
