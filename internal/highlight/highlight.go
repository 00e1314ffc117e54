// Package highlight marks verified claims in the original text.
//
// Claims are located once in the original text and rendered by offset, so a
// claim that is a substring of a longer, already placed claim is never wrapped
// twice and markup is never searched.
package highlight

import (
	"fmt"
	"html"
	"regexp"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/microcosm-cc/bluemonday"

	"github.com/ppiankov/factcheck/internal/model"
)

// maxFuzzyRunes bounds the text size for which fuzzy location is attempted
const maxFuzzyRunes = 20000

// Span is a located claim: text[Start:End] in bytes
type Span struct {
	Start int  `json:"start"`
	End   int  `json:"end"`
	Claim int  `json:"claim"` // index into the claim list
	Fuzzy bool `json:"fuzzy,omitempty"`
}

// Result is the rendered text plus where each claim was placed
type Result struct {
	HTML      string   `json:"html"`
	Spans     []Span   `json:"spans"`
	Unmatched []string `json:"unmatched,omitempty"`
}

// Highlighter renders claim spans
type Highlighter struct {
	fuzzyThreshold float64
	policy         *bluemonday.Policy
}

// New creates a highlighter. A threshold in (0, 1] enables fuzzy location of
// claims the model paraphrased; 0 keeps matching exact.
func New(fuzzyThreshold float64) *Highlighter {
	return &Highlighter{fuzzyThreshold: fuzzyThreshold, policy: Policy()}
}

// Policy allows only the markup the highlighter emits
func Policy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("span")
	p.AllowAttrs("class").Matching(regexp.MustCompile(`^claim( claim-[a-z]+)?$`)).OnElements("span")
	p.AllowAttrs("title").OnElements("span")
	p.AllowStyles("background-color").Matching(regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)).OnElements("span")
	return p
}

// Highlight locates the claims in text and renders it as HTML
func (h *Highlighter) Highlight(text string, claims []model.Claim) Result {
	spans, unmatched := h.Locate(text, claims)
	return Result{
		HTML:      h.policy.Sanitize(Render(text, claims, spans)),
		Spans:     spans,
		Unmatched: unmatched,
	}
}

// Locate places claims in text, longest first. Each claim takes every
// occurrence that does not overlap an already placed span. Equal-length
// claims keep their input order. Spans are returned sorted by offset.
func (h *Highlighter) Locate(text string, claims []model.Claim) ([]Span, []string) {
	order := make([]int, len(claims))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return len([]rune(claims[order[a]].Text)) > len([]rune(claims[order[b]].Text))
	})

	var spans []Span
	var unmatched []string
	for _, idx := range order {
		needle := strings.TrimSpace(claims[idx].Text)
		if needle == "" {
			continue
		}

		found := exact(text, needle, idx, spans)
		if len(found) == 0 && h.fuzzyThreshold > 0 {
			if s, ok := fuzzy(text, needle, idx, spans, h.fuzzyThreshold); ok {
				found = append(found, s)
			}
		}
		if len(found) == 0 {
			unmatched = append(unmatched, needle)
			continue
		}
		spans = append(spans, found...)
	}

	sort.Slice(spans, func(a, b int) bool { return spans[a].Start < spans[b].Start })
	return spans, unmatched
}

func exact(text, needle string, idx int, placed []Span) []Span {
	var found []Span
	for pos := 0; pos <= len(text)-len(needle); {
		i := strings.Index(text[pos:], needle)
		if i < 0 {
			break
		}
		s := Span{Start: pos + i, End: pos + i + len(needle), Claim: idx}
		if overlaps(s, placed) || overlaps(s, found) {
			pos = s.Start + runeLen(text, s.Start)
			continue
		}
		found = append(found, s)
		pos = s.End
	}
	return found
}

// fuzzy finds the window of the needle's rune length most similar to it
func fuzzy(text, needle string, idx int, placed []Span, threshold float64) (Span, bool) {
	runes := []rune(text)
	target := []rune(needle)
	n := len(target)
	if n == 0 || len(runes) < n || len(runes) > maxFuzzyRunes {
		return Span{}, false
	}

	offsets := make([]int, len(runes)+1)
	off := 0
	for i, r := range runes {
		offsets[i] = off
		off += len(string(r))
	}
	offsets[len(runes)] = off

	best, bestScore := Span{}, -1.0
	for i := 0; i+n <= len(runes); i++ {
		s := Span{Start: offsets[i], End: offsets[i+n], Claim: idx, Fuzzy: true}
		if overlaps(s, placed) {
			continue
		}
		dist := levenshtein.ComputeDistance(needle, text[s.Start:s.End])
		score := 1 - float64(dist)/float64(n)
		if score > bestScore {
			best, bestScore = s, score
		}
	}
	return best, bestScore >= threshold
}

func overlaps(s Span, spans []Span) bool {
	for _, o := range spans {
		if s.Start < o.End && o.Start < s.End {
			return true
		}
	}
	return false
}

func runeLen(text string, at int) int {
	for i := range text[at:] {
		if i > 0 {
			return i
		}
	}
	return len(text) - at
}

// Render escapes text and wraps each span. Spans must not overlap and must be
// sorted by offset, as Locate returns them.
func Render(text string, claims []model.Claim, spans []Span) string {
	var b strings.Builder
	b.Grow(len(text) + len(spans)*160)

	pos := 0
	for _, s := range spans {
		b.WriteString(html.EscapeString(text[pos:s.Start]))
		b.WriteString(openTag(claims[s.Claim]))
		b.WriteString(html.EscapeString(text[s.Start:s.End]))
		b.WriteString("</span>")
		pos = s.End
	}
	b.WriteString(html.EscapeString(text[pos:]))
	return b.String()
}

func openTag(c model.Claim) string {
	status := c.Status
	if status == "" {
		status = "unverified"
	}
	title := strings.ToUpper(string(status))
	if j := strings.TrimSpace(c.Justification); j != "" {
		title += ": " + j
	}
	return fmt.Sprintf(`<span class="claim claim-%s" style="background-color: %s" title="%s">`,
		html.EscapeString(string(status)), c.Status.Color(), html.EscapeString(title))
}
