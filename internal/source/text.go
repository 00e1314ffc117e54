package source

import (
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ErrNoText is returned when a page has no readable paragraphs
var ErrNoText = errors.New("no readable text found on page")

// noise is removed before text extraction
const noise = "script, style, noscript, template, svg, nav, header, footer, aside, form, " +
	"sup.reference, .mw-editsection, .navbox, .infobox, .reflist, .references, #toc, .toc"

// content containers in order of preference
var containers = []string{"#mw-content-text .mw-parser-output", "article", "main", "[role=main]", "#content", "body"}

// ExtractText returns the page title and its readable text. Headings, paragraphs,
// list items and quotes become blocks separated by blank lines.
func ExtractText(htmlContent string) (string, string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return "", "", fmt.Errorf("parse HTML: %w", err)
	}

	title := clean(doc.Find("h1").First().Text())
	if title == "" {
		title = clean(doc.Find("title").First().Text())
	}

	doc.Find(noise).Remove()

	var root *goquery.Selection
	for _, sel := range containers {
		if s := doc.Find(sel).First(); s.Length() > 0 && clean(s.Text()) != "" {
			root = s
			break
		}
	}
	if root == nil {
		return title, "", ErrNoText
	}

	var blocks []string
	seen := make(map[string]bool)
	root.Find("h1, h2, h3, h4, p, li, blockquote, pre").Each(func(_ int, s *goquery.Selection) {
		// nested blocks are collected through their parent
		if s.ParentsFiltered("p, li, blockquote").Length() > 0 {
			return
		}
		text := clean(s.Text())
		if text == "" || seen[text] {
			return
		}
		seen[text] = true
		blocks = append(blocks, text)
	})

	if len(blocks) == 0 {
		if text := clean(root.Text()); text != "" {
			blocks = append(blocks, text)
		}
	}
	if len(blocks) == 0 {
		return title, "", ErrNoText
	}
	return title, strings.Join(blocks, "\n\n"), nil
}

func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
