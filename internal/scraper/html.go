package scraper

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// PlainText strips markup from an HTML fragment and collapses whitespace.
// Plain input passes through with only whitespace normalized.
func PlainText(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if !strings.ContainsAny(s, "<&") {
		return strings.Join(strings.Fields(s), " ")
	}

	// block tags would otherwise glue neighbouring words together
	for _, tag := range []string{"</p>", "<br>", "<br/>", "<br />", "</li>", "</div>", "</h1>", "</h2>", "</h3>"} {
		s = strings.ReplaceAll(s, tag, tag+" ")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.Join(strings.Fields(s), " ")
	}
	doc.Find("script, style, noscript").Remove()
	return strings.Join(strings.Fields(doc.Text()), " ")
}

// leadImage returns the og:image or twitter:image of a page.
func leadImage(doc *goquery.Document) string {
	for _, sel := range []string{
		`meta[property="og:image"]`,
		`meta[property="og:image:url"]`,
		`meta[name="twitter:image"]`,
	} {
		if v, ok := doc.Find(sel).First().Attr("content"); ok {
			if v = strings.TrimSpace(v); strings.HasPrefix(v, "http") {
				return v
			}
		}
	}
	return ""
}

// genericContent is the selector-based extractor used when readability
// finds nothing. Selectors go from specific to generic; the first one that
// yields at least three paragraphs wins, otherwise the richest one does.
func genericContent(doc *goquery.Document) string {
	// Try most popular selectors
	selectors := []string{
		"article p",
		".article p",
		".content p",
		".post-content p",
		".entry-content p",
		"main p",
		"#content p",
		"p",
	}

	var best []string
	for _, selector := range selectors {
		var paragraphs []string
		doc.Find(selector).Each(func(i int, s *goquery.Selection) {
			text := strings.TrimSpace(s.Text())
			if text != "" && len(text) > 20 {
				paragraphs = append(paragraphs, text)
			}
		})
		if len(paragraphs) > len(best) {
			best = paragraphs
		}
		if len(paragraphs) >= 3 { // If we find 3 paragraphs, it's enough
			break
		}
	}

	return strings.Join(best, " ")
}
