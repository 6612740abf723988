package summarize

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/deusflow/aipost/internal/news"
)

// Output is the JSON object the model must answer with.
type Output struct {
	XText        string `json:"x_text"`
	LinkedInText string `json:"linkedin_text"`
}

const outputSchema = `{
  "type": "object",
  "required": ["x_text", "linkedin_text"],
  "properties": {
    "x_text": {"type": "string", "minLength": 1},
    "linkedin_text": {"type": "string", "minLength": 1},
    "char_counts": {"type": "object"}
  }
}`

var outputSchemaLoader = gojsonschema.NewStringLoader(outputSchema)

// ParseOutput validates raw model output against the schema and decodes it.
// Markdown code fences around the JSON are tolerated.
func ParseOutput(raw string) (Output, error) {
	raw = stripFences(raw)
	if raw == "" {
		return Output{}, fmt.Errorf("empty response")
	}

	result, err := gojsonschema.Validate(outputSchemaLoader, gojsonschema.NewStringLoader(raw))
	if err != nil {
		return Output{}, fmt.Errorf("invalid JSON: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return Output{}, fmt.Errorf("schema validation failed: %s", strings.Join(msgs, "; "))
	}

	var out Output
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return Output{}, fmt.Errorf("decode: %w", err)
	}
	out.XText = SanitizeAIText(out.XText)
	out.LinkedInText = SanitizeAIText(out.LinkedInText)
	if out.XText == "" || out.LinkedInText == "" {
		return Output{}, fmt.Errorf("model returned blank text")
	}
	return out, nil
}

var (
	noteLine    = regexp.MustCompile(`(?im)^\s*(note|disclaimer)\s*:.*$`)
	noteInline  = regexp.MustCompile(`(?i)[(\[]\s*(note|disclaimer)\s*:[^)\]]*[)\]]`)
	blankRuns   = regexp.MustCompile(`\n{3,}`)
	spaceBefore = regexp.MustCompile(`[ \t]+\n`)
)

// SanitizeAIText removes model disclaimers such as "(Note: ...)" or a
// leading "Note:" line, and tidies the whitespace left behind.
func SanitizeAIText(s string) string {
	s = noteInline.ReplaceAllString(s, "")
	s = noteLine.ReplaceAllString(s, "")
	s = spaceBefore.ReplaceAllString(s, "\n")
	s = blankRuns.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(s, "```")
	}
	return strings.TrimSpace(s)
}

func systemPrompt(l Limits) string {
	return fmt.Sprintf(`You are an AI content curator. Summarize the article for social posting in two versions.

1. X version: at most %d characters including the link. Punchy hook, one or two key insights, one or two hashtags, end with the link.
2. LinkedIn version: at most %d characters. Professional tone: a hook, three to five bullet takeaways, a short note on implications, a call to discuss, the link, two or three hashtags.

Answer with JSON only, no markdown:
{"x_text": "...", "linkedin_text": "...", "char_counts": {"x": 0, "linkedin": 0}}

Rephrase instead of copying. If details are thin, stay factual and do not invent numbers.`, l.ShortMax, l.LongMax)
}

func userPrompt(c news.Candidate) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n", c.Title)
	if c.Link != "" {
		fmt.Fprintf(&b, "Link: %s\n", c.Link)
	}
	if c.SourceTag != "" {
		fmt.Fprintf(&b, "Source: %s\n", c.SourceTag)
	}
	if len(c.Authors) > 0 {
		authors := c.Authors
		if len(authors) > 5 {
			authors = append(authors[:5:5], "et al.")
		}
		fmt.Fprintf(&b, "Authors: %s\n", strings.Join(authors, ", "))
	}
	if len(c.CategoryTags) > 0 {
		fmt.Fprintf(&b, "Categories: %s\n", strings.Join(c.CategoryTags, ", "))
	}
	if c.Excerpt != "" {
		fmt.Fprintf(&b, "\nContent:\n%s\n", Truncate(c.Excerpt, 6000))
	}
	return b.String()
}
