// Package extract turns fetched HTML into recipe line candidates. JSON-LD
// recipe markup is the preferred source; pages without it fall back to
// readability main-content distillation.
package extract

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"net/url"
	"regexp"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"github.com/pemistahl/lingua-go"

	"recipe-lab/pkg/ingredient"
	"recipe-lab/pkg/steps"
)

// ErrNotEnglish marks input rejected by the language gate.
var ErrNotEnglish = errors.New("input does not look like English text")

// Result is the extracted line candidates plus provenance.
type Result struct {
	Lines            []string
	Method           string
	Title            string
	IngredientCount  int
	InstructionCount int
}

// FromHTML extracts recipe lines from a fetched page. JSON-LD wins when a
// recipe node is present; otherwise the main content is distilled and split
// one sentence per line. Non-English pages are rejected.
func FromHTML(pageURL string, body []byte) (*Result, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}

	result := fromJSONLD(doc)
	if result == nil {
		result, err = fromReadability(pageURL, body, doc)
		if err != nil {
			return nil, err
		}
	}
	if len(result.Lines) == 0 {
		return nil, fmt.Errorf("no text extracted from page")
	}
	if !isLikelyEnglish(strings.Join(result.Lines, "\n")) {
		return nil, ErrNotEnglish
	}
	return result, nil
}

// NormalizeLines trims and drops blank lines, capping the result at
// maxLines. The second return reports truncation.
func NormalizeLines(text string, maxLines int) ([]string, bool) {
	if maxLines <= 0 {
		maxLines = 400
	}
	var lines []string
	for _, raw := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(raw)
		if trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	if len(lines) > maxLines {
		return lines[:maxLines], true
	}
	return lines, false
}

// --- JSON-LD harvesting ---

func fromJSONLD(doc *goquery.Document) *Result {
	var recipes []map[string]any
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		raw := strings.TrimSpace(s.Text())
		if raw == "" {
			return
		}
		// Parse the raw block first. Some sites encode entities like
		// "&quot;" inside JSON strings, and eagerly unescaping before the
		// JSON decode can invalidate the payload.
		variants := []string{raw}
		if decoded := strings.TrimSpace(html.UnescapeString(raw)); decoded != "" && decoded != raw {
			variants = append(variants, decoded)
		}
		for _, variant := range variants {
			for _, payload := range parsePayloads(variant) {
				collectRecipeNodes(payload, &recipes)
			}
		}
	})
	if len(recipes) == 0 {
		return nil
	}

	best := recipes[0]
	bestScore := -1
	for _, recipe := range recipes {
		score := scoreRecipeNode(recipe)
		if score > bestScore {
			best = recipe
			bestScore = score
		}
	}

	title := ingredient.CleanText(stringField(best, "name"))
	ingredients := extractIngredients(best)
	instructions := extractInstructionLines(best)

	var lines []string
	if title != "" {
		lines = append(lines, title)
	}
	if len(ingredients) > 0 {
		lines = append(lines, "Ingredients")
		lines = append(lines, ingredients...)
	}
	if len(instructions) > 0 {
		lines = append(lines, "Instructions")
		lines = append(lines, instructions...)
	}
	if len(lines) == 0 {
		return nil
	}
	return &Result{
		Lines:            lines,
		Method:           "jsonld_recipe",
		Title:            title,
		IngredientCount:  len(ingredients),
		InstructionCount: len(instructions),
	}
}

func scoreRecipeNode(recipe map[string]any) int {
	score := 0
	if ingredient.CleanText(stringField(recipe, "name")) != "" {
		score += 3
	}
	score += len(extractIngredients(recipe))
	score += 2 * len(extractInstructionLines(recipe))
	return score
}

// parsePayloads decodes one JSON-LD block, tolerating the quirks seen in
// the wild: BOMs, HTML comment wrappers, raw control characters inside
// strings, trailing commas, and multiple concatenated JSON values.
func parsePayloads(raw string) []any {
	base := strings.TrimSpace(strings.ReplaceAll(raw, "\ufeff", ""))
	base = strings.TrimSpace(strings.TrimPrefix(base, "<!--"))
	base = strings.TrimSpace(strings.TrimSuffix(base, "-->"))
	if base == "" {
		return nil
	}

	variants := []string{base, escapeControlCharsInStrings(base)}
	for _, v := range variants[:2] {
		variants = append(variants, stripTrailingCommas(v))
	}

	seen := make(map[string]struct{}, len(variants))
	for _, variant := range variants {
		if variant == "" {
			continue
		}
		if _, dup := seen[variant]; dup {
			continue
		}
		seen[variant] = struct{}{}

		if values := decodeJSONValues(variant); len(values) > 0 {
			return values
		}
	}
	return nil
}

// decodeJSONValues reads every JSON value in raw, returning nil when any
// of them fails to decode.
func decodeJSONValues(raw string) []any {
	dec := json.NewDecoder(strings.NewReader(raw))
	var values []any
	for {
		var value any
		err := dec.Decode(&value)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil
		}
		values = append(values, value)
	}
	return values
}

var trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)

func stripTrailingCommas(raw string) string {
	return trailingCommaRe.ReplaceAllString(raw, "$1")
}

// escapeControlCharsInStrings repairs JSON whose string literals carry raw
// newlines or tabs, scanning with string/escape state.
func escapeControlCharsInStrings(raw string) string {
	var out strings.Builder
	out.Grow(len(raw))
	inString := false
	escaped := false
	for _, ch := range raw {
		if inString {
			if escaped {
				out.WriteRune(ch)
				escaped = false
				continue
			}
			switch ch {
			case '\\':
				out.WriteRune(ch)
				escaped = true
			case '"':
				out.WriteRune(ch)
				inString = false
			case '\n':
				out.WriteString(`\n`)
			case '\r':
				out.WriteString(`\r`)
			case '\t':
				out.WriteString(`\t`)
			default:
				out.WriteRune(ch)
			}
			continue
		}
		out.WriteRune(ch)
		if ch == '"' {
			inString = true
			escaped = false
		}
	}
	return out.String()
}

func isRecipeType(value any) bool {
	switch v := value.(type) {
	case string:
		parts := strings.Split(strings.ToLower(v), "/")
		return parts[len(parts)-1] == "recipe"
	case []any:
		for _, item := range v {
			if isRecipeType(item) {
				return true
			}
		}
	}
	return false
}

func collectRecipeNodes(node any, out *[]map[string]any) {
	switch v := node.(type) {
	case map[string]any:
		if isRecipeType(v["@type"]) {
			*out = append(*out, v)
		}
		for _, value := range v {
			collectRecipeNodes(value, out)
		}
	case []any:
		for _, item := range v {
			collectRecipeNodes(item, out)
		}
	}
}

func asList(value any) []any {
	if value == nil {
		return nil
	}
	if list, ok := value.([]any); ok {
		return list
	}
	return []any{value}
}

func stringField(node map[string]any, key string) string {
	if s, ok := node[key].(string); ok {
		return s
	}
	return ""
}

func uniquePreserve(items []string) []string {
	out := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		key := strings.ToLower(item)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, item)
	}
	return out
}

func extractIngredients(recipe map[string]any) []string {
	items := recipe["recipeIngredient"]
	if items == nil {
		items = recipe["ingredients"]
	}
	var out []string
	for _, item := range asList(items) {
		var text string
		switch v := item.(type) {
		case string:
			text = ingredient.NormalizeSource(v)
		case map[string]any:
			text = ingredient.NormalizeSource(strings.TrimSpace(stringField(v, "text")))
		}
		if text != "" {
			out = append(out, text)
		}
	}
	return uniquePreserve(out)
}

// extractInstructionLines walks recipeInstructions, flattening HowToStep
// text and emitting HowToSection names as "Name:" header lines.
func extractInstructionLines(recipe map[string]any) []string {
	var out []string

	var walk func(node any)
	walk = func(node any) {
		switch v := node.(type) {
		case string:
			if text := ingredient.CleanText(v); text != "" {
				out = append(out, steps.SplitNumbered(text)...)
			}
		case []any:
			for _, item := range v {
				walk(item)
			}
		case map[string]any:
			sectionName := ingredient.CleanText(stringField(v, "name"))
			if sectionName != "" && len(strings.Fields(sectionName)) <= 7 && v["itemListElement"] != nil {
				out = append(out, sectionName+":")
			}
			if text, ok := v["text"].(string); ok {
				if t := ingredient.CleanText(text); t != "" {
					out = append(out, steps.SplitNumbered(t)...)
				}
			}
			if _, ok := v["itemListElement"]; ok {
				walk(v["itemListElement"])
				return
			}
			for _, key := range []string{"steps", "instructions", "recipeInstructions"} {
				if inner, ok := v[key]; ok {
					walk(inner)
				}
			}
		}
	}

	source := recipe["recipeInstructions"]
	if source == nil {
		source = recipe["instructions"]
	}
	walk(source)
	return uniquePreserve(out)
}

// --- readability fallback ---

func fromReadability(pageURL string, body []byte, doc *goquery.Document) (*Result, error) {
	parsedURL, err := url.Parse(pageURL)
	if err != nil {
		parsedURL = &url.URL{}
	}
	article, err := readability.FromReader(bytes.NewReader(body), parsedURL)
	if err != nil {
		return nil, fmt.Errorf("readability extraction: %w", err)
	}

	// One sentence per line keeps step candidates separable downstream.
	text := strings.ReplaceAll(article.TextContent, ". ", ".\n")

	title := ingredient.CleanText(article.Title)
	if title == "" {
		title = titleFromDocument(doc)
	}
	if title != "" {
		text = title + "\n" + text
	}

	lines, _ := NormalizeLines(text, 0)
	return &Result{Lines: lines, Method: "readability", Title: title}, nil
}

// titleFromDocument recovers a page title: og:title, then the first h1,
// then <title>.
func titleFromDocument(doc *goquery.Document) string {
	if content, ok := doc.Find(`meta[property="og:title"]`).First().Attr("content"); ok {
		if title := ingredient.CleanText(content); title != "" {
			return title
		}
	}
	if title := ingredient.CleanText(doc.Find("h1").First().Text()); title != "" {
		return title
	}
	return ingredient.CleanText(doc.Find("title").First().Text())
}

// --- language gate ---

var detectorOnce = sync.OnceValue(func() lingua.LanguageDetector {
	return lingua.NewLanguageDetectorBuilder().
		FromLanguages(
			lingua.English, lingua.Spanish, lingua.French,
			lingua.German, lingua.Italian, lingua.Portuguese,
		).
		Build()
})

// isLikelyEnglish gates extracted text. Short inputs skip detection: there
// is not enough signal, and recipe fragments are full of loanwords.
func isLikelyEnglish(text string) bool {
	if len(strings.Fields(text)) < 12 {
		return true
	}
	lang, ok := detectorOnce().DetectLanguageOf(text)
	if !ok {
		return true
	}
	return lang == lingua.English
}
