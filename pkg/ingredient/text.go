package ingredient

import (
	"html"
	"regexp"
	"strings"

	"recipe-lab/pkg/steps"
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)

	parenCommaRe = regexp.MustCompile(`\(\s*,\s*`)
	parenSemiRe  = regexp.MustCompile(`\(\s*;\s*`)
	doubleParenRe = regexp.MustCompile(`\(\(\s*([^()]*)\s*\)\)`)
	parenOpenWSRe = regexp.MustCompile(`\(\s+`)
	parenCloseWSRe = regexp.MustCompile(`\s+\)`)

	bulletLeadRe       = regexp.MustCompile(`^\s*[•·▪◦●\-–—]+\s*`)
	slashFractionLeadRe = regexp.MustCompile(`^\s*/+\s*(\d+\s*/\s*\d+|[½¼¾⅓⅔⅛⅜⅝⅞])`)
	ocrOneSlashRe      = regexp.MustCompile(`(^|[^A-Za-z])[Il](\s*/\s*\d)`)
	ocrZeroLeadRe      = regexp.MustCompile(`(^|[^A-Za-z])[oO](\s*[.,]?\d)`)
	ocrTbspRe          = regexp.MustCompile(`\btb\s*5\s*p\b`)
	ocrTspRe           = regexp.MustCompile(`\bt\s*5\s*p\b`)
	ocrLbRe            = regexp.MustCompile(`\b[1iI]b\b`)

	digitLetterRe    = regexp.MustCompile(`(\d)([A-Za-z])`)
	letterDigitRe    = regexp.MustCompile(`([A-Za-z])(\d)`)
	unitSlashDigitRe = regexp.MustCompile(`([A-Za-z])\s*/\s*(\d)`)

	artifactTimeLineRe  = regexp.MustCompile(`^\s*(?:prep(?:ping)?|preparation|cook(?:ing)?|total)\s*tim(?:e)?\b`)
	artifactSymbolsRe   = regexp.MustCompile(`^[\W_]+$`)
	artifactShortWordRe = regexp.MustCompile(`^[A-Za-z]{1,6}$`)
	alphaRe             = regexp.MustCompile(`[A-Za-z]`)

	tipsRemainderRe = regexp.MustCompile(`(?i)\btips?\s*(?:and|&)\s*variations?\b[:\-\s]*(.*)$`)
	tipsBareRe      = regexp.MustCompile(`(?i)^tips?(?:\s*(?:and|&)\s*variations?)?$`)

	quantityLeadCharRe = regexp.MustCompile(`^[\d\s½¼¾⅓⅔⅛⅜⅝⅞/.\-]`)
	wordSplitRe        = regexp.MustCompile(`[^a-z0-9]+`)
)

// artifactKeepWords are short lines that survive OCR artifact filtering
// because they are real (truncated) ingredient names.
var artifactKeepWords = map[string]bool{
	"salt": true, "zest": true, "oil": true, "rice": true, "egg": true, "eggs": true,
}

// instructionKeywords mark a line as instruction prose when they lead it.
var instructionKeywords = map[string]bool{
	"add": true, "bake": true, "beat": true, "blend": true, "boil": true,
	"combine": true, "cook": true, "cool": true, "drain": true, "fold": true,
	"fry": true, "grill": true, "heat": true, "knead": true, "let": true,
	"marinate": true, "mix": true, "place": true, "pour": true, "preheat": true,
	"reduce": true, "rest": true, "roast": true, "saute": true, "season": true,
	"serve": true, "simmer": true, "stir": true, "transfer": true, "whisk": true,
}

// CleanText unescapes HTML entities and collapses runs of whitespace.
func CleanText(value string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(html.UnescapeString(value), " "))
}

// NormalizeSource repairs malformed parentheticals that some publishers emit
// in structured data, such as "garlic ((finely minced))" or "(, minced)",
// and balances any parens left open.
func NormalizeSource(value string) string {
	text := CleanText(value)
	if text == "" {
		return ""
	}

	text = parenCommaRe.ReplaceAllString(text, "(")
	text = parenSemiRe.ReplaceAllString(text, "(")

	for {
		previous := text
		text = doubleParenRe.ReplaceAllString(text, "($1)")
		text = strings.ReplaceAll(text, "((", "(")
		text = strings.ReplaceAll(text, "))", ")")
		if text == previous {
			break
		}
	}

	text = parenOpenWSRe.ReplaceAllString(text, "(")
	text = parenCloseWSRe.ReplaceAllString(text, ")")

	depth := 0
	var balanced strings.Builder
	for _, char := range text {
		switch char {
		case '(':
			depth++
			balanced.WriteRune(char)
		case ')':
			if depth == 0 {
				continue
			}
			depth--
			balanced.WriteRune(char)
		default:
			balanced.WriteRune(char)
		}
	}
	for ; depth > 0; depth-- {
		balanced.WriteRune(')')
	}
	return CleanText(balanced.String())
}

// normalizeOCRText repairs the character confusions OCR introduces in
// ingredient lines before quantity parsing sees them.
func normalizeOCRText(text string) string {
	normalized := bulletLeadRe.ReplaceAllString(text, "")
	normalized = slashFractionLeadRe.ReplaceAllString(normalized, "$1")
	normalized = ocrOneSlashRe.ReplaceAllString(normalized, "${1}1${2}")
	normalized = ocrZeroLeadRe.ReplaceAllString(normalized, "${1}0${2}")
	normalized = ocrTbspRe.ReplaceAllString(normalized, "tbsp")
	normalized = ocrTspRe.ReplaceAllString(normalized, "tsp")
	normalized = ocrLbRe.ReplaceAllString(normalized, "lb")
	return normalized
}

// normalizeSpacing detaches glued quantities and units ("800g", "1lb12oz")
// and spaces out slash alternatives while leaving "1/2" fractions intact.
func normalizeSpacing(text string) string {
	normalized := digitLetterRe.ReplaceAllString(text, "$1 $2")
	normalized = letterDigitRe.ReplaceAllString(normalized, "$1 $2")
	normalized = unitSlashDigitRe.ReplaceAllString(normalized, "$1 / $2")
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(normalized, " "))
}

// IsOCRArtifact reports whether a line is scanner noise rather than recipe
// content: template credits, time lines, bare symbols, or stray short
// fragments.
func IsOCRArtifact(text string) bool {
	cleaned := CleanText(text)
	if cleaned == "" {
		return true
	}
	lowered := strings.ToLower(cleaned)

	if strings.Contains(lowered, "templatelab") || strings.Contains(lowered, "created by") || lowered == "reated b" {
		return true
	}
	if artifactTimeLineRe.MatchString(lowered) {
		return true
	}
	if artifactSymbolsRe.MatchString(cleaned) {
		return true
	}
	if len(alphaRe.FindAllString(cleaned, -1)) <= 1 {
		return true
	}
	if artifactShortWordRe.MatchString(cleaned) && !artifactKeepWords[lowered] {
		return true
	}
	return false
}

// TipsRemainder detects "Tips and Variations" boilerplate. It returns the
// text after the marker and true when the marker is present; a bare marker
// line yields an empty remainder.
func TipsRemainder(text string) (string, bool) {
	cleaned := CleanText(text)
	if cleaned == "" {
		return "", false
	}
	if m := tipsRemainderRe.FindStringSubmatch(cleaned); m != nil {
		return CleanText(m[1]), true
	}
	if tipsBareRe.MatchString(cleaned) {
		return "", true
	}
	return "", false
}

// LooksLikeQuantityLead reports whether a line starts with quantity
// characters.
func LooksLikeQuantityLead(line string) bool {
	return quantityLeadCharRe.MatchString(line)
}

// LooksLikeInstruction reports whether a line reads as instruction prose
// that leaked into the ingredient list.
func LooksLikeInstruction(line string) bool {
	if LooksLikeQuantityLead(line) {
		return false
	}
	parts := steps.SplitNumbered(line)
	if len(parts) != 1 || parts[0] != line {
		return true
	}

	lowered := strings.ToLower(line)
	words := strings.Fields(lowered)
	if len(words) == 0 {
		return false
	}
	if instructionKeywords[words[0]] {
		return true
	}
	switch words[0] {
	case "in", "on", "to", "then", "meanwhile":
		for _, token := range wordSplitRe.Split(lowered, -1) {
			if instructionKeywords[token] {
				return true
			}
		}
	}
	return false
}
