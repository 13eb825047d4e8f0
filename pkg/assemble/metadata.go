package assemble

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"recipe-lab/pkg/ingredient"
)

var (
	clockTimeRe  = regexp.MustCompile(`\b(\d+):(\d+)\b`)
	hourSpanRe   = regexp.MustCompile(`\b(\d+)\s*(?:hours?|hrs?|h)\b`)
	minuteSpanRe = regexp.MustCompile(`\b(\d+)\s*(?:minutes?|mins?|m)\b`)
	bareNumberRe = regexp.MustCompile(`\b(\d+)\b`)

	yieldNumberRe = regexp.MustCompile(`(\d+(?:\s*(?:-|–|to)\s*\d+)?)`)

	totalTimeLineRe = regexp.MustCompile(`(?i)^\s*(?:total\s*time|total|ready\s*in)\s*:?\s*(.+)$`)
	plainTimeLineRe = regexp.MustCompile(`(?i)^\s*time\s*:\s*(.+)$`)
	prepTimeLineRe  = regexp.MustCompile(`(?i)^\s*(?:prep\s*time|prepping\s*time|preparation\s*time)\s*:?\s*(.+)$`)
	cookTimeLineRe  = regexp.MustCompile(`(?i)^\s*(?:cook\s*time|cooking\s*time|bake\s*time|roast\s*time)\s*:?\s*(.+)$`)
)

var yieldPrefixes = []string{
	"serves", "serving", "servings", "yield", "yields", "makes", "portion", "portions",
}

// parseTimeMinutes reads a free-form duration: "1 hour 20 minutes", "1:20",
// or a bare number of minutes.
func parseTimeMinutes(text string) (int, bool) {
	cleaned := strings.ToLower(strings.TrimSpace(text))
	if cleaned == "" {
		return 0, false
	}

	if m := clockTimeRe.FindStringSubmatch(cleaned); m != nil {
		hours, _ := strconv.Atoi(m[1])
		minutes, _ := strconv.Atoi(m[2])
		return hours*60 + minutes, true
	}

	hours, minutes, found := 0, 0, false
	if m := hourSpanRe.FindStringSubmatch(cleaned); m != nil {
		hours, _ = strconv.Atoi(m[1])
		found = true
	}
	if m := minuteSpanRe.FindStringSubmatch(cleaned); m != nil {
		minutes, _ = strconv.Atoi(m[1])
		found = true
	}
	if found {
		return hours*60 + minutes, true
	}

	if m := bareNumberRe.FindStringSubmatch(cleaned); m != nil {
		value, _ := strconv.Atoi(m[1])
		return value, true
	}
	return 0, false
}

func minutesByPattern(text string, pattern *regexp.Regexp) (int, bool) {
	m := pattern.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	tail := ingredient.CleanText(m[1])
	if tail == "" {
		return 0, false
	}
	return parseTimeMinutes(tail)
}

// extractYieldLine recognizes serving lines ("Serves 4", "Makes 6 to 8")
// and rewrites them into the canonical "N servings" form.
func extractYieldLine(text string) (string, bool) {
	lowered := strings.ToLower(strings.TrimSpace(text))
	matched := false
	for _, prefix := range yieldPrefixes {
		if lowered == prefix || strings.HasPrefix(lowered, prefix+" ") || strings.HasPrefix(lowered, prefix+":") {
			matched = true
			break
		}
	}
	if !matched {
		return "", false
	}

	m := yieldNumberRe.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	number := strings.ReplaceAll(m[1], " to ", "-")
	number = strings.ReplaceAll(number, "–", "-")
	number = strings.TrimSpace(whitespaceRe.ReplaceAllString(number, " "))
	return fmt.Sprintf("%s servings", number), true
}

// lineMetadata is what a yields/time metadata line contributes.
type lineMetadata struct {
	yields       string
	totalMinutes *int
	prepMinutes  *int
	cookMinutes  *int
}

// extractMetadata returns nil when the line carries no recipe metadata.
func extractMetadata(text string) *lineMetadata {
	if text == "" {
		return nil
	}
	var out lineMetadata
	found := false

	if yields, ok := extractYieldLine(text); ok {
		out.yields = yields
		found = true
	}
	if total, ok := minutesByPattern(text, totalTimeLineRe); ok {
		out.totalMinutes = &total
		found = true
	} else if total, ok := minutesByPattern(text, plainTimeLineRe); ok {
		out.totalMinutes = &total
		found = true
	}
	if prep, ok := minutesByPattern(text, prepTimeLineRe); ok {
		out.prepMinutes = &prep
		found = true
	}
	if cook, ok := minutesByPattern(text, cookTimeLineRe); ok {
		out.cookMinutes = &cook
		found = true
	}

	if !found {
		return nil
	}
	return &out
}

// defaultSourceTitle falls back to the host of the source URL.
func defaultSourceTitle(sourceURL string) string {
	if sourceURL == "" {
		return ""
	}
	parsed, err := url.Parse(sourceURL)
	if err != nil {
		return ""
	}
	return parsed.Host
}
