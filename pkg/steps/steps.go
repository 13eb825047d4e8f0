// Package steps turns instruction lines into ordered step entries: splitting
// collapsed numbered blocks, stripping list prefixes, merging wrapped
// continuations, and extracting cook timers.
package steps

import (
	"regexp"
	"strconv"
	"strings"

	"recipe-lab/models"
)

var (
	numberedMarkerRe = regexp.MustCompile(`(\d{1,2})\.\s+`)
	numberedLeadRe   = regexp.MustCompile(`^\d+\s*[.)]\s+`)
	bulletPrefixRe   = regexp.MustCompile(`^\s*[•·▪◦●]+\s*`)
	numberPrefixRe   = regexp.MustCompile(`^\s*\d{1,2}\s*[.)]\s*`)
	conjunctionRe    = regexp.MustCompile(`^(?i:and|or|then|plus|also)\b`)
	lowercaseLeadRe  = regexp.MustCompile(`^[a-z(\[\"'/-]`)
	whitespaceRe     = regexp.MustCompile(`\s+`)
	subsectionRe     = regexp.MustCompile(`\d`)
)

func cleanText(text string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))
}

// SplitNumbered breaks a single line that carries several numbered
// instructions ("1. ...2. ...3. ...") into separate step texts. A line
// needs at least two markers, the first at offset zero, or it comes back
// unchanged as a single element.
func SplitNumbered(text string) []string {
	cleaned := cleanText(text)
	if cleaned == "" {
		return nil
	}

	matches := numberedMarkerRe.FindAllStringIndex(cleaned, -1)
	// Drop markers preceded by a digit so "350. Bake" style decimals and
	// temperatures do not count as step numbering.
	filtered := matches[:0]
	for _, m := range matches {
		if m[0] > 0 {
			prev := cleaned[m[0]-1]
			if prev >= '0' && prev <= '9' {
				continue
			}
		}
		filtered = append(filtered, m)
	}
	if len(filtered) < 2 || filtered[0][0] != 0 {
		return []string{cleaned}
	}

	parts := make([]string, 0, len(filtered))
	for i, m := range filtered {
		end := len(cleaned)
		if i+1 < len(filtered) {
			end = filtered[i+1][0]
		}
		if part := cleanText(cleaned[m[0]:end]); part != "" {
			parts = append(parts, part)
		}
	}
	if len(parts) == 0 {
		return []string{cleaned}
	}
	return parts
}

// StripPrefix removes bullet and step-number prefixes; numbering is
// reassigned when the recipe is assembled.
func StripPrefix(text string) string {
	cleaned := cleanText(text)
	if cleaned == "" {
		return ""
	}
	cleaned = strings.TrimSpace(bulletPrefixRe.ReplaceAllString(cleaned, ""))
	cleaned = strings.TrimSpace(numberPrefixRe.ReplaceAllString(cleaned, ""))
	cleaned = strings.TrimSpace(bulletPrefixRe.ReplaceAllString(cleaned, ""))
	return cleaned
}

// LooksLikeSubsectionHeader matches short colon-terminated group headers
// such as "For the Filling:".
func LooksLikeSubsectionHeader(line string) bool {
	text := strings.TrimSpace(line)
	if !strings.HasSuffix(text, ":") {
		return false
	}
	words := strings.Fields(strings.TrimSpace(strings.TrimSuffix(text, ":")))
	if len(words) == 0 || len(words) > 7 {
		return false
	}
	if len(text) > 90 {
		return false
	}
	return !subsectionRe.MatchString(text)
}

// IsContinuation reports whether curr is the wrapped tail of prev rather
// than a new step.
func IsContinuation(prev, curr string) bool {
	prev = cleanText(prev)
	curr = cleanText(curr)
	if prev == "" || curr == "" {
		return false
	}
	if numberedLeadRe.MatchString(curr) {
		return false
	}
	if LooksLikeSubsectionHeader(curr) {
		return false
	}
	if strings.HasSuffix(prev, ".") || strings.HasSuffix(prev, "!") || strings.HasSuffix(prev, "?") {
		return false
	}
	for _, suffix := range []string{",", ";", "-", "–", "—", "/"} {
		if strings.HasSuffix(prev, suffix) {
			return true
		}
	}
	if strings.Count(prev, "(") > strings.Count(prev, ")") {
		return true
	}
	if conjunctionRe.MatchString(curr) {
		return true
	}
	return lowercaseLeadRe.MatchString(curr)
}

// MergeWrapped joins continuation fragments into their preceding step and
// renumbers. Merging never crosses a section boundary; timers are
// recomputed for merged text.
func MergeWrapped(entries []models.StepEntry) []models.StepEntry {
	merged := make([]models.StepEntry, 0, len(entries))
	for _, entry := range entries {
		text := cleanText(entry.Text)
		if text == "" {
			continue
		}
		if len(merged) > 0 {
			prev := &merged[len(merged)-1]
			if sameSection(prev.Section, entry.Section) && IsContinuation(prev.Text, text) {
				prev.Text = cleanText(prev.Text + " " + text)
				prev.Timers = ExtractTimers(prev.Text)
				continue
			}
		}
		merged = append(merged, models.StepEntry{
			Index:   len(merged),
			Text:    text,
			Timers:  ExtractTimers(text),
			Section: entry.Section,
		})
	}
	for i := range merged {
		merged[i].Index = i
	}
	return merged
}

func sameSection(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// timerLabelKeywords are checked in order against the text surrounding a
// duration match; the first hit names the timer.
var timerLabelKeywords = []struct {
	keywords []string
	label    string
}{
	{[]string{"rest", "resting"}, "Rest"},
	{[]string{"chill", "chilling", "refrigerate", "cool", "cooling"}, "Chill"},
	{[]string{"rise", "proof", "proofing", "ferment"}, "Rise"},
	{[]string{"marinate", "marinating"}, "Marinate"},
	{[]string{"simmer", "simmering"}, "Simmer"},
	{[]string{"boil", "boiling"}, "Boil"},
	{[]string{"bake", "baking"}, "Bake"},
	{[]string{"roast", "roasting"}, "Roast"},
	{[]string{"fry", "frying", "saute", "sauté"}, "Fry"},
}

var durationPatterns = []struct {
	re      *regexp.Regexp
	seconds int
}{
	{regexp.MustCompile(`(\d+)\s*(?:seconds?|secs?)\b`), 1},
	{regexp.MustCompile(`(\d+)\s*(?:minutes?|mins?)\b`), 60},
	{regexp.MustCompile(`(\d+)\s*(?:hours?|hrs?)\b`), 3600},
}

// ExtractTimers finds every duration in a step and labels it from nearby
// context: up to 60 characters before the match, then 24 after.
func ExtractTimers(stepText string) []models.TimerSpec {
	lowered := strings.ToLower(stepText)

	type rawMatch struct {
		start, end, seconds int
	}
	var found []rawMatch
	for _, pattern := range durationPatterns {
		for _, loc := range pattern.re.FindAllStringSubmatchIndex(lowered, -1) {
			value, err := strconv.Atoi(lowered[loc[2]:loc[3]])
			if err != nil {
				continue
			}
			found = append(found, rawMatch{start: loc[0], end: loc[1], seconds: value * pattern.seconds})
		}
	}
	for i := 1; i < len(found); i++ {
		for j := i; j > 0 && found[j].start < found[j-1].start; j-- {
			found[j], found[j-1] = found[j-1], found[j]
		}
	}

	timers := make([]models.TimerSpec, 0, len(found))
	for i, m := range found {
		timers = append(timers, models.TimerSpec{
			Seconds: m.seconds,
			Label:   inferTimerLabel(lowered, m.start, m.end, i, len(found)),
		})
	}
	return timers
}

func inferTimerLabel(lowered string, start, end, index, total int) string {
	beforeStart := start - 60
	if beforeStart < 0 {
		beforeStart = 0
	}
	afterEnd := end + 24
	if afterEnd > len(lowered) {
		afterEnd = len(lowered)
	}
	before := lowered[beforeStart:start]
	after := lowered[end:afterEnd]

	for _, group := range timerLabelKeywords {
		for _, keyword := range group.keywords {
			if strings.Contains(before, keyword) {
				return group.label
			}
		}
	}
	for _, group := range timerLabelKeywords {
		for _, keyword := range group.keywords {
			if strings.Contains(after, keyword) {
				return group.label
			}
		}
	}
	if total > 1 && index == total-1 &&
		(strings.Contains(before, "then") || strings.Contains(before, "after")) {
		return "Rest"
	}
	return "Cook"
}
