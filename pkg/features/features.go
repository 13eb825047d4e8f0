// Package features turns a raw input line into the bag of features the line
// classifier consumes: word unigrams/bigrams, character 3-5 grams, and a few
// structural shape flags.
package features

import (
	"regexp"
	"strings"
)

var (
	leadingNumberRe = regexp.MustCompile(`^\d+[.):-]\s*`)
	leadingBulletRe = regexp.MustCompile(`^[•●○◦▪▫\-]+\s*`)
	tokenRe         = regexp.MustCompile(`[a-z0-9]+`)
	whitespaceRe    = regexp.MustCompile(`\s+`)
)

// Normalize strips leading numbering and bullet glyphs and lowercases the
// line. Numbering is presentation, not signal.
func Normalize(text string) string {
	out := strings.ToLower(strings.TrimSpace(text))
	out = leadingNumberRe.ReplaceAllString(out, "")
	out = leadingBulletRe.ReplaceAllString(out, "")
	return out
}

// Extract computes feature counts for one line.
func Extract(text string) map[string]int {
	normalized := Normalize(text)
	tokens := tokenRe.FindAllString(normalized, -1)

	feats := make(map[string]int)

	for _, token := range tokens {
		feats["tok:"+token]++
	}

	for i := 0; i+1 < len(tokens); i++ {
		feats["tok2:"+tokens[i]+"_"+tokens[i+1]]++
	}

	compact := whitespaceRe.ReplaceAllString(normalized, " ")
	runes := []rune(compact)
	for _, n := range []int{3, 4, 5} {
		if len(runes) < n {
			continue
		}
		prefix := "chr3:"
		switch n {
		case 4:
			prefix = "chr4:"
		case 5:
			prefix = "chr5:"
		}
		for i := 0; i+n <= len(runes); i++ {
			gram := string(runes[i : i+n])
			if strings.Contains(gram, "  ") {
				continue
			}
			feats[prefix+gram]++
		}
	}

	// Small structural hints.
	if strings.HasSuffix(normalized, ":") {
		feats["shape:ends_colon"]++
	}
	if strings.ContainsAny(normalized, "0123456789") {
		feats["shape:has_digit"]++
	}
	if strings.HasPrefix(normalized, "note") || strings.HasPrefix(normalized, "tip") {
		feats["shape:starts_note"]++
	}
	if strings.HasPrefix(normalized, "<") && strings.HasSuffix(normalized, ">") {
		feats["shape:tag_like"]++
	}

	return feats
}

// Total sums all feature counts.
func Total(feats map[string]int) int {
	total := 0
	for _, count := range feats {
		total += count
	}
	return total
}
