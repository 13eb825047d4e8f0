// Package rules holds the deterministic line heuristics that run before the
// statistical classifier. The rule list is evaluated in fixed priority
// order, first match wins; the order encodes precedence and is load-bearing.
package rules

import (
	"regexp"
	"strings"

	"recipe-lab/models"
	"recipe-lab/pkg/features"
)

// ActionVerbs are imperative leads that mark a line as an instruction.
var ActionVerbs = []string{
	"add", "bake", "beat", "boil", "brown", "chop", "combine", "cook",
	"fold", "heat", "let", "marinate", "mash", "mix", "pat", "pour",
	"preheat", "refrigerate", "rest", "roast", "saute", "serve", "simmer",
	"spread", "stir", "toast", "toss", "whisk",
}

// NotePrefixes mark note-style headers and note lines.
var NotePrefixes = []string{
	"note", "notes", "tip", "tips", "chef's note", "variation",
	"variations", "storage", "substitution", "substitutions",
}

// HeaderKeywords are bare section headers recognized verbatim.
var HeaderKeywords = []string{
	"ingredients", "ingredient", "instructions", "instruction",
	"directions", "direction", "steps", "step", "method",
}

// IngredientHeaderKeywords map a header line to the ingredients section.
var IngredientHeaderKeywords = []string{
	"ingredient", "ingredients", "for the ingredients", "what you'll need",
}

// StepHeaderKeywords map a header line to the steps section.
var StepHeaderKeywords = []string{
	"instruction", "instructions", "direction", "directions", "step",
	"steps", "method", "preparation",
}

// ingredientHints are mid-line phrases that bias a short line toward
// ingredient.
var ingredientHints = []string{
	"to taste", "for garnish", "optional", "divided", "melted",
}

var (
	quantityLeadRe    = regexp.MustCompile(`^[\d½¼¾⅓⅔⅛⅜⅝⅞/.\-]+\s+`)
	multiplierLeadRe  = regexp.MustCompile(`^\d+\s*[x×]\s+`)
	whitespaceRe      = regexp.MustCompile(`\s+`)
	headerKeyTrimRe   = regexp.MustCompile(`^[\W_]+|[\W_]+$`)
	titleWordRe       = regexp.MustCompile(`[A-Za-z]+`)
)

// Decision is a heuristic label with its fixed confidence.
type Decision struct {
	Label      models.Label
	Confidence float64
}

type rule struct {
	name  string
	match func(ctx lineContext) *Decision
}

type lineContext struct {
	raw     string
	compact string
	words   []string
}

func decide(label models.Label, confidence float64) *Decision {
	return &Decision{Label: label, Confidence: confidence}
}

// ruleTable is evaluated top to bottom; do not reorder without updating the
// precedence tests.
var ruleTable = []rule{
	{"empty", func(c lineContext) *Decision {
		if c.compact == "" {
			return decide(models.LabelJunk, 0.99)
		}
		return nil
	}},
	{"tag_like", func(c lineContext) *Decision {
		if strings.HasPrefix(c.compact, "<") && strings.HasSuffix(c.compact, ">") {
			return decide(models.LabelJunk, 0.99)
		}
		return nil
	}},
	{"exact_header", func(c lineContext) *Decision {
		for _, keyword := range HeaderKeywords {
			if c.compact == keyword {
				return decide(models.LabelHeader, 0.99)
			}
		}
		return nil
	}},
	{"for_the_colon", func(c lineContext) *Decision {
		if strings.HasPrefix(c.compact, "for the ") && strings.HasSuffix(c.compact, ":") {
			return decide(models.LabelHeader, 0.97)
		}
		return nil
	}},
	{"colon_terminated", func(c lineContext) *Decision {
		if !strings.HasSuffix(c.compact, ":") {
			return nil
		}
		stem := strings.TrimSpace(strings.TrimSuffix(c.compact, ":"))
		for _, prefix := range NotePrefixes {
			if strings.HasPrefix(stem, prefix) {
				return decide(models.LabelHeader, 0.98)
			}
		}
		for _, keyword := range HeaderKeywords {
			if stem == keyword {
				return decide(models.LabelHeader, 0.98)
			}
		}
		if len(c.words) <= 5 {
			return decide(models.LabelHeader, 0.90)
		}
		return nil
	}},
	{"note_prefix_colon", func(c lineContext) *Decision {
		for _, prefix := range NotePrefixes {
			if strings.HasPrefix(c.compact, prefix+":") {
				return decide(models.LabelNote, 0.97)
			}
		}
		return nil
	}},
	{"note_prefix_space", func(c lineContext) *Decision {
		for _, prefix := range NotePrefixes {
			if strings.HasPrefix(c.compact, prefix+" ") {
				return decide(models.LabelNote, 0.95)
			}
		}
		return nil
	}},
	{"quantity_lead", func(c lineContext) *Decision {
		if quantityLeadRe.MatchString(c.compact) {
			return decide(models.LabelIngredient, 0.95)
		}
		return nil
	}},
	{"multiplier_lead", func(c lineContext) *Decision {
		if multiplierLeadRe.MatchString(c.compact) {
			return decide(models.LabelIngredient, 0.92)
		}
		return nil
	}},
	{"action_verb_lead", func(c lineContext) *Decision {
		if StartsWithActionVerb(c.compact) {
			return decide(models.LabelStep, 0.92)
		}
		return nil
	}},
	{"long_line", func(c lineContext) *Decision {
		if len(c.words) >= 8 {
			return decide(models.LabelStep, 0.88)
		}
		return nil
	}},
	{"ingredient_hint", func(c lineContext) *Decision {
		for _, hint := range ingredientHints {
			if strings.Contains(c.compact, hint) {
				return decide(models.LabelIngredient, 0.86)
			}
		}
		return nil
	}},
	{"title_shape", func(c lineContext) *Decision {
		if looksLikeTitle(c.raw, c.words) {
			return decide(models.LabelTitle, 0.78)
		}
		return nil
	}},
}

// Apply runs the heuristics in priority order and returns the first match,
// or nil when every rule abstains and the statistical model should decide.
func Apply(text string) *Decision {
	raw := strings.TrimSpace(text)
	normalized := features.Normalize(text)
	compact := strings.TrimSpace(whitespaceRe.ReplaceAllString(normalized, " "))

	ctx := lineContext{raw: raw, compact: compact}
	if compact != "" {
		ctx.words = strings.Fields(compact)
	}

	for _, r := range ruleTable {
		if d := r.match(ctx); d != nil {
			return d
		}
	}
	return nil
}

// StartsWithActionVerb reports whether a normalized line leads with a known
// imperative cooking verb.
func StartsWithActionVerb(normalized string) bool {
	for _, verb := range ActionVerbs {
		if strings.HasPrefix(normalized, verb+" ") {
			return true
		}
	}
	return false
}

// headerKey canonicalizes a line for header lookups: strip surrounding
// punctuation and any trailing colon, lowercase.
func headerKey(line string) string {
	lowered := strings.ToLower(strings.TrimSpace(line))
	lowered = headerKeyTrimRe.ReplaceAllString(lowered, "")
	if strings.HasSuffix(lowered, ":") {
		lowered = strings.TrimSpace(strings.TrimSuffix(lowered, ":"))
	}
	return lowered
}

// HeaderSection maps a header line to the section it opens, or
// SectionUnknown when the text is not a recognized section header.
func HeaderSection(line string) models.Section {
	key := headerKey(line)
	for _, keyword := range IngredientHeaderKeywords {
		if key == keyword {
			return models.SectionIngredients
		}
	}
	for _, keyword := range StepHeaderKeywords {
		if key == keyword {
			return models.SectionSteps
		}
	}
	for _, prefix := range NotePrefixes {
		if strings.HasPrefix(key, prefix) {
			return models.SectionNotes
		}
	}
	return models.SectionUnknown
}

// LooksLikeNoteHeader reports whether a line is a note-style header such as
// "Notes:" or "Tips".
func LooksLikeNoteHeader(line string) bool {
	normalized := strings.TrimSpace(features.Normalize(line))
	if strings.HasSuffix(normalized, ":") {
		normalized = strings.TrimSpace(strings.TrimSuffix(normalized, ":"))
	}
	for _, prefix := range NotePrefixes {
		if strings.HasPrefix(normalized, prefix) {
			return true
		}
	}
	return false
}

// LooksLikeTitle reports whether a raw line has recipe-title shape: short
// title-cased prose with no colon and no digits.
func LooksLikeTitle(raw string) bool {
	trimmed := strings.TrimSpace(raw)
	return looksLikeTitle(trimmed, strings.Fields(features.Normalize(trimmed)))
}

// LooksLikeHeaderLine reports whether a line has section-header shape: a
// bare header keyword or a short colon-terminated phrase.
func LooksLikeHeaderLine(line string) bool {
	normalized := strings.TrimSpace(features.Normalize(line))
	if normalized == "" {
		return false
	}
	for _, keyword := range HeaderKeywords {
		if normalized == keyword {
			return true
		}
	}
	if strings.HasSuffix(normalized, ":") {
		stem := strings.TrimSpace(strings.TrimSuffix(normalized, ":"))
		return stem != "" && len(strings.Fields(stem)) <= 5
	}
	return false
}

func looksLikeTitle(raw string, words []string) bool {
	if len(words) < 2 || len(words) > 6 {
		return false
	}
	if strings.Contains(raw, ":") {
		return false
	}
	if strings.ContainsAny(raw, "0123456789") {
		return false
	}
	first := []rune(raw)
	if len(first) == 0 || !(first[0] >= 'A' && first[0] <= 'Z') {
		return false
	}
	return raw == titleCase(raw)
}

// titleCase mirrors the title-shape check the heuristics were tuned
// against: every alphabetic word capitalized.
func titleCase(raw string) string {
	return titleWordRe.ReplaceAllStringFunc(raw, func(word string) string {
		runes := []rune(strings.ToLower(word))
		if len(runes) == 0 {
			return word
		}
		runes[0] = []rune(strings.ToUpper(string(runes[0])))[0]
		return string(runes)
	})
}
