package assemble

import (
	"regexp"
	"strings"

	"recipe-lab/models"
	"recipe-lab/pkg/ingredient"
	"recipe-lab/pkg/rules"
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)

	notePunctLeadRe  = regexp.MustCompile(`^[,;:\-•\s]+`)
	noteFirstTokenRe = regexp.MustCompile(`^([A-Za-z]+)`)
	noteKeywordRe    = regexp.MustCompile(`\b(?:flavor|nutrition|twist|optional|variation|tip|wine)\b`)

	stepVerbRe    = regexp.MustCompile(`\b(?:add|cook|drain|heat|mix|preheat|prepare|remove|rest|return|serve|simmer|sprinkle|stir|toss)\b`)
	stepNounRe    = regexp.MustCompile(`\b(?:bowl|broth|minutes?|oven|pot|sauce|set aside|skillet)\b`)

	titleBulletRe   = regexp.MustCompile(`^\s*[-•*]\s+`)
	titleNoteLeadRe = regexp.MustCompile(`(?i)^(?:for|feel|use)\b`)
	titleVerbLeadRe = regexp.MustCompile(`(?i)^(?:preheat|mix|add|bake|cook|stir|whisk|combine|toss|rest|serve|simmer|boil)\b`)
	titleTimeRe     = regexp.MustCompile(`(?i)\b(?:prep(?:ping)?|preparation|cook(?:ing)?|total)\s*tim(?:e)?\b`)
	titleWordRe     = regexp.MustCompile(`[A-Za-z][A-Za-z'&-]*`)
)

var noteLeadTokens = map[string]bool{
	"for": true, "feel": true, "use": true, "optional": true,
	"tip": true, "tips": true, "variation": true, "variations": true, "extra": true,
}

// normalizeNoteText strips leading punctuation left over from wrapped notes.
func normalizeNoteText(text string) string {
	cleaned := ingredient.CleanText(text)
	cleaned = notePunctLeadRe.ReplaceAllString(cleaned, "")
	return ingredient.CleanText(cleaned)
}

// looksLikeNoteFragment reports whether a line reads as commentary rather
// than an ingredient or instruction.
func looksLikeNoteFragment(text string) bool {
	cleaned := ingredient.CleanText(text)
	if cleaned == "" {
		return false
	}
	if ingredient.LooksLikeQuantityLead(cleaned) {
		return false
	}
	if ingredient.LooksLikeInstruction(cleaned) {
		return false
	}

	lowered := strings.ToLower(cleaned)
	switch cleaned[0] {
	case ',', ';', ':':
		return len(strings.Fields(cleaned)) >= 2
	}

	first := ""
	if m := noteFirstTokenRe.FindStringSubmatch(cleaned); m != nil {
		first = strings.ToLower(m[1])
	}
	if noteLeadTokens[first] {
		return true
	}
	return noteKeywordRe.MatchString(lowered)
}

// looksLikeStepFragment reports whether a line reads as instruction prose.
func looksLikeStepFragment(text string) bool {
	cleaned := ingredient.CleanText(text)
	if cleaned == "" {
		return false
	}
	if ingredient.IsOCRArtifact(cleaned) {
		return false
	}
	if _, isTips := ingredient.TipsRemainder(cleaned); isTips {
		return false
	}
	if ingredient.LooksLikeQuantityLead(cleaned) {
		return false
	}
	if looksLikeNoteFragment(cleaned) {
		return false
	}
	if ingredient.LooksLikeInstruction(cleaned) {
		return true
	}

	lowered := strings.ToLower(cleaned)
	if stepVerbRe.MatchString(lowered) {
		return true
	}
	if stepNounRe.MatchString(lowered) {
		return true
	}
	return strings.HasSuffix(cleaned, ".") && len(strings.Fields(cleaned)) >= 4
}

// looksLikeRecipeTitle gates which lines may become the recipe title.
func looksLikeRecipeTitle(text string) bool {
	cleaned := ingredient.CleanText(text)
	if cleaned == "" {
		return false
	}
	if _, isTips := ingredient.TipsRemainder(cleaned); isTips {
		return false
	}
	if ingredient.LooksLikeQuantityLead(cleaned) {
		return false
	}
	if extractMetadata(cleaned) != nil {
		return false
	}
	if titleTimeRe.MatchString(cleaned) {
		return false
	}
	if rules.HeaderSection(cleaned) != models.SectionUnknown {
		return false
	}
	if titleBulletRe.MatchString(cleaned) {
		return false
	}
	if strings.HasSuffix(cleaned, ".") {
		return false
	}
	if titleNoteLeadRe.MatchString(cleaned) {
		return false
	}
	if strings.Contains(cleaned, ",") && len(strings.Fields(cleaned)) > 8 {
		return false
	}
	if titleVerbLeadRe.MatchString(cleaned) {
		return false
	}

	words := titleWordRe.FindAllString(cleaned, -1)
	return len(words) >= 2 && len(words) <= 16
}
