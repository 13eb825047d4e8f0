// Package assemble turns classified lines into a structured recipe. The
// assembler is a sequential state machine over (text, label) rows: it tracks
// the active section, reroutes lines whose shape contradicts their label,
// merges wrapped fragments, and resolves title, yields, and timing metadata.
package assemble

import (
	"regexp"
	"strings"

	"recipe-lab/models"
	"recipe-lab/pkg/ingredient"
	"recipe-lab/pkg/rules"
	"recipe-lab/pkg/steps"
)

type builder struct {
	title          string
	section        models.Section
	ingrSubsection *string
	stepSubsection *string

	ingredients []models.IngredientEntry
	steps       []models.StepEntry
	notes       []string

	parsedQuantityCount int
	yields              string
	prepMinutes         *int
	cookMinutes         *int
	totalMinutes        *int
}

// Assemble builds a recipe from classified rows. The result is
// deterministic for identical input.
func Assemble(rows []models.Classification, sourceURL, sourceTitle string) models.Recipe {
	b := &builder{section: models.SectionUnknown}

	for _, row := range rows {
		text := ingredient.CleanText(row.Text)
		label := models.Label(strings.ToLower(strings.TrimSpace(row.Label)))
		if text == "" || !models.IsValidLabel(string(label)) {
			continue
		}
		b.consume(text, label)
	}

	b.resolveTitle(rows)

	b.ingredients = mergeWrappedIngredients(b.ingredients)
	b.steps = steps.MergeWrapped(b.steps)
	inferSauceSectionSplit(b.ingredients, b.steps)

	return b.finish(sourceURL, sourceTitle)
}

func (b *builder) consume(text string, label models.Label) {
	if metadata := extractMetadata(text); metadata != nil {
		if metadata.yields != "" {
			b.yields = metadata.yields
		}
		if metadata.totalMinutes != nil {
			b.totalMinutes = metadata.totalMinutes
		}
		if metadata.prepMinutes != nil {
			b.prepMinutes = metadata.prepMinutes
		}
		if metadata.cookMinutes != nil {
			b.cookMinutes = metadata.cookMinutes
		}
		return
	}

	if ingredient.IsOCRArtifact(text) {
		return
	}

	if remainder, isTips := ingredient.TipsRemainder(text); isTips {
		b.section = models.SectionNotes
		b.addNote(remainder)
		return
	}

	if b.section == models.SectionNotes &&
		(label == models.LabelIngredient || label == models.LabelStep || label == models.LabelNote) &&
		looksLikeNoteFragment(text) {
		b.addNote(text)
		return
	}

	switch label {
	case models.LabelTitle:
		if b.title == "" {
			if looksLikeRecipeTitle(text) {
				b.title = text
			} else {
				b.notes = append(b.notes, text)
			}
		}
	case models.LabelHeader:
		b.consumeHeader(text)
	case models.LabelIngredient:
		b.consumeIngredient(text)
	case models.LabelStep:
		if b.section == models.SectionNotes && looksLikeNoteFragment(text) {
			b.addNote(text)
			return
		}
		b.section = models.SectionSteps
		for _, stepText := range steps.SplitNumbered(text) {
			b.addStep(stepText)
		}
	case models.LabelNote:
		if looksLikeStepFragment(text) {
			b.section = models.SectionSteps
			b.addStep(text)
			return
		}
		b.section = models.SectionNotes
		b.addNote(text)
	default:
		if b.title == "" && label != models.LabelJunk && looksLikeRecipeTitle(text) {
			b.title = text
		}
	}
}

func (b *builder) consumeHeader(text string) {
	switch rules.HeaderSection(text) {
	case models.SectionIngredients:
		b.section = models.SectionIngredients
		b.ingrSubsection = nil
		return
	case models.SectionSteps:
		b.section = models.SectionSteps
		b.stepSubsection = nil
		return
	case models.SectionNotes:
		b.section = models.SectionNotes
		return
	}

	if steps.LooksLikeSubsectionHeader(text) {
		subsection := ingredient.CleanText(strings.TrimRight(text, ":"))
		switch b.section {
		case models.SectionSteps:
			b.stepSubsection = &subsection
		case models.SectionNotes:
			b.notes = append(b.notes, text)
		default:
			b.section = models.SectionIngredients
			b.ingrSubsection = &subsection
		}
		return
	}

	// Recovery path: the model occasionally labels plain ingredient lines
	// as headers ("Butter and sugar, for the pan"). Keep those in
	// ingredient context.
	if b.section == models.SectionIngredients {
		if ingredient.LooksLikeInstruction(text) {
			b.section = models.SectionSteps
			b.addStep(text)
		} else {
			b.addIngredient(text)
		}
	}
}

func (b *builder) consumeIngredient(text string) {
	if b.section == models.SectionNotes && looksLikeNoteFragment(text) {
		b.addNote(text)
		return
	}
	if b.section == models.SectionNotes && looksLikeStepFragment(text) {
		b.section = models.SectionSteps
		b.addStep(text)
		return
	}
	switch {
	case b.section == models.SectionIngredients && ingredient.LooksLikeInstruction(text):
		b.section = models.SectionSteps
		b.addStep(text)
	case b.section == models.SectionSteps && !ingredient.LooksLikeQuantityLead(text):
		b.addStep(text)
	default:
		b.section = models.SectionIngredients
		b.addIngredient(text)
	}
}

func (b *builder) addIngredient(text string) {
	name, quantity, additional, note := ingredient.Parse(text)
	name = ingredient.SanitizeName(name)
	if ingredient.ShouldDrop(name, quantity) {
		return
	}
	entry := models.IngredientEntry{
		Name:                 name,
		Quantity:             quantity,
		AdditionalQuantities: additional,
		Section:              b.ingrSubsection,
	}
	if note != nil {
		entry.Note = *note
	}
	b.ingredients = append(b.ingredients, entry)
	if quantity != nil {
		b.parsedQuantityCount++
	}
	b.parsedQuantityCount += len(additional)
}

func (b *builder) addStep(text string) {
	stepText := steps.StripPrefix(text)
	if stepText == "" || ingredient.IsOCRArtifact(stepText) {
		return
	}
	b.steps = append(b.steps, models.StepEntry{
		Index:   len(b.steps),
		Text:    stepText,
		Timers:  steps.ExtractTimers(stepText),
		Section: b.stepSubsection,
	})
}

func (b *builder) addNote(text string) {
	if note := normalizeNoteText(text); note != "" {
		b.notes = append(b.notes, note)
	}
}

// resolveTitle falls back to any title-shaped row, then to a title-shaped
// note, then to "Untitled Recipe".
func (b *builder) resolveTitle(rows []models.Classification) {
	if b.title == "" || !looksLikeRecipeTitle(b.title) {
		for _, row := range rows {
			text := ingredient.CleanText(row.Text)
			if text == "" || !models.IsValidLabel(strings.ToLower(strings.TrimSpace(row.Label))) {
				continue
			}
			if looksLikeRecipeTitle(text) {
				b.title = text
				break
			}
		}
	}
	if b.title == "" || !looksLikeRecipeTitle(b.title) {
		for i, note := range b.notes {
			if looksLikeRecipeTitle(note) {
				b.title = ingredient.CleanText(note)
				b.notes = append(b.notes[:i], b.notes[i+1:]...)
				break
			}
		}
	}
	if b.title == "" {
		b.title = "Untitled Recipe"
	}
}

func (b *builder) finish(sourceURL, sourceTitle string) models.Recipe {
	ingredientSections := groupSections(len(b.ingredients), func(i int) (*string, string) {
		return b.ingredients[i].Section, strings.TrimSpace(b.ingredients[i].Name)
	})
	stepSections := groupSections(len(b.steps), func(i int) (*string, string) {
		return b.steps[i].Section, strings.TrimSpace(b.steps[i].Text)
	})

	// A note that duplicates the title is dropped.
	normalizedTitle := strings.ToLower(ingredient.CleanText(b.title))
	notes := b.notes[:0]
	for _, note := range b.notes {
		if strings.ToLower(ingredient.CleanText(note)) != normalizedTitle {
			notes = append(notes, note)
		}
	}

	resolvedSourceTitle := sourceTitle
	if resolvedSourceTitle == "" {
		resolvedSourceTitle = defaultSourceTitle(sourceURL)
	}

	totalMinutes := b.totalMinutes
	if totalMinutes == nil {
		switch {
		case b.prepMinutes != nil && b.cookMinutes != nil:
			sum := *b.prepMinutes + *b.cookMinutes
			totalMinutes = &sum
		case b.cookMinutes != nil:
			totalMinutes = b.cookMinutes
		case b.prepMinutes != nil:
			totalMinutes = b.prepMinutes
		}
	}

	yields := b.yields
	if yields == "" {
		yields = "4 servings"
	}

	return models.Recipe{
		Title:              b.title,
		SourceURL:          sourceURL,
		SourceTitle:        resolvedSourceTitle,
		Yields:             yields,
		TotalMinutes:       totalMinutes,
		Ingredients:        b.ingredients,
		Steps:              b.steps,
		Notes:              strings.TrimSpace(strings.Join(notes, "\n")),
		IngredientSections: ingredientSections,
		StepSections:       stepSections,
		Stats: models.RecipeStats{
			IngredientCount:               len(b.ingredients),
			IngredientParsedQuantityCount: b.parsedQuantityCount,
			StepCount:                     len(b.steps),
			NoteCount:                     len(notes),
			IngredientSectionCount:        len(ingredientSections),
			StepSectionCount:              len(stepSections),
		},
	}
}

// groupSections buckets items by subsection in first-seen order. The nil
// subsection is the default bucket.
func groupSections(n int, at func(int) (*string, string)) []models.SectionGroup {
	var order []string
	buckets := make(map[string][]string)
	names := make(map[string]*string)
	for i := 0; i < n; i++ {
		section, item := at(i)
		key := "Main"
		if section != nil && *section != "" {
			key = *section
		}
		if _, seen := buckets[key]; !seen {
			order = append(order, key)
			if key == "Main" {
				names[key] = nil
			} else {
				name := key
				names[key] = &name
			}
		}
		buckets[key] = append(buckets[key], item)
	}

	out := make([]models.SectionGroup, 0, len(order))
	for _, key := range order {
		out = append(out, models.SectionGroup{Name: names[key], Items: buckets[key]})
	}
	return out
}

var ingredientContinuationLeadRe = regexp.MustCompile(`(?i)^(?:and|or|to|for|of|with|plus)\b`)
var ingredientSizePrefixRe = regexp.MustCompile(`^\d+-[A-Za-z]`)

func looksLikeIngredientContinuation(previous, current models.IngredientEntry) bool {
	if !sameSubsection(previous.Section, current.Section) {
		return false
	}
	if current.Quantity != nil || len(current.AdditionalQuantities) > 0 {
		return false
	}
	prevName := ingredient.CleanText(previous.Name)
	currName := ingredient.CleanText(current.Name)
	if prevName == "" || currName == "" {
		return false
	}
	for _, suffix := range []string{",", ";", "-", "(", "/"} {
		if strings.HasSuffix(prevName, suffix) {
			return true
		}
	}
	if ingredientContinuationLeadRe.MatchString(currName) {
		return true
	}
	if ingredientSizePrefixRe.MatchString(currName) {
		return true
	}
	first := rune(currName[0])
	return first >= 'a' && first <= 'z'
}

func mergeWrappedIngredients(entries []models.IngredientEntry) []models.IngredientEntry {
	merged := make([]models.IngredientEntry, 0, len(entries))
	for _, entry := range entries {
		name := ingredient.CleanText(entry.Name)
		if name == "" {
			continue
		}
		entry.Name = name
		if len(merged) > 0 && looksLikeIngredientContinuation(merged[len(merged)-1], entry) {
			prev := &merged[len(merged)-1]
			prev.Name = ingredient.CleanText(prev.Name + " " + name)
			continue
		}
		merged = append(merged, entry)
	}
	return merged
}

func sameSubsection(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

var (
	sauceWordRe     = regexp.MustCompile(`\bsauce\b`)
	parentheticalRe = regexp.MustCompile(`\([^)]*\)`)
	sauceMarkerRe   = regexp.MustCompile(`^(?:for (?:the )?sauce|sauce)$`)
	servingMarkerRe = regexp.MustCompile(`^(?:for serving|to serve|for garnish)$`)
)

// inferSauceSectionSplit retro-fits a Sauce or For Serving subsection onto
// an unsectioned ingredient list when a short marker line divides it and
// the steps actually mention a sauce.
func inferSauceSectionSplit(ingredients []models.IngredientEntry, stepEntries []models.StepEntry) {
	if len(ingredients) < 6 {
		return
	}
	for _, item := range ingredients {
		if item.Section != nil && *item.Section != "" {
			return
		}
	}

	var stepText strings.Builder
	for _, item := range stepEntries {
		stepText.WriteString(strings.ToLower(item.Text))
		stepText.WriteByte(' ')
	}
	if !sauceWordRe.MatchString(stepText.String()) {
		return
	}

	splitIndex := -1
	splitName := "Sauce"
	for i := 0; i < len(ingredients)-2; i++ {
		name := ingredient.CleanText(strings.ToLower(ingredients[i].Name))
		if name == "" {
			continue
		}
		marker := parentheticalRe.ReplaceAllString(name, "")
		marker = strings.Trim(whitespaceRe.ReplaceAllString(marker, " "), " :;,-")
		if marker == "" {
			continue
		}
		if sauceMarkerRe.MatchString(marker) {
			splitIndex = i + 1
			splitName = "Sauce"
			break
		}
		if servingMarkerRe.MatchString(marker) {
			splitIndex = i + 1
			splitName = "For Serving"
			break
		}
	}

	if splitIndex < 2 || len(ingredients)-splitIndex < 2 {
		return
	}
	for i := range ingredients {
		if i < splitIndex {
			ingredients[i].Section = nil
		} else {
			name := splitName
			ingredients[i].Section = &name
		}
	}
}
