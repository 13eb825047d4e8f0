package rules

import (
	"testing"

	"recipe-lab/models"
)

func TestApplyLabels(t *testing.T) {
	cases := []struct {
		name  string
		text  string
		label models.Label
		conf  float64
	}{
		{"empty line", "   ", models.LabelJunk, 0.99},
		{"html tag", "<div class=\"ad\">", models.LabelJunk, 0.99},
		{"bare header", "Ingredients", models.LabelHeader, 0.99},
		{"for the header", "For the Sauce:", models.LabelHeader, 0.97},
		{"note colon header", "Notes:", models.LabelHeader, 0.98},
		{"short colon header", "Crust:", models.LabelHeader, 0.90},
		{"note line", "Note that the dough keeps overnight", models.LabelNote, 0.95},
		{"quantity lead", "2 cups all-purpose flour", models.LabelIngredient, 0.95},
		{"unicode fraction lead", "½ tsp salt", models.LabelIngredient, 0.95},
		{"multiplier lead", "2x chicken breasts", models.LabelIngredient, 0.92},
		{"action verb", "Whisk the eggs until pale", models.LabelStep, 0.92},
		{"long line", "the mixture should look smooth and glossy before it goes in", models.LabelStep, 0.88},
		{"ingredient hint", "sea salt, to taste", models.LabelIngredient, 0.86},
		{"title shape", "Classic Lemon Bars", models.LabelTitle, 0.78},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Apply(tc.text)
			if got == nil {
				t.Fatalf("Apply(%q) = nil, want %s", tc.text, tc.label)
			}
			if got.Label != tc.label {
				t.Errorf("Apply(%q).Label = %s, want %s", tc.text, got.Label, tc.label)
			}
			if got.Confidence != tc.conf {
				t.Errorf("Apply(%q).Confidence = %v, want %v", tc.text, got.Confidence, tc.conf)
			}
		})
	}
}

func TestApplyAbstains(t *testing.T) {
	for _, text := range []string{
		"a quiet afternoon", // no rule fires
		"the red pot",
	} {
		if got := Apply(text); got != nil {
			t.Errorf("Apply(%q) = %+v, want nil", text, got)
		}
	}
}

func TestApplyPrecedence(t *testing.T) {
	// A numbered step line is stripped by normalization, so the action
	// verb rule decides before the long-line rule.
	got := Apply("3. Mix the dry ingredients into the wet ingredients slowly")
	if got == nil || got.Label != models.LabelStep || got.Confidence != 0.92 {
		t.Fatalf("numbered step = %+v, want step at 0.92", got)
	}

	// Colon-terminated note headers are headers, not notes.
	got = Apply("Tips:")
	if got == nil || got.Label != models.LabelHeader {
		t.Fatalf("Tips: = %+v, want header", got)
	}
}

func TestHeaderSection(t *testing.T) {
	cases := []struct {
		text string
		want models.Section
	}{
		{"Ingredients", models.SectionIngredients},
		{"INGREDIENTS:", models.SectionIngredients},
		{"Directions", models.SectionSteps},
		{"Method:", models.SectionSteps},
		{"Notes:", models.SectionNotes},
		{"Chef's Note", models.SectionNotes},
		{"For the Sauce:", models.SectionUnknown},
	}
	for _, tc := range cases {
		if got := HeaderSection(tc.text); got != tc.want {
			t.Errorf("HeaderSection(%q) = %v, want %v", tc.text, got, tc.want)
		}
	}
}

func TestLooksLikeNoteHeader(t *testing.T) {
	if !LooksLikeNoteHeader("Notes:") {
		t.Error("Notes: should read as a note header")
	}
	if !LooksLikeNoteHeader("Tips") {
		t.Error("Tips should read as a note header")
	}
	if LooksLikeNoteHeader("Ingredients:") {
		t.Error("Ingredients: should not read as a note header")
	}
}

func TestStartsWithActionVerb(t *testing.T) {
	if !StartsWithActionVerb("preheat the oven to 350") {
		t.Error("preheat lead should match")
	}
	if StartsWithActionVerb("preheated ovens vary") {
		t.Error("non-verb lead should not match")
	}
}
