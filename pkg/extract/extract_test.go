package extract

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func page(jsonld string) []byte {
	return []byte(fmt.Sprintf(`<html><head>
<script type="application/ld+json">%s</script>
</head><body><p>filler</p></body></html>`, jsonld))
}

func TestFromHTMLJSONLDRecipe(t *testing.T) {
	body := page(`{
		"@context": "https://schema.org",
		"@type": "Recipe",
		"name": "Lemon Bars",
		"recipeIngredient": ["2 cups sugar", "1 cup flour", "2 cups sugar"],
		"recipeInstructions": [
			{"@type": "HowToStep", "text": "Mix the sugar and flour."},
			{"@type": "HowToStep", "text": "Bake for 20 minutes."}
		]
	}`)

	result, err := FromHTML("https://example.com/lemon-bars", body)
	if err != nil {
		t.Fatalf("FromHTML: %v", err)
	}
	if result.Method != "jsonld_recipe" {
		t.Errorf("method = %q", result.Method)
	}
	if result.Title != "Lemon Bars" {
		t.Errorf("title = %q", result.Title)
	}
	want := []string{
		"Lemon Bars",
		"Ingredients",
		"2 cups sugar",
		"1 cup flour",
		"Instructions",
		"Mix the sugar and flour.",
		"Bake for 20 minutes.",
	}
	if len(result.Lines) != len(want) {
		t.Fatalf("lines = %q, want %q", result.Lines, want)
	}
	for i, line := range want {
		if result.Lines[i] != line {
			t.Errorf("line %d = %q, want %q", i, result.Lines[i], line)
		}
	}
	if result.IngredientCount != 2 || result.InstructionCount != 2 {
		t.Errorf("counts = %d/%d, want 2/2", result.IngredientCount, result.InstructionCount)
	}
}

func TestFromHTMLHowToSections(t *testing.T) {
	body := page(`{
		"@type": "Recipe",
		"name": "Layer Cake",
		"recipeIngredient": ["3 cups flour"],
		"recipeInstructions": [{
			"@type": "HowToSection",
			"name": "Make the Batter",
			"itemListElement": [
				{"@type": "HowToStep", "text": "Whisk the dry ingredients."}
			]
		}]
	}`)

	result, err := FromHTML("https://example.com/cake", body)
	if err != nil {
		t.Fatalf("FromHTML: %v", err)
	}
	joined := strings.Join(result.Lines, "\n")
	if !strings.Contains(joined, "Make the Batter:") {
		t.Errorf("section header missing from %q", joined)
	}
	if !strings.Contains(joined, "Whisk the dry ingredients.") {
		t.Errorf("section step missing from %q", joined)
	}
}

func TestFromHTMLNumberedStepSplitting(t *testing.T) {
	body := page(`{
		"@type": "Recipe",
		"name": "Quick Bread",
		"recipeIngredient": ["2 cups flour"],
		"recipeInstructions": "1. Mix the batter well. 2. Bake until golden brown."
	}`)

	result, err := FromHTML("https://example.com/bread", body)
	if err != nil {
		t.Fatalf("FromHTML: %v", err)
	}
	if result.InstructionCount != 2 {
		t.Fatalf("instruction count = %d, want split into 2; lines %q",
			result.InstructionCount, result.Lines)
	}
}

func TestParsePayloadsQuirks(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want int
	}{
		{"plain object", `{"a": 1}`, 1},
		{"trailing comma", `{"a": 1,}`, 1},
		{"comment wrapper", `<!-- {"a": 1} -->`, 1},
		{"concatenated values", `{"a": 1} {"b": 2}`, 2},
		{"control char in string", "{\"a\": \"line\nbreak\"}", 1},
		{"garbage", `{{{`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parsePayloads(tt.raw)
			if len(got) != tt.want {
				t.Errorf("parsePayloads(%q) = %d values, want %d", tt.raw, len(got), tt.want)
			}
		})
	}
}

func TestIsRecipeType(t *testing.T) {
	if !isRecipeType("Recipe") {
		t.Error("plain Recipe not recognized")
	}
	if !isRecipeType("https://schema.org/Recipe") {
		t.Error("URL form not recognized")
	}
	if !isRecipeType([]any{"Article", "Recipe"}) {
		t.Error("list form not recognized")
	}
	if isRecipeType("Article") {
		t.Error("Article recognized as recipe")
	}
}

func TestFromHTMLReadabilityFallback(t *testing.T) {
	body := []byte(`<html><head>
<meta property="og:title" content="Herb Roasted Chicken" />
<title>Herb Roasted Chicken - Example</title>
</head><body><article>
<p>Season the chicken generously with salt and pepper inside and out, then tuck fresh thyme and rosemary sprigs under the skin along with softened butter. Roast the chicken in a hot oven for about one hour, basting every twenty minutes with the pan drippings so the skin turns deep golden brown and stays crisp. Rest the meat for at least fifteen minutes before carving so the juices settle back into the breast and thighs. Serve it warm with the pan juices spooned over each portion, alongside roasted root vegetables and a simple green salad dressed with lemon and olive oil.</p>
</article></body></html>`)

	result, err := FromHTML("https://example.com/chicken", body)
	if err != nil {
		t.Fatalf("FromHTML: %v", err)
	}
	if result.Method != "readability" {
		t.Errorf("method = %q, want readability", result.Method)
	}
	if result.Title != "Herb Roasted Chicken" {
		t.Errorf("title = %q", result.Title)
	}
	if len(result.Lines) < 2 {
		t.Errorf("expected sentence-per-line output, got %q", result.Lines)
	}
	if result.Lines[0] != "Herb Roasted Chicken" {
		t.Errorf("first line = %q, want recovered title", result.Lines[0])
	}
}

func TestFromHTMLRejectsNonEnglish(t *testing.T) {
	body := page(`{
		"@type": "Recipe",
		"name": "Zwiebelkuchen nach Omas Art",
		"recipeIngredient": ["500 Gramm Mehl bitte frisch gemahlen", "Drei grosse Zwiebeln aus dem Garten"],
		"recipeInstructions": [
			{"text": "Den Teig kneten und eine Stunde lang an einem warmen Ort gehen lassen."},
			{"text": "Die Zwiebeln schneiden und langsam in Butter weich braten bis sie goldgelb sind."}
		]
	}`)

	_, err := FromHTML("https://example.de/kuchen", body)
	if !errors.Is(err, ErrNotEnglish) {
		t.Errorf("err = %v, want ErrNotEnglish", err)
	}
}

func TestNormalizeLines(t *testing.T) {
	lines, truncated := NormalizeLines("  one  \n\n two\n   \nthree", 0)
	if len(lines) != 3 || lines[0] != "one" || lines[2] != "three" {
		t.Errorf("lines = %q", lines)
	}
	if truncated {
		t.Error("unexpected truncation")
	}

	var sb strings.Builder
	for i := 0; i < 10; i++ {
		fmt.Fprintf(&sb, "line %d\n", i)
	}
	lines, truncated = NormalizeLines(sb.String(), 4)
	if len(lines) != 4 || !truncated {
		t.Errorf("capped lines = %d truncated = %v, want 4 true", len(lines), truncated)
	}
}
