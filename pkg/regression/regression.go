// Package regression scores section-level parser outcomes against JSON
// fixtures. Each fixture pairs raw recipe text with the expected ingredient,
// step, and note membership; the harness predicts per line and measures how
// often notes leak into other sections or ingredients and steps swap.
package regression

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"recipe-lab/models"
	"recipe-lab/pkg/classifier"
)

// Expectation lists the section membership a fixture requires.
type Expectation struct {
	Ingredients   []string `json:"ingredients"`
	Steps         []string `json:"steps"`
	NotesContains []string `json:"notes_contains"`
}

// Fixture is one regression case loaded from a *.json file.
type Fixture struct {
	Name     string      `json:"name"`
	Text     string      `json:"text"`
	Expected Expectation `json:"expected"`
}

// Result holds the scores for a single fixture.
type Result struct {
	Name        string  `json:"name"`
	ExactMatch  bool    `json:"exact_match"`
	LeakageRate float64 `json:"leakage_rate"`
	SwapRate    float64 `json:"swap_rate"`
}

// noteHeaders are the section headers whose following lines the harness
// treats as notes regardless of the classifier's label.
var noteHeaders = map[string]struct{}{
	"note":        {},
	"notes":       {},
	"tip":         {},
	"tips":        {},
	"variation":   {},
	"variations":  {},
	"chef's note": {},
	"storage":     {},
}

// fallbackStepWords trigger the deterministic step fallback on
// low-confidence lines that carry no digits.
var fallbackStepWords = []string{"mix", "cook", "bake", "stir", "heat", "add", "roast", "simmer"}

// LoadFixtures reads every *.json fixture under dir in sorted order.
func LoadFixtures(dir string) ([]Fixture, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("globbing regression fixtures: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no regression fixtures found in %s", dir)
	}
	sort.Strings(paths)

	fixtures := make([]Fixture, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading fixture %s: %w", path, err)
		}
		var fixture Fixture
		if err := json.Unmarshal(data, &fixture); err != nil {
			return nil, fmt.Errorf("decoding fixture %s: %w", path, err)
		}
		if fixture.Name == "" {
			fixture.Name = strings.TrimSuffix(filepath.Base(path), ".json")
		}
		fixtures = append(fixtures, fixture)
	}
	return fixtures, nil
}

// Score runs one fixture through the model. The first line is the title and
// is never scored. Lines following a note header stay notes, and predictions
// below floor fall back to deterministic section rules.
func Score(model *classifier.Model, fixture Fixture, floor float64) Result {
	var lines []string
	for _, raw := range strings.Split(fixture.Text, "\n") {
		trimmed := strings.TrimSpace(raw)
		if trimmed != "" {
			lines = append(lines, trimmed)
		}
	}

	var predictedIngredients, predictedSteps, predictedNotes []string
	previousWasNoteHeader := false

	for i, line := range lines {
		if i == 0 {
			continue
		}
		label, confidence, _ := model.Predict(line)

		if previousWasNoteHeader && !strings.HasSuffix(line, ":") {
			label = models.LabelNote
		}
		if confidence < floor {
			lower := strings.ToLower(line)
			if strings.ContainsAny(lower, "0123456789") {
				label = models.LabelIngredient
			} else {
				for _, word := range fallbackStepWords {
					if strings.Contains(lower, word) {
						label = models.LabelStep
						break
					}
				}
			}
		}

		switch label {
		case models.LabelIngredient:
			predictedIngredients = append(predictedIngredients, line)
		case models.LabelStep:
			predictedSteps = append(predictedSteps, line)
		case models.LabelNote:
			predictedNotes = append(predictedNotes, line)
		}

		lowered := strings.ToLower(line)
		stem := lowered
		if strings.HasSuffix(stem, ":") {
			stem = strings.TrimSpace(stem[:len(stem)-1])
		}
		_, previousWasNoteHeader = noteHeaders[stem]
	}

	expectedIngredients := normalizeAll(fixture.Expected.Ingredients)
	expectedSteps := normalizeAll(fixture.Expected.Steps)
	expectedNotes := normalizeAll(fixture.Expected.NotesContains)

	ingredientExact := sortedEqual(normalizeAll(predictedIngredients), expectedIngredients)
	stepExact := sortedEqual(normalizeAll(predictedSteps), expectedSteps)

	notesBlob := strings.ToLower(strings.Join(predictedNotes, "\n"))
	noteExact := true
	for _, fragment := range expectedNotes {
		if !strings.Contains(notesBlob, fragment) {
			noteExact = false
			break
		}
	}

	leaked := 0
	other := append(normalizeAll(predictedIngredients), normalizeAll(predictedSteps)...)
	for _, fragment := range expectedNotes {
		if containsFragment(other, fragment) {
			leaked++
		}
	}

	swapped := 0
	normalizedSteps := normalizeAll(predictedSteps)
	normalizedIngredients := normalizeAll(predictedIngredients)
	for _, ingredient := range expectedIngredients {
		if containsFragment(normalizedSteps, ingredient) {
			swapped++
		}
	}
	for _, step := range expectedSteps {
		if containsFragment(normalizedIngredients, step) {
			swapped++
		}
	}

	leakageRate := 0.0
	if len(expectedNotes) > 0 {
		leakageRate = float64(leaked) / float64(len(expectedNotes))
	}
	expectedTotal := len(expectedIngredients) + len(expectedSteps)
	if expectedTotal < 1 {
		expectedTotal = 1
	}

	return Result{
		Name:        fixture.Name,
		ExactMatch:  ingredientExact && stepExact && noteExact,
		LeakageRate: leakageRate,
		SwapRate:    float64(swapped) / float64(expectedTotal),
	}
}

// Run scores every fixture and averages the rates into a report.
func Run(model *classifier.Model, fixtures []Fixture, floor float64) (models.RegressionReport, []Result) {
	results := make([]Result, 0, len(fixtures))
	var exactSum, leakageSum, swapSum float64
	for _, fixture := range fixtures {
		result := Score(model, fixture, floor)
		results = append(results, result)
		if result.ExactMatch {
			exactSum++
		}
		leakageSum += result.LeakageRate
		swapSum += result.SwapRate
	}

	report := models.RegressionReport{FixtureCount: len(fixtures)}
	if len(fixtures) > 0 {
		n := float64(len(fixtures))
		report.ExactMatchRate = exactSum / n
		report.NoteLeakageRate = leakageSum / n
		report.IngredientStepSwapRate = swapSum / n
	}
	return report, results
}

func normalizeAll(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, strings.ToLower(strings.TrimSpace(item)))
	}
	return out
}

func sortedEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	as := append([]string(nil), a...)
	bs := append([]string(nil), b...)
	sort.Strings(as)
	sort.Strings(bs)
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}

func containsFragment(items []string, fragment string) bool {
	for _, item := range items {
		if strings.Contains(item, fragment) {
			return true
		}
	}
	return false
}
