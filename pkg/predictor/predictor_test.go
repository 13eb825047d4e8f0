package predictor

import (
	"path/filepath"
	"testing"

	"recipe-lab/models"
	"recipe-lab/pkg/classifier"
)

func testModel() *classifier.Model {
	return classifier.Train([]models.LineRow{
		{DocID: "a", LineIndex: 0, Text: "Classic Lemon Bars", Label: models.LabelTitle},
		{DocID: "a", LineIndex: 1, Text: "Ingredients", Label: models.LabelHeader},
		{DocID: "a", LineIndex: 2, Text: "2 cups flour", Label: models.LabelIngredient},
		{DocID: "a", LineIndex: 3, Text: "1 cup sugar", Label: models.LabelIngredient},
		{DocID: "a", LineIndex: 4, Text: "Directions", Label: models.LabelHeader},
		{DocID: "a", LineIndex: 5, Text: "Whisk the eggs until pale", Label: models.LabelStep},
		{DocID: "a", LineIndex: 6, Text: "Notes: keeps for three days", Label: models.LabelNote},
	})
}

func labelsOf(got []models.Classification) []string {
	out := make([]string, len(got))
	for i, c := range got {
		out[i] = c.Label
	}
	return out
}

func TestPredictDocumentSectionTracking(t *testing.T) {
	p := New(testModel())
	lines := []string{
		"Classic Lemon Bars",
		"Ingredients",
		"2 cups flour",
		"lemon zest",
		"Directions",
		"Whisk the eggs until pale",
	}
	got, err := p.PredictDocument(lines)
	if err != nil {
		t.Fatalf("PredictDocument: %v", err)
	}
	want := []string{"title", "header", "ingredient", "ingredient", "header", "step"}
	labels := labelsOf(got)
	for i := range want {
		if labels[i] != want[i] {
			t.Errorf("line %d (%q) = %s, want %s", i, lines[i], labels[i], want[i])
		}
	}

	if got[0].Confidence < 0.96 {
		t.Errorf("title confidence = %v, want >= 0.96", got[0].Confidence)
	}
	if got[1].Confidence < 0.98 {
		t.Errorf("header confidence = %v, want >= 0.98", got[1].Confidence)
	}
}

func TestPredictDocumentNotesSection(t *testing.T) {
	p := New(testModel())
	got, err := p.PredictDocument([]string{
		"Classic Lemon Bars",
		"Notes:",
		"the crust softens if stored warm",
	})
	if err != nil {
		t.Fatalf("PredictDocument: %v", err)
	}
	if got[1].Label != "header" {
		t.Errorf("Notes: = %s, want header", got[1].Label)
	}
	if got[2].Label != "note" {
		t.Errorf("note body = %s, want note", got[2].Label)
	}
}

func TestPredictDocumentNotReady(t *testing.T) {
	var p Predictor
	if _, err := p.PredictDocument([]string{"x"}); err == nil {
		t.Fatal("expected error from empty predictor")
	}
}

func TestPredictRowsResetsAtDocBoundary(t *testing.T) {
	p := New(testModel())
	rows := []models.LineRow{
		{DocID: "doc_a", LineIndex: 0, Text: "Classic Lemon Bars", Label: models.LabelTitle},
		{DocID: "doc_a", LineIndex: 1, Text: "Ingredients", Label: models.LabelHeader},
		{DocID: "doc_a", LineIndex: 2, Text: "lemon zest", Label: models.LabelIngredient},
		{DocID: "doc_b", LineIndex: 0, Text: "Weeknight Garlic Pasta", Label: models.LabelTitle},
		{DocID: "doc_b", LineIndex: 1, Text: "lemon zest", Label: models.LabelIngredient},
	}
	got, err := p.PredictRows(rows)
	if err != nil {
		t.Fatalf("PredictRows: %v", err)
	}
	if got[2].Predicted != "ingredient" {
		t.Errorf("doc_a zest = %s, want ingredient from section context", got[2].Predicted)
	}
	if got[3].Predicted != "title" {
		t.Errorf("doc_b line 0 = %s, want forced title", got[3].Predicted)
	}
	// doc_b never opened an ingredients section, so the override from
	// doc_a must not leak across the boundary.
	if got[4].Predicted == "ingredient" && got[4].Confidence == 0.82 {
		t.Errorf("section context leaked into doc_b")
	}
}

func TestPredictRowsNoteHeaderCarryover(t *testing.T) {
	p := New(testModel())
	rows := []models.LineRow{
		{DocID: "d", LineIndex: 0, Text: "Classic Lemon Bars", Label: models.LabelTitle},
		{DocID: "d", LineIndex: 1, Text: "Notes:", Label: models.LabelHeader},
		{DocID: "d", LineIndex: 2, Text: "2 cups flour", Label: models.LabelNote},
	}
	got, err := p.PredictRows(rows)
	if err != nil {
		t.Fatalf("PredictRows: %v", err)
	}
	if got[2].Predicted != "note" {
		t.Errorf("line after note header = %s, want note", got[2].Predicted)
	}
	if got[2].Confidence < 0.90 {
		t.Errorf("note carryover confidence = %v, want >= 0.90", got[2].Confidence)
	}
}

func TestReloadSwapsModel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "line_classifier.bin")
	if err := classifier.Save(testModel(), path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	var p Predictor
	if p.Ready() {
		t.Fatal("zero predictor reports ready")
	}
	if err := p.Reload(path); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if !p.Ready() {
		t.Fatal("predictor not ready after reload")
	}
	if err := p.Reload(filepath.Join(dir, "missing.bin")); err == nil {
		t.Fatal("Reload of missing file succeeded")
	}
	// Failed reload keeps the previous model serving.
	if !p.Ready() {
		t.Fatal("predictor lost its model after failed reload")
	}
}
