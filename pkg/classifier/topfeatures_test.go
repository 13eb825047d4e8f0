package classifier

import (
	"strings"
	"testing"

	"recipe-lab/models"
)

func TestTopFeatures(t *testing.T) {
	rows := []models.LineRow{
		{DocID: "d", LineIndex: 0, Text: "2 cups sugar", Label: models.LabelIngredient},
		{DocID: "d", LineIndex: 1, Text: "2 cups flour", Label: models.LabelIngredient},
		{DocID: "d", LineIndex: 2, Text: "Mix the sugar in.", Label: models.LabelStep},
	}
	m := Train(rows)

	top := m.TopFeatures(models.LabelIngredient, 3)
	if len(top) != 3 {
		t.Fatalf("expected 3 features, got %d", len(top))
	}
	for _, f := range top {
		if !strings.Contains(f, ":") {
			t.Errorf("expected feature:count format, got %q", f)
		}
	}

	if got := m.TopFeatures(models.LabelIngredient, 0); len(got) != 0 {
		t.Errorf("expected empty slice for n=0, got %v", got)
	}
	if got := m.TopFeatures(models.LabelJunk, 5); len(got) != 0 {
		t.Errorf("expected no features for untrained label, got %v", got)
	}
}

func TestTopFeaturesOrdering(t *testing.T) {
	m := &Model{
		FeatureCounts: map[models.Label]map[string]float64{
			models.LabelStep: {"stir": 5, "bake": 3, "mix": 5},
		},
	}
	top := m.TopFeatures(models.LabelStep, 2)
	if len(top) != 2 {
		t.Fatalf("expected 2 features, got %d", len(top))
	}
	// Ties break alphabetically, so mix sorts before stir.
	if top[0] != "mix:5" || top[1] != "stir:5" {
		t.Errorf("unexpected ordering: %v", top)
	}
}
