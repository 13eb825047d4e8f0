package models

// ClassMetrics carries precision/recall/F1 for one label.
type ClassMetrics struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   float64 `json:"support"`
}

// EvalReport is the evaluation output written as JSON by the evaluate tool.
type EvalReport struct {
	MacroF1                     float64                   `json:"macro_f1"`
	MacroF1PresentLabels        float64                   `json:"macro_f1_present_labels"`
	PresentLabels               []string                  `json:"present_labels"`
	PerClass                    map[string]ClassMetrics   `json:"per_class"`
	Confusion                   map[string]map[string]int `json:"confusion"`
	IngredientStepConfusionRate float64                   `json:"ingredient_step_confusion_rate"`
	PredictionCount             int                       `json:"prediction_count"`
}

// RegressionReport aggregates the section-level regression harness.
type RegressionReport struct {
	ExactMatchRate          float64 `json:"exact_match_rate"`
	NoteLeakageRate         float64 `json:"note_leakage_rate"`
	IngredientStepSwapRate  float64 `json:"ingredient_step_swap_rate"`
	FixtureCount            int     `json:"fixture_count"`
}

// ThresholdReport records each promotion gate check. Overall is the logical
// AND of every check; a model is promoted only when Overall holds.
type ThresholdReport struct {
	MacroF1                 bool `json:"macro_f1"`
	NoteRecall              bool `json:"note_recall"`
	NoteRecallApplicable    bool `json:"note_recall_applicable"`
	IngredientStepConfusion bool `json:"ingredient_step_confusion"`
	RegressionNoteLeakage   bool `json:"regression_note_leakage"`
	RegressionSwap          bool `json:"regression_swap"`
	Overall                 bool `json:"overall"`
}

// RunEntry is one immutable record in the lifecycle run history.
type RunEntry struct {
	ID         string           `json:"id"`
	Timestamp  string           `json:"timestamp"`
	Action     string           `json:"action"`
	DatasetDir string           `json:"dataset_dir"`
	ModelPath  string           `json:"model_path"`
	Success    bool             `json:"success"`
	Stages     map[string]int   `json:"stages"`
	RolledBack bool             `json:"rolled_back"`
	Reloaded   bool             `json:"reloaded"`
	Thresholds *ThresholdReport `json:"thresholds,omitempty"`
}
