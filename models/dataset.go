package models

// LineRow is one labeled line from a per-document JSONL fixture.
type LineRow struct {
	DocID     string `json:"-"`
	LineIndex int    `json:"line_index"`
	Text      string `json:"text"`
	Label     Label  `json:"label"`
}

// DatasetDocument is one document-level fixture from documents/*.doc.json.
type DatasetDocument struct {
	DocID           string         `json:"id"`
	SourceType      string         `json:"source_type"`
	SourceURL       string         `json:"source_url,omitempty"`
	Title           string         `json:"title,omitempty"`
	NormalizedLines []string       `json:"normalized_lines"`
	TargetRecipe    map[string]any `json:"target_recipe"`
}

// ValidationResult aggregates dataset schema checks. Errors carry document
// and line context; an empty Errors slice means the dataset is valid.
type ValidationResult struct {
	IsValid      bool           `json:"is_valid"`
	Errors       []string       `json:"errors"`
	LabelCounts  map[string]int `json:"label_counts"`
	SourceCounts map[string]int `json:"source_counts"`
}

// Split records which documents and rows were held out during training.
type Split struct {
	TrainDocs       []string     `json:"train_docs"`
	HoldoutDocs     []string     `json:"holdout_docs"`
	HoldoutExamples []SplitEntry `json:"holdout_examples"`
	TrainRows       int          `json:"train_rows"`
	HoldoutRows     int          `json:"holdout_rows"`
}

// SplitEntry identifies a single held-out row.
type SplitEntry struct {
	DocID     string `json:"doc_id"`
	LineIndex int    `json:"line_index"`
}
