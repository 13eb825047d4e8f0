package models

// Classification is the per-line output of a predict call. Not persisted.
type Classification struct {
	Index      int     `json:"index"`
	Text       string  `json:"text"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Prediction pairs a gold-labeled row with the model's decision. Used by
// evaluation only.
type Prediction struct {
	DocID      string  `json:"doc_id"`
	LineIndex  int     `json:"line_index"`
	Gold       string  `json:"gold"`
	Predicted  string  `json:"predicted"`
	Confidence float64 `json:"confidence"`
}
