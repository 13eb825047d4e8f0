package models

// Quantity is a parsed amount for an ingredient. UpperValue is set only for
// ranges ("3 to 4 cloves"); Value carries the single or midpoint amount.
type Quantity struct {
	Value      float64  `json:"value"`
	UpperValue *float64 `json:"upperValue"`
	Unit       string   `json:"unit"`
}

// IngredientEntry is one structured ingredient line. Section is nil for the
// default ("Main") bucket.
type IngredientEntry struct {
	Name                 string     `json:"name"`
	Quantity             *Quantity  `json:"quantity"`
	AdditionalQuantities []Quantity `json:"additionalQuantities"`
	Note                 string     `json:"note,omitempty"`
	Section              *string    `json:"section"`
}

// TimerSpec is a cook timer embedded in step text.
type TimerSpec struct {
	Seconds int    `json:"seconds"`
	Label   string `json:"label"`
}

// StepEntry is one ordered instruction with any extracted timers.
type StepEntry struct {
	Index   int         `json:"index"`
	Text    string      `json:"text"`
	Timers  []TimerSpec `json:"timers"`
	Section *string     `json:"section"`
}

// SectionGroup names a subsection and the item texts assigned to it. A nil
// Name is the default bucket.
type SectionGroup struct {
	Name  *string  `json:"name"`
	Items []string `json:"items"`
}

// RecipeStats summarizes an assembled recipe for quick inspection.
type RecipeStats struct {
	IngredientCount              int `json:"ingredient_count"`
	IngredientParsedQuantityCount int `json:"ingredient_parsed_quantity_count"`
	StepCount                    int `json:"step_count"`
	NoteCount                    int `json:"note_count"`
	IngredientSectionCount       int `json:"ingredient_section_count"`
	StepSectionCount             int `json:"step_section_count"`
}

// Recipe is the assembled output of the classification pipeline. Title is
// never empty and Yields always carries a value.
type Recipe struct {
	Title              string            `json:"title"`
	SourceURL          string            `json:"sourceURL,omitempty"`
	SourceTitle        string            `json:"sourceTitle,omitempty"`
	Yields             string            `json:"yields"`
	TotalMinutes       *int              `json:"totalMinutes"`
	Ingredients        []IngredientEntry `json:"ingredients"`
	Steps              []StepEntry       `json:"steps"`
	Notes              string            `json:"notes,omitempty"`
	IngredientSections []SectionGroup    `json:"ingredientSections"`
	StepSections       []SectionGroup    `json:"stepSections"`
	Stats              RecipeStats       `json:"stats"`
}
