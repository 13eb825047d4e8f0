// Package models defines the shared data structures for dataset fixtures,
// classification output, assembled recipes, and runtime configuration.
package models

// Label is the class assigned to a single input line.
type Label string

const (
	LabelTitle      Label = "title"
	LabelIngredient Label = "ingredient"
	LabelStep       Label = "step"
	LabelNote       Label = "note"
	LabelHeader     Label = "header"
	LabelJunk       Label = "junk"
)

// Labels lists every valid label in canonical order.
var Labels = []Label{
	LabelTitle,
	LabelIngredient,
	LabelStep,
	LabelNote,
	LabelHeader,
	LabelJunk,
}

// IsValidLabel checks whether a raw string names a known label.
func IsValidLabel(raw string) bool {
	for _, label := range Labels {
		if string(label) == raw {
			return true
		}
	}
	return false
}

// Section is the logical grouping a line belongs to within a document.
type Section string

const (
	SectionUnknown     Section = ""
	SectionIngredients Section = "ingredients"
	SectionSteps       Section = "steps"
	SectionNotes       Section = "notes"
)
