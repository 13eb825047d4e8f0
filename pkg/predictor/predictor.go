// Package predictor owns the live classifier model and the sequential
// section tracker that runs over whole documents. The model sits in an
// atomic slot so a retrain can swap it under concurrent predict calls.
package predictor

import (
	"fmt"
	"strings"
	"sync/atomic"

	"recipe-lab/models"
	"recipe-lab/pkg/classifier"
	"recipe-lab/pkg/features"
	"recipe-lab/pkg/rules"
)

// Confidence floors applied by the tracker. Overrides only ever raise a
// line's confidence, never lower it.
const (
	floorServeTitle   = 0.96
	floorServeHeader  = 0.98
	floorShapeHeader  = 0.93
	floorServeSection = 0.90
	floorEvalTitle    = 0.88
	floorEvalNote     = 0.90
	floorEvalSection  = 0.82
)

// Predictor serves predictions from whichever model is currently loaded.
// The zero value is usable but not ready until Reload or Swap.
type Predictor struct {
	model atomic.Pointer[classifier.Model]
}

// New wraps an already trained model.
func New(m *classifier.Model) *Predictor {
	p := &Predictor{}
	p.model.Store(m)
	return p
}

// Reload reads the model at path and swaps it in atomically. On failure the
// previous model keeps serving.
func (p *Predictor) Reload(path string) error {
	m, err := classifier.Load(path)
	if err != nil {
		return fmt.Errorf("reload model: %w", err)
	}
	p.model.Store(m)
	return nil
}

// Swap installs an in-memory model, replacing the current one.
func (p *Predictor) Swap(m *classifier.Model) {
	p.model.Store(m)
}

// Ready reports whether a model is loaded.
func (p *Predictor) Ready() bool {
	return p.model.Load() != nil
}

// Model returns the currently loaded model, or nil.
func (p *Predictor) Model() *classifier.Model {
	return p.model.Load()
}

// PredictDocument classifies the lines of one document in order, applying
// the serving-path section tracker on top of the per-line model.
func (p *Predictor) PredictDocument(lines []string) ([]models.Classification, error) {
	m := p.model.Load()
	if m == nil {
		return nil, fmt.Errorf("no model loaded")
	}

	out := make([]models.Classification, 0, len(lines))
	active := models.SectionUnknown
	for i, line := range lines {
		label, conf, _ := m.Predict(line)

		switch {
		case i == 0 && rules.LooksLikeTitle(line) && rules.HeaderSection(line) == models.SectionUnknown:
			label = models.LabelTitle
			conf = raise(conf, floorServeTitle)
		case rules.HeaderSection(line) != models.SectionUnknown:
			label = models.LabelHeader
			conf = raise(conf, floorServeHeader)
			active = rules.HeaderSection(line)
		case rules.LooksLikeHeaderLine(line):
			label = models.LabelHeader
			conf = raise(conf, floorShapeHeader)
		case active == models.SectionIngredients &&
			(label == models.LabelStep || label == models.LabelTitle || label == models.LabelJunk) &&
			!rules.StartsWithActionVerb(normalized(line)):
			label = models.LabelIngredient
			conf = raise(conf, floorServeSection)
		case active == models.SectionSteps &&
			(label == models.LabelTitle || label == models.LabelIngredient) &&
			rules.StartsWithActionVerb(normalized(line)):
			label = models.LabelStep
			conf = raise(conf, floorServeSection)
		case active == models.SectionNotes && label != models.LabelHeader && label != models.LabelJunk:
			label = models.LabelNote
			conf = raise(conf, floorServeSection)
		}

		out = append(out, models.Classification{
			Index:      i,
			Text:       line,
			Label:      string(label),
			Confidence: conf,
		})
	}
	return out, nil
}

// PredictRows runs the evaluation pass over gold-labeled rows. Rows must be
// sorted by (doc id, line index); the tracker state resets at each document
// boundary.
func (p *Predictor) PredictRows(rows []models.LineRow) ([]models.Prediction, error) {
	m := p.model.Load()
	if m == nil {
		return nil, fmt.Errorf("no model loaded")
	}

	out := make([]models.Prediction, 0, len(rows))
	active := models.SectionUnknown
	prevNoteHeader := false
	currentDoc := ""

	for _, row := range rows {
		if row.DocID != currentDoc {
			currentDoc = row.DocID
			active = models.SectionUnknown
			prevNoteHeader = false
		}

		label, conf, _ := m.Predict(row.Text)
		headerSection := rules.HeaderSection(row.Text)

		switch {
		case row.LineIndex == 0 && label != models.LabelTitle && headerSection == models.SectionUnknown:
			label = models.LabelTitle
			conf = raise(conf, floorEvalTitle)
		case prevNoteHeader && label != models.LabelHeader:
			label = models.LabelNote
			conf = raise(conf, floorEvalNote)
		case label == models.LabelHeader:
			if headerSection != models.SectionUnknown {
				active = headerSection
			} else if active != models.SectionUnknown && !endsWithColon(row.Text) {
				label = sectionLabel(active)
				conf = raise(conf, floorEvalSection)
			}
		case active == models.SectionIngredients &&
			(label == models.LabelStep || label == models.LabelTitle || label == models.LabelJunk) &&
			!rules.StartsWithActionVerb(normalized(row.Text)):
			label = models.LabelIngredient
			conf = raise(conf, floorEvalSection)
		case active == models.SectionSteps &&
			(label == models.LabelTitle || label == models.LabelIngredient) &&
			rules.StartsWithActionVerb(normalized(row.Text)):
			label = models.LabelStep
			conf = raise(conf, floorEvalSection)
		}

		prevNoteHeader = rules.LooksLikeNoteHeader(row.Text)
		if prevNoteHeader {
			active = models.SectionNotes
		}

		out = append(out, models.Prediction{
			DocID:      row.DocID,
			LineIndex:  row.LineIndex,
			Gold:       string(row.Label),
			Predicted:  string(label),
			Confidence: conf,
		})
	}
	return out, nil
}

func sectionLabel(section models.Section) models.Label {
	switch section {
	case models.SectionIngredients:
		return models.LabelIngredient
	case models.SectionSteps:
		return models.LabelStep
	case models.SectionNotes:
		return models.LabelNote
	}
	return models.LabelJunk
}

func normalized(line string) string {
	return strings.TrimSpace(features.Normalize(line))
}

func endsWithColon(line string) bool {
	return strings.HasSuffix(strings.TrimSpace(line), ":")
}

func raise(conf, floor float64) float64 {
	if conf < floor {
		return floor
	}
	return conf
}
