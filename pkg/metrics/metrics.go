// Package metrics computes classifier evaluation reports and applies the
// promotion gate.
package metrics

import (
	"recipe-lab/models"
)

// Compute builds the evaluation report from gold/predicted pairs: a full
// confusion matrix, per-class precision/recall/F1, macro-F1 over all labels
// and over present labels only, and the ingredient/step confusion rate.
func Compute(predictions []models.Prediction) models.EvalReport {
	confusion := make(map[string]map[string]int, len(models.Labels))
	for _, gold := range models.Labels {
		row := make(map[string]int, len(models.Labels))
		for _, predicted := range models.Labels {
			row[string(predicted)] = 0
		}
		confusion[string(gold)] = row
	}
	for _, p := range predictions {
		if row, ok := confusion[p.Gold]; ok {
			row[p.Predicted]++
		}
	}

	perClass := make(map[string]models.ClassMetrics, len(models.Labels))
	var f1Sum float64
	var presentLabels []string
	var presentF1Sum float64

	for _, label := range models.Labels {
		name := string(label)
		tp := confusion[name][name]
		fp, fn, support := 0, 0, 0
		for _, other := range models.Labels {
			otherName := string(other)
			support += confusion[name][otherName]
			if otherName == name {
				continue
			}
			fp += confusion[otherName][name]
			fn += confusion[name][otherName]
		}

		var precision, recall, f1 float64
		if tp+fp > 0 {
			precision = float64(tp) / float64(tp+fp)
		}
		if tp+fn > 0 {
			recall = float64(tp) / float64(tp+fn)
		}
		if precision+recall > 0 {
			f1 = 2 * precision * recall / (precision + recall)
		}

		perClass[name] = models.ClassMetrics{
			Precision: precision,
			Recall:    recall,
			F1:        f1,
			Support:   float64(support),
		}
		f1Sum += f1
		if support > 0 {
			presentLabels = append(presentLabels, name)
			presentF1Sum += f1
		}
	}

	macroF1 := f1Sum / float64(len(models.Labels))
	macroF1Present := macroF1
	if len(presentLabels) > 0 {
		macroF1Present = presentF1Sum / float64(len(presentLabels))
	}

	confusions := confusion["ingredient"]["step"] + confusion["step"]["ingredient"]
	var confusionRate float64
	if len(predictions) > 0 {
		confusionRate = float64(confusions) / float64(len(predictions))
	}

	return models.EvalReport{
		MacroF1:                     macroF1,
		MacroF1PresentLabels:        macroF1Present,
		PresentLabels:               presentLabels,
		PerClass:                    perClass,
		Confusion:                   confusion,
		IngredientStepConfusionRate: confusionRate,
		PredictionCount:             len(predictions),
	}
}

// Gate applies the promotion thresholds. Overall is the logical AND of
// every check; the note recall check is waived when the evaluation set has
// no note lines.
func Gate(eval models.EvalReport, regression models.RegressionReport, thresholds models.Thresholds) models.ThresholdReport {
	noteClass := eval.PerClass["note"]
	noteApplicable := noteClass.Support > 0

	report := models.ThresholdReport{
		MacroF1:                 eval.MacroF1PresentLabels >= thresholds.MacroF1,
		NoteRecall:              !noteApplicable || noteClass.Recall >= thresholds.NoteRecall,
		NoteRecallApplicable:    noteApplicable,
		IngredientStepConfusion: eval.IngredientStepConfusionRate <= thresholds.IngredientStepConfusion,
		RegressionNoteLeakage:   regression.NoteLeakageRate <= thresholds.NoteLeakage,
		RegressionSwap:          regression.IngredientStepSwapRate <= thresholds.SwapRate,
	}
	report.Overall = report.MacroF1 && report.NoteRecall &&
		report.IngredientStepConfusion && report.RegressionNoteLeakage && report.RegressionSwap
	return report
}
