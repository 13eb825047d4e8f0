package evaluate

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"recipe-lab/internal/common"
	"recipe-lab/models"
	"recipe-lab/pkg/classifier"
	"recipe-lab/pkg/dataset"
	"recipe-lab/pkg/metrics"
	"recipe-lab/pkg/predictor"
	"recipe-lab/pkg/regression"
)

// EvaluateAction scores a saved model against labeled rows and prints the
// evaluation report. With --split the rows are restricted to the recorded
// holdout examples. Exit code 1 means a quality threshold was missed.
func EvaluateAction(c *cli.Context) error {
	logger := common.NewLogger(c.Bool("quiet"))

	model, err := classifier.Load(c.String("model"))
	if err != nil {
		logger.Error("failed to load model", "error", err, "path", c.String("model"))
		os.Exit(2)
	}

	rows, err := dataset.LoadLineRows(c.String("data-dir"),
		c.StringSlice("include-doc-prefix"), c.StringSlice("exclude-doc-prefix"))
	if err != nil {
		logger.Error("failed to load dataset rows", "error", err)
		os.Exit(2)
	}

	if splitPath := c.String("split"); splitPath != "" {
		rows, err = restrictToHoldout(rows, splitPath)
		if err != nil {
			logger.Error("failed to apply split record", "error", err, "path", splitPath)
			os.Exit(2)
		}
	}
	if len(rows) == 0 {
		logger.Error("no rows to evaluate", "data_dir", c.String("data-dir"))
		os.Exit(2)
	}

	preds, err := predictor.New(model).PredictRows(rows)
	if err != nil {
		logger.Error("failed to run predictions", "error", err)
		os.Exit(2)
	}
	report := metrics.Compute(preds)

	if err := common.WriteReport(c.String("report"), report); err != nil {
		logger.Error("failed to write report", "error", err)
		os.Exit(2)
	}
	if err := common.PrintYAML(report); err != nil {
		logger.Error("failed to print report", "error", err)
		os.Exit(2)
	}

	if c.Bool("skip-threshold-check") {
		return nil
	}
	cfg, err := loadConfig(c)
	if err != nil {
		logger.Error("failed to load config", "error", err, "path", c.String("config"))
		os.Exit(2)
	}
	thresholds := cfg.Thresholds
	gate := metrics.Gate(report, models.RegressionReport{}, thresholds)
	if !gate.MacroF1 || !gate.NoteRecall || !gate.IngredientStepConfusion {
		logger.Error("evaluation thresholds missed",
			"macro_f1", report.MacroF1PresentLabels,
			"confusion_rate", report.IngredientStepConfusionRate)
		return cli.Exit("evaluation thresholds missed", 1)
	}
	return nil
}

// RegressionAction replays curated fixtures through the full pipeline and
// prints exact-match, leakage, and swap rates. Exit code 1 means leakage or
// swap exceeded its threshold.
func RegressionAction(c *cli.Context) error {
	logger := common.NewLogger(c.Bool("quiet"))

	model, err := classifier.Load(c.String("model"))
	if err != nil {
		logger.Error("failed to load model", "error", err, "path", c.String("model"))
		os.Exit(2)
	}
	fixtures, err := regression.LoadFixtures(c.String("regression-dir"))
	if err != nil {
		logger.Error("failed to load regression fixtures", "error", err)
		os.Exit(2)
	}

	cfg, err := loadConfig(c)
	if err != nil {
		logger.Error("failed to load config", "error", err, "path", c.String("config"))
		os.Exit(2)
	}
	thresholds := cfg.Thresholds
	report, results := regression.Run(model, fixtures, thresholds.LowConfidenceFloor)

	output := struct {
		Report  models.RegressionReport `yaml:"report"`
		Results []regression.Result     `yaml:"results"`
	}{Report: report, Results: results}

	if err := common.WriteReport(c.String("report"), output); err != nil {
		logger.Error("failed to write report", "error", err)
		os.Exit(2)
	}
	if err := common.PrintYAML(output); err != nil {
		logger.Error("failed to print report", "error", err)
		os.Exit(2)
	}

	if report.NoteLeakageRate > thresholds.NoteLeakage || report.IngredientStepSwapRate > thresholds.SwapRate {
		logger.Error("regression thresholds missed",
			"note_leakage", report.NoteLeakageRate,
			"swap_rate", report.IngredientStepSwapRate)
		return cli.Exit("regression thresholds missed", 1)
	}
	return nil
}

func loadConfig(c *cli.Context) (models.Config, error) {
	if path := c.String("config"); path != "" {
		return models.LoadConfig(path)
	}
	return models.DefaultConfig(), nil
}

func restrictToHoldout(rows []models.LineRow, splitPath string) ([]models.LineRow, error) {
	data, err := os.ReadFile(splitPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read split record: %w", err)
	}
	var split models.Split
	if err := json.Unmarshal(data, &split); err != nil {
		return nil, fmt.Errorf("failed to parse split record: %w", err)
	}

	held := make(map[string]struct{}, len(split.HoldoutExamples))
	for _, entry := range split.HoldoutExamples {
		held[fmt.Sprintf("%s#%d", entry.DocID, entry.LineIndex)] = struct{}{}
	}
	var filtered []models.LineRow
	for _, row := range rows {
		if _, ok := held[fmt.Sprintf("%s#%d", row.DocID, row.LineIndex)]; ok {
			filtered = append(filtered, row)
		}
	}
	return filtered, nil
}
