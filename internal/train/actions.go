package train

import (
	"os"

	"github.com/urfave/cli/v2"

	"recipe-lab/internal/common"
	"recipe-lab/pkg/artifacts"
	"recipe-lab/pkg/classifier"
	"recipe-lab/pkg/dataset"
)

type trainSummary struct {
	ModelPath    string              `yaml:"model_path"`
	TrainRows    int                 `yaml:"train_rows"`
	HoldoutRows  int                 `yaml:"holdout_rows"`
	HoldoutDocs  []string            `yaml:"holdout_docs"`
	LabelWeights map[string]float64  `yaml:"label_weights"`
	TopFeatures  map[string][]string `yaml:"top_features"`
}

// TrainAction trains a line classifier on the labeled dataset and writes
// the model, its JSON mirror, and the holdout split under the output
// directory.
func TrainAction(c *cli.Context) error {
	logger := common.NewLogger(c.Bool("quiet"))

	rows, err := dataset.LoadLineRows(c.String("data-dir"),
		c.StringSlice("include-doc-prefix"), c.StringSlice("exclude-doc-prefix"))
	if err != nil {
		logger.Error("failed to load dataset rows", "error", err)
		os.Exit(2)
	}
	if len(rows) == 0 {
		logger.Error("no rows to train on", "data_dir", c.String("data-dir"))
		os.Exit(2)
	}

	trainRows, holdoutRows, split := dataset.SplitRows(rows, c.Float64("holdout-ratio"))

	model := classifier.Train(trainRows)

	store, err := artifacts.NewManager(c.String("out-dir"))
	if err != nil {
		logger.Error("failed to prepare output directory", "error", err)
		os.Exit(2)
	}
	if err := classifier.Save(model, store.ModelPath()); err != nil {
		logger.Error("failed to save model", "error", err)
		os.Exit(2)
	}
	if err := classifier.SaveJSON(model, store.ModelJSONPath()); err != nil {
		logger.Error("failed to save model json", "error", err)
		os.Exit(2)
	}
	if err := store.WriteSplit(split); err != nil {
		logger.Error("failed to save split record", "error", err)
		os.Exit(2)
	}

	weights := make(map[string]float64, len(model.LabelCounts))
	topFeatures := make(map[string][]string, len(model.LabelCounts))
	for label, count := range model.LabelCounts {
		weights[string(label)] = count
		topFeatures[string(label)] = model.TopFeatures(label, 10)
	}
	summary := trainSummary{
		ModelPath:    store.ModelPath(),
		TrainRows:    len(trainRows),
		HoldoutRows:  len(holdoutRows),
		HoldoutDocs:  split.HoldoutDocs,
		LabelWeights: weights,
		TopFeatures:  topFeatures,
	}
	logger.Info("classifier trained",
		"train_rows", len(trainRows), "holdout_rows", len(holdoutRows),
		"model_path", store.ModelPath())
	return common.PrintYAML(summary)
}
