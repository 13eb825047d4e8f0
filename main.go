package main

import (
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"recipe-lab/internal/evaluate"
	"recipe-lab/internal/export"
	"recipe-lab/internal/lab"
	"recipe-lab/internal/predict"
	"recipe-lab/internal/serve"
	"recipe-lab/internal/train"
	"recipe-lab/internal/validate"
	"recipe-lab/models"
)

func main() {
	defaults := models.DefaultConfig()

	quietFlag := &cli.BoolFlag{
		Name:  "quiet",
		Usage: "only log errors",
	}
	configFlag := &cli.StringFlag{
		Name:  "config",
		Usage: "path to a YAML config file",
	}
	dataDirFlag := &cli.StringFlag{
		Name:  "data-dir",
		Value: defaults.DatasetDir,
		Usage: "labeled dataset directory",
	}
	modelFlag := &cli.StringFlag{
		Name:  "model",
		Usage: "path to a trained classifier",
	}
	reportFlag := &cli.StringFlag{
		Name:  "report",
		Usage: "write the report as JSON to this path",
	}

	app := &cli.App{
		Name:  "recipe-lab",
		Usage: "Train, evaluate, and serve a recipe line classifier",
		Commands: []*cli.Command{
			{
				Name:   "validate-dataset",
				Usage:  "Check a labeled dataset for structural problems",
				Action: validate.ValidateAction,
				Flags:  []cli.Flag{dataDirFlag, quietFlag},
			},
			{
				Name:   "train-classifier",
				Usage:  "Train the line classifier and write its artifacts",
				Action: train.TrainAction,
				Flags: []cli.Flag{
					dataDirFlag,
					&cli.StringFlag{
						Name:  "out-dir",
						Value: defaults.ArtifactDir,
						Usage: "directory for the model and split artifacts",
					},
					&cli.Float64Flag{
						Name:  "holdout-ratio",
						Value: defaults.HoldoutRatio,
						Usage: "fraction of rows held out for evaluation",
					},
					&cli.StringSliceFlag{
						Name:  "include-doc-prefix",
						Usage: "only train on documents whose id starts with this prefix (repeatable)",
					},
					&cli.StringSliceFlag{
						Name:  "exclude-doc-prefix",
						Usage: "skip documents whose id starts with this prefix (repeatable)",
					},
					quietFlag,
				},
			},
			{
				Name:   "evaluate-classifier",
				Usage:  "Score a trained model and check quality thresholds",
				Action: evaluate.EvaluateAction,
				Flags: []cli.Flag{
					configFlag,
					modelFlag,
					dataDirFlag,
					&cli.StringFlag{
						Name:  "split",
						Usage: "restrict evaluation to the holdout rows in this split record",
					},
					reportFlag,
					&cli.StringSliceFlag{
						Name:  "include-doc-prefix",
						Usage: "only evaluate documents whose id starts with this prefix (repeatable)",
					},
					&cli.StringSliceFlag{
						Name:  "exclude-doc-prefix",
						Usage: "skip documents whose id starts with this prefix (repeatable)",
					},
					&cli.BoolFlag{
						Name:  "skip-threshold-check",
						Usage: "report metrics without enforcing thresholds",
					},
					quietFlag,
				},
			},
			{
				Name:   "regression-metrics",
				Usage:  "Replay curated fixtures through the full pipeline",
				Action: evaluate.RegressionAction,
				Flags: []cli.Flag{
					configFlag,
					modelFlag,
					&cli.StringFlag{
						Name:  "regression-dir",
						Value: "fixtures/recipe-schema/regression",
						Usage: "directory of regression fixtures",
					},
					reportFlag,
					quietFlag,
				},
			},
			{
				Name:   "export-model",
				Usage:  "Package a trained model into a deployable bundle",
				Action: export.ExportAction,
				Flags: []cli.Flag{
					modelFlag,
					&cli.StringFlag{
						Name:  "out",
						Value: defaults.ExportDir,
						Usage: "bundle output directory",
					},
					quietFlag,
				},
			},
			{
				Name:   "retrain",
				Usage:  "Run the full pipeline: validate, train, gate, export or rollback",
				Action: lab.RetrainAction,
				Flags:  []cli.Flag{configFlag, dataDirFlag, quietFlag},
			},
			{
				Name:   "metrics",
				Usage:  "Run the metrics stages against the serving model",
				Action: lab.MetricsAction,
				Flags:  []cli.Flag{configFlag, dataDirFlag, quietFlag},
			},
			{
				Name:   "history",
				Usage:  "Show recent pipeline runs, newest first",
				Action: lab.HistoryAction,
				Flags: []cli.Flag{
					configFlag,
					&cli.IntFlag{
						Name:  "limit",
						Value: 20,
						Usage: "maximum number of runs to show",
					},
					quietFlag,
				},
			},
			{
				Name:   "predict",
				Usage:  "Classify one recipe from a URL, text file, or photo",
				Action: predict.PredictAction,
				Flags: []cli.Flag{
					configFlag,
					modelFlag,
					&cli.StringFlag{
						Name:  "url",
						Usage: "recipe page to fetch and parse",
					},
					&cli.StringFlag{
						Name:  "file",
						Usage: "plain-text recipe file",
					},
					&cli.StringFlag{
						Name:  "image",
						Usage: "recipe photo to run through OCR",
					},
					&cli.BoolFlag{
						Name:  "show-lines",
						Usage: "include per-line classifications in the output",
					},
					quietFlag,
				},
			},
			{
				Name:   "serve",
				Usage:  "Start the HTTP API",
				Action: serve.ServeAction,
				Flags: []cli.Flag{
					configFlag,
					&cli.StringFlag{
						Name:  "addr",
						Usage: "listen address, overrides the config",
					},
					quietFlag,
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
