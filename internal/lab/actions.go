package lab

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"recipe-lab/internal/common"
	"recipe-lab/models"
	"recipe-lab/pkg/artifacts"
	"recipe-lab/pkg/history"
	"recipe-lab/pkg/lifecycle"
	"recipe-lab/pkg/predictor"
)

func loadConfig(c *cli.Context) (models.Config, error) {
	if path := c.String("config"); path != "" {
		return models.LoadConfig(path)
	}
	return models.DefaultConfig(), nil
}

func buildOrchestrator(cfg models.Config) (*lifecycle.Orchestrator, *history.History, error) {
	store, err := artifacts.NewManager(cfg.ArtifactDir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to prepare artifact store: %w", err)
	}
	runs, err := history.Open(cfg.HistoryPath, cfg.HistoryMaxRuns)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open run history: %w", err)
	}
	pred := &predictor.Predictor{}
	// A missing serving model is fine here; retrain installs one.
	_ = pred.Reload(store.ModelPath())
	return lifecycle.New(cfg, store, runs, pred), runs, nil
}

// RetrainAction runs the full pipeline: backup, validate, train, metrics,
// gate, then export or rollback. Exit code 1 means the run did not promote.
func RetrainAction(c *cli.Context) error {
	logger := common.NewLogger(c.Bool("quiet"))
	cfg, err := loadConfig(c)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(2)
	}

	orch, runs, err := buildOrchestrator(cfg)
	if err != nil {
		logger.Error("failed to build pipeline", "error", err)
		os.Exit(2)
	}
	defer runs.Close()

	result, err := orch.Retrain(context.Background(), c.String("data-dir"))
	if err != nil {
		logger.Error("retrain run failed", "error", err)
		os.Exit(2)
	}
	if err := common.PrintYAML(result); err != nil {
		logger.Error("failed to print result", "error", err)
		os.Exit(2)
	}
	if !result.Entry.Success {
		logger.Error("retrain did not promote",
			"run_id", result.Entry.ID, "rolled_back", result.Entry.RolledBack)
		return cli.Exit("retrain did not promote", 1)
	}
	logger.Info("retrain promoted", "run_id", result.Entry.ID, "bundle", result.BundlePath)
	return nil
}

// MetricsAction runs the metrics stages against the serving model without
// retraining. Exit code 1 means a stage failed or the gate did not pass.
func MetricsAction(c *cli.Context) error {
	logger := common.NewLogger(c.Bool("quiet"))
	cfg, err := loadConfig(c)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(2)
	}

	orch, runs, err := buildOrchestrator(cfg)
	if err != nil {
		logger.Error("failed to build pipeline", "error", err)
		os.Exit(2)
	}
	defer runs.Close()

	result, err := orch.RunMetrics(context.Background(), c.String("data-dir"))
	if err != nil {
		logger.Error("metrics run failed", "error", err)
		os.Exit(2)
	}
	if err := common.PrintYAML(result); err != nil {
		logger.Error("failed to print result", "error", err)
		os.Exit(2)
	}
	if !result.Entry.Success {
		return cli.Exit("metrics gate did not pass", 1)
	}
	return nil
}

// HistoryAction prints recent pipeline runs, newest first.
func HistoryAction(c *cli.Context) error {
	logger := common.NewLogger(c.Bool("quiet"))
	cfg, err := loadConfig(c)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(2)
	}

	runs, err := history.Open(cfg.HistoryPath, cfg.HistoryMaxRuns)
	if err != nil {
		logger.Error("failed to open run history", "error", err)
		os.Exit(2)
	}
	defer runs.Close()

	entries, err := runs.Recent(c.Int("limit"))
	if err != nil {
		logger.Error("failed to read run history", "error", err)
		os.Exit(2)
	}
	return common.PrintYAML(entries)
}
