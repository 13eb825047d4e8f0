package serve

import (
	"os"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"recipe-lab/internal/common"
	"recipe-lab/models"
	"recipe-lab/pkg/artifacts"
	"recipe-lab/pkg/history"
	"recipe-lab/pkg/lifecycle"
	"recipe-lab/pkg/predictor"
	"recipe-lab/pkg/server"
)

// ServeAction starts the HTTP API. The serving model is loaded from the
// artifact store when present; until a retrain installs one, predict
// requests return 503.
func ServeAction(c *cli.Context) error {
	slogger := common.NewLogger(c.Bool("quiet"))

	cfg := models.DefaultConfig()
	if path := c.String("config"); path != "" {
		var err error
		cfg, err = models.LoadConfig(path)
		if err != nil {
			slogger.Error("failed to load config", "error", err)
			os.Exit(2)
		}
	}
	if addr := c.String("addr"); addr != "" {
		cfg.Server.Addr = addr
	}

	logger, err := zap.NewProduction()
	if err != nil {
		slogger.Error("failed to build logger", "error", err)
		os.Exit(2)
	}
	defer logger.Sync()

	store, err := artifacts.NewManager(cfg.ArtifactDir)
	if err != nil {
		logger.Fatal("failed to prepare artifact store", zap.Error(err))
	}
	runs, err := history.Open(cfg.HistoryPath, cfg.HistoryMaxRuns)
	if err != nil {
		logger.Fatal("failed to open run history", zap.Error(err))
	}
	defer runs.Close()

	pred := &predictor.Predictor{}
	if err := pred.Reload(store.ModelPath()); err != nil {
		logger.Warn("no serving model loaded", zap.Error(err), zap.String("path", store.ModelPath()))
	}

	orch := lifecycle.New(cfg, store, runs, pred)
	srv := server.New(cfg, logger, pred, orch, runs)

	if err := srv.Run(); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
	return nil
}
