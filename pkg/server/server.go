package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"recipe-lab/models"
	"recipe-lab/pkg/fetcher"
	"recipe-lab/pkg/history"
	"recipe-lab/pkg/lifecycle"
	"recipe-lab/pkg/ocr"
	"recipe-lab/pkg/predictor"
)

// Server wires the prediction pipeline and model lifecycle behind an HTTP API.
type Server struct {
	cfg        models.Config
	logger     *zap.Logger
	pred       *predictor.Predictor
	orch       *lifecycle.Orchestrator
	runs       *history.History
	fetch      *fetcher.Fetcher
	recognizer *ocr.Recognizer

	// trainMu serializes retrain and metrics runs; artifacts are shared state.
	trainMu sync.Mutex
}

func New(cfg models.Config, logger *zap.Logger, pred *predictor.Predictor, orch *lifecycle.Orchestrator, runs *history.History) *Server {
	return &Server{
		cfg:        cfg,
		logger:     logger,
		pred:       pred,
		orch:       orch,
		runs:       runs,
		fetch:      fetcher.NewFetcher(cfg.FetchTimeout),
		recognizer: ocr.NewRecognizer(cfg.OCR),
	}
}

// Router builds the gin engine with middleware and all API routes.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(recovery(s.logger))
	r.Use(requestLogger(s.logger))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", s.handleHealth)

	api := r.Group("/api")
	{
		api.POST("/predict", s.handlePredict)
		api.POST("/assemble", s.handleAssemble)
		api.POST("/metrics", s.handleMetrics)
		api.POST("/retrain", s.handleRetrain)
		api.GET("/history", s.handleHistory)
	}

	return r
}

// Run serves until SIGINT/SIGTERM, then shuts down gracefully.
func (s *Server) Run() error {
	srv := &http.Server{
		Addr:         s.cfg.Server.Addr,
		Handler:      s.Router(),
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", zap.String("addr", s.cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		s.logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
