package models

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Thresholds are the promotion-gate limits. They encode product judgment
// calls, not correctness invariants, so they live in configuration.
type Thresholds struct {
	MacroF1                 float64 `yaml:"macro_f1"`
	NoteRecall              float64 `yaml:"note_recall"`
	IngredientStepConfusion float64 `yaml:"ingredient_step_confusion"`
	NoteLeakage             float64 `yaml:"note_leakage"`
	SwapRate                float64 `yaml:"swap_rate"`
	LowConfidenceFloor      float64 `yaml:"low_confidence_floor"`
}

// ServerConfig holds the HTTP service settings.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	MaxLines     int           `yaml:"max_lines"`
}

// OCRConfig selects the recognition engine and its time budget.
type OCRConfig struct {
	Engine  string        `yaml:"engine"` // auto, tesseract, command
	Timeout time.Duration `yaml:"timeout"`
}

// Config is the full runtime configuration. Zero values are filled with
// defaults by LoadConfig.
type Config struct {
	DatasetDir     string        `yaml:"dataset_dir"`
	ArtifactDir    string        `yaml:"artifact_dir"`
	ExportDir      string        `yaml:"export_dir"`
	HistoryPath    string        `yaml:"history_path"`
	HistoryMaxRuns int           `yaml:"history_max_runs"`
	HoldoutRatio   float64       `yaml:"holdout_ratio"`
	HoldoutPrefix  string        `yaml:"holdout_prefix"`
	FetchTimeout   time.Duration `yaml:"fetch_timeout"`
	StageTimeout   time.Duration `yaml:"stage_timeout"`
	Thresholds     Thresholds    `yaml:"thresholds"`
	Server         ServerConfig  `yaml:"server"`
	OCR            OCRConfig     `yaml:"ocr"`
}

// DefaultConfig returns the built-in settings used when no config file is
// present.
func DefaultConfig() Config {
	return Config{
		DatasetDir:     "fixtures/recipe-schema",
		ArtifactDir:    "artifacts",
		ExportDir:      "artifacts/bundle",
		HistoryPath:    "artifacts/history.db",
		HistoryMaxRuns: 120,
		HoldoutRatio:   0.25,
		HoldoutPrefix:  "holdout_",
		FetchTimeout:   20 * time.Second,
		StageTimeout:   2 * time.Minute,
		Thresholds: Thresholds{
			MacroF1:                 0.88,
			NoteRecall:              0.85,
			IngredientStepConfusion: 0.08,
			NoteLeakage:             0.05,
			SwapRate:                0.08,
			LowConfidenceFloor:      0.72,
		},
		Server: ServerConfig{
			Addr:         "127.0.0.1:8765",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
			MaxLines:     400,
		},
		OCR: OCRConfig{
			Engine:  "auto",
			Timeout: 45 * time.Second,
		},
	}
}

// LoadConfig reads a YAML config file and overlays it on the defaults. A
// missing file is not an error; the defaults are returned.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.HistoryMaxRuns <= 0 {
		return fmt.Errorf("history_max_runs must be positive")
	}
	if c.HoldoutRatio <= 0 || c.HoldoutRatio >= 1 {
		return fmt.Errorf("holdout_ratio must be in (0, 1)")
	}
	if c.Thresholds.LowConfidenceFloor < 0 || c.Thresholds.LowConfidenceFloor > 1 {
		return fmt.Errorf("low_confidence_floor must be in [0, 1]")
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("server addr is required")
	}
	return nil
}
