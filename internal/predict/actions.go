package predict

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v2"

	"recipe-lab/internal/common"
	"recipe-lab/models"
	"recipe-lab/pkg/artifacts"
	"recipe-lab/pkg/assemble"
	"recipe-lab/pkg/extract"
	"recipe-lab/pkg/fetcher"
	"recipe-lab/pkg/ocr"
	"recipe-lab/pkg/predictor"
)

type predictOutput struct {
	Method          string                  `yaml:"method"`
	Truncated       bool                    `yaml:"truncated"`
	Recipe          models.Recipe           `yaml:"recipe"`
	Classifications []models.Classification `yaml:"classifications,omitempty"`
}

// PredictAction classifies one recipe source from a URL, a text file, or a
// photo, and prints the assembled recipe as YAML.
func PredictAction(c *cli.Context) error {
	logger := common.NewLogger(c.Bool("quiet"))
	cfg := models.DefaultConfig()
	if path := c.String("config"); path != "" {
		var err error
		cfg, err = models.LoadConfig(path)
		if err != nil {
			logger.Error("failed to load config", "error", err)
			os.Exit(2)
		}
	}

	modelPath := c.String("model")
	if modelPath == "" {
		modelPath = filepath.Join(cfg.ArtifactDir, artifacts.ModelFile)
	}
	pred := &predictor.Predictor{}
	if err := pred.Reload(modelPath); err != nil {
		logger.Error("failed to load model", "error", err, "path", modelPath)
		os.Exit(2)
	}

	var (
		text      string
		method    string
		title     string
		sourceURL string
	)
	switch {
	case c.String("url") != "":
		cleaned, err := common.ValidateURL(c.String("url"))
		if err != nil {
			logger.Error("rejected url", "error", err)
			os.Exit(2)
		}
		body, err := fetcher.NewFetcher(cfg.FetchTimeout).GetHTML(context.Background(), cleaned)
		if err != nil {
			logger.Error("failed to fetch url", "error", err, "url", cleaned)
			os.Exit(2)
		}
		result, err := extract.FromHTML(cleaned, body)
		if err != nil {
			logger.Error("failed to extract recipe text", "error", err, "url", cleaned)
			os.Exit(2)
		}
		text = strings.Join(result.Lines, "\n")
		method = result.Method
		title = result.Title
		sourceURL = cleaned

	case c.String("image") != "":
		image, err := os.ReadFile(c.String("image"))
		if err != nil {
			logger.Error("failed to read image", "error", err)
			os.Exit(2)
		}
		ctx, cancel := context.WithTimeout(context.Background(), cfg.OCR.Timeout)
		defer cancel()
		text, method, err = ocr.NewRecognizer(cfg.OCR).Recognize(ctx, image, filepath.Base(c.String("image")))
		if err != nil {
			logger.Error("ocr failed", "error", err)
			os.Exit(2)
		}

	case c.String("file") != "":
		data, err := os.ReadFile(c.String("file"))
		if err != nil {
			logger.Error("failed to read file", "error", err)
			os.Exit(2)
		}
		text = string(data)
		method = "text_input"

	default:
		return cli.Exit("one of --url, --file, or --image is required", 2)
	}

	lines, truncated := extract.NormalizeLines(text, cfg.Server.MaxLines)
	if len(lines) == 0 {
		return cli.Exit(fmt.Sprintf("no usable lines in %s input", method), 2)
	}

	classifications, err := pred.PredictDocument(lines)
	if err != nil {
		logger.Error("prediction failed", "error", err)
		os.Exit(2)
	}

	output := predictOutput{
		Method:    method,
		Truncated: truncated,
		Recipe:    assemble.Assemble(classifications, sourceURL, title),
	}
	if c.Bool("show-lines") {
		output.Classifications = classifications
	}
	logger.Info("recipe assembled", "method", method,
		"lines", len(lines),
		"ingredients", len(output.Recipe.Ingredients),
		"steps", len(output.Recipe.Steps))
	return common.PrintYAML(output)
}
