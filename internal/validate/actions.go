package validate

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"recipe-lab/internal/common"
	"recipe-lab/pkg/dataset"
)

// ValidateAction checks a labeled dataset for structural problems and
// prints the verdict with label and source counts. Exit code 1 means the
// dataset is invalid, 2 means it could not be read at all.
func ValidateAction(c *cli.Context) error {
	logger := common.NewLogger(c.Bool("quiet"))
	dataDir := c.String("data-dir")

	result, err := dataset.Validate(dataDir)
	if err != nil {
		logger.Error("failed to validate dataset", "error", err, "data_dir", dataDir)
		os.Exit(2)
	}

	if err := common.PrintYAML(result); err != nil {
		logger.Error("failed to print validation result", "error", err)
		os.Exit(2)
	}

	if !result.IsValid {
		logger.Error("dataset validation failed",
			"data_dir", dataDir, "error_count", len(result.Errors))
		return cli.Exit(fmt.Sprintf("dataset %s is invalid", dataDir), 1)
	}
	logger.Info("dataset validated", "data_dir", dataDir,
		"sources", result.SourceCounts, "labels", result.LabelCounts)
	return nil
}
