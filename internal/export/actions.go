package export

import (
	"os"

	"github.com/urfave/cli/v2"

	"recipe-lab/internal/common"
	"recipe-lab/pkg/artifacts"
)

// ExportAction packages a trained model into a deployable bundle directory
// with its JSON mirror and manifest.
func ExportAction(c *cli.Context) error {
	logger := common.NewLogger(c.Bool("quiet"))

	bundlePath, err := artifacts.ExportBundle(c.String("model"), c.String("out"))
	if err != nil {
		logger.Error("failed to export bundle", "error", err, "model", c.String("model"))
		os.Exit(2)
	}
	logger.Info("bundle exported", "path", bundlePath)
	return common.PrintYAML(map[string]string{"bundle_path": bundlePath})
}
