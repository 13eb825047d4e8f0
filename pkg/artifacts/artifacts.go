// Package artifacts manages the on-disk model artifact layout: the trained
// classifier blob, its JSON mirror, the dataset split record, timestamped
// backups, and export bundles.
package artifacts

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"recipe-lab/models"
	"recipe-lab/pkg/classifier"
)

const (
	DefaultBaseDir = "artifacts"
	BackupsDir     = "backups"

	ModelFile     = "line_classifier.bin"
	ModelJSONFile = "line_classifier.json"
	SplitFile     = "split.json"
	ManifestFile  = "Manifest.json"

	BundleFormat  = "recipe-line-classifier"
	BundleVersion = 1
)

// Manager handles storage and retrieval of model artifacts under a base
// directory.
type Manager struct {
	baseDir string
}

// NewManager creates a Manager and ensures the base and backup directories
// exist.
func NewManager(baseDir string) (*Manager, error) {
	if baseDir == "" {
		baseDir = DefaultBaseDir
	}
	if err := os.MkdirAll(filepath.Join(baseDir, BackupsDir), 0750); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}
	return &Manager{baseDir: baseDir}, nil
}

func (m *Manager) BaseDir() string { return m.baseDir }

// ModelPath is the canonical location of the serving model blob.
func (m *Manager) ModelPath() string {
	return filepath.Join(m.baseDir, ModelFile)
}

// ModelJSONPath is the human-readable mirror of the serving model.
func (m *Manager) ModelJSONPath() string {
	return filepath.Join(m.baseDir, ModelJSONFile)
}

// SplitPath is the location of the train/holdout split record.
func (m *Manager) SplitPath() string {
	return filepath.Join(m.baseDir, SplitFile)
}

// Backup records where a point-in-time copy of the serving artifacts lives.
// Paths are empty when the corresponding artifact did not exist at backup
// time.
type Backup struct {
	Stamp     string
	ModelPath string
	SplitPath string
}

// Backup copies the current model and split artifacts into the backup
// directory under a UTC timestamp. Missing artifacts are skipped, not
// errors: a first run has nothing to back up.
func (m *Manager) Backup() (*Backup, error) {
	stamp := time.Now().UTC().Format("20060102T150405Z")
	backup := &Backup{Stamp: stamp}

	if _, err := os.Stat(m.ModelPath()); err == nil {
		dest := filepath.Join(m.baseDir, BackupsDir, fmt.Sprintf("line_classifier_backup_%s.bin", stamp))
		if err := copyFile(m.ModelPath(), dest); err != nil {
			return nil, fmt.Errorf("failed to back up model: %w", err)
		}
		backup.ModelPath = dest
	}
	if _, err := os.Stat(m.SplitPath()); err == nil {
		dest := filepath.Join(m.baseDir, BackupsDir, fmt.Sprintf("split_backup_%s.json", stamp))
		if err := copyFile(m.SplitPath(), dest); err != nil {
			return nil, fmt.Errorf("failed to back up split: %w", err)
		}
		backup.SplitPath = dest
	}
	return backup, nil
}

// Restore copies backed-up artifacts over the serving copies. The backup
// files themselves are left in place so a failed restore can be retried.
// Returns whether anything was restored.
func (m *Manager) Restore(backup *Backup) (bool, error) {
	if backup == nil {
		return false, nil
	}
	restored := false
	if backup.ModelPath != "" {
		if _, err := os.Stat(backup.ModelPath); err == nil {
			if err := copyFile(backup.ModelPath, m.ModelPath()); err != nil {
				return restored, fmt.Errorf("failed to restore model: %w", err)
			}
			restored = true
		}
	}
	if backup.SplitPath != "" {
		if _, err := os.Stat(backup.SplitPath); err == nil {
			if err := copyFile(backup.SplitPath, m.SplitPath()); err != nil {
				return restored, fmt.Errorf("failed to restore split: %w", err)
			}
			restored = true
		}
	}
	return restored, nil
}

// WriteSplit persists the train/holdout split record as indented JSON.
func (m *Manager) WriteSplit(split *models.Split) error {
	data, err := json.MarshalIndent(split, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode split: %w", err)
	}
	if err := os.WriteFile(m.SplitPath(), append(data, '\n'), 0600); err != nil {
		return fmt.Errorf("failed to write split: %w", err)
	}
	return nil
}

// ReadSplit loads the split record. A missing file returns (nil, nil):
// evaluation then falls back to re-deriving the split from the dataset.
func (m *Manager) ReadSplit() (*models.Split, error) {
	data, err := os.ReadFile(m.SplitPath())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read split: %w", err)
	}
	var split models.Split
	if err := json.Unmarshal(data, &split); err != nil {
		return nil, fmt.Errorf("failed to decode split: %w", err)
	}
	return &split, nil
}

// Manifest describes an exported bundle directory.
type Manifest struct {
	BundleFormat     string `json:"bundleFormat"`
	BundleVersion    int    `json:"bundleVersion"`
	ModelPayload     string `json:"modelPayload"`
	ModelJSONPayload string `json:"modelJSONPayload"`
	SourceModel      string `json:"sourceModel"`
}

// ExportBundle packages a trained model into outDir: the payload copy, a
// JSON mirror regenerated from the payload, and a Manifest.json describing
// both. The model is loaded first so a corrupt blob never exports.
func ExportBundle(modelPath, outDir string) (string, error) {
	model, err := classifier.Load(modelPath)
	if err != nil {
		return "", fmt.Errorf("failed to load model for export: %w", err)
	}
	if err := os.MkdirAll(outDir, 0750); err != nil {
		return "", fmt.Errorf("failed to create bundle directory: %w", err)
	}

	payloadPath := filepath.Join(outDir, ModelFile)
	jsonPath := filepath.Join(outDir, ModelJSONFile)

	if err := copyFile(modelPath, payloadPath); err != nil {
		return "", fmt.Errorf("failed to copy model payload: %w", err)
	}
	if err := classifier.SaveJSON(model, jsonPath); err != nil {
		return "", fmt.Errorf("failed to write JSON mirror: %w", err)
	}

	manifest := Manifest{
		BundleFormat:     BundleFormat,
		BundleVersion:    BundleVersion,
		ModelPayload:     ModelFile,
		ModelJSONPayload: ModelJSONFile,
		SourceModel:      modelPath,
	}
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode manifest: %w", err)
	}
	manifestPath := filepath.Join(outDir, ManifestFile)
	if err := os.WriteFile(manifestPath, append(data, '\n'), 0600); err != nil {
		return "", fmt.Errorf("failed to write manifest: %w", err)
	}
	return outDir, nil
}

func copyFile(src, dest string) error {
	in, err := os.Open(filepath.Clean(src))
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
