package artifacts

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"recipe-lab/models"
	"recipe-lab/pkg/classifier"
)

func trainedModelFile(t *testing.T, path string) {
	t.Helper()
	rows := []models.LineRow{
		{DocID: "a", LineIndex: 0, Text: "2 cups flour", Label: models.LabelIngredient},
		{DocID: "a", LineIndex: 1, Text: "Mix everything together.", Label: models.LabelStep},
		{DocID: "a", LineIndex: 2, Text: "Notes:", Label: models.LabelHeader},
	}
	if err := classifier.Save(classifier.Train(rows), path); err != nil {
		t.Fatalf("saving model: %v", err)
	}
}

func TestBackupRestoreRoundTrip(t *testing.T) {
	manager, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	trainedModelFile(t, manager.ModelPath())
	if err := manager.WriteSplit(&models.Split{TrainDocs: []string{"a"}}); err != nil {
		t.Fatal(err)
	}
	original, err := os.ReadFile(manager.ModelPath())
	if err != nil {
		t.Fatal(err)
	}

	backup, err := manager.Backup()
	if err != nil {
		t.Fatalf("Backup: %v", err)
	}
	if backup.ModelPath == "" || backup.SplitPath == "" {
		t.Fatalf("backup missing paths: %+v", backup)
	}

	// Clobber the serving copies, then restore.
	if err := os.WriteFile(manager.ModelPath(), []byte("garbage"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(manager.SplitPath(), []byte("{}"), 0o600); err != nil {
		t.Fatal(err)
	}

	restored, err := manager.Restore(backup)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if !restored {
		t.Fatal("Restore reported nothing restored")
	}

	got, err := os.ReadFile(manager.ModelPath())
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, original) {
		t.Error("restored model differs from the backed-up copy")
	}
	// The backup file survives the restore.
	if _, err := os.Stat(backup.ModelPath); err != nil {
		t.Errorf("backup file missing after restore: %v", err)
	}

	split, err := manager.ReadSplit()
	if err != nil {
		t.Fatal(err)
	}
	if len(split.TrainDocs) != 1 || split.TrainDocs[0] != "a" {
		t.Errorf("restored split = %+v", split)
	}
}

func TestBackupSkipsMissingArtifacts(t *testing.T) {
	manager, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	backup, err := manager.Backup()
	if err != nil {
		t.Fatalf("Backup on empty dir: %v", err)
	}
	if backup.ModelPath != "" || backup.SplitPath != "" {
		t.Errorf("backup recorded paths for missing artifacts: %+v", backup)
	}

	restored, err := manager.Restore(backup)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if restored {
		t.Error("Restore reported work with nothing backed up")
	}
}

func TestReadSplitMissing(t *testing.T) {
	manager, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	split, err := manager.ReadSplit()
	if err != nil {
		t.Fatalf("ReadSplit: %v", err)
	}
	if split != nil {
		t.Errorf("split = %+v, want nil for missing file", split)
	}
}

func TestExportBundle(t *testing.T) {
	dir := t.TempDir()
	modelPath := filepath.Join(dir, "model.bin")
	trainedModelFile(t, modelPath)

	outDir := filepath.Join(dir, "bundle")
	got, err := ExportBundle(modelPath, outDir)
	if err != nil {
		t.Fatalf("ExportBundle: %v", err)
	}
	if got != outDir {
		t.Errorf("bundle path = %q, want %q", got, outDir)
	}

	data, err := os.ReadFile(filepath.Join(outDir, ManifestFile))
	if err != nil {
		t.Fatalf("reading manifest: %v", err)
	}
	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		t.Fatalf("decoding manifest: %v", err)
	}
	if manifest.BundleFormat != BundleFormat || manifest.BundleVersion != BundleVersion {
		t.Errorf("manifest header = %+v", manifest)
	}
	if manifest.ModelPayload != ModelFile || manifest.ModelJSONPayload != ModelJSONFile {
		t.Errorf("manifest payload names = %+v", manifest)
	}
	if manifest.SourceModel != modelPath {
		t.Errorf("source model = %q, want %q", manifest.SourceModel, modelPath)
	}

	// The payload must round-trip through the classifier loader.
	if _, err := classifier.Load(filepath.Join(outDir, ModelFile)); err != nil {
		t.Errorf("exported payload failed to load: %v", err)
	}
	if _, err := os.Stat(filepath.Join(outDir, ModelJSONFile)); err != nil {
		t.Errorf("JSON mirror missing: %v", err)
	}
}

func TestExportBundleRejectsCorruptModel(t *testing.T) {
	dir := t.TempDir()
	modelPath := filepath.Join(dir, "model.bin")
	if err := os.WriteFile(modelPath, []byte("not a model"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := ExportBundle(modelPath, filepath.Join(dir, "bundle")); err == nil {
		t.Error("ExportBundle accepted a corrupt model")
	}
}
